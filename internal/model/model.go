// Package model defines the core domain types for the workshop registration system.
package model

import "time"

// Course represents a workshop that visitors can register for.
// A nil MaxParticipants means the course has no capacity limit.
type Course struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Date            *time.Time `json:"date,omitempty"`
	TimeInfo        string     `json:"time_info"`
	Location        string     `json:"location"`
	LocationURL     string     `json:"location_url"`
	MaxParticipants *int       `json:"max_participants,omitempty"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// RegistrationCount is the number of confirmed participants, filled in by
	// the repository from the non-waitlisted registrations.
	RegistrationCount int `json:"registration_count"`
}

// SpotsAvailable returns the number of free seats, or nil when the course is
// unlimited.
func (c *Course) SpotsAvailable() *int {
	if c.MaxParticipants == nil {
		return nil
	}
	spots := *c.MaxParticipants - c.RegistrationCount
	if spots < 0 {
		spots = 0
	}
	return &spots
}

// IsFull returns true when a limited course has no remaining seats.
func (c *Course) IsFull() bool {
	spots := c.SpotsAvailable()
	return spots != nil && *spots == 0
}

// Participant is the identity submitted with a registration. Split
// registrations share one Participant.
type Participant struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
}

// Registration represents one persisted booking row for a course.
type Registration struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Participant
	NumParticipants  int       `json:"num_participants"`
	IsWaitlist       bool      `json:"is_waitlist"`
	ConfirmationSent bool      `json:"confirmation_sent"`
	RegisteredAt     time.Time `json:"registered_at"`
}

// Channel is a message delivery medium.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelSMS || c == ChannelEmail
}

// Trigger names the event that selects a template or schedule rule.
type Trigger string

const (
	TriggerRegistrationConfirmed Trigger = "registration_confirmed"
	TriggerRegistrationWaitlist  Trigger = "registration_waitlist"
	TriggerRegistrationMixed     Trigger = "registration_mixed"
	TriggerPromotedFromWaitlist  Trigger = "promoted_from_waitlist"
	TriggerReminder1Day          Trigger = "reminder_1day"
	TriggerAdminNewRegistration  Trigger = "admin_new_registration"
)

// Triggers lists every known trigger.
var Triggers = []Trigger{
	TriggerRegistrationConfirmed,
	TriggerRegistrationWaitlist,
	TriggerRegistrationMixed,
	TriggerPromotedFromWaitlist,
	TriggerReminder1Day,
	TriggerAdminNewRegistration,
}

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	for _, known := range Triggers {
		if t == known {
			return true
		}
	}
	return false
}

// MessageTemplate is the editable text sent for a (channel, trigger) pair.
// Subject is only used for email.
type MessageTemplate struct {
	ID        string    `json:"id"`
	Channel   Channel   `json:"channel"`
	Trigger   Trigger   `json:"trigger"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LogStatus is the outcome recorded for a send attempt.
type LogStatus string

const (
	LogStatusSent     LogStatus = "sent"
	LogStatusFailed   LogStatus = "failed"
	LogStatusDisabled LogStatus = "disabled"
)

// MessageLog is an append-only record of a single send attempt.
type MessageLog struct {
	ID             string    `json:"id"`
	Channel        Channel   `json:"channel"`
	Trigger        Trigger   `json:"trigger"`
	Recipient      string    `json:"recipient"`
	Subject        string    `json:"subject,omitempty"`
	Body           string    `json:"body"`
	Status         LogStatus `json:"status"`
	ExternalID     string    `json:"external_id,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	RegistrationID *string   `json:"registration_id,omitempty"`
	CourseID       *string   `json:"course_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ScheduleStatus is the lifecycle state of a scheduled message. Every state
// other than pending is terminal.
type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "pending"
	ScheduleSent      ScheduleStatus = "sent"
	ScheduleFailed    ScheduleStatus = "failed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// ScheduledMessage is a message queued for delivery at ScheduledFor.
type ScheduledMessage struct {
	ID             string         `json:"id"`
	Channel        Channel        `json:"channel"`
	Trigger        Trigger        `json:"trigger"`
	Recipient      string         `json:"recipient"`
	RegistrationID *string        `json:"registration_id,omitempty"`
	CourseID       *string        `json:"course_id,omitempty"`
	ScheduledFor   time.Time      `json:"scheduled_for"`
	Status         ScheduleStatus `json:"status"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// CreateCourseRequest is the payload for creating a new course.
type CreateCourseRequest struct {
	Title           string     `json:"title" validate:"required,max=200"`
	Description     string     `json:"description"`
	Date            *time.Time `json:"date"`
	TimeInfo        string     `json:"time_info" validate:"max=100"`
	Location        string     `json:"location" validate:"max=255"`
	LocationURL     string     `json:"location_url" validate:"omitempty,url"`
	MaxParticipants *int       `json:"max_participants" validate:"omitempty,min=1,max=100000"`
}

// RegisterRequest is the payload for registering participants for a course.
type RegisterRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	Phone           string `json:"phone" validate:"required,max=50"`
	Email           string `json:"email" validate:"omitempty,email,max=120"`
	NumParticipants int    `json:"num_participants" validate:"min=1,max=100"`
}

// UpdateTemplateRequest is the payload for editing a message template.
type UpdateTemplateRequest struct {
	Subject  string `json:"subject" validate:"max=255"`
	Body     string `json:"body" validate:"required"`
	IsActive *bool  `json:"is_active"`
}

// SMSSettingRequest toggles SMS delivery at runtime.
type SMSSettingRequest struct {
	Enabled bool `json:"enabled"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
