package testutil

import (
	"time"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
)

// CourseOption configures a course built by NewCourse.
type CourseOption func(*model.Course)

// NewCourse returns an active unlimited course with sensible defaults.
func NewCourse(opts ...CourseOption) *model.Course {
	now := time.Now().UTC()
	c := &model.Course{
		Title:     "Watercolour Basics",
		TimeInfo:  "14:00 - 17:00",
		Location:  "Atelier Bern",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithCapacity limits the course to n seats.
func WithCapacity(n int) CourseOption {
	return func(c *model.Course) { c.MaxParticipants = &n }
}

// WithDate sets the course day.
func WithDate(year int, month time.Month, day int) CourseOption {
	return func(c *model.Course) {
		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		c.Date = &d
	}
}

// WithTitle sets the course title.
func WithTitle(title string) CourseOption {
	return func(c *model.Course) { c.Title = title }
}

// WithLocationURL sets an explicit map link.
func WithLocationURL(u string) CourseOption {
	return func(c *model.Course) { c.LocationURL = u }
}

// Participant returns a participant with an email address.
func Participant() model.Participant {
	return model.Participant{
		FirstName: "Anna",
		LastName:  "Muster",
		Phone:     "079 123 45 67",
		Email:     "anna@example.com",
	}
}

// SeedTemplates stores one active template for every channel and trigger.
// Bodies name their trigger so tests can tell messages apart.
func SeedTemplates(t *Templates) {
	for _, trigger := range model.Triggers {
		t.Put(model.ChannelSMS, trigger, "", string(trigger)+" {first_name} {course_title} {num_participants}")
		t.Put(model.ChannelEmail, trigger, string(trigger)+": {course_title}", string(trigger)+" {first_name} {num_registered}/{num_waitlist}")
	}
}
