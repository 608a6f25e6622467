// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/allocation"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/messaging"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/repository"
)

// ErrCourseInactive is returned when registering for a course that is not
// published.
var ErrCourseInactive = repository.ErrCourseInactive

// CourseStore persists courses.
type CourseStore interface {
	Create(ctx context.Context, req model.CreateCourseRequest) (*model.Course, error)
	List(ctx context.Context) ([]model.Course, error)
	GetByID(ctx context.Context, id string) (*model.Course, error)
}

// RegistrationStore persists registrations. Book and Promote run the
// allocation under a course lock.
type RegistrationStore interface {
	Book(ctx context.Context, courseID string, p model.Participant, requested int) (*repository.Booking, error)
	Promote(ctx context.Context, registrationID string) (*repository.PromotionOutcome, error)
	Delete(ctx context.Context, registrationID string) error
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	ListByCourse(ctx context.Context, courseID string) ([]model.Registration, error)
	MarkConfirmationSent(ctx context.Context, id string) error
}

// Notifier sends participant and admin messages.
type Notifier interface {
	NotifyRegistration(ctx context.Context, reg *model.Registration, course *model.Course, res allocation.Result) bool
	NotifyPromoted(ctx context.Context, reg *model.Registration, course *model.Course) bool
}

// ReminderScheduler queues the day-before reminder.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, reg *model.Registration, course *model.Course) (bool, error)
}

// RegistrationResult is the outcome of a registration request.
type RegistrationResult struct {
	Status     allocation.Status   `json:"status"`
	Confirmed  *model.Registration `json:"confirmed,omitempty"`
	Waitlisted *model.Registration `json:"waitlisted,omitempty"`
	Course     model.Course        `json:"course"`
}

// PromotionResult is the outcome of a waitlist promotion. Remaining is set
// when only part of the waitlisted group fit.
type PromotionResult struct {
	Promoted  model.Registration  `json:"promoted"`
	Remaining *model.Registration `json:"remaining,omitempty"`
	Course    model.Course        `json:"course"`
}

// CourseService orchestrates course and registration operations.
type CourseService struct {
	courses       CourseStore
	registrations RegistrationStore
	notifier      Notifier
	reminders     ReminderScheduler
	validate      *validator.Validate
	logger        zerolog.Logger
}

// NewCourseService constructs a CourseService with its dependencies.
func NewCourseService(
	courses CourseStore,
	registrations RegistrationStore,
	notifier Notifier,
	reminders ReminderScheduler,
	validate *validator.Validate,
	logger zerolog.Logger,
) *CourseService {
	return &CourseService{
		courses:       courses,
		registrations: registrations,
		notifier:      notifier,
		reminders:     reminders,
		validate:      validate,
		logger:        logger,
	}
}

// CreateCourse validates the request and delegates to the repository.
func (s *CourseService) CreateCourse(ctx context.Context, req model.CreateCourseRequest) (*model.Course, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Location = strings.TrimSpace(req.Location)
	req.LocationURL = strings.TrimSpace(req.LocationURL)
	if err := s.validate.Struct(&req); err != nil {
		return nil, validationError(err)
	}
	return s.courses.Create(ctx, req)
}

// ListCourses returns all courses with their confirmed counts.
func (s *CourseService) ListCourses(ctx context.Context) ([]model.Course, error) {
	return s.courses.List(ctx)
}

// GetCourse returns a single course by ID.
func (s *CourseService) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	return course, nil
}

// Register validates the request, allocates seats and sends the registration
// messages. Messaging never fails the registration once it is stored.
func (s *CourseService) Register(ctx context.Context, courseID string, req model.RegisterRequest) (*RegistrationResult, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)

	if err := s.validate.Struct(&req); err != nil {
		return nil, validationError(err)
	}
	if err := s.validate.Var(messaging.NormalizePhone(req.Phone), "e164"); err != nil {
		return nil, fieldError("phone", "is not a valid phone number")
	}

	participant := model.Participant{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
	}
	booking, err := s.registrations.Book(ctx, courseID, participant, req.NumParticipants)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrCourseInactive) {
			return nil, err
		}
		return nil, fmt.Errorf("register for course: %w", err)
	}

	s.logger.Info().
		Str("course_id", courseID).
		Str("status", string(booking.Result.Status())).
		Int("confirmed", booking.Result.Confirmed).
		Int("waitlisted", booking.Result.Waitlisted).
		Msg("registration stored")

	// The booking is committed; a client hanging up must not cut off the
	// messages that follow.
	ctx = context.WithoutCancel(ctx)

	primary := booking.Primary()
	if s.notifier.NotifyRegistration(ctx, primary, &booking.Course, booking.Result) {
		s.markSent(ctx, booking.Confirmed, booking.Waitlisted)
	}
	if booking.Confirmed != nil {
		s.scheduleReminder(ctx, booking.Confirmed, &booking.Course)
	}

	return &RegistrationResult{
		Status:     booking.Result.Status(),
		Confirmed:  booking.Confirmed,
		Waitlisted: booking.Waitlisted,
		Course:     booking.Course,
	}, nil
}

// ListRegistrations returns all registrations for a course.
func (s *CourseService) ListRegistrations(ctx context.Context, courseID string) ([]model.Registration, error) {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return s.registrations.ListByCourse(ctx, courseID)
}

// Promote moves a waitlisted registration into free seats and notifies the
// participant.
func (s *CourseService) Promote(ctx context.Context, registrationID string) (*PromotionResult, error) {
	out, err := s.registrations.Promote(ctx, registrationID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound),
			errors.Is(err, repository.ErrNotWaitlisted),
			errors.Is(err, repository.ErrNoSpotsAvailable):
			return nil, err
		}
		return nil, fmt.Errorf("promote registration: %w", err)
	}

	s.logger.Info().
		Str("registration_id", registrationID).
		Str("promoted_id", out.Promoted.ID).
		Int("moved", out.Promoted.NumParticipants).
		Bool("split", out.Remaining != nil).
		Msg("registration promoted")

	ctx = context.WithoutCancel(ctx)
	if s.notifier.NotifyPromoted(ctx, &out.Promoted, &out.Course) {
		s.markSent(ctx, &out.Promoted)
	}
	s.scheduleReminder(ctx, &out.Promoted, &out.Course)

	return &PromotionResult{Promoted: out.Promoted, Remaining: out.Remaining, Course: out.Course}, nil
}

// DeleteRegistration removes a registration and cancels its pending
// scheduled messages.
func (s *CourseService) DeleteRegistration(ctx context.Context, registrationID string) error {
	if err := s.registrations.Delete(ctx, registrationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete registration: %w", err)
	}
	s.logger.Info().Str("registration_id", registrationID).Msg("registration deleted")
	return nil
}

func (s *CourseService) markSent(ctx context.Context, regs ...*model.Registration) {
	for _, reg := range regs {
		if reg == nil {
			continue
		}
		if err := s.registrations.MarkConfirmationSent(ctx, reg.ID); err != nil {
			s.logger.Error().Err(err).Str("registration_id", reg.ID).Msg("mark confirmation sent")
			continue
		}
		reg.ConfirmationSent = true
	}
}

func (s *CourseService) scheduleReminder(ctx context.Context, reg *model.Registration, course *model.Course) {
	if _, err := s.reminders.ScheduleReminder(ctx, reg, course); err != nil {
		s.logger.Error().Err(err).Str("registration_id", reg.ID).Msg("schedule reminder")
	}
}
