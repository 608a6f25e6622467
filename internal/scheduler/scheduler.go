// Package scheduler queues reminder messages and delivers them once due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/messaging"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/notification"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/repository"
)

// ErrSweepInProgress is returned when ProcessDue is called while another sweep
// is still running.
var ErrSweepInProgress = errors.New("scheduled message sweep already running")

const (
	// courseStartHour is the assumed start of every course; time_info is
	// free text and is not parsed.
	courseStartHour = 9
	reminderHour    = 10
	// minDaysAhead is the lead time below which no reminder is queued.
	minDaysAhead = 2

	errTemplateNotFound     = "Template not found"
	errRegistrationNotFound = "Registration not found"
	errCourseNotFound       = "Course not found"
	errDeliveryFailed       = "delivery failed, see message log"
)

// Store persists scheduled messages.
type Store interface {
	CreatePending(ctx context.Context, m *model.ScheduledMessage) (bool, error)
	HasPending(ctx context.Context, registrationID string, trigger model.Trigger) (bool, error)
	ListDue(ctx context.Context, now time.Time) ([]model.ScheduledMessage, error)
	Finish(ctx context.Context, id string, status model.ScheduleStatus, sentAt *time.Time, errMsg string) error
	CancelPending(ctx context.Context, registrationID string) (int64, error)
}

// Registrations loads registrations by id.
type Registrations interface {
	GetByID(ctx context.Context, id string) (*model.Registration, error)
}

// Courses loads courses by id.
type Courses interface {
	GetByID(ctx context.Context, id string) (*model.Course, error)
}

// Dispatcher sends a rendered message and reports delivery.
type Dispatcher interface {
	Send(ctx context.Context, msg notification.Message) bool
}

// SweepLock excludes sweeps running in other processes.
type SweepLock interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// Scheduler owns the reminder queue.
type Scheduler struct {
	store         Store
	registrations Registrations
	courses       Courses
	templates     notification.Templates
	dispatcher    Dispatcher
	loc           *time.Location
	logger        zerolog.Logger
	tracer        trace.Tracer
	lock          SweepLock

	// now is replaceable in tests.
	now   func() time.Time
	sweep sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTracer sets the tracer used for sweep spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithSweepLock makes ProcessDue also hold l, so sweeps in separate processes
// never overlap.
func WithSweepLock(l SweepLock) Option {
	return func(s *Scheduler) { s.lock = l }
}

// New constructs a Scheduler. loc is the time zone course dates are read in.
func New(store Store, registrations Registrations, courses Courses, templates notification.Templates,
	dispatcher Dispatcher, loc *time.Location, logger zerolog.Logger, opts ...Option,
) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		store:         store,
		registrations: registrations,
		courses:       courses,
		templates:     templates,
		dispatcher:    dispatcher,
		loc:           loc,
		logger:        logger,
		tracer:        noop.NewTracerProvider().Tracer("scheduler"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReminderTime returns when the day-before reminder for a course held on day
// should go out. day carries the course's time zone. ok is false when fewer
// than two whole days remain until the course starts.
func ReminderTime(day, now time.Time) (at time.Time, ok bool) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, courseStartHour, 0, 0, 0, day.Location())

	days := int(math.Floor(start.Sub(now).Hours() / 24))
	if days < minDaysAhead {
		return time.Time{}, false
	}

	prev := start.AddDate(0, 0, -1)
	return time.Date(prev.Year(), prev.Month(), prev.Day(), reminderHour, 0, 0, 0, day.Location()), true
}

// ScheduleReminder queues the reminder_1day SMS for a confirmed registration.
// It reports whether a new row was created.
func (s *Scheduler) ScheduleReminder(ctx context.Context, reg *model.Registration, course *model.Course) (bool, error) {
	log := s.logger.With().Str("registration_id", reg.ID).Str("course_id", course.ID).Logger()

	if reg.IsWaitlist {
		log.Debug().Msg("waitlisted registration, no reminder")
		return false, nil
	}
	day, ok := messaging.CourseDay(course, s.loc)
	if !ok {
		log.Warn().Msg("course has no date, no reminder")
		return false, nil
	}

	exists, err := s.store.HasPending(ctx, reg.ID, model.TriggerReminder1Day)
	if err != nil {
		return false, err
	}
	if exists {
		log.Debug().Msg("reminder already scheduled")
		return false, nil
	}

	at, ok := ReminderTime(day, s.now())
	if !ok {
		log.Info().Msg("course too soon, no reminder")
		return false, nil
	}

	created, err := s.store.CreatePending(ctx, &model.ScheduledMessage{
		Channel:        model.ChannelSMS,
		Trigger:        model.TriggerReminder1Day,
		Recipient:      reg.Phone,
		RegistrationID: &reg.ID,
		CourseID:       &course.ID,
		ScheduledFor:   at.UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("schedule reminder: %w", err)
	}
	if created {
		log.Info().Time("scheduled_for", at).Msg("reminder scheduled")
	}
	return created, nil
}

// CancelForRegistration cancels every pending message of a registration.
func (s *Scheduler) CancelForRegistration(ctx context.Context, registrationID string) (int64, error) {
	n, err := s.store.CancelPending(ctx, registrationID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Str("registration_id", registrationID).Int64("cancelled", n).Msg("scheduled messages cancelled")
	}
	return n, nil
}

// ProcessDue delivers every pending message whose time has come and returns how
// many rows reached a terminal status. Only one sweep runs at a time, in this
// process and, with a SweepLock, across processes; a concurrent call returns
// ErrSweepInProgress.
func (s *Scheduler) ProcessDue(ctx context.Context) (int, error) {
	if !s.sweep.TryLock() {
		return 0, ErrSweepInProgress
	}
	defer s.sweep.Unlock()

	if s.lock != nil {
		release, ok, err := s.lock.TryAcquire(ctx)
		if err != nil {
			return 0, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			return 0, ErrSweepInProgress
		}
		defer release()
	}

	ctx, span := s.tracer.Start(ctx, "scheduler.process_due")
	defer span.End()

	now := s.now().UTC()
	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("list due messages: %w", err)
	}
	span.SetAttributes(attribute.Int("scheduled.due", len(due)))

	processed := 0
	for i := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if s.process(ctx, &due[i], now) {
			processed++
		}
	}

	s.logger.Info().Int("due", len(due)).Int("processed", processed).Msg("scheduled message sweep finished")
	return processed, nil
}

// process handles one due row and reports whether it was finished.
func (s *Scheduler) process(ctx context.Context, m *model.ScheduledMessage, now time.Time) bool {
	log := s.logger.With().Str("scheduled_id", m.ID).Str("trigger", string(m.Trigger)).Logger()

	tpl, err := s.templates.Lookup(ctx, m.Channel, m.Trigger)
	if err != nil {
		log.Error().Err(err).Msg("lookup template, leaving pending")
		return false
	}
	if tpl == nil {
		log.Error().Msg("no template for scheduled message")
		return s.finish(ctx, m, model.ScheduleFailed, nil, errTemplateNotFound)
	}

	reg, err := s.loadRegistration(ctx, m)
	if errors.Is(err, repository.ErrNotFound) {
		return s.finish(ctx, m, model.ScheduleFailed, nil, errRegistrationNotFound)
	}
	if err != nil {
		log.Error().Err(err).Msg("load registration, leaving pending")
		return false
	}

	course, err := s.courses.GetByID(ctx, reg.CourseID)
	if errors.Is(err, repository.ErrNotFound) {
		return s.finish(ctx, m, model.ScheduleFailed, nil, errCourseNotFound)
	}
	if err != nil {
		log.Error().Err(err).Msg("load course, leaving pending")
		return false
	}

	vars := messaging.BuildContext(reg, course, nil)
	delivered := s.dispatcher.Send(ctx, notification.Message{
		Channel:        m.Channel,
		Trigger:        m.Trigger,
		Recipient:      m.Recipient,
		Subject:        messaging.RenderSubject(tpl, vars),
		Body:           messaging.RenderBody(tpl, vars),
		RegistrationID: m.RegistrationID,
		CourseID:       m.CourseID,
	})

	if delivered {
		return s.finish(ctx, m, model.ScheduleSent, &now, "")
	}
	return s.finish(ctx, m, model.ScheduleFailed, &now, errDeliveryFailed)
}

func (s *Scheduler) loadRegistration(ctx context.Context, m *model.ScheduledMessage) (*model.Registration, error) {
	if m.RegistrationID == nil {
		return nil, repository.ErrNotFound
	}
	return s.registrations.GetByID(ctx, *m.RegistrationID)
}

func (s *Scheduler) finish(ctx context.Context, m *model.ScheduledMessage, status model.ScheduleStatus, sentAt *time.Time, errMsg string) bool {
	if err := s.store.Finish(ctx, m.ID, status, sentAt, errMsg); err != nil {
		s.logger.Error().Err(err).Str("scheduled_id", m.ID).Msg("finish scheduled message")
		return false
	}
	return true
}

// Run sweeps every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("scheduled message sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduled message sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.ProcessDue(ctx); err != nil {
				if errors.Is(err, ErrSweepInProgress) {
					s.logger.Debug().Msg("previous sweep still running")
					continue
				}
				s.logger.Error().Err(err).Msg("scheduled message sweep")
			}
		}
	}
}
