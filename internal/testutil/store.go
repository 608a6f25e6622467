// Package testutil provides in-memory stores and fake transports that mirror
// the repository and messaging contracts, for use in package tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/allocation"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/repository"
)

// DB is an in-memory database shared by the store views below. All views of
// one DB see the same data, the way the repositories share one pool.
type DB struct {
	mu            sync.Mutex
	courses       map[string]*model.Course
	registrations map[string]*model.Registration
	templates     map[string]*model.MessageTemplate
	logs          []model.MessageLog
	settings      map[string]string
	scheduled     map[string]*model.ScheduledMessage
	seq           int

	// Now stamps new rows. Tests may replace it.
	Now func() time.Time
}

// NewDB returns an empty in-memory database.
func NewDB() *DB {
	return &DB{
		courses:       make(map[string]*model.Course),
		registrations: make(map[string]*model.Registration),
		templates:     make(map[string]*model.MessageTemplate),
		settings:      make(map[string]string),
		scheduled:     make(map[string]*model.ScheduledMessage),
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// Courses returns the course store view.
func (db *DB) Courses() *Courses { return &Courses{db: db} }

// Registrations returns the registration store view.
func (db *DB) Registrations() *Registrations { return &Registrations{db: db} }

// Templates returns the template store view.
func (db *DB) Templates() *Templates { return &Templates{db: db} }

// Logs returns the message log view.
func (db *DB) Logs() *Logs { return &Logs{db: db} }

// Settings returns the site settings view.
func (db *DB) Settings() *Settings { return &Settings{db: db} }

// Scheduled returns the scheduled message view.
func (db *DB) Scheduled() *Scheduled { return &Scheduled{db: db} }

// tick returns a strictly increasing timestamp so ordering by time is stable.
func (db *DB) tick() time.Time {
	db.seq++
	return db.Now().Add(time.Duration(db.seq) * time.Microsecond)
}

// confirmedCount must be called with mu held.
func (db *DB) confirmedCount(courseID string) int {
	n := 0
	for _, r := range db.registrations {
		if r.CourseID == courseID && !r.IsWaitlist {
			n += r.NumParticipants
		}
	}
	return n
}

func (db *DB) courseWithCount(id string) (*model.Course, bool) {
	c, ok := db.courses[id]
	if !ok {
		return nil, false
	}
	cp := *c
	cp.RegistrationCount = db.confirmedCount(id)
	return &cp, true
}

// Courses is the in-memory counterpart of repository.CourseRepository.
type Courses struct{ db *DB }

// Create stores a new active course.
func (s *Courses) Create(_ context.Context, req model.CreateCourseRequest) (*model.Course, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	now := s.db.tick()
	c := &model.Course{
		ID:              uuid.New().String(),
		Title:           req.Title,
		Description:     req.Description,
		Date:            req.Date,
		TimeInfo:        req.TimeInfo,
		Location:        req.Location,
		LocationURL:     req.LocationURL,
		MaxParticipants: req.MaxParticipants,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.db.courses[c.ID] = c
	cp := *c
	return &cp, nil
}

// Put stores c as is, assigning an id when empty.
func (s *Courses) Put(c *model.Course) *model.Course {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	cp := *c
	s.db.courses[c.ID] = &cp
	return c
}

// List returns all courses with their confirmed counts, newest first.
func (s *Courses) List(_ context.Context) ([]model.Course, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]model.Course, 0, len(s.db.courses))
	for id := range s.db.courses {
		c, _ := s.db.courseWithCount(id)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetByID returns a course or repository.ErrNotFound.
func (s *Courses) GetByID(_ context.Context, id string) (*model.Course, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.courseWithCount(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

// Registrations is the in-memory counterpart of
// repository.RegistrationRepository.
type Registrations struct{ db *DB }

// Book allocates and stores a registration request.
func (s *Registrations) Book(_ context.Context, courseID string, p model.Participant, requested int) (*repository.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	course, ok := s.db.courseWithCount(courseID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !course.IsActive {
		return nil, repository.ErrCourseInactive
	}

	b := &repository.Booking{Result: allocation.Allocate(course.SpotsAvailable(), requested)}
	now := s.db.tick()
	if n := b.Result.Confirmed; n > 0 {
		b.Confirmed = s.insert(courseID, p, n, false, now)
	}
	if n := b.Result.Waitlisted; n > 0 {
		b.Waitlisted = s.insert(courseID, p, n, true, now)
	}
	course.RegistrationCount += b.Result.Confirmed
	b.Course = *course
	return b, nil
}

// Promote moves a waitlisted registration into free seats.
func (s *Registrations) Promote(_ context.Context, id string) (*repository.PromotionOutcome, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	reg, ok := s.db.registrations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !reg.IsWaitlist {
		return nil, repository.ErrNotWaitlisted
	}
	course, ok := s.db.courseWithCount(reg.CourseID)
	if !ok {
		return nil, repository.ErrNotFound
	}

	plan := allocation.PlanPromotion(course.SpotsAvailable(), reg.NumParticipants)
	if plan.Moved == 0 {
		return nil, repository.ErrNoSpotsAvailable
	}

	out := &repository.PromotionOutcome{}
	if plan.Split() {
		reg.NumParticipants = plan.Remaining
		remaining := *reg
		out.Remaining = &remaining
		out.Promoted = *s.insert(reg.CourseID, reg.Participant, plan.Moved, false, s.db.tick())
	} else {
		reg.IsWaitlist = false
		out.Promoted = *reg
	}
	course.RegistrationCount += plan.Moved
	out.Course = *course
	return out, nil
}

// Delete removes a registration and cancels its pending scheduled messages.
func (s *Registrations) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.registrations[id]; !ok {
		return repository.ErrNotFound
	}
	for _, m := range s.db.scheduled {
		if m.RegistrationID != nil && *m.RegistrationID == id && m.Status == model.SchedulePending {
			m.Status = model.ScheduleCancelled
		}
	}
	delete(s.db.registrations, id)
	return nil
}

// GetByID returns a registration or repository.ErrNotFound.
func (s *Registrations) GetByID(_ context.Context, id string) (*model.Registration, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	reg, ok := s.db.registrations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

// ListByCourse returns the registrations of a course, oldest first.
func (s *Registrations) ListByCourse(_ context.Context, courseID string) ([]model.Registration, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var out []model.Registration
	for _, r := range s.db.registrations {
		if r.CourseID == courseID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return !out[i].IsWaitlist && out[j].IsWaitlist
	})
	return out, nil
}

// MarkConfirmationSent flags a registration as notified.
func (s *Registrations) MarkConfirmationSent(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if reg, ok := s.db.registrations[id]; ok {
		reg.ConfirmationSent = true
	}
	return nil
}

// Confirmed sums the confirmed participants of a course.
func (s *Registrations) Confirmed(courseID string) int {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.confirmedCount(courseID)
}

// Total sums all participants of a course, confirmed and waitlisted.
func (s *Registrations) Total(courseID string) int {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	n := 0
	for _, r := range s.db.registrations {
		if r.CourseID == courseID {
			n += r.NumParticipants
		}
	}
	return n
}

func (s *Registrations) insert(courseID string, p model.Participant, n int, waitlist bool, at time.Time) *model.Registration {
	reg := &model.Registration{
		ID:              uuid.New().String(),
		CourseID:        courseID,
		Participant:     p,
		NumParticipants: n,
		IsWaitlist:      waitlist,
		RegisteredAt:    at,
	}
	s.db.registrations[reg.ID] = reg
	cp := *reg
	return &cp
}

// Templates is the in-memory counterpart of repository.TemplateRepository.
type Templates struct{ db *DB }

func templateKey(channel model.Channel, trigger model.Trigger) string {
	return fmt.Sprintf("%s:%s", channel, trigger)
}

// GetActive returns the active template or repository.ErrNotFound.
func (s *Templates) GetActive(_ context.Context, channel model.Channel, trigger model.Trigger) (*model.MessageTemplate, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	tpl, ok := s.db.templates[templateKey(channel, trigger)]
	if !ok || !tpl.IsActive {
		return nil, repository.ErrNotFound
	}
	cp := *tpl
	return &cp, nil
}

// List returns every template ordered by channel and trigger.
func (s *Templates) List(_ context.Context) ([]model.MessageTemplate, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]model.MessageTemplate, 0, len(s.db.templates))
	for _, tpl := range s.db.templates {
		out = append(out, *tpl)
	}
	sort.Slice(out, func(i, j int) bool {
		return templateKey(out[i].Channel, out[i].Trigger) < templateKey(out[j].Channel, out[j].Trigger)
	})
	return out, nil
}

// Upsert creates or replaces a template.
func (s *Templates) Upsert(_ context.Context, tpl *model.MessageTemplate) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := templateKey(tpl.Channel, tpl.Trigger)
	if existing, ok := s.db.templates[key]; ok {
		tpl.ID = existing.ID
	} else if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	tpl.UpdatedAt = s.db.tick()
	cp := *tpl
	s.db.templates[key] = &cp
	return nil
}

// InsertIfMissing stores tpl unless one exists for its channel and trigger.
func (s *Templates) InsertIfMissing(_ context.Context, tpl *model.MessageTemplate) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := templateKey(tpl.Channel, tpl.Trigger)
	if _, ok := s.db.templates[key]; ok {
		return false, nil
	}
	cp := *tpl
	cp.ID = uuid.New().String()
	cp.UpdatedAt = s.db.tick()
	s.db.templates[key] = &cp
	return true, nil
}

// Put stores an active template with the given body and subject.
func (s *Templates) Put(channel model.Channel, trigger model.Trigger, subject, body string) {
	_ = s.Upsert(context.Background(), &model.MessageTemplate{
		Channel:  channel,
		Trigger:  trigger,
		Subject:  subject,
		Body:     body,
		IsActive: true,
	})
}

// Logs is the in-memory counterpart of repository.MessageLogRepository.
type Logs struct {
	db *DB

	// Err, when set, is returned from Create without storing the entry.
	Err error
}

// Create appends a log entry.
func (s *Logs) Create(_ context.Context, l *model.MessageLog) error {
	if s.Err != nil {
		return s.Err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.db.tick()
	}
	s.db.logs = append(s.db.logs, *l)
	return nil
}

// ListRecent returns up to limit entries, newest first.
func (s *Logs) ListRecent(_ context.Context, limit int) ([]model.MessageLog, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]model.MessageLog, 0, len(s.db.logs))
	for i := len(s.db.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.db.logs[i])
	}
	return out, nil
}

// All returns every entry in insertion order.
func (s *Logs) All() []model.MessageLog {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return append([]model.MessageLog(nil), s.db.logs...)
}

// ByTrigger returns the entries for trigger in insertion order.
func (s *Logs) ByTrigger(trigger model.Trigger) []model.MessageLog {
	var out []model.MessageLog
	for _, l := range s.All() {
		if l.Trigger == trigger {
			out = append(out, l)
		}
	}
	return out
}

// Settings is the in-memory counterpart of repository.SettingsRepository.
type Settings struct{ db *DB }

// Get returns the value for key or repository.ErrNotFound.
func (s *Settings) Get(_ context.Context, key string) (string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	v, ok := s.db.settings[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

// Set stores value under key.
func (s *Settings) Set(_ context.Context, key, value string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.settings[key] = value
	return nil
}

// Scheduled is the in-memory counterpart of
// repository.ScheduledMessageRepository.
type Scheduled struct{ db *DB }

// CreatePending inserts a pending message unless one exists for the same
// registration and trigger.
func (s *Scheduled) CreatePending(_ context.Context, m *model.ScheduledMessage) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if m.RegistrationID != nil && s.hasPending(*m.RegistrationID, m.Trigger) {
		return false, nil
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.Status = model.SchedulePending
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.db.tick()
	}
	cp := *m
	s.db.scheduled[m.ID] = &cp
	return true, nil
}

// HasPending reports whether a pending message exists.
func (s *Scheduled) HasPending(_ context.Context, registrationID string, trigger model.Trigger) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.hasPending(registrationID, trigger), nil
}

// ListDue returns pending messages due at now, oldest first.
func (s *Scheduled) ListDue(_ context.Context, now time.Time) ([]model.ScheduledMessage, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var out []model.ScheduledMessage
	for _, m := range s.db.scheduled {
		if m.Status == model.SchedulePending && !m.ScheduledFor.After(now) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

// Finish moves a pending message to a terminal status.
func (s *Scheduled) Finish(_ context.Context, id string, status model.ScheduleStatus, sentAt *time.Time, errMsg string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	m, ok := s.db.scheduled[id]
	if !ok || m.Status != model.SchedulePending {
		return nil
	}
	m.Status = status
	m.SentAt = sentAt
	m.ErrorMessage = errMsg
	return nil
}

// CancelPending cancels the pending messages of a registration.
func (s *Scheduled) CancelPending(_ context.Context, registrationID string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var n int64
	for _, m := range s.db.scheduled {
		if m.RegistrationID != nil && *m.RegistrationID == registrationID && m.Status == model.SchedulePending {
			m.Status = model.ScheduleCancelled
			n++
		}
	}
	return n, nil
}

// Put stores m as is, assigning an id when empty.
func (s *Scheduled) Put(m model.ScheduledMessage) string {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	s.db.scheduled[m.ID] = &m
	return m.ID
}

// Get returns a copy of the message with id.
func (s *Scheduled) Get(id string) (model.ScheduledMessage, bool) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	m, ok := s.db.scheduled[id]
	if !ok {
		return model.ScheduledMessage{}, false
	}
	return *m, true
}

// All returns every scheduled message ordered by scheduled time.
func (s *Scheduled) All() []model.ScheduledMessage {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]model.ScheduledMessage, 0, len(s.db.scheduled))
	for _, m := range s.db.scheduled {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out
}

func (s *Scheduled) hasPending(registrationID string, trigger model.Trigger) bool {
	for _, m := range s.db.scheduled {
		if m.RegistrationID != nil && *m.RegistrationID == registrationID &&
			m.Trigger == trigger && m.Status == model.SchedulePending {
			return true
		}
	}
	return false
}
