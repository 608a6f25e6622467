package scheduler

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/notification"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/testutil"
)

var clock = time.Date(2030, time.March, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	db    *testutil.DB
	sms   *testutil.SMSSender
	sched *Scheduler
}

func newHarness(t *testing.T, loc *time.Location) *harness {
	t.Helper()
	db := testutil.NewDB()
	testutil.SeedTemplates(db.Templates())
	sms := &testutil.SMSSender{}
	templates := notification.NewTemplateStore(db.Templates(), time.Minute)
	notifier := notification.New(templates, sms, &testutil.EmailSender{}, db.Logs(), db.Settings(),
		notification.Config{SMSEnabled: true}, zerolog.Nop())

	return &harness{
		db:  db,
		sms: sms,
		sched: New(db.Scheduled(), db.Registrations(), db.Courses(), templates, notifier, loc, zerolog.Nop(),
			WithClock(func() time.Time { return clock })),
	}
}

// book stores a course on the given day and one confirmed registration for it.
func (h *harness) book(t *testing.T, opts ...testutil.CourseOption) (*model.Registration, *model.Course) {
	t.Helper()
	course := h.db.Courses().Put(testutil.NewCourse(opts...))
	b, err := h.db.Registrations().Book(context.Background(), course.ID, testutil.Participant(), 1)
	require.NoError(t, err)
	return b.Primary(), &b.Course
}

func TestReminderTime(t *testing.T) {
	tests := []struct {
		name   string
		day    time.Time
		wantOK bool
		want   time.Time
	}{
		{
			name:   "ten days ahead",
			day:    time.Date(2030, time.March, 11, 0, 0, 0, 0, time.UTC),
			wantOK: true,
			want:   time.Date(2030, time.March, 10, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "exactly two whole days",
			day:    time.Date(2030, time.March, 4, 0, 0, 0, 0, time.UTC),
			wantOK: true,
			want:   time.Date(2030, time.March, 3, 10, 0, 0, 0, time.UTC),
		},
		{name: "one day and 21 hours", day: time.Date(2030, time.March, 3, 0, 0, 0, 0, time.UTC)},
		{name: "tomorrow", day: time.Date(2030, time.March, 2, 0, 0, 0, 0, time.UTC)},
		{name: "in the past", day: time.Date(2030, time.February, 20, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at, ok := ReminderTime(tt.day, clock)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.True(t, tt.want.Equal(at), "got %s want %s", at, tt.want)
			}
		})
	}
}

func TestReminderTime_UsesCourseTimeZone(t *testing.T) {
	zurich, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)

	at, ok := ReminderTime(time.Date(2030, time.March, 11, 0, 0, 0, 0, zurich), clock)
	require.True(t, ok)
	require.Equal(t, time.Date(2030, time.March, 10, 9, 0, 0, 0, time.UTC), at.UTC(), "10:00 CET")
}

func TestScheduleReminder_CreatesPendingRow(t *testing.T) {
	h := newHarness(t, time.UTC)
	reg, course := h.book(t, testutil.WithDate(2030, time.March, 11))

	created, err := h.sched.ScheduleReminder(context.Background(), reg, course)
	require.NoError(t, err)
	require.True(t, created)

	rows := h.db.Scheduled().All()
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, model.SchedulePending, row.Status)
	assert.Equal(t, model.ChannelSMS, row.Channel)
	assert.Equal(t, model.TriggerReminder1Day, row.Trigger)
	assert.Equal(t, reg.Phone, row.Recipient)
	assert.Equal(t, reg.ID, *row.RegistrationID)
	assert.Equal(t, course.ID, *row.CourseID)
	assert.True(t, row.ScheduledFor.Equal(time.Date(2030, time.March, 10, 10, 0, 0, 0, time.UTC)))
}

func TestScheduleReminder_Idempotent(t *testing.T) {
	h := newHarness(t, time.UTC)
	reg, course := h.book(t, testutil.WithDate(2030, time.March, 11))

	for i := 0; i < 3; i++ {
		_, err := h.sched.ScheduleReminder(context.Background(), reg, course)
		require.NoError(t, err)
	}
	require.Len(t, h.db.Scheduled().All(), 1)
}

func TestScheduleReminder_Skips(t *testing.T) {
	h := newHarness(t, time.UTC)

	t.Run("course too soon", func(t *testing.T) {
		reg, course := h.book(t, testutil.WithDate(2030, time.March, 2))
		created, err := h.sched.ScheduleReminder(context.Background(), reg, course)
		require.NoError(t, err)
		require.False(t, created)
	})

	t.Run("course without date", func(t *testing.T) {
		reg, course := h.book(t)
		created, err := h.sched.ScheduleReminder(context.Background(), reg, course)
		require.NoError(t, err)
		require.False(t, created)
	})

	t.Run("waitlisted registration", func(t *testing.T) {
		reg, course := h.book(t, testutil.WithDate(2030, time.March, 11))
		reg.IsWaitlist = true
		created, err := h.sched.ScheduleReminder(context.Background(), reg, course)
		require.NoError(t, err)
		require.False(t, created)
	})

	require.Empty(t, h.db.Scheduled().All())
}

func TestProcessDue_SendsDueReminders(t *testing.T) {
	h := newHarness(t, time.UTC)
	reg, course := h.book(t, testutil.WithDate(2030, time.March, 2))

	due := h.db.Scheduled().Put(model.ScheduledMessage{
		Channel: model.ChannelSMS, Trigger: model.TriggerReminder1Day, Recipient: reg.Phone,
		RegistrationID: &reg.ID, CourseID: &course.ID,
		ScheduledFor: clock.Add(-time.Hour), Status: model.SchedulePending,
	})
	future := h.db.Scheduled().Put(model.ScheduledMessage{
		Channel: model.ChannelSMS, Trigger: model.TriggerReminder1Day, Recipient: reg.Phone,
		RegistrationID: &reg.ID, CourseID: &course.ID,
		ScheduledFor: clock.Add(time.Hour), Status: model.SchedulePending,
	})

	n, err := h.sched.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	row, _ := h.db.Scheduled().Get(due)
	assert.Equal(t, model.ScheduleSent, row.Status)
	require.NotNil(t, row.SentAt)
	assert.True(t, row.SentAt.Equal(clock))

	row, _ = h.db.Scheduled().Get(future)
	assert.Equal(t, model.SchedulePending, row.Status)

	sms := h.sms.Sent()
	require.Len(t, sms, 1)
	assert.Equal(t, "reminder_1day Anna Watercolour Basics 1", sms[0].Body)
	require.Len(t, h.db.Logs().ByTrigger(model.TriggerReminder1Day), 1)

	n, err = h.sched.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Zero(t, n, "sent rows are never picked up again")
}

func TestProcessDue_MissingTemplate(t *testing.T) {
	db := testutil.NewDB()
	templates := notification.NewTemplateStore(db.Templates(), time.Minute)
	notifier := notification.New(templates, &testutil.SMSSender{}, nil, db.Logs(), db.Settings(),
		notification.Config{SMSEnabled: true}, zerolog.Nop())
	sched := New(db.Scheduled(), db.Registrations(), db.Courses(), templates, notifier, time.UTC, zerolog.Nop(),
		WithClock(func() time.Time { return clock }))

	id := db.Scheduled().Put(model.ScheduledMessage{
		Channel: model.ChannelSMS, Trigger: model.TriggerReminder1Day, Recipient: "+41791234567",
		ScheduledFor: clock.Add(-time.Minute), Status: model.SchedulePending,
	})

	n, err := sched.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	row, _ := db.Scheduled().Get(id)
	assert.Equal(t, model.ScheduleFailed, row.Status)
	assert.Equal(t, "Template not found", row.ErrorMessage)
	assert.Empty(t, db.Logs().All())
}

func TestProcessDue_MissingRegistration(t *testing.T) {
	h := newHarness(t, time.UTC)
	gone := "deleted-registration"
	bad := h.db.Scheduled().Put(model.ScheduledMessage{
		Channel: model.ChannelSMS, Trigger: model.TriggerReminder1Day, Recipient: "+41791234567",
		RegistrationID: &gone, ScheduledFor: clock.Add(-2 * time.Hour), Status: model.SchedulePending,
	})
	reg, course := h.book(t, testutil.WithDate(2030, time.March, 2))
	good := h.db.Scheduled().Put(model.ScheduledMessage{
		Channel: model.ChannelSMS, Trigger: model.TriggerReminder1Day, Recipient: reg.Phone,
		RegistrationID: &reg.ID, CourseID: &course.ID,
		ScheduledFor: clock.Add(-time.Hour), Status: model.SchedulePending,
	})

	n, err := h.sched.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	row, _ := h.db.Scheduled().Get(bad)
	assert.Equal(t, model.ScheduleFailed, row.Status)
	assert.Equal(t, "Registration not found", row.ErrorMessage)

	row, _ = h.db.Scheduled().Get(good)
	assert.Equal(t, model.ScheduleSent, row.Status, "one bad row does not stop the sweep")
}

func TestProcessDue_DeliveryFailure(t *testing.T) {
	h := newHarness(t, time.UTC)
	h.sms.Err = testutil.ErrTransport
	reg, course := h.book(t, testutil.WithDate(2030, time.March, 2))
	id := h.db.Scheduled().Put(model.ScheduledMessage{
		Channel: model.ChannelSMS, Trigger: model.TriggerReminder1Day, Recipient: reg.Phone,
		RegistrationID: &reg.ID, CourseID: &course.ID,
		ScheduledFor: clock.Add(-time.Hour), Status: model.SchedulePending,
	})

	n, err := h.sched.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	row, _ := h.db.Scheduled().Get(id)
	assert.Equal(t, model.ScheduleFailed, row.Status)
	require.NotNil(t, row.SentAt)

	logs := h.db.Logs().All()
	require.Len(t, logs, 1)
	assert.Equal(t, model.LogStatusFailed, logs[0].Status)
}

func TestProcessDue_SweepInProgress(t *testing.T) {
	h := newHarness(t, time.UTC)

	h.sched.sweep.Lock()
	_, err := h.sched.ProcessDue(context.Background())
	h.sched.sweep.Unlock()
	require.ErrorIs(t, err, ErrSweepInProgress)

	_, err = h.sched.ProcessDue(context.Background())
	require.NoError(t, err)
}

func TestProcessDue_HeldByAnotherProcess(t *testing.T) {
	h := newHarness(t, time.UTC)
	lock := &testutil.SweepLock{Held: true}
	WithSweepLock(lock)(h.sched)

	reg, course := h.book(t, testutil.WithDate(2030, time.March, 11))
	due := h.db.Scheduled().Put(model.ScheduledMessage{
		Channel: model.ChannelSMS, Trigger: model.TriggerReminder1Day, Recipient: reg.Phone,
		RegistrationID: &reg.ID, CourseID: &course.ID,
		ScheduledFor: clock.Add(-time.Hour), Status: model.SchedulePending,
	})

	_, err := h.sched.ProcessDue(context.Background())
	require.ErrorIs(t, err, ErrSweepInProgress)
	require.Empty(t, h.sms.Sent(), "nothing is sent while another sweep holds the lock")
	row, _ := h.db.Scheduled().Get(due)
	assert.Equal(t, model.SchedulePending, row.Status)

	lock.Held = false
	n, err := h.sched.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, h.sms.Sent(), 1)
	assert.Equal(t, 1, lock.Acquired())
	assert.False(t, lock.IsHeld(), "lock is released after the sweep")
}

func TestProcessDue_SweepLockError(t *testing.T) {
	h := newHarness(t, time.UTC)
	WithSweepLock(&testutil.SweepLock{Err: testutil.ErrTransport})(h.sched)

	_, err := h.sched.ProcessDue(context.Background())
	require.ErrorIs(t, err, testutil.ErrTransport)

	require.True(t, h.sched.sweep.TryLock(), "in-process lock is released on error")
	h.sched.sweep.Unlock()
}

func TestCancelForRegistration(t *testing.T) {
	h := newHarness(t, time.UTC)
	reg, course := h.book(t, testutil.WithDate(2030, time.March, 11))
	_, err := h.sched.ScheduleReminder(context.Background(), reg, course)
	require.NoError(t, err)

	n, err := h.sched.CancelForRegistration(context.Background(), reg.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rows := h.db.Scheduled().All()
	require.Len(t, rows, 1)
	require.Equal(t, model.ScheduleCancelled, rows[0].Status)

	created, err := h.sched.ScheduleReminder(context.Background(), reg, course)
	require.NoError(t, err)
	require.True(t, created, "a cancelled reminder does not block a new one")
}

func TestRun_SweepsUntilCancelled(t *testing.T) {
	h := newHarness(t, time.UTC)
	reg, course := h.book(t, testutil.WithDate(2030, time.March, 2))
	id := h.db.Scheduled().Put(model.ScheduledMessage{
		Channel: model.ChannelSMS, Trigger: model.TriggerReminder1Day, Recipient: reg.Phone,
		RegistrationID: &reg.ID, CourseID: &course.ID,
		ScheduledFor: clock.Add(-time.Hour), Status: model.SchedulePending,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.sched.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		row, _ := h.db.Scheduled().Get(id)
		return row.Status == model.ScheduleSent
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
