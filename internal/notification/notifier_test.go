package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/allocation"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/repository"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/testutil"
)

type fixture struct {
	db       *testutil.DB
	sms      *testutil.SMSSender
	email    *testutil.EmailSender
	notifier *Notifier
	course   *model.Course
	reg      *model.Registration
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	db := testutil.NewDB()
	testutil.SeedTemplates(db.Templates())

	f := &fixture{
		db:    db,
		sms:   &testutil.SMSSender{},
		email: &testutil.EmailSender{},
	}
	f.course = db.Courses().Put(testutil.NewCourse(testutil.WithDate(2030, time.March, 14)))
	f.reg = &model.Registration{
		ID:              "reg-1",
		CourseID:        f.course.ID,
		Participant:     testutil.Participant(),
		NumParticipants: 2,
	}
	f.notifier = New(
		NewTemplateStore(db.Templates(), time.Minute),
		f.sms, f.email, db.Logs(), db.Settings(), cfg, zerolog.Nop(), opts...,
	)
	return f
}

func defaultConfig() Config {
	return Config{SMSEnabled: true, AdminPhone: "+41790000000", AdminEmail: "admin@example.com"}
}

func TestNotifyRegistration_Confirmed(t *testing.T) {
	f := newFixture(t, defaultConfig())

	delivered := f.notifier.NotifyRegistration(context.Background(), f.reg, f.course, allocation.Result{Confirmed: 2})
	require.True(t, delivered)

	sms := f.sms.Sent()
	require.Len(t, sms, 2)
	assert.Equal(t, "079 123 45 67", sms[0].To)
	assert.Equal(t, "registration_confirmed Anna Watercolour Basics 2", sms[0].Body)
	assert.Equal(t, "+41790000000", sms[1].To)
	assert.Equal(t, "admin_new_registration Anna Watercolour Basics 2", sms[1].Body)

	emails := f.email.Sent()
	require.Len(t, emails, 2)
	assert.Equal(t, "anna@example.com", emails[0].To)
	assert.Equal(t, "registration_confirmed: Watercolour Basics", emails[0].Subject)
	assert.Equal(t, "registration_confirmed Anna 2/0", emails[0].Body)
	assert.Equal(t, "admin@example.com", emails[1].To)
	assert.Equal(t, "anna@example.com", emails[1].ReplyTo)

	logs := f.db.Logs().All()
	require.Len(t, logs, 4)
	for _, l := range logs {
		assert.Equal(t, model.LogStatusSent, l.Status)
		require.NotNil(t, l.RegistrationID)
		assert.Equal(t, "reg-1", *l.RegistrationID)
	}
	assert.Equal(t, "+41791234567", logs[0].Recipient, "sent SMS logs the normalized number")
	assert.NotEmpty(t, logs[0].ExternalID)
}

func TestNotifyRegistration_MixedReportsTotals(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.reg.NumParticipants = 2

	f.notifier.NotifyRegistration(context.Background(), f.reg, f.course, allocation.Result{Confirmed: 2, Waitlisted: 3})

	sms := f.sms.Sent()
	require.NotEmpty(t, sms)
	assert.Equal(t, "registration_mixed Anna Watercolour Basics 5", sms[0].Body)
	assert.Equal(t, "registration_mixed Anna 2/3", f.email.Sent()[0].Body)
}

func TestNotifyRegistration_WaitlistTrigger(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.reg.IsWaitlist = true

	f.notifier.NotifyRegistration(context.Background(), f.reg, f.course, allocation.Result{Waitlisted: 2})

	logs := f.db.Logs().ByTrigger(model.TriggerRegistrationWaitlist)
	require.Len(t, logs, 2)
	require.Len(t, f.db.Logs().ByTrigger(model.TriggerAdminNewRegistration), 2)
}

func TestNotifyRegistration_NoEmailAddress(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.reg.Email = ""

	f.notifier.NotifyRegistration(context.Background(), f.reg, f.course, allocation.Result{Confirmed: 2})

	emails := f.email.Sent()
	require.Len(t, emails, 1, "only the admin email goes out")
	assert.Equal(t, "admin@example.com", emails[0].To)
	assert.Empty(t, emails[0].ReplyTo)
}

func TestNotifyRegistration_SMSDisabledByConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.SMSEnabled = false
	f := newFixture(t, cfg)

	delivered := f.notifier.NotifyRegistration(context.Background(), f.reg, f.course, allocation.Result{Confirmed: 2})
	require.True(t, delivered, "the email still went out")
	require.Empty(t, f.sms.Sent())

	smsLogs := 0
	for _, l := range f.db.Logs().All() {
		if l.Channel != model.ChannelSMS {
			continue
		}
		smsLogs++
		assert.Equal(t, model.LogStatusDisabled, l.Status)
		assert.Equal(t, "SMS not enabled", l.ErrorMessage)
		assert.NotEmpty(t, l.Body, "disabled attempts keep the rendered text")
	}
	assert.Equal(t, 2, smsLogs)
}

func TestNotifyRegistration_SMSDisabledAtRuntime(t *testing.T) {
	f := newFixture(t, defaultConfig())
	require.NoError(t, f.db.Settings().Set(context.Background(), repository.SettingSMSEnabled, "false"))

	f.notifier.NotifyRegistration(context.Background(), f.reg, f.course, allocation.Result{Confirmed: 2})
	require.Empty(t, f.sms.Sent())
	for _, l := range f.db.Logs().All() {
		if l.Channel == model.ChannelSMS {
			assert.Equal(t, model.LogStatusDisabled, l.Status)
		}
	}
}

func TestNotifyRegistration_NoSMSTransport(t *testing.T) {
	db := testutil.NewDB()
	testutil.SeedTemplates(db.Templates())
	n := New(NewTemplateStore(db.Templates(), time.Minute), nil, nil, db.Logs(), db.Settings(),
		defaultConfig(), zerolog.Nop())

	course := testutil.NewCourse()
	reg := &model.Registration{ID: "r", Participant: testutil.Participant(), NumParticipants: 1}
	require.False(t, n.NotifyRegistration(context.Background(), reg, course, allocation.Result{Confirmed: 1}))

	for _, l := range db.Logs().All() {
		if l.Channel == model.ChannelSMS {
			assert.Equal(t, model.LogStatusDisabled, l.Status)
		} else {
			assert.Equal(t, model.LogStatusFailed, l.Status)
		}
	}
}

func TestNotifyRegistration_TransportFailureIsAbsorbed(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.sms.Err = testutil.ErrTransport

	delivered := f.notifier.NotifyRegistration(context.Background(), f.reg, f.course, allocation.Result{Confirmed: 2})
	require.True(t, delivered, "email delivery still counts")

	failed := 0
	for _, l := range f.db.Logs().All() {
		if l.Status == model.LogStatusFailed {
			failed++
			assert.Contains(t, l.ErrorMessage, "transport unavailable")
			assert.Equal(t, model.ChannelSMS, l.Channel)
		}
	}
	assert.Equal(t, 2, failed)
	assert.Len(t, f.email.Sent(), 2)
}

func TestNotifyRegistration_AllTransportsFail(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.sms.Err = testutil.ErrTransport
	f.email.Err = testutil.ErrTransport

	require.False(t, f.notifier.NotifyRegistration(context.Background(), f.reg, f.course, allocation.Result{Confirmed: 2}))
	require.Len(t, f.db.Logs().All(), 4)
}

func TestSendSMS_PanicIsRecovered(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.sms.Panic = "nil map"

	ok := f.notifier.SendSMS(context.Background(), Message{
		Trigger:   model.TriggerReminder1Day,
		Recipient: "+41791234567",
		Body:      "see you tomorrow",
	})
	require.False(t, ok)

	logs := f.db.Logs().All()
	require.Len(t, logs, 1)
	assert.Equal(t, model.LogStatusFailed, logs[0].Status)
	assert.Contains(t, logs[0].ErrorMessage, "transport panic")
}

func TestNotifyRegistration_MissingTemplatesSkipChannel(t *testing.T) {
	db := testutil.NewDB()
	db.Templates().Put(model.ChannelEmail, model.TriggerRegistrationConfirmed, "Confirmed", "Hi {first_name}")
	sms := &testutil.SMSSender{}
	email := &testutil.EmailSender{}
	n := New(NewTemplateStore(db.Templates(), time.Minute), sms, email, db.Logs(), db.Settings(),
		defaultConfig(), zerolog.Nop())

	course := testutil.NewCourse()
	reg := &model.Registration{ID: "r", Participant: testutil.Participant(), NumParticipants: 1}
	require.True(t, n.NotifyRegistration(context.Background(), reg, course, allocation.Result{Confirmed: 1}))

	require.Empty(t, sms.Sent())
	require.Len(t, email.Sent(), 1)
	require.Len(t, db.Logs().All(), 1)
}

func TestNotifyRegistration_InactiveTemplateIsMissing(t *testing.T) {
	f := newFixture(t, defaultConfig())
	require.NoError(t, f.db.Templates().Upsert(context.Background(), &model.MessageTemplate{
		Channel: model.ChannelSMS, Trigger: model.TriggerAdminNewRegistration, Body: "x", IsActive: false,
	}))

	f.notifier.NotifyRegistration(context.Background(), f.reg, f.course, allocation.Result{Confirmed: 2})
	for _, s := range f.sms.Sent() {
		assert.NotEqual(t, "+41790000000", s.To)
	}
}

func TestNotifyRegistration_LogWriteFailureDoesNotPanic(t *testing.T) {
	db := testutil.NewDB()
	testutil.SeedTemplates(db.Templates())
	logs := db.Logs()
	logs.Err = errors.New("disk full")
	sms := &testutil.SMSSender{}
	n := New(NewTemplateStore(db.Templates(), time.Minute), sms, &testutil.EmailSender{}, logs, db.Settings(),
		defaultConfig(), zerolog.Nop())

	reg := &model.Registration{ID: "r", Participant: testutil.Participant(), NumParticipants: 1}
	require.True(t, n.NotifyRegistration(context.Background(), reg, testutil.NewCourse(), allocation.Result{Confirmed: 1}))
	require.Len(t, sms.Sent(), 2)
}

func TestNotifyPromoted(t *testing.T) {
	f := newFixture(t, defaultConfig())

	require.True(t, f.notifier.NotifyPromoted(context.Background(), f.reg, f.course))

	sms := f.sms.Sent()
	require.Len(t, sms, 1, "no admin message on promotion")
	assert.Equal(t, "promoted_from_waitlist Anna Watercolour Basics 2", sms[0].Body)
	require.Len(t, f.email.Sent(), 1)
	require.Len(t, f.db.Logs().ByTrigger(model.TriggerPromotedFromWaitlist), 2)
}

func TestSMSEnabled(t *testing.T) {
	tests := []struct {
		name    string
		config  bool
		setting string
		want    bool
	}{
		{name: "no setting defaults on", config: true, want: true},
		{name: "setting true", config: true, setting: "true", want: true},
		{name: "setting false", config: true, setting: "false", want: false},
		{name: "config off wins", config: false, setting: "true", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{SMSEnabled: tt.config})
			if tt.setting != "" {
				require.NoError(t, f.db.Settings().Set(context.Background(), repository.SettingSMSEnabled, tt.setting))
			}
			require.Equal(t, tt.want, f.notifier.SMSEnabled(context.Background()))
		})
	}
}

func TestSend_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	f := newFixture(t, defaultConfig(), WithTracer(tp.Tracer("test")))

	f.notifier.Send(context.Background(), Message{Channel: model.ChannelEmail, Trigger: model.TriggerReminder1Day, Recipient: "a@b.ch"})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "notification.send", spans[0].Name())
}
