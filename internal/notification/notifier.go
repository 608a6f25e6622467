// Package notification dispatches registration messages over SMS and email and
// records every attempt in the message log.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/allocation"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/messaging"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/repository"
)

const (
	errSMSDisabled          = "SMS not enabled"
	errSMSNotConfigured     = "SMS transport not configured"
	errEmailNotConfigured   = "email transport not configured"
	errTransportPanicPrefix = "transport panic: "
)

// Templates looks up the active template for (channel, trigger). A nil
// template with a nil error means there is none.
type Templates interface {
	Lookup(ctx context.Context, channel model.Channel, trigger model.Trigger) (*model.MessageTemplate, error)
}

// LogWriter appends message log rows.
type LogWriter interface {
	Create(ctx context.Context, l *model.MessageLog) error
}

// SettingsReader reads runtime site settings.
type SettingsReader interface {
	Get(ctx context.Context, key string) (string, error)
}

// Config holds the static notification settings.
type Config struct {
	// SMSEnabled is the deployment switch. SMS is sent only when this and the
	// runtime sms_enabled setting are both on.
	SMSEnabled bool
	AdminPhone string
	AdminEmail string
}

// Message is one rendered outbound message.
type Message struct {
	Channel        model.Channel
	Trigger        model.Trigger
	Recipient      string
	Subject        string
	Body           string
	ReplyTo        string
	RegistrationID *string
	CourseID       *string
}

// Notifier renders templates and sends them. Transport errors never escape:
// they end up in the message log and the structured log.
type Notifier struct {
	templates Templates
	sms       messaging.SMSSender
	email     messaging.EmailSender
	logs      LogWriter
	settings  SettingsReader
	cfg       Config
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithTracer sets the tracer used for send spans.
func WithTracer(t trace.Tracer) Option {
	return func(n *Notifier) {
		if t != nil {
			n.tracer = t
		}
	}
}

// New constructs a Notifier. sms and email may be nil when the transport is not
// configured; attempts are then logged as disabled or failed.
func New(templates Templates, sms messaging.SMSSender, email messaging.EmailSender,
	logs LogWriter, settings SettingsReader, cfg Config, logger zerolog.Logger, opts ...Option,
) *Notifier {
	n := &Notifier{
		templates: templates,
		sms:       sms,
		email:     email,
		logs:      logs,
		settings:  settings,
		cfg:       cfg,
		tracer:    noop.NewTracerProvider().Tracer("notification"),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SMSEnabled reports whether SMS may be sent right now. A missing runtime
// setting counts as enabled.
func (n *Notifier) SMSEnabled(ctx context.Context) bool {
	if !n.cfg.SMSEnabled {
		return false
	}
	value, err := n.settings.Get(ctx, repository.SettingSMSEnabled)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			n.logger.Warn().Err(err).Msg("read sms setting, assuming enabled")
		}
		return true
	}
	return ParseToggle(value)
}

// ParseToggle interprets a stored boolean setting.
func ParseToggle(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// Send dispatches msg over its channel and reports whether it was delivered.
func (n *Notifier) Send(ctx context.Context, msg Message) bool {
	if msg.Channel == model.ChannelEmail {
		return n.SendEmail(ctx, msg)
	}
	return n.SendSMS(ctx, msg)
}

// SendSMS sends msg as a text message. Every call writes one log row.
func (n *Notifier) SendSMS(ctx context.Context, msg Message) bool {
	msg.Channel = model.ChannelSMS
	ctx, span := n.startSpan(ctx, msg)
	defer span.End()

	entry := newLog(msg)
	switch {
	case !n.SMSEnabled(ctx):
		entry.Status = model.LogStatusDisabled
		entry.ErrorMessage = errSMSDisabled
		n.logger.Info().Str("trigger", string(msg.Trigger)).Msg("sms disabled, not sent")
	case n.sms == nil:
		entry.Status = model.LogStatusDisabled
		entry.ErrorMessage = errSMSNotConfigured
		n.logger.Warn().Str("trigger", string(msg.Trigger)).Msg("sms transport not configured")
	default:
		sid, err := n.deliverSMS(ctx, msg)
		if err != nil {
			entry.Status = model.LogStatusFailed
			entry.ErrorMessage = err.Error()
			n.logger.Error().Err(err).Str("trigger", string(msg.Trigger)).Msg("send sms")
		} else {
			entry.Status = model.LogStatusSent
			entry.Recipient = messaging.NormalizePhone(msg.Recipient)
			entry.ExternalID = sid
			n.logger.Info().Str("sid", sid).Str("trigger", string(msg.Trigger)).Msg("sms sent")
		}
	}

	n.record(ctx, span, entry)
	return entry.Status == model.LogStatusSent
}

// SendEmail sends msg as an email. Every call writes one log row.
func (n *Notifier) SendEmail(ctx context.Context, msg Message) bool {
	msg.Channel = model.ChannelEmail
	ctx, span := n.startSpan(ctx, msg)
	defer span.End()

	entry := newLog(msg)
	if n.email == nil {
		entry.Status = model.LogStatusFailed
		entry.ErrorMessage = errEmailNotConfigured
	} else if err := n.deliverEmail(ctx, msg); err != nil {
		entry.Status = model.LogStatusFailed
		entry.ErrorMessage = err.Error()
		n.logger.Error().Err(err).Str("trigger", string(msg.Trigger)).Msg("send email")
	} else {
		entry.Status = model.LogStatusSent
		n.logger.Info().Str("to", msg.Recipient).Str("trigger", string(msg.Trigger)).Msg("email sent")
	}

	n.record(ctx, span, entry)
	return entry.Status == model.LogStatusSent
}

// NotifyRegistration sends the participant messages for a fresh booking and
// the admin notification. It reports whether any participant-facing message
// was delivered.
func (n *Notifier) NotifyRegistration(ctx context.Context, reg *model.Registration, course *model.Course, res allocation.Result) bool {
	trigger := res.Trigger()
	vars := messaging.BuildContext(reg, course, map[string]string{
		messaging.KeyNumRegistered:   strconv.Itoa(res.Confirmed),
		messaging.KeyNumWaitlist:     strconv.Itoa(res.Waitlisted),
		messaging.KeyNumParticipants: strconv.Itoa(res.Total()),
	})

	delivered := n.notifyParticipant(ctx, reg, course, trigger, vars)
	n.notifyAdmin(ctx, reg, course, vars)
	return delivered
}

// NotifyPromoted tells the participant that reg now holds confirmed seats.
func (n *Notifier) NotifyPromoted(ctx context.Context, reg *model.Registration, course *model.Course) bool {
	vars := messaging.BuildContext(reg, course, nil)
	return n.notifyParticipant(ctx, reg, course, model.TriggerPromotedFromWaitlist, vars)
}

func (n *Notifier) notifyParticipant(ctx context.Context, reg *model.Registration, course *model.Course,
	trigger model.Trigger, vars map[string]string,
) bool {
	delivered := false

	if tpl := n.lookup(ctx, model.ChannelSMS, trigger); tpl != nil {
		msg := n.message(tpl, reg, course, reg.Phone, vars)
		if n.SendSMS(ctx, msg) {
			delivered = true
		}
	}

	if reg.Email != "" {
		if tpl := n.lookup(ctx, model.ChannelEmail, trigger); tpl != nil {
			msg := n.message(tpl, reg, course, reg.Email, vars)
			if n.SendEmail(ctx, msg) {
				delivered = true
			}
		}
	}
	return delivered
}

func (n *Notifier) notifyAdmin(ctx context.Context, reg *model.Registration, course *model.Course, vars map[string]string) {
	trigger := model.TriggerAdminNewRegistration

	if n.cfg.AdminPhone != "" {
		if tpl := n.lookup(ctx, model.ChannelSMS, trigger); tpl != nil {
			n.SendSMS(ctx, n.message(tpl, reg, course, n.cfg.AdminPhone, vars))
		}
	} else {
		n.logger.Warn().Msg("admin phone not configured, skipping admin sms")
	}

	if n.cfg.AdminEmail != "" {
		if tpl := n.lookup(ctx, model.ChannelEmail, trigger); tpl != nil {
			msg := n.message(tpl, reg, course, n.cfg.AdminEmail, vars)
			msg.ReplyTo = reg.Email
			n.SendEmail(ctx, msg)
		}
	}
}

func (n *Notifier) lookup(ctx context.Context, channel model.Channel, trigger model.Trigger) *model.MessageTemplate {
	tpl, err := n.templates.Lookup(ctx, channel, trigger)
	if err != nil {
		n.logger.Error().Err(err).Str("channel", string(channel)).Str("trigger", string(trigger)).Msg("lookup template")
		return nil
	}
	if tpl == nil {
		n.logger.Warn().Str("channel", string(channel)).Str("trigger", string(trigger)).Msg("no active template")
	}
	return tpl
}

func (n *Notifier) message(tpl *model.MessageTemplate, reg *model.Registration, course *model.Course,
	recipient string, vars map[string]string,
) Message {
	return Message{
		Channel:        tpl.Channel,
		Trigger:        tpl.Trigger,
		Recipient:      recipient,
		Subject:        messaging.RenderSubject(tpl, vars),
		Body:           messaging.RenderBody(tpl, vars),
		RegistrationID: stringPtr(reg.ID),
		CourseID:       stringPtr(course.ID),
	}
}

// deliverSMS calls the transport, converting a panic into an error.
func (n *Notifier) deliverSMS(ctx context.Context, msg Message) (sid string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s%v", errTransportPanicPrefix, r)
		}
	}()
	return n.sms.SendSMS(ctx, msg.Recipient, msg.Body)
}

func (n *Notifier) deliverEmail(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s%v", errTransportPanicPrefix, r)
		}
	}()
	return n.email.SendEmail(ctx, messaging.Email{
		To:      msg.Recipient,
		Subject: msg.Subject,
		Body:    msg.Body,
		ReplyTo: msg.ReplyTo,
	})
}

func (n *Notifier) startSpan(ctx context.Context, msg Message) (context.Context, trace.Span) {
	return n.tracer.Start(ctx, "notification.send",
		trace.WithAttributes(
			attribute.String("message.channel", string(msg.Channel)),
			attribute.String("message.trigger", string(msg.Trigger)),
		),
	)
}

func (n *Notifier) record(ctx context.Context, span trace.Span, entry *model.MessageLog) {
	span.SetAttributes(attribute.String("message.status", string(entry.Status)))
	if entry.Status == model.LogStatusFailed {
		span.SetStatus(codes.Error, entry.ErrorMessage)
	}
	if err := n.logs.Create(ctx, entry); err != nil {
		n.logger.Error().Err(err).Str("trigger", string(entry.Trigger)).Msg("write message log")
	}
}

func newLog(msg Message) *model.MessageLog {
	return &model.MessageLog{
		Channel:        msg.Channel,
		Trigger:        msg.Trigger,
		Recipient:      msg.Recipient,
		Subject:        msg.Subject,
		Body:           msg.Body,
		RegistrationID: msg.RegistrationID,
		CourseID:       msg.CourseID,
	}
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
