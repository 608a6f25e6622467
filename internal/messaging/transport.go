package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"gopkg.in/gomail.v2"
)

// ErrNotConfigured is returned when a transport lacks credentials.
var ErrNotConfigured = errors.New("transport not configured")

// SMSSender delivers a text message and returns the provider message id.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// Email is one outbound email.
type Email struct {
	To      string
	Subject string
	Body    string
	ReplyTo string
}

// EmailSender delivers an email.
type EmailSender interface {
	SendEmail(ctx context.Context, e Email) error
}

// twilioMessages is the part of the Twilio REST client we use.
type twilioMessages interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends SMS through the Twilio REST API.
type TwilioSender struct {
	api  twilioMessages
	from string
}

// NewTwilioSender builds a sender from account credentials.
func NewTwilioSender(accountSID, authToken, from string) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("twilio: %w", ErrNotConfigured)
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api, from: from}, nil
}

// SendSMS normalizes the recipient to E.164 and sends body.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(NormalizePhone(to))
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

// SMTPSender sends plain-text email over SMTP.
type SMTPSender struct {
	dialer  *gomail.Dialer
	from    string
	replyTo string
}

// NewSMTPSender builds an SMTP sender. replyTo is used when a message does not
// set its own.
func NewSMTPSender(host string, port int, username, password string, ssl bool, from, replyTo string) *SMTPSender {
	d := gomail.NewDialer(host, port, username, password)
	d.SSL = ssl
	return &SMTPSender{dialer: d, from: from, replyTo: replyTo}
}

// SendEmail dials the server and sends one message.
func (s *SMTPSender) SendEmail(ctx context.Context, e Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(s.compose(e)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", e.To, err)
	}
	return nil
}

func (s *SMTPSender) compose(e Email) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	replyTo := e.ReplyTo
	if replyTo == "" {
		replyTo = s.replyTo
	}
	if replyTo != "" {
		m.SetHeader("Reply-To", replyTo)
	}
	m.SetBody("text/plain", e.Body)
	return m
}

// LogEmailSender only logs outgoing email. It stands in for SMTP when sending
// is suppressed.
type LogEmailSender struct {
	logger zerolog.Logger
}

// NewLogEmailSender constructs a LogEmailSender.
func NewLogEmailSender(logger zerolog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

// SendEmail logs e and reports success.
func (s *LogEmailSender) SendEmail(_ context.Context, e Email) error {
	s.logger.Info().Str("to", e.To).Str("subject", e.Subject).Msg("email suppressed")
	return nil
}
