package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/messaging"
)

// ErrTransport is the error fake senders return when told to fail.
var ErrTransport = errors.New("transport unavailable")

// SentSMS is one message captured by SMSSender.
type SentSMS struct {
	To   string
	Body string
}

// SMSSender records text messages instead of sending them.
type SMSSender struct {
	mu   sync.Mutex
	sent []SentSMS

	// Err, when set, fails every send.
	Err error
	// Panic, when set, makes every send panic with this value.
	Panic any
}

// SendSMS implements messaging.SMSSender.
func (s *SMSSender) SendSMS(_ context.Context, to, body string) (string, error) {
	if s.Panic != nil {
		panic(s.Panic)
	}
	if s.Err != nil {
		return "", s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, SentSMS{To: to, Body: body})
	return fmt.Sprintf("SM%04d", len(s.sent)), nil
}

// Sent returns the captured messages.
func (s *SMSSender) Sent() []SentSMS {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentSMS(nil), s.sent...)
}

// EmailSender records emails instead of sending them.
type EmailSender struct {
	mu   sync.Mutex
	sent []messaging.Email

	// Err, when set, fails every send.
	Err error
}

// SendEmail implements messaging.EmailSender.
func (s *EmailSender) SendEmail(_ context.Context, e messaging.Email) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, e)
	return nil
}

// Sent returns the captured emails.
func (s *EmailSender) Sent() []messaging.Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]messaging.Email(nil), s.sent...)
}
