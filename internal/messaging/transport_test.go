package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeTwilio struct {
	params *twilioApi.CreateMessageParams
	sid    string
	err    error
}

func (f *fakeTwilio) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &twilioApi.ApiV2010Message{Sid: &f.sid}, nil
}

func TestTwilioSender_SendSMS(t *testing.T) {
	api := &fakeTwilio{sid: "SM123"}
	s := &TwilioSender{api: api, from: "+41000000000"}

	sid, err := s.SendSMS(context.Background(), "079 123 45 67", "hello")
	require.NoError(t, err)
	require.Equal(t, "SM123", sid)
	require.Equal(t, "+41791234567", *api.params.To)
	require.Equal(t, "+41000000000", *api.params.From)
	require.Equal(t, "hello", *api.params.Body)
}

func TestTwilioSender_ProviderError(t *testing.T) {
	s := &TwilioSender{api: &fakeTwilio{err: errors.New("invalid number")}, from: "+41000000000"}

	_, err := s.SendSMS(context.Background(), "079", "hello")
	require.ErrorContains(t, err, "invalid number")
}

func TestTwilioSender_CancelledContext(t *testing.T) {
	api := &fakeTwilio{sid: "SM123"}
	s := &TwilioSender{api: api, from: "+41000000000"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.SendSMS(ctx, "079", "hello")
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, api.params, "provider must not be called")
}

func TestNewTwilioSender_RequiresCredentials(t *testing.T) {
	_, err := NewTwilioSender("", "token", "+41000000000")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestSMTPSender_Compose(t *testing.T) {
	s := NewSMTPSender("localhost", 25, "", "", false, "noreply@example.ch", "info@example.ch")

	m := s.compose(Email{To: "anna@example.ch", Subject: "Hi", Body: "body"})
	require.Equal(t, []string{"noreply@example.ch"}, m.GetHeader("From"))
	require.Equal(t, []string{"anna@example.ch"}, m.GetHeader("To"))
	require.Equal(t, []string{"info@example.ch"}, m.GetHeader("Reply-To"))

	m = s.compose(Email{To: "admin@example.ch", Subject: "New", Body: "body", ReplyTo: "anna@example.ch"})
	require.Equal(t, []string{"anna@example.ch"}, m.GetHeader("Reply-To"))
}

func TestLogEmailSender(t *testing.T) {
	s := NewLogEmailSender(zerolog.Nop())
	require.NoError(t, s.SendEmail(context.Background(), Email{To: "a@example.ch"}))
}
