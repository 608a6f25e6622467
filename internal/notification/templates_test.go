package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/repository"
)

type countingSource struct {
	calls int
	tpl   *model.MessageTemplate
	err   error
}

func (s *countingSource) GetActive(_ context.Context, _ model.Channel, _ model.Trigger) (*model.MessageTemplate, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.tpl == nil {
		return nil, repository.ErrNotFound
	}
	return s.tpl, nil
}

func TestTemplateStore_CachesHits(t *testing.T) {
	src := &countingSource{tpl: &model.MessageTemplate{Body: "hi {first_name}"}}
	store := NewTemplateStore(src, time.Minute)

	for i := 0; i < 3; i++ {
		tpl, err := store.Lookup(context.Background(), model.ChannelSMS, model.TriggerReminder1Day)
		require.NoError(t, err)
		require.Equal(t, "hi {first_name}", tpl.Body)
	}
	require.Equal(t, 1, src.calls)
}

func TestTemplateStore_CachesMisses(t *testing.T) {
	src := &countingSource{}
	store := NewTemplateStore(src, time.Minute)

	tpl, err := store.Lookup(context.Background(), model.ChannelEmail, model.TriggerReminder1Day)
	require.NoError(t, err)
	require.Nil(t, tpl)

	tpl, err = store.Lookup(context.Background(), model.ChannelEmail, model.TriggerReminder1Day)
	require.NoError(t, err)
	require.Nil(t, tpl)
	require.Equal(t, 1, src.calls)
}

func TestTemplateStore_Invalidate(t *testing.T) {
	src := &countingSource{tpl: &model.MessageTemplate{Body: "old"}}
	store := NewTemplateStore(src, time.Minute)

	_, err := store.Lookup(context.Background(), model.ChannelSMS, model.TriggerRegistrationConfirmed)
	require.NoError(t, err)

	src.tpl = &model.MessageTemplate{Body: "new"}
	store.Invalidate(model.ChannelSMS, model.TriggerRegistrationConfirmed)

	tpl, err := store.Lookup(context.Background(), model.ChannelSMS, model.TriggerRegistrationConfirmed)
	require.NoError(t, err)
	require.Equal(t, "new", tpl.Body)
	require.Equal(t, 2, src.calls)
}

func TestTemplateStore_KeysByChannelAndTrigger(t *testing.T) {
	src := &countingSource{tpl: &model.MessageTemplate{Body: "x"}}
	store := NewTemplateStore(src, time.Minute)

	_, _ = store.Lookup(context.Background(), model.ChannelSMS, model.TriggerRegistrationConfirmed)
	_, _ = store.Lookup(context.Background(), model.ChannelEmail, model.TriggerRegistrationConfirmed)
	_, _ = store.Lookup(context.Background(), model.ChannelSMS, model.TriggerRegistrationWaitlist)
	require.Equal(t, 3, src.calls)

	store.Flush()
	_, _ = store.Lookup(context.Background(), model.ChannelSMS, model.TriggerRegistrationConfirmed)
	require.Equal(t, 4, src.calls)
}

func TestTemplateStore_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("connection reset")
	src := &countingSource{err: boom}
	store := NewTemplateStore(src, time.Minute)

	_, err := store.Lookup(context.Background(), model.ChannelSMS, model.TriggerReminder1Day)
	require.ErrorIs(t, err, boom)

	src.err = nil
	src.tpl = &model.MessageTemplate{Body: "ok"}
	tpl, err := store.Lookup(context.Background(), model.ChannelSMS, model.TriggerReminder1Day)
	require.NoError(t, err)
	require.Equal(t, "ok", tpl.Body)
}

func TestTemplateStore_ZeroTTLReadsThrough(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Second} {
		src := &countingSource{tpl: &model.MessageTemplate{Body: "v1"}}
		store := NewTemplateStore(src, ttl)

		for i := 0; i < 3; i++ {
			_, err := store.Lookup(context.Background(), model.ChannelSMS, model.TriggerReminder1Day)
			require.NoError(t, err)
		}
		require.Equal(t, 3, src.calls, "ttl %s must not cache", ttl)

		src.tpl = &model.MessageTemplate{Body: "v2"}
		tpl, err := store.Lookup(context.Background(), model.ChannelSMS, model.TriggerReminder1Day)
		require.NoError(t, err)
		require.Equal(t, "v2", tpl.Body)

		store.Invalidate(model.ChannelSMS, model.TriggerReminder1Day)
		store.Flush()
	}
}
