package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/notification"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/repository"
)

const (
	DefaultLogLimit = 50
	MaxLogLimit     = 500
)

// TemplateStore persists message templates.
type TemplateStore interface {
	List(ctx context.Context) ([]model.MessageTemplate, error)
	Upsert(ctx context.Context, tpl *model.MessageTemplate) error
	InsertIfMissing(ctx context.Context, tpl *model.MessageTemplate) (bool, error)
}

// TemplateCache is the lookup cache the notifier reads through.
type TemplateCache interface {
	Invalidate(channel model.Channel, trigger model.Trigger)
}

// MessageLogReader reads the message log.
type MessageLogReader interface {
	ListRecent(ctx context.Context, limit int) ([]model.MessageLog, error)
}

// SettingsStore reads and writes site settings.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Sweeper delivers due scheduled messages.
type Sweeper interface {
	ProcessDue(ctx context.Context) (int, error)
}

// SMSStatus describes whether SMS goes out. Enabled is the runtime toggle,
// Configured the deployment switch; SMS is sent only when both are on.
type SMSStatus struct {
	Enabled    bool `json:"enabled"`
	Configured bool `json:"configured"`
	Active     bool `json:"active"`
}

// MessagingService manages templates, the message log, the SMS toggle and
// scheduled message sweeps.
type MessagingService struct {
	templates     TemplateStore
	cache         TemplateCache
	logs          MessageLogReader
	settings      SettingsStore
	sweeper       Sweeper
	smsConfigured bool
	validate      *validator.Validate
	logger        zerolog.Logger
}

// NewMessagingService constructs a MessagingService. smsConfigured is the
// deployment-level SMS switch.
func NewMessagingService(
	templates TemplateStore,
	cache TemplateCache,
	logs MessageLogReader,
	settings SettingsStore,
	sweeper Sweeper,
	smsConfigured bool,
	validate *validator.Validate,
	logger zerolog.Logger,
) *MessagingService {
	return &MessagingService{
		templates:     templates,
		cache:         cache,
		logs:          logs,
		settings:      settings,
		sweeper:       sweeper,
		smsConfigured: smsConfigured,
		validate:      validate,
		logger:        logger,
	}
}

// ListTemplates returns every template, active or not.
func (s *MessagingService) ListTemplates(ctx context.Context) ([]model.MessageTemplate, error) {
	return s.templates.List(ctx)
}

// UpdateTemplate replaces the template for (channel, trigger). SMS templates
// never carry a subject. A nil IsActive keeps the template active.
func (s *MessagingService) UpdateTemplate(ctx context.Context, channel model.Channel, trigger model.Trigger, req model.UpdateTemplateRequest) (*model.MessageTemplate, error) {
	if !channel.Valid() {
		return nil, fieldError("channel", "is not a known channel")
	}
	if !trigger.Valid() {
		return nil, fieldError("trigger", "is not a known trigger")
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if err := s.validate.Struct(&req); err != nil {
		return nil, validationError(err)
	}

	tpl := &model.MessageTemplate{
		Channel:  channel,
		Trigger:  trigger,
		Subject:  req.Subject,
		Body:     req.Body,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if channel == model.ChannelSMS {
		tpl.Subject = ""
	}
	if err := s.templates.Upsert(ctx, tpl); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	s.cache.Invalidate(channel, trigger)

	s.logger.Info().Str("channel", string(channel)).Str("trigger", string(trigger)).Bool("active", tpl.IsActive).Msg("template updated")
	return tpl, nil
}

// InitDefaultTemplates stores every default template that does not exist yet
// and returns how many were added. Edited templates are never overwritten.
func (s *MessagingService) InitDefaultTemplates(ctx context.Context) (int, error) {
	added := 0
	for _, def := range DefaultTemplates {
		tpl := def
		tpl.IsActive = true
		inserted, err := s.templates.InsertIfMissing(ctx, &tpl)
		if err != nil {
			return added, fmt.Errorf("seed template %s/%s: %w", tpl.Channel, tpl.Trigger, err)
		}
		if inserted {
			added++
			s.cache.Invalidate(tpl.Channel, tpl.Trigger)
		}
	}
	s.logger.Info().Int("added", added).Int("total", len(DefaultTemplates)).Msg("default templates initialised")
	return added, nil
}

// ListMessages returns the most recent message log entries. limit is clamped
// to [1, MaxLogLimit]; zero or negative selects DefaultLogLimit.
func (s *MessagingService) ListMessages(ctx context.Context, limit int) ([]model.MessageLog, error) {
	switch {
	case limit <= 0:
		limit = DefaultLogLimit
	case limit > MaxLogLimit:
		limit = MaxLogLimit
	}
	return s.logs.ListRecent(ctx, limit)
}

// SMSStatus reports the runtime toggle and the deployment switch.
func (s *MessagingService) SMSStatus(ctx context.Context) (*SMSStatus, error) {
	enabled := true
	value, err := s.settings.Get(ctx, repository.SettingSMSEnabled)
	switch {
	case err == nil:
		enabled = notification.ParseToggle(value)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("get sms setting: %w", err)
	}
	return &SMSStatus{
		Enabled:    enabled,
		Configured: s.smsConfigured,
		Active:     enabled && s.smsConfigured,
	}, nil
}

// SetSMSEnabled stores the runtime SMS toggle.
func (s *MessagingService) SetSMSEnabled(ctx context.Context, enabled bool) (*SMSStatus, error) {
	if err := s.settings.Set(ctx, repository.SettingSMSEnabled, strconv.FormatBool(enabled)); err != nil {
		return nil, fmt.Errorf("set sms setting: %w", err)
	}
	s.logger.Info().Bool("enabled", enabled).Msg("sms toggle changed")
	return &SMSStatus{
		Enabled:    enabled,
		Configured: s.smsConfigured,
		Active:     enabled && s.smsConfigured,
	}, nil
}

// ProcessScheduled runs one sweep over due scheduled messages.
func (s *MessagingService) ProcessScheduled(ctx context.Context) (int, error) {
	return s.sweeper.ProcessDue(ctx)
}
