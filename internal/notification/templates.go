package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/repository"
)

const (
	DefaultTemplateTTL     = 5 * time.Minute
	defaultCleanupInterval = 10 * time.Minute
)

// TemplateSource loads active templates from storage.
type TemplateSource interface {
	GetActive(ctx context.Context, channel model.Channel, trigger model.Trigger) (*model.MessageTemplate, error)
}

// cachedTemplate wraps lookups so that "no active template" is cached too.
type cachedTemplate struct {
	tpl *model.MessageTemplate
}

// TemplateStore is a read-through cache over TemplateSource keyed by
// (channel, trigger). A nil cache means every lookup goes to the source.
type TemplateStore struct {
	src   TemplateSource
	cache *gocache.Cache
}

// NewTemplateStore constructs a TemplateStore. A ttl of zero or less disables
// caching.
func NewTemplateStore(src TemplateSource, ttl time.Duration) *TemplateStore {
	s := &TemplateStore{src: src}
	if ttl > 0 {
		s.cache = gocache.New(ttl, defaultCleanupInterval)
	}
	return s
}

// Lookup returns the active template for (channel, trigger), or nil when it is
// missing or inactive.
func (s *TemplateStore) Lookup(ctx context.Context, channel model.Channel, trigger model.Trigger) (*model.MessageTemplate, error) {
	key := cacheKey(channel, trigger)
	if s.cache != nil {
		if v, found := s.cache.Get(key); found {
			if c, ok := v.(cachedTemplate); ok {
				return c.tpl, nil
			}
		}
	}

	tpl, err := s.src.GetActive(ctx, channel, trigger)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		tpl = nil
	case err != nil:
		return nil, fmt.Errorf("lookup template %s/%s: %w", channel, trigger, err)
	}

	if s.cache != nil {
		s.cache.SetDefault(key, cachedTemplate{tpl: tpl})
	}
	return tpl, nil
}

// Invalidate drops the cached entry for (channel, trigger).
func (s *TemplateStore) Invalidate(channel model.Channel, trigger model.Trigger) {
	if s.cache != nil {
		s.cache.Delete(cacheKey(channel, trigger))
	}
}

// Flush drops every cached entry.
func (s *TemplateStore) Flush() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

func cacheKey(channel model.Channel, trigger model.Trigger) string {
	return string(channel) + ":" + string(trigger)
}
