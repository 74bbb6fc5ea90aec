// Package eventconfig serves the event name and description shown on every
// page. Missing configuration reads as the defaults.
package eventconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/stampcard/internal/model"
	"github.com/dukerupert/stampcard/internal/store"
	"github.com/jonboulle/clockwork"
)

const cacheTTL = 30 * time.Second

type configurationStore interface {
	Get(ctx context.Context) (*model.Configuration, error)
	Upsert(ctx context.Context, eventName, eventDescription string) (*model.Configuration, error)
}

type Service struct {
	store  configurationStore
	clock  clockwork.Clock
	logger *slog.Logger

	mu      sync.Mutex
	cached  *model.Configuration
	fetched time.Time
}

func New(s configurationStore, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: s, clock: clock, logger: logger}
}

func (s *Service) Get(ctx context.Context) (model.Configuration, error) {
	now := s.clock.Now()
	s.mu.Lock()
	if s.cached != nil && now.Sub(s.fetched) < cacheTTL {
		c := *s.cached
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	c, err := s.store.Get(ctx)
	if errors.Is(err, store.ErrNotFound) {
		def := model.DefaultConfiguration()
		c, err = &def, nil
	}
	if err != nil {
		return model.Configuration{}, err
	}

	s.mu.Lock()
	s.cached = c
	s.fetched = now
	s.mu.Unlock()
	return *c, nil
}

// Update upserts the record. Blank fields fall back to the defaults.
func (s *Service) Update(ctx context.Context, eventName, eventDescription string) (model.Configuration, error) {
	eventName = strings.TrimSpace(eventName)
	eventDescription = strings.TrimSpace(eventDescription)
	if eventName == "" {
		eventName = model.DefaultEventName
	}
	if eventDescription == "" {
		eventDescription = model.DefaultEventDescription
	}
	if len(eventName) > 200 {
		return model.Configuration{}, fmt.Errorf("update configuration: event name too long: %w", store.ErrMalformed)
	}

	c, err := s.store.Upsert(ctx, eventName, eventDescription)
	if err != nil {
		return model.Configuration{}, err
	}

	s.mu.Lock()
	s.cached = c
	s.fetched = s.clock.Now()
	s.mu.Unlock()

	s.logger.Info("event configuration updated", "event_name", eventName)
	return *c, nil
}
