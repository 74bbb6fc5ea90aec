package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/stampcard/internal/model"
)

// configurationID keys the single configuration record.
const configurationID = "event"

type ConfigurationStore struct {
	db *sql.DB
}

func NewConfigurationStore(db *sql.DB) *ConfigurationStore {
	return &ConfigurationStore{db: db}
}

// Get returns the stored configuration, or ErrNotFound when none was saved.
func (s *ConfigurationStore) Get(ctx context.Context) (*model.Configuration, error) {
	var c model.Configuration
	err := s.db.QueryRowContext(ctx,
		`SELECT event_name, event_description, updated_at FROM configuration WHERE id = ?`, configurationID,
	).Scan(&c.EventName, &c.EventDescription, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("configuration: %w", ErrNotFound)
	}
	if err != nil {
		return nil, dbError("get configuration", err)
	}
	return &c, nil
}

// Upsert creates the record if missing, otherwise overwrites it.
func (s *ConfigurationStore) Upsert(ctx context.Context, eventName, eventDescription string) (*model.Configuration, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO configuration (id, event_name, event_description, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET event_name = excluded.event_name,
		   event_description = excluded.event_description, updated_at = excluded.updated_at`,
		configurationID, eventName, eventDescription, now,
	)
	if err != nil {
		return nil, dbError("upsert configuration", err)
	}
	return &model.Configuration{EventName: eventName, EventDescription: eventDescription, UpdatedAt: now}, nil
}
