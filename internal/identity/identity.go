// Package identity resolves participants by their (staff id, last name)
// business key or by id, and registers new participants.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/stampcard/internal/model"
	"github.com/dukerupert/stampcard/internal/store"
)

type participantStore interface {
	Create(ctx context.Context, staffID, lastName string) (*model.Participant, error)
	GetByID(ctx context.Context, id string) (*model.Participant, error)
	GetByIdentity(ctx context.Context, staffID, lastName string) (*model.Participant, error)
}

type Resolver struct {
	participants participantStore
	logger       *slog.Logger
}

func NewResolver(ps participantStore, logger *slog.Logger) *Resolver {
	return &Resolver{participants: ps, logger: logger}
}

// Resolve matches both fields exactly after case folding. A miss is
// store.ErrNotFound; driver faults carry store.ErrTransient.
func (r *Resolver) Resolve(ctx context.Context, staffID, lastName string) (*model.Participant, error) {
	if strings.TrimSpace(staffID) == "" || strings.TrimSpace(lastName) == "" {
		return nil, fmt.Errorf("resolve: staff id and last name are required: %w", store.ErrMalformed)
	}
	return r.participants.GetByIdentity(ctx, staffID, lastName)
}

func (r *Resolver) ResolveByID(ctx context.Context, participantID string) (*model.Participant, error) {
	if strings.TrimSpace(participantID) == "" {
		return nil, fmt.Errorf("resolve: participant id is required: %w", store.ErrNotFound)
	}
	return r.participants.GetByID(ctx, participantID)
}

// Register returns the participant matching the pair, creating it when none
// exists. created reports whether this call inserted the record. A concurrent
// registration of the same pair resolves to whichever insert won.
func (r *Resolver) Register(ctx context.Context, staffID, lastName string) (p *model.Participant, created bool, err error) {
	staffID = strings.TrimSpace(staffID)
	lastName = strings.TrimSpace(lastName)
	if staffID == "" || lastName == "" {
		return nil, false, fmt.Errorf("register: staff id and last name are required: %w", store.ErrMalformed)
	}

	p, err = r.participants.GetByIdentity(ctx, staffID, lastName)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	p, err = r.participants.Create(ctx, staffID, lastName)
	if err == nil {
		r.logger.Info("participant registered", "participant_id", p.ID, "staff_id", p.StaffID)
		return p, true, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return nil, false, err
	}

	// Lost the race to another registration of the same pair.
	p, err = r.participants.GetByIdentity(ctx, staffID, lastName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("register %q/%q: %w", staffID, lastName, store.ErrConflict)
	}
	if err != nil {
		return nil, false, err
	}
	return p, false, nil
}

// Matches reports whether the pair identifies p under the folding rule.
func Matches(p *model.Participant, staffID, lastName string) bool {
	return store.IdentityKey(p.StaffID) == store.IdentityKey(staffID) &&
		store.IdentityKey(p.LastName) == store.IdentityKey(lastName)
}
