// Package progress computes a participant's stamp card against the active
// game catalog. Reads are served from a short-lived cache so that clients
// polling every few seconds do not hit the database on each tick.
package progress

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/stampcard/internal/model"
	"github.com/dukerupert/stampcard/internal/store"
	"github.com/jonboulle/clockwork"
)

const DefaultTTL = 5 * time.Minute

type participantSource interface {
	GetByID(ctx context.Context, id string) (*model.Participant, error)
	GetByIdentity(ctx context.Context, staffID, lastName string) (*model.Participant, error)
}

type gameSource interface {
	ListActive(ctx context.Context) ([]model.Game, error)
}

type GameStatus struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// Progress is a participant's card. Completed counts every credited game,
// including games that were deactivated after being credited, so it may
// exceed Total.
type Progress struct {
	ParticipantID    string       `json:"participant_id"`
	StaffID          string       `json:"staff_id"`
	LastName         string       `json:"last_name"`
	Completed        int          `json:"completed"`
	Total            int          `json:"total"`
	Percentage       int          `json:"percentage"`
	CompletedGameIDs []string     `json:"completed_game_ids"`
	Games            []GameStatus `json:"games"`
	NoGames          bool         `json:"no_games"`
	Eligible         bool         `json:"eligible"`
	GiftRedeemed     bool         `json:"gift_redeemed"`
	AsOf             time.Time    `json:"as_of"`
}

// Percent returns round(completed/total*100), or 0 when total is 0.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// Eligible reports whether a card is full. A card is never full against an
// empty catalog.
func Eligible(completed, total int) bool {
	return total > 0 && completed >= total
}

// Compute builds the card for p against the given active games.
func Compute(p *model.Participant, active []model.Game, now time.Time) *Progress {
	pr := &Progress{
		ParticipantID:    p.ID,
		StaffID:          p.StaffID,
		LastName:         p.LastName,
		Completed:        len(p.CompletedGames),
		Total:            len(active),
		CompletedGameIDs: slices.Clone(p.CompletedGames),
		Games:            make([]GameStatus, 0, len(active)),
		GiftRedeemed:     p.GiftRedeemed,
		AsOf:             now,
	}
	if pr.CompletedGameIDs == nil {
		pr.CompletedGameIDs = []string{}
	}
	for _, g := range active {
		pr.Games = append(pr.Games, GameStatus{
			ID:        g.ID,
			Code:      g.Code,
			Name:      g.Name,
			Completed: p.HasCompleted(g.ID),
		})
	}
	pr.NoGames = pr.Total == 0
	pr.Percentage = Percent(pr.Completed, pr.Total)
	pr.Eligible = Eligible(pr.Completed, pr.Total)
	return pr
}

type cachedParticipant struct {
	p       *model.Participant
	fetched time.Time
}

// View serves progress reads. It is safe for concurrent use.
type View struct {
	participants participantSource
	games        gameSource
	clock        clockwork.Clock
	ttl          time.Duration

	mu          sync.Mutex
	byKey       map[string]cachedParticipant
	active      []model.Game
	gamesLoaded time.Time
	// gen and gamesGen are bumped by Invalidate and InvalidateGames. A load
	// that started before a bump must not repopulate the cache.
	gen      map[string]uint64
	gamesGen uint64
}

func NewView(participants participantSource, games gameSource, clock clockwork.Clock, ttl time.Duration) *View {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &View{
		participants: participants,
		games:        games,
		clock:        clock,
		ttl:          ttl,
		byKey:        make(map[string]cachedParticipant),
		gen:          make(map[string]uint64),
	}
}

func identityCacheKey(staffID, lastName string) string {
	return "k:" + store.IdentityKey(staffID) + "\x00" + store.IdentityKey(lastName)
}

func idCacheKey(id string) string {
	return "id:" + id
}

// Get returns the card for the participant matching the pair. forceRefresh
// bypasses both the participant and the catalog cache. A participant that
// does not exist is store.ErrNotFound, never an empty card.
func (v *View) Get(ctx context.Context, staffID, lastName string, forceRefresh bool) (*Progress, error) {
	key := identityCacheKey(staffID, lastName)
	return v.get(ctx, key, forceRefresh, func() (*model.Participant, error) {
		return v.participants.GetByIdentity(ctx, staffID, lastName)
	})
}

// GetByID is Get for callers that already hold a participant id.
func (v *View) GetByID(ctx context.Context, participantID string, forceRefresh bool) (*Progress, error) {
	return v.get(ctx, idCacheKey(participantID), forceRefresh, func() (*model.Participant, error) {
		return v.participants.GetByID(ctx, participantID)
	})
}

func (v *View) get(ctx context.Context, key string, force bool, load func() (*model.Participant, error)) (*Progress, error) {
	now := v.clock.Now()

	p, gen, ok := v.cachedParticipant(key, now, force)
	if !ok {
		var err error
		p, err = load()
		if err != nil {
			return nil, err
		}
		v.storeParticipant(key, gen, p, now)
	}

	active, err := v.activeGames(ctx, now, force)
	if err != nil {
		return nil, err
	}
	return Compute(p, active, now), nil
}

// cachedParticipant returns the cached record for key, or the key's current
// generation when the caller has to load it.
func (v *View) cachedParticipant(key string, now time.Time, force bool) (*model.Participant, uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.byKey[key]
	if force || !ok || now.Sub(c.fetched) >= v.ttl {
		return nil, v.gen[key], false
	}
	return c.p, 0, true
}

// storeParticipant caches p unless key was invalidated since gen was read or
// a newer version of p is already cached.
func (v *View) storeParticipant(key string, gen uint64, p *model.Participant, now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen[key] != gen {
		return
	}
	keys := []string{identityCacheKey(p.StaffID, p.LastName), idCacheKey(p.ID)}
	for _, k := range keys {
		if c, ok := v.byKey[k]; ok && c.p.Version > p.Version {
			return
		}
	}
	c := cachedParticipant{p: p, fetched: now}
	for _, k := range keys {
		v.byKey[k] = c
	}
}

func (v *View) activeGames(ctx context.Context, now time.Time, force bool) ([]model.Game, error) {
	v.mu.Lock()
	if !force && !v.gamesLoaded.IsZero() && now.Sub(v.gamesLoaded) < v.ttl {
		active := v.active
		v.mu.Unlock()
		return active, nil
	}
	gen := v.gamesGen
	v.mu.Unlock()

	active, err := v.games.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	if v.gamesGen == gen {
		v.active = active
		v.gamesLoaded = now
	}
	v.mu.Unlock()
	return active, nil
}

// Invalidate drops cached state for p so the next read goes to the store.
// In-process writers call it after recording a completion or redemption.
func (v *View) Invalidate(p *model.Participant) {
	if p == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, k := range []string{identityCacheKey(p.StaffID, p.LastName), idCacheKey(p.ID)} {
		delete(v.byKey, k)
		v.gen[k]++
	}
}

// InvalidateGames drops the cached active catalog.
func (v *View) InvalidateGames() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.active = nil
	v.gamesLoaded = time.Time{}
	v.gamesGen++
}

// GiftState places the card in the redemption state machine.
func (p *Progress) GiftState() model.GiftState {
	switch {
	case p.GiftRedeemed:
		return model.GiftRedeemed
	case p.Eligible:
		return model.GiftEligible
	default:
		return model.GiftNotEligible
	}
}
