package redemption

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/stampcard/internal/database"
	"github.com/dukerupert/stampcard/internal/model"
	"github.com/dukerupert/stampcard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc          *Service
	participants *store.ParticipantStore
	games        *store.GameStore
	completions  *store.CompletionStore
	redemptions  *store.RedemptionStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		participants: store.NewParticipantStore(db),
		games:        store.NewGameStore(db),
		completions:  store.NewCompletionStore(db),
		redemptions:  store.NewRedemptionStore(db),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = New(f.participants, f.games, f.redemptions, nil, nil, logger)
	return f
}

// seed creates n active games and a participant who completed the first done.
func (f *fixture) seed(t *testing.T, n, done int) *model.Participant {
	t.Helper()
	ctx := context.Background()
	var ids []string
	for i := range n {
		g, err := f.games.Create(ctx, fmt.Sprintf("g%d", i), fmt.Sprintf("Game %d", i), "", true)
		require.NoError(t, err)
		ids = append(ids, g.ID)
	}
	p, err := f.participants.Create(ctx, "E100", "Tan")
	require.NoError(t, err)
	if done > 0 {
		_, err = f.completions.Record(ctx, p.ID, "host", ids[:done])
		require.NoError(t, err)
	}
	return p
}

func TestEligibilityBoundary(t *testing.T) {
	tests := []struct {
		done int
		want model.GiftState
	}{
		{0, model.GiftNotEligible},
		{5, model.GiftNotEligible},
		{6, model.GiftEligible},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d of 6", tt.done), func(t *testing.T) {
			f := setup(t)
			p := f.seed(t, 6, tt.done)

			st, err := f.svc.State(context.Background(), p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.State)
			assert.Equal(t, tt.done, st.Completed)
			assert.Equal(t, 6, st.Total)
		})
	}
}

func TestNoActiveGamesIsNeverEligible(t *testing.T) {
	f := setup(t)
	p := f.seed(t, 0, 0)

	st, err := f.svc.State(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GiftNotEligible, st.State)

	_, err = f.svc.Redeem(context.Background(), p.ID, "gift desk")
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestRedeemIsOneWay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.seed(t, 3, 3)

	r, err := f.svc.Redeem(ctx, p.ID, "gift desk")
	require.NoError(t, err)
	assert.Equal(t, "gift desk", r.RedeemedBy)

	st, err := f.svc.State(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GiftRedeemed, st.State)
	require.NotNil(t, st.RedeemedAt)
	assert.Equal(t, "gift desk", st.RedeemedBy)

	_, err = f.svc.Redeem(ctx, p.ID, "someone else")
	assert.ErrorIs(t, err, store.ErrConflict)

	records, err := f.redemptions.ListByParticipant(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRedeemNotEligibleWritesNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.seed(t, 6, 5)

	_, err := f.svc.Redeem(ctx, p.ID, "gift desk")
	assert.ErrorIs(t, err, ErrNotEligible)

	got, err := f.participants.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.GiftRedeemed)
	records, _ := f.redemptions.ListByParticipant(ctx, p.ID)
	assert.Empty(t, records)
}

func TestRedeemErrors(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Redeem(context.Background(), "missing", "desk")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.Redeem(context.Background(), "missing", " ")
	assert.ErrorIs(t, err, store.ErrMalformed)
}
