package report

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/stampcard/internal/database"
	"github.com/dukerupert/stampcard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db           *sql.DB
	builder      *Builder
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
		db:           db,
		participants: store.NewParticipantStore(db),
		games:        store.NewGameStore(db),
		completions:  store.NewCompletionStore(db),
		redemptions:  store.NewRedemptionStore(db),
	}
	f.builder = NewBuilder(f.participants, f.games, f.redemptions, f.completions,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func (f *fixture) gameIDs(t *testing.T, codes ...string) []string {
	t.Helper()
	var ids []string
	for _, c := range codes {
		g, err := f.games.Create(context.Background(), c, c, "", true)
		require.NoError(t, err)
		ids = append(ids, g.ID)
	}
	return ids
}

func TestBuildCompletionPercentage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ids := f.gameIDs(t, "g1", "g2", "g3")

	p1, err := f.participants.Create(ctx, "P1", "One")
	require.NoError(t, err)
	_, err = f.completions.Record(ctx, p1.ID, "host", ids[:2])
	require.NoError(t, err)
	_, err = f.participants.Create(ctx, "P2", "Two")
	require.NoError(t, err)

	rep, err := f.builder.Build(ctx)
	require.NoError(t, err)
	require.Len(t, rep.Participants, 2)

	row := rep.Participants[0]
	assert.Equal(t, "P1", row.StaffID)
	assert.Equal(t, 2, row.CompletedGames)
	assert.Equal(t, 3, row.TotalGames)
	assert.Equal(t, 67, row.CompletionPct)
	require.Len(t, row.Games, 3)
	assert.True(t, row.Games[1].Completed)
	assert.False(t, row.Games[2].Completed)

	assert.Equal(t, 0, rep.Participants[1].CompletionPct)
	assert.Equal(t, 2, rep.Summary.TotalParticipants)
	assert.Equal(t, 3, rep.Summary.TotalGames)
	assert.Equal(t, 34, rep.Summary.AverageCompletion)

	require.Len(t, rep.Games, 3)
	assert.Equal(t, 1, rep.Games[0].Completions)
	assert.Equal(t, 0, rep.Games[2].Completions)
}

func TestBuildNoActiveGames(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.participants.Create(ctx, "P1", "One")
	require.NoError(t, err)

	rep, err := f.builder.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Participants[0].CompletionPct)
	assert.Equal(t, 0, rep.Summary.TotalGames)
	assert.Equal(t, 0, rep.Summary.AverageCompletion)
}

func TestBuildUsesRedemptionRecord(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ids := f.gameIDs(t, "g1")
	p, _ := f.participants.Create(ctx, "P1", "One")
	_, err := f.completions.Record(ctx, p.ID, "host", ids)
	require.NoError(t, err)
	r, _, err := f.redemptions.Redeem(ctx, p.ID, "gift desk")
	require.NoError(t, err)

	rep, err := f.builder.Build(ctx)
	require.NoError(t, err)
	row := rep.Participants[0]
	assert.True(t, row.GiftRedeemed)
	require.NotNil(t, row.GiftRedeemedAt)
	assert.True(t, row.GiftRedeemedAt.Equal(r.RedeemedAt))
	assert.Equal(t, "gift desk", row.GiftRedeemedBy)
	assert.Equal(t, 1, rep.Summary.ParticipantsWithGifts)
}

func TestBuildIsolatesMalformedParticipant(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ids := f.gameIDs(t, "g1", "g2")
	good, _ := f.participants.Create(ctx, "P1", "Good")
	_, err := f.completions.Record(ctx, good.ID, "host", ids)
	require.NoError(t, err)

	_, err = f.db.Exec(
		`INSERT INTO participants (id, staff_id, last_name, staff_key, last_name_key, completed_games)
		 VALUES ('bad', 'P2', 'Broken', 'p2', 'broken', 'not json')`)
	require.NoError(t, err)

	rep, err := f.builder.Build(ctx)
	require.NoError(t, err)
	require.Len(t, rep.Participants, 2)

	var bad ParticipantRow
	for _, r := range rep.Participants {
		if r.ID == "bad" {
			bad = r
		}
	}
	assert.NotEmpty(t, bad.Error)
	assert.Equal(t, "P2", bad.StaffID)
	assert.Equal(t, 0, bad.CompletedGames)
	assert.Equal(t, 2, bad.TotalGames)
	assert.Equal(t, 1, rep.Summary.MalformedParticipants)
	assert.Equal(t, 2, rep.Summary.TotalParticipants)
	assert.Equal(t, 50, rep.Summary.AverageCompletion)
}
