// Package storetest is a behavioural test suite every domain.LedgerStore
// implementation runs from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

var (
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	market1 = common.HexToHash("0x01")
	market2 = common.HexToHash("0x02")
	t0      = time.Unix(1_700_000_000, 0).UTC()

	errAbort = errors.New("abort")
)

// Run exercises newStore's store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) domain.LedgerStore) {
	t.Run("league ids are sequential", func(t *testing.T) { testLeagueIDs(t, newStore(t)) })
	t.Run("failed transaction leaves no trace", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("predictions upsert", func(t *testing.T) { testPredictions(t, newStore(t)) })
	t.Run("market outcomes", func(t *testing.T) { testOutcomes(t, newStore(t)) })
	t.Run("scores", func(t *testing.T) { testScores(t, newStore(t)) })
	t.Run("resolution marks", func(t *testing.T) { testResolutionMarks(t, newStore(t)) })
	t.Run("event log", func(t *testing.T) { testEvents(t, newStore(t)) })
}

func createLeague(t *testing.T, s domain.LedgerStore, name string) uint64 {
	t.Helper()
	ctx := context.Background()
	var id uint64
	err := s.Atomic(ctx, func(tx domain.LedgerTx) error {
		var err error
		id, err = tx.AllocateLeagueID(ctx)
		if err != nil {
			return err
		}
		return tx.InsertLeague(ctx, domain.League{ID: id, Name: name, Creator: alice, Exists: true, CreatedAt: t0})
	})
	require.NoError(t, err)
	return id
}

func testLeagueIDs(t *testing.T, s domain.LedgerStore) {
	ctx := context.Background()

	next, err := s.NextLeagueID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next)

	_, err = s.GetLeague(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for want := uint64(1); want <= 3; want++ {
		assert.Equal(t, want, createLeague(t, s, "league"))
	}

	next, err = s.NextLeagueID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), next)

	got, err := s.GetLeague(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.ID)
	assert.Equal(t, "league", got.Name)
	assert.Equal(t, alice, got.Creator)
	assert.True(t, got.Exists)
	assert.True(t, got.CreatedAt.Equal(t0))

	all, err := s.ListLeagues(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, l := range all {
		assert.Equal(t, uint64(i+1), l.ID)
	}
}

func testRollback(t *testing.T, s domain.LedgerStore) {
	ctx := context.Background()
	id := createLeague(t, s, "kept")

	err := s.Atomic(ctx, func(tx domain.LedgerTx) error {
		newID, err := tx.AllocateLeagueID(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.InsertLeague(ctx, domain.League{ID: newID, Name: "dropped", Exists: true, CreatedAt: t0}))
		require.NoError(t, tx.PutPrediction(ctx, domain.Prediction{
			LeagueID: id, MarketID: market1, Participant: bob, Exists: true, Forecast: 40, SubmittedAt: t0,
		}))
		require.NoError(t, tx.PutScore(ctx, domain.ScoreEntry{LeagueID: id, Participant: bob, Score: 9, UpdatedAt: t0}))
		require.NoError(t, tx.AppendEvent(ctx, domain.Event{Type: domain.EventScoreUpdated, LeagueID: id, At: t0}))

		// Reads inside the transaction see its own writes.
		score, err := tx.GetScore(ctx, id, bob)
		require.NoError(t, err)
		assert.Equal(t, int64(9), score)
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	next, err := s.NextLeagueID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id+1, next)

	_, err = s.GetLeague(ctx, id+1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p, err := s.GetPrediction(ctx, id, market1, bob)
	require.NoError(t, err)
	assert.False(t, p.Exists)

	score, err := s.GetScore(ctx, id, bob)
	require.NoError(t, err)
	assert.Zero(t, score)

	events, err := s.ListEvents(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func testPredictions(t *testing.T, s domain.LedgerStore) {
	ctx := context.Background()
	id := createLeague(t, s, "p")

	p, err := s.GetPrediction(ctx, id, market1, alice)
	require.NoError(t, err)
	assert.False(t, p.Exists)
	assert.Zero(t, p.Forecast)
	assert.True(t, p.SubmittedAt.IsZero())

	put := func(forecast uint8, at time.Time) {
		err := s.Atomic(ctx, func(tx domain.LedgerTx) error {
			return tx.PutPrediction(ctx, domain.Prediction{
				LeagueID: id, MarketID: market1, Participant: alice, Exists: true, Forecast: forecast, SubmittedAt: at,
			})
		})
		require.NoError(t, err)
	}
	put(70, t0)
	put(30, t0.Add(time.Minute))

	p, err = s.GetPrediction(ctx, id, market1, alice)
	require.NoError(t, err)
	assert.True(t, p.Exists)
	assert.Equal(t, uint8(30), p.Forecast)
	assert.True(t, p.SubmittedAt.Equal(t0.Add(time.Minute)))

	other, err := s.GetPrediction(ctx, id, market2, alice)
	require.NoError(t, err)
	assert.False(t, other.Exists)
}

func testOutcomes(t *testing.T, s domain.LedgerStore) {
	ctx := context.Background()

	o, err := s.GetMarketOutcome(ctx, market1)
	require.NoError(t, err)
	assert.False(t, o.Resolved)

	for _, outcome := range []bool{true, false} {
		err := s.Atomic(ctx, func(tx domain.LedgerTx) error {
			return tx.PutMarketOutcome(ctx, domain.MarketOutcome{MarketID: market1, Resolved: true, Outcome: outcome, ResolvedAt: t0})
		})
		require.NoError(t, err)
	}

	o, err = s.GetMarketOutcome(ctx, market1)
	require.NoError(t, err)
	assert.True(t, o.Resolved)
	assert.False(t, o.Outcome)
	assert.True(t, o.ResolvedAt.Equal(t0))
}

func testScores(t *testing.T, s domain.LedgerStore) {
	ctx := context.Background()
	l1 := createLeague(t, s, "one")
	l2 := createLeague(t, s, "two")

	err := s.Atomic(ctx, func(tx domain.LedgerTx) error {
		for _, e := range []domain.ScoreEntry{
			{LeagueID: l1, Participant: alice, Score: -625, UpdatedAt: t0},
			{LeagueID: l1, Participant: bob, Score: -5625, UpdatedAt: t0},
			{LeagueID: l2, Participant: alice, Score: 3, UpdatedAt: t0},
		} {
			if err := tx.PutScore(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	score, err := s.GetScore(ctx, l1, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(-5625), score)

	score, err = s.GetScore(ctx, l2, bob)
	require.NoError(t, err)
	assert.Zero(t, score)

	entries, err := s.ListScores(ctx, l1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, l1, e.LeagueID)
	}
}

func testResolutionMarks(t *testing.T, s domain.LedgerStore) {
	ctx := context.Background()
	id := createLeague(t, s, "r")
	key := domain.Key{LeagueID: id, MarketID: market1, Participant: alice}

	done, err := s.ResolutionApplied(ctx, key)
	require.NoError(t, err)
	assert.False(t, done)

	err = s.Atomic(ctx, func(tx domain.LedgerTx) error {
		return tx.MarkResolutionApplied(ctx, domain.ResolutionMark{Key: key, Delta: -625, AppliedAt: t0})
	})
	require.NoError(t, err)

	done, err = s.ResolutionApplied(ctx, key)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = s.ResolutionApplied(ctx, domain.Key{LeagueID: id, MarketID: market2, Participant: alice})
	require.NoError(t, err)
	assert.False(t, done)
}

func testEvents(t *testing.T, s domain.LedgerStore) {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := s.Atomic(ctx, func(tx domain.LedgerTx) error {
			return tx.AppendEvent(ctx, domain.Event{
				Type:        domain.EventScoreUpdated,
				LeagueID:    1,
				Participant: alice,
				Delta:       int64(-i),
				NewScore:    int64(-i),
				At:          t0,
			})
		})
		require.NoError(t, err)
	}

	events, err := s.ListEvents(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, domain.EventScoreUpdated, ev.Type)
		assert.Equal(t, int64(-i), ev.Delta)
		assert.Equal(t, alice, ev.Participant)
		if i > 0 {
			assert.Greater(t, ev.Seq, events[i-1].Seq)
		}
	}

	page, err := s.ListEvents(ctx, domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(-1), page[0].Delta)
}
