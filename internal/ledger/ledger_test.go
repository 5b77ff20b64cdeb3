package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictionleague/internal/access"
	"github.com/alanyoungcy/predictionleague/internal/domain"
	"github.com/alanyoungcy/predictionleague/internal/store/memory"
)

var (
	owner   = common.HexToAddress("0x000000000000000000000000000000000000000a")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	market1 = mustMarket("MARKET-1")
	market2 = mustMarket("MARKET-2")
)

func mustMarket(label string) domain.MarketID {
	id, err := domain.MarketIDFromLabel(label)
	if err != nil {
		panic(err)
	}
	return id
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (r *recordingSink) Publish(_ context.Context, events ...domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return r.err
}

type fixture struct {
	ledger *Ledger
	store  *memory.Store
	sink   *recordingSink
	clock  *time.Time
}

func newTestLedger(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC)
	f := &fixture{store: memory.New(), sink: &recordingSink{}, clock: &now}
	f.ledger = New(f.store, access.NewOwner(owner),
		WithEventSink(f.sink),
		WithClock(func() time.Time { return *f.clock }),
	)
	return f
}

func (f *fixture) tick(d time.Duration) { *f.clock = f.clock.Add(d) }

func (f *fixture) league(t *testing.T) uint64 {
	t.Helper()
	id, err := f.ledger.CreateLeague(context.Background(), alice, "Forecasters")
	require.NoError(t, err)
	return id
}

func requireLedgerError(t *testing.T, err error, kind error, invariant string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, kind)
	var le *domain.LedgerError
	require.True(t, errors.As(err, &le), "expected *domain.LedgerError, got %T", err)
	assert.Contains(t, le.Invariant, invariant)
}

func TestCreateLeagueAssignsSequentialIDs(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()

	for want := uint64(1); want <= 5; want++ {
		id, err := f.ledger.CreateLeague(ctx, alice, "league")
		require.NoError(t, err)
		assert.Equal(t, want, id)

		next, err := f.ledger.NextLeagueID(ctx)
		require.NoError(t, err)
		assert.Equal(t, id+1, next)
	}

	l, err := f.ledger.GetLeague(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "league", l.Name)
	assert.Equal(t, alice, l.Creator)
	assert.True(t, l.Exists)

	leagues, err := f.ledger.ListLeagues(ctx)
	require.NoError(t, err)
	assert.Len(t, leagues, 5)
}

func TestCreateLeagueRejectsEmptyName(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()

	for _, name := range []string{"", "   "} {
		_, err := f.ledger.CreateLeague(ctx, alice, name)
		requireLedgerError(t, err, domain.ErrValidation, InvNameRequired)
	}

	next, err := f.ledger.NextLeagueID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next)
	assert.Empty(t, f.sink.events)
}

func TestGetLeagueNotFound(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()

	_, err := f.ledger.GetLeague(ctx, 42)
	requireLedgerError(t, err, domain.ErrNotFound, InvLeagueNotFound)
	assert.Contains(t, err.Error(), "league=42")

	exists, err := f.ledger.LeagueExists(ctx, 42)
	require.NoError(t, err)
	assert.False(t, exists)

	id := f.league(t)
	exists, err = f.ledger.LeagueExists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSubmitPredictionBoundaries(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()
	id := f.league(t)

	for _, forecast := range []int{0, 100} {
		require.NoError(t, f.ledger.SubmitPrediction(ctx, bob, id, market1, forecast))
		p, err := f.ledger.GetPrediction(ctx, id, market1, bob)
		require.NoError(t, err)
		assert.Equal(t, uint8(forecast), p.Forecast)
	}

	for _, forecast := range []int{-1, 101, 1000} {
		err := f.ledger.SubmitPrediction(ctx, bob, id, market2, forecast)
		requireLedgerError(t, err, domain.ErrValidation, InvForecastRange)

		p, err := f.ledger.GetPrediction(ctx, id, market2, bob)
		require.NoError(t, err)
		assert.False(t, p.Exists, "forecast %d must not be stored", forecast)
	}
}

func TestSubmitPredictionPreconditions(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()
	id := f.league(t)

	err := f.ledger.SubmitPrediction(ctx, bob, 99, market1, 50)
	requireLedgerError(t, err, domain.ErrNotFound, InvLeagueNotFound)

	err = f.ledger.SubmitPrediction(ctx, bob, id, domain.MarketID{}, 50)
	requireLedgerError(t, err, domain.ErrValidation, InvEmptyMarketID)

	err = f.ledger.SubmitPrediction(ctx, domain.Account{}, id, market1, 50)
	requireLedgerError(t, err, domain.ErrValidation, InvZeroParticipant)
}

func TestSubmitPredictionOverwrites(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()
	id := f.league(t)

	require.NoError(t, f.ledger.SubmitPrediction(ctx, bob, id, market1, 80))
	first := *f.clock
	f.tick(time.Hour)
	require.NoError(t, f.ledger.SubmitPrediction(ctx, bob, id, market1, 20))

	p, err := f.ledger.GetPrediction(ctx, id, market1, bob)
	require.NoError(t, err)
	assert.True(t, p.Exists)
	assert.Equal(t, uint8(20), p.Forecast)
	assert.True(t, p.SubmittedAt.Equal(first.Add(time.Hour)))

	var submitted []domain.Event
	for _, ev := range f.sink.events {
		if ev.Type == domain.EventPredictionSubmitted {
			submitted = append(submitted, ev)
		}
	}
	require.Len(t, submitted, 2)
	assert.Equal(t, uint8(80), submitted[0].Forecast)
	assert.Equal(t, bob, submitted[1].Participant)
}

func TestGetPredictionAbsent(t *testing.T) {
	f := newTestLedger(t)
	p, err := f.ledger.GetPrediction(context.Background(), 1, market1, bob)
	require.NoError(t, err)
	assert.False(t, p.Exists)
	assert.Zero(t, p.Forecast)
	assert.True(t, p.SubmittedAt.IsZero())
}

func TestSetMarketOutcome(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()

	mo, err := f.ledger.GetMarketOutcome(ctx, market1)
	require.NoError(t, err)
	assert.False(t, mo.Resolved)
	assert.False(t, mo.Outcome)
	assert.True(t, mo.ResolvedAt.IsZero())

	_, err = f.ledger.SetMarketOutcome(ctx, owner, market1, true)
	require.NoError(t, err)

	mo, err = f.ledger.GetMarketOutcome(ctx, market1)
	require.NoError(t, err)
	assert.True(t, mo.Resolved)
	assert.True(t, mo.Outcome)
	assert.True(t, mo.ResolvedAt.Equal(*f.clock))

	// Corrections overwrite an existing resolution.
	f.tick(time.Minute)
	_, err = f.ledger.SetMarketOutcome(ctx, owner, market1, false)
	require.NoError(t, err)
	mo, err = f.ledger.GetMarketOutcome(ctx, market1)
	require.NoError(t, err)
	assert.True(t, mo.Resolved)
	assert.False(t, mo.Outcome)
	assert.True(t, mo.ResolvedAt.Equal(*f.clock))
}

func TestSetMarketOutcomeRejections(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()

	_, err := f.ledger.SetMarketOutcome(ctx, alice, market1, true)
	requireLedgerError(t, err, domain.ErrUnauthorized, InvNotAuthorized)

	mo, err := f.ledger.GetMarketOutcome(ctx, market1)
	require.NoError(t, err)
	assert.False(t, mo.Resolved)

	_, err = f.ledger.SetMarketOutcome(ctx, owner, domain.MarketID{}, true)
	requireLedgerError(t, err, domain.ErrValidation, InvEmptyMarketID)

	// Authorization is checked before validation.
	_, err = f.ledger.SetMarketOutcome(ctx, alice, domain.MarketID{}, true)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUpdateScoreAccumulates(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()
	id := f.league(t)

	total, err := f.ledger.UpdateScore(ctx, owner, id, bob, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	total, err = f.ledger.UpdateScore(ctx, owner, id, bob, -2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	score, err := f.ledger.GetScore(ctx, id, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(3), score)

	last := f.sink.events[len(f.sink.events)-1]
	assert.Equal(t, domain.EventScoreUpdated, last.Type)
	assert.Equal(t, int64(-2), last.Delta)
	assert.Equal(t, int64(3), last.NewScore)
}

func TestUpdateScoreRejections(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()
	id := f.league(t)

	_, err := f.ledger.UpdateScore(ctx, bob, id, bob, 100)
	requireLedgerError(t, err, domain.ErrUnauthorized, InvNotAuthorized)

	_, err = f.ledger.UpdateScore(ctx, owner, 77, bob, 1)
	requireLedgerError(t, err, domain.ErrNotFound, InvLeagueNotFound)

	_, err = f.ledger.UpdateScore(ctx, owner, id, domain.Account{}, 1)
	requireLedgerError(t, err, domain.ErrValidation, InvZeroParticipant)

	score, err := f.ledger.GetScore(ctx, id, bob)
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestUpdateScoreOverflow(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()
	id := f.league(t)

	_, err := f.ledger.UpdateScore(ctx, owner, id, bob, math.MaxInt64)
	require.NoError(t, err)

	_, err = f.ledger.UpdateScore(ctx, owner, id, bob, 1)
	requireLedgerError(t, err, domain.ErrOverflow, InvScoreOverflow)

	score, err := f.ledger.GetScore(ctx, id, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), score)

	_, err = f.ledger.UpdateScore(ctx, owner, id, alice, math.MinInt64)
	require.NoError(t, err)
	_, err = f.ledger.UpdateScore(ctx, owner, id, alice, -1)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestApplyResolutionDeltaOnce(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()
	id := f.league(t)
	key := domain.Key{LeagueID: id, MarketID: market1, Participant: bob}

	total, applied, err := f.ledger.ApplyResolutionDelta(ctx, owner, key, -625)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(-625), total)

	total, applied, err = f.ledger.ApplyResolutionDelta(ctx, owner, key, -625)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, int64(-625), total)

	// A different market for the same participant is a different key.
	total, applied, err = f.ledger.ApplyResolutionDelta(ctx, owner,
		domain.Key{LeagueID: id, MarketID: market2, Participant: bob}, -100)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(-725), total)

	_, _, err = f.ledger.ApplyResolutionDelta(ctx, alice, key, -1)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLeaderboardOrdersBestFirst(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()
	id := f.league(t)

	_, err := f.ledger.UpdateScore(ctx, owner, id, alice, -5625)
	require.NoError(t, err)
	_, err = f.ledger.UpdateScore(ctx, owner, id, bob, -625)
	require.NoError(t, err)

	board, err := f.ledger.Leaderboard(ctx, id)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, bob, board[0].Participant)
	assert.Equal(t, int64(-625), board[0].Score)
	assert.Equal(t, alice, board[1].Participant)

	_, err = f.ledger.Leaderboard(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEventsAreLoggedAndPublished(t *testing.T) {
	f := newTestLedger(t)
	ctx := context.Background()
	id := f.league(t)

	require.NoError(t, f.ledger.SubmitPrediction(ctx, bob, id, market1, 75))
	_, err := f.ledger.SetMarketOutcome(ctx, owner, market1, true)
	require.NoError(t, err)
	_, err = f.ledger.UpdateScore(ctx, owner, id, bob, -625)
	require.NoError(t, err)

	logged, err := f.ledger.Events(ctx, domain.ListOpts{})
	require.NoError(t, err)

	want := []domain.EventType{
		domain.EventLeagueCreated,
		domain.EventPredictionSubmitted,
		domain.EventMarketResolved,
		domain.EventScoreUpdated,
	}
	require.Len(t, logged, len(want))
	require.Len(t, f.sink.events, len(want))
	for i, typ := range want {
		assert.Equal(t, typ, logged[i].Type)
		assert.Equal(t, typ, f.sink.events[i].Type)
	}
	assert.Equal(t, "Forecasters", logged[0].Name)
}

func TestSinkFailureDoesNotFailWrite(t *testing.T) {
	f := newTestLedger(t)
	f.sink.err = errors.New("redis down")

	id, err := f.ledger.CreateLeague(context.Background(), alice, "still created")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

type countingObserver struct {
	ok, failed map[string]int
}

func (c *countingObserver) ObserveOp(op string, err error) {
	if err != nil {
		c.failed[op]++
		return
	}
	c.ok[op]++
}

func TestObserverSeesEveryWrite(t *testing.T) {
	obs := &countingObserver{ok: map[string]int{}, failed: map[string]int{}}
	l := New(memory.New(), access.NewOwner(owner), WithObserver(obs))
	ctx := context.Background()

	_, err := l.CreateLeague(ctx, alice, "x")
	require.NoError(t, err)
	_, err = l.UpdateScore(ctx, alice, 1, bob, 1)
	require.Error(t, err)

	assert.Equal(t, 1, obs.ok["create league"])
	assert.Equal(t, 1, obs.failed["update score"])
}
