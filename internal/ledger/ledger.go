// Package ledger implements the league registry, prediction store, outcome
// oracle and score ledger as one state container over a transactional
// domain.LedgerStore. Every write runs its precondition checks and its
// mutations inside a single store transaction, records its event in the
// same transaction and publishes the event once the transaction commits.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/predictionleague/internal/access"
	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// Invariants reported in ledger errors.
const (
	InvNameRequired    = "name required"
	InvLeagueNotFound  = "league not found"
	InvForecastRange   = "forecast out of range [0,100]"
	InvEmptyMarketID   = "empty market id"
	InvZeroParticipant = "zero participant"
	InvScoreOverflow   = "score overflow"
	InvNotAuthorized   = "caller not authorized"
)

// MaxForecast is the largest accepted forecast in percent.
const MaxForecast = 100

// OpObserver is told the result of every ledger write.
type OpObserver interface {
	ObserveOp(op string, err error)
}

// Ledger is the ledger state container. It holds no state of its own beyond
// its collaborators, so several ledgers over separate stores never interact.
type Ledger struct {
	store    domain.LedgerStore
	auth     access.Authorizer
	sink     domain.EventSink
	observer OpObserver
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithEventSink publishes committed events to sink.
func WithEventSink(sink domain.EventSink) Option {
	return func(l *Ledger) { l.sink = sink }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithObserver reports write results to obs.
func WithObserver(obs OpObserver) Option {
	return func(l *Ledger) { l.observer = obs }
}

// New creates a Ledger over store, checking privileged operations with auth.
func New(store domain.LedgerStore, auth access.Authorizer, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		auth:   auth,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(slog.String("component", "ledger"))
	return l
}

// CreateLeague registers a new league created by caller and returns its id.
// Anyone may create a league.
func (l *Ledger) CreateLeague(ctx context.Context, caller domain.Account, name string) (uint64, error) {
	const op = "create league"
	if strings.TrimSpace(name) == "" {
		return 0, l.finish(op, domain.NewLedgerError(op, domain.ErrValidation, domain.Key{}, InvNameRequired))
	}

	now := l.now()
	var (
		id     uint64
		events []domain.Event
	)
	err := l.store.Atomic(ctx, func(tx domain.LedgerTx) error {
		var err error
		id, err = tx.AllocateLeagueID(ctx)
		if err != nil {
			return err
		}
		league := domain.League{ID: id, Name: name, Creator: caller, Exists: true, CreatedAt: now}
		if err := tx.InsertLeague(ctx, league); err != nil {
			return err
		}
		ev := domain.Event{Type: domain.EventLeagueCreated, LeagueID: id, Participant: caller, Name: name, At: now}
		events = []domain.Event{ev}
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return 0, l.finish(op, err)
	}

	l.logger.InfoContext(ctx, "league created",
		slog.Uint64("league_id", id),
		slog.String("name", name),
		slog.String("creator", caller.Hex()),
	)
	l.publish(ctx, events)
	return id, l.finish(op, nil)
}

// GetLeague returns the league with id, or a not-found ledger error.
func (l *Ledger) GetLeague(ctx context.Context, id uint64) (domain.League, error) {
	league, err := l.store.GetLeague(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.League{}, domain.NewLedgerError("get league", domain.ErrNotFound,
			domain.Key{LeagueID: id}, InvLeagueNotFound)
	}
	if err != nil {
		return domain.League{}, fmt.Errorf("ledger: get league %d: %w", id, err)
	}
	return league, nil
}

// LeagueExists reports whether a league with id has been created. Only
// storage failures produce an error.
func (l *Ledger) LeagueExists(ctx context.Context, id uint64) (bool, error) {
	_, err := l.store.GetLeague(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("ledger: league exists %d: %w", id, err)
	}
}

// NextLeagueID returns the id the next created league will receive.
func (l *Ledger) NextLeagueID(ctx context.Context) (uint64, error) {
	id, err := l.store.NextLeagueID(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: next league id: %w", err)
	}
	return id, nil
}

// ListLeagues returns every league ordered by id.
func (l *Ledger) ListLeagues(ctx context.Context) ([]domain.League, error) {
	leagues, err := l.store.ListLeagues(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: list leagues: %w", err)
	}
	return leagues, nil
}

// Events returns the ledger's event log, oldest first.
func (l *Ledger) Events(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	events, err := l.store.ListEvents(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("ledger: list events: %w", err)
	}
	return events, nil
}

// finish reports the result of op to the observer and gives store errors the
// ledger prefix. Ledger errors pass through unchanged.
func (l *Ledger) finish(op string, err error) error {
	if l.observer != nil {
		l.observer.ObserveOp(op, err)
	}
	if err == nil {
		return nil
	}
	var le *domain.LedgerError
	if errors.As(err, &le) {
		return err
	}
	return fmt.Errorf("ledger: %s: %w", op, err)
}

func (l *Ledger) authorize(ctx context.Context, op string, caller domain.Account, action access.Action, key domain.Key) error {
	if err := l.auth.Authorize(ctx, caller, action); err != nil {
		l.logger.WarnContext(ctx, "privileged operation denied",
			slog.String("op", op),
			slog.String("caller", caller.Hex()),
			slog.String("error", err.Error()),
		)
		return domain.NewLedgerError(op, domain.ErrUnauthorized, key, InvNotAuthorized+" ("+caller.Hex()+")")
	}
	return nil
}

func (l *Ledger) publish(ctx context.Context, events []domain.Event) {
	if l.sink == nil || len(events) == 0 {
		return
	}
	if err := l.sink.Publish(ctx, events...); err != nil {
		// The events are already in the store's log.
		l.logger.WarnContext(ctx, "event publish failed",
			slog.String("type", string(events[0].Type)),
			slog.String("error", err.Error()),
		)
	}
}
