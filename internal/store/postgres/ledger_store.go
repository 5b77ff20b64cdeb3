package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// ledgerLockKey is the advisory lock every write transaction takes first, so
// ledger writes are totally ordered across processes.
const ledgerLockKey int64 = 0x4c454147554531 // "LEAGUE1"

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	reader
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given pool. The schema
// is created by Client.RunMigrations.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{reader: reader{q: pool}, pool: pool}
}

// Atomic runs fn in a read-committed transaction holding the ledger advisory
// lock. fn's error is returned unchanged after rollback.
func (s *LedgerStore) Atomic(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = pgTx.Rollback(ctx) }()

	if _, err := pgTx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
		return fmt.Errorf("postgres: ledger lock: %w", err)
	}
	if err := fn(&ledgerTx{reader: reader{q: pgTx}}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Close is a no-op; the pool belongs to the Client.
func (s *LedgerStore) Close() error { return nil }

// reader implements domain.LedgerReader over the pool or an open transaction.
type reader struct {
	q querier
}

func (r reader) NextLeagueID(ctx context.Context) (uint64, error) {
	var next int64
	err := r.q.QueryRow(ctx, `SELECT value FROM ledger_counters WHERE name = 'next_league_id'`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("postgres: next league id: %w", err)
	}
	return uint64(next), nil
}

func (r reader) GetLeague(ctx context.Context, id uint64) (domain.League, error) {
	const query = `SELECT id, name, creator, created_at FROM leagues WHERE id = $1`
	l, err := scanLeague(r.q.QueryRow(ctx, query, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.League{}, fmt.Errorf("postgres: league %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.League{}, fmt.Errorf("postgres: get league %d: %w", id, err)
	}
	return l, nil
}

func (r reader) ListLeagues(ctx context.Context) ([]domain.League, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, creator, created_at FROM leagues ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list leagues: %w", err)
	}
	defer rows.Close()

	var out []domain.League
	for rows.Next() {
		l, err := scanLeague(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan league: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list leagues rows: %w", err)
	}
	return out, nil
}

func (r reader) GetPrediction(ctx context.Context, leagueID uint64, marketID domain.MarketID, participant domain.Account) (domain.Prediction, error) {
	const query = `
		SELECT forecast, submitted_at FROM predictions
		WHERE league_id = $1 AND market_id = $2 AND participant = $3`
	var (
		forecast    int16
		submittedAt time.Time
	)
	err := r.q.QueryRow(ctx, query, int64(leagueID), marketID.Hex(), participant.Hex()).Scan(&forecast, &submittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Prediction{}, nil
	}
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("postgres: get prediction: %w", err)
	}
	return domain.Prediction{
		LeagueID:    leagueID,
		MarketID:    marketID,
		Participant: participant,
		Exists:      true,
		Forecast:    uint8(forecast),
		SubmittedAt: submittedAt.UTC(),
	}, nil
}

func (r reader) GetMarketOutcome(ctx context.Context, marketID domain.MarketID) (domain.MarketOutcome, error) {
	o := domain.MarketOutcome{MarketID: marketID}
	err := r.q.QueryRow(ctx,
		`SELECT outcome, resolved_at FROM market_outcomes WHERE market_id = $1`, marketID.Hex(),
	).Scan(&o.Outcome, &o.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MarketOutcome{}, nil
	}
	if err != nil {
		return domain.MarketOutcome{}, fmt.Errorf("postgres: get market outcome: %w", err)
	}
	o.Resolved = true
	o.ResolvedAt = o.ResolvedAt.UTC()
	return o, nil
}

func (r reader) GetScore(ctx context.Context, leagueID uint64, participant domain.Account) (int64, error) {
	var score int64
	err := r.q.QueryRow(ctx,
		`SELECT score FROM scores WHERE league_id = $1 AND participant = $2`, int64(leagueID), participant.Hex(),
	).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: get score: %w", err)
	}
	return score, nil
}

func (r reader) ListScores(ctx context.Context, leagueID uint64) ([]domain.ScoreEntry, error) {
	rows, err := r.q.Query(ctx,
		`SELECT participant, score, updated_at FROM scores WHERE league_id = $1 ORDER BY participant`, int64(leagueID))
	if err != nil {
		return nil, fmt.Errorf("postgres: list scores: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoreEntry
	for rows.Next() {
		var (
			e   = domain.ScoreEntry{LeagueID: leagueID}
			who string
		)
		if err := rows.Scan(&who, &e.Score, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan score: %w", err)
		}
		e.Participant = common.HexToAddress(who)
		e.UpdatedAt = e.UpdatedAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list scores rows: %w", err)
	}
	return out, nil
}

func (r reader) ResolutionApplied(ctx context.Context, key domain.Key) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM resolution_applied WHERE league_id = $1 AND market_id = $2 AND participant = $3)`,
		int64(key.LeagueID), key.MarketID.Hex(), key.Participant.Hex(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: resolution applied: %w", err)
	}
	return exists, nil
}

// ledgerTx is the write side of an open transaction.
type ledgerTx struct {
	reader
}

func (t *ledgerTx) AllocateLeagueID(ctx context.Context) (uint64, error) {
	var id int64
	err := t.q.QueryRow(ctx,
		`UPDATE ledger_counters SET value = value + 1 WHERE name = 'next_league_id' RETURNING value - 1`,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: allocate league id: %w", err)
	}
	return uint64(id), nil
}

func (t *ledgerTx) InsertLeague(ctx context.Context, l domain.League) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO leagues (id, name, creator, created_at) VALUES ($1, $2, $3, $4)`,
		int64(l.ID), l.Name, l.Creator.Hex(), l.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert league %d: %w", l.ID, err)
	}
	return nil
}

func (t *ledgerTx) PutPrediction(ctx context.Context, p domain.Prediction) error {
	const query = `
		INSERT INTO predictions (league_id, market_id, participant, forecast, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (league_id, market_id, participant) DO UPDATE SET
			forecast = EXCLUDED.forecast,
			submitted_at = EXCLUDED.submitted_at`
	_, err := t.q.Exec(ctx, query,
		int64(p.LeagueID), p.MarketID.Hex(), p.Participant.Hex(), int16(p.Forecast), p.SubmittedAt)
	if err != nil {
		return fmt.Errorf("postgres: put prediction: %w", err)
	}
	return nil
}

func (t *ledgerTx) PutMarketOutcome(ctx context.Context, o domain.MarketOutcome) error {
	const query = `
		INSERT INTO market_outcomes (market_id, outcome, resolved_at) VALUES ($1, $2, $3)
		ON CONFLICT (market_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			resolved_at = EXCLUDED.resolved_at`
	if _, err := t.q.Exec(ctx, query, o.MarketID.Hex(), o.Outcome, o.ResolvedAt); err != nil {
		return fmt.Errorf("postgres: put market outcome: %w", err)
	}
	return nil
}

func (t *ledgerTx) PutScore(ctx context.Context, s domain.ScoreEntry) error {
	const query = `
		INSERT INTO scores (league_id, participant, score, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (league_id, participant) DO UPDATE SET
			score = EXCLUDED.score,
			updated_at = EXCLUDED.updated_at`
	if _, err := t.q.Exec(ctx, query, int64(s.LeagueID), s.Participant.Hex(), s.Score, s.UpdatedAt); err != nil {
		return fmt.Errorf("postgres: put score: %w", err)
	}
	return nil
}

func (t *ledgerTx) MarkResolutionApplied(ctx context.Context, m domain.ResolutionMark) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO resolution_applied (league_id, market_id, participant, delta, applied_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		int64(m.Key.LeagueID), m.Key.MarketID.Hex(), m.Key.Participant.Hex(), m.Delta, m.AppliedAt)
	if err != nil {
		return fmt.Errorf("postgres: mark resolution applied: %w", err)
	}
	return nil
}

func scanLeague(row pgx.Row) (domain.League, error) {
	var (
		l       domain.League
		id      int64
		creator string
	)
	if err := row.Scan(&id, &l.Name, &creator, &l.CreatedAt); err != nil {
		return domain.League{}, err
	}
	l.ID = uint64(id)
	l.Creator = common.HexToAddress(creator)
	l.CreatedAt = l.CreatedAt.UTC()
	l.Exists = true
	return l, nil
}

var (
	_ domain.LedgerStore = (*LedgerStore)(nil)
	_ domain.LedgerTx    = (*ledgerTx)(nil)
)
