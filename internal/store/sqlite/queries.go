package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements domain.LedgerReader over either the database or an open
// transaction.
type queries struct {
	q querier
}

func (r queries) NextLeagueID(ctx context.Context) (uint64, error) {
	var next uint64
	err := r.q.QueryRowContext(ctx,
		`SELECT value FROM ledger_counters WHERE name = 'next_league_id'`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("sqlite: next league id: %w", err)
	}
	return next, nil
}

func (r queries) GetLeague(ctx context.Context, id uint64) (domain.League, error) {
	var (
		l         domain.League
		creator   string
		createdAt int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, creator, created_at FROM leagues WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &creator, &createdAt)
	if errNoRows(err) {
		return domain.League{}, fmt.Errorf("sqlite: league %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.League{}, fmt.Errorf("sqlite: get league %d: %w", id, err)
	}
	l.Creator = decodeAccount(creator)
	l.CreatedAt = fromNanos(createdAt)
	l.Exists = true
	return l, nil
}

func (r queries) ListLeagues(ctx context.Context) ([]domain.League, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name, creator, created_at FROM leagues ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list leagues: %w", err)
	}
	defer rows.Close()

	var out []domain.League
	for rows.Next() {
		var (
			l         domain.League
			creator   string
			createdAt int64
		)
		if err := rows.Scan(&l.ID, &l.Name, &creator, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan league: %w", err)
		}
		l.Creator = decodeAccount(creator)
		l.CreatedAt = fromNanos(createdAt)
		l.Exists = true
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r queries) GetPrediction(ctx context.Context, leagueID uint64, marketID domain.MarketID, participant domain.Account) (domain.Prediction, error) {
	var (
		forecast    uint8
		submittedAt int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT forecast, submitted_at FROM predictions
		 WHERE league_id = ? AND market_id = ? AND participant = ?`,
		leagueID, marketID.Hex(), participant.Hex(),
	).Scan(&forecast, &submittedAt)
	if errNoRows(err) {
		return domain.Prediction{}, nil
	}
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("sqlite: get prediction: %w", err)
	}
	return domain.Prediction{
		LeagueID:    leagueID,
		MarketID:    marketID,
		Participant: participant,
		Exists:      true,
		Forecast:    forecast,
		SubmittedAt: fromNanos(submittedAt),
	}, nil
}

func (r queries) GetMarketOutcome(ctx context.Context, marketID domain.MarketID) (domain.MarketOutcome, error) {
	var (
		outcome    bool
		resolvedAt int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT outcome, resolved_at FROM market_outcomes WHERE market_id = ?`, marketID.Hex(),
	).Scan(&outcome, &resolvedAt)
	if errNoRows(err) {
		return domain.MarketOutcome{}, nil
	}
	if err != nil {
		return domain.MarketOutcome{}, fmt.Errorf("sqlite: get market outcome: %w", err)
	}
	return domain.MarketOutcome{MarketID: marketID, Resolved: true, Outcome: outcome, ResolvedAt: fromNanos(resolvedAt)}, nil
}

func (r queries) GetScore(ctx context.Context, leagueID uint64, participant domain.Account) (int64, error) {
	var score int64
	err := r.q.QueryRowContext(ctx,
		`SELECT score FROM scores WHERE league_id = ? AND participant = ?`, leagueID, participant.Hex(),
	).Scan(&score)
	if errNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: get score: %w", err)
	}
	return score, nil
}

func (r queries) ListScores(ctx context.Context, leagueID uint64) ([]domain.ScoreEntry, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT participant, score, updated_at FROM scores WHERE league_id = ? ORDER BY participant`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list scores: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoreEntry
	for rows.Next() {
		var (
			who       string
			score     int64
			updatedAt int64
		)
		if err := rows.Scan(&who, &score, &updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan score: %w", err)
		}
		out = append(out, domain.ScoreEntry{
			LeagueID:    leagueID,
			Participant: decodeAccount(who),
			Score:       score,
			UpdatedAt:   fromNanos(updatedAt),
		})
	}
	return out, rows.Err()
}

func (r queries) ResolutionApplied(ctx context.Context, key domain.Key) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx,
		`SELECT 1 FROM resolution_applied WHERE league_id = ? AND market_id = ? AND participant = ?`,
		key.LeagueID, key.MarketID.Hex(), key.Participant.Hex(),
	).Scan(&one)
	if errNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: resolution applied: %w", err)
	}
	return true, nil
}

// tx adds the write side on top of an open transaction.
type tx struct {
	queries
}

func (t *tx) AllocateLeagueID(ctx context.Context) (uint64, error) {
	var id uint64
	err := t.q.QueryRowContext(ctx,
		`UPDATE ledger_counters SET value = value + 1 WHERE name = 'next_league_id' RETURNING value - 1`,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sqlite: allocate league id: %w", err)
	}
	return id, nil
}

func (t *tx) InsertLeague(ctx context.Context, l domain.League) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO leagues (id, name, creator, created_at) VALUES (?, ?, ?, ?)`,
		l.ID, l.Name, l.Creator.Hex(), toNanos(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: insert league %d: %w", l.ID, err)
	}
	return nil
}

func (t *tx) PutPrediction(ctx context.Context, p domain.Prediction) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO predictions (league_id, market_id, participant, forecast, submitted_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (league_id, market_id, participant)
		 DO UPDATE SET forecast = excluded.forecast, submitted_at = excluded.submitted_at`,
		p.LeagueID, p.MarketID.Hex(), p.Participant.Hex(), p.Forecast, toNanos(p.SubmittedAt))
	if err != nil {
		return fmt.Errorf("sqlite: put prediction: %w", err)
	}
	return nil
}

func (t *tx) PutMarketOutcome(ctx context.Context, o domain.MarketOutcome) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO market_outcomes (market_id, outcome, resolved_at) VALUES (?, ?, ?)
		 ON CONFLICT (market_id) DO UPDATE SET outcome = excluded.outcome, resolved_at = excluded.resolved_at`,
		o.MarketID.Hex(), o.Outcome, toNanos(o.ResolvedAt))
	if err != nil {
		return fmt.Errorf("sqlite: put market outcome: %w", err)
	}
	return nil
}

func (t *tx) PutScore(ctx context.Context, s domain.ScoreEntry) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO scores (league_id, participant, score, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (league_id, participant) DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at`,
		s.LeagueID, s.Participant.Hex(), s.Score, toNanos(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: put score: %w", err)
	}
	return nil
}

func (t *tx) MarkResolutionApplied(ctx context.Context, m domain.ResolutionMark) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO resolution_applied (league_id, market_id, participant, delta, applied_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.Key.LeagueID, m.Key.MarketID.Hex(), m.Key.Participant.Hex(), m.Delta, toNanos(m.AppliedAt))
	if err != nil {
		return fmt.Errorf("sqlite: mark resolution applied: %w", err)
	}
	return nil
}

func (t *tx) AppendEvent(ctx context.Context, ev domain.Event) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO ledger_events (type, league_id, market_id, participant, name, forecast, outcome, delta, new_score, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ev.Type), ev.LeagueID, encodeMarket(ev.MarketID), encodeAccount(ev.Participant),
		ev.Name, ev.Forecast, ev.Outcome, ev.Delta, ev.NewScore, toNanos(ev.At))
	if err != nil {
		return fmt.Errorf("sqlite: append event: %w", err)
	}
	return nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func encodeMarket(id domain.MarketID) string {
	if id == (domain.MarketID{}) {
		return ""
	}
	return id.Hex()
}

func decodeMarket(s string) domain.MarketID {
	if s == "" {
		return domain.MarketID{}
	}
	return common.HexToHash(s)
}

func encodeAccount(a domain.Account) string {
	if a == (domain.Account{}) {
		return ""
	}
	return a.Hex()
}

func decodeAccount(s string) domain.Account {
	if s == "" {
		return domain.Account{}
	}
	return common.HexToAddress(s)
}
