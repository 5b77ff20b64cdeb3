package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// AppendEvent stores ev in the ledger_events log as JSONB, in the same
// transaction as the write that produced it.
func (t *ledgerTx) AppendEvent(ctx context.Context, ev domain.Event) error {
	detail, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("postgres: marshal event %s: %w", ev.Type, err)
	}
	const query = `INSERT INTO ledger_events (type, detail, created_at) VALUES ($1, $2, $3)`
	if _, err := t.q.Exec(ctx, query, string(ev.Type), detail, ev.At); err != nil {
		return fmt.Errorf("postgres: append event %s: %w", ev.Type, err)
	}
	return nil
}

// ListEvents returns the event log oldest first with pagination.
func (s *LedgerStore) ListEvents(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	query := `SELECT seq, detail FROM ledger_events ORDER BY seq`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			seq    int64
			detail []byte
		)
		if err := rows.Scan(&seq, &detail); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		var ev domain.Event
		if err := json.Unmarshal(detail, &ev); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal event %d: %w", seq, err)
		}
		ev.Seq = seq
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", err)
	}
	return events, nil
}
