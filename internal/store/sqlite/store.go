// Package sqlite is a single-file domain.LedgerStore on modernc.org/sqlite.
// The pool is limited to one connection, so write transactions are totally
// ordered.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// Store implements domain.LedgerStore on SQLite.
type Store struct {
	queries
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema. Use
// ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{`PRAGMA foreign_keys=ON`, `PRAGMA busy_timeout=5000`}
	if path != ":memory:" {
		pragmas = append(pragmas, `PRAGMA journal_mode=WAL`)
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	s := &Store{queries: queries{q: db}, db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create tables: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ledger_counters (
			name  TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)`,
		`INSERT OR IGNORE INTO ledger_counters (name, value) VALUES ('next_league_id', 1)`,
		`CREATE TABLE IF NOT EXISTS leagues (
			id         INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			creator    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			league_id    INTEGER NOT NULL REFERENCES leagues(id),
			market_id    TEXT NOT NULL,
			participant  TEXT NOT NULL,
			forecast     INTEGER NOT NULL CHECK (forecast BETWEEN 0 AND 100),
			submitted_at INTEGER NOT NULL,
			PRIMARY KEY (league_id, market_id, participant)
		)`,
		`CREATE TABLE IF NOT EXISTS market_outcomes (
			market_id   TEXT PRIMARY KEY,
			outcome     INTEGER NOT NULL,
			resolved_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			league_id   INTEGER NOT NULL REFERENCES leagues(id),
			participant TEXT NOT NULL,
			score       INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL,
			PRIMARY KEY (league_id, participant)
		)`,
		`CREATE TABLE IF NOT EXISTS resolution_applied (
			league_id   INTEGER NOT NULL,
			market_id   TEXT NOT NULL,
			participant TEXT NOT NULL,
			delta       INTEGER NOT NULL,
			applied_at  INTEGER NOT NULL,
			PRIMARY KEY (league_id, market_id, participant)
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_events (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			type        TEXT NOT NULL,
			league_id   INTEGER NOT NULL DEFAULT 0,
			market_id   TEXT NOT NULL DEFAULT '',
			participant TEXT NOT NULL DEFAULT '',
			name        TEXT NOT NULL DEFAULT '',
			forecast    INTEGER NOT NULL DEFAULT 0,
			outcome     INTEGER NOT NULL DEFAULT 0,
			delta       INTEGER NOT NULL DEFAULT 0,
			new_score   INTEGER NOT NULL DEFAULT 0,
			at          INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_league ON scores(league_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Atomic runs fn inside one SQLite transaction. fn's error is returned
// unchanged after rollback.
func (s *Store) Atomic(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if err := fn(&tx{queries: queries{q: sqlTx}}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, type, league_id, market_id, participant, name, forecast, outcome, delta, new_score, at
		 FROM ledger_events ORDER BY seq LIMIT ? OFFSET ?`, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var (
			ev               domain.Event
			typ, market, who string
			outcome          bool
			at               int64
		)
		if err := rows.Scan(&ev.Seq, &typ, &ev.LeagueID, &market, &who, &ev.Name,
			&ev.Forecast, &outcome, &ev.Delta, &ev.NewScore, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scan event: %w", err)
		}
		ev.Type = domain.EventType(typ)
		ev.MarketID = decodeMarket(market)
		ev.Participant = decodeAccount(who)
		ev.Outcome = outcome
		ev.At = fromNanos(at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

var (
	_ domain.LedgerStore = (*Store)(nil)
	_ domain.LedgerTx    = (*tx)(nil)
)

// errNoRows reports whether err means the row is absent.
func errNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
