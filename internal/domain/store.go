package domain

import "context"

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// LedgerReader is the read side of the ledger, shared by stores and open
// transactions. Lookups of predictions, outcomes and scores return zero
// values for absent keys; only GetLeague reports ErrNotFound.
type LedgerReader interface {
	NextLeagueID(ctx context.Context) (uint64, error)
	GetLeague(ctx context.Context, id uint64) (League, error)
	ListLeagues(ctx context.Context) ([]League, error)
	GetPrediction(ctx context.Context, leagueID uint64, marketID MarketID, participant Account) (Prediction, error)
	GetMarketOutcome(ctx context.Context, marketID MarketID) (MarketOutcome, error)
	GetScore(ctx context.Context, leagueID uint64, participant Account) (int64, error)
	ListScores(ctx context.Context, leagueID uint64) ([]ScoreEntry, error)
	ResolutionApplied(ctx context.Context, key Key) (bool, error)
}

// LedgerTx is an open write transaction. Nothing written through it is
// visible outside the transaction until Atomic returns nil.
type LedgerTx interface {
	LedgerReader
	AllocateLeagueID(ctx context.Context) (uint64, error)
	InsertLeague(ctx context.Context, league League) error
	PutPrediction(ctx context.Context, p Prediction) error
	PutMarketOutcome(ctx context.Context, o MarketOutcome) error
	PutScore(ctx context.Context, s ScoreEntry) error
	MarkResolutionApplied(ctx context.Context, mark ResolutionMark) error
	AppendEvent(ctx context.Context, ev Event) error
}

// LedgerStore persists the ledger. Atomic runs fn as one indivisible write:
// either every write fn made is applied or none is, and concurrent Atomic
// calls are serialized.
type LedgerStore interface {
	LedgerReader
	Atomic(ctx context.Context, fn func(tx LedgerTx) error) error
	ListEvents(ctx context.Context, opts ListOpts) ([]Event, error)
	Close() error
}
