package domain

import (
	"fmt"
	"strings"
	"time"
)

// League is a named forecasting competition. Creator is informational only.
type League struct {
	ID        uint64
	Name      string
	Creator   Account
	Exists    bool
	CreatedAt time.Time
}

// Prediction is a participant's forecast for one market inside one league.
// The zero value means "no prediction".
type Prediction struct {
	LeagueID    uint64
	MarketID    MarketID
	Participant Account
	Exists      bool
	Forecast    uint8 // percent probability of "yes", 0-100
	SubmittedAt time.Time
}

// Key returns the prediction's ledger key.
func (p Prediction) Key() Key {
	return Key{LeagueID: p.LeagueID, MarketID: p.MarketID, Participant: p.Participant}
}

// MarketOutcome is the realized result of a market, shared by every league
// that references it.
type MarketOutcome struct {
	MarketID   MarketID
	Resolved   bool
	Outcome    bool
	ResolvedAt time.Time
}

// ScoreEntry is the running score of one participant in one league.
type ScoreEntry struct {
	LeagueID    uint64
	Participant Account
	Score       int64
	UpdatedAt   time.Time
}

// ResolutionMark records that a resolution delta was applied to a
// (league, market, participant) key.
type ResolutionMark struct {
	Key       Key
	Delta     int64
	AppliedAt time.Time
}

// OutcomeLabel renders a boolean outcome as "yes" or "no".
func OutcomeLabel(outcome bool) string {
	if outcome {
		return "yes"
	}
	return "no"
}

// ParseOutcome accepts "yes" or "no" in any case.
func ParseOutcome(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("%w: outcome must be yes or no, got %q", ErrValidation, s)
	}
}
