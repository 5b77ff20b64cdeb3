package domain

import (
	"context"
	"time"
)

// EventType names a ledger event.
type EventType string

const (
	EventLeagueCreated       EventType = "league_created"
	EventPredictionSubmitted EventType = "prediction_submitted"
	EventMarketResolved      EventType = "market_resolved"
	EventScoreUpdated        EventType = "score_updated"
)

// Event is an entry of the ledger's append-only event log. Which fields are
// meaningful depends on Type.
type Event struct {
	Seq         int64     `json:"seq,omitempty"`
	Type        EventType `json:"type"`
	LeagueID    uint64    `json:"league_id,omitempty"`
	MarketID    MarketID  `json:"market_id"`
	Participant Account   `json:"participant"`
	Name        string    `json:"name,omitempty"`
	Forecast    uint8     `json:"forecast"`
	Outcome     bool      `json:"outcome"`
	Delta       int64     `json:"delta"`
	NewScore    int64     `json:"new_score"`
	At          time.Time `json:"at"`
}

// EventSink receives events after the transaction that produced them has
// committed.
type EventSink interface {
	Publish(ctx context.Context, events ...Event) error
}
