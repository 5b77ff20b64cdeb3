package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrProvider     = errors.New("market data provider error")
	ErrOverflow     = errors.New("score overflow")
	ErrRateLimited  = errors.New("rate limited")
	ErrLockHeld     = errors.New("lock already held")
)

// Key locates a ledger entry. Zero-valued parts are left out of messages.
type Key struct {
	LeagueID    uint64
	MarketID    MarketID
	Participant Account
}

func (k Key) String() string {
	var parts []string
	if k.LeagueID != 0 {
		parts = append(parts, fmt.Sprintf("league=%d", k.LeagueID))
	}
	if k.MarketID != (MarketID{}) {
		parts = append(parts, "market="+FormatMarketID(k.MarketID))
	}
	if k.Participant != (Account{}) {
		parts = append(parts, "participant="+k.Participant.Hex())
	}
	return strings.Join(parts, " ")
}

// LedgerError is returned when a ledger operation is rejected. Kind is one of
// the sentinel errors above and is what errors.Is matches against.
type LedgerError struct {
	Op        string
	Key       Key
	Invariant string
	Kind      error
}

func (e *LedgerError) Error() string {
	var b strings.Builder
	b.WriteString("ledger: ")
	b.WriteString(e.Op)
	if k := e.Key.String(); k != "" {
		b.WriteString(" [")
		b.WriteString(k)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Invariant)
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	return b.String()
}

func (e *LedgerError) Unwrap() error { return e.Kind }

// NewLedgerError builds a LedgerError for op on key.
func NewLedgerError(op string, kind error, key Key, invariant string) error {
	return &LedgerError{Op: op, Key: key, Invariant: invariant, Kind: kind}
}
