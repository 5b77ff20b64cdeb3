package resolution

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// EntryStatus says what happened to one participant during a run.
type EntryStatus string

const (
	StatusScored         EntryStatus = "scored"
	StatusSkipped        EntryStatus = "skipped"
	StatusAlreadyApplied EntryStatus = "already_applied"
	StatusFailed         EntryStatus = "failed"
)

// Entry is the per-participant line of a report.
type Entry struct {
	Participant   domain.Account `json:"participant"`
	Status        EntryStatus    `json:"status"`
	Forecast      uint8          `json:"forecast"`
	Penalty       int64          `json:"penalty"`
	Delta         int64          `json:"delta"`
	PreviousScore int64          `json:"previous_score"`
	NewScore      int64          `json:"new_score"`
	Error         string         `json:"error,omitempty"`
}

// Report describes one resolution run. A failed run still returns its
// report, listing exactly the participants whose scores were changed.
type Report struct {
	RunID          string             `json:"run_id"`
	LeagueID       uint64             `json:"league_id"`
	MarketID       domain.MarketID    `json:"market_id"`
	WinningOutcome bool               `json:"winning_outcome"`
	Idempotent     bool               `json:"idempotent"`
	Operator       domain.Account     `json:"operator"`
	Market         *domain.MarketInfo `json:"market,omitempty"`
	MarketError    string             `json:"market_error,omitempty"`

	// OutcomeWritten is false when the market was already resolved and the
	// oracle write was skipped. RecordedOutcome is the oracle's value then.
	OutcomeWritten  bool `json:"outcome_written"`
	RecordedOutcome bool `json:"recorded_outcome"`

	Requested   int       `json:"requested"`
	Entries     []Entry   `json:"entries"`
	Completed   bool      `json:"completed"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	ArchivePath string    `json:"-"`
}

// Count returns how many entries have status s.
func (r *Report) Count(s EntryStatus) int {
	n := 0
	for _, e := range r.Entries {
		if e.Status == s {
			n++
		}
	}
	return n
}

// Summary is a one-line description of the run for logs and notifications.
func (r *Report) Summary() string {
	state := "completed"
	if !r.Completed {
		state = "stopped"
	}
	return fmt.Sprintf("league %d market %s resolved %s: %s, %d scored, %d skipped, %d already applied, %d of %d processed",
		r.LeagueID, domain.FormatMarketID(r.MarketID), domain.OutcomeLabel(r.WinningOutcome), state,
		r.Count(StatusScored), r.Count(StatusSkipped), r.Count(StatusAlreadyApplied),
		len(r.Entries)-r.Count(StatusFailed), r.Requested)
}

// RunError is returned when a run stops early. Report holds the partial
// progress; Key names the entry that failed.
type RunError struct {
	Stage  string
	Key    domain.Key
	Report *Report
	Err    error
}

func (e *RunError) Error() string {
	processed := 0
	if e.Report != nil {
		processed = len(e.Report.Entries) - e.Report.Count(StatusFailed)
	}
	requested := 0
	if e.Report != nil {
		requested = e.Report.Requested
	}
	return fmt.Sprintf("resolution: %s [%s]: %v (%d of %d participants processed before failure)",
		e.Stage, e.Key, e.Err, processed, requested)
}

func (e *RunError) Unwrap() error { return e.Err }
