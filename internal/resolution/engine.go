// Package resolution turns a realized market outcome plus stored forecasts
// into score changes. A run writes the outcome once, then applies one Brier
// penalty per listed participant, strictly in list order.
//
// By default a run is not idempotent: running it twice for the same league
// and market applies every delta twice. With Config.Idempotent each
// (league, market, participant) delta is applied at most once.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/predictionleague/internal/domain"
	"github.com/alanyoungcy/predictionleague/internal/scoring"
)

// Ledger is the part of the ledger a run drives.
type Ledger interface {
	GetMarketOutcome(ctx context.Context, marketID domain.MarketID) (domain.MarketOutcome, error)
	SetMarketOutcome(ctx context.Context, caller domain.Account, marketID domain.MarketID, outcome bool) (domain.MarketOutcome, error)
	GetPrediction(ctx context.Context, leagueID uint64, marketID domain.MarketID, participant domain.Account) (domain.Prediction, error)
	GetScore(ctx context.Context, leagueID uint64, participant domain.Account) (int64, error)
	UpdateScore(ctx context.Context, caller domain.Account, leagueID uint64, participant domain.Account, delta int64) (int64, error)
	ApplyResolutionDelta(ctx context.Context, caller domain.Account, key domain.Key, delta int64) (int64, bool, error)
}

// MarketLookup fetches human-readable market context.
type MarketLookup interface {
	MarketByConditionID(ctx context.Context, conditionID domain.MarketID) (domain.MarketInfo, error)
}

// Archiver stores a finished report and returns where it was put.
type Archiver interface {
	Archive(ctx context.Context, r *Report) (string, error)
}

// Notifier delivers run notifications.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Recorder observes finished runs, e.g. for metrics.
type Recorder interface {
	ObserveResolution(r *Report)
}

// Notification event names.
const (
	EventRunCompleted = "resolution_completed"
	EventRunFailed    = "resolution_failed"
)

// Config controls a resolution engine.
type Config struct {
	// Operator is the privileged account the engine writes as.
	Operator domain.Account
	// Idempotent records applied deltas so reruns are safe.
	Idempotent bool
	// LockTTL bounds how long a run holds its distributed lock.
	LockTTL time.Duration
}

// Request is one resolution run's input.
type Request struct {
	LeagueID       uint64
	MarketID       domain.MarketID
	WinningOutcome bool
	Participants   []domain.Account
}

// Engine runs resolutions sequentially.
type Engine struct {
	ledger   Ledger
	cfg      Config
	markets  MarketLookup
	locker   domain.LockManager
	archiver Archiver
	notifier Notifier
	recorder Recorder
	now      func() time.Time
	newRunID func() string
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithMarketLookup(m MarketLookup) Option { return func(e *Engine) { e.markets = m } }
func WithLocker(l domain.LockManager) Option { return func(e *Engine) { e.locker = l } }
func WithArchiver(a Archiver) Option         { return func(e *Engine) { e.archiver = a } }
func WithNotifier(n Notifier) Option         { return func(e *Engine) { e.notifier = n } }
func WithRecorder(r Recorder) Option         { return func(e *Engine) { e.recorder = r } }
func WithLogger(l *slog.Logger) Option       { return func(e *Engine) { e.logger = l } }
func WithClock(now func() time.Time) Option  { return func(e *Engine) { e.now = now } }
func WithRunIDs(newID func() string) Option  { return func(e *Engine) { e.newRunID = newID } }

// NewEngine creates an Engine writing to ledger as cfg.Operator.
func NewEngine(ledger Ledger, cfg Config, opts ...Option) *Engine {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	e := &Engine{
		ledger:   ledger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		newRunID: uuid.NewString,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "resolution"))
	return e
}

// Resolve runs one resolution. The returned report is never nil; on failure
// it holds the participants processed before the error, and the error is a
// *RunError.
func (e *Engine) Resolve(ctx context.Context, req Request) (*Report, error) {
	report := &Report{
		RunID:          e.newRunID(),
		LeagueID:       req.LeagueID,
		MarketID:       req.MarketID,
		WinningOutcome: req.WinningOutcome,
		Idempotent:     e.cfg.Idempotent,
		Operator:       e.cfg.Operator,
		Requested:      len(req.Participants),
		Entries:        make([]Entry, 0, len(req.Participants)),
		StartedAt:      e.now(),
	}
	logger := e.logger.With(
		slog.String("run_id", report.RunID),
		slog.Uint64("league_id", req.LeagueID),
		slog.String("market_id", domain.FormatMarketID(req.MarketID)),
	)
	logger.InfoContext(ctx, "resolution started",
		slog.String("winning_outcome", domain.OutcomeLabel(req.WinningOutcome)),
		slog.Int("participants", len(req.Participants)),
		slog.Bool("idempotent", e.cfg.Idempotent),
	)

	marketKey := domain.Key{LeagueID: req.LeagueID, MarketID: req.MarketID}
	if e.locker != nil {
		lockKey := fmt.Sprintf("resolution:%d:%s", req.LeagueID, req.MarketID.Hex())
		unlock, err := e.locker.Acquire(ctx, lockKey, e.cfg.LockTTL)
		if err != nil {
			return e.finish(ctx, logger, report, &RunError{Stage: "acquire run lock", Key: marketKey, Err: err})
		}
		defer unlock()
	}

	e.describeMarket(ctx, logger, report)

	if err := e.resolveOutcome(ctx, logger, req, report); err != nil {
		return e.finish(ctx, logger, report, &RunError{Stage: "resolve outcome", Key: marketKey, Err: err})
	}

	for _, participant := range req.Participants {
		key := domain.Key{LeagueID: req.LeagueID, MarketID: req.MarketID, Participant: participant}
		if err := ctx.Err(); err != nil {
			return e.finish(ctx, logger, report, &RunError{Stage: "cancelled", Key: key, Err: err})
		}
		entry, err := e.scoreParticipant(ctx, req, participant)
		if err != nil {
			entry.Status = StatusFailed
			entry.Error = err.Error()
			report.Entries = append(report.Entries, entry)
			return e.finish(ctx, logger, report, &RunError{Stage: "score participant", Key: key, Err: err})
		}
		report.Entries = append(report.Entries, entry)
		logEntry(ctx, logger, entry)
	}

	report.Completed = true
	return e.finish(ctx, logger, report, nil)
}

// describeMarket attaches provider context to the report. Provider failures
// are recorded and logged, never returned.
func (e *Engine) describeMarket(ctx context.Context, logger *slog.Logger, report *Report) {
	if e.markets == nil {
		return
	}
	info, err := e.markets.MarketByConditionID(ctx, report.MarketID)
	if err != nil {
		report.MarketError = err.Error()
		logger.WarnContext(ctx, "market lookup failed, continuing without context",
			slog.String("error", err.Error()),
			slog.Bool("provider_error", errors.Is(err, domain.ErrProvider)),
		)
		return
	}
	report.Market = &info

	attrs := []any{
		slog.String("question", info.Question),
		slog.String("slug", info.Slug),
		slog.Bool("closed", info.Closed),
		slog.String("uma_resolution_status", info.UMAResolutionStatus),
		slog.Any("outcomes", info.Outcomes),
		slog.Any("outcome_prices", info.OutcomePrices),
	}
	if !info.EndDate.IsZero() {
		attrs = append(attrs, slog.Time("end_date", info.EndDate))
	}
	logger.InfoContext(ctx, "market context", attrs...)
	if !info.Closed {
		logger.WarnContext(ctx, "provider reports market still open")
	}
}

func (e *Engine) resolveOutcome(ctx context.Context, logger *slog.Logger, req Request, report *Report) error {
	current, err := e.ledger.GetMarketOutcome(ctx, req.MarketID)
	if err != nil {
		return err
	}
	if current.Resolved {
		report.RecordedOutcome = current.Outcome
		logger.InfoContext(ctx, "market already resolved, skipping outcome write",
			slog.String("recorded_outcome", domain.OutcomeLabel(current.Outcome)),
			slog.Time("resolved_at", current.ResolvedAt),
		)
		if current.Outcome != req.WinningOutcome {
			logger.WarnContext(ctx, "recorded outcome differs from requested outcome, scoring with requested",
				slog.String("recorded_outcome", domain.OutcomeLabel(current.Outcome)),
				slog.String("requested_outcome", domain.OutcomeLabel(req.WinningOutcome)),
			)
		}
		return nil
	}

	if _, err := e.ledger.SetMarketOutcome(ctx, e.cfg.Operator, req.MarketID, req.WinningOutcome); err != nil {
		return err
	}
	report.OutcomeWritten = true
	report.RecordedOutcome = req.WinningOutcome
	return nil
}

func (e *Engine) scoreParticipant(ctx context.Context, req Request, participant domain.Account) (Entry, error) {
	entry := Entry{Participant: participant}

	pred, err := e.ledger.GetPrediction(ctx, req.LeagueID, req.MarketID, participant)
	if err != nil {
		return entry, err
	}
	if !pred.Exists {
		entry.Status = StatusSkipped
		return entry, nil
	}
	entry.Forecast = pred.Forecast

	penalty, err := scoring.BrierPenalty(int(pred.Forecast), req.WinningOutcome)
	if err != nil {
		return entry, err
	}
	entry.Penalty = penalty
	entry.Delta = scoring.Delta(penalty)

	entry.PreviousScore, err = e.ledger.GetScore(ctx, req.LeagueID, participant)
	if err != nil {
		return entry, err
	}

	if e.cfg.Idempotent {
		key := domain.Key{LeagueID: req.LeagueID, MarketID: req.MarketID, Participant: participant}
		total, applied, err := e.ledger.ApplyResolutionDelta(ctx, e.cfg.Operator, key, entry.Delta)
		if err != nil {
			return entry, err
		}
		entry.NewScore = total
		entry.Status = StatusScored
		if !applied {
			entry.Status = StatusAlreadyApplied
		}
		return entry, nil
	}

	entry.NewScore, err = e.ledger.UpdateScore(ctx, e.cfg.Operator, req.LeagueID, participant, entry.Delta)
	if err != nil {
		return entry, err
	}
	entry.Status = StatusScored
	return entry, nil
}

func (e *Engine) finish(ctx context.Context, logger *slog.Logger, report *Report, runErr *RunError) (*Report, error) {
	report.FinishedAt = e.now()
	if runErr != nil {
		runErr.Report = report
		report.Error = runErr.Error()
		logger.ErrorContext(ctx, "resolution stopped",
			slog.String("stage", runErr.Stage),
			slog.String("key", runErr.Key.String()),
			slog.Int("processed", len(report.Entries)-report.Count(StatusFailed)),
			slog.Int("requested", report.Requested),
			slog.String("error", runErr.Err.Error()),
		)
	} else {
		logger.InfoContext(ctx, "resolution completed",
			slog.Int("scored", report.Count(StatusScored)),
			slog.Int("skipped", report.Count(StatusSkipped)),
			slog.Int("already_applied", report.Count(StatusAlreadyApplied)),
		)
		if !report.Idempotent {
			logger.WarnContext(ctx, "resolution is not idempotent: running it again for this league and market applies every delta a second time")
		}
	}

	// Archive and notify even after a cancelled run.
	bg := context.WithoutCancel(ctx)
	if e.archiver != nil {
		path, err := e.archiver.Archive(bg, report)
		if err != nil {
			logger.WarnContext(ctx, "report archive failed", slog.String("error", err.Error()))
		} else {
			report.ArchivePath = path
			logger.InfoContext(ctx, "report archived", slog.String("path", path))
		}
	}
	if e.notifier != nil {
		event, title := EventRunCompleted, "Resolution completed"
		msg := report.Summary()
		if runErr != nil {
			event, title = EventRunFailed, "Resolution failed"
			msg += "\n" + runErr.Error()
		}
		if err := e.notifier.Notify(bg, event, title, msg); err != nil {
			logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
		}
	}
	if e.recorder != nil {
		e.recorder.ObserveResolution(report)
	}

	if runErr != nil {
		return report, runErr
	}
	return report, nil
}

func logEntry(ctx context.Context, logger *slog.Logger, entry Entry) {
	if entry.Status == StatusSkipped {
		logger.InfoContext(ctx, "no prediction, skipping participant",
			slog.String("participant", entry.Participant.Hex()))
		return
	}
	logger.InfoContext(ctx, "participant scored",
		slog.String("participant", entry.Participant.Hex()),
		slog.String("status", string(entry.Status)),
		slog.Int("forecast", int(entry.Forecast)),
		slog.Int64("penalty", entry.Penalty),
		slog.Int64("delta", entry.Delta),
		slog.Int64("current_score", entry.PreviousScore),
		slog.Int64("new_score", entry.NewScore),
	)
}
