package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/predictionleague/internal/access"
	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// SetMarketOutcome records the realized outcome of marketID. Only callers the
// authorizer accepts may resolve markets. A market that is already resolved
// is overwritten: corrections are allowed.
func (l *Ledger) SetMarketOutcome(ctx context.Context, caller domain.Account, marketID domain.MarketID, outcome bool) (domain.MarketOutcome, error) {
	const op = "set market outcome"
	key := domain.Key{MarketID: marketID}
	if err := l.authorize(ctx, op, caller, access.ActionSetMarketOutcome, key); err != nil {
		return domain.MarketOutcome{}, l.finish(op, err)
	}
	if marketID == (domain.MarketID{}) {
		return domain.MarketOutcome{}, l.finish(op, domain.NewLedgerError(op, domain.ErrValidation, key, InvEmptyMarketID))
	}

	mo := domain.MarketOutcome{MarketID: marketID, Resolved: true, Outcome: outcome, ResolvedAt: l.now()}
	var (
		previous domain.MarketOutcome
		events   []domain.Event
	)
	err := l.store.Atomic(ctx, func(tx domain.LedgerTx) error {
		var err error
		previous, err = tx.GetMarketOutcome(ctx, marketID)
		if err != nil {
			return err
		}
		if err := tx.PutMarketOutcome(ctx, mo); err != nil {
			return err
		}
		ev := domain.Event{Type: domain.EventMarketResolved, MarketID: marketID, Outcome: outcome, At: mo.ResolvedAt}
		events = []domain.Event{ev}
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return domain.MarketOutcome{}, l.finish(op, err)
	}

	attrs := []any{
		slog.String("market_id", domain.FormatMarketID(marketID)),
		slog.String("outcome", domain.OutcomeLabel(outcome)),
	}
	if previous.Resolved {
		l.logger.WarnContext(ctx, "market outcome overwritten",
			append(attrs, slog.String("previous_outcome", domain.OutcomeLabel(previous.Outcome)))...)
	} else {
		l.logger.InfoContext(ctx, "market resolved", attrs...)
	}
	l.publish(ctx, events)
	return mo, l.finish(op, nil)
}

// GetMarketOutcome returns the recorded outcome of marketID, or the
// unresolved zero value.
func (l *Ledger) GetMarketOutcome(ctx context.Context, marketID domain.MarketID) (domain.MarketOutcome, error) {
	mo, err := l.store.GetMarketOutcome(ctx, marketID)
	if err != nil {
		return domain.MarketOutcome{}, fmt.Errorf("ledger: get market outcome %s: %w", domain.FormatMarketID(marketID), err)
	}
	if !mo.Resolved {
		return domain.MarketOutcome{MarketID: marketID}, nil
	}
	return mo, nil
}
