package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// SubmitPrediction records caller's forecast for marketID in leagueID,
// replacing any earlier forecast for the same key.
func (l *Ledger) SubmitPrediction(ctx context.Context, caller domain.Account, leagueID uint64, marketID domain.MarketID, forecast int) error {
	const op = "submit prediction"
	key := domain.Key{LeagueID: leagueID, MarketID: marketID, Participant: caller}

	now := l.now()
	var events []domain.Event
	err := l.store.Atomic(ctx, func(tx domain.LedgerTx) error {
		if err := requireLeague(ctx, tx, op, key); err != nil {
			return err
		}
		if forecast < 0 || forecast > MaxForecast {
			return domain.NewLedgerError(op, domain.ErrValidation, key,
				fmt.Sprintf("%s: got %d", InvForecastRange, forecast))
		}
		if marketID == (domain.MarketID{}) {
			return domain.NewLedgerError(op, domain.ErrValidation, key, InvEmptyMarketID)
		}
		if caller == (domain.Account{}) {
			return domain.NewLedgerError(op, domain.ErrValidation, key, InvZeroParticipant)
		}

		p := domain.Prediction{
			LeagueID:    leagueID,
			MarketID:    marketID,
			Participant: caller,
			Exists:      true,
			Forecast:    uint8(forecast),
			SubmittedAt: now,
		}
		if err := tx.PutPrediction(ctx, p); err != nil {
			return err
		}
		ev := domain.Event{
			Type:        domain.EventPredictionSubmitted,
			LeagueID:    leagueID,
			MarketID:    marketID,
			Participant: caller,
			Forecast:    uint8(forecast),
			At:          now,
		}
		events = []domain.Event{ev}
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return l.finish(op, err)
	}

	l.logger.DebugContext(ctx, "prediction submitted",
		slog.Uint64("league_id", leagueID),
		slog.String("market_id", domain.FormatMarketID(marketID)),
		slog.String("participant", caller.Hex()),
		slog.Int("forecast", forecast),
	)
	l.publish(ctx, events)
	return l.finish(op, nil)
}

// GetPrediction returns the stored prediction for the key. An absent
// prediction is the zero value: Exists false, Forecast 0, zero SubmittedAt.
func (l *Ledger) GetPrediction(ctx context.Context, leagueID uint64, marketID domain.MarketID, participant domain.Account) (domain.Prediction, error) {
	p, err := l.store.GetPrediction(ctx, leagueID, marketID, participant)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("ledger: get prediction %d/%s/%s: %w",
			leagueID, domain.FormatMarketID(marketID), participant.Hex(), err)
	}
	if !p.Exists {
		return domain.Prediction{}, nil
	}
	return p, nil
}

func requireLeague(ctx context.Context, r domain.LedgerReader, op string, key domain.Key) error {
	_, err := r.GetLeague(ctx, key.LeagueID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewLedgerError(op, domain.ErrNotFound, key, InvLeagueNotFound)
	}
	return err
}
