package ledger

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/alanyoungcy/predictionleague/internal/access"
	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// UpdateScore adds delta to the score of participant in leagueID and returns
// the new total. Only callers the authorizer accepts may change scores.
func (l *Ledger) UpdateScore(ctx context.Context, caller domain.Account, leagueID uint64, participant domain.Account, delta int64) (int64, error) {
	const op = "update score"
	key := domain.Key{LeagueID: leagueID, Participant: participant}
	if err := l.authorize(ctx, op, caller, access.ActionUpdateScore, key); err != nil {
		return 0, l.finish(op, err)
	}

	var (
		total  int64
		events []domain.Event
	)
	err := l.store.Atomic(ctx, func(tx domain.LedgerTx) error {
		var (
			ev  domain.Event
			err error
		)
		total, ev, err = l.applyDelta(ctx, tx, op, key, delta)
		if err != nil {
			return err
		}
		events = []domain.Event{ev}
		return nil
	})
	if err != nil {
		return 0, l.finish(op, err)
	}

	l.logger.InfoContext(ctx, "score updated",
		slog.Uint64("league_id", leagueID),
		slog.String("participant", participant.Hex()),
		slog.Int64("delta", delta),
		slog.Int64("new_score", total),
	)
	l.publish(ctx, events)
	return total, l.finish(op, nil)
}

// ApplyResolutionDelta applies delta for a resolved (league, market,
// participant) key at most once. The applied check, the score update and the
// applied mark commit together. When the key was already applied the score
// is left alone and applied is false.
func (l *Ledger) ApplyResolutionDelta(ctx context.Context, caller domain.Account, key domain.Key, delta int64) (total int64, applied bool, err error) {
	const op = "apply resolution delta"
	if err := l.authorize(ctx, op, caller, access.ActionUpdateScore, key); err != nil {
		return 0, false, l.finish(op, err)
	}
	if key.MarketID == (domain.MarketID{}) {
		return 0, false, l.finish(op, domain.NewLedgerError(op, domain.ErrValidation, key, InvEmptyMarketID))
	}

	var events []domain.Event
	err = l.store.Atomic(ctx, func(tx domain.LedgerTx) error {
		events = nil
		applied = false
		done, err := tx.ResolutionApplied(ctx, key)
		if err != nil {
			return err
		}
		if done {
			total, err = tx.GetScore(ctx, key.LeagueID, key.Participant)
			return err
		}
		var ev domain.Event
		total, ev, err = l.applyDelta(ctx, tx, op, domain.Key{LeagueID: key.LeagueID, Participant: key.Participant}, delta)
		if err != nil {
			return err
		}
		if err := tx.MarkResolutionApplied(ctx, domain.ResolutionMark{Key: key, Delta: delta, AppliedAt: ev.At}); err != nil {
			return err
		}
		ev.MarketID = key.MarketID
		events = []domain.Event{ev}
		applied = true
		return nil
	})
	if err != nil {
		return 0, false, l.finish(op, err)
	}
	l.publish(ctx, events)
	return total, applied, l.finish(op, nil)
}

// applyDelta checks the score preconditions and writes the new total inside
// tx. It returns the score_updated event it appended.
func (l *Ledger) applyDelta(ctx context.Context, tx domain.LedgerTx, op string, key domain.Key, delta int64) (int64, domain.Event, error) {
	if err := requireLeague(ctx, tx, op, key); err != nil {
		return 0, domain.Event{}, err
	}
	if key.Participant == (domain.Account{}) {
		return 0, domain.Event{}, domain.NewLedgerError(op, domain.ErrValidation, key, InvZeroParticipant)
	}

	current, err := tx.GetScore(ctx, key.LeagueID, key.Participant)
	if err != nil {
		return 0, domain.Event{}, err
	}
	total, ok := addChecked(current, delta)
	if !ok {
		return 0, domain.Event{}, domain.NewLedgerError(op, domain.ErrOverflow, key,
			fmt.Sprintf("%s: %d + %d", InvScoreOverflow, current, delta))
	}

	now := l.now()
	if err := tx.PutScore(ctx, domain.ScoreEntry{
		LeagueID:    key.LeagueID,
		Participant: key.Participant,
		Score:       total,
		UpdatedAt:   now,
	}); err != nil {
		return 0, domain.Event{}, err
	}
	ev := domain.Event{
		Type:        domain.EventScoreUpdated,
		LeagueID:    key.LeagueID,
		Participant: key.Participant,
		Delta:       delta,
		NewScore:    total,
		At:          now,
	}
	if err := tx.AppendEvent(ctx, ev); err != nil {
		return 0, domain.Event{}, err
	}
	return total, ev, nil
}

// GetScore returns the score of participant in leagueID, zero if never
// updated.
func (l *Ledger) GetScore(ctx context.Context, leagueID uint64, participant domain.Account) (int64, error) {
	score, err := l.store.GetScore(ctx, leagueID, participant)
	if err != nil {
		return 0, fmt.Errorf("ledger: get score %d/%s: %w", leagueID, participant.Hex(), err)
	}
	return score, nil
}

// Leaderboard returns every scored participant of leagueID, best score first.
// Ties are broken by address.
func (l *Ledger) Leaderboard(ctx context.Context, leagueID uint64) ([]domain.ScoreEntry, error) {
	if _, err := l.GetLeague(ctx, leagueID); err != nil {
		return nil, err
	}
	entries, err := l.store.ListScores(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("ledger: leaderboard %d: %w", leagueID, err)
	}
	SortScores(entries)
	return entries, nil
}

// SortScores orders entries by score descending, then by participant.
func SortScores(entries []domain.ScoreEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return bytes.Compare(entries[i].Participant[:], entries[j].Participant[:]) < 0
	})
}

func addChecked(a, b int64) (int64, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}
