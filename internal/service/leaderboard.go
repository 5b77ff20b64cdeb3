package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// LeagueReader is the read side of the ledger the leaderboard needs.
type LeagueReader interface {
	GetLeague(ctx context.Context, id uint64) (domain.League, error)
	Leaderboard(ctx context.Context, leagueID uint64) ([]domain.ScoreEntry, error)
	GetPrediction(ctx context.Context, leagueID uint64, marketID domain.MarketID, participant domain.Account) (domain.Prediction, error)
	GetMarketOutcome(ctx context.Context, marketID domain.MarketID) (domain.MarketOutcome, error)
}

// Standing is one row of a league table. Equal scores share a rank.
type Standing struct {
	Rank        int
	Participant domain.Account
	Score       int64
	// Predictions holds the participant's forecast per requested market, in
	// request order. Entries without a prediction have Exists false.
	Predictions []domain.Prediction
}

// Table is a league's standings together with the state of the requested
// markets.
type Table struct {
	League    domain.League
	Markets   []domain.MarketOutcome
	Standings []Standing
}

// LeaderboardService builds league tables.
type LeaderboardService struct {
	ledger      LeagueReader
	concurrency int
	logger      *slog.Logger
}

// NewLeaderboardService creates a LeaderboardService issuing at most
// concurrency ledger reads at a time.
func NewLeaderboardService(ledger LeagueReader, concurrency int, logger *slog.Logger) *LeaderboardService {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &LeaderboardService{ledger: ledger, concurrency: concurrency, logger: logger}
}

// Table returns the standings of a league, with each participant's forecasts
// for markets.
func (s *LeaderboardService) Table(ctx context.Context, leagueID uint64, markets []domain.MarketID) (Table, error) {
	league, err := s.ledger.GetLeague(ctx, leagueID)
	if err != nil {
		return Table{}, fmt.Errorf("leaderboard: %w", err)
	}
	scores, err := s.ledger.Leaderboard(ctx, leagueID)
	if err != nil {
		return Table{}, fmt.Errorf("leaderboard: %w", err)
	}

	t := Table{
		League:    league,
		Markets:   make([]domain.MarketOutcome, len(markets)),
		Standings: Rank(scores),
	}
	for i := range t.Standings {
		t.Standings[i].Predictions = make([]domain.Prediction, len(markets))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for mi, marketID := range markets {
		g.Go(func() error {
			mo, err := s.ledger.GetMarketOutcome(gctx, marketID)
			if err != nil {
				return err
			}
			t.Markets[mi] = mo
			return nil
		})
		for si := range t.Standings {
			participant := t.Standings[si].Participant
			g.Go(func() error {
				p, err := s.ledger.GetPrediction(gctx, leagueID, marketID, participant)
				if err != nil {
					return err
				}
				t.Standings[si].Predictions[mi] = p
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return Table{}, fmt.Errorf("leaderboard: league %d: %w", leagueID, err)
	}

	s.logger.DebugContext(ctx, "leaderboard built",
		slog.Uint64("league_id", leagueID),
		slog.Int("participants", len(t.Standings)),
		slog.Int("markets", len(markets)),
	)
	return t, nil
}

// Rank turns sorted score entries into standings using competition ranking
// (1, 2, 2, 4).
func Rank(scores []domain.ScoreEntry) []Standing {
	out := make([]Standing, len(scores))
	for i, e := range scores {
		rank := i + 1
		if i > 0 && e.Score == scores[i-1].Score {
			rank = out[i-1].Rank
		}
		out[i] = Standing{Rank: rank, Participant: e.Participant, Score: e.Score}
	}
	return out
}
