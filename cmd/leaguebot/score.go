package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

func (c *cli) scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Inspect and adjust league scores",
	}

	var (
		getLeague      uint64
		getParticipant string
	)
	get := &cobra.Command{
		Use:   "get",
		Short: "Show a participant's cumulative score",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			participant, err := domain.ParseAccount(getParticipant)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			deps, err := c.deps(ctx)
			if err != nil {
				return err
			}
			score, err := deps.Ledger.GetScore(ctx, getLeague, participant)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, score)
			return nil
		},
	}
	get.Flags().Uint64Var(&getLeague, "league", 0, "league id")
	get.Flags().StringVar(&getParticipant, "participant", "", "participant address")
	_ = get.MarkFlagRequired("league")
	_ = get.MarkFlagRequired("participant")

	var (
		updLeague      uint64
		updParticipant string
		delta          int64
	)
	update := &cobra.Command{
		Use:   "update",
		Short: "Add a signed delta to a participant's score (privileged)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			participant, err := domain.ParseAccount(updParticipant)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			deps, err := c.deps(ctx)
			if err != nil {
				return err
			}
			total, err := deps.Ledger.UpdateScore(ctx, deps.Operator, updLeague, participant, delta)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "score updated: %s %+d = %d\n", participant.Hex(), delta, total)
			return nil
		},
	}
	update.Flags().Uint64Var(&updLeague, "league", 0, "league id")
	update.Flags().StringVar(&updParticipant, "participant", "", "participant address")
	update.Flags().Int64Var(&delta, "delta", 0, "signed score delta")
	_ = update.MarkFlagRequired("league")
	_ = update.MarkFlagRequired("participant")
	_ = update.MarkFlagRequired("delta")

	var (
		boardLeague  uint64
		boardMarkets []string
	)
	board := &cobra.Command{
		Use:   "board",
		Short: "Show a league's leaderboard, optionally with forecasts per market",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			markets := make([]domain.MarketID, 0, len(boardMarkets))
			for _, m := range boardMarkets {
				id, err := domain.ParseMarketID(m)
				if err != nil {
					return err
				}
				markets = append(markets, id)
			}
			ctx := cmd.Context()
			deps, err := c.deps(ctx)
			if err != nil {
				return err
			}
			tbl, err := deps.Leaderboard.Table(ctx, boardLeague, markets)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.out, "league %d: %s\n", tbl.League.ID, tbl.League.Name)
			if len(tbl.Standings) == 0 {
				fmt.Fprintln(c.out, "no scores")
				return nil
			}
			header := []string{"RANK", "PARTICIPANT", "SCORE"}
			for i, m := range tbl.Markets {
				header = append(header, truncate(domain.FormatMarketID(markets[i]), 14)+" ("+formatOutcome(m)+")")
			}
			t := newTable(c.out, header...)
			for _, s := range tbl.Standings {
				cols := []string{strconv.Itoa(s.Rank), s.Participant.Hex(), strconv.FormatInt(s.Score, 10)}
				for _, p := range s.Predictions {
					cols = append(cols, formatForecast(p))
				}
				t.row(cols...)
			}
			return t.flush()
		},
	}
	board.Flags().Uint64Var(&boardLeague, "league", 0, "league id")
	board.Flags().StringSliceVar(&boardMarkets, "markets", nil, "market ids to show forecasts for")
	_ = board.MarkFlagRequired("league")

	cmd.AddCommand(get, update, board)
	return cmd
}
