package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

func (c *cli) predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Submit and inspect predictions",
	}

	var (
		leagueID uint64
		market   string
		forecast int
	)
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Submit or replace the operator account's forecast for a market",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			marketID, err := domain.ParseMarketID(market)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			deps, err := c.deps(ctx)
			if err != nil {
				return err
			}
			if err := deps.Ledger.SubmitPrediction(ctx, deps.Operator, leagueID, marketID, forecast); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "prediction recorded: league %d market %s participant %s forecast %d%%\n",
				leagueID, domain.FormatMarketID(marketID), deps.Operator.Hex(), forecast)
			return nil
		},
	}
	submit.Flags().Uint64Var(&leagueID, "league", 0, "league id")
	submit.Flags().StringVar(&market, "market", "", "market id (66-char 0x hex or a label of at most 31 bytes)")
	submit.Flags().IntVar(&forecast, "forecast", -1, "probability of YES, 0-100")
	_ = submit.MarkFlagRequired("league")
	_ = submit.MarkFlagRequired("market")
	_ = submit.MarkFlagRequired("forecast")

	var (
		getLeague      uint64
		getMarket      string
		getParticipant string
	)
	get := &cobra.Command{
		Use:   "get",
		Short: "Show a participant's forecast for a market",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			marketID, err := domain.ParseMarketID(getMarket)
			if err != nil {
				return err
			}
			participant, err := domain.ParseAccount(getParticipant)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			deps, err := c.deps(ctx)
			if err != nil {
				return err
			}
			p, err := deps.Ledger.GetPrediction(ctx, getLeague, marketID, participant)
			if err != nil {
				return err
			}
			if !p.Exists {
				fmt.Fprintln(c.out, "no prediction")
				return nil
			}
			fmt.Fprintf(c.out, "forecast:   %s\nsubmitted:  %s\n", formatForecast(p), formatTime(p.SubmittedAt))
			return nil
		},
	}
	get.Flags().Uint64Var(&getLeague, "league", 0, "league id")
	get.Flags().StringVar(&getMarket, "market", "", "market id")
	get.Flags().StringVar(&getParticipant, "participant", "", "participant address")
	_ = get.MarkFlagRequired("league")
	_ = get.MarkFlagRequired("market")
	_ = get.MarkFlagRequired("participant")

	cmd.AddCommand(submit, get)
	return cmd
}
