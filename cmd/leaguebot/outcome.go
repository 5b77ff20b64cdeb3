package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

func (c *cli) outcomeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outcome",
		Short: "Record and inspect market outcomes",
	}

	var (
		market  string
		outcome string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Record a market's final outcome (privileged)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			marketID, err := domain.ParseMarketID(market)
			if err != nil {
				return err
			}
			yes, err := domain.ParseOutcome(outcome)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			deps, err := c.deps(ctx)
			if err != nil {
				return err
			}
			o, err := deps.Ledger.SetMarketOutcome(ctx, deps.Operator, marketID, yes)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "market %s resolved %s at %s\n",
				domain.FormatMarketID(marketID), formatOutcome(o), formatTime(o.ResolvedAt))
			return nil
		},
	}
	set.Flags().StringVar(&market, "market", "", "market id")
	set.Flags().StringVar(&outcome, "outcome", "", "yes or no")
	_ = set.MarkFlagRequired("market")
	_ = set.MarkFlagRequired("outcome")

	var getMarket string
	get := &cobra.Command{
		Use:   "get",
		Short: "Show a market's recorded outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			marketID, err := domain.ParseMarketID(getMarket)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			deps, err := c.deps(ctx)
			if err != nil {
				return err
			}
			o, err := deps.Ledger.GetMarketOutcome(ctx, marketID)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "market:    %s\noutcome:   %s\nresolved:  %s\n",
				domain.FormatMarketID(marketID), formatOutcome(o), formatTime(o.ResolvedAt))
			return nil
		},
	}
	get.Flags().StringVar(&getMarket, "market", "", "market id")
	_ = get.MarkFlagRequired("market")

	cmd.AddCommand(set, get)
	return cmd
}
