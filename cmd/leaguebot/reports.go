package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

func (c *cli) reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Browse archived resolution reports",
	}

	var leagueID uint64
	list := &cobra.Command{
		Use:   "list",
		Short: "List archived reports of a league",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			deps, err := c.deps(ctx)
			if err != nil {
				return err
			}
			if deps.Archive == nil {
				return fmt.Errorf("%w: report archive needs s3.enabled", domain.ErrValidation)
			}
			blobs, err := deps.Archive.List(ctx, leagueID)
			if err != nil {
				return err
			}
			if len(blobs) == 0 {
				fmt.Fprintln(c.out, "no reports")
				return nil
			}
			t := newTable(c.out, "PATH", "SIZE", "MODIFIED")
			for _, b := range blobs {
				t.row(b.Path, strconv.FormatInt(b.Size, 10), formatTime(b.LastModified))
			}
			return t.flush()
		},
	}
	list.Flags().Uint64Var(&leagueID, "league", 0, "league id")
	_ = list.MarkFlagRequired("league")

	get := &cobra.Command{
		Use:   "get PATH",
		Short: "Show an archived report after verifying its signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := c.deps(ctx)
			if err != nil {
				return err
			}
			if deps.Archive == nil {
				return fmt.Errorf("%w: report archive needs s3.enabled", domain.ErrValidation)
			}
			report, env, err := deps.Archive.Load(ctx, args[0])
			if err != nil {
				return err
			}
			printReport(c.out, report)
			fmt.Fprintln(c.out)
			if env.Signature == "" {
				fmt.Fprintln(c.out, "unsigned report")
			} else {
				fmt.Fprintf(c.out, "signature verified: signer %s chain %d\n", env.Signer, env.ChainID)
			}
			fmt.Fprintln(c.out, report.Summary())
			return nil
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}
