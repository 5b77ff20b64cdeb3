package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

func (c *cli) leagueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "league",
		Short: "Create and inspect leagues",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create NAME",
			Short: "Create a league owned by the operator account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				deps, err := c.deps(ctx)
				if err != nil {
					return err
				}
				id, err := deps.Ledger.CreateLeague(ctx, deps.Operator, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "league %d created: %s\n", id, args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "get ID",
			Short: "Show one league",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseLeagueID(args[0])
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				deps, err := c.deps(ctx)
				if err != nil {
					return err
				}
				league, err := deps.Ledger.GetLeague(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "id:       %d\nname:     %s\ncreator:  %s\ncreated:  %s\n",
					league.ID, league.Name, league.Creator.Hex(), formatTime(league.CreatedAt))
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List leagues",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				deps, err := c.deps(ctx)
				if err != nil {
					return err
				}
				leagues, err := deps.Ledger.ListLeagues(ctx)
				if err != nil {
					return err
				}
				if len(leagues) == 0 {
					fmt.Fprintln(c.out, "no leagues")
					return nil
				}
				t := newTable(c.out, "ID", "NAME", "CREATOR", "CREATED")
				for _, l := range leagues {
					t.row(strconv.FormatUint(l.ID, 10), l.Name, l.Creator.Hex(), formatTime(l.CreatedAt))
				}
				return t.flush()
			},
		},
	)
	return cmd
}

func parseLeagueID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: league id %q is not an unsigned integer", domain.ErrValidation, s)
	}
	return id, nil
}
