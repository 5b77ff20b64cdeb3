package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/predictionleague/internal/domain"
	"github.com/alanyoungcy/predictionleague/internal/platform/polymarket"
)

type marketFlags struct {
	status       string
	limit        int
	offset       int
	startDateMin string
	startDateMax string
	endDateMin   string
	endDateMax   string
}

func (f marketFlags) query() (domain.MarketQuery, error) {
	q := domain.MarketQuery{
		Status: strings.ToLower(strings.TrimSpace(f.status)),
		Limit:  f.limit,
		Offset: f.offset,
	}
	dates := []struct {
		name string
		raw  string
		dst  *time.Time
	}{
		{"start-date-min", f.startDateMin, &q.StartDateMin},
		{"start-date-max", f.startDateMax, &q.StartDateMax},
		{"end-date-min", f.endDateMin, &q.EndDateMin},
		{"end-date-max", f.endDateMax, &q.EndDateMax},
	}
	for _, d := range dates {
		if d.raw == "" {
			continue
		}
		ts, err := parseDate(d.raw)
		if err != nil {
			return domain.MarketQuery{}, fmt.Errorf("%w: --%s: %v", domain.ErrValidation, d.name, err)
		}
		*d.dst = ts
	}
	return q, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates.
func parseDate(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Parse(time.DateOnly, s)
}

func (c *cli) marketsCmd() *cobra.Command {
	var flags marketFlags
	cmd := &cobra.Command{
		Use:   "markets",
		Short: "List Polymarket markets with their implied YES probability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := flags.query()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			deps, err := c.deps(ctx)
			if err != nil {
				return err
			}
			markets, err := deps.Markets.ListMarkets(ctx, q)
			if err != nil {
				return err
			}
			if len(markets) == 0 {
				fmt.Fprintln(c.out, "no markets")
				return nil
			}
			t := newTable(c.out, "CONDITION ID", "QUESTION", "END", "STATUS", "YES %")
			for _, m := range markets {
				t.row(m.ConditionID.Hex(), truncate(m.Question, 60), formatDate(m.EndDate), marketStatus(m), impliedYes(m))
			}
			return t.flush()
		},
	}
	cmd.Flags().StringVar(&flags.status, "status", "open", "open, closed or all")
	cmd.Flags().IntVar(&flags.limit, "limit", polymarket.DefaultListLimit, "page size")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "page offset")
	cmd.Flags().StringVar(&flags.startDateMin, "start-date-min", "", "earliest start date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&flags.startDateMax, "start-date-max", "", "latest start date")
	cmd.Flags().StringVar(&flags.endDateMin, "end-date-min", "", "earliest end date")
	cmd.Flags().StringVar(&flags.endDateMax, "end-date-max", "", "latest end date")

	var refresh bool
	show := &cobra.Command{
		Use:   "show CONDITION_ID",
		Short: "Show one market",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseMarketID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			deps, err := c.deps(ctx)
			if err != nil {
				return err
			}
			var m domain.MarketInfo
			if refresh {
				m, err = deps.Markets.Refresh(ctx, id)
			} else {
				m, err = deps.Markets.MarketByConditionID(ctx, id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "condition:  %s\nquestion:   %s\nslug:       %s\nstart:      %s\nend:        %s\nstatus:     %s\numa:        %s\noutcomes:   %s\nyes:        %s\nvolume:     %s\n",
				m.ConditionID.Hex(), m.Question, m.Slug,
				formatDate(m.StartDate), formatDate(m.EndDate),
				marketStatus(m), orDash(m.UMAResolutionStatus),
				strings.Join(m.Outcomes, " / "), impliedYes(m),
				strconv.FormatFloat(m.Volume, 'f', 2, 64))
			return nil
		},
	}
	show.Flags().BoolVar(&refresh, "refresh", false, "bypass the market cache")
	cmd.AddCommand(show)
	return cmd
}

func marketStatus(m domain.MarketInfo) string {
	switch {
	case m.Closed:
		return "closed"
	case m.Active:
		return "open"
	default:
		return "inactive"
	}
}

func impliedYes(m domain.MarketInfo) string {
	pct, ok := m.ImpliedYesPct()
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(pct, 'f', 1, 64)
}

func formatDate(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.DateOnly)
}
