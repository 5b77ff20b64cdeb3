package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/predictionleague/internal/domain"
	"github.com/alanyoungcy/predictionleague/internal/resolution"
)

// Environment fallbacks for resolve flags.
const (
	envLeagueID       = "LEAGUE_ID"
	envMarketID       = "MARKET_CONDITION_ID"
	envWinningOutcome = "WINNING_OUTCOME"
	envParticipants   = "PARTICIPANTS"
)

type resolveFlags struct {
	league       string
	market       string
	outcome      string
	participants string
}

// request builds a resolution request from flags, falling back to getenv for
// any flag left empty.
func (f resolveFlags) request(getenv func(string) string) (resolution.Request, error) {
	pick := func(flag, env string) string {
		if strings.TrimSpace(flag) != "" {
			return flag
		}
		return getenv(env)
	}

	leagueStr := strings.TrimSpace(pick(f.league, envLeagueID))
	if leagueStr == "" {
		return resolution.Request{}, fmt.Errorf("%w: league id required (--league or %s)", domain.ErrValidation, envLeagueID)
	}
	leagueID, err := parseLeagueID(leagueStr)
	if err != nil {
		return resolution.Request{}, err
	}

	marketStr := pick(f.market, envMarketID)
	if strings.TrimSpace(marketStr) == "" {
		return resolution.Request{}, fmt.Errorf("%w: market id required (--market or %s)", domain.ErrValidation, envMarketID)
	}
	marketID, err := domain.ParseMarketID(marketStr)
	if err != nil {
		return resolution.Request{}, err
	}

	outcomeStr := pick(f.outcome, envWinningOutcome)
	if strings.TrimSpace(outcomeStr) == "" {
		return resolution.Request{}, fmt.Errorf("%w: winning outcome required (--outcome or %s)", domain.ErrValidation, envWinningOutcome)
	}
	outcome, err := domain.ParseOutcome(outcomeStr)
	if err != nil {
		return resolution.Request{}, err
	}

	participants, err := domain.ParseAccounts(pick(f.participants, envParticipants))
	if err != nil {
		return resolution.Request{}, err
	}
	if len(participants) == 0 {
		return resolution.Request{}, fmt.Errorf("%w: participant list is empty (--participants or %s)", domain.ErrValidation, envParticipants)
	}

	return resolution.Request{
		LeagueID:       leagueID,
		MarketID:       marketID,
		WinningOutcome: outcome,
		Participants:   participants,
	}, nil
}

func (c *cli) resolveCmd() *cobra.Command {
	var (
		flags      resolveFlags
		idempotent bool
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Record a market outcome and score every listed participant",
		Long: `Resolve records the winning outcome in the oracle (unless the market is
already resolved) and adds each participant's negated Brier penalty to their
league score. Participants without a prediction are skipped.

Without --idempotent a rerun applies every delta again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request(os.Getenv)
			if err != nil {
				return err
			}
			if idempotent {
				c.cfg.Resolution.Idempotent = true
			}

			ctx := cmd.Context()
			deps, err := c.deps(ctx)
			if err != nil {
				return err
			}
			report, err := deps.Engine.Resolve(ctx, req)
			printReport(c.out, report)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "\nresolution complete: %s\n", report.Summary())
			if report.ArchivePath != "" {
				fmt.Fprintf(c.out, "report archived at %s\n", report.ArchivePath)
			}
			if !report.Idempotent {
				fmt.Fprintln(c.out, "warning: deltas are not recorded; running this resolution again applies them a second time (use --idempotent)")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.league, "league", "", "league id (env "+envLeagueID+")")
	cmd.Flags().StringVar(&flags.market, "market", "", "market condition id or label (env "+envMarketID+")")
	cmd.Flags().StringVar(&flags.outcome, "outcome", "", "winning outcome, yes or no (env "+envWinningOutcome+")")
	cmd.Flags().StringVar(&flags.participants, "participants", "", "comma-separated participant addresses (env "+envParticipants+")")
	cmd.Flags().BoolVar(&idempotent, "idempotent", false, "record applied deltas so a rerun skips scored participants")
	return cmd
}

// printReport writes a resolution report as text.
func printReport(out io.Writer, r *resolution.Report) {
	if r == nil {
		return
	}
	fmt.Fprintf(out, "run %s: league %d market %s outcome %s\n",
		r.RunID, r.LeagueID, domain.FormatMarketID(r.MarketID), domain.OutcomeLabel(r.WinningOutcome))

	switch {
	case r.Market != nil:
		m := r.Market
		fmt.Fprintf(out, "  question:  %s\n  slug:      %s\n  closed:    %t\n  uma:       %s\n",
			m.Question, m.Slug, m.Closed, orDash(m.UMAResolutionStatus))
		if len(m.Outcomes) > 0 {
			pairs := make([]string, len(m.Outcomes))
			for i, o := range m.Outcomes {
				pairs[i] = o
				if i < len(m.OutcomePrices) {
					pairs[i] += "=" + strconv.FormatFloat(m.OutcomePrices[i], 'f', 3, 64)
				}
			}
			fmt.Fprintf(out, "  outcomes:  %s\n", strings.Join(pairs, ", "))
		}
	case r.MarketError != "":
		fmt.Fprintf(out, "  market context unavailable: %s\n", r.MarketError)
	}

	// A run that stopped before scoring anyone may not have reached the oracle.
	switch {
	case r.OutcomeWritten:
		fmt.Fprintln(out, "  oracle:    outcome recorded")
	case r.Error == "" || len(r.Entries) > 0:
		fmt.Fprintf(out, "  oracle:    already resolved %s, write skipped\n", domain.OutcomeLabel(r.RecordedOutcome))
	}

	if len(r.Entries) == 0 {
		return
	}
	fmt.Fprintln(out)
	t := newTable(out, "PARTICIPANT", "STATUS", "FORECAST", "PENALTY", "DELTA", "PREVIOUS", "NEW")
	for _, e := range r.Entries {
		if e.Status == resolution.StatusFailed || e.Status == resolution.StatusSkipped {
			detail := string(e.Status)
			if e.Error != "" {
				detail += ": " + e.Error
			}
			t.row(e.Participant.Hex(), detail, "-", "-", "-", "-", "-")
			continue
		}
		t.row(
			e.Participant.Hex(),
			string(e.Status),
			strconv.Itoa(int(e.Forecast))+"%",
			strconv.FormatInt(e.Penalty, 10),
			strconv.FormatInt(e.Delta, 10),
			strconv.FormatInt(e.PreviousScore, 10),
			strconv.FormatInt(e.NewScore, 10),
		)
	}
	_ = t.flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
