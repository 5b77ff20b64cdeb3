package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

func (c *cli) eventsCmd() *cobra.Command {
	var (
		limit    int
		offset   int
		stream   bool
		streamID string
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the ledger event log, or the Redis event stream with --stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			deps, err := c.deps(ctx)
			if err != nil {
				return err
			}

			if stream {
				if deps.Events == nil {
					return fmt.Errorf("%w: --stream needs redis.enabled", domain.ErrValidation)
				}
				events, last, err := deps.Events.ReadEvents(ctx, streamID, limit)
				if err != nil {
					return err
				}
				if err := printEvents(c.out, events); err != nil {
					return err
				}
				if last != "" {
					fmt.Fprintf(c.out, "\nlast stream id: %s\n", last)
				}
				return nil
			}

			events, err := deps.Ledger.Events(ctx, domain.ListOpts{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			return printEvents(c.out, events)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "events to skip (ledger log only)")
	cmd.Flags().BoolVar(&stream, "stream", false, "read the Redis event stream instead of the ledger log")
	cmd.Flags().StringVar(&streamID, "after", "0", "stream id to read after (with --stream)")
	return cmd
}

func printEvents(out io.Writer, events []domain.Event) error {
	if len(events) == 0 {
		fmt.Fprintln(out, "no events")
		return nil
	}
	t := newTable(out, "SEQ", "TYPE", "LEAGUE", "DETAIL", "AT")
	for _, ev := range events {
		seq := "-"
		if ev.Seq > 0 {
			seq = strconv.FormatInt(ev.Seq, 10)
		}
		t.row(seq, string(ev.Type), strconv.FormatUint(ev.LeagueID, 10), eventDetail(ev), formatTime(ev.At))
	}
	return t.flush()
}

func eventDetail(ev domain.Event) string {
	switch ev.Type {
	case domain.EventLeagueCreated:
		return fmt.Sprintf("%q by %s", ev.Name, ev.Participant.Hex())
	case domain.EventPredictionSubmitted:
		return fmt.Sprintf("%s forecast %d%% on %s", ev.Participant.Hex(), ev.Forecast, domain.FormatMarketID(ev.MarketID))
	case domain.EventMarketResolved:
		return fmt.Sprintf("%s resolved %s", domain.FormatMarketID(ev.MarketID), domain.OutcomeLabel(ev.Outcome))
	case domain.EventScoreUpdated:
		return fmt.Sprintf("%s %+d = %d", ev.Participant.Hex(), ev.Delta, ev.NewScore)
	default:
		return ""
	}
}
