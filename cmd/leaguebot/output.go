package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// table writes aligned columns; call flush when done.
type table struct {
	w *tabwriter.Writer
}

func newTable(out io.Writer, header ...string) *table {
	t := &table{w: tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)}
	t.row(header...)
	return t
}

func (t *table) row(cols ...string) {
	fmt.Fprintln(t.w, strings.Join(cols, "\t"))
}

func (t *table) flush() error { return t.w.Flush() }

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}

func formatForecast(p domain.Prediction) string {
	if !p.Exists {
		return "-"
	}
	return strconv.Itoa(int(p.Forecast)) + "%"
}

func formatOutcome(o domain.MarketOutcome) string {
	if !o.Resolved {
		return "unresolved"
	}
	return domain.OutcomeLabel(o.Outcome)
}

// truncate shortens s to n runes with a trailing ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
