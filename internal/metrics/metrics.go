// Package metrics records ledger and resolution activity as Prometheus
// metrics. The CLI is short-lived, so metrics are pushed to a Pushgateway at
// exit instead of being scraped.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/alanyoungcy/predictionleague/internal/domain"
	"github.com/alanyoungcy/predictionleague/internal/resolution"
)

// Registry holds the leaguebot metrics on a private registry.
type Registry struct {
	reg *prometheus.Registry

	LedgerOps          *prometheus.CounterVec
	Resolutions        *prometheus.CounterVec
	ResolutionEntries  *prometheus.CounterVec
	Penalties          prometheus.Histogram
	ResolutionDuration prometheus.Histogram
	MarketLookups      *prometheus.CounterVec
}

// NewRegistry creates and registers all metrics.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		LedgerOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaguebot_ledger_operations_total",
				Help: "Ledger operations by operation and result",
			},
			[]string{"op", "result"},
		),

		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaguebot_resolutions_total",
				Help: "Resolution runs by final status",
			},
			[]string{"status"},
		),

		ResolutionEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaguebot_resolution_entries_total",
				Help: "Participants handled by resolution runs, by entry status",
			},
			[]string{"status"},
		),

		Penalties: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leaguebot_brier_penalty",
				Help:    "Brier penalties applied, in score units",
				Buckets: []float64{0, 100, 400, 900, 1600, 2500, 3600, 4900, 6400, 8100, 10000},
			},
		),

		ResolutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leaguebot_resolution_duration_seconds",
				Help:    "Wall time of resolution runs",
				Buckets: prometheus.DefBuckets,
			},
		),

		MarketLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaguebot_market_lookups_total",
				Help: "Market provider lookups by result",
			},
			[]string{"result"},
		),
	}

	r.reg.MustRegister(
		r.LedgerOps,
		r.Resolutions,
		r.ResolutionEntries,
		r.Penalties,
		r.ResolutionDuration,
		r.MarketLookups,
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveOp counts one ledger operation.
func (r *Registry) ObserveOp(op string, err error) {
	r.LedgerOps.WithLabelValues(op, Result(err)).Inc()
}

// ObserveResolution records a finished resolution run.
func (r *Registry) ObserveResolution(rep *resolution.Report) {
	status := "completed"
	if !rep.Completed {
		status = "failed"
	}
	r.Resolutions.WithLabelValues(status).Inc()
	for _, e := range rep.Entries {
		r.ResolutionEntries.WithLabelValues(string(e.Status)).Inc()
		if e.Status == resolution.StatusScored {
			r.Penalties.Observe(float64(e.Penalty))
		}
	}
	if !rep.FinishedAt.IsZero() && !rep.StartedAt.IsZero() {
		r.ResolutionDuration.Observe(rep.FinishedAt.Sub(rep.StartedAt).Seconds())
	}
}

// ObserveMarketLookup counts a provider lookup; result is "hit", "miss" or
// "error".
func (r *Registry) ObserveMarketLookup(result string) {
	r.MarketLookups.WithLabelValues(result).Inc()
}

// Push sends every metric to the Pushgateway at url under job.
func (r *Registry) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}

// Result maps an operation error to a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrOverflow):
		return "overflow"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
