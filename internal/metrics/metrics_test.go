package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictionleague/internal/domain"
	"github.com/alanyoungcy/predictionleague/internal/resolution"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("x: %w", domain.ErrValidation), "validation"},
		{domain.NewLedgerError("update score", domain.ErrUnauthorized, domain.Key{}, ""), "unauthorized"},
		{domain.ErrNotFound, "not_found"},
		{domain.ErrOverflow, "overflow"},
		{context.Canceled, "cancelled"},
		{errors.New("disk full"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Result(tt.err))
	}
}

func TestObserveOp(t *testing.T) {
	r := NewRegistry()
	r.ObserveOp("submit prediction", nil)
	r.ObserveOp("submit prediction", nil)
	r.ObserveOp("submit prediction", domain.ErrValidation)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.LedgerOps.WithLabelValues("submit prediction", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.LedgerOps.WithLabelValues("submit prediction", "validation")))
}

func TestObserveResolution(t *testing.T) {
	r := NewRegistry()
	start := time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC)
	r.ObserveResolution(&resolution.Report{
		Completed:  true,
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Entries: []resolution.Entry{
			{Status: resolution.StatusScored, Penalty: 625},
			{Status: resolution.StatusScored, Penalty: 5625},
			{Status: resolution.StatusSkipped},
		},
	})
	r.ObserveResolution(&resolution.Report{Entries: []resolution.Entry{{Status: resolution.StatusFailed}}})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.Resolutions.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Resolutions.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.ResolutionEntries.WithLabelValues("scored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ResolutionEntries.WithLabelValues("skipped")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.Penalties))
	assert.Equal(t, 1, testutil.CollectAndCount(r.ResolutionDuration))
}

func TestPush(t *testing.T) {
	var path, method string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path, method = req.URL.Path, req.Method
		body, _ = io.ReadAll(req.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRegistry()
	r.ObserveMarketLookup("hit")
	require.NoError(t, r.Push(context.Background(), srv.URL, "leaguebot"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/leaguebot", path)
	assert.NotEmpty(t, body)
}

func TestPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewRegistry().Push(context.Background(), srv.URL, "leaguebot")
	assert.Error(t, err)
}
