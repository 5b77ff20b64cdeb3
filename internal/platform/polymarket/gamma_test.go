package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

const conditionHex = "0x9915bea232fa12b20058f9cea1187ea51366352bf833393676cd0db557a58249"

func TestMarketByConditionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, conditionHex, r.URL.Query().Get("condition_ids"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{
			"id": "12345",
			"question": "Will it rain in London on Friday?",
			"conditionId": "` + conditionHex + `",
			"slug": "rain-london-friday",
			"startDate": "2025-10-01T00:00:00Z",
			"endDate": "2025-10-31",
			"active": "true",
			"closed": true,
			"outcomes": "[\"Yes\", \"No\"]",
			"outcomePrices": "[\"0.985\", \"0.015\"]",
			"umaResolutionStatus": "resolved",
			"volume": "10250.5"
		}]`))
	}))
	defer srv.Close()

	g := NewGammaClient(GammaConfig{BaseURL: srv.URL})
	info, err := g.MarketByConditionID(context.Background(), common.HexToHash(conditionHex))
	require.NoError(t, err)

	assert.Equal(t, "12345", info.ID)
	assert.Equal(t, common.HexToHash(conditionHex), info.ConditionID)
	assert.Equal(t, "Will it rain in London on Friday?", info.Question)
	assert.True(t, info.Active)
	assert.True(t, info.Closed)
	assert.Equal(t, "resolved", info.UMAResolutionStatus)
	assert.Equal(t, []string{"Yes", "No"}, info.Outcomes)
	assert.Equal(t, []float64{0.985, 0.015}, info.OutcomePrices)
	assert.InDelta(t, 10250.5, info.Volume, 1e-9)
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), info.StartDate)
	assert.Equal(t, time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC), info.EndDate)

	pct, ok := info.ImpliedYesPct()
	require.True(t, ok)
	assert.InDelta(t, 98.5, pct, 1e-9)
}

func TestMarketByConditionIDNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := NewGammaClient(GammaConfig{BaseURL: srv.URL})
	_, err := g.MarketByConditionID(context.Background(), common.HexToHash(conditionHex))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrProvider)
}

func TestProviderErrorsTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewGammaClient(GammaConfig{BaseURL: srv.URL})
	for i := 0; i < 3; i++ {
		_, err := g.MarketByConditionID(context.Background(), common.HexToHash(conditionHex))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrProvider)
		assert.Contains(t, err.Error(), "HTTP 502")
	}

	_, err := g.ListMarkets(context.Background(), domain.MarketQuery{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Contains(t, err.Error(), "circuit")
	assert.Equal(t, int32(3), hits.Load(), "open breaker must not reach the server")
}

func TestRateLimitedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGammaClient(GammaConfig{BaseURL: srv.URL})
	_, err := g.ListMarkets(context.Background(), domain.MarketQuery{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestNotFoundResponseIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such route", http.StatusNotFound)
	}))
	defer srv.Close()

	g := NewGammaClient(GammaConfig{BaseURL: srv.URL})
	_, err := g.MarketByConditionID(context.Background(), common.HexToHash(conditionHex))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestMalformedBodyIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not": "a list"`))
	}))
	defer srv.Close()

	g := NewGammaClient(GammaConfig{BaseURL: srv.URL})
	_, err := g.ListMarkets(context.Background(), domain.MarketQuery{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestListMarketsQueryParams(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query domain.MarketQuery
		want  map[string]string
		unset []string
	}{
		{
			name:  "defaults to open markets",
			query: domain.MarketQuery{},
			want:  map[string]string{"limit": "20", "offset": "0", "closed": "false"},
			unset: []string{"start_date_min", "end_date_max"},
		},
		{
			name:  "closed with paging",
			query: domain.MarketQuery{Status: domain.MarketStatusClosed, Limit: 5, Offset: 10},
			want:  map[string]string{"limit": "5", "offset": "10", "closed": "true"},
		},
		{
			name:  "all omits closed",
			query: domain.MarketQuery{Status: domain.MarketStatusAll},
			unset: []string{"closed"},
		},
		{
			name:  "date filters",
			query: domain.MarketQuery{StartDateMin: start, EndDateMax: end},
			want: map[string]string{
				"start_date_min": "2025-01-01T00:00:00Z",
				"end_date_max":   "2025-12-31T00:00:00Z",
			},
			unset: []string{"start_date_max", "end_date_min"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				for k, v := range tt.want {
					assert.Equal(t, v, q.Get(k), k)
				}
				for _, k := range tt.unset {
					assert.False(t, q.Has(k), k)
				}
				_ = json.NewEncoder(w).Encode([]GammaMarket{{ID: "1", Outcomes: "Yes|No"}, {ID: "2"}})
			}))
			defer srv.Close()

			g := NewGammaClient(GammaConfig{BaseURL: srv.URL})
			markets, err := g.ListMarkets(context.Background(), tt.query)
			require.NoError(t, err)
			require.Len(t, markets, 2)
			assert.Equal(t, []string{"Yes", "No"}, markets[0].Outcomes)
		})
	}
}

func TestListMarketsRejectsBadQuery(t *testing.T) {
	g := NewGammaClient(GammaConfig{BaseURL: "http://127.0.0.1:1"})

	_, err := g.ListMarkets(context.Background(), domain.MarketQuery{Status: "pending"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = g.ListMarkets(context.Background(), domain.MarketQuery{Offset: -1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	g := NewGammaClient(GammaConfig{BaseURL: "http://127.0.0.1:1", RatePerSecond: 0.001, Burst: 1})
	g.limiter.Allow() // drain the single token

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.ListMarkets(ctx, domain.MarketQuery{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestParseOutcomes(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{`["Yes","No"]`, []string{"Yes", "No"}},
		{"Yes|No", []string{"Yes", "No"}},
		{"Yes, No", []string{"Yes", "No"}},
		{"Up | Down | ", []string{"Up", "Down"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseOutcomes(tt.raw), tt.raw)
	}
}

func TestParseOutcomePrices(t *testing.T) {
	tests := []struct {
		raw  string
		want []float64
	}{
		{"", nil},
		{"0.123,0.877", []float64{0.123, 0.877}},
		{`["0.4", "0.6"]`, []float64{0.4, 0.6}},
		{"0.5,abc,NaN,Inf,0.5", []float64{0.5, 0.5}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseOutcomePrices(tt.raw), tt.raw)
	}
}
