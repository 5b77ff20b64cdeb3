// Package polymarket is the client for the Polymarket Gamma API, which
// provides market discovery and metadata. The ledger uses it for context
// only; outcomes are never taken from it.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// DefaultGammaURL is the public Gamma API root.
const DefaultGammaURL = "https://gamma-api.polymarket.com"

// DefaultListLimit is used when a MarketQuery has no limit.
const DefaultListLimit = 20

// GammaConfig configures a GammaClient.
type GammaConfig struct {
	BaseURL string
	Timeout time.Duration
	// RatePerSecond and Burst bound outgoing requests. Zero disables limiting.
	RatePerSecond float64
	Burst         int
}

// GammaClient is the REST client for the Gamma API. It implements
// domain.MarketProvider.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// NewGammaClient creates a new Gamma API client.
func NewGammaClient(cfg GammaConfig) *GammaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGammaURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	g := &GammaClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker("gamma"),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return g
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	// A missing market is an answer, not an outage.
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, domain.ErrNotFound)
	}
	return gobreaker.NewCircuitBreaker(st)
}

// MarketByConditionID returns the market with the given condition id, or an
// error wrapping domain.ErrNotFound when Gamma has none.
func (g *GammaClient) MarketByConditionID(ctx context.Context, conditionID domain.MarketID) (domain.MarketInfo, error) {
	params := url.Values{}
	params.Set("limit", "1")
	params.Set("condition_ids", conditionID.Hex())

	var markets []GammaMarket
	if err := g.getJSON(ctx, "/markets?"+params.Encode(), &markets); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("polymarket/gamma: market %s: %w", conditionID.Hex(), err)
	}
	if len(markets) == 0 {
		return domain.MarketInfo{}, fmt.Errorf("polymarket/gamma: %w: condition_id=%s", domain.ErrNotFound, conditionID.Hex())
	}
	info := markets[0].ToDomain()
	if info.ConditionID == (domain.MarketID{}) {
		info.ConditionID = conditionID
	}
	return info, nil
}

// ListMarkets returns one page of markets matching q.
func (g *GammaClient) ListMarkets(ctx context.Context, q domain.MarketQuery) ([]domain.MarketInfo, error) {
	params, err := marketParams(q)
	if err != nil {
		return nil, err
	}

	var markets []GammaMarket
	if err := g.getJSON(ctx, "/markets?"+params.Encode(), &markets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}
	out := make([]domain.MarketInfo, 0, len(markets))
	for i := range markets {
		out = append(out, markets[i].ToDomain())
	}
	return out, nil
}

func marketParams(q domain.MarketQuery) (url.Values, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if q.Offset < 0 {
		return nil, fmt.Errorf("polymarket/gamma: %w: negative offset %d", domain.ErrValidation, q.Offset)
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(q.Offset))

	switch q.Status {
	case "", domain.MarketStatusOpen:
		params.Set("closed", "false")
	case domain.MarketStatusClosed:
		params.Set("closed", "true")
	case domain.MarketStatusAll:
	default:
		return nil, fmt.Errorf("polymarket/gamma: %w: unknown market status %q", domain.ErrValidation, q.Status)
	}

	setTime := func(key string, t time.Time) {
		if !t.IsZero() {
			params.Set(key, t.UTC().Format(time.RFC3339))
		}
	}
	setTime("start_date_min", q.StartDateMin)
	setTime("start_date_max", q.StartDateMax)
	setTime("end_date_min", q.EndDateMin)
	setTime("end_date_max", q.EndDateMax)
	return params, nil
}

// getJSON rate-limits, sends an unauthenticated GET through the circuit
// breaker and decodes the JSON body into out. Every failure except a 404
// wraps domain.ErrProvider.
func (g *GammaClient) getJSON(ctx context.Context, path string, out any) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %v", domain.ErrProvider, err)
		}
	}

	res, err := g.breaker.Execute(func() (any, error) {
		return g.doGet(ctx, path)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: circuit %s", domain.ErrProvider, err)
		}
		return err
	}

	if err := json.Unmarshal(res.([]byte), out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrProvider, err)
	}
	return nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrProvider, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %w", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrProvider, err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := strings.TrimSpace(string(body))
	if len(bodyStr) > 512 {
		bodyStr = bodyStr[:512]
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w: %s", domain.ErrProvider, domain.ErrNotFound, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w: %s", domain.ErrProvider, domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrProvider, statusCode, bodyStr)
	}
}
