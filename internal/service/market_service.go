package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// LookupObserver counts market lookups by result ("hit", "miss", "error").
type LookupObserver interface {
	ObserveMarketLookup(result string)
}

// MarketService looks up market context at the provider, keeping results in
// the market cache when one is configured. It implements domain.MarketProvider.
type MarketService struct {
	provider domain.MarketProvider
	cache    domain.MarketInfoCache
	observer LookupObserver
	logger   *slog.Logger
}

// NewMarketService creates a MarketService. cache and observer may be nil.
func NewMarketService(
	provider domain.MarketProvider,
	cache domain.MarketInfoCache,
	observer LookupObserver,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		provider: provider,
		cache:    cache,
		observer: observer,
		logger:   logger,
	}
}

// MarketByConditionID returns a market, checking the cache first and falling
// back to the provider on a miss.
func (s *MarketService) MarketByConditionID(ctx context.Context, conditionID domain.MarketID) (domain.MarketInfo, error) {
	if s.cache != nil {
		m, err := s.cache.Get(ctx, conditionID)
		if err == nil {
			s.observe("hit")
			return m, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "market_service: cache get failed",
				slog.String("condition_id", conditionID.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}

	m, err := s.provider.MarketByConditionID(ctx, conditionID)
	if err != nil {
		s.observe("error")
		return domain.MarketInfo{}, fmt.Errorf("market_service: lookup %s: %w", conditionID.Hex(), err)
	}
	s.observe("miss")

	s.backfill(ctx, m)
	return m, nil
}

// ListMarkets returns one page of provider markets and caches each of them.
func (s *MarketService) ListMarkets(ctx context.Context, q domain.MarketQuery) ([]domain.MarketInfo, error) {
	markets, err := s.provider.ListMarkets(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("market_service: list markets: %w", err)
	}
	for _, m := range markets {
		s.backfill(ctx, m)
	}
	return markets, nil
}

// Refresh drops a cached market and fetches it again.
func (s *MarketService) Refresh(ctx context.Context, conditionID domain.MarketID) (domain.MarketInfo, error) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, conditionID); err != nil {
			s.logger.WarnContext(ctx, "market_service: cache invalidate failed",
				slog.String("condition_id", conditionID.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}
	return s.MarketByConditionID(ctx, conditionID)
}

// backfill writes m to the cache; failures are logged, the cache expires on
// its own.
func (s *MarketService) backfill(ctx context.Context, m domain.MarketInfo) {
	if s.cache == nil || m.ConditionID == (domain.MarketID{}) {
		return
	}
	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("condition_id", m.ConditionID.Hex()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) observe(result string) {
	if s.observer != nil {
		s.observer.ObserveMarketLookup(result)
	}
}

// Compile-time interface check.
var _ domain.MarketProvider = (*MarketService)(nil)
