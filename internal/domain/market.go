package domain

import (
	"context"
	"time"
)

// Market status filters accepted by MarketQuery.
const (
	MarketStatusOpen   = "open"
	MarketStatusClosed = "closed"
	MarketStatusAll    = "all"
)

// MarketInfo is the descriptive context the market data provider has for a
// market. It is informational and never decides an outcome.
type MarketInfo struct {
	ID                  string
	ConditionID         MarketID
	Question            string
	Slug                string
	StartDate           time.Time
	EndDate             time.Time
	Active              bool
	Closed              bool
	UMAResolutionStatus string
	Outcomes            []string
	OutcomePrices       []float64
	Volume              float64
}

// ImpliedYesPct returns the first outcome price as a percentage.
func (m MarketInfo) ImpliedYesPct() (float64, bool) {
	if len(m.OutcomePrices) == 0 {
		return 0, false
	}
	return m.OutcomePrices[0] * 100, true
}

// MarketQuery filters a market listing. Zero times are not sent.
type MarketQuery struct {
	Status       string
	Limit        int
	Offset       int
	StartDateMin time.Time
	StartDateMax time.Time
	EndDateMin   time.Time
	EndDateMax   time.Time
}

// MarketProvider looks up markets at the external data provider.
type MarketProvider interface {
	MarketByConditionID(ctx context.Context, conditionID MarketID) (MarketInfo, error)
	ListMarkets(ctx context.Context, q MarketQuery) ([]MarketInfo, error)
}
