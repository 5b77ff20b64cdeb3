package polymarket

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat accepts a JSON number or a numeric string. Unparseable values
// decode to zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	n, _ = strconv.ParseFloat(strings.TrimSpace(s), 64)
	*f = flexFloat(n)
	return nil
}

// GammaMarket is a market as returned by the Gamma /markets endpoint.
type GammaMarket struct {
	ID                  string    `json:"id"`
	Question            string    `json:"question"`
	ConditionID         string    `json:"conditionId"`
	Slug                string    `json:"slug"`
	StartDate           string    `json:"startDate"`
	EndDate             string    `json:"endDate"`
	Active              flexBool  `json:"active"`
	Closed              flexBool  `json:"closed"`
	Outcomes            string    `json:"outcomes"`      // e.g. "[\"Yes\",\"No\"]", "Yes|No" or "Yes,No"
	OutcomePrices       string    `json:"outcomePrices"` // e.g. "[\"0.12\",\"0.88\"]" or "0.12,0.88"
	UMAResolutionStatus string    `json:"umaResolutionStatus"`
	Volume              flexFloat `json:"volume"`
}

// ToDomain converts the API market to domain.MarketInfo. A condition id that
// is not a 32-byte hex value is left zero.
func (m *GammaMarket) ToDomain() domain.MarketInfo {
	info := domain.MarketInfo{
		ID:                  m.ID,
		Question:            m.Question,
		Slug:                m.Slug,
		StartDate:           parseGammaTime(m.StartDate),
		EndDate:             parseGammaTime(m.EndDate),
		Active:              bool(m.Active),
		Closed:              bool(m.Closed),
		UMAResolutionStatus: m.UMAResolutionStatus,
		Outcomes:            ParseOutcomes(m.Outcomes),
		OutcomePrices:       ParseOutcomePrices(m.OutcomePrices),
		Volume:              float64(m.Volume),
	}
	if id, err := domain.ParseMarketID(m.ConditionID); err == nil && strings.HasPrefix(m.ConditionID, "0x") {
		info.ConditionID = id
	}
	return info
}

// ParseOutcomes splits a Gamma outcomes string. It accepts a JSON array, a
// "|"-separated list or a ","-separated list. Empty items are dropped.
func ParseOutcomes(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var items []string
	if strings.HasPrefix(raw, "[") && json.Unmarshal([]byte(raw), &items) == nil {
		return compact(items)
	}
	sep := ","
	if strings.Contains(raw, "|") {
		sep = "|"
	}
	return compact(strings.Split(raw, sep))
}

// ParseOutcomePrices parses a Gamma outcome price list. Values that are not
// finite numbers are dropped.
func ParseOutcomePrices(raw string) []float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var parts []string
	if strings.HasPrefix(raw, "[") {
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			for _, a := range arr {
				parts = append(parts, strings.Trim(string(a), `"`))
			}
		}
	} else {
		parts = strings.Split(raw, ",")
	}

	prices := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		prices = append(prices, f)
	}
	return prices
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseGammaTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
