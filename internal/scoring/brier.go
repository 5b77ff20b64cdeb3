// Package scoring computes Brier penalties for binary forecasts expressed as
// whole percentages.
package scoring

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// DefaultScale maps a squared error of 1.0 to 10000 points.
const DefaultScale = 10000

// MaxForecast is the largest accepted forecast, in percent.
const MaxForecast = 100

// BrierPenalty returns the scaled squared error between a forecast (percent
// probability of "yes") and the realized outcome, using DefaultScale.
func BrierPenalty(forecast int, outcome bool) (int64, error) {
	return BrierPenaltyScaled(forecast, outcome, DefaultScale)
}

// BrierPenaltyScaled returns round(((forecast/100 - o)^2) * scale) with
// rounding half away from zero. The arithmetic is exact: with the forecast
// in percent the squared error is d*d/10000 for d = forecast - 100*o.
func BrierPenaltyScaled(forecast int, outcome bool, scale int64) (int64, error) {
	if forecast < 0 || forecast > MaxForecast {
		return 0, fmt.Errorf("%w: forecast %d out of range [0,%d]", domain.ErrValidation, forecast, MaxForecast)
	}
	if scale <= 0 || scale > math.MaxInt64/(MaxForecast*MaxForecast) {
		return 0, fmt.Errorf("%w: scale %d out of range", domain.ErrValidation, scale)
	}

	d := int64(forecast)
	if outcome {
		d -= MaxForecast
	}
	num := d * d * scale
	const denom = MaxForecast * MaxForecast
	q, r := num/denom, num%denom
	if 2*r >= denom {
		q++
	}
	return q, nil
}

// Delta is the score change for a penalty. Better forecasts produce deltas
// closer to zero.
func Delta(penalty int64) int64 {
	return -penalty
}
