package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

func TestBrierPenalty(t *testing.T) {
	tests := []struct {
		name     string
		forecast int
		outcome  bool
		want     int64
	}{
		{"75 yes", 75, true, 625},
		{"25 yes", 25, true, 5625},
		{"75 no", 75, false, 5625},
		{"25 no", 25, false, 625},
		{"certain and right", 100, true, 0},
		{"certain and wrong", 100, false, 10000},
		{"zero and right", 0, false, 0},
		{"zero and wrong", 0, true, 10000},
		{"coin flip", 50, true, 2500},
		{"one percent off", 99, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BrierPenalty(tt.forecast, tt.outcome)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, -tt.want, Delta(got))
		})
	}
}

func TestBrierPenaltyRejectsOutOfRange(t *testing.T) {
	for _, f := range []int{-1, 101, 255} {
		_, err := BrierPenalty(f, true)
		assert.ErrorIs(t, err, domain.ErrValidation, "forecast %d", f)
	}
}

func TestBrierPenaltyScaledRounding(t *testing.T) {
	// 33 yes: d=-67, d*d=4489. With scale 1 the exact value is 0.4489.
	got, err := BrierPenaltyScaled(33, true, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	// 50 yes with scale 2: 2500*2/10000 = 0.5, rounds away from zero.
	got, err = BrierPenaltyScaled(50, true, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	// 30 no with scale 3: 900*3/10000 = 0.27.
	got, err = BrierPenaltyScaled(30, false, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	got, err = BrierPenaltyScaled(75, true, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(62_500), got)
}

func TestBrierPenaltyScaledRejectsBadScale(t *testing.T) {
	_, err := BrierPenaltyScaled(50, true, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = BrierPenaltyScaled(50, true, -10)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
