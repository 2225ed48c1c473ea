package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestCostEfficiency_CapsAtOne(t *testing.T) {
	eff := CostEfficiency(f(1.0), f(0.5))
	require.NotNil(t, eff)
	assert.Equal(t, 1.0, *eff)
}

func TestCostEfficiency_NilWhenMissing(t *testing.T) {
	assert.Nil(t, CostEfficiency(nil, f(1.0)))
	assert.Nil(t, CostEfficiency(f(1.0), nil))
}

func TestFinalScore_NilWithoutQuality(t *testing.T) {
	assert.Nil(t, FinalScore(DefaultWeights, nil, f(0.5), f(0.5)))
}

func TestFinalScore_OnlyQualityWithZeroWeights(t *testing.T) {
	score := FinalScore(Weights{}, f(0.8), nil, nil)
	require.NotNil(t, score)
	assert.Equal(t, 0.8, *score)
}

func TestFinalScore_WeightedBlend(t *testing.T) {
	score := FinalScore(Weights{Quality: 0.5, Cost: 0.3, Time: 0.2}, f(1.0), f(1.0), f(1.0))
	require.NotNil(t, score)
	assert.InDelta(t, 1.0, *score, 0.001)
}

func TestMean_Empty(t *testing.T) {
	_, ok := Mean(nil)
	assert.False(t, ok)
}

func TestComputeBest_SimpleBelowThreshold(t *testing.T) {
	v, ok := ComputeBest([]float64{5, 3, 4})
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestComputeBest_RobustAboveThreshold(t *testing.T) {
	v, ok := ComputeBest([]float64{10, 11, 12, 11, 10, 1000})
	require.True(t, ok)
	assert.Equal(t, 10.0, v)
}
