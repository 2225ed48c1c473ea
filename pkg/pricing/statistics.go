package pricing

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Percentile computes the p-th percentile (0..100) of values using linear
// interpolation between closest ranks, per spec.md §4.G.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// TimeDecayWeight computes 0.5^((now-ts)/half_life), per spec.md §4.G.
func TimeDecayWeight(ts, now time.Time, halfLifeHours float64) float64 {
	if halfLifeHours <= 0 {
		return 1
	}
	elapsedHours := now.Sub(ts).Hours()
	return math.Pow(0.5, elapsedHours/halfLifeHours)
}

type weightedValue struct {
	value  float64
	weight float64
}

// WeightedPercentile computes the p-th percentile of values weighted by
// weights, using cumulative weight over sorted (value, weight) pairs
// (spec.md §4.G). values and weights must be the same length.
func WeightedPercentile(values, weights []float64, p float64) (float64, error) {
	if len(values) != len(weights) {
		return 0, fmt.Errorf("pricing: weighted_percentile: values and weights must have equal length, got %d and %d", len(values), len(weights))
	}
	if len(values) == 0 {
		return 0, nil
	}

	pairs := make([]weightedValue, len(values))
	totalWeight := 0.0
	for i := range values {
		pairs[i] = weightedValue{value: values[i], weight: weights[i]}
		totalWeight += weights[i]
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].value < pairs[j].value })

	if totalWeight <= 0 {
		return Percentile(values, p), nil
	}

	target := (p / 100) * totalWeight
	cumulative := 0.0
	for i, pr := range pairs {
		cumulative += pr.weight
		if cumulative >= target || i == len(pairs)-1 {
			return pr.value, nil
		}
	}
	return pairs[len(pairs)-1].value, nil
}

// IQRBounds computes the Tukey fence [Q1 - 1.5*IQR, Q3 + 1.5*IQR] used by
// the evaluation orchestrator's robust target-metrics computation
// (spec.md §4.H).
func IQRBounds(values []float64) (lower, upper float64) {
	q1 := Percentile(values, 25)
	q3 := Percentile(values, 75)
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr
}

// RobustMin returns the minimum of values that fall within the Tukey
// fence computed from the full set, per spec.md §4.H's
// `calculate_target_metrics`. If no value qualifies, ok is false and the
// caller should fall back to a simple minimum.
func RobustMin(values []float64) (result float64, ok bool) {
	if len(values) == 0 {
		return 0, false
	}
	lower, upper := IQRBounds(values)
	found := false
	for _, v := range values {
		if v < lower || v > upper {
			continue
		}
		if !found || v < result {
			result = v
			found = true
		}
	}
	return result, found
}

// SimpleMin returns the minimum of values, or ok=false if empty.
func SimpleMin(values []float64) (result float64, ok bool) {
	if len(values) == 0 {
		return 0, false
	}
	result = values[0]
	for _, v := range values[1:] {
		if v < result {
			result = v
		}
	}
	return result, true
}
