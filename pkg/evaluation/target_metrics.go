package evaluation

import "github.com/traceforge/tracepilot/pkg/pricing"

// MinResultsForRobustMetrics is the threshold below which
// calculate_target_metrics falls back to a simple minimum instead of the
// IQR-filtered robust minimum (spec.md §4.H calculate_target_metrics).
const MinResultsForRobustMetrics = 5

// ComputeBest implements the per-task `(best_cost, best_time_ms)`
// computation: with fewer than MinResultsForRobustMetrics qualifying
// values, take the simple minimum; otherwise take the robust (IQR-fenced)
// minimum, falling back to simple if the robust query excludes
// everything.
func ComputeBest(values []float64) (float64, bool) {
	if len(values) < MinResultsForRobustMetrics {
		return pricing.SimpleMin(values)
	}
	if v, ok := pricing.RobustMin(values); ok {
		return v, true
	}
	return pricing.SimpleMin(values)
}
