// Package evaluation implements the Evaluation Orchestrator (spec.md
// §4.H): the RUNNING→COMPLETED|FAILED state machine for one Evaluation,
// its three-commit-point persistence, robust target-metrics computation,
// and the read-path efficiency/final-score calculations.
package evaluation

// Weights are the evaluation config's blend weights for quality, cost, and
// time, summing to 1.0 by convention (not enforced).
type Weights struct {
	Quality float64
	Cost    float64
	Time    float64
}

// DefaultWeights matches the {0.5, 0.3, 0.2} default created when a task
// has no EvaluationConfig yet (spec.md §4.H create_evaluation).
var DefaultWeights = Weights{Quality: 0.5, Cost: 0.3, Time: 0.2}

// CostEfficiency implements `cost_efficiency = min(1.0, best_cost /
// avg_cost)`, nil if either input is nil (spec.md §4.H on-demand
// calculations).
func CostEfficiency(bestCost, avgCost *float64) *float64 {
	if bestCost == nil || avgCost == nil || *avgCost == 0 {
		return nil
	}
	v := *bestCost / *avgCost
	if v > 1.0 {
		v = 1.0
	}
	return &v
}

// TimeEfficiency is the time-domain analogue of CostEfficiency.
func TimeEfficiency(bestTimeMs, avgTimeMs *float64) *float64 {
	return CostEfficiency(bestTimeMs, avgTimeMs)
}

// FinalScore implements:
//
//	final_score = w_q·quality + w_c·cost_eff + w_t·time_eff
//
// Each missing term contributes 0 unless quality itself is missing, in
// which case the whole result is nil; when only quality is present and
// weights are the zero value, final = quality (spec.md §4.H on-demand
// calculations).
func FinalScore(w Weights, quality, costEfficiency, timeEfficiency *float64) *float64 {
	if quality == nil {
		return nil
	}
	if w == (Weights{}) {
		v := *quality
		return &v
	}
	score := w.Quality * *quality
	if costEfficiency != nil {
		score += w.Cost * *costEfficiency
	}
	if timeEfficiency != nil {
		score += w.Time * *timeEfficiency
	}
	return &score
}

// Mean returns the arithmetic mean of values, or ok=false if empty.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}
