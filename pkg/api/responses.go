package api

// ingestResponse is returned by POST /http-traces.
type ingestResponse struct {
	ID      string `json:"id"`
	TraceID string `json:"trace_id,omitempty"`
	Deduped bool   `json:"deduped,omitempty"`
}

// taskListItem is one row of GET /v1/tasks, augmented with §4.G weighted
// percentile statistics over the task's recent traces.
type taskListItem struct {
	ID                string   `json:"id"`
	ProjectID         string   `json:"project_id"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	Path              *string  `json:"path,omitempty"`
	CostPercentile    *float64 `json:"cost_percentile,omitempty"`
	LatencyPercentile *float64 `json:"latency_percentile,omitempty"`
	LastActivity      *string  `json:"last_activity,omitempty"`
}

// graderListItem is one row of GET /v1/graders, augmented with a grade
// count.
type graderListItem struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	Name       string `json:"name"`
	ScoreType  string `json:"score_type"`
	Model      string `json:"model"`
	IsActive   bool   `json:"is_active"`
	GradeCount int    `json:"grade_count"`
}

// evaluationResponse is returned by GET /v1/evaluations/{id}, with
// efficiency and final scores computed on read (spec.md §4.H).
type evaluationResponse struct {
	ID                 string             `json:"id"`
	TaskID             string             `json:"task_id"`
	ImplementationID   string             `json:"implementation_id"`
	Status             string             `json:"status"`
	GraderScores       map[string]float64 `json:"grader_scores,omitempty"`
	GraderErrorRates   map[string]float64 `json:"grader_error_rates,omitempty"`
	QualityScore       *float64           `json:"quality_score,omitempty"`
	AvgCost            *float64           `json:"avg_cost,omitempty"`
	AvgExecutionTimeMs *float64           `json:"avg_execution_time_ms,omitempty"`
	CostEfficiency     *float64           `json:"cost_efficiency_score,omitempty"`
	TimeEfficiency     *float64           `json:"time_efficiency_score,omitempty"`
	FinalScore         *float64           `json:"final_score,omitempty"`
	TestCaseCount      int                `json:"test_case_count"`
	Error              *string            `json:"error,omitempty"`
}
