package api

// httpTracePayload is the POST /http-traces request body (spec.md §6,
// §4.K): bytes fields are base64 via encoding/json's []byte handling.
type httpTracePayload struct {
	ProjectID         string            `json:"project_id" binding:"required"`
	URL               string            `json:"url" binding:"required"`
	Method            string            `json:"method" binding:"required"`
	StartedAt         string            `json:"started_at" binding:"required"`
	CompletedAt       string            `json:"completed_at" binding:"required"`
	StatusCode        *int              `json:"status_code,omitempty"`
	Error             *string           `json:"error,omitempty"`
	Request           []byte            `json:"request,omitempty"`
	RequestHeaders    map[string]string `json:"request_headers,omitempty"`
	Response          []byte            `json:"response,omitempty"`
	ResponseHeaders   map[string]string `json:"response_headers,omitempty"`
	Metadata          map[string]any    `json:"metadata,omitempty"`
	IsStreaming       bool              `json:"is_streaming,omitempty"`
	StreamingResponse []byte            `json:"streaming_response,omitempty"`
	ImplementationID  *string           `json:"implementation_id,omitempty"`
}

// createTraceRequest is the POST /traces body — a pre-parsed trace, for
// submitters that already normalized their own provider payload.
type createTraceRequest struct {
	ProjectID         string         `json:"project_id" binding:"required"`
	HTTPTraceID       *string        `json:"http_trace_id,omitempty"`
	Model             string         `json:"model" binding:"required"`
	Path              *string        `json:"path,omitempty"`
	InputItems        []any          `json:"input_items" binding:"required"`
	OutputItems       []any          `json:"output_items" binding:"required"`
	Tools             []any          `json:"tools,omitempty"`
	ResponseSchema    map[string]any `json:"response_schema,omitempty"`
	Temperature       *float64       `json:"temperature,omitempty"`
	MaxTokens         *int           `json:"max_tokens,omitempty"`
	FinishReason      *string        `json:"finish_reason,omitempty"`
	PromptTokens      int            `json:"prompt_tokens,omitempty"`
	CompletionTokens  int            `json:"completion_tokens,omitempty"`
	CachedTokens      int            `json:"cached_tokens,omitempty"`
	ReasoningTokens   int            `json:"reasoning_tokens,omitempty"`
	TotalTokens       int            `json:"total_tokens,omitempty"`
	SystemFingerprint *string        `json:"system_fingerprint,omitempty"`
	Error             *string        `json:"error,omitempty"`
}

type createTaskRequest struct {
	ProjectID           string         `json:"project_id" binding:"required"`
	Name                string         `json:"name" binding:"required"`
	Description         string         `json:"description,omitempty"`
	Path                *string        `json:"path,omitempty"`
	ProductionVersionID *string        `json:"production_version_id,omitempty"`
	ResponseSchema      map[string]any `json:"response_schema,omitempty"`
}

type createTestCaseRequest struct {
	Description    *string        `json:"description,omitempty"`
	Arguments      map[string]any `json:"arguments,omitempty"`
	ExpectedOutput []any          `json:"expected_output,omitempty"`
}

type updateTestCaseRequest struct {
	Description    *string        `json:"description,omitempty"`
	Arguments      map[string]any `json:"arguments,omitempty"`
	ExpectedOutput []any          `json:"expected_output,omitempty"`
}

type createGraderRequest struct {
	ProjectID       string         `json:"project_id,omitempty"`
	Name            string         `json:"name" binding:"required"`
	Prompt          string         `json:"prompt" binding:"required"`
	ScoreType       string         `json:"score_type" binding:"required,oneof=FLOAT BOOLEAN"`
	Model           string         `json:"model" binding:"required"`
	Temperature     *float64       `json:"temperature,omitempty"`
	Reasoning       map[string]any `json:"reasoning,omitempty"`
	ResponseSchema  map[string]any `json:"response_schema,omitempty"`
	MaxOutputTokens *int           `json:"max_output_tokens,omitempty"`
	IsActive        *bool          `json:"is_active,omitempty"`
}

type updateGraderRequest struct {
	Name            *string        `json:"name,omitempty"`
	Prompt          *string        `json:"prompt,omitempty"`
	Model           *string        `json:"model,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
	ResponseSchema  map[string]any `json:"response_schema,omitempty"`
	MaxOutputTokens *int           `json:"max_output_tokens,omitempty"`
	IsActive        *bool          `json:"is_active,omitempty"`
}

type createGradeRequest struct {
	GraderID          string `json:"grader_id" binding:"required"`
	TraceID           string `json:"trace_id,omitempty"`
	ExecutionResultID string `json:"execution_result_id,omitempty"`
}

type evaluationConfigRequest struct {
	WeightQuality float64  `json:"weight_quality"`
	WeightCost    float64  `json:"weight_cost"`
	WeightTime    float64  `json:"weight_time"`
	GraderIDs     []string `json:"grader_ids,omitempty"`
}

type createEvaluationRequest struct {
	ImplementationID string `json:"implementation_id" binding:"required"`
}

type executeImplementationRequest struct {
	Variables map[string]string `json:"variables,omitempty"`
}

type executeTaskOverrideRequest struct {
	Variables       map[string]string `json:"variables,omitempty"`
	Model           *string           `json:"model,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty"`
	MaxOutputTokens *int              `json:"max_output_tokens,omitempty"`
}
