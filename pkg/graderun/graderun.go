// Package graderun implements the Grader Runtime (spec.md §4.F):
// rendering a grader's prompt against a Trace or ExecutionResult target,
// invoking the LLM, and parsing the resulting score.
package graderun

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/traceforge/tracepilot/pkg/llmrpc"
	"github.com/traceforge/tracepilot/pkg/models"
	"github.com/traceforge/tracepilot/pkg/services"
)

// ScoreType discriminates a grader's scoring shape.
type ScoreType string

const (
	ScoreTypeFloat   ScoreType = "FLOAT"
	ScoreTypeBoolean ScoreType = "BOOLEAN"
)

// GraderSpec is everything the runtime needs about a Grader, decoupled
// from ent.
type GraderSpec struct {
	ID              string
	IsActive        bool
	Prompt          string
	ScoreType       ScoreType
	Model           string
	Temperature     *float64
	MaxOutputTokens int
	ResponseSchema  map[string]interface{}
}

// Target is XOR of a Trace or an ExecutionResult being graded, flattened
// into the pieces the context-builder needs (spec.md §4.F step 2).
type Target struct {
	InputItems  models.ItemList
	OutputItems models.ItemList
	Tools       []interface{}
	ResultText  *string
	ResultJSON  map[string]interface{}
	Error       *string
}

// Grade is the runtime's result, ready for ent persistence.
type Grade struct {
	GraderID            string
	ScoreFloat          *float64
	ScoreBoolean        *bool
	Reasoning           *string
	Confidence          *float64
	PromptTokens        int
	CompletionTokens    int
	TotalTokens         int
	GradingStartedAt    time.Time
	GradingCompletedAt  time.Time
	Error               *string
}

// structuredScoreSchema validates the preferred structured response shape
// {score, reasoning?, confidence?}.
var structuredScoreSchema = mustCompileSchema(`{
	"type": "object",
	"properties": {
		"score": {},
		"reasoning": {"type": "string"},
		"confidence": {"type": "number"}
	},
	"required": ["score"]
}`)

func mustCompileSchema(schemaJSON string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("structured-score.json", strings.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("graderun: invalid embedded schema: %v", err))
	}
	return c.MustCompile("structured-score.json")
}

// Runtime executes grading via an llmrpc.Executor.
type Runtime struct {
	executor *llmrpc.Executor
}

// NewRuntime builds a Runtime bound to an LLM Executor.
func NewRuntime(executor *llmrpc.Executor) *Runtime {
	return &Runtime{executor: executor}
}

// Execute implements `execute_grading(grader, target) → Grade`
// (spec.md §4.F).
func (r *Runtime) Execute(ctx context.Context, grader GraderSpec, target Target) (*Grade, error) {
	if !grader.IsActive {
		return nil, services.NewBadRequest("grader %s is not active", grader.ID)
	}

	started := time.Now()
	contextStr := buildContext(target)
	renderedPrompt, err := renderGraderPrompt(grader.Prompt, contextStr)
	if err != nil {
		msg := err.Error()
		return &Grade{GraderID: grader.ID, GradingStartedAt: started, GradingCompletedAt: time.Now(), Error: &msg}, nil
	}

	impl := llmrpc.ImplementationSpec{
		Prompt:          renderedPrompt,
		Model:           grader.Model,
		Temperature:     grader.Temperature,
		MaxOutputTokens: grader.MaxOutputTokens,
		ResponseSchema:  grader.ResponseSchema,
	}
	outcome := r.executor.Execute(ctx, impl, nil, nil)

	grade := &Grade{
		GraderID:           grader.ID,
		PromptTokens:       outcome.PromptTokens,
		CompletionTokens:   outcome.CompletionTokens,
		TotalTokens:        outcome.TotalTokens,
		GradingStartedAt:   outcome.StartedAt,
		GradingCompletedAt: outcome.CompletedAt,
		Error:              outcome.Error,
	}
	if outcome.Error != nil {
		return grade, nil
	}

	parseScore(grader.ScoreType, outcome, grade)
	return grade, nil
}

// renderGraderPrompt substitutes `{{context}}` into the grader prompt,
// first escaping any literal `{{` in the context so it cannot itself be
// interpreted as a placeholder by a downstream template consumer
// (spec.md §4.F step 3).
func renderGraderPrompt(prompt, contextStr string) (string, error) {
	escaped := strings.ReplaceAll(contextStr, "{{", "{")
	if !strings.Contains(prompt, "{{context}}") {
		return "", fmt.Errorf("grader prompt missing {{context}} placeholder")
	}
	return strings.ReplaceAll(prompt, "{{context}}", escaped), nil
}

// buildContext flattens a grading target into the context string rendered
// into the grader's prompt: messages, tools, and the result or error.
func buildContext(t Target) string {
	var b strings.Builder
	writeItems := func(label string, items models.ItemList) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "== %s ==\n", label)
		for _, item := range items {
			switch v := item.(type) {
			case models.MessageItem:
				fmt.Fprintf(&b, "[%s] %s\n", v.Role, v.Content)
			case models.FunctionCallItem:
				fmt.Fprintf(&b, "[function_call] %s(%s)\n", v.Name, v.Arguments)
			case models.FunctionToolCallItem:
				fmt.Fprintf(&b, "[function_call] %s(%s)\n", v.Name, v.Arguments)
			case models.ToolResultItem:
				fmt.Fprintf(&b, "[tool_result:%s] %s\n", v.ToolName, v.Result)
			case models.OutputMessageItem:
				fmt.Fprintf(&b, "[output] %s\n", v.Text)
			}
		}
	}
	writeItems("input", t.InputItems)
	writeItems("output", t.OutputItems)

	if len(t.Tools) > 0 {
		b.WriteString("== tools ==\n")
		toolsJSON, _ := json.Marshal(t.Tools)
		b.Write(toolsJSON)
		b.WriteString("\n")
	}
	if t.Error != nil {
		fmt.Fprintf(&b, "== error ==\n%s\n", *t.Error)
	} else if t.ResultJSON != nil {
		b.WriteString("== result ==\n")
		resultJSON, _ := json.Marshal(t.ResultJSON)
		b.Write(resultJSON)
		b.WriteString("\n")
	} else if t.ResultText != nil {
		fmt.Fprintf(&b, "== result ==\n%s\n", *t.ResultText)
	}
	return b.String()
}

var boolTrueRe = regexp.MustCompile(`(?i)\b(true|pass|yes)\b`)
var boolFalseRe = regexp.MustCompile(`(?i)\b(false|fail|no)\b`)

// parseScore implements spec.md §4.F step 5: prefer a structured
// {score, reasoning?, confidence?} object; fall back to parsing
// result_text as JSON; else, for BOOLEAN, heuristically detect
// true/pass/yes vs false/fail/no (case-insensitive, whole-word).
func parseScore(scoreType ScoreType, outcome *llmrpc.ExecutionOutcome, grade *Grade) {
	structured := outcome.ResultJSON
	if structured == nil && outcome.ResultText != nil {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(*outcome.ResultText), &parsed); err == nil {
			structured = parsed
		}
	}

	if structured != nil && structuredScoreSchema.Validate(structured) == nil {
		applyStructuredScore(scoreType, structured, grade)
		return
	}

	if scoreType == ScoreTypeBoolean && outcome.ResultText != nil {
		text := *outcome.ResultText
		v := boolTrueRe.MatchString(text) && !boolFalseRe.MatchString(text)
		grade.ScoreBoolean = &v
		return
	}

	msg := "unable to parse grader score from response"
	grade.Error = &msg
}

func applyStructuredScore(scoreType ScoreType, m map[string]interface{}, grade *Grade) {
	if reasoning, ok := m["reasoning"].(string); ok {
		grade.Reasoning = &reasoning
	}
	if confidence, ok := m["confidence"].(float64); ok {
		grade.Confidence = &confidence
	}
	switch scoreType {
	case ScoreTypeFloat:
		if score, ok := toFloat(m["score"]); ok {
			grade.ScoreFloat = &score
		}
	case ScoreTypeBoolean:
		switch v := m["score"].(type) {
		case bool:
			grade.ScoreBoolean = &v
		case float64:
			b := v != 0
			grade.ScoreBoolean = &b
		}
	}
}

func toFloat(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
