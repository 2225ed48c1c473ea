// Package optimize implements the Optimization Loop (spec.md §4.I):
// iteratively proposing, persisting, and evaluating prompt/model variants
// against a task's baseline implementation, stopping after too many
// consecutive non-improvements.
package optimize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/traceforge/tracepilot/ent"
	entevaluation "github.com/traceforge/tracepilot/ent/evaluation"
	"github.com/traceforge/tracepilot/ent/evaluationconfig"
	"github.com/traceforge/tracepilot/ent/executionresult"
	"github.com/traceforge/tracepilot/ent/grade"
	"github.com/traceforge/tracepilot/ent/targettaskmetrics"
	"github.com/traceforge/tracepilot/pkg/cache"
	"github.com/traceforge/tracepilot/pkg/evaluation"
	"github.com/traceforge/tracepilot/pkg/llmrpc"
	"github.com/traceforge/tracepilot/pkg/models"
	"github.com/traceforge/tracepilot/pkg/pricing"
)

// MaxVariantAttemptsMultiplier bounds retries for a single iteration's
// variant-generation step: up to 2*MaxVariantAttemptsMultiplier attempts
// (spec.md §4.I step 1).
const MaxVariantAttemptsMultiplier = 3

// MaxFeedbackReasonings caps how many grader reasonings are carried into
// the next iteration's conversation feedback message.
const MaxFeedbackReasonings = 5

// ChangeableField names one of the Implementation fields the optimizer
// agent is allowed to propose changes to.
type ChangeableField string

const (
	FieldPrompt          ChangeableField = "prompt"
	FieldModel           ChangeableField = "model"
	FieldTemperature     ChangeableField = "temperature"
	FieldMaxOutputTokens ChangeableField = "max_output_tokens"
)

// Result is the optimizer's final return value.
type Result struct {
	BestImplementationID string
	BestScore            *float64
	IterationsRun        int
	Iterations           []IterationDetail
}

// IterationDetail records one iteration's outcome for the return value
// and for OptimizationIteration persistence.
type IterationDetail struct {
	Index                     int
	ProposedChanges           map[string]interface{}
	Explanation               string
	CandidateImplementationID string
	EvaluationID              string
	Improved                  bool
}

// Optimizer drives the loop.
type Optimizer struct {
	client     *ent.Client
	executor   *llmrpc.Executor
	evalOrch   *evaluation.Orchestrator
	cache      *cache.Client
	agentModel string
}

// NewOptimizer builds an Optimizer. agentModel is the model used for the
// internal optimizer-agent meta-calls (distinct from the task's own
// candidate models).
func NewOptimizer(client *ent.Client, executor *llmrpc.Executor, evalOrch *evaluation.Orchestrator, cacheClient *cache.Client, agentModel string) *Optimizer {
	return &Optimizer{client: client, executor: executor, evalOrch: evalOrch, cache: cacheClient, agentModel: agentModel}
}

// Run implements `run(task_id, max_iterations, changeable_fields,
// max_consecutive_no_improvements) → OptimizationResult` (spec.md §4.I).
func (o *Optimizer) Run(ctx context.Context, taskID string, maxIterations int, changeableFields []ChangeableField, maxConsecutiveNoImprovements int) (*Result, error) {
	if err := o.cache.ResetConversation(ctx, taskID); err != nil {
		return nil, fmt.Errorf("optimize: reset conversation: %w", err)
	}

	currentBestID, currentBestScore, err := o.loadBaseline(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("optimize: load baseline: %w", err)
	}
	if currentBestID == "" {
		return nil, fmt.Errorf("optimize: task %s has no implementation to optimize from", taskID)
	}

	baseline, err := o.client.Implementation.Get(ctx, currentBestID)
	if err != nil {
		return nil, fmt.Errorf("optimize: load baseline implementation: %w", err)
	}
	if baselineJSON, err := json.Marshal(implementationView(baseline)); err == nil {
		_ = o.cache.AppendConversationMessage(ctx, taskID, map[string]interface{}{"role": "user", "content": string(baselineJSON)})
	}

	run, err := o.client.OptimizationRun.Create().
		SetID(uuid.New().String()).
		SetTaskID(taskID).
		SetMaxIterations(maxIterations).
		SetChangeableFields(changeableFieldStrings(changeableFields)).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("optimize: create run: %w", err)
	}

	noImprovementStreak := 0
	var iterations []IterationDetail

	for i := 0; i < maxIterations; i++ {
		detail := IterationDetail{Index: i}

		variant, explanation, ok := o.generateVariant(ctx, taskID, baseline, changeableFields)
		detail.Explanation = explanation
		if !ok {
			iterations = append(iterations, detail)
			o.saveIteration(ctx, run.ID, detail)
			noImprovementStreak++
			if noImprovementStreak >= maxConsecutiveNoImprovements {
				break
			}
			continue
		}
		detail.ProposedChanges = variant

		candidate, err := o.persistVariant(ctx, baseline, variant)
		if err != nil {
			slog.Error("optimize: persist variant failed", "task_id", taskID, "error", err)
			iterations = append(iterations, detail)
			o.saveIteration(ctx, run.ID, detail)
			noImprovementStreak++
			if noImprovementStreak >= maxConsecutiveNoImprovements {
				break
			}
			continue
		}
		detail.CandidateImplementationID = candidate.ID

		outcome := o.evaluateCandidate(ctx, candidate)
		detail.EvaluationID = outcome.EvalID
		if err := o.cache.InvalidateScoreCache(ctx, taskID); err != nil {
			slog.Warn("optimize: invalidate score cache", "error", err)
		}

		improved := outcome.Score != nil && (currentBestScore == nil || *outcome.Score > *currentBestScore)
		detail.Improved = improved

		if feedback, err := buildFeedbackMessage(candidate.Version, outcome); err == nil {
			_ = o.cache.AppendConversationMessage(ctx, taskID, map[string]interface{}{"role": "user", "content": feedback})
		}

		if improved {
			currentBestID = candidate.ID
			currentBestScore = outcome.Score
			baseline = candidate
			noImprovementStreak = 0
		} else {
			noImprovementStreak++
		}

		iterations = append(iterations, detail)
		o.saveIteration(ctx, run.ID, detail)

		if noImprovementStreak >= maxConsecutiveNoImprovements {
			break
		}
	}

	update := o.client.OptimizationRun.UpdateOneID(run.ID).
		SetStatus("COMPLETED").
		SetIterationsRun(len(iterations)).
		SetCompletedAt(time.Now())
	if currentBestID != "" {
		update.SetBestImplementationID(currentBestID)
	}
	if currentBestScore != nil {
		update.SetBestScore(*currentBestScore)
	}
	if _, err := update.Save(ctx); err != nil {
		slog.Error("optimize: persist run completion", "error", err)
	}

	return &Result{
		BestImplementationID: currentBestID,
		BestScore:            currentBestScore,
		IterationsRun:        len(iterations),
		Iterations:           iterations,
	}, nil
}

func (o *Optimizer) saveIteration(ctx context.Context, runID string, detail IterationDetail) {
	if err := o.persistIteration(ctx, runID, detail); err != nil {
		slog.Error("optimize: persist iteration", "error", err)
	}
}

// loadBaseline implements spec.md §4.I's `load_baseline(task_id)`: the
// implementation with the highest avg_final_evaluation_score across its
// past evaluations (ties broken by smallest ID for stability), falling
// back to the task's production_version_id with a null score.
func (o *Optimizer) loadBaseline(ctx context.Context, taskID string) (string, *float64, error) {
	weights := evaluation.DefaultWeights
	if cfg, err := o.client.EvaluationConfig.Query().Where(evaluationconfig.TaskID(taskID)).Only(ctx); err == nil {
		weights = evaluation.Weights{Quality: cfg.WeightQuality, Cost: cfg.WeightCost, Time: cfg.WeightTime}
	}

	var bestCost, bestTimeMs *float64
	if targets, err := o.client.TargetTaskMetrics.Query().Where(targettaskmetrics.TaskID(taskID)).Only(ctx); err == nil {
		bestCost, bestTimeMs = targets.BestCost, targets.BestTimeMs
	}

	evals, err := o.client.Evaluation.Query().
		Where(entevaluation.TaskID(taskID), entevaluation.StatusEQ(entevaluation.StatusCOMPLETED)).
		All(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("query evaluations: %w", err)
	}

	perImpl := map[string][]float64{}
	for _, e := range evals {
		costEff := evaluation.CostEfficiency(bestCost, e.AvgCost)
		timeEff := evaluation.TimeEfficiency(bestTimeMs, e.AvgExecutionTimeMs)
		score := evaluation.FinalScore(weights, e.QualityScore, costEff, timeEff)
		if score == nil {
			continue
		}
		perImpl[e.ImplementationID] = append(perImpl[e.ImplementationID], *score)
	}

	var bestID string
	var bestAvg float64
	for implID, scores := range perImpl {
		mean, ok := evaluation.Mean(scores)
		if !ok {
			continue
		}
		if bestID == "" || mean > bestAvg || (mean == bestAvg && implID < bestID) {
			bestID = implID
			bestAvg = mean
		}
	}
	if bestID != "" {
		v := bestAvg
		return bestID, &v, nil
	}

	task, err := o.client.Task.Get(ctx, taskID)
	if err != nil {
		return "", nil, fmt.Errorf("load task: %w", err)
	}
	if task.ProductionVersionID != nil {
		return *task.ProductionVersionID, nil, nil
	}
	return "", nil, nil
}

func implementationView(impl *ent.Implementation) map[string]interface{} {
	return map[string]interface{}{
		"version":           impl.Version,
		"prompt":            impl.Prompt,
		"model":             impl.Model,
		"temperature":       impl.Temperature,
		"max_output_tokens": impl.MaxOutputTokens,
	}
}

func changeableFieldStrings(fields []ChangeableField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}

const optimizerAgentPrompt = `You are improving an LLM task implementation. Given the current
implementation and feedback from previous attempts, propose exactly one
change to try next.

{{baseline}}

{{feedback}}

Respond with JSON containing only the fields you want to change, plus an
"explanation" field with a one-sentence rationale. Allowed fields:
{{fields}}`

// generateVariant implements spec.md §4.I step 1: an optimizer-agent LLM
// call whose response schema is restricted to changeableFields, retried
// up to 2*MaxVariantAttemptsMultiplier times on an unparseable or
// out-of-schema response.
func (o *Optimizer) generateVariant(ctx context.Context, taskID string, baseline *ent.Implementation, changeableFields []ChangeableField) (map[string]interface{}, string, bool) {
	baselineJSON, _ := json.Marshal(implementationView(baseline))
	history, _ := o.cache.Conversation(ctx, taskID)
	var feedback strings.Builder
	for _, msg := range history {
		feedback.Write(msg)
		feedback.WriteByte('\n')
	}

	prompt, err := llmrpc.RenderPrompt(optimizerAgentPrompt, map[string]string{
		"baseline": string(baselineJSON),
		"feedback": feedback.String(),
		"fields":   strings.Join(changeableFieldStrings(changeableFields), ", "),
	})
	if err != nil {
		slog.Error("optimize: render agent prompt", "error", err)
		return nil, "", false
	}

	spec := llmrpc.ImplementationSpec{
		Prompt:          prompt,
		Model:           o.agentModel,
		MaxOutputTokens: 1024,
		ResponseSchema:  variantSchema(changeableFields),
	}

	attempts := 2 * MaxVariantAttemptsMultiplier
	for attempt := 0; attempt < attempts; attempt++ {
		outcome := o.executor.Execute(ctx, spec, nil, models.ItemList{})
		if outcome.Error != nil {
			continue
		}
		payload := outcome.ResultJSON
		if payload == nil && outcome.ResultText != nil {
			_ = json.Unmarshal([]byte(*outcome.ResultText), &payload)
		}
		if payload == nil {
			continue
		}
		explanation, _ := payload["explanation"].(string)
		delete(payload, "explanation")
		changes := filterChangeableFields(payload, changeableFields)
		if len(changes) == 0 {
			continue
		}
		return changes, explanation, true
	}
	return nil, "", false
}

func variantSchema(fields []ChangeableField) map[string]interface{} {
	props := map[string]interface{}{
		"explanation": map[string]interface{}{"type": "string"},
	}
	for _, f := range fields {
		switch f {
		case FieldPrompt:
			props["prompt"] = map[string]interface{}{"type": "string"}
		case FieldModel:
			props["model"] = map[string]interface{}{"type": "string", "enum": pricing.KnownModels()}
		case FieldTemperature:
			props["temperature"] = map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1}
		case FieldMaxOutputTokens:
			props["max_output_tokens"] = map[string]interface{}{"type": "integer", "minimum": 1}
		}
	}
	return map[string]interface{}{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

func filterChangeableFields(payload map[string]interface{}, fields []ChangeableField) map[string]interface{} {
	allowed := map[string]bool{}
	for _, f := range fields {
		allowed[string(f)] = true
	}
	out := map[string]interface{}{}
	for k, v := range payload {
		if allowed[k] {
			out[k] = v
		}
	}
	return out
}

// persistVariant creates a new ephemeral Implementation applying variant
// on top of baseline, with a bumped "{major}.{next_minor}" version.
func (o *Optimizer) persistVariant(ctx context.Context, baseline *ent.Implementation, variant map[string]interface{}) (*ent.Implementation, error) {
	builder := o.client.Implementation.Create().
		SetID(uuid.New().String()).
		SetTaskID(baseline.TaskID).
		SetVersion(bumpMinorVersion(baseline.Version)).
		SetPrompt(baseline.Prompt).
		SetModel(baseline.Model).
		SetMaxOutputTokens(baseline.MaxOutputTokens).
		SetTemp(true)
	if baseline.Temperature != nil {
		builder.SetTemperature(*baseline.Temperature)
	}
	if baseline.Tools != nil {
		builder.SetTools(baseline.Tools)
	}
	if baseline.ToolChoice != nil {
		builder.SetToolChoice(baseline.ToolChoice)
	}
	if baseline.ResponseSchema != nil {
		builder.SetResponseSchema(baseline.ResponseSchema)
	}

	if v, ok := variant["prompt"].(string); ok {
		builder.SetPrompt(v)
	}
	if v, ok := variant["model"].(string); ok {
		builder.SetModel(v)
	}
	if v, ok := variant["temperature"].(float64); ok {
		builder.SetTemperature(clampTemperature(v))
	}
	if v, ok := variant["max_output_tokens"].(float64); ok {
		builder.SetMaxOutputTokens(int(v))
	}

	return builder.Save(ctx)
}

// clampTemperature enforces spec.md §4.I's temperature ∈ [0,1] contract
// against a proposed variant, since the response schema's min/max bounds
// are advisory to the provider, not locally validated.
func clampTemperature(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// bumpMinorVersion implements the "{major}.{next_minor}" version bump
// convention documented on ent/schema/implementation.go's version field.
func bumpMinorVersion(version string) string {
	parts := strings.SplitN(version, ".", 2)
	major := parts[0]
	minor := 0
	if len(parts) == 2 {
		if n, err := strconv.Atoi(strings.TrimSuffix(parts[1], "-temp")); err == nil {
			minor = n
		}
	}
	return fmt.Sprintf("%s.%d", major, minor+1)
}

// candidateEvaluation bundles evaluateCandidate's result: the final score
// plus everything buildFeedbackMessage needs to report back to the
// optimizer agent.
type candidateEvaluation struct {
	Score      *float64
	EvalID     string
	Reasonings []graderReasoning
	AvgCost    *float64
	AvgTimeMs  *float64
}

// evaluateCandidate runs §4.H's create_evaluation/execute_in_background
// against the candidate implementation and collects the per-grader
// reasonings needed for the next iteration's feedback message.
func (o *Optimizer) evaluateCandidate(ctx context.Context, candidate *ent.Implementation) candidateEvaluation {
	eval, err := o.evalOrch.CreateEvaluation(ctx, candidate.ID)
	if err != nil {
		slog.Error("optimize: create evaluation", "implementation_id", candidate.ID, "error", err)
		return candidateEvaluation{}
	}
	o.evalOrch.ExecuteInBackground(ctx, eval.ID)

	completed, err := o.client.Evaluation.Get(ctx, eval.ID)
	if err != nil {
		slog.Error("optimize: reload evaluation", "evaluation_id", eval.ID, "error", err)
		return candidateEvaluation{EvalID: eval.ID}
	}
	if completed.Status != entevaluation.StatusCOMPLETED {
		return candidateEvaluation{EvalID: eval.ID}
	}

	var costEff, timeEff *float64
	if targets, err := o.client.TargetTaskMetrics.Query().Where(targettaskmetrics.TaskID(candidate.TaskID)).Only(ctx); err == nil {
		costEff = evaluation.CostEfficiency(targets.BestCost, completed.AvgCost)
		timeEff = evaluation.TimeEfficiency(targets.BestTimeMs, completed.AvgExecutionTimeMs)
	}
	weights := evaluation.DefaultWeights
	if cfg, err := o.client.EvaluationConfig.Query().Where(evaluationconfig.TaskID(candidate.TaskID)).Only(ctx); err == nil {
		weights = evaluation.Weights{Quality: cfg.WeightQuality, Cost: cfg.WeightCost, Time: cfg.WeightTime}
	}
	score := evaluation.FinalScore(weights, completed.QualityScore, costEff, timeEff)

	return candidateEvaluation{
		Score:      score,
		EvalID:     eval.ID,
		Reasonings: o.collectGraderReasonings(ctx, eval.ID),
		AvgCost:    completed.AvgCost,
		AvgTimeMs:  completed.AvgExecutionTimeMs,
	}
}

type graderReasoning struct {
	GraderID  string
	Score     *float64
	Reasoning *string
}

// MaxGraderReasoningsPerGrader caps how many individual Grade.reasoning
// texts (one per graded ExecutionResult) are folded into a single grader's
// feedback entry, per spec.md §4.I step 4's "per-grader {score,
// reasonings[≤5]}".
const MaxGraderReasoningsPerGrader = 5

func (o *Optimizer) collectGraderReasonings(ctx context.Context, evalID string) []graderReasoning {
	eval, err := o.client.Evaluation.Get(ctx, evalID)
	if err != nil {
		return nil
	}

	resultIDs, err := o.client.ExecutionResult.Query().
		Where(executionresult.EvaluationID(evalID)).
		IDs(ctx)
	if err != nil {
		slog.Error("optimize: load execution results for grader reasonings", "evaluation_id", evalID, "error", err)
		resultIDs = nil
	}

	reasoningsByGrader := map[string][]string{}
	if len(resultIDs) > 0 {
		grades, err := o.client.Grade.Query().
			Where(grade.ExecutionResultIDIn(resultIDs...)).
			Order(ent.Asc(grade.FieldGradingStartedAt)).
			All(ctx)
		if err != nil {
			slog.Error("optimize: load grades for reasonings", "evaluation_id", evalID, "error", err)
		}
		for _, g := range grades {
			if g.Reasoning == nil || *g.Reasoning == "" {
				continue
			}
			texts := reasoningsByGrader[g.GraderID]
			if len(texts) >= MaxGraderReasoningsPerGrader {
				continue
			}
			reasoningsByGrader[g.GraderID] = append(texts, *g.Reasoning)
		}
	}

	var out []graderReasoning
	for graderID, score := range eval.GraderScores {
		v := score
		entry := graderReasoning{GraderID: graderID, Score: &v}
		if texts := reasoningsByGrader[graderID]; len(texts) > 0 {
			joined := strings.Join(texts, " | ")
			entry.Reasoning = &joined
		}
		out = append(out, entry)
	}
	return out
}

// buildFeedbackMessage formats the next conversation entry per spec.md
// §4.I step 4: a user message carrying the evaluated implementation's
// version, avg_cost, avg_execution_time_ms, final_score, and per-grader
// {score, reasonings[≤5]}, with grader reasonings sorted descending by
// score, nulls last, truncated to MaxFeedbackReasonings.
func buildFeedbackMessage(version string, outcome candidateEvaluation) (string, error) {
	reasonings := outcome.Reasonings
	sort.SliceStable(reasonings, func(i, j int) bool {
		a, b := reasonings[i].Score, reasonings[j].Score
		if a == nil && b == nil {
			return false
		}
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a > *b
	})
	if len(reasonings) > MaxFeedbackReasonings {
		reasonings = reasonings[:MaxFeedbackReasonings]
	}

	payload := map[string]interface{}{
		"role":    "user",
		"version": version,
	}
	if outcome.Score != nil {
		payload["final_score"] = *outcome.Score
	} else {
		payload["final_score"] = nil
	}
	if outcome.AvgCost != nil {
		payload["avg_cost"] = *outcome.AvgCost
	} else {
		payload["avg_cost"] = nil
	}
	if outcome.AvgTimeMs != nil {
		payload["avg_execution_time_ms"] = *outcome.AvgTimeMs
	} else {
		payload["avg_execution_time_ms"] = nil
	}
	graders := make([]map[string]interface{}, 0, len(reasonings))
	for _, r := range reasonings {
		entry := map[string]interface{}{"grader_id": r.GraderID}
		if r.Score != nil {
			entry["score"] = *r.Score
		}
		if r.Reasoning != nil {
			entry["reasoning"] = *r.Reasoning
		}
		graders = append(graders, entry)
	}
	payload["graders"] = graders

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (o *Optimizer) persistIteration(ctx context.Context, runID string, detail IterationDetail) error {
	builder := o.client.OptimizationIteration.Create().
		SetID(uuid.New().String()).
		SetRunID(runID).
		SetIndex(detail.Index).
		SetImproved(detail.Improved)
	if detail.ProposedChanges != nil {
		builder.SetProposedChanges(detail.ProposedChanges)
	}
	if detail.Explanation != "" {
		builder.SetExplanation(detail.Explanation)
	}
	if detail.CandidateImplementationID != "" {
		builder.SetCandidateImplementationID(detail.CandidateImplementationID)
	}
	if detail.EvaluationID != "" {
		builder.SetEvaluationID(detail.EvaluationID)
	}
	_, err := builder.Save(ctx)
	return err
}
