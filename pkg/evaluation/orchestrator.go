package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/traceforge/tracepilot/ent"
	"github.com/traceforge/tracepilot/ent/evaluation"
	"github.com/traceforge/tracepilot/ent/evaluationconfig"
	"github.com/traceforge/tracepilot/ent/executionresult"
	"github.com/traceforge/tracepilot/ent/grader"
	"github.com/traceforge/tracepilot/ent/implementation"
	"github.com/traceforge/tracepilot/ent/targettaskmetrics"
	"github.com/traceforge/tracepilot/ent/testcase"
	"github.com/traceforge/tracepilot/pkg/graderun"
	"github.com/traceforge/tracepilot/pkg/llmrpc"
	"github.com/traceforge/tracepilot/pkg/models"
	"github.com/traceforge/tracepilot/pkg/services"
)

// Orchestrator drives the Evaluation state machine.
type Orchestrator struct {
	client   *ent.Client
	executor *llmrpc.Executor
	grading  *graderun.Runtime
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(client *ent.Client, executor *llmrpc.Executor, grading *graderun.Runtime) *Orchestrator {
	return &Orchestrator{client: client, executor: executor, grading: grading}
}

// CreateEvaluation implements `create_evaluation(impl_id)` (spec.md §4.H):
// loads the implementation+task, ensures an EvaluationConfig exists
// (creating the {0.5,0.3,0.2} default if absent), ensures at least one
// grader is configured (creating a default accuracy grader if the
// project has none), requires at least one test case, and writes a
// RUNNING Evaluation record.
func (o *Orchestrator) CreateEvaluation(ctx context.Context, implID string) (*ent.Evaluation, error) {
	impl, err := o.client.Implementation.Query().
		Where(implementation.ID(implID)).
		WithTask().
		Only(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluation: load implementation: %w", err)
	}
	task := impl.Edges.Task
	if task == nil {
		return nil, fmt.Errorf("evaluation: implementation %s has no task", implID)
	}

	cfg, err := o.ensureEvaluationConfig(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	if len(cfg.GraderIds) == 0 {
		graderIDs, err := o.getAllProjectGraders(ctx, task.ProjectID)
		if err != nil {
			return nil, err
		}
		cfg, err = cfg.Update().SetGraderIds(graderIDs).Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("evaluation: persist default graders: %w", err)
		}
	}

	testCaseCount, err := o.client.TestCase.Query().Where(testcase.TaskID(task.ID)).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluation: count test cases: %w", err)
	}
	if testCaseCount == 0 {
		return nil, services.NewBadRequest("No test cases found for task %s", task.ID)
	}

	eval, err := o.client.Evaluation.Create().
		SetID(uuid.New().String()).
		SetTaskID(task.ID).
		SetImplementationID(implID).
		SetStatus(evaluation.StatusRUNNING).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluation: create record: %w", err)
	}
	return eval, nil
}

func (o *Orchestrator) ensureEvaluationConfig(ctx context.Context, taskID string) (*ent.EvaluationConfig, error) {
	cfg, err := o.client.EvaluationConfig.Query().Where(evaluationconfig.TaskID(taskID)).Only(ctx)
	if err == nil {
		return cfg, nil
	}
	if !ent.IsNotFound(err) {
		return nil, fmt.Errorf("evaluation: load config: %w", err)
	}
	cfg, err = o.client.EvaluationConfig.Create().
		SetID(uuid.New().String()).
		SetTaskID(taskID).
		SetWeightQuality(DefaultWeights.Quality).
		SetWeightCost(DefaultWeights.Cost).
		SetWeightTime(DefaultWeights.Time).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluation: create default config: %w", err)
	}
	return cfg, nil
}

// getAllProjectGraders returns every active grader ID for a project,
// creating a default accuracy grader first if the project has none.
func (o *Orchestrator) getAllProjectGraders(ctx context.Context, projectID string) ([]string, error) {
	graders, err := o.client.Grader.Query().
		Where(grader.ProjectID(projectID), grader.IsActive(true)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluation: query project graders: %w", err)
	}
	if len(graders) == 0 {
		defaultGrader, err := o.client.Grader.Create().
			SetID(uuid.New().String()).
			SetProjectID(projectID).
			SetName("accuracy").
			SetPrompt(defaultAccuracyGraderPrompt).
			SetScoreType(grader.ScoreTypeFLOAT).
			SetModel("gpt-4o-mini").
			SetMaxOutputTokens(512).
			SetIsActive(true).
			Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("evaluation: create default grader: %w", err)
		}
		return []string{defaultGrader.ID}, nil
	}
	ids := make([]string, len(graders))
	for i, g := range graders {
		ids[i] = g.ID
	}
	return ids, nil
}

const defaultAccuracyGraderPrompt = `Rate how accurate and complete this response is on a 0.0-1.0 scale.

{{context}}

Respond with JSON: {"score": <float 0-1>, "reasoning": "<one sentence>"}`

// ExecuteInBackground implements `execute_in_background(eval_id)`
// (spec.md §4.H): runs execution, grading, and aggregation as a
// background job with its own transactional context, persisting at
// three commit points. Any unhandled error transitions the evaluation to
// FAILED, committed separately.
func (o *Orchestrator) ExecuteInBackground(ctx context.Context, evalID string) {
	if err := o.run(ctx, evalID); err != nil {
		slog.Error("evaluation: execution failed", "evaluation_id", evalID, "error", err)
		msg := err.Error()
		if _, updateErr := o.client.Evaluation.UpdateOneID(evalID).
			SetStatus(evaluation.StatusFAILED).
			SetError(msg).
			SetCompletedAt(time.Now()).
			Save(context.Background()); updateErr != nil {
			slog.Error("evaluation: failed to persist FAILED status", "evaluation_id", evalID, "error", updateErr)
		}
	}
}

func (o *Orchestrator) run(ctx context.Context, evalID string) error {
	eval, err := o.client.Evaluation.Query().
		Where(evaluation.ID(evalID)).
		WithTask().
		Only(ctx)
	if err != nil {
		return fmt.Errorf("load evaluation: %w", err)
	}
	impl, err := o.client.Implementation.Query().Where(implementation.ID(eval.ImplementationID)).Only(ctx)
	if err != nil {
		return fmt.Errorf("load implementation: %w", err)
	}
	cfg, err := o.client.EvaluationConfig.Query().Where(evaluationconfig.TaskID(eval.TaskID)).Only(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	testCases, err := o.client.TestCase.Query().
		Where(testcase.TaskID(eval.TaskID)).
		Order(ent.Asc(testcase.FieldID)).
		All(ctx)
	if err != nil {
		return fmt.Errorf("load test cases: %w", err)
	}

	results, err := o.executeTestCases(ctx, eval.ID, impl, testCases)
	if err != nil {
		return fmt.Errorf("execute test cases: %w", err)
	}

	graderScores, graderErrorRates, err := o.gradeResults(ctx, cfg.GraderIds, testCases, results)
	if err != nil {
		return fmt.Errorf("grade results: %w", err)
	}

	var qualityScore *float64
	if len(graderScores) > 0 {
		var scores []float64
		for _, s := range graderScores {
			scores = append(scores, s)
		}
		if mean, ok := Mean(scores); ok {
			qualityScore = &mean
		}
	}

	var costs, timesMs []float64
	for _, r := range results {
		if r.Cost != nil {
			costs = append(costs, *r.Cost)
		}
		timesMs = append(timesMs, float64(r.CompletedAt.Sub(r.StartedAt).Milliseconds()))
	}
	var avgCost, avgTimeMs *float64
	if mean, ok := Mean(costs); ok {
		avgCost = &mean
	}
	if mean, ok := Mean(timesMs); ok {
		avgTimeMs = &mean
	}

	if err := o.calculateTargetMetrics(ctx, eval.TaskID); err != nil {
		return fmt.Errorf("calculate target metrics: %w", err)
	}

	update := o.client.Evaluation.UpdateOneID(eval.ID).
		SetStatus(evaluation.StatusCOMPLETED).
		SetGraderScores(graderScores).
		SetGraderErrorRates(graderErrorRates).
		SetTestCaseCount(len(testCases)).
		SetCompletedAt(time.Now())
	if qualityScore != nil {
		update.SetQualityScore(*qualityScore)
	}
	if avgCost != nil {
		update.SetAvgCost(*avgCost)
	}
	if avgTimeMs != nil {
		update.SetAvgExecutionTimeMs(*avgTimeMs)
	}
	if _, err := update.Save(ctx); err != nil {
		return fmt.Errorf("persist completion: %w", err)
	}
	return nil
}

type testCaseResult struct {
	TestCaseID        string
	ExecutionResultID string
	StartedAt         time.Time
	CompletedAt       time.Time
	Cost              *float64
	ResultText        *string
	ResultJSON        map[string]interface{}
	Error             *string
}

// executeTestCases runs spec.md §4.H step 2: each test case, in order,
// persisted with evaluation_id/test_case_id attached, then committed as
// a batch before any grading runs (step 3).
func (o *Orchestrator) executeTestCases(ctx context.Context, evalID string, impl *ent.Implementation, testCases []*ent.TestCase) ([]testCaseResult, error) {
	tx, err := o.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	spec := llmrpc.ImplementationSpec{
		Prompt:          impl.Prompt,
		Model:           impl.Model,
		Temperature:     impl.Temperature,
		MaxOutputTokens: impl.MaxOutputTokens,
		Tools:           impl.Tools,
		ToolChoice:      impl.ToolChoice,
		ResponseSchema:  impl.ResponseSchema,
	}

	results := make([]testCaseResult, 0, len(testCases))
	for _, tc := range testCases {
		variables := stringifyArguments(tc.Arguments)
		outcome := o.executor.Execute(ctx, spec, variables, models.ItemList{})

		builder := tx.ExecutionResult.Create().
			SetID(uuid.New().String()).
			SetTaskID(impl.TaskID).
			SetImplementationID(impl.ID).
			SetStartedAt(outcome.StartedAt).
			SetCompletedAt(outcome.CompletedAt).
			SetPromptRendered(outcome.PromptRendered).
			SetVariables(variables).
			SetEvaluationID(evalID).
			SetTestCaseID(tc.ID).
			SetPromptTokens(outcome.PromptTokens).
			SetCompletionTokens(outcome.CompletionTokens).
			SetCachedTokens(outcome.CachedTokens).
			SetReasoningTokens(outcome.ReasoningTokens).
			SetTotalTokens(outcome.TotalTokens)
		if outcome.ResultText != nil {
			builder.SetResultText(*outcome.ResultText)
		}
		if outcome.ResultJSON != nil {
			builder.SetResultJSON(outcome.ResultJSON)
		}
		if outcome.ToolCalls != nil {
			builder.SetToolCalls(outcome.ToolCalls)
		}
		if outcome.Error != nil {
			builder.SetError(*outcome.Error)
		}
		saved, err := builder.Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("persist execution result for test case %s: %w", tc.ID, err)
		}
		if outcome.Cost != nil {
			saved, err = tx.ExecutionResult.UpdateOneID(saved.ID).SetCost(*outcome.Cost).Save(ctx)
			if err != nil {
				return nil, fmt.Errorf("persist cost for execution result %s: %w", saved.ID, err)
			}
		}

		results = append(results, testCaseResult{
			TestCaseID:        tc.ID,
			ExecutionResultID: saved.ID,
			StartedAt:         outcome.StartedAt,
			CompletedAt:       outcome.CompletedAt,
			Cost:              outcome.Cost,
			ResultText:        outcome.ResultText,
			ResultJSON:        outcome.ResultJSON,
			Error:             outcome.Error,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execution phase: %w", err)
	}
	return results, nil
}

// stringifyArguments flattens a TestCase's JSON-typed Arguments into the
// string-keyed, string-valued map RenderPrompt's {{var}} substitution and
// ExecutionResult.variables expect.
func stringifyArguments(args map[string]interface{}) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

// gradeResults implements spec.md §4.H steps 4-5 plus the grader-level
// error-rate supplement (SPEC_FULL.md §5): for each configured grader,
// grade every execution result paired by index with its test case, then
// reduce to a per-grader mean score and a per-grader error rate. Grades
// persist independently per call, not batched in a transaction.
func (o *Orchestrator) gradeResults(ctx context.Context, graderIDs []string, testCases []*ent.TestCase, results []testCaseResult) (map[string]float64, map[string]float64, error) {
	graderScores := map[string]float64{}
	graderErrorRates := map[string]float64{}

	for _, graderID := range graderIDs {
		g, err := o.client.Grader.Get(ctx, graderID)
		if err != nil {
			return nil, nil, fmt.Errorf("load grader %s: %w", graderID, err)
		}
		spec := graderun.GraderSpec{
			ID: g.ID, IsActive: g.IsActive, Prompt: g.Prompt,
			ScoreType: graderun.ScoreType(g.ScoreType), Model: g.Model,
			Temperature: g.Temperature, MaxOutputTokens: g.MaxOutputTokens,
			ResponseSchema: g.ResponseSchema,
		}

		var scalars []float64
		erroredCount := 0
		for _, r := range results {
			target := graderun.Target{ResultText: r.ResultText, ResultJSON: r.ResultJSON, Error: r.Error}
			grade, err := o.grading.Execute(ctx, spec, target)
			if err != nil {
				return nil, nil, fmt.Errorf("grader %s: %w", graderID, err)
			}
			if err := o.persistGrade(ctx, grade, r.ExecutionResultID); err != nil {
				return nil, nil, fmt.Errorf("persist grade: %w", err)
			}
			if grade.Error != nil {
				erroredCount++
				continue
			}
			switch {
			case grade.ScoreFloat != nil:
				scalars = append(scalars, *grade.ScoreFloat)
			case grade.ScoreBoolean != nil:
				if *grade.ScoreBoolean {
					scalars = append(scalars, 1.0)
				} else {
					scalars = append(scalars, 0.0)
				}
			}
		}

		if mean, ok := Mean(scalars); ok {
			graderScores[graderID] = mean
		}
		if len(results) > 0 {
			graderErrorRates[graderID] = float64(erroredCount) / float64(len(results))
		}
	}

	return graderScores, graderErrorRates, nil
}

func (o *Orchestrator) persistGrade(ctx context.Context, grade *graderun.Grade, executionResultID string) error {
	builder := o.client.Grade.Create().
		SetID(uuid.New().String()).
		SetGraderID(grade.GraderID).
		SetExecutionResultID(executionResultID).
		SetPromptTokens(grade.PromptTokens).
		SetCompletionTokens(grade.CompletionTokens).
		SetTotalTokens(grade.TotalTokens).
		SetGradingStartedAt(grade.GradingStartedAt).
		SetGradingCompletedAt(grade.GradingCompletedAt)
	if grade.ScoreFloat != nil {
		builder.SetScoreFloat(*grade.ScoreFloat)
	}
	if grade.ScoreBoolean != nil {
		builder.SetScoreBoolean(*grade.ScoreBoolean)
	}
	if grade.Reasoning != nil {
		builder.SetReasoning(*grade.Reasoning)
	}
	if grade.Confidence != nil {
		builder.SetConfidence(*grade.Confidence)
	}
	if grade.Error != nil {
		builder.SetError(*grade.Error)
	}
	_, err := builder.Save(ctx)
	return err
}

// RecalculateTargetMetrics exposes calculateTargetMetrics for callers
// outside the evaluation run loop, namely pkg/cleanup's periodic sweep
// that keeps TargetTaskMetrics fresh for tasks that haven't had a new
// evaluation recently but have accumulated execution results some other
// way (e.g. ad hoc /executions calls).
func (o *Orchestrator) RecalculateTargetMetrics(ctx context.Context, taskID string) error {
	return o.calculateTargetMetrics(ctx, taskID)
}

// calculateTargetMetrics implements `calculate_target_metrics(task_id)`
// (spec.md §4.H): computes a robust-or-simple minimum cost and time
// across all of the task's ExecutionResults and upserts
// TargetTaskMetrics.
func (o *Orchestrator) calculateTargetMetrics(ctx context.Context, taskID string) error {
	allResults, err := o.client.ExecutionResult.Query().
		Where(executionresult.TaskID(taskID)).
		All(ctx)
	if err != nil {
		return fmt.Errorf("query execution results: %w", err)
	}

	var costs, timesMs []float64
	for _, r := range allResults {
		if r.Cost != nil {
			costs = append(costs, *r.Cost)
		}
		timesMs = append(timesMs, float64(r.CompletedAt.Sub(r.StartedAt).Milliseconds()))
	}

	var bestCost, bestTimeMs *float64
	if v, ok := ComputeBest(costs); ok {
		bestCost = &v
	}
	if v, ok := ComputeBest(timesMs); ok {
		bestTimeMs = &v
	}

	existing, err := o.client.TargetTaskMetrics.Query().Where(targettaskmetrics.TaskID(taskID)).Only(ctx)
	now := time.Now()
	if ent.IsNotFound(err) {
		builder := o.client.TargetTaskMetrics.Create().
			SetID(uuid.New().String()).
			SetTaskID(taskID).
			SetLastUpdatedAt(now)
		if bestCost != nil {
			builder.SetBestCost(*bestCost)
		}
		if bestTimeMs != nil {
			builder.SetBestTimeMs(*bestTimeMs)
		}
		_, err := builder.Save(ctx)
		return err
	}
	if err != nil {
		return fmt.Errorf("query target metrics: %w", err)
	}
	update := existing.Update().SetLastUpdatedAt(now)
	if bestCost != nil {
		update.SetBestCost(*bestCost)
	}
	if bestTimeMs != nil {
		update.SetBestTimeMs(*bestTimeMs)
	}
	_, err = update.Save(ctx)
	return err
}
