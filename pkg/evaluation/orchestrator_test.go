package evaluation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testdatabase "github.com/traceforge/tracepilot/test/database"
)

func TestCreateEvaluation_RejectsTaskWithNoTestCases(t *testing.T) {
	client := testdatabase.NewTestClient(t)
	ctx := context.Background()

	project, err := client.Project.Create().SetID(uuid.New().String()).SetName("p").Save(ctx)
	require.NoError(t, err)
	task, err := client.Task.Create().SetID(uuid.New().String()).SetProjectID(project.ID).SetName("t").Save(ctx)
	require.NoError(t, err)
	impl, err := client.Implementation.Create().
		SetID(uuid.New().String()).
		SetTaskID(task.ID).
		SetVersion("1.0").
		SetPrompt("p").
		SetModel("gpt-4o-mini").
		SetMaxOutputTokens(100).
		Save(ctx)
	require.NoError(t, err)

	orch := NewOrchestrator(client.Client, nil, nil)
	_, err = orch.CreateEvaluation(ctx, impl.ID)
	require.Error(t, err)
}

func TestCreateEvaluation_DefaultsConfigAndGraderWhenAbsent(t *testing.T) {
	client := testdatabase.NewTestClient(t)
	ctx := context.Background()

	project, err := client.Project.Create().SetID(uuid.New().String()).SetName("p").Save(ctx)
	require.NoError(t, err)
	task, err := client.Task.Create().SetID(uuid.New().String()).SetProjectID(project.ID).SetName("t").Save(ctx)
	require.NoError(t, err)
	impl, err := client.Implementation.Create().
		SetID(uuid.New().String()).
		SetTaskID(task.ID).
		SetVersion("1.0").
		SetPrompt("p").
		SetModel("gpt-4o-mini").
		SetMaxOutputTokens(100).
		Save(ctx)
	require.NoError(t, err)
	_, err = client.TestCase.Create().
		SetID(uuid.New().String()).
		SetTaskID(task.ID).
		SetArguments(map[string]interface{}{"input": "hello"}).
		Save(ctx)
	require.NoError(t, err)

	orch := NewOrchestrator(client.Client, nil, nil)
	eval, err := orch.CreateEvaluation(ctx, impl.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, eval.TaskID)
	assert.Equal(t, impl.ID, eval.ImplementationID)

	cfg, err := client.EvaluationConfig.Query().Only(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights.Quality, cfg.WeightQuality)
	assert.Equal(t, DefaultWeights.Cost, cfg.WeightCost)
	assert.Equal(t, DefaultWeights.Time, cfg.WeightTime)
	assert.Len(t, cfg.GraderIds, 1)

	graders, err := client.Grader.Query().All(ctx)
	require.NoError(t, err)
	require.Len(t, graders, 1)
	assert.Equal(t, "accuracy", graders[0].Name)
}

func TestRecalculateTargetMetrics_ComputesSimpleMinimumBelowRobustThreshold(t *testing.T) {
	client := testdatabase.NewTestClient(t)
	ctx := context.Background()

	project, err := client.Project.Create().SetID(uuid.New().String()).SetName("p").Save(ctx)
	require.NoError(t, err)
	task, err := client.Task.Create().SetID(uuid.New().String()).SetProjectID(project.ID).SetName("t").Save(ctx)
	require.NoError(t, err)
	impl, err := client.Implementation.Create().
		SetID(uuid.New().String()).
		SetTaskID(task.ID).
		SetVersion("1.0").
		SetPrompt("p").
		SetModel("gpt-4o-mini").
		SetMaxOutputTokens(100).
		Save(ctx)
	require.NoError(t, err)

	costs := []float64{0.05, 0.02, 0.08}
	for _, cost := range costs {
		start := time.Now()
		_, err := client.ExecutionResult.Create().
			SetID(uuid.New().String()).
			SetTaskID(task.ID).
			SetImplementationID(impl.ID).
			SetStartedAt(start).
			SetCompletedAt(start.Add(100 * time.Millisecond)).
			SetPromptRendered("rendered").
			SetCost(cost).
			Save(ctx)
		require.NoError(t, err)
	}

	orch := NewOrchestrator(client.Client, nil, nil)
	require.NoError(t, orch.RecalculateTargetMetrics(ctx, task.ID))

	metrics, err := client.TargetTaskMetrics.Query().Only(ctx)
	require.NoError(t, err)
	require.NotNil(t, metrics.BestCost)
	assert.InDelta(t, 0.02, *metrics.BestCost, 1e-9)
	require.NotNil(t, metrics.BestTimeMs)
	assert.InDelta(t, 100, *metrics.BestTimeMs, 1e-6)

	// Calling again updates the same row rather than creating a second one.
	require.NoError(t, orch.RecalculateTargetMetrics(ctx, task.ID))
	all, err := client.TargetTaskMetrics.Query().All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
