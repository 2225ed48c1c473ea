package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/traceforge/tracepilot/pkg/evaluation"
	testdatabase "github.com/traceforge/tracepilot/test/database"
)

func TestSweepOrphanedExecutionResults_RemovesRowsForDeletedTask(t *testing.T) {
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

	now := time.Now()
	_, err = client.ExecutionResult.Create().
		SetID(uuid.New().String()).
		SetTaskID(task.ID).
		SetImplementationID(impl.ID).
		SetStartedAt(now).
		SetCompletedAt(now).
		SetPromptRendered("rendered").
		Save(ctx)
	require.NoError(t, err)

	require.NoError(t, client.Task.DeleteOneID(task.ID).Exec(ctx))

	svc := NewService(client.Client, evaluation.NewOrchestrator(client.Client, nil, nil), "@every 1h")
	svc.sweepOrphanedExecutionResults(ctx)

	remaining, err := client.ExecutionResult.Query().All(ctx)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestSweepOrphanedGrades_RemovesRowsForDeletedGrader(t *testing.T) {
	client := testdatabase.NewTestClient(t)
	ctx := context.Background()

	project, err := client.Project.Create().SetID(uuid.New().String()).SetName("p").Save(ctx)
	require.NoError(t, err)
	grader, err := client.Grader.Create().
		SetID(uuid.New().String()).
		SetProjectID(project.ID).
		SetName("accuracy").
		SetPrompt("p").
		SetModel("gpt-4o-mini").
		Save(ctx)
	require.NoError(t, err)
	task, err := client.Task.Create().SetID(uuid.New().String()).SetProjectID(project.ID).SetName("t").Save(ctx)
	require.NoError(t, err)
	trace, err := client.Trace.Create().
		SetID(uuid.New().String()).
		SetProjectID(project.ID).
		SetModel("gpt-4o-mini").
		SetInputItems([]interface{}{}).
		SetOutputItems([]interface{}{}).
		SetStartedAt(time.Now()).
		SetCompletedAt(time.Now()).
		Save(ctx)
	require.NoError(t, err)
	_ = task

	now := time.Now()
	_, err = client.Grade.Create().
		SetID(uuid.New().String()).
		SetGraderID(grader.ID).
		SetTraceID(trace.ID).
		SetGradingStartedAt(now).
		SetGradingCompletedAt(now).
		Save(ctx)
	require.NoError(t, err)

	require.NoError(t, client.Grader.DeleteOneID(grader.ID).Exec(ctx))

	svc := NewService(client.Client, evaluation.NewOrchestrator(client.Client, nil, nil), "@every 1h")
	svc.sweepOrphanedGrades(ctx)

	remaining, err := client.Grade.Query().All(ctx)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestRecalculateTargetMetrics_CreatesRowForEveryTask(t *testing.T) {
	client := testdatabase.NewTestClient(t)
	ctx := context.Background()

	project, err := client.Project.Create().SetID(uuid.New().String()).SetName("p").Save(ctx)
	require.NoError(t, err)
	task, err := client.Task.Create().SetID(uuid.New().String()).SetProjectID(project.ID).SetName("t").Save(ctx)
	require.NoError(t, err)

	svc := NewService(client.Client, evaluation.NewOrchestrator(client.Client, nil, nil), "@every 1h")
	svc.recalculateTargetMetrics(ctx)

	metrics, err := client.TargetTaskMetrics.Query().All(ctx)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	require.Equal(t, task.ID, metrics[0].TaskID)
}
