package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/traceforge/tracepilot/pkg/autocreate"
	"github.com/traceforge/tracepilot/pkg/cache"
	"github.com/traceforge/tracepilot/pkg/parser"
	testdatabase "github.com/traceforge/tracepilot/test/database"
)

func newTestPipeline(t *testing.T) (*Pipeline, string) {
	t.Helper()
	client := testdatabase.NewTestClient(t)

	mr := miniredis.RunT(t)
	cacheClient, err := cache.New(fmt.Sprintf("redis://%s", mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cacheClient.Close() })

	ctx := context.Background()
	project, err := client.Project.Create().
		SetID("proj-1").
		SetName("proj-1").
		Save(ctx)
	require.NoError(t, err)

	registry := parser.NewRegistry(parser.NewOpenAIParser())
	creator := autocreate.NewCreator(client.Client)

	return NewPipeline(client.Client, registry, cacheClient, creator), project.ID
}

func openAIRequest(message string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"model": "gpt-4o",
		"messages": []map[string]interface{}{
			{"role": "user", "content": message},
		},
	})
	return body
}

func openAIResponse(content string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": content},
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     12,
			"completion_tokens": 4,
			"total_tokens":      16,
		},
	})
	return body
}

func TestIngest_PersistsHTTPTraceAndTrace(t *testing.T) {
	pipeline, projectID := newTestPipeline(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Second)
	outcome, err := pipeline.Ingest(ctx, RawHTTPTrace{
		ProjectID:   projectID,
		URL:         "https://api.openai.com/v1/chat/completions",
		Method:      "POST",
		StartedAt:   started,
		CompletedAt: started.Add(200 * time.Millisecond),
		Request:     openAIRequest("What is the capital of France?"),
		Response:    openAIResponse("Paris."),
		Metadata:    map[string]interface{}{"project": projectID},
	})
	require.NoError(t, err)
	require.NotEmpty(t, outcome.HTTPTraceID)
	require.NotEmpty(t, outcome.TraceID)
	require.False(t, outcome.Deduped)

	traceRecord, err := pipeline.client.Trace.Get(ctx, outcome.TraceID)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", traceRecord.Model)
	require.Equal(t, 12, traceRecord.PromptTokens)
	require.Equal(t, 4, traceRecord.CompletionTokens)
}

func TestIngest_DedupsRepostedTrace(t *testing.T) {
	pipeline, projectID := newTestPipeline(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Second)
	raw := RawHTTPTrace{
		ProjectID:   projectID,
		URL:         "https://api.openai.com/v1/chat/completions",
		Method:      "POST",
		StartedAt:   started,
		CompletedAt: started.Add(200 * time.Millisecond),
		Request:     openAIRequest("Repeat after me."),
		Response:    openAIResponse("Repeat after me."),
		Metadata:    map[string]interface{}{"project": projectID},
	}

	first, err := pipeline.Ingest(ctx, raw)
	require.NoError(t, err)
	require.False(t, first.Deduped)

	second, err := pipeline.Ingest(ctx, raw)
	require.NoError(t, err)
	require.True(t, second.Deduped)
	require.Equal(t, first.TraceID, second.TraceID)
}

func TestIngest_SubmitterSuppliedImplementationBindsDirectly(t *testing.T) {
	pipeline, projectID := newTestPipeline(t)
	ctx := context.Background()

	task, err := pipeline.client.Task.Create().
		SetID("task-1").
		SetProjectID(projectID).
		SetName("translate").
		Save(ctx)
	require.NoError(t, err)

	impl, err := pipeline.client.Implementation.Create().
		SetID("impl-1").
		SetTaskID(task.ID).
		SetVersion("1.0").
		SetPrompt("Translate: {{text}}").
		SetModel("gpt-4o").
		SetMaxOutputTokens(256).
		Save(ctx)
	require.NoError(t, err)

	started := time.Now().Add(-time.Second)
	outcome, err := pipeline.Ingest(ctx, RawHTTPTrace{
		ProjectID:        projectID,
		URL:              "https://api.openai.com/v1/chat/completions",
		Method:           "POST",
		StartedAt:        started,
		CompletedAt:      started.Add(100 * time.Millisecond),
		Request:          openAIRequest("Translate: bonjour"),
		Response:         openAIResponse("hello"),
		Metadata:         map[string]interface{}{"project": projectID},
		ImplementationID: &impl.ID,
	})
	require.NoError(t, err)

	traceRecord, err := pipeline.client.Trace.Get(ctx, outcome.TraceID)
	require.NoError(t, err)
	require.NotNil(t, traceRecord.ImplementationID)
	require.Equal(t, impl.ID, *traceRecord.ImplementationID)
}

func TestIngest_MatchesExistingImplementationTemplate(t *testing.T) {
	pipeline, projectID := newTestPipeline(t)
	ctx := context.Background()

	task, err := pipeline.client.Task.Create().
		SetID("task-2").
		SetProjectID(projectID).
		SetName("greet").
		Save(ctx)
	require.NoError(t, err)

	impl, err := pipeline.client.Implementation.Create().
		SetID("impl-2").
		SetTaskID(task.ID).
		SetVersion("1.0").
		SetPrompt("Greet {{name}} warmly.").
		SetModel("gpt-4o").
		SetMaxOutputTokens(256).
		Save(ctx)
	require.NoError(t, err)

	started := time.Now().Add(-time.Second)
	outcome, err := pipeline.Ingest(ctx, RawHTTPTrace{
		ProjectID:   projectID,
		URL:         "https://api.openai.com/v1/chat/completions",
		Method:      "POST",
		StartedAt:   started,
		CompletedAt: started.Add(100 * time.Millisecond),
		Request:     openAIRequest("Greet Alice warmly."),
		Response:    openAIResponse("Hello Alice!"),
		Metadata:    map[string]interface{}{"project": projectID},
	})
	require.NoError(t, err)

	traceRecord, err := pipeline.client.Trace.Get(ctx, outcome.TraceID)
	require.NoError(t, err)
	require.NotNil(t, traceRecord.ImplementationID)
	require.Equal(t, impl.ID, *traceRecord.ImplementationID)
	require.Equal(t, "Alice", traceRecord.PromptVariables["name"])
}
