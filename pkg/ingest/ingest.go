// Package ingest implements the Trace Ingest Pipeline (spec.md §4.J):
// persisting the raw HTTPTrace, normalizing it through the Provider Parser
// Registry, attempting an immediate Template Matcher bind, and otherwise
// running clustering + auto-creation in the same call. There is no
// background job: that work runs before Ingest returns.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/traceforge/tracepilot/ent"
	"github.com/traceforge/tracepilot/ent/httptrace"
	"github.com/traceforge/tracepilot/ent/implementation"
	"github.com/traceforge/tracepilot/ent/task"
	"github.com/traceforge/tracepilot/ent/trace"
	"github.com/traceforge/tracepilot/pkg/autocreate"
	"github.com/traceforge/tracepilot/pkg/cache"
	"github.com/traceforge/tracepilot/pkg/cluster"
	"github.com/traceforge/tracepilot/pkg/matcher"
	"github.com/traceforge/tracepilot/pkg/models"
	"github.com/traceforge/tracepilot/pkg/parser"
)

// RawHTTPTrace is the ingest request DTO — everything a submitter posts to
// `POST /http-traces` (spec.md §6), decoupled from ent so HTTP decoding
// stays in pkg/api.
type RawHTTPTrace struct {
	ProjectID         string
	URL               string
	Method            string
	StartedAt         time.Time
	CompletedAt       time.Time
	StatusCode        *int
	Error             *string
	Request           []byte
	RequestHeaders    map[string]string
	Response          []byte
	ResponseHeaders   map[string]string
	Metadata          map[string]interface{}
	IsStreaming       bool
	StreamingResponse []byte
	ImplementationID  *string // submitter-supplied binding; skips matching
}

// Outcome reports what ingest did with one submission, for the HTTP
// handler's 201 response body.
type Outcome struct {
	HTTPTraceID string
	TraceID     string
	Deduped     bool
}

// Pipeline runs the §4.J contract over an ent client.
type Pipeline struct {
	client   *ent.Client
	registry *parser.Registry
	cache    *cache.Client
	creator  *autocreate.Creator
}

// NewPipeline builds a Pipeline.
func NewPipeline(client *ent.Client, registry *parser.Registry, cacheClient *cache.Client, creator *autocreate.Creator) *Pipeline {
	return &Pipeline{client: client, registry: registry, cache: cacheClient, creator: creator}
}

// Ingest implements spec.md §4.J steps 1-5.
func (p *Pipeline) Ingest(ctx context.Context, raw RawHTTPTrace) (*Outcome, error) {
	httpTrace, deduped, err := p.persistHTTPTrace(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("ingest: persist http trace: %w", err)
	}
	if deduped {
		existing, err := p.client.HTTPTrace.Query().
			Where(httptrace.ID(httpTrace.ID)).
			WithTrace().
			Only(ctx)
		if err == nil && existing.Edges.Trace != nil {
			return &Outcome{HTTPTraceID: httpTrace.ID, TraceID: existing.Edges.Trace.ID, Deduped: true}, nil
		}
	}

	parsed := p.registry.Parse(parser.Input{
		URL:               raw.URL,
		Method:            raw.Method,
		RequestBytes:      raw.Request,
		ResponseBytes:     raw.Response,
		StartedAt:         raw.StartedAt,
		CompletedAt:       raw.CompletedAt,
		Metadata:          raw.Metadata,
		IsStreaming:       raw.IsStreaming,
		StreamingResponse: raw.StreamingResponse,
	})
	if parsed.ProjectID == "" {
		parsed.ProjectID = raw.ProjectID
	}

	traceRecord, err := p.persistTrace(ctx, httpTrace.ID, parsed)
	if err != nil {
		return nil, fmt.Errorf("ingest: persist trace: %w", err)
	}

	if raw.ImplementationID != nil {
		if _, err := p.client.Trace.UpdateOneID(traceRecord.ID).
			SetImplementationID(*raw.ImplementationID).
			Save(ctx); err != nil {
			return nil, fmt.Errorf("ingest: bind submitter-supplied implementation: %w", err)
		}
		return &Outcome{HTTPTraceID: httpTrace.ID, TraceID: traceRecord.ID}, nil
	}

	if traceRecord.Error != nil {
		return &Outcome{HTTPTraceID: httpTrace.ID, TraceID: traceRecord.ID}, nil
	}

	matched, err := p.tryMatch(ctx, traceRecord, parsed)
	if err != nil {
		return nil, fmt.Errorf("ingest: match: %w", err)
	}
	if !matched {
		if err := p.enqueueClusterAndAutoCreate(ctx, traceRecord, parsed); err != nil {
			slog.Error("ingest: cluster+autocreate failed", "trace_id", traceRecord.ID, "error", err)
		}
	}

	return &Outcome{HTTPTraceID: httpTrace.ID, TraceID: traceRecord.ID}, nil
}

// persistHTTPTrace implements step 1: idempotent dedup by
// (project, started_at, url, method).
func (p *Pipeline) persistHTTPTrace(ctx context.Context, raw RawHTTPTrace) (*ent.HTTPTrace, bool, error) {
	existing, err := p.client.HTTPTrace.Query().
		Where(
			httptrace.ProjectID(raw.ProjectID),
			httptrace.StartedAt(raw.StartedAt),
			httptrace.URL(raw.URL),
			httptrace.Method(raw.Method),
		).
		Only(ctx)
	if err == nil {
		return existing, true, nil
	}
	if !ent.IsNotFound(err) {
		return nil, false, err
	}

	builder := p.client.HTTPTrace.Create().
		SetID(uuid.New().String()).
		SetProjectID(raw.ProjectID).
		SetURL(raw.URL).
		SetMethod(raw.Method).
		SetStartedAt(raw.StartedAt).
		SetCompletedAt(raw.CompletedAt)
	if raw.StatusCode != nil {
		builder.SetStatusCode(*raw.StatusCode)
	}
	if raw.Error != nil {
		builder.SetError(*raw.Error)
	}
	if raw.Request != nil {
		builder.SetRequest(raw.Request)
	}
	if raw.RequestHeaders != nil {
		builder.SetRequestHeaders(raw.RequestHeaders)
	}
	if raw.Response != nil {
		builder.SetResponse(raw.Response)
	}
	if raw.ResponseHeaders != nil {
		builder.SetResponseHeaders(raw.ResponseHeaders)
	}
	if raw.Metadata != nil {
		builder.SetMetadata(raw.Metadata)
	}
	created, err := builder.Save(ctx)
	if ent.IsConstraintError(err) {
		// Lost a concurrent dedup race; reread and treat as a dedup hit.
		existing, findErr := p.client.HTTPTrace.Query().
			Where(httptrace.ProjectID(raw.ProjectID), httptrace.StartedAt(raw.StartedAt), httptrace.URL(raw.URL), httptrace.Method(raw.Method)).
			Only(ctx)
		if findErr != nil {
			return nil, false, err
		}
		return existing, true, nil
	}
	return created, false, err
}

// persistTrace implements step 2: a parser error does not abort ingest;
// it is stored on the Trace's error field (spec.md §4.J failure model).
func (p *Pipeline) persistTrace(ctx context.Context, httpTraceID string, parsed *models.ParsedTrace) (*ent.Trace, error) {
	inputItems, err := parsed.InputItems.ToAnySlice()
	if err != nil {
		return nil, fmt.Errorf("encode input items: %w", err)
	}
	outputItems, err := parsed.OutputItems.ToAnySlice()
	if err != nil {
		return nil, fmt.Errorf("encode output items: %w", err)
	}

	builder := p.client.Trace.Create().
		SetID(uuid.New().String()).
		SetProjectID(parsed.ProjectID).
		SetHTTPTraceID(httpTraceID).
		SetModel(parsed.Model).
		SetInputItems(inputItems).
		SetOutputItems(outputItems).
		SetStartedAt(parsed.StartedAt).
		SetCompletedAt(parsed.CompletedAt).
		SetPromptTokens(parsed.Usage.PromptTokens).
		SetCompletionTokens(parsed.Usage.CompletionTokens).
		SetCachedTokens(parsed.Usage.CachedTokens).
		SetReasoningTokens(parsed.Usage.ReasoningTokens).
		SetTotalTokens(parsed.Usage.TotalTokens)
	if parsed.Path != nil {
		builder.SetPath(*parsed.Path)
	}
	if parsed.Tools != nil {
		builder.SetTools(parsed.Tools)
	}
	if parsed.ResponseSchema != nil {
		builder.SetResponseSchema(parsed.ResponseSchema)
	}
	if parsed.Temperature != nil {
		builder.SetTemperature(*parsed.Temperature)
	}
	if parsed.MaxTokens != nil {
		builder.SetMaxTokens(*parsed.MaxTokens)
	}
	if parsed.FinishReason != nil {
		builder.SetFinishReason(*parsed.FinishReason)
	}
	if parsed.SystemFingerprint != nil {
		builder.SetSystemFingerprint(*parsed.SystemFingerprint)
	}
	if parsed.Error != nil {
		builder.SetError(*parsed.Error)
	}
	return builder.Save(ctx)
}

// tryMatch implements step 4: candidate implementations are the task(s)
// in the trace's project whose model matches, tried lowest-ID first;
// the first whose template matches the trace's first input message wins.
func (p *Pipeline) tryMatch(ctx context.Context, traceRecord *ent.Trace, parsed *models.ParsedTrace) (bool, error) {
	firstMessage, ok := parsed.InputItems.FirstMessageContent()
	if !ok {
		return false, nil
	}

	impls, err := p.client.Implementation.Query().
		Where(implementation.Model(traceRecord.Model)).
		Where(implementation.HasTaskWith(task.ProjectID(traceRecord.ProjectID))).
		Order(ent.Asc(implementation.FieldID)).
		All(ctx)
	if err != nil {
		return false, err
	}

	for _, impl := range impls {
		res := matcher.Match(impl.Prompt, firstMessage)
		if !res.Matched {
			continue
		}
		if _, err := p.client.Trace.UpdateOneID(traceRecord.ID).
			SetImplementationID(impl.ID).
			SetPromptVariables(res.Variables).
			Save(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// enqueueClusterAndAutoCreate implements step 5. It runs synchronously in
// the caller's goroutine (for POST /http-traces, the request handler),
// scanning the project's still-unmatched traces with this one's model,
// grouping them by (path, model, has_system_prompt), and auto-creating from
// the first eligible group found, which need not be this trace's own group.
func (p *Pipeline) enqueueClusterAndAutoCreate(ctx context.Context, traceRecord *ent.Trace, parsed *models.ParsedTrace) error {
	if p.cache.RecentlyCheckedNoEligibleCluster(ctx, traceRecord.ProjectID) {
		return nil
	}

	unmatched, err := p.client.Trace.Query().
		Where(trace.ProjectID(traceRecord.ProjectID), trace.ImplementationIDIsNil(), trace.Model(traceRecord.Model)).
		All(ctx)
	if err != nil {
		return fmt.Errorf("query unmatched traces: %w", err)
	}

	candidates := make([]cluster.Candidate, 0, len(unmatched))
	firstMessages := map[string]string{}
	for _, t := range unmatched {
		items, err := models.ItemListFromAny(t.InputItems)
		if err != nil {
			continue
		}
		msg, ok := items.FirstMessageContent()
		if !ok {
			continue
		}
		firstMessages[t.ID] = msg
		candidates = append(candidates, cluster.Candidate{
			ID:              t.ID,
			ProjectID:       t.ProjectID,
			Path:            t.Path,
			Model:           t.Model,
			HasSystemPrompt: items.HasSystemPrompt(),
			FirstMessage:    msg,
		})
	}

	groups := cluster.Group(candidates)
	for _, group := range groups {
		eligible, ok := cluster.Eligible(group)
		if !ok {
			continue
		}
		messages := make([]string, len(eligible))
		traceIDs := make([]string, len(eligible))
		for i, c := range eligible {
			messages[i] = c.FirstMessage
			traceIDs[i] = c.ID
		}
		inferred, ok := cluster.Infer(eligible[0].HasSystemPrompt, messages)
		if !ok {
			continue
		}
		_, err := p.creator.Apply(ctx, autocreate.ClusterInput{
			ProjectID: eligible[0].ProjectID,
			Path:      eligible[0].Path,
			Model:     eligible[0].Model,
			Template:  inferred,
			TraceIDs:  traceIDs,
		}, firstMessages)
		if err != nil {
			slog.Error("ingest: autocreate failed", "project_id", traceRecord.ProjectID, "error", err)
			continue
		}
		if err := p.cache.ExpireClusterCandidates(ctx, traceRecord.ProjectID); err != nil {
			slog.Warn("ingest: expire cluster candidates", "error", err)
		}
		return nil
	}

	if err := p.cache.MarkNoEligibleCluster(ctx, traceRecord.ProjectID); err != nil {
		slog.Warn("ingest: mark no eligible cluster", "error", err)
	}
	return nil
}
