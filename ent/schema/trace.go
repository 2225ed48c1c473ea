package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Trace holds the schema definition for the Trace entity — the normalized,
// provider-agnostic record of one LLM call. Input/output items are stored
// as a JSON list of tagged variants (see pkg/models) rather than a child
// table: they are small, always read/written together with their parent,
// and never queried independently — the same tradeoff the teacher makes
// for AlertSession.session_metadata and mcp_selection.
type Trace struct {
	ent.Schema
}

// Fields of the Trace.
func (Trace) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("project_id").
			Immutable(),
		field.String("http_trace_id").
			Optional().
			Nillable().
			Immutable(),
		field.String("model").
			Immutable(),
		field.String("path").
			Optional().
			Nillable().
			Immutable().
			Comment("application call site"),
		field.JSON("input_items", []interface{}{}).
			Immutable(),
		field.JSON("output_items", []interface{}{}).
			Immutable(),
		field.JSON("tools", []interface{}{}).
			Optional().
			Immutable(),
		field.JSON("response_schema", map[string]interface{}{}).
			Optional().
			Immutable(),
		field.Float("temperature").
			Optional().
			Nillable().
			Immutable(),
		field.Int("max_tokens").
			Optional().
			Nillable().
			Immutable(),
		field.String("finish_reason").
			Optional().
			Nillable().
			Immutable(),
		field.Int("prompt_tokens").
			Default(0).
			Immutable(),
		field.Int("completion_tokens").
			Default(0).
			Immutable(),
		field.Int("cached_tokens").
			Default(0).
			Immutable(),
		field.Int("reasoning_tokens").
			Default(0).
			Immutable(),
		field.Int("total_tokens").
			Default(0).
			Immutable(),
		field.String("system_fingerprint").
			Optional().
			Nillable().
			Immutable(),
		field.Time("started_at").
			Immutable(),
		field.Time("completed_at").
			Immutable(),
		field.String("error").
			Optional().
			Nillable().
			Immutable(),

		// Patched exactly once by the matcher (§4.B) or the auto-creator (§4.D).
		field.String("implementation_id").
			Optional().
			Nillable(),
		field.JSON("prompt_variables", map[string]string{}).
			Optional(),

		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Trace.
func (Trace) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("project", Project.Type).
			Ref("traces").
			Field("project_id").
			Unique().
			Required().
			Immutable(),
		edge.From("http_trace", HTTPTrace.Type).
			Ref("trace").
			Field("http_trace_id").
			Unique().
			Immutable(),
		edge.From("implementation", Implementation.Type).
			Ref("traces").
			Field("implementation_id").
			Unique(),
	}
}

// Indexes of the Trace.
func (Trace) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("project_id", "path", "model"),
		index.Fields("implementation_id"),
		index.Fields("project_id", "created_at"),
	}
}
