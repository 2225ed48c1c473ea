package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// HTTPTrace holds the schema definition for the HTTPTrace entity — the
// verbatim captured HTTP call, immutable once written.
type HTTPTrace struct {
	ent.Schema
}

// Fields of the HTTPTrace.
func (HTTPTrace) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("project_id").
			Immutable(),
		field.String("url").
			Immutable(),
		field.String("method").
			Immutable(),
		field.Time("started_at").
			Immutable(),
		field.Time("completed_at").
			Immutable(),
		field.Int("status_code").
			Optional().
			Nillable().
			Immutable(),
		field.String("error").
			Optional().
			Nillable().
			Immutable(),
		field.Bytes("request").
			Optional().
			Immutable(),
		field.JSON("request_headers", map[string]string{}).
			Optional().
			Immutable(),
		field.Bytes("response").
			Optional().
			Immutable(),
		field.JSON("response_headers", map[string]string{}).
			Optional().
			Immutable(),
		field.JSON("metadata", map[string]interface{}{}).
			Optional().
			Immutable().
			Comment("includes provider tag, app-supplied project"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the HTTPTrace.
func (HTTPTrace) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("project", Project.Type).
			Ref("http_traces").
			Field("project_id").
			Unique().
			Required().
			Immutable(),
		edge.To("trace", Trace.Type).
			Unique(),
	}
}

// Indexes of the HTTPTrace.
func (HTTPTrace) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("project_id", "started_at", "url", "method").
			Comment("dedup key for idempotent re-posts"),
	}
}
