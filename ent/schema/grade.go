package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Grade holds the schema definition for the Grade entity. Immutable once
// written. Exactly one of trace_id / execution_result_id must be set — the
// service layer enforces this before Save, and a CHECK constraint added by
// migration 0002 (pkg/database/migrations) enforces it at the storage layer
// too, the same belt-and-suspenders the teacher applies with GIN indexes
// created outside the ent-managed migration in CreateGINIndexes.
type Grade struct {
	ent.Schema
}

// Fields of the Grade.
func (Grade) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("grader_id").
			Immutable(),
		field.String("trace_id").
			Optional().
			Nillable().
			Immutable(),
		field.String("execution_result_id").
			Optional().
			Nillable().
			Immutable(),
		field.Float("score_float").
			Optional().
			Nillable().
			Immutable(),
		field.Bool("score_boolean").
			Optional().
			Nillable().
			Immutable(),
		field.Text("reasoning").
			Optional().
			Nillable().
			Immutable(),
		field.Float("confidence").
			Optional().
			Nillable().
			Immutable(),
		field.Int("prompt_tokens").
			Default(0).
			Immutable(),
		field.Int("completion_tokens").
			Default(0).
			Immutable(),
		field.Int("total_tokens").
			Default(0).
			Immutable(),
		field.Time("grading_started_at").
			Immutable(),
		field.Time("grading_completed_at").
			Immutable(),
		field.String("error").
			Optional().
			Nillable().
			Immutable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Grade.
func (Grade) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("grader", Grader.Type).
			Ref("grades").
			Field("grader_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the Grade.
func (Grade) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("trace_id"),
		index.Fields("execution_result_id"),
		index.Fields("grader_id"),
	}
}
