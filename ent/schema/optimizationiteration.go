package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// OptimizationIteration holds the schema definition for one iteration of
// an OptimizationRun: the proposed change, the resulting candidate
// implementation (if any), and whether it improved on the running best.
type OptimizationIteration struct {
	ent.Schema
}

// Fields of the OptimizationIteration.
func (OptimizationIteration) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("run_id").
			Immutable(),
		field.Int("index").
			Immutable(),
		field.JSON("proposed_changes", map[string]interface{}{}).
			Optional().
			Immutable(),
		field.Text("explanation").
			Optional().
			Nillable().
			Immutable(),
		field.String("candidate_implementation_id").
			Optional().
			Nillable().
			Immutable(),
		field.String("evaluation_id").
			Optional().
			Nillable().
			Immutable(),
		field.Bool("improved").
			Default(false).
			Immutable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the OptimizationIteration.
func (OptimizationIteration) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("run", OptimizationRun.Type).
			Ref("iterations").
			Field("run_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the OptimizationIteration.
func (OptimizationIteration) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("run_id", "index").
			Unique(),
	}
}
