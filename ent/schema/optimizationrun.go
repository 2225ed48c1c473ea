package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// OptimizationRun holds the schema definition for the OptimizationRun
// entity — one invocation of the optimization loop (§4.I), supplementing
// the distilled spec with a persisted record of the run (the Python
// original_source keeps the full transcript; we persist one row per run
// plus one OptimizationIteration row per iteration instead of holding it
// only in the in-process conversation map).
type OptimizationRun struct {
	ent.Schema
}

// Fields of the OptimizationRun.
func (OptimizationRun) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("task_id").
			Immutable(),
		field.Enum("status").
			Values("RUNNING", "COMPLETED").
			Default("RUNNING"),
		field.Int("max_iterations").
			Immutable(),
		field.JSON("changeable_fields", []string{}).
			Immutable(),
		field.String("best_implementation_id").
			Optional().
			Nillable(),
		field.Float("best_score").
			Optional().
			Nillable(),
		field.Int("iterations_run").
			Default(0),
		field.Time("started_at").
			Default(time.Now).
			Immutable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

// Edges of the OptimizationRun.
func (OptimizationRun) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("task", Task.Type).
			Ref("optimization_runs").
			Field("task_id").
			Unique().
			Required().
			Immutable(),
		edge.To("iterations", OptimizationIteration.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}
