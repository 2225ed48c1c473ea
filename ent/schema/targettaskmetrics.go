package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// TargetTaskMetrics holds the schema definition for the TargetTaskMetrics
// entity — per-task best cost/time, recomputed after each evaluation,
// used as denominators for efficiency scoring.
type TargetTaskMetrics struct {
	ent.Schema
}

// Fields of the TargetTaskMetrics.
func (TargetTaskMetrics) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("task_id").
			Unique().
			Immutable(),
		field.Float("best_cost").
			Optional().
			Nillable(),
		field.Float("best_time_ms").
			Optional().
			Nillable(),
		field.Time("last_updated_at").
			Default(time.Now),
	}
}

// Edges of the TargetTaskMetrics.
func (TargetTaskMetrics) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("task", Task.Type).
			Ref("target_metrics").
			Field("task_id").
			Unique().
			Required().
			Immutable(),
	}
}
