package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// EvaluationConfig holds the schema definition for the EvaluationConfig
// entity — per-task weights and active graders.
type EvaluationConfig struct {
	ent.Schema
}

// Fields of the EvaluationConfig.
func (EvaluationConfig) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("task_id").
			Unique().
			Immutable(),
		field.Float("weight_quality").
			Default(0.5),
		field.Float("weight_cost").
			Default(0.3),
		field.Float("weight_time").
			Default(0.2),
		field.JSON("grader_ids", []string{}).
			Optional(),
	}
}

// Edges of the EvaluationConfig.
func (EvaluationConfig) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("task", Task.Type).
			Ref("evaluation_config").
			Field("task_id").
			Unique().
			Required().
			Immutable(),
	}
}
