package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Task holds the schema definition for the Task entity — the logical unit
// of "what the app is asking the LLM to do".
type Task struct {
	ent.Schema
}

// Fields of the Task.
func (Task) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("project_id").
			Immutable(),
		field.String("name").
			NotEmpty(),
		field.Text("description").
			Optional(),
		field.String("path").
			Optional().
			Nillable(),
		field.String("production_version_id").
			Optional().
			Nillable(),
		field.JSON("response_schema", map[string]interface{}{}).
			Optional(),
	}
}

// Edges of the Task.
func (Task) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("project", Project.Type).
			Ref("tasks").
			Field("project_id").
			Unique().
			Required().
			Immutable(),
		edge.To("implementations", Implementation.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("test_cases", TestCase.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("evaluation_config", EvaluationConfig.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("evaluations", Evaluation.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("target_metrics", TargetTaskMetrics.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("optimization_runs", OptimizationRun.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Task.
func (Task) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("project_id", "path").
			Unique(),
	}
}
