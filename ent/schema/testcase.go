package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// TestCase holds the schema definition for the TestCase entity.
type TestCase struct {
	ent.Schema
}

// Fields of the TestCase.
func (TestCase) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("task_id").
			Immutable(),
		field.Text("description").
			Optional().
			Nillable(),
		field.JSON("arguments", map[string]interface{}{}).
			Optional(),
		field.JSON("expected_output", []interface{}{}).
			Optional(),
	}
}

// Edges of the TestCase.
func (TestCase) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("task", Task.Type).
			Ref("test_cases").
			Field("task_id").
			Unique().
			Required().
			Immutable(),
		edge.To("execution_results", ExecutionResult.Type),
	}
}
