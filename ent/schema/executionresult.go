package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ExecutionResult holds the schema definition for the ExecutionResult
// entity — a single LLM invocation, produced by the Executor (§4.E) and
// consumed by the Evaluation Orchestrator (§4.H) and Grader Runtime (§4.F).
type ExecutionResult struct {
	ent.Schema
}

// Fields of the ExecutionResult.
func (ExecutionResult) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("task_id").
			Immutable(),
		field.String("implementation_id").
			Immutable(),
		field.Time("started_at").
			Immutable(),
		field.Time("completed_at").
			Immutable(),
		field.Text("prompt_rendered").
			Immutable(),
		field.JSON("variables", map[string]string{}).
			Optional().
			Immutable(),
		field.Text("result_text").
			Optional().
			Nillable().
			Immutable(),
		field.JSON("result_json", map[string]interface{}{}).
			Optional().
			Immutable(),
		field.JSON("tool_calls", []interface{}{}).
			Optional().
			Immutable(),
		field.String("error").
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
		field.Float("cost").
			Optional().
			Nillable(),
		field.String("evaluation_id").
			Optional().
			Nillable().
			Immutable(),
		field.String("test_case_id").
			Optional().
			Nillable().
			Immutable(),
	}
}

// Edges of the ExecutionResult.
func (ExecutionResult) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("implementation", Implementation.Type).
			Ref("execution_results").
			Field("implementation_id").
			Unique().
			Required().
			Immutable(),
		edge.From("test_case", TestCase.Type).
			Ref("execution_results").
			Field("test_case_id").
			Unique().
			Immutable(),
	}
}

// Indexes of the ExecutionResult.
func (ExecutionResult) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("task_id", "completed_at"),
		index.Fields("implementation_id"),
		index.Fields("evaluation_id"),
	}
}
