package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Implementation holds the schema definition for the Implementation entity
// — a concrete (prompt template, model, config) realizing a Task.
type Implementation struct {
	ent.Schema
}

// Fields of the Implementation.
func (Implementation) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("task_id").
			Immutable(),
		field.String("version").
			Comment(`convention "major.minor", ephemeral variants end "-temp"`),
		field.Text("prompt").
			Comment("template with {{var}} placeholders"),
		field.String("model"),
		field.Float("temperature").
			Optional().
			Nillable(),
		field.JSON("reasoning", map[string]interface{}{}).
			Optional(),
		field.JSON("tools", []interface{}{}).
			Optional(),
		field.JSON("tool_choice", map[string]interface{}{}).
			Optional(),
		field.Int("max_output_tokens"),
		field.JSON("response_schema", map[string]interface{}{}).
			Optional(),
		field.Bool("temp").
			Default(false).
			Comment("true means ephemeral, not user-visible"),
	}
}

// Edges of the Implementation.
func (Implementation) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("task", Task.Type).
			Ref("implementations").
			Field("task_id").
			Unique().
			Required().
			Immutable(),
		edge.To("traces", Trace.Type),
		edge.To("execution_results", ExecutionResult.Type),
	}
}

// Indexes of the Implementation.
func (Implementation) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("task_id", "version").
			Unique(),
		index.Fields("task_id", "model"),
	}
}
