package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Grader holds the schema definition for the Grader entity — an
// LLM-driven scoring function.
type Grader struct {
	ent.Schema
}

// Fields of the Grader.
func (Grader) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("project_id").
			Immutable(),
		field.String("name").
			NotEmpty(),
		field.Text("prompt").
			Comment("template with a {{context}} placeholder"),
		field.Enum("score_type").
			Values("FLOAT", "BOOLEAN"),
		field.String("model"),
		field.Float("temperature").
			Optional().
			Nillable(),
		field.JSON("reasoning", map[string]interface{}{}).
			Optional(),
		field.JSON("response_schema", map[string]interface{}{}).
			Optional(),
		field.Int("max_output_tokens").
			Default(1024),
		field.Bool("is_active").
			Default(true),
	}
}

// Edges of the Grader.
func (Grader) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("project", Project.Type).
			Ref("graders").
			Field("project_id").
			Unique().
			Required().
			Immutable(),
		edge.To("grades", Grade.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Grader.
func (Grader) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("project_id", "is_active"),
	}
}
