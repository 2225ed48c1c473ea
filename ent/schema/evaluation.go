package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Evaluation holds the schema definition for the Evaluation entity — a
// batch run of one Implementation over all of a Task's test cases.
// Status: RUNNING -> COMPLETED | FAILED (terminal).
type Evaluation struct {
	ent.Schema
}

// Fields of the Evaluation.
func (Evaluation) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("task_id").
			Immutable(),
		field.String("implementation_id").
			Immutable(),
		field.Enum("status").
			Values("RUNNING", "COMPLETED", "FAILED").
			Default("RUNNING"),
		field.JSON("grader_scores", map[string]float64{}).
			Optional(),
		field.JSON("grader_error_rates", map[string]float64{}).
			Optional().
			Comment("fraction of graded (result, grader) pairs whose Grade.error was set"),
		field.Float("quality_score").
			Optional().
			Nillable(),
		field.Float("avg_cost").
			Optional().
			Nillable(),
		field.Float("avg_execution_time_ms").
			Optional().
			Nillable(),
		field.Int("test_case_count").
			Default(0),
		field.String("error").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

// Edges of the Evaluation.
func (Evaluation) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("task", Task.Type).
			Ref("evaluations").
			Field("task_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the Evaluation.
func (Evaluation) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("implementation_id"),
		index.Fields("task_id", "status"),
	}
}
