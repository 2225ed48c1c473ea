// Package autocreate implements the Task Auto-Creator (spec.md §4.D):
// given an eligible cluster and its inferred template, either binds the
// cluster's traces to an existing Task's best-matching Implementation, or
// creates a new Task+Implementation from the template, transactionally.
package autocreate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/traceforge/tracepilot/ent"
	"github.com/traceforge/tracepilot/ent/implementation"
	"github.com/traceforge/tracepilot/ent/task"
	"github.com/traceforge/tracepilot/pkg/cluster"
	"github.com/traceforge/tracepilot/pkg/matcher"
)

// DefaultMaxOutputTokens is used for the Implementation created from an
// inferred template when the cluster gives no better signal.
const DefaultMaxOutputTokens = 1024

// Creator runs the auto-create contract against an ent client.
type Creator struct {
	client *ent.Client
}

// NewCreator builds a Creator.
func NewCreator(client *ent.Client) *Creator {
	return &Creator{client: client}
}

// ClusterInput is a cluster ready for auto-creation.
type ClusterInput struct {
	ProjectID string
	Path      *string
	Model     string
	Template  cluster.InferredTemplate
	TraceIDs  []string
}

// Outcome reports what the auto-creator did.
type Outcome struct {
	TaskID           string
	ImplementationID string
	Created          bool // true if a new Task+Implementation were created
}

// Apply runs the full §4.D contract: if a Task already exists for
// (project, path) with at least one Implementation, bind traces to the
// best-matching Implementation via the Matcher and do not create a new
// Task. Otherwise create Task+Implementation from the template within one
// transaction.
func (c *Creator) Apply(ctx context.Context, in ClusterInput, traceFirstMessages map[string]string) (*Outcome, error) {
	existing, err := c.findExistingTaskWithImplementation(ctx, in.ProjectID, in.Path)
	if err != nil {
		return nil, fmt.Errorf("autocreate: lookup existing task: %w", err)
	}
	if existing != nil {
		return c.bindToExisting(ctx, existing, in.TraceIDs, traceFirstMessages)
	}

	outcome, err := c.createNew(ctx, in, traceFirstMessages)
	if err != nil {
		if ent.IsConstraintError(err) {
			// Idempotence: a concurrent ingest won the race; fall through
			// to path (1) and bind to what it created.
			slog.Info("autocreate: lost race creating task, retrying as bind", "project_id", in.ProjectID)
			existing, findErr := c.findExistingTaskWithImplementation(ctx, in.ProjectID, in.Path)
			if findErr != nil || existing == nil {
				return nil, fmt.Errorf("autocreate: retry after race lost: %w", err)
			}
			return c.bindToExisting(ctx, existing, in.TraceIDs, traceFirstMessages)
		}
		return nil, err
	}
	return outcome, nil
}

func (c *Creator) findExistingTaskWithImplementation(ctx context.Context, projectID string, path *string) (*ent.Task, error) {
	q := c.client.Task.Query().Where(task.ProjectID(projectID))
	if path == nil {
		q = q.Where(task.PathIsNil())
	} else {
		q = q.Where(task.PathEQ(*path))
	}
	t, err := q.WithImplementations(func(iq *ent.ImplementationQuery) {
		iq.Order(ent.Asc(implementation.FieldVersion))
	}).Only(ctx)
	if ent.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(t.Edges.Implementations) == 0 {
		return nil, nil
	}
	return t, nil
}

func (c *Creator) bindToExisting(ctx context.Context, t *ent.Task, traceIDs []string, traceFirstMessages map[string]string) (*Outcome, error) {
	impls := t.Edges.Implementations
	bound := 0
	var lastImplID string
	for _, traceID := range traceIDs {
		msg := traceFirstMessages[traceID]
		for _, impl := range impls {
			res := matcher.Match(impl.Prompt, msg)
			if !res.Matched {
				continue
			}
			if err := c.bindTrace(ctx, traceID, impl.ID, res.Variables); err != nil {
				return nil, fmt.Errorf("autocreate: bind trace %s: %w", traceID, err)
			}
			bound++
			lastImplID = impl.ID
			break
		}
	}
	slog.Info("autocreate: bound cluster to existing task", "task_id", t.ID, "bound", bound, "total", len(traceIDs))
	return &Outcome{TaskID: t.ID, ImplementationID: lastImplID, Created: false}, nil
}

func (c *Creator) createNew(ctx context.Context, in ClusterInput, traceFirstMessages map[string]string) (*Outcome, error) {
	tx, err := c.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("autocreate: begin tx: %w", err)
	}
	defer tx.Rollback()

	taskBuilder := tx.Task.Create().
		SetID(uuid.New().String()).
		SetProjectID(in.ProjectID).
		SetName(defaultTaskName(in.Path))
	if in.Path != nil {
		taskBuilder.SetPath(*in.Path)
	}
	newTask, err := taskBuilder.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("autocreate: create task: %w", err)
	}

	implID := uuid.New().String()
	_, err = tx.Implementation.Create().
		SetID(implID).
		SetTaskID(newTask.ID).
		SetVersion("1.0").
		SetPrompt(in.Template.Template).
		SetModel(in.Model).
		SetMaxOutputTokens(DefaultMaxOutputTokens).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("autocreate: create implementation: %w", err)
	}

	if _, err := tx.Task.UpdateOneID(newTask.ID).SetProductionVersionID(implID).Save(ctx); err != nil {
		return nil, fmt.Errorf("autocreate: set production version: %w", err)
	}

	for _, traceID := range in.TraceIDs {
		msg := traceFirstMessages[traceID]
		res := matcher.Match(in.Template.Template, msg)
		vars := res.Variables
		if vars == nil {
			vars = map[string]string{}
		}
		if _, err := tx.Trace.UpdateOneID(traceID).
			SetImplementationID(implID).
			SetPromptVariables(vars).
			Save(ctx); err != nil {
			return nil, fmt.Errorf("autocreate: update trace %s: %w", traceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("autocreate: commit: %w", err)
	}

	slog.Info("autocreate: created task and implementation from cluster",
		"task_id", newTask.ID, "implementation_id", implID, "traces", len(in.TraceIDs))
	return &Outcome{TaskID: newTask.ID, ImplementationID: implID, Created: true}, nil
}

func (c *Creator) bindTrace(ctx context.Context, traceID, implID string, vars map[string]string) error {
	if vars == nil {
		vars = map[string]string{}
	}
	_, err := c.client.Trace.UpdateOneID(traceID).
		SetImplementationID(implID).
		SetPromptVariables(vars).
		Save(ctx)
	return err
}

func defaultTaskName(path *string) string {
	if path == nil {
		return "auto-created task"
	}
	return "auto-created: " + *path
}
