// Package cleanup runs tracepilot's periodic housekeeping: keeping
// TargetTaskMetrics fresh across every task and sweeping rows left behind
// by a deleted Task or Grader.
package cleanup

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/traceforge/tracepilot/ent"
	"github.com/traceforge/tracepilot/ent/executionresult"
	"github.com/traceforge/tracepilot/ent/grade"
	"github.com/traceforge/tracepilot/pkg/evaluation"
)

// Service periodically recomputes target metrics and removes rows
// orphaned by a deleted Task. ExecutionResult.task_id is a plain string,
// not an ent edge, so nothing enforces it at the storage layer (see
// ent/schema/executionresult.go). Grade.grader_id is a real FK with
// ON DELETE CASCADE (ent/schema/grader.go), so the Grader sweep here is
// a backstop for rows inserted outside the normal lifecycle rather than
// the primary cleanup path.
type Service struct {
	client *ent.Client
	eval   *evaluation.Orchestrator
	spec   string

	cron *cron.Cron
}

// NewService builds a Service. spec is a standard five-field cron
// expression, e.g. "0 */6 * * *" for every six hours.
func NewService(client *ent.Client, evalOrch *evaluation.Orchestrator, spec string) *Service {
	return &Service{client: client, eval: evalOrch, spec: spec}
}

// Start schedules the sweep on its cron expression, running once
// immediately first. Safe to call once; a second call is a no-op.
func (s *Service) Start(ctx context.Context) error {
	if s.cron != nil {
		return nil
	}
	s.runAll(ctx)

	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { s.runAll(ctx) }); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the cron scheduler and waits for any in-flight run to
// finish.
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

func (s *Service) runAll(ctx context.Context) {
	s.recalculateTargetMetrics(ctx)
	s.sweepOrphanedExecutionResults(ctx)
	s.sweepOrphanedGrades(ctx)
}

// recalculateTargetMetrics refreshes TargetTaskMetrics for every task,
// not just the ones that just finished an Evaluation (spec.md §4.H's
// calculate_target_metrics, exposed for this periodic use by
// pkg/evaluation.Orchestrator.RecalculateTargetMetrics).
func (s *Service) recalculateTargetMetrics(ctx context.Context) {
	tasks, err := s.client.Task.Query().All(ctx)
	if err != nil {
		slog.Error("cleanup: list tasks", "error", err)
		return
	}
	for _, t := range tasks {
		if err := s.eval.RecalculateTargetMetrics(ctx, t.ID); err != nil {
			slog.Error("cleanup: recalculate target metrics", "task_id", t.ID, "error", err)
		}
	}
}

// sweepOrphanedExecutionResults deletes ExecutionResult rows whose
// task_id no longer names an existing Task, left behind when a Task is
// deleted out from under its execution history.
func (s *Service) sweepOrphanedExecutionResults(ctx context.Context) {
	taskIDs, err := s.client.Task.Query().IDs(ctx)
	if err != nil {
		slog.Error("cleanup: list task ids", "error", err)
		return
	}
	count, err := s.client.ExecutionResult.Delete().
		Where(executionresult.TaskIDNotIn(taskIDs...)).
		Exec(ctx)
	if err != nil {
		slog.Error("cleanup: sweep orphaned execution results", "error", err)
		return
	}
	if count > 0 {
		slog.Info("cleanup: removed orphaned execution results", "count", count)
	}
}

// sweepOrphanedGrades deletes Grade rows whose grader_id no longer
// names an existing Grader.
func (s *Service) sweepOrphanedGrades(ctx context.Context) {
	graderIDs, err := s.client.Grader.Query().IDs(ctx)
	if err != nil {
		slog.Error("cleanup: list grader ids", "error", err)
		return
	}
	count, err := s.client.Grade.Delete().
		Where(grade.GraderIDNotIn(graderIDs...)).
		Exec(ctx)
	if err != nil {
		slog.Error("cleanup: sweep orphaned grades", "error", err)
		return
	}
	if count > 0 {
		slog.Info("cleanup: removed orphaned grades", "count", count)
	}
}
