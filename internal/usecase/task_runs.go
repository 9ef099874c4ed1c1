package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bvp/internal/domain/models"
	drepo "bvp/internal/domain/repository"
)

// ErrNoTaskRun is returned when a task has never reported a run.
var ErrNoTaskRun = errors.New("task has no last run time")

// TaskRunStatus is what the monitoring endpoint reports for a task.
type TaskRunStatus struct {
	LastRun   time.Time
	OK        bool
	Frequency int
}

// TaskRuns records and reports task heartbeats.
type TaskRuns struct {
	runs      drepo.TaskRuns
	frequency func(task string) int
	now       func() time.Time
}

// NewTaskRuns creates the heartbeat service. frequency gives the expected
// run interval in minutes for a task.
func NewTaskRuns(runs drepo.TaskRuns, frequency func(string) int) *TaskRuns {
	return &TaskRuns{runs: runs, frequency: frequency, now: time.Now}
}

// Frequency returns the expected run interval (minutes) of a task.
func (s *TaskRuns) Frequency(name string) int { return s.frequency(name) }

// Latest reports the last heartbeat of a task.
func (s *TaskRuns) Latest(ctx context.Context, name string) (TaskRunStatus, error) {
	st := TaskRunStatus{Frequency: s.frequency(name)}
	run, err := s.runs.Latest(ctx, name)
	if errors.Is(err, drepo.ErrNotFound) {
		return st, ErrNoTaskRun
	}
	if err != nil {
		return st, fmt.Errorf("latest task run %q: %w", name, err)
	}
	st.LastRun = run.Datetime
	st.OK = run.Status
	return st, nil
}

// Record stores a heartbeat; a nil at means now (UTC).
func (s *TaskRuns) Record(ctx context.Context, name string, ok bool, at *time.Time) error {
	when := s.now().UTC()
	if at != nil {
		when = at.UTC()
	}
	if err := s.runs.Save(ctx, models.LatestTaskRun{Name: name, Datetime: when, Status: ok}); err != nil {
		return fmt.Errorf("save task run %q: %w", name, err)
	}
	return nil
}
