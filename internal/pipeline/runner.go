package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner executes stages in order and stops at the first failure.
// Nothing is retried.
type Runner struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewRunner creates a new pipeline runner
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Execute runs stages sequentially. The returned report is always non-nil;
// the error is the failing stage's error unchanged, so callers can classify it.
func (r *Runner) Execute(ctx context.Context, name string, stages ...Stage) (*Report, error) {
	report := &Report{
		ID:        fmt.Sprintf("%s_%s", name, uuid.NewString()),
		Name:      name,
		State:     RunStateRunning,
		Stages:    make([]StageRecord, len(stages)),
		StartedAt: r.now(),
	}
	for i, stage := range stages {
		report.Stages[i] = StageRecord{Name: stage.Name, State: StageStatePending}
	}

	r.logger.Debug("Pipeline started", zap.String("run_id", report.ID), zap.Int("stages", len(stages)))

	var runErr error
	for i, stage := range stages {
		if runErr == nil {
			runErr = ctx.Err()
		}
		if runErr != nil {
			report.Stages[i].State = StageStateSkipped
			continue
		}
		runErr = r.executeStage(ctx, report, i, stage)
	}

	completed := r.now()
	report.CompletedAt = &completed
	if runErr != nil {
		report.State = RunStateFailed
		report.Error = runErr.Error()
		r.logger.Warn("Pipeline failed",
			zap.String("run_id", report.ID),
			zap.String("stage", report.FailedStage()),
			zap.Error(runErr))
		return report, runErr
	}

	report.State = RunStateCompleted
	r.logger.Info("Pipeline completed",
		zap.String("run_id", report.ID),
		zap.Duration("elapsed", completed.Sub(report.StartedAt)))
	return report, nil
}

func (r *Runner) executeStage(ctx context.Context, report *Report, i int, stage Stage) error {
	rec := &report.Stages[i]
	started := r.now()
	rec.State = StageStateRunning
	rec.StartedAt = &started

	err := stage.Run(ctx)

	done := r.now()
	rec.CompletedAt = &done
	if err != nil {
		rec.State = StageStateFailed
		rec.Error = err.Error()
		return err
	}

	rec.State = StageStateCompleted
	r.logger.Debug("Stage completed",
		zap.String("run_id", report.ID),
		zap.String("stage", stage.Name),
		zap.Duration("elapsed", rec.Elapsed()))
	return nil
}
