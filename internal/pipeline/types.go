package pipeline

import (
	"context"
	"time"
)

// RunState represents the current state of a pipeline run
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// StageState represents the state of an individual stage
type StageState string

const (
	StageStatePending   StageState = "pending"
	StageStateRunning   StageState = "running"
	StageStateCompleted StageState = "completed"
	StageStateFailed    StageState = "failed"
	StageStateSkipped   StageState = "skipped"
)

// Stage is one step of a run. Stages share data through their closures.
type Stage struct {
	Name string
	Run  func(ctx context.Context) error
}

// StageRecord is the execution record of a stage
type StageRecord struct {
	Name        string     `json:"name"`
	State       StageState `json:"state"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Elapsed is the stage's run time, zero when it never ran.
func (s StageRecord) Elapsed() time.Duration {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(*s.StartedAt)
}

// Report describes one pipeline run
type Report struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	State       RunState      `json:"state"`
	Stages      []StageRecord `json:"stages"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// TimingsMs returns elapsed milliseconds per stage that ran, plus "total".
func (r *Report) TimingsMs() map[string]int64 {
	out := make(map[string]int64, len(r.Stages)+1)
	for _, s := range r.Stages {
		if s.StartedAt == nil {
			continue
		}
		out[s.Name] = s.Elapsed().Milliseconds()
	}
	if r.CompletedAt != nil {
		out["total"] = r.CompletedAt.Sub(r.StartedAt).Milliseconds()
	}
	return out
}

// FailedStage returns the name of the stage that failed, if any.
func (r *Report) FailedStage() string {
	for _, s := range r.Stages {
		if s.State == StageStateFailed {
			return s.Name
		}
	}
	return ""
}
