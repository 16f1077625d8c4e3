package operations

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Step is one stage of a pipeline run (simulate, ingest, preprocess,
// analyze). Steps share data through the OperationState.
type Step interface {
	ID() string
	Name() string
	Execute(ctx context.Context, state *OperationState) error
	// Validate reports whether the step can run given what earlier steps
	// left in state. A validation error skips the step.
	Validate(state *OperationState) error
	// GetDependencies lists steps that must complete first when they are
	// part of the same run
	GetDependencies() []string
}

// StepStatus is the lifecycle position of a step within one run
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState is the mutable record of a step during one run. Steps record
// row counts and output paths in Metadata.
type StepState struct {
	mu        sync.RWMutex
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    StepStatus     `json:"status"`
	StartTime *time.Time     `json:"start_time,omitempty"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Progress  float64        `json:"progress"`
	Message   string         `json:"message"`
	Attempts  int            `json:"attempts"`
	Error     error          `json:"-"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewStepState returns a pending state for the step
func NewStepState(id, name string) *StepState {
	return &StepState{ID: id, Name: name, Status: StepStatusPending, Metadata: map[string]any{}}
}

// Start begins a new attempt
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.StartTime, s.EndTime = &now, nil
	s.Status = StepStatusActive
	s.Progress = 0
	s.Attempts++
}

// Complete ends the step successfully
func (s *StepState) Complete(message string) {
	s.finish(StepStatusCompleted, message, nil)
}

// Fail ends the step with err
func (s *StepState) Fail(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.finish(StepStatusFailed, msg, err)
}

// Skip ends the step without running it, or after a missing input
func (s *StepState) Skip(reason string) {
	s.finish(StepStatusSkipped, reason, nil)
}

func (s *StepState) finish(status StepStatus, message string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = status
	s.Message = message
	s.Error = err
	if status == StepStatusCompleted {
		s.Progress = 100
	}
}

// SetMetadata records a value such as a row count or output path
func (s *StepState) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metadata[key] = value
}

// GetStatus returns the current status
func (s *StepState) GetStatus() StepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Duration is the time spent in the latest attempt, up to now while active
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.StartTime == nil:
		return 0
	case s.EndTime == nil:
		return time.Since(*s.StartTime)
	default:
		return s.EndTime.Sub(*s.StartTime)
	}
}

// Snapshot copies the state for publishing
func (s *StepState) Snapshot() StepSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := StepSnapshot{
		ID:       s.ID,
		Name:     s.Name,
		Status:   string(s.Status),
		Progress: int(s.Progress),
		Attempts: s.Attempts,
		Message:  s.Message,
		Metadata: maps.Clone(s.Metadata),
	}
	if s.Error != nil {
		snap.Error = s.Error.Error()
	}
	return snap
}

// BaseStage carries the identity of a step. Embedders supply Execute and
// may override Validate.
type BaseStage struct {
	id           string
	name         string
	dependencies []string
}

// NewBaseStage returns the identity for a step
func NewBaseStage(id, name string, dependencies []string) BaseStage {
	return BaseStage{id: id, name: name, dependencies: append([]string{}, dependencies...)}
}

func (b *BaseStage) ID() string                       { return b.id }
func (b *BaseStage) Name() string                     { return b.name }
func (b *BaseStage) GetDependencies() []string        { return b.dependencies }
func (b *BaseStage) Validate(_ *OperationState) error { return nil }
