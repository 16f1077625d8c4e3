package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "emsinv/internal/errors"
	"emsinv/internal/infrastructure"
)

// Manager orchestrates pipeline runs
type Manager struct {
	registry    *Registry
	config      *Config
	broadcaster *StatusBroadcaster
	tracer      *OperationTracer
	logger      *slog.Logger

	// Active runs
	mu         sync.RWMutex
	operations map[string]*OperationState
}

// ManagerOption customizes a Manager
type ManagerOption func(*Manager)

// WithLogger sets the manager logger
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTracer sets the span and metric recorder
func WithTracer(tracer *OperationTracer) ManagerOption {
	return func(m *Manager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// NewManager creates a run manager. hub may be nil.
func NewManager(hub Publisher, registry *Registry, config *Config, opts ...ManagerOption) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}

	m := &Manager{
		registry:   registry,
		config:     config,
		tracer:     NewOperationTracer(nil),
		logger:     slog.Default(),
		operations: make(map[string]*OperationState),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "operations"))
	m.broadcaster = NewStatusBroadcaster(hub, m.logger)
	return m
}

// RegisterStage registers a Step with the manager
func (m *Manager) RegisterStage(step Step) error {
	return m.registry.Register(step)
}

// GetRegistry returns the step registry
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Execute runs the requested steps. Step failures do not stop independent
// steps; they are recorded on the response and returned as an *ErrorList.
func (m *Manager) Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ctx = infrastructure.WithRun(infrastructure.EnsureTraceID(ctx), req.ID)

	steps, err := m.registry.Select(req.Steps)
	if err != nil {
		err = NewValidationError("", err.Error())
		m.logOperationError(ctx, err)
		return nil, err
	}

	state := NewOperationState(req.ID)
	stepIDs := make([]string, len(steps))
	for i, step := range steps {
		stepIDs[i] = step.ID()
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}

	m.storeOperation(state)
	defer m.removeOperation(req.ID)

	ctx, span := m.tracer.TraceOperationExecution(ctx, req.ID, stepIDs)
	defer span.End()

	m.broadcaster.CreateOperation(req.ID, state.StepSnapshots())
	state.Start()
	m.broadcaster.StartOperation(req.ID)
	m.logOperationStart(ctx, stepIDs)

	errs := m.executeSequential(ctx, state, steps)

	switch {
	case ctx.Err() != nil:
		err = NewCancellationError("", ctx.Err())
		state.Cancel()
		m.broadcaster.CancelOperation(req.ID)
	case errs.HasErrors():
		err = errs
		state.Fail(err)
		m.broadcaster.FailOperation(req.ID, err)
	default:
		state.Complete()
		m.broadcaster.CompleteOperation(req.ID, "Operation completed successfully")
	}

	m.tracer.RecordOperationCompletion(ctx, span, state.Duration(), err)
	m.logOperationComplete(ctx, state.Duration(), state.Status)
	return m.createResponse(state), err
}

// executeSequential runs steps one by one and collects their errors
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) *ErrorList {
	errs := &ErrorList{}
	for _, step := range steps {
		stepState := state.GetStage(step.ID())

		if ctx.Err() != nil {
			m.skip(ctx, state, stepState, "operation cancelled")
			continue
		}
		if stepState.GetStatus() == StepStatusSkipped {
			continue
		}
		if errs.HasErrors() && !m.config.ContinueOnError {
			m.skip(ctx, state, stepState, "previous step failed")
			continue
		}
		if err := m.checkDependencies(state, step); err != nil {
			m.skip(ctx, state, stepState, err.Error())
			continue
		}
		if err := step.Validate(state); err != nil {
			m.skip(ctx, state, stepState, fmt.Sprintf("validation failed: %v", err))
			continue
		}

		if err := m.executeStage(ctx, state, step); err != nil {
			m.logStageError(ctx, step.ID(), err)
			errs.Add(WrapError(err, step.ID(), "step execution failed"))
			m.skipDependentStages(ctx, state, steps, step.ID())
		}
	}
	return errs
}

// executeStage executes a single Step with retry logic
func (m *Manager) executeStage(ctx context.Context, state *OperationState, step Step) (err error) {
	stepState := state.GetStage(step.ID())

	ctx, span := m.tracer.TraceStageExecution(infrastructure.WithStep(ctx, step.ID()), state.ID, step.ID())
	defer func() {
		m.tracer.RecordStageCompletion(ctx, span, stepState, err)
		span.End()
	}()

	timeout := m.config.GetStageTimeout(step.ID())
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	retry := m.config.RetryConfig
	maxAttempts := max(retry.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		stepState.Start()
		m.publish(state.ID, stepState)
		m.logStageStart(ctx, attempt)

		execErr := step.Execute(stageCtx, state)
		if execErr == nil {
			stepState.Complete("Step completed successfully")
			m.publish(state.ID, stepState)
			m.logStageComplete(ctx, stepState.Duration())
			return nil
		}

		// A missing input is reported and the step becomes a no-op
		if apperrors.IsInputNotFound(execErr) {
			m.skip(ctx, state, stepState, execErr.Error())
			return nil
		}

		if stageCtx.Err() != nil {
			if ctx.Err() != nil {
				err = NewCancellationError(step.ID(), execErr)
			} else {
				err = NewTimeoutError(step.ID(), timeout.String(), execErr)
			}
			stepState.Fail(err)
			m.publish(state.ID, stepState)
			return err
		}

		if !IsRetryable(execErr) || attempt >= maxAttempts {
			stepState.Fail(execErr)
			m.publish(state.ID, stepState)
			return execErr
		}

		delay := retry.Delay(attempt)
		m.logStageRetry(ctx, attempt, maxAttempts, delay, execErr)

		select {
		case <-time.After(delay):
		case <-stageCtx.Done():
			err = NewTimeoutError(step.ID(), timeout.String(), errors.Join(execErr, stageCtx.Err()))
			stepState.Fail(err)
			m.publish(state.ID, stepState)
			return err
		}
	}
}

// skip marks a step skipped and publishes it
func (m *Manager) skip(ctx context.Context, state *OperationState, stepState *StepState, reason string) {
	stepState.Skip(reason)
	m.publish(state.ID, stepState)
	m.logStageSkipped(ctx, stepState.ID, reason)
}

// skipDependentStages marks every pending step that depends on the failed
// step, directly or transitively, as skipped
func (m *Manager) skipDependentStages(ctx context.Context, state *OperationState, steps []Step, failedID string) {
	for _, step := range steps {
		if !slices.Contains(step.GetDependencies(), failedID) {
			continue
		}
		stepState := state.GetStage(step.ID())
		if stepState == nil || stepState.GetStatus() != StepStatusPending {
			continue
		}
		m.skip(ctx, state, stepState, fmt.Sprintf("dependency %s failed", failedID))
		m.skipDependentStages(ctx, state, steps, step.ID())
	}
}

// checkDependencies verifies that every dependency that is part of this run
// has completed. Dependencies outside the run are satisfied by stored data.
func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.GetDependencies() {
		depState := state.GetStage(dep)
		if depState == nil {
			continue
		}
		if status := depState.GetStatus(); status != StepStatusCompleted {
			return NewDependencyError(step.ID(), dep, status)
		}
	}
	return nil
}

func (m *Manager) publish(operationID string, stepState *StepState) {
	m.broadcaster.UpdateStep(operationID, stepState.Snapshot())
}

// createResponse creates a run response from state
func (m *Manager) createResponse(state *OperationState) *OperationResponse {
	resp := &OperationResponse{
		ID:        state.ID,
		Status:    state.Status,
		Duration:  state.Duration(),
		Steps:     state.StepSnapshots(),
		Artifacts: state.Artifacts(),
	}
	if state.Error != nil {
		resp.Error = state.Error.Error()
	}
	return resp
}

// GetOperation returns the state of a running operation
func (m *Manager) GetOperation(id string) (*OperationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.operations[id]
	if !exists {
		return nil, fmt.Errorf("operation %s not found", id)
	}
	return state, nil
}

// ActiveOperations returns the IDs of running operations
func (m *Manager) ActiveOperations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.operations))
	for id := range m.operations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Manager) storeOperation(state *OperationState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[state.ID] = state
}

func (m *Manager) removeOperation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, id)
}
