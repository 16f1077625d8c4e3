package operations

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// maxSnapshots bounds how many finished runs the broadcaster remembers
const maxSnapshots = 20

// StatusBroadcaster is the single authority for run status updates. It keeps
// the latest snapshot of every recent run and publishes each change.
type StatusBroadcaster struct {
	mu         sync.RWMutex
	operations map[string]*OperationSnapshot
	order      []string
	hub        Publisher
	logger     *slog.Logger
}

// OperationSnapshot represents the complete state of a run at a point in time
type OperationSnapshot struct {
	OperationID string         `json:"operation_id"`
	Status      string         `json:"status"`       // pending|running|completed|failed|cancelled
	Progress    int            `json:"progress"`     // 0-100
	CurrentStep string         `json:"current_step"` // ID of the active step
	Steps       []StepSnapshot `json:"steps"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// StepSnapshot represents the state of a single step
type StepSnapshot struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Status   string         `json:"status"`   // pending|active|completed|failed|skipped
	Progress int            `json:"progress"` // 0-100
	Attempts int            `json:"attempts,omitempty"`
	Message  string         `json:"message,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Publisher receives every snapshot change. The websocket hub implements
// it to push run updates to dashboard clients.
type Publisher interface {
	BroadcastUpdate(eventType, step, status string, metadata interface{})
}

// NewStatusBroadcaster creates a new status broadcaster. hub may be nil.
func NewStatusBroadcaster(hub Publisher, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusBroadcaster{
		operations: make(map[string]*OperationSnapshot),
		hub:        hub,
		logger:     logger.With(slog.String("component", "status_broadcaster")),
	}
}

// UpdateStatus applies updateFunc to the run snapshot and publishes the result
func (sb *StatusBroadcaster) UpdateStatus(operationID string, updateFunc func(*OperationSnapshot)) {
	sb.mu.Lock()
	snapshot, exists := sb.operations[operationID]
	if !exists {
		now := time.Now()
		snapshot = &OperationSnapshot{
			OperationID: operationID,
			Status:      string(OperationStatusPending),
			StartedAt:   now,
			Steps:       []StepSnapshot{},
		}
		sb.operations[operationID] = snapshot
		sb.order = append(sb.order, operationID)
		sb.prune()
	}

	updateFunc(snapshot)
	snapshot.UpdatedAt = time.Now()

	if len(snapshot.Steps) > 0 {
		total := 0
		for _, step := range snapshot.Steps {
			total += step.Progress
		}
		snapshot.Progress = total / len(snapshot.Steps)
	}

	if isTerminal(snapshot.Status) && snapshot.CompletedAt == nil {
		now := time.Now()
		snapshot.CompletedAt = &now
	}

	published := snapshot.clone()
	sb.mu.Unlock()

	sb.broadcast(published)
}

// prune drops the oldest finished runs. Caller holds the lock.
func (sb *StatusBroadcaster) prune() {
	for len(sb.order) > maxSnapshots {
		idx := slices.IndexFunc(sb.order, func(id string) bool {
			return isTerminal(sb.operations[id].Status)
		})
		if idx < 0 {
			return
		}
		delete(sb.operations, sb.order[idx])
		sb.order = slices.Delete(sb.order, idx, idx+1)
	}
}

func isTerminal(status string) bool {
	switch OperationStatusValue(status) {
	case OperationStatusCompleted, OperationStatusFailed, OperationStatusCancelled:
		return true
	}
	return false
}

// broadcast sends the complete snapshot to all connected clients
func (sb *StatusBroadcaster) broadcast(snapshot OperationSnapshot) {
	sb.logger.Debug("broadcasting operation snapshot",
		slog.String("operation_id", snapshot.OperationID),
		slog.String("status", snapshot.Status),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_step", snapshot.CurrentStep))

	if sb.hub == nil {
		return
	}
	sb.hub.BroadcastUpdate(EventTypeOperationSnapshot, snapshot.OperationID, snapshot.Status, snapshot)
}

// CreateOperation initializes a run with its steps in execution order
func (sb *StatusBroadcaster) CreateOperation(operationID string, steps []StepSnapshot) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusPending)
		snapshot.Steps = slices.Clone(steps)
		snapshot.Message = "Operation created"
	})
}

// StartOperation marks a run as running
func (sb *StatusBroadcaster) StartOperation(operationID string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusRunning)
		snapshot.Message = "Operation started"
	})
}

// UpdateStep replaces the snapshot of one step
func (sb *StatusBroadcaster) UpdateStep(operationID string, step StepSnapshot) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		idx := slices.IndexFunc(snapshot.Steps, func(s StepSnapshot) bool { return s.ID == step.ID })
		if idx < 0 {
			snapshot.Steps = append(snapshot.Steps, step)
		} else {
			snapshot.Steps[idx] = step
		}
		if step.Status == string(StepStatusActive) {
			snapshot.CurrentStep = step.ID
		}
		if step.Message != "" {
			snapshot.Message = step.Message
		}
	})
}

// CompleteOperation marks a run as completed
func (sb *StatusBroadcaster) CompleteOperation(operationID string, message string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusCompleted)
		snapshot.CurrentStep = ""
		snapshot.Message = message
	})
}

// FailOperation marks a run as failed
func (sb *StatusBroadcaster) FailOperation(operationID string, err error) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusFailed)
		snapshot.CurrentStep = ""
		if err != nil {
			snapshot.Error = err.Error()
			snapshot.Message = "Operation failed"
		}
	})
}

// CancelOperation marks a run as cancelled
func (sb *StatusBroadcaster) CancelOperation(operationID string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusCancelled)
		snapshot.CurrentStep = ""
		snapshot.Message = "Operation cancelled"
	})
}

// GetSnapshot returns a copy of a run snapshot
func (sb *StatusBroadcaster) GetSnapshot(operationID string) (OperationSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.operations[operationID]
	if !exists {
		return OperationSnapshot{}, false
	}
	return snapshot.clone(), true
}

// Latest returns a copy of the most recently created run snapshot
func (sb *StatusBroadcaster) Latest() (OperationSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	if len(sb.order) == 0 {
		return OperationSnapshot{}, false
	}
	return sb.operations[sb.order[len(sb.order)-1]].clone(), true
}

func (s *OperationSnapshot) clone() OperationSnapshot {
	c := *s
	c.Steps = make([]StepSnapshot, len(s.Steps))
	for i, step := range s.Steps {
		step.Metadata = maps.Clone(step.Metadata)
		c.Steps[i] = step
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return c
}
