package operations

import (
	"sync"
	"time"

	"emsinv/internal/analysis"
	"emsinv/internal/dataprocessing"
	"emsinv/pkg/contracts/domain"
)

// OperationStatusValue represents the overall run status
type OperationStatusValue string

const (
	OperationStatusPending   OperationStatusValue = "pending"
	OperationStatusRunning   OperationStatusValue = "running"
	OperationStatusCompleted OperationStatusValue = "completed"
	OperationStatusFailed    OperationStatusValue = "failed"
	OperationStatusCancelled OperationStatusValue = "cancelled"
)

// OperationState represents the complete state of a run
type OperationState struct {
	mu sync.RWMutex

	ID        string               `json:"id"`
	Status    OperationStatusValue `json:"status"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`

	Steps map[string]*StepState `json:"steps"`
	// Order lists step IDs in execution order
	Order []string `json:"order"`

	// Context hands data between steps
	Context map[string]any `json:"-"`

	Error error `json:"-"`
}

// NewOperationState creates a new run state
func NewOperationState(id string) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
		Context:   make(map[string]any),
	}
}

// Start marks the run as running
func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = OperationStatusRunning
	p.StartTime = time.Now()
}

// Complete marks the run as completed
func (p *OperationState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCompleted
}

// Fail marks the run as failed
func (p *OperationState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusFailed
	p.Error = err
}

// Cancel marks the run as cancelled
func (p *OperationState) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCancelled
}

// Duration returns how long the run took, or has taken so far
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// GetStage returns the state of a specific Step
func (p *OperationState) GetStage(stageID string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Steps[stageID]
}

// SetStage records the state of a Step, appending it to the run order
func (p *OperationState) SetStage(stageID string, state *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.Steps[stageID]; !exists {
		p.Order = append(p.Order, stageID)
	}
	p.Steps[stageID] = state
}

// StepSnapshots returns the step states in execution order
func (p *OperationState) StepSnapshots() []StepSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snaps := make([]StepSnapshot, 0, len(p.Order))
	for _, id := range p.Order {
		snaps = append(snaps, p.Steps[id].Snapshot())
	}
	return snaps
}

// GetContext retrieves a value from the run context
func (p *OperationState) GetContext(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.Context[key]
	return val, ok
}

// SetContext sets a value in the run context
func (p *OperationState) SetContext(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Context[key] = value
}

// RawTable returns the raw table produced by simulation or ingestion
func (p *OperationState) RawTable() (domain.RawTable, bool) {
	v, ok := p.GetContext(ContextKeyRawTable)
	if !ok {
		return domain.RawTable{}, false
	}
	t, ok := v.(domain.RawTable)
	return t, ok
}

// Dataset returns the preprocessed dataset
func (p *OperationState) Dataset() (*domain.Dataset, bool) {
	v, ok := p.GetContext(ContextKeyDataset)
	if !ok {
		return nil, false
	}
	ds, ok := v.(*domain.Dataset)
	return ds, ok && ds != nil
}

// PreprocessStats returns the cleaning statistics of the preprocess step
func (p *OperationState) PreprocessStats() (dataprocessing.Stats, bool) {
	v, ok := p.GetContext(ContextKeyPreprocessStats)
	if !ok {
		return dataprocessing.Stats{}, false
	}
	s, ok := v.(dataprocessing.Stats)
	return s, ok
}

// Trends returns the smoothed usage series of the analyze step
func (p *OperationState) Trends() ([]analysis.TrendSeries, bool) {
	v, ok := p.GetContext(ContextKeyTrends)
	if !ok {
		return nil, false
	}
	t, ok := v.([]analysis.TrendSeries)
	return t, ok
}

// Report returns the analysis report
func (p *OperationState) Report() (*domain.AnalysisReport, bool) {
	v, ok := p.GetContext(ContextKeyReport)
	if !ok {
		return nil, false
	}
	r, ok := v.(*domain.AnalysisReport)
	return r, ok && r != nil
}

// AddArtifacts records files written by a step
func (p *OperationState) AddArtifacts(paths ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	existing, _ := p.Context[ContextKeyArtifacts].([]string)
	p.Context[ContextKeyArtifacts] = append(existing, paths...)
}

// Artifacts returns the files written during the run
func (p *OperationState) Artifacts() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, _ := p.Context[ContextKeyArtifacts].([]string)
	return append([]string(nil), a...)
}
