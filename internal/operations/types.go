package operations

import "time"

// Step IDs
const (
	StepIDSimulate   = "simulate"
	StepIDIngest     = "ingest"
	StepIDPreprocess = "preprocess"
	StepIDAnalyze    = "analyze"
)

// Step names
const (
	StepNameSimulate   = "Dataset Simulation"
	StepNameIngest     = "CSV Ingestion"
	StepNamePreprocess = "Preprocessing"
	StepNameAnalyze    = "Trend and Stock Analysis"
)

// Context keys used to hand data between steps
const (
	ContextKeyRawTable        = "raw_table"
	ContextKeyDataset         = "dataset"
	ContextKeyPreprocessStats = "preprocess_stats"
	ContextKeyTrends          = "trends"
	ContextKeyReport          = "analysis_report"
	ContextKeyArtifacts       = "artifacts"
)

// Event types published to the WebSocket hub
const (
	EventTypeOperationSnapshot = "operation:snapshot"
)

// OperationRequest selects what a run executes
type OperationRequest struct {
	// ID is generated when empty
	ID string `json:"id,omitempty"`
	// Steps limits the run to the listed step IDs; empty runs every step
	Steps []string `json:"steps,omitempty" validate:"omitempty,dive,oneof=simulate ingest preprocess analyze"`
}

// OperationResponse summarizes a finished run
type OperationResponse struct {
	ID        string               `json:"id"`
	Status    OperationStatusValue `json:"status"`
	Duration  time.Duration        `json:"duration"`
	Steps     []StepSnapshot       `json:"steps"`
	Artifacts []string             `json:"artifacts,omitempty"`
	Error     string               `json:"error,omitempty"`
}
