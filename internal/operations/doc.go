// Package operations runs the inventory pipeline as a sequence of steps.
//
// A run executes the registered steps in dependency order:
//
//	simulate   -> generate the synthetic dataset CSV
//	ingest     -> load the CSV into the "inventory" table and verify a sample
//	preprocess -> clean the raw table, derive usage, save "preprocessed_inventory"
//	analyze    -> trends, restock and critical stock reports
//
// Manager owns execution. Each step runs under its own timeout, inside its own
// span, and its outcome is recorded on a StepState. A step error is contained
// at the step boundary: dependents of a failed step are skipped, independent
// steps still run, and the error is reported on the run response. A step that
// finds its input missing is marked skipped rather than failed.
//
// Progress is published through StatusBroadcaster, which keeps one
// OperationSnapshot per run and pushes it to a Publisher such as the websocket hub.
//
// Example:
//
//	registry := operations.NewRegistry()
//	_ = operations.RegisterPipeline(registry, deps)
//	manager := operations.NewManager(hub, registry, operations.NewConfig())
//	resp, err := manager.Execute(ctx, operations.OperationRequest{})
package operations
