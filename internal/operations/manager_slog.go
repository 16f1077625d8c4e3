package operations

import (
	"context"
	"log/slog"
	"time"

	"emsinv/internal/infrastructure"
)

// Run and step identifiers travel in the context and are added to every
// record by the infrastructure log handler.

func (m *Manager) logOperationStart(ctx context.Context, stepIDs []string) {
	m.logger.InfoContext(ctx, "operation_start", slog.Any("steps", stepIDs))
}

func (m *Manager) logOperationComplete(ctx context.Context, duration time.Duration, status OperationStatusValue) {
	m.logger.InfoContext(ctx, "operation_complete",
		slog.String("status", string(status)),
		slog.Duration("duration", duration))
}

func (m *Manager) logOperationError(ctx context.Context, err error) {
	m.logger.ErrorContext(ctx, "operation_error", slog.String("error", err.Error()))
}

func (m *Manager) logStageStart(ctx context.Context, attempt int) {
	m.logger.InfoContext(ctx, "stage_start", slog.Int("attempt", attempt))
}

func (m *Manager) logStageComplete(ctx context.Context, duration time.Duration) {
	m.logger.InfoContext(ctx, "stage_complete", slog.Duration("duration", duration))
}

func (m *Manager) logStageRetry(ctx context.Context, attempt, maxAttempts int, delay time.Duration, err error) {
	m.logger.WarnContext(ctx, "stage_retry",
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", maxAttempts),
		slog.Duration("delay", delay),
		slog.String("error", err.Error()))
}

// logStageSkipped and logStageError run outside the step's own context
func (m *Manager) logStageSkipped(ctx context.Context, stepID, reason string) {
	m.logger.WarnContext(infrastructure.WithStep(ctx, stepID), "stage_skipped",
		slog.String("reason", reason))
}

func (m *Manager) logStageError(ctx context.Context, stepID string, err error) {
	m.logger.ErrorContext(infrastructure.WithStep(ctx, stepID), "stage_error",
		slog.String("error", err.Error()))
}
