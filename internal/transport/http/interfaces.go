package http

import (
	"context"

	"emsinv/internal/operations"
	"emsinv/internal/services"
	"emsinv/pkg/contracts/domain"
)

// DataServiceInterface serves the preprocessed inventory dataset
type DataServiceInterface interface {
	GetItems(ctx context.Context) (*services.ItemList, error)
	GetItemTrend(ctx context.Context, item string, window int) (*services.TrendResponse, error)
	GetAnalysisReport(ctx context.Context) (*domain.AnalysisReport, error)
}

// OperationServiceInterface triggers and reports pipeline runs
type OperationServiceInterface interface {
	StartRun(ctx context.Context, req operations.OperationRequest) (string, error)
	GetRun(id string) (operations.OperationSnapshot, error)
	LatestRun() (operations.OperationSnapshot, error)
}

// HealthChecker reports service health
type HealthChecker interface {
	HealthCheck(ctx context.Context) services.HealthStatus
}
