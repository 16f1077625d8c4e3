package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"emsinv/internal/infrastructure"
	"emsinv/internal/operations"
)

// Health states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ClientCounter reports connected websocket clients
type ClientCounter interface {
	ClientCount() int
}

// RunReporter reports whether a pipeline run is in progress
type RunReporter interface {
	IsRunning() bool
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	driver    string
	openStore operations.StoreOpener
	clients   ClientCounter
	runs      RunReporter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. clients and runs may be nil.
func NewHealthService(version, driver string, openStore operations.StoreOpener, clients ClientCounter, runs RunReporter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		driver:    driver,
		openStore: openStore,
		clients:   clients,
		runs:      runs,
		startTime: time.Now(),
		logger:    infrastructure.WithComponent(logger, "health_service"),
	}
}

// HealthCheck reports the service status. An unreachable store makes the
// service unhealthy.
func (s *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Runtime: map[string]interface{}{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
		Services: map[string]ServiceHealth{
			"store": s.checkStore(ctx),
		},
	}
	if status.Services["store"].Status != StatusHealthy {
		status.Status = StatusUnhealthy
	}

	if s.clients != nil {
		status.Runtime["websocket_clients"] = s.clients.ClientCount()
	}
	if s.runs != nil {
		pipeline := ServiceHealth{Status: StatusHealthy, Message: "idle"}
		if s.runs.IsRunning() {
			pipeline.Message = "run in progress"
		}
		status.Services["pipeline"] = pipeline
	}
	return status
}

func (s *HealthService) checkStore(ctx context.Context) ServiceHealth {
	if s.openStore == nil {
		return ServiceHealth{Status: StatusDegraded, Message: "no store configured"}
	}
	st, err := s.openStore(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "store health check failed",
			slog.String("driver", s.driver),
			slog.String("error", err.Error()))
		return ServiceHealth{Status: StatusUnhealthy, Message: err.Error()}
	}
	if err := st.Close(); err != nil {
		return ServiceHealth{Status: StatusDegraded, Message: err.Error()}
	}
	return ServiceHealth{Status: StatusHealthy, Message: s.driver}
}
