package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "emsinv/internal/errors"
	"emsinv/internal/store"
)

type fixedClients int

func (c fixedClients) ClientCount() int { return int(c) }

type fixedRuns bool

func (r fixedRuns) IsRunning() bool { return bool(r) }

func TestHealthService_HealthCheck(t *testing.T) {
	failing := func(ctx context.Context) (store.Store, error) {
		return nil, apperrors.NewStorageError("failed to open sqlite store", errors.New("disk I/O error"))
	}

	tests := []struct {
		name         string
		svc          *HealthService
		wantStatus   string
		wantPipeline string
	}{
		{
			name:         "store reachable",
			svc:          NewHealthService("1.0.0", "csv", csvOpener(t.TempDir()), fixedClients(3), fixedRuns(false), testLogger()),
			wantStatus:   StatusHealthy,
			wantPipeline: "idle",
		},
		{
			name:         "run in progress",
			svc:          NewHealthService("1.0.0", "csv", csvOpener(t.TempDir()), nil, fixedRuns(true), testLogger()),
			wantStatus:   StatusHealthy,
			wantPipeline: "run in progress",
		},
		{
			name:       "store unreachable",
			svc:        NewHealthService("1.0.0", "sqlite", failing, nil, nil, testLogger()),
			wantStatus: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := tt.svc.HealthCheck(context.Background())
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, "1.0.0", status.Version)
			assert.Contains(t, status.Services, "store")

			if tt.wantPipeline == "" {
				assert.NotContains(t, status.Services, "pipeline")
				return
			}
			assert.Equal(t, tt.wantPipeline, status.Services["pipeline"].Message)
		})
	}

	status := tests[0].svc.HealthCheck(context.Background())
	assert.Equal(t, 3, status.Runtime["websocket_clients"])
}
