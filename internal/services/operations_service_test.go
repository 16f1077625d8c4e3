package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "emsinv/internal/errors"
	"emsinv/internal/operations"
)

type gateStep struct {
	operations.BaseStage
	release chan struct{}
}

func newGateStep(id string) *gateStep {
	return &gateStep{
		BaseStage: operations.NewBaseStage(id, "Gate "+id, nil),
		release:   make(chan struct{}),
	}
}

func (s *gateStep) Execute(ctx context.Context, state *operations.OperationState) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newTestOperationService(t *testing.T, steps ...operations.Step) *OperationService {
	t.Helper()
	manager := operations.NewManager(nil, operations.NewRegistry(), operations.NewConfig(),
		operations.WithLogger(testLogger()))
	for _, s := range steps {
		require.NoError(t, manager.RegisterStage(s))
	}
	return NewOperationService(manager, time.Minute, testLogger())
}

func waitForStatus(t *testing.T, svc *OperationService, id, status string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		snap, err := svc.GetRun(id)
		return err == nil && snap.Status == status
	}, 2*time.Second, 5*time.Millisecond)
}

func TestOperationService_SerializesRuns(t *testing.T) {
	gate := newGateStep("simulate")
	svc := newTestOperationService(t, gate)
	ctx := context.Background()

	id, err := svc.StartRun(ctx, operations.OperationRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = svc.GetRun(id)
	require.NoError(t, err, "snapshot exists as soon as the run is accepted")
	assert.True(t, svc.IsRunning())

	_, err = svc.StartRun(ctx, operations.OperationRequest{})
	assert.ErrorIs(t, err, ErrRunInProgress)
	_, err = svc.Run(ctx, operations.OperationRequest{})
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(gate.release)
	waitForStatus(t, svc, id, string(operations.OperationStatusCompleted))
	assert.Eventually(t, func() bool { return !svc.IsRunning() }, 2*time.Second, 5*time.Millisecond)

	latest, err := svc.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, id, latest.OperationID)

	resp, err := svc.Run(ctx, operations.OperationRequest{ID: "second"})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.ID)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)
}

func TestOperationService_RejectsUnknownSteps(t *testing.T) {
	svc := newTestOperationService(t, newGateStep("simulate"))

	_, err := svc.StartRun(context.Background(), operations.OperationRequest{Steps: []string{"publish"}})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.False(t, svc.IsRunning())
}

func TestOperationService_CloseCancelsRun(t *testing.T) {
	svc := newTestOperationService(t, newGateStep("simulate"))

	id, err := svc.StartRun(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Close(ctx))

	snap, err := svc.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, string(operations.OperationStatusCancelled), snap.Status)

	_, err = svc.StartRun(context.Background(), operations.OperationRequest{})
	assert.ErrorIs(t, err, ErrServiceClosed)
}

func TestOperationService_StartRunRacingClose(t *testing.T) {
	for range 20 {
		svc := newTestOperationService(t, newGateStep("simulate"))

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted []string
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := svc.StartRun(context.Background(), operations.OperationRequest{})
				switch {
				case err == nil:
					mu.Lock()
					accepted = append(accepted, id)
					mu.Unlock()
				case errors.Is(err, ErrRunInProgress), errors.Is(err, ErrServiceClosed):
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		require.NoError(t, svc.Close(ctx))
		cancel()
		wg.Wait()

		assert.False(t, svc.IsRunning(), "no run may start once Close has returned")
		assert.False(t, svc.track())
		for _, id := range accepted {
			snap, err := svc.GetRun(id)
			require.NoError(t, err)
			assert.NotEqual(t, string(operations.OperationStatusRunning), snap.Status)
		}
	}
}

func TestOperationService_UnknownRun(t *testing.T) {
	svc := newTestOperationService(t)

	_, err := svc.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = svc.LatestRun()
	assert.ErrorIs(t, err, ErrRunNotFound)
}
