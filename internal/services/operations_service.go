package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "emsinv/internal/errors"
	"emsinv/internal/infrastructure"
	"emsinv/internal/operations"
)

// OperationService runs the inventory pipeline for the HTTP service. Runs
// are serialized: while one holds the run lock, further requests get
// ErrRunInProgress.
type OperationService struct {
	manager    *operations.Manager
	runTimeout time.Duration
	logger     *slog.Logger

	runMu  sync.Mutex
	base   context.Context
	cancel context.CancelFunc

	// lifeMu orders wg.Add against Close
	lifeMu sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewOperationService creates an operation service over manager
func NewOperationService(manager *operations.Manager, runTimeout time.Duration, logger *slog.Logger) *OperationService {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &OperationService{
		manager:    manager,
		runTimeout: runTimeout,
		logger:     infrastructure.WithComponent(logger, "operation_service"),
		base:       base,
		cancel:     cancel,
	}
}

// StartRun validates the request and executes it in the background. The
// returned run ID can be polled right away.
func (s *OperationService) StartRun(ctx context.Context, req operations.OperationRequest) (string, error) {
	if s.isClosed() {
		return "", ErrServiceClosed
	}
	if _, err := s.manager.GetRegistry().Select(req.Steps); err != nil {
		return "", apperrors.NewAppValidationError(err.Error())
	}
	if !s.runMu.TryLock() {
		return "", ErrRunInProgress
	}
	if !s.track() {
		s.runMu.Unlock()
		return "", ErrServiceClosed
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	// the snapshot exists before the goroutine is scheduled
	s.manager.GetBroadcaster().CreateOperation(req.ID, nil)

	runCtx := infrastructure.WithTraceID(s.base, infrastructure.GetTraceID(ctx))
	go func() {
		defer s.wg.Done()
		defer s.runMu.Unlock()
		s.execute(runCtx, req)
	}()

	s.logger.InfoContext(ctx, "pipeline run started",
		slog.String("operation_id", req.ID),
		slog.Any("steps", req.Steps))
	return req.ID, nil
}

// Run executes the request and waits for it. Step failures are contained:
// the response reports them and the error is the run's *ErrorList.
func (s *OperationService) Run(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
	if s.isClosed() {
		return nil, ErrServiceClosed
	}
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()
	return s.execute(ctx, req)
}

// track registers a background run unless Close has begun
func (s *OperationService) track() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *OperationService) isClosed() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.closed
}

func (s *OperationService) execute(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	resp, err := s.manager.Execute(ctx, req)
	if resp == nil {
		s.logger.WarnContext(ctx, "pipeline run rejected",
			slog.String("operation_id", req.ID),
			slog.String("error", err.Error()))
		return nil, err
	}

	attrs := []slog.Attr{
		slog.String("operation_id", resp.ID),
		slog.String("status", string(resp.Status)),
		slog.Duration("duration", resp.Duration),
		slog.Int("artifacts", len(resp.Artifacts)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		s.logger.LogAttrs(ctx, slog.LevelWarn, "pipeline run finished with errors", attrs...)
	} else {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "pipeline run finished", attrs...)
	}
	return resp, err
}

// GetRun returns the latest snapshot of a run
func (s *OperationService) GetRun(id string) (operations.OperationSnapshot, error) {
	snap, ok := s.manager.GetBroadcaster().GetSnapshot(id)
	if !ok {
		return operations.OperationSnapshot{}, ErrRunNotFound
	}
	return snap, nil
}

// LatestRun returns the snapshot of the most recent run
func (s *OperationService) LatestRun() (operations.OperationSnapshot, error) {
	snap, ok := s.manager.GetBroadcaster().Latest()
	if !ok {
		return operations.OperationSnapshot{}, ErrRunNotFound
	}
	return snap, nil
}

// IsRunning reports whether a run holds the run lock
func (s *OperationService) IsRunning() bool {
	if s.runMu.TryLock() {
		s.runMu.Unlock()
		return false
	}
	return true
}

// Close rejects new runs, cancels a background run and waits for it
func (s *OperationService) Close(ctx context.Context) error {
	s.lifeMu.Lock()
	s.closed = true
	s.lifeMu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
