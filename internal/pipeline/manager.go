package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"strand/internal/config"
	"strand/internal/logging"
	"strand/internal/runstore"
	"strand/internal/services"
	"strand/internal/tools"
)

// ErrNotRunning is returned by Launch when the manager has not been started
// or has been stopped.
var ErrNotRunning = errors.New("pipeline manager is not running")

// Manager launches one sequencer goroutine per admitted run and owns their
// shared lifecycle: Stop cancels every in-flight run and waits for the
// workers to drain.
type Manager struct {
	cfg      *config.Config
	store    *runstore.Store
	logger   *slog.Logger
	toolOpts []tools.Option

	mu      sync.Mutex
	running bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a pipeline manager. Tool options are forwarded to
// every sequencer it spawns.
func NewManager(cfg *config.Config, store *runstore.Store, logger *slog.Logger, toolOpts ...tools.Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		toolOpts: toolOpts,
	}
}

// Start prepares the manager to accept Launch calls. The provided context
// parents every run's execution context.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("pipeline manager already started")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	m.baseCtx, m.cancel = context.WithCancel(ctx)
	m.running = true
	return nil
}

// Launch spawns the per-run worker for an admitted run. It never blocks on
// pipeline execution.
func (m *Manager) Launch(runID string) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	ctx := m.baseCtx
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		seq := NewSequencer(m.cfg, m.store, m.logger, m.toolOpts...)
		if err := seq.Run(ctx, runID); err != nil {
			log := logging.WithContext(services.WithRunID(ctx, runID), m.logger)
			log.Error("pipeline run ended with error", logging.Error(err))
		}
	}()
	return nil
}

// Stop cancels all in-flight runs and waits for their workers to exit. The
// manager rejects further Launch calls afterward.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Wait blocks until every launched worker has exited. Useful for tests and
// for callers that want run completion without stopping the manager.
func (m *Manager) Wait() {
	m.wg.Wait()
}
