// Package daemon ties the run store, pipeline manager, and HTTP API into a
// single long-running process with single-instance locking.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"strand/internal/config"
	"strand/internal/logging"
	"strand/internal/pipeline"
	"strand/internal/runstore"
)

// Daemon coordinates the background services and enforces single-instance
// execution via a lock file.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *runstore.Store
	manager *pipeline.Manager
	server  *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	StoreDBPath  string
	LockFilePath string
	APIAddress   string
	Database     runstore.DatabaseHealth
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *runstore.Store, logger *slog.Logger, manager *pipeline.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil {
		return nil, errors.New("daemon requires config, store, and pipeline manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "strand.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    store,
		manager:  manager,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.server = server
	return d, nil
}

// Start acquires the instance lock, reconciles runs orphaned by a previous
// process, and brings up the pipeline manager and HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another strand daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	reconciled, err := d.store.FailAbandoned(d.ctx, "interrupted by daemon restart")
	if err != nil {
		d.teardownLock()
		return fmt.Errorf("reconcile abandoned runs: %w", err)
	}
	if reconciled > 0 {
		d.logger.Warn("failed abandoned runs from previous process", logging.Int64("count", reconciled))
	}

	if err := d.manager.Start(d.ctx); err != nil {
		d.teardownLock()
		return fmt.Errorf("start pipeline manager: %w", err)
	}

	if err := d.server.start(d.ctx); err != nil {
		d.manager.Stop()
		d.teardownLock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("strand daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("strand daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddress returns the bound address of the HTTP listener, or empty when
// the server is not listening.
func (d *Daemon) APIAddress() string {
	return d.server.address()
}

// Status reports runtime and store diagnostics.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		StoreDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		APIAddress:   d.APIAddress(),
	}
	if health, err := d.store.CheckHealth(ctx); err == nil {
		status.Database = health
	} else {
		status.Database = runstore.DatabaseHealth{DBPath: d.store.Path(), Error: err.Error()}
	}
	return status
}

func (d *Daemon) teardownLock() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	_ = d.lock.Unlock()
}
