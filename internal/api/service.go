package api

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"strand/internal/logging"
	"strand/internal/pipeline"
	"strand/internal/runstore"
	"strand/internal/services"
)

// Service implements run admission and status queries over an injected
// store and pipeline manager. It is transport-agnostic; the HTTP server and
// the CLI both sit on top of it.
type Service struct {
	store   *runstore.Store
	manager *pipeline.Manager
	logger  *slog.Logger
}

// NewService constructs the admission service.
func NewService(store *runstore.Store, manager *pipeline.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:   store,
		manager: manager,
		logger:  logger.With(logging.String(logging.FieldComponent, "api")),
	}
}

// Submit validates the request, creates the run, and launches its worker.
// It returns as soon as the run record exists and the worker is launched;
// pipeline outcome is observable only through GetStatus.
func (s *Service) Submit(ctx context.Context, sampleName string, files []string, params map[string]string) (*RunView, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: input_files must not be empty", runstore.ErrValidation)
	}
	resolved := make([]string, 0, len(files))
	for _, file := range files {
		file = strings.TrimSpace(file)
		if file == "" {
			return nil, fmt.Errorf("%w: blank input file reference", runstore.ErrValidation)
		}
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("%w: unresolvable input %q", runstore.ErrValidation, file)
		}
		resolved = append(resolved, abs)
	}

	run, err := s.store.CreateRun(ctx, sampleName, resolved, params)
	if err != nil {
		return nil, err
	}

	log := logging.WithContext(services.WithRunID(ctx, run.ID), s.logger)
	if err := s.manager.Launch(run.ID); err != nil {
		log.Error("worker launch failed", logging.Error(err))
		return nil, fmt.Errorf("launch run %s: %w", run.ID, err)
	}
	log.Info("run admitted",
		logging.String("sample", run.SampleName),
		logging.Int("files", len(run.SampleFiles)))

	return RunViewFrom(run), nil
}

// GetStatus returns the run's current view: headline state plus the full
// stage and artifact history.
func (s *Service) GetStatus(ctx context.Context, runID string) (*RunView, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return RunViewFrom(run), nil
}

// ListRuns returns summaries for every known run.
func (s *Service) ListRuns(ctx context.Context) ([]RunSummary, error) {
	runs, err := s.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, RunSummaryFrom(run))
	}
	return summaries, nil
}
