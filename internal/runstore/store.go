package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"strand/internal/config"
)

// Store manages run persistence backed by SQLite.
//
// Each run has a single writer (its sequencer goroutine); reads may happen
// concurrently from any goroutine. WAL journaling plus the busy-retry helpers
// keep readers from blocking behind writers.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the run database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewRunID allocates a fresh run identifier (32 lowercase hex characters).
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateRun persists a new run in state queued at progress zero and returns it.
func (s *Store) CreateRun(ctx context.Context, sampleName string, inputFiles []string, params map[string]string) (*Run, error) {
	if len(inputFiles) == 0 {
		return nil, fmt.Errorf("%w: input_files must not be empty", ErrValidation)
	}
	sampleName = strings.TrimSpace(sampleName)
	if sampleName == "" {
		sampleName = "sample-" + NewRunID()[:6]
	}
	if params == nil {
		params = map[string]string{}
	}

	filesJSON, err := json.Marshal(inputFiles)
	if err != nil {
		return nil, fmt.Errorf("marshal input files: %w", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	run := &Run{
		ID:          NewRunID(),
		CreatedAt:   time.Now().UTC(),
		Status:      RunQueued,
		Progress:    0,
		SampleName:  sampleName,
		SampleFiles: append([]string{}, inputFiles...),
		Params:      params,
	}

	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO runs (id, created_at, status, progress, sample_name, sample_files_json, params_json)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.Format(time.RFC3339Nano),
		run.Status,
		run.Progress,
		run.SampleName,
		string(filesJSON),
		string(paramsJSON),
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// AppendStage atomically appends a stage row and updates the parent run's
// status and progress. Progress is clamped to [0,100] and never decreases
// across a run's stage sequence. The derived run status is failed when the
// stage failed, finished when a finished stage reaches 100, and running
// otherwise. Appending to a terminal run returns ErrRunTerminal.
func (s *Store) AppendStage(ctx context.Context, runID string, input StageInput) error {
	ctx = ensureContext(ctx)
	metrics := input.Metrics
	if metrics == nil {
		metrics = map[string]string{}
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin append tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var (
			statusStr string
			progress  float64
		)
		row := tx.QueryRowContext(ctx, `SELECT status, progress FROM runs WHERE id = ?`, runID)
		if err := row.Scan(&statusStr, &progress); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrNotFound, runID)
			}
			return fmt.Errorf("read run: %w", err)
		}
		if RunStatus(statusStr).IsTerminal() {
			return fmt.Errorf("%w: %s is %s", ErrRunTerminal, runID, statusStr)
		}

		committed := clampProgress(input.Progress)
		if committed < progress {
			committed = progress
		}

		runStatus := RunRunning
		switch {
		case input.Status == StageFailed:
			runStatus = RunFailed
		case input.Status == StageFinished && committed >= 100:
			runStatus = RunFinished
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stages (run_id, name, status, progress, time_iso, metrics_json, artifact_path)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID,
			input.Name,
			input.Status,
			committed,
			time.Now().UTC().Format(time.RFC3339Nano),
			string(metricsJSON),
			input.ArtifactPath,
		); err != nil {
			return fmt.Errorf("insert stage: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE runs SET status = ?, progress = ? WHERE id = ?`,
			runStatus, committed, runID,
		); err != nil {
			return fmt.Errorf("update run: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit stage: %w", err)
		}
		return nil
	})
}

// AddArtifact atomically appends an artifact row for the run.
func (s *Store) AddArtifact(ctx context.Context, runID, kind, path string) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin artifact tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var exists int
		row := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs WHERE id = ?`, runID)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("read run: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO artifacts (run_id, kind, path) VALUES (?, ?, ?)`,
			runID, kind, path,
		); err != nil {
			return fmt.Errorf("insert artifact: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit artifact: %w", err)
		}
		return nil
	})
}

// GetRun returns a point-in-time snapshot of a run with its ordered stages
// and artifacts. The snapshot never observes a stage row without its effect
// on the run's status and progress.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	ctx = ensureContext(ctx)
	var result *Run
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return fmt.Errorf("begin read tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		run, err := scanRunRow(tx.QueryRowContext(ctx,
			`SELECT id, created_at, status, progress, sample_name, sample_files_json, params_json
             FROM runs WHERE id = ?`, runID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrNotFound, runID)
			}
			return fmt.Errorf("read run: %w", err)
		}

		stages, err := loadStages(ctx, tx, runID)
		if err != nil {
			return err
		}
		artifacts, err := loadArtifacts(ctx, tx, runID)
		if err != nil {
			return err
		}
		run.Stages = stages
		run.Artifacts = artifacts

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit read tx: %w", err)
		}
		result = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListRuns returns run summaries in insertion order. Ordering uses the
// rowid rather than created_at: RFC 3339 timestamps drop trailing zero
// fractions, so their lexicographic order diverges from chronological order
// at whole-second boundaries. Stages and artifacts are not loaded.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, status, progress, sample_name, sample_files_json, params_json
         FROM runs ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run with its stage and artifact rows in one
// transaction. The cascade is explicit so the delete path does not depend on
// foreign-key enforcement being enabled.
func (s *Store) DeleteRun(ctx context.Context, runID string) (bool, error) {
	ctx = ensureContext(ctx)
	var deleted bool
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin delete tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM stages WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("delete stages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("delete artifacts: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit delete: %w", err)
		}
		deleted = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// FailAbandoned appends a terminal error stage to every non-terminal run.
// Called at daemon start so runs orphaned by a previous process (killed
// mid-pipeline) do not report running forever.
func (s *Store) FailAbandoned(ctx context.Context, reason string) (int64, error) {
	ctx = ensureContext(ctx)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "run abandoned by previous process"
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE status NOT IN (?, ?)`, RunFinished, RunFailed)
	if err != nil {
		return 0, fmt.Errorf("list abandoned runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var count int64
	for _, id := range ids {
		err := s.AppendStage(ctx, id, StageInput{
			Name:    "error",
			Status:  StageFailed,
			Metrics: map[string]string{"error": reason},
		})
		if err != nil {
			return count, fmt.Errorf("fail abandoned run %s: %w", id, err)
		}
		count++
	}
	return count, nil
}

// CheckHealth returns diagnostic information about the run database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("run database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat run database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("run database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("run database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping run database: %w", err)
	}
	health.DatabaseReadable = true

	tables, err := s.db.QueryContext(connCtx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('runs', 'stages', 'artifacts') ORDER BY name`)
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("query table info: %w", err)
	}
	defer tables.Close()
	for tables.Next() {
		var name string
		if err := tables.Scan(&name); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("scan table info: %w", err)
		}
		health.TablesPresent = append(health.TablesPresent, name)
	}
	if err := tables.Err(); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("iterate table info: %w", err)
	}

	row := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM runs")
	if err := row.Scan(&health.TotalRuns); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count runs: %w", err)
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

func loadStages(ctx context.Context, tx *sql.Tx, runID string) ([]Stage, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT name, status, progress, time_iso, metrics_json, artifact_path
         FROM stages WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var stages []Stage
	for rows.Next() {
		var (
			stage   Stage
			timeRaw string
			metrics string
		)
		if err := rows.Scan(&stage.Name, &stage.Status, &stage.Progress, &timeRaw, &metrics, &stage.ArtifactPath); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		if parsed, err := parseTimeString(timeRaw); err == nil {
			stage.Time = parsed
		}
		stage.Metrics = unmarshalStringMap(metrics)
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

func loadArtifacts(ctx context.Context, tx *sql.Tx, runID string) ([]Artifact, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT kind, path FROM artifacts WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var artifact Artifact
		if err := rows.Scan(&artifact.Kind, &artifact.Path); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, rows.Err()
}

func scanRunRow(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run        Run
		statusStr  string
		createdRaw string
		filesJSON  string
		paramsJSON string
	)
	if err := scanner.Scan(&run.ID, &createdRaw, &statusStr, &run.Progress, &run.SampleName, &filesJSON, &paramsJSON); err != nil {
		return nil, err
	}
	run.Status = RunStatus(statusStr)
	if created, err := parseTimeString(createdRaw); err == nil {
		run.CreatedAt = created
	}
	if filesJSON != "" {
		_ = json.Unmarshal([]byte(filesJSON), &run.SampleFiles)
	}
	run.Params = unmarshalStringMap(paramsJSON)
	return &run, nil
}

func unmarshalStringMap(raw string) map[string]string {
	out := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func clampProgress(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
