package runstore

import (
	"context"
	"path/filepath"
	"testing"

	"strand/internal/config"
)

func newOrderTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.WorkDir = filepath.Join(base, "qc")
	cfg.Paths.StorageDir = filepath.Join(base, "storage")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	store, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// RFC 3339 drops trailing zero fractions, so "…:05Z" sorts after "…:05.5Z"
// even though it is the earlier instant. Listing must not depend on the
// timestamp text.
func TestListRunsOrderSurvivesTruncatedTimestamps(t *testing.T) {
	store := newOrderTestStore(t)
	ctx := context.Background()

	first, err := store.CreateRun(ctx, "first", []string{"/data/first_R1.fastq.gz"}, nil)
	if err != nil {
		t.Fatalf("CreateRun first: %v", err)
	}
	second, err := store.CreateRun(ctx, "second", []string{"/data/second_R1.fastq.gz"}, nil)
	if err != nil {
		t.Fatalf("CreateRun second: %v", err)
	}

	stamps := []struct{ id, createdAt string }{
		{first.ID, "2026-03-01T10:00:05Z"},
		{second.ID, "2026-03-01T10:00:05.5Z"},
	}
	for _, stamp := range stamps {
		if _, err := store.db.ExecContext(ctx,
			`UPDATE runs SET created_at = ? WHERE id = ?`, stamp.createdAt, stamp.id); err != nil {
			t.Fatalf("rewrite created_at: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != first.ID || runs[1].ID != second.ID {
		t.Fatalf("expected insertion order [%s %s], got [%s %s]",
			first.ID, second.ID, runs[0].ID, runs[1].ID)
	}
}
