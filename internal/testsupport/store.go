package testsupport

import (
	"context"
	"testing"

	"strand/internal/config"
	"strand/internal/runstore"
)

// MustOpenStore opens a runstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg)
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun creates a run for tests using the provided store.
func NewRun(t testing.TB, store *runstore.Store, sampleName string, files ...string) *runstore.Run {
	t.Helper()

	if len(files) == 0 {
		files = []string{"/data/" + sampleName + "_R1.fastq.gz"}
	}
	run, err := store.CreateRun(context.Background(), sampleName, files, nil)
	if err != nil {
		t.Fatalf("store.CreateRun: %v", err)
	}
	return run
}
