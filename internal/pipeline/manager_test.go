package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"strand/internal/pipeline"
	"strand/internal/runstore"
	"strand/internal/testsupport"
	"strand/internal/tools"
)

func TestManagerRunsLaunchedPipelines(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	runner := &stubRunner{t: t}
	manager := pipeline.NewManager(cfg, store, nil, tools.WithRunner(runner))

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	r1 := writeInput(t, "spleen_R1.fastq.gz")
	run := testsupport.NewRun(t, store, "spleen", r1)

	if err := manager.Launch(run.ID); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	manager.Wait()

	loaded, err := store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if loaded.Status != runstore.RunFinished {
		t.Fatalf("expected finished run, got %s", loaded.Status)
	}
}

func TestManagerRejectsLaunchWhenStopped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := pipeline.NewManager(cfg, store, nil)

	if err := manager.Launch("any"); !errors.Is(err, pipeline.ErrNotRunning) {
		t.Fatalf("expected not-running before Start, got %v", err)
	}

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	manager.Stop()

	if err := manager.Launch("any"); !errors.Is(err, pipeline.ErrNotRunning) {
		t.Fatalf("expected not-running after Stop, got %v", err)
	}
}

func TestManagerStopWaitsForWorkers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	runner := &stubRunner{t: t}
	manager := pipeline.NewManager(cfg, store, nil, tools.WithRunner(runner))

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	r1 := writeInput(t, "brain_R1.fastq.gz")
	run := testsupport.NewRun(t, store, "brain", r1)
	if err := manager.Launch(run.ID); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	done := make(chan struct{})
	go func() {
		manager.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not return")
	}
}
