package runstore_test

import (
	"context"
	"errors"
	"testing"

	"strand/internal/runstore"
	"strand/internal/testsupport"
)

func TestCreateRunDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	run, err := store.CreateRun(context.Background(), "liver_rep1", []string{"/data/liver_rep1_R1.fastq.gz"}, nil)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if len(run.ID) != 32 {
		t.Fatalf("expected 32-character run id, got %q", run.ID)
	}
	if run.Status != runstore.RunQueued {
		t.Fatalf("expected queued status, got %s", run.Status)
	}
	if run.Progress != 0 {
		t.Fatalf("expected zero progress, got %v", run.Progress)
	}

	loaded, err := store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if loaded.SampleName != "liver_rep1" {
		t.Fatalf("unexpected sample name %q", loaded.SampleName)
	}
	if len(loaded.SampleFiles) != 1 || loaded.SampleFiles[0] != "/data/liver_rep1_R1.fastq.gz" {
		t.Fatalf("unexpected sample files %v", loaded.SampleFiles)
	}
	if loaded.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp")
	}
}

func TestCreateRunRequiresFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.CreateRun(context.Background(), "empty", nil, nil); !errors.Is(err, runstore.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAppendStageProgressNeverDecreases(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "brain_rep2")

	steps := []struct {
		name     string
		progress float64
		want     float64
	}{
		{"pre_fastqc", 15, 15},
		{"trim_fastp", 45, 45},
		{"post_fastqc", 20, 45},
		{"align_star", 150, 100},
	}
	for _, step := range steps {
		err := store.AppendStage(context.Background(), run.ID, runstore.StageInput{
			Name:     step.name,
			Status:   runstore.StageRunning,
			Progress: step.progress,
		})
		if err != nil {
			t.Fatalf("AppendStage %s: %v", step.name, err)
		}
		loaded, err := store.GetRun(context.Background(), run.ID)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if loaded.Progress != step.want {
			t.Fatalf("after %s expected progress %v, got %v", step.name, step.want, loaded.Progress)
		}
		last := loaded.Stages[len(loaded.Stages)-1]
		if last.Progress != step.want {
			t.Fatalf("stage %s committed progress %v, expected %v", step.name, last.Progress, step.want)
		}
	}
}

func TestAppendStageDerivesRunStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "heart_rep1")

	err := store.AppendStage(context.Background(), run.ID, runstore.StageInput{
		Name:     "pre_fastqc",
		Status:   runstore.StageFinished,
		Progress: 15,
	})
	if err != nil {
		t.Fatalf("AppendStage: %v", err)
	}
	loaded, err := store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if loaded.Status != runstore.RunRunning {
		t.Fatalf("mid-pipeline run should be running, got %s", loaded.Status)
	}

	err = store.AppendStage(context.Background(), run.ID, runstore.StageInput{
		Name:     "summary",
		Status:   runstore.StageFinished,
		Progress: 100,
	})
	if err != nil {
		t.Fatalf("AppendStage summary: %v", err)
	}
	loaded, err = store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if loaded.Status != runstore.RunFinished {
		t.Fatalf("expected finished run, got %s", loaded.Status)
	}
	if loaded.Progress != 100 {
		t.Fatalf("expected progress 100, got %v", loaded.Progress)
	}
}

func TestAppendStageFailureIsTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "kidney_rep3")

	err := store.AppendStage(context.Background(), run.ID, runstore.StageInput{
		Name:     "align_star",
		Status:   runstore.StageFailed,
		Progress: 85,
		Metrics:  map[string]string{"error": "STAR exited with status 1"},
	})
	if err != nil {
		t.Fatalf("AppendStage: %v", err)
	}

	loaded, err := store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if loaded.Status != runstore.RunFailed {
		t.Fatalf("expected failed run, got %s", loaded.Status)
	}
	if loaded.Progress != 85 {
		t.Fatalf("expected progress 85, got %v", loaded.Progress)
	}
	if got := loaded.Stages[0].Metrics["error"]; got != "STAR exited with status 1" {
		t.Fatalf("unexpected stage metrics %v", loaded.Stages[0].Metrics)
	}

	err = store.AppendStage(context.Background(), run.ID, runstore.StageInput{
		Name:     "featurecounts",
		Status:   runstore.StageRunning,
		Progress: 95,
	})
	if !errors.Is(err, runstore.ErrRunTerminal) {
		t.Fatalf("expected terminal-run rejection, got %v", err)
	}

	after, err := store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if len(after.Stages) != 1 {
		t.Fatalf("rejected append must not add rows, have %d stages", len(after.Stages))
	}
}

func TestGetRunSnapshotConsistentDuringWrites(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "muscle_rep1")

	const commits = 50
	done := make(chan error, 1)
	go func() {
		for i := 1; i <= commits; i++ {
			input := runstore.StageInput{
				Name:     "trim_fastp",
				Status:   runstore.StageRunning,
				Progress: float64(i * 2),
			}
			if i == commits {
				input.Name = "summary"
				input.Status = runstore.StageFinished
			}
			if err := store.AppendStage(context.Background(), run.ID, input); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for finished := false; !finished; {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("AppendStage: %v", err)
			}
			finished = true
		default:
		}

		view, err := store.GetRun(context.Background(), run.ID)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if len(view.Stages) == 0 {
			if view.Status != runstore.RunQueued || view.Progress != 0 {
				t.Fatalf("stageless snapshot must be queued at zero, got %s/%v", view.Status, view.Progress)
			}
			continue
		}

		last := view.Stages[len(view.Stages)-1]
		if view.Progress != last.Progress {
			t.Fatalf("snapshot progress %v disagrees with last stage %v after %d stages",
				view.Progress, last.Progress, len(view.Stages))
		}
		want := runstore.RunRunning
		switch {
		case last.Status == runstore.StageFailed:
			want = runstore.RunFailed
		case last.Status == runstore.StageFinished && last.Progress >= 100:
			want = runstore.RunFinished
		}
		if view.Status != want {
			t.Fatalf("snapshot status %s disagrees with last stage %s@%v",
				view.Status, last.Status, last.Progress)
		}
	}

	final, err := store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if final.Status != runstore.RunFinished || final.Progress != 100 || len(final.Stages) != commits {
		t.Fatalf("expected finished run at 100 with %d stages, got %s/%v/%d",
			commits, final.Status, final.Progress, len(final.Stages))
	}
}

func TestAppendStageUnknownRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	err := store.AppendStage(context.Background(), "deadbeef", runstore.StageInput{
		Name:   "pre_fastqc",
		Status: runstore.StageRunning,
	})
	if !errors.Is(err, runstore.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestArtifactsPreserveInsertionOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "spleen_rep1")

	artifacts := []struct{ kind, path string }{
		{"fastqc_plot_raw:spleen_rep1_R1", "/work/qc/raw.html"},
		{"star_bam", "/work/star/spleen_rep1Aligned.sortedByCoord.out.bam"},
		{"counts_table", "/work/counts/counts.txt"},
	}
	for _, artifact := range artifacts {
		if err := store.AddArtifact(context.Background(), run.ID, artifact.kind, artifact.path); err != nil {
			t.Fatalf("AddArtifact %s: %v", artifact.kind, err)
		}
	}

	loaded, err := store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if len(loaded.Artifacts) != len(artifacts) {
		t.Fatalf("expected %d artifacts, got %d", len(artifacts), len(loaded.Artifacts))
	}
	for i, artifact := range artifacts {
		if loaded.Artifacts[i].Kind != artifact.kind || loaded.Artifacts[i].Path != artifact.path {
			t.Fatalf("artifact %d mismatch: %+v", i, loaded.Artifacts[i])
		}
	}

	if err := store.AddArtifact(context.Background(), "missing", "star_bam", "/tmp/x.bam"); !errors.Is(err, runstore.ErrNotFound) {
		t.Fatalf("expected not-found for unknown run, got %v", err)
	}
}

func TestListRunsOrdersByCreation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := testsupport.NewRun(t, store, "first")
	second := testsupport.NewRun(t, store, "second")

	runs, err := store.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	ids := map[string]bool{runs[0].ID: true, runs[1].ID: true}
	if !ids[first.ID] || !ids[second.ID] {
		t.Fatalf("listing missing runs: %v", ids)
	}
}

func TestDeleteRunRemovesChildRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "lung_rep2")

	if err := store.AppendStage(context.Background(), run.ID, runstore.StageInput{Name: "pre_fastqc", Status: runstore.StageFinished, Progress: 15}); err != nil {
		t.Fatalf("AppendStage: %v", err)
	}
	if err := store.AddArtifact(context.Background(), run.ID, "star_report", "/work/star_report.html"); err != nil {
		t.Fatalf("AddArtifact: %v", err)
	}

	deleted, err := store.DeleteRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to report a removed row")
	}
	if _, err := store.GetRun(context.Background(), run.ID); !errors.Is(err, runstore.ErrNotFound) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}

	deleted, err = store.DeleteRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("second DeleteRun: %v", err)
	}
	if deleted {
		t.Fatal("second delete should be a no-op")
	}
}

func TestFailAbandonedMarksNonTerminalRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	stuck := testsupport.NewRun(t, store, "stuck")
	if err := store.AppendStage(context.Background(), stuck.ID, runstore.StageInput{Name: "trim_fastp", Status: runstore.StageFinished, Progress: 45}); err != nil {
		t.Fatalf("AppendStage: %v", err)
	}
	done := testsupport.NewRun(t, store, "done")
	if err := store.AppendStage(context.Background(), done.ID, runstore.StageInput{Name: "summary", Status: runstore.StageFinished, Progress: 100}); err != nil {
		t.Fatalf("AppendStage: %v", err)
	}

	count, err := store.FailAbandoned(context.Background(), "daemon restarted")
	if err != nil {
		t.Fatalf("FailAbandoned: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reconciled run, got %d", count)
	}

	loaded, err := store.GetRun(context.Background(), stuck.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if loaded.Status != runstore.RunFailed {
		t.Fatalf("expected failed run, got %s", loaded.Status)
	}
	last := loaded.Stages[len(loaded.Stages)-1]
	if last.Name != "error" || last.Status != runstore.StageFailed {
		t.Fatalf("unexpected reconciliation stage %+v", last)
	}
	if last.Progress != 45 {
		t.Fatalf("reconciliation must not move progress backward or forward, got %v", last.Progress)
	}

	finished, err := store.GetRun(context.Background(), done.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if finished.Status != runstore.RunFinished {
		t.Fatalf("finished run must be untouched, got %s", finished.Status)
	}
}

func TestCheckHealthReportsTables(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewRun(t, store, "healthy")

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("expected readable database: %+v", health)
	}
	if len(health.TablesPresent) != 3 {
		t.Fatalf("expected 3 tables, got %v", health.TablesPresent)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
	if health.TotalRuns != 1 {
		t.Fatalf("expected 1 run, got %d", health.TotalRuns)
	}
}
