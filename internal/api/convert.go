package api

import (
	"time"

	"strand/internal/runstore"
)

// RunViewFrom converts a stored run into its wire shape.
func RunViewFrom(run *runstore.Run) *RunView {
	if run == nil {
		return nil
	}
	view := &RunView{
		ID:        run.ID,
		CreatedAt: formatTime(run.CreatedAt),
		Status:    string(run.Status),
		Progress:  run.Progress,
		Sample: SampleView{
			Name:  run.SampleName,
			Files: append([]string{}, run.SampleFiles...),
		},
		Params:    run.Params,
		Stages:    make([]StageView, 0, len(run.Stages)),
		Artifacts: make([]ArtifactView, 0, len(run.Artifacts)),
	}
	if view.Params == nil {
		view.Params = map[string]string{}
	}
	for _, stage := range run.Stages {
		metrics := stage.Metrics
		if metrics == nil {
			metrics = map[string]string{}
		}
		view.Stages = append(view.Stages, StageView{
			Name:     stage.Name,
			Status:   string(stage.Status),
			Progress: stage.Progress,
			Time:     formatTime(stage.Time),
			Metrics:  metrics,
			Artifact: stage.ArtifactPath,
		})
	}
	for _, artifact := range run.Artifacts {
		view.Artifacts = append(view.Artifacts, ArtifactView{Kind: artifact.Kind, Path: artifact.Path})
	}
	return view
}

// RunSummaryFrom converts a stored run into its listing shape.
func RunSummaryFrom(run *runstore.Run) RunSummary {
	return RunSummary{
		ID:         run.ID,
		CreatedAt:  formatTime(run.CreatedAt),
		Status:     string(run.Status),
		Progress:   run.Progress,
		SampleName: run.SampleName,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
