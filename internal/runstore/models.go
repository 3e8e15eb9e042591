package runstore

import (
	"strings"
	"time"
)

// RunStatus represents the lifecycle of a run.
type RunStatus string

const (
	RunQueued   RunStatus = "queued"
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunFailed   RunStatus = "failed"
)

// StageStatus represents the outcome recorded for a committed stage.
type StageStatus string

const (
	StageRunning  StageStatus = "running"
	StageFinished StageStatus = "finished"
	StageFailed   StageStatus = "failed"
)

var runStatusSet = map[RunStatus]struct{}{
	RunQueued:   {},
	RunRunning:  {},
	RunFinished: {},
	RunFailed:   {},
}

// ParseRunStatus converts a string into a known RunStatus.
func ParseRunStatus(value string) (RunStatus, bool) {
	normalized := RunStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := runStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the run can accept further stage or artifact rows.
func (s RunStatus) IsTerminal() bool {
	return s == RunFinished || s == RunFailed
}

// Run is a persisted processing run with its full stage and artifact history.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Status      RunStatus
	Progress    float64
	SampleName  string
	SampleFiles []string
	Params      map[string]string
	Stages      []Stage
	Artifacts   []Artifact
}

// Stage is one committed step outcome within a run. Stages are append-only;
// their ordered sequence is the run's audit trail.
type Stage struct {
	Name         string
	Status       StageStatus
	Progress     float64
	Time         time.Time
	Metrics      map[string]string
	ArtifactPath string
}

// Artifact is a registered output location associated with a run.
type Artifact struct {
	Kind string
	Path string
}

// StageInput carries the fields for one AppendStage commit.
type StageInput struct {
	Name         string
	Status       StageStatus
	Progress     float64
	Metrics      map[string]string
	ArtifactPath string
}

// DatabaseHealth captures diagnostic information about the run database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TablesPresent    []string
	IntegrityCheck   bool
	TotalRuns        int
	Error            string
}
