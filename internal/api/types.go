// Package api exposes the transport-agnostic admission and status surface
// plus the wire DTOs the HTTP server and CLI share.
package api

// SampleView identifies a run's sample and its input files.
type SampleView struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
}

// StageView is the wire shape of one committed stage record.
type StageView struct {
	Name     string            `json:"name"`
	Status   string            `json:"status"`
	Progress float64           `json:"progress"`
	Time     string            `json:"time"`
	Metrics  map[string]string `json:"metrics"`
	Artifact string            `json:"artifact,omitempty"`
}

// ArtifactView is the wire shape of one registered artifact.
type ArtifactView struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// RunView is the full wire shape of a run, including its stage audit trail
// and artifact registry.
type RunView struct {
	ID        string            `json:"id"`
	CreatedAt string            `json:"created_at"`
	Status    string            `json:"status"`
	Progress  float64           `json:"progress"`
	Sample    SampleView        `json:"sample"`
	Params    map[string]string `json:"params"`
	Stages    []StageView       `json:"stages"`
	Artifacts []ArtifactView    `json:"artifacts"`
}

// RunSummary is the compact listing shape: run identity and headline state
// without stages or artifacts.
type RunSummary struct {
	ID         string  `json:"id"`
	CreatedAt  string  `json:"created_at"`
	Status     string  `json:"status"`
	Progress   float64 `json:"progress"`
	SampleName string  `json:"sample_name"`
}
