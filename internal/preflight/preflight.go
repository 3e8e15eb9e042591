package preflight

import (
	"context"

	"strand/internal/config"
	"strand/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config: directory
// access, reference presence, and tool availability.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Storage directory", cfg.Paths.StorageDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("STAR index", cfg.References.StarIndexDir),
		CheckFilePresence("Annotation GTF", cfg.References.AnnotationGTF),
	}

	for _, status := range CheckToolBinaries(ctx, cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Available {
			result.Detail = status.Command
		}
		results = append(results, result)
	}
	return results
}

// Passed reports whether every result in the set passed.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// CheckToolBinaries evaluates the pipeline's external binaries for the given
// config. Both the daemon and the CLI health command use this to avoid
// duplicating the requirements list.
func CheckToolBinaries(_ context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FastQC",
			Command:     cfg.Tools.FastQC,
			Description: "Required for read quality scans",
		},
		{
			Name:        "fastp",
			Command:     cfg.Tools.Fastp,
			Description: "Required for adapter and quality trimming",
		},
		{
			Name:        "STAR",
			Command:     cfg.Tools.Star,
			Description: "Required for spliced alignment",
		},
		{
			Name:        "featureCounts",
			Command:     cfg.Tools.FeatureCounts,
			Description: "Required for gene-level count aggregation",
		},
	}
	return deps.CheckBinaries(requirements)
}
