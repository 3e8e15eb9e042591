// Package services holds cross-cutting service plumbing: sentinel errors for
// failure classification and context annotation helpers carrying run, stage,
// and request identifiers through the pipeline.
package services
