// Package pipeline executes the fixed six-stage RNA-seq processing sequence
// for each admitted run: raw FastQC scan, fastp trim, post-trim FastQC scan,
// STAR alignment, featureCounts aggregation, and a summary finalization.
//
// Each run gets its own worker goroutine with exclusive write access to the
// run's rows. Stages fail fast: a non-zero tool exit commits a failed stage
// at that stage's checkpoint and no later stage runs.
package pipeline
