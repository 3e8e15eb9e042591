// Package tools runs the external RNA-seq binaries (FastQC, fastp, STAR,
// featureCounts) and reports their exit status and captured output.
package tools
