// Package layout defines the on-disk naming scheme for a run's working
// directory. All functions are pure path arithmetic; nothing here touches
// the filesystem.
package layout

import (
	"path/filepath"
	"strings"
)

// Stem returns the sample stem for a FASTQ file name: the base name with up
// to two extensions removed, so "liver_R1.fastq.gz" becomes "liver_R1".
func Stem(path string) string {
	name := filepath.Base(path)
	for i := 0; i < 2; i++ {
		ext := filepath.Ext(name)
		if ext == "" {
			break
		}
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// Workspace resolves every tool output location inside one run's working
// directory.
type Workspace struct {
	Root string
}

// RawFastQCDir is where FastQC writes reports for the untrimmed reads.
func (w Workspace) RawFastQCDir() string {
	return filepath.Join(w.Root, "fastqc_raw")
}

// PostFastQCDir is where FastQC writes reports for the trimmed reads.
func (w Workspace) PostFastQCDir() string {
	return filepath.Join(w.Root, "fastqc_post")
}

// TrimDir holds the fastp output reads.
func (w Workspace) TrimDir() string {
	return filepath.Join(w.Root, "trim")
}

// StarDir holds the aligner outputs.
func (w Workspace) StarDir() string {
	return filepath.Join(w.Root, "star")
}

// CountsDir holds the featureCounts outputs.
func (w Workspace) CountsDir() string {
	return filepath.Join(w.Root, "counts")
}

// FastQCReportHTML is the standalone report FastQC produces for one input.
func FastQCReportHTML(dir, stem string) string {
	return filepath.Join(dir, stem+"_fastqc.html")
}

// FastQCExtractDir is the directory FastQC --extract unpacks for one input.
func FastQCExtractDir(dir, stem string) string {
	return filepath.Join(dir, stem+"_fastqc")
}

// FastQCImagesDir holds the per-module plot PNGs inside an extracted report.
func FastQCImagesDir(dir, stem string) string {
	return filepath.Join(FastQCExtractDir(dir, stem), "Images")
}

// TrimmedR1 names the primary trimmed read file.
func (w Workspace) TrimmedR1(stem string) string {
	return filepath.Join(w.TrimDir(), stem+"_trimmed.fastq.gz")
}

// TrimmedR2 names the mate trimmed read file in paired mode.
func (w Workspace) TrimmedR2(stem string) string {
	return filepath.Join(w.TrimDir(), stem+"_trimmed_R2.fastq.gz")
}

// FastpHTML is the fastp report written at the workspace root.
func (w Workspace) FastpHTML(stem string) string {
	return filepath.Join(w.Root, stem+"_fastp.html")
}

// FastpJSON is the machine-readable fastp report at the workspace root.
func (w Workspace) FastpJSON(stem string) string {
	return filepath.Join(w.Root, stem+"_fastp.json")
}

// StarOutputPrefix is the --outFileNamePrefix value handed to STAR.
func (w Workspace) StarOutputPrefix(stem string) string {
	return filepath.Join(w.StarDir(), stem)
}

// StarBAM is the coordinate-sorted alignment STAR produces.
func (w Workspace) StarBAM(stem string) string {
	return w.StarOutputPrefix(stem) + "Aligned.sortedByCoord.out.bam"
}

// StarFinalLog is STAR's summary statistics log.
func (w Workspace) StarFinalLog(stem string) string {
	return w.StarOutputPrefix(stem) + "Log.final.out"
}

// StarReportHTML is the generated alignment report.
func (w Workspace) StarReportHTML() string {
	return filepath.Join(w.StarDir(), "star_report.html")
}

// CountsTable is the featureCounts output matrix.
func (w Workspace) CountsTable(stem string) string {
	return filepath.Join(w.CountsDir(), stem+"_featurecounts.txt")
}

// Directories lists every subdirectory a pipeline run creates, in creation
// order.
func (w Workspace) Directories() []string {
	return []string{
		w.Root,
		w.RawFastQCDir(),
		w.TrimDir(),
		w.PostFastQCDir(),
		w.StarDir(),
		w.CountsDir(),
	}
}
