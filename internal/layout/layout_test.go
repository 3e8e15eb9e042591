package layout_test

import (
	"path/filepath"
	"testing"

	"strand/internal/layout"
)

func TestStemStripsUpToTwoExtensions(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/data/liver_R1.fastq.gz", "liver_R1"},
		{"liver_R1.fastq", "liver_R1"},
		{"liver_R1", "liver_R1"},
		{"/a/b/sample.v2.fastq.gz", "sample.v2"},
	}
	for _, tc := range cases {
		if got := layout.Stem(tc.in); got != tc.want {
			t.Errorf("Stem(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWorkspaceNaming(t *testing.T) {
	w := layout.Workspace{Root: "/work/run1"}

	if got := w.TrimmedR1("liver_R1"); got != "/work/run1/trim/liver_R1_trimmed.fastq.gz" {
		t.Fatalf("TrimmedR1: %q", got)
	}
	if got := w.TrimmedR2("liver_R1"); got != "/work/run1/trim/liver_R1_trimmed_R2.fastq.gz" {
		t.Fatalf("TrimmedR2: %q", got)
	}
	if got := w.FastpJSON("liver_R1"); got != "/work/run1/liver_R1_fastp.json" {
		t.Fatalf("FastpJSON: %q", got)
	}
	if got := w.StarBAM("liver_R1"); got != "/work/run1/star/liver_R1Aligned.sortedByCoord.out.bam" {
		t.Fatalf("StarBAM: %q", got)
	}
	if got := w.StarFinalLog("liver_R1"); got != "/work/run1/star/liver_R1Log.final.out" {
		t.Fatalf("StarFinalLog: %q", got)
	}
	if got := w.StarReportHTML(); got != "/work/run1/star/star_report.html" {
		t.Fatalf("StarReportHTML: %q", got)
	}
	if got := w.CountsTable("liver_R1"); got != "/work/run1/counts/liver_R1_featurecounts.txt" {
		t.Fatalf("CountsTable: %q", got)
	}
}

func TestFastQCReportPaths(t *testing.T) {
	dir := "/work/run1/fastqc_raw"
	if got := layout.FastQCReportHTML(dir, "liver_R1"); got != filepath.Join(dir, "liver_R1_fastqc.html") {
		t.Fatalf("FastQCReportHTML: %q", got)
	}
	if got := layout.FastQCImagesDir(dir, "liver_R1"); got != filepath.Join(dir, "liver_R1_fastqc", "Images") {
		t.Fatalf("FastQCImagesDir: %q", got)
	}
}

func TestDirectoriesCoverAllStageOutputs(t *testing.T) {
	w := layout.Workspace{Root: "/work/run1"}
	dirs := w.Directories()
	if len(dirs) != 6 {
		t.Fatalf("expected 6 directories, got %d", len(dirs))
	}
	if dirs[0] != w.Root {
		t.Fatalf("root must come first, got %q", dirs[0])
	}
}
