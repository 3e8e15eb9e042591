package reports_test

import (
	"os"
	"path/filepath"
	"testing"

	"strand/internal/reports"
)

func TestParseFastQCSummary(t *testing.T) {
	dir := t.TempDir()
	content := "PASS\tBasic Statistics\tliver_R1.fastq.gz\n" +
		"WARN\tPer base sequence content\tliver_R1.fastq.gz\n" +
		"FAIL\tOverrepresented sequences\tliver_R1.fastq.gz\n" +
		"garbage line without tabs\n"
	if err := os.WriteFile(filepath.Join(dir, "summary.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write summary: %v", err)
	}

	metrics := reports.ParseFastQCSummary(dir)
	if len(metrics) != 3 {
		t.Fatalf("expected 3 metrics, got %v", metrics)
	}
	if metrics["Basic Statistics"] != "PASS" {
		t.Fatalf("unexpected status %q", metrics["Basic Statistics"])
	}
	if metrics["Overrepresented sequences"] != "FAIL" {
		t.Fatalf("unexpected status %q", metrics["Overrepresented sequences"])
	}
}

func TestParseFastQCSummaryMissingFile(t *testing.T) {
	metrics := reports.ParseFastQCSummary(filepath.Join(t.TempDir(), "absent"))
	if len(metrics) != 0 {
		t.Fatalf("expected empty metrics, got %v", metrics)
	}
}

func TestParseStarLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Log.final.out")
	content := "                          Number of input reads |\t1000000\n" +
		"                   Uniquely mapped reads % |\t91.35%\n" +
		"banner line without separator\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	metrics := reports.ParseStarLog(path)
	if metrics["Number of input reads"] != "1000000" {
		t.Fatalf("unexpected metrics %v", metrics)
	}
	if metrics["Uniquely mapped reads %"] != "91.35%" {
		t.Fatalf("unexpected metrics %v", metrics)
	}
	if len(metrics) != 2 {
		t.Fatalf("expected 2 metrics, got %v", metrics)
	}
}

func TestParseFastpSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fastp.json")
	content := `{
        "summary": {
            "fastp_version": "0.23.4",
            "sequencing": "single end (150 cycles)",
            "before_filtering": {"total_reads": 1000000, "q30_rate": 0.93},
            "passed_filter_reads": 987654
        },
        "filtering_result": {"ignored": true}
    }`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}

	metrics := reports.ParseFastpSummary(path)
	if metrics["fastp_version"] != "0.23.4" {
		t.Fatalf("unexpected metrics %v", metrics)
	}
	if metrics["passed_filter_reads"] != "987654" {
		t.Fatalf("numbers should render without exponent, got %q", metrics["passed_filter_reads"])
	}
	nested := metrics["before_filtering"]
	if nested == "" || nested[0] != '{' {
		t.Fatalf("nested values should re-encode as JSON, got %q", nested)
	}
	if _, ok := metrics["filtering_result"]; ok {
		t.Fatal("only the summary object should be extracted")
	}
}

func TestParseFastpSummaryMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fastp.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}

	metrics := reports.ParseFastpSummary(path)
	if metrics["note"] != "could not parse fastp json" {
		t.Fatalf("expected parse note, got %v", metrics)
	}

	missing := reports.ParseFastpSummary(filepath.Join(t.TempDir(), "absent.json"))
	if missing["note"] != "could not parse fastp json" {
		t.Fatalf("expected parse note for missing file, got %v", missing)
	}
}
