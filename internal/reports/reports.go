// Package reports parses the summary files the external tools leave behind
// into flat string metrics for stage rows. Parsers are total: malformed or
// missing input yields an empty (or note-only) map, never an error, so a
// bad report cannot abort a pipeline that already did the work.
package reports

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseFastQCSummary reads the tab-separated summary.txt inside an extracted
// FastQC report directory and maps each metric name to its PASS/WARN/FAIL
// status.
func ParseFastQCSummary(extractDir string) map[string]string {
	out := map[string]string{}
	data, err := os.ReadFile(filepath.Join(extractDir, "summary.txt"))
	if err != nil {
		return out
	}
	for _, line := range strings.Split(string(data), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) >= 3 {
			out[parts[1]] = parts[0]
		}
	}
	return out
}

// ParseStarLog reads STAR's Log.final.out, splitting each "key | value" line
// on the first pipe.
func ParseStarLog(path string) map[string]string {
	out := map[string]string{}
	data, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, found := strings.Cut(line, "|")
		if !found {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}

// ParseFastpSummary extracts the "summary" object from fastp's JSON report.
// Scalar values are stringified; nested values are re-encoded as compact
// JSON. An unreadable or malformed report yields a single explanatory note.
func ParseFastpSummary(path string) map[string]string {
	failed := map[string]string{"note": "could not parse fastp json"}

	data, err := os.ReadFile(path)
	if err != nil {
		return failed
	}
	var report struct {
		Summary map[string]any `json:"summary"`
	}
	if err := json.Unmarshal(data, &report); err != nil || report.Summary == nil {
		return failed
	}

	out := make(map[string]string, len(report.Summary))
	for key, value := range report.Summary {
		out[key] = stringifyMetric(value)
	}
	return out
}

func stringifyMetric(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
