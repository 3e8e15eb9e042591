package pipeline

import (
	"fmt"
	"html"
	"os"
	"sort"
	"strings"
)

// writeStarReport renders the alignment statistics as a small standalone
// HTML page next to the BAM.
func writeStarReport(path, bamName string, metrics map[string]string) error {
	keys := make([]string, 0, len(metrics))
	for key := range metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<html><head><title>STAR Report</title>")
	b.WriteString("<style>table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px}</style>")
	b.WriteString("</head><body>")
	fmt.Fprintf(&b, "<h2>STAR Alignment</h2><p>BAM: %s</p>", html.EscapeString(bamName))
	b.WriteString("<table><tr><th>Metric</th><th>Value</th></tr>")
	for _, key := range keys {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td></tr>",
			html.EscapeString(key), html.EscapeString(metrics[key]))
	}
	b.WriteString("</table></body></html>")

	return os.WriteFile(path, []byte(b.String()), 0o644)
}
