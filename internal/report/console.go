package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/pyrite-audit/pyrite/internal/model"
	"github.com/pyrite-audit/pyrite/internal/util"
)

// Console renders findings as a severity-colored table with a summary
// breakdown, the format meant for humans at a terminal. When Sources
// carries the unit text, each finding gets a short code snippet.
type Console struct {
	Sources map[string]string
}

func (c *Console) Render(w io.Writer, res *model.ScanResult) error {
	if len(res.Findings) == 0 {
		fmt.Fprintln(w, "no findings")
	}
	for i := range res.Findings {
		c.finding(w, &res.Findings[i])
	}
	if len(res.Errors) > 0 {
		fmt.Fprintln(w, "scan errors:")
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  [%s] %s\n", e.Kind, e.Message)
		}
		fmt.Fprintln(w)
	}
	c.summary(w, res)
	return nil
}

func (c *Console) finding(w io.Writer, f *model.Finding) {
	sevColor(f.Severity).Fprintf(w, "%-8s", f.Severity)
	fmt.Fprintf(w, " %s  %s\n", f.DetectorID, location(f))
	fmt.Fprintf(w, "         %s\n", f.Message)
	if f.Remediation != "" {
		fmt.Fprintf(w, "         fix: %s\n", f.Remediation)
	}
	if len(f.SubsumedBy) > 0 {
		fmt.Fprintf(w, "         subsumed by %s at this location\n", strings.Join(f.SubsumedBy, ", "))
	}
	if snip := c.snippet(f); snip != "" {
		for _, line := range strings.Split(snip, "\n") {
			fmt.Fprintf(w, "         | %s\n", line)
		}
	}
	fmt.Fprintln(w)
}

// snippet cuts a few lines around the finding from the unit source.
// Units decoded without source text simply get no snippet.
func (c *Console) snippet(f *model.Finding) string {
	src, ok := c.Sources[f.Span.File]
	if !ok || src == "" || f.Span.IsZero() {
		return ""
	}
	start, end := f.Span.Line, f.Span.Line
	if start == 0 {
		start, end = util.SpanLines(src, f.Span.Start, f.Span.End)
	}
	return util.ExtractSnippet(src, start, end, 3)
}

func (c *Console) summary(w io.Writer, res *model.ScanResult) {
	s := res.Summary
	fmt.Fprintf(w, "%d finding(s) across %d contract(s), %d unit(s), %d function(s) in %s\n",
		s.Findings, s.Contracts, s.Units, s.Functions, res.Elapsed)
	if s.Suppressed > 0 {
		fmt.Fprintf(w, "%d finding(s) suppressed\n", s.Suppressed)
	}
	if res.Partial {
		fmt.Fprintln(w, "scan was cut off by the deadline; results are partial")
	}
	if s.Findings == 0 {
		return
	}

	fmt.Fprintln(w, "\nby severity:")
	for _, sev := range severityOrder {
		if n := s.BySeverity[sev]; n > 0 {
			sevColor(sev).Fprintf(w, "  %-8s", sev)
			fmt.Fprintf(w, " %d\n", n)
		}
	}

	fmt.Fprintln(w, "\nby detector:")
	for _, row := range countRows(s.ByDetector) {
		fmt.Fprintf(w, "  %-32s %d\n", row.key, row.n)
	}

	fmt.Fprintln(w, "\nby category:")
	cats := make(map[string]int, len(s.ByCategory))
	for k, v := range s.ByCategory {
		cats[string(k)] = v
	}
	for _, row := range countRows(cats) {
		fmt.Fprintf(w, "  %-32s %d\n", row.key, row.n)
	}
}

func location(f *model.Finding) string {
	where := f.Contract
	if f.Function != "" {
		where += "." + f.Function
	}
	if f.Span.File == "" {
		return where
	}
	if f.Span.Line > 0 {
		return fmt.Sprintf("%s  %s:%d", where, f.Span.File, f.Span.Line)
	}
	return fmt.Sprintf("%s  %s", where, f.Span.File)
}

func sevColor(s model.Severity) *color.Color {
	switch s {
	case model.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case model.SeverityHigh:
		return color.New(color.FgRed)
	case model.SeverityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

type countRow struct {
	key string
	n   int
}

// countRows orders a breakdown highest-count first, ties alphabetical,
// so the table is stable across runs.
func countRows(m map[string]int) []countRow {
	rows := make([]countRow, 0, len(m))
	for k, v := range m {
		rows = append(rows, countRow{k, v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].n != rows[j].n {
			return rows[i].n > rows[j].n
		}
		return rows[i].key < rows[j].key
	})
	return rows
}
