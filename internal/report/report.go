// Package report renders a finished scan to the supported output
// formats: a human console table, raw JSON, and SARIF 2.1.0 for code
// scanning services. Sinks only format; they never reorder or filter
// the findings they are handed.
package report

import (
	"fmt"
	"io"

	"github.com/pyrite-audit/pyrite/internal/detectors"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// Sink writes one rendered scan result.
type Sink interface {
	Render(w io.Writer, res *model.ScanResult) error
}

// Options carries what the sinks need beyond the result itself.
type Options struct {
	// Sources maps unit path to raw source text, for console snippets.
	Sources map[string]string
	// Rules describes the detectors that ran, for SARIF rule metadata.
	Rules []detectors.Meta
}

// New picks the sink for a format name: "table", "json" or "sarif".
func New(format string, opts Options) (Sink, error) {
	switch format {
	case "", "table":
		return &Console{Sources: opts.Sources}, nil
	case "json":
		return &JSON{}, nil
	case "sarif":
		return &SARIF{Rules: opts.Rules}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// severityOrder fixes the rendering order of breakdown tables.
var severityOrder = []model.Severity{
	model.SeverityCritical,
	model.SeverityHigh,
	model.SeverityMedium,
	model.SeverityLow,
}
