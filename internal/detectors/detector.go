// Package detectors holds the vulnerability detectors and the registry
// that schedules them. A detector is a pure structural pattern matcher
// over the program model and fact index: no I/O, no mutation of its
// inputs, no state carried between invocations.
package detectors

import (
	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// Meta describes a detector: stable id, human title, the category it
// files findings under, and the severity it emits by default.
type Meta struct {
	ID          string
	Title       string
	Category    model.Category
	Severity    model.Severity
	Remediation string
	References  []string
}

// Detector is the capability every rule implements. Applies lets the
// scheduler skip contracts a rule can never match without paying for
// Evaluate; it must be cheap and side-effect free.
type Detector interface {
	Meta() Meta
	Applies(prog *ir.Program, c *ir.Contract) bool
	Evaluate(prog *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding
}

// RawFinding is what a detector emits: a location inside the contract it
// was invoked on plus the message. The scheduler stamps detector and
// contract attribution; empty Severity/Confidence fall back to the
// detector's defaults.
type RawFinding struct {
	Severity   model.Severity
	Confidence model.Confidence
	Function   string
	Span       model.Span
	Message    string
}
