// Package engine schedules detectors over lowered programs and
// aggregates what they emit into one deterministic result. Failures are
// scoped as narrowly as the input allows: a malformed unit, a cyclic
// contract or a panicking detector each subtract only their own slice of
// the scan, recorded in the result's error list.
package engine

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/pyrite-audit/pyrite/internal/config"
	"github.com/pyrite-audit/pyrite/internal/detectors"
	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
	"github.com/pyrite-audit/pyrite/internal/parsetree"
)

// Request is one scan: the units to analyze and the knobs that shape the
// run. Filter selects detectors up front; MinSeverity additionally drops
// individual findings below the floor after aggregation.
type Request struct {
	Units       []*parsetree.SourceUnit
	Filter      detectors.Filter
	MinSeverity model.Severity
	Workers     int           // 0 means one per CPU
	Deadline    time.Duration // 0 means no deadline
	Ignore      []config.IgnoreRule
	Subsume     []config.SubsumePair
}

type Engine struct {
	registry *detectors.Registry
	log      *slog.Logger
}

// New wires an engine around a registry. A nil registry gets the builtin
// roster, a nil logger the process default.
func New(reg *detectors.Registry, log *slog.Logger) *Engine {
	if reg == nil {
		reg = detectors.NewBuiltinRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{registry: reg, log: log}
}

func (e *Engine) Registry() *detectors.Registry { return e.registry }

// Scan lowers every unit, builds facts, runs the selected detectors and
// aggregates. The returned result is a pure function of the request:
// scanning the same input twice yields identical findings in identical
// order. Errors along the way land in the result rather than aborting it.
func (e *Engine) Scan(ctx context.Context, req Request) (*model.ScanResult, error) {
	start := time.Now()
	workers := req.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 2 {
		workers = 2
	}
	if req.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Deadline)
		defer cancel()
	}

	var scanErrs []model.ScanError
	var units []scanUnit
	sources := make(map[string]string, len(req.Units))
	contracts, functions := 0, 0
	for _, su := range req.Units {
		prog, err := ir.Build(su)
		if err != nil {
			e.log.Warn("unit rejected", "unit", su.Path, "err", err)
			scanErrs = append(scanErrs, model.ScanError{
				Kind:    model.ErrKindMalformedInput,
				Unit:    su.Path,
				Message: err.Error(),
			})
			continue
		}
		idx := facts.Build(prog)
		for ci, lerr := range idx.LinearErrs {
			if lerr == nil {
				contracts++
				functions += len(prog.Contracts[ci].Functions)
				continue
			}
			e.log.Warn("contract skipped", "unit", su.Path, "contract", prog.Contracts[ci].Name, "err", lerr)
			scanErrs = append(scanErrs, model.ScanError{
				Kind:     model.ErrKindCyclicInheritance,
				Unit:     su.Path,
				Contract: prog.Contracts[ci].Name,
				Message:  lerr.Error(),
			})
		}
		units = append(units, scanUnit{prog: prog, idx: idx})
		sources[su.Path] = su.Source
	}

	dets := e.registry.Select(req.Filter)
	e.log.Debug("scheduling detectors", "units", len(units), "detectors", len(dets), "workers", workers)
	findings, detErrs, partial := e.schedule(ctx, units, dets, workers)
	for _, derr := range detErrs {
		scanErrs = append(scanErrs, model.ScanError{
			Kind:     model.ErrKindDetectorExecution,
			Detector: derr.Detector,
			Contract: derr.Contract,
			Message:  derr.Error(),
		})
	}
	if partial != nil {
		e.log.Warn("scan truncated", "completed", partial.Completed, "scheduled", partial.Scheduled)
		scanErrs = append(scanErrs, model.ScanError{
			Kind:    model.ErrKindPartialScan,
			Message: partial.Error(),
		})
	}

	findings, suppressed := applyIgnores(findings, req.Ignore, sources)
	findings, groups := aggregate(findings, req.MinSeverity, subsumptionRules(req.Subsume))

	res := &model.ScanResult{
		Findings: findings,
		Groups:   groups,
		Summary:  summarize(len(units), contracts, functions, findings, suppressed),
		Errors:   scanErrs,
		Partial:  partial != nil,
		Elapsed:  time.Since(start),
	}
	e.log.Debug("scan complete", "findings", len(findings), "errors", len(scanErrs), "elapsed", res.Elapsed)
	return res, nil
}

func summarize(units, contracts, functions int, findings []model.Finding, suppressed int) model.Summary {
	s := model.Summary{
		Units:      units,
		Contracts:  contracts,
		Functions:  functions,
		Findings:   len(findings),
		Suppressed: suppressed,
		BySeverity: make(map[model.Severity]int),
		ByDetector: make(map[string]int),
		ByCategory: make(map[model.Category]int),
	}
	for _, f := range findings {
		s.BySeverity[f.Severity]++
		s.ByDetector[f.DetectorID]++
		s.ByCategory[f.Category]++
	}
	return s
}
