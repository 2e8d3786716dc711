package engine

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/pyrite-audit/pyrite/internal/detectors"
	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
	"github.com/pyrite-audit/pyrite/internal/util"
)

// scanUnit is one successfully lowered compilation unit.
type scanUnit struct {
	prog *ir.Program
	idx  *facts.Index
}

// workItem is one (contract, detector) pair. Items are enumerated in a
// fixed order (unit, contract id, registration position) and each writes
// into its own result slot, so collection needs no locking.
type workItem struct {
	prog *ir.Program
	idx  *facts.Index
	cid  ir.ContractID
	det  detectors.Detector
	pos  int
}

type itemResult struct {
	findings []model.Finding
	err      *DetectorExecutionError
}

// schedule fans the selected detectors out over every scannable contract.
// Contracts whose linearization failed are never scheduled. On deadline
// expiry no new items start; items already running finish and their
// findings are kept. The returned findings are sorted by detector
// registration order then span, independent of goroutine scheduling.
func (e *Engine) schedule(ctx context.Context, units []scanUnit, dets []detectors.Detector, workers int) ([]model.Finding, []*DetectorExecutionError, *PartialScanError) {
	var items []workItem
	for _, u := range units {
		for ci := range u.prog.Contracts {
			cid := ir.ContractID(ci)
			if u.idx.LinearErrs[ci] != nil {
				continue
			}
			c := u.prog.Contract(cid)
			for pos, det := range dets {
				if !det.Applies(u.prog, c) {
					continue
				}
				items = append(items, workItem{prog: u.prog, idx: u.idx, cid: cid, det: det, pos: pos})
			}
		}
	}

	results := make([]itemResult, len(items))
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	scheduled := 0
	for i := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		scheduled++
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			defer sem.Release(1)
			results[slot] = runOne(items[slot])
		}(i)
	}
	wg.Wait()

	pos := make(map[string]int, len(dets))
	for i, d := range dets {
		pos[d.Meta().ID] = i
	}
	var out []model.Finding
	var errs []*DetectorExecutionError
	for _, res := range results[:scheduled] {
		if res.err != nil {
			e.log.Warn("detector failed", "detector", res.err.Detector, "contract", res.err.Contract, "cause", res.err.Cause)
			errs = append(errs, res.err)
			continue
		}
		out = append(out, res.findings...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if a, b := pos[out[i].DetectorID], pos[out[j].DetectorID]; a != b {
			return a < b
		}
		return out[i].Span.Before(out[j].Span)
	})

	var partial *PartialScanError
	if scheduled < len(items) {
		partial = &PartialScanError{Completed: scheduled, Scheduled: len(items)}
	}
	return out, errs, partial
}

// runOne evaluates a single pair, converting a panic into a structured
// error so one misbehaving detector cannot abort the scan.
func runOne(it workItem) (res itemResult) {
	m := it.det.Meta()
	c := it.prog.Contract(it.cid)
	defer func() {
		if r := recover(); r != nil {
			res = itemResult{err: &DetectorExecutionError{Detector: m.ID, Contract: c.Name, Cause: r}}
		}
	}()
	raw := it.det.Evaluate(it.prog, it.idx, c)
	res = itemResult{findings: stamp(m, c.Name, raw)}
	return
}

// stamp attributes raw findings to their detector and contract and fills
// the defaulted fields. Detectors may refine severity downward for a
// specific hit but never emit above their declared default.
func stamp(m detectors.Meta, contract string, raw []detectors.RawFinding) []model.Finding {
	out := make([]model.Finding, 0, len(raw))
	for _, r := range raw {
		sev := r.Severity
		if sev == "" || model.CompareSeverity(sev, m.Severity) > 0 {
			sev = m.Severity
		}
		conf := r.Confidence
		if conf == "" {
			conf = model.ConfidenceLikely
		}
		scope := contract
		if r.Function != "" {
			scope += "." + r.Function
		}
		out = append(out, model.Finding{
			DetectorID:  m.ID,
			Category:    m.Category,
			Severity:    sev,
			Confidence:  conf,
			Contract:    contract,
			Function:    r.Function,
			Span:        r.Span,
			Message:     r.Message,
			Remediation: m.Remediation,
			References:  m.References,
			Fingerprint: util.Fingerprint(m.ID, r.Span.File, r.Span.Start, r.Span.End, scope),
		})
	}
	return out
}
