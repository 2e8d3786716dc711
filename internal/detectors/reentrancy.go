package detectors

import (
	"fmt"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// classicReentrancy flags state writes that happen after control has left
// the contract, the checks-effects-interactions inversion. Calls into
// contracts this code itself deployed are not treated as trusted.
type classicReentrancy struct{}

func (d *classicReentrancy) Meta() Meta {
	return Meta{
		ID:          "classic-reentrancy",
		Title:       "State written after external call",
		Category:    model.CategoryReentrancy,
		Severity:    model.SeverityHigh,
		Remediation: "Apply checks-effects-interactions: finish state updates before the external call, or add a reentrancy guard.",
		References:  []string{"SWC-107"},
	}
}

func (d *classicReentrancy) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 0
}

func (d *classicReentrancy) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if f.Mutability == ir.MutView || f.Mutability == ir.MutPure || reentrancyGuarded(f) {
			continue
		}
		late := idx.WritesAfterCall(fid)
		if len(late) == 0 {
			continue
		}
		target := idx.ExternalCalls[fid][0].Target
		seen := make(map[ir.VarID]bool)
		for _, a := range late {
			if seen[a.Var] {
				continue
			}
			seen[a.Var] = true
			name := p.Var(a.Var).Name
			conf := model.ConfidenceLikely
			if balanceLike(name) {
				conf = model.ConfidenceCertain
			}
			out = append(out, RawFinding{
				Confidence: conf,
				Function:   f.Name,
				Span:       a.Span,
				Message:    fmt.Sprintf("%s is written after the external call to %s", name, target),
			})
		}
	}
	return out
}

// crossFunctionReentrancy flags a function that reads state, calls out and
// continues, while a sibling entry point can rewrite that state mid-call.
// Pairs connected only through a third function are missed.
type crossFunctionReentrancy struct{}

func (d *crossFunctionReentrancy) Meta() Meta {
	return Meta{
		ID:          "cross-function-reentrancy",
		Title:       "State shared with a sibling is mutable during external call",
		Category:    model.CategoryReentrancy,
		Severity:    model.SeverityMedium,
		Remediation: "Cover both entry points with one reentrancy lock, or finish every read and write of the shared state before calling out.",
		References:  []string{"SWC-107"},
	}
}

func (d *crossFunctionReentrancy) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 1
}

func (d *crossFunctionReentrancy) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if !f.Visibility.Exposed() || f.Mutability == ir.MutView || f.Mutability == ir.MutPure {
			continue
		}
		if len(idx.ExternalCalls[fid]) == 0 || reentrancyGuarded(f) {
			continue
		}
		finding, ok := d.staleReadPair(p, idx, c, fid)
		if ok {
			out = append(out, finding)
		}
	}
	return out
}

// staleReadPair looks for a variable f reads before its external call that
// some other exposed, unguarded sibling writes.
func (d *crossFunctionReentrancy) staleReadPair(p *ir.Program, idx *facts.Index, c *ir.Contract, fid ir.FunctionID) (RawFinding, bool) {
	f := p.Function(fid)
	for _, read := range idx.Reads[fid] {
		if read.AfterExternalCall {
			continue
		}
		for _, gid := range c.Functions {
			if gid == fid {
				continue
			}
			g := p.Function(gid)
			if !g.Visibility.Exposed() || reentrancyGuarded(g) {
				continue
			}
			if !idx.WritesVar(gid, read.Var) {
				continue
			}
			call := idx.ExternalCalls[fid][0]
			return RawFinding{
				Confidence: model.ConfidencePossible,
				Function:   f.Name,
				Span:       call.Span,
				Message: fmt.Sprintf("%s acts on %s read before this call; %s can rewrite it while control is outside",
					f.Name, p.Var(read.Var).Name, g.Name),
			}, true
		}
	}
	return RawFinding{}, false
}

// readOnlyReentrancy flags view functions exposing state that a sibling
// rewrites only after its external call, the stale-read window external
// integrators hit. Whether anything off-unit consumes the view is unknown.
type readOnlyReentrancy struct{}

func (d *readOnlyReentrancy) Meta() Meta {
	return Meta{
		ID:          "read-only-reentrancy",
		Title:       "View exposes state stale during a sibling's external call",
		Category:    model.CategoryReentrancy,
		Severity:    model.SeverityMedium,
		Remediation: "Update state before the external call so views never serve the mid-call window.",
		References:  []string{"SWC-107"},
	}
}

func (d *readOnlyReentrancy) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 1
}

func (d *readOnlyReentrancy) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	lateWriter := make(map[ir.VarID]string)
	for _, fid := range c.Functions {
		for _, a := range idx.WritesAfterCall(fid) {
			if _, ok := lateWriter[a.Var]; !ok {
				lateWriter[a.Var] = p.Function(fid).Name
			}
		}
	}
	if len(lateWriter) == 0 {
		return nil
	}

	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if f.Mutability != ir.MutView || !f.Visibility.Exposed() {
			continue
		}
		seen := make(map[ir.VarID]bool)
		for _, read := range idx.Reads[fid] {
			writer, stale := lateWriter[read.Var]
			if !stale || seen[read.Var] {
				continue
			}
			seen[read.Var] = true
			out = append(out, RawFinding{
				Confidence: model.ConfidencePossible,
				Function:   f.Name,
				Span:       f.Span,
				Message: fmt.Sprintf("view %s reads %s, which %s updates only after its external call",
					f.Name, p.Var(read.Var).Name, writer),
			})
		}
	}
	return out
}
