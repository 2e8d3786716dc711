package detectors

import (
	"fmt"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// unboundedWithdrawalQueue flags withdrawal processing that walks an
// unbounded queue making transfers; one stuck entry or a long queue jams
// every later exit. Transfers hidden behind an internal helper are
// missed.
type unboundedWithdrawalQueue struct{}

func (d *unboundedWithdrawalQueue) Meta() Meta {
	return Meta{
		ID:          "unbounded-withdrawal-queue",
		Title:       "Unbounded queue walk performs transfers",
		Category:    model.CategoryRestaking,
		Severity:    model.SeverityMedium,
		Remediation: "Drain the queue in bounded batches and skip failed entries instead of reverting the sweep.",
		References:  []string{"SWC-128"},
	}
}

func (d *unboundedWithdrawalQueue) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 0
}

func (d *unboundedWithdrawalQueue) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		for _, loop := range loops(p, f) {
			if loopIsBounded(p, loop) || !queueish(p, f, loop) {
				continue
			}
			if !loopTransfersValue(p, loop) {
				continue
			}
			out = append(out, RawFinding{
				Function: f.Name,
				Span:     p.Node(loop).Span,
				Message:  fmt.Sprintf("%s walks an unbounded queue and moves funds per entry", f.Name),
			})
		}
	}
	return out
}

func queueish(p *ir.Program, f *ir.Function, loop ir.NodeID) bool {
	lower := f.Name
	if containsFold(lower, "withdraw") || containsFold(lower, "unstake") ||
		containsFold(lower, "redeem") || containsFold(lower, "process") || containsFold(lower, "exit") {
		return true
	}
	hit := false
	p.Walk(loop, func(_ ir.NodeID, n *ir.Node) bool {
		if n.Kind == ir.KindIdent && containsFold(n.Text, "queue") {
			hit = true
			return false
		}
		return true
	})
	return hit
}

func loopTransfersValue(p *ir.Program, loop ir.NodeID) bool {
	for _, site := range externalCallsUnder(p, loop) {
		n := p.Node(site)
		if n.TransfersValue || callTextIs(p, site, "transfer", "safeTransfer") {
			return true
		}
	}
	return false
}
