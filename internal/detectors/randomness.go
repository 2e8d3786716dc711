package detectors

import (
	"fmt"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// weakRandomness flags block entropy (timestamp, prevrandao, blockhash)
// feeding modulo selection in state-changing or paying functions. Entropy
// mixed across several blocks is still flagged.
type weakRandomness struct{}

func (d *weakRandomness) Meta() Meta {
	return Meta{
		ID:          "weak-randomness",
		Title:       "Block entropy used for selection",
		Category:    model.CategoryRandomness,
		Severity:    model.SeverityMedium,
		Remediation: "Draw randomness from a commit-reveal scheme or a VRF; block fields are miner-influenced.",
		References:  []string{"SWC-120"},
	}
}

func (d *weakRandomness) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 0
}

func (d *weakRandomness) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if !stakesSomething(idx, fid) {
			continue
		}
		p.WalkFunction(f, func(id ir.NodeID, n *ir.Node) bool {
			if n.Kind != ir.KindBinary || n.Text != "%" {
				return true
			}
			if !weakEntropy(p, id) {
				return true
			}
			out = append(out, RawFinding{
				Function: f.Name,
				Span:     n.Span,
				Message:  fmt.Sprintf("selection in %s draws on block entropy: %s", f.Name, p.Render(id)),
			})
			return false
		})
	}
	return out
}

// stakesSomething gates on functions where a biased draw has
// consequences: they mutate state or move value.
func stakesSomething(idx *facts.Index, fid ir.FunctionID) bool {
	if idx.WritesState(fid) {
		return true
	}
	for _, ec := range idx.ExternalCalls[fid] {
		if ec.TransfersValue {
			return true
		}
	}
	return false
}
