package detectors

import (
	"fmt"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// uncheckedArithmeticBlock flags unchecked blocks doing add/sub/mul on
// balance-like state, where the 0.8 overflow net is off. Arithmetic an
// enclosing require already proves in-range is still flagged.
type uncheckedArithmeticBlock struct{}

func (d *uncheckedArithmeticBlock) Meta() Meta {
	return Meta{
		ID:          "unchecked-arithmetic-block",
		Title:       "Unchecked arithmetic on balance state",
		Category:    model.CategoryArithmetic,
		Severity:    model.SeverityMedium,
		Remediation: "Keep balance math outside unchecked blocks, or pin the range invariant next to each site.",
		References:  []string{"SWC-101"},
	}
}

func (d *uncheckedArithmeticBlock) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind != ir.KInterface && len(c.Vars) > 0
}

func (d *uncheckedArithmeticBlock) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		p.WalkFunction(f, func(id ir.NodeID, n *ir.Node) bool {
			if n.Kind != ir.KindUnchecked {
				return true
			}
			if site := balanceArithmetic(p, id); site != ir.NilNode {
				out = append(out, RawFinding{
					Function: f.Name,
					Span:     p.Node(site).Span,
					Message:  fmt.Sprintf("unchecked %s on balance state: %s", p.Node(site).Text, p.Render(site)),
				})
			}
			return false
		})
	}
	return out
}

var uncheckedOps = map[string]bool{
	"+": true, "-": true, "*": true,
	"+=": true, "-=": true, "*=": true,
	"++": true, "--": true,
}

// balanceArithmetic returns the first wrapping-capable operation inside
// the unchecked block that touches a balance-like state variable.
func balanceArithmetic(p *ir.Program, block ir.NodeID) ir.NodeID {
	site := ir.NilNode
	p.Walk(block, func(id ir.NodeID, n *ir.Node) bool {
		if site != ir.NilNode {
			return false
		}
		switch n.Kind {
		case ir.KindBinary, ir.KindAssign, ir.KindUnary:
			if uncheckedOps[n.Text] && touchesBalanceState(p, id) {
				site = id
				return false
			}
		}
		return true
	})
	return site
}

func touchesBalanceState(p *ir.Program, root ir.NodeID) bool {
	hit := false
	p.Walk(root, func(_ ir.NodeID, n *ir.Node) bool {
		if n.Kind == ir.KindIdent && n.VarRef != ir.NilVar && balanceLike(p.Var(n.VarRef).Name) {
			hit = true
			return false
		}
		return true
	})
	return hit
}

// divideBeforeMultiply flags multiplication over a quotient, which
// compounds truncation loss. Divisions by constant scaling factors are
// not excluded.
type divideBeforeMultiply struct{}

func (d *divideBeforeMultiply) Meta() Meta {
	return Meta{
		ID:          "divide-before-multiply",
		Title:       "Division result multiplied",
		Category:    model.CategoryArithmetic,
		Severity:    model.SeverityLow,
		Remediation: "Reorder to multiply before dividing, or carry a scaling factor through the division.",
	}
}

func (d *divideBeforeMultiply) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind != ir.KInterface && len(c.Functions) > 0
}

func (d *divideBeforeMultiply) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		p.WalkFunction(f, func(id ir.NodeID, n *ir.Node) bool {
			if n.Kind != ir.KindBinary || n.Text != "*" {
				return true
			}
			if !containsDivision(p, id) {
				return true
			}
			out = append(out, RawFinding{
				Confidence: model.ConfidencePossible,
				Function:   f.Name,
				Span:       n.Span,
				Message:    fmt.Sprintf("quotient feeds a multiplication: %s", p.Render(id)),
			})
			// Nested products under this node restate the same loss.
			return false
		})
	}
	return out
}

func containsDivision(p *ir.Program, root ir.NodeID) bool {
	hit := false
	p.Walk(root, func(id ir.NodeID, n *ir.Node) bool {
		if id != root && n.Kind == ir.KindBinary && n.Text == "/" {
			hit = true
			return false
		}
		return true
	})
	return hit
}
