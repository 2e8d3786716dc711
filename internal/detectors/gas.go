package detectors

import (
	"fmt"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// gasGriefingLoop flags external calls inside unbounded loops; one
// reverting or gas-hungry callee blocks the whole iteration. Loops bounded
// by a storage variable still count as unbounded here.
type gasGriefingLoop struct{}

func (d *gasGriefingLoop) Meta() Meta {
	return Meta{
		ID:          "gas-griefing-loop",
		Title:       "External call inside unbounded loop",
		Category:    model.CategoryGasGriefing,
		Severity:    model.SeverityMedium,
		Remediation: "Bound the iteration and prefer pull-based payouts over looped pushes.",
		References:  []string{"SWC-113", "SWC-128"},
	}
}

func (d *gasGriefingLoop) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind != ir.KInterface && len(c.Functions) > 0
}

func (d *gasGriefingLoop) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		for _, loop := range loops(p, f) {
			if loopIsBounded(p, loop) {
				continue
			}
			calls := externalCallsUnder(p, loop)
			if len(calls) == 0 {
				continue
			}
			out = append(out, RawFinding{
				Function: f.Name,
				Span:     p.Node(loop).Span,
				Message:  fmt.Sprintf("%s calls out on every iteration of an unbounded loop", f.Name),
			})
		}
	}
	return out
}

// returnbombCall flags low-level calls that copy returndata with no gas
// cap; a hostile callee can returnbomb the caller. Captured bytes that are
// never read afterwards are still flagged.
type returnbombCall struct{}

func (d *returnbombCall) Meta() Meta {
	return Meta{
		ID:          "returnbomb-call",
		Title:       "Returndata copied without gas cap",
		Category:    model.CategoryGasGriefing,
		Severity:    model.SeverityLow,
		Remediation: "Cap forwarded gas or use a no-copy call pattern when the callee is untrusted.",
	}
}

func (d *returnbombCall) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind != ir.KInterface && len(c.Functions) > 0
}

func (d *returnbombCall) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		p.WalkFunction(f, func(id ir.NodeID, n *ir.Node) bool {
			site := returndataCopy(p, id, n)
			if site == ir.NilNode {
				return true
			}
			out = append(out, RawFinding{
				Function: f.Name,
				Span:     p.Node(site).Span,
				Message:  fmt.Sprintf("returndata of the call to %s is copied with no gas cap", p.Render(p.CallTarget(site))),
			})
			return true
		})
	}
	return out
}

// returndataCopy matches the two shapes that capture call returndata:
// (bool ok, bytes memory ret) = t.call(...) as a declaration or as a tuple
// assignment. The call must be uncapped call/staticcall.
func returndataCopy(p *ir.Program, id ir.NodeID, n *ir.Node) ir.NodeID {
	switch n.Kind {
	case ir.KindVarDecl:
		if !twoNames(n.Text) || len(n.Kids) == 0 {
			return ir.NilNode
		}
		return uncappedCopyingCall(p, n.Kids[0])
	case ir.KindAssign:
		lhs := p.Node(n.Kids[0])
		if lhs == nil || lhs.Kind != ir.KindTuple || len(lhs.Kids) < 2 {
			return ir.NilNode
		}
		return uncappedCopyingCall(p, n.Kids[1])
	}
	return ir.NilNode
}

func twoNames(joined string) bool {
	for i := 0; i < len(joined); i++ {
		if joined[i] == ',' {
			return i > 0 && i < len(joined)-1
		}
	}
	return false
}

func uncappedCopyingCall(p *ir.Program, id ir.NodeID) ir.NodeID {
	n := p.Node(id)
	if n == nil || n.Kind != ir.KindLowLevelCall || n.CapsGas {
		return ir.NilNode
	}
	if n.Call != ir.CallCall && n.Call != ir.CallStatic {
		return ir.NilNode
	}
	return id
}
