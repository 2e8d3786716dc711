package detectors

import (
	"fmt"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// unvalidatedBridgeMessage flags message entry points that mutate state
// with no sender, root or proof validation. Validation delegated to a
// modifier on another contract in the unit is resolved; one living in an
// external base is not.
type unvalidatedBridgeMessage struct{}

func (d *unvalidatedBridgeMessage) Meta() Meta {
	return Meta{
		ID:          "unvalidated-bridge-message",
		Title:       "Bridge message applied without validation",
		Category:    model.CategoryBridge,
		Severity:    model.SeverityHigh,
		Remediation: "Verify the cross-domain sender and the inclusion proof before applying the message to state.",
	}
}

func (d *unvalidatedBridgeMessage) Applies(p *ir.Program, c *ir.Contract) bool {
	if c.Kind != ir.KContract {
		return false
	}
	for _, fid := range c.Functions {
		if messageName(p.Function(fid).Name) {
			return true
		}
	}
	return false
}

func (d *unvalidatedBridgeMessage) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if !f.Visibility.Exposed() || !messageName(f.Name) || !idx.WritesState(fid) {
			continue
		}
		if guarded(p, idx, c, f) || validatesMessage(p, f) {
			continue
		}
		out = append(out, RawFinding{
			Function: f.Name,
			Span:     f.Span,
			Message:  fmt.Sprintf("%s applies an incoming message to state without any sender or proof check", f.Name),
		})
	}
	return out
}

func messageName(name string) bool {
	return containsFold(name, "message") || containsFold(name, "relay") || containsFold(name, "crosschain")
}

var proofFragments = []string{"root", "proof", "merkle", "validator", "signature"}

// validatesMessage accepts either a condition over proof material or a
// call into a verifier.
func validatesMessage(p *ir.Program, f *ir.Function) bool {
	for _, cond := range conditions(p, f) {
		if condMentionsSender(p, cond) {
			return true
		}
		hit := false
		p.Walk(cond, func(_ ir.NodeID, n *ir.Node) bool {
			if n.Kind == ir.KindIdent {
				for _, frag := range proofFragments {
					if containsFold(n.Text, frag) {
						hit = true
						return false
					}
				}
			}
			return true
		})
		if hit {
			return true
		}
	}
	verifier := false
	p.WalkFunction(f, func(_ ir.NodeID, n *ir.Node) bool {
		if n.IsCall() && (containsFold(n.Text, "verify") || containsFold(n.Text, "prove") || containsFold(n.Text, "validate")) {
			verifier = true
			return false
		}
		return true
	})
	return verifier
}

// replayableWithdrawal flags finalization paths that pay out without
// recording any state, so the same claim settles repeatedly. Any state
// write in the function is accepted as the replay marker.
type replayableWithdrawal struct{}

func (d *replayableWithdrawal) Meta() Meta {
	return Meta{
		ID:          "replayable-withdrawal",
		Title:       "Withdrawal pays out without a replay marker",
		Category:    model.CategoryBridge,
		Severity:    model.SeverityHigh,
		Remediation: "Record the withdrawal hash as processed before moving funds.",
	}
}

func (d *replayableWithdrawal) Applies(p *ir.Program, c *ir.Contract) bool {
	if c.Kind != ir.KContract {
		return false
	}
	for _, fid := range c.Functions {
		if withdrawalName(p.Function(fid).Name) {
			return true
		}
	}
	return false
}

func (d *replayableWithdrawal) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if !f.Visibility.Exposed() || !withdrawalName(f.Name) {
			continue
		}
		if idx.WritesState(fid) {
			continue
		}
		for _, ec := range idx.ExternalCalls[fid] {
			if !paysOut(p, ec) {
				continue
			}
			out = append(out, RawFinding{
				Function: f.Name,
				Span:     ec.Span,
				Message:  fmt.Sprintf("%s pays out with no processed marker; the same claim settles again", f.Name),
			})
			break
		}
	}
	return out
}

func withdrawalName(name string) bool {
	return containsFold(name, "withdraw") || containsFold(name, "finalize") ||
		containsFold(name, "claim") || containsFold(name, "exit")
}

// paysOut matches value leaving the contract: native transfers and the
// ERC-20 outbound methods.
func paysOut(p *ir.Program, ec facts.ExternalCall) bool {
	if ec.TransfersValue {
		return true
	}
	return callTextIs(p, ec.Site, "transfer", "safeTransfer")
}
