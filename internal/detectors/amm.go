package detectors

import (
	"fmt"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// missingSlippageCheck flags swap entry points with no enforced minimum
// output or deadline. Limits enforced by an outer router are not visible.
type missingSlippageCheck struct{}

func (d *missingSlippageCheck) Meta() Meta {
	return Meta{
		ID:          "missing-slippage-check",
		Title:       "Swap without slippage or deadline protection",
		Category:    model.CategoryAMMInvariant,
		Severity:    model.SeverityHigh,
		Remediation: "Accept a minimum-output amount and a deadline, and require both before settling the swap.",
	}
}

func (d *missingSlippageCheck) Applies(p *ir.Program, c *ir.Contract) bool {
	if c.Kind != ir.KContract {
		return false
	}
	for _, fid := range c.Functions {
		if swapName(p.Function(fid).Name) {
			return true
		}
	}
	return false
}

func (d *missingSlippageCheck) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if f.Kind != ir.FnFunction || !f.Visibility.Exposed() || f.Body == ir.NilNode {
			continue
		}
		if f.Mutability == ir.MutView || f.Mutability == ir.MutPure || !swapName(f.Name) {
			continue
		}
		slip := make(map[string]bool)
		for _, prm := range f.Params {
			if containsFold(prm.Name, "min") || containsFold(prm.Name, "deadline") {
				slip[prm.Name] = true
			}
		}
		if len(slip) == 0 {
			out = append(out, RawFinding{
				Function: f.Name,
				Span:     f.Span,
				Message:  fmt.Sprintf("%s takes no minimum-output or deadline parameter", f.Name),
			})
			continue
		}
		enforced := false
		for _, cond := range conditions(p, f) {
			if usesParam(p, cond, slip) {
				enforced = true
				break
			}
		}
		if !enforced {
			out = append(out, RawFinding{
				Function: f.Name,
				Span:     f.Span,
				Message:  fmt.Sprintf("%s accepts slippage parameters but never enforces them", f.Name),
			})
		}
	}
	return out
}

func swapName(name string) bool {
	return containsFold(name, "swap") || containsFold(name, "trade") ||
		containsFold(name, "exchange") || containsFold(name, "zap")
}

// feeOnTransferAssumption flags accounting that credits the nominal
// transfer amount without measuring the balance delta; fee-on-transfer
// tokens break it. Whether the token actually takes fees is unknowable
// statically.
type feeOnTransferAssumption struct{}

func (d *feeOnTransferAssumption) Meta() Meta {
	return Meta{
		ID:          "fee-on-transfer-assumption",
		Title:       "Transfer amount credited without balance delta",
		Category:    model.CategoryAMMInvariant,
		Severity:    model.SeverityMedium,
		Remediation: "Measure balanceOf before and after the pull and credit the delta, not the nominal amount.",
	}
}

func (d *feeOnTransferAssumption) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Vars) > 0
}

func (d *feeOnTransferAssumption) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		pulled, measured := false, false
		for _, ec := range idx.ExternalCalls[fid] {
			if callTextIs(p, ec.Site, "transferFrom", "safeTransferFrom") {
				pulled = true
			}
			if callTextIs(p, ec.Site, "balanceOf") {
				measured = true
			}
		}
		if !pulled || measured {
			continue
		}
		for _, a := range idx.Writes[fid] {
			if !a.Compound || !balanceLike(p.Var(a.Var).Name) {
				continue
			}
			if p.Node(a.Site).Text != "+=" {
				continue
			}
			out = append(out, RawFinding{
				Confidence: model.ConfidenceLikely,
				Function:   f.Name,
				Span:       a.Span,
				Message:    fmt.Sprintf("%s credits the nominal amount to %s without measuring the received delta", f.Name, p.Var(a.Var).Name),
			})
			break
		}
	}
	return out
}
