package detectors

import (
	"fmt"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// dangerousDelegatecall flags delegatecall whose target comes from call
// input, handing the caller full write access to this contract's storage.
// A target laundered through a local variable is missed.
type dangerousDelegatecall struct{}

func (d *dangerousDelegatecall) Meta() Meta {
	return Meta{
		ID:          "dangerous-delegatecall",
		Title:       "delegatecall target controlled by caller",
		Category:    model.CategoryCallSafety,
		Severity:    model.SeverityCritical,
		Remediation: "Delegatecall only into fixed, audited implementation addresses; never into caller-supplied targets.",
		References:  []string{"SWC-112"},
	}
}

func (d *dangerousDelegatecall) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 0
}

func (d *dangerousDelegatecall) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		params := paramNames(f)
		for _, ec := range idx.ExternalCalls[fid] {
			if ec.Call != ir.CallDelegate {
				continue
			}
			if !usesParam(p, p.CallTarget(ec.Site), params) {
				continue
			}
			out = append(out, RawFinding{
				Confidence: model.ConfidenceCertain,
				Function:   f.Name,
				Span:       ec.Span,
				Message:    fmt.Sprintf("delegatecall into %s, a caller-chosen address", ec.Target),
			})
		}
	}
	return out
}

// uncheckedLowLevelCall flags call/send/delegatecall sites whose success
// flag is dropped. Results checked through a wrapping helper are missed.
type uncheckedLowLevelCall struct{}

func (d *uncheckedLowLevelCall) Meta() Meta {
	return Meta{
		ID:          "unchecked-low-level-call",
		Title:       "Low-level call result unchecked",
		Category:    model.CategoryCallSafety,
		Severity:    model.SeverityMedium,
		Remediation: "Capture the success flag and require it, or use a wrapper that reverts on failure.",
		References:  []string{"SWC-104"},
	}
}

func (d *uncheckedLowLevelCall) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind != ir.KInterface && len(c.Functions) > 0
}

func (d *uncheckedLowLevelCall) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		for _, ec := range idx.ExternalCalls[fid] {
			// transfer reverts on failure on its own; everything else
			// reports failure only through the dropped flag.
			if ec.Kind != ir.KindLowLevelCall || ec.Checked || ec.Call == ir.CallTransfer {
				continue
			}
			out = append(out, RawFinding{
				Function: f.Name,
				Span:     ec.Span,
				Message:  fmt.Sprintf("return value of %s to %s is ignored", ec.Call, ec.Target),
			})
		}
	}
	return out
}

// arbitraryExternalCall flags calls where the caller picks both the target
// and the calldata, an execute-anything hole. Admin-guarded executors
// (timelocks, multisig wallets) are deliberately skipped.
type arbitraryExternalCall struct{}

func (d *arbitraryExternalCall) Meta() Meta {
	return Meta{
		ID:          "arbitrary-external-call",
		Title:       "Caller controls external call target and data",
		Category:    model.CategoryCallSafety,
		Severity:    model.SeverityHigh,
		Remediation: "Allowlist callable targets or build the payload internally; never forward both from the caller.",
		References:  []string{"SWC-112"},
	}
}

func (d *arbitraryExternalCall) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 0
}

func (d *arbitraryExternalCall) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if !f.Visibility.Exposed() || guarded(p, idx, c, f) {
			continue
		}
		params := paramNames(f)
		for _, ec := range idx.ExternalCalls[fid] {
			if ec.Call != ir.CallCall {
				continue
			}
			if !usesParam(p, p.CallTarget(ec.Site), params) {
				continue
			}
			payloadFromCaller := false
			for _, arg := range p.CallArgs(ec.Site) {
				if usesParam(p, arg, params) {
					payloadFromCaller = true
					break
				}
			}
			if !payloadFromCaller {
				continue
			}
			out = append(out, RawFinding{
				Confidence: model.ConfidenceLikely,
				Function:   f.Name,
				Span:       ec.Span,
				Message:    fmt.Sprintf("%s forwards caller-chosen calldata to caller-chosen target %s", f.Name, ec.Target),
			})
		}
	}
	return out
}
