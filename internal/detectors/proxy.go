package detectors

import (
	"fmt"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// upgradeableProxyIssues flags proxy wiring hazards: delegatecall targets
// held in mutable storage or taken from callers instead of a fixed
// implementation slot, and selector clashes in the dispatch table.
// Assembly-level EIP-1967 slot reads are trusted wholesale.
type upgradeableProxyIssues struct{}

func (d *upgradeableProxyIssues) Meta() Meta {
	return Meta{
		ID:          "upgradeable-proxy-issues",
		Title:       "Upgradeable proxy wiring hazard",
		Category:    model.CategoryProxyUpgrade,
		Severity:    model.SeverityHigh,
		Remediation: "Keep the implementation address in the EIP-1967 slot, dispatch only through it, and keep admin selectors disjoint from the implementation ABI.",
		References:  []string{"SWC-112"},
	}
}

func (d *upgradeableProxyIssues) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 0
}

func (d *upgradeableProxyIssues) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		for _, ec := range idx.ExternalCalls[fid] {
			if ec.Call != ir.CallDelegate {
				continue
			}
			target := p.CallTarget(ec.Site)
			if root := p.RootVar(target); root != ir.NilVar {
				v := p.Var(root)
				if !v.Constant {
					out = append(out, RawFinding{
						Function: f.Name,
						Span:     ec.Span,
						Message:  fmt.Sprintf("delegatecall target %s lives in mutable storage, not a fixed implementation slot", v.Name),
					})
				}
				continue
			}
			if !idx.UsesAssembly[fid] {
				out = append(out, RawFinding{
					Function: f.Name,
					Span:     ec.Span,
					Message:  fmt.Sprintf("delegatecall target %s is not read from a fixed implementation slot", ec.Target),
				})
			}
		}
	}
	for _, clash := range idx.SelectorClash(c.ID) {
		out = append(out, RawFinding{
			Span: c.Span,
			Message: fmt.Sprintf("selector %s is claimed by both %s and %s; proxy dispatch will shadow one",
				clash[0].Hex(), clash[0].Signature, clash[1].Signature),
		})
	}
	return out
}

// uninitializedProxyStorage flags implementation contracts whose
// constructor writes storage a proxy will never see. Contracts with no
// initializer are not assumed to sit behind a proxy.
type uninitializedProxyStorage struct{}

func (d *uninitializedProxyStorage) Meta() Meta {
	return Meta{
		ID:          "uninitialized-proxy-storage",
		Title:       "Constructor state writes invisible behind a proxy",
		Category:    model.CategoryProxyUpgrade,
		Severity:    model.SeverityHigh,
		Remediation: "Move constructor state writes into the guarded initializer; behind a proxy the constructor only touches the implementation's own storage.",
		References:  []string{"SWC-109"},
	}
}

func (d *uninitializedProxyStorage) Applies(p *ir.Program, c *ir.Contract) bool {
	if c.Kind != ir.KContract {
		return false
	}
	for _, fid := range c.Functions {
		if initializerName(p.Function(fid).Name) {
			return true
		}
	}
	return false
}

func (d *uninitializedProxyStorage) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if f.Kind != ir.FnConstructor {
			continue
		}
		for _, a := range idx.Writes[fid] {
			v := p.Var(a.Var)
			// Immutables are baked into code, not storage; they survive
			// the proxy split.
			if v.Constant {
				continue
			}
			out = append(out, RawFinding{
				Function: "constructor",
				Span:     f.Span,
				Message:  fmt.Sprintf("constructor writes %s, which a proxy pointing here never sees", v.Name),
			})
			break
		}
	}
	return out
}

// storageLayoutShadowing flags derived declarations that reuse a base
// state variable's name, drifting the linearized layout apart on upgrade.
// Type-level collisions at the same slot index are not modeled.
type storageLayoutShadowing struct{}

func (d *storageLayoutShadowing) Meta() Meta {
	return Meta{
		ID:          "storage-layout-shadowing",
		Title:       "State variable shadows a base declaration",
		Category:    model.CategoryProxyUpgrade,
		Severity:    model.SeverityMedium,
		Remediation: "Rename or remove the derived declaration; shadowed names address different slots than the base code expects.",
		References:  []string{"SWC-119"},
	}
}

func (d *storageLayoutShadowing) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Bases) > 0 && len(c.Vars) > 0
}

func (d *storageLayoutShadowing) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	order, ok := idx.Linearized(c.ID)
	if !ok {
		return nil
	}
	var out []RawFinding
	for _, vid := range c.Vars {
		v := p.Var(vid)
		for _, cid := range order[1:] {
			base := p.Contract(cid)
			for _, bvid := range base.Vars {
				if p.Var(bvid).Name != v.Name {
					continue
				}
				out = append(out, RawFinding{
					Span:    v.Span,
					Message: fmt.Sprintf("%s shadows the declaration in base %s", v.Name, base.Name),
				})
			}
		}
	}
	return out
}
