package detectors

import (
	"fmt"
	"strings"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// missingAccessModifiers flags public state-writing functions with no guard
// modifier and no caller check in the body. Writes into mappings keyed by
// msg.sender count as self-custodial and are skipped; a guard enforced by an
// internal callee the body delegates to is missed.
type missingAccessModifiers struct{}

func (d *missingAccessModifiers) Meta() Meta {
	return Meta{
		ID:          "missing-access-modifiers",
		Title:       "State-changing function lacks access control",
		Category:    model.CategoryAccessControl,
		Severity:    model.SeverityCritical,
		Remediation: "Add an onlyOwner-style modifier or an explicit msg.sender check before mutating privileged state.",
		References:  []string{"SWC-105"},
	}
}

func (d *missingAccessModifiers) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 0
}

func (d *missingAccessModifiers) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if f.Kind != ir.FnFunction || !f.Visibility.Exposed() || f.Body == ir.NilNode {
			continue
		}
		if guarded(p, idx, c, f) {
			continue
		}
		write, ok := privilegedWrite(p, idx, f)
		if !ok {
			continue
		}
		out = append(out, RawFinding{
			Function: f.Name,
			Span:     f.Span,
			Message:  fmt.Sprintf("%s writes %s with no modifier and no msg.sender check", f.Name, p.Var(write.Var).Name),
		})
	}
	return out
}

// privilegedWrite returns the first store that touches state beyond the
// caller's own mapping entry.
func privilegedWrite(p *ir.Program, idx *facts.Index, f *ir.Function) (facts.Access, bool) {
	for _, a := range idx.Writes[f.ID] {
		if !selfCustodial(p, a.Site) {
			return a, true
		}
	}
	return facts.Access{}, false
}

// unprotectedInitializer flags initializer-style functions that anyone can
// invoke again: no initializer modifier, no initialized-flag require, no
// caller check. A flag raised through an internal helper is not tracked.
type unprotectedInitializer struct{}

func (d *unprotectedInitializer) Meta() Meta {
	return Meta{
		ID:          "unprotected-initializer",
		Title:       "Initializer can be re-invoked",
		Category:    model.CategoryAccessControl,
		Severity:    model.SeverityCritical,
		Remediation: "Guard the initializer with an initializer modifier or a one-shot initialized flag checked and set in the same function.",
		References:  []string{"SWC-118"},
	}
}

func (d *unprotectedInitializer) Applies(p *ir.Program, c *ir.Contract) bool {
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

func (d *unprotectedInitializer) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if f.Kind != ir.FnFunction || !f.Visibility.Exposed() || f.Body == ir.NilNode {
			continue
		}
		if !initializerName(f.Name) || !idx.WritesState(fid) {
			continue
		}
		if guarded(p, idx, c, f) || checksInitFlag(p, f) {
			continue
		}
		out = append(out, RawFinding{
			Function: f.Name,
			Span:     f.Span,
			Message:  fmt.Sprintf("%s sets up state but nothing stops a second call", f.Name),
		})
	}
	return out
}

func initializerName(name string) bool {
	lower := strings.ToLower(name)
	return lower == "init" || lower == "setup" || strings.HasPrefix(lower, "initialize") || strings.HasPrefix(lower, "__init")
}

// checksInitFlag looks for a require/if condition over something named
// like an initialized flag.
func checksInitFlag(p *ir.Program, f *ir.Function) bool {
	for _, cond := range conditions(p, f) {
		hit := false
		p.Walk(cond, func(_ ir.NodeID, n *ir.Node) bool {
			if n.Kind == ir.KindIdent && strings.Contains(strings.ToLower(n.Text), "init") {
				hit = true
				return false
			}
			return true
		})
		if hit {
			return true
		}
	}
	return false
}

// txOriginAuth flags require/if conditions that authenticate the caller
// with tx.origin. A tx.origin value copied into a local and compared later
// is missed.
type txOriginAuth struct{}

func (d *txOriginAuth) Meta() Meta {
	return Meta{
		ID:          "tx-origin-authentication",
		Title:       "Authentication via tx.origin",
		Category:    model.CategoryAccessControl,
		Severity:    model.SeverityHigh,
		Remediation: "Compare msg.sender instead; tx.origin authentication breaks under composition and is phishable.",
		References:  []string{"SWC-115"},
	}
}

func (d *txOriginAuth) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind != ir.KInterface && len(c.Functions) > 0
}

func (d *txOriginAuth) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		for _, cond := range conditions(p, f) {
			origin := ir.NilNode
			p.Walk(cond, func(id ir.NodeID, _ *ir.Node) bool {
				if origin == ir.NilNode && p.IsTxOrigin(id) {
					origin = id
					return false
				}
				return true
			})
			if origin == ir.NilNode {
				continue
			}
			out = append(out, RawFinding{
				Function: f.Name,
				Span:     p.Node(cond).Span,
				Message:  fmt.Sprintf("%s authenticates with tx.origin: %s", f.Name, p.Render(cond)),
			})
		}
	}
	return out
}

// unprotectedSelfdestruct flags reachable selfdestruct calls in functions
// without access control. A selfdestruct behind a guarded internal helper
// is missed.
type unprotectedSelfdestruct struct{}

func (d *unprotectedSelfdestruct) Meta() Meta {
	return Meta{
		ID:          "unprotected-selfdestruct",
		Title:       "selfdestruct reachable without access control",
		Category:    model.CategoryAccessControl,
		Severity:    model.SeverityCritical,
		Remediation: "Restrict selfdestruct to an authenticated administrative path, or remove it.",
		References:  []string{"SWC-106"},
	}
}

func (d *unprotectedSelfdestruct) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 0
}

func (d *unprotectedSelfdestruct) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if !f.Visibility.Exposed() || f.Body == ir.NilNode {
			continue
		}
		sites := callsNamed(p, f, "selfdestruct", "suicide")
		if len(sites) == 0 || guarded(p, idx, c, f) {
			continue
		}
		for _, site := range sites {
			out = append(out, RawFinding{
				Function: f.Name,
				Span:     p.Node(site).Span,
				Message:  fmt.Sprintf("anyone can reach selfdestruct through %s", f.Name),
			})
		}
	}
	return out
}

// missingZeroAddressCheck flags privileged address assignments taken from
// an unvalidated parameter. Validation living in a modifier body or an
// internal helper is not followed.
type missingZeroAddressCheck struct{}

func (d *missingZeroAddressCheck) Meta() Meta {
	return Meta{
		ID:          "missing-zero-address-check",
		Title:       "Privileged address set without zero-address check",
		Category:    model.CategoryAccessControl,
		Severity:    model.SeverityLow,
		Remediation: "Require the incoming address to be non-zero before storing it; a zeroed role bricks the privileged path.",
	}
}

func (d *missingZeroAddressCheck) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Vars) > 0
}

func (d *missingZeroAddressCheck) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if f.Kind == ir.FnModifier || !f.Visibility.Exposed() || f.Body == ir.NilNode {
			continue
		}
		addrParams := make(map[string]bool)
		for _, prm := range f.Params {
			if prm.Name != "" && strings.HasPrefix(prm.Type, "address") {
				addrParams[prm.Name] = true
			}
		}
		if len(addrParams) == 0 {
			continue
		}
		for _, a := range idx.Writes[fid] {
			if !ownerLike(p.Var(a.Var).Name) || a.Compound {
				continue
			}
			site := p.Node(a.Site)
			if site.Kind != ir.KindAssign || !usesParam(p, site.Kids[1], addrParams) {
				continue
			}
			if zeroCheckedAnywhere(p, f, addrParams) {
				continue
			}
			out = append(out, RawFinding{
				Function: f.Name,
				Span:     a.Span,
				Message:  fmt.Sprintf("%s is assigned from a parameter that is never checked against address(0)", p.Var(a.Var).Name),
			})
		}
	}
	return out
}

func zeroCheckedAnywhere(p *ir.Program, f *ir.Function, params map[string]bool) bool {
	for _, cond := range conditions(p, f) {
		if usesParam(p, cond, params) && containsZeroLiteral(p, cond) {
			return true
		}
	}
	return false
}
