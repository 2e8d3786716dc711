package detectors

import (
	"fmt"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// missingNonceReplay flags signature verification with no nonce consumed in
// the same function, so any observed signature can be replayed. Nonces
// managed by a separate manager contract are missed.
type missingNonceReplay struct{}

func (d *missingNonceReplay) Meta() Meta {
	return Meta{
		ID:          "missing-nonce-replay",
		Title:       "Signature accepted without a nonce",
		Category:    model.CategorySignatureReplay,
		Severity:    model.SeverityHigh,
		Remediation: "Bind a per-signer nonce into the signed digest and mark it consumed in the verifying function.",
		References:  []string{"SWC-121"},
	}
}

func (d *missingNonceReplay) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 0
}

func (d *missingNonceReplay) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		// Consuming a nonce requires a state write.
		if !f.Visibility.Exposed() || !idx.WritesState(fid) {
			continue
		}
		sites := recoverSites(p, f)
		if len(sites) == 0 || consumesNonce(p, idx, fid) {
			continue
		}
		out = append(out, RawFinding{
			Function: f.Name,
			Span:     p.Node(sites[0]).Span,
			Message:  fmt.Sprintf("%s recovers a signer but consumes no nonce; the signature replays", f.Name),
		})
	}
	return out
}

var nonceFragments = []string{"nonce", "used", "executed", "processed", "consumed"}

func consumesNonce(p *ir.Program, idx *facts.Index, fid ir.FunctionID) bool {
	for _, a := range idx.Writes[fid] {
		name := p.Var(a.Var).Name
		for _, frag := range nonceFragments {
			if containsFold(name, frag) {
				return true
			}
		}
	}
	return false
}

// missingDomainSeparator flags signed-digest checks built without a domain
// separator or chainid, so signatures replay across chains and deployments.
// Digests assembled inside a library call are not unpacked.
type missingDomainSeparator struct{}

func (d *missingDomainSeparator) Meta() Meta {
	return Meta{
		ID:          "missing-domain-separator",
		Title:       "Signed digest lacks domain separation",
		Category:    model.CategorySignatureReplay,
		Severity:    model.SeverityMedium,
		Remediation: "Fold an EIP-712 domain separator covering chainid and the verifying contract into every signed digest.",
		References:  []string{"EIP-712"},
	}
}

func (d *missingDomainSeparator) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 0
}

func (d *missingDomainSeparator) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		sites := recoverSites(p, f)
		if len(sites) == 0 {
			continue
		}
		if len(membersOf(p, f, "block", "chainid")) > 0 || mentionsIdent(p, f, "domain") {
			continue
		}
		out = append(out, RawFinding{
			Function: f.Name,
			Span:     p.Node(sites[0]).Span,
			Message:  fmt.Sprintf("%s verifies a digest with no domain separator or chainid binding", f.Name),
		})
	}
	return out
}
