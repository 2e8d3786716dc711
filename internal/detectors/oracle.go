package detectors

import (
	"fmt"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// spotPriceOracle flags pricing math fed directly from AMM reserves, which
// one flash swap bends arbitrarily. Prices routed through a separate math
// library are missed.
type spotPriceOracle struct{}

func (d *spotPriceOracle) Meta() Meta {
	return Meta{
		ID:          "spot-price-oracle",
		Title:       "Price derived from spot reserves",
		Category:    model.CategoryOracle,
		Severity:    model.SeverityHigh,
		Remediation: "Price against a manipulation-resistant source (TWAP, Chainlink) instead of live pool reserves.",
	}
}

func (d *spotPriceOracle) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 0
}

func (d *spotPriceOracle) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if !hasDivision(p, f) {
			continue
		}
		balanceReads := 0
		firstBalance := ir.NilNode
		for _, ec := range idx.ExternalCalls[fid] {
			switch {
			case callTextIs(p, ec.Site, "getReserves"):
				out = append(out, RawFinding{
					Confidence: model.ConfidenceLikely,
					Function:   f.Name,
					Span:       ec.Span,
					Message:    fmt.Sprintf("%s prices against live reserves from %s", f.Name, ec.Target),
				})
			case callTextIs(p, ec.Site, "balanceOf"):
				balanceReads++
				if firstBalance == ir.NilNode {
					firstBalance = ec.Site
				}
			}
		}
		if balanceReads >= 2 {
			out = append(out, RawFinding{
				Confidence: model.ConfidencePossible,
				Function:   f.Name,
				Span:       p.Node(firstBalance).Span,
				Message:    fmt.Sprintf("%s derives a ratio from live token balances", f.Name),
			})
		}
	}
	return out
}

func hasDivision(p *ir.Program, f *ir.Function) bool {
	return divisionAt(p, f) != ir.NilNode
}

func divisionAt(p *ir.Program, f *ir.Function) ir.NodeID {
	site := ir.NilNode
	p.WalkFunction(f, func(id ir.NodeID, n *ir.Node) bool {
		if site != ir.NilNode {
			return false
		}
		if n.Kind == ir.KindBinary && n.Text == "/" {
			site = id
			return false
		}
		return true
	})
	return site
}

// singleSourceOracle flags single price-feed reads with no staleness check.
// Staleness enforced inside the feed wrapper contract is invisible here.
type singleSourceOracle struct{}

func (d *singleSourceOracle) Meta() Meta {
	return Meta{
		ID:          "single-source-oracle",
		Title:       "Price feed consumed without staleness check",
		Category:    model.CategoryOracle,
		Severity:    model.SeverityMedium,
		Remediation: "Read latestRoundData, reject stale updatedAt rounds, and avoid latestAnswer entirely.",
	}
}

func (d *singleSourceOracle) Applies(p *ir.Program, c *ir.Contract) bool {
	return c.Kind == ir.KContract && len(c.Functions) > 0
}

func (d *singleSourceOracle) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		for _, ec := range idx.ExternalCalls[fid] {
			switch {
			case callTextIs(p, ec.Site, "latestAnswer"):
				out = append(out, RawFinding{
					Function: f.Name,
					Span:     ec.Span,
					Message:  "latestAnswer carries no freshness data; a stalled feed keeps answering",
				})
			case callTextIs(p, ec.Site, "latestRoundData") && !staleGuarded(p, f):
				out = append(out, RawFinding{
					Function: f.Name,
					Span:     ec.Span,
					Message:  "round data is used without checking updatedAt",
				})
			}
		}
	}
	return out
}

// staleGuarded reports whether any condition inspects the round timestamp.
func staleGuarded(p *ir.Program, f *ir.Function) bool {
	for _, cond := range conditions(p, f) {
		hit := false
		p.Walk(cond, func(id ir.NodeID, n *ir.Node) bool {
			if p.IsBlockTimestamp(id) {
				hit = true
				return false
			}
			if n.Kind == ir.KindIdent && containsFold(n.Text, "updated") {
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
