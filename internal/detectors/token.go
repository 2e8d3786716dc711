package detectors

import (
	"fmt"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

var erc20BoolSigs = map[string]bool{
	"transfer(address,uint256)":             true,
	"approve(address,uint256)":              true,
	"transferFrom(address,address,uint256)": true,
}

// erc20MissingReturn flags transfer/approve/transferFrom declarations that
// return nothing; callers compiled against the standard ABI revert on the
// missing word. Values returned from assembly are not parsed.
type erc20MissingReturn struct{}

func (d *erc20MissingReturn) Meta() Meta {
	return Meta{
		ID:          "erc20-missing-return",
		Title:       "ERC-20 method missing bool return",
		Category:    model.CategoryTokenStandard,
		Severity:    model.SeverityMedium,
		Remediation: "Declare returns (bool) and return true on success; EIP-20 callers decode a bool.",
		References:  []string{"EIP-20"},
	}
}

func (d *erc20MissingReturn) Applies(p *ir.Program, c *ir.Contract) bool {
	if c.Kind != ir.KContract {
		return false
	}
	for _, fid := range c.Functions {
		switch p.Function(fid).Name {
		case "transfer", "approve", "transferFrom":
			return true
		}
	}
	return false
}

func (d *erc20MissingReturn) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if f.Kind != ir.FnFunction || !f.Visibility.Exposed() {
			continue
		}
		if !erc20BoolSigs[f.Signature()] || len(f.Returns) > 0 {
			continue
		}
		out = append(out, RawFinding{
			Function: f.Name,
			Span:     f.Span,
			Message:  fmt.Sprintf("%s returns nothing; the standard ABI expects bool", f.Signature()),
		})
	}
	return out
}

// erc721UnsafeMint flags _mint to caller-supplied receivers; a contract
// receiver that cannot handle the token locks it forever. Receivers
// provably EOAs are not distinguished from contracts.
type erc721UnsafeMint struct{}

func (d *erc721UnsafeMint) Meta() Meta {
	return Meta{
		ID:          "erc721-unsafe-mint",
		Title:       "_mint used where the receiver may be a contract",
		Category:    model.CategoryTokenStandard,
		Severity:    model.SeverityMedium,
		Remediation: "Use _safeMint so contract receivers must prove they implement onERC721Received.",
		References:  []string{"EIP-721"},
	}
}

func (d *erc721UnsafeMint) Applies(p *ir.Program, c *ir.Contract) bool {
	if c.Kind != ir.KContract {
		return false
	}
	if containsFold(c.Name, "721") || containsFold(c.Name, "nft") {
		return true
	}
	for _, base := range c.Bases {
		if containsFold(base, "721") {
			return true
		}
	}
	for _, fid := range c.Functions {
		switch p.Function(fid).Name {
		case "ownerOf", "tokenURI", "_safeMint":
			return true
		}
	}
	return false
}

func (d *erc721UnsafeMint) Evaluate(p *ir.Program, idx *facts.Index, c *ir.Contract) []RawFinding {
	var out []RawFinding
	for _, fid := range c.Functions {
		f := p.Function(fid)
		if !f.Visibility.Exposed() || f.Body == ir.NilNode {
			continue
		}
		params := paramNames(f)
		for _, site := range callsNamed(p, f, "_mint") {
			args := p.CallArgs(site)
			if len(args) == 0 || !usesParam(p, args[0], params) {
				continue
			}
			out = append(out, RawFinding{
				Function: f.Name,
				Span:     p.Node(site).Span,
				Message:  fmt.Sprintf("%s mints to a caller-supplied receiver without the onERC721Received handshake", f.Name),
			})
		}
	}
	return out
}
