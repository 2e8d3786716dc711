package facts

import (
	"encoding/hex"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pyrite-audit/pyrite/internal/ir"
)

// SelectorFact is the 4-byte ABI selector of one externally callable
// function, with its canonical signature.
type SelectorFact struct {
	Selector  [4]byte
	Signature string
	Function  ir.FunctionID
}

func (s SelectorFact) Hex() string {
	return "0x" + hex.EncodeToString(s.Selector[:])
}

// SelectorOf hashes a canonical signature into its dispatch selector.
func SelectorOf(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

func buildSelectors(p *ir.Program, idx *Index, c ir.ContractID) []SelectorFact {
	methods := idx.Methods(c)
	out := make([]SelectorFact, 0, len(methods))
	for _, fid := range methods {
		f := p.Function(fid)
		if f.Kind != ir.FnFunction || f.Name == "" {
			continue
		}
		sig := f.Signature()
		out = append(out, SelectorFact{Selector: SelectorOf(sig), Signature: sig, Function: fid})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Signature < out[j].Signature })
	return out
}

// SelectorClash returns selector values claimed by more than one
// signature within the contract's dispatch table.
func (idx *Index) SelectorClash(c ir.ContractID) [][]SelectorFact {
	if int(c) >= len(idx.Selectors) {
		return nil
	}
	byVal := make(map[[4]byte][]SelectorFact)
	for _, s := range idx.Selectors[c] {
		byVal[s.Selector] = append(byVal[s.Selector], s)
	}
	var clashes [][]SelectorFact
	for _, group := range byVal {
		if len(group) > 1 {
			clashes = append(clashes, group)
		}
	}
	sort.Slice(clashes, func(i, j int) bool {
		return clashes[i][0].Signature < clashes[j][0].Signature
	})
	return clashes
}
