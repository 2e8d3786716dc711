package facts

import (
	"fmt"
	"strings"

	"github.com/pyrite-audit/pyrite/internal/ir"
)

// CyclicInheritanceError reports a contract whose inheritance graph
// cannot be linearized. Fatal for that contract only; the rest of the
// unit is still scanned.
type CyclicInheritanceError struct {
	Contract string
	Chain    []string
	Reason   string
}

func (e *CyclicInheritanceError) Error() string {
	if len(e.Chain) > 0 {
		return fmt.Sprintf("cyclic inheritance at %s: %s", e.Contract, strings.Join(e.Chain, " -> "))
	}
	return fmt.Sprintf("inheritance of %s cannot be linearized: %s", e.Contract, e.Reason)
}

// linearizer memoizes C3 member resolution order per contract. Solidity
// flavors C3 by merging the reversed base list, yielding most-derived
// first. Bases declared outside the unit are skipped rather than failed:
// imported library bases are routine and carry no local members anyway.
type linearizer struct {
	prog       *ir.Program
	memo       map[ir.ContractID][]ir.ContractID
	inProgress map[ir.ContractID]bool
}

func newLinearizer(p *ir.Program) *linearizer {
	return &linearizer{
		prog:       p,
		memo:       make(map[ir.ContractID][]ir.ContractID),
		inProgress: make(map[ir.ContractID]bool),
	}
}

func (l *linearizer) linearize(cid ir.ContractID) ([]ir.ContractID, *CyclicInheritanceError) {
	if order, ok := l.memo[cid]; ok {
		return order, nil
	}
	c := l.prog.Contract(cid)
	if l.inProgress[cid] {
		return nil, &CyclicInheritanceError{Contract: c.Name, Chain: []string{c.Name}}
	}
	l.inProgress[cid] = true
	defer delete(l.inProgress, cid)

	var bases []ir.ContractID
	for i := len(c.BaseIDs) - 1; i >= 0; i-- {
		if c.BaseIDs[i] != ir.NilContract {
			bases = append(bases, c.BaseIDs[i])
		}
	}

	seqs := make([][]ir.ContractID, 0, len(bases)+1)
	for _, b := range bases {
		sub, err := l.linearize(b)
		if err != nil {
			err.Chain = append([]string{c.Name}, err.Chain...)
			return nil, err
		}
		seqs = append(seqs, sub)
	}
	if len(bases) > 0 {
		seqs = append(seqs, bases)
	}

	merged, ok := c3merge(seqs)
	if !ok {
		return nil, &CyclicInheritanceError{
			Contract: c.Name,
			Reason:   "base contracts form an inconsistent hierarchy",
		}
	}
	order := append([]ir.ContractID{cid}, merged...)
	l.memo[cid] = order
	return order, nil
}

// c3merge repeatedly takes the head of the first sequence whose head
// appears in no other sequence's tail. Failure to make progress with
// input remaining means the hierarchy has no consistent order.
func c3merge(seqs [][]ir.ContractID) ([]ir.ContractID, bool) {
	work := make([][]ir.ContractID, len(seqs))
	for i, s := range seqs {
		work[i] = append([]ir.ContractID(nil), s...)
	}
	var out []ir.ContractID
	for {
		empty := true
		for _, s := range work {
			if len(s) > 0 {
				empty = false
				break
			}
		}
		if empty {
			return out, true
		}

		var head ir.ContractID = ir.NilContract
		for _, s := range work {
			if len(s) == 0 {
				continue
			}
			candidate := s[0]
			inTail := false
			for _, other := range work {
				for i := 1; i < len(other); i++ {
					if other[i] == candidate {
						inTail = true
						break
					}
				}
				if inTail {
					break
				}
			}
			if !inTail {
				head = candidate
				break
			}
		}
		if head == ir.NilContract {
			return nil, false
		}

		out = append(out, head)
		for i, s := range work {
			if len(s) > 0 && s[0] == head {
				work[i] = s[1:]
			}
		}
	}
}
