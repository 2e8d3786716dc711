package facts

import "github.com/pyrite-audit/pyrite/internal/ir"

// SlotAssignment places one state variable at one storage slot.
type SlotAssignment struct {
	Slot       int
	Var        ir.VarID
	DeclaredIn ir.ContractID
}

// buildSlots lays out storage for a contract: variables of the most
// base-like contract first (reverse linearization), declaration order
// within each contract, one slot per variable. Constants and immutables
// occupy no slot. Intra-slot packing is not modeled; detectors compare
// relative positions, which sequential assignment preserves.
func buildSlots(p *ir.Program, linearization []ir.ContractID) []SlotAssignment {
	var out []SlotAssignment
	slot := 0
	for i := len(linearization) - 1; i >= 0; i-- {
		cid := linearization[i]
		c := p.Contract(cid)
		if c.Kind != ir.KContract {
			continue
		}
		for _, vid := range c.Vars {
			v := p.Var(vid)
			if v.Constant {
				continue
			}
			out = append(out, SlotAssignment{Slot: slot, Var: vid, DeclaredIn: cid})
			slot++
		}
	}
	return out
}

// SlotOf finds the slot a variable occupies in the layout of contract c.
func (idx *Index) SlotOf(c ir.ContractID, v ir.VarID) (int, bool) {
	if int(c) >= len(idx.Slots) {
		return 0, false
	}
	for _, s := range idx.Slots[c] {
		if s.Var == v {
			return s.Slot, true
		}
	}
	return 0, false
}
