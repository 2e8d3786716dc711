// Package facts derives the queryable, read-only view of a program that
// every detector shares: call graph, state read/write sets with their
// position relative to external calls, inheritance linearization, storage
// layout and ABI selectors. Building it twice on the same program yields
// identical results; nothing here depends on map iteration order.
package facts

import (
	"golang.org/x/sync/errgroup"

	"github.com/pyrite-audit/pyrite/internal/ir"
)

// Index is the fact store for one program. All top-level slices are
// dense, indexed by the ir typed IDs, so iteration is deterministic.
// An Index is immutable once built and safe to share across goroutines.
type Index struct {
	prog *ir.Program

	// Per function.
	Calls         [][]ir.FunctionID
	Callers       [][]ir.FunctionID
	ExternalCalls [][]ExternalCall
	Reads         [][]Access
	Writes        [][]Access

	// ReachesExternal marks functions that perform an external call
	// directly or through internal callees.
	ReachesExternal []bool
	UsesAssembly    []bool
	UsesDelegate    []bool

	// Per contract. Linearization is nil exactly where LinearErrs is
	// non-nil; such contracts are excluded from detector scheduling.
	Linearization [][]ir.ContractID
	LinearErrs    []*CyclicInheritanceError
	Slots         [][]SlotAssignment
	Selectors     [][]SelectorFact
}

// Build computes the index for a program. Inheritance is resolved
// sequentially (contracts share the memo); per-function effects are
// independent and computed with one worker per contract. Per-contract
// failures land in LinearErrs rather than aborting the build.
func Build(p *ir.Program) *Index {
	idx := &Index{
		prog:            p,
		Calls:           make([][]ir.FunctionID, len(p.Functions)),
		Callers:         make([][]ir.FunctionID, len(p.Functions)),
		ExternalCalls:   make([][]ExternalCall, len(p.Functions)),
		Reads:           make([][]Access, len(p.Functions)),
		Writes:          make([][]Access, len(p.Functions)),
		ReachesExternal: make([]bool, len(p.Functions)),
		UsesAssembly:    make([]bool, len(p.Functions)),
		UsesDelegate:    make([]bool, len(p.Functions)),
		Linearization:   make([][]ir.ContractID, len(p.Contracts)),
		LinearErrs:      make([]*CyclicInheritanceError, len(p.Contracts)),
		Slots:           make([][]SlotAssignment, len(p.Contracts)),
		Selectors:       make([][]SelectorFact, len(p.Contracts)),
	}

	lin := newLinearizer(p)
	for cid := range p.Contracts {
		order, err := lin.linearize(ir.ContractID(cid))
		if err != nil {
			idx.LinearErrs[cid] = err
			continue
		}
		idx.Linearization[cid] = order
	}

	// Each worker owns one contract's functions; the slices they write
	// to are disjoint, so the join is the only synchronization.
	var g errgroup.Group
	for cid := range p.Contracts {
		c := &p.Contracts[cid]
		g.Go(func() error {
			for _, fid := range c.Functions {
				w := walkEffects(p, fid)
				idx.Calls[fid] = w.calls
				idx.ExternalCalls[fid] = w.external
				idx.Reads[fid] = w.reads
				idx.Writes[fid] = w.writes
				idx.UsesAssembly[fid] = w.hasAssembly
				idx.UsesDelegate[fid] = w.hasDelegate
			}
			return nil
		})
	}
	_ = g.Wait()

	idx.buildCallers()
	idx.propagateExternal()
	for cid := range p.Contracts {
		if idx.LinearErrs[cid] != nil {
			continue
		}
		idx.Slots[cid] = buildSlots(p, idx.Linearization[cid])
		idx.Selectors[cid] = buildSelectors(p, idx, ir.ContractID(cid))
	}
	return idx
}

func (idx *Index) buildCallers() {
	for fid, callees := range idx.Calls {
		for _, callee := range callees {
			idx.Callers[callee] = append(idx.Callers[callee], ir.FunctionID(fid))
		}
	}
	// Callees were appended in caller order, which is already ascending.
}

// propagateExternal runs the reaches-external fixpoint over the call
// graph. The graph is small; a simple iterate-to-stable pass suffices.
func (idx *Index) propagateExternal() {
	for fid := range idx.ReachesExternal {
		idx.ReachesExternal[fid] = len(idx.ExternalCalls[fid]) > 0
	}
	for changed := true; changed; {
		changed = false
		for fid, callees := range idx.Calls {
			if idx.ReachesExternal[fid] {
				continue
			}
			for _, callee := range callees {
				if idx.ReachesExternal[callee] {
					idx.ReachesExternal[fid] = true
					changed = true
					break
				}
			}
		}
	}
}

// Linearized returns the member resolution order for a contract, most
// derived first, or false when inheritance could not be resolved.
func (idx *Index) Linearized(c ir.ContractID) ([]ir.ContractID, bool) {
	if int(c) >= len(idx.Linearization) || idx.Linearization[c] == nil {
		return nil, false
	}
	return idx.Linearization[c], true
}

// Methods lists the externally callable functions of a contract after
// inheritance flattening: public/external, most-derived override wins,
// in linearization-then-declaration order.
func (idx *Index) Methods(c ir.ContractID) []ir.FunctionID {
	order, ok := idx.Linearized(c)
	if !ok {
		order = []ir.ContractID{c}
	}
	var out []ir.FunctionID
	seen := make(map[string]bool)
	for _, cid := range order {
		ct := idx.prog.Contract(cid)
		for _, fid := range ct.Functions {
			f := idx.prog.Function(fid)
			if f.Kind == ir.FnModifier || !f.Visibility.Exposed() {
				continue
			}
			sig := f.Signature()
			if f.Kind != ir.FnFunction {
				sig = f.Kind.String()
			}
			if seen[sig] {
				continue
			}
			seen[sig] = true
			out = append(out, fid)
		}
	}
	return out
}

// AllFunctions lists every function visible on a contract, inherited
// included, overrides resolved most-derived-first.
func (idx *Index) AllFunctions(c ir.ContractID) []ir.FunctionID {
	order, ok := idx.Linearized(c)
	if !ok {
		order = []ir.ContractID{c}
	}
	var out []ir.FunctionID
	seen := make(map[string]bool)
	for _, cid := range order {
		ct := idx.prog.Contract(cid)
		for _, fid := range ct.Functions {
			f := idx.prog.Function(fid)
			key := f.Kind.String() + "|" + f.Signature()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, fid)
		}
	}
	return out
}

// ResolveModifier finds the modifier definition a name binds to in the
// context of contract c, following linearization order.
func (idx *Index) ResolveModifier(c ir.ContractID, name string) (ir.FunctionID, bool) {
	order, ok := idx.Linearized(c)
	if !ok {
		order = []ir.ContractID{c}
	}
	for _, cid := range order {
		ct := idx.prog.Contract(cid)
		for _, fid := range ct.Functions {
			f := idx.prog.Function(fid)
			if f.Kind == ir.FnModifier && f.Name == name {
				return fid, true
			}
		}
	}
	return ir.NilFunction, false
}

// WritesVar reports whether fn stores to v anywhere in its body.
func (idx *Index) WritesVar(fn ir.FunctionID, v ir.VarID) bool {
	for _, a := range idx.Writes[fn] {
		if a.Var == v {
			return true
		}
	}
	return false
}

// WritesState reports whether fn stores to any state variable.
func (idx *Index) WritesState(fn ir.FunctionID) bool {
	return len(idx.Writes[fn]) > 0
}

// WritesAfterCall returns the stores that happen after an external call
// has been observed in fn's evaluation order.
func (idx *Index) WritesAfterCall(fn ir.FunctionID) []Access {
	var out []Access
	for _, a := range idx.Writes[fn] {
		if a.AfterExternalCall {
			out = append(out, a)
		}
	}
	return out
}

// ReadsVar reports whether fn loads v anywhere in its body.
func (idx *Index) ReadsVar(fn ir.FunctionID, v ir.VarID) bool {
	for _, a := range idx.Reads[fn] {
		if a.Var == v {
			return true
		}
	}
	return false
}

// Program returns the program this index was derived from.
func (idx *Index) Program() *ir.Program {
	return idx.prog
}
