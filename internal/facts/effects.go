package facts

import (
	"sort"

	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// ExternalCall is one site where control leaves the contract.
type ExternalCall struct {
	Site ir.NodeID
	Kind ir.NodeKind
	Call ir.CallKind
	Span model.Span

	// Target is the rendered receiver expression, for messages only.
	Target         string
	TransfersValue bool

	// Checked is false when the call sits in statement position with its
	// return value discarded.
	Checked bool

	// Ordinal is this site's position among the function's external
	// calls in evaluation order.
	Ordinal int
}

// Access is one read or write of a state variable inside a function.
// AfterExternalCall records whether any external call had already been
// seen at that point of the walk; reentrancy detectors key off it.
type Access struct {
	Var  ir.VarID
	Site ir.NodeID
	Span model.Span

	AfterExternalCall bool
	// Compound marks read-modify-write sites (+=, ++, delete).
	Compound bool
}

// effectsWalker computes the per-function facts in one pass over the
// body, in evaluation order: assignment right-hand sides are visited
// before the store they feed.
type effectsWalker struct {
	prog *ir.Program
	fn   ir.FunctionID

	calls       []ir.FunctionID
	external    []ExternalCall
	reads       []Access
	writes      []Access
	seenCall    bool
	hasDelegate bool
	hasAssembly bool
}

func walkEffects(p *ir.Program, fid ir.FunctionID) *effectsWalker {
	w := &effectsWalker{prog: p, fn: fid}
	f := p.Function(fid)
	if f.Body != ir.NilNode {
		w.visit(f.Body, false)
	}
	sort.Slice(w.calls, func(i, j int) bool { return w.calls[i] < w.calls[j] })
	w.calls = dedupFns(w.calls)
	return w
}

func dedupFns(in []ir.FunctionID) []ir.FunctionID {
	out := in[:0]
	var last ir.FunctionID = ir.NilFunction
	for _, f := range in {
		if f != last {
			out = append(out, f)
			last = f
		}
	}
	return out
}

func (w *effectsWalker) read(id ir.NodeID, n *ir.Node, compound bool) {
	if n.VarRef == ir.NilVar {
		return
	}
	w.reads = append(w.reads, Access{
		Var: n.VarRef, Site: id, Span: n.Span,
		AfterExternalCall: w.seenCall, Compound: compound,
	})
}

func (w *effectsWalker) write(lvalue ir.NodeID, site ir.NodeID, compound bool) {
	v := w.prog.RootVar(lvalue)
	if v == ir.NilVar {
		return
	}
	sp := w.prog.Node(site).Span
	w.writes = append(w.writes, Access{
		Var: v, Site: site, Span: sp,
		AfterExternalCall: w.seenCall, Compound: compound,
	})
}

// visit walks one node in evaluation order. consumed reports whether the
// node's value is used by its parent; it decides the Checked flag on
// call sites.
func (w *effectsWalker) visit(id ir.NodeID, consumed bool) {
	if id == ir.NilNode {
		return
	}
	n := w.prog.Node(id)
	if n == nil {
		return
	}

	switch n.Kind {
	case ir.KindAssign:
		lhs, rhs := n.Kids[0], n.Kids[1]
		// Subscripts and member paths on the left are evaluated (reads),
		// then the right side, then the store happens.
		w.visitLValueReads(lhs)
		w.visit(rhs, true)
		compound := n.Text != "="
		w.write(lhs, id, compound)
		if compound {
			w.readRoot(lhs)
		}
		return

	case ir.KindUnary:
		if n.Text == "++" || n.Text == "--" || n.Text == "delete" {
			w.visitLValueReads(n.Kids[0])
			w.write(n.Kids[0], id, true)
			if n.Text != "delete" {
				w.readRoot(n.Kids[0])
			}
			return
		}
		w.visit(n.Kids[0], true)
		return

	case ir.KindIdent:
		w.read(id, n, false)
		return

	case ir.KindInternalCall:
		if n.FnRef != ir.NilFunction {
			w.calls = append(w.calls, n.FnRef)
		}
		for _, a := range w.prog.CallArgs(id) {
			w.visit(a, true)
		}
		return

	case ir.KindExternalCall, ir.KindLowLevelCall:
		// Receiver and arguments evaluate before control leaves.
		if t := w.prog.CallTarget(id); t != ir.NilNode {
			w.visit(t, true)
		}
		for _, a := range w.prog.CallArgs(id) {
			w.visit(a, true)
		}
		w.external = append(w.external, ExternalCall{
			Site:           id,
			Kind:           n.Kind,
			Call:           n.Call,
			Span:           n.Span,
			Target:         w.prog.Render(w.prog.CallTarget(id)),
			TransfersValue: n.TransfersValue,
			Checked:        consumed,
			Ordinal:        len(w.external),
		})
		w.seenCall = true
		if n.Call == ir.CallDelegate {
			w.hasDelegate = true
		}
		return

	case ir.KindExprStmt:
		for _, k := range n.Kids {
			w.visit(k, false)
		}
		return

	case ir.KindVarDecl:
		for _, k := range n.Kids {
			w.visit(k, true)
		}
		return

	case ir.KindAssembly:
		w.hasAssembly = true
		return

	default:
		for _, k := range n.Kids {
			w.visit(k, true)
		}
		return
	}
}

// readRoot records the read half of a read-modify-write on the lvalue's
// root state variable.
func (w *effectsWalker) readRoot(lvalue ir.NodeID) {
	root := w.rootIdent(lvalue)
	if n := w.prog.Node(root); n != nil {
		w.read(root, n, true)
	}
}

// visitLValueReads walks the subscript and member-path expressions of an
// lvalue, which are evaluated as reads before the store.
func (w *effectsWalker) visitLValueReads(id ir.NodeID) {
	n := w.prog.Node(id)
	if n == nil {
		return
	}
	switch n.Kind {
	case ir.KindIdent:
		return
	case ir.KindIndex:
		w.visitLValueReads(n.Kids[0])
		if len(n.Kids) > 1 {
			w.visit(n.Kids[1], true)
		}
	case ir.KindMember:
		w.visitLValueReads(n.Kids[0])
	case ir.KindTuple:
		for _, k := range n.Kids {
			w.visitLValueReads(k)
		}
	default:
		w.visit(id, true)
	}
}

func (w *effectsWalker) rootIdent(id ir.NodeID) ir.NodeID {
	for id != ir.NilNode {
		n := w.prog.Node(id)
		if n == nil {
			return ir.NilNode
		}
		switch n.Kind {
		case ir.KindIdent:
			return id
		case ir.KindMember, ir.KindIndex:
			id = n.Kids[0]
		default:
			return ir.NilNode
		}
	}
	return ir.NilNode
}
