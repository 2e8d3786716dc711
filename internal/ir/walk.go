package ir

import "strings"

// Walk visits the subtree rooted at id in pre-order, kids in declared
// order. visit returning false prunes the subtree below that node.
// Traversal order is a pure function of the arena, so every walk over
// the same program is identical.
func (p *Program) Walk(id NodeID, visit func(NodeID, *Node) bool) {
	if id == NilNode {
		return
	}
	n := p.Node(id)
	if n == nil {
		return
	}
	if !visit(id, n) {
		return
	}
	for _, k := range n.Kids {
		p.Walk(k, visit)
	}
}

// WalkFunction walks a function body, tolerating bodiless functions.
func (p *Program) WalkFunction(f *Function, visit func(NodeID, *Node) bool) {
	if f == nil || f.Body == NilNode {
		return
	}
	p.Walk(f.Body, visit)
}

// Contains reports whether any node under root satisfies pred.
func (p *Program) Contains(root NodeID, pred func(*Node) bool) bool {
	found := false
	p.Walk(root, func(_ NodeID, n *Node) bool {
		if found {
			return false
		}
		if pred(n) {
			found = true
			return false
		}
		return true
	})
	return found
}

// IsCall reports whether a node is any flavor of call.
func (n *Node) IsCall() bool {
	switch n.Kind {
	case KindInternalCall, KindExternalCall, KindLowLevelCall:
		return true
	}
	return false
}

// CrossesBoundary reports whether the call leaves the contract.
func (n *Node) CrossesBoundary() bool {
	return n.Kind == KindExternalCall || n.Kind == KindLowLevelCall
}

// CallTarget returns the expression a boundary-crossing call is invoked
// on: the base of the member callee. NilNode when the shape is unusual.
func (p *Program) CallTarget(id NodeID) NodeID {
	n := p.Node(id)
	if n == nil || !n.CrossesBoundary() || len(n.Kids) == 0 {
		return NilNode
	}
	callee := p.Node(n.Kids[0])
	if callee == nil || callee.Kind != KindMember || len(callee.Kids) == 0 {
		return NilNode
	}
	return callee.Kids[0]
}

// CallArgs returns the argument node ids of a call.
func (p *Program) CallArgs(id NodeID) []NodeID {
	n := p.Node(id)
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindInternalCall, KindExternalCall, KindLowLevelCall:
		if len(n.Kids) > 1 {
			return n.Kids[1:]
		}
		return nil
	case KindRequire, KindRevert:
		return n.Kids
	}
	return nil
}

// RootVar digs through member/index/tuple chains to the state variable an
// lvalue ultimately addresses, NilVar when it bottoms out in a local.
func (p *Program) RootVar(id NodeID) VarID {
	for id != NilNode {
		n := p.Node(id)
		if n == nil {
			return NilVar
		}
		switch n.Kind {
		case KindIdent:
			return n.VarRef
		case KindMember, KindIndex:
			id = n.Kids[0]
		default:
			return NilVar
		}
	}
	return NilVar
}

// IsMsgSender matches the expression msg.sender.
func (p *Program) IsMsgSender(id NodeID) bool {
	return p.isMagicMember(id, "msg", "sender")
}

// IsTxOrigin matches the expression tx.origin.
func (p *Program) IsTxOrigin(id NodeID) bool {
	return p.isMagicMember(id, "tx", "origin")
}

// IsBlockTimestamp matches block.timestamp (and the legacy now alias).
func (p *Program) IsBlockTimestamp(id NodeID) bool {
	n := p.Node(id)
	if n != nil && n.Kind == KindIdent && n.Text == "now" {
		return true
	}
	return p.isMagicMember(id, "block", "timestamp")
}

func (p *Program) isMagicMember(id NodeID, base, member string) bool {
	n := p.Node(id)
	if n == nil || n.Kind != KindMember || n.Text != member || len(n.Kids) == 0 {
		return false
	}
	b := p.Node(n.Kids[0])
	return b != nil && b.Kind == KindIdent && b.Text == base
}

// Render flattens an expression subtree back into source-like text for
// messages. Best effort, bounded, never used for semantics.
func (p *Program) Render(id NodeID) string {
	var sb strings.Builder
	p.render(id, &sb, 0)
	return sb.String()
}

func (p *Program) render(id NodeID, sb *strings.Builder, depth int) {
	if depth > 8 {
		sb.WriteString("…")
		return
	}
	n := p.Node(id)
	if n == nil {
		return
	}
	switch n.Kind {
	case KindIdent, KindLiteral, KindNew:
		sb.WriteString(n.Text)
	case KindMember:
		p.render(n.Kids[0], sb, depth+1)
		sb.WriteString(".")
		sb.WriteString(n.Text)
	case KindIndex:
		p.render(n.Kids[0], sb, depth+1)
		sb.WriteString("[")
		if len(n.Kids) > 1 {
			p.render(n.Kids[1], sb, depth+1)
		}
		sb.WriteString("]")
	case KindBinary:
		p.render(n.Kids[0], sb, depth+1)
		sb.WriteString(" " + n.Text + " ")
		p.render(n.Kids[1], sb, depth+1)
	case KindUnary:
		sb.WriteString(n.Text)
		p.render(n.Kids[0], sb, depth+1)
	case KindAssign:
		p.render(n.Kids[0], sb, depth+1)
		sb.WriteString(" " + n.Text + " ")
		p.render(n.Kids[1], sb, depth+1)
	case KindInternalCall, KindExternalCall, KindLowLevelCall:
		if len(n.Kids) > 0 {
			p.render(n.Kids[0], sb, depth+1)
		} else {
			sb.WriteString(n.Text)
		}
		sb.WriteString("(")
		for i, a := range p.CallArgs(id) {
			if i > 0 {
				sb.WriteString(", ")
			}
			p.render(a, sb, depth+1)
		}
		sb.WriteString(")")
	case KindRequire:
		sb.WriteString(n.Text)
		sb.WriteString("(…)")
	case KindTuple:
		sb.WriteString("(")
		for i, k := range n.Kids {
			if i > 0 {
				sb.WriteString(", ")
			}
			p.render(k, sb, depth+1)
		}
		sb.WriteString(")")
	default:
		sb.WriteString(n.Kind.String())
	}
}
