package detectors

import (
	"strings"

	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
)

// Shared structural matchers. Detectors compose these instead of
// re-walking the tree with private heuristics, so the vocabulary
// ("balance-like", "guarded") means the same thing everywhere.

func containsFold(s, fragment string) bool {
	return strings.Contains(strings.ToLower(s), fragment)
}

var balanceTokens = []string{
	"balance", "share", "deposit", "owed", "debt", "credit",
	"staked", "stake", "supply", "reserve", "liquidity", "locked",
}

// balanceLike reports whether a variable name suggests it tracks value
// owed to or held for users.
func balanceLike(name string) bool {
	n := strings.ToLower(name)
	for _, tok := range balanceTokens {
		if strings.Contains(n, tok) {
			return true
		}
	}
	return false
}

var ownerTokens = []string{
	"owner", "admin", "governance", "governor", "operator",
	"guardian", "controller", "authority", "manager", "treasury",
}

// ownerLike reports whether a variable name suggests a privileged role
// holder.
func ownerLike(name string) bool {
	n := strings.ToLower(name)
	for _, tok := range ownerTokens {
		if strings.Contains(n, tok) {
			return true
		}
	}
	return false
}

var guardModifierTokens = []string{
	"only", "auth", "admin", "owner", "role", "guard",
	"restricted", "initializer", "reinitializer", "whennotpaused",
}

// guardModifierName reports whether a modifier name looks like an access
// or lifecycle guard.
func guardModifierName(name string) bool {
	n := strings.ToLower(name)
	for _, tok := range guardModifierTokens {
		if strings.Contains(n, tok) {
			return true
		}
	}
	return false
}

// hasSenderGuard reports whether the function body itself checks the
// caller: a require/if condition mentioning msg.sender, or a role-check
// call (hasRole, onlyRole style).
func hasSenderGuard(p *ir.Program, f *ir.Function) bool {
	found := false
	p.WalkFunction(f, func(id ir.NodeID, n *ir.Node) bool {
		if found {
			return false
		}
		switch n.Kind {
		case ir.KindRequire, ir.KindIf:
			cond := ir.NilNode
			if len(n.Kids) > 0 {
				cond = n.Kids[0]
			}
			if condMentionsSender(p, cond) {
				found = true
				return false
			}
		case ir.KindInternalCall:
			lower := strings.ToLower(n.Text)
			if strings.Contains(lower, "hasrole") || strings.Contains(lower, "checkrole") ||
				strings.Contains(lower, "onlyowner") || strings.Contains(lower, "_checkowner") {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func condMentionsSender(p *ir.Program, cond ir.NodeID) bool {
	if cond == ir.NilNode {
		return false
	}
	mentions := false
	p.Walk(cond, func(id ir.NodeID, n *ir.Node) bool {
		if p.IsMsgSender(id) || p.IsTxOrigin(id) {
			mentions = true
			return false
		}
		if n.Kind == ir.KindInternalCall {
			lower := strings.ToLower(n.Text)
			if strings.Contains(lower, "hasrole") || strings.Contains(lower, "isowner") {
				mentions = true
				return false
			}
		}
		return true
	})
	return mentions
}

// guarded reports whether a function is protected by a guard modifier
// (resolved through inheritance where possible) or an inline caller
// check. This is the "access control present" half that detectors pair
// with a state-mutation condition.
func guarded(p *ir.Program, idx *facts.Index, c *ir.Contract, f *ir.Function) bool {
	for _, name := range f.Modifiers {
		if guardModifierName(name) {
			return true
		}
		if mid, ok := idx.ResolveModifier(c.ID, name); ok {
			if hasSenderGuard(p, p.Function(mid)) {
				return true
			}
		}
	}
	return hasSenderGuard(p, f)
}

// conditions collects the condition subtrees of every require and if in
// the function, in walk order.
func conditions(p *ir.Program, f *ir.Function) []ir.NodeID {
	var out []ir.NodeID
	p.WalkFunction(f, func(_ ir.NodeID, n *ir.Node) bool {
		if (n.Kind == ir.KindRequire || n.Kind == ir.KindIf) && len(n.Kids) > 0 && n.Kids[0] != ir.NilNode {
			out = append(out, n.Kids[0])
		}
		return true
	})
	return out
}

// callsNamed finds internal calls whose callee name matches any of the
// given names exactly.
func callsNamed(p *ir.Program, f *ir.Function, names ...string) []ir.NodeID {
	var out []ir.NodeID
	p.WalkFunction(f, func(id ir.NodeID, n *ir.Node) bool {
		if n.Kind == ir.KindInternalCall {
			for _, name := range names {
				if n.Text == name {
					out = append(out, id)
					break
				}
			}
		}
		return true
	})
	return out
}

// paramNames returns the set of parameter names of f.
func paramNames(f *ir.Function) map[string]bool {
	out := make(map[string]bool, len(f.Params))
	for _, p := range f.Params {
		if p.Name != "" {
			out[p.Name] = true
		}
	}
	return out
}

// usesParam reports whether the subtree mentions any of the given
// parameter names. Locals assigned from parameters are not tracked;
// that is the documented precision limit of input-flow matching.
func usesParam(p *ir.Program, root ir.NodeID, params map[string]bool) bool {
	if len(params) == 0 {
		return false
	}
	found := false
	p.Walk(root, func(_ ir.NodeID, n *ir.Node) bool {
		if found {
			return false
		}
		if n.Kind == ir.KindIdent && n.VarRef == ir.NilVar && params[n.Text] {
			found = true
			return false
		}
		return true
	})
	return found
}

// loops returns every loop node in the function body.
func loops(p *ir.Program, f *ir.Function) []ir.NodeID {
	var out []ir.NodeID
	p.WalkFunction(f, func(id ir.NodeID, n *ir.Node) bool {
		if n.Kind == ir.KindLoop {
			out = append(out, id)
		}
		return true
	})
	return out
}

// loopIsBounded reports whether a loop's condition compares against a
// literal bound. Loops over dynamic arrays or with no condition count
// as unbounded.
func loopIsBounded(p *ir.Program, loop ir.NodeID) bool {
	n := p.Node(loop)
	if n == nil || len(n.Kids) == 0 || n.Kids[0] == ir.NilNode {
		return false
	}
	bounded := false
	p.Walk(n.Kids[0], func(_ ir.NodeID, k *ir.Node) bool {
		if k.Kind == ir.KindLiteral {
			bounded = true
			return false
		}
		return true
	})
	return bounded
}

// externalCallsUnder returns the external/low-level call sites inside
// the given subtree.
func externalCallsUnder(p *ir.Program, root ir.NodeID) []ir.NodeID {
	var out []ir.NodeID
	p.Walk(root, func(id ir.NodeID, n *ir.Node) bool {
		if n.CrossesBoundary() {
			out = append(out, id)
		}
		return true
	})
	return out
}

// membersOf finds member accesses base.member under the function body,
// e.g. membersOf(p, f, "block", "timestamp").
func membersOf(p *ir.Program, f *ir.Function, base, member string) []ir.NodeID {
	var out []ir.NodeID
	p.WalkFunction(f, func(id ir.NodeID, n *ir.Node) bool {
		if n.Kind == ir.KindMember && n.Text == member && len(n.Kids) > 0 {
			b := p.Node(n.Kids[0])
			if b != nil && b.Kind == ir.KindIdent && b.Text == base {
				out = append(out, id)
			}
		}
		return true
	})
	return out
}

// writesOwnerLike reports whether the function stores to a privileged
// role variable, returning the first such access.
func writesOwnerLike(p *ir.Program, idx *facts.Index, f *ir.Function) (facts.Access, bool) {
	for _, a := range idx.Writes[f.ID] {
		if ownerLike(p.Var(a.Var).Name) {
			return a, true
		}
	}
	return facts.Access{}, false
}

// selfCustodial reports whether the store at a write site only touches an
// entry keyed by the caller, e.g. balances[msg.sender] -= amount. Such
// writes affect the caller's own slot and carry no privilege.
func selfCustodial(p *ir.Program, site ir.NodeID) bool {
	n := p.Node(site)
	if n == nil || len(n.Kids) == 0 {
		return false
	}
	// Assign and unary write sites both keep the lvalue first.
	found := false
	p.Walk(n.Kids[0], func(_ ir.NodeID, k *ir.Node) bool {
		if k.Kind == ir.KindIndex && len(k.Kids) > 1 && p.IsMsgSender(k.Kids[1]) {
			found = true
			return false
		}
		return true
	})
	return found
}

// reentrancyGuarded reports whether the function carries a mutex-style
// modifier. The modifier body is not inspected; the name is the contract.
func reentrancyGuarded(f *ir.Function) bool {
	for _, m := range f.Modifiers {
		lower := strings.ToLower(m)
		if strings.Contains(lower, "reentran") || strings.Contains(lower, "mutex") || lower == "lock" || lower == "locked" {
			return true
		}
	}
	return false
}

var recoverNames = map[string]bool{
	"ecrecover":  true,
	"recover":    true,
	"tryRecover": true,
}

// recoverSites finds signature-recovery calls in a function, whether the
// builtin ecrecover or library-style ECDSA.recover.
func recoverSites(p *ir.Program, f *ir.Function) []ir.NodeID {
	var out []ir.NodeID
	p.WalkFunction(f, func(id ir.NodeID, n *ir.Node) bool {
		if n.IsCall() && recoverNames[n.Text] {
			out = append(out, id)
		}
		return true
	})
	return out
}

// mentionsIdent reports whether the function body contains an identifier
// or state-variable reference whose name contains the given fragment
// (lower-cased match).
func mentionsIdent(p *ir.Program, f *ir.Function, fragment string) bool {
	found := false
	p.WalkFunction(f, func(_ ir.NodeID, n *ir.Node) bool {
		if found {
			return false
		}
		if n.Kind == ir.KindIdent && strings.Contains(strings.ToLower(n.Text), fragment) {
			found = true
			return false
		}
		return true
	})
	return found
}

// weakEntropy reports whether the subtree reads miner-influenced block
// fields: timestamp, prevrandao/difficulty, or blockhash.
func weakEntropy(p *ir.Program, root ir.NodeID) bool {
	found := false
	p.Walk(root, func(id ir.NodeID, n *ir.Node) bool {
		if found {
			return false
		}
		if p.IsBlockTimestamp(id) {
			found = true
			return false
		}
		if n.Kind == ir.KindMember && (n.Text == "prevrandao" || n.Text == "difficulty") && len(n.Kids) > 0 {
			if b := p.Node(n.Kids[0]); b != nil && b.Kind == ir.KindIdent && b.Text == "block" {
				found = true
				return false
			}
		}
		if n.Kind == ir.KindInternalCall && n.Text == "blockhash" {
			found = true
			return false
		}
		return true
	})
	return found
}

// containsZeroLiteral reports whether the subtree carries a zero constant,
// covering both bare 0 and the address(0) cast.
func containsZeroLiteral(p *ir.Program, root ir.NodeID) bool {
	found := false
	p.Walk(root, func(_ ir.NodeID, n *ir.Node) bool {
		if n.Kind == ir.KindLiteral && (n.Text == "0" || n.Text == "0x0") {
			found = true
			return false
		}
		return true
	})
	return found
}

// callTextIs reports whether the node at id is a call whose rendered
// method name matches one of the given names.
func callTextIs(p *ir.Program, id ir.NodeID, names ...string) bool {
	n := p.Node(id)
	if n == nil || !n.IsCall() {
		return false
	}
	for _, name := range names {
		if n.Text == name {
			return true
		}
	}
	return false
}
