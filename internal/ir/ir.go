// Package ir holds the program model: one compilation unit lowered into
// flat arenas of contracts, functions, state variables and statement
// nodes. Detectors read it, never write it.
package ir

import (
	"strings"

	"github.com/pyrite-audit/pyrite/internal/model"
)

// Typed indices into the Program arenas. Back-references between
// entities are these indices, never pointers, so the model stays
// acyclic from an ownership standpoint.
type (
	ContractID int
	FunctionID int
	VarID      int
	NodeID     int
)

// NilNode marks an absent child slot.
const NilNode NodeID = -1

const (
	NilContract ContractID = -1
	NilFunction FunctionID = -1
	NilVar      VarID      = -1
)

type ContractKind uint8

const (
	KContract ContractKind = iota
	KInterface
	KLibrary
)

func (k ContractKind) String() string {
	switch k {
	case KInterface:
		return "interface"
	case KLibrary:
		return "library"
	default:
		return "contract"
	}
}

type Visibility uint8

const (
	VisPublic Visibility = iota
	VisExternal
	VisInternal
	VisPrivate
)

func ParseVisibility(s string) Visibility {
	switch s {
	case "public":
		return VisPublic
	case "external":
		return VisExternal
	case "private":
		return VisPrivate
	default:
		return VisInternal
	}
}

func (v Visibility) String() string {
	switch v {
	case VisPublic:
		return "public"
	case VisExternal:
		return "external"
	case VisPrivate:
		return "private"
	default:
		return "internal"
	}
}

// Exposed reports whether a function with this visibility is callable
// from outside the contract.
func (v Visibility) Exposed() bool {
	return v == VisPublic || v == VisExternal
}

type Mutability uint8

const (
	MutNonpayable Mutability = iota
	MutView
	MutPure
	MutPayable
)

func ParseMutability(s string) Mutability {
	switch s {
	case "view":
		return MutView
	case "pure":
		return MutPure
	case "payable":
		return MutPayable
	default:
		return MutNonpayable
	}
}

func (m Mutability) String() string {
	switch m {
	case MutView:
		return "view"
	case MutPure:
		return "pure"
	case MutPayable:
		return "payable"
	default:
		return "nonpayable"
	}
}

type FunctionKind uint8

const (
	FnFunction FunctionKind = iota
	FnConstructor
	FnFallback
	FnReceive
	FnModifier
)

func (k FunctionKind) String() string {
	switch k {
	case FnConstructor:
		return "constructor"
	case FnFallback:
		return "fallback"
	case FnReceive:
		return "receive"
	case FnModifier:
		return "modifier"
	default:
		return "function"
	}
}

// NodeKind tags what a statement/expression node is. Kids layout per kind:
//
//	Block, Unchecked, Tuple: children in source order
//	If:                      [cond, then, else] (else may be NilNode)
//	Loop:                    [cond, body] (cond may be NilNode), init/post appended after
//	Return:                  returned expressions
//	Require, Revert:         callee-less argument list (cond first for require)
//	VarDecl:                 [init] (may be NilNode)
//	Assign:                  [lhs, rhs], Text is the operator
//	ExprStmt, Emit:          [expr]
//	InternalCall:            [callee, args...], Text is the callee name
//	ExternalCall:            [callee, args...], Text is the method name
//	LowLevelCall:            [callee, args...], Text is call/delegatecall/…
//	Member:                  [base], Text is the member name
//	Index:                   [base, index]
//	Binary:                  [left, right], Text is the operator
//	Unary:                   [operand], Text is the operator
//	Conditional:             [cond, then, else]
//	New:                     none, Text is the created type
//	Ident, Literal:          none, Text is the name/literal text
type NodeKind uint8

const (
	KindInvalid NodeKind = iota
	KindBlock
	KindIf
	KindLoop
	KindReturn
	KindRequire
	KindRevert
	KindEmit
	KindVarDecl
	KindAssign
	KindExprStmt
	KindUnchecked
	KindAssembly
	KindInternalCall
	KindExternalCall
	KindLowLevelCall
	KindIdent
	KindMember
	KindIndex
	KindLiteral
	KindBinary
	KindUnary
	KindTuple
	KindConditional
	KindNew
	KindOther
)

func (k NodeKind) String() string {
	names := [...]string{
		KindInvalid:      "invalid",
		KindBlock:        "block",
		KindIf:           "if",
		KindLoop:         "loop",
		KindReturn:       "return",
		KindRequire:      "require",
		KindRevert:       "revert",
		KindEmit:         "emit",
		KindVarDecl:      "vardecl",
		KindAssign:       "assign",
		KindExprStmt:     "exprstmt",
		KindUnchecked:    "unchecked",
		KindAssembly:     "assembly",
		KindInternalCall: "internal-call",
		KindExternalCall: "external-call",
		KindLowLevelCall: "low-level-call",
		KindIdent:        "ident",
		KindMember:       "member",
		KindIndex:        "index",
		KindLiteral:      "literal",
		KindBinary:       "binary",
		KindUnary:        "unary",
		KindTuple:        "tuple",
		KindConditional:  "conditional",
		KindNew:          "new",
		KindOther:        "other",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "invalid"
}

// CallKind distinguishes the low-level call flavors.
type CallKind uint8

const (
	CallNone CallKind = iota
	CallCall
	CallDelegate
	CallStatic
	CallSend
	CallTransfer
)

func (c CallKind) String() string {
	switch c {
	case CallCall:
		return "call"
	case CallDelegate:
		return "delegatecall"
	case CallStatic:
		return "staticcall"
	case CallSend:
		return "send"
	case CallTransfer:
		return "transfer"
	default:
		return ""
	}
}

// Node is one arena entry. Ref fields resolve identifiers to their
// declarations where the builder could: VarRef for state-variable
// reads/writes, FnRef for internal calls to functions in the same unit.
type Node struct {
	Kind NodeKind
	Span model.Span
	Kids []NodeID
	Text string

	VarRef VarID
	FnRef  FunctionID

	Call           CallKind
	TransfersValue bool
	CapsGas        bool
}

type Param struct {
	Name string
	Type string
}

type Contract struct {
	ID   ContractID
	Name string
	Kind ContractKind
	Span model.Span

	// Bases holds the declared base names in source order; BaseIDs the
	// resolved contracts from the same unit, NilContract where the base
	// is declared elsewhere.
	Bases   []string
	BaseIDs []ContractID

	Functions []FunctionID
	Vars      []VarID
}

type Function struct {
	ID       FunctionID
	Contract ContractID
	Name     string
	Kind     FunctionKind
	Span     model.Span

	Visibility Visibility
	Mutability Mutability
	Modifiers  []string
	Params     []Param
	Returns    []Param

	// Body is NilNode for unimplemented functions (interface members,
	// abstract declarations).
	Body NodeID
}

// Signature returns the canonical form used for ABI selectors,
// e.g. "transfer(address,uint256)".
func (f *Function) Signature() string {
	sig := f.Name + "("
	for i, p := range f.Params {
		if i > 0 {
			sig += ","
		}
		sig += canonicalType(p.Type)
	}
	return sig + ")"
}

func canonicalType(t string) string {
	for _, loc := range []string{" storage", " memory", " calldata", " pointer", " ref", " payable"} {
		t = strings.ReplaceAll(t, loc, "")
	}
	t = strings.TrimPrefix(t, "struct ")
	t = strings.TrimPrefix(t, "enum ")
	t = strings.TrimPrefix(t, "contract ")
	t = strings.TrimPrefix(t, "interface ")
	switch t {
	case "uint":
		return "uint256"
	case "int":
		return "int256"
	case "byte":
		return "bytes1"
	}
	return t
}

type StateVar struct {
	ID       VarID
	Contract ContractID
	Name     string
	Type     string
	Span     model.Span

	Visibility Visibility
	// Constant covers both constant and immutable declarations; neither
	// occupies a storage slot.
	Constant bool
	Mapping  bool
	Array    bool
}

// Program is one lowered compilation unit. All slices are dense and
// indexed by the typed IDs above; iteration over them is deterministic.
type Program struct {
	Unit   string
	Source string

	Contracts []Contract
	Functions []Function
	Vars      []StateVar
	Nodes     []Node
}

// Node returns the arena entry for id, nil for NilNode.
func (p *Program) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(p.Nodes) {
		return nil
	}
	return &p.Nodes[id]
}

func (p *Program) Contract(id ContractID) *Contract {
	if id < 0 || int(id) >= len(p.Contracts) {
		return nil
	}
	return &p.Contracts[id]
}

func (p *Program) Function(id FunctionID) *Function {
	if id < 0 || int(id) >= len(p.Functions) {
		return nil
	}
	return &p.Functions[id]
}

func (p *Program) Var(id VarID) *StateVar {
	if id < 0 || int(id) >= len(p.Vars) {
		return nil
	}
	return &p.Vars[id]
}

func (p *Program) ContractByName(name string) (*Contract, bool) {
	for i := range p.Contracts {
		if p.Contracts[i].Name == name {
			return &p.Contracts[i], true
		}
	}
	return nil, false
}

// FunctionIn finds a function by name directly declared in contract c.
func (p *Program) FunctionIn(c ContractID, name string) (FunctionID, bool) {
	ct := p.Contract(c)
	if ct == nil {
		return NilFunction, false
	}
	for _, fid := range ct.Functions {
		if p.Functions[fid].Name == name {
			return fid, true
		}
	}
	return NilFunction, false
}
