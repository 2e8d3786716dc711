package ir

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pyrite-audit/pyrite/internal/model"
	"github.com/pyrite-audit/pyrite/internal/parsetree"
)

// MalformedInputError reports a compilation unit whose parse tree breaks
// the program model's structural invariants. It is fatal for that unit;
// other units in the same scan are unaffected.
type MalformedInputError struct {
	Unit   string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input in %s: %s", e.Unit, e.Reason)
}

// Build lowers one parse tree into a Program. The translation is
// deterministic: identical input yields an identical Program, including
// arena layout.
func Build(unit *parsetree.SourceUnit) (*Program, error) {
	if unit == nil {
		return nil, &MalformedInputError{Reason: "nil compilation unit"}
	}
	b := &builder{
		prog: &Program{Unit: unit.Path, Source: unit.Source},
		unit: unit,
		seen: make(map[*parsetree.Node]bool),
	}
	b.indexLines()
	if err := b.collectContracts(); err != nil {
		return nil, err
	}
	b.resolveBases()
	if err := b.collectMembers(); err != nil {
		return nil, err
	}
	if err := b.buildBodies(); err != nil {
		return nil, err
	}
	return b.prog, nil
}

type builder struct {
	prog *Program
	unit *parsetree.SourceUnit

	// seen enforces single ownership: a parse node reachable from two
	// positions means the input tree is aliased or cyclic.
	seen map[*parsetree.Node]bool

	bodies []*parsetree.Node // parse body per FunctionID, nil when absent
	lines  []int             // byte offset of each line start

	cur    ContractID
	scopes []map[string]bool
}

func (b *builder) fail(format string, args ...any) error {
	return &MalformedInputError{Unit: b.unit.Path, Reason: fmt.Sprintf(format, args...)}
}

func (b *builder) mark(n *parsetree.Node) error {
	if b.seen[n] {
		return b.fail("node %q reachable from more than one parent", n.NodeType)
	}
	b.seen[n] = true
	return nil
}

func (b *builder) indexLines() {
	src := b.prog.Source
	b.lines = append(b.lines, 0)
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			b.lines = append(b.lines, i+1)
		}
	}
}

func (b *builder) spanOf(n *parsetree.Node) (model.Span, error) {
	if n == nil || n.Src == "" {
		return model.Span{}, nil
	}
	parts := strings.Split(n.Src, ":")
	if len(parts) < 2 {
		return model.Span{}, b.fail("bad src %q on %s", n.Src, n.NodeType)
	}
	start, err1 := strconv.Atoi(parts[0])
	length, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || start < 0 || length < 0 {
		return model.Span{}, b.fail("bad src %q on %s", n.Src, n.NodeType)
	}
	if b.prog.Source != "" && start+length > len(b.prog.Source) {
		return model.Span{}, b.fail("src %q on %s exceeds source size %d", n.Src, n.NodeType, len(b.prog.Source))
	}
	sp := model.Span{File: b.prog.Unit, Start: start, End: start + length}
	if b.prog.Source != "" {
		line := sort.SearchInts(b.lines, start+1) - 1
		sp.Line = line + 1
		sp.Col = start - b.lines[line] + 1
	}
	return sp, nil
}

func (b *builder) collectContracts() error {
	byName := make(map[string]bool)
	for _, n := range b.unit.Nodes {
		if n == nil {
			return b.fail("null top-level node")
		}
		if err := b.mark(n); err != nil {
			return err
		}
		if n.NodeType != "ContractDefinition" {
			continue
		}
		if n.Name == "" {
			return b.fail("contract without a name")
		}
		if byName[n.Name] {
			return b.fail("duplicate contract %q", n.Name)
		}
		byName[n.Name] = true
		sp, err := b.spanOf(n)
		if err != nil {
			return err
		}
		kind := KContract
		switch n.ContractKind {
		case "interface":
			kind = KInterface
		case "library":
			kind = KLibrary
		}
		b.prog.Contracts = append(b.prog.Contracts, Contract{
			ID:    ContractID(len(b.prog.Contracts)),
			Name:  n.Name,
			Kind:  kind,
			Span:  sp,
			Bases: n.BaseNames(),
		})
	}
	return nil
}

func (b *builder) resolveBases() {
	byName := make(map[string]ContractID, len(b.prog.Contracts))
	for i := range b.prog.Contracts {
		byName[b.prog.Contracts[i].Name] = ContractID(i)
	}
	for i := range b.prog.Contracts {
		c := &b.prog.Contracts[i]
		c.BaseIDs = make([]ContractID, len(c.Bases))
		for j, name := range c.Bases {
			if id, ok := byName[name]; ok {
				c.BaseIDs[j] = id
			} else {
				c.BaseIDs[j] = NilContract
			}
		}
	}
}

func (b *builder) collectMembers() error {
	ci := 0
	for _, n := range b.unit.Nodes {
		if n.NodeType != "ContractDefinition" {
			continue
		}
		cid := ContractID(ci)
		ci++
		varNames := make(map[string]bool)
		for _, m := range n.Nodes {
			if m == nil {
				return b.fail("null member in contract %q", n.Name)
			}
			if err := b.mark(m); err != nil {
				return err
			}
			switch m.NodeType {
			case "VariableDeclaration":
				if m.Name == "" {
					return b.fail("state variable without a name in %q", n.Name)
				}
				if varNames[m.Name] {
					return b.fail("duplicate state variable %q in %q", m.Name, n.Name)
				}
				varNames[m.Name] = true
				if err := b.addStateVar(cid, m); err != nil {
					return err
				}
			case "FunctionDefinition", "ModifierDefinition":
				if err := b.addFunction(cid, m); err != nil {
					return err
				}
			default:
				// Events, structs, enums, errors, using-for: carried by
				// the parse tree but not modeled.
			}
		}
	}
	return nil
}

func (b *builder) addStateVar(cid ContractID, m *parsetree.Node) error {
	sp, err := b.spanOf(m)
	if err != nil {
		return err
	}
	typ := m.TypeString()
	v := StateVar{
		ID:         VarID(len(b.prog.Vars)),
		Contract:   cid,
		Name:       m.Name,
		Type:       typ,
		Span:       sp,
		Visibility: ParseVisibility(m.Visibility),
		Constant:   m.Constant || m.Mutability == "constant" || m.Mutability == "immutable",
		Mapping:    strings.HasPrefix(typ, "mapping("),
		Array:      strings.HasSuffix(typ, "]"),
	}
	b.prog.Vars = append(b.prog.Vars, v)
	c := &b.prog.Contracts[cid]
	c.Vars = append(c.Vars, v.ID)
	return nil
}

func (b *builder) addFunction(cid ContractID, m *parsetree.Node) error {
	sp, err := b.spanOf(m)
	if err != nil {
		return err
	}
	kind := FnFunction
	switch {
	case m.NodeType == "ModifierDefinition":
		kind = FnModifier
	case m.Kind == "constructor":
		kind = FnConstructor
	case m.Kind == "fallback":
		kind = FnFallback
	case m.Kind == "receive":
		kind = FnReceive
	}
	f := Function{
		ID:         FunctionID(len(b.prog.Functions)),
		Contract:   cid,
		Name:       m.Name,
		Kind:       kind,
		Span:       sp,
		Visibility: ParseVisibility(m.Visibility),
		Mutability: ParseMutability(m.StateMutability),
		Modifiers:  m.ModifierNames(),
		Params:     paramsOf(m.Parameters),
		Returns:    paramsOf(m.ReturnParameters),
		Body:       NilNode,
	}
	b.prog.Functions = append(b.prog.Functions, f)
	b.bodies = append(b.bodies, m.Body)
	c := &b.prog.Contracts[cid]
	c.Functions = append(c.Functions, f.ID)
	return nil
}

func paramsOf(pl *parsetree.ParameterList) []Param {
	decls := pl.Params()
	if len(decls) == 0 {
		return nil
	}
	out := make([]Param, 0, len(decls))
	for _, d := range decls {
		if d == nil {
			continue
		}
		out = append(out, Param{Name: d.Name, Type: d.TypeString()})
	}
	return out
}

func (b *builder) buildBodies() error {
	for i := range b.prog.Functions {
		body := b.bodies[i]
		if body == nil {
			continue
		}
		f := &b.prog.Functions[i]
		b.cur = f.Contract
		b.scopes = b.scopes[:0]
		top := make(map[string]bool)
		for _, p := range f.Params {
			if p.Name != "" {
				top[p.Name] = true
			}
		}
		for _, r := range f.Returns {
			if r.Name != "" {
				top[r.Name] = true
			}
		}
		b.scopes = append(b.scopes, top)
		id, err := b.buildStmt(body)
		if err != nil {
			return err
		}
		f.Body = id
	}
	b.bodies = nil
	return nil
}

func (b *builder) pushScope() { b.scopes = append(b.scopes, make(map[string]bool)) }
func (b *builder) popScope()  { b.scopes = b.scopes[:len(b.scopes)-1] }

func (b *builder) declareLocal(name string) {
	if name != "" && len(b.scopes) > 0 {
		b.scopes[len(b.scopes)-1][name] = true
	}
}

func (b *builder) isLocal(name string) bool {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if b.scopes[i][name] {
			return true
		}
	}
	return false
}

// lookupVar resolves a name to a state variable visible in contract c:
// its own declarations first, then declared bases right to left, depth
// first. The visited set keeps cyclic inheritance from hanging the
// builder; the cycle itself is diagnosed later, during fact building.
func (b *builder) lookupVar(c ContractID, name string) VarID {
	visited := make(map[ContractID]bool)
	var rec func(ContractID) VarID
	rec = func(id ContractID) VarID {
		if id < 0 || visited[id] {
			return NilVar
		}
		visited[id] = true
		ct := &b.prog.Contracts[id]
		for _, vid := range ct.Vars {
			if b.prog.Vars[vid].Name == name {
				return vid
			}
		}
		for i := len(ct.BaseIDs) - 1; i >= 0; i-- {
			if v := rec(ct.BaseIDs[i]); v != NilVar {
				return v
			}
		}
		return NilVar
	}
	return rec(c)
}

func (b *builder) lookupFn(c ContractID, name string) FunctionID {
	visited := make(map[ContractID]bool)
	var rec func(ContractID) FunctionID
	rec = func(id ContractID) FunctionID {
		if id < 0 || visited[id] {
			return NilFunction
		}
		visited[id] = true
		ct := &b.prog.Contracts[id]
		for _, fid := range ct.Functions {
			f := &b.prog.Functions[fid]
			if f.Kind != FnModifier && f.Name == name {
				return fid
			}
		}
		for i := len(ct.BaseIDs) - 1; i >= 0; i-- {
			if f := rec(ct.BaseIDs[i]); f != NilFunction {
				return f
			}
		}
		return NilFunction
	}
	return rec(c)
}

func (b *builder) newNode(kind NodeKind, sp model.Span) NodeID {
	b.prog.Nodes = append(b.prog.Nodes, Node{Kind: kind, Span: sp, VarRef: NilVar, FnRef: NilFunction})
	return NodeID(len(b.prog.Nodes) - 1)
}

func (b *builder) setKids(id NodeID, kids ...NodeID) {
	b.prog.Nodes[id].Kids = kids
}

func (b *builder) buildStmt(n *parsetree.Node) (NodeID, error) {
	if n == nil {
		return NilNode, b.fail("null statement")
	}
	if err := b.mark(n); err != nil {
		return NilNode, err
	}
	sp, err := b.spanOf(n)
	if err != nil {
		return NilNode, err
	}

	switch n.NodeType {
	case "Block", "UncheckedBlock":
		kind := KindBlock
		if n.NodeType == "UncheckedBlock" {
			kind = KindUnchecked
		}
		id := b.newNode(kind, sp)
		b.pushScope()
		kids := make([]NodeID, 0, len(n.Statements))
		for _, s := range n.Statements {
			k, err := b.buildStmt(s)
			if err != nil {
				return NilNode, err
			}
			kids = append(kids, k)
		}
		b.popScope()
		b.setKids(id, kids...)
		return id, nil

	case "IfStatement":
		id := b.newNode(KindIf, sp)
		cond, err := b.buildExpr(n.Condition)
		if err != nil {
			return NilNode, err
		}
		then, err := b.buildStmt(n.TrueBody)
		if err != nil {
			return NilNode, err
		}
		els := NilNode
		if n.FalseBody != nil {
			if els, err = b.buildStmt(n.FalseBody); err != nil {
				return NilNode, err
			}
		}
		b.setKids(id, cond, then, els)
		return id, nil

	case "ForStatement", "WhileStatement", "DoWhileStatement":
		id := b.newNode(KindLoop, sp)
		b.pushScope()
		defer b.popScope()
		cond := NilNode
		if n.Condition != nil {
			if cond, err = b.buildExpr(n.Condition); err != nil {
				return NilNode, err
			}
		}
		if n.Body == nil {
			return NilNode, b.fail("loop without a body")
		}
		kids := []NodeID{cond, NilNode}
		if n.InitializationExpression != nil {
			init, err := b.buildStmt(n.InitializationExpression)
			if err != nil {
				return NilNode, err
			}
			kids = append(kids, init)
		}
		if n.LoopExpression != nil {
			post, err := b.buildStmt(n.LoopExpression)
			if err != nil {
				return NilNode, err
			}
			kids = append(kids, post)
		}
		body, err := b.buildStmt(n.Body)
		if err != nil {
			return NilNode, err
		}
		kids[1] = body
		b.setKids(id, kids...)
		return id, nil

	case "Return":
		id := b.newNode(KindReturn, sp)
		if n.Expression != nil {
			e, err := b.buildExpr(n.Expression)
			if err != nil {
				return NilNode, err
			}
			b.setKids(id, e)
		}
		return id, nil

	case "ExpressionStatement":
		if n.Expression == nil {
			return NilNode, b.fail("expression statement without expression")
		}
		e, err := b.buildExpr(n.Expression)
		if err != nil {
			return NilNode, err
		}
		// require/revert and assignments stand on their own; anything
		// else keeps the statement wrapper.
		switch b.prog.Nodes[e].Kind {
		case KindRequire, KindRevert, KindAssign:
			return e, nil
		}
		id := b.newNode(KindExprStmt, sp)
		b.setKids(id, e)
		return id, nil

	case "VariableDeclarationStatement":
		id := b.newNode(KindVarDecl, sp)
		names := make([]string, 0, len(n.Declarations))
		for _, d := range n.Declarations {
			if d == nil {
				continue
			}
			if err := b.mark(d); err != nil {
				return NilNode, err
			}
			b.declareLocal(d.Name)
			names = append(names, d.Name)
		}
		b.prog.Nodes[id].Text = strings.Join(names, ",")
		init := NilNode
		if n.InitialValue != nil {
			if init, err = b.buildExpr(n.InitialValue); err != nil {
				return NilNode, err
			}
		}
		b.setKids(id, init)
		return id, nil

	case "EmitStatement":
		id := b.newNode(KindEmit, sp)
		if n.EventCall != nil {
			e, err := b.buildExpr(n.EventCall)
			if err != nil {
				return NilNode, err
			}
			b.setKids(id, e)
		}
		return id, nil

	case "RevertStatement":
		id := b.newNode(KindRevert, sp)
		if n.ErrorCall != nil {
			e, err := b.buildExpr(n.ErrorCall)
			if err != nil {
				return NilNode, err
			}
			b.setKids(id, e)
		}
		return id, nil

	case "TryStatement":
		id := b.newNode(KindOther, sp)
		b.prog.Nodes[id].Text = "try"
		kids := []NodeID{}
		if n.ExternalCall != nil {
			e, err := b.buildExpr(n.ExternalCall)
			if err != nil {
				return NilNode, err
			}
			kids = append(kids, e)
		}
		for _, cl := range n.Clauses {
			if cl == nil || cl.Block == nil {
				continue
			}
			if err := b.mark(cl); err != nil {
				return NilNode, err
			}
			blk, err := b.buildStmt(cl.Block)
			if err != nil {
				return NilNode, err
			}
			kids = append(kids, blk)
		}
		b.setKids(id, kids...)
		return id, nil

	case "InlineAssembly":
		return b.newNode(KindAssembly, sp), nil

	case "PlaceholderStatement":
		id := b.newNode(KindOther, sp)
		b.prog.Nodes[id].Text = "_"
		return id, nil

	case "Break", "Continue":
		id := b.newNode(KindOther, sp)
		b.prog.Nodes[id].Text = strings.ToLower(n.NodeType)
		return id, nil

	default:
		id := b.newNode(KindOther, sp)
		b.prog.Nodes[id].Text = n.NodeType
		return id, nil
	}
}

func (b *builder) buildExpr(n *parsetree.Node) (NodeID, error) {
	if n == nil {
		return NilNode, b.fail("null expression")
	}
	if err := b.mark(n); err != nil {
		return NilNode, err
	}
	sp, err := b.spanOf(n)
	if err != nil {
		return NilNode, err
	}

	switch n.NodeType {
	case "Identifier":
		id := b.newNode(KindIdent, sp)
		b.prog.Nodes[id].Text = n.Name
		if !b.isLocal(n.Name) {
			b.prog.Nodes[id].VarRef = b.lookupVar(b.cur, n.Name)
		}
		return id, nil

	case "MemberAccess":
		id := b.newNode(KindMember, sp)
		b.prog.Nodes[id].Text = n.MemberName
		base, err := b.buildExpr(n.Expression)
		if err != nil {
			return NilNode, err
		}
		b.setKids(id, base)
		return id, nil

	case "IndexAccess":
		id := b.newNode(KindIndex, sp)
		base, err := b.buildExpr(n.BaseExpression)
		if err != nil {
			return NilNode, err
		}
		idx := NilNode
		if n.IndexExpression != nil {
			if idx, err = b.buildExpr(n.IndexExpression); err != nil {
				return NilNode, err
			}
		}
		b.setKids(id, base, idx)
		return id, nil

	case "Literal":
		id := b.newNode(KindLiteral, sp)
		text := n.HexValue
		if n.Value != nil && n.Value.Text != "" {
			text = n.Value.Text
		}
		b.prog.Nodes[id].Text = text
		return id, nil

	case "Assignment":
		id := b.newNode(KindAssign, sp)
		b.prog.Nodes[id].Text = n.Operator
		lhs, err := b.buildExpr(n.LeftHandSide)
		if err != nil {
			return NilNode, err
		}
		rhs, err := b.buildExpr(n.RightHandSide)
		if err != nil {
			return NilNode, err
		}
		b.setKids(id, lhs, rhs)
		return id, nil

	case "BinaryOperation":
		id := b.newNode(KindBinary, sp)
		b.prog.Nodes[id].Text = n.Operator
		l, err := b.buildExpr(n.LeftExpression)
		if err != nil {
			return NilNode, err
		}
		r, err := b.buildExpr(n.RightExpression)
		if err != nil {
			return NilNode, err
		}
		b.setKids(id, l, r)
		return id, nil

	case "UnaryOperation":
		id := b.newNode(KindUnary, sp)
		b.prog.Nodes[id].Text = n.Operator
		x, err := b.buildExpr(n.SubExpression)
		if err != nil {
			return NilNode, err
		}
		b.setKids(id, x)
		return id, nil

	case "TupleExpression":
		id := b.newNode(KindTuple, sp)
		kids := make([]NodeID, 0, len(n.Components))
		for _, c := range n.Components {
			if c == nil {
				kids = append(kids, NilNode)
				continue
			}
			k, err := b.buildExpr(c)
			if err != nil {
				return NilNode, err
			}
			kids = append(kids, k)
		}
		b.setKids(id, kids...)
		return id, nil

	case "Conditional":
		id := b.newNode(KindConditional, sp)
		cond, err := b.buildExpr(n.Condition)
		if err != nil {
			return NilNode, err
		}
		t, err := b.buildExpr(n.TrueExpression)
		if err != nil {
			return NilNode, err
		}
		f, err := b.buildExpr(n.FalseExpression)
		if err != nil {
			return NilNode, err
		}
		b.setKids(id, cond, t, f)
		return id, nil

	case "NewExpression":
		id := b.newNode(KindNew, sp)
		b.prog.Nodes[id].Text = parsetree.RenderTypeName(n.TypeName)
		return id, nil

	case "ElementaryTypeNameExpression":
		id := b.newNode(KindIdent, sp)
		name := n.Name
		if name == "" {
			name = parsetree.RenderTypeName(n.TypeName)
		}
		b.prog.Nodes[id].Text = name
		return id, nil

	case "FunctionCall":
		return b.buildCall(n, sp)

	case "FunctionCallOptions":
		// Options without an invocation; lower the wrapped expression.
		return b.buildExpr(n.Expression)

	default:
		id := b.newNode(KindOther, sp)
		b.prog.Nodes[id].Text = n.NodeType
		return id, nil
	}
}

var lowLevelMembers = map[string]CallKind{
	"call":         CallCall,
	"delegatecall": CallDelegate,
	"staticcall":   CallStatic,
	"send":         CallSend,
	"transfer":     CallTransfer,
}

// buildCall classifies a function-call expression into require/revert,
// internal, external or low-level call nodes. Classification is purely
// structural: member name, callee shape, and whatever type information
// the frontend attached.
func (b *builder) buildCall(n *parsetree.Node, sp model.Span) (NodeID, error) {
	callee := n.Expression
	transfersValue := false
	capsGas := false
	if callee != nil && callee.NodeType == "FunctionCallOptions" {
		if err := b.mark(callee); err != nil {
			return NilNode, err
		}
		for _, name := range callee.Names {
			switch name {
			case "value":
				transfersValue = true
			case "gas":
				capsGas = true
			}
		}
		callee = callee.Expression
	}
	if callee == nil {
		return NilNode, b.fail("call without callee")
	}

	buildArgs := func() ([]NodeID, error) {
		kids := make([]NodeID, 0, len(n.Arguments))
		for _, a := range n.Arguments {
			if a == nil {
				return nil, b.fail("null call argument")
			}
			k, err := b.buildExpr(a)
			if err != nil {
				return nil, err
			}
			kids = append(kids, k)
		}
		return kids, nil
	}

	if callee.NodeType == "Identifier" {
		switch callee.Name {
		case "require", "assert":
			if err := b.mark(callee); err != nil {
				return NilNode, err
			}
			id := b.newNode(KindRequire, sp)
			b.prog.Nodes[id].Text = callee.Name
			args, err := buildArgs()
			if err != nil {
				return NilNode, err
			}
			b.setKids(id, args...)
			return id, nil
		case "revert":
			if err := b.mark(callee); err != nil {
				return NilNode, err
			}
			id := b.newNode(KindRevert, sp)
			args, err := buildArgs()
			if err != nil {
				return NilNode, err
			}
			b.setKids(id, args...)
			return id, nil
		}
		id := b.newNode(KindInternalCall, sp)
		b.prog.Nodes[id].Text = callee.Name
		b.prog.Nodes[id].FnRef = b.lookupFn(b.cur, callee.Name)
		calleeID, err := b.buildExpr(callee)
		if err != nil {
			return NilNode, err
		}
		args, err := buildArgs()
		if err != nil {
			return NilNode, err
		}
		b.setKids(id, append([]NodeID{calleeID}, args...)...)
		return id, nil
	}

	if callee.NodeType == "MemberAccess" {
		member := callee.MemberName
		kind, text := b.classifyMemberCall(callee, len(n.Arguments))
		id := b.newNode(kind, sp)
		b.prog.Nodes[id].Text = text
		if kind == KindLowLevelCall {
			b.prog.Nodes[id].Call = lowLevelMembers[member]
			if b.prog.Nodes[id].Call == CallSend || b.prog.Nodes[id].Call == CallTransfer {
				transfersValue = true
			}
		}
		b.prog.Nodes[id].TransfersValue = transfersValue
		b.prog.Nodes[id].CapsGas = capsGas
		calleeID, err := b.buildExpr(callee)
		if err != nil {
			return NilNode, err
		}
		args, err := buildArgs()
		if err != nil {
			return NilNode, err
		}
		b.setKids(id, append([]NodeID{calleeID}, args...)...)
		return id, nil
	}

	// Casts and exotic callees (new C(), f()(), type conversions).
	id := b.newNode(KindInternalCall, sp)
	if n.Kind == "typeConversion" || callee.NodeType == "ElementaryTypeNameExpression" {
		b.prog.Nodes[id].Text = callee.Name
	}
	calleeID, err := b.buildExpr(callee)
	if err != nil {
		return NilNode, err
	}
	if b.prog.Nodes[id].Text == "" {
		b.prog.Nodes[id].Text = b.prog.Nodes[calleeID].Text
	}
	args, err := buildArgs()
	if err != nil {
		return NilNode, err
	}
	b.setKids(id, append([]NodeID{calleeID}, args...)...)
	return id, nil
}

// classifyMemberCall decides whether base.member(...) crosses a contract
// boundary. transfer and send are ambiguous between the address builtins
// and token methods; argument count and the base's type break the tie.
func (b *builder) classifyMemberCall(callee *parsetree.Node, argc int) (NodeKind, string) {
	member := callee.MemberName
	base := callee.Expression

	if _, low := lowLevelMembers[member]; low {
		ambiguous := member == "send" || member == "transfer"
		if !ambiguous {
			return KindLowLevelCall, member
		}
		if argc == 1 && !b.baseIsContractTyped(base) {
			return KindLowLevelCall, member
		}
		return KindExternalCall, member
	}

	if base != nil && base.NodeType == "Identifier" && base.Name == "this" {
		return KindExternalCall, member
	}
	if b.baseIsContractTyped(base) {
		return KindExternalCall, member
	}
	return KindInternalCall, member
}

func (b *builder) baseIsContractTyped(base *parsetree.Node) bool {
	t := b.baseTypeOf(base)
	if t == "" {
		return false
	}
	switch {
	case strings.HasPrefix(t, "contract "), strings.HasPrefix(t, "interface "):
		return true
	case strings.HasPrefix(t, "mapping("), strings.HasSuffix(t, "]"):
		return false
	case strings.HasPrefix(t, "library "), strings.HasPrefix(t, "type("):
		return false
	}
	// User-defined type names are capitalized by convention; elementary
	// types never are.
	return t != "" && t[0] >= 'A' && t[0] <= 'Z'
}

func (b *builder) baseTypeOf(base *parsetree.Node) string {
	if base == nil {
		return ""
	}
	if base.TypeDescriptions != nil && base.TypeDescriptions.TypeString != "" {
		return base.TypeDescriptions.TypeString
	}
	switch base.NodeType {
	case "Identifier":
		if b.isLocal(base.Name) {
			return ""
		}
		if vid := b.lookupVar(b.cur, base.Name); vid != NilVar {
			return b.prog.Vars[vid].Type
		}
	case "IndexAccess":
		// token registries: tokens[i].transfer(...)
		bt := b.baseTypeOf(base.BaseExpression)
		if strings.HasPrefix(bt, "mapping(") {
			if i := strings.Index(bt, "=> "); i >= 0 {
				return strings.TrimSuffix(bt[i+3:], ")")
			}
		}
		return strings.TrimSuffix(bt, "[]")
	case "FunctionCall":
		// casts: IERC20(addr).transfer(...)
		if c := base.Expression; c != nil && c.NodeType == "Identifier" {
			if c.Name != "" && c.Name[0] >= 'A' && c.Name[0] <= 'Z' {
				return c.Name
			}
		}
	}
	return ""
}
