package parsetree

// Constructors for assembling units programmatically. Frontends that do
// not go through JSON, and tests, build trees with these and then set
// any extra fields directly.

func Unit(path, source string, nodes ...*Node) *SourceUnit {
	return &SourceUnit{Path: path, Source: source, Nodes: nodes}
}

func Contract(name string, members ...*Node) *Node {
	return &Node{NodeType: "ContractDefinition", ContractKind: "contract", Name: name, Nodes: members}
}

func Interface(name string, members ...*Node) *Node {
	c := Contract(name, members...)
	c.ContractKind = "interface"
	return c
}

func Library(name string, members ...*Node) *Node {
	c := Contract(name, members...)
	c.ContractKind = "library"
	return c
}

// WithBases attaches base contract names to a contract and returns it.
func WithBases(c *Node, bases ...string) *Node {
	for _, b := range bases {
		c.BaseContracts = append(c.BaseContracts, &BaseRef{Name: b})
	}
	return c
}

func Function(name, visibility string, body *Node) *Node {
	return &Node{
		NodeType:    "FunctionDefinition",
		Kind:        "function",
		Name:        name,
		Visibility:  visibility,
		Body:        body,
		Implemented: body != nil,
	}
}

// WithModifiers attaches modifier invocations to a function and returns it.
func WithModifiers(fn *Node, names ...string) *Node {
	for _, m := range names {
		fn.Modifiers = append(fn.Modifiers, &ModifierRef{Name: m})
	}
	return fn
}

// WithParams attaches parameter declarations to a function and returns it.
func WithParams(fn *Node, params ...*Node) *Node {
	fn.Parameters = &ParameterList{Parameters: params}
	return fn
}

func Constructor(body *Node) *Node {
	fn := Function("", "public", body)
	fn.Kind = "constructor"
	return fn
}

func Fallback(body *Node) *Node {
	fn := Function("", "external", body)
	fn.Kind = "fallback"
	return fn
}

func Receive(body *Node) *Node {
	fn := Function("", "external", body)
	fn.Kind = "receive"
	fn.StateMutability = "payable"
	return fn
}

func Modifier(name string, body *Node) *Node {
	return &Node{NodeType: "ModifierDefinition", Name: name, Visibility: "internal", Body: body, Implemented: body != nil}
}

func Param(name, typ string) *Node {
	return &Node{
		NodeType: "VariableDeclaration",
		Name:     name,
		TypeName: &Node{NodeType: "ElementaryTypeName", Name: typ},
	}
}

func StateVar(name, typ string) *Node {
	v := Param(name, typ)
	v.StateVariable = true
	v.Visibility = "internal"
	return v
}

func Event(name string, params ...*Node) *Node {
	return &Node{NodeType: "EventDefinition", Name: name, Parameters: &ParameterList{Parameters: params}}
}

func Block(stmts ...*Node) *Node {
	return &Node{NodeType: "Block", Statements: stmts}
}

func ExprStmt(e *Node) *Node {
	return &Node{NodeType: "ExpressionStatement", Expression: e}
}

func Assign(lhs, rhs *Node) *Node {
	return ExprStmt(&Node{NodeType: "Assignment", Operator: "=", LeftHandSide: lhs, RightHandSide: rhs})
}

func OpAssign(op string, lhs, rhs *Node) *Node {
	return ExprStmt(&Node{NodeType: "Assignment", Operator: op, LeftHandSide: lhs, RightHandSide: rhs})
}

func If(cond, then, els *Node) *Node {
	return &Node{NodeType: "IfStatement", Condition: cond, TrueBody: then, FalseBody: els}
}

func ForLoop(cond, body *Node) *Node {
	return &Node{NodeType: "ForStatement", Condition: cond, Body: body}
}

func While(cond, body *Node) *Node {
	return &Node{NodeType: "WhileStatement", Condition: cond, Body: body}
}

func Return(e *Node) *Node {
	return &Node{NodeType: "Return", Expression: e}
}

func Require(args ...*Node) *Node {
	return ExprStmt(&Node{NodeType: "FunctionCall", Kind: "functionCall", Expression: Ident("require"), Arguments: args})
}

func Revert(args ...*Node) *Node {
	return ExprStmt(&Node{NodeType: "FunctionCall", Kind: "functionCall", Expression: Ident("revert"), Arguments: args})
}

func Emit(event string, args ...*Node) *Node {
	return &Node{
		NodeType:  "EmitStatement",
		EventCall: &Node{NodeType: "FunctionCall", Kind: "functionCall", Expression: Ident(event), Arguments: args},
	}
}

func Unchecked(stmts ...*Node) *Node {
	return &Node{NodeType: "UncheckedBlock", Statements: stmts}
}

func Assembly() *Node {
	return &Node{NodeType: "InlineAssembly"}
}

// DeclStmt declares a local variable, optionally initialized.
func DeclStmt(name, typ string, init *Node) *Node {
	return &Node{
		NodeType:     "VariableDeclarationStatement",
		Declarations: []*Node{Param(name, typ)},
		InitialValue: init,
	}
}

func Ident(name string) *Node {
	return &Node{NodeType: "Identifier", Name: name}
}

func Member(base *Node, member string) *Node {
	return &Node{NodeType: "MemberAccess", Expression: base, MemberName: member}
}

func Index(base, idx *Node) *Node {
	return &Node{NodeType: "IndexAccess", BaseExpression: base, IndexExpression: idx}
}

func Call(callee *Node, args ...*Node) *Node {
	return &Node{NodeType: "FunctionCall", Kind: "functionCall", Expression: callee, Arguments: args}
}

// CallValue wraps a callee in call options carrying {value: v}, as in
// target.call{value: v}("").
func CallValue(callee, value *Node, args ...*Node) *Node {
	opts := &Node{NodeType: "FunctionCallOptions", Expression: callee, Names: []string{"value"}, Options: []*Node{value}}
	return &Node{NodeType: "FunctionCall", Kind: "functionCall", Expression: opts, Arguments: args}
}

func Bin(op string, l, r *Node) *Node {
	return &Node{NodeType: "BinaryOperation", Operator: op, LeftExpression: l, RightExpression: r}
}

func Un(op string, x *Node) *Node {
	return &Node{NodeType: "UnaryOperation", Operator: op, Prefix: true, SubExpression: x}
}

func Lit(text string) *Node {
	return &Node{NodeType: "Literal", Kind: "number", Value: &ValueOrNode{Text: text}}
}

func StrLit(text string) *Node {
	return &Node{NodeType: "Literal", Kind: "string", Value: &ValueOrNode{Text: text}}
}

func Tuple(elems ...*Node) *Node {
	return &Node{NodeType: "TupleExpression", Components: elems}
}
