// Package parsetree defines the input contract of the scanner: compilation
// units shaped like the compact AST an upstream Solidity frontend (solc)
// emits. The scanner never parses source text itself; it decodes these
// trees from JSON or receives them already assembled.
package parsetree

import (
	"encoding/json"
	"fmt"
)

// SourceUnit is one compilation unit: the tree of top-level declarations
// for a single source file. Source carries the raw text when the producer
// has it; it is only used for snippets and inline suppression markers.
type SourceUnit struct {
	Path   string  `json:"absolutePath"`
	Source string  `json:"source,omitempty"`
	Nodes  []*Node `json:"nodes"`
}

// Node is a single compact-AST node. One flat struct covers every node
// type; NodeType selects which fields are meaningful, matching how solc
// lays out its JSON.
type Node struct {
	ID       int    `json:"id,omitempty"`
	NodeType string `json:"nodeType"`
	Src      string `json:"src,omitempty"`
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind,omitempty"`

	// ContractDefinition
	ContractKind  string     `json:"contractKind,omitempty"`
	Abstract      bool       `json:"abstract,omitempty"`
	BaseContracts []*BaseRef `json:"baseContracts,omitempty"`
	Nodes         []*Node    `json:"nodes,omitempty"`

	// FunctionDefinition, ModifierDefinition
	Visibility       string         `json:"visibility,omitempty"`
	StateMutability  string         `json:"stateMutability,omitempty"`
	Virtual          bool           `json:"virtual,omitempty"`
	Implemented      bool           `json:"implemented,omitempty"`
	Modifiers        []*ModifierRef `json:"modifiers,omitempty"`
	Parameters       *ParameterList `json:"parameters,omitempty"`
	ReturnParameters *ParameterList `json:"returnParameters,omitempty"`
	Body             *Node          `json:"body,omitempty"`

	// VariableDeclaration
	StateVariable    bool              `json:"stateVariable,omitempty"`
	Constant         bool              `json:"constant,omitempty"`
	Mutability       string            `json:"mutability,omitempty"`
	StorageLocation  string            `json:"storageLocation,omitempty"`
	TypeName         *Node             `json:"typeName,omitempty"`
	TypeDescriptions *TypeDescriptions `json:"typeDescriptions,omitempty"`

	// Literal text or a VariableDeclaration initializer, depending on node.
	Value *ValueOrNode `json:"value,omitempty"`

	// Statements
	Statements               []*Node `json:"statements,omitempty"`
	Condition                *Node   `json:"condition,omitempty"`
	TrueBody                 *Node   `json:"trueBody,omitempty"`
	FalseBody                *Node   `json:"falseBody,omitempty"`
	InitializationExpression *Node   `json:"initializationExpression,omitempty"`
	LoopExpression           *Node   `json:"loopExpression,omitempty"`
	Declarations             []*Node `json:"declarations,omitempty"`
	InitialValue             *Node   `json:"initialValue,omitempty"`
	EventCall                *Node   `json:"eventCall,omitempty"`
	ErrorCall                *Node   `json:"errorCall,omitempty"`
	ExternalCall             *Node   `json:"externalCall,omitempty"`
	Clauses                  []*Node `json:"clauses,omitempty"`
	Block                    *Node   `json:"block,omitempty"`

	// Expressions
	Expression      *Node    `json:"expression,omitempty"`
	Arguments       []*Node  `json:"arguments,omitempty"`
	Names           []string `json:"names,omitempty"`
	Options         []*Node  `json:"options,omitempty"`
	MemberName      string   `json:"memberName,omitempty"`
	LeftHandSide    *Node    `json:"leftHandSide,omitempty"`
	RightHandSide   *Node    `json:"rightHandSide,omitempty"`
	LeftExpression  *Node    `json:"leftExpression,omitempty"`
	RightExpression *Node    `json:"rightExpression,omitempty"`
	SubExpression   *Node    `json:"subExpression,omitempty"`
	Operator        string   `json:"operator,omitempty"`
	Prefix          bool     `json:"prefix,omitempty"`
	BaseExpression  *Node    `json:"baseExpression,omitempty"`
	IndexExpression *Node    `json:"indexExpression,omitempty"`
	Components      []*Node  `json:"components,omitempty"`
	TrueExpression  *Node    `json:"trueExpression,omitempty"`
	FalseExpression *Node    `json:"falseExpression,omitempty"`
	HexValue        string   `json:"hexValue,omitempty"`

	ReferencedDeclaration int `json:"referencedDeclaration,omitempty"`

	// Type names
	PathNode  *Node        `json:"pathNode,omitempty"`
	KeyType   *Node        `json:"keyType,omitempty"`
	ValueType *Node        `json:"valueType,omitempty"`
	BaseType  *Node        `json:"baseType,omitempty"`
	Length    *ValueOrNode `json:"length,omitempty"`
}

// TypeDescriptions is solc's resolved type annotation on an expression.
type TypeDescriptions struct {
	TypeString     string `json:"typeString,omitempty"`
	TypeIdentifier string `json:"typeIdentifier,omitempty"`
}

// TypeString returns the resolved type of the node when the frontend
// provided one, falling back to rendering the declared type name.
func (n *Node) TypeString() string {
	if n == nil {
		return ""
	}
	if n.TypeDescriptions != nil && n.TypeDescriptions.TypeString != "" {
		return n.TypeDescriptions.TypeString
	}
	return RenderTypeName(n.TypeName)
}

// RenderTypeName flattens a type-name subtree into source-like text,
// e.g. "mapping(address => uint256)" or "uint256[]".
func RenderTypeName(t *Node) string {
	if t == nil {
		return ""
	}
	switch t.NodeType {
	case "ElementaryTypeName":
		return t.Name
	case "UserDefinedTypeName":
		if t.PathNode != nil && t.PathNode.Name != "" {
			return t.PathNode.Name
		}
		return t.Name
	case "Mapping":
		return fmt.Sprintf("mapping(%s => %s)", RenderTypeName(t.KeyType), RenderTypeName(t.ValueType))
	case "ArrayTypeName":
		base := RenderTypeName(t.BaseType)
		if t.Length != nil && t.Length.Text != "" {
			return base + "[" + t.Length.Text + "]"
		}
		return base + "[]"
	case "FunctionTypeName":
		return "function"
	default:
		return t.Name
	}
}

// BaseNames lists the declared base contracts in source order.
func (n *Node) BaseNames() []string {
	if len(n.BaseContracts) == 0 {
		return nil
	}
	out := make([]string, 0, len(n.BaseContracts))
	for _, b := range n.BaseContracts {
		if b != nil && b.Name != "" {
			out = append(out, b.Name)
		}
	}
	return out
}

// ModifierNames lists the invoked modifiers of a function in source order.
func (n *Node) ModifierNames() []string {
	if len(n.Modifiers) == 0 {
		return nil
	}
	out := make([]string, 0, len(n.Modifiers))
	for _, m := range n.Modifiers {
		if m != nil && m.Name != "" {
			out = append(out, m.Name)
		}
	}
	return out
}

// Params returns the parameter declarations, tolerating a nil list.
func (pl *ParameterList) Params() []*Node {
	if pl == nil {
		return nil
	}
	return pl.Parameters
}

// BaseRef is one entry of a contract's baseContracts list. It decodes
// both the solc shape {"baseName": {"name": "A"}} and a bare "A".
type BaseRef struct {
	Name string
}

func (b *BaseRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Name = s
		return nil
	}
	var obj struct {
		BaseName *struct {
			Name string `json:"name"`
		} `json:"baseName"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("base contract reference: %w", err)
	}
	if obj.BaseName != nil {
		b.Name = obj.BaseName.Name
	} else {
		b.Name = obj.Name
	}
	return nil
}

func (b *BaseRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"nodeType": "InheritanceSpecifier",
		"baseName": map[string]string{"name": b.Name},
	})
}

// ModifierRef is one entry of a function's modifier list. It decodes both
// {"modifierName": {"name": "onlyOwner"}, "arguments": [...]} and a bare
// "onlyOwner".
type ModifierRef struct {
	Name      string
	Arguments []*Node
}

func (m *ModifierRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		m.Name = s
		return nil
	}
	var obj struct {
		ModifierName *struct {
			Name string `json:"name"`
		} `json:"modifierName"`
		Name      string  `json:"name"`
		Arguments []*Node `json:"arguments"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("modifier invocation: %w", err)
	}
	if obj.ModifierName != nil {
		m.Name = obj.ModifierName.Name
	} else {
		m.Name = obj.Name
	}
	m.Arguments = obj.Arguments
	return nil
}

func (m *ModifierRef) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"nodeType":     "ModifierInvocation",
		"modifierName": map[string]string{"name": m.Name},
	}
	if len(m.Arguments) > 0 {
		out["arguments"] = m.Arguments
	}
	return json.Marshal(out)
}

// ParameterList decodes both solc's {"parameters": [...]} wrapper and a
// bare array of declarations.
type ParameterList struct {
	Parameters []*Node
}

func (pl *ParameterList) UnmarshalJSON(data []byte) error {
	var arr []*Node
	if err := json.Unmarshal(data, &arr); err == nil {
		pl.Parameters = arr
		return nil
	}
	var obj struct {
		Parameters []*Node `json:"parameters"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("parameter list: %w", err)
	}
	pl.Parameters = obj.Parameters
	return nil
}

func (pl *ParameterList) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"nodeType":   "ParameterList",
		"parameters": pl.Parameters,
	})
}

// ValueOrNode holds a field that solc types differently per node: a bare
// string on Literal, a full expression node on initializers.
type ValueOrNode struct {
	Text string
	Node *Node
}

func (v *ValueOrNode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.Text = s
		return nil
	}
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	v.Node = &n
	return nil
}

func (v *ValueOrNode) MarshalJSON() ([]byte, error) {
	if v.Node != nil {
		return json.Marshal(v.Node)
	}
	return json.Marshal(v.Text)
}
