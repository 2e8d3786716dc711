package parsetree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const solcShapedUnit = `{
  "absolutePath": "vault.sol",
  "nodeType": "SourceUnit",
  "nodes": [
    {
      "nodeType": "ContractDefinition",
      "contractKind": "contract",
      "name": "Vault",
      "src": "25:200:0",
      "baseContracts": [
        {"nodeType": "InheritanceSpecifier", "baseName": {"name": "Ownable"}}
      ],
      "nodes": [
        {
          "nodeType": "VariableDeclaration",
          "name": "balances",
          "stateVariable": true,
          "visibility": "internal",
          "src": "50:40:0",
          "typeName": {
            "nodeType": "Mapping",
            "keyType": {"nodeType": "ElementaryTypeName", "name": "address"},
            "valueType": {"nodeType": "ElementaryTypeName", "name": "uint256"}
          }
        },
        {
          "nodeType": "FunctionDefinition",
          "kind": "function",
          "name": "withdraw",
          "visibility": "public",
          "src": "100:120:0",
          "modifiers": [
            {"nodeType": "ModifierInvocation", "modifierName": {"name": "nonReentrant"}}
          ],
          "parameters": {
            "nodeType": "ParameterList",
            "parameters": [
              {"nodeType": "VariableDeclaration", "name": "amount",
               "typeName": {"nodeType": "ElementaryTypeName", "name": "uint256"}}
            ]
          },
          "body": {
            "nodeType": "Block",
            "statements": [
              {
                "nodeType": "ExpressionStatement",
                "expression": {
                  "nodeType": "Assignment",
                  "operator": "-=",
                  "leftHandSide": {
                    "nodeType": "IndexAccess",
                    "baseExpression": {"nodeType": "Identifier", "name": "balances"},
                    "indexExpression": {
                      "nodeType": "MemberAccess", "memberName": "sender",
                      "expression": {"nodeType": "Identifier", "name": "msg"}
                    }
                  },
                  "rightHandSide": {"nodeType": "Identifier", "name": "amount"}
                }
              }
            ]
          }
        }
      ]
    }
  ]
}`

func TestDecodeSolcShapedUnit(t *testing.T) {
	unit, err := Decode([]byte(solcShapedUnit))
	require.NoError(t, err)

	assert.Equal(t, "vault.sol", unit.Path)
	require.Len(t, unit.Nodes, 1)

	c := unit.Nodes[0]
	assert.Equal(t, "ContractDefinition", c.NodeType)
	assert.Equal(t, []string{"Ownable"}, c.BaseNames())
	require.Len(t, c.Nodes, 2)

	sv := c.Nodes[0]
	assert.True(t, sv.StateVariable)
	assert.Equal(t, "mapping(address => uint256)", sv.TypeString())

	fn := c.Nodes[1]
	assert.Equal(t, []string{"nonReentrant"}, fn.ModifierNames())
	require.Len(t, fn.Parameters.Params(), 1)
	assert.Equal(t, "uint256", fn.Parameters.Params()[0].TypeString())
	require.NotNil(t, fn.Body)
	require.Len(t, fn.Body.Statements, 1)
	assert.Equal(t, "-=", fn.Body.Statements[0].Expression.Operator)
}

func TestDecodeBareShapes(t *testing.T) {
	// Producers other than solc may emit bases, modifiers and parameters
	// as plain arrays of strings/declarations.
	raw := `{
	  "absolutePath": "t.sol",
	  "nodes": [{
	    "nodeType": "ContractDefinition", "name": "T",
	    "baseContracts": ["A", "B"],
	    "nodes": [{
	      "nodeType": "FunctionDefinition", "name": "f", "visibility": "external",
	      "modifiers": ["onlyOwner"],
	      "parameters": [{"nodeType": "VariableDeclaration", "name": "x",
	        "typeName": {"nodeType": "ElementaryTypeName", "name": "uint256"}}]
	    }]
	  }]
	}`
	unit, err := Decode([]byte(raw))
	require.NoError(t, err)

	c := unit.Nodes[0]
	assert.Equal(t, []string{"A", "B"}, c.BaseNames())
	fn := c.Nodes[0]
	assert.Equal(t, []string{"onlyOwner"}, fn.ModifierNames())
	assert.Len(t, fn.Parameters.Params(), 1)
}

func TestValueOrNodeRoundTrip(t *testing.T) {
	lit := Lit("42")
	data, err := json.Marshal(lit)
	require.NoError(t, err)

	var back Node
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "42", back.Value.Text)

	decl := StateVar("owner", "address")
	decl.Value = &ValueOrNode{Node: Member(Ident("msg"), "sender")}
	data, err = json.Marshal(decl)
	require.NoError(t, err)

	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.Value.Node)
	assert.Equal(t, "sender", back.Value.Node.MemberName)
}

func TestDecodeSolcOutputBanners(t *testing.T) {
	out := "JSON AST (compact format):\n\n" +
		"======= a.sol =======\n" +
		`{"absolutePath":"a.sol","nodeType":"SourceUnit","nodes":[{"nodeType":"ContractDefinition","name":"A"}]}` + "\n" +
		"======= b.sol =======\n" +
		`{"absolutePath":"b.sol","nodeType":"SourceUnit","nodes":[{"nodeType":"ContractDefinition","name":"B"}]}` + "\n"

	units, err := DecodeSolcOutput([]byte(out))
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "a.sol", units[0].Path)
	assert.Equal(t, "B", units[1].Nodes[0].Name)
}

func TestDecodeSolcOutputSingleObject(t *testing.T) {
	out := "Warning: something.\n{\n  \"absolutePath\": \"c.sol\",\n  \"nodes\": []\n}\n"
	units, err := DecodeSolcOutput([]byte(out))
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "c.sol", units[0].Path)
}

func TestDecodeSolcOutputEmpty(t *testing.T) {
	_, err := DecodeSolcOutput([]byte("nothing here"))
	assert.Error(t, err)
}

func TestRenderTypeName(t *testing.T) {
	arr := &Node{NodeType: "ArrayTypeName", BaseType: &Node{NodeType: "ElementaryTypeName", Name: "uint256"}}
	assert.Equal(t, "uint256[]", RenderTypeName(arr))

	arr.Length = &ValueOrNode{Text: "3"}
	assert.Equal(t, "uint256[3]", RenderTypeName(arr))

	udt := &Node{NodeType: "UserDefinedTypeName", PathNode: &Node{Name: "IERC20"}}
	assert.Equal(t, "IERC20", RenderTypeName(udt))
	assert.Equal(t, "", RenderTypeName(nil))
}
