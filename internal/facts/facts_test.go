package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrite-audit/pyrite/internal/ir"
	pt "github.com/pyrite-audit/pyrite/internal/parsetree"
)

// withdrawUnit models the classic vulnerable withdrawal: an external
// value transfer followed by the balance update.
func withdrawUnit() *pt.SourceUnit {
	return pt.Unit("vault.sol", "",
		pt.Contract("Vault",
			pt.StateVar("balances", "mapping(address => uint256)"),
			pt.StateVar("total", "uint256"),
			pt.WithParams(
				pt.Function("withdraw", "public", pt.Block(
					pt.Require(pt.Bin(">=", pt.Index(pt.Ident("balances"), pt.Member(pt.Ident("msg"), "sender")), pt.Ident("amount"))),
					pt.ExprStmt(pt.CallValue(pt.Member(pt.Member(pt.Ident("msg"), "sender"), "call"), pt.Ident("amount"), pt.StrLit(""))),
					pt.OpAssign("-=", pt.Index(pt.Ident("balances"), pt.Member(pt.Ident("msg"), "sender")), pt.Ident("amount")),
				)),
				pt.Param("amount", "uint256"),
			),
			pt.WithParams(
				pt.Function("deposit", "public", pt.Block(
					pt.OpAssign("+=", pt.Index(pt.Ident("balances"), pt.Member(pt.Ident("msg"), "sender")), pt.Ident("amount")),
					pt.OpAssign("+=", pt.Ident("total"), pt.Ident("amount")),
				)),
				pt.Param("amount", "uint256"),
			),
		),
	)
}

func TestEffectsWriteAfterExternalCall(t *testing.T) {
	prog := buildProgram(t, withdrawUnit())
	idx := Build(prog)

	withdraw, ok := prog.FunctionIn(0, "withdraw")
	require.True(t, ok)

	require.Len(t, idx.ExternalCalls[withdraw], 1)
	ec := idx.ExternalCalls[withdraw][0]
	assert.Equal(t, ir.KindLowLevelCall, ec.Kind)
	assert.Equal(t, ir.CallCall, ec.Call)
	assert.True(t, ec.TransfersValue)
	assert.False(t, ec.Checked)
	assert.Equal(t, "msg.sender", ec.Target)

	writes := idx.Writes[withdraw]
	require.Len(t, writes, 1)
	assert.True(t, writes[0].AfterExternalCall)
	assert.True(t, writes[0].Compound)
	assert.Equal(t, "balances", prog.Vars[writes[0].Var].Name)

	// The guard read happens before the call.
	var guardRead *Access
	for i := range idx.Reads[withdraw] {
		if prog.Vars[idx.Reads[withdraw][i].Var].Name == "balances" && !idx.Reads[withdraw][i].Compound {
			guardRead = &idx.Reads[withdraw][i]
			break
		}
	}
	require.NotNil(t, guardRead)
	assert.False(t, guardRead.AfterExternalCall)
}

func TestEffectsWriteBeforeCall(t *testing.T) {
	unit := pt.Unit("safe.sol", "",
		pt.Contract("SafeVault",
			pt.StateVar("balances", "mapping(address => uint256)"),
			pt.WithParams(
				pt.Function("withdraw", "public", pt.Block(
					pt.OpAssign("-=", pt.Index(pt.Ident("balances"), pt.Member(pt.Ident("msg"), "sender")), pt.Ident("amount")),
					pt.ExprStmt(pt.CallValue(pt.Member(pt.Member(pt.Ident("msg"), "sender"), "call"), pt.Ident("amount"), pt.StrLit(""))),
				)),
				pt.Param("amount", "uint256"),
			),
		),
	)
	prog := buildProgram(t, unit)
	idx := Build(prog)

	withdraw, _ := prog.FunctionIn(0, "withdraw")
	writes := idx.Writes[withdraw]
	require.Len(t, writes, 1)
	assert.False(t, writes[0].AfterExternalCall)
	assert.Empty(t, idx.WritesAfterCall(withdraw))
}

func TestEffectsAssignmentEvaluationOrder(t *testing.T) {
	// total = token.balanceOf(this): the call happens before the store,
	// so the write is marked after-call.
	unit := pt.Unit("o.sol", "",
		pt.Contract("Oracle",
			pt.StateVar("token", "IERC20"),
			pt.StateVar("total", "uint256"),
			pt.Function("sync", "public", pt.Block(
				pt.Assign(pt.Ident("total"), pt.Call(pt.Member(pt.Ident("token"), "balanceOf"), pt.Ident("this"))),
			)),
		),
	)
	prog := buildProgram(t, unit)
	idx := Build(prog)

	sync, _ := prog.FunctionIn(0, "sync")
	require.Len(t, idx.ExternalCalls[sync], 1)
	assert.True(t, idx.ExternalCalls[sync][0].Checked)

	writes := idx.Writes[sync]
	require.Len(t, writes, 1)
	assert.True(t, writes[0].AfterExternalCall)
}

func TestCallGraph(t *testing.T) {
	unit := pt.Unit("g.sol", "",
		pt.Contract("G",
			pt.StateVar("x", "uint256"),
			pt.Function("entry", "external", pt.Block(
				pt.ExprStmt(pt.Call(pt.Ident("inner"))),
				pt.ExprStmt(pt.Call(pt.Ident("inner"))),
			)),
			pt.Function("inner", "internal", pt.Block(
				pt.ExprStmt(pt.Call(pt.Member(pt.Ident("target"), "call"), pt.Ident("data"))),
			)),
			pt.Function("pureHelper", "internal", pt.Block()),
		),
	)
	prog := buildProgram(t, unit)
	idx := Build(prog)

	entry, _ := prog.FunctionIn(0, "entry")
	inner, _ := prog.FunctionIn(0, "inner")
	helper, _ := prog.FunctionIn(0, "pureHelper")

	assert.Equal(t, []ir.FunctionID{inner}, idx.Calls[entry])
	assert.Equal(t, []ir.FunctionID{entry}, idx.Callers[inner])

	// entry reaches an external call transitively, helper does not.
	assert.True(t, idx.ReachesExternal[entry])
	assert.True(t, idx.ReachesExternal[inner])
	assert.False(t, idx.ReachesExternal[helper])
}

func TestStorageSlots(t *testing.T) {
	unit := pt.Unit("s.sol", "",
		pt.Contract("Base",
			pt.StateVar("a", "uint256"),
			pt.StateVar("b", "uint256"),
		),
		pt.WithBases(pt.Contract("Child",
			pt.StateVar("c", "uint256"),
		), "Base"),
	)
	// Constants take no slot.
	cv := pt.StateVar("MAX", "uint256")
	cv.Constant = true
	unit.Nodes[0].Nodes = append(unit.Nodes[0].Nodes, cv)

	prog := buildProgram(t, unit)
	idx := Build(prog)

	child, _ := prog.ContractByName("Child")
	slots := idx.Slots[child.ID]
	require.Len(t, slots, 3)

	// Base variables first, then the child's.
	assert.Equal(t, "a", prog.Vars[slots[0].Var].Name)
	assert.Equal(t, 0, slots[0].Slot)
	assert.Equal(t, "b", prog.Vars[slots[1].Var].Name)
	assert.Equal(t, "c", prog.Vars[slots[2].Var].Name)
	assert.Equal(t, 2, slots[2].Slot)

	slot, ok := idx.SlotOf(child.ID, slots[2].Var)
	require.True(t, ok)
	assert.Equal(t, 2, slot)
}

func TestSelectors(t *testing.T) {
	unit := pt.Unit("t.sol", "",
		pt.Contract("Token",
			pt.WithParams(pt.Function("transfer", "external", pt.Block()),
				pt.Param("to", "address"), pt.Param("amount", "uint256")),
			pt.WithParams(pt.Function("balanceOf", "external", pt.Block()),
				pt.Param("who", "address")),
			pt.Function("internalThing", "internal", pt.Block()),
		),
	)
	prog := buildProgram(t, unit)
	idx := Build(prog)

	sels := idx.Selectors[0]
	require.Len(t, sels, 2)
	// Sorted by signature: balanceOf before transfer.
	assert.Equal(t, "balanceOf(address)", sels[0].Signature)
	assert.Equal(t, "0x70a08231", sels[0].Hex())
	assert.Equal(t, "transfer(address,uint256)", sels[1].Signature)
	assert.Equal(t, "0xa9059cbb", sels[1].Hex())
}

func TestWellKnownConstants(t *testing.T) {
	assert.Equal(t,
		"0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc",
		EIP1967ImplementationSlot)
	assert.Equal(t,
		"0xb53127684a568b3173ae13b9f8a6016e243e63b6e8ee1178d6a717850b5d6103",
		EIP1967AdminSlot)
	assert.Equal(t, SelectorOf("transfer(address,uint256)"), SelTransfer)
}

func TestMethodsResolveOverrides(t *testing.T) {
	unit := pt.Unit("m.sol", "",
		pt.Contract("Base",
			pt.Function("act", "public", pt.Block()),
			pt.Function("baseOnly", "public", pt.Block()),
		),
		pt.WithBases(pt.Contract("Child",
			pt.Function("act", "public", pt.Block()),
		), "Base"),
	)
	prog := buildProgram(t, unit)
	idx := Build(prog)

	child, _ := prog.ContractByName("Child")
	methods := idx.Methods(child.ID)
	require.Len(t, methods, 2)

	// The child's override shadows the base declaration.
	childAct, _ := prog.FunctionIn(child.ID, "act")
	assert.Equal(t, childAct, methods[0])
	assert.Equal(t, "baseOnly", prog.Functions[methods[1]].Name)
}

func TestModifierResolution(t *testing.T) {
	unit := pt.Unit("mod.sol", "",
		pt.Contract("Auth",
			pt.StateVar("owner", "address"),
			pt.Modifier("onlyOwner", pt.Block(
				pt.Require(pt.Bin("==", pt.Member(pt.Ident("msg"), "sender"), pt.Ident("owner"))),
				&pt.Node{NodeType: "PlaceholderStatement"},
			)),
		),
		pt.WithBases(pt.Contract("Vault"), "Auth"),
	)
	prog := buildProgram(t, unit)
	idx := Build(prog)

	vault, _ := prog.ContractByName("Vault")
	mid, ok := idx.ResolveModifier(vault.ID, "onlyOwner")
	require.True(t, ok)
	assert.Equal(t, ir.FnModifier, prog.Functions[mid].Kind)

	_, ok = idx.ResolveModifier(vault.ID, "missing")
	assert.False(t, ok)
}

func TestIndexDeterminism(t *testing.T) {
	// Byte-identical dumps across repeated builds of the same program.
	prog := buildProgram(t, withdrawUnit())
	first := Build(prog).Dump()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Build(prog).Dump())
	}
}
