package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrite-audit/pyrite/internal/config"
	"github.com/pyrite-audit/pyrite/internal/detectors"
	"github.com/pyrite-audit/pyrite/internal/facts"
	"github.com/pyrite-audit/pyrite/internal/ir"
	"github.com/pyrite-audit/pyrite/internal/model"
	pt "github.com/pyrite-audit/pyrite/internal/parsetree"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// vaultUnit trips classic-reentrancy (high) and unchecked-low-level-call
// (medium) and nothing else.
func vaultUnit() *pt.SourceUnit {
	guard := pt.Require(pt.Bin(">=",
		pt.Index(pt.Ident("balances"), pt.Member(pt.Ident("msg"), "sender")),
		pt.Ident("amount")))
	call := pt.CallValue(
		pt.Member(pt.Member(pt.Ident("msg"), "sender"), "call"),
		pt.Ident("amount"), pt.StrLit(""))
	call.Src = "210:60:0"
	write := pt.OpAssign("-=",
		pt.Index(pt.Ident("balances"), pt.Member(pt.Ident("msg"), "sender")),
		pt.Ident("amount"))
	write.Expression.Src = "300:40:0"

	withdraw := pt.Function("withdraw", "public", pt.Block(guard, pt.ExprStmt(call), write))
	pt.WithParams(withdraw, pt.Param("amount", "uint256"))
	withdraw.Src = "120:260:0"

	return pt.Unit("vault.sol", "", pt.Contract("Vault",
		pt.StateVar("balances", "mapping(address => uint256)"),
		withdraw,
	))
}

// walletUnit trips missing-access-modifiers (critical) plus the low
// zero-address companion on the same assignment.
func walletUnit() *pt.SourceUnit {
	set := pt.Function("setOwner", "public", pt.Block(
		pt.Assign(pt.Ident("owner"), pt.Ident("newOwner")),
	))
	pt.WithParams(set, pt.Param("newOwner", "address"))
	set.Src = "40:80:0"

	return pt.Unit("wallet.sol", "", pt.Contract("Wallet",
		pt.StateVar("owner", "address"),
		set,
	))
}

// forwarderUnit puts three detectors on one delegatecall span.
func forwarderUnit() *pt.SourceUnit {
	dcall := pt.Call(pt.Member(pt.Ident("target"), "delegatecall"), pt.Ident("data"))
	dcall.Src = "200:40:0"
	forward := pt.Function("forward", "external", pt.Block(pt.ExprStmt(dcall)))
	pt.WithParams(forward, pt.Param("target", "address"), pt.Param("data", "bytes"))
	return pt.Unit("proxy.sol", "", pt.Contract("Forwarder", forward))
}

func scanIDs(res *model.ScanResult) []string {
	ids := make([]string, 0, len(res.Findings))
	for _, f := range res.Findings {
		ids = append(ids, f.DetectorID)
	}
	return ids
}

func TestScanOrdersBySeverityThenLocation(t *testing.T) {
	res, err := New(nil, quietLog()).Scan(context.Background(), Request{
		Units: []*pt.SourceUnit{vaultUnit(), walletUnit()},
	})
	require.NoError(t, err)
	require.NoError(t, errFromResult(res))

	assert.Equal(t, []string{
		"missing-access-modifiers",
		"classic-reentrancy",
		"unchecked-low-level-call",
		"missing-zero-address-check",
	}, scanIDs(res))

	// Severity never increases down the list.
	for i := 1; i < len(res.Findings); i++ {
		prev, cur := res.Findings[i-1].Severity, res.Findings[i].Severity
		assert.LessOrEqual(t, model.CompareSeverity(cur, prev), 0,
			"finding %d (%s) outranks its predecessor", i, res.Findings[i].DetectorID)
	}

	assert.Equal(t, 2, res.Summary.Units)
	assert.Equal(t, 2, res.Summary.Contracts)
	assert.Equal(t, 2, res.Summary.Functions)
	assert.Equal(t, len(res.Findings), res.Summary.Findings)
	assert.False(t, res.Partial)
}

func errFromResult(res *model.ScanResult) error {
	if len(res.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("unexpected scan errors: %+v", res.Errors)
}

func TestScanDeterminism(t *testing.T) {
	units := []*pt.SourceUnit{vaultUnit(), walletUnit(), forwarderUnit()}
	req := Request{Units: units, Workers: 4}

	first, err := New(nil, quietLog()).Scan(context.Background(), req)
	require.NoError(t, err)
	second, err := New(nil, quietLog()).Scan(context.Background(), req)
	require.NoError(t, err)

	first.Elapsed, second.Elapsed = 0, 0
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestScanMinSeverityFloor(t *testing.T) {
	res, err := New(nil, quietLog()).Scan(context.Background(), Request{
		Units:       []*pt.SourceUnit{vaultUnit()},
		MinSeverity: model.SeverityHigh,
	})
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "classic-reentrancy", res.Findings[0].DetectorID)
	assert.Equal(t, 1, res.Summary.Findings)
	assert.Equal(t, 1, res.Summary.BySeverity[model.SeverityHigh])
	assert.Zero(t, res.Summary.BySeverity[model.SeverityMedium])
}

func TestScanDetectorIDFilter(t *testing.T) {
	res, err := New(nil, quietLog()).Scan(context.Background(), Request{
		Units:  []*pt.SourceUnit{vaultUnit()},
		Filter: detectors.Filter{IDs: []string{"unchecked-low-level-call"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "unchecked-low-level-call", res.Findings[0].DetectorID)
}

func TestScanSubsumptionSharesGroup(t *testing.T) {
	res, err := New(nil, quietLog()).Scan(context.Background(), Request{
		Units: []*pt.SourceUnit{forwarderUnit()},
	})
	require.NoError(t, err)

	byID := map[string]model.Finding{}
	for _, f := range res.Findings {
		byID[f.DetectorID] = f
	}
	dangerous, ok := byID["dangerous-delegatecall"]
	require.True(t, ok)
	proxy, ok := byID["upgradeable-proxy-issues"]
	require.True(t, ok)
	unchecked, ok := byID["unchecked-low-level-call"]
	require.True(t, ok)

	assert.Equal(t, []string{"upgradeable-proxy-issues"}, dangerous.Subsumes)
	assert.Equal(t, []string{"dangerous-delegatecall"}, proxy.SubsumedBy)
	assert.Empty(t, unchecked.SubsumedBy)

	// One location, one group, every overlapping finding kept.
	require.Len(t, res.Groups, 1)
	g := res.Groups[0]
	assert.Equal(t, 200, g.Span.Start)
	assert.Equal(t, model.SeverityCritical, g.Severity)
	assert.ElementsMatch(t,
		[]string{dangerous.Fingerprint, proxy.Fingerprint, unchecked.Fingerprint},
		g.Fingerprints)
}

type explodingDetector struct{}

func (explodingDetector) Meta() detectors.Meta {
	return detectors.Meta{
		ID:       "exploding-detector",
		Title:    "Always panics",
		Category: model.CategoryCallSafety,
		Severity: model.SeverityLow,
	}
}

func (explodingDetector) Applies(*ir.Program, *ir.Contract) bool { return true }

func (explodingDetector) Evaluate(*ir.Program, *facts.Index, *ir.Contract) []detectors.RawFinding {
	panic("synthetic failure")
}

func TestScanIsolatesPanickingDetector(t *testing.T) {
	reg := detectors.NewBuiltinRegistry()
	require.NoError(t, reg.Register(explodingDetector{}))

	res, err := New(reg, quietLog()).Scan(context.Background(), Request{
		Units: []*pt.SourceUnit{vaultUnit()},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"classic-reentrancy", "unchecked-low-level-call"}, scanIDs(res))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.ErrKindDetectorExecution, res.Errors[0].Kind)
	assert.Equal(t, "exploding-detector", res.Errors[0].Detector)
	assert.Equal(t, "Vault", res.Errors[0].Contract)
	assert.Contains(t, res.Errors[0].Message, "synthetic failure")
	assert.False(t, res.Partial)
}

func TestScanCancelledContextReportsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(nil, quietLog()).Scan(ctx, Request{
		Units: []*pt.SourceUnit{vaultUnit()},
	})
	require.NoError(t, err)

	assert.True(t, res.Partial)
	assert.Empty(t, res.Findings)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, model.ErrKindPartialScan, res.Errors[0].Kind)
	assert.Contains(t, res.Errors[0].Message, "0 of")
}

func TestScanIsolatesMalformedUnit(t *testing.T) {
	bad := pt.Unit("bad.sol", "", pt.Contract("Dup"), pt.Contract("Dup"))

	res, err := New(nil, quietLog()).Scan(context.Background(), Request{
		Units: []*pt.SourceUnit{bad, walletUnit()},
	})
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.ErrKindMalformedInput, res.Errors[0].Kind)
	assert.Equal(t, "bad.sol", res.Errors[0].Unit)
	assert.Equal(t, 1, res.Summary.Units)
	assert.Equal(t, []string{"missing-access-modifiers", "missing-zero-address-check"}, scanIDs(res))
}

func TestScanAllUnitsMalformed(t *testing.T) {
	bad := pt.Unit("bad.sol", "", pt.Contract("Dup"), pt.Contract("Dup"))

	res, err := New(nil, quietLog()).Scan(context.Background(), Request{
		Units: []*pt.SourceUnit{bad},
	})
	require.NoError(t, err)

	assert.Zero(t, res.Summary.Units)
	assert.Empty(t, res.Findings)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.ErrKindMalformedInput, res.Errors[0].Kind)
}

func TestScanIsolatesCyclicContracts(t *testing.T) {
	set := pt.Function("setOwner", "public", pt.Block(
		pt.Assign(pt.Ident("owner"), pt.Ident("newOwner")),
	))
	pt.WithParams(set, pt.Param("newOwner", "address"))
	unit := pt.Unit("cycle.sol", "",
		pt.WithBases(pt.Contract("A"), "B"),
		pt.WithBases(pt.Contract("B"), "A"),
		pt.Contract("Safe", pt.StateVar("owner", "address"), set),
	)

	res, err := New(nil, quietLog()).Scan(context.Background(), Request{
		Units: []*pt.SourceUnit{unit},
	})
	require.NoError(t, err)

	var cyclic []string
	for _, e := range res.Errors {
		require.Equal(t, model.ErrKindCyclicInheritance, e.Kind)
		cyclic = append(cyclic, e.Contract)
	}
	assert.ElementsMatch(t, []string{"A", "B"}, cyclic)

	assert.Equal(t, []string{"missing-access-modifiers", "missing-zero-address-check"}, scanIDs(res))
	assert.Equal(t, 1, res.Summary.Contracts)
	assert.Equal(t, 1, res.Summary.Units)
}

func TestScanInlineSuppression(t *testing.T) {
	source := "contract Wallet {\n" +
		"    address public owner;\n" +
		"    // pyrite:ignore missing-access-modifiers\n" +
		"    function setOwner(address newOwner) public { owner = newOwner; }\n" +
		"}\n"
	fnText := "function setOwner(address newOwner) public { owner = newOwner; }"
	start := strings.Index(source, "function")
	require.Positive(t, start)

	set := pt.Function("setOwner", "public", pt.Block(
		pt.Assign(pt.Ident("owner"), pt.Ident("newOwner")),
	))
	pt.WithParams(set, pt.Param("newOwner", "address"))
	set.Src = fmt.Sprintf("%d:%d:0", start, len(fnText))

	unit := pt.Unit("wallet.sol", source, pt.Contract("Wallet",
		pt.StateVar("owner", "address"),
		set,
	))

	res, err := New(nil, quietLog()).Scan(context.Background(), Request{
		Units: []*pt.SourceUnit{unit},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"missing-zero-address-check"}, scanIDs(res))
	assert.Equal(t, 1, res.Summary.Suppressed)
}

func TestScanIgnoreRuleFromConfig(t *testing.T) {
	res, err := New(nil, quietLog()).Scan(context.Background(), Request{
		Units:  []*pt.SourceUnit{vaultUnit()},
		Ignore: []config.IgnoreRule{{Rule: "unchecked-low-level-call", Reason: "tracked elsewhere"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"classic-reentrancy"}, scanIDs(res))
	assert.Equal(t, 1, res.Summary.Suppressed)
}

func TestStampClampsSeverityToDeclared(t *testing.T) {
	meta := detectors.Meta{ID: "sample", Category: model.CategoryCallSafety, Severity: model.SeverityMedium}
	out := stamp(meta, "Vault", []detectors.RawFinding{
		{Severity: model.SeverityCritical, Message: "overreach"},
		{Severity: model.SeverityLow, Message: "refined down"},
		{Message: "defaulted"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, model.SeverityMedium, out[0].Severity)
	assert.Equal(t, model.SeverityLow, out[1].Severity)
	assert.Equal(t, model.SeverityMedium, out[2].Severity)
	assert.Equal(t, model.ConfidenceLikely, out[0].Confidence)
	assert.NotEmpty(t, out[0].Fingerprint)
}
