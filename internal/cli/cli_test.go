package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrite-audit/pyrite/internal/detectors"
	"github.com/pyrite-audit/pyrite/internal/model"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const walletTree = `{
  "absolutePath": "wallet.sol",
  "nodes": [
    {
      "nodeType": "ContractDefinition",
      "contractKind": "contract",
      "name": "Wallet",
      "nodes": [
        {
          "nodeType": "VariableDeclaration",
          "name": "owner",
          "stateVariable": true,
          "visibility": "public",
          "typeName": {"nodeType": "ElementaryTypeName", "name": "address"}
        },
        {
          "nodeType": "FunctionDefinition",
          "kind": "function",
          "name": "setOwner",
          "visibility": "public",
          "implemented": true,
          "src": "64:72:0",
          "parameters": {"parameters": [
            {
              "nodeType": "VariableDeclaration",
              "name": "newOwner",
              "typeName": {"nodeType": "ElementaryTypeName", "name": "address"}
            }
          ]},
          "body": {
            "nodeType": "Block",
            "statements": [
              {
                "nodeType": "ExpressionStatement",
                "expression": {
                  "nodeType": "Assignment",
                  "operator": "=",
                  "src": "110:16:0",
                  "leftHandSide": {"nodeType": "Identifier", "name": "owner"},
                  "rightHandSide": {"nodeType": "Identifier", "name": "newOwner"}
                }
              }
            ]
          }
        }
      ]
    }
  ]
}`

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "pyrite", SilenceUsage: true, SilenceErrors: true}
	AddCommands(root)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestPickPrecedence(t *testing.T) {
	assert.Equal(t, "flag", pick("flag", "cfg", "def"))
	assert.Equal(t, "cfg", pick("", "cfg", "def"))
	assert.Equal(t, "def", pick("", "", "def"))
}

func TestParseSeverityStrict(t *testing.T) {
	for _, s := range []string{"low", "medium", "high", "critical"} {
		sev, err := parseSeverity("--fail-on", s)
		require.NoError(t, err)
		assert.Equal(t, model.Severity(s), sev)
	}
	_, err := parseSeverity("--fail-on", "hgih")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--fail-on")
	assert.Contains(t, err.Error(), "hgih")
}

func TestBuildFilterValidation(t *testing.T) {
	reg := detectors.NewBuiltinRegistry()

	_, err := buildFilter(reg, []string{"no-such-detector"}, nil, model.SeverityLow)
	assert.ErrorContains(t, err, "unknown detector")

	_, err = buildFilter(reg, nil, []string{"astrology"}, model.SeverityLow)
	assert.ErrorContains(t, err, "unknown category")

	f, err := buildFilter(reg,
		[]string{"classic-reentrancy"},
		[]string{string(model.CategoryReentrancy)},
		model.SeverityHigh)
	require.NoError(t, err)
	assert.Equal(t, []string{"classic-reentrancy"}, f.IDs)
	assert.Equal(t, []model.Category{model.CategoryReentrancy}, f.Categories)
	assert.Equal(t, model.SeverityHigh, f.MinSeverity)
}

func TestExitStatus(t *testing.T) {
	finding := func(sev model.Severity) model.Finding {
		return model.Finding{DetectorID: "x", Severity: sev}
	}
	t.Run("clean scan exits zero", func(t *testing.T) {
		res := &model.ScanResult{Summary: model.Summary{Contracts: 2}}
		assert.NoError(t, exitStatus(res, model.SeverityHigh))
	})
	t.Run("findings below threshold exit zero", func(t *testing.T) {
		res := &model.ScanResult{
			Findings: []model.Finding{finding(model.SeverityMedium)},
			Summary:  model.Summary{Contracts: 1},
		}
		assert.NoError(t, exitStatus(res, model.SeverityHigh))
	})
	t.Run("findings at threshold exit one", func(t *testing.T) {
		res := &model.ScanResult{
			Findings: []model.Finding{finding(model.SeverityHigh), finding(model.SeverityLow)},
			Summary:  model.Summary{Contracts: 1},
		}
		err := exitStatus(res, model.SeverityHigh)
		var ee *ExitError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, 1, ee.Code)
		assert.Contains(t, ee.Msg, "1 finding(s)")
	})
	t.Run("nothing scanned exits two", func(t *testing.T) {
		res := &model.ScanResult{
			Summary: model.Summary{},
			Errors:  []model.ScanError{{Kind: model.ErrKindMalformedInput}},
		}
		err := exitStatus(res, model.SeverityHigh)
		var ee *ExitError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, 2, ee.Code)
	})
}

func TestLoadUnitsWalksDirectories(t *testing.T) {
	tmp := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(tmp, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("wallet.json", walletTree)
	write("banner.json", "======= other.sol =======\n"+
		"JSON AST (compact format):\n"+
		`{"absolutePath":"other.sol","nodes":[{"nodeType":"PragmaDirective"}]}`+"\n")
	write("bad.json", "definitely not a parse tree")
	write("notes.txt", "ignored: wrong extension")
	write("node_modules/dep.json", walletTree)
	write(".build/cache.json", walletTree)

	units, skipped := loadUnits(context.Background(), quietLog(), "solc", []string{tmp})
	require.Len(t, units, 2)
	assert.Equal(t, 1, skipped)
	paths := []string{units[0].Path, units[1].Path}
	assert.ElementsMatch(t, []string{"wallet.sol", "other.sol"}, paths)

	units, skipped = loadUnits(context.Background(), quietLog(), "solc", []string{filepath.Join(tmp, "notes.txt")})
	assert.Empty(t, units)
	assert.Equal(t, 1, skipped)
}

func TestScanCommandJSONOutput(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "wallet.json"), []byte(walletTree), 0o644))
	t.Chdir(tmp)

	out, err := runCmd(t, "scan", ".", "--format", "json")
	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.Code)

	var res model.ScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	ids := make([]string, len(res.Findings))
	for i, f := range res.Findings {
		ids[i] = f.DetectorID
	}
	assert.Equal(t, []string{"missing-access-modifiers", "missing-zero-address-check"}, ids)
}

func TestScanCommandFailOnGate(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "wallet.json"), []byte(walletTree), 0o644))
	t.Chdir(tmp)

	out, err := runCmd(t, "scan", ".",
		"--detectors", "missing-zero-address-check",
		"--fail-on", "critical")
	require.NoError(t, err)
	assert.Contains(t, out, "missing-zero-address-check")
}

func TestScanCommandNothingToScan(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := runCmd(t, "scan", ".")
	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 2, ee.Code)
	assert.Contains(t, ee.Msg, "no parse trees")
}

func TestScanCommandRejectsUnknownFlagValues(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "wallet.json"), []byte(walletTree), 0o644))
	t.Chdir(tmp)
	_, err := runCmd(t, "scan", ".", "--min-severity", "sev")
	assert.ErrorContains(t, err, "invalid severity")
	_, err = runCmd(t, "scan", ".", "--detectors", "no-such-detector")
	assert.ErrorContains(t, err, "unknown detector")
	_, err = runCmd(t, "scan", ".", "--format", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestScanCommandWritesOutFile(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "wallet.json"), []byte(walletTree), 0o644))
	t.Chdir(tmp)

	_, err := runCmd(t, "scan", ".", "--format", "sarif", "--out", "report.sarif", "--fail-on", "critical")
	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.Code)

	b, rerr := os.ReadFile(filepath.Join(tmp, "report.sarif"))
	require.NoError(t, rerr)
	assert.Contains(t, string(b), "2.1.0")
	assert.Contains(t, string(b), "missing-access-modifiers")
}

func TestInitCommand(t *testing.T) {
	tmp := t.TempDir()
	out, err := runCmd(t, "init", "-d", tmp)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	b, err := os.ReadFile(filepath.Join(tmp, ".pyrite.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "min_severity: low")
	assert.Contains(t, string(b), "fail_on: high")

	_, err = runCmd(t, "init", "-d", tmp)
	assert.ErrorContains(t, err, "already exists")
}

func TestDetectorsListCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	out, err := runCmd(t, "detectors", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, len(detectors.NewBuiltinRegistry().All()))
	assert.Contains(t, out, "classic-reentrancy")
	assert.Contains(t, out, "dangerous-delegatecall")
}
