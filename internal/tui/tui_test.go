package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrite-audit/pyrite/internal/model"
)

func sampleResult() *model.ScanResult {
	return &model.ScanResult{
		Findings: []model.Finding{
			{
				DetectorID: "missing-access-modifiers",
				Severity:   model.SeverityCritical,
				Confidence: model.ConfidenceCertain,
				Contract:   "Wallet",
				Function:   "setOwner",
				Span:       model.Span{File: "wallet.sol", Line: 4},
				Message:    "setOwner writes owner with no access control",
			},
			{
				DetectorID:  "unchecked-low-level-call",
				Severity:    model.SeverityMedium,
				Confidence:  model.ConfidenceLikely,
				Contract:    "Vault",
				Function:    "withdraw",
				Span:        model.Span{File: "vault.sol", Start: 210, End: 270},
				Message:     "return value of call is not checked",
				Remediation: "Require the success flag.",
			},
		},
		Summary: model.Summary{Findings: 2, Suppressed: 1},
	}
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewShowsCursorAndDetail(t *testing.T) {
	m := initialModel(sampleResult())
	view := m.View()
	assert.Contains(t, view, "Findings (2)")
	assert.Contains(t, view, "> critical")
	assert.Contains(t, view, "missing-access-modifiers")
	assert.Contains(t, view, "Wallet.setOwner  wallet.sol:4")
	assert.Contains(t, view, "setOwner writes owner with no access control")
	assert.Contains(t, view, "confidence: certain")
	assert.Contains(t, view, "1 finding(s) suppressed")
	assert.NotContains(t, view, "fix:")
}

func TestUpdateMovesCursorWithinBounds(t *testing.T) {
	var m tea.Model = initialModel(sampleResult())

	m, _ = m.Update(keyMsg("j"))
	view := m.View()
	assert.Contains(t, view, "> medium")
	assert.Contains(t, view, "fix: Require the success flag.")
	assert.Contains(t, view, "Vault.withdraw  vault.sol")

	// Already on the last row; j must not run past it.
	m, _ = m.Update(keyMsg("j"))
	assert.Contains(t, m.View(), "> medium")

	m, _ = m.Update(keyMsg("k"))
	assert.Contains(t, m.View(), "> critical")
	m, _ = m.Update(keyMsg("k"))
	assert.Contains(t, m.View(), "> critical")
}

func TestUpdateQuits(t *testing.T) {
	m := initialModel(sampleResult())
	for _, msg := range []tea.KeyMsg{keyMsg("q"), {Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		_, cmd := m.Update(msg)
		require.NotNil(t, cmd, "key %s should quit", msg)
		assert.Equal(t, tea.QuitMsg{}, cmd())
	}
}
