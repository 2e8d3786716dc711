package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStableAndDistinct(t *testing.T) {
	a := Fingerprint("classic-reentrancy", "vault.sol", 150, 184, "Vault.withdraw")
	b := Fingerprint("classic-reentrancy", "vault.sol", 150, 184, "Vault.withdraw")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c := Fingerprint("classic-reentrancy", "vault.sol", 150, 185, "Vault.withdraw")
	assert.NotEqual(t, a, c)
	d := Fingerprint("read-only-reentrancy", "vault.sol", 150, 184, "Vault.withdraw")
	assert.NotEqual(t, a, d)
}

func TestSpanLines(t *testing.T) {
	src := "line one\nline two\nline three\n"
	start, end := SpanLines(src, 0, 4)
	assert.Equal(t, 1, start)
	assert.Equal(t, 1, end)

	start, end = SpanLines(src, 9, 28)
	assert.Equal(t, 2, start)
	assert.Equal(t, 3, end)

	start, end = SpanLines(src, 500, 600)
	assert.Equal(t, 4, start)
	assert.Equal(t, 4, end)
}

func TestExtractSnippet(t *testing.T) {
	src := "a\nb\nc\nd\ne\nf\ng"
	got := ExtractSnippet(src, 4, 4, 2)
	assert.Equal(t, "c\nd\ne", got)

	assert.Equal(t, "a\nb", ExtractSnippet(src, 1, 1, 2))
	assert.Equal(t, src, ExtractSnippet(src, 1, 7, 100))
}
