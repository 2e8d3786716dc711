package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint derives the stable identity of a finding from what it is
// and where it sits. Two scans of the same source produce the same
// fingerprint, so suppressions and diffs can key on it.
func Fingerprint(detectorID, file string, start, end int, scope string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|%s", detectorID, file, start, end, scope)
	return hex.EncodeToString(h.Sum(nil))
}
