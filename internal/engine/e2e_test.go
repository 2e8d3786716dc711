package engine

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	pt "github.com/pyrite-audit/pyrite/internal/parsetree"
)

// Each testdata archive holds the compact-AST JSON of one or more units
// plus an "expected" file listing detector IDs in final report order.
func TestScanArchives(t *testing.T) {
	archives, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	require.NoError(t, err)
	require.NotEmpty(t, archives)

	for _, path := range archives {
		t.Run(filepath.Base(path), func(t *testing.T) {
			ar, err := txtar.ParseFile(path)
			require.NoError(t, err)

			var units []*pt.SourceUnit
			var want []string
			for _, f := range ar.Files {
				switch {
				case strings.HasSuffix(f.Name, ".json"):
					unit, err := pt.Decode(f.Data)
					require.NoError(t, err, "decode %s", f.Name)
					units = append(units, unit)
				case f.Name == "expected":
					for _, line := range strings.Split(string(f.Data), "\n") {
						if line = strings.TrimSpace(line); line != "" {
							want = append(want, line)
						}
					}
				}
			}
			require.NotEmpty(t, units, "archive carries no units")

			res, err := New(nil, quietLog()).Scan(context.Background(), Request{Units: units})
			require.NoError(t, err)
			require.Empty(t, res.Errors)

			assert.Equal(t, want, scanIDs(res))

			// Groups partition the findings: every fingerprint shows up in
			// exactly one group.
			grouped := 0
			for _, g := range res.Groups {
				grouped += len(g.Fingerprints)
			}
			assert.Equal(t, len(res.Findings), grouped)
		})
	}
}
