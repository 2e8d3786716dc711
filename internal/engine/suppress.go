package engine

import (
	"path/filepath"
	"strings"

	"github.com/pyrite-audit/pyrite/internal/config"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// applyIgnores drops findings matched by a config ignore rule or by an
// inline marker near the finding line. Only the source carried on the
// unit is consulted; suppression never reads from disk.
func applyIgnores(findings []model.Finding, rules []config.IgnoreRule, sources map[string]string) ([]model.Finding, int) {
	var out []model.Finding
	suppressed := 0
	for _, f := range findings {
		if isIgnored(f, rules, sources) {
			suppressed++
			continue
		}
		out = append(out, f)
	}
	return out, suppressed
}

func isIgnored(f model.Finding, rules []config.IgnoreRule, sources map[string]string) bool {
	for _, ig := range rules {
		// A rule with neither field would suppress everything.
		if ig.Rule == "" && ig.Path == "" {
			continue
		}
		if ig.Rule != "" && !strings.EqualFold(ig.Rule, f.DetectorID) {
			continue
		}
		if ig.Path != "" && !strings.HasPrefix(filepath.ToSlash(f.Span.File), filepath.ToSlash(ig.Path)) {
			continue
		}
		return true
	}
	return hasInlineSuppression(sources[f.Span.File], f.DetectorID, f.Span.Line)
}

// hasInlineSuppression scans a window around the finding line for a
// `pyrite:ignore <detector-id>` marker: the line itself, the one after,
// or up to five lines above.
func hasInlineSuppression(source, detectorID string, line int) bool {
	if source == "" || line <= 0 {
		return false
	}
	lines := strings.Split(source, "\n")
	from := max(0, line-1-5)
	to := min(len(lines)-1, line-1+1)
	needle := "pyrite:ignore " + detectorID
	for i := from; i <= to; i++ {
		if strings.Contains(lines[i], needle) {
			return true
		}
	}
	return false
}
