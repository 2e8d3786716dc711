package engine

import (
	"sort"

	"github.com/pyrite-audit/pyrite/internal/config"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// SubsumptionRule declares that the General detector's finding covers the
// ground of the Specific detector's when both land on one location. Both
// findings are always emitted; the rule only tags the relationship so
// reports can group them.
type SubsumptionRule struct {
	General  string
	Specific string
}

func builtinSubsumptions() []SubsumptionRule {
	return []SubsumptionRule{
		{General: "missing-access-modifiers", Specific: "unprotected-initializer"},
		{General: "missing-access-modifiers", Specific: "unprotected-selfdestruct"},
		{General: "dangerous-delegatecall", Specific: "upgradeable-proxy-issues"},
		{General: "classic-reentrancy", Specific: "read-only-reentrancy"},
		{General: "unchecked-low-level-call", Specific: "returnbomb-call"},
	}
}

func subsumptionRules(extra []config.SubsumePair) []SubsumptionRule {
	rules := builtinSubsumptions()
	have := make(map[SubsumptionRule]bool, len(rules))
	for _, r := range rules {
		have[r] = true
	}
	for _, p := range extra {
		r := SubsumptionRule{General: p.General, Specific: p.Specific}
		if r.General == "" || r.Specific == "" || have[r] {
			continue
		}
		have[r] = true
		rules = append(rules, r)
	}
	return rules
}

type locKey struct {
	contract string
	function string
	span     model.Span
}

func locOf(f model.Finding) locKey {
	return locKey{contract: f.Contract, function: f.Function, span: f.Span}
}

// aggregate turns the scheduler's raw buffer into the final report set:
// duplicates collapse to the higher confidence, findings below the
// severity floor drop, overlapping findings get their subsumption tags,
// and the survivors are ordered and grouped by location.
func aggregate(in []model.Finding, minSeverity model.Severity, rules []SubsumptionRule) ([]model.Finding, []model.FindingGroup) {
	type dupKey struct {
		detector string
		loc      locKey
		message  string
	}
	seen := make(map[dupKey]int, len(in))
	findings := make([]model.Finding, 0, len(in))
	for _, f := range in {
		k := dupKey{detector: f.DetectorID, loc: locOf(f), message: f.Message}
		if i, ok := seen[k]; ok {
			findings[i].Confidence = model.MaxConfidence(findings[i].Confidence, f.Confidence)
			continue
		}
		seen[k] = len(findings)
		findings = append(findings, f)
	}

	if minSeverity != "" {
		kept := findings[:0]
		for _, f := range findings {
			if model.SeverityGTE(f.Severity, minSeverity) {
				kept = append(kept, f)
			}
		}
		findings = kept
	}

	tagSubsumptions(findings, rules)

	// Severity descending, then contract, function, span start. Ties keep
	// the scheduler's registration order through the stable sort.
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if c := model.CompareSeverity(a.Severity, b.Severity); c != 0 {
			return c > 0
		}
		if a.Contract != b.Contract {
			return a.Contract < b.Contract
		}
		if a.Function != b.Function {
			return a.Function < b.Function
		}
		return a.Span.Start < b.Span.Start
	})

	return findings, groupByLocation(findings)
}

// tagSubsumptions records, per location, which findings a more general
// detector also covers. Each bucket's tags are appended in rule order, so
// the result does not depend on map iteration.
func tagSubsumptions(findings []model.Finding, rules []SubsumptionRule) {
	byLoc := make(map[locKey][]int)
	for i, f := range findings {
		k := locOf(f)
		byLoc[k] = append(byLoc[k], i)
	}
	for _, members := range byLoc {
		if len(members) < 2 {
			continue
		}
		for _, rule := range rules {
			for _, gi := range members {
				if findings[gi].DetectorID != rule.General {
					continue
				}
				for _, si := range members {
					if findings[si].DetectorID != rule.Specific {
						continue
					}
					findings[gi].Subsumes = append(findings[gi].Subsumes, rule.Specific)
					findings[si].SubsumedBy = append(findings[si].SubsumedBy, rule.General)
				}
			}
		}
	}
}

// groupByLocation collects findings sharing a location, in the order the
// location first appears in the sorted finding list. The group severity
// is the roll-up maximum; member severities are left as emitted.
func groupByLocation(findings []model.Finding) []model.FindingGroup {
	index := make(map[locKey]int)
	var groups []model.FindingGroup
	for _, f := range findings {
		k := locOf(f)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, model.FindingGroup{
				Contract: f.Contract,
				Function: f.Function,
				Span:     f.Span,
				Severity: f.Severity,
			})
		}
		groups[i].Severity = model.MaxSeverity(groups[i].Severity, f.Severity)
		groups[i].Fingerprints = append(groups[i].Fingerprints, f.Fingerprint)
	}
	return groups
}
