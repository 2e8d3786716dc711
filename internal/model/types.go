package model

import "time"

// Severity is the impact class a detector assigns to what it found.
// The order, from least to most severe, is Low < Medium < High < Critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func ParseSeverity(s string) Severity {
	switch s {
	case string(SeverityCritical):
		return SeverityCritical
	case string(SeverityHigh):
		return SeverityHigh
	case string(SeverityMedium):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

func SeverityGTE(a, b Severity) bool {
	return severityRank(a) >= severityRank(b)
}

// CompareSeverity returns a negative value when a is less severe than b,
// zero when equal, positive when more severe.
func CompareSeverity(a, b Severity) int {
	return severityRank(a) - severityRank(b)
}

func MaxSeverity(a, b Severity) Severity {
	if severityRank(a) >= severityRank(b) {
		return a
	}
	return b
}

// Confidence states how certain a detector is that the structural pattern
// it matched is a real defect rather than a benign idiom.
type Confidence string

const (
	ConfidencePossible Confidence = "possible"
	ConfidenceLikely   Confidence = "likely"
	ConfidenceCertain  Confidence = "certain"
)

func confidenceRank(c Confidence) int {
	switch c {
	case ConfidenceCertain:
		return 3
	case ConfidenceLikely:
		return 2
	case ConfidencePossible:
		return 1
	}
	return 0
}

func ConfidenceGTE(a, b Confidence) bool {
	return confidenceRank(a) >= confidenceRank(b)
}

func MaxConfidence(a, b Confidence) Confidence {
	if confidenceRank(a) >= confidenceRank(b) {
		return a
	}
	return b
}

// Category is the vulnerability-class taxonomy detectors declare themselves
// under. Selection filters and report breakdowns key off it.
type Category string

const (
	CategoryAccessControl   Category = "access-control"
	CategoryReentrancy      Category = "reentrancy"
	CategoryOracle          Category = "oracle"
	CategoryAMMInvariant    Category = "amm-invariant"
	CategoryTokenStandard   Category = "token-standard"
	CategoryBridge          Category = "bridge"
	CategoryRestaking       Category = "restaking"
	CategoryProxyUpgrade    Category = "proxy-upgrade"
	CategorySignatureReplay Category = "signature-replay"
	CategoryGasGriefing     Category = "gas-griefing"
	CategoryArithmetic      Category = "arithmetic"
	CategoryCallSafety      Category = "call-safety"
	CategoryRandomness      Category = "randomness"
)

// Categories lists every known category in a fixed, documented order.
func Categories() []Category {
	return []Category{
		CategoryAccessControl,
		CategoryReentrancy,
		CategoryOracle,
		CategoryAMMInvariant,
		CategoryTokenStandard,
		CategoryBridge,
		CategoryRestaking,
		CategoryProxyUpgrade,
		CategorySignatureReplay,
		CategoryGasGriefing,
		CategoryArithmetic,
		CategoryCallSafety,
		CategoryRandomness,
	}
}

func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Span is a half-open byte range [Start, End) into the source of File,
// with the 1-based line and column of Start precomputed for reports.
type Span struct {
	File  string `json:"file"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Line  int    `json:"line,omitempty"`
	Col   int    `json:"col,omitempty"`
}

func (s Span) IsZero() bool {
	return s.File == "" && s.Start == 0 && s.End == 0
}

// Before orders spans by file, then start offset, then end offset.
func (s Span) Before(o Span) bool {
	if s.File != o.File {
		return s.File < o.File
	}
	if s.Start != o.Start {
		return s.Start < o.Start
	}
	return s.End < o.End
}

// Finding is one detector hit, fully attributed: which detector, where,
// how severe, and how it relates to overlapping findings.
type Finding struct {
	DetectorID  string     `json:"detectorId"`
	Category    Category   `json:"category"`
	Severity    Severity   `json:"severity"`
	Confidence  Confidence `json:"confidence"`
	Contract    string     `json:"contract"`
	Function    string     `json:"function,omitempty"`
	Span        Span       `json:"span"`
	Message     string     `json:"message"`
	Remediation string     `json:"remediation,omitempty"`
	References  []string   `json:"references,omitempty"`
	Fingerprint string     `json:"fingerprint"`

	// SubsumedBy names the more general detectors that also fired at this
	// location; Subsumes is the inverse edge. Both findings are always kept.
	SubsumedBy []string `json:"subsumedBy,omitempty"`
	Subsumes   []string `json:"subsumes,omitempty"`
}

// FindingGroup collects the findings that share one source location.
// Severity is the maximum over the group's members; member severities
// are never adjusted to match it.
type FindingGroup struct {
	Contract     string   `json:"contract"`
	Function     string   `json:"function,omitempty"`
	Span         Span     `json:"span"`
	Severity     Severity `json:"severity"`
	Fingerprints []string `json:"fingerprints"`
}

// ScanError is a structured record of something that went wrong during a
// scan. Errors are carried in the result so no failure is silently dropped.
type ScanError struct {
	Kind     string `json:"kind"`
	Unit     string `json:"unit,omitempty"`
	Contract string `json:"contract,omitempty"`
	Detector string `json:"detector,omitempty"`
	Message  string `json:"message"`
}

const (
	ErrKindMalformedInput    = "malformed-input"
	ErrKindCyclicInheritance = "cyclic-inheritance"
	ErrKindDetectorExecution = "detector-execution"
	ErrKindPartialScan       = "partial-scan"
)

// Summary is the counting view of a result: totals per severity, per
// detector and per category, plus how much of the input was scanned.
type Summary struct {
	Units      int                 `json:"units"`
	Contracts  int                 `json:"contracts"`
	Functions  int                 `json:"functions"`
	Findings   int                 `json:"findings"`
	Suppressed int                 `json:"suppressed,omitempty"`
	BySeverity map[Severity]int    `json:"bySeverity"`
	ByDetector map[string]int      `json:"byDetector"`
	ByCategory map[Category]int    `json:"byCategory"`
}

// ScanResult is everything a scan produced: ordered findings, location
// groups, counts, and the errors encountered along the way. Partial is
// set when the deadline expired before all scheduled work finished.
type ScanResult struct {
	Findings []Finding      `json:"findings"`
	Groups   []FindingGroup `json:"groups,omitempty"`
	Summary  Summary        `json:"summary"`
	Errors   []ScanError    `json:"errors,omitempty"`
	Partial  bool           `json:"partial,omitempty"`
	Elapsed  time.Duration  `json:"elapsed"`
}
