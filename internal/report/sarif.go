package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pyrite-audit/pyrite/internal/detectors"
	"github.com/pyrite-audit/pyrite/internal/model"
)

// SARIF renders the findings as a SARIF 2.1.0 log, the exchange format
// code-scanning services ingest. Rules carries the metadata of the
// detectors that ran; results reference them by id.
type SARIF struct {
	Rules   []detectors.Meta
	Version string
}

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version,omitempty"`
	InformationURI string      `json:"informationUri,omitempty"`
	Rules          []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string         `json:"id"`
	ShortDescription sarifMessage   `json:"shortDescription"`
	Help             *sarifMessage  `json:"help,omitempty"`
	Properties       sarifRuleProps `json:"properties"`
}

type sarifRuleProps struct {
	Category        string   `json:"category,omitempty"`
	DefaultSeverity string   `json:"defaultSeverity,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLoc        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	Physical sarifPhys      `json:"physicalLocation"`
	Logical  []sarifLogical `json:"logicalLocations,omitempty"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt    `json:"artifactLocation"`
	Region           sarifRegion `json:"region"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

// sarifRegion points at the finding either by line/column, when the
// unit carried source text, or by raw byte offsets otherwise.
type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
	CharOffset  int `json:"charOffset,omitempty"`
	CharLength  int `json:"charLength,omitempty"`
}

type sarifLogical struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind,omitempty"`
}

func (s *SARIF) Render(w io.Writer, res *model.ScanResult) error {
	results := make([]sarifResult, 0, len(res.Findings))
	for i := range res.Findings {
		results = append(results, toResult(&res.Findings[i]))
	}
	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:           "pyrite",
				Version:        s.Version,
				InformationURI: "https://github.com/pyrite-audit/pyrite",
				Rules:          toRules(s.Rules),
			}},
			Results: results,
		}},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func toRules(metas []detectors.Meta) []sarifRule {
	rules := make([]sarifRule, 0, len(metas))
	for _, m := range metas {
		r := sarifRule{
			ID:               m.ID,
			ShortDescription: sarifMessage{Text: m.Title},
			Properties: sarifRuleProps{
				Category:        string(m.Category),
				DefaultSeverity: string(m.Severity),
				Tags:            m.References,
			},
		}
		if m.Remediation != "" {
			r.Help = &sarifMessage{Text: m.Remediation}
		}
		rules = append(rules, r)
	}
	return rules
}

func toResult(f *model.Finding) sarifResult {
	region := sarifRegion{StartLine: f.Span.Line, StartColumn: f.Span.Col}
	if f.Span.Line == 0 {
		region = sarifRegion{CharOffset: f.Span.Start, CharLength: f.Span.End - f.Span.Start}
	}
	qualified := f.Contract
	if f.Function != "" {
		qualified = fmt.Sprintf("%s.%s", f.Contract, f.Function)
	}
	return sarifResult{
		RuleID:  f.DetectorID,
		Level:   sarifLevel(f.Severity),
		Message: sarifMessage{Text: f.Message},
		Locations: []sarifLoc{{
			Physical: sarifPhys{
				ArtifactLocation: sarifArt{URI: f.Span.File},
				Region:           region,
			},
			Logical: []sarifLogical{{FullyQualifiedName: qualified, Kind: "function"}},
		}},
		PartialFingerprints: map[string]string{"pyriteFingerprint/v1": f.Fingerprint},
	}
}

func sarifLevel(s model.Severity) string {
	switch s {
	case model.SeverityHigh, model.SeverityCritical:
		return "error"
	case model.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}
