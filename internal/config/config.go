// Package config loads `.pyrite.yaml`, searching upward from the scan
// directory so one file at the repository root covers nested packages.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// IgnoreRule suppresses findings matching a detector and/or path prefix.
// Reason is required so suppressions stay auditable; Expires (RFC 3339
// date) lets a suppression lapse instead of outliving its excuse.
type IgnoreRule struct {
	Rule    string `yaml:"rule,omitempty"`
	Path    string `yaml:"path,omitempty"`
	Reason  string `yaml:"reason,omitempty"`
	Expires string `yaml:"expires,omitempty"`
}

// SubsumePair adds a subsumption edge on top of the builtin table:
// findings of General at a location tag findings of Specific there.
type SubsumePair struct {
	General  string `yaml:"general"`
	Specific string `yaml:"specific"`
}

type Config struct {
	MinSeverity       string        `yaml:"min_severity,omitempty"`
	FailOn            string        `yaml:"fail_on,omitempty"`
	Format            string        `yaml:"format,omitempty"`
	Workers           int           `yaml:"workers,omitempty"`
	DeadlineMs        int           `yaml:"deadline_ms,omitempty"`
	DisabledDetectors []string      `yaml:"disabled_detectors,omitempty"`
	Ignore            []IgnoreRule  `yaml:"ignore,omitempty"`
	Subsume           []SubsumePair `yaml:"subsume,omitempty"`
}

const FileName = ".pyrite.yaml"

// Default is the configuration a scan runs with when no file is found.
// Workers 0 means one per CPU; DeadlineMs 0 means no deadline.
func Default() Config {
	return Config{
		MinSeverity: "low",
		FailOn:      "high",
		Format:      "table",
	}
}

// Load searches dir and its parents for the config file. It returns the
// effective config, the path of the file it came from ("" when only
// defaults apply) and any read or parse error. Expired ignore rules are
// dropped here so callers never see them.
func Load(startDir string) (Config, string, error) {
	cfg := Default()
	dir := startDir
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			b, err := os.ReadFile(candidate)
			if err != nil {
				return cfg, candidate, err
			}
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, candidate, fmt.Errorf("parse %s: %w", candidate, err)
			}
			cfg.Ignore = pruneExpired(cfg.Ignore, time.Now())
			return cfg, candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cfg, "", nil
}

func pruneExpired(rules []IgnoreRule, now time.Time) []IgnoreRule {
	var out []IgnoreRule
	for _, r := range rules {
		if r.Expires != "" {
			t, err := time.Parse("2006-01-02", r.Expires)
			if err == nil && !now.Before(t) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// Scaffold renders the default config with every key present, for
// `pyrite init` to write as a starting point.
func Scaffold() ([]byte, error) {
	full := Config{
		MinSeverity: "low",
		FailOn:      "high",
		Format:      "table",
		Ignore: []IgnoreRule{{
			Rule:   "missing-zero-address-check",
			Path:   "test/",
			Reason: "fixtures exercise zero addresses on purpose",
		}},
	}
	return yaml.Marshal(full)
}
