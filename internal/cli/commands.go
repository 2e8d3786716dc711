// Package cli wires the subcommands: scan, detectors, init. Commands
// translate flags and config into engine requests; the process exit
// code is carried out through ExitError.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pyrite-audit/pyrite/internal/config"
	"github.com/pyrite-audit/pyrite/internal/detectors"
	"github.com/pyrite-audit/pyrite/internal/engine"
	"github.com/pyrite-audit/pyrite/internal/model"
	"github.com/pyrite-audit/pyrite/internal/parsetree"
	"github.com/pyrite-audit/pyrite/internal/report"
	"github.com/pyrite-audit/pyrite/internal/tui"
)

func AddCommands(root *cobra.Command) {
	root.AddCommand(newScanCmd())
	root.AddCommand(newDetectorsCmd())
	root.AddCommand(newInitCmd())
}

// ExitError tells main which process exit code to use. 1 means findings
// at or above the fail-on threshold, 2 means the scan could not complete
// on any input.
type ExitError struct {
	Code int
	Msg  string
}

func (e *ExitError) Error() string { return e.Msg }

func newScanCmd() *cobra.Command {
	var (
		format      string
		minSeverity string
		failOn      string
		detectorIDs []string
		categories  []string
		deadlineMs  int
		workers     int
		outFile     string
		solcPath    string
		useTUI      bool
		verbose     bool
	)
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan compiled parse trees for vulnerabilities",
		Long: "Scan reads solc compact-AST JSON documents (files or directories\n" +
			"of them), runs the detector set, and reports aggregated findings.\n" +
			"Bare .sol files are compiled through solc first.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = []string{"."}
			}
			log := newLogger(verbose)

			cfg, cfgPath, err := config.Load(".")
			if err != nil {
				return err
			}
			if cfgPath != "" {
				log.Debug("config loaded", "path", cfgPath)
			}

			format = pick(format, cfg.Format, "table")
			minSev, err := parseSeverity("--min-severity", pick(minSeverity, cfg.MinSeverity, "low"))
			if err != nil {
				return err
			}
			failSev, err := parseSeverity("--fail-on", pick(failOn, cfg.FailOn, "high"))
			if err != nil {
				return err
			}
			if workers == 0 {
				workers = cfg.Workers
			}
			if deadlineMs == 0 {
				deadlineMs = cfg.DeadlineMs
			}

			reg := detectors.NewBuiltinRegistry()
			for _, id := range cfg.DisabledDetectors {
				if err := reg.Disable(id); err != nil {
					return err
				}
			}
			filter, err := buildFilter(reg, detectorIDs, categories, minSev)
			if err != nil {
				return err
			}

			units, skipped := loadUnits(cmd.Context(), log, solcPath, paths)
			if len(units) == 0 {
				msg := fmt.Sprintf("no parse trees found under %v", paths)
				if skipped > 0 {
					msg = fmt.Sprintf("none of the %d candidate file(s) under %v decoded as a parse tree", skipped, paths)
				}
				return &ExitError{Code: 2, Msg: msg}
			}

			// Sink construction validates --format; run it before the scan.
			var sink report.Sink
			if !useTUI {
				sink, err = report.New(format, report.Options{
					Sources: sourcesOf(units),
					Rules:   metasOf(reg.Select(filter)),
				})
				if err != nil {
					return err
				}
			}

			res, err := engine.New(reg, log).Scan(cmd.Context(), engine.Request{
				Units:       units,
				Filter:      filter,
				MinSeverity: minSev,
				Workers:     workers,
				Deadline:    time.Duration(deadlineMs) * time.Millisecond,
				Ignore:      cfg.Ignore,
				Subsume:     cfg.Subsume,
			})
			if err != nil {
				return err
			}

			if useTUI {
				if err := tui.Run(res); err != nil {
					return err
				}
				return exitStatus(res, failSev)
			}

			out := cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if err := sink.Render(out, res); err != nil {
				return err
			}
			return exitStatus(res, failSev)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table|json|sarif (default from config, else table)")
	cmd.Flags().StringVar(&minSeverity, "min-severity", "", "Drop findings below this severity (low|medium|high|critical)")
	cmd.Flags().StringVar(&failOn, "fail-on", "", "Exit 1 when a finding at or above this severity remains (default high)")
	cmd.Flags().StringSliceVar(&detectorIDs, "detectors", nil, "Run only these detector ids")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "Run only detectors in these categories")
	cmd.Flags().IntVar(&deadlineMs, "deadline-ms", 0, "Abort detector scheduling after this many milliseconds (0 = none)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Detector worker goroutines (0 = one per CPU)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&solcPath, "solc", "solc", "Compiler binary used for .sol inputs")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Browse findings interactively")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log engine phases to stderr")
	return cmd
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// pick resolves flag > config > default.
func pick(flag, cfg, fallback string) string {
	if flag != "" {
		return flag
	}
	if cfg != "" {
		return cfg
	}
	return fallback
}

// parseSeverity is strict where model.ParseSeverity is lenient: a typo
// in a flag should fail loudly, not quietly mean "low".
func parseSeverity(flag, s string) (model.Severity, error) {
	switch sev := model.Severity(s); sev {
	case model.SeverityLow, model.SeverityMedium, model.SeverityHigh, model.SeverityCritical:
		return sev, nil
	}
	return "", fmt.Errorf("%s: invalid severity %q (low|medium|high|critical)", flag, s)
}

// buildFilter validates ids and categories against the registry before
// turning them into a selection filter.
func buildFilter(reg *detectors.Registry, ids, categories []string, minSev model.Severity) (detectors.Filter, error) {
	for _, id := range ids {
		if _, ok := reg.Get(id); !ok {
			return detectors.Filter{}, fmt.Errorf("--detectors: unknown detector %q", id)
		}
	}
	known := make(map[model.Category]bool)
	for _, d := range reg.All() {
		known[d.Meta().Category] = true
	}
	cats := make([]model.Category, 0, len(categories))
	for _, c := range categories {
		cat := model.Category(c)
		if !known[cat] {
			return detectors.Filter{}, fmt.Errorf("--categories: unknown category %q", c)
		}
		cats = append(cats, cat)
	}
	return detectors.Filter{IDs: ids, Categories: cats, MinSeverity: minSev}, nil
}

func sourcesOf(units []*parsetree.SourceUnit) map[string]string {
	sources := make(map[string]string, len(units))
	for _, u := range units {
		if u.Source != "" {
			sources[u.Path] = u.Source
		}
	}
	return sources
}

func metasOf(dets []detectors.Detector) []detectors.Meta {
	metas := make([]detectors.Meta, 0, len(dets))
	for _, d := range dets {
		metas = append(metas, d.Meta())
	}
	return metas
}

// exitStatus maps a finished scan onto the exit code convention:
// 2 when nothing could be scanned, 1 when findings remain at or above
// the fail-on threshold, 0 otherwise.
func exitStatus(res *model.ScanResult, failOn model.Severity) error {
	if res.Summary.Contracts == 0 && len(res.Errors) > 0 {
		return &ExitError{Code: 2, Msg: "scan could not complete on any input"}
	}
	over := 0
	for _, f := range res.Findings {
		if model.SeverityGTE(f.Severity, failOn) {
			over++
		}
	}
	if over > 0 {
		return &ExitError{Code: 1, Msg: fmt.Sprintf("%d finding(s) at or above %s", over, failOn)}
	}
	return nil
}
