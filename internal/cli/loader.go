package cli

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pyrite-audit/pyrite/internal/parsetree"
)

// loadUnits resolves each path to parse-tree units. Directories are
// walked for .json parse trees and .sol sources (the latter run through
// the solc frontend); explicit file arguments are loaded whatever their
// extension. Files that yield no units are skipped with a warning.
// Returns the units and the number of skipped candidates.
func loadUnits(ctx context.Context, log *slog.Logger, solcPath string, paths []string) ([]*parsetree.SourceUnit, int) {
	var units []*parsetree.SourceUnit
	skipped := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			log.Warn("skipping path", "path", path, "err", err)
			skipped++
			continue
		}
		files := []string{path}
		if info.IsDir() {
			files = scannableFilesUnder(log, path)
		}
		for _, file := range files {
			var decoded []*parsetree.SourceUnit
			if strings.EqualFold(filepath.Ext(file), ".sol") {
				decoded, err = parsetree.FromSolc(ctx, solcPath, file)
			} else {
				decoded, err = decodeUnits(file)
			}
			if err != nil || len(decoded) == 0 {
				log.Warn("skipping file: no parse tree", "path", file, "err", err)
				skipped++
				continue
			}
			log.Debug("loaded", "path", file, "units", len(decoded))
			units = append(units, decoded...)
		}
	}
	return units, skipped
}

func scannableFilesUnder(log *slog.Logger, dir string) []string {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != dir && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".sol":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		log.Warn("walk aborted", "dir", dir, "err", err)
	}
	return files
}

// decodeUnits tries the single-unit shape first, then solc combined
// output. A decode that yields no nodes is treated as a miss so the
// combined shape gets its turn.
func decodeUnits(path string) ([]*parsetree.SourceUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if unit, err := parsetree.Decode(data); err == nil && len(unit.Nodes) > 0 {
		if unit.Path == "" {
			unit.Path = filepath.Base(path)
		}
		return []*parsetree.SourceUnit{unit}, nil
	}
	decoded, err := parsetree.DecodeSolcOutput(data)
	if err != nil {
		return nil, err
	}
	units := decoded[:0]
	for _, u := range decoded {
		if len(u.Nodes) > 0 {
			units = append(units, u)
		}
	}
	return units, nil
}
