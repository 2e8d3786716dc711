package parsetree

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// FromSolc runs the solc frontend over a Solidity file and returns the
// units it produced, with the raw source attached for reporting.
func FromSolc(ctx context.Context, solcPath, path string) ([]*SourceUnit, error) {
	if solcPath == "" {
		solcPath = "solc"
	}
	cmd := exec.CommandContext(ctx, solcPath, "--ast-compact-json", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("solc %s: %w: %s", path, err, stderr.String())
	}
	units, err := DecodeSolcOutput(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("solc %s: %w", path, err)
	}
	for _, u := range units {
		if u.Source != "" {
			continue
		}
		if src, err := os.ReadFile(u.Path); err == nil {
			u.Source = string(src)
		} else if u.Path == path {
			return nil, err
		}
	}
	return units, nil
}
