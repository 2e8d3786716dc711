package parsetree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decode reads one source unit from its JSON encoding.
func Decode(data []byte) (*SourceUnit, error) {
	var unit SourceUnit
	if err := json.Unmarshal(data, &unit); err != nil {
		return nil, fmt.Errorf("decode parse tree: %w", err)
	}
	return &unit, nil
}

// DecodeSolcOutput extracts every source unit from raw solc
// --ast-compact-json output. Newer solc prints one JSON object per file
// under "======= path =======" banners; older builds print a single
// object. Both shapes are handled.
func DecodeSolcOutput(out []byte) ([]*SourceUnit, error) {
	var units []*SourceUnit
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var unit SourceUnit
		if err := json.Unmarshal([]byte(line), &unit); err == nil && len(unit.Nodes) > 0 {
			units = append(units, &unit)
		}
	}
	if len(units) > 0 {
		return units, nil
	}
	// Pretty-printed single object: take everything from the first brace.
	if i := strings.Index(string(out), "{"); i >= 0 {
		unit, err := Decode(out[i:])
		if err != nil {
			return nil, err
		}
		return []*SourceUnit{unit}, nil
	}
	return nil, fmt.Errorf("no parse tree found in solc output")
}
