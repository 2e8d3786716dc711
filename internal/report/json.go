package report

import (
	"encoding/json"
	"io"

	"github.com/pyrite-audit/pyrite/internal/model"
)

// JSON writes the scan result verbatim as indented JSON. The schema is
// the model types' JSON encoding; nothing is added or dropped, so the
// output round-trips back into a ScanResult.
type JSON struct{}

func (JSON) Render(w io.Writer, res *model.ScanResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
