package detectors

import (
	"fmt"

	"github.com/pyrite-audit/pyrite/internal/model"
)

// DuplicateDetectorIDError rejects a second registration under an id
// already taken.
type DuplicateDetectorIDError struct {
	ID string
}

func (e *DuplicateDetectorIDError) Error() string {
	return fmt.Sprintf("detector %q is already registered", e.ID)
}

// UnknownDetectorError reports an enable/disable against an id nobody
// registered.
type UnknownDetectorError struct {
	ID string
}

func (e *UnknownDetectorError) Error() string {
	return fmt.Sprintf("unknown detector %q", e.ID)
}

type entry struct {
	det      Detector
	disabled bool
}

// Registry holds detectors in registration order. Selection and
// scheduling never depend on map iteration, so two runs over the same
// registrations behave identically. A Registry is an explicit value
// passed into the engine, not process-global state; concurrent scans
// can hold independent registries.
type Registry struct {
	entries []entry
	byID    map[string]int
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]int)}
}

// Register adds a detector. Ids are permanent: re-registering one fails
// with DuplicateDetectorIDError.
func (r *Registry) Register(d Detector) error {
	id := d.Meta().ID
	if id == "" {
		return fmt.Errorf("detector %T has no id", d)
	}
	if _, exists := r.byID[id]; exists {
		return &DuplicateDetectorIDError{ID: id}
	}
	r.byID[id] = len(r.entries)
	r.entries = append(r.entries, entry{det: d})
	return nil
}

func (r *Registry) mustRegister(d Detector) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Disable keeps the detector registered (the audit trail of what exists
// is preserved) but excludes it from selection.
func (r *Registry) Disable(id string) error {
	i, ok := r.byID[id]
	if !ok {
		return &UnknownDetectorError{ID: id}
	}
	r.entries[i].disabled = true
	return nil
}

func (r *Registry) Enable(id string) error {
	i, ok := r.byID[id]
	if !ok {
		return &UnknownDetectorError{ID: id}
	}
	r.entries[i].disabled = false
	return nil
}

func (r *Registry) Enabled(id string) bool {
	i, ok := r.byID[id]
	return ok && !r.entries[i].disabled
}

func (r *Registry) Get(id string) (Detector, bool) {
	i, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.entries[i].det, true
}

// Position returns the registration index of a detector id; the
// scheduler uses it as the primary result ordering key.
func (r *Registry) Position(id string) int {
	if i, ok := r.byID[id]; ok {
		return i
	}
	return len(r.entries)
}

// All returns every registered detector, disabled ones included, in
// registration order.
func (r *Registry) All() []Detector {
	out := make([]Detector, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.det
	}
	return out
}

// Filter selects detectors by id, category and minimum default severity.
// Empty fields match everything.
type Filter struct {
	IDs         []string
	Categories  []model.Category
	MinSeverity model.Severity
}

func (f Filter) matches(m Meta) bool {
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == m.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if c == m.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinSeverity != "" && !model.SeverityGTE(m.Severity, f.MinSeverity) {
		return false
	}
	return true
}

// Select returns the enabled detectors matching the filter, in
// registration order.
func (r *Registry) Select(f Filter) []Detector {
	var out []Detector
	for _, e := range r.entries {
		if e.disabled {
			continue
		}
		if f.matches(e.det.Meta()) {
			out = append(out, e.det)
		}
	}
	return out
}
