// Package fill writes semantic values into the real PDF fields named by a
// mapping document. It is a read-only consumer of the mapping: stateless and
// safe to invoke concurrently across users and forms.
package fill

import "errors"

// ErrUnknownField indicates a mapped field path with no matching widget in
// the PDF. It is fatal for that single field only; the rest of the fill
// proceeds.
var ErrUnknownField = errors.New("field path not present in PDF")

// Result reports what one fill call actually wrote. Partial fills are normal:
// callers rarely supply every semantic field.
type Result struct {
	FilledText       int                 `json:"filled_text"`
	FilledCheckboxes int                 `json:"filled_checkboxes"`
	SkippedUnmapped  []string            `json:"skipped_unmapped"`
	FilledFieldPaths map[string]struct{} `json:"-"`
	Warnings         []string            `json:"warnings,omitempty"`
}

// FilledCount returns the total number of fields written.
func (r *Result) FilledCount() int {
	return r.FilledText + r.FilledCheckboxes
}
