package inventory

import "errors"

// ErrExtraction indicates that a PDF yielded no usable form fields.
// It is fatal to a mapping run and is never retried.
var ErrExtraction = errors.New("no usable form fields extracted")

// FieldKind classifies a fillable widget for mapping and filling purposes.
type FieldKind string

const (
	FieldKindText     FieldKind = "text"
	FieldKindCheckbox FieldKind = "checkbox"
	FieldKindChoice   FieldKind = "choice"
)

// maxLabelLength caps the nearby-label text carried into oracle prompts.
const maxLabelLength = 150

// FieldDescriptor describes one fillable widget of a PDF form.
//
// FieldPath is the fully-qualified AcroForm field name and is treated as an
// opaque identifier: it is preserved verbatim and never synthesized. SimpleRef
// is a short human-scannable alias ("f1_07") used in prompts and logs.
type FieldDescriptor struct {
	FieldPath   string    `json:"field_path"`
	Kind        FieldKind `json:"kind"`
	Page        int       `json:"page"`
	YPos        float64   `json:"y_pos"`
	SimpleRef   string    `json:"simple_ref"`
	NearbyLabel string    `json:"nearby_label,omitempty"`

	// Widget lower-left corner, used only for label proximity search.
	llx, lly float64
}

// Inventory is the ordered field set of one form template.
type Inventory struct {
	FormType    string            `json:"form_type"`
	FormVersion string            `json:"form_version"`
	Fields      []FieldDescriptor `json:"fields"`
}

// PathSet returns the set of field paths in the inventory.
func (inv *Inventory) PathSet() map[string]struct{} {
	set := make(map[string]struct{}, len(inv.Fields))
	for _, f := range inv.Fields {
		set[f.FieldPath] = struct{}{}
	}
	return set
}

// ByPath returns the descriptor for a field path, if present.
func (inv *Inventory) ByPath(path string) (FieldDescriptor, bool) {
	for _, f := range inv.Fields {
		if f.FieldPath == path {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

func truncateLabel(s string) string {
	if len(s) <= maxLabelLength {
		return s
	}
	return s[:maxLabelLength]
}
