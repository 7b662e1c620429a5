// Package mapping implements the semantic-mapping engine: it converges on a
// validated mapping document for one form template by querying a reasoning
// oracle in phases and filtering what comes back.
package mapping

import (
	"fmt"
	"sort"
	"time"
)

// Document is the persistent product of a mapping run: semantic names grouped
// by section, each resolving to a verbatim field path of the form template.
// Once Validated it is immutable; regeneration replaces it wholesale.
type Document struct {
	FormType       string                       `json:"form_type"`
	FormVersion    string                       `json:"form_version"`
	RunID          string                       `json:"run_id"`
	Sections       map[string]map[string]string `json:"sections"`
	Coverage       float64                      `json:"coverage"`
	Validated      bool                         `json:"validated"`
	GeneratedAt    time.Time                    `json:"generated_at"`
	IterationsUsed int                          `json:"iterations_used"`
}

// NewDocument creates an empty working document for one form template.
func NewDocument(formType, formVersion string) *Document {
	return &Document{
		FormType:    formType,
		FormVersion: formVersion,
		Sections:    make(map[string]map[string]string),
	}
}

// MappedPaths returns the set of field paths claimed by the document.
func (d *Document) MappedPaths() map[string]struct{} {
	paths := make(map[string]struct{})
	for _, section := range d.Sections {
		for _, path := range section {
			paths[path] = struct{}{}
		}
	}
	return paths
}

// EntryCount returns the number of mapping entries across all sections.
func (d *Document) EntryCount() int {
	n := 0
	for _, section := range d.Sections {
		n += len(section)
	}
	return n
}

// SectionNames returns the document's section vocabulary, sorted.
func (d *Document) SectionNames() []string {
	names := make([]string, 0, len(d.Sections))
	for name := range d.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SemanticNames returns every semantic name in the document, sorted.
func (d *Document) SemanticNames() []string {
	var names []string
	for _, section := range d.Sections {
		for name := range section {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a semantic name to its field path, searching sections in
// sorted order so resolution is deterministic if a name ever repeats.
func (d *Document) Lookup(semanticName string) (string, bool) {
	for _, sectionName := range d.SectionNames() {
		if path, ok := d.Sections[sectionName][semanticName]; ok {
			return path, true
		}
	}
	return "", false
}

// Flatten collapses the sections into a single semantic-name index,
// first writer (in sorted section order) winning on duplicates.
func (d *Document) Flatten() map[string]string {
	flat := make(map[string]string, d.EntryCount())
	for _, sectionName := range d.SectionNames() {
		for name, path := range d.Sections[sectionName] {
			if _, exists := flat[name]; !exists {
				flat[name] = path
			}
		}
	}
	return flat
}

// recomputeCoverage updates Coverage against the inventory size.
func (d *Document) recomputeCoverage(inventorySize int) {
	if inventorySize == 0 {
		d.Coverage = 0
		return
	}
	d.Coverage = float64(len(d.MappedPaths())) / float64(inventorySize)
}

// Key returns the cache key string for logs.
func (d *Document) Key() string {
	return fmt.Sprintf("%s/%s", d.FormType, d.FormVersion)
}
