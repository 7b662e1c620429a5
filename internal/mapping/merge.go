package mapping

import (
	"fmt"
	"sort"

	"github.com/taxpilot/fieldmap/internal/oracle"
)

// merge folds an oracle fragment into the document. Entries are filtered on
// the way in:
//   - field paths outside the inventory are dropped (hallucination defense),
//   - field paths already claimed keep their first semantic name (injective
//     mapping, first writer wins),
//   - semantic names already present in a section are not overwritten.
//
// Because merge only ever adds entries, coverage is monotonically
// non-decreasing across rounds. Returns the number of newly mapped field
// paths plus a conflict/drop report.
func merge(doc *Document, frag oracle.Fragment, inventorySet map[string]struct{}) (int, []string) {
	claimed := doc.MappedPaths()
	var report []string
	added := 0

	// Deterministic merge order regardless of map iteration.
	sectionNames := make([]string, 0, len(frag))
	for name := range frag {
		sectionNames = append(sectionNames, name)
	}
	sort.Strings(sectionNames)

	for _, sectionName := range sectionNames {
		entries := frag[sectionName]
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, semanticName := range names {
			path := entries[semanticName]
			if _, ok := inventorySet[path]; !ok {
				report = append(report, fmt.Sprintf("dropped %s.%s: field path %q not in inventory", sectionName, semanticName, path))
				continue
			}
			if _, taken := claimed[path]; taken {
				report = append(report, fmt.Sprintf("conflict %s.%s: field path %q already mapped, keeping first", sectionName, semanticName, path))
				continue
			}
			if _, exists := doc.Sections[sectionName][semanticName]; exists {
				report = append(report, fmt.Sprintf("duplicate name %s.%s: keeping first", sectionName, semanticName))
				continue
			}
			if doc.Sections[sectionName] == nil {
				doc.Sections[sectionName] = make(map[string]string)
			}
			doc.Sections[sectionName][semanticName] = path
			claimed[path] = struct{}{}
			added++
		}
	}
	return added, report
}

// Revalidate re-applies the terminal validation filter to a document:
// hallucinated paths are dropped, injectivity is enforced first-writer-wins
// in sorted section order, and Validated is recomputed against the
// threshold. Running it on an already-validated document is a no-op.
func Revalidate(doc *Document, inventorySet map[string]struct{}, threshold float64) []string {
	var report []string
	claimed := make(map[string]struct{})

	for _, sectionName := range doc.SectionNames() {
		section := doc.Sections[sectionName]
		names := make([]string, 0, len(section))
		for name := range section {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, semanticName := range names {
			path := section[semanticName]
			if _, ok := inventorySet[path]; !ok {
				report = append(report, fmt.Sprintf("validation dropped %s.%s: field path %q not in inventory", sectionName, semanticName, path))
				delete(section, semanticName)
				continue
			}
			if _, taken := claimed[path]; taken {
				report = append(report, fmt.Sprintf("validation conflict %s.%s: field path %q claimed twice, keeping first", sectionName, semanticName, path))
				delete(section, semanticName)
				continue
			}
			claimed[path] = struct{}{}
		}
		if len(section) == 0 {
			delete(doc.Sections, sectionName)
		}
	}

	doc.recomputeCoverage(len(inventorySet))
	doc.Validated = doc.Coverage >= threshold
	return report
}
