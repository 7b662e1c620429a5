package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	doc := NewDocument("f1040", "2024")

	assert.Equal(t, "f1040", doc.FormType)
	assert.Equal(t, "2024", doc.FormVersion)
	assert.NotNil(t, doc.Sections)
	assert.Equal(t, 0, doc.EntryCount())
	assert.False(t, doc.Validated)
	assert.Equal(t, "f1040/2024", doc.Key())
}

func TestDocumentMappedPathsAndEntryCount(t *testing.T) {
	doc := NewDocument("f1040", "2024")
	doc.Sections = map[string]map[string]string{
		"taxpayer": {
			"taxpayer_first_name": "f1_04[0]",
			"taxpayer_last_name":  "f1_05[0]",
		},
		"income": {
			"wages_line_1a": "f1_32[0]",
		},
	}

	assert.Equal(t, 3, doc.EntryCount())
	paths := doc.MappedPaths()
	assert.Len(t, paths, 3)
	assert.Contains(t, paths, "f1_32[0]")
}

func TestDocumentSectionNamesSorted(t *testing.T) {
	doc := NewDocument("f1040", "2024")
	doc.Sections = map[string]map[string]string{
		"taxpayer": {"a": "1"},
		"income":   {"b": "2"},
		"refund":   {"c": "3"},
	}

	assert.Equal(t, []string{"income", "refund", "taxpayer"}, doc.SectionNames())
}

func TestDocumentSemanticNamesSorted(t *testing.T) {
	doc := NewDocument("f1040", "2024")
	doc.Sections = map[string]map[string]string{
		"taxpayer": {"zeta": "1", "alpha": "2"},
		"income":   {"mid": "3"},
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, doc.SemanticNames())
}

func TestDocumentLookup(t *testing.T) {
	doc := NewDocument("f1040", "2024")
	doc.Sections = map[string]map[string]string{
		"taxpayer": {"taxpayer_ssn": "f1_06[0]"},
	}

	path, ok := doc.Lookup("taxpayer_ssn")
	require.True(t, ok)
	assert.Equal(t, "f1_06[0]", path)

	_, ok = doc.Lookup("missing")
	assert.False(t, ok)
}

func TestDocumentLookupDeterministicAcrossSections(t *testing.T) {
	// If a name ever repeats across sections, resolution follows sorted
	// section order so it never flips between runs.
	doc := NewDocument("f1040", "2024")
	doc.Sections = map[string]map[string]string{
		"zz_late":  {"shared_name": "late[0]"},
		"aa_early": {"shared_name": "early[0]"},
	}

	path, ok := doc.Lookup("shared_name")
	require.True(t, ok)
	assert.Equal(t, "early[0]", path)

	flat := doc.Flatten()
	assert.Equal(t, "early[0]", flat["shared_name"])
}

func TestDocumentRecomputeCoverage(t *testing.T) {
	doc := NewDocument("f1040", "2024")
	doc.Sections = map[string]map[string]string{
		"taxpayer": {"a": "p1", "b": "p2"},
	}

	doc.recomputeCoverage(4)
	assert.InDelta(t, 0.5, doc.Coverage, 1e-9)

	doc.recomputeCoverage(0)
	assert.Equal(t, 0.0, doc.Coverage)
}
