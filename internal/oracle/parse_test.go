package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCleanJSON(t *testing.T) {
	raw := `{
		"taxpayer": {
			"taxpayer_first_name": "topmostSubform[0].Page1[0].f1_04[0]",
			"taxpayer_ssn": "topmostSubform[0].Page1[0].f1_06[0]"
		},
		"income": {
			"wages_line_1a": "topmostSubform[0].Page1[0].f1_32[0]"
		}
	}`

	outcome := Parse(raw)
	require.Equal(t, ParseOK, outcome.Status)
	assert.Empty(t, outcome.Warnings)
	assert.Equal(t, 3, outcome.Fragment.Size())
	assert.Equal(t, "topmostSubform[0].Page1[0].f1_04[0]", outcome.Fragment["taxpayer"]["taxpayer_first_name"])
	assert.Equal(t, "topmostSubform[0].Page1[0].f1_32[0]", outcome.Fragment["income"]["wages_line_1a"])
}

func TestParseJSONCodeFence(t *testing.T) {
	raw := "Here is the mapping you asked for:\n```json\n" +
		`{"taxpayer": {"taxpayer_last_name": "f1_05[0]"}}` +
		"\n```\nLet me know if you need anything else."

	outcome := Parse(raw)
	require.Equal(t, ParseOK, outcome.Status)
	assert.Equal(t, "f1_05[0]", outcome.Fragment["taxpayer"]["taxpayer_last_name"])
}

func TestParseGenericCodeFence(t *testing.T) {
	raw := "```\n" + `{"spouse": {"spouse_ssn": "f1_07[0]"}}` + "\n```"

	outcome := Parse(raw)
	require.Equal(t, ParseOK, outcome.Status)
	assert.Equal(t, "f1_07[0]", outcome.Fragment["spouse"]["spouse_ssn"])
}

func TestParseJSONEmbeddedInProse(t *testing.T) {
	raw := `Sure! Based on the labels, {"refund": {"routing_number": "f2_13[0]"}} covers the direct deposit block.`

	outcome := Parse(raw)
	require.Equal(t, ParseOK, outcome.Status)
	assert.Equal(t, "f2_13[0]", outcome.Fragment["refund"]["routing_number"])
}

func TestParseSanitizesCommentsAndTrailingCommas(t *testing.T) {
	raw := `{
		// the main filer block
		"taxpayer": {
			"taxpayer_first_name": "f1_04[0]", // given name
			"taxpayer_ssn": "f1_06[0]",
		},
		/* everything below is income */
		"income": {
			"wages_line_1a": "f1_32[0]",
		},
	}`

	outcome := Parse(raw)
	require.Equal(t, ParsePartial, outcome.Status)
	assert.Contains(t, outcome.Warnings, "response required sanitization before parsing")
	assert.Equal(t, 3, outcome.Fragment.Size())
	assert.Equal(t, "f1_06[0]", outcome.Fragment["taxpayer"]["taxpayer_ssn"])
}

func TestParseDropsNonStringEntries(t *testing.T) {
	raw := `{
		"taxpayer": {
			"taxpayer_first_name": "f1_04[0]",
			"confidence": 0.95,
			"aliases": ["first", "given"]
		}
	}`

	outcome := Parse(raw)
	require.Equal(t, ParsePartial, outcome.Status)
	assert.Equal(t, 1, outcome.Fragment.Size())
	assert.Equal(t, "f1_04[0]", outcome.Fragment["taxpayer"]["taxpayer_first_name"])
	assert.Len(t, outcome.Warnings, 2)
}

func TestParseScrapesTruncatedResponse(t *testing.T) {
	// A response cut off mid-object: no balanced braces, no valid JSON.
	raw := `{"taxpayer": {
		"taxpayer_first_name": "f1_04[0]",
		"taxpayer_last_name": "f1_05[0]",
	"income": {
		"wages_line_1a": "f1_32[0]"`

	outcome := Parse(raw)
	require.Equal(t, ParsePartial, outcome.Status)
	assert.Contains(t, outcome.Warnings, "response was not valid JSON, recovered pairs by scraping")
	assert.Equal(t, "f1_04[0]", outcome.Fragment["taxpayer"]["taxpayer_first_name"])
	assert.Equal(t, "f1_05[0]", outcome.Fragment["taxpayer"]["taxpayer_last_name"])
	assert.Equal(t, "f1_32[0]", outcome.Fragment["income"]["wages_line_1a"])
}

func TestParseScrapeUsesUnsectionedDefault(t *testing.T) {
	raw := `"taxpayer_first_name": "f1_04[0]"
not json at all`

	outcome := Parse(raw)
	require.Equal(t, ParsePartial, outcome.Status)
	assert.Equal(t, "f1_04[0]", outcome.Fragment["unsectioned"]["taxpayer_first_name"])
}

func TestParseNothingRecoverable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty response", raw: ""},
		{name: "prose only", raw: "I could not identify any fields in this form."},
		{name: "empty object", raw: "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Parse(tt.raw)
			if tt.raw == "{}" {
				// An empty object is valid JSON with zero entries.
				assert.Equal(t, ParseOK, outcome.Status)
				assert.Equal(t, 0, outcome.Fragment.Size())
				return
			}
			assert.Equal(t, ParseFailed, outcome.Status)
			assert.NotEmpty(t, outcome.Warnings)
		})
	}
}

func TestParseStringValuesWithBracesSurvive(t *testing.T) {
	// Brace characters inside quoted strings must not confuse the balanced
	// scan that isolates the payload.
	raw := `noise before {"notes": {"odd_label": "path{with}braces[0]"}} noise after`

	outcome := Parse(raw)
	require.Equal(t, ParseOK, outcome.Status)
	assert.Equal(t, "path{with}braces[0]", outcome.Fragment["notes"]["odd_label"])
}

func TestFragmentSize(t *testing.T) {
	frag := Fragment{
		"taxpayer": {"a": "1", "b": "2"},
		"income":   {"c": "3"},
	}
	assert.Equal(t, 3, frag.Size())
	assert.Equal(t, 0, Fragment{}.Size())
}
