package fill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilingStatusGroupMatch(t *testing.T) {
	group := FilingStatusGroup()

	tests := []struct {
		value string
		want  string
	}{
		{value: "single", want: "single"},
		{value: "Single", want: "single"},
		{value: "SINGLE", want: "single"},
		{value: "  single  ", want: "single"},
		{value: "married filing jointly", want: "married_jointly"},
		{value: "Married  Filing  Jointly", want: "married_jointly"},
		{value: "MFJ", want: "married_jointly"},
		{value: "married filing separately", want: "married_separately"},
		{value: "mfs", want: "married_separately"},
		{value: "Head of Household", want: "head_of_household"},
		{value: "HOH", want: "head_of_household"},
		{value: "qualifying surviving spouse", want: "qualifying_surviving_spouse"},
		{value: "Qualifying Widow(er)", want: "qualifying_surviving_spouse"},
		{value: "QSS", want: "qualifying_surviving_spouse"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			option, ok := group.Match(tt.value)
			require.True(t, ok, "expected %q to match", tt.value)
			assert.Equal(t, tt.want, option)
		})
	}
}

func TestFilingStatusGroupNoMatch(t *testing.T) {
	group := FilingStatusGroup()

	for _, value := range []string{"", "divorced", "married", "widowed"} {
		_, ok := group.Match(value)
		assert.False(t, ok, "expected %q not to match", value)
	}
}

func TestFilingStatusGroupMembers(t *testing.T) {
	group := FilingStatusGroup()

	assert.Equal(t, "filing_status", group.Key)
	assert.Len(t, group.Options, 5)

	names := group.MemberNames()
	assert.Len(t, names, 5)
	assert.Contains(t, names, "filing_status_single")
	assert.Contains(t, names, "filing_status_qualifying_surviving_spouse")

	// Every synonym resolves to a real option.
	for synonym, option := range group.Synonyms {
		_, ok := group.Options[option]
		assert.True(t, ok, "synonym %q points at unknown option %q", synonym, option)
	}
}
