package fill

import "strings"

// CheckboxGroup describes a set of mutually exclusive checkbox fields driven
// by one free-text semantic value. Matching an option sets exactly one
// sibling true and every other sibling explicitly false, never "whatever it
// was before".
type CheckboxGroup struct {
	// Key is the semantic-value key that selects within the group.
	Key string
	// Options maps option ids to the semantic names of the member checkboxes.
	Options map[string]string
	// Synonyms maps normalized caller spellings to option ids.
	Synonyms map[string]string
}

// Match resolves a caller-supplied value to an option id, case-insensitively
// through the synonym table.
func (g *CheckboxGroup) Match(value string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(value))
	needle = strings.Join(strings.Fields(needle), " ")
	option, ok := g.Synonyms[needle]
	return option, ok
}

// MemberNames returns the semantic names of every checkbox in the group.
func (g *CheckboxGroup) MemberNames() []string {
	names := make([]string, 0, len(g.Options))
	for _, name := range g.Options {
		names = append(names, name)
	}
	return names
}

// FilingStatusGroup is the five-way federal filing status choice.
func FilingStatusGroup() *CheckboxGroup {
	return &CheckboxGroup{
		Key: "filing_status",
		Options: map[string]string{
			"single":                      "filing_status_single",
			"married_jointly":             "filing_status_married_jointly",
			"married_separately":          "filing_status_married_separately",
			"head_of_household":           "filing_status_head_of_household",
			"qualifying_surviving_spouse": "filing_status_qualifying_surviving_spouse",
		},
		Synonyms: map[string]string{
			"single": "single",
			"s":      "single",

			"married filing jointly": "married_jointly",
			"married joint":          "married_jointly",
			"married jointly":        "married_jointly",
			"mfj":                    "married_jointly",
			"joint":                  "married_jointly",

			"married filing separately": "married_separately",
			"married separate":          "married_separately",
			"married separately":        "married_separately",
			"mfs":                       "married_separately",

			"head of household": "head_of_household",
			"hoh":               "head_of_household",

			"qualifying surviving spouse": "qualifying_surviving_spouse",
			"qss":                         "qualifying_surviving_spouse",
			"qualifying widow":            "qualifying_surviving_spouse",
			"qualifying widow(er)":        "qualifying_surviving_spouse",
			"qualifying widower":          "qualifying_surviving_spouse",
		},
	}
}
