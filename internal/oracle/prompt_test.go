package oracle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taxpilot/fieldmap/internal/inventory"
)

func promptFields() []inventory.FieldDescriptor {
	return []inventory.FieldDescriptor{
		{
			FieldPath:   "topmostSubform[0].Page1[0].f1_04[0]",
			Kind:        inventory.FieldKindText,
			Page:        1,
			YPos:        702,
			SimpleRef:   "f1_01",
			NearbyLabel: "First name and middle initial",
		},
		{
			FieldPath: "topmostSubform[0].Page1[0].c1_3[0]",
			Kind:      inventory.FieldKindCheckbox,
			Page:      1,
			YPos:      655,
			SimpleRef: "f1_02",
		},
	}
}

func TestBuildPromptInitialPass(t *testing.T) {
	prompt := BuildPrompt(Request{
		FormType:    "f1040",
		FormVersion: "2024",
		Fields:      promptFields(),
	})

	assert.Contains(t, prompt, "Form f1040 (version 2024). Map every field you can identify.")
	assert.NotContains(t, prompt, "STILL UNMAPPED")
	assert.Contains(t, prompt, `p1 y=702 f1_01 text "First name and middle initial" => topmostSubform[0].Page1[0].f1_04[0]`)
	// Fields without a label render a placeholder.
	assert.Contains(t, prompt, `p1 y=655 f1_02 checkbox "-" => topmostSubform[0].Page1[0].c1_3[0]`)
}

func TestBuildPromptGapFill(t *testing.T) {
	prompt := BuildPrompt(Request{
		FormType:    "f1040",
		FormVersion: "2024",
		Fields:      promptFields()[1:],
		GapFill:     true,
		Conventions: Conventions{
			Sections:      []string{"taxpayer", "income"},
			SemanticNames: []string{"wages_line_1a", "taxpayer_first_name"},
		},
	})

	assert.Contains(t, prompt, "STILL UNMAPPED")
	assert.Contains(t, prompt, "Existing sections (reuse, do not invent parallels): income, taxpayer")
	assert.Contains(t, prompt, "Names already taken: taxpayer_first_name, wages_line_1a")
}

func TestBuildPromptFieldOrderPreserved(t *testing.T) {
	fields := promptFields()
	prompt := BuildPrompt(Request{FormType: "w9", FormVersion: "2024", Fields: fields})

	first := strings.Index(prompt, fields[0].FieldPath)
	second := strings.Index(prompt, fields[1].FieldPath)
	assert.Greater(t, first, -1)
	assert.Greater(t, second, first)
}

func TestSystemPromptNamesTheContract(t *testing.T) {
	assert.Contains(t, systemPrompt, "lower_snake_case")
	assert.Contains(t, systemPrompt, "verbatim")
	assert.Contains(t, systemPrompt, "at most once")
}
