package oracle

import (
	"fmt"
	"sort"
	"strings"
)

const systemPrompt = `You assign stable, human-meaningful semantic names to the opaque field
identifiers of a fillable PDF tax form.

Rules:
- Respond with a single JSON object: {"<section>": {"<semantic_name>": "<field_path>", ...}, ...}.
- Use ONLY field_path values given in the request, copied verbatim. Never invent one.
- Each field_path may appear at most once across the whole response.
- semantic_name is lower_snake_case and describes what a preparer would call the
  field: taxpayer_first_name, spouse_ssn, wages_line_1a, filing_status_single.
- Group related fields into sections such as taxpayer, spouse, dependents,
  income, deductions, tax_and_credits, payments, refund, signature.
- For checkbox clusters, name each option separately (filing_status_single,
  filing_status_married_jointly, ...).
- Prefer official line numbers from the label text when present (line_1a, line_25c).`

// BuildPrompt renders a Request into the user prompt for the reasoning model.
// Fields are listed in reading order, one summary line each, so positional
// context survives into the prompt.
func BuildPrompt(req Request) string {
	var b strings.Builder

	if req.GapFill {
		fmt.Fprintf(&b, "Form %s (version %s). The fields below are STILL UNMAPPED after earlier passes.\n", req.FormType, req.FormVersion)
		b.WriteString("Map as many of them as you can. Do not re-map anything else.\n\n")
	} else {
		fmt.Fprintf(&b, "Form %s (version %s). Map every field you can identify.\n\n", req.FormType, req.FormVersion)
	}

	if len(req.Conventions.Sections) > 0 {
		sections := append([]string(nil), req.Conventions.Sections...)
		sort.Strings(sections)
		fmt.Fprintf(&b, "Existing sections (reuse, do not invent parallels): %s\n", strings.Join(sections, ", "))
	}
	if len(req.Conventions.SemanticNames) > 0 {
		names := append([]string(nil), req.Conventions.SemanticNames...)
		sort.Strings(names)
		fmt.Fprintf(&b, "Names already taken: %s\n", strings.Join(names, ", "))
	}
	if len(req.Conventions.Sections) > 0 || len(req.Conventions.SemanticNames) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("Fields (page, y, ref, kind, label => field_path):\n")
	for _, f := range req.Fields {
		label := f.NearbyLabel
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(&b, "p%d y=%.0f %s %s %q => %s\n", f.Page, f.YPos, f.SimpleRef, f.Kind, label, f.FieldPath)
	}

	return b.String()
}
