package descriptions

// Tool descriptions with practical examples and use cases

const (
	FormFieldInventoryDescription = `List every fillable field of a PDF form with positional and label metadata.

**When to use:** Inspect a new form template before generating a mapping, or debug why a field is not being filled.

**Why it's useful:** PDF forms expose opaque auto-generated field names (like "topmostSubform[0].Page1[0].f1_04[0]"). This tool shows each field's page, position, type, and the label text printed next to it, so you can see what the mapping engine sees.

**Examples:**
• Inspect a new template: "List the fields of f1040-2024.pdf"
• Debug a fill: "Show the inventory for w9-2024.pdf and find the TIN boxes"

**Best practices:** Field paths are opaque identifiers - never edit or invent them. Use the simple_ref aliases when discussing fields.`

	FormGenerateMappingDescription = `Generate (or refresh) the semantic field mapping for a form template.

**When to use:** A new form template was uploaded, or the template changed and its cached mapping is stale.

**Why it's useful:** Runs the iterative mapping engine: an initial full-inventory pass, then gap-filling rounds over the still-unmapped fields, then validation (hallucination filtering, injectivity). The result is cached by (form_type, form_version) and reused for every later fill at no cost.

**Examples:**
• First-time mapping: "Generate the mapping for f1040-2024.pdf"
• Force refresh after a template change: "Regenerate the mapping for f1040-2024.pdf with force=true"

**Common workflows:**
1. Upload template → form_generate_mapping → form_mapping_status → form_fill
2. Coverage below threshold → inspect skipped fields via form_field_inventory → regenerate

**Best practices:** A run that ends below the coverage threshold is persisted unvalidated; check validated before trusting it for production fills.`

	FormMappingStatusDescription = `Report the cached mapping for a (form_type, form_version) key.

**When to use:** Before filling, to check whether a validated mapping exists and how much of the form it covers.

**Examples:**
• "What's the mapping status for f1040 version 2024?"
• "List coverage for all cached forms" (omit both arguments)`

	FormFillDescription = `Fill a PDF form with semantic values through its cached mapping.

**When to use:** You have taxpayer values keyed by semantic names (taxpayer_first_name, wages_line_1a, filing_status, ...) and want them written into the actual PDF fields.

**Why it's useful:** Handles value normalization automatically: currency is reformatted to two decimals, SSN/EIN separators are stripped for digit-box fields, and mutually exclusive checkbox groups (like filing status) set exactly one option and clear the others.

**Examples:**
• "Fill f1040-2024.pdf with {"taxpayer_first_name": "Ava", "filing_status": "single", "wages_line_1a": "$85,000"}"

**Best practices:** Partial fills are normal - unmapped keys come back in skipped_unmapped rather than failing the call. Check the warnings list when the mapping is unvalidated.`

	FormServerInfoDescription = `Get server information, available tools, cached mappings, and usage guidance.

**When to use:** Start here to discover the forms directory, the cached mapping inventory, and the recommended workflow.`
)
