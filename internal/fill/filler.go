package fill

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"

	"github.com/taxpilot/fieldmap/internal/mapping"
)

// Filler writes semantic values into a PDF through a mapping document.
type Filler struct {
	groups []*CheckboxGroup
	logger *zap.Logger
}

// NewFiller creates a filler with the standard checkbox groups registered.
func NewFiller(logger *zap.Logger) *Filler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filler{
		groups: []*CheckboxGroup{FilingStatusGroup()},
		logger: logger,
	}
}

// formField is a fillable field located in the PDF: its dictionary, kind,
// the widget annotations that display it, and (for checkboxes) the resolved
// checked appearance-state name.
type formField struct {
	dict    types.Dict
	kind    string // "text", "checkbox", "choice"
	widgets []types.Dict
	onState string
}

// Fill resolves each semantic value through the mapping, normalizes it, and
// writes it into the PDF at inPath, saving the result to outPath.
//
// Unmapped semantic names are skipped and reported, not errors. A mapped
// field path missing from the PDF's widget set is logged per field and the
// rest of the fill continues.
func (f *Filler) Fill(ctx context.Context, inPath, outPath string, doc *mapping.Document, values map[string]any) (*Result, error) {
	file, err := os.Open(inPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pdfCtx, err := api.ReadContext(file, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	fields, acroForm, err := collectFields(pdfCtx)
	if err != nil {
		return nil, err
	}

	result := f.apply(fields, doc, values)

	// Viewers regenerate widget appearances from the new values.
	if acroForm != nil {
		acroForm["NeedAppearances"] = types.Boolean(true)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output PDF: %w", err)
	}
	defer out.Close()
	if err := api.WriteContext(pdfCtx, out); err != nil {
		return nil, fmt.Errorf("failed to write filled PDF: %w", err)
	}

	f.logger.Info("form filled",
		zap.String("form", doc.Key()),
		zap.Int("text_fields", result.FilledText),
		zap.Int("checkboxes", result.FilledCheckboxes),
		zap.Int("skipped_unmapped", len(result.SkippedUnmapped)))
	return result, nil
}

// apply resolves and writes every semantic value against the collected field
// set. Pure dictionary mutation, no file IO.
func (f *Filler) apply(fields map[string]*formField, doc *mapping.Document, values map[string]any) *Result {
	result := &Result{FilledFieldPaths: make(map[string]struct{})}
	if !doc.Validated {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("mapping for %s is unvalidated (coverage %.0f%%), fill may be incomplete", doc.Key(), doc.Coverage*100))
	}

	flat := doc.Flatten()
	pending := make(map[string]any, len(values))
	for k, v := range values {
		pending[k] = v
	}

	// Mutually exclusive checkbox groups first: one free-text value drives
	// the whole cluster, siblings are forced off explicitly.
	for _, group := range f.groups {
		raw, ok := pending[group.Key]
		if !ok {
			continue
		}
		delete(pending, group.Key)

		text, ok := raw.(string)
		if !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("group %q requires a string value", group.Key))
			continue
		}
		chosen, ok := group.Match(text)
		if !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("group %q: unrecognized option %q", group.Key, text))
			continue
		}

		options := make([]string, 0, len(group.Options))
		for option := range group.Options {
			options = append(options, option)
		}
		sort.Strings(options)
		for _, option := range options {
			semanticName := group.Options[option]
			path, ok := flat[semanticName]
			if !ok {
				result.Warnings = append(result.Warnings, fmt.Sprintf("group %q: member %q not in mapping", group.Key, semanticName))
				continue
			}
			if f.writeCheckbox(fields, path, option == chosen, result) && option == chosen {
				result.FilledCheckboxes++
			}
		}
	}

	// Remaining scalar values in deterministic order.
	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, semanticName := range names {
		value := pending[semanticName]
		path, ok := flat[semanticName]
		if !ok {
			result.SkippedUnmapped = append(result.SkippedUnmapped, semanticName)
			continue
		}
		field, ok := fields[path]
		if !ok {
			f.logger.Error("mapped field missing from PDF",
				zap.String("semantic_name", semanticName),
				zap.String("field_path", path),
				zap.Error(ErrUnknownField))
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", path, ErrUnknownField))
			continue
		}

		switch field.kind {
		case "checkbox":
			checked, ok := AsBool(value)
			if !ok {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: value %v is not a checkbox state", semanticName, value))
				continue
			}
			if f.writeCheckbox(fields, path, checked, result) {
				result.FilledCheckboxes++
			}
		default:
			setTextValue(field, NormalizeText(value))
			result.FilledText++
			result.FilledFieldPaths[path] = struct{}{}
		}
	}

	return result
}

// writeCheckbox flips one checkbox widget on or off. Returns false when the
// path has no widget in the PDF.
func (f *Filler) writeCheckbox(fields map[string]*formField, path string, on bool, result *Result) bool {
	field, ok := fields[path]
	if !ok {
		f.logger.Error("mapped checkbox missing from PDF",
			zap.String("field_path", path), zap.Error(ErrUnknownField))
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", path, ErrUnknownField))
		return false
	}
	setCheckboxValue(field, on)
	if on {
		result.FilledFieldPaths[path] = struct{}{}
	}
	return true
}

// setTextValue writes a text or choice value and drops the stale appearance
// stream so NeedAppearances takes effect.
func setTextValue(field *formField, value string) {
	field.dict["V"] = types.StringLiteral(value)
	delete(field.dict, "AP")
	for _, w := range field.widgets {
		delete(w, "AP")
	}
}

// setCheckboxValue sets a checkbox's value and appearance state. The on
// state name was resolved from the widget's appearance dictionary during
// collection; "Yes" is the conventional fallback.
func setCheckboxValue(field *formField, on bool) {
	state := "Off"
	if on {
		state = field.onState
	}
	field.dict["V"] = types.Name(state)
	for _, w := range field.widgets {
		w["AS"] = types.Name(state)
	}
	if len(field.widgets) == 0 {
		field.dict["AS"] = types.Name(state)
	}
}
