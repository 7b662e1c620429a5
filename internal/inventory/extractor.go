package inventory

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
)

// Extractor produces FieldDescriptor inventories from PDF form templates
// using pdfcpu's AcroForm dictionaries.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a new inventory extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// ExtractFile builds the field inventory for a PDF file.
func (e *Extractor) ExtractFile(path, formType, formVersion string) (*Inventory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	inv, err := e.Extract(file, formType, formVersion)
	if err != nil {
		return nil, err
	}

	// Labels are best-effort; a label-less inventory is still usable.
	if err := annotateLabels(path, inv); err != nil {
		e.logger.Warn("nearby-label extraction failed",
			zap.String("path", path), zap.Error(err))
	}
	return inv, nil
}

// Extract builds the field inventory from a PDF stream.
func (e *Extractor) Extract(reader io.ReadSeeker, formType, formVersion string) (*Inventory, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(reader, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	fields, err := e.extractFields(ctx)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s %s: %w", formType, formVersion, ErrExtraction)
	}

	// Stable reading order: page, then top-to-bottom (PDF y grows upward),
	// then field path for widgets sharing a baseline.
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Page != fields[j].Page {
			return fields[i].Page < fields[j].Page
		}
		if fields[i].YPos != fields[j].YPos {
			return fields[i].YPos > fields[j].YPos
		}
		return fields[i].FieldPath < fields[j].FieldPath
	})

	// Short aliases follow reading order, restarting per page.
	ordinal := 0
	lastPage := 0
	for i := range fields {
		if fields[i].Page != lastPage {
			lastPage = fields[i].Page
			ordinal = 0
		}
		ordinal++
		fields[i].SimpleRef = fmt.Sprintf("f%d_%02d", fields[i].Page, ordinal)
	}

	e.logger.Debug("extracted field inventory",
		zap.String("form_type", formType),
		zap.String("form_version", formVersion),
		zap.Int("fields", len(fields)))

	return &Inventory{FormType: formType, FormVersion: formVersion, Fields: fields}, nil
}

// extractFields walks catalog → AcroForm → Fields, descending into Kids so
// that fully-qualified (dotted) field names are preserved verbatim.
func (e *Extractor) extractFields(ctx *model.Context) ([]FieldDescriptor, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil, nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	pages := newPageIndex(ctx, e.logger)

	var out []FieldDescriptor
	for i, fieldRef := range fieldsArray {
		descs, err := e.walkField(ctx, pages, fieldRef, "", 0)
		if err != nil {
			e.logger.Warn("skipping unreadable field", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, descs...)
	}
	return out, nil
}

// walkField processes one field dictionary and recurses into non-widget Kids.
func (e *Extractor) walkField(ctx *model.Context, pages *pageIndex, fieldObj types.Object, parentPath string, depth int) ([]FieldDescriptor, error) {
	if depth > 8 {
		return nil, fmt.Errorf("field tree too deep at %q", parentPath)
	}

	fieldDict, err := ctx.DereferenceDict(fieldObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference field: %w", err)
	}
	if fieldDict == nil {
		return nil, nil
	}

	path := parentPath
	if nameObj, found := fieldDict.Find("T"); found {
		if name, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil && name != "" {
			if path == "" {
				path = name
			} else {
				path = path + "." + name
			}
		}
	}

	// Intermediate nodes carry no FT of their own but group widget Kids.
	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kidsArray, err := ctx.DereferenceArray(kidsObj); err == nil && len(kidsArray) > 0 {
			if !kidsAreWidgets(ctx, kidsArray) {
				var out []FieldDescriptor
				for _, kid := range kidsArray {
					descs, err := e.walkField(ctx, pages, kid, path, depth+1)
					if err != nil {
						continue
					}
					out = append(out, descs...)
				}
				return out, nil
			}
		}
	}

	kind, ok := fieldKind(ctx, fieldDict)
	if !ok {
		// Pushbuttons and signatures are not fillable data fields.
		return nil, nil
	}
	if path == "" {
		return nil, fmt.Errorf("terminal field without a name")
	}

	page, rect := fieldPlacement(ctx, pages, fieldObj, fieldDict)
	return []FieldDescriptor{{
		FieldPath: path,
		Kind:      kind,
		Page:      page,
		YPos:      rect[3],
		llx:       rect[0],
		lly:       rect[1],
	}}, nil
}

// kidsAreWidgets reports whether a Kids array holds widget annotations
// (same field, multiple placements) rather than child fields.
func kidsAreWidgets(ctx *model.Context, kids types.Array) bool {
	kidDict, err := ctx.DereferenceDict(kids[0])
	if err != nil || kidDict == nil {
		return false
	}
	// A kid with its own partial name T is a child field, not a widget.
	_, hasName := kidDict.Find("T")
	return !hasName
}

// fieldKind maps the FT entry (inherited through Parent) plus button flags
// onto the three fillable kinds. Radio groups behave as checkbox clusters.
func fieldKind(ctx *model.Context, fieldDict types.Dict) (FieldKind, bool) {
	ftObj, found := fieldDict.Find("FT")
	if !found {
		if parentObj, ok := fieldDict.Find("Parent"); ok {
			if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
				return fieldKind(ctx, parentDict)
			}
		}
		return "", false
	}
	ftName, err := ctx.DereferenceName(ftObj, model.V10, nil)
	if err != nil {
		return "", false
	}

	switch ftName {
	case "Tx":
		return FieldKindText, true
	case "Ch":
		return FieldKindChoice, true
	case "Btn":
		if flagsObj, ok := fieldDict.Find("Ff"); ok {
			if flags, err := ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
				if (*flags & (1 << 16)) != 0 { // Bit 17: pushbutton
					return "", false
				}
			}
		}
		return FieldKindCheckbox, true
	default:
		return "", false
	}
}

// fieldPlacement resolves the page number and widget rect for a field.
func fieldPlacement(ctx *model.Context, pages *pageIndex, fieldObj types.Object, fieldDict types.Dict) (int, [4]float64) {
	// Merged field+widget dictionary carries its own Rect.
	if ref, ok := fieldObj.(types.IndirectRef); ok {
		if page := pages.pageOf(ref.ObjectNumber.Value()); page > 0 {
			return page, widgetRect(ctx, fieldDict)
		}
	}

	// Otherwise the first widget kid places the field.
	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kidsArray, err := ctx.DereferenceArray(kidsObj); err == nil && len(kidsArray) > 0 {
			if ref, ok := kidsArray[0].(types.IndirectRef); ok {
				if kidDict, err := ctx.DereferenceDict(kidsArray[0]); err == nil && kidDict != nil {
					page := pages.pageOf(ref.ObjectNumber.Value())
					if page == 0 {
						page = 1
					}
					return page, widgetRect(ctx, kidDict)
				}
			}
		}
	}
	return 1, [4]float64{}
}

// widgetRect returns the [llx lly urx ury] coordinates of a widget's Rect.
func widgetRect(ctx *model.Context, annotDict types.Dict) [4]float64 {
	var rect [4]float64
	rectObj, found := annotDict.Find("Rect")
	if !found {
		return rect
	}
	rectArray, err := ctx.DereferenceArray(rectObj)
	if err != nil || len(rectArray) != 4 {
		return rect
	}
	for i, coord := range rectArray {
		if f, err := ctx.DereferenceNumber(coord); err == nil {
			rect[i] = f
		}
	}
	return rect
}

// pageIndex maps annotation object numbers to page numbers by walking the
// page tree once and recording each page's Annots references.
type pageIndex struct {
	byObjNr map[int]int
}

func newPageIndex(ctx *model.Context, logger *zap.Logger) *pageIndex {
	idx := &pageIndex{byObjNr: make(map[int]int)}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return idx
	}
	pagesObj, found := rootDict.Find("Pages")
	if !found {
		return idx
	}

	pageNr := 0
	var walk func(obj types.Object, depth int)
	walk = func(obj types.Object, depth int) {
		if depth > 16 {
			return
		}
		dict, err := ctx.DereferenceDict(obj)
		if err != nil || dict == nil {
			return
		}
		typeObj, _ := dict.Find("Type")
		typeName, _ := ctx.DereferenceName(typeObj, model.V10, nil)
		switch typeName {
		case "Pages":
			if kidsObj, ok := dict.Find("Kids"); ok {
				if kids, err := ctx.DereferenceArray(kidsObj); err == nil {
					for _, kid := range kids {
						walk(kid, depth+1)
					}
				}
			}
		case "Page":
			pageNr++
			annotsObj, ok := dict.Find("Annots")
			if !ok {
				return
			}
			annots, err := ctx.DereferenceArray(annotsObj)
			if err != nil {
				return
			}
			for _, annot := range annots {
				if ref, ok := annot.(types.IndirectRef); ok {
					idx.byObjNr[ref.ObjectNumber.Value()] = pageNr
				}
			}
		}
	}
	walk(pagesObj, 0)

	if len(idx.byObjNr) == 0 {
		logger.Debug("page index empty, widget pages default to 1")
	}
	return idx
}

// pageOf returns the page number owning an annotation object, or 0.
func (p *pageIndex) pageOf(objNr int) int {
	return p.byObjNr[objNr]
}
