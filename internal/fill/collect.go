package fill

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// collectFields indexes the PDF's fillable fields by fully-qualified name.
// The walk mirrors the inventory extractor so the paths match the ones the
// mapping document was generated from. Also returns the AcroForm dictionary
// for the NeedAppearances flip.
func collectFields(ctx *model.Context) (map[string]*formField, types.Dict, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get catalog: %w", err)
	}
	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil, fmt.Errorf("PDF has no AcroForm dictionary")
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil || acroFormDict == nil {
		return nil, nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil, acroFormDict, fmt.Errorf("AcroForm has no Fields array")
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, acroFormDict, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	fields := make(map[string]*formField)
	for _, fieldRef := range fieldsArray {
		walkFillable(ctx, fieldRef, "", 0, fields)
	}
	return fields, acroFormDict, nil
}

// walkFillable descends the field tree accumulating dotted names, recording
// each terminal fillable field.
func walkFillable(ctx *model.Context, fieldObj types.Object, parentPath string, depth int, out map[string]*formField) {
	if depth > 8 {
		return
	}
	fieldDict, err := ctx.DereferenceDict(fieldObj)
	if err != nil || fieldDict == nil {
		return
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

	var widgetKids []types.Dict
	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kidsArray, err := ctx.DereferenceArray(kidsObj); err == nil && len(kidsArray) > 0 {
			childFields := false
			for _, kid := range kidsArray {
				kidDict, err := ctx.DereferenceDict(kid)
				if err != nil || kidDict == nil {
					continue
				}
				if _, hasName := kidDict.Find("T"); hasName {
					childFields = true
					break
				}
				widgetKids = append(widgetKids, kidDict)
			}
			if childFields {
				for _, kid := range kidsArray {
					walkFillable(ctx, kid, path, depth+1, out)
				}
				return
			}
		}
	}

	kind, ok := fillableKind(ctx, fieldDict)
	if !ok || path == "" {
		return
	}

	field := &formField{dict: fieldDict, kind: kind, widgets: widgetKids}
	if kind == "checkbox" {
		field.onState = resolveOnState(ctx, fieldDict, widgetKids)
	}
	out[path] = field
}

// fillableKind maps FT (inherited through Parent) to the filler's kinds.
func fillableKind(ctx *model.Context, fieldDict types.Dict) (string, bool) {
	ftObj, found := fieldDict.Find("FT")
	if !found {
		if parentObj, ok := fieldDict.Find("Parent"); ok {
			if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
				return fillableKind(ctx, parentDict)
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
		return "text", true
	case "Ch":
		return "choice", true
	case "Btn":
		if flagsObj, ok := fieldDict.Find("Ff"); ok {
			if flags, err := ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
				if (*flags & (1 << 16)) != 0 { // Bit 17: pushbutton
					return "", false
				}
			}
		}
		return "checkbox", true
	default:
		return "", false
	}
}

// resolveOnState finds the checked appearance-state name in any widget's
// AP /N dictionary.
func resolveOnState(ctx *model.Context, fieldDict types.Dict, widgets []types.Dict) string {
	dicts := append([]types.Dict{fieldDict}, widgets...)
	for _, d := range dicts {
		apObj, found := d.Find("AP")
		if !found {
			continue
		}
		apDict, err := ctx.DereferenceDict(apObj)
		if err != nil || apDict == nil {
			continue
		}
		nObj, found := apDict.Find("N")
		if !found {
			continue
		}
		nDict, err := ctx.DereferenceDict(nObj)
		if err != nil || nDict == nil {
			continue
		}
		for key := range nDict {
			if key != "Off" {
				return key
			}
		}
	}
	return "Yes"
}
