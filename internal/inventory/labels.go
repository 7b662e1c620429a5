package inventory

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// textRun is a horizontally contiguous piece of page text.
type textRun struct {
	x, y, right float64
	text        string
}

// annotateLabels fills NearbyLabel for each descriptor from the positioned
// text of the PDF. ledongthuc/pdf only reads from files, so this runs as a
// second pass over the template path.
func annotateLabels(path string, inv *Inventory) error {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open PDF for label extraction: %w", err)
	}
	defer f.Close()

	runsByPage := make(map[int][]textRun)
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		runsByPage[pageNum] = pageRuns(page)
	}

	for i := range inv.Fields {
		field := &inv.Fields[i]
		runs := runsByPage[field.Page]
		if len(runs) == 0 {
			continue
		}
		field.NearbyLabel = truncateLabel(nearestLabel(field, runs))
	}
	return nil
}

// pageRuns clusters a page's positioned glyph groups into reading runs:
// items sharing a baseline, merged while horizontally adjacent.
func pageRuns(page pdf.Page) []textRun {
	texts := page.Content().Text
	if len(texts) == 0 {
		return nil
	}

	sort.SliceStable(texts, func(i, j int) bool {
		if texts[i].Y != texts[j].Y {
			return texts[i].Y > texts[j].Y
		}
		return texts[i].X < texts[j].X
	})

	var runs []textRun
	var cur *textRun
	for _, t := range texts {
		s := t.S
		if strings.TrimSpace(s) == "" {
			continue
		}
		// A gap wider than one line height starts a new run.
		gap := t.FontSize
		if gap <= 0 {
			gap = 8
		}
		if cur != nil && math.Abs(cur.y-t.Y) < 2 && t.X-cur.right < gap {
			cur.text += s
			cur.right = t.X + t.W
			continue
		}
		runs = append(runs, textRun{x: t.X, y: t.Y, right: t.X + t.W, text: s})
		cur = &runs[len(runs)-1]
	}

	for i := range runs {
		runs[i].text = strings.Join(strings.Fields(runs[i].text), " ")
	}
	return runs
}

// nearestLabel picks the text run most likely to caption a widget: the
// closest run ending left of the widget on the same baseline, falling back
// to the closest run directly above it.
func nearestLabel(field *FieldDescriptor, runs []textRun) string {
	const baselineSlack = 6.0
	const aboveWindow = 24.0

	bestLeft := ""
	bestLeftDist := math.MaxFloat64
	bestAbove := ""
	bestAboveDist := math.MaxFloat64

	for _, run := range runs {
		if run.text == "" {
			continue
		}
		// Same baseline, ending left of the widget.
		if run.y >= field.lly-baselineSlack && run.y <= field.YPos+baselineSlack && run.right <= field.llx+2 {
			if d := field.llx - run.right; d < bestLeftDist {
				bestLeftDist = d
				bestLeft = run.text
			}
			continue
		}
		// Directly above the widget top edge.
		if run.y > field.YPos && run.y <= field.YPos+aboveWindow && run.x <= field.llx+40 && run.right >= field.llx-40 {
			if d := run.y - field.YPos; d < bestAboveDist {
				bestAboveDist = d
				bestAbove = run.text
			}
		}
	}

	if bestLeft != "" {
		return bestLeft
	}
	return bestAbove
}
