// Package render erases source glyphs and places translated text into the
// vacated regions.
package render

import (
	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/types"
)

// Eraser paints over the glyphs of a region
type Eraser struct {
	margin float64
}

// NewEraser creates an eraser searching SearchMargin points around regions
func NewEraser(cfg types.RenderConfig) *Eraser {
	return &Eraser{margin: cfg.SearchMargin}
}

// ComputeEraseRect returns the union of the glyph runs found within the
// region inflated by the search margin, clipped to that inflated region.
// Without runs the region itself is returned.
func (e *Eraser) ComputeEraseRect(page document.Page, rect geometry.Rect) geometry.Rect {
	search := rect.Inflate(e.margin)
	if w, h := page.Size(); w > 0 && h > 0 {
		search = search.Clip(w, h)
	}

	var precise geometry.Rect
	for _, r := range page.TextRunsIn(search) {
		precise = precise.Union(r.BBox.Intersection(search))
	}
	if precise.IsEmpty() {
		return rect
	}
	return precise
}

// Erase paints rect with an opaque white fill
func (e *Eraser) Erase(page document.Page, rect geometry.Rect) error {
	if err := page.PaintOpaque(rect, document.White); err != nil {
		logger.Warn("erase failed", logger.Page(page.Number()+1), logger.String("rect", rect.String()), logger.Err(err))
		return types.NewRenderError("erase failed", err.Error())
	}
	return nil
}
