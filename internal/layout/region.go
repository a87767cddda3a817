// Package layout locates semantic regions on a page, either from a layout
// detection model run on the page raster or from the page's text lines.
package layout

import (
	"context"
	"strings"

	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/geometry"
)

// RegionType is the semantic class of a page region
type RegionType string

const (
	Text     RegionType = "Text"
	Title    RegionType = "Title"
	List     RegionType = "List"
	Table    RegionType = "Table"
	Figure   RegionType = "Figure"
	Formula  RegionType = "Formula"
	Equation RegionType = "Equation"
	Abandon  RegionType = "Abandon"
	Unknown  RegionType = "Unknown"
)

// IsTranslatable returns whether regions of this type carry prose to translate
func (t RegionType) IsTranslatable() bool {
	switch t {
	case Text, Title, List:
		return true
	}
	return false
}

// IsProtected returns whether regions of this type must be left untouched
func (t RegionType) IsProtected() bool {
	switch t {
	case Figure, Table, Formula, Equation:
		return true
	}
	return false
}

// RegionTypeForLabel maps a detector class label to a region type. Captions
// and footnotes are prose and map to Text.
func RegionTypeForLabel(label string) RegionType {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "title", "section_header", "section-header":
		return Title
	case "text", "plain text", "plain_text", "figure_caption", "table_caption",
		"table_footnote", "formula_caption", "caption", "footnote":
		return Text
	case "list", "list_item":
		return List
	case "table":
		return Table
	case "figure", "picture":
		return Figure
	case "isolate_formula", "formula":
		return Formula
	case "equation", "interline_equation":
		return Equation
	case "abandon", "page_header", "page_footer":
		return Abandon
	}
	return Unknown
}

// Candidate is a detected region. BBox is in pixel space of the detector
// input until converted with a Transform.
type Candidate struct {
	Type       RegionType
	BBox       geometry.Rect
	Confidence float64
	Label      string
}

// Input is everything a detector may look at for one page
type Input struct {
	Page       int // 1-based
	Image      *document.PageImage
	PageWidth  float64
	PageHeight float64
	Lines      []document.TextLine // page space
}

// Transform returns the pixel/page mapping for the input. Without an image
// the nominal raster at scale is used.
func (in Input) Transform(scale float64) geometry.Transform {
	if in.Image != nil {
		return geometry.NewTransform(in.PageWidth, in.PageHeight, in.Image.Width(), in.Image.Height())
	}
	return geometry.NominalTransform(in.PageWidth, in.PageHeight, scale)
}

// Detector finds candidate regions on a page
type Detector interface {
	Detect(ctx context.Context, in Input) ([]Candidate, error)
}

// NeedsImage reports whether d uses Input.Image. Detectors that do not say
// are assumed to need it.
func NeedsImage(d Detector) bool {
	if n, ok := d.(interface{ NeedsImage() bool }); ok {
		return n.NeedsImage()
	}
	return true
}

// ToPageSpace converts candidate boxes from pixel to page space
func ToPageSpace(cands []Candidate, tr geometry.Transform) []Candidate {
	out := make([]Candidate, len(cands))
	for i, c := range cands {
		c.BBox = tr.ToPage(c.BBox)
		out[i] = c
	}
	return out
}
