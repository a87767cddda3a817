// Package document defines the page model the pipeline works against: text
// runs with their boxes, rasterization, and the drawing operations used to
// erase source text and place translations.
package document

import (
	"errors"
	"fmt"
	"image"

	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/textfit"
)

// ErrRichLayoutUnavailable is returned by InsertAdaptiveText when the page
// has no font metrics to lay out scaled multi-line text
var ErrRichLayoutUnavailable = errors.New("rich text layout unavailable")

// Color is an RGB color with components in [0,1]
type Color struct {
	R, G, B float64
}

var (
	Black = Color{0, 0, 0}
	White = Color{1, 1, 1}
	Red   = Color{1, 0, 0}
	Green = Color{0, 0.6, 0}
	Blue  = Color{0, 0, 1}
)

// RGB8 returns the color as 8-bit components
func (c Color) RGB8() (uint8, uint8, uint8) {
	return to8(c.R), to8(c.G), to8(c.B)
}

// Hex returns the color as #rrggbb
func (c Color) Hex() string {
	r, g, b := c.RGB8()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func to8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// GlyphRun is a span of text sharing one font, size and color
type GlyphRun struct {
	BBox  geometry.Rect
	Text  string
	Font  string
	Size  float64
	Color Color
	Bold  bool
}

// Style is the dominant typography of a region
type Style struct {
	FontSize float64
	Color    Color
	Bold     bool
}

// TextLine is a row of runs on a common baseline
type TextLine struct {
	BBox geometry.Rect
	Text string
	Runs []GlyphRun
}

// PageImage is a rasterized page
type PageImage struct {
	Image image.Image
	Scale float64 // pixels per point
}

// Width returns the raster width in pixels
func (p *PageImage) Width() int {
	return p.Image.Bounds().Dx()
}

// Height returns the raster height in pixels
func (p *PageImage) Height() int {
	return p.Image.Bounds().Dy()
}

// Align is the horizontal alignment of inserted text
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

func (a Align) String() string {
	if a == AlignCenter {
		return "center"
	}
	return "left"
}

// TextOptions controls text insertion
type TextOptions struct {
	FontSize    float64
	MinFontSize float64
	ScaleFloor  float64
	ScaleStep   float64
	LineSpacing float64
	Color       Color
	Bold        bool
	CJK         bool
	Align       Align
}

func (o TextOptions) scaleOptions() textfit.ScaleOptions {
	return textfit.ScaleOptions{
		Floor:       o.ScaleFloor,
		Step:        o.ScaleStep,
		MinSize:     o.MinFontSize,
		LineSpacing: o.lineSpacing(),
	}
}

func (o TextOptions) lineSpacing() float64 {
	if o.LineSpacing <= 0 {
		return 1.2
	}
	return o.LineSpacing
}

// Page is one page of an open document. Coordinates are page space with a
// top-left origin.
type Page interface {
	// Number is the zero-based page index
	Number() int
	Size() (width, height float64)
	Rasterize(scale float64) (*PageImage, error)

	// TextRunsIn returns the runs whose boxes intersect clip
	TextRunsIn(clip geometry.Rect) []GlyphRun
	TextLines() []TextLine

	PaintOpaque(rect geometry.Rect, c Color) error
	// InsertAdaptiveText lays the text out at decreasing scales and draws it
	// only when a scale fits. It returns ErrRichLayoutUnavailable when the
	// page cannot measure text.
	InsertAdaptiveText(rect geometry.Rect, text string, opts TextOptions) (textfit.Layout, error)
	// Fits reports whether text at opts.FontSize fits rect
	Fits(rect geometry.Rect, text string, opts TextOptions) bool
	// InsertText draws text at opts.FontSize whether it fits or not
	InsertText(rect geometry.Rect, text string, opts TextOptions) error

	DrawRect(rect geometry.Rect, c Color, width float64) error
	DrawLabel(at geometry.Point, text string, size float64, c Color) error
}

// Document is an open, editable document
type Document interface {
	PageCount() int
	Page(index int) (Page, error)
	Save(path string) error
	Close() error
}
