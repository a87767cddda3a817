package document

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/textfit"
)

// OpKind identifies a recorded drawing operation
type OpKind int

const (
	OpPaint OpKind = iota
	OpText
	OpStroke
	OpLabel
)

func (k OpKind) String() string {
	switch k {
	case OpPaint:
		return "paint"
	case OpText:
		return "text"
	case OpStroke:
		return "stroke"
	case OpLabel:
		return "label"
	}
	return "unknown"
}

// Op is one drawing operation in page space
type Op struct {
	Seq        uint64
	Kind       OpKind
	Rect       geometry.Rect
	Color      Color
	Width      float64 // stroke width
	Text       string
	Lines      []string
	LineWidths []float64
	FontSize   float64
	LineHeight float64
	Align      Align
	Bold       bool
	CJK        bool
	At         geometry.Point
}

// opSeq orders operations across all pages of a process
var opSeq atomic.Uint64

// Canvas records drawing operations for a page and performs the text layout
// shared by every backend. Backends replay the recorded ops when saving.
type Canvas struct {
	mu    sync.Mutex
	ops   []Op
	fonts textfit.FontSet
}

// NewCanvas creates a canvas measuring text with fonts
func NewCanvas(fonts textfit.FontSet) *Canvas {
	return &Canvas{fonts: fonts}
}

func (c *Canvas) record(op Op) {
	op.Seq = opSeq.Add(1)
	c.mu.Lock()
	c.ops = append(c.ops, op)
	c.mu.Unlock()
}

// Ops returns a copy of the recorded operations in recording order
func (c *Canvas) Ops() []Op {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Op, len(c.ops))
	copy(out, c.ops)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// OpsOf returns the recorded operations of one kind
func (c *Canvas) OpsOf(kind OpKind) []Op {
	var out []Op
	for _, op := range c.Ops() {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

// PaintOpaque records an opaque fill
func (c *Canvas) PaintOpaque(rect geometry.Rect, col Color) error {
	if rect.IsEmpty() {
		return fmt.Errorf("cannot paint empty rect %s", rect)
	}
	c.record(Op{Kind: OpPaint, Rect: rect, Color: col})
	return nil
}

// InsertAdaptiveText implements Page.InsertAdaptiveText
func (c *Canvas) InsertAdaptiveText(rect geometry.Rect, text string, opts TextOptions) (textfit.Layout, error) {
	if !c.fonts.HasMetrics() {
		return textfit.Layout{}, ErrRichLayoutUnavailable
	}
	if opts.FontSize <= 0 {
		return textfit.Layout{}, fmt.Errorf("invalid font size %.2f", opts.FontSize)
	}

	m := c.fonts.For(opts.CJK)
	layout := textfit.FitScaled(m, text, opts.FontSize, rect.Width(), rect.Height(), opts.scaleOptions())
	if layout.Fits {
		c.recordText(m, rect, layout, opts)
	}
	return layout, nil
}

// Fits implements Page.Fits
func (c *Canvas) Fits(rect geometry.Rect, text string, opts TextOptions) bool {
	m := c.fonts.For(opts.CJK)
	return textfit.LayoutAt(m, text, opts.FontSize, rect.Width(), rect.Height(), opts.lineSpacing()).Fits
}

// InsertText implements Page.InsertText
func (c *Canvas) InsertText(rect geometry.Rect, text string, opts TextOptions) error {
	if opts.FontSize <= 0 {
		return fmt.Errorf("invalid font size %.2f", opts.FontSize)
	}
	m := c.fonts.For(opts.CJK)
	layout := textfit.LayoutAt(m, text, opts.FontSize, rect.Width(), rect.Height(), opts.lineSpacing())
	c.recordText(m, rect, layout, opts)
	return nil
}

func (c *Canvas) recordText(m textfit.Measurer, rect geometry.Rect, layout textfit.Layout, opts TextOptions) {
	widths := make([]float64, len(layout.Lines))
	for i, l := range layout.Lines {
		widths[i] = m.Width(l, layout.FontSize)
	}
	c.record(Op{
		Kind:       OpText,
		Rect:       rect,
		Color:      opts.Color,
		Lines:      layout.Lines,
		LineWidths: widths,
		FontSize:   layout.FontSize,
		LineHeight: layout.FontSize * opts.lineSpacing(),
		Align:      opts.Align,
		Bold:       opts.Bold,
		CJK:        opts.CJK,
	})
}

// DrawRect records a stroked rectangle outline
func (c *Canvas) DrawRect(rect geometry.Rect, col Color, width float64) error {
	c.record(Op{Kind: OpStroke, Rect: rect, Color: col, Width: width})
	return nil
}

// DrawLabel records a single-line label whose baseline starts at at
func (c *Canvas) DrawLabel(at geometry.Point, text string, size float64, col Color) error {
	c.record(Op{Kind: OpLabel, At: at, Text: text, FontSize: size, Color: col})
	return nil
}
