package render

import (
	"errors"
	"fmt"
	"unicode"

	colorful "github.com/lucasb-eyer/go-colorful"

	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/textfit"
	"pdf-layout-translator/internal/types"
)

const (
	// cjkLetterShare is the share of CJK letters above which text is set
	// with the CJK font
	cjkLetterShare = 0.1
	// nearBlack is the CIEDE2000 distance under which a color is drawn black
	nearBlack = 0.12
	// linkMaxSize is the largest font size treated as inline link text
	linkMaxSize = 12
	defaultSize = 10
)

// Renderer places translated text into a region, shrinking it until it fits
type Renderer struct {
	cfg types.RenderConfig
}

// NewRenderer creates a renderer
func NewRenderer(cfg types.RenderConfig) *Renderer {
	return &Renderer{cfg: cfg}
}

// IsCJKText reports whether more than a tenth of the letters in text are CJK
func IsCJKText(text string) bool {
	var letters, cjk int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if textfit.IsCJK(r) {
			cjk++
		}
	}
	return letters > 0 && float64(cjk) > cjkLetterShare*float64(letters)
}

// NormalizeColor maps near-black to black and small link-blue text to black
func NormalizeColor(c document.Color, size float64) document.Color {
	cc := colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped()
	if cc.DistanceCIEDE2000(colorful.Color{}) < nearBlack {
		return document.Black
	}
	h, s, v := cc.Hsv()
	if size <= linkMaxSize && h >= 200 && h <= 250 && s >= 0.5 && v >= 0.4 {
		return document.Black
	}
	return document.Color{R: cc.R, G: cc.G, B: cc.B}
}

// Options returns the text options for a block
func (r *Renderer) Options(page document.Page, rect geometry.Rect, text string, style document.Style) document.TextOptions {
	cjk := IsCJKText(text)

	size := style.FontSize
	if size <= 0 {
		size = defaultSize
	}
	if cjk && size > 10 {
		size--
	}

	align := document.AlignLeft
	if pw, _ := page.Size(); rect.Width() < r.cfg.CenterRatio*pw {
		align = document.AlignCenter
	}

	return document.TextOptions{
		FontSize:    size,
		MinFontSize: r.cfg.MinFontSize,
		ScaleFloor:  r.cfg.ScaleFloor,
		ScaleStep:   r.cfg.ScaleStep,
		LineSpacing: r.cfg.LineSpacing,
		Color:       NormalizeColor(style.Color, style.FontSize),
		Bold:        style.Bold,
		CJK:         cjk,
		Align:       align,
	}
}

// Render draws text into rect. It returns true when the text fit without
// forcing. When nothing fits the text is drawn at the floor size anyway and
// a RenderError is returned with false.
func (r *Renderer) Render(page document.Page, rect geometry.Rect, text string, style document.Style, targetLang string) (bool, error) {
	opts := r.Options(page, rect, text, style)
	pageField := logger.Page(page.Number() + 1)

	layout, err := page.InsertAdaptiveText(rect, text, opts)
	switch {
	case err == nil && layout.Fits:
		logger.Debug("text placed",
			pageField,
			logger.Float64("size", layout.FontSize),
			logger.Int("lines", len(layout.Lines)))
		return true, nil
	case err == nil:
		forced := opts
		forced.FontSize = layout.FontSize
		return false, r.force(page, rect, text, forced, targetLang)
	case !errors.Is(err, document.ErrRichLayoutUnavailable):
		logger.Warn("adaptive text insertion failed, scanning sizes", pageField, logger.Err(err))
	}

	// no usable metrics: scan whole point sizes
	floor := r.cfg.MinFontSize
	start := textfit.ScanStart(opts.FontSize, floor)
	size, steps, ok := textfit.LinearScan(start, floor, func(size float64) bool {
		o := opts
		o.FontSize = size
		return page.Fits(rect, text, o)
	})
	opts.FontSize = size
	if !ok {
		return false, r.force(page, rect, text, opts, targetLang)
	}

	if err := page.InsertText(rect, text, opts); err != nil {
		return false, types.NewRenderError("text insertion failed", err.Error())
	}
	logger.Debug("text placed by size scan",
		pageField,
		logger.Float64("size", size),
		logger.Int("steps", steps))
	return true, nil
}

// force draws text at the floor size, accepting overflow
func (r *Renderer) force(page document.Page, rect geometry.Rect, text string, opts document.TextOptions, targetLang string) error {
	details := fmt.Sprintf("rect=%s size=%.1f lang=%s chars=%d", rect, opts.FontSize, targetLang, len([]rune(text)))
	if err := page.InsertText(rect, text, opts); err != nil {
		return types.NewRenderError("text insertion at floor size failed", details+": "+err.Error())
	}
	renderErr := types.NewRenderError("text does not fit, drawn at floor size", details)
	logger.Warn(renderErr.Message, logger.Page(page.Number()+1), logger.String("details", details))
	return renderErr
}
