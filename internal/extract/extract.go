// Package extract reads the text and dominant style of a page region from
// the page's glyph runs.
package extract

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/textfit"
	"pdf-layout-translator/internal/types"
)

// Extractor extracts region text and style
type Extractor struct {
	cfg types.ExtractConfig
}

// New creates an extractor
func New(cfg types.ExtractConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

// runsInside returns the runs that belong to rect: at least half of the run
// lies inside, or its center does
func runsInside(page document.Page, rect geometry.Rect) []document.GlyphRun {
	return lo.Filter(page.TextRunsIn(rect), func(r document.GlyphRun, _ int) bool {
		return r.BBox.Coverage(rect) >= 0.5 || rect.Contains(r.BBox.Center())
	})
}

// ExtractText returns the text of rect in reading order. Lines are joined
// with spaces, hyphenated line breaks are rejoined and CJK line breaks are
// joined without a space.
func (e *Extractor) ExtractText(page document.Page, rect geometry.Rect) string {
	lines := document.GroupLines(runsInside(page, rect))

	var b strings.Builder
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString(text)
			continue
		}

		prev := b.String()
		last, _ := utf8.DecodeLastRuneInString(prev)
		first, _ := utf8.DecodeRuneInString(text)

		switch {
		case last == '-' && endsWithLetterHyphen(prev) && unicode.IsLower(first):
			// "transla-" + "tion"
			b.Reset()
			b.WriteString(strings.TrimSuffix(prev, "-"))
		case textfit.IsCJK(last) || textfit.IsCJK(first):
		default:
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
	return b.String()
}

func endsWithLetterHyphen(s string) bool {
	s = strings.TrimSuffix(s, "-")
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsLetter(r)
}

// ExtractStyle picks the dominant size, color and boldness of rect. Each run
// votes with weight size², so large headings win over small inline marks.
func (e *Extractor) ExtractStyle(page document.Page, rect geometry.Rect) document.Style {
	runs := runsInside(page, rect)
	if len(runs) == 0 {
		return document.Style{FontSize: 10, Color: document.Black}
	}

	sizes := make(map[float64]float64)
	colors := make(map[document.Color]float64)
	bolds := make(map[bool]float64)

	for _, r := range runs {
		w := r.Size * r.Size
		size := roundSize(r.Size)
		sizes[size] += w
		colors[r.Color] += w
		bolds[r.Bold || isBoldName(r.Font)] += w
	}

	return document.Style{
		FontSize: argmax(runs, sizes, func(r document.GlyphRun) float64 { return roundSize(r.Size) }),
		Color:    argmax(runs, colors, func(r document.GlyphRun) document.Color { return r.Color }),
		Bold:     argmax(runs, bolds, func(r document.GlyphRun) bool { return r.Bold || isBoldName(r.Font) }),
	}
}

// argmax returns the key with the largest weight. Ties go to the key seen
// first in run order.
func argmax[K comparable](runs []document.GlyphRun, weights map[K]float64, key func(document.GlyphRun) K) K {
	var (
		best    K
		bestW   = -1.0
		visited = make(map[K]bool)
	)
	for _, r := range runs {
		k := key(r)
		if visited[k] {
			continue
		}
		visited[k] = true
		if weights[k] > bestW {
			best, bestW = k, weights[k]
		}
	}
	return best
}

func roundSize(s float64) float64 {
	return float64(int(s*10+0.5)) / 10
}

// isBoldName detects bold faces from the font name
func isBoldName(font string) bool {
	lower := strings.ToLower(font)
	for _, marker := range []string{"bold", "black", "heavy", "semibold", "demi"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Usable reports whether a block's text is worth translating. It returns an
// extraction error for empty, symbol-only, too short or numeric-only text;
// numbers are kept for titles.
func (e *Extractor) Usable(text string, regionType layout.RegionType, style document.Style) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return types.NewExtractionError("no text in region", "")
	}
	if !lo.SomeBy([]rune(trimmed), func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
		return types.NewExtractionError("region holds only punctuation or symbols", trimmed)
	}
	if n := utf8.RuneCountInString(trimmed); n < e.cfg.MinBlockChars {
		return types.NewExtractionError(fmt.Sprintf("text shorter than %d characters", e.cfg.MinBlockChars), trimmed)
	}
	if e.cfg.MinSourceFontSize > 0 && style.FontSize > 0 && style.FontSize < e.cfg.MinSourceFontSize {
		return types.NewExtractionError(fmt.Sprintf("font size %.1f below %.1f", style.FontSize, e.cfg.MinSourceFontSize), trimmed)
	}
	if regionType != layout.Title && !lo.SomeBy([]rune(trimmed), unicode.IsLetter) {
		return types.NewExtractionError("numeric-only text", trimmed)
	}
	return nil
}

// PageContext returns the page text trimmed to ContextChars runes. It is
// passed to the translator as a reference for every block of the page.
func (e *Extractor) PageContext(page document.Page) string {
	texts := lo.FilterMap(page.TextLines(), func(l document.TextLine, _ int) (string, bool) {
		t := strings.TrimSpace(l.Text)
		return t, t != ""
	})
	ctx := strings.Join(texts, " ")

	if e.cfg.ContextChars > 0 {
		if runes := []rune(ctx); len(runes) > e.cfg.ContextChars {
			ctx = string(runes[:e.cfg.ContextChars])
		}
	}
	return ctx
}
