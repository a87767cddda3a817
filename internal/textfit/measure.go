// Package textfit measures, wraps and sizes text so that translated content
// fits the rectangle its source occupied.
package textfit

import (
	"fmt"
	"os"
	"sync"
	"unicode"

	"github.com/golang/freetype/truetype"
	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font"
)

// Measurer reports the advance width of a string in points
type Measurer interface {
	Width(s string, size float64) float64
}

// IsCJK reports whether r is a CJK ideograph, kana, hangul or full-width form
func IsCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // Extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // Extension B
		(r >= 0xF900 && r <= 0xFAFF) || // Compatibility Ideographs
		(r >= 0x3000 && r <= 0x30FF) || // CJK punctuation, Hiragana, Katakana
		(r >= 0xAC00 && r <= 0xD7AF) || // Hangul syllables
		(r >= 0xFF00 && r <= 0xFFEF) // full-width forms
}

// CJKRatio returns the share of CJK runes among the non-space runes of s
func CJKRatio(s string) float64 {
	var cjk, total int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if IsCJK(r) {
			cjk++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(cjk) / float64(total)
}

// EstimateMeasurer approximates widths from character classes when no font
// metrics are available: wide runes take a full em, narrow runes half an em
// and spaces a quarter.
type EstimateMeasurer struct{}

// Width implements Measurer
func (EstimateMeasurer) Width(s string, size float64) float64 {
	var em float64
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t':
			em += 0.25
		case IsCJK(r):
			em += 1.0
		default:
			em += 0.5 * float64(runewidth.RuneWidth(r))
		}
	}
	return em * size
}

// TrueTypeMeasurer measures with the glyph advances of a TrueType font.
// Faces are cached per size; the cache is guarded because truetype faces keep
// internal glyph state.
type TrueTypeMeasurer struct {
	font  *truetype.Font
	mu    sync.Mutex
	faces map[float64]font.Face
}

// ParseTrueType builds a measurer from raw font bytes
func ParseTrueType(data []byte) (*TrueTypeMeasurer, error) {
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TrueType font: %w", err)
	}
	return &TrueTypeMeasurer{font: f, faces: make(map[float64]font.Face)}, nil
}

// LoadTrueType reads and parses a .ttf file
func LoadTrueType(path string) (*TrueTypeMeasurer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s: %w", path, err)
	}
	return ParseTrueType(data)
}

// Font returns the parsed font for drawing code that shares the metrics
func (m *TrueTypeMeasurer) Font() *truetype.Font {
	return m.font
}

// Width implements Measurer
func (m *TrueTypeMeasurer) Width(s string, size float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	face, ok := m.faces[size]
	if !ok {
		// 72 DPI makes one pixel one point
		face = truetype.NewFace(m.font, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone})
		m.faces[size] = face
	}
	return float64(font.MeasureString(face, s)) / 64
}

// FontSet picks a measurer by script
type FontSet struct {
	Latin Measurer
	CJK   Measurer
}

// For returns the measurer for the script, falling back to the other one and
// finally to the estimate
func (fs FontSet) For(cjk bool) Measurer {
	primary, secondary := fs.Latin, fs.CJK
	if cjk {
		primary, secondary = fs.CJK, fs.Latin
	}
	if primary != nil {
		return primary
	}
	if secondary != nil {
		return secondary
	}
	return EstimateMeasurer{}
}

// HasMetrics reports whether any real font metrics are loaded
func (fs FontSet) HasMetrics() bool {
	return fs.Latin != nil || fs.CJK != nil
}
