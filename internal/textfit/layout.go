package textfit

import (
	"math"
	"strings"
	"unicode"
)

const epsilon = 1e-6

// Layout is a wrapped block of text at one font size
type Layout struct {
	Lines    []string
	FontSize float64
	Width    float64 // widest line
	Height   float64
	Fits     bool
}

type token struct {
	text        string
	spaceBefore bool
	newline     bool
}

// tokenize splits text into Latin words and single CJK runes; CJK text may
// break between any two runes
func tokenize(text string) []token {
	var (
		toks  []token
		word  strings.Builder
		space bool
	)
	flush := func() {
		if word.Len() > 0 {
			toks = append(toks, token{text: word.String(), spaceBefore: space})
			word.Reset()
			space = false
		}
	}

	for _, r := range text {
		switch {
		case r == '\n':
			flush()
			toks = append(toks, token{newline: true})
			space = false
		case unicode.IsSpace(r):
			flush()
			space = true
		case IsCJK(r):
			flush()
			toks = append(toks, token{text: string(r), spaceBefore: space})
			space = false
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return toks
}

// Wrap breaks text into lines no wider than width. Words wider than a line
// are split between runes.
func Wrap(m Measurer, text string, size, width float64) []string {
	var (
		lines []string
		cur   strings.Builder
	)
	push := func() {
		lines = append(lines, cur.String())
		cur.Reset()
	}

	for _, tk := range tokenize(text) {
		if tk.newline {
			push()
			continue
		}

		piece := tk.text
		if cur.Len() > 0 && tk.spaceBefore {
			piece = " " + tk.text
		}
		if m.Width(cur.String()+piece, size) <= width+epsilon {
			cur.WriteString(piece)
			continue
		}

		if cur.Len() > 0 {
			push()
		}
		if m.Width(tk.text, size) <= width+epsilon {
			cur.WriteString(tk.text)
			continue
		}

		for _, r := range tk.text {
			s := string(r)
			if cur.Len() > 0 && m.Width(cur.String()+s, size) > width+epsilon {
				push()
			}
			cur.WriteString(s)
		}
	}

	if cur.Len() > 0 || len(lines) == 0 {
		push()
	}
	return lines
}

// LayoutAt wraps text at the given size and checks it against a box
func LayoutAt(m Measurer, text string, size, boxWidth, boxHeight, lineSpacing float64) Layout {
	lines := Wrap(m, text, size, boxWidth)

	var widest float64
	for _, l := range lines {
		widest = math.Max(widest, m.Width(l, size))
	}
	height := size * (1 + float64(len(lines)-1)*lineSpacing)

	return Layout{
		Lines:    lines,
		FontSize: size,
		Width:    widest,
		Height:   height,
		Fits:     widest <= boxWidth+epsilon && height <= boxHeight+epsilon,
	}
}

// ScaleOptions controls FitScaled
type ScaleOptions struct {
	Floor       float64 // smallest relative scale, e.g. 0.1
	Step        float64 // relative scale decrement, e.g. 0.05
	MinSize     float64 // absolute size floor in points
	LineSpacing float64
}

// FloorSize is the smallest size FitScaled will try for base
func (o ScaleOptions) FloorSize(base float64) float64 {
	return math.Max(base*o.Floor, o.MinSize)
}

// FitScaled tries relative scales from 100% down to the floor and returns the
// first layout that fits. When nothing fits, the layout at the floor size is
// returned with Fits=false.
func FitScaled(m Measurer, text string, base, boxWidth, boxHeight float64, opts ScaleOptions) Layout {
	floorSize := opts.FloorSize(base)
	steps := int(math.Round((1 - opts.Floor) / opts.Step))

	for i := 0; i <= steps; i++ {
		size := base * (1 - float64(i)*opts.Step)
		if size < floorSize-epsilon {
			break
		}
		if l := LayoutAt(m, text, size, boxWidth, boxHeight, opts.LineSpacing); l.Fits {
			return l
		}
	}
	return LayoutAt(m, text, floorSize, boxWidth, boxHeight, opts.LineSpacing)
}

// ScanStart is the first size of the linear scan for an original size
func ScanStart(original, floor float64) float64 {
	return math.Max(math.Floor(1.2*original), floor)
}

// LinearScan walks sizes from start down to floor in 1pt steps and returns
// the first size for which fits reports true. It never returns a size below
// floor; ok is false when even the floor does not fit.
func LinearScan(start, floor float64, fits func(size float64) bool) (size float64, steps int, ok bool) {
	for size = start; size >= floor-epsilon; size-- {
		steps++
		if fits(size) {
			return size, steps, true
		}
	}
	return floor, steps, false
}
