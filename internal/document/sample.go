package document

import (
	"image"
	"math"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"

	"pdf-layout-translator/internal/geometry"
)

const (
	// inkContrast is the lightness gap below the local background that
	// marks a pixel as ink
	inkContrast = 0.2
	maxSamples  = 4096
)

// SampleInk returns the color of the ink inside rect (page space): the mean
// of the darker half of the pixels that stand out from the lightest pixel of
// the area. ok is false when the area holds no ink.
func SampleInk(img *PageImage, rect geometry.Rect) (Color, bool) {
	if img == nil || img.Image == nil || img.Scale <= 0 {
		return Color{}, false
	}
	b := img.Image.Bounds()
	px := rect.Scale(img.Scale, img.Scale)
	area := image.Rect(
		b.Min.X+int(math.Floor(px.X0)), b.Min.Y+int(math.Floor(px.Y0)),
		b.Min.X+int(math.Ceil(px.X1)), b.Min.Y+int(math.Ceil(px.Y1)),
	).Intersect(b)
	if area.Empty() {
		return Color{}, false
	}

	step := 1
	for (area.Dx()/step)*(area.Dy()/step) > maxSamples {
		step++
	}

	type sample struct {
		c colorful.Color
		l float64
	}
	var (
		samples []sample
		bg      float64
	)
	for y := area.Min.Y; y < area.Max.Y; y += step {
		for x := area.Min.X; x < area.Max.X; x += step {
			c, ok := colorful.MakeColor(img.Image.At(x, y))
			if !ok {
				continue
			}
			l, _, _ := c.Lab()
			bg = math.Max(bg, l)
			samples = append(samples, sample{c: c, l: l})
		}
	}

	var ink []sample
	for _, s := range samples {
		if s.l < bg-inkContrast {
			ink = append(ink, s)
		}
	}
	if len(ink) == 0 {
		return Color{}, false
	}

	// 抗锯齿边缘偏浅，只取较暗的一半
	sort.Slice(ink, func(i, j int) bool { return ink[i].l < ink[j].l })
	ink = ink[:(len(ink)+1)/2]
	var r, g, bl float64
	for _, s := range ink {
		r += s.c.R
		g += s.c.G
		bl += s.c.B
	}
	n := float64(len(ink))
	return Color{R: r / n, G: g / n, B: bl / n}, true
}

// RecolorRuns sets each run's color from the ink under its box. Runs without
// visible ink keep their color. The input slice is not modified.
func RecolorRuns(img *PageImage, runs []GlyphRun) []GlyphRun {
	out := make([]GlyphRun, len(runs))
	for i, r := range runs {
		if c, ok := SampleInk(img, r.BBox); ok {
			r.Color = c
		}
		out[i] = r
	}
	return out
}
