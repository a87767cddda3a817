package layout

import (
	"image"
	"math"

	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/geometry"
)

const (
	// inkLuma is the 16-bit luminance below which a pixel counts as ink
	inkLuma = 0xc800
	// cellPoints is the side of one grid cell in points
	cellPoints = 2.0
	// joinCells is the gap, in cells, bridged between strokes of one drawing
	joinCells = 3
)

// InkRegions finds drawings on the raster: clusters of non-text ink at least
// minSize points wide and tall. Text is masked out with the line runs, taken
// in page space; the regions are returned in pixel space of img.
func InkRegions(img *document.PageImage, lines []document.TextLine, tr geometry.Transform, minSize float64) []geometry.Rect {
	if img == nil || img.Image == nil || img.Scale <= 0 {
		return nil
	}
	b := img.Image.Bounds()
	cell := int(math.Max(1, math.Round(cellPoints*img.Scale)))
	gw, gh := (b.Dx()+cell-1)/cell, (b.Dy()+cell-1)/cell
	if gw == 0 || gh == 0 {
		return nil
	}

	text := make([]bool, gw*gh)
	for _, l := range lines {
		for _, r := range l.Runs {
			pad := 0.3 * math.Max(r.Size, 1)
			px := tr.ToPixel(r.BBox.Inflate(pad))
			markCells(text, gw, gh, cell, px)
		}
		if len(l.Runs) == 0 {
			markCells(text, gw, gh, cell, tr.ToPixel(l.BBox))
		}
	}

	ink := make([]bool, gw*gh)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		cy := (y - b.Min.Y) / cell
		for x := b.Min.X; x < b.Max.X; x++ {
			i := cy*gw + (x-b.Min.X)/cell
			if ink[i] || text[i] {
				continue
			}
			if isInk(img.Image, x, y) {
				ink[i] = true
			}
		}
	}

	regions := components(ink, gw, gh)
	minPx := minSize * img.Scale
	var out []geometry.Rect
	for _, c := range regions {
		r := geometry.NewRect(
			float64(b.Min.X+c.Min.X*cell), float64(b.Min.Y+c.Min.Y*cell),
			float64(b.Min.X+c.Max.X*cell), float64(b.Min.Y+c.Max.Y*cell),
		).Intersection(geometry.NewRect(float64(b.Min.X), float64(b.Min.Y), float64(b.Max.X), float64(b.Max.Y)))
		if r.Width() >= minPx && r.Height() >= minPx {
			out = append(out, r)
		}
	}
	return out
}

func isInk(img image.Image, x, y int) bool {
	r, g, bl, a := img.At(x, y).RGBA()
	if a == 0 {
		return false
	}
	luma := (19595*r + 38470*g + 7471*bl + 1<<15) >> 16
	return luma < inkLuma
}

func markCells(grid []bool, gw, gh, cell int, px geometry.Rect) {
	x0 := clampInt(int(math.Floor(px.X0))/cell, 0, gw-1)
	y0 := clampInt(int(math.Floor(px.Y0))/cell, 0, gh-1)
	x1 := clampInt(int(math.Ceil(px.X1))/cell, 0, gw-1)
	y1 := clampInt(int(math.Ceil(px.Y1))/cell, 0, gh-1)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			grid[y*gw+x] = true
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// components labels clusters of ink cells, joining cells up to joinCells
// apart, and returns each cluster's cell bounds
func components(ink []bool, gw, gh int) []image.Rectangle {
	seen := make([]bool, len(ink))
	var out []image.Rectangle
	queue := make([]int, 0, 64)
	for start, on := range ink {
		if !on || seen[start] {
			continue
		}
		seen[start] = true
		queue = append(queue[:0], start)
		bounds := image.Rect(start%gw, start/gw, start%gw+1, start/gw+1)
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			cx, cy := i%gw, i/gw
			bounds = bounds.Union(image.Rect(cx, cy, cx+1, cy+1))
			for dy := -joinCells; dy <= joinCells; dy++ {
				ny := cy + dy
				if ny < 0 || ny >= gh {
					continue
				}
				for dx := -joinCells; dx <= joinCells; dx++ {
					nx := cx + dx
					if nx < 0 || nx >= gw {
						continue
					}
					j := ny*gw + nx
					if ink[j] && !seen[j] {
						seen[j] = true
						queue = append(queue, j)
					}
				}
			}
		}
		out = append(out, bounds)
	}
	return out
}
