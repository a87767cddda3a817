// Package geometry holds the rectangle model shared by detection, reconciliation
// and rendering. Rectangles use a top-left origin with y growing downwards, in
// both page space (PDF points) and pixel space (raster pixels).
package geometry

import (
	"fmt"
	"math"
)

// Point represents a 2D point
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle given by its corners
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// NewRect creates a rectangle from two corners in any order
func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{
		X0: math.Min(x0, x1),
		Y0: math.Min(y0, y1),
		X1: math.Max(x0, x1),
		Y1: math.Max(y0, y1),
	}
}

// RectFromSize creates a rectangle from its top-left corner and size
func RectFromSize(x, y, width, height float64) Rect {
	return NewRect(x, y, x+width, y+height)
}

// Width returns the horizontal extent
func (r Rect) Width() float64 {
	return r.X1 - r.X0
}

// Height returns the vertical extent
func (r Rect) Height() float64 {
	return r.Y1 - r.Y0
}

// Area returns the area, zero for empty rectangles
func (r Rect) Area() float64 {
	if r.IsEmpty() {
		return 0
	}
	return r.Width() * r.Height()
}

// Center returns the center point
func (r Rect) Center() Point {
	return Point{X: (r.X0 + r.X1) / 2, Y: (r.Y0 + r.Y1) / 2}
}

// IsEmpty returns true if the rectangle has no area
func (r Rect) IsEmpty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0
}

// Contains checks if a point is inside the rectangle
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X0 && p.X <= r.X1 && p.Y >= r.Y0 && p.Y <= r.Y1
}

// ContainsRect reports whether other lies completely inside r
func (r Rect) ContainsRect(other Rect) bool {
	return other.X0 >= r.X0 && other.X1 <= r.X1 && other.Y0 >= r.Y0 && other.Y1 <= r.Y1
}

// Intersects checks whether the two rectangles share a positive area
func (r Rect) Intersects(other Rect) bool {
	return !r.Intersection(other).IsEmpty()
}

// Intersection returns the common part, or the zero Rect when disjoint
func (r Rect) Intersection(other Rect) Rect {
	out := Rect{
		X0: math.Max(r.X0, other.X0),
		Y0: math.Max(r.Y0, other.Y0),
		X1: math.Min(r.X1, other.X1),
		Y1: math.Min(r.Y1, other.Y1),
	}
	if out.IsEmpty() {
		return Rect{}
	}
	return out
}

// Union returns the smallest rectangle covering both. An empty operand is ignored.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}
	return Rect{
		X0: math.Min(r.X0, other.X0),
		Y0: math.Min(r.Y0, other.Y0),
		X1: math.Max(r.X1, other.X1),
		Y1: math.Max(r.Y1, other.Y1),
	}
}

// Inflate grows the rectangle by margin on every side
func (r Rect) Inflate(margin float64) Rect {
	return Rect{X0: r.X0 - margin, Y0: r.Y0 - margin, X1: r.X1 + margin, Y1: r.Y1 + margin}
}

// Clip intersects the rectangle with the page bounds [0,w]x[0,h]
func (r Rect) Clip(width, height float64) Rect {
	return r.Intersection(Rect{X1: width, Y1: height})
}

// Scale multiplies every coordinate by the given factors
func (r Rect) Scale(sx, sy float64) Rect {
	return Rect{X0: r.X0 * sx, Y0: r.Y0 * sy, X1: r.X1 * sx, Y1: r.Y1 * sy}
}

// Coverage returns the fraction of r's area lying inside other.
// Asymmetric: Coverage(a, b) != Coverage(b, a) in general.
func (r Rect) Coverage(other Rect) float64 {
	area := r.Area()
	if area == 0 {
		return 0
	}
	return r.Intersection(other).Area() / area
}

// IoU calculates intersection over union
func (r Rect) IoU(other Rect) float64 {
	inter := r.Intersection(other).Area()
	union := r.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// ApproxEqual compares two rectangles within tolerance
func (r Rect) ApproxEqual(other Rect, tol float64) bool {
	return math.Abs(r.X0-other.X0) <= tol && math.Abs(r.Y0-other.Y0) <= tol &&
		math.Abs(r.X1-other.X1) <= tol && math.Abs(r.Y1-other.Y1) <= tol
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.1f,%.1f,%.1f,%.1f)", r.X0, r.Y0, r.X1, r.Y1)
}

// UnionAll returns the union of all non-empty rectangles
func UnionAll(rects []Rect) Rect {
	var out Rect
	for _, r := range rects {
		out = out.Union(r)
	}
	return out
}
