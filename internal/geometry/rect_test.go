package geometry

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRect_IoU(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Rect
		expected float64
	}{
		{"identical boxes", RectFromSize(0, 0, 100, 100), RectFromSize(0, 0, 100, 100), 1.0},
		{"no overlap", RectFromSize(0, 0, 50, 50), RectFromSize(100, 100, 50, 50), 0.0},
		// intersection 2500, union 17500
		{"partial overlap", RectFromSize(0, 0, 100, 100), RectFromSize(50, 50, 100, 100), 0.143},
		{"touching edges", RectFromSize(0, 0, 10, 10), RectFromSize(10, 0, 10, 10), 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.a.IoU(tt.b), 0.01)
		})
	}
}

func TestRect_CoverageIsAsymmetric(t *testing.T) {
	small := RectFromSize(10, 10, 10, 10)
	big := RectFromSize(0, 0, 100, 100)

	assert.Equal(t, 1.0, small.Coverage(big))
	assert.InDelta(t, 0.01, big.Coverage(small), 1e-9)
	assert.Equal(t, 0.0, Rect{}.Coverage(big))
}

func TestRect_UnionIgnoresEmpty(t *testing.T) {
	a := NewRect(10, 10, 20, 20)
	assert.Equal(t, a, Rect{}.Union(a))
	assert.Equal(t, a, a.Union(Rect{}))
	assert.Equal(t, NewRect(0, 5, 20, 20), a.Union(NewRect(0, 5, 12, 12)))

	assert.Equal(t, NewRect(1, 1, 9, 9), UnionAll([]Rect{NewRect(1, 1, 2, 2), {}, NewRect(8, 8, 9, 9)}))
}

func TestRect_Clip(t *testing.T) {
	r := NewRect(-10, 500, 100, 900)
	assert.Equal(t, NewRect(0, 500, 100, 842), r.Clip(595, 842))
	assert.True(t, NewRect(700, 0, 800, 10).Clip(595, 842).IsEmpty())
}

func TestNewRect_NormalizesCorners(t *testing.T) {
	r := NewRect(50, 40, 10, 20)
	assert.Equal(t, Rect{X0: 10, Y0: 20, X1: 50, Y1: 40}, r)
	assert.Equal(t, 40.0, r.Width())
	assert.Equal(t, 20.0, r.Height())
}

func TestTransform_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tr := NewTransform(612, 792, 1275, 1650)

	for i := 0; i < 200; i++ {
		x, y := rng.Float64()*1200, rng.Float64()*1600
		px := RectFromSize(x, y, rng.Float64()*300+1, rng.Float64()*300+1)

		back := tr.ToPixel(tr.ToPage(px))
		assert.True(t, back.ApproxEqual(px, 1e-6), "round trip drifted: %v -> %v", px, back)
	}
}

func TestTransform_Scale(t *testing.T) {
	tr := NominalTransform(595, 842, 2)
	assert.Equal(t, NewRect(10, 20, 30, 40), tr.ToPage(NewRect(20, 40, 60, 80)))
	assert.Equal(t, NewRect(20, 40, 60, 80), tr.ToPixel(NewRect(10, 20, 30, 40)))
}
