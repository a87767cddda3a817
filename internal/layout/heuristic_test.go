package layout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/textfit"
)

func textLine(x0, y0, x1, y1 float64, text string, size float64, bold bool) document.TextLine {
	box := geometry.NewRect(x0, y0, x1, y1)
	return document.TextLine{
		BBox: box,
		Text: text,
		Runs: []document.GlyphRun{{BBox: box, Text: text, Size: size, Bold: bold}},
	}
}

func TestHeuristicDetector_GroupsParagraphs(t *testing.T) {
	lines := []document.TextLine{
		textLine(72, 100, 520, 110, "the first paragraph starts here and runs", 10, false),
		textLine(72, 112, 520, 122, "across two lines of body text.", 10, false),
		// a blank band before the second paragraph
		textLine(72, 160, 520, 170, "A second paragraph after a blank band.", 10, false),
	}

	d := NewHeuristicDetector(1.0)
	cands, err := d.Detect(context.Background(), Input{PageWidth: 595, PageHeight: 842, Lines: lines})
	require.NoError(t, err)
	require.Len(t, cands, 2)

	assert.Equal(t, geometry.NewRect(72, 100, 520, 122), cands[0].BBox)
	assert.Equal(t, Text, cands[0].Type)
	assert.Equal(t, 1.0, cands[0].Confidence)
	assert.Equal(t, geometry.NewRect(72, 160, 520, 170), cands[1].BBox)
}

func TestHeuristicDetector_SeparatesColumns(t *testing.T) {
	lines := []document.TextLine{
		textLine(50, 100, 280, 110, "left column line one", 10, false),
		textLine(320, 100, 550, 110, "right column line one", 10, false),
		textLine(50, 112, 280, 122, "left column line two", 10, false),
		textLine(320, 112, 550, 122, "right column line two", 10, false),
	}

	cands, err := NewHeuristicDetector(1.0).Detect(context.Background(), Input{PageWidth: 600, PageHeight: 800, Lines: lines})
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, geometry.NewRect(50, 100, 280, 122), cands[0].BBox)
	assert.Equal(t, geometry.NewRect(320, 100, 550, 122), cands[1].BBox)
}

func TestHeuristicDetector_SeparatesColumnsFromPageText(t *testing.T) {
	run := func(x0, y0, x1, y1 float64, text string) document.GlyphRun {
		return document.GlyphRun{BBox: geometry.NewRect(x0, y0, x1, y1), Text: text, Size: 11, Font: "Times"}
	}
	page := document.NewMemoryPage(0, 600, 800, []document.GlyphRun{
		run(50, 100, 280, 111, "left column line one"),
		run(320, 100, 550, 111, "right column line one"),
		run(50, 113, 280, 124, "left column line two"),
		run(320, 113, 550, 124, "right column line two"),
	}, textfit.FontSet{})

	cands, err := NewHeuristicDetector(1.0).Detect(context.Background(), Input{PageWidth: 600, PageHeight: 800, Lines: page.TextLines()})
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, geometry.NewRect(50, 100, 280, 124), cands[0].BBox)
	assert.Equal(t, geometry.NewRect(320, 100, 550, 124), cands[1].BBox)
}

func TestInkRegions_FindsDrawingsNotTextOrRules(t *testing.T) {
	grey := document.Color{R: 0.3, G: 0.3, B: 0.3}
	page := document.NewMemoryPage(0, 600, 800, nil, textfit.FontSet{})
	page.Ink = []document.Mark{
		// a framed chart
		{Rect: geometry.NewRect(100, 100, 300, 101), Color: grey},
		{Rect: geometry.NewRect(100, 249, 300, 250), Color: grey},
		{Rect: geometry.NewRect(100, 100, 101, 250), Color: grey},
		{Rect: geometry.NewRect(299, 100, 300, 250), Color: grey},
		// a rule under a heading
		{Rect: geometry.NewRect(50, 400, 550, 401), Color: grey},
		// glyph ink
		{Rect: geometry.NewRect(60, 500, 200, 510), Color: document.Black},
	}
	img, err := page.Rasterize(2)
	require.NoError(t, err)

	in := Input{PageWidth: 600, PageHeight: 800, Image: img, Lines: []document.TextLine{
		textLine(60, 500, 200, 510, "glyphs on the page", 10, false),
	}}
	got := InkRegions(img, in.Lines, in.Transform(2), 36)
	require.Len(t, got, 1)
	assert.Equal(t, geometry.NewRect(200, 200, 600, 500), got[0])
}

func TestHeuristicDetector_ReportsDrawingsAsFigures(t *testing.T) {
	page := document.NewMemoryPage(0, 600, 800, nil, textfit.FontSet{})
	page.Ink = []document.Mark{{Rect: geometry.NewRect(100, 300, 300, 450), Color: document.Color{R: 0.5, G: 0.5, B: 0.5}}}
	img, err := page.Rasterize(2)
	require.NoError(t, err)
	in := Input{PageWidth: 600, PageHeight: 800, Image: img, Lines: []document.TextLine{
		textLine(150, 370, 230, 378, "Revenue by year", 8, false),
	}}

	d := NewHeuristicDetector(2)
	assert.True(t, d.NeedsImage())
	cands, err := d.Detect(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, Text, cands[0].Type)
	assert.Equal(t, Figure, cands[1].Type)
	assert.Equal(t, geometry.NewRect(200, 600, 600, 900), cands[1].BBox)

	d.Figures = false
	assert.False(t, d.NeedsImage())
	cands, err = d.Detect(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, cands, 1)
}

func TestHeuristicDetector_ReportsInRasterPixels(t *testing.T) {
	lines := []document.TextLine{textLine(10, 20, 110, 30, "some words here", 10, false)}

	cands, err := NewHeuristicDetector(2.0).Detect(context.Background(), Input{PageWidth: 600, PageHeight: 800, Lines: lines})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, geometry.NewRect(20, 40, 220, 60), cands[0].BBox)
}

func TestClassifyBlock(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		size  float64
		bold  bool
		lines int
		want  RegionType
	}{
		{"numbered heading", "3.1 Experimental Setup", 10, false, 1, Title},
		{"bold large heading", "Related Work", 14, true, 1, Title},
		{"body paragraph", "We evaluate the method on three benchmarks and report accuracy.", 10, false, 3, Text},
		{"formula", "f(x) = a + b", 10, false, 1, Formula},
		{"bullet item", "• first item of the list", 10, false, 1, List},
		{"paren item", "(a) the first case", 10, false, 1, List},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyBlock(tt.text, tt.size, tt.bold, tt.lines))
		})
	}
}

type stubDetector struct {
	cands []Candidate
	err   error
	calls int
}

func (s *stubDetector) Detect(context.Context, Input) ([]Candidate, error) {
	s.calls++
	return s.cands, s.err
}

func TestFallbackDetector(t *testing.T) {
	fallbackCands := []Candidate{{Type: Text, Confidence: 1}}
	img := &document.PageImage{}

	t.Run("primary ok", func(t *testing.T) {
		primary := &stubDetector{cands: []Candidate{{Type: Title}}}
		fallback := &stubDetector{cands: fallbackCands}
		d := &FallbackDetector{Primary: primary, Fallback: fallback}

		got, err := d.Detect(context.Background(), Input{Image: img})
		require.NoError(t, err)
		assert.Equal(t, Title, got[0].Type)
		assert.Equal(t, 0, fallback.calls)
	})

	t.Run("primary fails", func(t *testing.T) {
		primary := &stubDetector{err: errors.New("inference failed")}
		fallback := &stubDetector{cands: fallbackCands}
		d := &FallbackDetector{Primary: primary, Fallback: fallback}

		got, err := d.Detect(context.Background(), Input{Image: img})
		require.NoError(t, err)
		assert.Equal(t, fallbackCands, got)
		assert.Equal(t, 1, primary.calls)
	})

	t.Run("no image", func(t *testing.T) {
		primary := &stubDetector{}
		fallback := &stubDetector{cands: fallbackCands}
		d := &FallbackDetector{Primary: primary, Fallback: fallback}

		_, err := d.Detect(context.Background(), Input{})
		require.NoError(t, err)
		assert.Equal(t, 0, primary.calls)
		assert.Equal(t, 1, fallback.calls)
	})

	t.Run("no primary", func(t *testing.T) {
		fallback := &stubDetector{cands: fallbackCands}
		d := &FallbackDetector{Fallback: fallback}

		got, err := d.Detect(context.Background(), Input{Image: img})
		require.NoError(t, err)
		assert.Equal(t, fallbackCands, got)
	})
}
