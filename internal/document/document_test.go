package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/textfit"
)

var _ Page = (*MemoryPage)(nil)
var _ Document = (*MemoryDocument)(nil)

func run(x0, y0, x1, y1 float64, text string, size float64) GlyphRun {
	return GlyphRun{BBox: geometry.NewRect(x0, y0, x1, y1), Text: text, Size: size, Color: Black, Font: "Times"}
}

func goFonts(t *testing.T) textfit.FontSet {
	t.Helper()
	m, err := textfit.ParseTrueType(goregular.TTF)
	require.NoError(t, err)
	return textfit.FontSet{Latin: m}
}

func defaultOpts(size float64) TextOptions {
	return TextOptions{FontSize: size, MinFontSize: 4, ScaleFloor: 0.1, ScaleStep: 0.05, LineSpacing: 1.2, Color: Black}
}

func TestColor_Hex(t *testing.T) {
	assert.Equal(t, "#000000", Black.Hex())
	assert.Equal(t, "#ffffff", White.Hex())
	assert.Equal(t, "#ff0000", Color{1.5, -1, 0}.Hex())
}

func TestGroupLines(t *testing.T) {
	runs := []GlyphRun{
		run(60, 100, 100, 110, "world", 10),
		run(10, 100, 50, 110, "Hello", 10),
		run(10, 120, 80, 130, "Second line", 10),
		run(10, 101, 50, 109, "", 10),
	}

	lines := GroupLines(runs)
	require.Len(t, lines, 2)
	assert.Equal(t, "Hello world", lines[0].Text)
	assert.Equal(t, geometry.NewRect(10, 100, 100, 110), lines[0].BBox)
	assert.Equal(t, "Second line", lines[1].Text)
	assert.Nil(t, GroupLines(nil))
}

func TestGroupLines_AdjacentRunsJoinWithoutSpace(t *testing.T) {
	lines := GroupLines([]GlyphRun{
		run(10, 0, 20, 10, "con", 10),
		run(20.5, 0, 40, 10, "cat", 10),
	})
	require.Len(t, lines, 1)
	assert.Equal(t, "concat", lines[0].Text)
}

func TestGroupLines_SplitsColumns(t *testing.T) {
	lines := GroupLines([]GlyphRun{
		run(320, 100, 550, 111, "right column line one", 11),
		run(50, 100, 280, 111, "left column line one", 11),
		run(50, 113, 280, 124, "left column line two", 11),
		run(320, 113, 550, 124, "right column line two", 11),
	})
	require.Len(t, lines, 4)
	assert.Equal(t, "left column line one", lines[0].Text)
	assert.Equal(t, geometry.NewRect(50, 100, 280, 111), lines[0].BBox)
	assert.Equal(t, "right column line one", lines[1].Text)
	assert.Equal(t, geometry.NewRect(320, 100, 550, 111), lines[1].BBox)
	assert.Equal(t, "left column line two", lines[2].Text)
	assert.Equal(t, "right column line two", lines[3].Text)
}

func TestRecolorRuns_TakesInkColor(t *testing.T) {
	p := NewMemoryPage(0, 200, 200, nil, textfit.FontSet{})
	p.Ink = []Mark{
		{Rect: geometry.NewRect(20, 20, 40, 30), Color: Red},
		{Rect: geometry.NewRect(100, 100, 120, 110), Color: Color{0.2, 0.2, 0.2}},
	}
	img, err := p.Rasterize(2)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Rasterizations())

	runs := RecolorRuns(img, []GlyphRun{
		{BBox: geometry.NewRect(10, 15, 60, 35), Text: "red", Color: Black},
		{BBox: geometry.NewRect(95, 95, 125, 115), Text: "grey", Color: Black},
		{BBox: geometry.NewRect(150, 150, 190, 190), Text: "blank", Color: Blue},
	})
	require.Len(t, runs, 3)
	assert.Equal(t, "#ff0000", runs[0].Color.Hex())
	assert.Equal(t, "#333333", runs[1].Color.Hex())
	assert.Equal(t, Blue, runs[2].Color)

	_, ok := SampleInk(nil, geometry.NewRect(0, 0, 10, 10))
	assert.False(t, ok)
}

func TestMemoryPage_TextRuns(t *testing.T) {
	p := NewMemoryPage(0, 200, 200, []GlyphRun{
		run(10, 10, 50, 20, "a", 10),
		run(100, 100, 150, 110, "b", 10),
	}, textfit.FontSet{})

	got := p.TextRunsIn(geometry.NewRect(0, 0, 60, 60))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Text)
}

func TestMemoryPage_Rasterize(t *testing.T) {
	p := NewMemoryPage(0, 100, 50, nil, textfit.FontSet{})
	img, err := p.Rasterize(2)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Width())
	assert.Equal(t, 100, img.Height())

	p.RasterErr = errors.New("boom")
	_, err = p.Rasterize(2)
	assert.Error(t, err)
}

func TestCanvas_InsertAdaptiveTextRequiresMetrics(t *testing.T) {
	p := NewMemoryPage(0, 100, 100, nil, textfit.FontSet{})
	_, err := p.InsertAdaptiveText(geometry.NewRect(0, 0, 100, 100), "text", defaultOpts(10))
	assert.ErrorIs(t, err, ErrRichLayoutUnavailable)
	assert.Empty(t, p.Ops())
}

func TestCanvas_InsertAdaptiveTextShrinks(t *testing.T) {
	p := NewMemoryPage(0, 600, 800, nil, goFonts(t))
	rect := geometry.NewRect(50, 50, 250, 90)
	text := strings.Repeat("translated words ", 12)

	layout, err := p.InsertAdaptiveText(rect, text, defaultOpts(12))
	require.NoError(t, err)
	assert.True(t, layout.Fits)
	assert.Less(t, layout.FontSize, 12.0)

	ops := p.OpsOf(OpText)
	require.Len(t, ops, 1)
	assert.Equal(t, rect, ops[0].Rect)
	assert.Equal(t, layout.FontSize, ops[0].FontSize)
	for _, w := range ops[0].LineWidths {
		assert.LessOrEqual(t, w, rect.Width()+1e-6)
	}
}

func TestCanvas_InsertAdaptiveTextNoFitDrawsNothing(t *testing.T) {
	p := NewMemoryPage(0, 600, 800, nil, goFonts(t))
	layout, err := p.InsertAdaptiveText(geometry.NewRect(0, 0, 20, 5), strings.Repeat("long ", 200), defaultOpts(12))
	require.NoError(t, err)
	assert.False(t, layout.Fits)
	assert.Empty(t, p.OpsOf(OpText))
}

func TestCanvas_FitsAndInsertText(t *testing.T) {
	p := NewMemoryPage(0, 600, 800, nil, textfit.FontSet{})
	rect := geometry.NewRect(0, 0, 100, 12)

	assert.True(t, p.Fits(rect, "short", defaultOpts(10)))
	assert.False(t, p.Fits(rect, strings.Repeat("much longer text ", 10), defaultOpts(10)))

	require.NoError(t, p.InsertText(rect, strings.Repeat("much longer text ", 10), defaultOpts(4)))
	ops := p.OpsOf(OpText)
	require.Len(t, ops, 1)
	assert.Equal(t, 4.0, ops[0].FontSize)

	assert.Error(t, p.InsertText(rect, "x", defaultOpts(0)))
}

func TestCanvas_OpsAreSequenced(t *testing.T) {
	p := NewMemoryPage(0, 100, 100, nil, textfit.FontSet{})
	require.NoError(t, p.PaintOpaque(geometry.NewRect(0, 0, 10, 10), White))
	require.NoError(t, p.DrawRect(geometry.NewRect(0, 0, 10, 10), Red, 1))
	require.NoError(t, p.DrawLabel(geometry.Point{X: 1, Y: 1}, "Text", 8, Red))

	ops := p.Ops()
	require.Len(t, ops, 3)
	assert.Equal(t, []OpKind{OpPaint, OpStroke, OpLabel}, []OpKind{ops[0].Kind, ops[1].Kind, ops[2].Kind})
	assert.Less(t, ops[0].Seq, ops[1].Seq)
	assert.Less(t, ops[1].Seq, ops[2].Seq)

	assert.Error(t, p.PaintOpaque(geometry.Rect{}, White))
}

func TestMemoryDocument(t *testing.T) {
	doc := NewMemoryDocument(NewMemoryPage(0, 10, 10, nil, textfit.FontSet{}))
	doc.PageErrs = map[int]error{1: errors.New("corrupt")}

	assert.Equal(t, 1, doc.PageCount())
	_, err := doc.Page(0)
	assert.NoError(t, err)
	_, err = doc.Page(1)
	assert.EqualError(t, err, "corrupt")
	_, err = doc.Page(5)
	assert.Error(t, err)

	require.NoError(t, doc.Save("out.pdf"))
	require.NoError(t, doc.Close())
	assert.Equal(t, []string{"out.pdf"}, doc.SavedPaths())
	assert.True(t, doc.Closed())
}
