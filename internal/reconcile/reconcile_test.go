package reconcile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-layout-translator/internal/config"
	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/textfit"
)

type lineSource struct {
	lines []document.TextLine
}

func (s *lineSource) TextIn(rect geometry.Rect) string {
	var parts []string
	for _, l := range s.lines {
		if rect.Contains(l.BBox.Center()) {
			parts = append(parts, l.Text)
		}
	}
	return strings.Join(parts, " ")
}

func (s *lineSource) TextLines() []document.TextLine {
	return s.lines
}

func line(x0, y0, x1, y1 float64, text string) document.TextLine {
	return document.TextLine{BBox: geometry.NewRect(x0, y0, x1, y1), Text: text}
}

var a4 = Info{Number: 1, Width: 595, Height: 842}

func newReconciler() *Reconciler {
	return New(config.DefaultReconcile())
}

func cand(t layout.RegionType, x0, y0, x1, y1, conf float64) layout.Candidate {
	return layout.Candidate{Type: t, BBox: geometry.NewRect(x0, y0, x1, y1), Confidence: conf}
}

func TestReconcile_TitleKeptTextProtected(t *testing.T) {
	cands := []layout.Candidate{
		cand(layout.Title, 80, 10, 400, 40, 0.9),
		cand(layout.Figure, 60, 200, 500, 500, 0.9),
		cand(layout.Text, 100, 300, 300, 340, 0.8),
	}

	res := newReconciler().Reconcile(a4, cands, &lineSource{})

	require.Len(t, res.Blocks, 1)
	assert.Equal(t, layout.Title, res.Blocks[0].Type)
	assert.Equal(t, geometry.NewRect(80, 10, 400, 40), res.Blocks[0].BBox)

	require.Len(t, res.Protected, 1)
	assert.Equal(t, layout.Figure, res.Protected[0].Type)

	require.Len(t, res.Dropped, 1)
	assert.Equal(t, ReasonProtected, res.Dropped[0].Reason)
}

func TestReconcile_TitleInsideFigureNotProtected(t *testing.T) {
	cands := []layout.Candidate{
		cand(layout.Figure, 60, 200, 500, 500, 0.9),
		cand(layout.Title, 100, 300, 300, 320, 0.8),
	}
	res := newReconciler().Reconcile(a4, cands, &lineSource{})
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, layout.Title, res.Blocks[0].Type)
}

func TestReconcile_WideTextNotProtected(t *testing.T) {
	cands := []layout.Candidate{
		cand(layout.Figure, 20, 200, 580, 500, 0.9),
		cand(layout.Text, 40, 300, 560, 340, 0.8),
	}
	res := newReconciler().Reconcile(a4, cands, &lineSource{})
	assert.Len(t, res.Blocks, 1)
}

func TestReconcile_OverlapKeepsLarger(t *testing.T) {
	// IoU about 0.9, areas 100 and 110 scaled up
	cands := []layout.Candidate{
		cand(layout.Text, 200, 400, 300, 500, 0.9),
		cand(layout.Text, 200, 400, 310, 500, 0.7),
	}

	res := newReconciler().Reconcile(a4, cands, &lineSource{})

	require.Len(t, res.Blocks, 1)
	assert.Equal(t, geometry.NewRect(200, 400, 310, 500), res.Blocks[0].BBox)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, ReasonOverlap, res.Dropped[0].Reason)
}

func TestReconcile_ContainerDropped(t *testing.T) {
	cands := []layout.Candidate{
		cand(layout.Text, 50, 300, 550, 500, 0.6),
		cand(layout.Text, 55, 305, 545, 395, 0.9),
		cand(layout.Text, 55, 405, 545, 495, 0.9),
	}

	res := newReconciler().Reconcile(a4, cands, &lineSource{})

	require.Len(t, res.Blocks, 2)
	assert.Equal(t, 305.0, res.Blocks[0].BBox.Y0)
	assert.Equal(t, 405.0, res.Blocks[1].BBox.Y0)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, ReasonContainer, res.Dropped[0].Reason)
}

func TestReconcile_ClipsAndClamps(t *testing.T) {
	cands := []layout.Candidate{
		cand(layout.Text, -20, 700, 300, 900, 1.4),
		cand(layout.Text, 600, 10, 700, 40, 0.9),
	}

	res := newReconciler().Reconcile(a4, cands, &lineSource{})

	require.Len(t, res.Blocks, 1)
	assert.Equal(t, geometry.NewRect(0, 700, 300, 842), res.Blocks[0].BBox)
	assert.Equal(t, 1.0, res.Blocks[0].Confidence)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, ReasonEmpty, res.Dropped[0].Reason)
}

func TestReconcile_RescuesUnclassifiedProse(t *testing.T) {
	src := &lineSource{lines: []document.TextLine{
		line(60, 300, 500, 312, "This sidebar explains the method in plain words."),
		line(60, 790, 120, 800, "Page 3"),
	}}
	cands := []layout.Candidate{
		cand(layout.Unknown, 50, 295, 510, 315, 0.4),
		cand(layout.Abandon, 50, 785, 130, 805, 0.9),
	}

	res := newReconciler().Reconcile(a4, cands, src)

	require.Len(t, res.Blocks, 1)
	assert.Equal(t, layout.Text, res.Blocks[0].Type)
	assert.Equal(t, 295.0, res.Blocks[0].BBox.Y0)

	reasons := map[string]int{}
	for _, d := range res.Dropped {
		reasons[d.Reason]++
	}
	assert.Equal(t, 1, reasons[ReasonNoProse])
}

func TestReconcile_RescuesOrphanLines(t *testing.T) {
	src := &lineSource{lines: []document.TextLine{
		// covered by the detected block
		line(60, 200, 500, 212, "detected paragraph text"),
		// two adjacent orphan lines forming one paragraph
		line(60, 400, 500, 412, "a paragraph the detector missed"),
		line(60, 414, 480, 426, "continues on the next line"),
		// a far away orphan
		line(60, 600, 300, 612, "another missed line"),
		// numbers only
		line(60, 700, 100, 712, "12.5"),
		// inside a figure
		line(320, 620, 380, 630, "axis label"),
	}}
	cands := []layout.Candidate{
		cand(layout.Text, 50, 195, 510, 215, 0.9),
		cand(layout.Figure, 310, 590, 560, 680, 0.9),
	}

	res := newReconciler().Reconcile(a4, cands, src)

	require.Len(t, res.Blocks, 3)
	assert.Equal(t, geometry.NewRect(50, 195, 510, 215), res.Blocks[0].BBox)

	assert.Equal(t, geometry.NewRect(60, 400, 500, 426), res.Blocks[1].BBox)
	assert.Equal(t, "orphan", res.Blocks[1].Label)
	assert.Equal(t, 0.5, res.Blocks[1].Confidence)

	assert.Equal(t, geometry.NewRect(60, 600, 300, 612), res.Blocks[2].BBox)
}

func TestReconcile_RescuesMissedColumn(t *testing.T) {
	run := func(x0, y0, x1, y1 float64, text string) document.GlyphRun {
		return document.GlyphRun{BBox: geometry.NewRect(x0, y0, x1, y1), Text: text, Size: 11, Font: "Times"}
	}
	page := document.NewMemoryPage(0, 595, 842, []document.GlyphRun{
		run(50, 300, 280, 311, "left column line one"),
		run(320, 300, 550, 311, "right column line one"),
		run(50, 313, 280, 324, "left column line two"),
		run(320, 313, 550, 324, "right column line two"),
	}, textfit.FontSet{})
	src := &lineSource{lines: page.TextLines()}

	res := newReconciler().Reconcile(a4, []layout.Candidate{cand(layout.Text, 45, 295, 285, 328, 0.9)}, src)

	require.Len(t, res.Blocks, 2)
	assert.Equal(t, geometry.NewRect(45, 295, 285, 328), res.Blocks[0].BBox)
	assert.Equal(t, geometry.NewRect(320, 300, 550, 324), res.Blocks[1].BBox)
	assert.Equal(t, "orphan", res.Blocks[1].Label)
	assert.Equal(t, "right column line one right column line two", src.TextIn(res.Blocks[1].BBox))
}

func TestReconcile_Retyping(t *testing.T) {
	src := &lineSource{lines: []document.TextLine{
		line(100, 40, 400, 60, "A Narrow Heading"),
		line(60, 300, 500, 312, "• first point of the list"),
		line(60, 400, 500, 412, "an ordinary paragraph line"),
	}}
	cands := []layout.Candidate{
		cand(layout.Text, 95, 35, 405, 65, 0.9),
		cand(layout.Text, 55, 295, 505, 315, 0.9),
		cand(layout.Text, 55, 395, 505, 415, 0.9),
	}

	res := newReconciler().Reconcile(a4, cands, src)

	require.Len(t, res.Blocks, 3)
	assert.Equal(t, layout.Title, res.Blocks[0].Type)
	assert.Equal(t, layout.List, res.Blocks[1].Type)
	assert.Equal(t, layout.Text, res.Blocks[2].Type)
}

func TestReconcile_SortsTopToBottomLeftToRight(t *testing.T) {
	cands := []layout.Candidate{
		cand(layout.Text, 320, 300, 560, 400, 0.9),
		cand(layout.Text, 40, 500, 280, 600, 0.9),
		cand(layout.Text, 40, 300, 280, 400, 0.9),
	}

	res := newReconciler().Reconcile(a4, cands, &lineSource{})

	require.Len(t, res.Blocks, 3)
	assert.Equal(t, 40.0, res.Blocks[0].BBox.X0)
	assert.Equal(t, 320.0, res.Blocks[1].BBox.X0)
	assert.Equal(t, 500.0, res.Blocks[2].BBox.Y0)
}

func TestReconcile_ContainmentInvariant(t *testing.T) {
	// a noisy detector output with nested and duplicated boxes
	cands := []layout.Candidate{
		cand(layout.Text, 50, 100, 550, 300, 0.5),
		cand(layout.Text, 52, 102, 548, 298, 0.9),
		cand(layout.Text, 60, 110, 300, 150, 0.8),
		cand(layout.Title, 60, 110, 305, 152, 0.7),
		cand(layout.List, 60, 400, 540, 500, 0.6),
		cand(layout.Text, 61, 401, 539, 499, 0.6),
		cand(layout.Text, 70, 420, 300, 440, 0.6),
		cand(layout.Text, 70, 450, 300, 470, 0.6),
	}

	res := newReconciler().Reconcile(a4, cands, &lineSource{})

	assert.NotEmpty(t, res.Blocks)
	assert.Empty(t, ContainmentViolations(res.Blocks, 0.8))
	assert.Equal(t, len(cands), len(res.Blocks)+len(res.Dropped))
}

func TestReconcile_DoesNotModifyInput(t *testing.T) {
	cands := []layout.Candidate{cand(layout.Text, -10, 10, 100, 40, 2)}
	newReconciler().Reconcile(a4, cands, &lineSource{})
	assert.Equal(t, -10.0, cands[0].BBox.X0)
	assert.Equal(t, 2.0, cands[0].Confidence)
}
