package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-layout-translator/internal/config"
	"pdf-layout-translator/internal/document"
	ledger "pdf-layout-translator/internal/errors"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/results"
	"pdf-layout-translator/internal/textfit"
	"pdf-layout-translator/internal/translate"
	"pdf-layout-translator/internal/types"
)

// stubDetector reports fixed page-space boxes in pixel space
type stubDetector struct {
	boxes   []layout.Candidate
	panicOn int
	err     error
}

func (d *stubDetector) Detect(_ context.Context, in layout.Input) ([]layout.Candidate, error) {
	if in.Page == d.panicOn {
		panic("detector exploded")
	}
	if d.err != nil {
		return nil, d.err
	}
	tr := in.Transform(2)
	out := make([]layout.Candidate, len(d.boxes))
	for i, c := range d.boxes {
		c.BBox = tr.ToPixel(c.BBox)
		out[i] = c
	}
	return out, nil
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls []translate.Request
	fail  bool
}

func (f *fakeTranslator) Translate(_ context.Context, req translate.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.fail {
		return req.Text, types.NewTranslationError("retries exhausted", errors.New("timeout"))
	}
	return "[T] " + req.Text, nil
}

func (f *fakeTranslator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func glyph(x0, y0, x1, y1 float64, text string, size float64) document.GlyphRun {
	return document.GlyphRun{BBox: geometry.NewRect(x0, y0, x1, y1), Text: text, Size: size, Color: document.Black, Font: "Times-Roman"}
}

func samplePage(number int) *document.MemoryPage {
	return document.NewMemoryPage(number, 600, 800, []document.GlyphRun{
		glyph(100, 60, 500, 80, "Layout Preserving Translation", 18),
		glyph(50, 200, 550, 212, "The quick brown fox jumps over the lazy dog again.", 10),
		glyph(50, 214, 550, 226, "Second line of the paragraph with more words.", 10),
		glyph(50, 400, 550, 412, "Another paragraph lies lower down on the page.", 10),
	}, textfit.FontSet{})
}

func sampleDetector() *stubDetector {
	return &stubDetector{boxes: []layout.Candidate{
		{Type: layout.Text, BBox: geometry.NewRect(40, 395, 560, 415), Confidence: 0.88},
		{Type: layout.Title, BBox: geometry.NewRect(90, 50, 510, 90), Confidence: 0.93},
		{Type: layout.Text, BBox: geometry.NewRect(40, 195, 560, 230), Confidence: 0.91},
	}}
}

func testConfig() *types.Config {
	cfg := config.DefaultConfig()
	cfg.Detector.RasterScale = 2
	return cfg
}

func TestProcess_ErasesEverythingBeforeRendering(t *testing.T) {
	page := samplePage(0)
	tr := &fakeTranslator{}
	p := NewPagePipeline(testConfig(), sampleDetector(), tr)

	out := p.Process(context.Background(), page, PageOptions{TargetLang: "zh-TW"})
	require.NoError(t, out.Err)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, StateDone, out.Reached)
	assert.Equal(t, 1, out.Page)
	assert.Equal(t, 3, out.Blocks)
	assert.Equal(t, 3, out.Rendered+out.Forced)
	assert.Equal(t, 3, tr.count())

	paints := page.OpsOf(document.OpPaint)
	texts := page.OpsOf(document.OpText)
	require.Len(t, paints, 3)
	require.Len(t, texts, 3)

	lastPaint := paints[len(paints)-1].Seq
	for _, op := range texts {
		assert.Greater(t, op.Seq, lastPaint, "render before erase")
	}
	assert.True(t, sort.SliceIsSorted(texts, func(i, j int) bool { return texts[i].Rect.Y0 < texts[j].Rect.Y0 }),
		"blocks rendered top to bottom")

	for _, req := range tr.calls {
		assert.Equal(t, "zh-TW", req.TargetLang)
		assert.Contains(t, req.Context, "Layout Preserving Translation")
	}
	assert.Equal(t, "The quick brown fox jumps over the lazy dog again. Second line of the paragraph with more words.", tr.calls[1].Text)
}

func TestProcess_DebugDrawsRegionsWithoutTranslating(t *testing.T) {
	page := samplePage(0)
	tr := &fakeTranslator{}
	p := NewPagePipeline(testConfig(), sampleDetector(), tr)

	out := p.Process(context.Background(), page, PageOptions{TargetLang: "zh-TW", Debug: true})
	require.NoError(t, out.Err)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, StateReconciling, out.Reached)

	assert.Len(t, page.OpsOf(document.OpStroke), 3)
	labels := page.OpsOf(document.OpLabel)
	require.Len(t, labels, 3)
	assert.Empty(t, page.OpsOf(document.OpPaint))
	assert.Empty(t, page.OpsOf(document.OpText))
	assert.Zero(t, tr.count())

	var texts []string
	for _, l := range labels {
		texts = append(texts, l.Text)
	}
	assert.Contains(t, texts, "Title 0.93")
	assert.Contains(t, texts, "Text 0.91")
}

func TestProcess_DegradedTranslationKeepsSource(t *testing.T) {
	page := samplePage(0)
	tr := &fakeTranslator{fail: true}
	p := NewPagePipeline(testConfig(), sampleDetector(), tr)

	out := p.Process(context.Background(), page, PageOptions{TargetLang: "zh-TW"})
	require.NoError(t, out.Err)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, 3, out.TranslationErrors)

	texts := page.OpsOf(document.OpText)
	require.Len(t, texts, 3)
	assert.Contains(t, texts[0].Lines[0], "Layout")
}

func TestProcess_DetectorPanicBecomesPageError(t *testing.T) {
	det := sampleDetector()
	det.panicOn = 1
	p := NewPagePipeline(testConfig(), det, &fakeTranslator{})

	out := p.Process(context.Background(), samplePage(0), PageOptions{TargetLang: "zh-TW"})
	assert.True(t, out.Failed())
	assert.Equal(t, StateDetecting, out.Reached)
	assert.True(t, types.IsCode(out.Err, types.ErrPage))
}

func TestProcess_DetectorErrorBecomesPageError(t *testing.T) {
	det := &stubDetector{err: errors.New("no layout")}
	out := NewPagePipeline(testConfig(), det, &fakeTranslator{}).
		Process(context.Background(), samplePage(0), PageOptions{TargetLang: "zh-TW"})

	assert.True(t, out.Failed())
	assert.True(t, types.IsCode(out.Err, types.ErrPage))
	assert.Contains(t, out.Err.Error(), "no layout")
}

func TestProcess_RasterFailureStillDetects(t *testing.T) {
	page := samplePage(0)
	page.RasterErr = errors.New("no poppler")
	tr := &fakeTranslator{}

	out := NewPagePipeline(testConfig(), sampleDetector(), tr).
		Process(context.Background(), page, PageOptions{TargetLang: "zh-TW"})
	require.NoError(t, out.Err)
	assert.Equal(t, 3, out.Blocks)
}

func TestProcess_HeuristicKeepsColumnsApart(t *testing.T) {
	page := document.NewMemoryPage(0, 600, 800, []document.GlyphRun{
		glyph(50, 300, 280, 311, "left column line one", 11),
		glyph(320, 300, 550, 311, "right column line one", 11),
		glyph(50, 313, 280, 324, "left column line two", 11),
		glyph(320, 313, 550, 324, "right column line two", 11),
	}, textfit.FontSet{})
	tr := &fakeTranslator{}

	out := NewPagePipeline(testConfig(), layout.NewHeuristicDetector(2), tr).
		Process(context.Background(), page, PageOptions{TargetLang: "zh-TW"})
	require.NoError(t, out.Err)
	assert.Equal(t, 2, out.Blocks)

	var sent []string
	for _, req := range tr.calls {
		sent = append(sent, req.Text)
	}
	assert.ElementsMatch(t, []string{
		"left column line one left column line two",
		"right column line one right column line two",
	}, sent)
}

func TestProcess_HeuristicProtectsDrawings(t *testing.T) {
	page := document.NewMemoryPage(0, 600, 800, []document.GlyphRun{
		glyph(150, 370, 230, 378, "Revenue by year", 8),
		glyph(50, 500, 550, 512, "The body paragraph below the chart explains the numbers.", 10),
	}, textfit.FontSet{})
	page.Ink = []document.Mark{{Rect: geometry.NewRect(100, 300, 300, 450), Color: document.Color{R: 0.5, G: 0.5, B: 0.5}}}
	tr := &fakeTranslator{}

	out := NewPagePipeline(testConfig(), layout.NewHeuristicDetector(2), tr).
		Process(context.Background(), page, PageOptions{TargetLang: "zh-TW"})
	require.NoError(t, out.Err)
	assert.Equal(t, 1, out.Protected)
	assert.Equal(t, 1, out.Blocks)

	require.Equal(t, 1, tr.count())
	assert.Equal(t, "The body paragraph below the chart explains the numbers.", tr.calls[0].Text)

	paints := page.OpsOf(document.OpPaint)
	require.Len(t, paints, 1)
	assert.False(t, paints[0].Rect.Intersects(geometry.NewRect(150, 370, 230, 378)), "chart label erased")
}

func TestProcess_RasterizesOnlyWhenUsed(t *testing.T) {
	textOnly := func() *layout.HeuristicDetector {
		d := layout.NewHeuristicDetector(2)
		d.Figures = false
		return d
	}

	t.Run("debug without overlay", func(t *testing.T) {
		page := samplePage(0)
		out := NewPagePipeline(testConfig(), textOnly(), nil).
			Process(context.Background(), page, PageOptions{TargetLang: "zh-TW", Debug: true})
		require.NoError(t, out.Err)
		assert.Zero(t, page.Rasterizations())
	})

	t.Run("colors not sampled", func(t *testing.T) {
		cfg := testConfig()
		cfg.Extract.SkipInkColors = true
		page := samplePage(0)
		out := NewPagePipeline(cfg, textOnly(), &fakeTranslator{}).
			Process(context.Background(), page, PageOptions{TargetLang: "zh-TW"})
		require.NoError(t, out.Err)
		assert.Zero(t, page.Rasterizations())
	})

	t.Run("colors sampled", func(t *testing.T) {
		page := samplePage(0)
		out := NewPagePipeline(testConfig(), textOnly(), &fakeTranslator{}).
			Process(context.Background(), page, PageOptions{TargetLang: "zh-TW"})
		require.NoError(t, out.Err)
		assert.Equal(t, 1, page.Rasterizations())
	})

	t.Run("drawings detected", func(t *testing.T) {
		page := samplePage(0)
		out := NewPagePipeline(testConfig(), layout.NewHeuristicDetector(2), nil).
			Process(context.Background(), page, PageOptions{TargetLang: "zh-TW", Debug: true})
		require.NoError(t, out.Err)
		assert.Equal(t, 1, page.Rasterizations())
	})
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7 "+name), 0644))
	return path
}

func TestProcessDocument_PageFailuresAreIsolated(t *testing.T) {
	dir := t.TempDir()
	input := touch(t, dir, "paper.pdf")

	doc := document.NewMemoryDocument(samplePage(0), samplePage(1), samplePage(2))
	doc.PageErrs = map[int]error{1: errors.New("broken content stream")}
	det := sampleDetector()
	det.panicOn = 3

	em, err := ledger.NewErrorManager(dir)
	require.NoError(t, err)
	rm, err := results.NewResultManager(dir)
	require.NoError(t, err)

	dp := NewDocumentPipeline(testConfig(), det, &fakeTranslator{},
		WithOpener(func(string) (document.Document, error) { return doc, nil }),
		WithLedger(em),
		WithHistory(rm))

	res, err := dp.ProcessDocument(context.Background(), input, "zh-TW", false)
	require.NoError(t, err)
	require.Len(t, res.Pages, 3)

	assert.False(t, res.Pages[0].Failed())
	assert.True(t, res.Pages[1].Failed())
	assert.True(t, res.Pages[2].Failed())
	assert.Equal(t, 2, res.FailedPages())

	want := filepath.Join(dir, "paper_translated.pdf")
	assert.Equal(t, want, res.OutputPath)
	assert.Equal(t, []string{want}, doc.SavedPaths())
	assert.True(t, doc.Closed())

	_, ok := em.GetError(ledger.RecordID(input, 2))
	assert.True(t, ok)
	_, ok = em.GetError(ledger.RecordID(input, 3))
	assert.True(t, ok)
	_, ok = em.GetError(ledger.RecordID(input, 1))
	assert.False(t, ok)

	docs, err := rm.ListDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, results.StatusPartial, docs[0].Status)
	assert.Equal(t, 3, docs[0].Pages)
	assert.Equal(t, 2, docs[0].PagesFailed)
}

func TestProcessDocument_LedgerFollowsRetries(t *testing.T) {
	dir := t.TempDir()
	input := touch(t, dir, "paper.pdf")
	em, err := ledger.NewErrorManager(dir)
	require.NoError(t, err)

	broken := map[int]error{1: errors.New("broken content stream")}
	run := func(pageErrs map[int]error) {
		doc := document.NewMemoryDocument(samplePage(0), samplePage(1))
		doc.PageErrs = pageErrs
		dp := NewDocumentPipeline(testConfig(), sampleDetector(), &fakeTranslator{},
			WithOpener(func(string) (document.Document, error) { return doc, nil }),
			WithLedger(em))
		_, err := dp.ProcessDocument(context.Background(), input, "zh-TW", false)
		require.NoError(t, err)
	}

	// 上次写出失败留下的文档级记录
	require.NoError(t, em.RecordError(input, 0, ledger.StageSave, "DOCUMENT_ERROR", "disk full"))
	run(broken)
	_, ok := em.GetError(ledger.RecordID(input, 0))
	assert.False(t, ok)

	retry, err := em.BeginRetry(3)
	require.NoError(t, err)
	assert.Equal(t, []string{input}, retry)

	run(broken)
	rec, ok := em.GetError(ledger.RecordID(input, 2))
	require.True(t, ok)
	assert.Equal(t, 1, rec.RetryCount)

	run(nil)
	assert.Empty(t, em.ListErrors())
}

func TestProcessDocument_SkipsCompleteTranslation(t *testing.T) {
	dir := t.TempDir()
	input := touch(t, dir, "paper.pdf")
	rm, err := results.NewResultManager(dir)
	require.NoError(t, err)

	var opened atomic.Int32
	dp := NewDocumentPipeline(testConfig(), sampleDetector(), &fakeTranslator{},
		WithOpener(func(string) (document.Document, error) {
			opened.Add(1)
			return document.NewMemoryDocument(samplePage(0)), nil
		}),
		WithHistory(rm),
		WithSkipExisting())

	res, err := dp.ProcessDocument(context.Background(), input, "zh-TW", false)
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	// 译文不存在时不跳过
	res, err = dp.ProcessDocument(context.Background(), input, "zh-TW", false)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.EqualValues(t, 2, opened.Load())

	touch(t, dir, "paper_translated.pdf")
	res, err = dp.ProcessDocument(context.Background(), input, "zh-TW", false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, filepath.Join(dir, "paper_translated.pdf"), res.OutputPath)
	assert.EqualValues(t, 2, opened.Load())

	// 其他目标语言和调试运行照常处理
	res, err = dp.ProcessDocument(context.Background(), input, "ja", false)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	res, err = dp.ProcessDocument(context.Background(), input, "zh-TW", true)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.EqualValues(t, 4, opened.Load())
}

func TestProcessDocument_MissingInputIsDocumentError(t *testing.T) {
	dir := t.TempDir()
	var opened atomic.Bool
	em, err := ledger.NewErrorManager(dir)
	require.NoError(t, err)

	dp := NewDocumentPipeline(testConfig(), sampleDetector(), &fakeTranslator{},
		WithOpener(func(string) (document.Document, error) {
			opened.Store(true)
			return nil, errors.New("unreachable")
		}),
		WithLedger(em))

	missing := filepath.Join(dir, "missing.pdf")
	res, err := dp.ProcessDocument(context.Background(), missing, "zh-TW", false)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrDocument))
	assert.False(t, opened.Load())

	record, ok := em.GetError(missing)
	require.True(t, ok)
	assert.Equal(t, ledger.StageOpen, record.Stage)
}

func TestProcessDocument_OpenFailureIsDocumentError(t *testing.T) {
	input := touch(t, t.TempDir(), "corrupt.pdf")
	dp := NewDocumentPipeline(testConfig(), sampleDetector(), &fakeTranslator{},
		WithOpener(func(string) (document.Document, error) { return nil, errors.New("xref table broken") }))

	_, err := dp.ProcessDocument(context.Background(), input, "zh-TW", false)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrDocument))
}

func TestProcessDocument_SaveFailureIsDocumentError(t *testing.T) {
	input := touch(t, t.TempDir(), "paper.pdf")
	doc := document.NewMemoryDocument(samplePage(0))
	doc.SaveErr = errors.New("disk full")
	dp := NewDocumentPipeline(testConfig(), sampleDetector(), &fakeTranslator{},
		WithOpener(func(string) (document.Document, error) { return doc, nil }))

	_, err := dp.ProcessDocument(context.Background(), input, "zh-TW", false)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrDocument))
	assert.True(t, doc.Closed())
}

func TestProcessDocument_DebugWritesOverlay(t *testing.T) {
	dir := t.TempDir()
	input := touch(t, dir, "paper.pdf")
	outDir := filepath.Join(dir, "out")

	cfg := testConfig()
	cfg.OutputDirectory = outDir
	cfg.Pipeline.DebugOverlayImages = true
	doc := document.NewMemoryDocument(samplePage(0))
	tr := &fakeTranslator{}

	dp := NewDocumentPipeline(cfg, sampleDetector(), tr,
		WithOpener(func(string) (document.Document, error) { return doc, nil }))

	res, err := dp.ProcessDocument(context.Background(), input, "zh-TW", true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "paper_layout_debug.pdf"), res.OutputPath)
	assert.Zero(t, tr.count())

	require.Len(t, res.OverlayPaths, 1)
	fi, err := os.Stat(res.OverlayPaths[0])
	require.NoError(t, err)
	assert.Greater(t, fi.Size(), int64(0))
}

func TestBatch_RunsEveryJob(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "a.pdf")
	b := touch(t, dir, "b.pdf")

	var opened atomic.Int32
	tr := &fakeTranslator{}
	dp := NewDocumentPipeline(testConfig(), sampleDetector(), tr,
		WithOpener(func(string) (document.Document, error) {
			opened.Add(1)
			return document.NewMemoryDocument(samplePage(0)), nil
		}))

	jobs := []Job{
		{InputPath: a, TargetLang: "zh-TW"},
		{InputPath: filepath.Join(dir, "missing.pdf"), TargetLang: "zh-TW"},
		{InputPath: b, TargetLang: "ja"},
	}
	out := NewBatch(dp, 2).Run(context.Background(), jobs)

	require.Len(t, out, 3)
	assert.NoError(t, out[0].Err)
	assert.True(t, types.IsCode(out[1].Err, types.ErrDocument))
	assert.NoError(t, out[2].Err)
	assert.Equal(t, filepath.Join(dir, "b_translated.pdf"), out[2].Result.OutputPath)
	assert.Equal(t, int32(2), opened.Load())
	assert.Equal(t, 6, tr.count())
}
