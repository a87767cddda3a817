// Package pipeline runs the per-page state machine (detect, reconcile,
// extract, erase, translate and render) and drives it over whole documents.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/extract"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/reconcile"
	"pdf-layout-translator/internal/render"
	"pdf-layout-translator/internal/translate"
	"pdf-layout-translator/internal/types"
)

// State of the page state machine
type State string

const (
	StateDetecting            State = "Detecting"
	StateReconciling          State = "Reconciling"
	StateExtracting           State = "Extracting"
	StateErasingAll           State = "ErasingAll"
	StateTranslatingRendering State = "TranslatingRendering"
	StateDone                 State = "Done"
	StateFailed               State = "Failed"
)

// Block is a reconciled region with its source text and typography
type Block struct {
	BBox       geometry.Rect // page space
	Type       layout.RegionType
	Confidence float64
	Text       string
	Style      document.Style
	SortKey    float64
}

// Translator translates one block
type Translator interface {
	Translate(ctx context.Context, req translate.Request) (string, error)
}

// PageOptions controls one page run
type PageOptions struct {
	TargetLang string
	// Debug draws the reconciled regions instead of translating
	Debug bool
	// OverlayPath receives a PNG of the raster with the regions drawn; only
	// used in debug mode
	OverlayPath string
}

// PageOutcome summarizes one page
type PageOutcome struct {
	Page int `json:"page"` // 1-based
	// State is Done or Failed; Reached is the last state entered
	State   State `json:"state"`
	Reached State `json:"reached"`
	Err     error `json:"-"`

	Candidates        int    `json:"candidates"`
	Blocks            int    `json:"blocks"`
	Protected         int    `json:"protected"`
	Dropped           int    `json:"dropped"`
	Skipped           int    `json:"skipped"`
	Rendered          int    `json:"rendered"`
	Forced            int    `json:"forced"`
	TranslationErrors int    `json:"translation_errors"`
	OverlayPath       string `json:"overlay_path,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Failed reports whether the page ended in the Failed state
func (o PageOutcome) Failed() bool {
	return o.State == StateFailed
}

func (o *PageOutcome) enter(s State) {
	o.Reached = s
	logger.Debug("page state", logger.Page(o.Page), logger.String("state", string(s)))
}

// PagePipeline processes pages one at a time. Blocks within a page are
// handled sequentially and every erase completes before the first render.
type PagePipeline struct {
	cfg        *types.Config
	detector   layout.Detector
	reconciler *reconcile.Reconciler
	extractor  *extract.Extractor
	eraser     *render.Eraser
	renderer   *render.Renderer
	translator Translator
}

// NewPagePipeline creates a page pipeline
func NewPagePipeline(cfg *types.Config, detector layout.Detector, translator Translator) *PagePipeline {
	return &PagePipeline{
		cfg:        cfg,
		detector:   detector,
		reconciler: reconcile.New(cfg.Reconcile),
		extractor:  extract.New(cfg.Extract),
		eraser:     render.NewEraser(cfg.Render),
		renderer:   render.NewRenderer(cfg.Render),
		translator: translator,
	}
}

// Process runs the state machine on page. Errors and panics never escape:
// they end the page in the Failed state with a PageError.
func (p *PagePipeline) Process(ctx context.Context, page document.Page, opts PageOptions) (out PageOutcome) {
	out.Page = page.Number() + 1
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Debug("page panic stack", logger.Page(out.Page), logger.String("stack", string(debug.Stack())))
			out.fail(types.NewPageError(out.Page, fmt.Sprintf("panic during %s", out.Reached), fmt.Errorf("%v", r)))
		}
		out.Duration = time.Since(start)
		if out.Failed() {
			logger.Error("page failed", out.Err, logger.Page(out.Page), logger.String("state", string(out.Reached)))
			return
		}
		logger.Info("page done",
			logger.Page(out.Page),
			logger.Int("blocks", out.Blocks),
			logger.Int("rendered", out.Rendered),
			logger.Int("forced", out.Forced),
			logger.Int("skipped", out.Skipped),
			logger.Duration("elapsed", out.Duration))
	}()

	if err := p.process(ctx, page, opts, &out); err != nil {
		out.fail(types.NewPageError(out.Page, fmt.Sprintf("failed during %s", out.Reached), err))
		return out
	}
	out.State = StateDone
	return out
}

func (o *PageOutcome) fail(err error) {
	o.State = StateFailed
	o.Err = err
}

// pageText exposes a page's text model to the reconciler
type pageText struct {
	page document.Page
	ex   *extract.Extractor
}

func (s pageText) TextIn(rect geometry.Rect) string { return s.ex.ExtractText(s.page, rect) }

func (s pageText) TextLines() []document.TextLine { return s.page.TextLines() }

// needsRaster reports whether anything on this run reads the page raster:
// the detector, the debug overlay or the text color sampling
func (p *PagePipeline) needsRaster(opts PageOptions) bool {
	switch {
	case layout.NeedsImage(p.detector):
		return true
	case opts.Debug:
		return p.cfg.Pipeline.DebugOverlayImages && opts.OverlayPath != ""
	default:
		return !p.cfg.Extract.SkipInkColors
	}
}

func (p *PagePipeline) process(ctx context.Context, page document.Page, opts PageOptions, out *PageOutcome) error {
	width, height := page.Size()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid page size %.1fx%.1f", width, height)
	}

	out.enter(StateDetecting)
	in := layout.Input{
		Page:       out.Page,
		PageWidth:  width,
		PageHeight: height,
		Lines:      page.TextLines(),
	}
	var img *document.PageImage
	if p.needsRaster(opts) {
		var err error
		if img, err = page.Rasterize(p.cfg.Detector.RasterScale); err != nil {
			logger.Warn("rasterization failed, detecting from text lines",
				logger.Page(out.Page), logger.Err(err))
		} else {
			in.Image = img
		}
	}
	cands, err := p.detector.Detect(ctx, in)
	if err != nil {
		return fmt.Errorf("layout detection: %w", err)
	}
	cands = layout.ToPageSpace(cands, in.Transform(p.cfg.Detector.RasterScale))
	out.Candidates = len(cands)

	out.enter(StateReconciling)
	rec := p.reconciler.Reconcile(
		reconcile.Info{Number: out.Page, Width: width, Height: height},
		cands,
		pageText{page: page, ex: p.extractor})
	out.Blocks = len(rec.Blocks)
	out.Protected = len(rec.Protected)
	out.Dropped = len(rec.Dropped)

	if opts.Debug {
		if err := drawDebug(page, rec); err != nil {
			return err
		}
		if p.cfg.Pipeline.DebugOverlayImages && opts.OverlayPath != "" && img != nil {
			if err := writeOverlay(opts.OverlayPath, img, in.Transform(p.cfg.Detector.RasterScale), rec); err != nil {
				logger.Warn("failed to write debug overlay", logger.Page(out.Page), logger.Err(err))
			} else {
				out.OverlayPath = opts.OverlayPath
			}
		}
		return nil
	}

	out.enter(StateExtracting)
	pageContext := p.extractor.PageContext(page)
	blocks := make([]Block, 0, len(rec.Blocks))
	for _, c := range rec.Blocks {
		text := p.extractor.ExtractText(page, c.BBox)
		style := p.extractor.ExtractStyle(page, c.BBox)
		if err := p.extractor.Usable(text, c.Type, style); err != nil {
			logger.Debug("block skipped",
				logger.Page(out.Page),
				logger.String("bbox", c.BBox.String()),
				logger.Err(err))
			out.Skipped++
			continue
		}
		blocks = append(blocks, Block{
			BBox:       c.BBox,
			Type:       c.Type,
			Confidence: c.Confidence,
			Text:       text,
			Style:      style,
			SortKey:    c.BBox.Y0,
		})
	}
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].SortKey < blocks[j].SortKey })

	out.enter(StateErasingAll)
	erased := make([]bool, len(blocks))
	for i, b := range blocks {
		rect := p.eraser.ComputeEraseRect(page, b.BBox)
		if err := p.eraser.Erase(page, rect); err != nil {
			out.Skipped++
			continue
		}
		erased[i] = true
	}

	out.enter(StateTranslatingRendering)
	for i, b := range blocks {
		if !erased[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		translated, err := p.translator.Translate(ctx, translate.Request{
			Text:       b.Text,
			TargetLang: opts.TargetLang,
			Context:    pageContext,
		})
		if err != nil {
			// the source text comes back on failure and is rendered as is
			out.TranslationErrors++
			logger.Warn("block kept its source text", logger.Page(out.Page), logger.Err(err))
			if translated == "" {
				translated = b.Text
			}
		}

		fit, err := p.renderer.Render(page, b.BBox, translated, b.Style, opts.TargetLang)
		switch {
		case fit:
			out.Rendered++
		case types.IsCode(err, types.ErrRender):
			out.Forced++
		default:
			logger.Warn("block render failed", logger.Page(out.Page), logger.Err(err))
		}
	}

	out.enter(StateDone)
	return nil
}
