package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"pdf-layout-translator/internal/document"
	ledger "pdf-layout-translator/internal/errors"
	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/pdf"
	"pdf-layout-translator/internal/results"
	"pdf-layout-translator/internal/types"
)

// Opener opens an input document
type Opener func(path string) (document.Document, error)

// Result of one document
type Result struct {
	InputPath    string        `json:"input_path"`
	OutputPath   string        `json:"output_path"`
	OverlayPaths []string      `json:"overlay_paths,omitempty"`
	TargetLang   string        `json:"target_lang"`
	Debug        bool          `json:"debug"`
	Skipped      bool          `json:"skipped,omitempty"`
	Pages        []PageOutcome `json:"pages"`
	Duration     time.Duration `json:"duration"`
}

// FailedPages returns the number of pages that ended in the Failed state
func (r *Result) FailedPages() int {
	return lo.CountBy(r.Pages, func(o PageOutcome) bool { return o.Failed() })
}

// DocumentPipeline runs the page pipeline over every page of a document and
// writes the edited document
type DocumentPipeline struct {
	cfg     *types.Config
	pages   *PagePipeline
	open    Opener
	ledger  *ledger.ErrorManager
	history *results.ResultManager
	skip    bool
}

// DocumentOption configures a DocumentPipeline
type DocumentOption func(*DocumentPipeline)

// WithOpener replaces the PDF backend
func WithOpener(open Opener) DocumentOption {
	return func(d *DocumentPipeline) { d.open = open }
}

// WithLedger records failed documents and pages
func WithLedger(em *ledger.ErrorManager) DocumentOption {
	return func(d *DocumentPipeline) { d.ledger = em }
}

// WithHistory records every finished document
func WithHistory(rm *results.ResultManager) DocumentOption {
	return func(d *DocumentPipeline) { d.history = rm }
}

// WithSkipExisting skips inputs whose translation into the target language is
// already complete. Needs WithHistory.
func WithSkipExisting() DocumentOption {
	return func(d *DocumentPipeline) { d.skip = true }
}

// NewDocumentPipeline creates a document pipeline
func NewDocumentPipeline(cfg *types.Config, detector layout.Detector, translator Translator, opts ...DocumentOption) *DocumentPipeline {
	d := &DocumentPipeline{
		cfg:   cfg,
		pages: NewPagePipeline(cfg, detector, translator),
	}
	d.open = func(path string) (document.Document, error) {
		doc, err := pdf.Open(path, pdf.Options{
			Fonts: pdf.FontPaths{Latin: cfg.Render.LatinFontPath, CJK: cfg.Render.CJKFontPath},
		})
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OutputPaths returns the output file and the overlay directory for an input
func (d *DocumentPipeline) OutputPaths(inputPath string, debug bool) (output, overlayDir string) {
	dir := d.cfg.OutputDirectory
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	if debug {
		return filepath.Join(dir, stem+"_layout_debug.pdf"), filepath.Join(dir, stem+"_layout_debug")
	}
	return filepath.Join(dir, stem+"_translated.pdf"), ""
}

// ProcessDocument translates inputPath into targetLang. Only a DocumentError
// is returned: page failures are reported in the result.
func (d *DocumentPipeline) ProcessDocument(ctx context.Context, inputPath, targetLang string, debug bool) (*Result, error) {
	start := time.Now()
	outputPath, overlayDir := d.OutputPaths(inputPath, debug)
	res := &Result{InputPath: inputPath, OutputPath: outputPath, TargetLang: targetLang, Debug: debug}

	if fi, err := os.Stat(inputPath); err != nil || fi.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is a directory", inputPath)
		}
		return nil, d.documentFailed(res, ledger.StageOpen, types.NewDocumentError("cannot read input", err))
	}

	if d.skip && !debug && d.history != nil {
		info, err := d.history.CheckExistingTranslation(inputPath, targetLang)
		if err != nil {
			logger.Warn("cannot check run history", logger.String("input", inputPath), logger.Err(err))
		} else if info.IsComplete {
			logger.Info("document skipped",
				logger.String("input", inputPath),
				logger.String("output", info.Document.OutputPath),
				logger.String("reason", info.Message))
			res.Skipped = true
			res.OutputPath = info.Document.OutputPath
			return res, nil
		}
	}

	doc, err := d.open(inputPath)
	if err != nil {
		return nil, d.documentFailed(res, ledger.StageOpen, types.NewDocumentError("cannot open input", err))
	}
	defer func() {
		if err := doc.Close(); err != nil {
			logger.Warn("failed to close document", logger.String("path", inputPath), logger.Err(err))
		}
	}()

	total := doc.PageCount()
	logger.Info("document started",
		logger.String("input", inputPath),
		logger.String("lang", targetLang),
		logger.Int("pages", total),
		logger.Bool("debug", debug))

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, d.documentFailed(res, ledger.StagePage, types.NewDocumentError("processing cancelled", err))
		}

		page, err := doc.Page(i)
		if err != nil {
			outcome := PageOutcome{Page: i + 1, Reached: StateDetecting}
			outcome.fail(types.NewPageError(i+1, "cannot load page", err))
			logger.Error("page failed", outcome.Err, logger.Page(i+1))
			res.Pages = append(res.Pages, outcome)
			continue
		}

		opts := PageOptions{TargetLang: targetLang, Debug: debug}
		if debug && d.cfg.Pipeline.DebugOverlayImages {
			opts.OverlayPath = filepath.Join(overlayDir, fmt.Sprintf("page_%03d.png", i+1))
		}
		outcome := d.pages.Process(ctx, page, opts)
		if outcome.OverlayPath != "" {
			res.OverlayPaths = append(res.OverlayPaths, outcome.OverlayPath)
		}
		res.Pages = append(res.Pages, outcome)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, d.documentFailed(res, ledger.StageSave, types.NewDocumentError("cannot create output directory", err))
	}
	if err := doc.Save(outputPath); err != nil {
		return nil, d.documentFailed(res, ledger.StageSave, types.NewDocumentError("cannot write output", err))
	}

	res.Duration = time.Since(start)
	d.recordPages(res)
	d.recordHistory(res, nil)

	logger.Info("document finished",
		logger.String("output", outputPath),
		logger.Int("pages", total),
		logger.Int("failedPages", res.FailedPages()),
		logger.Duration("elapsed", res.Duration))
	return res, nil
}

// documentFailed logs and records a document-level failure and returns err
func (d *DocumentPipeline) documentFailed(res *Result, stage ledger.ErrorStage, err *types.AppError) error {
	logger.Error("document failed", err, logger.String("input", res.InputPath))
	if d.ledger != nil {
		if prev, ok := d.ledger.GetError(ledger.RecordID(res.InputPath, 0)); ok && prev.RetryCount > 0 {
			logger.Warn("document failed again",
				logger.String("input", res.InputPath),
				logger.Int("retries", prev.RetryCount))
		}
		if lerr := d.ledger.RecordError(res.InputPath, 0, stage, string(err.Code), err.Error()); lerr != nil {
			logger.Warn("failed to update failure ledger", logger.Err(lerr))
		}
	}
	if stage != ledger.StageOpen {
		d.recordHistory(res, err)
	}
	return err
}

// recordPages brings the document's ledger entries in line with this run:
// pages that now succeed are removed, failed pages are recorded. Records that
// stay keep their retry count.
func (d *DocumentPipeline) recordPages(res *Result) {
	if d.ledger == nil {
		return
	}
	failed := make(map[string]PageOutcome)
	for _, o := range res.Pages {
		if o.Failed() {
			failed[ledger.RecordID(res.InputPath, o.Page)] = o
		}
	}

	for _, rec := range d.ledger.ListErrors() {
		if rec.Input != res.InputPath {
			continue
		}
		if _, ok := failed[rec.ID]; ok {
			continue
		}
		if err := d.ledger.RemoveError(rec.ID); err != nil {
			logger.Warn("failed to update failure ledger", logger.Err(err))
		}
	}

	for _, o := range res.Pages {
		if !o.Failed() {
			continue
		}
		if err := d.ledger.RecordError(res.InputPath, o.Page, ledger.StagePage, string(types.CodeOf(o.Err)), o.Err.Error()); err != nil {
			logger.Warn("failed to update failure ledger", logger.Err(err))
		}
	}
}

func (d *DocumentPipeline) recordHistory(res *Result, failure error) {
	if d.history == nil {
		return
	}
	sum, err := results.CalculateFileMD5(res.InputPath)
	if err != nil {
		logger.Warn("cannot hash input for run history", logger.String("input", res.InputPath), logger.Err(err))
		return
	}

	info := &results.DocumentInfo{
		SourceFileName: filepath.Base(res.InputPath),
		SourcePath:     res.InputPath,
		SourceMD5:      sum,
		OverlayPaths:   res.OverlayPaths,
		TargetLang:     res.TargetLang,
		Debug:          res.Debug,
		Pages:          len(res.Pages),
		PagesFailed:    res.FailedPages(),
		DurationMillis: res.Duration.Milliseconds(),
	}
	switch {
	case failure != nil:
		info.Status = results.StatusError
		info.ErrorMessage = failure.Error()
	case info.PagesFailed > 0:
		info.Status = results.StatusPartial
		info.OutputPath = res.OutputPath
	default:
		info.Status = results.StatusComplete
		info.OutputPath = res.OutputPath
	}
	if err := d.history.Record(info); err != nil {
		logger.Warn("failed to update run history", logger.Err(err))
	}
}
