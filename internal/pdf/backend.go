package pdf

import (
	"fmt"
	"math"
	"os"
	"sync"

	ledpdf "github.com/ledongthuc/pdf"

	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/textfit"
)

// Options configures Open
type Options struct {
	Fonts FontPaths
	// Validate runs pdfcpu validation before reading
	Validate bool
}

// Document is an open PDF. Edits are recorded per page and written on Save.
type Document struct {
	path   string
	info   *Info
	file   *os.File
	reader *ledpdf.Reader

	fontPaths FontPaths
	fonts     textfit.FontSet
	raster    *Rasterizer

	mu    sync.Mutex // guards reader and pages
	pages map[int]*Page
}

var _ document.Document = (*Document)(nil)

// Open opens path for reading and editing
func Open(path string, opts Options) (*Document, error) {
	info, err := Inspect(path)
	if err != nil {
		return nil, err
	}
	if opts.Validate {
		if err := Validate(path); err != nil {
			return nil, err
		}
	}

	f, r, err := ledpdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	fontPaths := ResolveFonts(opts.Fonts)
	doc := &Document{
		path:      path,
		info:      info,
		file:      f,
		reader:    r,
		fontPaths: fontPaths,
		fonts:     loadMeasurers(fontPaths),
		raster:    NewRasterizer(),
		pages:     make(map[int]*Page),
	}

	logger.Debug("PDF opened",
		logger.String("path", path),
		logger.Int("pages", info.PageCount),
		logger.String("latinFont", fontPaths.Latin),
		logger.String("cjkFont", fontPaths.CJK),
		logger.Bool("pdftoppm", doc.raster.Available()))

	return doc, nil
}

// PageCount implements document.Document
func (d *Document) PageCount() int {
	return d.info.PageCount
}

// Page implements document.Document
func (d *Document) Page(index int) (document.Page, error) {
	if index < 0 || index >= d.info.PageCount {
		return nil, fmt.Errorf("page %d out of range [0,%d)", index, d.info.PageCount)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pages[index]; ok {
		return p, nil
	}

	dim := d.info.Pages[index]
	runs, err := extractRuns(d.reader.Page(index+1), dim.Height)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", index+1, err)
	}

	p := &Page{
		Canvas: document.NewCanvas(d.fonts),
		doc:    d,
		index:  index,
		width:  dim.Width,
		height: dim.Height,
		runs:   runs,
	}
	d.pages[index] = p
	return p, nil
}

// Close releases the file and temporary rasters
func (d *Document) Close() error {
	d.raster.Cleanup()
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}

// Page is one PDF page
type Page struct {
	*document.Canvas

	doc           *Document
	index         int
	width, height float64
	runs          []document.GlyphRun
	colored       bool
}

var _ document.Page = (*Page)(nil)

// Number implements document.Page
func (p *Page) Number() int { return p.index }

// Size implements document.Page
func (p *Page) Size() (float64, float64) { return p.width, p.height }

// Rasterize implements document.Page. The returned scale is measured from
// the produced image since pdftoppm rounds to whole pixels. The first raster
// also gives the page's runs their ink color; the text layer carries none.
func (p *Page) Rasterize(scale float64) (*document.PageImage, error) {
	dpi := int(math.Round(72 * scale))
	img, err := p.doc.raster.RenderPage(p.doc.path, p.index+1, dpi)
	if err != nil {
		return nil, err
	}
	pi := &document.PageImage{
		Image: img,
		Scale: float64(img.Bounds().Dx()) / p.width,
	}
	if !p.colored {
		p.runs = document.RecolorRuns(pi, p.runs)
		p.colored = true
	}
	return pi, nil
}

// TextRunsIn implements document.Page
func (p *Page) TextRunsIn(clip geometry.Rect) []document.GlyphRun {
	return document.RunsIn(p.runs, clip)
}

// TextLines implements document.Page
func (p *Page) TextLines() []document.TextLine {
	return document.GroupLines(p.runs)
}
