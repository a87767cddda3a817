package document

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/textfit"
)

// Mark is a filled rectangle of non-text ink on a MemoryPage
type Mark struct {
	Rect  geometry.Rect // page space
	Color Color
}

// MemoryPage is an in-memory page backed by a fixed set of runs. Rasterize
// returns a white image with the Ink marks painted, unless RasterErr is set.
type MemoryPage struct {
	*Canvas

	number        int
	width, height float64
	runs          []GlyphRun
	rasters       int

	Ink       []Mark
	RasterErr error
}

// NewMemoryPage creates a page of the given size holding runs
func NewMemoryPage(number int, width, height float64, runs []GlyphRun, fonts textfit.FontSet) *MemoryPage {
	return &MemoryPage{
		Canvas: NewCanvas(fonts),
		number: number,
		width:  width,
		height: height,
		runs:   runs,
	}
}

// Number implements Page
func (p *MemoryPage) Number() int { return p.number }

// Size implements Page
func (p *MemoryPage) Size() (float64, float64) { return p.width, p.height }

// Rasterize implements Page
func (p *MemoryPage) Rasterize(scale float64) (*PageImage, error) {
	p.rasters++
	if p.RasterErr != nil {
		return nil, p.RasterErr
	}
	if scale <= 0 {
		return nil, fmt.Errorf("invalid raster scale %.2f", scale)
	}
	img := image.NewRGBA(image.Rect(0, 0, int(p.width*scale+0.5), int(p.height*scale+0.5)))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	for _, m := range p.Ink {
		px := m.Rect.Scale(scale, scale)
		r, g, b := m.Color.RGB8()
		area := image.Rect(int(px.X0), int(px.Y0), int(px.X1+0.5), int(px.Y1+0.5))
		draw.Draw(img, area, &image.Uniform{C: color.RGBA{R: r, G: g, B: b, A: 255}}, image.Point{}, draw.Src)
	}
	return &PageImage{Image: img, Scale: scale}, nil
}

// Rasterizations returns how many times Rasterize was called
func (p *MemoryPage) Rasterizations() int { return p.rasters }

// TextRunsIn implements Page
func (p *MemoryPage) TextRunsIn(clip geometry.Rect) []GlyphRun {
	return RunsIn(p.runs, clip)
}

// TextLines implements Page
func (p *MemoryPage) TextLines() []TextLine {
	return GroupLines(p.runs)
}

// MemoryDocument is a Document whose pages live in memory
type MemoryDocument struct {
	Pages []*MemoryPage

	// PageErrs makes Page(i) fail for the listed indexes
	PageErrs map[int]error
	SaveErr  error

	mu     sync.Mutex
	saved  []string
	closed bool
}

// NewMemoryDocument creates a document from pages
func NewMemoryDocument(pages ...*MemoryPage) *MemoryDocument {
	return &MemoryDocument{Pages: pages}
}

// PageCount implements Document
func (d *MemoryDocument) PageCount() int { return len(d.Pages) }

// Page implements Document
func (d *MemoryDocument) Page(index int) (Page, error) {
	if err := d.PageErrs[index]; err != nil {
		return nil, err
	}
	if index < 0 || index >= len(d.Pages) {
		return nil, fmt.Errorf("page %d out of range [0,%d)", index, len(d.Pages))
	}
	return d.Pages[index], nil
}

// Save implements Document. Only the path is recorded.
func (d *MemoryDocument) Save(path string) error {
	if d.SaveErr != nil {
		return d.SaveErr
	}
	d.mu.Lock()
	d.saved = append(d.saved, path)
	d.mu.Unlock()
	return nil
}

// Close implements Document
func (d *MemoryDocument) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// SavedPaths returns the paths passed to Save
func (d *MemoryDocument) SavedPaths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.saved...)
}

// Closed reports whether Close was called
func (d *MemoryDocument) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
