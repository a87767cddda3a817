package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"

	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/reconcile"
)

const (
	debugLineWidth = 1
	debugLabelSize = 7
)

// debugColor 调试模式下各区域类型的描边颜色
func debugColor(t layout.RegionType) document.Color {
	switch t {
	case layout.Title:
		return document.Red
	case layout.List:
		return document.Color{R: 0.8, G: 0.4, B: 0}
	case layout.Table, layout.Figure:
		return document.Green
	case layout.Formula, layout.Equation:
		return document.Color{R: 0.6, G: 0, B: 0.6}
	}
	return document.Blue
}

func debugLabel(c layout.Candidate) string {
	return fmt.Sprintf("%s %.2f", c.Type, c.Confidence)
}

// labelPoint puts the label baseline just above the box, or inside it when
// the box touches the top of the page
func labelPoint(r geometry.Rect) geometry.Point {
	y := r.Y0 - 2
	if y < debugLabelSize {
		y = r.Y0 + debugLabelSize
	}
	return geometry.Point{X: r.X0, Y: y}
}

// drawDebug outlines every block and protected region with its type and
// confidence
func drawDebug(page document.Page, rec reconcile.Result) error {
	regions := append(append([]layout.Candidate(nil), rec.Blocks...), rec.Protected...)
	for _, c := range regions {
		col := debugColor(c.Type)
		if err := page.DrawRect(c.BBox, col, debugLineWidth); err != nil {
			return fmt.Errorf("debug rect: %w", err)
		}
		if err := page.DrawLabel(labelPoint(c.BBox), debugLabel(c), debugLabelSize, col); err != nil {
			return fmt.Errorf("debug label: %w", err)
		}
	}
	return nil
}

// writeOverlay saves the page raster with the regions drawn in pixel space
func writeOverlay(path string, img *document.PageImage, tr geometry.Transform, rec reconcile.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	dc := gg.NewContextForImage(img.Image)
	dc.SetLineWidth(2)
	regions := append(append([]layout.Candidate(nil), rec.Blocks...), rec.Protected...)
	for _, c := range regions {
		col := debugColor(c.Type)
		r := tr.ToPixel(c.BBox)
		dc.SetRGB(col.R, col.G, col.B)
		dc.DrawRectangle(r.X0, r.Y0, r.Width(), r.Height())
		dc.Stroke()
		dc.DrawStringAnchored(debugLabel(c), r.X0+2, r.Y0+2, 0, 1)
	}
	return dc.SavePNG(path)
}
