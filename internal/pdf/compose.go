package pdf

import (
	"fmt"
	"path/filepath"

	gopdf "github.com/VantageDataChat/GoPDF2"

	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/logger"
)

// Save writes a new PDF: every source page imported as a template with the
// page's recorded operations replayed on top in recording order
func (d *Document) Save(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	first := d.info.Pages[0]
	out := &gopdf.GoPdf{}
	out.Start(gopdf.Config{Unit: gopdf.UnitPT, PageSize: gopdf.Rect{W: first.Width, H: first.Height}})

	families := make(map[bool]string)
	if d.fontPaths.Latin != "" {
		if err := out.AddTTFFont(fontFamilyLatin, d.fontPaths.Latin); err != nil {
			logger.Warn("failed to embed latin font", logger.String("path", d.fontPaths.Latin), logger.Err(err))
		} else {
			families[false] = fontFamilyLatin
		}
	}
	if d.fontPaths.CJK != "" {
		if err := out.AddTTFFont(fontFamilyCJK, d.fontPaths.CJK); err != nil {
			logger.Warn("failed to embed CJK font", logger.String("path", d.fontPaths.CJK), logger.Err(err))
		} else {
			families[true] = fontFamilyCJK
		}
	}

	for i, dim := range d.info.Pages {
		out.AddPageWithOption(gopdf.PageOption{PageSize: &gopdf.Rect{W: dim.Width, H: dim.Height}})
		tpl := out.ImportPage(d.path, i+1, "/MediaBox")
		out.UseImportedTemplate(tpl, 0, 0, dim.Width, dim.Height)

		p, ok := d.pages[i]
		if !ok {
			continue
		}
		for _, op := range p.Ops() {
			if err := replay(out, op, families); err != nil {
				return fmt.Errorf("page %d: %s op: %w", i+1, op.Kind, err)
			}
		}
	}

	if err := out.WritePdf(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := Validate(path); err != nil {
		logger.Warn("written PDF did not validate", logger.String("path", path), logger.Err(err))
	}
	logger.Info("PDF written", logger.String("path", path), logger.Int("pages", d.info.PageCount))
	return nil
}

func replay(out *gopdf.GoPdf, op document.Op, families map[bool]string) error {
	r, g, b := op.Color.RGB8()

	switch op.Kind {
	case document.OpPaint:
		out.SetFillColor(r, g, b)
		out.RectFromUpperLeftWithStyle(op.Rect.X0, op.Rect.Y0, op.Rect.Width(), op.Rect.Height(), "F")
		return nil

	case document.OpStroke:
		out.SetStrokeColor(r, g, b)
		out.SetLineWidth(op.Width)
		out.RectFromUpperLeftWithStyle(op.Rect.X0, op.Rect.Y0, op.Rect.Width(), op.Rect.Height(), "D")
		return nil

	case document.OpText:
		if err := useFont(out, families, op.CJK, op.FontSize); err != nil {
			return err
		}
		out.SetTextColor(r, g, b)
		for i, line := range op.Lines {
			x := op.Rect.X0
			if op.Align == document.AlignCenter && i < len(op.LineWidths) {
				x += (op.Rect.Width() - op.LineWidths[i]) / 2
			}
			out.SetXY(x, op.Rect.Y0+float64(i)*op.LineHeight)
			if err := out.Cell(nil, line); err != nil {
				return err
			}
		}
		return nil

	case document.OpLabel:
		if err := useFont(out, families, false, op.FontSize); err != nil {
			return err
		}
		out.SetTextColor(r, g, b)
		out.SetXY(op.At.X, op.At.Y-op.FontSize)
		return out.Cell(nil, op.Text)
	}
	return fmt.Errorf("unknown op kind %d", op.Kind)
}

func useFont(out *gopdf.GoPdf, families map[bool]string, cjk bool, size float64) error {
	family, ok := families[cjk]
	if !ok {
		family, ok = families[!cjk]
	}
	if !ok {
		return fmt.Errorf("no TrueType font available for text")
	}
	return out.SetFont(family, "", size)
}
