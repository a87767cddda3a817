// Package pdf is the PDF backend of the document model: it reads text runs
// with ledongthuc/pdf, page geometry with pdfcpu, rasterizes with pdftoppm and
// writes the edited document with GoPDF2.
package pdf

import (
	"fmt"
	"math"
	"strings"

	ledpdf "github.com/ledongthuc/pdf"

	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/geometry"
)

const (
	// glyph box above and below the baseline as a fraction of the font size
	ascentRatio  = 0.8
	descentRatio = 0.2
)

// extractRuns reads the glyphs of a page and merges them into runs.
// ledongthuc reports baselines in bottom-left space; runs are returned in
// top-left page space.
func extractRuns(page ledpdf.Page, pageHeight float64) (runs []document.GlyphRun, err error) {
	if page.V.IsNull() || page.V.Key("Contents").Kind() == ledpdf.Null {
		return nil, nil
	}

	// 解析损坏的内容流时 ledongthuc 会 panic
	defer func() {
		if r := recover(); r != nil {
			runs, err = nil, fmt.Errorf("failed to parse page content: %v", r)
		}
	}()

	var (
		cur   *document.GlyphRun
		curY  float64
		texts = page.Content().Text
	)
	flush := func() {
		if cur != nil && strings.TrimSpace(cur.Text) != "" && !isPostScriptCode(cur.Text) && !hasExcessiveNonPrintable(cur.Text) {
			cur.Text = strings.TrimSpace(cur.Text)
			runs = append(runs, *cur)
		}
		cur = nil
	}

	for _, t := range texts {
		if t.S == "" || t.FontSize <= 0 {
			continue
		}

		size := t.FontSize
		baseline := pageHeight - t.Y
		box := geometry.NewRect(t.X, baseline-ascentRatio*size, t.X+math.Max(t.W, 0), baseline+descentRatio*size)

		if cur != nil && cur.Font == t.Font && math.Abs(cur.Size-size) < 0.01 && math.Abs(curY-t.Y) < 0.5 {
			gap := t.X - cur.BBox.X1
			if gap >= -0.5*size && gap <= size {
				if gap > 0.2*size && !strings.HasSuffix(cur.Text, " ") && t.S != " " {
					cur.Text += " "
				}
				cur.Text += t.S
				cur.BBox = cur.BBox.Union(box)
				continue
			}
		}

		flush()
		cur = &document.GlyphRun{
			BBox:  box,
			Text:  t.S,
			Font:  t.Font,
			Size:  size,
			Color: document.Black, // 光栅化时按墨迹重新取色
			Bold:  isBoldFont(t.Font),
		}
		curY = t.Y
	}
	flush()
	return runs, nil
}

// isBoldFont detects bold faces from the font name
func isBoldFont(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "bold") || strings.Contains(lower, "black") || strings.Contains(lower, "heavy")
}

// isPostScriptCode checks if text looks like PostScript/PDF operator code
// leaking out of a broken content stream
func isPostScriptCode(text string) bool {
	if len(text) == 0 {
		return false
	}

	textLower := strings.ToLower(text)

	// "/name def" is the most reliable indicator
	if (strings.Contains(text, " def ") || strings.HasSuffix(text, " def")) && strings.Contains(text, "/") {
		return true
	}
	if strings.Contains(textLower, "null def") {
		return true
	}
	if strings.Contains(text, "@stx") || strings.Contains(text, "@etx") {
		return true
	}
	if strings.Contains(textLower, "/burl") || strings.Contains(textLower, "burl@") {
		return true
	}

	for _, op := range []string{
		"currentpoint", "gsave", "grestore", "newpath", "closepath",
		"setrgbcolor", "setgray", "setlinewidth", "showpage",
	} {
		if strings.Contains(textLower, op) {
			return true
		}
	}

	// many "/Name" tokens, but URLs have slashes too
	if !strings.Contains(text, "://") && !strings.Contains(textLower, "http") {
		names := 0
		for _, word := range strings.Fields(text) {
			if len(word) > 1 && word[0] == '/' && isPostScriptName(word[1:]) {
				names++
			}
		}
		if names >= 3 {
			return true
		}
	}

	return false
}

func isPostScriptName(s string) bool {
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '@') {
			return false
		}
	}
	return true
}

// hasExcessiveNonPrintable reports whether more than 10% of the runes are
// control characters
func hasExcessiveNonPrintable(text string) bool {
	var total, bad int
	for _, r := range text {
		total++
		if (r < 32 && r != '\n' && r != '\r' && r != '\t') || (r >= 0x7F && r <= 0x9F) {
			bad++
		}
	}
	if total == 0 {
		return false
	}
	return float64(bad)/float64(total) > 0.1
}
