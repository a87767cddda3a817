package layout

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/logger"
)

// HeuristicDetector groups text lines into paragraph blocks by vertical gap,
// horizontal overlap and font size. With Figures set and a raster available
// it also reports drawings found in the non-text ink as Figure regions.
type HeuristicDetector struct {
	// Scale of the nominal raster the candidates are expressed in when the
	// input has no image
	Scale float64
	// MaxGapRatio is the largest vertical gap between lines of one block as a
	// fraction of the line height
	MaxGapRatio float64
	// Figures enables drawing detection on the raster
	Figures bool
	// MinFigureSize is the smallest drawing side, in points
	MinFigureSize float64
}

// NewHeuristicDetector creates a detector reporting at the given raster scale
func NewHeuristicDetector(scale float64) *HeuristicDetector {
	return &HeuristicDetector{Scale: scale, MaxGapRatio: 0.8, Figures: true, MinFigureSize: 36}
}

// NeedsImage reports whether Detect looks at the raster
func (d *HeuristicDetector) NeedsImage() bool {
	return d.Figures
}

type lineBlock struct {
	bbox  geometry.Rect
	last  geometry.Rect
	size  float64
	bold  bool
	lines []string
}

// Detect implements Detector
func (d *HeuristicDetector) Detect(ctx context.Context, in Input) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lines := make([]document.TextLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		if strings.TrimSpace(l.Text) != "" && !l.BBox.IsEmpty() {
			lines = append(lines, l)
		}
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].BBox.Y0 < lines[j].BBox.Y0 })

	var blocks []*lineBlock
	for _, l := range lines {
		size, bold := dominantRun(l)
		if b := d.findBlock(blocks, l.BBox, size); b != nil {
			b.bbox = b.bbox.Union(l.BBox)
			b.last = l.BBox
			b.lines = append(b.lines, l.Text)
			b.bold = b.bold && bold
			continue
		}
		blocks = append(blocks, &lineBlock{bbox: l.BBox, last: l.BBox, size: size, bold: bold, lines: []string{l.Text}})
	}

	tr := in.Transform(d.Scale)
	cands := make([]Candidate, 0, len(blocks))
	for _, b := range blocks {
		text := strings.Join(b.lines, " ")
		cands = append(cands, Candidate{
			Type:       classifyBlock(text, b.size, b.bold, len(b.lines)),
			BBox:       tr.ToPixel(b.bbox),
			Confidence: 1.0,
			Label:      "heuristic",
		})
	}

	var figures int
	if d.Figures && in.Image != nil {
		for _, r := range InkRegions(in.Image, lines, tr, d.MinFigureSize) {
			cands = append(cands, Candidate{Type: Figure, BBox: r, Confidence: 0.6, Label: "ink"})
			figures++
		}
	}

	logger.Debug("heuristic layout complete",
		logger.Page(in.Page),
		logger.Int("lines", len(lines)),
		logger.Int("blocks", len(cands)-figures),
		logger.Int("figures", figures))
	return cands, nil
}

// findBlock returns the open block the line continues, if any
func (d *HeuristicDetector) findBlock(blocks []*lineBlock, line geometry.Rect, size float64) *lineBlock {
	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		gap := line.Y0 - b.last.Y1
		height := math.Max(b.last.Height(), line.Height())
		if gap < -0.5*height || gap > d.MaxGapRatio*height {
			continue
		}
		if math.Abs(b.size-size) > 1.5 {
			continue
		}
		overlap := math.Min(b.bbox.X1, line.X1) - math.Max(b.bbox.X0, line.X0)
		if overlap < 0.5*math.Min(b.bbox.Width(), line.Width()) {
			continue
		}
		return b
	}
	return nil
}

// dominantRun returns the size and boldness of the longest run of a line
func dominantRun(l document.TextLine) (float64, bool) {
	var (
		best    int
		size    = l.BBox.Height()
		bold    bool
		hasRuns bool
	)
	for _, r := range l.Runs {
		if n := len([]rune(r.Text)); !hasRuns || n > best {
			best, size, bold, hasRuns = n, r.Size, r.Bold, true
		}
	}
	return size, bold
}

// classifyBlock guesses the type of a block from its text and typography
func classifyBlock(text string, fontSize float64, isBold bool, lineCount int) RegionType {
	text = strings.TrimSpace(text)
	if text == "" {
		return Text
	}
	if isMathFormula(text) {
		return Formula
	}
	if lineCount <= 2 {
		isShort := len([]rune(text)) < 100
		if isNumberedHeading(text) && isShort {
			return Title
		}
		if isBold && isShort && (fontSize > 12 || isAllUpperCase(text)) {
			return Title
		}
	}
	if isListItem(text) {
		return List
	}
	return Text
}

// isMathFormula checks if text looks like a display formula
func isMathFormula(text string) bool {
	var symbols, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if strings.ContainsRune("+-*/=<>^_~()[]{}|", r) ||
			strings.ContainsRune("∫∑∏√∂∇±×÷≤≥≠≈∞∈∉⊂⊃∪∩∧∨¬∀∃αβγδεζηθικλμνξπρστυφχψω", r) {
			symbols++
		}
	}
	if total == 0 {
		return false
	}
	if float64(symbols)/float64(total) > 0.3 {
		return true
	}

	// "f(x) = a + b" with few words
	if strings.Contains(text, "=") && strings.ContainsAny(text, "(+-") &&
		len(strings.Fields(text)) <= 5 && len(text) < 100 {
		return true
	}
	return strings.ContainsAny(text, "∫∑∏√∂∇") && len(strings.Fields(text)) <= 8
}

// isNumberedHeading checks if text looks like a section heading
func isNumberedHeading(text string) bool {
	textLower := strings.ToLower(text)
	for _, p := range []string{
		"chapter", "section", "appendix", "abstract", "introduction",
		"conclusion", "references", "bibliography", "acknowledgment",
	} {
		if strings.HasPrefix(textLower, p) {
			return true
		}
	}

	// "1.", "1.1", "A." numbering followed by a space
	i := 0
	for i < len(text) && i < 15 {
		ch := text[i]
		if (ch >= '0' && ch <= '9') || ch == '.' || (ch >= 'A' && ch <= 'Z' && i == 0) {
			i++
			continue
		}
		break
	}
	if i == 0 || i >= len(text) {
		return false
	}
	number := text[:i]
	next := text[i]
	if strings.Contains(number, ".") && (next == ' ' || next == '\t') {
		return len(strings.TrimSpace(text[i:])) < 80
	}
	return false
}

// isAllUpperCase checks if every letter is upper case
func isAllUpperCase(text string) bool {
	hasLetter := false
	for _, r := range text {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// isListItem checks if text starts with a bullet or an enumeration marker
func isListItem(text string) bool {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) < 2 {
		return false
	}

	switch runes[0] {
	case '•', '◦', '▪', '▫', '●', '○', '■', '□', '–', '—', '*', '-':
		return true
	}

	if len(runes) >= 3 {
		if runes[0] == '(' && (runes[2] == ')' || (len(runes) > 3 && runes[3] == ')')) {
			return true
		}
		if (unicode.IsDigit(runes[0]) || (runes[0] >= 'a' && runes[0] <= 'z')) && runes[1] == ')' {
			return true
		}
	}
	return false
}
