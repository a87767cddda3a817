// Package reconcile fuses detector candidates with the page's own text model:
// it protects figures, rescues prose the detector missed, removes duplicate
// boxes and retypes ambiguous blocks.
package reconcile

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"pdf-layout-translator/internal/document"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/textfit"
	"pdf-layout-translator/internal/types"
)

// Drop reasons
const (
	ReasonEmpty     = "empty after clipping"
	ReasonProtected = "inside protected region"
	ReasonNoProse   = "no prose under unclassified region"
	ReasonContainer = "container of smaller blocks"
	ReasonOverlap   = "overlaps a larger block"
)

// Info describes the page being reconciled
type Info struct {
	Number int // 1-based
	Width  float64
	Height float64
}

func (i Info) bounds() geometry.Rect {
	return geometry.NewRect(0, 0, i.Width, i.Height)
}

// TextSource gives the reconciler access to the page's text model
type TextSource interface {
	// TextIn returns the text inside rect in reading order
	TextIn(rect geometry.Rect) string
	// TextLines returns all text lines of the page
	TextLines() []document.TextLine
}

// Dropped is a candidate removed during reconciliation
type Dropped struct {
	Candidate layout.Candidate
	Reason    string
}

// Result of one page. All boxes are in page space.
type Result struct {
	// Blocks are the translatable regions sorted by Y0, then X0
	Blocks []layout.Candidate
	// Protected are the figure, table and formula regions
	Protected []layout.Candidate
	Dropped   []Dropped
}

// Reconciler applies the reconciliation passes
type Reconciler struct {
	cfg types.ReconcileConfig
}

// New creates a reconciler
func New(cfg types.ReconcileConfig) *Reconciler {
	return &Reconciler{cfg: cfg}
}

var listPattern = regexp.MustCompile(`^\s*(?:[•·▪◦‣∙●○■□]\s*|[\-–*]\s+|\(?\d{1,3}[.)]\s+|\(?[a-zA-Z][.)]\s+|[（(][一二三四五六七八九十]+[)）]\s*|[一二三四五六七八九十]+、\s*)\S`)

// Reconcile turns page-space candidates into the blocks to translate. The
// input slice is not modified.
func (r *Reconciler) Reconcile(page Info, candidates []layout.Candidate, src TextSource) Result {
	var res Result

	clipped := r.clip(page, candidates, &res)

	var translatable, unclassified []layout.Candidate
	for _, c := range clipped {
		switch {
		case c.Type.IsProtected():
			res.Protected = append(res.Protected, c)
		case c.Type.IsTranslatable():
			translatable = append(translatable, c)
		default:
			unclassified = append(unclassified, c)
		}
	}

	translatable = r.protect(page, translatable, res.Protected, &res)
	translatable = append(translatable, r.rescueUnclassified(unclassified, src, &res)...)
	translatable = append(translatable, r.rescueOrphans(page, clipped, res.Protected, src)...)
	translatable = r.dropContainers(translatable, &res)
	translatable = r.dropOverlaps(translatable, &res)
	translatable = r.retype(page, translatable, src)

	sort.SliceStable(translatable, func(i, j int) bool {
		a, b := translatable[i].BBox, translatable[j].BBox
		if a.Y0 != b.Y0 {
			return a.Y0 < b.Y0
		}
		return a.X0 < b.X0
	})
	res.Blocks = translatable

	logger.Debug("regions reconciled",
		logger.Page(page.Number),
		logger.Int("candidates", len(candidates)),
		logger.Int("blocks", len(res.Blocks)),
		logger.Int("protected", len(res.Protected)),
		logger.Int("dropped", len(res.Dropped)))
	return res
}

func (r *Reconciler) drop(res *Result, c layout.Candidate, reason string) {
	res.Dropped = append(res.Dropped, Dropped{Candidate: c, Reason: reason})
}

// clip intersects every box with the page and clamps confidences
func (r *Reconciler) clip(page Info, candidates []layout.Candidate, res *Result) []layout.Candidate {
	bounds := page.bounds()
	out := make([]layout.Candidate, 0, len(candidates))
	for _, c := range candidates {
		c.BBox = c.BBox.Intersection(bounds)
		c.Confidence = clamp01(c.Confidence)
		if c.BBox.IsEmpty() {
			r.drop(res, c, ReasonEmpty)
			continue
		}
		out = append(out, c)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// protect drops narrow Text and List blocks lying inside an inflated
// protected region. Titles are never protected.
func (r *Reconciler) protect(page Info, blocks, protected []layout.Candidate, res *Result) []layout.Candidate {
	if len(protected) == 0 {
		return blocks
	}
	zones := lo.Map(protected, func(p layout.Candidate, _ int) geometry.Rect {
		return p.BBox.Inflate(r.cfg.ProtectMargin)
	})

	return lo.Filter(blocks, func(c layout.Candidate, _ int) bool {
		if c.Type == layout.Title {
			return true
		}
		if c.BBox.Width() >= r.cfg.WideRatio*page.Width {
			return true
		}
		covered := lo.SomeBy(zones, func(z geometry.Rect) bool {
			return c.BBox.Coverage(z) > r.cfg.ProtectThreshold
		})
		if covered {
			r.drop(res, c, ReasonProtected)
			return false
		}
		return true
	})
}

// rescueUnclassified keeps Abandon and Unknown regions that hold genuine
// prose, retyped as Text
func (r *Reconciler) rescueUnclassified(cands []layout.Candidate, src TextSource, res *Result) []layout.Candidate {
	var out []layout.Candidate
	for _, c := range cands {
		text := strings.TrimSpace(src.TextIn(c.BBox))
		if !r.looksLikeProse(text) {
			r.drop(res, c, ReasonNoProse)
			continue
		}
		logger.Debug("rescued unclassified region",
			logger.String("type", string(c.Type)),
			logger.String("bbox", c.BBox.String()))
		c.Type = layout.Text
		out = append(out, c)
	}
	return out
}

func (r *Reconciler) looksLikeProse(text string) bool {
	if utf8.RuneCountInString(text) < r.cfg.RescueMinChars {
		return false
	}
	if textfit.CJKRatio(text) > 0 {
		return true
	}
	words := lo.CountBy(strings.Fields(text), func(w string) bool {
		return lo.SomeBy([]rune(w), unicode.IsLetter)
	})
	return words >= r.cfg.RescueMinWords
}

// rescueOrphans promotes text lines no candidate covers to synthetic Text
// blocks. Adjacent orphan lines merge into one paragraph.
func (r *Reconciler) rescueOrphans(page Info, known, protected []layout.Candidate, src TextSource) []layout.Candidate {
	bounds := page.bounds()

	var orphans []geometry.Rect
	for _, l := range src.TextLines() {
		box := l.BBox.Intersection(bounds)
		if box.IsEmpty() || !lo.SomeBy([]rune(l.Text), unicode.IsLetter) {
			continue
		}
		if lo.SomeBy(protected, func(p layout.Candidate) bool { return box.Coverage(p.BBox) >= 0.5 }) {
			continue
		}
		best := 0.0
		for _, c := range known {
			if cov := box.Coverage(c.BBox); cov > best {
				best = cov
			}
		}
		if best <= r.cfg.OrphanCoverage {
			orphans = append(orphans, box)
		}
	}
	if len(orphans) == 0 {
		return nil
	}

	sort.SliceStable(orphans, func(i, j int) bool { return orphans[i].Y0 < orphans[j].Y0 })

	var groups []geometry.Rect
	lastLine := make(map[int]geometry.Rect)
	for _, o := range orphans {
		merged := false
		for gi := len(groups) - 1; gi >= 0; gi-- {
			last := lastLine[gi]
			gap := o.Y0 - last.Y1
			overlap := last.Intersection(geometry.NewRect(o.X0, last.Y0, o.X1, last.Y1)).Width()
			if gap <= last.Height() && gap >= -last.Height()/2 && overlap > 0 {
				groups[gi] = groups[gi].Union(o)
				lastLine[gi] = o
				merged = true
				break
			}
		}
		if !merged {
			lastLine[len(groups)] = o
			groups = append(groups, o)
		}
	}

	logger.Debug("rescued orphan lines",
		logger.Page(page.Number),
		logger.Int("lines", len(orphans)),
		logger.Int("blocks", len(groups)))

	return lo.Map(groups, func(g geometry.Rect, _ int) layout.Candidate {
		return layout.Candidate{Type: layout.Text, BBox: g, Confidence: r.cfg.OrphanConfidence, Label: "orphan"}
	})
}

func byAreaDesc(cands []layout.Candidate) []layout.Candidate {
	out := append([]layout.Candidate(nil), cands...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].BBox.Area() > out[j].BBox.Area() })
	return out
}

// dropContainers removes shells: boxes holding at least two smaller boxes
// that each lie mostly inside and together fill most of the shell
func (r *Reconciler) dropContainers(cands []layout.Candidate, res *Result) []layout.Candidate {
	sorted := byAreaDesc(cands)
	removed := make([]bool, len(sorted))

	for i, c := range sorted {
		area := c.BBox.Area()
		var children int
		var filled float64
		for j := i + 1; j < len(sorted); j++ {
			if removed[j] {
				continue
			}
			child := sorted[j].BBox
			if child.Area() >= area || child.Coverage(c.BBox) < r.cfg.ContainerChildCoverage {
				continue
			}
			children++
			filled += child.Intersection(c.BBox).Area()
		}
		if children >= 2 && filled >= r.cfg.ContainerAreaCoverage*area {
			removed[i] = true
			r.drop(res, c, ReasonContainer)
		}
	}

	return lo.Filter(sorted, func(_ layout.Candidate, i int) bool { return !removed[i] })
}

// dropOverlaps keeps the larger of two boxes when the smaller one lies
// mostly inside it
func (r *Reconciler) dropOverlaps(cands []layout.Candidate, res *Result) []layout.Candidate {
	var kept []layout.Candidate
	for _, c := range byAreaDesc(cands) {
		inside := lo.SomeBy(kept, func(k layout.Candidate) bool {
			return c.BBox.Coverage(k.BBox) >= r.cfg.OverlapThreshold
		})
		if inside {
			r.drop(res, c, ReasonOverlap)
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// retype promotes narrow Text blocks in the top band to Title and Text
// blocks starting with a bullet or number to List
func (r *Reconciler) retype(page Info, cands []layout.Candidate, src TextSource) []layout.Candidate {
	return lo.Map(cands, func(c layout.Candidate, _ int) layout.Candidate {
		if c.Type != layout.Text {
			return c
		}
		if c.BBox.Y0 < r.cfg.TitleBand*page.Height && c.BBox.Width() < r.cfg.TitleMaxWidthRatio*page.Width {
			c.Type = layout.Title
			return c
		}
		if listPattern.MatchString(src.TextIn(c.BBox)) {
			c.Type = layout.List
		}
		return c
	})
}

// ContainmentViolations returns the pairs (i, j) of blocks where block i lies
// at least threshold inside block j. A reconciled page has none.
func ContainmentViolations(blocks []layout.Candidate, threshold float64) [][2]int {
	var out [][2]int
	for i := range blocks {
		for j := range blocks {
			if i != j && blocks[i].BBox.Coverage(blocks[j].BBox) >= threshold {
				out = append(out, [2]int{i, j})
			}
		}
	}
	return out
}
