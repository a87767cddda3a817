package document

import (
	"math"
	"sort"
	"strings"

	"pdf-layout-translator/internal/geometry"
)

// RunsIn returns the runs whose boxes intersect clip
func RunsIn(runs []GlyphRun, clip geometry.Rect) []GlyphRun {
	var out []GlyphRun
	for _, r := range runs {
		if r.BBox.Intersects(clip) {
			out = append(out, r)
		}
	}
	return out
}

// ColumnGapRatio is the horizontal gap, in font sizes, that splits one row
// into separate lines
const ColumnGapRatio = 1.5

// GroupLines clusters runs into lines. Runs whose vertical extents overlap by
// at least half the smaller height share a row; a row is split wherever
// neighbouring runs are more than ColumnGapRatio font sizes apart. Lines are
// ordered top to bottom, then left to right, and runs left to right.
func GroupLines(runs []GlyphRun) []TextLine {
	if len(runs) == 0 {
		return nil
	}

	sorted := make([]GlyphRun, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := sorted[i].BBox.Center().Y, sorted[j].BBox.Center().Y
		if math.Abs(ci-cj) > 1e-6 {
			return ci < cj
		}
		return sorted[i].BBox.X0 < sorted[j].BBox.X0
	})

	var lines []TextLine
	for _, run := range sorted {
		if n := len(lines); n > 0 && sameRow(lines[n-1].BBox, run.BBox) {
			lines[n-1].Runs = append(lines[n-1].Runs, run)
			lines[n-1].BBox = lines[n-1].BBox.Union(run.BBox)
			continue
		}
		lines = append(lines, TextLine{BBox: run.BBox, Runs: []GlyphRun{run}})
	}

	var out []TextLine
	for _, row := range lines {
		sort.SliceStable(row.Runs, func(a, b int) bool {
			return row.Runs[a].BBox.X0 < row.Runs[b].BBox.X0
		})
		for _, seg := range splitRow(row.Runs) {
			line := TextLine{BBox: seg[0].BBox, Runs: seg}
			for _, r := range seg[1:] {
				line.BBox = line.BBox.Union(r.BBox)
			}
			line.Text = joinRuns(seg)
			out = append(out, line)
		}
	}
	return out
}

// splitRow cuts x-sorted runs at column gutters
func splitRow(runs []GlyphRun) [][]GlyphRun {
	var (
		segs  [][]GlyphRun
		start int
		right = runs[0].BBox.X1
	)
	for i := 1; i < len(runs); i++ {
		size := math.Max(math.Max(runs[i-1].Size, runs[i].Size), 1)
		if runs[i].BBox.X0-right > ColumnGapRatio*size {
			segs = append(segs, runs[start:i])
			start = i
		}
		right = math.Max(right, runs[i].BBox.X1)
	}
	return append(segs, runs[start:])
}

func sameRow(line, run geometry.Rect) bool {
	overlap := math.Min(line.Y1, run.Y1) - math.Max(line.Y0, run.Y0)
	smaller := math.Min(line.Height(), run.Height())
	if smaller <= 0 {
		return false
	}
	return overlap >= 0.5*smaller
}

// joinRuns concatenates runs, inserting a space where the horizontal gap is
// wider than a quarter em
func joinRuns(runs []GlyphRun) string {
	var b strings.Builder
	for i, r := range runs {
		if i > 0 {
			prev := runs[i-1]
			gap := r.BBox.X0 - prev.BBox.X1
			if gap > 0.25*math.Max(prev.Size, 1) &&
				!strings.HasSuffix(prev.Text, " ") && !strings.HasPrefix(r.Text, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(r.Text)
	}
	return strings.TrimSpace(b.String())
}
