package layout

import (
	"math"
	"sort"

	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/logger"
)

// Detection is a raw detection in model input space
type Detection struct {
	Box        geometry.Rect
	ClassID    int
	Confidence float64
}

// PostProcessor turns raw YOLO output into candidates
type PostProcessor struct {
	confThreshold float64
	nmsThreshold  float64
	classLabels   []string
}

// NewPostProcessor creates a postprocessor for the given label order
func NewPostProcessor(confThreshold, nmsThreshold float64, classLabels []string) *PostProcessor {
	return &PostProcessor{
		confThreshold: confThreshold,
		nmsThreshold:  nmsThreshold,
		classLabels:   classLabels,
	}
}

// Process parses, filters and suppresses the raw output, then maps boxes back
// to source pixels clipped to the source image
func (p *PostProcessor) Process(output []float32, lb *Letterbox, imgWidth, imgHeight int) []Candidate {
	detections := p.parseDetections(output)
	filtered := p.filterByConfidence(detections)
	kept := p.applyNMSPerClass(filtered)

	logger.Debug("postprocessed detections",
		logger.Int("raw", len(detections)),
		logger.Int("confident", len(filtered)),
		logger.Int("kept", len(kept)))

	cands := make([]Candidate, 0, len(kept))
	for _, det := range kept {
		box := det.Box
		if lb != nil {
			box = lb.Unmap(box)
		}
		box = box.Clip(float64(imgWidth), float64(imgHeight))
		if box.IsEmpty() {
			continue
		}
		label := p.label(det.ClassID)
		cands = append(cands, Candidate{
			Type:       RegionTypeForLabel(label),
			BBox:       box,
			Confidence: clamp01(det.Confidence),
			Label:      label,
		})
	}
	return cands
}

func (p *PostProcessor) label(classID int) string {
	if classID >= 0 && classID < len(p.classLabels) {
		return p.classLabels[classID]
	}
	return "unknown"
}

// parseDetections reads rows of [x1, y1, x2, y2, score, class]. All-zero
// padding rows are skipped.
func (p *PostProcessor) parseDetections(output []float32) []Detection {
	var detections []Detection

	for i := 0; i+6 <= len(output); i += 6 {
		row := output[i : i+6]
		if row[4] == 0 && row[2] == 0 && row[3] == 0 {
			continue
		}
		detections = append(detections, Detection{
			Box:        geometry.NewRect(float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])),
			Confidence: float64(row[4]),
			ClassID:    int(math.Round(float64(row[5]))),
		})
	}
	return detections
}

// filterByConfidence filters detections by confidence threshold
func (p *PostProcessor) filterByConfidence(detections []Detection) []Detection {
	var filtered []Detection
	for _, det := range detections {
		if det.Confidence >= p.confThreshold {
			filtered = append(filtered, det)
		}
	}
	return filtered
}

// applyNMSPerClass applies Non-Maximum Suppression per class. Classes are
// visited in ascending id so the output order is deterministic.
func (p *PostProcessor) applyNMSPerClass(detections []Detection) []Detection {
	byClass := make(map[int][]Detection)
	for _, det := range detections {
		byClass[det.ClassID] = append(byClass[det.ClassID], det)
	}

	classes := make([]int, 0, len(byClass))
	for id := range byClass {
		classes = append(classes, id)
	}
	sort.Ints(classes)

	var results []Detection
	for _, id := range classes {
		results = append(results, p.applyNMS(byClass[id])...)
	}
	return results
}

// applyNMS keeps the most confident box and drops those overlapping it
func (p *PostProcessor) applyNMS(detections []Detection) []Detection {
	if len(detections) == 0 {
		return nil
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	var keep []Detection
	for len(detections) > 0 {
		best := detections[0]
		keep = append(keep, best)

		var remaining []Detection
		for _, det := range detections[1:] {
			if best.Box.IoU(det.Box) < p.nmsThreshold {
				remaining = append(remaining, det)
			}
		}
		detections = remaining
	}
	return keep
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
