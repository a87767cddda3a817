package layout

import (
	"context"
	"errors"

	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/types"
)

// FallbackDetector uses Primary when it can and Fallback otherwise. Detection
// never aborts a page: a failing primary is logged as a detection error and
// the fallback result is returned.
type FallbackDetector struct {
	Primary  Detector
	Fallback Detector
}

// NeedsImage reports whether either detector uses the raster
func (d *FallbackDetector) NeedsImage() bool {
	return d.Primary != nil || NeedsImage(d.Fallback)
}

// Detect implements Detector
func (d *FallbackDetector) Detect(ctx context.Context, in Input) ([]Candidate, error) {
	if d.Primary == nil || in.Image == nil {
		return d.Fallback.Detect(ctx, in)
	}

	cands, err := d.Primary.Detect(ctx, in)
	if err == nil {
		return cands, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	detErr := types.NewDetectionError("layout model failed, using heuristic layout", err)
	logger.Warn(detErr.Message, logger.Page(in.Page), logger.Err(err))
	return d.Fallback.Detect(ctx, in)
}
