package layout

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/logger"
)

// padGray is the letterbox fill used by YOLO exports
var padGray = color.RGBA{114, 114, 114, 255}

// Letterbox is a preprocessed model input and the mapping back to the
// source image
type Letterbox struct {
	Data  []float32 // CHW, values in [0,1]
	Shape []int64   // [1, 3, size, size]
	Scale float64   // model pixels per source pixel
	PadX  float64
	PadY  float64
}

// Unmap converts a box in model input space back to source pixels
func (l Letterbox) Unmap(r geometry.Rect) geometry.Rect {
	return geometry.NewRect(
		(r.X0-l.PadX)/l.Scale,
		(r.Y0-l.PadY)/l.Scale,
		(r.X1-l.PadX)/l.Scale,
		(r.Y1-l.PadY)/l.Scale,
	)
}

// Preprocessor scales page rasters into the square model input
type Preprocessor struct {
	targetSize int
}

// NewPreprocessor creates a preprocessor for a size x size input
func NewPreprocessor(targetSize int) *Preprocessor {
	return &Preprocessor{targetSize: targetSize}
}

// Preprocess resizes img preserving aspect ratio, centers it on a gray
// square and converts it to a CHW float tensor
func (p *Preprocessor) Preprocess(img image.Image) (*Letterbox, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image %dx%d", w, h)
	}

	size := p.targetSize
	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	padX := (size - nw) / 2
	padY := (size - nh) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: padGray}, image.Point{}, draw.Src)
	draw.BiLinear.Scale(canvas, image.Rect(padX, padY, padX+nw, padY+nh), img, bounds, draw.Src, nil)

	logger.Debug("letterboxed page raster",
		logger.Int("srcWidth", w),
		logger.Int("srcHeight", h),
		logger.Int("size", size),
		logger.Float64("scale", scale))

	return &Letterbox{
		Data:  toCHW(canvas),
		Shape: []int64{1, 3, int64(size), int64(size)},
		Scale: scale,
		PadX:  float64(padX),
		PadY:  float64(padY),
	}, nil
}

// toCHW converts an RGBA image to a planar float tensor scaled to [0,1]
func toCHW(img *image.RGBA) []float32 {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	plane := width * height
	data := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			idx := y*width + x
			data[idx] = float32(row[x*4]) / 255.0
			data[plane+idx] = float32(row[x*4+1]) / 255.0
			data[2*plane+idx] = float32(row[x*4+2]) / 255.0
		}
	}
	return data
}
