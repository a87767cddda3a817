package geometry

// Transform maps between pixel space of a rasterized page and page space.
// It holds no state beyond the two sizes and is rebuilt for every page.
type Transform struct {
	PageWidth, PageHeight   float64
	ImageWidth, ImageHeight float64
}

// NewTransform creates the mapping for a page of the given size rendered to
// an image of the given pixel size
func NewTransform(pageWidth, pageHeight float64, imageWidth, imageHeight int) Transform {
	return Transform{
		PageWidth:   pageWidth,
		PageHeight:  pageHeight,
		ImageWidth:  float64(imageWidth),
		ImageHeight: float64(imageHeight),
	}
}

// NominalTransform creates the mapping for a raster at scale pixels per point,
// used when no image is available
func NominalTransform(pageWidth, pageHeight, scale float64) Transform {
	return Transform{
		PageWidth:   pageWidth,
		PageHeight:  pageHeight,
		ImageWidth:  pageWidth * scale,
		ImageHeight: pageHeight * scale,
	}
}

func (t Transform) sx() float64 {
	if t.ImageWidth == 0 {
		return 1
	}
	return t.PageWidth / t.ImageWidth
}

func (t Transform) sy() float64 {
	if t.ImageHeight == 0 {
		return 1
	}
	return t.PageHeight / t.ImageHeight
}

// ToPage converts a pixel rectangle to page space
func (t Transform) ToPage(r Rect) Rect {
	return r.Scale(t.sx(), t.sy())
}

// ToPixel converts a page rectangle to pixel space
func (t Transform) ToPixel(r Rect) Rect {
	return r.Scale(1/t.sx(), 1/t.sy())
}
