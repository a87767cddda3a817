package pdf

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageDim is the size of a page in points
type PageDim struct {
	Width, Height float64
}

// Info is basic information about a PDF file
type Info struct {
	Path      string
	PageCount int
	FileSize  int64
	Pages     []PageDim
}

// Inspect reads page geometry with pdfcpu
func Inspect(path string) (*Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot access %s: %w", path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	info := &Info{Path: path, PageCount: len(dims), FileSize: fi.Size()}
	for _, d := range dims {
		info.Pages = append(info.Pages, PageDim{Width: d.Width, Height: d.Height})
	}
	return info, nil
}

// Validate checks the file with pdfcpu in relaxed mode
func Validate(path string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("invalid PDF %s: %w", path, err)
	}
	return nil
}
