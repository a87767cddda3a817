package pdf

import (
	"fmt"
	"image"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"pdf-layout-translator/internal/logger"
)

// Rasterizer renders PDF pages to images with pdftoppm
type Rasterizer struct {
	mu         sync.Mutex
	tempDir    string
	usePoppler bool
}

// NewRasterizer creates a rasterizer, probing for pdftoppm once
func NewRasterizer() *Rasterizer {
	return &Rasterizer{usePoppler: popplerAvailable()}
}

// popplerAvailable checks if pdftoppm is available
func popplerAvailable() bool {
	cmd := exec.Command("pdftoppm", "-v")
	prepareCommand(cmd)
	return cmd.Run() == nil
}

// Available reports whether pages can be rasterized
func (r *Rasterizer) Available() bool {
	return r.usePoppler
}

// RenderPage renders page pageNum (1-based) of pdfPath at dpi
func (r *Rasterizer) RenderPage(pdfPath string, pageNum int, dpi int) (image.Image, error) {
	if !r.usePoppler {
		return nil, fmt.Errorf("pdftoppm not found, please install poppler-utils " +
			"(Ubuntu/Debian: apt-get install poppler-utils, macOS: brew install poppler)")
	}

	dir, err := r.workDir()
	if err != nil {
		return nil, err
	}

	logger.Debug("rasterizing page",
		logger.String("pdf", filepath.Base(pdfPath)),
		logger.Int("page", pageNum),
		logger.Int("dpi", dpi))

	outputPrefix := filepath.Join(dir, fmt.Sprintf("page_%d_%d", pageNum, dpi))
	args := []string{
		"-f", fmt.Sprintf("%d", pageNum),
		"-l", fmt.Sprintf("%d", pageNum),
		"-png",
		"-r", fmt.Sprintf("%d", dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	}

	cmd := exec.Command("pdftoppm", args...)
	prepareCommand(cmd)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w, output: %s", err, string(output))
	}

	imgPath := outputPrefix + ".png"
	defer os.Remove(imgPath)

	img, err := loadImage(imgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	return img, nil
}

func (r *Rasterizer) workDir() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tempDir == "" {
		dir, err := os.MkdirTemp("", "pdf2img_*")
		if err != nil {
			return "", fmt.Errorf("failed to create temp dir: %w", err)
		}
		r.tempDir = dir
	}
	return r.tempDir, nil
}

// loadImage loads an image from file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Cleanup removes temporary files
func (r *Rasterizer) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tempDir != "" {
		os.RemoveAll(r.tempDir)
		r.tempDir = ""
	}
}
