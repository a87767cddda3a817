package layout

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/types"
)

// ModelDetector runs a DocLayout-YOLO ONNX export. The session owns bound
// input and output tensors, so Detect calls are serialized by mu; one
// detector may be shared by every pipeline of the process.
type ModelDetector struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	pre     *Preprocessor
	post    *PostProcessor
}

var envOnce sync.Once
var envErr error

// initRuntime initializes the onnxruntime environment once per process
func initRuntime(libPath string) error {
	envOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if !ort.IsInitialized() {
			envErr = ort.InitializeEnvironment()
		}
	})
	return envErr
}

// ShutdownRuntime releases the onnxruntime environment. Call once at exit,
// after every detector is closed.
func ShutdownRuntime() {
	if ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			logger.Warn("failed to destroy onnxruntime environment", logger.Err(err))
		}
	}
}

// NewModelDetector loads the model and binds its tensors
func NewModelDetector(cfg types.DetectorConfig) (*ModelDetector, error) {
	if cfg.ModelPath == "" {
		return nil, types.NewDetectionError("model path not specified", nil)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, types.NewDetectionError("model file not found", err)
	}
	if err := initRuntime(cfg.RuntimeLibrary); err != nil {
		return nil, types.NewDetectionError("failed to initialize onnxruntime", err)
	}

	size := int64(cfg.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, types.NewDetectionError("failed to allocate input tensor", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.MaxDetections), 6))
	if err != nil {
		input.Destroy()
		return nil, types.NewDetectionError("failed to allocate output tensor", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, types.NewDetectionError("failed to create onnx session", err)
	}

	logger.Info("layout model loaded",
		logger.String("path", cfg.ModelPath),
		logger.Int("inputSize", cfg.InputSize),
		logger.Int("classes", len(cfg.ClassLabels)))

	return &ModelDetector{
		session: session,
		input:   input,
		output:  output,
		pre:     NewPreprocessor(cfg.InputSize),
		post:    NewPostProcessor(cfg.ConfThreshold, cfg.NMSThreshold, cfg.ClassLabels),
	}, nil
}

// Detect implements Detector. Candidates are in pixel space of in.Image.
func (d *ModelDetector) Detect(ctx context.Context, in Input) ([]Candidate, error) {
	if in.Image == nil || in.Image.Image == nil {
		return nil, fmt.Errorf("model detection needs a page image")
	}

	lb, err := d.pre.Preprocess(in.Image.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess page image: %w", err)
	}

	raw, err := d.run(ctx, lb.Data)
	if err != nil {
		return nil, err
	}

	cands := d.post.Process(raw, lb, in.Image.Width(), in.Image.Height())
	logger.Debug("model layout complete", logger.Page(in.Page), logger.Int("candidates", len(cands)))
	return cands, nil
}

// run copies data into the bound input, runs the session and returns a copy
// of the output
func (d *ModelDetector) run(ctx context.Context, data []float32) ([]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.session == nil {
		return nil, fmt.Errorf("detector is closed")
	}

	start := time.Now()
	copy(d.input.GetData(), data)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx inference failed: %w", err)
	}
	out := append([]float32(nil), d.output.GetData()...)

	logger.Debug("onnx inference", logger.Duration("elapsed", time.Since(start)))
	return out, nil
}

// Close releases the session and tensors
func (d *ModelDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.input.Destroy()
	d.output.Destroy()
	d.session = nil
	return err
}
