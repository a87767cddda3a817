// Package config provides configuration management for the layout translator.
// Configuration is read from a JSON file over built-in defaults, then
// environment variables (optionally seeded from a .env file) override it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "layout-translator-config.json"

	EnvOpenAIAPIKey   = "OPENAI_API_KEY"
	EnvOpenAIBaseURL  = "OPENAI_BASE_URL"
	EnvOllamaBaseURL  = "OLLAMA_BASE_URL"
	EnvGeminiAPIKey   = "GEMINI_API_KEY"
	EnvProvider       = "TRANSLATE_PROVIDER"
	EnvModel          = "TRANSLATE_MODEL"
	EnvTargetLang     = "TARGET_LANG"
	EnvModelPath      = "DOCLAYOUT_MODEL_PATH"
	EnvRuntimeLibrary = "ONNXRUNTIME_LIB"
	EnvConfThreshold  = "DOCLAYOUT_CONF_THRES"
	EnvNMSThreshold   = "DOCLAYOUT_IOU_THRES"
	EnvInputSize      = "DOCLAYOUT_IMG_SIZE"
	EnvCJKFontPath    = "CJK_FONT_PATH"
	EnvLatinFontPath  = "LATIN_FONT_PATH"

	// DefaultProvider talks to any OpenAI compatible endpoint through eino
	DefaultProvider = "eino"
	// DefaultBaseURL is Ollama's OpenAI compatible endpoint
	DefaultBaseURL = "http://localhost:11434/v1"
	// DefaultModel is the default chat model served by Ollama
	DefaultModel       = "qwen2.5:7b"
	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultTargetLang  = "zh-TW"
	DefaultConcurrency = 2
)

// DocLayoutClassLabels is the class order of the DocLayout-YOLO DocStructBench export
var DocLayoutClassLabels = []string{
	"title", "plain text", "abandon", "figure", "figure_caption",
	"table", "table_caption", "table_footnote", "isolate_formula", "formula_caption",
}

// PubLayNetClassLabels is the class order of PubLayNet trained detectors
var PubLayNetClassLabels = []string{"text", "title", "list", "table", "figure"}

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses the default path in user's home directory.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "layout-translator", DefaultConfigFileName)
	}

	logger.Debug("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
	}, nil
}

// DefaultConfig returns a Config with default values for every component
func DefaultConfig() *types.Config {
	return &types.Config{
		Provider:      DefaultProvider,
		OpenAIBaseURL: DefaultBaseURL,
		OpenAIModel:   DefaultModel,
		GeminiModel:   DefaultGeminiModel,
		Temperature:   0.1,
		TargetLang:    DefaultTargetLang,
		Concurrency:   DefaultConcurrency,
		LogLevel:      "info",
		Detector:      DefaultDetector(),
		Reconcile:     DefaultReconcile(),
		Extract:       DefaultExtract(),
		Translate:     DefaultTranslate(),
		Render:        DefaultRender(),
	}
}

// DefaultDetector returns the layout detector defaults
func DefaultDetector() types.DetectorConfig {
	return types.DetectorConfig{
		InputSize:     1024,
		InputName:     "images",
		OutputName:    "output0",
		MaxDetections: 300,
		ConfThreshold: 0.25,
		NMSThreshold:  0.5,
		RasterScale:   2.0,
		ClassLabels:   append([]string(nil), DocLayoutClassLabels...),
		MinFigureSize: 36,
	}
}

// DefaultReconcile returns the region reconciliation thresholds
func DefaultReconcile() types.ReconcileConfig {
	return types.ReconcileConfig{
		ProtectMargin:          10,
		ProtectThreshold:       0.8,
		WideRatio:              0.6,
		RescueMinChars:         10,
		RescueMinWords:         3,
		OrphanCoverage:         0.4,
		OrphanConfidence:       0.5,
		ContainerChildCoverage: 0.7,
		ContainerAreaCoverage:  0.6,
		OverlapThreshold:       0.8,
		TitleBand:              0.15,
		TitleMaxWidthRatio:     0.7,
	}
}

// DefaultExtract returns the text extraction defaults
func DefaultExtract() types.ExtractConfig {
	return types.ExtractConfig{
		MinBlockChars: 2,
		ContextChars:  1200,
	}
}

// DefaultTranslate returns the translation orchestration defaults
func DefaultTranslate() types.TranslateConfig {
	return types.TranslateConfig{
		ChunkThreshold:     1200,
		ChunkSize:          900,
		ContextTail:        200,
		MaxAttempts:        3,
		CallTimeoutSeconds: 300,
		RetryDelayMillis:   2000,
	}
}

// DefaultRender returns the erase and render defaults
func DefaultRender() types.RenderConfig {
	return types.RenderConfig{
		SearchMargin: 2,
		MinFontSize:  4,
		ScaleFloor:   0.1,
		ScaleStep:    0.05,
		CenterRatio:  0.35,
		LineSpacing:  1.2,
	}
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped; existing variables are not overwritten.
func LoadDotEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		logger.Debug("no .env file found")
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to load .env file", err)
	}
	logger.Debug("loaded .env files", logger.String("files", strings.Join(existing, ",")))
	return nil
}

// Load loads configuration from the config file.
// If the file doesn't exist, it uses default values. Environment variables
// take precedence over file values. The result is validated.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	cfg := DefaultConfig()
	data, err := os.ReadFile(m.configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			logger.Error("invalid config file format", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "invalid config file format", err)
		}
		logger.Info("configuration loaded", logger.String("path", m.configPath))
	case os.IsNotExist(err):
		logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
	default:
		logger.Error("failed to read config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to read config file", err)
	}

	applyDefaults(cfg)
	if err := applyEnv(cfg); err != nil {
		return err
	}
	if err := Validate(cfg); err != nil {
		return err
	}

	m.config = cfg
	logger.Info("configuration ready",
		logger.String("provider", cfg.Provider),
		logger.String("model", cfg.OpenAIModel),
		logger.String("baseURL", cfg.OpenAIBaseURL),
		logger.Bool("modelDetector", cfg.Detector.ModelPath != ""))
	return nil
}

// applyDefaults fills zero values a partial config file may have left behind
func applyDefaults(cfg *types.Config) {
	def := DefaultConfig()
	if cfg.Provider == "" {
		cfg.Provider = def.Provider
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = def.OpenAIModel
	}
	if cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = def.OpenAIBaseURL
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = def.GeminiModel
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = def.TargetLang
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if len(cfg.Detector.ClassLabels) == 0 {
		cfg.Detector.ClassLabels = def.Detector.ClassLabels
	}
	if cfg.Detector.InputSize == 0 {
		cfg.Detector.InputSize = def.Detector.InputSize
	}
	if cfg.Detector.InputName == "" {
		cfg.Detector.InputName = def.Detector.InputName
	}
	if cfg.Detector.OutputName == "" {
		cfg.Detector.OutputName = def.Detector.OutputName
	}
	if cfg.Detector.MaxDetections == 0 {
		cfg.Detector.MaxDetections = def.Detector.MaxDetections
	}
	if cfg.Detector.RasterScale == 0 {
		cfg.Detector.RasterScale = def.Detector.RasterScale
	}
	if cfg.Detector.MinFigureSize == 0 {
		cfg.Detector.MinFigureSize = def.Detector.MinFigureSize
	}
	if cfg.Translate.MaxAttempts == 0 {
		cfg.Translate.MaxAttempts = def.Translate.MaxAttempts
	}
	if cfg.Translate.CallTimeoutSeconds == 0 {
		cfg.Translate.CallTimeoutSeconds = def.Translate.CallTimeoutSeconds
	}
	if cfg.Translate.ChunkSize == 0 {
		cfg.Translate.ChunkSize = def.Translate.ChunkSize
	}
	if cfg.Translate.ChunkThreshold == 0 {
		cfg.Translate.ChunkThreshold = def.Translate.ChunkThreshold
	}
	if cfg.Render.MinFontSize == 0 {
		cfg.Render.MinFontSize = def.Render.MinFontSize
	}
	if cfg.Render.ScaleFloor == 0 {
		cfg.Render.ScaleFloor = def.Render.ScaleFloor
	}
	if cfg.Render.ScaleStep == 0 {
		cfg.Render.ScaleStep = def.Render.ScaleStep
	}
	if cfg.Render.LineSpacing == 0 {
		cfg.Render.LineSpacing = def.Render.LineSpacing
	}
}

func applyEnv(cfg *types.Config) error {
	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv(EnvOpenAIAPIKey); v != "" && cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv(EnvOllamaBaseURL); v != "" {
		cfg.OpenAIBaseURL = strings.TrimRight(v, "/") + "/v1"
	}
	if v := os.Getenv(EnvOpenAIBaseURL); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := os.Getenv(EnvGeminiAPIKey); v != "" && cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		if cfg.Provider == "gemini" {
			cfg.GeminiModel = v
		} else {
			cfg.OpenAIModel = v
		}
	}
	if v := os.Getenv(EnvTargetLang); v != "" {
		cfg.TargetLang = v
	}
	if v := os.Getenv(EnvModelPath); v != "" {
		cfg.Detector.ModelPath = v
	}
	if v := os.Getenv(EnvRuntimeLibrary); v != "" {
		cfg.Detector.RuntimeLibrary = v
	}
	if v := os.Getenv(EnvCJKFontPath); v != "" {
		cfg.Render.CJKFontPath = v
	}
	if v := os.Getenv(EnvLatinFontPath); v != "" {
		cfg.Render.LatinFontPath = v
	}
	if err := envFloat(EnvConfThreshold, &cfg.Detector.ConfThreshold); err != nil {
		return err
	}
	if err := envFloat(EnvNMSThreshold, &cfg.Detector.NMSThreshold); err != nil {
		return err
	}
	v := os.Getenv(EnvInputSize)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrConfig, "invalid integer in environment", EnvInputSize+"="+v, err)
	}
	cfg.Detector.InputSize = n
	return nil
}

func envFloat(name string, dst *float64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrConfig, "invalid number in environment", name+"="+v, err)
	}
	*dst = f
	return nil
}

// Validate rejects configurations the pipeline cannot run with
func Validate(cfg *types.Config) error {
	var problems []string
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}
	unit := func(name string, v float64) {
		check(v >= 0 && v <= 1, "%s must be within [0,1], got %v", name, v)
	}

	switch cfg.Provider {
	case "eino", "openai", "gemini":
	default:
		problems = append(problems, fmt.Sprintf("unknown provider %q", cfg.Provider))
	}

	d := cfg.Detector
	unit("detector.conf_threshold", d.ConfThreshold)
	unit("detector.nms_threshold", d.NMSThreshold)
	check(d.InputSize >= 32 && d.InputSize%32 == 0, "detector.input_size must be a positive multiple of 32, got %d", d.InputSize)
	check(d.RasterScale > 0, "detector.raster_scale must be positive")
	check(d.MinFigureSize > 0, "detector.min_figure_size must be positive")

	r := cfg.Reconcile
	unit("reconcile.protect_threshold", r.ProtectThreshold)
	unit("reconcile.wide_ratio", r.WideRatio)
	unit("reconcile.orphan_coverage", r.OrphanCoverage)
	unit("reconcile.orphan_confidence", r.OrphanConfidence)
	unit("reconcile.container_child_coverage", r.ContainerChildCoverage)
	unit("reconcile.container_area_coverage", r.ContainerAreaCoverage)
	unit("reconcile.overlap_threshold", r.OverlapThreshold)
	unit("reconcile.title_band", r.TitleBand)
	unit("reconcile.title_max_width_ratio", r.TitleMaxWidthRatio)
	check(r.ProtectMargin >= 0, "reconcile.protect_margin must not be negative")

	t := cfg.Translate
	check(t.MaxAttempts >= 1 && t.MaxAttempts <= 10, "translate.max_attempts must be within [1,10], got %d", t.MaxAttempts)
	check(t.ChunkSize > 0 && t.ChunkSize <= t.ChunkThreshold, "translate.chunk_size must be positive and not exceed chunk_threshold")
	check(t.CallTimeoutSeconds > 0, "translate.call_timeout_seconds must be positive")

	rc := cfg.Render
	check(rc.MinFontSize > 0, "render.min_font_size must be positive")
	check(rc.ScaleFloor > 0 && rc.ScaleFloor <= 1, "render.scale_floor must be within (0,1]")
	check(rc.ScaleStep > 0 && rc.ScaleStep < 1, "render.scale_step must be within (0,1)")
	check(rc.SearchMargin >= 0, "render.search_margin must not be negative")

	if len(problems) > 0 {
		return types.NewAppErrorWithDetails(types.ErrConfig, "invalid configuration", strings.Join(problems, "; "), nil)
	}
	return nil
}

// Save saves the current configuration to the config file.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return DefaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// GetWorkDirectory returns the work directory, defaulting to
// ~/.layout-translator when unset.
func (m *ConfigManager) GetWorkDirectory() string {
	if m.config != nil && m.config.WorkDirectory != "" {
		return m.config.WorkDirectory
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".layout-translator")
	}
	return ".layout-translator"
}
