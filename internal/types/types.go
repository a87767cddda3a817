// Package types defines the configuration model and error codes shared by the
// layout translator packages.
package types

// Config 应用配置
type Config struct {
	// Provider selects the translation backend: "eino", "openai" or "gemini"
	Provider      string  `json:"provider"`
	OpenAIAPIKey  string  `json:"openai_api_key"`
	OpenAIBaseURL string  `json:"openai_base_url"` // OpenAI 兼容 API 的 Base URL，Ollama 使用 /v1
	OpenAIModel   string  `json:"openai_model"`
	GeminiAPIKey  string  `json:"gemini_api_key"`
	GeminiModel   string  `json:"gemini_model"`
	Temperature   float64 `json:"temperature"`

	TargetLang      string `json:"target_lang"`      // BCP 47 标签，默认 zh-TW
	WorkDirectory   string `json:"work_directory"`   // 日志、缓存、错误记录所在目录
	OutputDirectory string `json:"output_directory"` // 为空时输出到输入文件所在目录
	Concurrency     int    `json:"concurrency"`      // 同时处理的文档数
	LogLevel        string `json:"log_level"`

	Detector  DetectorConfig  `json:"detector"`
	Reconcile ReconcileConfig `json:"reconcile"`
	Extract   ExtractConfig   `json:"extract"`
	Translate TranslateConfig `json:"translate"`
	Render    RenderConfig    `json:"render"`
	Pipeline  PipelineConfig  `json:"pipeline"`
}

// DetectorConfig 版面检测配置
type DetectorConfig struct {
	// ModelPath points at a DocLayout-YOLO ONNX export; empty disables the model
	ModelPath      string   `json:"model_path"`
	RuntimeLibrary string   `json:"runtime_library"` // onnxruntime 共享库路径
	InputSize      int      `json:"input_size"`
	InputName      string   `json:"input_name"`
	OutputName     string   `json:"output_name"`
	MaxDetections  int      `json:"max_detections"` // 输出张量的行数
	ConfThreshold  float64  `json:"conf_threshold"`
	NMSThreshold   float64  `json:"nms_threshold"`
	RasterScale    float64  `json:"raster_scale"` // 光栅化倍率，1.0 = 72 DPI
	ClassLabels    []string `json:"class_labels"` // 模型类别序号对应的标签
	// 无模型时不从光栅中找图形区域
	SkipInkFigures bool     `json:"skip_ink_figures"`
	MinFigureSize  float64  `json:"min_figure_size"` // 图形区域最小边长（点）
}

// ReconcileConfig 区域合并配置
type ReconcileConfig struct {
	ProtectMargin          float64 `json:"protect_margin"`
	ProtectThreshold       float64 `json:"protect_threshold"`
	WideRatio              float64 `json:"wide_ratio"`
	RescueMinChars         int     `json:"rescue_min_chars"`
	RescueMinWords         int     `json:"rescue_min_words"`
	OrphanCoverage         float64 `json:"orphan_coverage"`
	OrphanConfidence       float64 `json:"orphan_confidence"`
	ContainerChildCoverage float64 `json:"container_child_coverage"`
	ContainerAreaCoverage  float64 `json:"container_area_coverage"`
	OverlapThreshold       float64 `json:"overlap_threshold"`
	TitleBand              float64 `json:"title_band"`
	TitleMaxWidthRatio     float64 `json:"title_max_width_ratio"`
}

// ExtractConfig 文本提取配置
type ExtractConfig struct {
	MinBlockChars     int     `json:"min_block_chars"`
	MinSourceFontSize float64 `json:"min_source_font_size"` // 0 表示不过滤
	ContextChars      int     `json:"context_chars"`
	SkipInkColors     bool    `json:"skip_ink_colors"` // 不从光栅采样文字颜色
}

// TranslateConfig 翻译调度配置
type TranslateConfig struct {
	ChunkThreshold     int    `json:"chunk_threshold"`
	ChunkSize          int    `json:"chunk_size"`
	ContextTail        int    `json:"context_tail"`
	MaxAttempts        int    `json:"max_attempts"`
	CallTimeoutSeconds int    `json:"call_timeout_seconds"`
	RetryDelayMillis   int    `json:"retry_delay_millis"`
	CachePath          string `json:"cache_path"` // 为空时不持久化缓存
}

// RenderConfig 擦除与回填配置
type RenderConfig struct {
	SearchMargin  float64 `json:"search_margin"`
	MinFontSize   float64 `json:"min_font_size"`
	ScaleFloor    float64 `json:"scale_floor"`
	ScaleStep     float64 `json:"scale_step"`
	CenterRatio   float64 `json:"center_ratio"`
	LineSpacing   float64 `json:"line_spacing"`
	CJKFontPath   string  `json:"cjk_font_path"`
	LatinFontPath string  `json:"latin_font_path"`
}

// PipelineConfig 流水线配置
type PipelineConfig struct {
	DebugOverlayImages bool `json:"debug_overlay_images"`
}
