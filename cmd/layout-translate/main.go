// Command layout-translate translates PDF files while keeping their layout.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ridge/must/v2"
	"github.com/samber/lo"

	"pdf-layout-translator/internal/config"
	ledger "pdf-layout-translator/internal/errors"
	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/pipeline"
	"pdf-layout-translator/internal/results"
	"pdf-layout-translator/internal/translate"
	"pdf-layout-translator/internal/types"
)

// Command line flags
var (
	configFlag      = flag.String("config", "", "Path to the JSON config file")
	langFlag        = flag.String("lang", "", "Target language as a BCP 47 tag (default zh-TW)")
	outFlag         = flag.String("out", "", "Output directory (default: next to each input)")
	debugFlag       = flag.Bool("debug", false, "Draw detected regions instead of translating")
	overlayFlag     = flag.Bool("overlay", false, "With -debug, also write PNG overlays of each page")
	concurrencyFlag = flag.Int("concurrency", 0, "Number of documents processed at once")
	providerFlag    = flag.String("provider", "", "Translation backend: eino, openai or gemini")
	verboseFlag     = flag.Bool("v", false, "Echo the log to stderr")

	skipExistingFlag = flag.Bool("skip-existing", false, "Skip inputs already translated into the target language")
	retryFailedFlag  = flag.Bool("retry-failed", false, "Add the retryable inputs of the failure ledger to the run")
	maxRetriesFlag   = flag.Int("max-retries", 3, "With -retry-failed, skip inputs retried this many times (0 = no limit)")
	listFailedFlag   = flag.Bool("list-failed", false, "List the failure ledger and exit")
	exportFailedFlag = flag.String("export-failed", "", "Write the retryable inputs to this file and exit")
	clearFailedFlag  = flag.Bool("clear-failed", false, "Empty the failure ledger and exit")
	historyFlag      = flag.Bool("history", false, "List the run history and exit")
	forgetFlag       = flag.Bool("forget", false, "Drop the history and failure records of the given inputs and exit")
)

// printHelp displays the help information for command line usage.
func printHelp() {
	fmt.Println("layout-translate - 保留版面的 PDF 翻译工具")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  layout-translate [选项] <input.pdf>...")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  layout-translate paper.pdf")
	fmt.Println("  layout-translate -lang ja -out ./translated a.pdf b.pdf")
	fmt.Println("  layout-translate -debug -overlay paper.pdf")
	fmt.Println("  layout-translate -skip-existing *.pdf")
	fmt.Println("  layout-translate -retry-failed -max-retries 5")
	fmt.Println("  layout-translate -list-failed")
	fmt.Println()
	fmt.Println("说明:")
	fmt.Println("  配置文件之外，环境变量和当前目录的 .env 文件可以覆盖翻译服务与模型设置。")
	fmt.Println("  失败记录与历史记录保存在工作目录中，-retry-failed 会重新处理可重试的文档。")
}

func main() {
	flag.Usage = printHelp
	flag.Parse()
	os.Exit(run())
}

func run() int {
	inputs := flag.Args()

	must.OK(config.LoadDotEnv(".env"))
	cm := must.OK1(config.NewConfigManager(*configFlag))
	if err := cm.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "配置错误: %v\n", err)
		return 1
	}
	cfg := cm.GetConfig()
	applyFlags(cfg)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "配置错误: %v\n", err)
		return 1
	}

	workDir := cm.GetWorkDirectory()
	must.OK(os.MkdirAll(workDir, 0755))

	logCfg := logger.DefaultConfig()
	logCfg.LogFilePath = filepath.Join(workDir, "layout-translator.log")
	logCfg.Level = logger.ParseLevel(cfg.LogLevel)
	logCfg.EnableConsole = *verboseFlag
	must.OK(logger.Init(logCfg))
	defer logger.Close()

	em := must.OK1(ledger.NewErrorManager(workDir))
	rm := must.OK1(results.NewResultManager(workDir))
	if code, done := manage(em, rm, inputs); done {
		return code
	}

	if *retryFailedFlag {
		retry, err := em.BeginRetry(*maxRetriesFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "读取失败记录出错: %v\n", err)
			return 1
		}
		fmt.Printf("重试 %d 个失败文档\n", len(retry))
		inputs = lo.Uniq(append(inputs, retry...))
	}
	if len(inputs) == 0 {
		if *retryFailedFlag {
			return 0
		}
		printHelp()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	detector, closeDetector := buildDetector(cfg)
	defer closeDetector()

	var translator pipeline.Translator
	if !*debugFlag {
		orch, closeTranslator, err := buildTranslator(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "翻译服务初始化失败: %v\n", err)
			return 1
		}
		defer closeTranslator()
		translator = orch
	}

	opts := []pipeline.DocumentOption{pipeline.WithLedger(em), pipeline.WithHistory(rm)}
	if *skipExistingFlag {
		opts = append(opts, pipeline.WithSkipExisting())
	}
	dp := pipeline.NewDocumentPipeline(cfg, detector, translator, opts...)

	jobs := make([]pipeline.Job, 0, len(inputs))
	for _, in := range inputs {
		jobs = append(jobs, pipeline.Job{InputPath: in, TargetLang: cfg.TargetLang, Debug: *debugFlag})
	}

	failed := 0
	for _, r := range pipeline.NewBatch(dp, cfg.Concurrency).Run(ctx, jobs) {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Job.InputPath, r.Err)
			continue
		}
		if r.Result.Skipped {
			fmt.Printf("- %s 已翻译，跳过 (%s)\n", r.Job.InputPath, r.Result.OutputPath)
			continue
		}
		fmt.Printf("✓ %s -> %s (%d 页, %d 页失败)\n",
			r.Job.InputPath, r.Result.OutputPath, len(r.Result.Pages), r.Result.FailedPages())
		for _, p := range r.Result.OverlayPaths {
			fmt.Printf("  overlay: %s\n", p)
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// manage runs the ledger and history commands. done is false when no such
// command was given.
func manage(em *ledger.ErrorManager, rm *results.ResultManager, inputs []string) (code int, done bool) {
	switch {
	case *listFailedFlag:
		printFailed(os.Stdout, em)
	case *exportFailedFlag != "":
		if err := em.ExportRetryInputs(*exportFailedFlag); err != nil {
			fmt.Fprintf(os.Stderr, "导出失败: %v\n", err)
			return 1, true
		}
		fmt.Printf("可重试文档已导出到 %s\n", *exportFailedFlag)
	case *clearFailedFlag:
		if err := em.ClearAll(); err != nil {
			fmt.Fprintf(os.Stderr, "清除失败: %v\n", err)
			return 1, true
		}
		fmt.Println("失败记录已清空")
	case *historyFlag:
		if err := printHistory(os.Stdout, rm); err != nil {
			fmt.Fprintf(os.Stderr, "读取历史记录出错: %v\n", err)
			return 1, true
		}
	case *forgetFlag:
		if len(inputs) == 0 {
			printHelp()
			return 2, true
		}
		if err := forget(os.Stdout, em, rm, inputs); err != nil {
			fmt.Fprintf(os.Stderr, "清除记录出错: %v\n", err)
			return 1, true
		}
	default:
		return 0, false
	}
	return 0, true
}

func applyFlags(cfg *types.Config) {
	if *langFlag != "" {
		cfg.TargetLang = *langFlag
	}
	if *outFlag != "" {
		cfg.OutputDirectory = *outFlag
	}
	if *concurrencyFlag > 0 {
		cfg.Concurrency = *concurrencyFlag
	}
	if *providerFlag != "" {
		cfg.Provider = *providerFlag
	}
	if *overlayFlag {
		cfg.Pipeline.DebugOverlayImages = true
	}
}

// buildDetector uses the layout model when it loads and the text-line
// heuristic otherwise
func buildDetector(cfg *types.Config) (layout.Detector, func()) {
	heuristic := layout.NewHeuristicDetector(cfg.Detector.RasterScale)
	heuristic.Figures = !cfg.Detector.SkipInkFigures
	heuristic.MinFigureSize = cfg.Detector.MinFigureSize
	if cfg.Detector.ModelPath == "" {
		logger.Info("no layout model configured, using heuristic layout")
		return heuristic, func() {}
	}

	model, err := layout.NewModelDetector(cfg.Detector)
	if err != nil {
		logger.Warn("layout model unavailable, using heuristic layout", logger.Err(err))
		return heuristic, func() {}
	}
	closeFn := func() {
		if err := model.Close(); err != nil {
			logger.Warn("failed to close layout model", logger.Err(err))
		}
		layout.ShutdownRuntime()
	}
	return &layout.FallbackDetector{Primary: model, Fallback: heuristic}, closeFn
}

// buildTranslator wires the provider, the persistent cache and the
// orchestrator. The returned func saves the cache and releases the provider.
func buildTranslator(ctx context.Context, cfg *types.Config) (*translate.Orchestrator, func(), error) {
	provider, err := translate.NewProvider(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	cache := translate.NewCache(cfg.Translate.CachePath)
	if err := cache.Load(); err != nil {
		logger.Warn("translation cache not loaded", logger.Err(err))
	}

	orch := translate.NewOrchestrator(provider, cfg.Translate, translate.WithCache(cache))
	closeFn := func() {
		if err := cache.Save(); err != nil {
			logger.Warn("translation cache not saved", logger.Err(err))
		}
		if c, ok := provider.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warn("failed to close provider", logger.Err(err))
			}
		}
	}
	return orch, closeFn, nil
}
