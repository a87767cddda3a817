package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/types"
)

// Request is one block to translate
type Request struct {
	Text       string
	TargetLang string
	// Context is an excerpt of the page the block belongs to
	Context string
}

var errEmptyResponse = errors.New("empty response after cleaning")

// Orchestrator drives a Provider: it chunks long text, retries failed calls
// and post-processes responses. Translate never loses text: on failure the
// source is returned together with a translation error.
type Orchestrator struct {
	provider Provider
	cfg      types.TranslateConfig
	cache    *Cache

	mu          sync.Mutex
	normalizers map[string]*ScriptNormalizer

	// newBackOff builds the delay policy between attempts of one chunk
	newBackOff func() backoff.BackOff
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithCache enables the translation cache
func WithCache(c *Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithBackOff replaces the constant retry delay
func WithBackOff(f func() backoff.BackOff) Option {
	return func(o *Orchestrator) { o.newBackOff = f }
}

// NewOrchestrator creates an orchestrator for provider
func NewOrchestrator(provider Provider, cfg types.TranslateConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:    provider,
		cfg:         cfg,
		normalizers: make(map[string]*ScriptNormalizer),
	}
	o.newBackOff = func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Duration(cfg.RetryDelayMillis) * time.Millisecond)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) normalizer(targetLang string) *ScriptNormalizer {
	o.mu.Lock()
	defer o.mu.Unlock()
	n, ok := o.normalizers[targetLang]
	if !ok {
		n = NewScriptNormalizer(targetLang)
		o.normalizers[targetLang] = n
	}
	return n
}

// Translate returns the translation of req.Text. The result is always usable:
// chunks that exhausted their attempts keep the source text and the returned
// error is a TranslationError.
func (o *Orchestrator) Translate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" || IsNumeric(req.Text) {
		return req.Text, nil
	}
	if o.cache != nil {
		if cached, ok := o.cache.Get(req.TargetLang, req.Text); ok {
			logger.Debug("translation cache hit", logger.Int("chars", len([]rune(req.Text))))
			return cached, nil
		}
	}

	chunks := Chunk(req.Text, o.cfg.ChunkThreshold, o.cfg.ChunkSize)
	if len(chunks) > 1 {
		logger.Debug("text chunked",
			logger.Int("chars", len([]rune(req.Text))),
			logger.Int("chunks", len(chunks)))
	}

	var (
		out      = make([]string, 0, len(chunks))
		previous string
		failed   int
		lastErr  error
	)
	for i, chunk := range chunks {
		preq := ProviderRequest{
			TargetLang: req.TargetLang,
			Text:       chunk,
			Context:    req.Context,
			Previous:   tail(previous, o.cfg.ContextTail),
		}
		translated, err := o.translateChunk(ctx, preq)
		if err != nil {
			logger.Warn("chunk translation failed, keeping source text",
				logger.Int("chunk", i+1),
				logger.Int("chunks", len(chunks)),
				logger.Err(err))
			failed++
			lastErr = err
			translated = chunk
		}
		out = append(out, translated)
		previous = translated
	}

	result := strings.Join(out, joinSeparator(req.TargetLang))
	if failed > 0 {
		return result, types.NewTranslationError(fmt.Sprintf("%d of %d chunks kept their source text", failed, len(chunks)), lastErr)
	}
	if o.cache != nil {
		o.cache.Set(req.TargetLang, req.Text, result)
	}
	return result, nil
}

// translateChunk calls the provider at most MaxAttempts times. Every attempt
// has its own timeout; empty responses count as failures.
func (o *Orchestrator) translateChunk(ctx context.Context, req ProviderRequest) (string, error) {
	maxAttempts := o.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	timeout := time.Duration(o.cfg.CallTimeoutSeconds) * time.Second
	norm := o.normalizer(req.TargetLang)

	attempt := 0
	operation := func() (string, error) {
		attempt++
		var (
			callCtx context.Context
			cancel  context.CancelFunc
		)
		if timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, timeout)
		} else {
			callCtx, cancel = context.WithCancel(ctx)
		}
		defer cancel()

		start := time.Now()
		raw, err := o.provider.Translate(callCtx, req)
		if err != nil {
			logger.Warn("translation attempt failed",
				logger.Int("attempt", attempt),
				logger.Int("maxAttempts", maxAttempts),
				logger.Duration("elapsed", time.Since(start)),
				logger.Err(err))
			if !isRetryableError(err) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}

		cleaned := norm.Normalize(Clean(raw))
		if cleaned == "" {
			logger.Warn("translation attempt returned nothing usable",
				logger.Int("attempt", attempt),
				logger.Int("rawChars", len(raw)))
			return "", errEmptyResponse
		}
		return cleaned, nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(o.newBackOff(), uint64(maxAttempts-1)), ctx)
	translated, err := backoff.RetryWithData(operation, policy)
	if err != nil {
		return "", types.NewTranslationError(fmt.Sprintf("translation failed after %d attempts", attempt), err)
	}
	return translated, nil
}

// isRetryableError 判断错误是否值得重试：认证失败和无效请求不重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"401", "unauthorized", "invalid api key", "incorrect api key", "authentication", "status code: 400", "invalid request"} {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return true
}
