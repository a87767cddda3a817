package translate

import (
	"context"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/types"
)

// EinoProvider talks to any OpenAI compatible endpoint through an eino chat
// model. With the default base URL this is a local Ollama server.
type EinoProvider struct {
	chat  model.BaseChatModel
	model string
}

// NewEinoProvider creates the chat model from the provider settings
func NewEinoProvider(ctx context.Context, cfg *types.Config) (*EinoProvider, error) {
	temperature := float32(cfg.Temperature)
	apiKey := cfg.OpenAIAPIKey
	if apiKey == "" {
		// Ollama ignores the key but the client requires one
		apiKey = "ollama"
	}

	chatModelConfig := &openai.ChatModelConfig{
		Model:       cfg.OpenAIModel,
		APIKey:      apiKey,
		Temperature: &temperature,
		Timeout:     time.Duration(cfg.Translate.CallTimeoutSeconds) * time.Second,
	}
	if cfg.OpenAIBaseURL != "" {
		chatModelConfig.BaseURL = cfg.OpenAIBaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create chat model", err)
	}

	logger.Info("eino chat model ready",
		logger.String("model", cfg.OpenAIModel),
		logger.String("baseURL", cfg.OpenAIBaseURL))
	return &EinoProvider{chat: chatModel, model: cfg.OpenAIModel}, nil
}

// Translate implements Provider
func (p *EinoProvider) Translate(ctx context.Context, req ProviderRequest) (string, error) {
	response, err := p.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt(req.TargetLang)),
		schema.UserMessage(userPrompt(req)),
	})
	if err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrAPICall, "chat model call failed", p.model, err)
	}
	return response.Content, nil
}
