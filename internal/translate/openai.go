package translate

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"pdf-layout-translator/internal/types"
)

// OpenAIProvider calls the chat completions API directly
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIProvider creates a chat completions client. OpenAIBaseURL may point
// at any compatible server.
func NewOpenAIProvider(cfg *types.Config) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.OpenAIModel,
		temperature: float32(cfg.Temperature),
	}
}

// Translate implements Provider
func (p *OpenAIProvider) Translate(ctx context.Context, req ProviderRequest) (string, error) {
	response, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(req.TargetLang)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", types.NewAppErrorWithDetails(types.ErrAPICall, "chat completion failed", apiErr.Message, err)
		}
		return "", types.NewAppError(types.ErrAPICall, "chat completion failed", err)
	}
	if len(response.Choices) == 0 {
		return "", types.NewAppError(types.ErrAPICall, "chat completion returned no choices", nil)
	}
	return response.Choices[0].Message.Content, nil
}
