package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"pdf-layout-translator/internal/types"
)

// GeminiProvider calls a Gemini model
type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGeminiProvider creates a Gemini client from the API key
func NewGeminiProvider(ctx context.Context, cfg *types.Config) (*GeminiProvider, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, types.NewAppError(types.ErrConfig, "gemini provider requires GEMINI_API_KEY", nil)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create gemini client", err)
	}

	m := client.GenerativeModel(cfg.GeminiModel)
	m.SetTemperature(float32(cfg.Temperature))
	return &GeminiProvider{client: client, model: m, name: cfg.GeminiModel}, nil
}

// Translate implements Provider. The model takes no system role, so the
// instructions lead the prompt.
func (p *GeminiProvider) Translate(ctx context.Context, req ProviderRequest) (string, error) {
	resp, err := p.model.GenerateContent(ctx,
		genai.Text("System: "+systemPrompt(req.TargetLang)),
		genai.Text(userPrompt(req)),
	)
	if err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrAPICall, "gemini call failed", p.name, err)
	}
	return responseText(resp)
}

// responseText joins the parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", types.NewAppError(types.ErrAPICall, "no response from model", nil)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
			continue
		}
		fmt.Fprintf(&b, "%s", part)
	}
	return b.String(), nil
}

// Close releases the client
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}
