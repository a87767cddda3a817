// Package translate turns extracted block text into translated text through
// an external chat model. It chunks long text, retries failed calls, strips
// conversational artifacts and normalizes script and width variants.
package translate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"pdf-layout-translator/internal/types"
)

// ProviderRequest is one call to the chat model
type ProviderRequest struct {
	TargetLang string
	Text       string
	// Context is the page excerpt given as reference
	Context string
	// Previous is the tail of the previous chunk's translation
	Previous string
}

// Provider is a text-in/text-out translation backend
type Provider interface {
	Translate(ctx context.Context, req ProviderRequest) (string, error)
}

// NewProvider creates the provider selected by cfg.Provider
func NewProvider(ctx context.Context, cfg *types.Config) (Provider, error) {
	switch cfg.Provider {
	case "", "eino":
		p, err := NewEinoProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "gemini":
		p, err := NewGeminiProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, types.NewAppError(types.ErrConfig, fmt.Sprintf("unknown provider %q", cfg.Provider), nil)
}

// languageName returns an English name for a BCP 47 tag, e.g. "Traditional
// Chinese (Taiwan)" for zh-TW
func languageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	base, _ := t.Base()
	script, _ := t.Script()
	region, regionConf := t.Region()

	name := display.English.Languages().Name(base)
	if name == "" {
		return tag
	}
	if base.String() == "zh" {
		switch script.String() {
		case "Hant":
			name = "Traditional Chinese"
		case "Hans":
			name = "Simplified Chinese"
		}
	}
	if r := display.English.Regions().Name(region); r != "" && regionConf == language.Exact {
		name += " (" + r + ")"
	}
	return name
}

func systemPrompt(targetLang string) string {
	name := languageName(targetLang)
	return "You are a professional translator. " +
		"Your only task is to translate the text provided by the user into " + name + " (" + targetLang + ").\n" +
		"Rules:\n" +
		"1. Output only the translated text.\n" +
		"2. Do not include the original text.\n" +
		"3. Do not add explanations, notes or conversational fillers.\n" +
		"4. Keep numbers, formulas, citations and proper nouns unchanged.\n" +
		"5. Translate accurately and fluently."
}

func userPrompt(req ProviderRequest) string {
	var b strings.Builder
	if req.Context != "" {
		b.WriteString("Reference context from the same page (do not translate):\n")
		b.WriteString(req.Context)
		b.WriteString("\n\n")
	}
	if req.Previous != "" {
		b.WriteString("End of the previous part, already translated (do not repeat):\n")
		b.WriteString(req.Previous)
		b.WriteString("\n\n")
	}
	b.WriteString("The text to translate is:\n\n")
	b.WriteString(req.Text)
	return b.String()
}
