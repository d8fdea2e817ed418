package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidResponse marks a batch request that failed or returned a
	// result that does not line up with the request.
	ErrInvalidResponse = errors.New("invalid translation response")
	// ErrUntranslatable marks a line whose single-line request also failed.
	ErrUntranslatable = errors.New("line could not be translated")
)

// Backend translates an ordered batch of lines in one request. The result
// is expected, not guaranteed, to have the same length and order.
type Backend interface {
	TranslateLines(
		ctx context.Context,
		lines []string,
		targetLanguage string,
	) ([]string, error)
}

// Hints are optional per-request routing details.
type Hints struct {
	SourceLanguage string
	Model          string
}

func (h Hints) IsZero() bool {
	return h.SourceLanguage == "" && h.Model == ""
}

// optional interface for backends that accept source language / model hints
type HintedBackend interface {
	Backend
	TranslateLinesWithHints(
		ctx context.Context,
		lines []string,
		targetLanguage string,
		hints Hints,
	) ([]string, error)
}

// optional interface for backends with a cheaper plain-text single-line mode
type LineBackend interface {
	TranslateLine(
		ctx context.Context,
		line string,
		targetLanguage string,
	) (string, error)
}

// translation service provider
type Provider string

const (
	ProviderGemini         Provider = "gemini"
	ProviderCloudTranslate Provider = "translate"
	ProviderTranslateLLM   Provider = "translateLLM"
	ProviderOpenAI         Provider = "openai"
	ProviderAnthropic      Provider = "anthropic"
)

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.TrimSpace(s)); p {
	case ProviderGemini, ProviderCloudTranslate, ProviderTranslateLLM,
		ProviderOpenAI, ProviderAnthropic:
		return p, nil
	default:
		return "", fmt.Errorf(
			"unsupported translation engine %q: use gemini, translate, translateLLM, openai, or anthropic",
			s,
		)
	}
}

// Label is the engine name used in output file names.
func (p Provider) Label() string {
	switch p {
	case ProviderCloudTranslate, ProviderTranslateLLM:
		return "translateLLM"
	default:
		return string(p)
	}
}

// UsesGoogleCloud reports whether the provider authenticates with
// application default credentials against a Google Cloud project.
func (p Provider) UsesGoogleCloud() bool {
	return p == ProviderCloudTranslate || p == ProviderTranslateLLM
}

// APIKeyEnv names the environment variable holding the provider's key.
func (p Provider) APIKeyEnv() string {
	switch p {
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// DefaultLimits sizes batches for the provider's request limits.
func (p Provider) DefaultLimits() Limits {
	switch p {
	case ProviderCloudTranslate, ProviderTranslateLLM:
		return Limits{MaxItems: 1024, MaxChars: 30000}
	case ProviderGemini:
		return Limits{MaxItems: 40, MaxChars: DefaultMaxChars}
	default:
		return Limits{MaxItems: DefaultMaxItems, MaxChars: DefaultMaxChars}
	}
}

type Options struct {
	SourceLanguage string
	Model          string
	Prompt         string // extra instructions appended to LLM prompts
	ProjectID      string
	Region         string // Vertex AI region
	Location       string // Cloud Translation location (default "global")
}

// creates a Backend for the provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Backend, error) {
	switch provider {
	case ProviderGemini:
		return NewGeminiBackend(ctx, apiKey, opts)
	case ProviderCloudTranslate, ProviderTranslateLLM:
		return NewCloudBackend(ctx, opts)
	case ProviderOpenAI:
		return NewOpenAIBackend(ctx, apiKey, opts)
	case ProviderAnthropic:
		return NewAnthropicBackend(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", provider)
	}
}
