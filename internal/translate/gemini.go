package translate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type generateContentFunc func(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error)

// implements Backend using Google Gemini, through the Gemini API with a
// key or through Vertex AI with a project and region
type GeminiBackend struct {
	generate generateContentFunc
	model    string
	options  Options
}

func NewGeminiBackend(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*GeminiBackend, error) {
	cfg := &genai.ClientConfig{}
	switch {
	case apiKey != "":
		cfg.APIKey = apiKey
		cfg.Backend = genai.BackendGeminiAPI
	case opts.ProjectID != "":
		cfg.Project = opts.ProjectID
		cfg.Location = opts.Region
		if cfg.Location == "" {
			cfg.Location = "us-central1"
		}
		cfg.Backend = genai.BackendVertexAI
	default:
		return nil, fmt.Errorf("API key or project ID is required")
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiBackend{
		generate: client.Models.GenerateContent,
		model:    model,
		options:  opts,
	}, nil
}

func safetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHateSpeech,
		genai.HarmCategoryDangerousContent,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryHarassment,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
		})
	}
	return settings
}

func batchConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.3),
		TopP:             genai.Ptr[float32](0.4),
		ResponseMIMEType: "application/json",
		SafetySettings:   safetySettings(),
	}
}

func lineConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.2),
		TopP:             genai.Ptr[float32](0.4),
		ResponseMIMEType: "text/plain",
		SafetySettings:   safetySettings(),
	}
}

func (b *GeminiBackend) TranslateLines(
	ctx context.Context,
	lines []string,
	targetLanguage string,
) ([]string, error) {
	if len(lines) == 0 {
		return []string{}, nil
	}

	text, err := b.call(ctx, BuildPrompt(b.options, lines, targetLanguage), batchConfig())
	if err != nil {
		return nil, err
	}
	return parseLines(text)
}

func (b *GeminiBackend) TranslateLine(
	ctx context.Context,
	line string,
	targetLanguage string,
) (string, error) {
	text, err := b.call(ctx, BuildLinePrompt(b.options, line, targetLanguage), lineConfig())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (b *GeminiBackend) call(
	ctx context.Context,
	prompt string,
	config *genai.GenerateContentConfig,
) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := b.generate(ctx, b.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}
	return responseText(result)
}

func responseText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var text string
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				text += part.Text
			}
		}
		if text != "" {
			break
		}
	}

	if text == "" {
		return "", fmt.Errorf("no text in Gemini response")
	}
	return text, nil
}

func (b *GeminiBackend) Close() error {
	return nil
}
