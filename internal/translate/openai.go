package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type chatCompletionFunc func(
	ctx context.Context,
	body openai.ChatCompletionNewParams,
	opts ...option.RequestOption,
) (*openai.ChatCompletion, error)

// implements Backend using OpenAI Chat Completions
type OpenAIBackend struct {
	complete chatCompletionFunc
	model    string
	options  Options
}

func NewOpenAIBackend(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	model := opts.Model
	if model == "" {
		model = "gpt-5-mini"
	}

	return &OpenAIBackend{
		complete: client.Chat.Completions.New,
		model:    model,
		options:  opts,
	}, nil
}

func (b *OpenAIBackend) TranslateLines(
	ctx context.Context,
	lines []string,
	targetLanguage string,
) ([]string, error) {
	if len(lines) == 0 {
		return []string{}, nil
	}

	text, err := b.call(ctx, BuildPrompt(b.options, lines, targetLanguage))
	if err != nil {
		return nil, err
	}
	return parseLines(text)
}

func (b *OpenAIBackend) TranslateLine(
	ctx context.Context,
	line string,
	targetLanguage string,
) (string, error) {
	text, err := b.call(ctx, BuildLinePrompt(b.options, line, targetLanguage))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (b *OpenAIBackend) call(ctx context.Context, prompt string) (string, error) {
	completion, err := b.complete(
		ctx,
		openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: b.model,
		},
	)
	if err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}

	if completion == nil || len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}
	text := completion.Choices[0].Message.Content
	if text == "" {
		return "", fmt.Errorf("no text in OpenAI response")
	}
	return text, nil
}

func (b *OpenAIBackend) Close() error {
	return nil
}
