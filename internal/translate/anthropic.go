package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type messageNewFunc func(
	ctx context.Context,
	body anthropic.MessageNewParams,
	opts ...option.RequestOption,
) (*anthropic.Message, error)

// implements Backend using Anthropic Claude
type AnthropicBackend struct {
	send    messageNewFunc
	model   anthropic.Model
	options Options
}

func NewAnthropicBackend(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*AnthropicBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	model := anthropic.Model(opts.Model)
	if opts.Model == "" {
		model = anthropic.ModelClaudeHaiku4_5
	}

	return &AnthropicBackend{
		send:    client.Messages.New,
		model:   model,
		options: opts,
	}, nil
}

func (b *AnthropicBackend) TranslateLines(
	ctx context.Context,
	lines []string,
	targetLanguage string,
) ([]string, error) {
	if len(lines) == 0 {
		return []string{}, nil
	}

	text, err := b.call(ctx, BuildPrompt(b.options, lines, targetLanguage), 4096)
	if err != nil {
		return nil, err
	}
	return parseLines(text)
}

func (b *AnthropicBackend) TranslateLine(
	ctx context.Context,
	line string,
	targetLanguage string,
) (string, error) {
	text, err := b.call(ctx, BuildLinePrompt(b.options, line, targetLanguage), 1024)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (b *AnthropicBackend) call(
	ctx context.Context,
	prompt string,
	maxTokens int64,
) (string, error) {
	message, err := b.send(
		ctx,
		anthropic.MessageNewParams{
			Model:     b.model,
			MaxTokens: maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(
					anthropic.NewTextBlock(prompt),
				),
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}

	if message == nil || len(message.Content) == 0 {
		return "", fmt.Errorf("empty response from Anthropic")
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text in Anthropic response")
	}
	return text, nil
}

func (b *AnthropicBackend) Close() error {
	return nil
}
