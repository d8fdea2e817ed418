package translate

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"cloud.google.com/go/translate/apiv3/translatepb"
	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/googleapis/gax-go/v2"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

func geminiResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestGeminiBackendTranslateLines(t *testing.T) {
	var gotConfig *genai.GenerateContentConfig
	var gotPrompt string
	b := &GeminiBackend{
		model: "gemini-test",
		generate: func(
			ctx context.Context,
			model string,
			contents []*genai.Content,
			config *genai.GenerateContentConfig,
		) (*genai.GenerateContentResponse, error) {
			gotConfig = config
			gotPrompt = contents[0].Parts[0].Text
			return geminiResponse("```json\n[\"Hola\", \"Adiós\"]\n```"), nil
		},
	}

	got, err := b.TranslateLines(context.Background(), []string{"Hello", "Bye"}, "es")
	if err != nil {
		t.Fatalf("TranslateLines() error: %v", err)
	}
	if want := []string{"Hola", "Adiós"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TranslateLines() = %q, want %q", got, want)
	}
	if gotConfig.ResponseMIMEType != "application/json" {
		t.Errorf("ResponseMIMEType = %q", gotConfig.ResponseMIMEType)
	}
	if len(gotConfig.SafetySettings) != 4 {
		t.Errorf("expected 4 safety settings, got %d", len(gotConfig.SafetySettings))
	}
	if !strings.Contains(gotPrompt, `["Hello","Bye"]`) {
		t.Errorf("prompt missing payload: %s", gotPrompt)
	}
}

func TestGeminiBackendTranslateLine(t *testing.T) {
	b := &GeminiBackend{
		generate: func(
			ctx context.Context,
			model string,
			contents []*genai.Content,
			config *genai.GenerateContentConfig,
		) (*genai.GenerateContentResponse, error) {
			if config.ResponseMIMEType != "text/plain" {
				t.Errorf("ResponseMIMEType = %q, want text/plain", config.ResponseMIMEType)
			}
			if config.Temperature == nil || *config.Temperature != 0.2 {
				t.Errorf("Temperature = %v, want 0.2", config.Temperature)
			}
			if config.TopP == nil || *config.TopP != 0.4 {
				t.Errorf("TopP = %v, want 0.4", config.TopP)
			}
			return geminiResponse("  Bonjour\n"), nil
		},
	}

	got, err := b.TranslateLine(context.Background(), "Hello", "fr")
	if err != nil {
		t.Fatalf("TranslateLine() error: %v", err)
	}
	if got != "Bonjour" {
		t.Errorf("TranslateLine() = %q, want %q", got, "Bonjour")
	}
}

func TestGeminiBackendErrors(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
	}{
		{"request error", nil, errors.New("quota")},
		{"no candidates", &genai.GenerateContentResponse{}, nil},
		{"no text", geminiResponse(""), nil},
		{"not json", geminiResponse("sorry, I cannot help"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &GeminiBackend{
				generate: func(
					context.Context,
					string,
					[]*genai.Content,
					*genai.GenerateContentConfig,
				) (*genai.GenerateContentResponse, error) {
					return tt.resp, tt.err
				},
			}
			if _, err := b.TranslateLines(context.Background(), []string{"x"}, "es"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOpenAIBackendTranslateLines(t *testing.T) {
	var gotModel string
	b := &OpenAIBackend{
		model: "gpt-test",
		complete: func(
			ctx context.Context,
			body openai.ChatCompletionNewParams,
			opts ...openaioption.RequestOption,
		) (*openai.ChatCompletion, error) {
			gotModel = string(body.Model)
			return &openai.ChatCompletion{
				Choices: []openai.ChatCompletionChoice{{
					Message: openai.ChatCompletionMessage{Content: `{"translations": ["Hallo", null]}`},
				}},
			}, nil
		},
	}

	got, err := b.TranslateLines(context.Background(), []string{"Hello", "..."}, "de")
	if err != nil {
		t.Fatalf("TranslateLines() error: %v", err)
	}
	if want := []string{"Hallo", ""}; !reflect.DeepEqual(got, want) {
		t.Errorf("TranslateLines() = %q, want %q", got, want)
	}
	if gotModel != "gpt-test" {
		t.Errorf("model = %q, want gpt-test", gotModel)
	}

	b.complete = func(
		context.Context,
		openai.ChatCompletionNewParams,
		...openaioption.RequestOption,
	) (*openai.ChatCompletion, error) {
		return &openai.ChatCompletion{}, nil
	}
	if _, err := b.TranslateLines(context.Background(), []string{"x"}, "de"); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestAnthropicBackendTranslateLine(t *testing.T) {
	var gotMaxTokens int64
	b := &AnthropicBackend{
		model: anthropic.ModelClaudeHaiku4_5,
		send: func(
			ctx context.Context,
			body anthropic.MessageNewParams,
			opts ...anthropicoption.RequestOption,
		) (*anthropic.Message, error) {
			gotMaxTokens = body.MaxTokens
			return &anthropic.Message{
				Content: []anthropic.ContentBlockUnion{
					{Type: "text", Text: " Merhaba "},
				},
			}, nil
		},
	}

	got, err := b.TranslateLine(context.Background(), "Hello", "tr")
	if err != nil {
		t.Fatalf("TranslateLine() error: %v", err)
	}
	if got != "Merhaba" {
		t.Errorf("TranslateLine() = %q, want %q", got, "Merhaba")
	}
	if gotMaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", gotMaxTokens)
	}
}

type fakeTextTranslator struct {
	req  *translatepb.TranslateTextRequest
	resp *translatepb.TranslateTextResponse
	err  error
}

func (f *fakeTextTranslator) TranslateText(
	ctx context.Context,
	req *translatepb.TranslateTextRequest,
	opts ...gax.CallOption,
) (*translatepb.TranslateTextResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestCloudBackendTranslateLines(t *testing.T) {
	fake := &fakeTextTranslator{
		resp: &translatepb.TranslateTextResponse{
			Translations: []*translatepb.Translation{
				{TranslatedText: "Olá"},
				{TranslatedText: "Tchau"},
			},
		},
	}
	b := newCloudBackend(fake, nil, Options{ProjectID: "demo", Model: "general/translation-llm"})

	got, err := b.TranslateLines(context.Background(), []string{"Hello", "Bye"}, "pt-br")
	if err != nil {
		t.Fatalf("TranslateLines() error: %v", err)
	}
	if want := []string{"Olá", "Tchau"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TranslateLines() = %q, want %q", got, want)
	}

	req := fake.req
	if req.GetParent() != "projects/demo/locations/global" {
		t.Errorf("Parent = %q", req.GetParent())
	}
	if req.GetMimeType() != "text/plain" || req.GetTargetLanguageCode() != "pt-br" {
		t.Errorf("unexpected request: %v", req)
	}
	if req.GetModel() != "projects/demo/locations/global/models/general/translation-llm" {
		t.Errorf("Model = %q", req.GetModel())
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestCloudBackendHints(t *testing.T) {
	fake := &fakeTextTranslator{resp: &translatepb.TranslateTextResponse{}}
	b := newCloudBackend(fake, nil, Options{ProjectID: "demo", Location: "us-central1"})

	_, err := b.TranslateLinesWithHints(context.Background(), []string{"x"}, "tr", Hints{
		SourceLanguage: "en",
		Model:          "projects/demo/locations/us-central1/models/custom",
	})
	if err != nil {
		t.Fatalf("TranslateLinesWithHints() error: %v", err)
	}
	if fake.req.GetSourceLanguageCode() != "en" {
		t.Errorf("SourceLanguageCode = %q", fake.req.GetSourceLanguageCode())
	}
	if fake.req.GetModel() != "projects/demo/locations/us-central1/models/custom" {
		t.Errorf("Model = %q", fake.req.GetModel())
	}

	fake.err = errors.New("permission denied")
	if _, err := b.TranslateLines(context.Background(), []string{"x"}, "tr"); err == nil {
		t.Error("expected error")
	}
}
