package translate

import (
	"context"
	"fmt"
	"strings"

	translateapi "cloud.google.com/go/translate/apiv3"
	"cloud.google.com/go/translate/apiv3/translatepb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

type textTranslator interface {
	TranslateText(
		ctx context.Context,
		req *translatepb.TranslateTextRequest,
		opts ...gax.CallOption,
	) (*translatepb.TranslateTextResponse, error)
}

// implements Backend using Cloud Translation v3. One batch is one
// TranslateText request.
type CloudBackend struct {
	client  textTranslator
	close   func() error
	parent  string
	options Options
}

func NewCloudBackend(ctx context.Context, opts Options) (*CloudBackend, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("project ID is required for Cloud Translation")
	}

	client, err := translateapi.NewTranslationClient(
		ctx,
		option.WithQuotaProject(opts.ProjectID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Translation client: %w", err)
	}

	return newCloudBackend(client, client.Close, opts), nil
}

func newCloudBackend(client textTranslator, closeFn func() error, opts Options) *CloudBackend {
	location := opts.Location
	if location == "" {
		location = "global"
	}
	return &CloudBackend{
		client:  client,
		close:   closeFn,
		parent:  fmt.Sprintf("projects/%s/locations/%s", opts.ProjectID, location),
		options: opts,
	}
}

func (b *CloudBackend) TranslateLines(
	ctx context.Context,
	lines []string,
	targetLanguage string,
) ([]string, error) {
	return b.TranslateLinesWithHints(ctx, lines, targetLanguage, Hints{
		SourceLanguage: b.options.SourceLanguage,
		Model:          b.options.Model,
	})
}

func (b *CloudBackend) TranslateLinesWithHints(
	ctx context.Context,
	lines []string,
	targetLanguage string,
	hints Hints,
) ([]string, error) {
	if len(lines) == 0 {
		return []string{}, nil
	}

	req := &translatepb.TranslateTextRequest{
		Parent:             b.parent,
		Contents:           lines,
		MimeType:           "text/plain",
		TargetLanguageCode: targetLanguage,
		SourceLanguageCode: hints.SourceLanguage,
	}
	if hints.Model != "" {
		req.Model = b.modelPath(hints.Model)
	}

	resp, err := b.client.TranslateText(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	translations := resp.GetTranslations()
	out := make([]string, len(translations))
	for i, tr := range translations {
		out[i] = tr.GetTranslatedText()
	}
	return out, nil
}

// expands short model names such as "general/translation-llm"
func (b *CloudBackend) modelPath(model string) string {
	if strings.HasPrefix(model, "projects/") {
		return model
	}
	return b.parent + "/models/" + model
}

func (b *CloudBackend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}
