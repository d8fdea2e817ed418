package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mgpai22/ttmltr/internal/logging"
	"github.com/mgpai22/ttmltr/internal/translate"
	"github.com/mgpai22/ttmltr/internal/ttml"
)

const sampleTTML = `<?xml version="1.0" encoding="UTF-8"?>
<tt xmlns="http://www.w3.org/ns/ttml" xmlns:tts="http://www.w3.org/ns/ttml#styling" xml:lang="en">
  <body>
    <div>
      <p begin="00:00:01.000" end="00:00:02.000"><span tts:color="white">Hello</span><br/><span>World</span></p>
      <p begin="00:00:03.000" end="00:00:04.000"> </p>
      <p begin="00:00:05.000" end="00:00:06.000"><span>Goodbye</span></p>
    </div>
  </body>
</tt>
`

// stubTranslator appends a marker and records every call.
type stubTranslator struct {
	mu     sync.Mutex
	calls  [][]string
	mangle func(lines []string) []string
}

func (s *stubTranslator) Translate(
	ctx context.Context,
	lines []string,
	targetLanguage string,
) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), lines...))
	s.mu.Unlock()

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "[" + strings.ToUpper(targetLanguage) + "]"
	}
	if s.mangle != nil {
		return s.mangle(out), nil
	}
	return out, nil
}

func mustParse(t *testing.T, src string) *ttml.Document {
	t.Helper()
	doc, err := ttml.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return doc
}

func TestTranslateDocumentSpanScenario(t *testing.T) {
	doc := mustParse(t, sampleTTML)
	stub := &stubTranslator{}

	res, err := New(stub, nil).TranslateDocument(context.Background(), doc, "es")
	if err != nil {
		t.Fatalf("TranslateDocument() error: %v", err)
	}
	if res.Lines != 3 || res.Units != 2 || len(res.Skipped) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected one translate call, got %d", len(stub.calls))
	}

	out := string(doc.Bytes())
	for _, want := range []string{
		`<span tts:color="white">Hello[ES]</span><br/><span>World[ES]</span>`,
		`<p begin="00:00:03.000" end="00:00:04.000"> </p>`,
		`<span>Goodbye[ES]</span>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTranslateDocumentWithoutCues(t *testing.T) {
	doc := mustParse(t, `<tt xmlns="http://www.w3.org/ns/ttml"><body><div><p> </p></div></body></tt>`)
	stub := &stubTranslator{}

	res, err := New(stub, nil).TranslateDocument(context.Background(), doc, "fr")
	if err != nil {
		t.Fatalf("TranslateDocument() error: %v", err)
	}
	if res.Lines != 0 || len(stub.calls) != 0 {
		t.Errorf("expected no work, got %+v with %d calls", res, len(stub.calls))
	}
}

func TestTranslateDocumentRetriesPerContainer(t *testing.T) {
	doc := mustParse(t, sampleTTML)
	stub := &stubTranslator{
		// drops the last line of any request longer than two lines
		mangle: func(lines []string) []string {
			if len(lines) > 2 {
				return lines[:len(lines)-1]
			}
			return lines
		},
	}

	res, err := New(stub, nil).TranslateDocument(context.Background(), doc, "de")
	if err != nil {
		t.Fatalf("TranslateDocument() error: %v", err)
	}
	if res.Lines != 3 || res.Units != 2 || len(res.Skipped) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(stub.calls) != 3 {
		t.Errorf("expected 1 document call and 2 container calls, got %d", len(stub.calls))
	}
	if n := strings.Count(string(doc.Bytes()), "[DE]"); n != 3 {
		t.Errorf("expected 3 translated lines, found %d", n)
	}
}

func TestTranslateDocumentSkipsMisalignedContainers(t *testing.T) {
	doc := mustParse(t, sampleTTML)
	before := doc.Bytes()

	core, logs := observer.New(zapcore.WarnLevel)
	stub := &stubTranslator{
		mangle: func(lines []string) []string { return append(lines, "extra") },
	}

	res, err := New(stub, logging.New(zap.New(core))).TranslateDocument(context.Background(), doc, "tr")
	if err != nil {
		t.Fatalf("TranslateDocument() error: %v", err)
	}
	if res.Lines != 0 || res.Units != 0 {
		t.Errorf("nothing should be rewritten: %+v", res)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("expected 2 skipped containers, got %d", len(res.Skipped))
	}
	if res.Skipped[0].Container != 0 || res.Skipped[1].Container != 2 {
		t.Errorf("skipped containers = %+v, want 0 and 2", res.Skipped)
	}
	for _, w := range res.Skipped {
		if !errors.Is(w.Err, ttml.ErrStructuralMismatch) {
			t.Errorf("warning error = %v, want ErrStructuralMismatch", w.Err)
		}
	}
	if string(before) != string(doc.Bytes()) {
		t.Error("document changed although every container was skipped")
	}
	if n := logs.FilterMessage("Skipping container").Len(); n != 2 {
		t.Errorf("expected 2 skip warnings logged, got %d", n)
	}
}

func TestTranslateDocumentPropagatesCancellation(t *testing.T) {
	doc := mustParse(t, sampleTTML)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&stubTranslator{}, nil).TranslateDocument(ctx, doc, "es")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type recordingBackend struct {
	mu       sync.Mutex
	payloads [][]string
}

func (b *recordingBackend) TranslateLines(
	ctx context.Context,
	lines []string,
	targetLanguage string,
) ([]string, error) {
	b.mu.Lock()
	b.payloads = append(b.payloads, append([]string(nil), lines...))
	b.mu.Unlock()
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + " (" + targetLanguage + ")"
	}
	return out, nil
}

func TestTranslateDocumentWithResilientTranslator(t *testing.T) {
	doc := mustParse(t, `<tt xmlns="http://www.w3.org/ns/ttml"><body><div>
<p><span>One</span><br/><span> </span></p>
<p><span>Two</span></p>
<p><span>Three</span></p>
</div></body></tt>`)

	backend := &recordingBackend{}
	tr := translate.NewTranslator(backend, translate.Config{Limits: translate.Limits{MaxItems: 2}})

	res, err := New(tr, nil).TranslateDocument(context.Background(), doc, "es")
	if err != nil {
		t.Fatalf("TranslateDocument() error: %v", err)
	}
	if res.Lines != 4 {
		t.Errorf("Lines = %d, want 4", res.Lines)
	}
	if len(backend.payloads) != 2 {
		t.Fatalf("expected 2 backend calls, got %d", len(backend.payloads))
	}
	for _, p := range backend.payloads {
		for _, l := range p {
			if strings.TrimSpace(l) == "" {
				t.Errorf("blank line reached the backend: %q", p)
			}
		}
	}

	got := ttml.Lines(doc.Extract())
	want := []string{"One (es)", " ", "Two (es)", "Three (es)"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}
