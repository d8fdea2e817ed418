package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/mgpai22/ttmltr/internal/storage"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		path, lang, label, want string
	}{
		{"in/ep1.ttml", "es", "gemini", "ep1_es_gemini.ttml"},
		{"/abs/Show S01E02.xml", "pt-br", "translateLLM", "Show S01E02_pt-br_translateLLM.xml"},
		{"noext", "tr", "openai", "noext_tr_openai.ttml"},
		{"a.b.ttml", "de", "anthropic", "a.b_de_anthropic.ttml"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.path, tt.lang, tt.label); got != tt.want {
			t.Errorf("OutputName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestJobs(t *testing.T) {
	got := Jobs([]string{"a", "b"}, []string{"es", "fr"})
	want := []Job{{"a", "es"}, {"a", "fr"}, {"b", "es"}, {"b", "fr"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Jobs() = %v, want %v", got, want)
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.ttml"), sampleTTML)
	writeFile(t, filepath.Join(root, "a.ttml"), sampleTTML)
	writeFile(t, filepath.Join(root, "notes.txt"), "x")
	writeFile(t, filepath.Join(root, "season2", "c.ttml"), sampleTTML)

	flat, err := Discover(root, "*.ttml", false)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	want := []string{filepath.Join(root, "a.ttml"), filepath.Join(root, "b.ttml")}
	if !reflect.DeepEqual(flat, want) {
		t.Errorf("Discover() = %q, want %q", flat, want)
	}

	deep, err := Discover(root, "", true)
	if err != nil {
		t.Fatalf("Discover(recursive) error: %v", err)
	}
	if len(deep) != 3 || deep[2] != filepath.Join(root, "season2", "c.ttml") {
		t.Errorf("Discover(recursive) = %q", deep)
	}

	if _, err := Discover(filepath.Join(root, "missing"), "*.ttml", false); err == nil {
		t.Error("expected error for missing directory")
	}
	if _, err := Discover(root, "[", false); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

type memorySink struct {
	mu    sync.Mutex
	items map[string]string
}

func (m *memorySink) Put(ctx context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string]string{}
	}
	m.items[name] = string(data)
	return "mem://" + name, nil
}

func TestRunnerProcessesEveryJob(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ep1.ttml"), sampleTTML)
	writeFile(t, filepath.Join(root, "ep2.ttml"), sampleTTML)
	writeFile(t, filepath.Join(root, "broken.ttml"), "<tt><body></tt>")

	files, err := Discover(root, "*.ttml", false)
	if err != nil {
		t.Fatal(err)
	}

	sink := &memorySink{}
	runner := NewRunner(New(&stubTranslator{}, nil), sink, RunnerConfig{
		Label:       "gemini",
		Concurrency: 3,
	})

	summary, err := runner.Run(context.Background(), files, []string{"es", "fr"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if summary.Files != 3 || summary.Succeeded != 4 || summary.Failed != 2 {
		t.Errorf("unexpected summary: files=%d ok=%d failed=%d",
			summary.Files, summary.Succeeded, summary.Failed)
	}

	// results follow job order: broken, ep1, ep2
	for i, wantErr := range []bool{true, true, false, false, false, false} {
		if got := summary.Results[i].Err != nil; got != wantErr {
			t.Errorf("result %d (%s/%s) err = %v, want failure %v",
				i, filepath.Base(summary.Results[i].Path), summary.Results[i].Language,
				summary.Results[i].Err, wantErr)
		}
	}
	if got := summary.Results[3].URI; got != "mem://ep1_fr_gemini.ttml" {
		t.Errorf("URI = %q", got)
	}

	out, ok := sink.items["ep2_es_gemini.ttml"]
	if !ok {
		t.Fatalf("missing artifact, have %v", sink.items)
	}
	if !strings.Contains(out, "Hello[ES]") || strings.Contains(out, "[FR]") {
		t.Errorf("artifact has wrong translation:\n%s", out)
	}
	if !strings.Contains(sink.items["ep2_fr_gemini.ttml"], "Goodbye[FR]") {
		t.Error("French artifact not translated")
	}
}

func TestRunnerRejectsNonTTML(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "page.ttml")
	writeFile(t, path, `<html><body><p>hi</p></body></html>`)

	runner := NewRunner(New(&stubTranslator{}, nil), &memorySink{}, RunnerConfig{Label: "gemini"})
	res := runner.RunJob(context.Background(), Job{Path: path, Language: "es"})
	if res.Err == nil {
		t.Error("expected error for a non-TTML document")
	}
}

func TestRunnerWritesLocally(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "ep1.ttml")
	writeFile(t, in, sampleTTML)
	outDir := filepath.Join(root, "translated_outputs_translateLLM")

	runner := NewRunner(New(&stubTranslator{}, nil), storage.NewLocalSink(outDir), RunnerConfig{
		Label: "translateLLM",
	})
	summary, err := runner.Run(context.Background(), []string{in}, []string{"tr"})
	if err != nil || summary.Succeeded != 1 {
		t.Fatalf("Run() = %+v, %v", summary, err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "ep1_tr_translateLLM.ttml"))
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !strings.Contains(string(data), "World[TR]") {
		t.Errorf("output not translated:\n%s", data)
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "ep1.ttml")
	writeFile(t, in, sampleTTML)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(New(&stubTranslator{}, nil), &memorySink{}, RunnerConfig{Label: "gemini"})
	if _, err := runner.Run(ctx, []string{in}, []string{"es", "fr"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunnerWithNothingToDo(t *testing.T) {
	runner := NewRunner(New(&stubTranslator{}, nil), &memorySink{}, RunnerConfig{})
	summary, err := runner.Run(context.Background(), nil, []string{"es"})
	if err != nil || summary.Files != 0 || len(summary.Results) != 0 {
		t.Errorf("Run() = %+v, %v", summary, err)
	}
}
