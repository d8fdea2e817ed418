package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mgpai22/ttmltr/internal/logging"
	"github.com/mgpai22/ttmltr/internal/storage"
	"github.com/mgpai22/ttmltr/internal/ttml"
)

// Job is one (file, language) pair.
type Job struct {
	Path     string
	Language string
}

type JobResult struct {
	Job
	Output   string // artifact name
	URI      string // where the sink put it
	Result   Result
	Err      error
	Duration time.Duration
}

type Summary struct {
	Files     int
	Succeeded int
	Failed    int
	Results   []JobResult // in job order
}

type RunnerConfig struct {
	Label       string // engine label used in artifact names
	Concurrency int
	Logger      *logging.Logger
}

// Runner fans files out over target languages. Every job parses its own
// copy of the document, so jobs never share a tree.
type Runner struct {
	pipeline    *Pipeline
	sink        storage.Sink
	label       string
	concurrency int
	logger      *logging.Logger
}

func NewRunner(p *Pipeline, sink storage.Sink, cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		pipeline:    p,
		sink:        sink,
		label:       cfg.Label,
		concurrency: concurrency,
		logger:      logger,
	}
}

// OutputName builds {stem}_{lang}_{label}{ext}, keeping the input's
// extension (".ttml" when it has none).
func OutputName(path, language, label string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".ttml"
	}
	return fmt.Sprintf("%s_%s_%s%s", stem, language, label, ext)
}

// Jobs expands files × languages, file-major.
func Jobs(files, languages []string) []Job {
	jobs := make([]Job, 0, len(files)*len(languages))
	for _, f := range files {
		for _, lang := range languages {
			jobs = append(jobs, Job{Path: f, Language: lang})
		}
	}
	return jobs
}

// Run processes every job. A failed job is logged and counted; the run
// goes on. The only error returned is the context's.
func (r *Runner) Run(ctx context.Context, files, languages []string) (Summary, error) {
	jobs := Jobs(files, languages)
	summary := Summary{Files: len(files), Results: make([]JobResult, len(jobs))}
	if len(jobs) == 0 {
		return summary, nil
	}

	type indexed struct {
		Index  int
		Result JobResult
	}

	workChan := make(chan int)
	resultChan := make(chan indexed, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < r.concurrency && i < len(jobs); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workChan {
				resultChan <- indexed{Index: idx, Result: r.RunJob(ctx, jobs[idx])}
			}
		}()
	}

	go func() {
		defer close(workChan)
		for i := range jobs {
			select {
			case <-ctx.Done():
				return
			case workChan <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	done := 0
	for res := range resultChan {
		summary.Results[res.Index] = res.Result
		done++
		if res.Result.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if done != len(jobs) {
		return summary, fmt.Errorf("only %d of %d jobs completed", done, len(jobs))
	}
	return summary, nil
}

// RunJob translates one file into one language and hands the artifact to
// the sink.
func (r *Runner) RunJob(ctx context.Context, job Job) JobResult {
	start := time.Now()
	res := JobResult{Job: job, Output: OutputName(job.Path, job.Language, r.label)}
	logger := r.logger.With("file", filepath.Base(job.Path), "lang", job.Language)

	res.Err = r.runJob(ctx, &res)
	res.Duration = time.Since(start)

	if res.Err != nil {
		logger.Errorw("Job failed", "error", res.Err)
		return res
	}
	logger.Infow("Translated",
		"output", res.Output,
		"lines", res.Result.Lines,
		"skipped", len(res.Result.Skipped),
		"uri", res.URI,
		"duration", res.Duration.Round(time.Millisecond),
	)
	return res
}

func (r *Runner) runJob(ctx context.Context, res *JobResult) error {
	doc, err := ttml.ParseFile(res.Path)
	if err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	result, err := r.pipeline.TranslateDocument(ctx, doc, res.Language)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	res.Result = result

	uri, err := r.sink.Put(ctx, res.Output, doc.Bytes())
	if err != nil {
		return err
	}
	res.URI = uri
	return nil
}

// Discover lists regular files under root whose base name matches
// pattern, sorted. Recursive walks subdirectories too.
func Discover(root, pattern string, recursive bool) ([]string, error) {
	if pattern == "" {
		pattern = "*.ttml"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("input directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path is not a directory: %s", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
