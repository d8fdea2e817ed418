package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mgpai22/ttmltr/internal/cache"
	"github.com/mgpai22/ttmltr/internal/config"
	"github.com/mgpai22/ttmltr/internal/logging"
	"github.com/mgpai22/ttmltr/internal/pipeline"
	"github.com/mgpai22/ttmltr/internal/storage"
	"github.com/mgpai22/ttmltr/internal/translate"
)

// settings that differ between commands when the flag is not given
type commandDefaults struct {
	Engine    string
	Languages string
}

// loadConfig resolves the environment, then applies flags on top.
func loadConfig(cmd *cobra.Command, defaults commandDefaults) (config.Config, error) {
	cfg := config.FromEnv(os.LookupEnv)
	flags := cmd.Flags()

	cfg.Engine, _ = flags.GetString("engine")
	if !flags.Changed("engine") && defaults.Engine != "" {
		cfg.Engine = defaults.Engine
	}

	langSpec := defaults.Languages
	if flags.Lookup("lang") != nil && flags.Changed("lang") {
		langSpec, _ = flags.GetString("lang")
	}
	cfg.Languages = config.ParseLanguages(langSpec)

	cfg.Model, _ = flags.GetString("model")
	cfg.SourceLanguage, _ = flags.GetString("source-language")
	cfg.BatchItems, _ = flags.GetInt("batch-items")
	cfg.BatchChars, _ = flags.GetInt("batch-chars")
	cfg.Concurrency, _ = flags.GetInt("concurrency")
	cfg.OutDir, _ = flags.GetString("out-dir")
	cfg.CachePath, _ = flags.GetString("cache")

	noUpload, _ := flags.GetBool("no-upload")
	cfg.Upload = !noUpload

	if project, _ := flags.GetString("project"); project != "" {
		cfg.ProjectID = project
	}
	if bucket, _ := flags.GetString("bucket"); bucket != "" {
		cfg.Bucket = bucket
	}
	if apiKey, _ := flags.GetString("api-key"); apiKey != "" {
		switch translate.Provider(cfg.Engine) {
		case translate.ProviderGemini:
			cfg.GeminiAPIKey = apiKey
		case translate.ProviderOpenAI:
			cfg.OpenAIAPIKey = apiKey
		case translate.ProviderAnthropic:
			cfg.AnthropicAPIKey = apiKey
		}
	}

	if cfg.SourceLanguage != "" {
		for _, lang := range cfg.Languages {
			if lang == cfg.SourceLanguage {
				return cfg, fmt.Errorf(
					"source language %q and target language %q cannot be the same",
					cfg.SourceLanguage,
					lang,
				)
			}
		}
	}

	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c *closers) add(fn func() error) {
	*c = append(*c, fn)
}

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildTranslator creates the engine backend, wraps it with the cache when
// configured and with the bisecting Translator.
func buildTranslator(
	ctx context.Context,
	cfg config.Config,
	log *logging.Logger,
	cleanup *closers,
) (*translate.Translator, error) {
	provider, err := cfg.Provider()
	if err != nil {
		return nil, err
	}

	backend, err := translate.Factory(ctx, provider, cfg.APIKey(), cfg.TranslateOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create translator: %w", err)
	}
	if closer, ok := backend.(io.Closer); ok {
		cleanup.add(closer.Close)
	}

	if cfg.CachePath != "" {
		store, err := cache.Open(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		cleanup.add(store.Close)
		// Cached adds the source language and model from the hints
		backend = translate.NewCached(backend, store, string(provider))
		log.Debugw("Translation cache enabled", "path", cfg.CachePath)
	}

	return translate.NewTranslator(backend, translate.Config{
		Limits: cfg.Limits(),
		Hints:  cfg.Hints(),
		Logger: log,
	}), nil
}

// buildSink keeps a local copy and, unless uploads are off, sends it to
// Cloud Storage as well.
func buildSink(ctx context.Context, cfg config.Config, cleanup *closers) (storage.Sink, error) {
	local := storage.NewLocalSink(cfg.LocalDir())
	if !cfg.Upload {
		return local, nil
	}

	gcs, err := storage.NewGCSSink(ctx, storage.GCSConfig{
		ProjectID: cfg.ProjectID,
		Bucket:    cfg.Bucket,
		Prefix:    cfg.OutputPrefix,
		Region:    cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	cleanup.add(gcs.Close)
	return storage.MultiSink{local, gcs}, nil
}

// runJobs translates files into every configured language and prints a
// summary. Failed jobs do not stop the run but make the command fail.
func runJobs(cmd *cobra.Command, cfg config.Config, files []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	runLogger := logger.With("run", uuid.New().String(), "engine", cfg.Label())

	var cleanup closers
	defer func() {
		if err := cleanup.Close(); err != nil {
			runLogger.Warnw("Cleanup failed", "error", err)
		}
	}()

	tr, err := buildTranslator(ctx, cfg, runLogger, &cleanup)
	if err != nil {
		return err
	}
	sink, err := buildSink(ctx, cfg, &cleanup)
	if err != nil {
		return err
	}

	runLogger.Infow("Starting translation",
		"files", len(files),
		"languages", cfg.Languages,
		"concurrency", cfg.Concurrency,
		"upload", cfg.Upload,
	)

	runner := pipeline.NewRunner(pipeline.New(tr, runLogger), sink, pipeline.RunnerConfig{
		Label:       cfg.Label(),
		Concurrency: cfg.Concurrency,
		Logger:      runLogger,
	})
	summary, err := runner.Run(ctx, files, cfg.Languages)

	st := tr.Stats()
	runLogger.Infow("Backend activity",
		"calls", st.Calls,
		"bisections", st.Bisections,
		"single_line", st.SingleLine,
		"pass_through", st.PassThrough,
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, res := range summary.Results {
		if res.Err != nil {
			fmt.Fprintf(out, "[ERROR] Failed %s lang=%s: %v\n", res.Path, res.Language, res.Err)
			continue
		}
		fmt.Fprintf(out, "[%s] %s -> %s (%d lines) | %s\n",
			cfg.Label(), res.Path, res.Output, res.Result.Lines, res.URI)
	}
	fmt.Fprintf(out, "\nDone. %d succeeded, %d failed across %d file(s).\n",
		summary.Succeeded, summary.Failed, summary.Files)

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", summary.Failed, summary.Failed+summary.Succeeded)
	}
	return nil
}
