// Package config resolves run settings from the environment once at
// startup. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mgpai22/ttmltr/internal/translate"
)

const (
	DefaultRegion       = "us-central1"
	DefaultOutputPrefix = "output"
	DefaultLanguages    = "en,de,fr-fr,pt-br,es-419,es-es,tr"
)

type Config struct {
	ProjectID    string
	Region       string
	Bucket       string
	InputPrefix  string
	OutputPrefix string

	GeminiAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	Engine         string
	Model          string
	SourceLanguage string
	Languages      []string

	BatchItems  int
	BatchChars  int
	Concurrency int

	OutDir    string // empty means translated_outputs_{engine label}
	CachePath string
	Upload    bool
}

// LookupFunc has the shape of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnv reads the environment through lookup. Nil uses os.LookupEnv.
func FromEnv(lookup LookupFunc) Config {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := get(k); v != "" {
				return v
			}
		}
		return ""
	}

	cfg := Config{
		ProjectID:       first("PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT"),
		Region:          first("GCP_REGION"),
		Bucket:          expand(get("BUCKET_NAME"), get),
		InputPrefix:     strings.Trim(get("INPUT_FOLDER"), "/"),
		OutputPrefix:    strings.Trim(get("OUTPUT_FOLDER"), "/"),
		GeminiAPIKey:    get("GEMINI_API_KEY"),
		OpenAIAPIKey:    get("OPENAI_API_KEY"),
		AnthropicAPIKey: get("ANTHROPIC_API_KEY"),
		Engine:          string(translate.ProviderGemini),
		Concurrency:     1,
		Upload:          true,
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.OutputPrefix == "" {
		cfg.OutputPrefix = DefaultOutputPrefix
	}
	return cfg
}

// expands ${VAR} and $VAR references
func expand(s string, get func(string) string) string {
	if s == "" {
		return ""
	}
	return os.Expand(s, get)
}

// LoadDotEnv loads variables from env files without overriding ones that
// are already set. With no paths a missing ./.env is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		paths = []string{".env"}
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ParseLanguages splits a comma-separated list, dropping empty entries.
func ParseLanguages(spec string) []string {
	var langs []string
	for _, part := range strings.Split(spec, ",") {
		if lang := strings.TrimSpace(part); lang != "" {
			langs = append(langs, lang)
		}
	}
	return langs
}

// ConfigError lists every problem found by Validate.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (c Config) Provider() (translate.Provider, error) {
	return translate.ParseProvider(c.Engine)
}

// APIKey returns the key for the configured engine, if it uses one.
func (c Config) APIKey() string {
	switch translate.Provider(c.Engine) {
	case translate.ProviderGemini:
		return c.GeminiAPIKey
	case translate.ProviderOpenAI:
		return c.OpenAIAPIKey
	case translate.ProviderAnthropic:
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

// Label is the engine label used for output names and the default
// output directory.
func (c Config) Label() string {
	return translate.Provider(c.Engine).Label()
}

func (c Config) LocalDir() string {
	if c.OutDir != "" {
		return c.OutDir
	}
	return "translated_outputs_" + c.Label()
}

func (c Config) Limits() translate.Limits {
	limits := translate.Provider(c.Engine).DefaultLimits()
	if c.BatchItems > 0 {
		limits.MaxItems = c.BatchItems
	}
	if c.BatchChars > 0 {
		limits.MaxChars = c.BatchChars
	}
	return limits
}

func (c Config) TranslateOptions() translate.Options {
	return translate.Options{
		SourceLanguage: c.SourceLanguage,
		Model:          c.Model,
		ProjectID:      c.ProjectID,
		Region:         c.Region,
	}
}

// Hints carries the source language and model with every batch request.
func (c Config) Hints() translate.Hints {
	return translate.Hints{
		SourceLanguage: c.SourceLanguage,
		Model:          c.Model,
	}
}

// Validate checks everything a run needs before any document is read.
// The returned error is a *ConfigError.
func (c Config) Validate() error {
	problems := c.engineProblems()
	if len(c.Languages) == 0 {
		problems = append(problems, "no target languages provided")
	}

	if c.Upload {
		if c.Bucket == "" {
			problems = append(problems, "BUCKET_NAME must be set to upload results")
		}
		if c.ProjectID == "" && !c.usesGoogleCloud() {
			problems = append(problems, "PROJECT_ID must be set to upload results")
		}
	}
	if c.Concurrency < 1 {
		problems = append(problems, "concurrency must be at least 1")
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// ValidateEngine checks only what is needed to build a translator, for
// callers that choose languages and storage per request.
func (c Config) ValidateEngine() error {
	if problems := c.engineProblems(); len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

func (c Config) engineProblems() []string {
	var problems []string

	provider, err := c.Provider()
	switch {
	case err != nil:
		problems = append(problems, err.Error())
	case provider.UsesGoogleCloud():
		if c.ProjectID == "" {
			problems = append(problems, "PROJECT_ID must be set for the "+c.Engine+" engine")
		}
	case provider == translate.ProviderGemini:
		if c.GeminiAPIKey == "" && c.ProjectID == "" {
			problems = append(problems, "GEMINI_API_KEY or PROJECT_ID must be set for the gemini engine")
		}
	default:
		if c.APIKey() == "" {
			problems = append(problems, provider.APIKeyEnv()+" must be set for the "+c.Engine+" engine")
		}
	}

	if c.BatchItems < 0 || c.BatchChars < 0 {
		problems = append(problems, "batch limits must not be negative")
	}
	return problems
}

// the project problem is already reported for Google Cloud engines
func (c Config) usesGoogleCloud() bool {
	provider, err := c.Provider()
	return err == nil && provider.UsesGoogleCloud()
}
