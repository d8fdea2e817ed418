package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mgpai22/ttmltr/internal/config"
	"github.com/mgpai22/ttmltr/internal/logging"
)

var (
	verbose bool
	envFile string
	logger  *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ttmltr",
	Short: "Structure-preserving TTML subtitle translation",
	Long: `ttmltr translates TTML subtitle files into other languages while
leaving timing, styling, regions and markup untouched. Only the text
inside cue spans changes.

Lines are sent to the engine in batches. A batch that fails or comes back
misaligned is split in half and retried, down to single lines, so one bad
cue never loses the rest of the file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)
		if envFile != "" {
			return config.LoadDotEnv(envFile)
		}
		return config.LoadDotEnv()
	},
}

func Execute() error {
	defer func() {
		if logger != nil {
			logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	flags.StringVar(&envFile, "env-file", "", "Load environment from this file (default: ./.env if present)")
	addEngineFlags(flags)
}

// flags shared by every command that translates
func addEngineFlags(flags *pflag.FlagSet) {
	flags.StringP("engine", "e", "gemini", "Translation engine (gemini, translate, translateLLM, openai, anthropic)")
	flags.String("model", "", "Model to use (engine-specific, uses sensible defaults)")
	flags.StringP("source-language", "s", "", "Source language code (optional)")
	flags.StringP("api-key", "k", "", "API key (or set GEMINI_API_KEY/OPENAI_API_KEY/ANTHROPIC_API_KEY)")
	flags.String("project", "", "Google Cloud project (overrides PROJECT_ID)")
	flags.String("bucket", "", "Cloud Storage bucket for results (overrides BUCKET_NAME)")
	flags.Int("batch-items", 0, "Maximum lines per request (default depends on engine)")
	flags.Int("batch-chars", 0, "Maximum characters per request (default depends on engine)")
	flags.Int("concurrency", 1, "Number of files/languages translated in parallel")
	flags.StringP("out-dir", "o", "", "Local output directory (default translated_outputs_{engine})")
	flags.Bool("no-upload", false, "Keep results local instead of uploading to Cloud Storage")
	flags.String("cache", "", "SQLite translation cache path (disabled when empty)")
}
