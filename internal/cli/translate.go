package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var translateCmd = &cobra.Command{
	Use:   "translate <file.ttml>",
	Short: "Translate a single TTML file",
	Long: `Translate the cue text of one TTML file into one or more languages.

Examples:
  ttmltr translate episode.ttml --lang es
  ttmltr translate episode.ttml --lang es,fr,de --engine openai --no-upload
  ttmltr translate episode.ttml --lang ja -e translateLLM --cache .ttmltr/cache.db`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringP("lang", "l", "", "Target language codes, comma separated (required)")
	translateCmd.MarkFlagRequired("lang")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	info, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, use the batch command", inputPath)
	}

	cfg, err := loadConfig(cmd, commandDefaults{})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Infow("Translating subtitles",
		"input", inputPath,
		"engine", cfg.Engine,
		"languages", cfg.Languages,
	)

	return runJobs(cmd, cfg, []string{inputPath})
}
