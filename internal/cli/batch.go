package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgpai22/ttmltr/internal/config"
	"github.com/mgpai22/ttmltr/internal/pipeline"
	"github.com/mgpai22/ttmltr/internal/translate"
)

var batchCmd = &cobra.Command{
	Use:   "batch [dir]",
	Short: "Translate every TTML file in a folder",
	Long: `Translate every matching file in a folder into each target language.
Results are written locally and, unless --no-upload is given, uploaded to
gs://$BUCKET_NAME/$OUTPUT_FOLDER/.

The folder defaults to $INPUT_FOLDER, then the current directory. Target
languages default to ` + config.DefaultLanguages + ` and the engine to
translateLLM.

Examples:
  ttmltr batch ./subs
  ttmltr batch ./subs --lang es,fr --engine gemini --concurrency 4
  ttmltr batch ./subs --recursive --pattern "*.xml" --no-upload`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringP("lang", "l", "", "Target language codes, comma separated")
	batchCmd.Flags().String("pattern", "*.ttml", "File name pattern to match")
	batchCmd.Flags().BoolP("recursive", "r", false, "Descend into subfolders")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, commandDefaults{
		Engine:    string(translate.ProviderTranslateLLM),
		Languages: config.DefaultLanguages,
	})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := "."
	switch {
	case len(args) > 0:
		dir = args[0]
	case cfg.InputPrefix != "":
		dir = cfg.InputPrefix
	}

	pattern, _ := cmd.Flags().GetString("pattern")
	recursive, _ := cmd.Flags().GetBool("recursive")

	files, err := pipeline.Discover(dir, pattern, recursive)
	if err != nil {
		return fmt.Errorf("failed to list input files: %w", err)
	}
	if len(files) == 0 {
		logger.Warnw("No files matched", "dir", dir, "pattern", pattern)
		return nil
	}

	logger.Infow("Found input files", "dir", dir, "count", len(files))
	return runJobs(cmd, cfg, files)
}
