package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgpai22/ttmltr/internal/ttml"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.ttml>",
	Short: "Show the translatable structure of a TTML file",
	Long: `Parse a TTML file and report what a translation run would touch:
cue containers, spans, line breaks and text slots.

Examples:
  ttmltr inspect episode.ttml
  ttmltr inspect episode.ttml --lines`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().Bool("lines", false, "Print every translatable line")
}

func runInspect(cmd *cobra.Command, args []string) error {
	doc, err := ttml.ParseFile(args[0])
	if err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	st, err := doc.Stats()
	if err != nil {
		return err
	}

	lang := st.Language
	if lang == "" {
		lang = "(unset)"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:        %s\n", args[0])
	fmt.Fprintf(out, "Language:    %s\n", lang)
	fmt.Fprintf(out, "Containers:  %d\n", st.Containers)
	fmt.Fprintf(out, "Spans:       %d\n", st.Spans)
	fmt.Fprintf(out, "Line breaks: %d\n", st.LineBreaks)
	fmt.Fprintf(out, "Text slots:  %d\n", st.Locations)
	fmt.Fprintf(out, "Blank cues:  %d\n", st.BlankUnits)

	showLines, _ := cmd.Flags().GetBool("lines")
	if !showLines {
		return nil
	}

	fmt.Fprintln(out)
	for i, unit := range doc.Extract() {
		for _, line := range unit.Lines() {
			fmt.Fprintf(out, "%4d  %s\n", i+1, line)
		}
	}
	return nil
}
