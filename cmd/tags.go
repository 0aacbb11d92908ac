package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/spoon/internal/runtime"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List available template tags and modifiers",
	Long: `List the block tags the compiler understands and the modifiers available
in {{ value|modifier }} expressions.

Examples:
  spoon tags
  spoon tags --format json`,
	RunE: runTags,
}

var tagsFormat string

func init() {
	rootCmd.AddCommand(tagsCmd)
	tagsCmd.Flags().StringVar(&tagsFormat, "format", "text", "Output format (text, json)")
}

func runTags(cmd *cobra.Command, args []string) error {
	if err := ValidateFormat(tagsFormat, []string{"text", "json"}); err != nil {
		return err
	}

	eng, _, _, err := setup(cmd)
	if err != nil {
		return err
	}
	tags := eng.Registry().Names()
	modifiers := runtime.Modifiers()

	out := cmd.OutOrStdout()
	if tagsFormat == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string][]string{
			"tags":      tags,
			"modifiers": modifiers,
		})
	}

	fmt.Fprintln(out, "Tags:")
	for _, tag := range tags {
		fmt.Fprintf(out, "  {%% %s %%}\n", tag)
	}
	fmt.Fprintln(out, "Modifiers:")
	for _, m := range modifiers {
		fmt.Fprintf(out, "  |%s\n", m)
	}
	return nil
}
