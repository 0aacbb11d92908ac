package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/spoon/internal/version"
)

var (
	versionFormat   string
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for spoon.

Examples:
  spoon version                 # Show short version
  spoon version --detailed      # Show detailed version info
  spoon version --format json   # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVar(&versionFormat, "format", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	if err := ValidateFormat(versionFormat, []string{"text", "json"}); err != nil {
		return err
	}

	info := version.Get()
	out := cmd.OutOrStdout()
	switch {
	case versionFormat == "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	case versionDetailed:
		fmt.Fprintln(out, info.Detailed())
	default:
		fmt.Fprintf(out, "spoon %s\n", info.Short())
	}
	return nil
}
