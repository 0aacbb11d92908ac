package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/spoon/internal/runtime"
)

var renderCmd = &cobra.Command{
	Use:     "render <template>",
	Aliases: []string{"r"},
	Short:   "Render a template to stdout",
	Long: `Render a template, compiling it first when its cached unit is missing or
stale. Variables come from a YAML or JSON data file and --set overrides.

Examples:
  spoon render templates/hello.tpl --set name=World
  spoon render templates/page.tpl --data page.yaml
  spoon render templates/page.tpl -d page.json -s user.name=Ada`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var (
	renderData string
	renderSet  map[string]string
)

func init() {
	rootCmd.AddCommand(renderCmd)
	AddTemplateFlags(renderCmd)

	renderCmd.Flags().StringVarP(&renderData, "data", "d", "", "YAML or JSON file with template variables")
	renderCmd.Flags().StringToStringVarP(&renderSet, "set", "s", nil, "Set a variable (key=value, dotted keys nest)")
}

func runRender(cmd *cobra.Command, args []string) error {
	eng, _, _, err := setup(cmd)
	if err != nil {
		return err
	}

	vars, err := ParseVars(renderData, renderSet)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	r, err := eng.Load(ctx, args[0])
	if err != nil {
		return err
	}
	return runtime.Component(r, vars).Render(ctx, cmd.OutOrStdout())
}
