package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/spoon/internal/build"
	"github.com/conneroisu/spoon/internal/errors"
)

var compileCmd = &cobra.Command{
	Use:     "compile [templates...]",
	Aliases: []string{"c"},
	Short:   "Compile templates into cached units",
	Long: `Compile the given templates, or every template under the root, and write
their units to the cache directory. Every failure is reported and the command
exits non-zero if any template failed.

Examples:
  spoon compile                       # Compile everything under the root
  spoon compile templates/page.tpl    # Compile one template
  spoon compile --cache-dir build/    # Write units somewhere else
  spoon compile -j 8 --incremental    # Parallel, skipping current units`,
	RunE: runCompile,
}

var compileIncremental bool

func init() {
	rootCmd.AddCommand(compileCmd)
	AddTemplateFlags(compileCmd)

	compileCmd.Flags().IntP("jobs", "j", 0, "Templates compiled at once (0 uses one per CPU)")
	compileCmd.Flags().BoolVar(&compileIncremental, "incremental", false, "Skip templates whose cached unit is current")
	bindOnRun(compileCmd, map[string]string{"jobs": "build.jobs"})
}

func runCompile(cmd *cobra.Command, args []string) error {
	eng, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	sources := args
	if len(sources) == 0 {
		if sources, err = eng.Sources(); err != nil {
			return err
		}
	}

	pipeline := build.NewPipeline(eng,
		build.WithWorkers(cfg.Build.Jobs),
		build.WithIncremental(compileIncremental),
		build.WithLogger(logger),
	)

	out := cmd.OutOrStdout()
	collector := errors.NewCollector()
	for _, result := range pipeline.Run(cmd.Context(), sources) {
		switch {
		case result.Err != nil:
			collector.Add(result.Source, result.Err)
		case result.Fresh:
			fmt.Fprintf(out, "%s -> %s (current)\n", result.Source, result.Dest)
		default:
			fmt.Fprintf(out, "%s -> %s\n", result.Source, result.Dest)
		}
	}

	m := pipeline.Metrics()
	logger.Info(cmd.Context(), "Compilation finished",
		"compiled", m.Compiled, "current", m.Fresh, "failed", m.Failed, "duration", m.TotalDuration)

	if !collector.HasErrors() {
		return nil
	}
	for _, f := range collector.Failures() {
		fmt.Fprintln(cmd.ErrOrStderr(), f.Err)
	}
	return fmt.Errorf("%d of %d templates failed to compile", collector.Len(), len(sources))
}
