// Package cmd provides the command-line interface for spoon.
//
// Configuration System:
//
//	Settings are resolved from several sources, highest priority first:
//	1. Command-line flags (--config, --root, --cache-dir, ...)
//	2. SPOON_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (SPOON_CACHE_DIR, ...)
//	4. Configuration files (.spoon.yml)
//
// Environment Variables:
//
//	SPOON_CONFIG_FILE: Path to custom configuration file
//	SPOON_TEMPLATES_ROOT: Override the template root
//	SPOON_CACHE_DIR: Override the cache directory
//	And the rest following the SPOON_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/spoon/internal/config"
	"github.com/conneroisu/spoon/internal/engine"
	"github.com/conneroisu/spoon/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "spoon",
	Short: "Compile templates into cached Starlark renderers",
	Long: `Spoon compiles {{ variable }} and {% tag %} templates into Starlark units,
caches them atomically on disk and renders them.

Quick Start:
  spoon compile                   Compile every template under the root
  spoon render page.tpl -s name=World
  spoon watch                     Recompile templates as they change
  spoon tags                      List available tags and modifiers`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .spoon.yml, can also use SPOON_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig points viper at the configuration file and environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SPOON_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".spoon")
	}

	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("SPOON")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// A missing config file is fine; defaults apply
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setup loads the configuration and builds the logger and engine.
func setup(cmd *cobra.Command) (*engine.Engine, *config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	logger := logging.NewLogger(lc)

	return engine.New(cfg, engine.WithLogger(logger)), cfg, logger, nil
}
