package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AddTemplateFlags registers the flags shared by commands that compile
// templates and binds them to their configuration keys when cmd runs.
func AddTemplateFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringP("root", "r", "", "Template root directory")
	fs.String("cache-dir", "", "Directory compiled units are written to")
	fs.BoolP("force", "f", false, "Recompile even when the cache is fresh")

	bindOnRun(cmd, map[string]string{
		"root":      "templates.root",
		"cache-dir": "cache.dir",
		"force":     "cache.force_compile",
	})
}

// bindOnRun binds flags to configuration keys just before cmd runs, so
// commands sharing a flag name do not steal each other's binding.
func bindOnRun(cmd *cobra.Command, keys map[string]string) {
	prev := cmd.PreRunE
	cmd.PreRunE = func(c *cobra.Command, args []string) error {
		if prev != nil {
			if err := prev(c, args); err != nil {
				return err
			}
		}
		bindFlags(c.Flags(), keys)
		return nil
	}
}

// bindFlags binds each named flag to a configuration key.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if flag := fs.Lookup(name); flag != nil {
			_ = viper.BindPFlag(key, flag)
		}
	}
}

// ValidateFormat checks an output format flag.
func ValidateFormat(format string, valid []string) error {
	if slices.Contains(valid, format) {
		return nil
	}
	return fmt.Errorf("invalid format %q, valid formats: %s", format, strings.Join(valid, ", "))
}

// ParseVars builds template variables from an optional YAML or JSON data
// file and key=value overrides. Override values are decoded as YAML scalars
// so numbers and booleans keep their type. Overrides apply in key order.
func ParseVars(dataFile string, overrides map[string]string) (map[string]any, error) {
	vars := make(map[string]any)

	if dataFile != "" {
		content, err := os.ReadFile(dataFile)
		if err != nil {
			return nil, fmt.Errorf("reading data file: %w", err)
		}
		if err := yaml.Unmarshal(content, &vars); err != nil {
			return nil, fmt.Errorf("parsing data file %s: %w", dataFile, err)
		}
		if vars == nil {
			vars = make(map[string]any)
		}
	}

	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		raw := overrides[key]
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		setPath(vars, strings.Split(key, "."), value)
	}
	return vars, nil
}

// setPath assigns value at a dotted path, creating nested maps as needed.
func setPath(vars map[string]any, path []string, value any) {
	for _, key := range path[:len(path)-1] {
		next, ok := vars[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			vars[key] = next
		}
		vars = next
	}
	vars[path[len(path)-1]] = value
}
