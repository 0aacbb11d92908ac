// Package config provides configuration management for spoon using Viper
// for loading from files, environment variables and command-line flags.
//
// Configuration comes from a .spoon.yml file, SPOON_ prefixed environment
// variables and flags bound by the CLI. It covers where templates live,
// where compiled units are cached, rendering defaults, logging, the
// watcher and batch compilation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Templates TemplatesConfig `yaml:"templates" mapstructure:"templates"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Render    RenderConfig    `yaml:"render" mapstructure:"render"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	Build     BuildConfig     `yaml:"build" mapstructure:"build"`
}

type TemplatesConfig struct {
	Root       string   `yaml:"root" mapstructure:"root"`
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
}

type CacheConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	AutoReload   bool   `yaml:"auto_reload" mapstructure:"auto_reload"`
	ForceCompile bool   `yaml:"force_compile" mapstructure:"force_compile"`
}

type RenderConfig struct {
	Autoescape bool `yaml:"autoescape" mapstructure:"autoescape"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type BuildConfig struct {
	// Jobs is the number of templates compiled at once; 0 means one per CPU.
	Jobs int `yaml:"jobs" mapstructure:"jobs"`
}

// Defaults.
const (
	DefaultTemplateRoot = "templates"
	DefaultCacheDir     = ".spoon/cache"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultDebounce     = 100 * time.Millisecond
)

// DefaultExtensions are the template file extensions used when none are set.
var DefaultExtensions = []string{".tpl"}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	return &Config{
		Templates: TemplatesConfig{
			Root:       DefaultTemplateRoot,
			Extensions: append([]string(nil), DefaultExtensions...),
		},
		Cache: CacheConfig{
			Dir:        DefaultCacheDir,
			AutoReload: true,
		},
		Render: RenderConfig{Autoescape: true},
		Log:    LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Watch:  WatchConfig{Debounce: DefaultDebounce},
	}
}

// SetDefaults registers the defaults with v so environment variables can
// override keys no config file mentions.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("templates.root", d.Templates.Root)
	v.SetDefault("templates.extensions", d.Templates.Extensions)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.auto_reload", d.Cache.AutoReload)
	v.SetDefault("cache.force_compile", d.Cache.ForceCompile)
	v.SetDefault("render.autoescape", d.Render.Autoescape)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("build.jobs", d.Build.Jobs)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults and validates it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle extensions set as a comma separated env var or flag
	if v.IsSet("templates.extensions") && len(config.Templates.Extensions) == 0 {
		config.Templates.Extensions = v.GetStringSlice("templates.extensions")
	}

	// Booleans that default to true need IsSet to tell false from unset
	if !v.IsSet("cache.auto_reload") {
		config.Cache.AutoReload = true
	}
	if !v.IsSet("render.autoescape") {
		config.Render.Autoescape = true
	}

	// The root command binds --log-level at the top level
	if v.IsSet("log-level") && !v.IsSet("log.level") {
		config.Log.Level = v.GetString("log-level")
	}

	if config.Templates.Root == "" {
		config.Templates.Root = DefaultTemplateRoot
	}
	if !v.IsSet("templates.extensions") && len(config.Templates.Extensions) == 0 {
		config.Templates.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if config.Cache.Dir == "" {
		config.Cache.Dir = DefaultCacheDir
	}
	if config.Log.Level == "" {
		config.Log.Level = DefaultLogLevel
	}
	if config.Log.Format == "" {
		config.Log.Format = DefaultLogFormat
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = DefaultDebounce
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
