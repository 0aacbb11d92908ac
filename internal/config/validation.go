package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/spoon/internal/errors"
	"github.com/conneroisu/spoon/internal/logging"
)

// ValidationError describes one invalid configuration value.
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// Validate checks cfg and returns a config error describing every problem.
func Validate(cfg *Config) error {
	return validateConfig(cfg)
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	var problems []*ValidationError
	problems = append(problems, validateTemplatesConfig(&config.Templates)...)
	problems = append(problems, validateCacheConfig(&config.Cache)...)
	problems = append(problems, validateLogConfig(&config.Log)...)
	if config.Watch.Debounce < 0 {
		problems = append(problems, &ValidationError{
			Field:   "watch.debounce",
			Value:   config.Watch.Debounce,
			Message: "must not be negative",
		})
	}
	if config.Build.Jobs < 0 {
		problems = append(problems, &ValidationError{
			Field:       "build.jobs",
			Value:       config.Build.Jobs,
			Message:     "must not be negative",
			Suggestions: []string{"0"},
		})
	}
	if len(problems) == 0 {
		return nil
	}

	msgs := make([]string, len(problems))
	for i, p := range problems {
		msgs[i] = p.Error()
	}
	err := errors.NewConfigError(errors.ErrCodeConfigInvalid, strings.Join(msgs, "; "))
	for _, p := range problems {
		if len(p.Suggestions) > 0 {
			err = err.WithContext(p.Field, strings.Join(p.Suggestions, ", "))
		}
	}
	return err
}

func validateTemplatesConfig(config *TemplatesConfig) []*ValidationError {
	var problems []*ValidationError
	if err := validatePath(config.Root); err != nil {
		problems = append(problems, &ValidationError{
			Field:   "templates.root",
			Value:   config.Root,
			Message: err.Error(),
		})
	}
	if len(config.Extensions) == 0 {
		problems = append(problems, &ValidationError{
			Field:       "templates.extensions",
			Value:       config.Extensions,
			Message:     "at least one extension is required",
			Suggestions: DefaultExtensions,
		})
	}
	for _, ext := range config.Extensions {
		if !strings.HasPrefix(ext, ".") || strings.ContainsAny(ext, `/\`) {
			problems = append(problems, &ValidationError{
				Field:       "templates.extensions",
				Value:       ext,
				Message:     fmt.Sprintf("extension %q must start with a dot and contain no separators", ext),
				Suggestions: []string{"." + strings.Trim(ext, `./\`)},
			})
		}
	}
	return problems
}

// validateCacheConfig rejects cache directories that escape the project.
func validateCacheConfig(config *CacheConfig) []*ValidationError {
	cleanPath := filepath.Clean(config.Dir)

	// Reject path traversal attempts
	for _, part := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if part == ".." {
			return []*ValidationError{{
				Field:       "cache.dir",
				Value:       config.Dir,
				Message:     "contains path traversal",
				Suggestions: []string{DefaultCacheDir},
			}}
		}
	}
	if err := validatePath(config.Dir); err != nil {
		return []*ValidationError{{Field: "cache.dir", Value: config.Dir, Message: err.Error()}}
	}
	return nil
}

func validateLogConfig(config *LogConfig) []*ValidationError {
	var problems []*ValidationError
	if _, err := logging.ParseLevel(config.Level); err != nil {
		problems = append(problems, &ValidationError{
			Field:       "log.level",
			Value:       config.Level,
			Message:     err.Error(),
			Suggestions: []string{"debug", "info", "warn", "error"},
		})
	}
	switch config.Format {
	case "text", "json":
	default:
		problems = append(problems, &ValidationError{
			Field:       "log.format",
			Value:       config.Format,
			Message:     fmt.Sprintf("unknown format %q", config.Format),
			Suggestions: []string{"text", "json"},
		})
	}
	return problems
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	// Reject dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// LoggerConfig builds the logger configuration for cfg.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		lc.Level = level
	}
	lc.Format = c.Log.Format
	return lc
}
