package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
)

var knownLanguages = map[string]bool{"c": true, "cpp": true, "go": true}

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", cfg.Version)
	}
	if cfg.Version > 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateCache(cfg *Config) error {
	if cfg.Cache.Expiration < 0 {
		return fmt.Errorf("cache.expiration must not be negative, got %s", cfg.Cache.Expiration)
	}
	if cfg.Cache.CheckInterval < 0 {
		return fmt.Errorf("cache.check_interval must not be negative, got %s", cfg.Cache.CheckInterval)
	}
	if cfg.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must be >= 0, got %d", cfg.Cache.MaxEntries)
	}
	return nil
}

func validateCompletion(cfg *Config) error {
	if cfg.Completion.MaxResults < 0 {
		return fmt.Errorf("completion.max_results must be >= 0, got %d", cfg.Completion.MaxResults)
	}
	return nil
}

func validateFrontend(cfg *Config) error {
	if cfg.Frontend.MaxIncludeDepth < 1 {
		return fmt.Errorf("frontend.max_include_depth must be >= 1, got %d", cfg.Frontend.MaxIncludeDepth)
	}
	if cfg.Frontend.MaxIncludeFiles < 1 {
		return fmt.Errorf("frontend.max_include_files must be >= 1, got %d", cfg.Frontend.MaxIncludeFiles)
	}
	return nil
}

func validateLanguages(cfg *Config) error {
	owner := make(map[string]string)
	for language, settings := range cfg.Languages {
		if !knownLanguages[language] {
			return fmt.Errorf("languages.%s is not supported; use one of: c, cpp, go", language)
		}
		if len(settings.Extensions) == 0 {
			return fmt.Errorf("languages.%s.extensions must not be empty", language)
		}
		for _, ext := range settings.Extensions {
			if ext == "" {
				return fmt.Errorf("languages.%s.extensions must not include empty values", language)
			}
			if prev, ok := owner[ext]; ok && prev != language {
				return fmt.Errorf("extension %q is claimed by both languages.%s and languages.%s", ext, prev, language)
			}
			owner[ext] = language
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", cfg.Watch.Debounce)
	}
	for i, p := range cfg.Watch.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("watch.paths[%d] must not be empty", i)
		}
	}
	if _, err := CompileGlobs(cfg.Watch.ExcludeDirs, "watch.exclude_dirs"); err != nil {
		return err
	}
	if _, err := CompileGlobs(cfg.Watch.ExcludeFiles, "watch.exclude_files"); err != nil {
		return err
	}
	return nil
}

func validateWarmup(cfg *Config) error {
	if cfg.Warmup.Rate <= 0 {
		return fmt.Errorf("warmup.rate must be > 0, got %g", cfg.Warmup.Rate)
	}
	if cfg.Warmup.Burst < 1 {
		return fmt.Errorf("warmup.burst must be >= 1, got %d", cfg.Warmup.Burst)
	}
	if cfg.Warmup.Concurrency < 1 {
		return fmt.Errorf("warmup.concurrency must be >= 1, got %d", cfg.Warmup.Concurrency)
	}
	return nil
}

func validateLog(cfg *Config) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be one of: text, json")
	}
	return nil
}

// CompileGlobs compiles exclusion patterns, naming the offending key on error.
func CompileGlobs(patterns []string, key string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for i, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%s[%d] %q: %w", key, i, pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Validate reports problems that do not stop loading, such as watch paths
// that do not exist yet.
func Validate(cfg *Config) []error {
	var errs []error
	if cfg.Watch.Enabled {
		for i, p := range cfg.Watch.Paths {
			info, err := os.Stat(p)
			if err != nil {
				errs = append(errs, fmt.Errorf("watch.paths[%d] %q does not exist", i, p))
				continue
			}
			if !info.IsDir() {
				errs = append(errs, fmt.Errorf("watch.paths[%d] %q is not a directory", i, p))
			}
		}
	}
	if cfg.Cache.Expiration > 0 && cfg.Cache.CheckInterval > cfg.Cache.Expiration {
		errs = append(errs, fmt.Errorf("cache.check_interval %s exceeds cache.expiration %s; idle units may outlive their expiration",
			cfg.Cache.CheckInterval, cfg.Cache.Expiration))
	}
	for i, arg := range cfg.Arguments {
		if strings.TrimSpace(arg) == "" {
			errs = append(errs, fmt.Errorf("arguments[%d] is empty", i))
		}
	}
	return errs
}
