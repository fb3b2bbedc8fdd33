package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is looked up in the project root when no path is given.
const DefaultFile = "autocomplete.toml"

type Config struct {
	Version       int                 `toml:"version"`
	Arguments     []string            `toml:"arguments"`
	Cache         Cache               `toml:"cache"`
	Completion    Completion          `toml:"completion"`
	Frontend      Frontend            `toml:"frontend"`
	Languages     map[string]Language `toml:"languages"`
	Watch         Watch               `toml:"watch"`
	Warmup        Warmup              `toml:"warmup"`
	Observability Observability       `toml:"observability"`
	Log           Log                 `toml:"log"`
}

type Cache struct {
	// Expiration of zero keeps units until they are replaced or cleared.
	Expiration    time.Duration `toml:"expiration"`
	CheckInterval time.Duration `toml:"check_interval"`
	MaxEntries    int           `toml:"max_entries"`
}

type Completion struct {
	HideInaccessible bool `toml:"hide_inaccessible"`
	MaxResults       int  `toml:"max_results"`
}

type Frontend struct {
	MaxIncludeDepth int `toml:"max_include_depth"`
	MaxIncludeFiles int `toml:"max_include_files"`
}

type Language struct {
	Extensions []string `toml:"extensions"`
}

type Watch struct {
	Enabled      bool          `toml:"enabled"`
	Paths        []string      `toml:"paths"`
	Debounce     time.Duration `toml:"debounce"`
	ExcludeDirs  []string      `toml:"exclude_dirs"`
	ExcludeFiles []string      `toml:"exclude_files"`
}

type Warmup struct {
	Rate        float64 `toml:"rate"`
	Burst       int     `toml:"burst"`
	Concurrency int     `toml:"concurrency"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg, toml.MetaData{})
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse decodes and validates a TOML document.
func Parse(data string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown configuration key %q", undecoded[0].String())
	}

	applyDefaults(&cfg, md)
	if err := Finalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize normalizes cfg and runs the checks that make a configuration
// unusable. Call it again after ApplyEnvOverrides.
func Finalize(cfg *Config) error {
	normalize(cfg)
	checks := []func(*Config) error{
		validateVersion,
		validateCache,
		validateCompletion,
		validateFrontend,
		validateLanguages,
		validateWatch,
		validateWarmup,
		validateLog,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

// applyDefaults fills unset keys. md tells an explicit zero apart from a
// missing key where zero is meaningful.
func applyDefaults(cfg *Config, md toml.MetaData) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if !md.IsDefined("cache", "expiration") {
		cfg.Cache.Expiration = 30 * time.Minute
	}
	if cfg.Cache.CheckInterval <= 0 {
		cfg.Cache.CheckInterval = 10 * time.Minute
	}
	if !md.IsDefined("cache", "max_entries") {
		cfg.Cache.MaxEntries = 64
	}

	if cfg.Frontend.MaxIncludeDepth == 0 {
		cfg.Frontend.MaxIncludeDepth = 16
	}
	if cfg.Frontend.MaxIncludeFiles == 0 {
		cfg.Frontend.MaxIncludeFiles = 512
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if len(cfg.Watch.Paths) == 0 {
		cfg.Watch.Paths = []string{"."}
	}
	if len(cfg.Watch.ExcludeDirs) == 0 && !md.IsDefined("watch", "exclude_dirs") {
		cfg.Watch.ExcludeDirs = []string{".git", "build", "node_modules"}
	}

	if cfg.Warmup.Rate == 0 {
		cfg.Warmup.Rate = 20
	}
	if cfg.Warmup.Burst == 0 {
		cfg.Warmup.Burst = 4
	}
	if cfg.Warmup.Concurrency == 0 {
		cfg.Warmup.Concurrency = 2
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "autocomplete"
	}

	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if strings.TrimSpace(cfg.Log.Format) == "" {
		cfg.Log.Format = "text"
	}
}

func normalize(cfg *Config) {
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	for id, lang := range cfg.Languages {
		for i, ext := range lang.Extensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext != "" && !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			lang.Extensions[i] = ext
		}
		cfg.Languages[id] = lang
	}
}
