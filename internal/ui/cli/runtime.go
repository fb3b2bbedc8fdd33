package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"autocomplete/internal/core/config"
	"autocomplete/internal/core/session"
	"autocomplete/internal/core/watcher"
	"autocomplete/internal/engine/parser"
	"autocomplete/internal/engine/resolver"
	"autocomplete/internal/shared/observability"
	"autocomplete/internal/shared/util"
)

const shutdownTimeout = 5 * time.Second

// runtime is one configured session plus the optional services around it.
type runtime struct {
	opts    *cliOptions
	cfg     *config.Config
	cfgPath string
	base    string
	logger  *slog.Logger
	fe      *parser.Parser
	session *session.Session

	metrics       *ObservabilityServer
	shutdownTrace observability.ShutdownFunc
	fileWatcher   *watcher.Watcher
	cfgWatcher    *config.Watcher
}

func newRuntime(opts *cliOptions, stderr io.Writer) (*runtime, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("detect working directory: %w", err)
	}

	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := configureLogging(cfg, opts.verbose, stderr)
	for _, warning := range config.Validate(cfg) {
		logger.Warn("config warning", "path", cfgPath, "warning", warning)
	}

	base := cwd
	if cfgPath != "" {
		base = filepath.Dir(cfgPath)
	}

	fe, err := parser.New(
		parser.WithLanguages(languageRegistry(cfg)),
		parser.WithIncludeLimits(cfg.Frontend.MaxIncludeDepth, cfg.Frontend.MaxIncludeFiles),
		parser.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize frontend: %w", err)
	}

	sess, err := session.New(sessionOptions(cfg, fe, opts.args, logger))
	if err != nil {
		return nil, err
	}

	logger.Debug("runtime ready",
		"config", cfgPath,
		"arguments", len(sess.Arguments()),
		"extensions", fe.SupportedExtensions(),
		"heap_mb", util.GetHeapAllocMB(),
	)
	return &runtime{
		opts:    opts,
		cfg:     cfg,
		cfgPath: cfgPath,
		base:    base,
		logger:  logger,
		fe:      fe,
		session: sess,
	}, nil
}

// loadConfig reads path, or the config file of the project holding cwd, or
// falls back to the defaults. Environment overrides apply in every case.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case path != "":
		path = config.ResolveRelative(cwd, path)
		cfg, err = config.Load(path)
	default:
		if found, ok := config.FindFile(cwd); ok {
			path = found
			cfg, err = config.Load(path)
		} else {
			cfg = config.Default()
		}
	}
	if err != nil {
		return nil, "", err
	}

	config.ApplyEnvOverrides(cfg)
	if err := config.Finalize(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func languageRegistry(cfg *config.Config) map[string]parser.LanguageSpec {
	registry := parser.DefaultLanguageRegistry()
	if len(cfg.Languages) == 0 {
		return registry
	}
	claimed := make(map[string]bool)
	for _, lang := range cfg.Languages {
		for _, ext := range lang.Extensions {
			claimed[ext] = true
		}
	}
	// Configured extensions move to their language; the rest keep their default owner.
	for id, spec := range registry {
		kept := make([]string, 0, len(spec.Extensions))
		for _, ext := range spec.Extensions {
			if !claimed[ext] {
				kept = append(kept, ext)
			}
		}
		registry[id] = parser.LanguageSpec{Extensions: kept}
	}
	for _, id := range util.SortedStringKeys(cfg.Languages) {
		spec := registry[id]
		spec.Extensions = append(spec.Extensions, cfg.Languages[id].Extensions...)
		registry[id] = spec
	}
	return registry
}

func sessionArguments(cfg *config.Config, extra []string) []string {
	out := make([]string, 0, len(cfg.Arguments)+len(extra))
	out = append(out, cfg.Arguments...)
	return append(out, extra...)
}

func sessionOptions(cfg *config.Config, fe *parser.Parser, extra []string, logger *slog.Logger) session.Options {
	return session.Options{
		Frontend:      fe,
		Arguments:     sessionArguments(cfg, extra),
		Expiration:    cfg.Cache.Expiration,
		CheckInterval: cfg.Cache.CheckInterval,
		MaxEntries:    cfg.Cache.MaxEntries,
		Completion: resolver.Options{
			HideInaccessible: cfg.Completion.HideInaccessible,
			MaxResults:       cfg.Completion.MaxResults,
		},
		WarmupRate:        cfg.Warmup.Rate,
		WarmupBurst:       cfg.Warmup.Burst,
		WarmupConcurrency: cfg.Warmup.Concurrency,
		Logger:            logger,
	}
}

// startServices starts the metrics endpoint, tracing and the watchers the
// configuration asks for. Close stops them.
func (rt *runtime) startServices(ctx context.Context) error {
	shutdown, err := observability.InitTracing(ctx, rt.cfg.Observability.ServiceName, rt.cfg.Observability.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	rt.shutdownTrace = shutdown

	if addr := rt.cfg.Observability.MetricsAddr; addr != "" {
		rt.metrics = NewObservabilityServer(addr, rt.session)
		if err := rt.metrics.Start(ctx); err != nil {
			return err
		}
	}

	if rt.cfg.Watch.Enabled {
		if err := rt.startFileWatcher(); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
	}

	if rt.cfgPath != "" {
		rt.cfgWatcher = config.NewWatcher(rt.cfgPath, rt.applyConfig)
		if err := rt.cfgWatcher.Start(ctx); err != nil {
			rt.logger.Warn("config reload disabled", "path", rt.cfgPath, "error", err)
			rt.cfgWatcher = nil
		}
	}
	return nil
}

func (rt *runtime) startFileWatcher() error {
	w, err := watcher.NewWatcher(rt.cfg.Watch.Debounce, rt.cfg.Watch.ExcludeDirs, rt.cfg.Watch.ExcludeFiles, rt.onFilesChanged)
	if err != nil {
		return err
	}
	w.SetLogger(rt.logger)
	w.SetLanguageFilters(rt.fe.SupportedExtensions())

	paths := config.ResolveWatchPaths(rt.cfg, rt.base)
	if err := w.Watch(paths); err != nil {
		_ = w.Close()
		return err
	}
	rt.fileWatcher = w
	rt.logger.Info("watching sources", "paths", paths)
	return nil
}

func (rt *runtime) onFilesChanged(paths []string) {
	evicted := rt.session.Invalidate(paths...)
	rt.logger.Debug("files changed", "changed", len(paths), "evicted", len(evicted))
}

// applyConfig takes over the settings that can change without a restart.
func (rt *runtime) applyConfig(cfg *config.Config) {
	rt.session.SetArguments(sessionArguments(cfg, rt.opts.args))
	rt.session.SetCacheExpiration(cfg.Cache.Expiration)
	rt.cfg.Arguments = cfg.Arguments
	rt.cfg.Cache.Expiration = cfg.Cache.Expiration
	rt.logger.Info("config reloaded", "path", rt.cfgPath, "arguments", len(cfg.Arguments))
}

func (rt *runtime) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if rt.cfgWatcher != nil {
		rt.cfgWatcher.Stop()
	}
	if rt.fileWatcher != nil {
		if err := rt.fileWatcher.Close(); err != nil {
			rt.logger.Warn("failed to close watcher", "error", err)
		}
	}
	if rt.metrics != nil {
		if err := rt.metrics.Stop(ctx); err != nil {
			rt.logger.Warn("failed to stop observability server", "error", err)
		}
	}
	if rt.shutdownTrace != nil {
		if err := rt.shutdownTrace(ctx); err != nil {
			rt.logger.Warn("failed to flush traces", "error", err)
		}
	}
	if err := rt.session.Close(); err != nil {
		rt.logger.Warn("failed to close session", "error", err)
	}
	rt.logger.Debug("runtime closed", "heap_mb", util.GetHeapAllocMB())
}

// configureLogging writes to stderr so stdout stays free for results and
// for the language server protocol.
func configureLogging(cfg *config.Config, verbose bool, stderr io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(stderr, handlerOpts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
