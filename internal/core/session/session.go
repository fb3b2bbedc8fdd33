// Package session is the entry point editors talk to. A Session owns the
// argument list, the translation unit cache and the resolver, and turns
// every recoverable failure into diagnostics instead of errors.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"autocomplete/internal/core/errors"
	"autocomplete/internal/engine/args"
	"autocomplete/internal/engine/cache"
	"autocomplete/internal/engine/frontend"
	"autocomplete/internal/engine/resolver"
	"autocomplete/internal/shared/observability"
	"autocomplete/internal/shared/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Version of the completion engine, independent of the frontend.
const Version = "1.0.0"

const (
	DefaultWarmupRate        = 20.0
	DefaultWarmupBurst       = 4
	DefaultWarmupConcurrency = 2
)

type Options struct {
	Frontend  frontend.Frontend
	Arguments []string

	Expiration    time.Duration
	CheckInterval time.Duration
	MaxEntries    int

	Completion resolver.Options

	// WarmupRate is files per second admitted by Prewarm.
	WarmupRate        float64
	WarmupBurst       int
	WarmupConcurrency int

	Logger *slog.Logger
	Now    func() time.Time
}

type Session struct {
	id       string
	fe       frontend.Frontend
	args     *args.Store
	cache    *cache.Cache
	resolver *resolver.Resolver
	logger   *slog.Logger

	warmup      *util.Limiter
	concurrency int

	mu          sync.RWMutex
	diagnostics map[string][]frontend.Diagnostic
}

func New(opts Options) (*Session, error) {
	if opts.Frontend == nil {
		return nil, errors.New(errors.CodeValidationError, "session requires a frontend")
	}
	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", id)

	if opts.WarmupRate <= 0 {
		opts.WarmupRate = DefaultWarmupRate
	}
	if opts.WarmupBurst <= 0 {
		opts.WarmupBurst = DefaultWarmupBurst
	}
	if opts.WarmupConcurrency <= 0 {
		opts.WarmupConcurrency = DefaultWarmupConcurrency
	}

	store := args.NewStore(opts.Arguments)
	s := &Session{
		id:   id,
		fe:   opts.Frontend,
		args: store,
		cache: cache.New(cache.Options{
			Frontend:      opts.Frontend,
			Args:          store,
			Expiration:    opts.Expiration,
			CheckInterval: opts.CheckInterval,
			MaxEntries:    opts.MaxEntries,
			Logger:        logger,
			Now:           opts.Now,
		}),
		resolver:    resolver.New(opts.Frontend, opts.Completion, logger),
		logger:      logger,
		warmup:      util.NewLimiter(opts.WarmupRate, opts.WarmupBurst),
		concurrency: opts.WarmupConcurrency,
		diagnostics: make(map[string][]frontend.Diagnostic),
	}
	logger.Debug("session started", "frontend", opts.Frontend.Version())
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Version reports the engine and frontend versions.
func (s *Session) Version() string {
	return fmt.Sprintf("autocomplete %s (%s)", Version, s.fe.Version())
}

// SetArguments replaces the compiler arguments. Cached units are reparsed
// lazily on their next use.
func (s *Session) SetArguments(list []string) {
	snap := s.args.Set(list)
	s.logger.Debug("arguments replaced", "count", snap.Len(), "generation", snap.Generation())
}

func (s *Session) Arguments() []string {
	return s.args.Get().Args()
}

// Complete returns ranked candidates at a 1-based line and column of path.
// It never fails: when the file cannot be parsed the result is empty and
// the reason is available from Diagnostics.
func (s *Session) Complete(ctx context.Context, path string, line, column int) []resolver.Candidate {
	ctx, span := observability.StartSpan(ctx, "session.complete", path,
		attribute.Int("line", line),
		attribute.Int("column", column),
	)
	defer span.End()
	start := time.Now()

	lease, ok := s.acquire(ctx, path)
	if !ok {
		observability.CompletionsTotal.WithLabelValues("parse_error").Inc()
		return []resolver.Candidate{}
	}
	defer lease.Release()

	candidates, _, err := s.resolver.Resolve(ctx, lease.Entry(), line, column)
	if err != nil {
		span.RecordError(err)
		observability.CompletionsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("completion failed", "path", path, "line", line, "column", column, "error", err)
		s.appendDiagnostic(lease.Entry().Path(), diagnosticOf(lease.Entry().Path(), err))
		return []resolver.Candidate{}
	}

	elapsed := time.Since(start)
	observability.CompletionsTotal.WithLabelValues("ok").Inc()
	observability.CompletionDuration.Observe(elapsed.Seconds())
	observability.CompletionCandidates.Observe(float64(len(candidates)))
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	s.logger.Debug("completed", "path", path, "line", line, "column", column,
		"candidates", len(candidates), "duration", elapsed)
	if candidates == nil {
		candidates = []resolver.Candidate{}
	}
	return candidates
}

// Diagnose parses path if its unit is stale and returns the diagnostics of
// the current unit, or of the failed attempt.
func (s *Session) Diagnose(ctx context.Context, path string) []frontend.Diagnostic {
	ctx, span := observability.StartSpan(ctx, "session.diagnose", path)
	defer span.End()
	if lease, ok := s.acquire(ctx, path); ok {
		lease.Release()
	}
	return s.Diagnostics(path)
}

// Diagnostics returns what the last parse attempt of path reported.
func (s *Session) Diagnostics(path string) []frontend.Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]frontend.Diagnostic(nil), s.diagnostics[cleanPath(path)]...)
}

// acquire leases a current unit for path and records its diagnostics.
func (s *Session) acquire(ctx context.Context, path string) (*cache.Lease, bool) {
	lease, err := s.cache.Acquire(ctx, path)
	if err == nil {
		s.setDiagnostics(lease.Entry().Path(), lease.Entry().Diagnostics())
		return lease, true
	}

	if ctx.Err() != nil {
		s.logger.Debug("request abandoned", "path", path, "error", err)
		return nil, false
	}
	var perr *cache.ParseError
	if errors.As(err, &perr) {
		s.setDiagnostics(perr.Path, perr.Diagnostics)
	} else {
		s.setDiagnostics(path, []frontend.Diagnostic{diagnosticOf(path, err)})
	}
	s.logger.Warn("no translation unit", "path", path, "error", err)
	return nil, false
}

func (s *Session) setDiagnostics(path string, diags []frontend.Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics[cleanPath(path)] = append([]frontend.Diagnostic(nil), diags...)
}

func (s *Session) appendDiagnostic(path string, d frontend.Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cleanPath(path)
	s.diagnostics[key] = append(s.diagnostics[key], d)
}

func diagnosticOf(path string, err error) frontend.Diagnostic {
	code := errors.CodeOf(err)
	if code == errors.CodeInternal {
		code = errors.CodeResource
	}
	return frontend.Diagnostic{
		Severity: frontend.SeverityError,
		Message:  err.Error(),
		Location: frontend.Location{File: path},
		Code:     code,
	}
}

// SetOverlay makes content the source of path until ClearOverlay.
func (s *Session) SetOverlay(path string, content []byte) {
	s.cache.Sources().SetOverlay(path, content)
}

func (s *Session) ClearOverlay(path string) bool {
	return s.cache.Sources().ClearOverlay(path)
}

// Invalidate evicts the units of changed files and of every unit that
// includes one of them.
func (s *Session) Invalidate(paths ...string) []string {
	evicted := s.cache.Invalidate(paths...)
	if len(evicted) > 0 {
		s.logger.Debug("invalidated translation units", "changed", len(paths), "evicted", len(evicted))
	}
	return evicted
}

// Prewarm parses paths ahead of completion. Parse failures are recorded as
// diagnostics; only cancellation is returned.
func (s *Session) Prewarm(ctx context.Context, paths ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	var waitErr error
	for _, path := range paths {
		if waitErr = s.warmup.Wait(gctx, 1); waitErr != nil {
			break
		}
		g.Go(func() error {
			if lease, ok := s.acquire(gctx, path); ok {
				lease.Release()
				observability.WarmupsTotal.WithLabelValues("ok").Inc()
			} else {
				observability.WarmupsTotal.WithLabelValues("error").Inc()
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// The limiter refuses waits that cannot finish before the deadline.
	return waitErr
}

// MemoryUsage reports the bytes held per cached file.
func (s *Session) MemoryUsage() []cache.Usage {
	return s.cache.MemoryUsage()
}

// ClearCache drops the units of paths, or all units without arguments,
// together with the diagnostics recorded for them.
func (s *Session) ClearCache(paths ...string) int {
	s.mu.Lock()
	if len(paths) == 0 {
		clear(s.diagnostics)
	}
	for _, p := range paths {
		delete(s.diagnostics, cleanPath(p))
	}
	s.mu.Unlock()
	return s.cache.Clear(paths...)
}

func (s *Session) CacheExpiration() time.Duration {
	return s.cache.Expiration()
}

// SetCacheExpiration sets how long an unused unit is kept. Zero keeps units
// until they are cleared or replaced.
func (s *Session) SetCacheExpiration(d time.Duration) {
	s.cache.SetExpiration(d)
}

// CachedPaths lists files with a cached unit.
func (s *Session) CachedPaths() []string {
	return s.cache.Paths()
}

// Close disposes every cached unit. Later requests return no candidates.
func (s *Session) Close() error {
	s.logger.Debug("session closed")
	return s.cache.Close()
}

func cleanPath(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}
