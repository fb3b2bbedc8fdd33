// Package cache owns parsed translation units, one per file path.
//
// A unit is reused while the fingerprint of its source and arguments still
// matches; otherwise the next Acquire reparses. Parsing runs outside every
// lock. Only the check and commit around a slot are serialised per path.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"autocomplete/internal/core/errors"
	"autocomplete/internal/engine/args"
	"autocomplete/internal/engine/frontend"
	"autocomplete/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultExpiration    = 30 * time.Minute
	DefaultCheckInterval = 10 * time.Minute

	// maxAcquireAttempts bounds retries when the entry a caller waited on was
	// replaced or evicted before it could be leased.
	maxAcquireAttempts = 4
)

// Eviction reasons, used as metric labels.
const (
	reasonReplaced    = "replaced"
	reasonExpired     = "expired"
	reasonCapacity    = "capacity"
	reasonInvalidated = "invalidated"
	reasonCleared     = "cleared"
	reasonMissing     = "missing"
)

type Options struct {
	Frontend frontend.Frontend
	Args     *args.Store
	// Sources defaults to disk reads with no overlays.
	Sources *Sources
	// Expiration removes entries unused for this long. Zero keeps them forever.
	Expiration time.Duration
	// CheckInterval is the minimum time between opportunistic expiry sweeps.
	CheckInterval time.Duration
	// MaxEntries caps the number of stored units. Zero means unbounded.
	MaxEntries int
	Logger     *slog.Logger
	Now        func() time.Time
}

type slot struct {
	path string
	// users counts acquisitions and parses working on the slot. Guarded by
	// Cache.mu. A slot with no users and no entry is dropped from the map.
	users int

	mu        sync.Mutex
	entry     *Entry
	issued    uint64
	committed uint64
}

type Cache struct {
	fe      frontend.Frontend
	args    *args.Store
	sources *Sources
	logger  *slog.Logger
	now     func() time.Time

	expiration    atomic.Int64
	checkInterval time.Duration
	maxEntries    int
	lastSweep     atomic.Int64

	mu     sync.Mutex
	slots  map[string]*slot
	closed bool

	group singleflight.Group
}

func New(opts Options) *Cache {
	c := &Cache{
		fe:            opts.Frontend,
		args:          opts.Args,
		sources:       opts.Sources,
		logger:        opts.Logger,
		now:           opts.Now,
		checkInterval: opts.CheckInterval,
		maxEntries:    opts.MaxEntries,
		slots:         make(map[string]*slot),
	}
	if c.args == nil {
		c.args = args.NewStore(nil)
	}
	if c.sources == nil {
		c.sources = NewSources()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.checkInterval <= 0 {
		c.checkInterval = DefaultCheckInterval
	}
	c.expiration.Store(int64(opts.Expiration))
	c.lastSweep.Store(c.now().UnixNano())
	return c
}

func (c *Cache) Sources() *Sources { return c.sources }

func (c *Cache) Expiration() time.Duration { return time.Duration(c.expiration.Load()) }

// SetExpiration changes the idle lifetime of entries. Zero disables expiry.
func (c *Cache) SetExpiration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.expiration.Store(int64(d))
}

// Acquire returns a lease on a unit whose fingerprint matches the current
// content of path and the current arguments, parsing if needed. Failures are
// returned as *ParseError and never cached.
func (c *Cache) Acquire(ctx context.Context, path string) (*Lease, error) {
	path = normalize(path)
	c.maybeSweep()

	for attempt := 0; attempt < maxAcquireAttempts; attempt++ {
		s, err := c.slot(path)
		if err != nil {
			return nil, err
		}
		lease, err := c.acquireFrom(ctx, s)
		if lease != nil || err != nil {
			return lease, err
		}
	}
	return nil, newParseError(path, errors.CodeResource, "translation unit replaced repeatedly while acquiring", nil, nil)
}

// acquireFrom runs one attempt against s and gives up the caller's slot
// reference on return. A nil lease with a nil error asks for a retry.
func (c *Cache) acquireFrom(ctx context.Context, s *slot) (*Lease, error) {
	held := true
	defer func() {
		if held {
			c.releaseSlot(s)
		}
	}()

	path := s.path
	snap := c.args.Get()
	source, err := c.sources.Read(path)
	if err != nil {
		c.evictPath(s, reasonMissing)
		return nil, newParseError(path, errors.CodeParse, "cannot read source", err, nil)
	}
	fp := fingerprintOf(source, snap.Hash())

	if lease := c.leaseIfCurrent(s, fp); lease != nil {
		observability.CacheHitsTotal.Inc()
		c.logger.Debug("translation unit cache hit", "path", path)
		return lease, nil
	}
	observability.CacheMissesTotal.Inc()

	key := fmt.Sprintf("%s\x00%016x\x00%016x", path, fp.Content, fp.Args)
	ch := c.group.DoChan(key, func() (any, error) {
		// Shared by every waiter, so one caller's cancellation must not
		// abort the parse for the rest.
		return c.parse(context.WithoutCancel(ctx), s, path, source, snap, fp)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		// The parse may still commit into s; keep the slot until it ends.
		held = false
		go func() {
			<-ch
			c.releaseSlot(s)
		}()
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	if lease := c.leaseIfCurrent(s, fp); lease != nil {
		return lease, nil
	}
	// A later request committed a newer unit first. Serve it while it is
	// still stored, otherwise start over against the current content.
	if lease := c.leaseEntry(s, res.Val.(*Entry)); lease != nil {
		return lease, nil
	}
	return nil, nil
}

// slot returns the slot of path with a reference taken for the caller.
func (c *Cache) slot(path string) (*slot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New(errors.CodeResource, "cache is closed")
	}
	s, ok := c.slots[path]
	if !ok {
		s = &slot{path: path}
		c.slots[path] = s
	}
	s.users++
	return s, nil
}

func (c *Cache) releaseSlot(s *slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.users--
	c.pruneLocked(s)
}

// prune drops s from the map once it holds nothing and nobody works on it.
func (c *Cache) prune(s *slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(s)
}

func (c *Cache) pruneLocked(s *slot) {
	if s.users > 0 || c.slots[s.path] != s {
		return
	}
	s.mu.Lock()
	empty := s.entry == nil
	s.mu.Unlock()
	if empty {
		delete(c.slots, s.path)
	}
}

func (c *Cache) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Cache) leaseIfCurrent(s *slot, fp Fingerprint) *Lease {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == nil || s.entry.fingerprint != fp {
		return nil
	}
	s.entry.acquire()
	s.entry.touch(c.now())
	return &Lease{entry: s.entry}
}

func (c *Cache) leaseEntry(s *slot, e *Entry) *Lease {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry != e {
		return nil
	}
	e.acquire()
	e.touch(c.now())
	return &Lease{entry: e}
}

func (c *Cache) parse(ctx context.Context, s *slot, path string, source []byte, snap *args.Snapshot, fp Fingerprint) (*Entry, error) {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	prev := s.entry
	if prev != nil {
		prev.acquire()
	}
	s.mu.Unlock()

	req := frontend.ParseRequest{Path: path, Source: source, Args: snap.Args()}
	if prev != nil {
		req.Previous = prev.handle
		defer prev.release()
	}

	language := filepath.Ext(path)
	ctx, span := observability.StartSpan(ctx, "cache.parse", path,
		attribute.Int("args.count", snap.Len()),
		attribute.Bool("incremental", prev != nil),
	)
	defer span.End()

	start := c.now()
	res, err := c.callParse(ctx, req)
	observability.ParseDuration.WithLabelValues(language).Observe(c.now().Sub(start).Seconds())
	if err != nil {
		observability.ParsesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		c.logger.Warn("parse failed", "path", path, "error", err)
		var perr *ParseError
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, newParseError(path, errors.CodeParse, "frontend rejected source", err, res.Diagnostics)
	}
	if res.Handle == nil {
		observability.ParsesTotal.WithLabelValues("error").Inc()
		return nil, newParseError(path, errors.CodeResource, "frontend returned no translation unit", nil, res.Diagnostics)
	}
	observability.ParsesTotal.WithLabelValues("ok").Inc()

	entry := newEntry(path, fp, source, res, seq, c.now(), c.disposeEntry)

	s.mu.Lock()
	if s.committed > seq && s.entry != nil {
		current := s.entry
		s.mu.Unlock()
		observability.CacheStaleResultsTotal.Inc()
		c.logger.Debug("discarding stale parse", "path", path, "seq", seq)
		entry.release()
		return current, nil
	}
	old := s.entry
	s.entry = entry
	s.committed = seq
	s.mu.Unlock()

	if old != nil {
		observability.CacheEvictionsTotal.WithLabelValues(reasonReplaced).Inc()
		old.release()
	} else {
		observability.CacheEntries.Inc()
	}
	if c.isClosed() {
		c.evictIf(s, entry, reasonCleared)
		return nil, newParseError(path, errors.CodeResource, "cache is closed", nil, nil)
	}
	c.enforceCapacity(path)
	return entry, nil
}

// callParse converts frontend panics into errors so one bad file cannot take
// the session down.
func (c *Cache) callParse(ctx context.Context, req frontend.ParseRequest) (res frontend.ParseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = frontend.ParseResult{}
			err = newParseError(req.Path, errors.CodeResource, "frontend panicked", fmt.Errorf("%v", r), nil)
		}
	}()
	return c.fe.Parse(ctx, req)
}

func (c *Cache) disposeEntry(e *Entry) {
	if err := c.fe.Dispose(e.handle); err != nil {
		c.logger.Error("dispose failed", "path", e.path, "error", err)
	}
}

// evictPath drops the entry of s, if any.
func (c *Cache) evictPath(s *slot, reason string) bool {
	s.mu.Lock()
	e := s.entry
	s.entry = nil
	s.mu.Unlock()
	c.prune(s)
	if e == nil {
		return false
	}
	observability.CacheEvictionsTotal.WithLabelValues(reason).Inc()
	observability.CacheEntries.Dec()
	c.logger.Debug("evicted translation unit", "path", e.path, "reason", reason)
	e.release()
	return true
}

// evictIf drops e only if it is still the entry of s.
func (c *Cache) evictIf(s *slot, e *Entry, reason string) bool {
	s.mu.Lock()
	if s.entry != e {
		s.mu.Unlock()
		return false
	}
	s.entry = nil
	s.mu.Unlock()
	c.prune(s)
	observability.CacheEvictionsTotal.WithLabelValues(reason).Inc()
	observability.CacheEntries.Dec()
	c.logger.Debug("evicted translation unit", "path", e.path, "reason", reason)
	e.release()
	return true
}

type slotEntry struct {
	path  string
	slot  *slot
	entry *Entry
}

// snapshot lists stored entries sorted by path.
func (c *Cache) snapshot() []slotEntry {
	c.mu.Lock()
	slots := make(map[string]*slot, len(c.slots))
	for path, s := range c.slots {
		slots[path] = s
	}
	c.mu.Unlock()

	out := make([]slotEntry, 0, len(slots))
	for path, s := range slots {
		s.mu.Lock()
		e := s.entry
		s.mu.Unlock()
		if e != nil {
			out = append(out, slotEntry{path: path, slot: s, entry: e})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

func (c *Cache) maybeSweep() {
	now := c.now().UnixNano()
	last := c.lastSweep.Load()
	if time.Duration(now-last) < c.checkInterval {
		return
	}
	if !c.lastSweep.CompareAndSwap(last, now) {
		return
	}
	c.Sweep()
}

// Sweep evicts entries idle for longer than the expiration and returns how
// many were removed.
func (c *Cache) Sweep() int {
	exp := c.Expiration()
	if exp <= 0 {
		return 0
	}
	now := c.now()
	removed := 0
	for _, se := range c.snapshot() {
		if now.Sub(se.entry.LastUsed()) > exp && c.evictIf(se.slot, se.entry, reasonExpired) {
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("expired translation units", "count", removed)
	}
	return removed
}

func (c *Cache) enforceCapacity(keep string) {
	if c.maxEntries <= 0 {
		return
	}
	entries := c.snapshot()
	excess := len(entries) - c.maxEntries
	if excess <= 0 {
		return
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].entry.lastUsed.Load() < entries[j].entry.lastUsed.Load()
	})
	for _, se := range entries {
		if excess == 0 {
			break
		}
		if se.path == keep {
			continue
		}
		if c.evictIf(se.slot, se.entry, reasonCapacity) {
			excess--
		}
	}
}

// Invalidate evicts the entries of the given files and every entry that
// pulled one of them in as a dependency. It returns the evicted paths.
func (c *Cache) Invalidate(paths ...string) []string {
	if len(paths) == 0 {
		return nil
	}
	changed := make(map[string]bool, len(paths))
	for _, p := range paths {
		changed[normalize(p)] = true
	}
	var evicted []string
	for _, se := range c.snapshot() {
		if se.entry.dependsOn(changed) && c.evictIf(se.slot, se.entry, reasonInvalidated) {
			evicted = append(evicted, se.path)
		}
	}
	return evicted
}

// Clear evicts the entries of the given paths, or every entry when called
// without arguments. It returns the number of entries removed.
func (c *Cache) Clear(paths ...string) int {
	removed := 0
	if len(paths) == 0 {
		for _, se := range c.snapshot() {
			if c.evictIf(se.slot, se.entry, reasonCleared) {
				removed++
			}
		}
		return removed
	}
	for _, p := range paths {
		c.mu.Lock()
		s, ok := c.slots[normalize(p)]
		c.mu.Unlock()
		if ok && c.evictPath(s, reasonCleared) {
			removed++
		}
	}
	return removed
}

// Usage is the approximate memory held for one file.
type Usage struct {
	Path  string
	Bytes uint64
}

// MemoryUsage reports per-file usage sorted by path.
func (c *Cache) MemoryUsage() []Usage {
	entries := c.snapshot()
	out := make([]Usage, 0, len(entries))
	for _, se := range entries {
		out = append(out, Usage{Path: se.path, Bytes: se.entry.MemoryUsage()})
	}
	return out
}

// Len returns the number of stored entries.
func (c *Cache) Len() int { return len(c.snapshot()) }

// Paths lists the files with a stored entry, sorted.
func (c *Cache) Paths() []string {
	entries := c.snapshot()
	out := make([]string, 0, len(entries))
	for _, se := range entries {
		out = append(out, se.path)
	}
	return out
}

// Close evicts every entry and rejects further acquisitions. Units still
// leased are disposed when their last lease is released.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.Clear()
	return nil
}
