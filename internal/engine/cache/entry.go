package cache

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	"autocomplete/internal/engine/frontend"
)

// Entry is one cached translation unit. The cache holds one reference for as
// long as the entry is stored; every Lease holds another. The frontend handle
// is disposed when the last reference is dropped.
type Entry struct {
	path        string
	fingerprint Fingerprint
	handle      frontend.Handle
	source      []byte
	lineStarts  []int
	diagnostics []frontend.Diagnostic
	deps        []string
	seq         uint64
	created     time.Time

	lastUsed atomic.Int64
	refs     atomic.Int32
	disposed sync.Once
	dispose  func(*Entry)
}

func newEntry(path string, fp Fingerprint, source []byte, res frontend.ParseResult, seq uint64, now time.Time, dispose func(*Entry)) *Entry {
	e := &Entry{
		path:        path,
		fingerprint: fp,
		handle:      res.Handle,
		source:      source,
		lineStarts:  lineStarts(source),
		diagnostics: append([]frontend.Diagnostic(nil), res.Diagnostics...),
		deps:        normalizeAll(res.Handle.Dependencies()),
		seq:         seq,
		created:     now,
		dispose:     dispose,
	}
	e.lastUsed.Store(now.UnixNano())
	e.refs.Store(1)
	return e
}

func (e *Entry) Path() string                       { return e.path }
func (e *Entry) Fingerprint() Fingerprint           { return e.fingerprint }
func (e *Entry) Handle() frontend.Handle            { return e.handle }
func (e *Entry) Source() []byte                     { return e.source }
func (e *Entry) Dependencies() []string             { return e.deps }
func (e *Entry) Created() time.Time                 { return e.created }
func (e *Entry) LastUsed() time.Time                { return time.Unix(0, e.lastUsed.Load()) }
func (e *Entry) Diagnostics() []frontend.Diagnostic { return e.diagnostics }

// LineCount is at least 1; an empty file has one empty line.
func (e *Entry) LineCount() int                     { return len(e.lineStarts) }

// LineLength returns the byte length of a 1-based line without its terminator.
func (e *Entry) LineLength(line int) int {
	if line < 1 || line > len(e.lineStarts) {
		return 0
	}
	start := e.lineStarts[line-1]
	end := len(e.source)
	if line < len(e.lineStarts) {
		end = e.lineStarts[line] - 1
	}
	if end > start && e.source[end-1] == '\r' {
		end--
	}
	return end - start
}

// MemoryUsage approximates the bytes held by the entry and its unit.
func (e *Entry) MemoryUsage() uint64 {
	return uint64(len(e.source)) + uint64(8*len(e.lineStarts)) + e.handle.MemoryUsage()
}

func (e *Entry) touch(now time.Time) {
	e.lastUsed.Store(now.UnixNano())
}

// acquire must only be called while the entry is reachable from its slot.
func (e *Entry) acquire() {
	e.refs.Add(1)
}

func (e *Entry) release() {
	if e.refs.Add(-1) == 0 {
		e.disposed.Do(func() { e.dispose(e) })
	}
}

func (e *Entry) dependsOn(paths map[string]bool) bool {
	if paths[e.path] {
		return true
	}
	for _, dep := range e.deps {
		if paths[dep] {
			return true
		}
	}
	return false
}

// Lease keeps an entry alive while a caller uses its handle.
type Lease struct {
	entry *Entry
	once  sync.Once
}

func (l *Lease) Entry() *Entry { return l.entry }

// Release drops the lease. It is safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(l.entry.release)
}

func lineStarts(src []byte) []int {
	starts := make([]int, 1, bytes.Count(src, []byte{'\n'})+1)
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func normalizeAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, normalize(p))
	}
	return out
}
