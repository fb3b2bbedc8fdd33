// Package frontendtest provides an in-memory Frontend for engine tests.
package frontendtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"autocomplete/internal/engine/frontend"
)

// Unit is the handle type produced by Fake.
type Unit struct {
	id     int64
	path   string
	source []byte
	args   []string
	deps   []string
}

func (u *Unit) Path() string           { return u.path }
func (u *Unit) Dependencies() []string { return u.deps }
func (u *Unit) MemoryUsage() uint64    { return uint64(len(u.source)) + 64 }

// ID is unique per parse.
func (u *Unit) ID() int64 { return u.id }

// Source is the content the unit was parsed from.
func (u *Unit) Source() []byte { return u.source }

// Args are the arguments the unit was parsed with.
func (u *Unit) Args() []string { return u.args }

// Fake is a counting frontend. Candidates are fixed per test; parse failures
// and dependency lists are configured per path.
type Fake struct {
	mu          sync.Mutex
	candidates  []frontend.RawCandidate
	completeErr error
	parseErrs   map[string]error
	diagnostics map[string][]frontend.Diagnostic
	deps        map[string][]string
	live        map[int64]bool
	disposed    map[int64]int
	// ParseHook runs inside Parse before the unit is built. Tests use it to
	// hold a parse open.
	ParseHook func(req frontend.ParseRequest)

	nextID   atomic.Int64
	parses   atomic.Int64
	disposes atomic.Int64
	requests []frontend.ParseRequest
}

func New(candidates ...frontend.RawCandidate) *Fake {
	return &Fake{
		candidates:  candidates,
		parseErrs:   make(map[string]error),
		diagnostics: make(map[string][]frontend.Diagnostic),
		deps:        make(map[string][]string),
		live:        make(map[int64]bool),
		disposed:    make(map[int64]int),
	}
}

func (f *Fake) SetCandidates(c ...frontend.RawCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = c
}

func (f *Fake) FailParse(path string, err error, diags ...frontend.Diagnostic) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.parseErrs, path)
		return
	}
	f.parseErrs[path] = err
	f.diagnostics[path] = diags
}

func (f *Fake) FailComplete(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeErr = err
}

func (f *Fake) SetDependencies(path string, deps ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deps[path] = deps
}

func (f *Fake) SetDiagnostics(path string, diags ...frontend.Diagnostic) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diagnostics[path] = diags
}

func (f *Fake) Parse(ctx context.Context, req frontend.ParseRequest) (frontend.ParseResult, error) {
	f.parses.Add(1)
	if f.ParseHook != nil {
		f.ParseHook(req)
	}
	if err := ctx.Err(); err != nil {
		return frontend.ParseResult{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	diags := append([]frontend.Diagnostic(nil), f.diagnostics[req.Path]...)
	if err := f.parseErrs[req.Path]; err != nil {
		return frontend.ParseResult{Diagnostics: diags}, err
	}
	u := &Unit{
		id:     f.nextID.Add(1),
		path:   req.Path,
		source: append([]byte(nil), req.Source...),
		args:   append([]string(nil), req.Args...),
		deps:   append([]string(nil), f.deps[req.Path]...),
	}
	f.live[u.id] = true
	return frontend.ParseResult{Handle: u, Diagnostics: diags}, nil
}

func (f *Fake) CompleteAt(ctx context.Context, h frontend.Handle, line, column int) ([]frontend.RawCandidate, error) {
	u, ok := h.(*Unit)
	if !ok {
		return nil, fmt.Errorf("foreign handle %T", h)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live[u.id] {
		return nil, fmt.Errorf("unit %d used after dispose", u.id)
	}
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return append([]frontend.RawCandidate(nil), f.candidates...), nil
}

func (f *Fake) Dispose(h frontend.Handle) error {
	u, ok := h.(*Unit)
	if !ok {
		return fmt.Errorf("foreign handle %T", h)
	}
	f.disposes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposed[u.id]++
	if !f.live[u.id] {
		return fmt.Errorf("unit %d disposed twice", u.id)
	}
	delete(f.live, u.id)
	return nil
}

func (f *Fake) Version() string { return "fake 1.0" }

// Parses counts Parse calls, including failed ones.
func (f *Fake) Parses() int { return int(f.parses.Load()) }

// Disposes counts Dispose calls.
func (f *Fake) Disposes() int { return int(f.disposes.Load()) }

// Live reports how many units have been parsed and not yet disposed.
func (f *Fake) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// DoubleDisposed reports whether any unit was disposed more than once.
func (f *Fake) DoubleDisposed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.disposed {
		if n > 1 {
			return true
		}
	}
	return false
}

// LastRequest returns the most recent successful or failed parse request.
func (f *Fake) LastRequest() (frontend.ParseRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return frontend.ParseRequest{}, false
	}
	return f.requests[len(f.requests)-1], true
}
