// Package frontend describes the compiler capability the completion engine
// drives: parse a source file under a set of arguments, complete at a
// position inside a parsed unit, and release the unit afterwards.
//
// Implementations own their handles. The engine never inspects a Handle
// beyond the methods declared here and calls Dispose exactly once for every
// handle returned from a successful Parse.
package frontend

import "context"

// Handle is an opaque, frontend-owned parsed translation unit.
type Handle interface {
	// Path is the file the unit was parsed from.
	Path() string
	// Dependencies lists the other files pulled into the unit (headers).
	Dependencies() []string
	// MemoryUsage approximates the bytes retained by the unit.
	MemoryUsage() uint64
}

// ParseRequest is the input of Frontend.Parse.
type ParseRequest struct {
	Path string
	// Source is the exact content to parse; the caller fingerprints these bytes.
	Source []byte
	// Args are the compiler arguments, passed verbatim and in order.
	Args []string
	// Previous is an optional earlier unit of the same file. The frontend may
	// use it to reparse incrementally but does not take ownership of it.
	Previous Handle
}

// ParseResult is the output of a successful Frontend.Parse.
type ParseResult struct {
	Handle      Handle
	Diagnostics []Diagnostic
}

// Frontend is the black-box compiler capability.
type Frontend interface {
	// Parse builds a unit. On failure the returned ParseResult may still carry
	// diagnostics explaining the failure; its Handle is nil.
	Parse(ctx context.Context, req ParseRequest) (ParseResult, error)
	// CompleteAt returns raw candidates at a 1-based line and column. The
	// position has already been clamped into the unit's source.
	CompleteAt(ctx context.Context, h Handle, line, column int) ([]RawCandidate, error)
	// Dispose releases a unit. Disposing the same handle twice is an error.
	Dispose(h Handle) error
	// Version identifies the frontend build.
	Version() string
}
