// Package resolver turns raw frontend completions into the ranked list
// returned to editors.
package resolver

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"autocomplete/internal/core/errors"
	"autocomplete/internal/engine/frontend"
	"autocomplete/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Unit is a parsed file the resolver can complete in.
type Unit interface {
	Path() string
	Handle() frontend.Handle
	LineCount() int
	// LineLength is the byte length of a 1-based line without its terminator.
	LineLength(line int) int
}

type Position struct {
	Line   int
	Column int
}

type Options struct {
	// HideInaccessible drops private and protected members used from outside.
	HideInaccessible bool
	// MaxResults truncates the ranked list. Zero keeps everything.
	MaxResults int
}

type Resolver struct {
	fe     frontend.Frontend
	opts   Options
	logger *slog.Logger
}

func New(fe frontend.Frontend, opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{fe: fe, opts: opts, logger: logger}
}

// Clamp moves a position to the nearest valid location in u. The column may
// sit one past the last byte of a line. The second result reports whether
// the position changed.
func Clamp(u Unit, line, column int) (Position, bool) {
	pos := Position{Line: line, Column: column}
	if n := u.LineCount(); pos.Line > n {
		pos.Line = n
	}
	if pos.Line < 1 {
		pos.Line = 1
	}
	if max := u.LineLength(pos.Line) + 1; pos.Column > max {
		pos.Column = max
	}
	if pos.Column < 1 {
		pos.Column = 1
	}
	return pos, pos.Line != line || pos.Column != column
}

// Resolve completes at (line, column) in u and returns the processed list
// together with the position actually used.
func (r *Resolver) Resolve(ctx context.Context, u Unit, line, column int) ([]Candidate, Position, error) {
	pos, clamped := Clamp(u, line, column)
	if clamped {
		observability.PositionsClampedTotal.Inc()
		r.logger.Debug("clamped completion position",
			"path", u.Path(), "line", line, "column", column,
			"to_line", pos.Line, "to_column", pos.Column)
	}

	ctx, span := observability.StartSpan(ctx, "resolver.resolve", u.Path(),
		attribute.Int("line", pos.Line),
		attribute.Int("column", pos.Column),
	)
	defer span.End()

	raw, err := r.completeAt(ctx, u.Handle(), pos)
	if err != nil {
		span.RecordError(err)
		err = errors.AddContext(err, errors.CtxPath, u.Path())
		err = errors.AddContext(err, errors.CtxLine, pos.Line)
		return nil, pos, errors.AddContext(err, errors.CtxColumn, pos.Column)
	}

	out := Process(raw, r.opts)
	span.SetAttributes(attribute.Int("candidates", len(out)))
	return out, pos, nil
}

func (r *Resolver) completeAt(ctx context.Context, h frontend.Handle, pos Position) (raw []frontend.RawCandidate, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			raw = nil
			err = errors.New(errors.CodeResource, fmt.Sprintf("frontend panicked during completion: %v", rec))
		}
	}()
	raw, err = r.fe.CompleteAt(ctx, h, pos.Line, pos.Column)
	if err != nil && errors.CodeOf(err) == errors.CodeInternal {
		err = errors.Wrap(err, errors.CodeResource, "completion failed")
	}
	return raw, err
}

// Process filters, ranks and deduplicates raw candidates.
//
// NotAvailable results are dropped unless nothing else remains. The rest are
// ordered by priority, then display text, and results sharing display text
// and kind collapse onto the best-ranked one.
func Process(raw []frontend.RawCandidate, opts Options) []Candidate {
	out := make([]Candidate, 0, len(raw))
	var unavailable []Candidate
	for _, rc := range raw {
		if rc.TypedText == "" {
			continue
		}
		if opts.HideInaccessible && rc.Availability == frontend.NotAccessible {
			continue
		}
		c := fromRaw(rc)
		if rc.Availability == frontend.NotAvailable {
			unavailable = append(unavailable, c)
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		out = unavailable
	}

	slices.SortStableFunc(out, compareCandidates)
	out = dedup(out)

	if opts.MaxResults > 0 && len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out
}

func compareCandidates(a, b Candidate) int {
	return cmp.Or(
		cmp.Compare(a.Priority, b.Priority),
		cmp.Compare(a.DisplayText, b.DisplayText),
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.Availability, b.Availability),
		cmp.Compare(a.InsertText, b.InsertText),
		cmp.Compare(a.Description, b.Description),
	)
}

type dedupKey struct {
	text string
	kind Kind
}

// dedup keeps the first occurrence of each (display text, kind) in an
// already ranked list, which is the one with the lowest priority.
func dedup(sorted []Candidate) []Candidate {
	seen := make(map[dedupKey]bool, len(sorted))
	out := sorted[:0]
	for _, c := range sorted {
		key := dedupKey{text: c.DisplayText, kind: c.Kind}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
