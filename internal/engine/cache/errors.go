package cache

import (
	"fmt"

	"autocomplete/internal/core/errors"
	"autocomplete/internal/engine/frontend"
)

// ParseError reports a unit that could not be built. Nothing is cached for
// the failed attempt, so the next request retries.
type ParseError struct {
	Path        string
	Diagnostics []frontend.Diagnostic
	Err         error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Code is PARSE_ERROR for rejected sources and RESOURCE_ERROR when the
// frontend could not allocate a unit.
func (e *ParseError) Code() errors.ErrorCode { return errors.CodeOf(e.Err) }

func newParseError(path string, code errors.ErrorCode, msg string, cause error, diags []frontend.Diagnostic) *ParseError {
	var err error
	if cause != nil {
		err = errors.Wrap(cause, code, msg)
	} else {
		err = errors.New(code, msg)
	}
	err = errors.AddContext(err, errors.CtxPath, path)

	out := append([]frontend.Diagnostic(nil), diags...)
	for i := range out {
		if out[i].Code == "" {
			out[i].Code = code
		}
	}
	if len(out) == 0 {
		detail := msg
		if cause != nil {
			detail = fmt.Sprintf("%s: %v", msg, cause)
		}
		out = append(out, frontend.Diagnostic{
			Severity: frontend.SeverityFatal,
			Message:  detail,
			Location: frontend.Location{File: path},
			Code:     code,
		})
	}
	return &ParseError{Path: path, Diagnostics: out, Err: err}
}
