package frontend

import (
	"fmt"

	"autocomplete/internal/core/errors"
)

// Severity follows clang's diagnostic severity scale.
type Severity int

const (
	SeverityIgnored Severity = iota
	SeverityNote
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityIgnored:
		return "ignored"
	case SeverityNote:
		return "note"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(text []byte) error {
	for v := SeverityIgnored; v <= SeverityFatal; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.Line == 0 {
		return l.File
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is one message reported while building or using a unit.
// Code is empty for ordinary compiler diagnostics and carries the engine
// error code for diagnostics synthesised from failures.
type Diagnostic struct {
	Severity Severity
	Message  string
	Location Location
	Code     errors.ErrorCode
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Location, d.Severity, d.Message)
}

// CursorKind is the declaration kind behind a raw candidate.
type CursorKind int

const (
	CursorNotImplemented CursorKind = iota
	CursorStructDecl
	CursorClassDecl
	CursorUnionDecl
	CursorEnumDecl
	CursorEnumConstantDecl
	CursorFunctionDecl
	CursorMethod
	CursorConstructor
	CursorDestructor
	CursorFieldDecl
	CursorVarDecl
	CursorParmDecl
	CursorTypedefDecl
	CursorTypeAlias
	CursorNamespace
	CursorMacroDefinition
	CursorInterfaceDecl
	CursorPackage
	CursorKeyword
	CursorPattern
	CursorConstant
)

var cursorKindNames = map[CursorKind]string{
	CursorNotImplemented:   "not_implemented",
	CursorStructDecl:       "struct",
	CursorClassDecl:        "class",
	CursorUnionDecl:        "union",
	CursorEnumDecl:         "enum",
	CursorEnumConstantDecl: "enum_member",
	CursorFunctionDecl:     "function",
	CursorMethod:           "method",
	CursorConstructor:      "constructor",
	CursorDestructor:       "destructor",
	CursorFieldDecl:        "member",
	CursorVarDecl:          "variable",
	CursorParmDecl:         "parameter",
	CursorTypedefDecl:      "typedef",
	CursorTypeAlias:        "type_alias",
	CursorNamespace:        "namespace",
	CursorMacroDefinition:  "macro",
	CursorInterfaceDecl:    "interface",
	CursorPackage:          "package",
	CursorKeyword:          "keyword",
	CursorPattern:          "pattern",
	CursorConstant:         "constant",
}

func (k CursorKind) String() string {
	if name, ok := cursorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("cursor(%d)", int(k))
}

func (k CursorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *CursorKind) UnmarshalText(text []byte) error {
	for v, name := range cursorKindNames {
		if name == string(text) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown cursor kind %q", text)
}

// Availability mirrors CXAvailabilityKind.
type Availability int

const (
	Available Availability = iota
	Deprecated
	NotAvailable
	NotAccessible
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Deprecated:
		return "deprecated"
	case NotAvailable:
		return "not_available"
	case NotAccessible:
		return "not_accessible"
	default:
		return fmt.Sprintf("availability(%d)", int(a))
	}
}

func (a Availability) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Availability) UnmarshalText(text []byte) error {
	for v := Available; v <= NotAccessible; v++ {
		if v.String() == string(text) {
			*a = v
			return nil
		}
	}
	return fmt.Errorf("unknown availability %q", text)
}

// RawCandidate is one completion result as produced by the frontend,
// before filtering, ranking and deduplication.
type RawCandidate struct {
	// TypedText is the text the user types to select the result.
	TypedText string
	// ResultType is the declared type of a variable or the return type of a function.
	ResultType string
	Params     []string
	// Qualifiers holds informative chunks such as " const" on methods.
	Qualifiers []string
	// Parent names the enclosing record, enum or namespace, if any.
	Parent string
	// Snippet is the insertion text for code patterns.
	Snippet      string
	Kind         CursorKind
	Priority     int
	Availability Availability
}
