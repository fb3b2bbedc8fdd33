package resolver

import (
	"fmt"
	"strings"

	"autocomplete/internal/engine/frontend"
)

// Kind is the coarse category shown to the editor.
type Kind int

const (
	KindOther Kind = iota
	KindVariable
	KindFunction
	KindType
	KindKeyword
	KindMacro
	KindSnippet
)

var kindNames = [...]string{
	KindOther:    "other",
	KindVariable: "variable",
	KindFunction: "function",
	KindType:     "type",
	KindKeyword:  "keyword",
	KindMacro:    "macro",
	KindSnippet:  "snippet",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(text []byte) error {
	for v, name := range kindNames {
		if name == string(text) {
			*k = Kind(v)
			return nil
		}
	}
	return fmt.Errorf("unknown kind %q", text)
}

// KindOf maps a declaration kind onto the editor-facing category.
func KindOf(c frontend.CursorKind) Kind {
	switch c {
	case frontend.CursorFunctionDecl, frontend.CursorMethod,
		frontend.CursorConstructor, frontend.CursorDestructor:
		return KindFunction
	case frontend.CursorVarDecl, frontend.CursorFieldDecl, frontend.CursorParmDecl,
		frontend.CursorEnumConstantDecl, frontend.CursorConstant:
		return KindVariable
	case frontend.CursorStructDecl, frontend.CursorClassDecl, frontend.CursorUnionDecl,
		frontend.CursorEnumDecl, frontend.CursorTypedefDecl, frontend.CursorTypeAlias,
		frontend.CursorInterfaceDecl:
		return KindType
	case frontend.CursorMacroDefinition:
		return KindMacro
	case frontend.CursorKeyword:
		return KindKeyword
	case frontend.CursorPattern:
		return KindSnippet
	default:
		return KindOther
	}
}

// Candidate is one ranked completion result.
type Candidate struct {
	DisplayText  string                `json:"displayText"`
	InsertText   string                `json:"insertText"`
	Kind         Kind                  `json:"kind"`
	Priority     int                   `json:"priority"`
	Availability frontend.Availability `json:"availability"`

	// Detail fields, filled when the frontend reports them.
	CursorKind  frontend.CursorKind `json:"cursorKind"`
	ResultType  string              `json:"resultType,omitempty"`
	Params      []string            `json:"params,omitempty"`
	Qualifiers  []string            `json:"qualifiers,omitempty"`
	Parent      string              `json:"parent,omitempty"`
	Description string              `json:"description,omitempty"`
}

func fromRaw(raw frontend.RawCandidate) Candidate {
	insert := raw.TypedText
	if raw.Snippet != "" {
		insert = raw.Snippet
	}
	c := Candidate{
		DisplayText:  raw.TypedText,
		InsertText:   insert,
		Kind:         KindOf(raw.Kind),
		Priority:     raw.Priority,
		Availability: raw.Availability,
		CursorKind:   raw.Kind,
		ResultType:   raw.ResultType,
		Params:       append([]string(nil), raw.Params...),
		Qualifiers:   append([]string(nil), raw.Qualifiers...),
		Parent:       raw.Parent,
	}
	c.Description = describe(raw)
	return c
}

func describe(raw frontend.RawCandidate) string {
	var b strings.Builder
	switch KindOf(raw.Kind) {
	case KindFunction:
		if raw.ResultType != "" {
			b.WriteString(raw.ResultType)
			b.WriteByte(' ')
		}
		if raw.Parent != "" {
			b.WriteString(raw.Parent)
			b.WriteString("::")
		}
		b.WriteString(raw.TypedText)
		b.WriteByte('(')
		b.WriteString(strings.Join(raw.Params, ", "))
		b.WriteByte(')')
		for _, q := range raw.Qualifiers {
			b.WriteString(q)
		}
	case KindVariable:
		if raw.ResultType != "" {
			b.WriteString(raw.ResultType)
			b.WriteByte(' ')
		}
		b.WriteString(raw.TypedText)
	case KindType:
		b.WriteString(raw.Kind.String())
		b.WriteByte(' ')
		b.WriteString(raw.TypedText)
		if raw.ResultType != "" {
			b.WriteString(" = ")
			b.WriteString(raw.ResultType)
		}
	case KindMacro:
		b.WriteString("#define ")
		b.WriteString(raw.TypedText)
		if len(raw.Params) > 0 {
			b.WriteByte('(')
			b.WriteString(strings.Join(raw.Params, ", "))
			b.WriteByte(')')
		}
	case KindSnippet:
		b.WriteString(raw.Snippet)
	default:
		b.WriteString(raw.TypedText)
	}
	return b.String()
}
