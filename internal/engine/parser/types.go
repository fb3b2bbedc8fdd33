// # internal/engine/parser/types.go
package parser

import (
	"strings"

	"autocomplete/internal/engine/frontend"
)

type access int

const (
	accessPublic access = iota
	accessProtected
	accessPrivate
)

// symbol is one declaration known to a unit.
type symbol struct {
	name string
	kind frontend.CursorKind
	typ  string // declared type, return type, or aliased type
	init string // initialiser text, used to type auto and := declarations
	// params holds parameter declarations for functions and macro parameters.
	params []string
	quals  []string
	parent string // qualified owner (record or namespace)
	access access
	avail  frontend.Availability
	static bool
	file   string

	// Visibility window for locals and parameters, as byte offsets into the
	// main file. Zero end means file scope.
	from, to uint
}

type baseSpec struct {
	name   string
	access access
}

// record is a struct, class, union, enum or Go interface with its members.
type record struct {
	name    string // qualified
	kind    frontend.CursorKind
	bases   []baseSpec
	members []*symbol
	scoped  bool // enum class
}

// scope is a function body in the main file.
type scope struct {
	start, end uint
	// owner names the record of a member function as written, resolved
	// lazily from ns since the record may live in a later header.
	owner  string
	ns     string
	locals []*symbol
}

type index struct {
	globals    []*symbol
	records    map[string]*record
	byName     map[string][]*record
	typedefs   map[string]string
	namespaces map[string]bool
	macros     []*symbol
	scopes     []*scope
}

func newIndex() *index {
	return &index{
		records:    make(map[string]*record),
		byName:     make(map[string][]*record),
		typedefs:   make(map[string]string),
		namespaces: make(map[string]bool),
	}
}

func (ix *index) addRecord(r *record) *record {
	if existing, ok := ix.records[r.name]; ok {
		// Forward declarations and reopened Go method sets merge.
		existing.members = append(existing.members, r.members...)
		existing.bases = append(existing.bases, r.bases...)
		if r.kind != frontend.CursorNotImplemented {
			existing.kind = r.kind
		}
		return existing
	}
	ix.records[r.name] = r
	simple := lastComponent(r.name)
	ix.byName[simple] = append(ix.byName[simple], r)
	return r
}

// record finds a record by qualified or simple name. from is the qualified
// scope of the lookup; enclosing namespaces are tried innermost first.
func (ix *index) record(name, from string) *record {
	name = strings.TrimPrefix(name, "::")
	if name == "" {
		return nil
	}
	for ns := from; ; ns = parentScope(ns) {
		if r, ok := ix.records[joinScope(ns, name)]; ok {
			return r
		}
		if ns == "" {
			break
		}
	}
	if rs := ix.byName[lastComponent(name)]; len(rs) > 0 {
		return rs[0]
	}
	return nil
}

func (ix *index) scopeAt(offset uint) *scope {
	var best *scope
	for _, s := range ix.scopes {
		if offset >= s.start && offset <= s.end {
			if best == nil || s.start >= best.start {
				best = s
			}
		}
	}
	return best
}

func (ix *index) global(name string) *symbol {
	for i := len(ix.globals) - 1; i >= 0; i-- {
		if ix.globals[i].name == name {
			return ix.globals[i]
		}
	}
	return nil
}

// memorySize approximates the bytes held by the index.
func (ix *index) memorySize() uint64 {
	var n uint64
	count := func(s *symbol) {
		n += 96 + uint64(len(s.name)+len(s.typ)+len(s.init)+len(s.parent))
		for _, p := range s.params {
			n += uint64(len(p)) + 16
		}
	}
	for _, s := range ix.globals {
		count(s)
	}
	for _, s := range ix.macros {
		count(s)
	}
	for _, r := range ix.records {
		n += 64 + uint64(len(r.name))
		for _, m := range r.members {
			count(m)
		}
	}
	for _, sc := range ix.scopes {
		n += 48
		for _, s := range sc.locals {
			count(s)
		}
	}
	return n
}

func joinScope(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "::" + name
}

func parentScope(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[:i]
	}
	return ""
}

func lastComponent(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}
