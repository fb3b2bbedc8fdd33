package parser

import (
	"regexp"
	"strings"

	"autocomplete/internal/engine/frontend"
)

// Initialiser markers for loop variables: the variable has the element (or
// key) type of the ranged expression.
const (
	elemPrefix = "\x00elem:"
	keyPrefix  = "\x00key:"
)

const maxTypeDepth = 8

type refKind int

const (
	refNone refKind = iota
	refValue
	refType
	refNamespace
	refPackage
)

// ref is what an expression names: a value of some type, a type, or a namespace.
type ref struct {
	kind refKind
	name string
}

// segment is one step of an access chain such as a.b()->c[0].
type segment struct {
	sep   string // operator before the segment
	name  string
	inner string // parenthesized expression when name is empty
	targs string
	calls int
	subs  int
}

// typer answers type questions at one cursor position of a unit.
type typer struct {
	u      *Unit
	ix     *index
	offset uint
	scope  *scope
	ns     string
	depth  int
}

func newTyper(u *Unit, offset uint) *typer {
	t := &typer{u: u, ix: u.index, offset: offset}
	t.scope = u.index.scopeAt(offset)
	if t.scope != nil {
		t.ns = t.scope.ns
	}
	return t
}

func (t *typer) isGo() bool { return t.u.lang == LangGo }

// owner returns the record whose member function contains the cursor.
func (t *typer) owner() *record {
	if t.scope == nil || t.scope.owner == "" {
		return nil
	}
	return t.ix.record(stripTemplateArgs(t.scope.owner), t.scope.ns)
}

func parseChain(expr string) (segs []segment, global bool, ok bool) {
	expr = strings.TrimSpace(expr)
	i := 0
	if strings.HasPrefix(expr, "::") {
		global, i = true, 2
	}
	sep := ""
	for i < len(expr) {
		i = skipSpace(expr, i)
		if i >= len(expr) {
			break
		}
		seg := segment{sep: sep}
		switch {
		case expr[i] == '(':
			j := matchForward(expr, i)
			if j < 0 {
				return nil, false, false
			}
			seg.inner = expr[i+1 : j]
			i = j + 1
		case isIdentByte(expr[i]) || expr[i] == '~':
			j := i + 1
			for j < len(expr) && isIdentByte(expr[j]) {
				j++
			}
			seg.name = expr[i:j]
			i = j
		default:
			return nil, false, false
		}
		for i < len(expr) {
			k := skipSpace(expr, i)
			if k >= len(expr) {
				i = k
				break
			}
			c := expr[k]
			if c == '<' && seg.name != "" && seg.calls == 0 && !strings.HasPrefix(expr[k:], "<<") {
				j := matchForward(expr, k)
				if j < 0 {
					break
				}
				seg.targs = expr[k+1 : j]
				i = j + 1
				continue
			}
			if c == '(' || c == '[' || c == '{' {
				j := matchForward(expr, k)
				if j < 0 {
					return nil, false, false
				}
				if c == '[' {
					seg.subs++
				} else {
					seg.calls++
				}
				i = j + 1
				continue
			}
			i = k
			break
		}
		segs = append(segs, seg)
		i = skipSpace(expr, i)
		switch {
		case i >= len(expr):
			return segs, global, len(segs) > 0
		case strings.HasPrefix(expr[i:], "->"):
			sep, i = "->", i+2
		case strings.HasPrefix(expr[i:], "::"):
			sep, i = "::", i+2
		case expr[i] == '.':
			sep, i = ".", i+1
		default:
			return nil, false, false
		}
	}
	return segs, global, len(segs) > 0
}

// resolveChain types an access chain. trailing is the operator that follows
// the chain at the cursor, which decides how a bare name before "::" reads.
func (t *typer) resolveChain(expr, trailing string) ref {
	if t.depth > maxTypeDepth {
		return ref{}
	}
	t.depth++
	defer func() { t.depth-- }()

	segs, global, ok := parseChain(expr)
	if !ok {
		return ref{}
	}
	var cur ref
	for i, seg := range segs {
		next := trailing
		if i+1 < len(segs) {
			next = segs[i+1].sep
		}
		if i == 0 {
			cur = t.first(seg, global, next == "::")
		} else {
			cur = t.step(cur, seg, next == "::")
		}
		if cur.kind == refNone {
			return cur
		}
		for s := 0; s < seg.subs && cur.kind == refValue; s++ {
			cur.name = t.elemType(cur.name)
		}
		if seg.subs > 0 && cur.name == "" {
			return ref{}
		}
	}
	return cur
}

func (t *typer) first(seg segment, global, scopeNext bool) ref {
	if seg.inner != "" {
		typ := t.exprType(seg.inner)
		if typ == "" {
			return ref{}
		}
		return ref{kind: refValue, name: typ}
	}
	if seg.name == "this" && !t.isGo() {
		if r := t.owner(); r != nil {
			return ref{kind: refValue, name: r.name + "*"}
		}
		return ref{}
	}
	ns := t.ns
	if global {
		ns = ""
	}
	if scopeNext || seg.calls > 0 {
		if r := t.scopeRef(seg.name, ns); r.kind != refNone {
			if r.kind == refType && seg.calls > 0 && !scopeNext {
				return ref{kind: refValue, name: r.name}
			}
			if scopeNext {
				return r
			}
		}
	}
	if sym, _ := t.lookup(seg.name, global); sym != nil {
		return t.symbolRef(sym, seg)
	}
	if r := t.scopeRef(seg.name, ns); r.kind != refNone {
		return r
	}
	if typ := t.scanDeclaration(seg.name); typ != "" {
		return ref{kind: refValue, name: typ}
	}
	return ref{}
}

func (t *typer) symbolRef(sym *symbol, seg segment) ref {
	switch sym.kind {
	case frontend.CursorPackage:
		return ref{kind: refPackage, name: sym.name}
	case frontend.CursorNamespace:
		return ref{kind: refNamespace, name: joinScope(sym.parent, sym.name)}
	case frontend.CursorStructDecl, frontend.CursorClassDecl, frontend.CursorUnionDecl,
		frontend.CursorEnumDecl, frontend.CursorInterfaceDecl, frontend.CursorTypedefDecl, frontend.CursorTypeAlias:
		name := joinScope(sym.parent, sym.name)
		if seg.calls > 0 {
			return ref{kind: refValue, name: name}
		}
		return ref{kind: refType, name: name}
	}
	typ := t.symbolType(sym)
	if isFunction(sym.kind) && seg.calls > 0 {
		typ = firstResult(typ)
	}
	if typ == "" {
		return ref{}
	}
	return ref{kind: refValue, name: typ}
}

// scopeRef resolves name as a namespace or type, relative to ns.
func (t *typer) scopeRef(name, ns string) ref {
	for scopeName := ns; ; scopeName = parentScope(scopeName) {
		if q := joinScope(scopeName, name); t.ix.namespaces[q] {
			return ref{kind: refNamespace, name: q}
		}
		if scopeName == "" {
			break
		}
	}
	if r := t.ix.record(name, ns); r != nil {
		return ref{kind: refType, name: r.name}
	}
	if target, ok := t.typedef(name, ns); ok {
		if r := t.typeRecord(target, ns, false); r != nil {
			return ref{kind: refType, name: r.name}
		}
	}
	return ref{}
}

func (t *typer) step(cur ref, seg segment, scopeNext bool) ref {
	switch cur.kind {
	case refPackage:
		return ref{}
	case refNamespace:
		q := joinScope(cur.name, seg.name)
		if t.ix.namespaces[q] {
			return ref{kind: refNamespace, name: q}
		}
		if r, ok := t.ix.records[q]; ok {
			if seg.calls > 0 && !scopeNext {
				return ref{kind: refValue, name: r.name}
			}
			return ref{kind: refType, name: r.name}
		}
		for i := len(t.ix.globals) - 1; i >= 0; i-- {
			g := t.ix.globals[i]
			if g.name == seg.name && g.parent == cur.name {
				return t.symbolRef(g, seg)
			}
		}
		return ref{}
	case refType:
		r := t.typeRecord(cur.name, t.ns, false)
		if r == nil {
			return ref{}
		}
		if q := joinScope(r.name, seg.name); t.ix.records[q] != nil {
			if seg.calls > 0 && !scopeNext {
				return ref{kind: refValue, name: q}
			}
			return ref{kind: refType, name: q}
		}
		if target, ok := t.ix.typedefs[joinScope(r.name, seg.name)]; ok {
			return ref{kind: refType, name: target}
		}
		if m, _ := t.member(r, seg.name, nil); m != nil {
			return t.symbolRef(m, seg)
		}
		return ref{}
	case refValue:
		r := t.typeRecord(cur.name, t.ns, seg.sep == "->")
		if r == nil {
			return ref{}
		}
		if m, _ := t.member(r, seg.name, nil); m != nil {
			return t.symbolRef(m, seg)
		}
	}
	return ref{}
}

// lookup finds an unqualified name visible at the cursor.
func (t *typer) lookup(name string, global bool) (*symbol, bool) {
	if !global && t.scope != nil {
		for i := len(t.scope.locals) - 1; i >= 0; i-- {
			l := t.scope.locals[i]
			if l.name == name && visibleAt(l, t.offset) {
				return l, false
			}
		}
		if r := t.owner(); r != nil && !t.isGo() {
			if m, inherited := t.member(r, name, nil); m != nil {
				return m, inherited
			}
		}
	}
	for ns := t.ns; ; ns = parentScope(ns) {
		for i := len(t.ix.globals) - 1; i >= 0; i-- {
			g := t.ix.globals[i]
			if g.name == name && g.parent == ns {
				return g, false
			}
		}
		if ns == "" || global {
			break
		}
	}
	return nil, false
}

// member finds a member of r or its bases.
func (t *typer) member(r *record, name string, seen map[string]bool) (*symbol, bool) {
	for _, m := range r.members {
		if m.name == name && m.kind != frontend.CursorConstructor {
			return m, false
		}
	}
	if seen == nil {
		seen = make(map[string]bool)
	}
	seen[r.name] = true
	for _, b := range r.bases {
		base := t.typeRecord(b.name, parentScope(r.name), false)
		if base == nil || seen[base.name] {
			continue
		}
		if m, _ := t.member(base, name, seen); m != nil {
			return m, true
		}
	}
	return nil, false
}

func (t *typer) symbolType(sym *symbol) string {
	typ := sym.typ
	if typ == "" || hasWord(typ, "auto") || hasWord(typ, "decltype") {
		if sym.init == "" {
			return ""
		}
		return t.exprType(sym.init)
	}
	return typ
}

// exprType returns the type of an initialiser or receiver expression.
func (t *typer) exprType(expr string) string {
	if t.depth > maxTypeDepth {
		return ""
	}
	t.depth++
	defer func() { t.depth-- }()

	expr = strings.TrimSpace(expr)
	switch {
	case strings.HasPrefix(expr, elemPrefix):
		return t.elemType(t.exprType(strings.TrimPrefix(expr, elemPrefix)))
	case strings.HasPrefix(expr, keyPrefix):
		return keyType(t.exprType(strings.TrimPrefix(expr, keyPrefix)))
	case expr == "":
		return ""
	}

	if t.isGo() {
		if i := strings.IndexByte(expr, '{'); i > 0 && strings.HasSuffix(expr, "}") {
			if m := goCompositeType.FindStringSubmatch(strings.TrimSpace(expr[:i])); m != nil {
				if m[1] == "&" {
					return "*" + m[2]
				}
				return m[2]
			}
		}
		if m := goMakeNew.FindStringSubmatch(expr); m != nil {
			if m[1] == "new" {
				return "*" + strings.TrimSpace(m[2])
			}
			return strings.TrimSpace(m[2])
		}
		if strings.HasPrefix(expr, "&") {
			if inner := t.exprType(expr[1:]); inner != "" {
				return "*" + inner
			}
			return ""
		}
	} else {
		if m := cxxNew.FindStringSubmatch(expr); m != nil {
			return m[1] + "*"
		}
		if m := cxxCast.FindStringSubmatch(expr); m != nil {
			return m[1]
		}
		if m := cxxMakePtr.FindStringSubmatch(expr); m != nil {
			return m[1] + "*"
		}
		if strings.HasPrefix(expr, "&") {
			if inner := t.exprType(expr[1:]); inner != "" {
				return inner + "*"
			}
			return ""
		}
	}
	if strings.HasPrefix(expr, "*") {
		return derefType(t.exprType(expr[1:]))
	}
	r := t.resolveChain(expr, "")
	if r.kind != refValue {
		return ""
	}
	return r.name
}

var (
	goCompositeType = regexp.MustCompile(`^(&?)((?:\[\d*\]|map\[[^\]]*\]|\*)*[A-Za-z_][\w.]*(?:\[[^\]]*\])?)$`)
	goMakeNew       = regexp.MustCompile(`^(make|new)\(\s*([^,()]+(?:\([^)]*\))?)`)
	cxxNew          = regexp.MustCompile(`^new\s+([A-Za-z_][\w:]*(?:<.*>)?)`)
	cxxCast         = regexp.MustCompile(`^(?:static|dynamic|reinterpret|const)_cast\s*<\s*(.+?)\s*>\s*\(`)
	cxxMakePtr      = regexp.MustCompile(`^(?:std::)?make_(?:unique|shared)\s*<\s*([^,>]+?)\s*[,>]`)
)

// typeRecord resolves a type spelling to a record, following typedefs.
// arrow unwraps smart pointers the way operator-> would.
func (t *typer) typeRecord(typ, ns string, arrow bool) *record {
	for i := 0; i < maxTypeDepth; i++ {
		base, targs := t.baseType(typ)
		if base == "" {
			return nil
		}
		if r := t.ix.record(base, ns); r != nil {
			return r
		}
		if target, ok := t.typedef(base, ns); ok {
			typ = target
			continue
		}
		if targs != "" && (arrow || isWrapper(base)) {
			typ = firstTemplateArg(targs)
			continue
		}
		return nil
	}
	return nil
}

func (t *typer) typedef(name, ns string) (string, bool) {
	name = strings.TrimPrefix(name, "::")
	for scopeName := ns; ; scopeName = parentScope(scopeName) {
		if target, ok := t.ix.typedefs[joinScope(scopeName, name)]; ok {
			if target == name || target == joinScope(scopeName, name) {
				return "", false
			}
			return target, true
		}
		if scopeName == "" {
			return "", false
		}
	}
}

var cvWords = map[string]bool{
	"const": true, "volatile": true, "struct": true, "class": true, "union": true,
	"enum": true, "typename": true, "mutable": true, "static": true, "constexpr": true,
	"inline": true, "extern": true, "register": true, "restrict": true, "__restrict": true,
}

// baseType strips qualifiers, pointers, references and template
// arguments, returning the bare type name and its template arguments.
func (t *typer) baseType(typ string) (string, string) {
	typ = strings.TrimSpace(typ)
	if t.isGo() {
		typ = strings.TrimLeft(typ, "*")
		if strings.HasPrefix(typ, "[") || strings.HasPrefix(typ, "map[") || strings.HasPrefix(typ, "chan ") || strings.HasPrefix(typ, "func") {
			return "", ""
		}
		targs := ""
		if i := strings.IndexByte(typ, '['); i > 0 {
			targs = typ[i:]
		}
		return goBaseType(typ), targs
	}
	targs := ""
	if i := strings.IndexByte(typ, '<'); i >= 0 {
		if j := matchForward(typ, i); j > i {
			targs = typ[i+1 : j]
			typ = typ[:i] + typ[j+1:]
		}
	}
	typ = strings.TrimRight(typ, " *&")
	var words []string
	for _, w := range strings.Fields(strings.NewReplacer("*", " ", "&", " ").Replace(typ)) {
		if !cvWords[w] {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return "", ""
	}
	return strings.TrimPrefix(words[len(words)-1], "::"), targs
}

var wrapperTypes = map[string]bool{
	"unique_ptr": true, "shared_ptr": true, "weak_ptr": true, "optional": true,
	"reference_wrapper": true, "atomic": true,
}

func isWrapper(base string) bool { return wrapperTypes[lastComponent(base)] }

// elemType is the type produced by indexing or ranging over typ.
func (t *typer) elemType(typ string) string {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return ""
	}
	if t.isGo() {
		for i := 0; i < maxTypeDepth; i++ {
			switch {
			case strings.HasPrefix(typ, "[]"):
				return typ[2:]
			case strings.HasPrefix(typ, "["):
				if j := strings.IndexByte(typ, ']'); j > 0 {
					return typ[j+1:]
				}
				return ""
			case strings.HasPrefix(typ, "map["):
				if j := matchForward(typ, 3); j > 0 {
					return strings.TrimSpace(typ[j+1:])
				}
				return ""
			case strings.HasPrefix(typ, "chan "), strings.HasPrefix(typ, "<-chan "):
				return strings.TrimSpace(typ[strings.Index(typ, "chan ")+5:])
			case strings.HasPrefix(typ, "*"):
				typ = typ[1:]
			case typ == "string":
				return "rune"
			default:
				target, ok := t.typedef(goBaseType(typ), "")
				if !ok {
					return ""
				}
				typ = target
			}
		}
		return ""
	}

	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(strings.TrimSuffix(typ, "&")), "const"))
	switch {
	case strings.HasSuffix(trimmed, "[]"):
		return strings.TrimSpace(strings.TrimSuffix(trimmed, "[]"))
	case strings.HasSuffix(trimmed, "*"):
		return strings.TrimSpace(strings.TrimSuffix(trimmed, "*"))
	}
	base, targs := t.baseType(trimmed)
	if targs != "" {
		return firstTemplateArg(targs)
	}
	if target, ok := t.typedef(base, t.ns); ok && t.depth < maxTypeDepth {
		t.depth++
		defer func() { t.depth-- }()
		return t.elemType(target)
	}
	return ""
}

func keyType(typ string) string {
	if strings.HasPrefix(typ, "map[") {
		if j := matchForward(typ, 3); j > 0 {
			return typ[4:j]
		}
	}
	if typ == "" {
		return ""
	}
	return "int"
}

func derefType(typ string) string {
	typ = strings.TrimSpace(typ)
	switch {
	case strings.HasPrefix(typ, "*"):
		return typ[1:]
	case strings.HasSuffix(typ, "*"):
		return strings.TrimSpace(typ[:len(typ)-1])
	}
	return typ
}

func firstTemplateArg(targs string) string {
	depth := 0
	for i, c := range targs {
		switch c {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(targs[:i])
			}
		}
	}
	return strings.TrimSpace(targs)
}

// firstResult picks the first result of a Go multi-value signature.
func firstResult(typ string) string {
	typ = strings.TrimSpace(typ)
	if !strings.HasPrefix(typ, "(") {
		return typ
	}
	inner := typ[1:]
	if j := matchForward(typ, 0); j > 0 {
		inner = typ[1:j]
	}
	first := firstTemplateArg(inner)
	// Named results: "n int".
	if fields := strings.Fields(first); len(fields) == 2 {
		return fields[1]
	}
	return first
}

func stripTemplateArgs(name string) string {
	var b strings.Builder
	depth := 0
	for _, c := range name {
		switch {
		case c == '<':
			depth++
		case c == '>':
			depth--
		case depth == 0:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func isFunction(kind frontend.CursorKind) bool {
	switch kind {
	case frontend.CursorFunctionDecl, frontend.CursorMethod, frontend.CursorConstructor, frontend.CursorDestructor:
		return true
	}
	return false
}

func visibleAt(sym *symbol, offset uint) bool {
	if sym.to == 0 {
		return true
	}
	return offset >= sym.from && offset <= sym.to
}

var scanStopWords = map[string]bool{
	"return": true, "else": true, "case": true, "goto": true, "delete": true, "new": true,
	"typedef": true, "using": true, "sizeof": true, "throw": true, "co_return": true,
}

// scanDeclaration finds the type of name by scanning the source before the
// cursor for a declaration. It backs up the index when the tree around the
// cursor is broken.
func (t *typer) scanDeclaration(name string) string {
	src := string(t.u.source[:min(int(t.offset), len(t.u.source))])
	quoted := regexp.QuoteMeta(name)
	if t.isGo() {
		re := regexp.MustCompile(`\bvar\s+` + quoted + `\s+([\w.*\[\]]+)`)
		if all := re.FindAllStringSubmatch(src, -1); len(all) > 0 {
			return all[len(all)-1][1]
		}
		return ""
	}
	re := regexp.MustCompile(`([A-Za-z_][\w:]*(?:\s*<[^;{}()]*>)?)\s*([*&]*)\s*\b` + quoted + `\s*(?:[;=,)\[{(]|$)`)
	all := re.FindAllStringSubmatch(src, -1)
	for i := len(all) - 1; i >= 0; i-- {
		typ := all[i][1]
		if scanStopWords[typ] || typ == name {
			continue
		}
		return typ + all[i][2]
	}
	return ""
}

func hasWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return !isIdentByte(byte(r)) || r > 127 }) {
		if f == word {
			return true
		}
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}', '<': '>'}

// matchForward returns the index of the bracket closing s[open], or -1.
func matchForward(s string, open int) int {
	if open >= len(s) {
		return -1
	}
	o := s[open]
	c, ok := closers[o]
	if !ok {
		return -1
	}
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case o:
			depth++
		case c:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
