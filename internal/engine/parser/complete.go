package parser

import (
	"strings"

	"autocomplete/internal/engine/frontend"
)

// Priorities on clang's code-completion priority scale; lower ranks first.
const (
	priorityLocal     = 34
	priorityMember    = 35
	priorityKeyword   = 40
	priorityDecl      = 50
	priorityConstant  = 65
	priorityMacro     = 70
	priorityNamespace = 75

	inheritedPenalty = 2
	casePenalty      = 1
)

var preprocessorDirectives = []string{
	"define", "elif", "elifdef", "elifndef", "else", "endif", "error", "if", "ifdef",
	"ifndef", "include", "include_next", "line", "pragma", "undef", "warning",
}

// completionContext describes the text around the cursor.
type completionContext struct {
	offset   uint
	prefix   string
	op       string // ".", "->", "::" or ""
	receiver string
	global   bool // leading "::" with no receiver
	// number is set when the cursor follows a numeric literal's decimal point.
	number bool
}

func detectContext(src []byte, offset int) completionContext {
	start := offset
	for start > 0 && isIdentByte(src[start-1]) {
		start--
	}
	c := completionContext{offset: uint(offset), prefix: string(src[start:offset])}

	i := start
	for i > 0 && (src[i-1] == ' ' || src[i-1] == '\t') {
		i--
	}
	switch {
	case i >= 2 && src[i-2] == '-' && src[i-1] == '>':
		c.op, i = "->", i-2
	case i >= 2 && src[i-2] == ':' && src[i-1] == ':':
		c.op, i = "::", i-2
	case i >= 1 && src[i-1] == '.':
		if i >= 2 && src[i-2] >= '0' && src[i-2] <= '9' && !identBefore(src, i-1) {
			c.number = true
			return c
		}
		c.op, i = ".", i-1
	default:
		return c
	}
	c.receiver = receiverBefore(src, i)
	if c.receiver == "" && c.op == "::" {
		c.global = true
	}
	return c
}

// identBefore reports whether the digit run ending at end belongs to an identifier.
func identBefore(src []byte, end int) bool {
	i := end
	for i > 0 && isIdentByte(src[i-1]) {
		i--
	}
	return i < end && !(src[i] >= '0' && src[i] <= '9')
}

// receiverBefore returns the postfix expression ending at end, such as
// a.b()->c[1].
func receiverBefore(src []byte, end int) string {
	i := end
	for {
		for i > 0 && (src[i-1] == ' ' || src[i-1] == '\t') {
			i--
		}
		for i > 0 && (src[i-1] == ')' || src[i-1] == ']' || src[i-1] == '>' && (i < 2 || src[i-2] != '-')) {
			j := matchBackward(src, i-1)
			if j < 0 {
				return strings.TrimSpace(string(src[i:end]))
			}
			i = j
		}
		id := i
		for id > 0 && isIdentByte(src[id-1]) {
			id--
		}
		i = id
		k := i
		for k > 0 && (src[k-1] == ' ' || src[k-1] == '\t') {
			k--
		}
		switch {
		case k >= 2 && src[k-2] == '-' && src[k-1] == '>':
			i = k - 2
		case k >= 2 && src[k-2] == ':' && src[k-1] == ':':
			i = k - 2
			if k-2 == 0 || !isIdentByte(src[k-3]) && src[k-3] != '>' {
				// Leading :: of a globally qualified name.
				return strings.TrimSpace(string(src[i:end]))
			}
		case k >= 1 && src[k-1] == '.':
			i = k - 1
		default:
			return strings.TrimSpace(string(src[i:end]))
		}
	}
}

var openers = map[byte]byte{')': '(', ']': '[', '>': '<', '}': '{'}

func matchBackward(src []byte, closeAt int) int {
	c := src[closeAt]
	o := openers[c]
	depth := 0
	for i := closeAt; i >= 0; i-- {
		switch src[i] {
		case c:
			depth++
		case o:
			depth--
			if depth == 0 {
				return i
			}
		case ';', '{', '}':
			if c != '}' {
				return -1
			}
		}
	}
	return -1
}

// collector accumulates candidates matching the typed prefix.
type collector struct {
	prefix string
	lower  string
	out    []frontend.RawCandidate
}

func newCollector(prefix string) *collector {
	return &collector{prefix: prefix, lower: strings.ToLower(prefix)}
}

func (c *collector) add(cand frontend.RawCandidate) {
	if cand.TypedText == "" || strings.HasPrefix(cand.TypedText, anonPrefix) {
		return
	}
	if c.prefix != "" && !strings.HasPrefix(cand.TypedText, c.prefix) {
		if !strings.HasPrefix(strings.ToLower(cand.TypedText), c.lower) {
			return
		}
		cand.Priority += casePenalty
	}
	c.out = append(c.out, cand)
}

func (c *collector) symbol(sym *symbol, priority int) {
	parent := sym.parent
	if sym.kind == frontend.CursorEnumConstantDecl || sym.kind == frontend.CursorNamespace {
		parent = lastComponent(parent)
	}
	c.add(frontend.RawCandidate{
		TypedText:    sym.name,
		ResultType:   sym.typ,
		Params:       sym.params,
		Qualifiers:   sym.quals,
		Parent:       parent,
		Kind:         sym.kind,
		Priority:     priority,
		Availability: sym.avail,
	})
}

func symbolPriority(sym *symbol) int {
	switch sym.kind {
	case frontend.CursorEnumConstantDecl, frontend.CursorConstant:
		return priorityConstant
	case frontend.CursorMacroDefinition:
		return priorityMacro
	case frontend.CursorNamespace, frontend.CursorPackage:
		return priorityNamespace
	case frontend.CursorParmDecl:
		return priorityLocal
	}
	return priorityDecl
}

// completeAt builds the raw candidates at offset in u.
func completeAt(u *Unit, offset int) []frontend.RawCandidate {
	ctx := detectContext(u.source, offset)
	if ctx.number || ctx.prefix != "" && ctx.prefix[0] >= '0' && ctx.prefix[0] <= '9' {
		return nil
	}
	if u.inCommentOrString(uint(offset)) {
		return nil
	}
	c := newCollector(ctx.prefix)
	t := newTyper(u, uint(offset))

	if directive, ok := directiveContext(u, offset, ctx); ok {
		if directive {
			for _, d := range preprocessorDirectives {
				c.add(frontend.RawCandidate{TypedText: d, Kind: frontend.CursorKeyword, Priority: priorityKeyword})
			}
		}
		return c.out
	}

	switch {
	case ctx.op == "." || ctx.op == "->":
		r := t.resolveChain(ctx.receiver, ctx.op)
		if r.kind == refValue {
			if rec := t.typeRecord(r.name, t.ns, ctx.op == "->"); rec != nil {
				t.members(c, rec, memberAccess)
			}
		}
	case ctx.op == "::" && ctx.global:
		t.scopeMembers(c, ref{kind: refNamespace, name: ""})
	case ctx.op == "::":
		t.scopeMembers(c, t.resolveChain(ctx.receiver, "::"))
	default:
		t.general(c)
	}
	return c.out
}

// directiveContext reports whether the cursor is on a preprocessor line, and
// if so whether it is completing the directive name.
func directiveContext(u *Unit, offset int, ctx completionContext) (directive bool, ok bool) {
	if u.lang == LangGo {
		return false, false
	}
	lineStart := offset
	for lineStart > 0 && u.source[lineStart-1] != '\n' {
		lineStart--
	}
	text := strings.TrimLeft(string(u.source[lineStart:offset]), " \t")
	if !strings.HasPrefix(text, "#") {
		return false, false
	}
	rest := strings.TrimLeft(text[1:], " \t")
	if rest == ctx.prefix {
		return true, true
	}
	if strings.HasPrefix(rest, "include") || strings.HasPrefix(rest, "import") {
		return false, true
	}
	// #if, #define bodies and the like complete like code.
	return false, false
}

type memberMode int

const (
	memberAccess   memberMode = iota // obj.member, ptr->member
	memberScope                      // Type::member
	memberImplicit                   // unqualified use inside a member function
)

// members adds the members of rec and its bases.
func (t *typer) members(c *collector, rec *record, mode memberMode) {
	seen := map[string]bool{}
	var walk func(r *record, inherited bool, depth int)
	walk = func(r *record, inherited bool, depth int) {
		if seen[r.name] || depth > maxTypeDepth {
			return
		}
		seen[r.name] = true
		for _, m := range r.members {
			if !memberVisible(m, mode) {
				continue
			}
			prio := priorityMember
			if mode == memberScope && (m.kind == frontend.CursorEnumConstantDecl || isTypeKind(m.kind)) {
				prio = symbolPriority(m)
			}
			if inherited {
				prio += inheritedPenalty
			}
			cand := *m
			if !t.isGo() && !t.accessible(m, r) {
				cand.avail = frontend.NotAccessible
			}
			c.symbol(&cand, prio)
		}
		for _, b := range r.bases {
			if base := t.typeRecord(b.name, parentScope(r.name), false); base != nil {
				walk(base, true, depth+1)
			}
		}
	}
	walk(rec, false, 0)
}

func memberVisible(m *symbol, mode memberMode) bool {
	switch m.kind {
	case frontend.CursorConstructor, frontend.CursorDestructor:
		return false
	}
	if mode == memberAccess && (isTypeKind(m.kind) || m.kind == frontend.CursorEnumConstantDecl) {
		return false
	}
	return true
}

func isTypeKind(k frontend.CursorKind) bool {
	switch k {
	case frontend.CursorStructDecl, frontend.CursorClassDecl, frontend.CursorUnionDecl,
		frontend.CursorEnumDecl, frontend.CursorTypedefDecl, frontend.CursorTypeAlias,
		frontend.CursorInterfaceDecl:
		return true
	}
	return false
}

// accessible applies C++ member access from the cursor position.
func (t *typer) accessible(m *symbol, declaredIn *record) bool {
	if m.access == accessPublic {
		return true
	}
	owner := t.owner()
	if owner == nil {
		return false
	}
	if owner.name == declaredIn.name {
		return true
	}
	if m.access == accessProtected {
		return t.derivesFrom(owner, declaredIn.name, 0)
	}
	return false
}

func (t *typer) derivesFrom(r *record, base string, depth int) bool {
	if depth > maxTypeDepth {
		return false
	}
	for _, b := range r.bases {
		br := t.typeRecord(b.name, parentScope(r.name), false)
		if br == nil {
			continue
		}
		if br.name == base || t.derivesFrom(br, base, depth+1) {
			return true
		}
	}
	return false
}

// scopeMembers completes after "X::".
func (t *typer) scopeMembers(c *collector, r ref) {
	switch r.kind {
	case refNamespace:
		for _, g := range t.ix.globals {
			if g.parent == r.name {
				c.symbol(g, symbolPriority(g))
			}
		}
	case refType:
		rec := t.typeRecord(r.name, t.ns, false)
		if rec == nil {
			return
		}
		t.members(c, rec, memberScope)
	}
}

// general completes an identifier with no qualifier.
func (t *typer) general(c *collector) {
	inFunction := t.scope != nil
	if t.scope != nil {
		for _, l := range t.scope.locals {
			if visibleAt(l, t.offset) && l.from <= t.offset {
				prio := priorityLocal
				if isTypeKind(l.kind) {
					prio = priorityDecl
				}
				c.symbol(l, prio)
			}
		}
		if owner := t.owner(); owner != nil && !t.isGo() {
			t.members(c, owner, memberImplicit)
		}
	}

	namespaces := map[string]bool{"": true}
	for ns := t.ns; ns != ""; ns = parentScope(ns) {
		namespaces[ns] = true
	}
	for _, g := range t.ix.globals {
		if namespaces[g.parent] {
			c.symbol(g, symbolPriority(g))
		}
	}

	if t.isGo() {
		t.goBuiltins(c, inFunction)
		return
	}

	for _, m := range t.ix.macros {
		c.symbol(m, priorityMacro)
	}
	for _, kw := range keywordsFor(t.u.lang, t.u.std) {
		c.add(frontend.RawCandidate{TypedText: kw, Kind: frontend.CursorKeyword, Priority: priorityKeyword})
	}
	if t.owner() != nil {
		c.add(frontend.RawCandidate{TypedText: "this", ResultType: t.owner().name + " *",
			Kind: frontend.CursorKeyword, Priority: priorityKeyword})
	}
	for _, s := range snippetsFor(t.u.lang, t.u.std, inFunction) {
		c.add(frontend.RawCandidate{TypedText: s.trigger, Snippet: s.body, Kind: frontend.CursorPattern, Priority: priorityKeyword})
	}
}

func (t *typer) goBuiltins(c *collector, inFunction bool) {
	for _, kw := range goKeywords {
		c.add(frontend.RawCandidate{TypedText: kw, Kind: frontend.CursorKeyword, Priority: priorityKeyword})
	}
	for _, fn := range goBuiltinFuncs {
		c.add(frontend.RawCandidate{TypedText: fn, Kind: frontend.CursorFunctionDecl, Priority: priorityDecl})
	}
	for _, typ := range goBuiltinTypes {
		c.add(frontend.RawCandidate{TypedText: typ, Kind: frontend.CursorTypedefDecl, Priority: priorityDecl})
	}
	for _, k := range goBuiltinConsts {
		c.add(frontend.RawCandidate{TypedText: k, Kind: frontend.CursorConstant, Priority: priorityConstant})
	}
	for _, s := range snippetsFor(LangGo, "", inFunction) {
		c.add(frontend.RawCandidate{TypedText: s.trigger, Snippet: s.body, Kind: frontend.CursorPattern, Priority: priorityKeyword})
	}
}
