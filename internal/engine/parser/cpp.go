package parser

import (
	"fmt"
	"regexp"
	"strings"

	"autocomplete/internal/engine/frontend"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var deprecatedAttr = regexp.MustCompile(`\[\[\s*(?:gnu::)?deprecated|__attribute__\s*\(\(\s*(?:__)?deprecated|__declspec\s*\(\s*deprecated`)

// includeDirective is one #include found while walking a file.
type includeDirective struct {
	target string
	angled bool
	loc    frontend.Location
}

// CppExtractor indexes C and C++ declarations.
type CppExtractor struct {
	walk     *ExtractorEngine
	includes []includeDirective
	anon     int
}

func (e *CppExtractor) Extract(ctx *ExtractionContext, root *sitter.Node) []includeDirective {
	engine := NewExtractorEngine(map[string]NodeHandler{
		"preproc_include":      e.extractInclude,
		"preproc_def":          e.extractMacro,
		"preproc_function_def": e.extractMacro,
		"namespace_definition": e.extractNamespace,
		"function_definition":  e.extractFunction,
		"declaration":          e.extractDeclaration,
		"type_definition":      e.extractTypedef,
		"alias_declaration":    e.extractAlias,
		"class_specifier":      e.extractSpecifier,
		"struct_specifier":     e.extractSpecifier,
		"union_specifier":      e.extractSpecifier,
		"enum_specifier":       e.extractSpecifier,
		"for_range_loop":       e.extractRangeFor,
		"catch_clause":         e.extractCatch,
	})
	e.walk = engine
	engine.Walk(ctx, root)
	return e.includes
}

func (e *CppExtractor) extractInclude(ctx *ExtractionContext, node *sitter.Node) bool {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		return true
	}
	raw := strings.TrimSpace(ctx.Text(pathNode))
	dir := includeDirective{loc: ctx.Location(pathNode)}
	switch {
	case strings.HasPrefix(raw, "<"):
		dir.angled = true
		dir.target = strings.Trim(raw, "<>")
	default:
		dir.target = strings.Trim(raw, `"`)
	}
	if dir.target != "" {
		e.includes = append(e.includes, dir)
	}
	return true
}

func (e *CppExtractor) extractMacro(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.Text(node.ChildByFieldName("name"))
	if name == "" {
		return true
	}
	sym := &symbol{
		name: name,
		kind: frontend.CursorMacroDefinition,
		typ:  strings.TrimSpace(ctx.Text(node.ChildByFieldName("value"))),
		file: ctx.Path,
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := uint(0); i < params.NamedChildCount(); i++ {
			sym.params = append(sym.params, ctx.Text(params.NamedChild(i)))
		}
		if strings.Contains(ctx.Text(params), "...") {
			sym.params = append(sym.params, "...")
		}
	}
	ctx.Index.macros = append(ctx.Index.macros, sym)
	return true
}

func (e *CppExtractor) extractNamespace(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.Text(node.ChildByFieldName("name"))
	outer := ctx.Scope
	if name != "" {
		for _, part := range strings.Split(name, "::") {
			part = strings.TrimSpace(strings.TrimPrefix(part, "inline "))
			q := joinScope(ctx.Scope, part)
			if !ctx.Index.namespaces[q] {
				ctx.Index.namespaces[q] = true
				ctx.Index.globals = append(ctx.Index.globals, &symbol{
					name: part, kind: frontend.CursorNamespace, parent: ctx.Scope, file: ctx.Path,
				})
			}
			ctx.Scope = q
		}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		e.walk.WalkChildren(ctx, body)
	}
	ctx.Scope = outer
	return true
}

func (e *CppExtractor) extractFunction(ctx *ExtractionContext, node *sitter.Node) bool {
	d := unwrapDeclarator(ctx, node.ChildByFieldName("declarator"))
	if d.fn == nil || d.name == "" {
		return false
	}
	typ := e.typeText(ctx, node, d.ptr)

	owner := d.qualifier
	if owner == "" && ctx.Func == nil {
		sym := e.functionSymbol(ctx, node, d, typ, frontend.CursorFunctionDecl)
		ctx.declare(sym)
	}

	body := node.ChildByFieldName("body")
	if body == nil || body.Kind() != "compound_statement" {
		return true
	}
	if ctx.Func != nil {
		// Local classes and lambdas share the enclosing scope.
		e.walk.WalkChildren(ctx, body)
		return true
	}
	sc := &scope{start: body.StartByte(), end: body.EndByte(), owner: owner, ns: ctx.Scope}
	e.declareParams(ctx, sc, d.fn, body.StartByte(), body.EndByte())

	ctx.Func = sc
	e.walk.WalkChildren(ctx, body)
	ctx.Func = nil
	if ctx.Main {
		ctx.Index.scopes = append(ctx.Index.scopes, sc)
	}
	return true
}

func (e *CppExtractor) declareParams(ctx *ExtractionContext, sc *scope, fn *sitter.Node, from, to uint) {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		pd := unwrapDeclarator(ctx, p.ChildByFieldName("declarator"))
		if pd.name == "" {
			continue
		}
		sc.locals = append(sc.locals, &symbol{
			name: pd.name,
			kind: frontend.CursorParmDecl,
			typ:  e.typeText(ctx, p, pd.ptr),
			file: ctx.Path,
			from: from,
			to:   to,
		})
	}
}

func (e *CppExtractor) functionSymbol(ctx *ExtractionContext, node *sitter.Node, d declarator, typ string, kind frontend.CursorKind) *symbol {
	sym := &symbol{
		name:   d.name,
		kind:   kind,
		typ:    typ,
		static: hasStorage(ctx, node, "static"),
		avail:  availabilityOf(ctx, node),
	}
	if params := d.fn.ChildByFieldName("parameters"); params != nil {
		for i := uint(0); i < params.NamedChildCount(); i++ {
			p := params.NamedChild(i)
			text := ctx.Compact(p)
			if text == "void" && params.NamedChildCount() == 1 {
				break
			}
			sym.params = append(sym.params, text)
		}
	}
	for i := uint(0); i < d.fn.ChildCount(); i++ {
		child := d.fn.Child(i)
		if child.Kind() == "type_qualifier" {
			sym.quals = append(sym.quals, " "+ctx.Text(child))
		}
	}
	return sym
}

func (e *CppExtractor) extractDeclaration(ctx *ExtractionContext, node *sitter.Node) bool {
	typeNode := node.ChildByFieldName("type")
	declared := e.inlineRecord(ctx, typeNode)

	for _, dn := range declaratorChildren(node, typeNode) {
		d := unwrapDeclarator(ctx, dn)
		if d.name == "" {
			continue
		}
		typ := declared
		if typ == "" {
			typ = e.typeText(ctx, node, "")
		}
		typ += d.ptr

		if d.fn != nil {
			if d.qualifier != "" {
				continue
			}
			sym := e.functionSymbol(ctx, node, d, typ, frontend.CursorFunctionDecl)
			if ctx.Func != nil {
				sym.from, sym.to = node.EndByte(), enclosingBlockEnd(node)
			}
			ctx.declare(sym)
			continue
		}

		sym := &symbol{
			name:   d.name,
			kind:   frontend.CursorVarDecl,
			typ:    typ,
			static: hasStorage(ctx, node, "static"),
			avail:  availabilityOf(ctx, node),
		}
		if d.value != nil {
			sym.init = ctx.Compact(d.value)
		}
		if ctx.Func != nil {
			sym.from, sym.to = d.end, enclosingBlockEnd(node)
		}
		ctx.declare(sym)
	}
	return true
}

func (e *CppExtractor) extractTypedef(ctx *ExtractionContext, node *sitter.Node) bool {
	typeNode := node.ChildByFieldName("type")
	target := e.inlineRecord(ctx, typeNode)
	if target == "" {
		target = ctx.Compact(typeNode)
	}
	for _, dn := range declaratorChildren(node, typeNode) {
		d := unwrapDeclarator(ctx, dn)
		if d.name == "" {
			continue
		}
		if strings.HasPrefix(lastComponent(target), anonPrefix) {
			e.renameAnon(ctx, target, joinScope(ctx.Scope, d.name))
			target = joinScope(ctx.Scope, d.name)
			continue
		}
		e.declareAlias(ctx, d.name, target+d.ptr, frontend.CursorTypedefDecl, "")
	}
	return true
}

func (e *CppExtractor) extractAlias(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.Text(node.ChildByFieldName("name"))
	if name == "" {
		return true
	}
	e.declareAlias(ctx, name, ctx.Compact(node.ChildByFieldName("type")), frontend.CursorTypeAlias, "")
	return true
}

func (e *CppExtractor) declareAlias(ctx *ExtractionContext, name, target string, kind frontend.CursorKind, owner string) *symbol {
	scopeName := ctx.Scope
	if owner != "" {
		scopeName = owner
	}
	ctx.Index.typedefs[joinScope(scopeName, name)] = target
	sym := &symbol{name: name, kind: kind, typ: target, parent: owner}
	if owner == "" {
		ctx.declare(sym)
	}
	return sym
}

func (e *CppExtractor) extractSpecifier(ctx *ExtractionContext, node *sitter.Node) bool {
	e.inlineRecord(ctx, node)
	return true
}

// inlineRecord indexes a struct, class, union or enum definition appearing as
// a type and returns its qualified name, or "" if node defines nothing.
func (e *CppExtractor) inlineRecord(ctx *ExtractionContext, node *sitter.Node) string {
	if node == nil || node.ChildByFieldName("body") == nil {
		return ""
	}
	switch node.Kind() {
	case "class_specifier", "struct_specifier", "union_specifier":
		r := e.extractRecord(ctx, node, ctx.Scope)
		if ctx.Func == nil && !strings.HasPrefix(lastComponent(r.name), anonPrefix) {
			ctx.declare(&symbol{name: lastComponent(r.name), kind: r.kind})
		}
		return r.name
	case "enum_specifier":
		r := e.extractEnum(ctx, node, ctx.Scope, "")
		return r.name
	}
	return ""
}

const anonPrefix = "(anonymous"

func (e *CppExtractor) recordName(ctx *ExtractionContext, node *sitter.Node, outer string) string {
	nameNode := node.ChildByFieldName("name")
	name := ctx.Text(nameNode)
	if nameNode != nil && nameNode.Kind() == "template_type" {
		name = ctx.Text(nameNode.ChildByFieldName("name"))
	}
	if name == "" {
		e.anon++
		name = fmt.Sprintf("%s %d)", anonPrefix, e.anon)
	}
	return joinScope(outer, name)
}

// renameAnon gives an anonymous record the name of the typedef that introduced it.
func (e *CppExtractor) renameAnon(ctx *ExtractionContext, from, to string) {
	r, ok := ctx.Index.records[from]
	if !ok {
		return
	}
	delete(ctx.Index.records, from)
	simple := lastComponent(from)
	list := ctx.Index.byName[simple]
	for i, candidate := range list {
		if candidate == r {
			ctx.Index.byName[simple] = append(list[:i], list[i+1:]...)
			break
		}
	}
	r.name = to
	for _, m := range r.members {
		m.parent = to
	}
	ctx.Index.addRecord(r)
	ctx.declare(&symbol{name: lastComponent(to), kind: r.kind})
}

func (e *CppExtractor) extractRecord(ctx *ExtractionContext, node *sitter.Node, outer string) *record {
	r := &record{name: e.recordName(ctx, node, outer)}
	def := accessPublic
	switch node.Kind() {
	case "class_specifier":
		r.kind, def = frontend.CursorClassDecl, accessPrivate
	case "union_specifier":
		r.kind = frontend.CursorUnionDecl
	default:
		r.kind = frontend.CursorStructDecl
	}
	if bases := ChildOfKind(node, "base_class_clause"); bases != nil {
		r.bases = e.baseClasses(ctx, bases, def)
	}
	r = ctx.Index.addRecord(r)
	e.recordBody(ctx, r, node.ChildByFieldName("body"), def)
	return r
}

func (e *CppExtractor) baseClasses(ctx *ExtractionContext, clause *sitter.Node, def access) []baseSpec {
	var out []baseSpec
	current := def
	for i := uint(0); i < clause.ChildCount(); i++ {
		child := clause.Child(i)
		switch child.Kind() {
		case "access_specifier", "public", "private", "protected":
			current = accessFromText(ctx.Text(child))
		case "type_identifier", "qualified_identifier", "template_type":
			out = append(out, baseSpec{name: ctx.Text(child), access: current})
			current = def
		}
	}
	return out
}

func (e *CppExtractor) recordBody(ctx *ExtractionContext, r *record, body *sitter.Node, current access) access {
	if body == nil {
		return current
	}
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		switch kind := child.Kind(); {
		case kind == "access_specifier":
			current = accessFromText(ctx.Text(child))
		case kind == "field_declaration", kind == "declaration":
			e.memberDeclaration(ctx, r, child, current)
		case kind == "function_definition":
			e.inlineMethod(ctx, r, child, current)
		case kind == "template_declaration":
			if inner := lastNamedChild(child); inner != nil {
				switch inner.Kind() {
				case "function_definition":
					e.inlineMethod(ctx, r, inner, current)
				case "field_declaration", "declaration":
					e.memberDeclaration(ctx, r, inner, current)
				}
			}
		case kind == "type_definition":
			typeNode := child.ChildByFieldName("type")
			target := ctx.Compact(typeNode)
			for _, dn := range declaratorChildren(child, typeNode) {
				d := unwrapDeclarator(ctx, dn)
				if d.name != "" {
					sym := e.declareAlias(ctx, d.name, target+d.ptr, frontend.CursorTypedefDecl, r.name)
					sym.access = current
					r.members = append(r.members, sym)
				}
			}
		case kind == "alias_declaration":
			name := ctx.Text(child.ChildByFieldName("name"))
			if name != "" {
				sym := e.declareAlias(ctx, name, ctx.Compact(child.ChildByFieldName("type")), frontend.CursorTypeAlias, r.name)
				sym.access = current
				r.members = append(r.members, sym)
			}
		case strings.HasPrefix(kind, "preproc_"):
			current = e.recordBody(ctx, r, child, current)
		}
	}
	return current
}

func (e *CppExtractor) memberDeclaration(ctx *ExtractionContext, r *record, node *sitter.Node, acc access) {
	typeNode := node.ChildByFieldName("type")
	nestedType := ""
	if typeNode != nil && typeNode.ChildByFieldName("body") != nil {
		switch typeNode.Kind() {
		case "class_specifier", "struct_specifier", "union_specifier":
			nested := e.extractRecord(ctx, typeNode, r.name)
			nestedType = nested.name
			r.members = append(r.members, &symbol{
				name: lastComponent(nested.name), kind: nested.kind, parent: r.name, access: acc, file: ctx.Path,
			})
		case "enum_specifier":
			nested := e.extractEnum(ctx, typeNode, r.name, r.name)
			nestedType = nested.name
			r.members = append(r.members, &symbol{
				name: lastComponent(nested.name), kind: frontend.CursorEnumDecl, parent: r.name, access: acc, file: ctx.Path,
			})
			if !nested.scoped {
				for _, m := range nested.members {
					c := *m
					c.parent, c.access = r.name, acc
					r.members = append(r.members, &c)
				}
			}
		}
	}

	for _, dn := range declaratorChildren(node, typeNode) {
		d := unwrapDeclarator(ctx, dn)
		if d.name == "" {
			continue
		}
		typ := nestedType
		if typ == "" {
			typ = e.typeText(ctx, node, "")
		}
		typ += d.ptr

		var sym *symbol
		if d.fn != nil {
			sym = e.functionSymbol(ctx, node, d, typ, e.methodKind(r, d))
		} else {
			sym = &symbol{name: d.name, kind: frontend.CursorFieldDecl, typ: typ,
				static: hasStorage(ctx, node, "static"), avail: availabilityOf(ctx, node)}
		}
		sym.parent, sym.access, sym.file = r.name, acc, ctx.Path
		r.members = append(r.members, sym)
	}
}

func (e *CppExtractor) inlineMethod(ctx *ExtractionContext, r *record, node *sitter.Node, acc access) {
	d := unwrapDeclarator(ctx, node.ChildByFieldName("declarator"))
	if d.fn == nil || d.name == "" {
		return
	}
	sym := e.functionSymbol(ctx, node, d, e.typeText(ctx, node, d.ptr), e.methodKind(r, d))
	sym.parent, sym.access, sym.file = r.name, acc, ctx.Path
	r.members = append(r.members, sym)

	body := node.ChildByFieldName("body")
	if body == nil || body.Kind() != "compound_statement" || ctx.Func != nil {
		return
	}
	sc := &scope{start: body.StartByte(), end: body.EndByte(), owner: r.name}
	e.declareParams(ctx, sc, d.fn, body.StartByte(), body.EndByte())
	ctx.Func = sc
	e.walk.WalkChildren(ctx, body)
	ctx.Func = nil
	if ctx.Main {
		ctx.Index.scopes = append(ctx.Index.scopes, sc)
	}
}

func (e *CppExtractor) methodKind(r *record, d declarator) frontend.CursorKind {
	switch {
	case d.destructor:
		return frontend.CursorDestructor
	case d.name == lastComponent(r.name):
		return frontend.CursorConstructor
	default:
		return frontend.CursorMethod
	}
}

func (e *CppExtractor) extractEnum(ctx *ExtractionContext, node *sitter.Node, outer, owner string) *record {
	r := &record{name: e.recordName(ctx, node, outer), kind: frontend.CursorEnumDecl}
	for i := uint(0); i < node.ChildCount(); i++ {
		if k := node.Child(i).Kind(); k == "class" || k == "struct" {
			r.scoped = true
		}
	}
	r = ctx.Index.addRecord(r)
	if owner == "" {
		ctx.declare(&symbol{name: lastComponent(r.name), kind: frontend.CursorEnumDecl})
	}

	body := node.ChildByFieldName("body")
	for i := uint(0); body != nil && i < body.NamedChildCount(); i++ {
		en := body.NamedChild(i)
		if en.Kind() != "enumerator" {
			continue
		}
		name := ctx.Text(en.ChildByFieldName("name"))
		if name == "" {
			continue
		}
		sym := &symbol{
			name:   name,
			kind:   frontend.CursorEnumConstantDecl,
			typ:    lastComponent(r.name),
			parent: r.name,
			avail:  availabilityOf(ctx, en),
			file:   ctx.Path,
			static: true,
		}
		r.members = append(r.members, sym)
		if !r.scoped && owner == "" {
			c := *sym
			c.parent = ""
			ctx.declare(&c)
		}
	}
	return r
}

func (e *CppExtractor) extractRangeFor(ctx *ExtractionContext, node *sitter.Node) bool {
	if ctx.Func != nil {
		d := unwrapDeclarator(ctx, node.ChildByFieldName("declarator"))
		if d.name != "" {
			ctx.declare(&symbol{
				name: d.name,
				kind: frontend.CursorVarDecl,
				typ:  e.typeText(ctx, node, d.ptr),
				init: elemPrefix + ctx.Compact(node.ChildByFieldName("right")),
				from: d.end,
				to:   node.EndByte(),
			})
		}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		e.walk.Walk(ctx, body)
	}
	return true
}

func (e *CppExtractor) extractCatch(ctx *ExtractionContext, node *sitter.Node) bool {
	if ctx.Func != nil {
		if params := node.ChildByFieldName("parameters"); params != nil {
			for i := uint(0); i < params.NamedChildCount(); i++ {
				p := params.NamedChild(i)
				d := unwrapDeclarator(ctx, p.ChildByFieldName("declarator"))
				if d.name != "" {
					ctx.declare(&symbol{name: d.name, kind: frontend.CursorVarDecl,
						typ: e.typeText(ctx, p, d.ptr), from: p.EndByte(), to: node.EndByte()})
				}
			}
		}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		e.walk.Walk(ctx, body)
	}
	return true
}

// typeText renders the declared type of node: qualifiers, the type
// specifier, and any declarator suffix such as "*".
func (e *CppExtractor) typeText(ctx *ExtractionContext, node *sitter.Node, suffix string) string {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return strings.TrimSpace(suffix)
	}
	var quals []string
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "type_qualifier" && child.StartByte() < typeNode.StartByte() {
			quals = append(quals, ctx.Text(child))
		}
	}
	typ := ctx.Compact(typeNode)
	if len(quals) > 0 {
		typ = strings.Join(quals, " ") + " " + typ
	}
	return typ + suffix
}

type declarator struct {
	name       string
	qualifier  string // "Foo" in Foo::bar
	ptr        string
	fn         *sitter.Node
	value      *sitter.Node
	destructor bool
	end        uint
}

var declaratorKinds = map[string]bool{
	"identifier": true, "field_identifier": true, "type_identifier": true,
	"qualified_identifier": true, "destructor_name": true, "operator_name": true,
	"pointer_declarator": true, "reference_declarator": true, "array_declarator": true,
	"function_declarator": true, "init_declarator": true, "parenthesized_declarator": true,
	"attributed_declarator": true, "abstract_pointer_declarator": true,
}

func declaratorChildren(node, typeNode *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if typeNode != nil && child.StartByte() == typeNode.StartByte() && child.EndByte() == typeNode.EndByte() {
			continue
		}
		if declaratorKinds[child.Kind()] {
			out = append(out, child)
		}
	}
	return out
}

func unwrapDeclarator(ctx *ExtractionContext, node *sitter.Node) declarator {
	var d declarator
	for depth := 0; node != nil && depth < 32; depth++ {
		switch node.Kind() {
		case "identifier", "field_identifier", "type_identifier", "operator_name":
			d.name, d.end = ctx.Text(node), node.EndByte()
			return d
		case "destructor_name":
			d.name, d.end, d.destructor = ctx.Text(node), node.EndByte(), true
			return d
		case "qualified_identifier":
			full := ctx.Text(node)
			inner := node
			for inner != nil && inner.Kind() == "qualified_identifier" {
				inner = inner.ChildByFieldName("name")
			}
			if inner == nil {
				return d
			}
			d.qualifier = strings.TrimSuffix(strings.TrimSuffix(full, ctx.Text(inner)), "::")
			node = inner
		case "pointer_declarator", "abstract_pointer_declarator":
			d.ptr += "*"
			node = node.ChildByFieldName("declarator")
		case "reference_declarator":
			d.ptr += "&"
			node = lastNamedChild(node)
		case "array_declarator":
			d.ptr += "[]"
			node = node.ChildByFieldName("declarator")
		case "function_declarator":
			if d.fn == nil {
				d.fn = node
			}
			node = node.ChildByFieldName("declarator")
		case "init_declarator":
			d.value = node.ChildByFieldName("value")
			node = node.ChildByFieldName("declarator")
		case "parenthesized_declarator", "attributed_declarator":
			node = firstNamedChild(node)
		default:
			return d
		}
	}
	return d
}

func firstNamedChild(node *sitter.Node) *sitter.Node {
	if node == nil || node.NamedChildCount() == 0 {
		return nil
	}
	return node.NamedChild(0)
}

func lastNamedChild(node *sitter.Node) *sitter.Node {
	if node == nil || node.NamedChildCount() == 0 {
		return nil
	}
	return node.NamedChild(node.NamedChildCount() - 1)
}

func enclosingBlockEnd(node *sitter.Node) uint {
	for p := node.Parent(); p != nil; p = p.Parent() {
		switch p.Kind() {
		case "compound_statement", "for_statement", "for_range_loop", "if_statement",
			"while_statement", "switch_statement", "catch_clause", "lambda_expression":
			return p.EndByte()
		}
	}
	return node.EndByte()
}

func hasStorage(ctx *ExtractionContext, node *sitter.Node, word string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "storage_class_specifier" && ctx.Text(child) == word {
			return true
		}
	}
	return false
}

func availabilityOf(ctx *ExtractionContext, node *sitter.Node) frontend.Availability {
	if ChildOfKind(node, "delete_method_clause") != nil {
		return frontend.NotAvailable
	}
	header := ctx.Text(node)
	if body := node.ChildByFieldName("body"); body != nil {
		header = string(ctx.Source[node.StartByte():body.StartByte()])
	}
	compact := strings.Join(strings.Fields(header), "")
	if strings.HasSuffix(compact, "=delete;") || strings.HasSuffix(compact, "=delete") {
		return frontend.NotAvailable
	}
	if deprecatedAttr.MatchString(header) {
		return frontend.Deprecated
	}
	return frontend.Available
}

func accessFromText(text string) access {
	switch {
	case strings.Contains(text, "private"):
		return accessPrivate
	case strings.Contains(text, "protected"):
		return accessProtected
	default:
		return accessPublic
	}
}
