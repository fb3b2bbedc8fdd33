package parser

import (
	"path"
	"strings"

	"autocomplete/internal/engine/frontend"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// GoExtractor indexes Go declarations.
type GoExtractor struct {
	walk *ExtractorEngine
}

func (e *GoExtractor) Extract(ctx *ExtractionContext, root *sitter.Node) {
	e.walk = NewExtractorEngine(map[string]NodeHandler{
		"import_spec":           e.extractImport,
		"function_declaration":  e.extractFunction,
		"method_declaration":    e.extractMethod,
		"type_spec":             e.extractTypeSpec,
		"type_alias":            e.extractTypeAlias,
		"var_spec":              e.extractValueSpec,
		"const_spec":            e.extractValueSpec,
		"short_var_declaration": e.extractShortVar,
		"range_clause":          e.extractRange,
		"func_literal":          e.extractFuncLiteral,
	})
	e.walk.Walk(ctx, root)
}

func (e *GoExtractor) extractImport(ctx *ExtractionContext, node *sitter.Node) bool {
	if ctx.Func != nil || !ctx.Main {
		return true
	}
	importPath := strings.Trim(ctx.Text(node.ChildByFieldName("path")), "\"`")
	name := ctx.Text(node.ChildByFieldName("name"))
	if name == "" {
		name = path.Base(importPath)
		// gopkg.in/yaml.v3 and example.com/foo/v2 import as yaml and foo.
		if i := strings.Index(name, ".v"); i > 0 {
			name = name[:i]
		}
		if strings.HasPrefix(name, "v") && len(name) > 1 && strings.Trim(name[1:], "0123456789") == "" {
			name = path.Base(path.Dir(importPath))
		}
		name = strings.TrimPrefix(name, "go-")
	}
	if name == "_" || name == "." || name == "" {
		return true
	}
	ctx.declare(&symbol{name: name, kind: frontend.CursorPackage, typ: importPath})
	return true
}

func (e *GoExtractor) extractFunction(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.Text(node.ChildByFieldName("name"))
	sym := e.funcSymbol(ctx, node, name, frontend.CursorFunctionDecl)
	ctx.declare(sym)
	e.body(ctx, node, nil, "")
	return true
}

func (e *GoExtractor) extractMethod(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.Text(node.ChildByFieldName("name"))
	receiver := node.ChildByFieldName("receiver")
	recvType := ""
	var recvNode *sitter.Node
	if receiver != nil && receiver.NamedChildCount() > 0 {
		recvNode = receiver.NamedChild(0)
		recvType = goBaseType(ctx.Compact(recvNode.ChildByFieldName("type")))
	}
	if recvType != "" {
		r := ctx.Index.addRecord(&record{name: recvType})
		sym := e.funcSymbol(ctx, node, name, frontend.CursorMethod)
		sym.parent = r.name
		r.members = append(r.members, sym)
	}
	e.body(ctx, node, recvNode, recvType)
	return true
}

func (e *GoExtractor) funcSymbol(ctx *ExtractionContext, node *sitter.Node, name string, kind frontend.CursorKind) *symbol {
	sym := &symbol{
		name:  name,
		kind:  kind,
		typ:   ctx.Compact(node.ChildByFieldName("result")),
		avail: goAvailability(ctx, node),
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := uint(0); i < params.NamedChildCount(); i++ {
			p := params.NamedChild(i)
			if p.Kind() == "comment" {
				continue
			}
			sym.params = append(sym.params, ctx.Compact(p))
		}
	}
	return sym
}

// body indexes a function body as a scope holding its parameters, receiver
// and locals.
func (e *GoExtractor) body(ctx *ExtractionContext, node, receiver *sitter.Node, owner string) {
	block := node.ChildByFieldName("body")
	if block == nil {
		return
	}
	if ctx.Func != nil {
		e.declareParams(ctx, ctx.Func, node.ChildByFieldName("parameters"), block)
		e.walk.WalkChildren(ctx, block)
		return
	}
	sc := &scope{start: block.StartByte(), end: block.EndByte(), owner: owner}
	if receiver != nil {
		e.declareParam(ctx, sc, receiver, block)
	}
	e.declareParams(ctx, sc, node.ChildByFieldName("parameters"), block)
	if result := node.ChildByFieldName("result"); result != nil && result.Kind() == "parameter_list" {
		e.declareParams(ctx, sc, result, block)
	}

	ctx.Func = sc
	e.walk.WalkChildren(ctx, block)
	ctx.Func = nil
	if ctx.Main {
		ctx.Index.scopes = append(ctx.Index.scopes, sc)
	}
}

func (e *GoExtractor) declareParams(ctx *ExtractionContext, sc *scope, params, block *sitter.Node) {
	if params == nil {
		return
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		e.declareParam(ctx, sc, params.NamedChild(i), block)
	}
}

func (e *GoExtractor) declareParam(ctx *ExtractionContext, sc *scope, p, block *sitter.Node) {
	typ := ctx.Compact(p.ChildByFieldName("type"))
	if p.Kind() == "variadic_parameter_declaration" {
		typ = "[]" + typ
	}
	for _, n := range namedFieldChildren(p, "name") {
		sc.locals = append(sc.locals, &symbol{
			name: ctx.Text(n),
			kind: frontend.CursorParmDecl,
			typ:  typ,
			file: ctx.Path,
			from: block.StartByte(),
			to:   block.EndByte(),
		})
	}
}

// extractFuncLiteral gives package-level closures their own scope; nested
// closures share the enclosing function's.
func (e *GoExtractor) extractFuncLiteral(ctx *ExtractionContext, node *sitter.Node) bool {
	e.body(ctx, node, nil, "")
	return true
}

func (e *GoExtractor) extractTypeSpec(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.Text(node.ChildByFieldName("name"))
	typeNode := node.ChildByFieldName("type")
	if name == "" || typeNode == nil {
		return true
	}
	avail := goAvailability(ctx, declarationOf(node))
	switch typeNode.Kind() {
	case "struct_type":
		r := ctx.Index.addRecord(&record{name: name, kind: frontend.CursorStructDecl})
		e.structFields(ctx, r, typeNode)
		if ctx.Func == nil {
			ctx.declare(&symbol{name: name, kind: frontend.CursorStructDecl, avail: avail})
		} else {
			ctx.declare(&symbol{name: name, kind: frontend.CursorStructDecl, avail: avail,
				from: node.EndByte(), to: enclosingGoBlockEnd(node)})
		}
	case "interface_type":
		r := ctx.Index.addRecord(&record{name: name, kind: frontend.CursorInterfaceDecl})
		e.interfaceMethods(ctx, r, typeNode)
		ctx.declare(&symbol{name: name, kind: frontend.CursorInterfaceDecl, avail: avail})
	default:
		target := ctx.Compact(typeNode)
		ctx.Index.typedefs[name] = target
		ctx.declare(&symbol{name: name, kind: frontend.CursorTypedefDecl, typ: target, avail: avail})
	}
	return true
}

func (e *GoExtractor) extractTypeAlias(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.Text(node.ChildByFieldName("name"))
	target := ctx.Compact(node.ChildByFieldName("type"))
	if name == "" {
		return true
	}
	ctx.Index.typedefs[name] = target
	ctx.declare(&symbol{name: name, kind: frontend.CursorTypeAlias, typ: target})
	return true
}

func (e *GoExtractor) structFields(ctx *ExtractionContext, r *record, st *sitter.Node) {
	list := ChildOfKind(st, "field_declaration_list")
	if list == nil {
		return
	}
	for i := uint(0); i < list.NamedChildCount(); i++ {
		field := list.NamedChild(i)
		if field.Kind() != "field_declaration" {
			continue
		}
		typ := ctx.Compact(field.ChildByFieldName("type"))
		names := namedFieldChildren(field, "name")
		if len(names) == 0 {
			// Embedded field: its members are promoted.
			r.bases = append(r.bases, baseSpec{name: goBaseType(typ)})
			r.members = append(r.members, &symbol{
				name: goBaseType(typ), kind: frontend.CursorFieldDecl, typ: typ,
				parent: r.name, file: ctx.Path, avail: goAvailability(ctx, field),
			})
			continue
		}
		for _, n := range names {
			r.members = append(r.members, &symbol{
				name: ctx.Text(n), kind: frontend.CursorFieldDecl, typ: typ,
				parent: r.name, file: ctx.Path, avail: goAvailability(ctx, field),
			})
		}
	}
}

func (e *GoExtractor) interfaceMethods(ctx *ExtractionContext, r *record, it *sitter.Node) {
	for i := uint(0); i < it.NamedChildCount(); i++ {
		elem := it.NamedChild(i)
		switch elem.Kind() {
		case "method_elem", "method_spec":
			sym := e.funcSymbol(ctx, elem, ctx.Text(elem.ChildByFieldName("name")), frontend.CursorMethod)
			sym.parent, sym.file = r.name, ctx.Path
			r.members = append(r.members, sym)
		case "type_elem", "constraint_elem", "type_identifier", "qualified_type":
			r.bases = append(r.bases, baseSpec{name: goBaseType(ctx.Compact(elem))})
		}
	}
}

func (e *GoExtractor) extractValueSpec(ctx *ExtractionContext, node *sitter.Node) bool {
	kind := frontend.CursorVarDecl
	if node.Kind() == "const_spec" {
		kind = frontend.CursorConstant
	}
	typ := ctx.Compact(node.ChildByFieldName("type"))
	var values []*sitter.Node
	if v := node.ChildByFieldName("value"); v != nil {
		values = namedChildren(v)
	}
	avail := goAvailability(ctx, declarationOf(node))
	for i, n := range namedFieldChildren(node, "name") {
		sym := &symbol{name: ctx.Text(n), kind: kind, typ: typ, avail: avail}
		if i < len(values) {
			sym.init = ctx.Compact(values[i])
		}
		if ctx.Func != nil {
			sym.from, sym.to = node.EndByte(), enclosingGoBlockEnd(node)
		}
		ctx.declare(sym)
	}
	e.walkValues(ctx, node)
	return true
}

func (e *GoExtractor) extractShortVar(ctx *ExtractionContext, node *sitter.Node) bool {
	left := node.ChildByFieldName("left")
	var values []*sitter.Node
	if right := node.ChildByFieldName("right"); right != nil {
		values = namedChildren(right)
	}
	if ctx.Func != nil && left != nil {
		for i, n := range namedChildren(left) {
			name := ctx.Text(n)
			if name == "_" {
				continue
			}
			sym := &symbol{name: name, kind: frontend.CursorVarDecl, from: node.EndByte(), to: enclosingGoBlockEnd(node)}
			switch {
			case len(values) == len(namedChildren(left)):
				sym.init = ctx.Compact(values[i])
			case len(values) == 1 && i == 0:
				// v, ok := m[k] and friends: only the first result is typed.
				sym.init = ctx.Compact(values[0])
			}
			ctx.declare(sym)
		}
	}
	e.walkValues(ctx, node)
	return true
}

// walkValues visits the right-hand side of a declaration for closures.
func (e *GoExtractor) walkValues(ctx *ExtractionContext, node *sitter.Node) {
	for _, field := range []string{"value", "right"} {
		if v := node.ChildByFieldName(field); v != nil {
			e.walk.Walk(ctx, v)
		}
	}
}

func (e *GoExtractor) extractRange(ctx *ExtractionContext, node *sitter.Node) bool {
	left := node.ChildByFieldName("left")
	right := ctx.Compact(node.ChildByFieldName("right"))
	if ctx.Func == nil || left == nil {
		return true
	}
	loop := node.Parent()
	end := node.EndByte()
	if loop != nil {
		end = loop.EndByte()
	}
	for i, n := range namedChildren(left) {
		name := ctx.Text(n)
		if name == "_" {
			continue
		}
		sym := &symbol{name: name, kind: frontend.CursorVarDecl, from: node.EndByte(), to: end}
		if i == 0 {
			sym.init = keyPrefix + right
		} else {
			sym.init = elemPrefix + right
		}
		ctx.declare(sym)
	}
	return true
}

func namedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if child := node.NamedChild(i); child.Kind() != "comment" {
			out = append(out, child)
		}
	}
	return out
}

// namedFieldChildren returns every child stored under field, since Go
// declarations list several names under the same field.
func namedFieldChildren(node *sitter.Node, field string) []*sitter.Node {
	var out []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		if node.FieldNameForChild(uint32(i)) == field {
			out = append(out, node.Child(i))
		}
	}
	return out
}

func declarationOf(spec *sitter.Node) *sitter.Node {
	for p := spec; p != nil; p = p.Parent() {
		switch p.Kind() {
		case "type_declaration", "var_declaration", "const_declaration":
			return p
		}
	}
	return spec
}

func enclosingGoBlockEnd(node *sitter.Node) uint {
	for p := node.Parent(); p != nil; p = p.Parent() {
		switch p.Kind() {
		case "block", "for_statement", "if_statement", "expression_switch_statement",
			"type_switch_statement", "select_statement", "communication_case", "expression_case":
			return p.EndByte()
		}
	}
	return node.EndByte()
}

// goAvailability reports Deprecated when the doc comment above node has a
// "Deprecated:" paragraph.
func goAvailability(ctx *ExtractionContext, node *sitter.Node) frontend.Availability {
	for prev := node.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		if prev.Kind() != "comment" {
			if !prev.IsNamed() && strings.TrimSpace(ctx.Text(prev)) == "" {
				// Statement terminator.
				continue
			}
			break
		}
		for _, line := range strings.Split(ctx.Text(prev), "\n") {
			line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "/*"))
			if strings.HasPrefix(line, "Deprecated:") {
				return frontend.Deprecated
			}
		}
	}
	return frontend.Available
}

// goBaseType strips pointers, package qualifiers and type arguments.
func goBaseType(typ string) string {
	typ = strings.TrimSpace(typ)
	typ = strings.TrimLeft(typ, "*")
	if i := strings.IndexByte(typ, '['); i > 0 {
		typ = typ[:i]
	}
	if i := strings.LastIndexByte(typ, '.'); i >= 0 {
		typ = typ[i+1:]
	}
	return strings.TrimSpace(typ)
}
