package parser

import (
	"strings"

	"autocomplete/internal/engine/frontend"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes a node for a language-specific extractor.
// Returns true if the handler has processed children and the walker should stop.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node) bool

// ExtractionContext carries the state shared by the handlers of one file.
type ExtractionContext struct {
	Source []byte
	Path   string
	// Main is set for the file being completed in; headers only contribute
	// declarations, never scopes.
	Main  bool
	Index *index

	// Qualified namespace the walker is currently inside.
	Scope string
	// Current function body, nil at file scope.
	Func *scope
}

// ExtractorEngine walks the syntax tree and dispatches node handlers by kind.
type ExtractorEngine struct {
	handlers map[string]NodeHandler
}

func NewExtractorEngine(handlers map[string]NodeHandler) *ExtractorEngine {
	return &ExtractorEngine{handlers: handlers}
}

func (e *ExtractorEngine) Walk(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}
	if handler, ok := e.handlers[node.Kind()]; ok && handler(ctx, node) {
		return
	}
	e.WalkChildren(ctx, node)
}

func (e *ExtractorEngine) WalkChildren(ctx *ExtractionContext, node *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		e.Walk(ctx, node.Child(i))
	}
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.Source[node.StartByte():node.EndByte()])
}

// Compact returns node text with runs of whitespace collapsed.
func (c *ExtractionContext) Compact(node *sitter.Node) string {
	return strings.Join(strings.Fields(c.Text(node)), " ")
}

func (c *ExtractionContext) Location(node *sitter.Node) frontend.Location {
	return frontend.Location{
		File:   c.Path,
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column) + 1,
	}
}

// ChildOfKind returns the first direct child of the given kind.
func ChildOfKind(node *sitter.Node, kinds ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		for _, kind := range kinds {
			if child.Kind() == kind {
				return child
			}
		}
	}
	return nil
}

// ChildrenOfKind returns every direct child of the given kind.
func ChildrenOfKind(node *sitter.Node, kind string) []*sitter.Node {
	if node == nil {
		return nil
	}
	var out []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child.Kind() == kind {
			out = append(out, child)
		}
	}
	return out
}

// declare records a symbol in the innermost scope: the current function
// body for locals, otherwise file scope.
func (c *ExtractionContext) declare(sym *symbol) {
	sym.file = c.Path
	if c.Func != nil {
		c.Func.locals = append(c.Func.locals, sym)
		return
	}
	if sym.parent == "" {
		sym.parent = c.Scope
	}
	c.Index.globals = append(c.Index.globals, sym)
}
