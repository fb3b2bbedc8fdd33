package parser

import (
	"fmt"
	"strings"

	"autocomplete/internal/engine/frontend"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// errorLimit matches clang's default -ferror-limit.
const errorLimit = 20

// syntaxDiagnostics reports ERROR and MISSING nodes of a tree.
func syntaxDiagnostics(root *sitter.Node, source []byte, path string) []frontend.Diagnostic {
	if root == nil || !root.HasError() {
		return nil
	}
	var out []frontend.Diagnostic
	var visit func(n *sitter.Node) bool
	visit = func(n *sitter.Node) bool {
		if len(out) >= errorLimit {
			return false
		}
		loc := frontend.Location{
			File:   path,
			Line:   int(n.StartPosition().Row) + 1,
			Column: int(n.StartPosition().Column) + 1,
		}
		switch {
		case n.IsMissing():
			out = append(out, frontend.Diagnostic{
				Severity: frontend.SeverityError,
				Message:  fmt.Sprintf("expected '%s'", n.Kind()),
				Location: loc,
			})
			return true
		case n.IsError():
			out = append(out, frontend.Diagnostic{
				Severity: frontend.SeverityError,
				Message:  fmt.Sprintf("unexpected '%s'", excerpt(source, n)),
				Location: loc,
			})
			return true
		case !n.HasError():
			return true
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if !visit(n.Child(i)) {
				return false
			}
		}
		return true
	}
	if !visit(root) {
		out = append(out, frontend.Diagnostic{
			Severity: frontend.SeverityFatal,
			Message:  "too many errors emitted, stopping now",
			Location: frontend.Location{File: path},
		})
	}
	return out
}

func excerpt(source []byte, n *sitter.Node) string {
	end := min(n.EndByte(), uint(len(source)))
	text := strings.Join(strings.Fields(string(source[n.StartByte():end])), " ")
	if len(text) > 32 {
		text = text[:32] + "..."
	}
	return text
}
