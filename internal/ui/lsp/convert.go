package lsp

import (
	"bytes"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"autocomplete/internal/engine/frontend"
	"autocomplete/internal/engine/resolver"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

func uriToPath(uri protocol.DocumentUri) (string, error) {
	raw := string(uri)
	if !strings.HasPrefix(raw, "file://") {
		return "", fmt.Errorf("unsupported uri scheme: %s", raw)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return filepath.Clean(filepath.FromSlash(parsed.Path)), nil
}

// lineBounds returns the byte range of the 0-based line, excluding the
// newline. Lines past the end map to an empty range at len(text).
func lineBounds(text []byte, line int) (int, int) {
	start := 0
	for i := 0; i < line; i++ {
		nl := bytes.IndexByte(text[start:], '\n')
		if nl < 0 {
			return len(text), len(text)
		}
		start += nl + 1
	}
	end := start + bytes.IndexByte(text[start:], '\n')
	if end < start {
		end = len(text)
	}
	if end > start && text[end-1] == '\r' {
		end--
	}
	return start, end
}

// byteColumn converts a UTF-16 code unit offset within line into a byte
// offset. Offsets past the end of the line land one byte past it so the
// engine clamps them.
func byteColumn(line []byte, character int) int {
	units := 0
	for i := 0; i < len(line); {
		if units >= character {
			return i
		}
		r, size := utf8.DecodeRune(line[i:])
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units += n
		i += size
	}
	if units < character {
		return len(line) + 1
	}
	return len(line)
}

// utf16Column is the inverse of byteColumn for in-range offsets.
func utf16Column(line []byte, col int) int {
	if col > len(line) {
		col = len(line)
	}
	units := 0
	for i := 0; i < col; {
		r, size := utf8.DecodeRune(line[i:])
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units += n
		i += size
	}
	return units
}

// toEngine maps a 0-based UTF-16 position onto the engine's 1-based line
// and byte column.
func toEngine(text []byte, pos protocol.Position) (int, int) {
	start, end := lineBounds(text, int(pos.Line))
	return int(pos.Line) + 1, byteColumn(text[start:end], int(pos.Character)) + 1
}

func fromEngine(text []byte, line, column int) protocol.Position {
	if line < 1 {
		line = 1
	}
	if column < 1 {
		column = 1
	}
	start, end := lineBounds(text, line-1)
	return protocol.Position{
		Line:      protocol.UInteger(line - 1),
		Character: protocol.UInteger(utf16Column(text[start:end], column-1)),
	}
}

func offsetOf(text []byte, pos protocol.Position) int {
	start, end := lineBounds(text, int(pos.Line))
	col := byteColumn(text[start:end], int(pos.Character))
	if col > end-start {
		col = end - start
	}
	return start + col
}

func applyEdit(text []byte, r protocol.Range, newText string) []byte {
	from := offsetOf(text, r.Start)
	to := offsetOf(text, r.End)
	if to < from {
		from, to = to, from
	}
	out := make([]byte, 0, len(text)-(to-from)+len(newText))
	out = append(out, text[:from]...)
	out = append(out, newText...)
	out = append(out, text[to:]...)
	return out
}

func completionItems(candidates []resolver.Candidate) []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, 0, len(candidates))
	for i, c := range candidates {
		kind := itemKind(c)
		sortText := fmt.Sprintf("%05d", i)
		filter := c.DisplayText
		insert := c.InsertText
		format := protocol.InsertTextFormatPlainText
		if c.Kind == resolver.KindSnippet {
			format = protocol.InsertTextFormatSnippet
		}

		item := protocol.CompletionItem{
			Label:            c.DisplayText,
			Kind:             &kind,
			SortText:         &sortText,
			FilterText:       &filter,
			InsertText:       &insert,
			InsertTextFormat: &format,
		}
		if c.Description != "" {
			detail := c.Description
			item.Detail = &detail
		}
		if c.Availability == frontend.Deprecated {
			item.Tags = []protocol.CompletionItemTag{protocol.CompletionItemTagDeprecated}
		}
		items = append(items, item)
	}
	return items
}

func itemKind(c resolver.Candidate) protocol.CompletionItemKind {
	switch c.CursorKind {
	case frontend.CursorMethod:
		return protocol.CompletionItemKindMethod
	case frontend.CursorConstructor, frontend.CursorDestructor:
		return protocol.CompletionItemKindConstructor
	case frontend.CursorFieldDecl:
		return protocol.CompletionItemKindField
	case frontend.CursorEnumConstantDecl:
		return protocol.CompletionItemKindEnumMember
	case frontend.CursorEnumDecl:
		return protocol.CompletionItemKindEnum
	case frontend.CursorStructDecl, frontend.CursorUnionDecl:
		return protocol.CompletionItemKindStruct
	case frontend.CursorClassDecl:
		return protocol.CompletionItemKindClass
	case frontend.CursorInterfaceDecl:
		return protocol.CompletionItemKindInterface
	case frontend.CursorNamespace, frontend.CursorPackage:
		return protocol.CompletionItemKindModule
	case frontend.CursorConstant:
		return protocol.CompletionItemKindConstant
	case frontend.CursorParmDecl:
		return protocol.CompletionItemKindVariable
	}

	switch c.Kind {
	case resolver.KindFunction:
		return protocol.CompletionItemKindFunction
	case resolver.KindVariable:
		return protocol.CompletionItemKindVariable
	case resolver.KindType:
		return protocol.CompletionItemKindTypeParameter
	case resolver.KindKeyword:
		return protocol.CompletionItemKindKeyword
	case resolver.KindSnippet:
		return protocol.CompletionItemKindSnippet
	default:
		return protocol.CompletionItemKindText
	}
}

// toProtocolDiagnostics keeps the diagnostics located in path. Diagnostics
// from included headers belong to other documents.
func toProtocolDiagnostics(path string, text []byte, diags []frontend.Diagnostic) []protocol.Diagnostic {
	source := lsName
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		if d.Severity == frontend.SeverityIgnored {
			continue
		}
		if d.Location.File != "" && filepath.Clean(d.Location.File) != path {
			continue
		}
		severity := diagnosticSeverity(d.Severity)
		pos := fromEngine(text, d.Location.Line, d.Location.Column)
		pd := protocol.Diagnostic{
			Range:    protocol.Range{Start: pos, End: pos},
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		}
		if d.Code != "" {
			pd.Code = &protocol.IntegerOrString{Value: string(d.Code)}
		}
		out = append(out, pd)
	}
	return out
}

func diagnosticSeverity(s frontend.Severity) protocol.DiagnosticSeverity {
	switch s {
	case frontend.SeverityFatal, frontend.SeverityError:
		return protocol.DiagnosticSeverityError
	case frontend.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	default:
		return protocol.DiagnosticSeverityInformation
	}
}
