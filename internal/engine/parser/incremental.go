package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// diffEdit describes the change from old to next as the single byte range
// between their common prefix and common suffix.
func diffEdit(old, next []byte) (sitter.InputEdit, bool) {
	prefix := 0
	for prefix < len(old) && prefix < len(next) && old[prefix] == next[prefix] {
		prefix++
	}
	if prefix == len(old) && prefix == len(next) {
		return sitter.InputEdit{}, false
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(next)-prefix &&
		old[len(old)-1-suffix] == next[len(next)-1-suffix] {
		suffix++
	}
	return sitter.InputEdit{
		StartByte:      uint(prefix),
		OldEndByte:     uint(len(old) - suffix),
		NewEndByte:     uint(len(next) - suffix),
		StartPosition:  pointAt(old, prefix),
		OldEndPosition: pointAt(old, len(old)-suffix),
		NewEndPosition: pointAt(next, len(next)-suffix),
	}, true
}

func pointAt(src []byte, offset int) sitter.Point {
	var row, col uint
	for _, c := range src[:offset] {
		if c == '\n' {
			row++
			col = 0
			continue
		}
		col++
	}
	return sitter.Point{Row: row, Column: col}
}

// reparse parses source, reusing prev's tree when the language matches.
// It reports whether the parse was incremental.
func reparse(pool *ParserPool, source []byte, prev *Unit, lang string) (*sitter.Tree, bool) {
	if prev == nil || prev.lang != lang {
		return pool.Parse(source, nil), false
	}
	old := prev.cloneTree()
	if old == nil {
		return pool.Parse(source, nil), false
	}
	defer old.Close()
	if edit, changed := diffEdit(prev.source, source); changed {
		old.Edit(&edit)
	}
	return pool.Parse(source, old), true
}
