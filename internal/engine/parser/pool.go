// # internal/engine/parser/pool.go
package parser

import (
	"sync"
	"sync/atomic"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ParserPool recycles tree-sitter parsers for one grammar.
//
//	sp := pool.Get()
//	defer pool.Put(sp)
//	tree := sp.Parse(source, old)
//
// Safe for concurrent use.
type ParserPool struct {
	lang   *sitter.Language
	pool   sync.Pool
	active atomic.Int64
}

func NewParserPool(lang *sitter.Language) *ParserPool {
	p := &ParserPool{lang: lang}
	p.pool.New = func() any {
		sp := sitter.NewParser()
		sp.SetLanguage(lang)
		return sp
	}
	return p
}

func (p *ParserPool) Language() *sitter.Language { return p.lang }

// Get returns a parser configured for the pool's language.
func (p *ParserPool) Get() *sitter.Parser {
	sp := p.pool.Get().(*sitter.Parser)
	sp.SetLanguage(p.lang)
	p.active.Add(1)
	return sp
}

// Put resets sp and returns it to the pool. Put(nil) is a no-op.
func (p *ParserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.active.Add(-1)
	sp.Reset()
	p.pool.Put(sp)
}

// Active returns the number of parsers currently checked out.
func (p *ParserPool) Active() int {
	return int(p.active.Load())
}

// Parse runs one parse with a pooled parser.
func (p *ParserPool) Parse(source []byte, old *sitter.Tree) *sitter.Tree {
	sp := p.Get()
	defer p.Put(sp)
	return sp.Parse(source, old)
}
