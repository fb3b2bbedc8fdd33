// Package parser is a tree-sitter backed compiler frontend for C, C++ and Go.
//
// A parse builds a syntax tree for the main file plus a declaration index
// covering the file, the headers it includes (or, for Go, the other files of
// its package) and command-line macros. Completion answers from that index
// without reparsing.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"autocomplete/internal/core/errors"
	"autocomplete/internal/engine/frontend"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

const Version = "tree-sitter frontend 0.25 (c, c++, go)"

// treeBytesPerSourceByte approximates the syntax tree footprint.
const treeBytesPerSourceByte = 6

// Option configures a Parser.
type Option func(*Parser)

// WithReadFile sets the function used to read headers, so editor overlays
// can shadow files on disk.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(p *Parser) { p.readFile = fn }
}

func WithLanguages(registry map[string]LanguageSpec) Option {
	return func(p *Parser) { p.registry = registry }
}

// WithIncludeLimits bounds header expansion. Non-positive values keep the defaults.
func WithIncludeLimits(depth, files int) Option {
	return func(p *Parser) {
		if depth > 0 {
			p.maxDepth = depth
		}
		if files > 0 {
			p.maxFiles = files
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// Parser implements frontend.Frontend. Safe for concurrent use.
type Parser struct {
	loader   *GrammarLoader
	registry map[string]LanguageSpec
	readFile func(string) ([]byte, error)
	maxDepth int
	maxFiles int
	logger   *slog.Logger
}

var _ frontend.Frontend = (*Parser)(nil)

func New(opts ...Option) (*Parser, error) {
	p := &Parser{
		readFile: os.ReadFile,
		maxDepth: DefaultMaxIncludeDepth,
		maxFiles: DefaultMaxIncludeFiles,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	loader, err := NewGrammarLoader(p.registry)
	if err != nil {
		return nil, err
	}
	p.loader = loader
	return p, nil
}

func (p *Parser) Version() string { return Version }

// SupportedExtensions lists the file extensions the parser recognises.
func (p *Parser) SupportedExtensions() []string { return p.loader.SupportedExtensions() }

func (p *Parser) Parse(ctx context.Context, req frontend.ParseRequest) (frontend.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return frontend.ParseResult{}, errors.Wrap(err, errors.CodeParse, "parse cancelled")
	}
	start := time.Now()
	opts := parseArgs(req.Args, req.Path)
	lang := opts.language
	if lang == "" {
		lang = p.loader.DetectLanguage(req.Path)
	}
	if lang == "" {
		diag := frontend.Diagnostic{
			Severity: frontend.SeverityFatal,
			Message:  fmt.Sprintf("no language registered for '%s' files", filepath.Ext(req.Path)),
			Location: frontend.Location{File: req.Path},
		}
		err := errors.New(errors.CodeNotSupported, diag.Message)
		return frontend.ParseResult{Diagnostics: append(opts.diagnostics, diag)}, errors.AddContext(err, errors.CtxPath, req.Path)
	}
	std := opts.checkStd(lang, req.Path)

	prev, _ := req.Previous.(*Unit)
	tree, incremental := reparse(p.loader.Pool(lang), req.Source, prev, lang)
	if tree == nil {
		return frontend.ParseResult{Diagnostics: opts.diagnostics},
			errors.AddContext(errors.New(errors.CodeParse, "parser produced no syntax tree"), errors.CtxLanguage, lang)
	}

	u := &Unit{
		path:        req.Path,
		lang:        lang,
		std:         std,
		source:      bytes.Clone(req.Source),
		index:       newIndex(),
		tree:        tree,
		incremental: incremental,
	}
	u.lineStarts = lineOffsets(u.source)
	for _, def := range opts.defines {
		if opts.undefs[def.name] {
			continue
		}
		u.index.macros = append(u.index.macros, &symbol{
			name: def.name, kind: frontend.CursorMacroDefinition, typ: def.value,
			params: def.params, file: "<command line>",
		})
	}

	diags := opts.diagnostics
	mainCtx := &ExtractionContext{Source: u.source, Path: req.Path, Main: true, Index: u.index}
	if lang == LangGo {
		(&GoExtractor{}).Extract(mainCtx, tree.RootNode())
		u.deps = p.goPackage(u)
	} else {
		w := &includeWalker{
			parser:   p,
			lang:     lang,
			opts:     &opts,
			index:    u.index,
			maxDepth: p.maxDepth,
			maxFiles: p.maxFiles,
			seen:     map[string]bool{req.Path: true},
		}
		w.preIncludes(req.Path)
		directives := (&CppExtractor{}).Extract(mainCtx, tree.RootNode())
		w.follow(directives, req.Path, 0)
		w.finish(req.Path)
		u.deps = w.deps
		diags = append(diags, w.diagnostics...)
	}
	diags = append(diags, syntaxDiagnostics(tree.RootNode(), u.source, req.Path)...)

	if err := ctx.Err(); err != nil {
		tree.Close()
		return frontend.ParseResult{}, errors.Wrap(err, errors.CodeParse, "parse cancelled")
	}

	p.logger.Debug("parsed unit",
		"path", req.Path,
		"language", lang,
		"std", std,
		"incremental", incremental,
		"dependencies", len(u.deps),
		"diagnostics", len(diags),
		"duration", time.Since(start),
	)
	return frontend.ParseResult{Handle: u, Diagnostics: diags}, nil
}

// goPackage indexes the other files of a Go package into u.
func (p *Parser) goPackage(u *Unit) []string {
	var deps []string
	pool := p.loader.Pool(LangGo)
	for _, file := range p.packageFiles(u.path, p.maxFiles) {
		source, err := p.readFile(file)
		if err != nil {
			continue
		}
		tree := pool.Parse(source, nil)
		if tree == nil {
			continue
		}
		(&GoExtractor{}).Extract(&ExtractionContext{Source: source, Path: file, Index: u.index}, tree.RootNode())
		tree.Close()
		deps = append(deps, file)
	}
	return deps
}

func (p *Parser) CompleteAt(ctx context.Context, h frontend.Handle, line, column int) ([]frontend.RawCandidate, error) {
	u, ok := h.(*Unit)
	if !ok || u == nil {
		return nil, errors.New(errors.CodeResource, fmt.Sprintf("handle %T was not produced by this frontend", h))
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeResource, "completion cancelled")
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.disposed {
		return nil, errors.AddContext(errors.New(errors.CodeResource, "translation unit is disposed"), errors.CtxPath, u.path)
	}
	return completeAt(u, u.offset(line, column)), nil
}

func (p *Parser) Dispose(h frontend.Handle) error {
	u, ok := h.(*Unit)
	if !ok || u == nil {
		return errors.New(errors.CodeResource, fmt.Sprintf("handle %T was not produced by this frontend", h))
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.disposed {
		return errors.AddContext(errors.New(errors.CodeResource, "translation unit already disposed"), errors.CtxPath, u.path)
	}
	u.disposed = true
	if u.tree != nil {
		u.tree.Close()
		u.tree = nil
	}
	return nil
}

// Unit is the parser's frontend.Handle.
type Unit struct {
	path        string
	lang        string
	std         string
	source      []byte
	lineStarts  []int
	index       *index
	deps        []string
	incremental bool

	mu       sync.Mutex
	tree     *sitter.Tree
	disposed bool
}

func (u *Unit) Path() string { return u.path }

func (u *Unit) Dependencies() []string { return u.deps }

func (u *Unit) MemoryUsage() uint64 {
	return uint64(len(u.source))*(1+treeBytesPerSourceByte) + u.index.memorySize()
}

// Language is the language id the unit was parsed as.
func (u *Unit) Language() string { return u.lang }

// Standard is the effective -std value, empty for Go.
func (u *Unit) Standard() string { return u.std }

// Incremental reports whether the unit reused an earlier tree.
func (u *Unit) Incremental() bool { return u.incremental }

// SyntaxTree renders the unit's tree as an S-expression.
func (u *Unit) SyntaxTree() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.tree == nil {
		return ""
	}
	return u.tree.RootNode().ToSexp()
}

func (u *Unit) cloneTree() *sitter.Tree {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.tree == nil {
		return nil
	}
	return u.tree.Clone()
}

// offset converts a 1-based line and byte column into a source offset,
// clamping out-of-range values.
func (u *Unit) offset(line, column int) int {
	line = max(1, min(line, len(u.lineStarts)))
	start := u.lineStarts[line-1]
	end := len(u.source)
	if line < len(u.lineStarts) {
		end = u.lineStarts[line] - 1
	}
	if end > start && u.source[end-1] == '\r' {
		end--
	}
	return max(start, min(start+column-1, end))
}

var stringKinds = map[string]bool{
	"string_literal": true, "raw_string_literal": true, "char_literal": true,
	"interpreted_string_literal": true, "rune_literal": true, "system_lib_string": true,
}

// inCommentOrString reports whether offset falls inside a comment or a
// literal. u.mu must be held.
func (u *Unit) inCommentOrString(offset uint) bool {
	if u.tree == nil || offset == 0 {
		return false
	}
	n := u.tree.RootNode().DescendantForByteRange(offset-1, offset)
	for ; n != nil; n = n.Parent() {
		kind := n.Kind()
		switch {
		case kind == "comment":
			if strings.HasPrefix(string(u.source[n.StartByte():min(n.EndByte(), uint(len(u.source)))]), "//") {
				return offset > n.StartByte() && offset <= n.EndByte()
			}
			return offset > n.StartByte() && offset < n.EndByte()
		case stringKinds[kind]:
			return offset > n.StartByte() && offset < n.EndByte()
		case kind == "preproc_include":
			// Handled as a directive context.
			return false
		}
	}
	return false
}

func lineOffsets(src []byte) []int {
	starts := []int{0}
	for i, c := range src {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}
