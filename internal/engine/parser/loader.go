// # internal/engine/parser/loader.go
package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"autocomplete/internal/core/errors"
	"autocomplete/internal/shared/util"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
)

const (
	LangC   = "c"
	LangCPP = "cpp"
	LangGo  = "go"
)

// LanguageSpec maps file extensions onto a grammar.
type LanguageSpec struct {
	Extensions []string
}

func DefaultLanguageRegistry() map[string]LanguageSpec {
	return map[string]LanguageSpec{
		LangC:   {Extensions: []string{".c", ".h"}},
		LangCPP: {Extensions: []string{".cc", ".cpp", ".cxx", ".c++", ".hpp", ".hh", ".hxx", ".ipp", ".inl"}},
		LangGo:  {Extensions: []string{".go"}},
	}
}

// GrammarLoader owns one parser pool per language. C is parsed with the C++
// grammar, which accepts the C subset the index cares about.
type GrammarLoader struct {
	pools      map[string]*ParserPool
	extensions map[string]string
}

func NewGrammarLoader(registry map[string]LanguageSpec) (*GrammarLoader, error) {
	if registry == nil {
		registry = DefaultLanguageRegistry()
	}
	cpp := NewParserPool(sitter.NewLanguage(tree_sitter_cpp.Language()))
	gl := &GrammarLoader{
		pools: map[string]*ParserPool{
			LangC:   cpp,
			LangCPP: cpp,
			LangGo:  NewParserPool(sitter.NewLanguage(tree_sitter_go.Language())),
		},
		extensions: make(map[string]string),
	}
	for _, lang := range util.SortedStringKeys(registry) {
		if _, ok := gl.pools[lang]; !ok {
			return nil, errors.New(errors.CodeNotSupported, fmt.Sprintf("no grammar for language %q", lang))
		}
		for _, ext := range registry[lang].Extensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			gl.extensions[ext] = lang
		}
	}
	return gl, nil
}

// Pool returns the parser pool for a language id.
func (gl *GrammarLoader) Pool(lang string) *ParserPool {
	return gl.pools[lang]
}

// DetectLanguage maps a path onto a language id by extension.
func (gl *GrammarLoader) DetectLanguage(path string) string {
	return gl.extensions[strings.ToLower(filepath.Ext(path))]
}

func (gl *GrammarLoader) SupportedExtensions() []string {
	out := make([]string, 0, len(gl.extensions))
	for ext := range gl.extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
