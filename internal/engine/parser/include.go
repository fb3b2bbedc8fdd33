package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"autocomplete/internal/engine/frontend"
)

const (
	DefaultMaxIncludeDepth = 16
	DefaultMaxIncludeFiles = 512
)

// includeWalker pulls headers into a unit's index.
type includeWalker struct {
	parser   *Parser
	lang     string
	opts     *compileOptions
	index    *index
	maxDepth int
	maxFiles int

	seen        map[string]bool
	deps        []string
	diagnostics []frontend.Diagnostic
	truncated   bool
}

func (w *includeWalker) searchPath(dir includeDirective, from string) []string {
	var dirs []string
	if !dir.angled {
		dirs = append(dirs, filepath.Dir(from))
		dirs = append(dirs, w.opts.quoteDirs...)
	}
	dirs = append(dirs, w.opts.includeDirs...)
	dirs = append(dirs, w.opts.systemDirs...)
	return dirs
}

func (w *includeWalker) resolve(dir includeDirective, from string) (string, bool) {
	if filepath.IsAbs(dir.target) {
		if w.exists(dir.target) {
			return filepath.Clean(dir.target), true
		}
		return "", false
	}
	for _, base := range w.searchPath(dir, from) {
		candidate := filepath.Clean(filepath.Join(base, dir.target))
		if w.exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (w *includeWalker) exists(path string) bool {
	if w.seen[path] {
		return true
	}
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir()
	}
	// Overlays are not on disk.
	_, err = w.parser.readFile(path)
	return err == nil
}

// follow processes the directives found in from, recursively.
func (w *includeWalker) follow(directives []includeDirective, from string, depth int) {
	for _, dir := range directives {
		path, ok := w.resolve(dir, from)
		if !ok {
			w.diagnostics = append(w.diagnostics, frontend.Diagnostic{
				Severity: frontend.SeverityError,
				Message:  fmt.Sprintf("'%s' file not found", dir.target),
				Location: dir.loc,
			})
			continue
		}
		if w.seen[path] {
			continue
		}
		if depth >= w.maxDepth {
			w.diagnostics = append(w.diagnostics, frontend.Diagnostic{
				Severity: frontend.SeverityError,
				Message:  fmt.Sprintf("#include nested depth %d exceeds maximum of %d", depth+1, w.maxDepth),
				Location: dir.loc,
			})
			continue
		}
		if len(w.deps) >= w.maxFiles {
			w.truncated = true
			continue
		}
		w.seen[path] = true
		w.deps = append(w.deps, path)
		w.header(path, dir.loc, depth)
	}
}

func (w *includeWalker) header(path string, at frontend.Location, depth int) {
	source, err := w.parser.readFile(path)
	if err != nil {
		w.diagnostics = append(w.diagnostics, frontend.Diagnostic{
			Severity: frontend.SeverityError,
			Message:  fmt.Sprintf("cannot open '%s': %v", path, err),
			Location: at,
		})
		return
	}
	pool := w.parser.loader.Pool(w.lang)
	if pool == nil {
		return
	}
	tree := pool.Parse(source, nil)
	if tree == nil {
		return
	}
	defer tree.Close()

	ctx := &ExtractionContext{Source: source, Path: path, Index: w.index}
	extractor := &CppExtractor{}
	nested := extractor.Extract(ctx, tree.RootNode())
	w.follow(nested, path, depth+1)
}

// preIncludes handles -include, searched from the working directory then
// the include path like a quoted include.
func (w *includeWalker) preIncludes(mainPath string) {
	for _, target := range w.opts.preIncludes {
		dir := includeDirective{target: target, loc: frontend.Location{File: mainPath}}
		if !filepath.IsAbs(target) && w.exists(target) {
			dir.target, _ = filepath.Abs(target)
		}
		w.follow([]includeDirective{dir}, mainPath, 0)
	}
}

func (w *includeWalker) finish(mainPath string) {
	if w.truncated {
		w.diagnostics = append(w.diagnostics, frontend.Diagnostic{
			Severity: frontend.SeverityWarning,
			Message:  fmt.Sprintf("include limit of %d files reached; remaining headers skipped", w.maxFiles),
			Location: frontend.Location{File: mainPath},
		})
	}
}

// packageFiles lists the other Go files of the package containing path.
// Test files only join when path itself is a test file.
func (p *Parser) packageFiles(path string, limit int) []string {
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		return nil
	}
	testing := strings.HasSuffix(path, "_test.go")
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if strings.HasSuffix(name, "_test.go") && !testing {
			continue
		}
		full := filepath.Join(filepath.Dir(path), name)
		if full == path {
			continue
		}
		out = append(out, full)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
