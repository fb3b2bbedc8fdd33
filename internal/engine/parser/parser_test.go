package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autocomplete/internal/core/errors"
	"autocomplete/internal/engine/frontend"
	"autocomplete/internal/shared/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cursor = "@@"

// locate removes the cursor marker from src and returns its 1-based position.
func locate(t *testing.T, src string) (string, int, int) {
	t.Helper()
	i := strings.Index(src, cursor)
	require.GreaterOrEqual(t, i, 0, "source has no cursor marker")
	before := src[:i]
	line := strings.Count(before, "\n") + 1
	col := i - strings.LastIndex(before, "\n")
	return before + src[i+len(cursor):], line, col
}

func newTestParser(t *testing.T, opts ...Option) *Parser {
	t.Helper()
	p, err := New(opts...)
	require.NoError(t, err)
	return p
}

func parseFile(t *testing.T, p *Parser, path string, args ...string) (*Unit, []frontend.Diagnostic) {
	t.Helper()
	source, err := os.ReadFile(path)
	require.NoError(t, err)
	res, err := p.Parse(context.Background(), frontend.ParseRequest{Path: path, Source: source, Args: args})
	require.NoError(t, err)
	u := res.Handle.(*Unit)
	t.Cleanup(func() { _ = p.Dispose(u) })
	return u, res.Diagnostics
}

// completeSource writes src (with a cursor marker) to name in a temp dir and
// completes at the marker.
func completeSource(t *testing.T, name, src string, args ...string) []frontend.RawCandidate {
	t.Helper()
	text, line, col := locate(t, src)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	p := newTestParser(t)
	u, _ := parseFile(t, p, path, args...)
	cands, err := p.CompleteAt(context.Background(), u, line, col)
	require.NoError(t, err)
	return cands
}

func byName(cands []frontend.RawCandidate) map[string]frontend.RawCandidate {
	out := make(map[string]frontend.RawCandidate, len(cands))
	for _, c := range cands {
		if prev, ok := out[c.TypedText]; ok && prev.Priority <= c.Priority {
			continue
		}
		out[c.TypedText] = c
	}
	return out
}

func names(cands []frontend.RawCandidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.TypedText)
	}
	return out
}

func TestCompleteAt_MemberOfStruct(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.cpp")
	require.NoError(t, os.WriteFile(path, []byte("struct Foo { void bar(); }; Foo f; f."), 0o644))

	p := newTestParser(t)
	u, _ := parseFile(t, p, path)
	cands, err := p.CompleteAt(context.Background(), u, 1, 38)
	require.NoError(t, err)

	got := byName(cands)
	require.Contains(t, got, "bar")
	assert.Equal(t, frontend.CursorMethod, got["bar"].Kind)
	assert.Equal(t, priorityMember, got["bar"].Priority)
	assert.Equal(t, "void", got["bar"].ResultType)
	assert.Len(t, cands, 1)
}

func TestCompleteAt_InheritanceAndAccess(t *testing.T) {
	src := `class Base {
public:
  int visible;
  void method();
protected:
  int prot;
private:
  int secret;
};
class Derived : public Base {
public:
  int own;
};
int main() {
  Derived d;
  d.@@own;
}
`
	got := byName(completeSource(t, "access.cpp", src))

	assert.Equal(t, priorityMember, got["own"].Priority)
	assert.Equal(t, priorityMember+inheritedPenalty, got["visible"].Priority)
	assert.Equal(t, priorityMember+inheritedPenalty, got["method"].Priority)
	assert.Equal(t, frontend.Available, got["visible"].Availability)
	assert.Equal(t, frontend.NotAccessible, got["prot"].Availability)
	assert.Equal(t, frontend.NotAccessible, got["secret"].Availability)
	assert.NotContains(t, got, "Derived", "constructors are not member candidates")
}

func TestCompleteAt_PrefixFilter(t *testing.T) {
	src := `struct Foo { void bar(); int baz; int Bat; int other; };
void use(Foo f) { f.ba@@; }
`
	got := byName(completeSource(t, "prefix.cpp", src))

	assert.Equal(t, priorityMember, got["bar"].Priority)
	assert.Equal(t, priorityMember, got["baz"].Priority)
	assert.Equal(t, priorityMember+casePenalty, got["Bat"].Priority)
	assert.NotContains(t, got, "other")
}

func TestCompleteAt_GeneralContext(t *testing.T) {
	src := `#define LIMIT 10
enum Color { Red, Green };
int counter;
int helper(int x);
int main(int argc) {
  int local = 1;
  @@return 0;
}
`
	got := byName(completeSource(t, "general.cpp", src))

	tests := []struct {
		name     string
		kind     frontend.CursorKind
		priority int
	}{
		{"local", frontend.CursorVarDecl, priorityLocal},
		{"argc", frontend.CursorParmDecl, priorityLocal},
		{"counter", frontend.CursorVarDecl, priorityDecl},
		{"helper", frontend.CursorFunctionDecl, priorityDecl},
		{"main", frontend.CursorFunctionDecl, priorityDecl},
		{"Color", frontend.CursorEnumDecl, priorityDecl},
		{"Red", frontend.CursorEnumConstantDecl, priorityConstant},
		{"LIMIT", frontend.CursorMacroDefinition, priorityMacro},
		{"int", frontend.CursorKeyword, priorityKeyword},
		{"nullptr", frontend.CursorKeyword, priorityKeyword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := got[tt.name]
			require.True(t, ok, "missing %q", tt.name)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.priority, c.Priority)
		})
	}
	assert.NotContains(t, got, "x", "parameters of other functions are not visible")
}

func TestCompleteAt_LocalsRespectDeclarationOrder(t *testing.T) {
	src := `void f() {
  int early = 0;
  @@early;
  int late = 1;
  { int nested = 2; }
}
`
	got := byName(completeSource(t, "order.cpp", src))
	assert.Contains(t, got, "early")
	assert.NotContains(t, got, "late")
	assert.NotContains(t, got, "nested")
}

func TestCompleteAt_ScopeQualified(t *testing.T) {
	t.Run("namespace", func(t *testing.T) {
		src := `namespace outer { namespace inner { int value; } struct S { static int count; }; }
void f() { outer::@@inner; }
`
		got := byName(completeSource(t, "ns.cpp", src))
		assert.Equal(t, frontend.CursorNamespace, got["inner"].Kind)
		assert.Equal(t, priorityNamespace, got["inner"].Priority)
		assert.Equal(t, frontend.CursorStructDecl, got["S"].Kind)
		assert.NotContains(t, got, "value")
	})

	t.Run("nested namespace", func(t *testing.T) {
		src := `namespace outer { namespace inner { int value; } }
void f() { outer::inner::@@value; }
`
		got := byName(completeSource(t, "ns2.cpp", src))
		assert.Equal(t, frontend.CursorVarDecl, got["value"].Kind)
	})

	t.Run("record", func(t *testing.T) {
		src := `struct S { static int count; enum Mode { A, B }; void run(); };
void f() { S::@@count; }
`
		got := byName(completeSource(t, "record.cpp", src))
		assert.Contains(t, got, "count")
		assert.Contains(t, got, "run")
		assert.Equal(t, frontend.CursorEnumDecl, got["Mode"].Kind)
		assert.Equal(t, priorityConstant, got["A"].Priority)
	})

	t.Run("enum class", func(t *testing.T) {
		src := `enum class Dir { Up, Down };
void f() { Dir d = Dir::@@Up; }
`
		got := byName(completeSource(t, "enum.cpp", src))
		assert.Equal(t, []string{"Down", "Up"}, util.SortedStringKeys(got))
		assert.Equal(t, priorityConstant, got["Up"].Priority)
	})
}

func TestCompleteAt_ReceiverChains(t *testing.T) {
	decls := `struct Node { Node* next; int value; Node* child(int i); };
struct List { Node* head; Node items[4]; };
`
	tests := []struct {
		name string
		body string
	}{
		{"auto from member", "auto n = list.head;\n  n->@@value;"},
		{"call chain", "list.head->child(1)->@@next;"},
		{"subscript", "list.items[0].@@value;"},
		{"pointer param", "(*list.head).@@value;"},
		{"range for", "for (auto& item : list.items) { item.@@value; }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := decls + "void walk(List& list) {\n  " + tt.body + "\n}\n"
			got := byName(completeSource(t, "chain.cpp", src))
			assert.Contains(t, got, "next")
			assert.Contains(t, got, "value")
			assert.Contains(t, got, "child")
		})
	}
}

func TestCompleteAt_TypedefAndAlias(t *testing.T) {
	src := `typedef struct { int x; int y; } Point;
using P = Point;
void f(P* p) { p->@@x; }
`
	got := byName(completeSource(t, "typedef.cpp", src))
	assert.Contains(t, got, "x")
	assert.Contains(t, got, "y")
}

func TestCompleteAt_MemberFunctionContext(t *testing.T) {
	src := `class Widget {
public:
  void draw();
private:
  int width;
};
void Widget::draw() {
  this->@@width;
}
`
	got := byName(completeSource(t, "widget.cpp", src))
	require.Contains(t, got, "width")
	assert.Equal(t, frontend.Available, got["width"].Availability)

	src = strings.Replace(src, "this->@@width;", "@@width;", 1)
	got = byName(completeSource(t, "widget.cpp", src))
	assert.Equal(t, priorityMember, got["width"].Priority)
	assert.Contains(t, got, "this")
}

func TestCompleteAt_Availability(t *testing.T) {
	src := `struct R {
  R(const R&) = delete;
  void gone() = delete;
  [[deprecated]] void old();
  __attribute__((deprecated)) int legacy;
  void fine();
};
void f(R r) { r.@@fine(); }
`
	got := byName(completeSource(t, "avail.cpp", src))
	assert.Equal(t, frontend.NotAvailable, got["gone"].Availability)
	assert.Equal(t, frontend.Deprecated, got["old"].Availability)
	assert.Equal(t, frontend.Deprecated, got["legacy"].Availability)
	assert.Equal(t, frontend.Available, got["fine"].Availability)
}

func TestCompleteAt_NothingInCommentsOrStrings(t *testing.T) {
	for name, src := range map[string]string{
		"line comment":  "struct Foo { int x; }; Foo f; // f.@@\n",
		"block comment": "struct Foo { int x; }; Foo f; /* f.@@ */\n",
		"string":        "struct Foo { int x; }; Foo f; const char* s = \"f.@@\";\n",
		"number":        "double d = 1.@@5;\n",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, completeSource(t, "quiet.cpp", src))
		})
	}
}

func TestCompleteAt_Preprocessor(t *testing.T) {
	got := byName(completeSource(t, "pp.c", "#inc@@\nint x;\n"))
	assert.Contains(t, got, "include")
	assert.NotContains(t, got, "int")
}

func TestParse_Includes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "inc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shapes.h"), []byte("#include <extra.h>\nstruct Circle { double radius; };\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inc", "extra.h"), []byte("#define EXTRA 1\nstruct Square { double side; };\n"), 0o644))

	src, line, col := locate(t, "#include \"shapes.h\"\n#include \"missing.h\"\nvoid f(Circle c, Square s) { c.@@radius; }\n")
	path := filepath.Join(dir, "main.cpp")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	p := newTestParser(t)
	u, diags := parseFile(t, p, path, "-I"+filepath.Join(dir, "inc"))

	assert.ElementsMatch(t, []string{filepath.Join(dir, "shapes.h"), filepath.Join(dir, "inc", "extra.h")}, u.Dependencies())
	require.Len(t, diags, 1)
	assert.Equal(t, frontend.SeverityError, diags[0].Severity)
	assert.Equal(t, "'missing.h' file not found", diags[0].Message)
	assert.Equal(t, 2, diags[0].Location.Line)

	cands, err := p.CompleteAt(context.Background(), u, line, col)
	require.NoError(t, err)
	assert.Equal(t, []string{"radius"}, names(cands))
}

func TestParse_IncludeOverlay(t *testing.T) {
	dir := t.TempDir()
	header := filepath.Join(dir, "unsaved.h")
	overlay := func(path string) ([]byte, error) {
		if path == header {
			return []byte("struct Draft { int field; };\n"), nil
		}
		return os.ReadFile(path)
	}
	src, line, col := locate(t, "#include \"unsaved.h\"\nvoid f(Draft d) { d.@@field; }\n")
	path := filepath.Join(dir, "main.cpp")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	p := newTestParser(t, WithReadFile(overlay))
	u, diags := parseFile(t, p, path)
	assert.Empty(t, diags)
	cands, err := p.CompleteAt(context.Background(), u, line, col)
	require.NoError(t, err)
	assert.Equal(t, []string{"field"}, names(cands))
}

func TestParse_IncludeLimits(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.h"), []byte("#include \"b.h\"\nint a;\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.h"), []byte("#include \"a.h\"\nint b;\n"), 0o644))
	path := filepath.Join(dir, "main.c")
	require.NoError(t, os.WriteFile(path, []byte("#include \"a.h\"\n"), 0o644))

	t.Run("cycle terminates", func(t *testing.T) {
		u, diags := parseFile(t, newTestParser(t), path)
		assert.Len(t, u.Dependencies(), 2)
		assert.Empty(t, diags)
	})

	t.Run("file cap", func(t *testing.T) {
		u, diags := parseFile(t, newTestParser(t, WithIncludeLimits(8, 1)), path)
		assert.Len(t, u.Dependencies(), 1)
		require.NotEmpty(t, diags)
		assert.Contains(t, diags[len(diags)-1].Message, "include limit")
	})

	t.Run("depth cap", func(t *testing.T) {
		u, diags := parseFile(t, newTestParser(t, WithIncludeLimits(1, 0)), path)
		assert.Len(t, u.Dependencies(), 1)
		require.Len(t, diags, 1)
		assert.Contains(t, diags[0].Message, "nested depth")
	})
}

func TestParse_Arguments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "args.c")
	require.NoError(t, os.WriteFile(path, []byte("int x;\n"), 0o644))
	p := newTestParser(t)

	t.Run("unknown flag warns", func(t *testing.T) {
		_, diags := parseFile(t, p, path, "--frobnicate", "-Wall", "-O2")
		require.Len(t, diags, 1)
		assert.Equal(t, frontend.SeverityWarning, diags[0].Severity)
		assert.Equal(t, "argument unused during compilation: '--frobnicate'", diags[0].Message)
	})

	t.Run("std mismatch", func(t *testing.T) {
		u, diags := parseFile(t, p, path, "-std=c++17")
		require.Len(t, diags, 1)
		assert.Equal(t, frontend.SeverityError, diags[0].Severity)
		assert.Equal(t, "c17", u.Standard())
	})

	t.Run("language override", func(t *testing.T) {
		u, diags := parseFile(t, p, path, "-x", "c++", "-std=c++20")
		assert.Empty(t, diags)
		assert.Equal(t, LangCPP, u.Language())
		assert.Equal(t, "c++20", u.Standard())
	})

	t.Run("macros", func(t *testing.T) {
		u, _ := parseFile(t, p, path, "-DDEBUG", "-DMAX(a,b)=((a)>(b)?(a):(b))", "-DGONE", "-UGONE")
		cands, err := p.CompleteAt(context.Background(), u, 2, 1)
		require.NoError(t, err)
		got := byName(cands)
		assert.Equal(t, priorityMacro, got["DEBUG"].Priority)
		assert.Equal(t, []string{"a", "b"}, got["MAX"].Params)
		assert.NotContains(t, got, "GONE")
	})

	t.Run("std keywords", func(t *testing.T) {
		u, _ := parseFile(t, p, path, "-std=c89")
		cands, err := p.CompleteAt(context.Background(), u, 2, 1)
		require.NoError(t, err)
		got := byName(cands)
		assert.Contains(t, got, "while")
		assert.NotContains(t, got, "inline")
		assert.NotContains(t, got, "class")
	})
}

func TestParse_UnknownLanguage(t *testing.T) {
	p := newTestParser(t)
	res, err := p.Parse(context.Background(), frontend.ParseRequest{Path: "notes.txt", Source: []byte("hello")})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
	assert.Nil(t, res.Handle)
	require.NotEmpty(t, res.Diagnostics)
	assert.Equal(t, frontend.SeverityFatal, res.Diagnostics[len(res.Diagnostics)-1].Severity)
}

func TestParse_SyntaxDiagnostics(t *testing.T) {
	p := newTestParser(t)
	res, err := p.Parse(context.Background(), frontend.ParseRequest{Path: "broken.c", Source: []byte("int x = ;\nint y;\n")})
	require.NoError(t, err)
	defer p.Dispose(res.Handle)
	require.NotEmpty(t, res.Diagnostics)
	assert.Equal(t, frontend.SeverityError, res.Diagnostics[0].Severity)
	assert.Equal(t, 1, res.Diagnostics[0].Location.Line)

	var many strings.Builder
	for i := 0; i < errorLimit+5; i++ {
		fmt.Fprintf(&many, "void f%d() { int x = ; }\n", i)
	}
	res, err = p.Parse(context.Background(), frontend.ParseRequest{Path: "many.c", Source: []byte(many.String())})
	require.NoError(t, err)
	defer p.Dispose(res.Handle)
	last := res.Diagnostics[len(res.Diagnostics)-1]
	assert.Equal(t, frontend.SeverityFatal, last.Severity)
	assert.Len(t, res.Diagnostics, errorLimit+1)
}

func TestParse_Incremental(t *testing.T) {
	p := newTestParser(t)
	ctx := context.Background()
	v1 := []byte("struct A { int one; };\nA a;\n")
	v2 := []byte("struct A { int one; int two; };\nA a;\n")

	first, err := p.Parse(ctx, frontend.ParseRequest{Path: "inc.cpp", Source: v1})
	require.NoError(t, err)
	second, err := p.Parse(ctx, frontend.ParseRequest{Path: "inc.cpp", Source: v2, Previous: first.Handle})
	require.NoError(t, err)

	u2 := second.Handle.(*Unit)
	assert.True(t, u2.Incremental())
	assert.Equal(t, "translation_unit", strings.Fields(strings.Trim(u2.SyntaxTree(), "()"))[0])

	// The previous unit still belongs to the caller.
	cands, err := p.CompleteAt(ctx, first.Handle, 2, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, cands)

	require.NoError(t, p.Dispose(first.Handle))
	require.NoError(t, p.Dispose(second.Handle))
}

func TestDispose_Twice(t *testing.T) {
	p := newTestParser(t)
	res, err := p.Parse(context.Background(), frontend.ParseRequest{Path: "once.c", Source: []byte("int x;")})
	require.NoError(t, err)

	require.NoError(t, p.Dispose(res.Handle))
	err = p.Dispose(res.Handle)
	assert.True(t, errors.IsCode(err, errors.CodeResource))

	_, err = p.CompleteAt(context.Background(), res.Handle, 1, 1)
	assert.True(t, errors.IsCode(err, errors.CodeResource))
}

func TestUnit_OffsetClamps(t *testing.T) {
	u := &Unit{source: []byte("ab\r\ncd\n")}
	u.lineStarts = lineOffsets(u.source)

	tests := []struct {
		line, col, want int
	}{
		{1, 1, 0},
		{1, 3, 2},
		{1, 99, 2},
		{2, 2, 5},
		{0, 0, 0},
		{3, 1, 7},
		{42, 5, 7},
	}
	for _, tt := range tests {
		if got := u.offset(tt.line, tt.col); got != tt.want {
			t.Errorf("offset(%d, %d) = %d, want %d", tt.line, tt.col, got, tt.want)
		}
	}
}
