package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"autocomplete/internal/engine/frontend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goPoint = `package demo

import (
	"strings"
	yaml "gopkg.in/yaml.v3"
)

type Point struct {
	X, Y int
	// Deprecated: use X.
	Old int
	Label
}

type Label struct{ Text string }

type Shape interface {
	Area() float64
}

const Origin = 0

func (p *Point) Norm() int { return 0 }

func NewPoint() *Point { return &Point{} }
`

func TestGoCompletion(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []string
		missing []string
	}{
		{"composite literal", "pt := &Point{X: 1}\n\tpt.@@X = 2", []string{"X", "Y", "Old", "Norm", "Text", "Label"}, nil},
		{"function result", "pt := NewPoint()\n\tpt.@@X = 2", []string{"X", "Norm"}, nil},
		{"var declaration", "var pt Point\n\tpt.@@X = 2", []string{"X", "Norm"}, nil},
		{"range element", "for _, p := range pts {\n\t\tp.@@X = 1\n\t}", []string{"X", "Y"}, nil},
		{"map value", "m := map[string]*Point{}\n\tm[\"a\"].@@X = 1", []string{"X"}, nil},
		{"interface", "var s Shape\n\ts.@@Area()", []string{"Area"}, []string{"X"}},
		{"package", "strings.@@ToUpper(\"\")", nil, []string{"X", "Norm"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := goPoint + "\nfunc use(pts []Point) {\n\t" + tt.body + "\n\t_ = strings.ToUpper\n\t_ = yaml.Marshal\n}\n"
			got := byName(completeSource(t, "demo.go", src))
			for _, name := range tt.want {
				assert.Contains(t, got, name)
			}
			for _, name := range tt.missing {
				assert.NotContains(t, got, name)
			}
		})
	}
}

func TestGoCompletion_Details(t *testing.T) {
	src := goPoint + "\nfunc use() {\n\tpt := Point{}\n\tpt.@@X = 1\n}\n"
	got := byName(completeSource(t, "detail.go", src))

	assert.Equal(t, frontend.Deprecated, got["Old"].Availability)
	assert.Equal(t, frontend.CursorMethod, got["Norm"].Kind)
	assert.Equal(t, "int", got["Norm"].ResultType)
	assert.Equal(t, priorityMember, got["X"].Priority)
	assert.Equal(t, priorityMember+inheritedPenalty, got["Text"].Priority)
}

func TestGoCompletion_General(t *testing.T) {
	src := goPoint + "\nfunc use(count int) {\n\tlocal := 1\n\t@@_ = local\n}\n"
	got := byName(completeSource(t, "general.go", src))

	tests := []struct {
		name     string
		kind     frontend.CursorKind
		priority int
	}{
		{"local", frontend.CursorVarDecl, priorityLocal},
		{"count", frontend.CursorParmDecl, priorityLocal},
		{"Point", frontend.CursorStructDecl, priorityDecl},
		{"Shape", frontend.CursorInterfaceDecl, priorityDecl},
		{"NewPoint", frontend.CursorFunctionDecl, priorityDecl},
		{"Origin", frontend.CursorConstant, priorityConstant},
		{"strings", frontend.CursorPackage, priorityNamespace},
		{"yaml", frontend.CursorPackage, priorityNamespace},
		{"len", frontend.CursorFunctionDecl, priorityDecl},
		{"func", frontend.CursorKeyword, priorityKeyword},
		{"nil", frontend.CursorConstant, priorityConstant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := got[tt.name]
			require.True(t, ok, "missing %q", tt.name)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.priority, c.Priority)
		})
	}
}

func TestGoPackageFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.go"), []byte("package demo\n\nfunc helper() int { return 1 }\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper_test.go"), []byte("package demo\n\nfunc testOnly() {}\n"), 0o644))

	src, line, col := locate(t, "package demo\n\nfunc main() {\n\thel@@\n}\n")
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	p := newTestParser(t)
	u, _ := parseFile(t, p, path)
	assert.Equal(t, []string{filepath.Join(dir, "helper.go")}, u.Dependencies())

	cands, err := p.CompleteAt(context.Background(), u, line, col)
	require.NoError(t, err)
	got := byName(cands)
	assert.Contains(t, got, "helper")
	assert.NotContains(t, got, "testOnly")
}

func TestGoBaseType(t *testing.T) {
	tests := map[string]string{
		"*Point":         "Point",
		"pkg.Point":      "Point",
		"*pkg.List[T]":   "List",
		"  Point  ":      "Point",
		"Tree[K, V]":     "Tree",
		"**Deep":         "Deep",
		"strings.Reader": "Reader",
	}
	for in, want := range tests {
		if got := goBaseType(in); got != want {
			t.Errorf("goBaseType(%q) = %q, want %q", in, got, want)
		}
	}
}
