package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestResolveWatchPaths(t *testing.T) {
	base := t.TempDir()
	abs := filepath.Join(base, "abs")
	cfg := &Config{Watch: Watch{Paths: []string{".", "src", "./src/", abs}}}

	got := ResolveWatchPaths(cfg, base)
	want := []string{filepath.Clean(base), filepath.Join(base, "src"), abs}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ResolveWatchPaths = %v, want %v", got, want)
	}
}

func TestDetectProjectRoot_FallbackOrder(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := DetectProjectRoot([]string{sub})
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Clean(root) {
		t.Fatalf("expected %q, got %q", root, got)
	}
}

func TestFindFile(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "src")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, ok := FindFile(sub); ok {
		t.Fatal("found a configuration file in an empty tree")
	}

	want := filepath.Join(root, DefaultFile)
	if err := os.WriteFile(want, []byte("version = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, ok := FindFile(filepath.Join(sub, "main.cpp"))
	if !ok || got != want {
		t.Fatalf("FindFile = %q, %v; want %q", got, ok, want)
	}
}
