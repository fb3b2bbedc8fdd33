package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func hasError(errs []error, substr string) bool {
	for _, err := range errs {
		if strings.Contains(err.Error(), substr) {
			return true
		}
	}
	return false
}

func TestValidateWatchPaths(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	cfg.Watch.Enabled = true
	cfg.Watch.Paths = []string{"/non/existent/path", file}

	errs := Validate(cfg)
	if !hasError(errs, `watch.paths[0] "/non/existent/path" does not exist`) {
		t.Errorf("expected missing path error, got %v", errs)
	}
	if !hasError(errs, "is not a directory") {
		t.Errorf("expected not-a-directory error, got %v", errs)
	}

	cfg.Watch.Enabled = false
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("disabled watcher must not be checked, got %v", errs)
	}
}

func TestValidateCheckInterval(t *testing.T) {
	cfg := Default()
	cfg.Cache.Expiration = time.Minute
	cfg.Cache.CheckInterval = time.Hour
	if errs := Validate(cfg); !hasError(errs, "exceeds cache.expiration") {
		t.Errorf("expected check interval warning, got %v", errs)
	}
}

func TestValidateEmptyArgument(t *testing.T) {
	cfg := Default()
	cfg.Arguments = []string{"-Iinclude", " "}
	if errs := Validate(cfg); !hasError(errs, "arguments[1] is empty") {
		t.Errorf("expected empty argument warning, got %v", errs)
	}
}

func TestCompileGlobs(t *testing.T) {
	globs, err := CompileGlobs([]string{"*.o", "build*"}, "watch.exclude_files")
	if err != nil {
		t.Fatal(err)
	}
	if len(globs) != 2 || !globs[0].Match("main.o") || globs[1].Match("src") {
		t.Errorf("unexpected matches for compiled globs")
	}
}
