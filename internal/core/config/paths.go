package config

import (
	"os"
	"path/filepath"
	"strings"
)

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// ResolveWatchPaths makes watch.paths absolute against base, usually the
// directory holding the configuration file.
func ResolveWatchPaths(cfg *Config, base string) []string {
	out := make([]string, 0, len(cfg.Watch.Paths))
	seen := make(map[string]bool, len(cfg.Watch.Paths))
	for _, p := range cfg.Watch.Paths {
		resolved := ResolveRelative(base, p)
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		out = append(out, resolved)
	}
	return out
}

// DetectProjectRoot walks up from each candidate until it finds a directory
// holding a project marker. It falls back to the working directory.
func DetectProjectRoot(candidates []string) (string, error) {
	markers := []string{
		DefaultFile,
		".git",
		"go.mod",
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range markers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}

// FindFile returns the DefaultFile in the project root of start, if any.
func FindFile(start string) (string, bool) {
	root, err := DetectProjectRoot([]string{start})
	if err != nil {
		return "", false
	}
	path := filepath.Join(root, DefaultFile)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, true
	}
	return "", false
}
