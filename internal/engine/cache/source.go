package cache

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/zeebo/xxh3"
)

// Sources resolves file content for parsing. Overlays hold unsaved editor
// buffers and shadow the file on disk until cleared.
type Sources struct {
	mu       sync.RWMutex
	overlays map[string][]byte
	readFile func(string) ([]byte, error)
}

func NewSources() *Sources {
	return &Sources{
		overlays: make(map[string][]byte),
		readFile: os.ReadFile,
	}
}

// SetOverlay replaces the buffer for path. The content is copied.
func (s *Sources) SetOverlay(path string, content []byte) {
	next := make([]byte, len(content))
	copy(next, content)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlays[normalize(path)] = next
}

// ClearOverlay drops the buffer for path and reports whether one existed.
func (s *Sources) ClearOverlay(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalize(path)
	_, ok := s.overlays[key]
	delete(s.overlays, key)
	return ok
}

func (s *Sources) Overlay(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.overlays[normalize(path)]
	return content, ok
}

// OverlayPaths lists paths with an active overlay, sorted.
func (s *Sources) OverlayPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.overlays))
	for path := range s.overlays {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Read returns the overlay for path if present, otherwise the file on disk.
// Overlay bytes are shared and must not be modified by the caller.
func (s *Sources) Read(path string) ([]byte, error) {
	if content, ok := s.Overlay(path); ok {
		return content, nil
	}
	return s.readFile(path)
}

// Fingerprint identifies the exact content and arguments a unit was built from.
type Fingerprint struct {
	Content uint64
	Args    uint64
}

func fingerprintOf(content []byte, argsHash uint64) Fingerprint {
	return Fingerprint{Content: xxh3.Hash(content), Args: argsHash}
}

func normalize(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}
