package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "arguments = [\"-std=c11\"]\n")

	reloaded := make(chan *Config, 4)
	w := NewWatcher(path, func(cfg *Config) { reloaded <- cfg })
	w.debounce = 10 * time.Millisecond
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("arguments = [\"-std=c17\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if len(cfg.Arguments) != 1 || cfg.Arguments[0] != "-std=c17" {
			t.Errorf("unexpected reloaded arguments %v", cfg.Arguments)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
}

func TestWatcher_SkipsInvalidFile(t *testing.T) {
	path := writeConfig(t, "version = 1\n")

	reloaded := make(chan *Config, 4)
	w := NewWatcher(path, func(cfg *Config) { reloaded <- cfg })
	w.debounce = 10 * time.Millisecond
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("version = 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		t.Fatalf("invalid configuration was delivered: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
	w.Stop()
}
