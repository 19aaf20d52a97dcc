package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, condition func() bool, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func TestWatchFileReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	initial := "provider = \"qwen\"\n\n[qwen]\napi_key = \"sk-one\"\n"
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	m := NewManager(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.WatchFile(ctx, path); err != nil {
		t.Fatalf("WatchFile failed: %v", err)
	}
	defer m.Stop()

	updated := "provider = \"funasr\"\n\n[funasr]\nendpoint = \"http://localhost:8000\"\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	if !waitFor(t, func() bool { return m.Snapshot().Provider == "funasr" }, 3*time.Second) {
		t.Fatalf("provider = %q, reload did not happen", m.Snapshot().Provider)
	}
}

func TestWatchFileKeepsPreviousOnBadWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	initial := "provider = \"qwen\"\n\n[qwen]\napi_key = \"sk-one\"\n"
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	m := NewManager(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.WatchFile(ctx, path); err != nil {
		t.Fatalf("WatchFile failed: %v", err)
	}
	defer m.Stop()

	if err := os.WriteFile(path, []byte("provider = \"\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	// the watcher sees the write; the broken document must be rejected
	time.Sleep(500 * time.Millisecond)

	snap := m.Snapshot()
	if snap.Provider != "qwen" || snap.Qwen == nil || snap.Qwen.APIKey != "sk-one" {
		t.Errorf("previous configuration not preserved: %+v", snap)
	}
}
