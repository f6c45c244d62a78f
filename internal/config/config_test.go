package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.Backfill.Window = Duration{time.Hour}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Backfill.Window.Duration != time.Hour {
		t.Errorf("Backfill.Window = %v, want 1h", loaded.Backfill.Window)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
default_session = "home"

[session]
reconnect_delay = "30s"

[sync]
include_groups = true
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.ReconnectDelay.Duration != 30*time.Second {
		t.Errorf("ReconnectDelay = %v, want 30s", cfg.Session.ReconnectDelay)
	}
	if !cfg.Sync.IncludeGroups {
		t.Error("IncludeGroups = false, want true")
	}
	if cfg.Media.CacheSize != 200 {
		t.Errorf("CacheSize = %d, want default 200", cfg.Media.CacheSize)
	}
	if cfg.Backfill.MaxMessages != 5000 {
		t.Errorf("MaxMessages = %d, want default 5000", cfg.Backfill.MaxMessages)
	}
	if len(cfg.Sync.AllowedServers) != 2 {
		t.Errorf("AllowedServers = %v, want defaults", cfg.Sync.AllowedServers)
	}
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "default_session = "},
		{"bad duration", "[session]\nreconnect_delay = \"soon\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadOrDefault(path); err == nil {
				t.Error("expected error for malformed file")
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}

	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestAuthDir(t *testing.T) {
	cfg := Default()
	if got := cfg.AuthDir("main"); got != filepath.Join(".wpp_auth", "main") {
		t.Errorf("AuthDir = %q", got)
	}
	cfg.Session.AuthDir = "/var/lib/wpp"
	if got := cfg.AuthDir("work"); got != "/var/lib/wpp/work" {
		t.Errorf("AuthDir = %q, want /var/lib/wpp/work", got)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
