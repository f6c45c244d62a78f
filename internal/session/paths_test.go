package session

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/matheus3301/wppbridge/internal/config"
)

func TestForUsesHomeOverride(t *testing.T) {
	root := t.TempDir()
	t.Setenv(HomeEnv, root)

	p := For("work")
	dir := filepath.Join(root, "sessions", "work")
	want := Paths{
		Dir:    dir,
		Socket: filepath.Join(dir, "daemon.sock"),
		Lock:   filepath.Join(dir, "LOCK"),
		DB:     filepath.Join(dir, "wpp.db"),
		Log:    filepath.Join(dir, "logs", "wppd.log"),
	}
	if p != want {
		t.Errorf("For(work) = %+v, want %+v", p, want)
	}
	if got := ConfigPath(); got != filepath.Join(root, "config.toml") {
		t.Errorf("ConfigPath = %q", got)
	}
}

func TestBaseDirDefault(t *testing.T) {
	t.Setenv(HomeEnv, "")
	home, _ := os.UserHomeDir()
	if got := BaseDir(); got != filepath.Join(home, ".wpp") {
		t.Errorf("BaseDir = %q", got)
	}
}

func TestEnsureAndList(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	names, err := List()
	if err != nil || len(names) != 0 {
		t.Fatalf("List on empty root = %v, %v", names, err)
	}

	for _, n := range []string{"work", "main"} {
		if err := For(n).Ensure(); err != nil {
			t.Fatalf("Ensure(%s): %v", n, err)
		}
	}
	// Stray entries are not sessions.
	if err := os.WriteFile(filepath.Join(BaseDir(), "sessions", "notes.txt"), nil, 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(BaseDir(), "sessions", "Bad.Name"), 0700); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Dir(For("main").Log))
	if err != nil || !info.IsDir() || info.Mode().Perm() != 0700 {
		t.Fatalf("log dir = %v, %v", info, err)
	}

	names, err = List()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"main", "work"}; !slices.Equal(names, want) {
		t.Errorf("List = %v, want %v", names, want)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		flag string
		cfg  *config.Config
		want string
	}{
		{"flag wins", "work", &config.Config{DefaultSession: "home"}, "work"},
		{"config default", "", &config.Config{DefaultSession: "home"}, "home"},
		{"empty config", "", &config.Config{}, DefaultSessionName},
		{"no config", "", nil, DefaultSessionName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.flag, tt.cfg); got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}
