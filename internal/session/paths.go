// Package session locates per-session state on disk and resolves which
// session a command targets.
package session

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// HomeEnv overrides the state root, ~/.wpp by default.
const HomeEnv = "WPP_HOME"

// BaseDir returns the state root.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wpp")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// Paths are the files a session daemon owns. Provider credentials live
// elsewhere; see config.AuthDir.
type Paths struct {
	Dir    string
	Socket string
	Lock   string
	DB     string
	Log    string
}

// For returns the paths of the named session under BaseDir.
func For(name string) Paths {
	return At(filepath.Join(BaseDir(), "sessions", name))
}

// At lays the session files out under dir.
func At(dir string) Paths {
	return Paths{
		Dir:    dir,
		Socket: filepath.Join(dir, "daemon.sock"),
		Lock:   filepath.Join(dir, "LOCK"),
		DB:     filepath.Join(dir, "wpp.db"),
		Log:    filepath.Join(dir, "logs", "wppd.log"),
	}
}

// Ensure creates the session directory tree with owner-only permissions.
func (p Paths) Ensure() error {
	for _, d := range []string{p.Dir, filepath.Dir(p.Log)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

// List returns the names of sessions that have a state directory,
// sorted. A missing state root yields no sessions.
func List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(BaseDir(), "sessions"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && ValidateName(e.Name()) == nil {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
