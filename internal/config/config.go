package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.wpp/config.toml.
type Config struct {
	DefaultSession string   `toml:"default_session"`
	Session        Session  `toml:"session"`
	Media          Media    `toml:"media"`
	Backfill       Backfill `toml:"backfill"`
	Sync           Sync     `toml:"sync"`
	Log            Log      `toml:"log"`
}

type Session struct {
	// AuthDir holds provider credentials. Empty selects .wpp_auth/<session>
	// relative to the working directory.
	AuthDir        string   `toml:"auth_dir"`
	ReconnectDelay Duration `toml:"reconnect_delay"`
}

type Media struct {
	CacheSize int `toml:"cache_size"`
}

type Backfill struct {
	MaxMessages int      `toml:"max_messages"`
	Window      Duration `toml:"window"`
}

type Sync struct {
	IncludeGroups  bool     `toml:"include_groups"`
	AllowedServers []string `toml:"allowed_servers"`
}

type Log struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration that reads and writes as "5s", "4380h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultSession: "main",
		Session:        Session{ReconnectDelay: Duration{5 * time.Second}},
		Media:          Media{CacheSize: 200},
		Backfill:       Backfill{MaxMessages: 5000, Window: Duration{4380 * time.Hour}},
		Sync: Sync{
			AllowedServers: []string{"s.whatsapp.net", "lid"},
		},
		Log: Log{Level: "info"},
	}
}

// Load reads config from the given path. Keys absent from the file keep
// their defaults. Returns error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// AuthDir returns the credential directory for a session.
func (c *Config) AuthDir(session string) string {
	if c.Session.AuthDir != "" {
		return filepath.Join(c.Session.AuthDir, session)
	}
	return filepath.Join(".wpp_auth", session)
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
