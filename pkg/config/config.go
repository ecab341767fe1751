// Package config loads gitsink settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
)

// Defaults.
const (
	DefaultWorkers  = 8
	DefaultLogLevel = "warn"
	DefaultGitPort  = 9418
)

// Config is the on-disk configuration.
//
//	workers = 8
//	log_level = "info"
//	git_port = 9418
//
//	[ssh]
//	user = "git"
//	known_hosts = "~/.ssh/known_hosts"
type Config struct {
	Workers  int       `toml:"workers"`
	LogLevel string    `toml:"log_level"`
	GitPort  int       `toml:"git_port"`
	SSH      SSHConfig `toml:"ssh"`
}

// SSHConfig configures the ssh transport.
type SSHConfig struct {
	User       string `toml:"user"`
	KnownHosts string `toml:"known_hosts"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Workers:  DefaultWorkers,
		LogLevel: DefaultLogLevel,
		GitPort:  DefaultGitPort,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/gitsink/config.toml, falling back
// to the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gitsink", "config.toml")
}

// Load reads path over the defaults. A missing file yields the defaults.
// Unknown keys are rejected so typos do not go unnoticed.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.SSH.KnownHosts = expandHome(cfg.SSH.KnownHosts)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.GitPort < 1 || c.GitPort > 65535 {
		return fmt.Errorf("git_port out of range: %d", c.GitPort)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return lvl, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

func expandHome(p string) string {
	rest, ok := strings.CutPrefix(p, "~/")
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}
