package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	format "github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/odvcencio/gitsink/pkg/object"
)

const remoteSection = "remote"

func (r *Repo) configPath() string {
	return filepath.Join(r.GitDir, "config")
}

// readConfig decodes the repository config. A missing file is an empty
// config.
func (r *Repo) readConfig() (*format.Config, error) {
	cfg := format.New()
	data, err := os.ReadFile(r.configPath())
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := format.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.configPath(), err)
	}
	return cfg, nil
}

func (r *Repo) writeConfig(cfg *format.Config) error {
	var buf bytes.Buffer
	if err := format.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return object.WriteFileAtomic(r.configPath(), buf.Bytes(), 0o644)
}

// SetRemote records a named remote URL in the repository config, the way
// a bare clone does. An existing section for name is replaced.
func (r *Repo) SetRemote(name, remoteURL string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "\"\n") {
		return fmt.Errorf("set remote: invalid remote name %q", name)
	}
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" || strings.Contains(remoteURL, "\n") {
		return fmt.Errorf("set remote: invalid remote URL %q", remoteURL)
	}

	cfg, err := r.readConfig()
	if err != nil {
		return fmt.Errorf("set remote: %w", err)
	}
	sec := cfg.Section(remoteSection).RemoveSubsection(name)
	sec.Subsection(name).SetOption("url", remoteURL)
	if err := r.writeConfig(cfg); err != nil {
		return fmt.Errorf("set remote: %w", err)
	}
	return nil
}

// RemoteURL returns the configured URL for the given remote name.
func (r *Repo) RemoteURL(name string) (string, error) {
	cfg, err := r.readConfig()
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	sec := cfg.Section(remoteSection)
	if !sec.HasSubsection(name) {
		return "", fmt.Errorf("remote %q is not configured", name)
	}
	url := sec.Subsection(name).Option("url")
	if url == "" {
		return "", fmt.Errorf("remote %q has no url", name)
	}
	return url, nil
}
