package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultHead is the symbolic HEAD written before any refs are known.
const DefaultHead = "refs/heads/master"

const bareConfig = "[core]\n\trepositoryformatversion = 0\n\tfilemode = true\n\tbare = true\n"

// GitDirName returns the bare repository directory for a clone target.
func GitDirName(target string) string {
	if strings.HasSuffix(target, ".git") {
		return target
	}
	return target + ".git"
}

// Init creates a bare git repository at gitDir: HEAD, config, objects/,
// refs/heads/ and refs/tags/. Returns an error if gitDir exists and is
// not empty.
func Init(gitDir string, opts ...Option) (*Repo, error) {
	if entries, err := os.ReadDir(gitDir); err == nil && len(entries) > 0 {
		return nil, fmt.Errorf("init: destination %s already exists and is not empty", gitDir)
	}

	dirs := []string{
		filepath.Join(gitDir, "objects", "info"),
		filepath.Join(gitDir, "objects", "pack"),
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "tags"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	if err := os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte(symrefContent(DefaultHead)), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}
	if err := os.WriteFile(filepath.Join(gitDir, "config"), []byte(bareConfig), 0o644); err != nil {
		return nil, fmt.Errorf("init: write config: %w", err)
	}

	return newRepo(gitDir, opts...), nil
}

// Open opens an existing bare repository at gitDir.
func Open(gitDir string, opts ...Option) (*Repo, error) {
	for _, name := range []string{"HEAD", "objects"} {
		if _, err := os.Stat(filepath.Join(gitDir, name)); err != nil {
			return nil, fmt.Errorf("open: not a git repository: %s: %w", gitDir, err)
		}
	}
	return newRepo(gitDir, opts...), nil
}
