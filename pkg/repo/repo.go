package repo

import (
	"github.com/odvcencio/gitsink/pkg/object"
	"go.uber.org/zap"
)

// Repo represents a bare git repository on disk.
type Repo struct {
	GitDir string        // <target>.git directory
	Store  *object.Store // loose object store

	logger *zap.Logger
}

// Option configures a Repo.
type Option func(*Repo)

// WithLogger sets the logger used for reconciliation diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repo) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func newRepo(gitDir string, opts ...Option) *Repo {
	r := &Repo{
		GitDir: gitDir,
		Store:  object.NewStore(gitDir),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
