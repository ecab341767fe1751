package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/multierr"
)

const lockRetryDelay = 100 * time.Millisecond

// ErrLocked is returned when another process holds the clone lock.
var ErrLocked = errors.New("repository is locked by another process")

// LockPath returns the lock file guarding gitDir. It sits beside the
// directory so it can be taken before the directory exists.
func LockPath(gitDir string) string {
	return filepath.Clean(gitDir) + ".lock"
}

// AcquireLock takes an exclusive lock for gitDir, retrying until ctx is
// done. The returned release func unlocks and removes the lock file.
func AcquireLock(ctx context.Context, gitDir string) (func() error, error) {
	path := LockPath(gitDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s: %w", path, ErrLocked)
	}
	return func() error {
		err := fl.Unlock()
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierr.Append(err, rmErr)
		}
		return err
	}, nil
}
