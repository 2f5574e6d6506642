package persistent

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/postdevai/postdevai/internal/apperrors"
)

// dirLock guards a base directory against a second PS instance opening it
// concurrently, adapted from the teacher's download-lock idiom onto
// "concurrent PS instances on the same directory are unsupported".
type dirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newDirLock(dir string) *dirLock {
	lockPath := filepath.Join(dir, ".postdevai.lock")
	return &dirLock{path: lockPath, flock: flock.New(lockPath)}
}

// tryLock acquires the lock without blocking, returning an IO error if
// another process already holds it.
func (l *dirLock) tryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return apperrors.IO("failed to create lock directory", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return apperrors.IO("failed to acquire persistent store lock", err)
	}
	if !acquired {
		return apperrors.New(apperrors.ErrCodeLocked,
			"persistent store directory is locked by another process", nil)
	}
	l.locked = true
	return nil
}

func (l *dirLock) unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return apperrors.IO("failed to release persistent store lock", err)
	}
	return nil
}
