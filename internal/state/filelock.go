package state

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileLock guards the runtime directory so only one pigeon instance polls a
// given inbox at a time.
type FileLock struct {
	fileLock   *flock.Flock
	lockPath   string
	acquiredAt time.Time
	mu         sync.Mutex
}

type FileLockConfig struct {
	Timeout  time.Duration
	Retry    time.Duration
	MaxRetry int
}

func DefaultFileLockConfig() *FileLockConfig {
	return &FileLockConfig{
		Timeout:  30 * time.Second,
		Retry:    100 * time.Millisecond,
		MaxRetry: 300,
	}
}

// NewFileLock acquires an advisory lock under runtimeDir, retrying up to the
// configured bound.
func NewFileLock(runtimeDir string, cfg *FileLockConfig) (*FileLock, error) {
	if cfg == nil {
		cfg = DefaultFileLockConfig()
	}

	if err := os.MkdirAll(runtimeDir, 0755); err != nil {
		return nil, err
	}

	lockPath := filepath.Join(runtimeDir, "pigeon.lock")
	fl := &FileLock{
		fileLock: flock.New(lockPath),
		lockPath: lockPath,
	}

	deadline := time.Now().Add(cfg.Timeout)
	for i := 0; i < cfg.MaxRetry; i++ {
		locked, err := fl.fileLock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("attempt lock: %w", err)
		}
		if locked {
			fl.acquiredAt = time.Now()
			slog.Info("Runtime lock acquired", "path", lockPath)
			return fl, nil
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(cfg.Retry)
	}

	return nil, fmt.Errorf("runtime dir %s is locked by another instance (timeout after %v)",
		runtimeDir, cfg.Timeout)
}

func (fl *FileLock) Unlock() {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.fileLock == nil {
		return
	}

	if err := fl.fileLock.Unlock(); err != nil {
		slog.Error("Failed to release runtime lock", "path", fl.lockPath, "error", err)
	} else {
		slog.Info("Runtime lock released", "path", fl.lockPath,
			"held_ms", time.Since(fl.acquiredAt).Milliseconds())
	}
	fl.fileLock = nil
}

func (fl *FileLock) IsLocked() bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.fileLock != nil
}

// CleanupStaleLock removes a lock file older than maxAge. Only called before
// acquisition, when a previous instance is known to be dead.
func CleanupStaleLock(runtimeDir string, maxAge time.Duration) error {
	lockPath := filepath.Join(runtimeDir, "pigeon.lock")
	info, err := os.Stat(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if age := time.Since(info.ModTime()); age > maxAge {
		slog.Warn("Removing stale runtime lock", "path", lockPath, "age", age)
		return os.Remove(lockPath)
	}
	return nil
}
