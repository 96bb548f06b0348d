package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileLockAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := NewFileLock(dir, nil)
	if err != nil {
		t.Fatalf("NewFileLock() error: %v", err)
	}
	if !lock.IsLocked() {
		t.Error("IsLocked() = false after acquisition")
	}

	lock.Unlock()
	if lock.IsLocked() {
		t.Error("IsLocked() = true after Unlock")
	}

	// Unlock is idempotent.
	lock.Unlock()
}

func TestFileLockContention(t *testing.T) {
	dir := t.TempDir()

	first, err := NewFileLock(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Unlock()

	cfg := &FileLockConfig{
		Timeout:  50 * time.Millisecond,
		Retry:    10 * time.Millisecond,
		MaxRetry: 5,
	}
	if _, err := NewFileLock(dir, cfg); err == nil {
		t.Error("second lock on the same dir succeeded")
	}
}

func TestCleanupStaleLock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "pigeon.lock")
	if err := os.WriteFile(lockPath, nil, 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	if err := CleanupStaleLock(dir, time.Hour); err != nil {
		t.Fatalf("CleanupStaleLock() error: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("stale lock not removed")
	}

	// A fresh lock survives cleanup.
	if err := os.WriteFile(lockPath, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := CleanupStaleLock(dir, time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(lockPath); err != nil {
		t.Error("fresh lock was removed")
	}

	// Missing lock file is fine.
	if err := CleanupStaleLock(filepath.Join(dir, "nowhere"), time.Hour); err != nil {
		t.Errorf("missing lock file error: %v", err)
	}
}
