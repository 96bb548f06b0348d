package state

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// Record describes one remote item that has been downloaded.
type Record struct {
	OriginalName string `json:"original_name"`
	DownloadedAt string `json:"downloaded_at"`
}

// Store is the durable mapping from remote file identifier to download
// record. A remote ID present here is never downloaded again, across
// restarts. Writes go through a temp file + atomic rename so a crash
// mid-save never corrupts the previous snapshot.
type Store struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	items map[string]Record
	dirty bool
}

// NewStore loads the state file at path. A missing or corrupt file yields an
// empty store; only I/O setup failures are errors.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:   path,
		logger: logger,
		items:  make(map[string]Record),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.items); err != nil {
			logger.Warn("State file is corrupt, starting fresh", "path", path, "error", err)
			s.items = make(map[string]Record)
		}
	}

	logger.Info("Loaded poller state", "path", path, "tracked", len(s.items))
	return s, nil
}

// Contains reports whether the remote ID was already downloaded.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// MarkDownloaded records a successful download of the remote ID.
func (s *Store) MarkDownloaded(id, originalName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = Record{
		OriginalName: originalName,
		DownloadedAt: time.Now().Format(time.RFC3339),
	}
	s.dirty = true
}

// Len returns the number of tracked remote IDs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Save persists the store atomically. A clean store is a no-op.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	data, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return err
	}

	s.dirty = false
	s.logger.Debug("Saved poller state", "path", s.path, "tracked", len(s.items))
	return nil
}
