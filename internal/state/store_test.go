package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("fresh store Len = %d", s.Len())
	}

	s.MarkDownloaded("file-1", "memo one.m4a")
	s.MarkDownloaded("file-2", "memo two.m4a")
	if !s.Contains("file-1") || s.Contains("file-3") {
		t.Error("Contains gave wrong answers")
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	reloaded, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if reloaded.Len() != 2 || !reloaded.Contains("file-2") {
		t.Errorf("reloaded store lost entries: len=%d", reloaded.Len())
	}
}

func TestStoreCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore() error on corrupt file: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("corrupt file produced %d entries", s.Len())
	}
}

func TestStoreSaveIsNoopWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewStore(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("clean save created a file")
	}

	s.MarkDownloaded("x", "x.m4a")
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	info1, _ := os.Stat(path)

	// A second save without mutation must not rewrite.
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	info2, _ := os.Stat(path)
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Error("clean save rewrote the state file")
	}
}

func TestStoreFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, _ := NewStore(path, nil)
	s.MarkDownloaded("abc", "original name.m4a")
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}
	rec := decoded["abc"]
	if rec.OriginalName != "original name.m4a" {
		t.Errorf("original_name = %q", rec.OriginalName)
	}
	if rec.DownloadedAt == "" {
		t.Error("downloaded_at missing")
	}
}
