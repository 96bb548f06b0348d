package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"spaces become hyphens", "voice memo.m4a", "voice-memo.m4a"},
		{"special characters deleted", `a<b>c:d"e.txt`, "abcde.txt"},
		{"parens deleted", "recording (1).mp3", "recording-1.mp3"},
		{"extension preserved", "Notes From Call.wav", "Notes-From-Call.wav"},
		{"no extension", "plain name", "plain-name"},
		{"already clean", "clean-name.md", "clean-name.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input)
			if got != tt.expected {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{"voice memo (2).m4a", "a<b>.txt", "already-clean.md"}
	for _, input := range inputs {
		once := Sanitize(input)
		twice := Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestTimestamped(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	got := Timestamped("voice memo.m4a", now)
	want := "2026-03-14_09-26-53_voice-memo.m4a"
	if got != want {
		t.Errorf("Timestamped() = %q, want %q", got, want)
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "note.md")
	got, err := UniquePath(path)
	if err != nil {
		t.Fatalf("UniquePath() error: %v", err)
	}
	if got != path {
		t.Errorf("free path changed: got %q, want %q", got, path)
	}

	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = UniquePath(path)
	if err != nil {
		t.Fatalf("UniquePath() error: %v", err)
	}
	want := filepath.Join(dir, "note_1.md")
	if got != want {
		t.Errorf("collision path = %q, want %q", got, want)
	}

	if err := os.WriteFile(want, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = UniquePath(path)
	if err != nil {
		t.Fatalf("UniquePath() error: %v", err)
	}
	if got != filepath.Join(dir, "note_2.md") {
		t.Errorf("second collision path = %q", got)
	}
}
