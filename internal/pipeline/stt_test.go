package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSTTProcessorCreatesTranscript(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "memo.m4a")
	if err := os.WriteFile(audio, []byte("fake audio"), 0644); err != nil {
		t.Fatal(err)
	}

	proc := NewSTTProcessor(nil)
	out, err := proc.Process(context.Background(), audio)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if out != filepath.Join(dir, "memo.txt") {
		t.Errorf("output = %q, want sibling .txt", out)
	}

	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "memo.m4a") {
		t.Errorf("transcript missing source name:\n%s", content)
	}
}

func TestSTTProcessorDeclines(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("already text"), 0644); err != nil {
		t.Fatal(err)
	}

	proc := NewSTTProcessor(nil)

	out, err := proc.Process(context.Background(), text)
	if err != nil || out != "" {
		t.Errorf("non-audio input: got (%q, %v), want decline", out, err)
	}

	out, err = proc.Process(context.Background(), filepath.Join(dir, "gone.m4a"))
	if err != nil || out != "" {
		t.Errorf("missing file: got (%q, %v), want decline", out, err)
	}
}

func TestSTTProcessorAcceptsAllAudioExtensions(t *testing.T) {
	dir := t.TempDir()
	proc := NewSTTProcessor(nil)

	for ext := range audioExtensions {
		audio := filepath.Join(dir, "clip"+ext)
		if err := os.WriteFile(audio, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		out, err := proc.Process(context.Background(), audio)
		if err != nil || out == "" {
			t.Errorf("extension %s: got (%q, %v), want transcript", ext, out, err)
		}
		os.Remove(out)
	}
}
