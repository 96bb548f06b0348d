package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeImprover struct {
	result string
	err    error
	prompt string
}

func (f *fakeImprover) Name() string { return "fake" }

func (f *fakeImprover) Improve(ctx context.Context, systemPrompt, text string) (string, error) {
	f.prompt = systemPrompt
	return f.result, f.err
}

func writeTranscript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memo.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProfessionalizeWithImprover(t *testing.T) {
	input := writeTranscript(t, "um so we need uh a widget")
	improver := &fakeImprover{result: "# Widget Spec\n\nWe need a widget."}

	proc := NewProfessionalizeProcessor(improver, nil)
	out, err := proc.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if !strings.HasSuffix(out, "memo-spec.md") {
		t.Errorf("output = %q, want -spec.md suffix", out)
	}

	content, _ := os.ReadFile(out)
	if string(content) != improver.result {
		t.Errorf("content = %q, want improver output", content)
	}
	if improver.prompt == "" {
		t.Error("improver called without a system prompt")
	}
}

func TestProfessionalizeFallbackOnImproverError(t *testing.T) {
	input := writeTranscript(t, "first paragraph\n\nsecond paragraph")
	improver := &fakeImprover{err: fmt.Errorf("rate limited")}

	proc := NewProfessionalizeProcessor(improver, nil)
	out, err := proc.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	content, _ := os.ReadFile(out)
	if !strings.Contains(string(content), "# Specification") {
		t.Errorf("fallback output missing heading:\n%s", content)
	}
	if !strings.Contains(string(content), "first paragraph") {
		t.Errorf("fallback output missing paragraph:\n%s", content)
	}
}

func TestProfessionalizeBasicCleanup(t *testing.T) {
	proc := NewProfessionalizeProcessor(nil, nil)
	proc.now = func() time.Time { return time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC) }

	raw := "[Transcription of memo.m4a]\n\nkeep this paragraph\n\n  \n\nand this one"
	got := proc.basicCleanup(raw)

	if !strings.Contains(got, "**Date:** 2026-01-15") {
		t.Errorf("missing date header:\n%s", got)
	}
	if strings.Contains(got, "[Transcription") {
		t.Errorf("bracket-prefixed paragraph not dropped:\n%s", got)
	}
	if !strings.Contains(got, "keep this paragraph") || !strings.Contains(got, "and this one") {
		t.Errorf("content paragraphs missing:\n%s", got)
	}
}

func TestProfessionalizeDeclines(t *testing.T) {
	proc := NewProfessionalizeProcessor(nil, nil)

	out, err := proc.Process(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	if err != nil || out != "" {
		t.Errorf("missing input: got (%q, %v), want decline", out, err)
	}

	empty := writeTranscript(t, "   \n\n  ")
	out, err = proc.Process(context.Background(), empty)
	if err != nil || out != "" {
		t.Errorf("empty input: got (%q, %v), want decline", out, err)
	}
}

func TestProfessionalizeCollisionSuffix(t *testing.T) {
	input := writeTranscript(t, "some content")
	existing := strings.TrimSuffix(input, ".txt") + "-spec.md"
	if err := os.WriteFile(existing, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	proc := NewProfessionalizeProcessor(nil, nil)
	out, err := proc.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if out == existing {
		t.Error("existing spec file was overwritten")
	}
	if !strings.HasSuffix(out, "_1.md") {
		t.Errorf("output = %q, want numeric collision suffix", out)
	}
}
