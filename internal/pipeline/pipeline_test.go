package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

type fakeProcessor struct {
	name    string
	output  string
	err     error
	panics  bool
	calls   int
	lastIn  string
}

func (f *fakeProcessor) Name() string { return f.name }

func (f *fakeProcessor) Process(ctx context.Context, path string) (string, error) {
	f.calls++
	f.lastIn = path
	if f.panics {
		panic("processor exploded")
	}
	return f.output, f.err
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPipelineChainsProcessors(t *testing.T) {
	input := writeInput(t)
	first := &fakeProcessor{name: "first", output: "/tmp/mid.txt"}
	second := &fakeProcessor{name: "second", output: "/tmp/final.md"}

	p := New([]Processor{first, second}, nil)
	got, err := p.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if got != "/tmp/final.md" {
		t.Errorf("result = %q, want final output", got)
	}
	if second.lastIn != "/tmp/mid.txt" {
		t.Errorf("second processor input = %q, want first's output", second.lastIn)
	}

	history := p.History()
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	entry := history[0]
	if entry.Status != "success" {
		t.Errorf("status = %q, want success", entry.Status)
	}
	if len(entry.Stages) != 2 {
		t.Errorf("stages = %d, want 2", len(entry.Stages))
	}
	if entry.ID == "" {
		t.Error("entry ID is empty")
	}
}

func TestPipelineDeclineHalts(t *testing.T) {
	input := writeInput(t)
	decliner := &fakeProcessor{name: "decliner", output: ""}
	after := &fakeProcessor{name: "after", output: "/tmp/never.md"}

	p := New([]Processor{decliner, after}, nil)
	got, err := p.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if got != "" {
		t.Errorf("result = %q, want empty on decline", got)
	}
	if after.calls != 0 {
		t.Error("processor after a decline was still invoked")
	}
	if status := p.History()[0].Status; status != "failed" {
		t.Errorf("status = %q, want failed", status)
	}
}

func TestPipelineProcessorError(t *testing.T) {
	input := writeInput(t)
	failing := &fakeProcessor{name: "failing", err: fmt.Errorf("backend down")}

	p := New([]Processor{failing}, nil)
	if _, err := p.Process(context.Background(), input); err == nil {
		t.Fatal("Process() = nil error, want failure")
	}
	entry := p.History()[0]
	if entry.Status != "error" {
		t.Errorf("status = %q, want error", entry.Status)
	}
	if entry.Error == "" {
		t.Error("entry error message is empty")
	}
}

func TestPipelinePanicRecovered(t *testing.T) {
	input := writeInput(t)
	p := New([]Processor{&fakeProcessor{name: "bomb", panics: true}}, nil)

	got, err := p.Process(context.Background(), input)
	if err == nil {
		t.Fatal("Process() = nil error after panic")
	}
	if got != "" {
		t.Errorf("result = %q, want empty after panic", got)
	}
	if status := p.History()[0].Status; status != "error" {
		t.Errorf("status = %q, want error", status)
	}
}

func TestPipelineMissingInput(t *testing.T) {
	proc := &fakeProcessor{name: "untouched", output: "x"}
	p := New([]Processor{proc}, nil)

	if _, err := p.Process(context.Background(), "/nonexistent/file.txt"); err == nil {
		t.Fatal("Process() = nil error for missing input")
	}
	if proc.calls != 0 {
		t.Error("processor invoked despite missing input")
	}
	if len(p.History()) != 1 {
		t.Errorf("history length = %d, want 1 even on fail-fast", len(p.History()))
	}
}

func TestPipelineSaveHistory(t *testing.T) {
	input := writeInput(t)
	p := New([]Processor{&fakeProcessor{name: "ok", output: "/tmp/out.md"}}, nil)
	if _, err := p.Process(context.Background(), input); err != nil {
		t.Fatal(err)
	}

	historyPath := filepath.Join(t.TempDir(), "history.json")
	if err := p.SaveHistory(historyPath); err != nil {
		t.Fatalf("SaveHistory() error: %v", err)
	}
	data, err := os.ReadFile(historyPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("history file is empty")
	}
}
