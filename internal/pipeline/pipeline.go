// Package pipeline runs inbox files through an ordered chain of processors,
// each one transforming a file on disk and handing the result to the next.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"
)

// Processor is one pipeline stage. Process returns the path of the file it
// produced. An empty path with a nil error is a decline: the processor does
// not apply to this input and the pipeline halts without treating it as a
// failure.
type Processor interface {
	Name() string
	Process(ctx context.Context, path string) (string, error)
}

// StageResult records one processor invocation within a run.
type StageResult struct {
	Processor string `json:"processor"`
	Status    string `json:"status"`
	Input     string `json:"input"`
	Output    string `json:"output,omitempty"`
}

// HistoryEntry records one complete pipeline run. Status is one of
// "success", "failed" (a stage declined), or "error".
type HistoryEntry struct {
	ID        string        `json:"id"`
	Input     string        `json:"input"`
	Stages    []StageResult `json:"stages"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type Pipeline struct {
	processors []Processor
	logger     *slog.Logger

	mu      sync.Mutex
	history []HistoryEntry
}

func New(processors []Processor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		processors: processors,
		logger:     logger.With("component", "pipeline"),
	}
}

// Process runs the file through every processor in order. The returned path
// is the final output, or empty when a stage declined. Exactly one history
// entry is appended per call, whatever happens.
func (p *Pipeline) Process(ctx context.Context, path string) (result string, err error) {
	entry := HistoryEntry{
		ID:        ulid.Make().String(),
		Input:     path,
		Status:    "pending",
		Timestamp: time.Now(),
	}
	defer func() {
		if r := recover(); r != nil {
			entry.Status = "error"
			entry.Error = fmt.Sprintf("panic: %v", r)
			result = ""
			err = fmt.Errorf("pipeline panic: %v", r)
			p.logger.Error("Processor panicked", "input", path, "panic", r)
		}
		p.appendHistory(entry)
	}()

	if _, statErr := os.Stat(path); statErr != nil {
		entry.Status = "error"
		entry.Error = "input file not found: " + path
		return "", fmt.Errorf("input file not found: %s", path)
	}

	current := path
	for _, proc := range p.processors {
		if ctxErr := ctx.Err(); ctxErr != nil {
			entry.Status = "error"
			entry.Error = ctxErr.Error()
			return "", ctxErr
		}

		stage := StageResult{Processor: proc.Name(), Input: current}

		output, procErr := proc.Process(ctx, current)
		if procErr != nil {
			stage.Status = "error"
			entry.Stages = append(entry.Stages, stage)
			entry.Status = "error"
			entry.Error = procErr.Error()
			p.logger.Error("Processor failed", "processor", proc.Name(), "input", current, "error", procErr)
			return "", procErr
		}
		if output == "" {
			stage.Status = "declined"
			entry.Stages = append(entry.Stages, stage)
			entry.Status = "failed"
			p.logger.Debug("Processor declined", "processor", proc.Name(), "input", current)
			return "", nil
		}

		stage.Status = "success"
		stage.Output = output
		entry.Stages = append(entry.Stages, stage)
		p.logger.Info("Processor completed", "processor", proc.Name(), "output", output)
		current = output
	}

	entry.Status = "success"
	return current, nil
}

func (p *Pipeline) appendHistory(entry HistoryEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, entry)
}

// History returns a copy of all recorded runs in append order.
func (p *Pipeline) History() []HistoryEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]HistoryEntry, len(p.history))
	copy(out, p.history)
	return out
}

// SaveHistory writes the run history as a JSON snapshot via temp + rename.
func (p *Pipeline) SaveHistory(path string) error {
	p.mu.Lock()
	data, err := json.MarshalIndent(p.history, "", "  ")
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
