package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// audioExtensions are the inputs the STT stage accepts.
var audioExtensions = map[string]struct{}{
	".m4a":  {},
	".mp3":  {},
	".wav":  {},
	".acc":  {},
	".ogg":  {},
	".flac": {},
}

// STTProcessor converts audio recordings to transcript text files. The
// transcript body is a placeholder until a speech-to-text backend is wired
// in; the interface and file handling are final.
type STTProcessor struct {
	logger *slog.Logger
}

func NewSTTProcessor(logger *slog.Logger) *STTProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &STTProcessor{logger: logger.With("processor", "stt")}
}

func (s *STTProcessor) Name() string { return "stt" }

func (s *STTProcessor) Process(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := audioExtensions[ext]; !ok {
		return "", nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}

	stem := strings.TrimSuffix(path, filepath.Ext(path))
	outPath := stem + ".txt"

	content := fmt.Sprintf(`[Transcription of %s]

This is a placeholder transcription. Speech-to-text processing
has not been performed on this recording.

Source: %s
Transcribed: %s
`, filepath.Base(path), filepath.Base(path), time.Now().Format(time.RFC3339))

	if err := os.WriteFile(outPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	s.logger.Info("Created transcript", "input", filepath.Base(path), "output", filepath.Base(outPath))
	return outPath, nil
}
