package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jjurach/pigeon/internal/improve"
	"github.com/jjurach/pigeon/internal/source"
)

const professionalizePrompt = `You are a professional text formatter. Your job is to improve transcriptions and notes into well-formatted specifications.

Your improvements should:
1. Infer paragraph breaks and logical structure
2. Add bullet points where appropriate
3. Remove stutters, filler words ("um", "uh", "like"), and repetition
4. Improve clarity and grammar while preserving intent and voice
5. Add professional headers (Project, Date, Type)
6. Format as a specification that could be filed as a bead issue

Keep the technical content and intent exactly - just clean up the presentation.`

// ProfessionalizeProcessor turns raw transcript text into a spec document.
// With an Improver it rewrites via the LLM; without one, or on call failure,
// it applies a deterministic cleanup instead.
type ProfessionalizeProcessor struct {
	improver improve.Improver
	logger   *slog.Logger
	now      func() time.Time
}

func NewProfessionalizeProcessor(improver improve.Improver, logger *slog.Logger) *ProfessionalizeProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfessionalizeProcessor{
		improver: improver,
		logger:   logger.With("processor", "professionalize"),
		now:      time.Now,
	}
}

func (p *ProfessionalizeProcessor) Name() string { return "professionalize" }

func (p *ProfessionalizeProcessor) Process(ctx context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		p.logger.Error("File not found", "path", path)
		return "", nil
	}
	if strings.TrimSpace(string(raw)) == "" {
		p.logger.Warn("Empty file", "path", path)
		return "", nil
	}

	text := p.improveText(ctx, string(raw))

	stem := strings.TrimSuffix(path, filepath.Ext(path))
	outPath, err := source.UniquePath(stem + "-spec.md")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(outPath, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("write spec: %w", err)
	}

	p.logger.Info("Professionalized", "output", filepath.Base(outPath))
	return outPath, nil
}

func (p *ProfessionalizeProcessor) improveText(ctx context.Context, raw string) string {
	if p.improver != nil {
		improved, err := p.improver.Improve(ctx, professionalizePrompt, raw)
		if err == nil {
			return improved
		}
		p.logger.Warn("Improvement failed, using basic cleanup", "provider", p.improver.Name(), "error", err)
	}
	return p.basicCleanup(raw)
}

// basicCleanup is the LLM-free transform: a heading, the date, and the
// original paragraphs trimmed, with bracket-prefixed provenance lines
// dropped.
func (p *ProfessionalizeProcessor) basicCleanup(raw string) string {
	lines := []string{
		"# Specification",
		"**Date:** " + p.now().Format("2006-01-02"),
		"",
		"## Content",
		"",
	}

	for _, para := range strings.Split(raw, "\n\n") {
		cleaned := strings.TrimSpace(para)
		if cleaned == "" || strings.HasPrefix(cleaned, "[") {
			continue
		}
		lines = append(lines, cleaned, "")
	}

	return strings.Join(lines, "\n")
}
