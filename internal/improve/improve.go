// Package improve provides the text-improvement capability behind the
// professionalize pipeline stage. Each provider wraps one LLM backend with a
// single Improve call; the stage itself decides when and on what text to use
// it.
package improve

import (
	"context"
	"fmt"

	"github.com/jjurach/pigeon/internal/config"
)

// Improver rewrites raw transcript text according to a system prompt.
type Improver interface {
	Name() string
	Improve(ctx context.Context, systemPrompt, text string) (string, error)
}

// New builds the provider selected in config, or nil when improvement is
// disabled. A nil Improver means the fallback cleanup is used instead.
func New(cfg config.ImproveConfig) (Improver, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model), nil
	case "anthropic":
		return NewAnthropic(cfg.APIKey, cfg.Model), nil
	case "gemini":
		return NewGemini(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown improve provider %q", cfg.Provider)
	}
}
