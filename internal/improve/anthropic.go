package improve

import (
	"context"
	"fmt"
	"os"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicImprover struct {
	client anthropic.Client
	model  string
}

func NewAnthropic(apiKey, model string) *AnthropicImprover {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicImprover{client: client, model: model}
}

func (a *AnthropicImprover) Name() string {
	return "anthropic"
}

func (a *AnthropicImprover) Improve(ctx context.Context, systemPrompt, text string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var out string
	for _, block := range msg.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			out += b.Text
		}
	}
	if out == "" {
		return "", fmt.Errorf("anthropic returned no text content")
	}
	return out, nil
}
