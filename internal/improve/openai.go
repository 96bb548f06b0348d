package improve

import (
	"context"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
)

type OpenAIImprover struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, model string) *OpenAIImprover {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIImprover{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (o *OpenAIImprover) Name() string {
	return "openai"
}

func (o *OpenAIImprover) Improve(ctx context.Context, systemPrompt, text string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
