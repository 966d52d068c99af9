package openai

import (
	"context"
	"fmt"
	"lead-engine/internal/observability"

	"github.com/openai/openai-go"
	openaiOption "github.com/openai/openai-go/option"
)

const defaultModel = openai.ChatModelGPT4oMini

// Client is a thin wrapper over the OpenAI chat completions API.
type Client struct {
	client openai.Client
	logger *observability.Logger
}

func NewClient(apiKey string, logger *observability.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	client := openai.NewClient(
		openaiOption.WithAPIKey(apiKey),
	)
	return &Client{client: client, logger: logger}, nil
}

// Complete sends a system+user prompt pair and returns the raw assistant
// text. The caller owns parsing and validation of the response.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: defaultModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	})
	if err != nil {
		c.logger.Error(ctx, "chat completion request failed", err)
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
