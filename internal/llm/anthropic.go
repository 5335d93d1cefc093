package llm

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/paperdigest/paper-service/internal/config"
)

// anthropicClient implements Client using the official anthropic-sdk-go.
// The Messages API has no JSON response-format flag; callers relying on
// JSONMode get JSON through the prompt contract and ParseJSON.
type anthropicClient struct {
	client sdk.Client
	model  string
}

func newAnthropicClient(cfg config.LLMConfig) *anthropicClient {
	return &anthropicClient{
		client: sdk.NewClient(
			option.WithAPIKey(cfg.Key),
		),
		model: cfg.Model,
	}
}

func (c *anthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: sdk.Float(req.Temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "llm: anthropic create message")
	}
	if len(msg.Content) == 0 {
		return "", eris.New("llm: anthropic response has no content")
	}

	text := msg.Content[0].Text
	zap.L().Info("anthropic completion",
		zap.String("model", model),
		zap.Int("response_chars", len(text)),
	)
	return text, nil
}
