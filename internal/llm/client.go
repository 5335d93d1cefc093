// Package llm provides a uniform text-completion interface over multiple
// backend providers.
package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/paperdigest/paper-service/internal/config"
)

// DefaultMaxTokens is used when a request does not set MaxTokens.
const DefaultMaxTokens = 2048

// Request is a provider-independent completion request.
type Request struct {
	Prompt      string
	System      string
	Model       string // overrides the configured default when set
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Client sends completion requests to one configured provider.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ConfigError indicates the gateway cannot operate with the given
// configuration (missing credential, unknown provider). It is fatal, not
// retryable.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

// NewConfigError creates a ConfigError with the given message.
func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg: msg}
}

// IsConfigError reports whether err is a gateway configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return eris.As(err, &ce)
}

// New creates a Client for the configured provider. Real providers require
// a credential; the fake provider never does.
func New(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.Key == "" {
			return nil, NewConfigError("llm: api key is not set for provider openai")
		}
		return newOpenAIClient(cfg), nil
	case "anthropic":
		if cfg.Key == "" {
			return nil, NewConfigError("llm: api key is not set for provider anthropic")
		}
		return newAnthropicClient(cfg), nil
	case "fake":
		return NewFake(), nil
	default:
		return nil, NewConfigError("llm: unsupported provider: " + cfg.Provider)
	}
}
