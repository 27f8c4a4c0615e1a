package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider names accepted by NewCompleter.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ProviderConfig selects and configures a completion provider.
type ProviderConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// NewCompleter builds the completer for pc.Provider. The returned close
// function releases idle connections.
func NewCompleter(pc ProviderConfig) (Completer, func(), error) {
	switch strings.ToLower(pc.Provider) {
	case ProviderAnthropic:
		c := NewClaudeClient(pc.APIKey, WithBaseURL(pc.BaseURL), WithTimeout(pc.Timeout))
		return c, c.Close, nil
	case ProviderOpenAI:
		c, err := NewOpenAIClient(pc.APIKey, pc.Model, pc.BaseURL)
		if err != nil {
			return nil, nil, err
		}
		return timeoutCompleter(c, pc.Timeout), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", pc.Provider)
	}
}

// timeoutCompleter bounds every call to c by d.
func timeoutCompleter(c Completer, d time.Duration) Completer {
	if d <= 0 {
		return c
	}
	return CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return c.Complete(ctx, req)
	})
}
