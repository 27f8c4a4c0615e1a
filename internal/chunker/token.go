package chunker

import (
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// Counter counts tokens in a string. Implementations must be deterministic.
type Counter interface {
	Count(text string) int
}

// CounterFunc adapts a plain function to Counter.
type CounterFunc func(string) int

func (f CounterFunc) Count(text string) int { return f(text) }

// Meter counts tokens with the tiktoken encoding of a model.
// A Meter without an encoder falls back to EstimateTokens.
type Meter struct {
	model    string
	encoding string
	tke      *tiktoken.Tiktoken
	fn       CounterFunc
}

// NewMeter loads the encoding for model, falling back to cl100k_base for
// models tiktoken does not know.
func NewMeter(model string) (*Meter, error) {
	tke, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return &Meter{model: model, encoding: encodingName(model), tke: tke}, nil
	}
	tke, err = tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", defaultEncoding, err)
	}
	return &Meter{model: model, encoding: defaultEncoding, tke: tke}, nil
}

// NewCustomMeter wraps a counting function under the given encoding name.
func NewCustomMeter(encoding string, fn CounterFunc) *Meter {
	return &Meter{encoding: encoding, fn: fn}
}

// heuristicMeter returns a Meter that only estimates.
func heuristicMeter(model string) *Meter {
	return &Meter{model: model, encoding: "heuristic"}
}

// Count returns the token count of text.
func (m *Meter) Count(text string) int {
	if text == "" {
		return 0
	}
	if m.fn != nil {
		return m.fn(text)
	}
	if m.tke == nil {
		return EstimateTokens(text)
	}
	return len(m.tke.Encode(text, nil, nil))
}

// Encoding names the encoding in use, or "heuristic".
func (m *Meter) Encoding() string { return m.encoding }

func encodingName(model string) string {
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return "o200k_base"
	case strings.HasPrefix(model, "text-davinci"), strings.HasPrefix(model, "code-"):
		return "p50k_base"
	default:
		return defaultEncoding
	}
}

// MeterCache keeps loaded meters per model. Loading a BPE rank file is slow,
// so orchestrator runs share meters through this cache.
type MeterCache struct {
	cache *lru.Cache[string, *Meter]
	load  func(model string) (*Meter, error)
}

// NewMeterCache returns a cache holding up to size meters.
func NewMeterCache(size int) *MeterCache {
	if size <= 0 {
		size = 16
	}
	c, _ := lru.New[string, *Meter](size)
	return &MeterCache{cache: c, load: NewMeter}
}

// ForModel returns the meter for model, loading it on first use. When no
// encoding can be loaded the heuristic meter is cached instead.
func (c *MeterCache) ForModel(model string) *Meter {
	if m, ok := c.cache.Get(model); ok {
		return m
	}
	m, err := c.load(model)
	if err != nil {
		slog.Warn("tokenizer unavailable, using estimate", "model", model, "error", err)
		m = heuristicMeter(model)
	}
	c.cache.Add(model, m)
	return m
}

// Add stores m for model, replacing any cached meter.
func (c *MeterCache) Add(model string, m *Meter) {
	c.cache.Add(model, m)
}

// Len reports how many meters are cached.
func (c *MeterCache) Len() int { return c.cache.Len() }

// EstimateTokens gives a rough token count from the word count.
// Used only when no tokenizer encoding is available.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 0.75 words per token for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
