package chunker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docanalyze/internal/apperr"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"single word", "hello", 1},
		{"three words", "one two three", 3},
		{"hundred words", words(100), 133},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}

func TestMeter_Tiktoken(t *testing.T) {
	m, err := NewMeter("gpt-4")
	if err != nil {
		t.Skipf("tiktoken ranks unavailable: %v", err)
	}
	assert.Equal(t, "cl100k_base", m.Encoding())
	assert.Equal(t, 2, m.Count("hello world"))
	assert.Equal(t, 0, m.Count(""))
	assert.Equal(t, m.Count("same input"), m.Count("same input"))
}

func TestMeter_UnknownModelFallsBack(t *testing.T) {
	m, err := NewMeter("acme-large-2")
	if err != nil {
		t.Skipf("tiktoken ranks unavailable: %v", err)
	}
	assert.Equal(t, "cl100k_base", m.Encoding())
	assert.Equal(t, 2, m.Count("hello world"))
}

func TestMeterCache_CachesAndFallsBack(t *testing.T) {
	loads := 0
	c := NewMeterCache(2)
	c.load = func(model string) (*Meter, error) {
		loads++
		if model == "broken" {
			return nil, errors.New("no ranks")
		}
		return heuristicMeter(model), nil
	}

	a := c.ForModel("gpt-4o")
	b := c.ForModel("gpt-4o")
	assert.Same(t, a, b)
	assert.Equal(t, 1, loads)

	broken := c.ForModel("broken")
	require.NotNil(t, broken)
	assert.Equal(t, "heuristic", broken.Encoding())
	assert.Equal(t, EstimateTokens("one two three"), broken.Count("one two three"))
	assert.Equal(t, 2, c.Len())

	c.ForModel("third")
	assert.Equal(t, 2, c.Len())
}

func TestContextWindow(t *testing.T) {
	tests := map[string]int{
		"gpt-4o-mini":       128000,
		"GPT-4o":            128000,
		"gpt-4":             8192,
		"gpt-4-32k-0613":    32768,
		"gpt-3.5-turbo":     16385,
		"claude-sonnet-4-5": 200000,
		"mystery-model":     DefaultContextWindow,
	}
	for model, want := range tests {
		assert.Equal(t, want, ContextWindow(model), model)
	}
}

func TestPlanner_Plan(t *testing.T) {
	p := Planner{Counter: wordCounter}

	budget, err := p.Plan("gpt-4", "a b c", 4000)
	require.NoError(t, err)
	// floor(8192 * 0.8) = 6553
	assert.Equal(t, 6553-3-4000, budget)

	t.Run("reserve larger than usable window", func(t *testing.T) {
		_, err := p.Plan("gpt-4", "", 7000)
		require.Error(t, err)
		assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
	})

	t.Run("instructions exhaust budget", func(t *testing.T) {
		_, err := p.Plan("gpt-4", words(3000), 4000)
		require.Error(t, err)
		assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
	})

	t.Run("negative reserve", func(t *testing.T) {
		_, err := p.Plan("gpt-4", "", -1)
		require.Error(t, err)
	})
}

func TestMeterCache_AddOverridesLoader(t *testing.T) {
	c := NewMeterCache(4)
	c.load = func(string) (*Meter, error) {
		t.Fatal("loader must not be called for a stored meter")
		return nil, nil
	}
	c.Add("custom", NewCustomMeter("words", wordCounter))

	m := c.ForModel("custom")
	assert.Equal(t, "words", m.Encoding())
	assert.Equal(t, 3, m.Count("a b c"))
}
