package chunker

import (
	"math"
	"strings"

	"github.com/dgallion1/docanalyze/internal/apperr"
)

// SafetyFraction is the share of a context window the planner will fill.
const SafetyFraction = 0.8

// DefaultContextWindow applies to models missing from the window table.
const DefaultContextWindow = 8192

// contextWindows maps model family prefixes to context window sizes.
// Longer prefixes are listed first so the most specific family wins.
var contextWindows = []struct {
	prefix string
	window int
}{
	{"gpt-4.1", 1047576},
	{"gpt-4o", 128000},
	{"gpt-4-turbo", 128000},
	{"gpt-4-32k", 32768},
	{"gpt-4", 8192},
	{"gpt-3.5-turbo", 16385},
	{"o1", 200000},
	{"o3", 200000},
	{"o4", 200000},
	{"claude-", 200000},
}

// ContextWindow returns the context window for model.
func ContextWindow(model string) int {
	m := strings.ToLower(model)
	for _, e := range contextWindows {
		if strings.HasPrefix(m, e.prefix) {
			return e.window
		}
	}
	return DefaultContextWindow
}

// Planner derives input token budgets.
type Planner struct {
	Counter Counter
}

// Plan returns the input token budget for one request to model:
// floor(window * SafetyFraction) minus the instruction tokens minus reserve.
func (p Planner) Plan(model, instruction string, reserve int) (int, error) {
	if reserve < 0 {
		return 0, apperr.Configf("response reserve %d is negative", reserve)
	}
	window := ContextWindow(model)
	usable := int(math.Floor(float64(window) * SafetyFraction))
	if reserve > usable {
		return 0, apperr.Configf("response reserve %d exceeds %d usable tokens of %s window %d", reserve, usable, model, window)
	}
	budget := usable - p.Counter.Count(instruction) - reserve
	if budget <= 0 {
		return 0, apperr.Configf("budget for %s is %d after instructions and %d reserved response tokens", model, budget, reserve)
	}
	return budget, nil
}
