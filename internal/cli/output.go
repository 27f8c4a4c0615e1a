package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/docanalyze/internal/extract"
	"github.com/dgallion1/docanalyze/internal/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

func field(label string, value any) string {
	return fmt.Sprintf("%s %v", dimStyle.Render(label), value)
}

// renderPlan prints the plan summary box and one row per piece.
func renderPlan(w io.Writer, p *pipeline.Plan) {
	mode := successStyle.Render("single request")
	if p.Chunked {
		mode = warnStyle.Render(fmt.Sprintf("%d pieces", len(p.Pieces)))
	}
	lines := []string{
		titleStyle.Render("Plan"),
		field("Model:", p.Task.Model),
		field("Encoding:", p.Encoding),
		field("Context window:", p.Window),
		field("Budget:", p.Budget),
		field("Content tokens:", p.ContentTokens),
		field("Mode:", mode),
	}
	if p.Chunked {
		lines = append(lines, field("Piece budget:", p.PieceBudget))
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))

	for _, pc := range p.Pieces {
		row := fmt.Sprintf("%4d  %7d tokens  bytes %d-%d", pc.Index+1, pc.Tokens, pc.Start, pc.End)
		if pc.Overflow {
			row += "  " + warnStyle.Render("overflow")
		}
		fmt.Fprintln(w, row)
	}
}

// renderSaved reports where a result was written.
func renderSaved(w io.Writer, path string, res *extract.Result) {
	lines := []string{
		successStyle.Render("Saved ") + path,
		field("Format:", res.Format),
	}
	if info := res.ProcessingInfo; info != nil {
		lines = append(lines, field("Pieces:", info.TotalPieces))
		if len(info.FallbackPieces) > 0 {
			lines = append(lines, warnStyle.Render(fmt.Sprintf("Unparsed pieces: %v", info.FallbackPieces)))
		}
		if len(info.OverflowPieces) > 0 {
			lines = append(lines, warnStyle.Render(fmt.Sprintf("Oversized pieces: %v", info.OverflowPieces)))
		}
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}
