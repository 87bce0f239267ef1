package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/apresai/hydrator/internal/index"
	"github.com/apresai/hydrator/internal/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04B575")).
		Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)
)

// renderReport prints one line per outcome followed by a summary.
func renderReport(w io.Writer, title string, outcomes []pipeline.Outcome) {
	fmt.Fprintln(w, titleStyle.Render(title))
	for _, o := range outcomes {
		if o.OK() {
			detail := o.Key
			if o.RecordID != "" {
				detail += "  record " + o.RecordID
			}
			fmt.Fprintf(w, "  %s %s\n    %s\n", okStyle.Render("✓"), o.Locator, dimStyle.Render(detail))
			continue
		}
		reason := string(o.State)
		if o.Err != nil && o.Err.Err != nil {
			reason = fmt.Sprintf("%s: %v", o.Err.Kind, o.Err.Err)
		}
		fmt.Fprintf(w, "  %s %s\n    %s\n", failStyle.Render("✗"), o.Locator, failStyle.Render(reason))
	}

	ok, failed := pipeline.Summarize(outcomes)
	summary := fmt.Sprintf("%d succeeded, %d failed", ok, failed)
	if failed > 0 {
		summary = failStyle.Render(summary)
	} else {
		summary = okStyle.Render(summary)
	}
	fmt.Fprintf(w, "\n  %s\n", summary)
}

func renderHits(w io.Writer, hits []index.Hit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no matches"))
		return
	}
	for _, h := range hits {
		fmt.Fprintf(w, "%s\n  %s\n", titleStyle.Render(h.Source), h.Snippet)
	}
}
