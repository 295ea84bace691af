package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/asynkron/srcpatch/pkg/patch"
)

type reporter struct {
	title   lipgloss.Style
	label   lipgloss.Style
	failure lipgloss.Style
	panel   lipgloss.Style
}

func newReporter(w io.Writer) *reporter {
	r := lipgloss.NewRenderer(w)
	return &reporter{
		title: r.NewStyle().Bold(true),
		label: r.NewStyle().Foreground(lipgloss.Color("245")),
		failure: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("1")),
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			PaddingLeft(1).
			PaddingRight(1),
	}
}

// renderFailure prints the error that aborted a batch. Tool output is shown in a
// bordered panel when the tool ran and failed.
func (r *reporter) renderFailure(w io.Writer, err error) {
	var appErr *patch.ApplicationError
	if !errors.As(err, &appErr) || appErr.Err != nil {
		fmt.Fprintln(w, r.failure.Render("error: "+err.Error()))
		return
	}

	fmt.Fprintln(w, r.failure.Render(fmt.Sprintf("failed to apply %s (exit status %d)", appErr.PatchFile, appErr.ExitCode)))

	var body strings.Builder
	for _, section := range []struct{ name, text string }{
		{"stdout", appErr.Stdout},
		{"stderr", appErr.Stderr},
	} {
		text := strings.TrimRight(section.text, "\n")
		if text == "" {
			continue
		}
		if body.Len() > 0 {
			body.WriteString("\n\n")
		}
		body.WriteString(r.label.Render(section.name))
		body.WriteString("\n")
		body.WriteString(text)
	}
	if body.Len() > 0 {
		fmt.Fprintln(w, r.panel.Render(body.String()))
	}
}

func (r *reporter) renderStats(w io.Writer, snap patch.MetricsSnapshot) {
	rows := [][2]string{
		{"patches", fmt.Sprintf("%d (%d ok, %d failed)", snap.Patches.Total, snap.Patches.Success, snap.Patches.Failed)},
		{"fallbacks", fmt.Sprintf("%d", snap.Fallbacks)},
	}
	if snap.Patches.Total > 0 {
		rows = append(rows,
			[2]string{"avg time", snap.Patches.AverageTime().String()},
			[2]string{"max time", snap.Patches.MaxTime.String()},
		)
	}

	levels := make([]int, 0, len(snap.StripLevels))
	for level := range snap.StripLevels {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	for _, level := range levels {
		rows = append(rows, [2]string{fmt.Sprintf("strip -p%d", level), fmt.Sprintf("%d", snap.StripLevels[level])})
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, r.title.Render("batch stats"))
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s %s", r.label.Render(fmt.Sprintf("%-10s", row[0])), row[1]))
	}
	fmt.Fprintln(w, r.panel.Render(strings.Join(lines, "\n")))
}
