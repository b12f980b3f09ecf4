package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm shows a warning box and asks a y/N question. Anything other than
// "y" or "yes" (case-insensitive), including EOF, is a no.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string, question string) bool {
	width := GetTerminalWidth()

	lines := []string{
		"",
		WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)),
		"",
	}
	for _, warning := range warnings {
		lines = append(lines, ResultValueStyle.Render("   • "+warning))
	}
	lines = append(lines, "")

	_, _ = fmt.Fprintln(out, boxStyle(width, WarningColor).Render(strings.Join(lines, "\n")))

	prompt := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	_, _ = fmt.Fprint(out, prompt.Render(question+" [y/N]: "))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}
