package ui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header is a command banner with title, command line and parameters.
type Header struct {
	Title   string            // e.g., "DEVICE SCAN"
	Command string            // e.g., "devfinder scan --no-mesh"
	Params  map[string]string // e.g., {"Phases": "hostname, subnet"}
	Width   int
}

// NewHeader creates a header sized to the terminal
func NewHeader(title, command string, params map[string]string) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header. Parameters are listed in key order.
func (h *Header) Render() string {
	width := clampWidth(h.Width)

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	commandLine := HeaderCommandStyle.Render(h.Command)
	topSection := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	if len(h.Params) == 0 {
		return HeaderBorderStyle(width).Render(topSection)
	}

	keys := make([]string, 0, len(h.Params))
	for k := range h.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	paramLines := make([]string, 0, len(keys))
	for _, key := range keys {
		keyStyled := HeaderParamKeyStyle.Render(key + ":")
		valueStyled := HeaderParamValueStyle.Render(h.Params[key])
		paramLines = append(paramLines, keyStyled+" "+valueStyled)
	}

	divider := RenderHorizontalDivider(max(width-6, 10), "─")
	content := lipgloss.JoinVertical(lipgloss.Left, topSection, divider, strings.Join(paramLines, "\n"))
	return HeaderBorderStyle(width).Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}
