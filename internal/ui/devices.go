package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/r58studio/devfinder/internal/device"
)

// PathLabel describes how a descriptor is reached
func PathLabel(d device.Descriptor) string {
	switch {
	case d.TransportClass() == device.ClassLocal:
		return "local"
	case d.Quality.IsP2P:
		return "mesh (direct)"
	default:
		return "mesh (relayed)"
	}
}

func pathStyle(d device.Descriptor) lipgloss.Style {
	switch {
	case d.TransportClass() == device.ClassLocal, d.Quality.IsP2P:
		return lipgloss.NewStyle().Foreground(SuccessColor)
	default:
		return lipgloss.NewStyle().Foreground(WarningColor)
	}
}

// RenderDeviceCard renders one descriptor as a bordered card
func RenderDeviceCard(d device.Descriptor, width int) string {
	width = clampWidth(width)

	row := func(key, value string) string {
		return ResultKeyStyle.Render(key+":") + " " + ResultValueStyle.Render(value)
	}

	lines := []string{
		DeviceNameStyle.Render(d.Name),
		"",
		row("ID", d.ID),
		ResultKeyStyle.Render("URL:") + " " + DeviceURLStyle.Render(d.Address.URL),
	}
	if d.HasFallback() {
		lines = append(lines, ResultKeyStyle.Render("Fallback:")+" "+DeviceURLStyle.Render(d.FallbackURL))
	}
	lines = append(lines,
		row("Source", string(d.Source)),
		ResultKeyStyle.Render("Path:")+" "+pathStyle(d).Render(PathLabel(d)),
	)
	if d.Quality.LatencyMs != nil {
		lines = append(lines, row("Latency", fmt.Sprintf("%d ms", *d.Quality.LatencyMs)))
	}
	if d.Platform != "" {
		lines = append(lines, row("Platform", d.Platform))
	}
	if d.Version != "" {
		lines = append(lines, row("Version", d.Version))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width-4).
		Padding(0, 1).
		MarginLeft(1).
		Render(strings.Join(lines, "\n"))
}

// RenderDeviceList renders cards for all descriptors in the given order
func RenderDeviceList(devices []device.Descriptor, width int) string {
	cards := make([]string, 0, len(devices))
	for _, d := range devices {
		cards = append(cards, RenderDeviceCard(d, width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}
