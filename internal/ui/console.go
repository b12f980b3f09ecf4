package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/r58studio/devfinder/internal/discovery"
)

// ConsoleSink prints scan events as styled lines. It implements
// discovery.EventSink.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a sink writing to w, or os.Stdout when w is nil
func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{out: w}
}

// Emit implements discovery.EventSink
func (c *ConsoleSink) Emit(e discovery.Event) {
	if line := FormatEvent(e); line != "" {
		_, _ = fmt.Fprintln(c.out, line)
	}
}

// FormatEvent renders one event as a console line. Intermediate sweep
// progress renders as an empty string.
func FormatEvent(e discovery.Event) string {
	muted := lipgloss.NewStyle().Foreground(MutedColor)

	switch e.Type {
	case discovery.EventStarted:
		return HeaderTitleStyle.Render("Scanning for devices...")
	case discovery.EventPhase:
		return StepRunningStyle.Render("  "+StepMarkerRunning+" ") + ResultValueStyle.Render(e.Message)
	case discovery.EventScanningSubnet:
		line := "      " + e.Subnet
		if e.Message != "" {
			line += " on " + e.Message
		}
		return muted.Render(line)
	case discovery.EventSubnetProgress:
		if e.Total == 0 || e.Probed < e.Total {
			return ""
		}
		return muted.Render(fmt.Sprintf("      %s: %d hosts probed", e.Subnet, e.Probed))
	case discovery.EventDeviceFound:
		if e.Device == nil {
			return ""
		}
		return StepCompleteStyle.Render("    "+SuccessMarker+" ") +
			DeviceNameStyle.Render(e.Device.Name) + " " +
			DeviceURLStyle.Render(e.Device.Address.URL) + " " +
			muted.Render("("+PathLabel(*e.Device)+")")
	case discovery.EventComplete:
		if e.Cancelled {
			return WarningTitleStyle.Render(fmt.Sprintf("  %s Scan cancelled, %d device(s) found", WarningMarker, len(e.Devices)))
		}
		return SuccessTitleStyle.Render(fmt.Sprintf("  %s Scan complete, %d device(s) found", SuccessMarker, len(e.Devices)))
	}
	return ""
}
