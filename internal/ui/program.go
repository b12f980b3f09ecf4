package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/r58studio/devfinder/internal/device"
)

// Printer writes styled UI components to a writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	p.width = clampWidth(width)
	return p
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	p.Println(NewHeader(title, command, params).SetWidth(p.width).Render())
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.Println(NewSuccessResult(title, details).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details map[string]string) {
	p.Println(NewWarningResult(title, details).SetWidth(p.width).Render())
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintDevices prints the ranked device list, or a warning box when empty.
func (p *Printer) PrintDevices(devices []device.Descriptor, cancelled bool) {
	if len(devices) == 0 {
		details := map[string]string{"Devices": "0"}
		if cancelled {
			details["Scan"] = "cancelled"
		}
		p.PrintWarning("NO DEVICES FOUND", details)
		return
	}

	p.Println(RenderDeviceList(devices, p.width))
	title := fmt.Sprintf("%d DEVICE(S) FOUND", len(devices))
	if cancelled {
		title += " (scan cancelled)"
	}
	p.Println(SuccessTitleStyle.Render("  " + SuccessMarker + " " + title))
}

// PrintDevice prints a single descriptor card
func (p *Printer) PrintDevice(d device.Descriptor) {
	p.Println(RenderDeviceCard(d, p.width))
}
