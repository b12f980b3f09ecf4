package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Successfully completed
	StepFailed                     // Failed
	StepSkipped                    // Skipped
)

// Step is one discovery phase in the step list.
type Step struct {
	Name    string
	Status  StepStatus
	Message string // e.g. "192.168.1.0/24", "2 found"
}

// Progress renders the phase step list and a subnet sweep bar.
type Progress struct {
	Label   string
	Steps   []Step
	Percent float64 // subnet sweep progress, 0.0 - 1.0
	Width   int
	ShowBar bool
	bar     progress.Model
}

// NewProgress creates a progress display with one pending step per name
func NewProgress(label string, names []string) *Progress {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Name: name, Status: StepPending}
	}

	p := &Progress{
		Label: label,
		Steps: steps,
	}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth sets the terminal width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := min(max(width-20, 20), 50)
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// Index returns the position of the named step, or -1
func (p *Progress) Index(name string) int {
	for i, s := range p.Steps {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Start marks the named step running and completes any step still running
// before it.
func (p *Progress) Start(name, message string) {
	idx := p.Index(name)
	if idx < 0 {
		return
	}
	for i := range p.Steps {
		if p.Steps[i].Status == StepRunning && i != idx {
			p.Steps[i].Status = StepComplete
		}
	}
	p.Steps[idx].Status = StepRunning
	p.Steps[idx].Message = message
}

// Note updates the message on the named step without changing its status
func (p *Progress) Note(name, message string) {
	if idx := p.Index(name); idx >= 0 {
		p.Steps[idx].Message = message
	}
}

// Finish completes running steps. Steps never started are marked skipped,
// or failed when the scan was cancelled.
func (p *Progress) Finish(cancelled bool) {
	for i := range p.Steps {
		switch p.Steps[i].Status {
		case StepRunning:
			if cancelled {
				p.Steps[i].Status = StepFailed
				p.Steps[i].Message = "cancelled"
			} else {
				p.Steps[i].Status = StepComplete
			}
		case StepPending:
			p.Steps[i].Status = StepSkipped
		}
	}
}

// SetPercent sets the sweep bar position
func (p *Progress) SetPercent(percent float64) {
	p.Percent = min(max(percent, 0), 1)
}

// Render returns the styled progress display as a string
func (p *Progress) Render() string {
	var b strings.Builder

	if p.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(p.Label))
		b.WriteString("\n\n")
	}

	if p.ShowBar {
		b.WriteString(lipgloss.NewStyle().
			PaddingLeft(2).
			Render(fmt.Sprintf("%s  %3.0f%%", p.bar.ViewAs(p.Percent), p.Percent*100)))
		b.WriteString("\n\n")
	}

	lines := make([]string, 0, len(p.Steps))
	for _, step := range p.Steps {
		lines = append(lines, p.renderStepLine(step))
	}
	b.WriteString(strings.Join(lines, "\n"))

	return b.String()
}

func (p *Progress) renderStepLine(step Step) string {
	var marker string
	var style lipgloss.Style

	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, style = StepMarkerSkipped, StepPendingStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(style.Render(marker))
	b.WriteString(" ")
	b.WriteString(style.Render(step.Name))

	if step.Message != "" {
		padding := max(12-lipgloss.Width(step.Name), 1)
		b.WriteString(strings.Repeat(" ", padding))
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}

	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}
