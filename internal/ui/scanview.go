package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/r58studio/devfinder/internal/device"
	"github.com/r58studio/devfinder/internal/discovery"
)

// Messages for the live scan view
type eventMsg discovery.Event

type scanDoneMsg struct {
	result discovery.Result
	err    error
}

// ScanFunc runs a scan that reports to sink.
type ScanFunc func(ctx context.Context, sink discovery.EventSink) (discovery.Result, error)

// ScanModel is the Bubble Tea model behind `scan --tui`.
type ScanModel struct {
	Spinner  spinner.Model
	Progress *Progress
	Devices  []device.Descriptor
	Subnet   string
	Started  time.Time

	Done     bool
	Stopping bool
	Result   discovery.Result
	Err      error
	cancel   context.CancelFunc
}

// NewScanModel creates the view with one step per enabled phase. cancel is
// called when the user interrupts the scan.
func NewScanModel(phases []discovery.Phase, cancel context.CancelFunc) ScanModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StepRunningStyle

	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = string(p)
	}
	prog := NewProgress("", names)
	prog.ShowBar = false

	if cancel == nil {
		cancel = func() {}
	}

	return ScanModel{
		Spinner:  s,
		Progress: prog,
		Started:  time.Now(),
		cancel:   cancel,
	}
}

// Init implements tea.Model
func (m ScanModel) Init() tea.Cmd {
	return m.Spinner.Tick
}

// Update implements tea.Model
func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.Done {
				return m, tea.Quit
			}
			m.Stopping = true
			m.cancel()
		}

	case tea.WindowSizeMsg:
		m.Progress.SetWidth(msg.Width)

	case eventMsg:
		m.apply(discovery.Event(msg))

	case scanDoneMsg:
		m.Done = true
		m.Err = msg.err
		m.Result = msg.result
		if msg.err == nil {
			m.Devices = msg.result.Devices
		}
		m.Progress.Finish(msg.result.Cancelled)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *ScanModel) apply(e discovery.Event) {
	switch e.Type {
	case discovery.EventPhase:
		m.Progress.Start(string(e.Phase), "")
	case discovery.EventScanningSubnet:
		m.Subnet = e.Subnet
		m.Progress.Note(string(discovery.PhaseSubnet), e.Subnet)
		m.Progress.ShowBar = true
		m.Progress.SetPercent(0)
	case discovery.EventSubnetProgress:
		if e.Total > 0 {
			m.Progress.SetPercent(float64(e.Probed) / float64(e.Total))
		}
	case discovery.EventDeviceFound:
		if e.Device != nil {
			m.upsert(*e.Device)
		}
	case discovery.EventComplete:
		m.Progress.Finish(e.Cancelled)
	}
}

func (m *ScanModel) upsert(d device.Descriptor) {
	for i := range m.Devices {
		if m.Devices[i].ID == d.ID {
			m.Devices[i] = d
			return
		}
	}
	m.Devices = append(m.Devices, d)
}

// View implements tea.Model
func (m ScanModel) View() string {
	var b strings.Builder

	title := "Scanning for devices"
	switch {
	case m.Done && m.Result.Cancelled:
		title = WarningMarker + " Scan cancelled"
	case m.Done:
		title = SuccessMarker + " Scan complete"
	case m.Stopping:
		title = m.Spinner.View() + " Stopping scan..."
	default:
		title = m.Spinner.View() + " " + title
	}
	b.WriteString(HeaderTitleStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(m.Progress.Render())
	b.WriteString("\n\n")

	if len(m.Devices) == 0 {
		b.WriteString(StepNoteStyle.Render("  No devices found yet"))
	} else {
		for _, d := range m.Devices {
			b.WriteString(fmt.Sprintf("  %s %s  %s  %s\n",
				StepCompleteStyle.Render(SuccessMarker),
				DeviceNameStyle.Render(d.Name),
				DeviceURLStyle.Render(d.Address.URL),
				StepNoteStyle.Render(PathLabel(d)),
			))
		}
	}

	if !m.Done {
		b.WriteString("\n")
		b.WriteString(TroubleshootingItemStyle.Render(
			fmt.Sprintf("  %s elapsed • q to stop", time.Since(m.Started).Truncate(time.Second))))
	}
	b.WriteString("\n")
	return b.String()
}

// programSink forwards events into a running program.
type programSink struct {
	program *tea.Program
}

func (s programSink) Emit(e discovery.Event) {
	s.program.Send(eventMsg(e))
}

// RunScanView runs scan behind the live view until it finishes. Interrupting
// the view cancels the scan, and the partial result is returned.
func RunScanView(ctx context.Context, out io.Writer, phases []discovery.Phase, scan ScanFunc) (discovery.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewScanModel(phases, cancel)
	program := tea.NewProgram(model, tea.WithOutput(out))

	go func() {
		result, err := scan(ctx, programSink{program: program})
		program.Send(scanDoneMsg{result: result, err: err})
	}()

	final, err := program.Run()
	if err != nil {
		return discovery.Result{}, fmt.Errorf("scan view failed: %w", err)
	}

	m, ok := final.(ScanModel)
	if !ok || !m.Done {
		return discovery.Result{}, fmt.Errorf("scan view exited before the scan finished")
	}
	return m.Result, m.Err
}
