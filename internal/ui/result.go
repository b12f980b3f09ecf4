package ui

import (
	"fmt"
	"sort"
	"strings"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result is a bordered outcome box.
type Result struct {
	Type            ResultType
	Title           string
	Details         map[string]string
	Error           error
	Troubleshooting []string
	Width           int
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details map[string]string) *Result {
	return &Result{Type: ResultSuccess, Title: title, Details: details, Width: GetTerminalWidth()}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string, details map[string]string) *Result {
	return &Result{Type: ResultWarning, Title: title, Details: details, Width: GetTerminalWidth()}
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail adds a detail key-value pair
func (r *Result) AddDetail(key, value string) *Result {
	if r.Details == nil {
		r.Details = make(map[string]string)
	}
	r.Details[key] = value
	return r
}

// Render returns the styled result box
func (r *Result) Render() string {
	width := clampWidth(r.Width)

	marker, label := SuccessMarker, "SUCCESS"
	color, title := SuccessColor, SuccessTitleStyle
	switch r.Type {
	case ResultFailure:
		marker, label, color, title = FailureMarker, "FAILED", ErrorColor, ErrorTitleStyle
	case ResultWarning:
		marker, label, color, title = WarningMarker, "WARNING", WarningColor, WarningTitleStyle
	}

	lines := []string{
		"",
		title.Render(fmt.Sprintf("   %s  %s  ─  %s", marker, label, r.Title)),
		"",
	}

	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
	}

	if len(r.Details) > 0 {
		keys := make([]string, 0, len(r.Details))
		for k := range r.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			keyStyled := ResultKeyStyle.Render("   " + key + ":")
			lines = append(lines, keyStyled+" "+ResultValueStyle.Render(r.Details[key]))
		}
		lines = append(lines, "")
	}

	if len(r.Troubleshooting) > 0 {
		trouble := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
		for _, tip := range r.Troubleshooting {
			trouble = append(trouble, TroubleshootingItemStyle.Render("  • "+tip))
		}
		lines = append(lines, TroubleshootingBoxStyle(width).Render(strings.Join(trouble, "\n")), "")
	}

	return boxStyle(width, color).Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}
