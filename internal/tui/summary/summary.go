// ABOUTME: Upload progress and outcome view for a batch of local files
// ABOUTME: Lists every file with its status and the reason for each failure

package summary

import (
	"fmt"
	"strings"

	"github.com/AsafNachman/file-management-system/internal/tui/icons"
	"github.com/AsafNachman/file-management-system/internal/tui/styles"
	"github.com/AsafNachman/file-management-system/internal/tui/widgets"
	"github.com/AsafNachman/file-management-system/internal/upload"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Summary displays an upload batch
type Summary struct {
	tasks   []upload.Task
	result  *upload.Summary
	running bool
	width   int
}

// New creates a summary view
func New(width int) *Summary {
	return &Summary{width: width}
}

// SetBatch updates the displayed tasks. result is nil while the batch runs.
func (s *Summary) SetBatch(tasks []upload.Task, result *upload.Summary, running bool) {
	s.tasks = tasks
	s.result = result
	s.running = running
}

// SetWidth updates the render width
func (s *Summary) SetWidth(width int) {
	s.width = width
}

// Running reports whether the batch is still in flight
func (s *Summary) Running() bool {
	return s.running
}

func (s *Summary) counts() (succeeded, failed int) {
	for _, t := range s.tasks {
		switch t.Status {
		case upload.StatusSucceeded:
			succeeded++
		case upload.StatusFailed:
			failed++
		}
	}
	return succeeded, failed
}

// View renders the summary
func (s *Summary) View() string {
	if len(s.tasks) == 0 {
		return "No uploads yet"
	}

	var sb strings.Builder

	title := icons.Upload.String() + " Uploading"
	if !s.running {
		title = icons.Upload.String() + " Upload summary"
	}
	sb.WriteString(styles.Title.Render(title))
	sb.WriteString("\n")

	succeeded, failed := s.counts()
	barConfig := widgets.DefaultProgressBarConfig()
	if s.width > 40 {
		barConfig.Width = min(40, s.width-20)
	}
	sb.WriteString(widgets.BatchProgressWithLabel(succeeded, failed, len(s.tasks), barConfig))
	sb.WriteString("\n\n")

	nameWidth := s.width - 36
	if nameWidth < 16 {
		nameWidth = 16
	}
	for _, t := range s.tasks {
		size := ""
		if t.File.Size > 0 {
			size = humanize.IBytes(uint64(t.File.Size))
		}
		name := t.File.DisplayName()
		if len(name) > nameWidth {
			name = name[:nameWidth-3] + "..."
		}
		sb.WriteString(fmt.Sprintf("  %s %-*s %10s\n", widgets.TaskBadge(t.Status), nameWidth, name, size))
		if t.Status == upload.StatusFailed && t.Reason != "" {
			sb.WriteString("      " + styles.StatusCritical.Render(t.Reason) + "\n")
		}
	}

	if s.result != nil {
		sb.WriteString("\n")
		sb.WriteString(s.renderOutcome())
	}

	return lipgloss.NewStyle().Width(s.width).Render(sb.String())
}

func (s *Summary) renderOutcome() string {
	r := s.result
	failed := len(r.Failed)
	switch {
	case failed == 0:
		return widgets.StatusText(fmt.Sprintf("All %d file(s) uploaded", r.Succeeded), widgets.StatusOK)
	case r.Succeeded == 0:
		return widgets.StatusText(fmt.Sprintf("All %d upload(s) failed", failed), widgets.StatusCritical)
	default:
		return widgets.StatusText(fmt.Sprintf("%d uploaded, %d failed", r.Succeeded, failed), widgets.StatusWarning)
	}
}
