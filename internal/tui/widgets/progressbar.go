// ABOUTME: Progress bar widgets for batch operations
// ABOUTME: Renders step counts like "2/5" next to a filled bar

package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ProgressBarConfig holds configuration for the progress bar
type ProgressBarConfig struct {
	Width       int
	FilledColor lipgloss.Color
	FailedColor lipgloss.Color
	EmptyColor  lipgloss.Color
}

// DefaultProgressBarConfig returns sensible defaults
func DefaultProgressBarConfig() ProgressBarConfig {
	return ProgressBarConfig{
		Width:       20,
		FilledColor: lipgloss.Color("#10B981"), // Green
		FailedColor: lipgloss.Color("#EF4444"), // Red
		EmptyColor:  lipgloss.Color("#374151"), // Dark gray
	}
}

// BatchProgress renders a bar with one segment per finished item.
// Failed items are drawn in the failure color after the succeeded ones.
func BatchProgress(succeeded, failed, total int, config ProgressBarConfig) string {
	if config.Width <= 0 {
		config.Width = 20
	}
	if total <= 0 {
		return "[" + lipgloss.NewStyle().Foreground(config.EmptyColor).Render(strings.Repeat("░", config.Width)) + "]"
	}

	ok := clamp(succeeded*config.Width/total, 0, config.Width)
	bad := clamp(failed*config.Width/total, 0, config.Width-ok)
	if failed > 0 && bad == 0 && ok < config.Width {
		bad = 1
	}
	empty := config.Width - ok - bad

	var bar strings.Builder
	bar.WriteString("[")
	bar.WriteString(lipgloss.NewStyle().Foreground(config.FilledColor).Render(strings.Repeat("█", ok)))
	bar.WriteString(lipgloss.NewStyle().Foreground(config.FailedColor).Render(strings.Repeat("█", bad)))
	bar.WriteString(lipgloss.NewStyle().Foreground(config.EmptyColor).Render(strings.Repeat("░", empty)))
	bar.WriteString("]")
	return bar.String()
}

// BatchProgressWithLabel appends the finished count to the bar
func BatchProgressWithLabel(succeeded, failed, total int, config ProgressBarConfig) string {
	return fmt.Sprintf("%s %d/%d", BatchProgress(succeeded, failed, total, config), succeeded+failed, total)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
