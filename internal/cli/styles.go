package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/vrsandeep/oilspill-go/internal/processing"
)

var (
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"})
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#3B82F6", Dark: "#60A5FA"})

	severityStyles = map[processing.Severity]lipgloss.Style{
		processing.SeverityInfo:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#3B82F6", Dark: "#60A5FA"}),
		processing.SeveritySuccess: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"}),
		processing.SeverityWarning: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"}),
		processing.SeverityError:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#F87171"}),
	}
)

// formatter renders log lines, with or without color.
type formatter struct {
	color bool
}

func (f formatter) render(style lipgloss.Style, s string) string {
	if !f.color {
		return s
	}
	return style.Render(s)
}

func (f formatter) entry(e processing.LogEntry) string {
	label := fmt.Sprintf("%-7s", e.Severity)
	return fmt.Sprintf("%s %s %s",
		f.render(timestampStyle, "["+e.Timestamp+"]"),
		f.render(severityStyles[e.Severity], label),
		e.Message)
}

func (f formatter) header(s string) string {
	return f.render(headerStyle, s)
}
