package setup

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	mutedColor   = lipgloss.Color("#6B7280") // Gray

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)

	okMark   = lipgloss.NewStyle().Foreground(successColor).Render("✓")
	warnMark = lipgloss.NewStyle().Foreground(warningColor).Bold(true).Render("!")
)

func heading(w io.Writer, text string) {
	fmt.Fprintln(w, headingStyle.Render(text))
}

func ok(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", okMark, fmt.Sprintf(format, args...))
}

func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", warnMark, fmt.Sprintf(format, args...))
}

func note(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf(format, args...)))
}
