package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// styles holds the REPL's rendering styles. They are bound to the output's
// renderer so plain writers (pipes, tests) receive no escape codes.
type styles struct {
	banner    lipgloss.Style
	prompt    lipgloss.Style
	assistant lipgloss.Style
	reply     lipgloss.Style
	logic     lipgloss.Style
	timing    lipgloss.Style
	warning   lipgloss.Style
	err       lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		banner:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")), // cyan
		prompt:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("4")), // blue
		assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")), // green
		reply:     r.NewStyle().PaddingLeft(1),
		logic:     r.NewStyle().Foreground(lipgloss.Color("8")).Italic(true),   // gray
		timing:    r.NewStyle().Foreground(lipgloss.Color("8")).Faint(true),    // dim
		warning:   r.NewStyle().PaddingLeft(1).Foreground(lipgloss.Color("3")), // yellow
		err:       r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),     // red
	}
}
