package dashboard

import "github.com/charmbracelet/lipgloss"

// Color palette - same lime-green accent used across the project's
// terminal surfaces.
const (
	ColorLime     = "154"
	ColorLimeDim  = "106"
	ColorWhite    = "255"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
)

// Styles holds the lipgloss styles used by the dashboard's TUI renderer.
type Styles struct {
	Header    lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Dim       lipgloss.Style
	Good      lipgloss.Style
	Warn      lipgloss.Style
	Panel     lipgloss.Style
	Sparkline lipgloss.Style
}

// DefaultStyles returns the colored style set.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Label:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Value:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Good:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warn:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorDarkGray)).
			Padding(0, 1),
		Sparkline: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
	}
}

// NoColorStyles returns an unstyled set for NO_COLOR/plain environments.
func NoColorStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle(),
		Label:     lipgloss.NewStyle(),
		Value:     lipgloss.NewStyle(),
		Dim:       lipgloss.NewStyle(),
		Good:      lipgloss.NewStyle(),
		Warn:      lipgloss.NewStyle(),
		Panel:     lipgloss.NewStyle(),
		Sparkline: lipgloss.NewStyle(),
	}
}

// GetStyles picks colored or plain styles.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
