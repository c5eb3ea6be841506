package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha
const (
	colorPink     lipgloss.Color = "#f5c2e7"
	colorMauve    lipgloss.Color = "#cba6f7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorPeach    lipgloss.Color = "#fab387"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorBlue     lipgloss.Color = "#89b4fa"
	colorLavender lipgloss.Color = "#b4befe"

	colorText     lipgloss.Color = "#cdd6f4"
	colorSubtext0 lipgloss.Color = "#a6adc8"
	colorOverlay0 lipgloss.Color = "#6c7086"
	colorSurface1 lipgloss.Color = "#45475a"
	colorBase     lipgloss.Color = "#1e1e2e"
)

const (
	colorAccent  = colorPink
	colorFocus   = colorLavender
	colorForced  = colorPeach
	colorClosing = colorOverlay0
	colorLocked  = colorRed
	colorInfo    = colorTeal
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorBase).
			Background(colorAccent).
			Bold(true).
			Padding(0, 1)

	routeStyle = lipgloss.NewStyle().Foreground(colorBlue)
	topStyle   = lipgloss.NewStyle().Foreground(colorFocus).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(colorSubtext0)
	valueStyle = lipgloss.NewStyle().Foreground(colorText)
	helpStyle  = lipgloss.NewStyle().Foreground(colorOverlay0)
	lockStyle  = lipgloss.NewStyle().Foreground(colorLocked).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	infoStyle  = lipgloss.NewStyle().Foreground(colorInfo)
	warnStyle  = lipgloss.NewStyle().Foreground(colorYellow)

	drawerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMauve).
			Foreground(colorText).
			Padding(1, 2)

	drawerTitleStyle = lipgloss.NewStyle().Foreground(colorMauve).Bold(true)
	forcedBadgeStyle = lipgloss.NewStyle().
				Foreground(colorBase).
				Background(colorForced).
				Padding(0, 1)
	closingBadgeStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Background(colorSurface1).
				Padding(0, 1)
)
