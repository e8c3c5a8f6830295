package tui

import "github.com/charmbracelet/lipgloss"

// Color Palette - Industrial / Cyberpunk-lite
var (
	cForeground = lipgloss.Color("#a9b1d6") // Soft White
	cComment    = lipgloss.Color("#565f89") // Grey
	cAccent     = lipgloss.Color("#7aa2f7") // Blue
	cSuccess    = lipgloss.Color("#9ece6a") // Green
	cWarning    = lipgloss.Color("#e0af68") // Orange
	cDanger     = lipgloss.Color("#f7768e") // Red
	cHighlight  = lipgloss.Color("#bb9af7") // Purple
	cBackground = lipgloss.Color("#1a1b26") // Deep Night
)

var (
	// Header
	styleHeader = lipgloss.NewStyle().
			Foreground(cBackground).
			Background(cAccent).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	styleHeaderTitle = lipgloss.NewStyle().
				Foreground(cBackground).
				Bold(true).
				MarginRight(1)

	// Sidebar (tools)
	styleSidebar = lipgloss.NewStyle().
			Width(sidebarWidth).
			Border(lipgloss.NormalBorder(), false, true, false, false). // Right border
			BorderForeground(cComment).
			PaddingRight(1).
			MarginRight(1)

	styleSidebarHeader = lipgloss.NewStyle().
				Foreground(cComment).
				Bold(true).
				Underline(true).
				MarginBottom(1)

	styleToolItem = lipgloss.NewStyle().
			PaddingLeft(1)

	styleStatusIdle   = lipgloss.NewStyle().Foreground(cComment).SetString("○")
	styleStatusActive = lipgloss.NewStyle().Foreground(cSuccess).SetString("●")
	styleStatusError  = lipgloss.NewStyle().Foreground(cDanger).SetString("✖")

	// Main Content (Logs)
	styleLogPane = lipgloss.NewStyle().
			PaddingLeft(1)

	styleLogTimeStamp = lipgloss.NewStyle().Foreground(cComment)
	styleLogInfo      = lipgloss.NewStyle().Foreground(cAccent)
	styleLogWarn      = lipgloss.NewStyle().Foreground(cWarning)
	styleLogError     = lipgloss.NewStyle().Foreground(cDanger)

	styleKey   = lipgloss.NewStyle().Foreground(cComment)
	styleValue = lipgloss.NewStyle().Foreground(cForeground)
)
