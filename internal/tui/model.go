package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gomcp-clock/internal/logger"
	"gomcp-clock/internal/store"
)

const (
	sidebarWidth = 25
	maxLogLines  = 1000
	recentLimit  = 20
)

// CallChan feeds finished tool calls to the dashboard.
var CallChan = make(chan store.Call, 100)

// PushCall hands c to the dashboard without blocking the caller.
func PushCall(c store.Call) {
	select {
	case CallChan <- c:
	default:
	}
}

// ToolInfo is the static description of a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// ToolStatus tracks live counters for one tool.
type ToolStatus struct {
	ToolInfo
	CallCount  int
	ErrorCount int
	LastCall   time.Time
	LastStatus string
	LastResult string
}

// RecentFetcher loads the latest audited calls for a tool.
type RecentFetcher func(tool string, limit int) ([]store.Call, error)

type Model struct {
	logs     []string
	quitting bool
	width    int
	height   int

	logViewport    viewport.Model
	detailViewport viewport.Model

	addr      string
	tools     []ToolStatus
	startTime time.Time

	selectedIdx int
	showDetails bool

	fetcher    RecentFetcher
	recent     []store.Call
	fetchError string
}

// InitialModel builds the dashboard for the server listening on addr.
// fetcher may be nil when auditing is disabled.
func InitialModel(addr string, tools []ToolInfo, fetcher RecentFetcher) Model {
	statuses := make([]ToolStatus, 0, len(tools))
	for _, t := range tools {
		statuses = append(statuses, ToolStatus{ToolInfo: t})
	}
	return Model{
		logs:      []string{"System initialized. Waiting for traffic..."},
		addr:      addr,
		tools:     statuses,
		startTime: time.Now(),
		fetcher:   fetcher,
		// Viewports are resized on WindowSizeMsg
		logViewport:    viewport.New(0, 0),
		detailViewport: viewport.New(0, 0),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForLog(),
		waitForCall(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type tickMsg time.Time

type recentFetchedMsg struct {
	tool  string
	calls []store.Call
	err   error
}

func (m Model) fetchRecentCmd(tool string) tea.Cmd {
	return func() tea.Msg {
		if m.fetcher == nil {
			return recentFetchedMsg{tool: tool, err: fmt.Errorf("audit log disabled")}
		}
		calls, err := m.fetcher(tool, recentLimit)
		return recentFetchedMsg{tool: tool, calls: calls, err: err}
	}
}

func (m Model) selectedTool() string {
	if m.selectedIdx < len(m.tools) {
		return m.tools[m.selectedIdx].Name
	}
	return ""
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "enter", " ":
			m.showDetails = !m.showDetails
			if m.showDetails && len(m.tools) > 0 {
				m.detailViewport.SetContent(m.renderDetailContent())
				return m, m.fetchRecentCmd(m.selectedTool())
			}
			return m, nil
		case "up", "k":
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.detailViewport.GotoTop()
				if m.showDetails {
					cmds = append(cmds, m.fetchRecentCmd(m.selectedTool()))
				}
			}
			return m, tea.Batch(cmds...)
		case "down", "j":
			if m.selectedIdx < len(m.tools)-1 {
				m.selectedIdx++
				m.detailViewport.GotoTop()
				if m.showDetails {
					cmds = append(cmds, m.fetchRecentCmd(m.selectedTool()))
				}
			}
			return m, tea.Batch(cmds...)
		}

		// Remaining keys scroll the visible pane
		var cmd tea.Cmd
		if m.showDetails {
			m.detailViewport, cmd = m.detailViewport.Update(msg)
		} else {
			m.logViewport, cmd = m.logViewport.Update(msg)
		}
		cmds = append(cmds, cmd)

	case tea.MouseMsg:
		var cmd tea.Cmd
		if m.showDetails {
			m.detailViewport, cmd = m.detailViewport.Update(msg)
		} else {
			m.logViewport, cmd = m.logViewport.Update(msg)
		}
		cmds = append(cmds, cmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Header is one line of text plus one line of margin
		headerHeight := 2

		mainWidth := m.width - sidebarWidth - 4
		if mainWidth < 10 {
			mainWidth = 10
		}
		mainHeight := m.height - headerHeight
		if mainHeight < 5 {
			mainHeight = 5
		}

		m.logViewport.Width = mainWidth
		m.logViewport.Height = mainHeight
		m.detailViewport.Width = mainWidth
		m.detailViewport.Height = mainHeight

		m.logViewport.SetContent(m.renderLogContent())
		m.detailViewport.SetContent(m.renderDetailContent())

	case tickMsg:
		cmds = append(cmds, tickCmd())

	case recentFetchedMsg:
		if msg.tool == m.selectedTool() {
			if msg.err != nil {
				m.fetchError = msg.err.Error()
				m.recent = nil
			} else {
				m.fetchError = ""
				m.recent = msg.calls
			}
			m.detailViewport.SetContent(m.renderDetailContent())
		}

	case store.Call:
		for i := range m.tools {
			if m.tools[i].Name != msg.Tool {
				continue
			}
			m.tools[i].CallCount++
			m.tools[i].LastCall = msg.CreatedAt
			m.tools[i].LastStatus = msg.Status
			if msg.Status == "error" {
				m.tools[i].ErrorCount++
				m.tools[i].LastResult = msg.Error
			} else {
				m.tools[i].LastResult = msg.Result
			}
		}
		if msg.Tool == m.selectedTool() {
			m.recent = append([]store.Call{msg}, m.recent...)
			if len(m.recent) > recentLimit {
				m.recent = m.recent[:recentLimit]
			}
		}
		m.detailViewport.SetContent(m.renderDetailContent())
		cmds = append(cmds, waitForCall())

	case logger.LogEntry:
		timeStamp := msg.Timestamp.Format("15:04:05")

		lvlStyle := styleLogInfo
		switch msg.Level {
		case "WARN":
			lvlStyle = styleLogWarn
		case "ERROR", "DPANIC", "PANIC", "FATAL":
			lvlStyle = styleLogError
		}

		line := fmt.Sprintf("%s %s | %s",
			styleLogTimeStamp.Render("["+timeStamp+"]"),
			lvlStyle.Render(msg.Level),
			msg.Message)
		if tool, ok := msg.Fields["tool"]; ok {
			line += " " + styleKey.Render(fmt.Sprintf("tool=%v", tool))
		}

		m.logs = append(m.logs, line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.logViewport.SetContent(m.renderLogContent())
		m.logViewport.GotoBottom()

		cmds = append(cmds, waitForLog())
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var mainPane string
	if m.showDetails {
		mainPane = styleLogPane.Width(m.detailViewport.Width).Render(m.detailViewport.View())
	} else {
		mainPane = styleLogPane.Width(m.logViewport.Width).Render(m.logViewport.View())
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), mainPane)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body)
}

func (m Model) renderHeader() string {
	title := styleHeaderTitle.Render("CLOCK")
	uptime := time.Since(m.startTime).Round(time.Second)
	status := fmt.Sprintf("UPTIME: %s  |  ADDR: %s", uptime, m.addr)

	mode := "LOG MONITOR"
	if m.showDetails {
		mode = "CALL INSPECTOR"
	}

	pad := m.width - lipgloss.Width(title) - lipgloss.Width(status) - lipgloss.Width(mode) - 4
	if pad < 1 {
		pad = 1
	}

	style := styleHeader
	if m.width > 0 {
		// width-1 avoids wrapping at the exact edge of the terminal
		style = style.Width(m.width - 1)
	}
	return style.Render(fmt.Sprintf("%s %s%s%s", title, status, strings.Repeat(" ", pad), mode))
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(styleSidebarHeader.Render("TOOLS") + "\n\n")

	for i, t := range m.tools {
		icon := styleStatusIdle
		switch {
		case t.LastStatus == "error":
			icon = styleStatusError
		case t.CallCount > 0:
			icon = styleStatusActive
		}

		line := fmt.Sprintf("%s %s (%d)", icon, trim(t.Name, 14), t.CallCount)
		if i == m.selectedIdx {
			line = lipgloss.NewStyle().Foreground(cHighlight).Bold(true).Render("> " + line)
		} else {
			line = styleToolItem.Render("  " + line)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n\n" + lipgloss.NewStyle().Foreground(cComment).Italic(true).Render("Use ↑/↓ to nav\nEnter for calls"))
	return styleSidebar.Render(b.String())
}

func (m Model) renderLogContent() string {
	if len(m.logs) == 0 {
		return "No logs yet..."
	}
	return strings.Join(m.logs, "\n")
}

func (m Model) renderDetailContent() string {
	if m.selectedIdx >= len(m.tools) {
		return "No selection"
	}
	t := m.tools[m.selectedIdx]

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(cAccent).Bold(true).Underline(true).Render(strings.ToUpper(t.Name)) + "\n\n")

	wrapWidth := m.detailViewport.Width - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}
	if t.Description != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(cComment).Width(wrapWidth).Render(t.Description) + "\n\n")
	}

	last := "-"
	if !t.LastCall.IsZero() {
		last = t.LastCall.Format("15:04:05")
	}
	fmt.Fprintf(&b, "%s %d\n", styleKey.Render("Calls:    "), t.CallCount)
	fmt.Fprintf(&b, "%s %d\n", styleKey.Render("Errors:   "), t.ErrorCount)
	fmt.Fprintf(&b, "%s %s\n", styleKey.Render("Last Call:"), styleValue.Render(last))
	fmt.Fprintf(&b, "%s %s\n\n", styleKey.Render("Last Out: "), styleValue.Render(t.LastResult))

	b.WriteString(lipgloss.NewStyle().Foreground(cForeground).Bold(true).Render("RECENT CALLS:") + "\n")
	switch {
	case m.fetchError != "":
		b.WriteString(lipgloss.NewStyle().Foreground(cDanger).Render("Error loading calls: "+m.fetchError) + "\n")
	case len(m.recent) == 0:
		b.WriteString(lipgloss.NewStyle().Foreground(cComment).Render("No calls yet...") + "\n")
	default:
		for _, c := range m.recent {
			out := c.Result
			statusStyle := lipgloss.NewStyle().Foreground(cSuccess)
			if c.Status == "error" {
				out = c.Error
				statusStyle = lipgloss.NewStyle().Foreground(cDanger)
			}
			fmt.Fprintf(&b, "%s %-5s %s %s\n",
				styleLogTimeStamp.Render(c.CreatedAt.Format("15:04:05")),
				c.Transport,
				statusStyle.Render(trim(c.Status, 7)),
				styleValue.Render(trim(out, wrapWidth-24)))
		}
	}
	return b.String()
}

func trim(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func waitForLog() tea.Cmd {
	return func() tea.Msg {
		return <-logger.LogChan
	}
}

func waitForCall() tea.Cmd {
	return func() tea.Msg {
		return <-CallChan
	}
}
