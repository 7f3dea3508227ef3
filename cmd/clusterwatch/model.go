package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-coord/pkg/clock"
	"github.com/dd0wney/cluso-coord/pkg/heartbeat"
	"github.com/dd0wney/cluso-coord/pkg/lockstore"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FF00FF")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type view int

const (
	nodesView view = iota
	locksView
	viewCount
)

const (
	refreshInterval = time.Second
	fetchTimeout    = 5 * time.Second
	timeLayout      = "15:04:05.000"
)

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Refresh  key.Binding
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("up/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("down/j", "down"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Refresh},
		{k.Up, k.Down},
		{k.Quit},
	}
}

// source is the read-only view of the coordination tables
type source interface {
	ListHeartbeats(ctx context.Context) ([]heartbeat.Row, error)
	ListLocks(ctx context.Context) ([]lockstore.LockRow, error)
}

type model struct {
	source      source
	clock       clock.Clock
	threshold   time.Duration
	currentView view
	nodeTable   table.Model
	lockTable   table.Model
	help        help.Model
	keys        keyMap
	width       int
	height      int
	snapshot    snapshotMsg
}

type tickMsg time.Time

// snapshotMsg carries one read of both tables
type snapshotMsg struct {
	heartbeats []heartbeat.Row
	locks      []lockstore.LockRow
	at         time.Time
	err        error
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchCmd(src source, c clock.Clock) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		msg := snapshotMsg{at: c.Now()}
		msg.heartbeats, msg.err = src.ListHeartbeats(ctx)
		if msg.err != nil {
			return msg
		}
		msg.locks, msg.err = src.ListLocks(ctx)
		return msg
	}
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#FF00FF")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func initialModel(src source, c clock.Clock, threshold time.Duration) model {
	return model{
		source:    src,
		clock:     c,
		threshold: threshold,
		nodeTable: newTable([]table.Column{
			{Title: "Node", Width: 38},
			{Title: "Last heartbeat", Width: 14},
			{Title: "DB time", Width: 14},
			{Title: "Offset", Width: 10},
			{Title: "Live", Width: 5},
		}),
		lockTable: newTable([]table.Column{
			{Title: "Lock", Width: 30},
			{Title: "Holder", Width: 38},
			{Title: "Updated", Width: 14},
			{Title: "Holder live", Width: 11},
		}),
		help: help.New(),
		keys: keys,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.source, m.clock), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		return m, tea.Batch(fetchCmd(m.source, m.clock), tickCmd())

	case snapshotMsg:
		m.snapshot = msg
		if msg.err == nil {
			live := liveNodes(msg.heartbeats, msg.at, m.threshold)
			m.nodeTable.SetRows(nodeRows(msg.heartbeats, live))
			m.lockTable.SetRows(lockRows(msg.locks, live))
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			m.currentView = (m.currentView + 1) % viewCount

		case key.Matches(msg, m.keys.ShiftTab):
			m.currentView = (m.currentView + viewCount - 1) % viewCount

		case key.Matches(msg, m.keys.Refresh):
			return m, fetchCmd(m.source, m.clock)
		}
	}

	switch m.currentView {
	case nodesView:
		m.nodeTable, cmd = m.nodeTable.Update(msg)
		cmds = append(cmds, cmd)
	case locksView:
		m.lockTable, cmd = m.lockTable.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// liveNodes returns the nodes whose heartbeat is newer than now minus threshold
func liveNodes(rows []heartbeat.Row, now time.Time, threshold time.Duration) map[string]struct{} {
	cutoff := now.Add(-threshold)
	live := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if row.HeartbeatTime.After(cutoff) {
			live[row.NodeID] = struct{}{}
		}
	}
	return live
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func nodeRows(rows []heartbeat.Row, live map[string]struct{}) []table.Row {
	sorted := append([]heartbeat.Row(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NodeID < sorted[j].NodeID })

	out := make([]table.Row, 0, len(sorted))
	for _, row := range sorted {
		dbTime, offset := "-", "-"
		if row.DatabaseTime != nil {
			dbTime = row.DatabaseTime.Local().Format(timeLayout)
		}
		if off := row.Offset(); off != nil {
			offset = fmt.Sprintf("%dms", off.Milliseconds())
		}
		_, isLive := live[row.NodeID]
		out = append(out, table.Row{
			row.NodeID,
			row.HeartbeatTime.Local().Format(timeLayout),
			dbTime,
			offset,
			yesNo(isLive),
		})
	}
	return out
}

func lockRows(rows []lockstore.LockRow, live map[string]struct{}) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		holder, holderLive := "-", "-"
		if row.IsLocked() {
			holder = row.LockedBy
			_, ok := live[row.LockedBy]
			holderLive = yesNo(ok)
		}
		out = append(out, table.Row{
			row.Name,
			holder,
			row.UpdateTime.Local().Format(timeLayout),
			holderLive,
		})
	}
	return out
}

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("Cluso cluster watch"))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n")

	switch m.currentView {
	case nodesView:
		s.WriteString(contentStyle.Render(m.nodeTable.View()))
	case locksView:
		s.WriteString(contentStyle.Render(m.lockTable.View()))
	}

	s.WriteString("\n\n")
	s.WriteString(m.renderStatus())

	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))

	return s.String()
}

func (m model) renderTabs() string {
	tabs := []string{"Nodes", "Locks"}
	var renderedTabs []string

	for i, tab := range tabs {
		if view(i) == m.currentView {
			renderedTabs = append(renderedTabs, activeTabStyle.Render(tab))
		} else {
			renderedTabs = append(renderedTabs, inactiveTabStyle.Render(tab))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, renderedTabs...)
}

func (m model) renderStatus() string {
	if m.snapshot.err != nil {
		return errorStyle.Render("x " + m.snapshot.err.Error())
	}
	if m.snapshot.at.IsZero() {
		return statusStyle.Render("loading...")
	}
	live := liveNodes(m.snapshot.heartbeats, m.snapshot.at, m.threshold)
	held := 0
	for _, row := range m.snapshot.locks {
		if row.IsLocked() {
			held++
		}
	}
	return statusStyle.Render(fmt.Sprintf("%d/%d nodes live, %d/%d locks held, updated %s",
		len(live), len(m.snapshot.heartbeats), held, len(m.snapshot.locks),
		m.snapshot.at.Local().Format(timeLayout)))
}
