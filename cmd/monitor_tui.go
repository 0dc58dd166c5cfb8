// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/smcstat/pkg/smc"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// Monitor model. The Conn is only touched from readCmd, and the next read
// is scheduled after the previous snapshot arrives.
type monitorModel struct {
	conn          *smc.Conn
	connInfo      string
	interval      time.Duration
	cores         int
	table         table.Model
	spinner       spinner.Model
	snap          *snapshot
	eventLog      []eventLogEntry
	maxLogEntries int
	loading       bool
	width         int
	height        int
	quitting      bool
}

// Messages
type monitorTickMsg time.Time
type snapshotMsg snapshot

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// levelStyles colors a smc.Level result
var levelStyles = [5]lipgloss.Style{
	valueStyle,
	warningStyle,
	lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	lipgloss.NewStyle().Foreground(lipgloss.Color("202")).Bold(true),
	errorStyle,
}

func newMonitorModel(conn *smc.Conn, connInfo string, interval time.Duration, cores int) monitorModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Group", Width: 8},
			{Title: "Sensor", Width: 16},
			{Title: "Value", Width: 22},
			{Title: "Level", Width: 9},
		}),
		table.WithHeight(12),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = warningStyle

	return monitorModel{
		conn:          conn,
		connInfo:      connInfo,
		interval:      interval,
		cores:         cores,
		table:         t,
		spinner:       sp,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		loading:       true,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(m.readCmd(), m.spinner.Tick)
}

func (m monitorModel) readCmd() tea.Cmd {
	conn, cores := m.conn, m.cores
	return func() tea.Msg {
		return snapshotMsg(readSnapshot(conn, cores))
	}
}

func (m monitorModel) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if stats := m.conn.Stats(); stats != nil && !m.loading {
				stats.Reset()
				m.addLogEntry("Statistics reset", false)
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(m.height-22, 5))
		return m, nil

	case monitorTickMsg:
		m.loading = true
		return m, tea.Batch(m.readCmd(), m.spinner.Tick)

	case snapshotMsg:
		snap := snapshot(msg)
		m.snap = &snap
		m.loading = false
		m.table.SetRows(snapshotRows(snap))
		for _, err := range snap.errs {
			m.addLogEntry(err.Error(), true)
		}
		return m, m.tickCmd()

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func snapshotRows(snap snapshot) []table.Row {
	rows := make([]table.Row, 0, len(snap.readings)+len(snap.fans))
	for _, r := range snap.readings {
		rows = append(rows, table.Row{r.group, r.name, r.value, levelNames[r.level]})
	}
	for i, f := range snap.fans {
		level := smc.Level(f.Actual, f.Thresholds())
		rows = append(rows, table.Row{
			"Fan",
			fmt.Sprintf("Fan %d (%s)", i, f.Mode),
			fmt.Sprintf("%.0f rpm (%.0f%%)", float32(f.Actual), f.Percentage()),
			levelNames[level],
		})
	}
	return rows
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("SMCSTAT - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Platform: %s | Interval: %s | 'r' reset stats, 'q' quit",
		m.connInfo, m.conn.Platform(), m.interval)))
	s.WriteString("\n\n")

	if m.snap == nil {
		s.WriteString(m.spinner.View() + warningStyle.Render(" Reading controller..."))
		s.WriteString("\n")
		return s.String()
	}

	status := valueStyle.Render("✓ " + m.snap.taken.Format("15:04:05"))
	if m.loading {
		status = m.spinner.View() + headerStyle.Render(" refreshing")
	}
	s.WriteString(status)
	s.WriteString("\n")

	s.WriteString(boxStyle.Render(m.table.View()))
	s.WriteString("\n")

	if len(m.snap.readings) > 0 {
		hottest := m.snap.readings[0]
		for _, r := range m.snap.readings {
			if r.level > hottest.level {
				hottest = r
			}
		}
		if hottest.level > 0 {
			s.WriteString(labelStyle.Render("Hottest: "))
			s.WriteString(levelStyles[hottest.level].Render(fmt.Sprintf("%s %s %s", hottest.group, hottest.name, hottest.value)))
			s.WriteString("\n")
		}
	}

	s.WriteString(boxStyle.Render(m.statsView()))
	s.WriteString("\n")

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(m.logView()))

	return s.String()
}

func (m monitorModel) statsView() string {
	stats := m.snap.stats
	stats.CalculateRates()

	var validPercent float64
	if stats.TotalReads > 0 {
		validPercent = float64(stats.ValidReads) * 100.0 / float64(stats.TotalReads)
	}

	errRate := valueStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	if stats.ErrorRate > 0 {
		errRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	}

	return fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n%s %s   %s %s",
		labelStyle.Render("Calls:"), valueStyle.Render(fmt.Sprintf("%d", stats.TotalCalls)),
		labelStyle.Render("Reads:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%% valid)", stats.TotalReads, validPercent)),
		labelStyle.Render("Unknown:"), warningStyle.Render(fmt.Sprintf("%d", stats.UnknownKeys)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", stats.Errors())),
		labelStyle.Render("Call Rate:"), valueStyle.Render(fmt.Sprintf("%.1f calls/s", stats.CallRate)),
		labelStyle.Render("Error Rate:"), errRate,
	)
}

func (m monitorModel) logView() string {
	logHeight := max(m.height-m.table.Height()-14, 3)

	if len(m.eventLog) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	var b strings.Builder
	for _, entry := range m.eventLog[max(len(m.eventLog)-logHeight, 0):] {
		timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
		style, mark := warningStyle, "ℹ "
		if entry.isError {
			style, mark = errorStyle, "✗ "
		}
		b.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), style.Render(mark+entry.message)))
	}
	return b.String()
}
