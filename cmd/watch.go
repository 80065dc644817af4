// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Labgear

package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/labgear/regloctl/pkg/regloicc"
	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live channel status display",
	Long: `Continuously poll every channel and display its run state in a
terminal UI.

Polling drives the driver's stall detection: a channel that reports running
without odometer progress is stopped by the driver and flagged as stalled
until a new pump command starts on it.

All polling happens sequentially on the single pump session; channels are
never queried concurrently.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Delay between poll rounds")
}

type channelStatus struct {
	running bool
	stalled bool
	err     error
}

type statusMsg map[int]channelStatus

type watchTickMsg time.Time

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	watchStallStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	watchHelpStyle  = lipgloss.NewStyle().Faint(true)
)

type watchModel struct {
	pump     *regloicc.Pump
	connInfo string
	table    table.Model
	statuses map[int]channelStatus
	quitting bool
}

func initialWatchModel(pump *regloicc.Pump, connInfo string) watchModel {
	columns := []table.Column{
		{Title: "Channel", Width: 8},
		{Title: "State", Width: 12},
		{Title: "Dispense dir", Width: 12},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(len(pump.Channels())+1),
	)
	return watchModel{
		pump:     pump,
		connInfo: connInfo,
		table:    t,
		statuses: make(map[int]channelStatus),
	}
}

// pollChannels queries every channel in order on the single session. Runs
// as a tea command so the UI stays responsive, but the next round is only
// scheduled after this one finishes, so the transport never sees
// overlapping exchanges.
func (m watchModel) pollChannels() tea.Msg {
	statuses := make(map[int]channelStatus)
	for _, ch := range m.pump.Channels() {
		running, err := m.pump.IsRunning(ch)
		status := channelStatus{running: running}
		if regloicc.IsKind(err, regloicc.KindStallDetected) {
			status.stalled = true
		} else if err != nil {
			status.err = err
		}
		statuses[ch] = status
	}
	return statusMsg(statuses)
}

func watchTick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Init() tea.Cmd {
	return m.pollChannels
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case statusMsg:
		for ch, status := range msg {
			// Stalls stay visible until a new command resets the channel.
			if prev, ok := m.statuses[ch]; ok && prev.stalled && !status.running {
				status.stalled = true
			}
			m.statuses[ch] = status
		}
		m.table.SetRows(m.rows())
		return m, watchTick(watchInterval)

	case watchTickMsg:
		return m, m.pollChannels
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m watchModel) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.statuses))
	for _, ch := range m.pump.Channels() {
		status, ok := m.statuses[ch]
		state := "..."
		if ok {
			switch {
			case status.stalled:
				state = watchStallStyle.Render("STALLED")
			case status.err != nil:
				state = "error"
			case status.running:
				state = "running"
			default:
				state = "stopped"
			}
		}
		dir, _ := m.pump.DispenseDir(ch)
		rows = append(rows, table.Row{strconv.Itoa(ch), state, dir.String()})
	}
	return rows
}

func (m watchModel) View() string {
	if m.quitting {
		return ""
	}
	s := watchTitleStyle.Render("Regloctl - Channel Watch") + "\n"
	s += fmt.Sprintf("Connection: %s | Pump: %s (%s)\n\n", m.connInfo, m.pump.ModelNo(), m.pump.SerialNo())
	s += m.table.View() + "\n"
	for _, ch := range m.pump.Channels() {
		if status, ok := m.statuses[ch]; ok && status.err != nil {
			s += fmt.Sprintf("Channel %d error: %v\n", ch, status.err)
		}
	}
	s += watchHelpStyle.Render("q: quit")
	return s
}

func runWatch(cmd *cobra.Command, args []string) error {
	pump, connInfo, err := openPump()
	if err != nil {
		return err
	}
	defer pump.Close()

	m := initialWatchModel(pump, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
