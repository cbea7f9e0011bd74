package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hperssn/focussync/internal/reconcile"
	"github.com/hperssn/focussync/internal/runner"
	"github.com/hperssn/focussync/internal/wire"
)

func watchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live countdown of all timers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := openApp(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()
			// stop the event stream and pending reconciles before the cache closes
			defer cancel()

			events, err := a.client.Watch(ctx)
			if err != nil {
				a.logger.Printf("watch: %v", err)
			}

			m := newWatchModel(ctx, a, events)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
}

type refreshMsg time.Time

type remoteEventMsg wire.Event

type streamClosedMsg struct{}

type reconciledMsg struct {
	report reconcile.Report
	err    error
}

type watchModel struct {
	ctx     context.Context
	app     *app
	events  <-chan wire.Event
	views   []runner.View
	cursor  int
	notice  string
	offline bool
	width   int
}

func newWatchModel(ctx context.Context, a *app, events <-chan wire.Event) watchModel {
	return watchModel{
		ctx:     ctx,
		app:     a,
		events:  events,
		views:   a.registry.List(),
		offline: a.offline() || events == nil,
	}
}

func refreshCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m watchModel) listen() tea.Cmd {
	if m.events == nil {
		return nil
	}
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return remoteEventMsg(ev)
	}
}

func (m watchModel) reconcile() tea.Cmd {
	return func() tea.Msg {
		report, err := m.app.engine.Run(m.ctx)
		return reconciledMsg{report: report, err: err}
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(refreshCmd(), m.listen())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, refreshCmd()

	case remoteEventMsg:
		m.notice = fmt.Sprintf("%s %s on another device", msg.TaskID, msg.Type)
		return m, tea.Batch(m.reconcile(), m.listen())

	case streamClosedMsg:
		m.events = nil
		m.offline = true
		return m, nil

	case reconciledMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		}
		m.offline = msg.report.RemoteErr != nil || m.events == nil
		m.refresh()
		return m, nil
	}

	return m, nil
}

func (m watchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.views)-1 {
			m.cursor++
		}
		return m, nil
	}

	v, ok := m.selected()
	if !ok {
		return m, nil
	}

	var err error
	switch msg.String() {
	case " ":
		switch v.State {
		case runner.StateRunning:
			err = m.app.registry.Pause(v.TaskID)
		case runner.StatePaused:
			err = m.app.registry.Resume(v.TaskID)
		}
	case "c":
		err = m.app.registry.Complete(v.TaskID)
	case "r":
		err = m.app.registry.Reset(v.TaskID)
	default:
		return m, nil
	}

	if err != nil {
		m.notice = err.Error()
	} else {
		m.notice = ""
	}
	m.refresh()
	return m, nil
}

func (m *watchModel) refresh() {
	m.views = m.app.registry.List()
	if m.cursor >= len(m.views) {
		m.cursor = max(0, len(m.views)-1)
	}
}

func (m watchModel) selected() (runner.View, bool) {
	if m.cursor < 0 || m.cursor >= len(m.views) {
		return runner.View{}, false
	}
	return m.views[m.cursor], true
}

func (m watchModel) View() string {
	var rows []string
	for i, v := range m.views {
		marker := "  "
		task := v.TaskID
		if i == m.cursor {
			marker = selectedStyle.Render("> ")
			task = selectedStyle.Render(task)
		}
		rows = append(rows, fmt.Sprintf("%s%-20s %s %s  %s",
			marker,
			task,
			stateStyle(v.State).Width(10).Render(v.State.String()),
			v.Text,
			progressBar(v.Progress, 20),
		))
	}
	if len(rows) == 0 {
		rows = append(rows, idleStyle.Render("no timers, start one with focusctl start <task>"))
	}

	parts := []string{
		titleStyle.Render("Focus timers"),
		boxStyle.Render(strings.Join(rows, "\n")),
	}
	if m.offline {
		parts = append(parts, offlineStyle.Render(offlineNote))
	}
	if m.notice != "" {
		parts = append(parts, pausedStyle.Render(m.notice))
	}
	parts = append(parts, idleStyle.Render("space pause/resume · c complete · r reset · ↑/↓ select · q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
