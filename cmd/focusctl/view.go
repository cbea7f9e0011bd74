package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/hperssn/focussync/internal/runner"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	offlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Italic(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F7DC6F")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1)
)

const offlineNote = "session store unreachable, showing this device's timers"

func stateStyle(s runner.State) lipgloss.Style {
	switch s {
	case runner.StateRunning:
		return runningStyle
	case runner.StatePaused:
		return pausedStyle
	default:
		return idleStyle
	}
}

func renderLine(v runner.View, offline bool) string {
	line := fmt.Sprintf("%s  %s  %s", v.TaskID, stateStyle(v.State).Render(v.State.String()), v.Text)
	if offline {
		line += "\n" + offlineStyle.Render(offlineNote)
	}
	return line
}

// renderStatus lists the live timers. counts is nil when the store could
// not be asked; tasks with completed sessions but no timer are listed
// below the table.
func renderStatus(views []runner.View, counts map[string]int, offline bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Focus timers"))
	b.WriteString("\n")

	live := make(map[string]bool, len(views))
	if len(views) == 0 {
		b.WriteString(idleStyle.Render("no timers"))
	} else {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#874BFD"))).
			Headers("TASK", "STATE", "REMAINING", "PROGRESS", "SESSION", "POMODOROS").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return lipgloss.NewStyle().Bold(true).Padding(0, 1)
				}
				if col == 1 {
					return stateStyle(views[row].State).Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		for _, v := range views {
			live[v.TaskID] = true
			t.Row(v.TaskID, v.State.String(), v.Text, progressBar(v.Progress, 20), sessionLabel(v.SessionID), countLabel(counts, v.TaskID))
		}
		b.WriteString(t.Render())
	}

	done := make([]string, 0, len(counts))
	for taskID, n := range counts {
		if !live[taskID] && n > 0 {
			done = append(done, taskID)
		}
	}
	sort.Strings(done)
	for _, taskID := range done {
		b.WriteString("\n")
		b.WriteString(idleStyle.Render(fmt.Sprintf("%s: %s", taskID, pomodoroLabel(counts[taskID]))))
	}

	if offline {
		b.WriteString("\n")
		b.WriteString(offlineStyle.Render(offlineNote))
	}
	return b.String()
}

func countLabel(counts map[string]int, taskID string) string {
	if counts == nil {
		return "-"
	}
	return strconv.Itoa(counts[taskID])
}

func pomodoroLabel(n int) string {
	if n == 1 {
		return "1 pomodoro"
	}
	return fmt.Sprintf("%d pomodoros", n)
}

func sessionLabel(id string) string {
	if id == "" {
		return "local"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func progressBar(percent float64, width int) string {
	filled := min(width, max(0, int(percent/100*float64(width))))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
