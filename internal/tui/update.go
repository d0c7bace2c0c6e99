package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hlsget/hlsget/internal/engine/events"
	"github.com/hlsget/hlsget/internal/engine/types"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 8
		if w < MinBarWidth {
			w = MinBarWidth
		}
		if w > MaxBarWidth {
			w = MaxBarWidth
		}
		m.bar.Width = w
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case engineEvent:
		return m.handleEngine(msg.msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "p":
		if !m.done && !m.paused {
			m.session.Pause()
			m.paused = true
			m.statusLine = "paused"
		}
	case "r":
		if !m.done && m.paused {
			m.session.Resume()
			m.paused = false
			m.statusLine = ""
		}
	case "f":
		if !m.done && !m.finalizing {
			m.finalizing = true
			m.statusLine = "finalizing early, keeping what is already ordered"
			if m.paused {
				m.session.Gate().Resume()
				m.paused = false
			}
			sess := m.session
			return m, func() tea.Msg {
				sess.FinalizeEarly()
				return nil
			}
		}
	case "c", "q", "ctrl+c":
		if m.done {
			return m, tea.Quit
		}
		if !m.cancelling {
			m.cancelling = true
			m.statusLine = "cancelling"
			if m.paused {
				m.session.Gate().Resume()
				m.paused = false
			}
			m.session.Cancel()
		}
	}
	return m, nil
}

func (m Model) handleEngine(msg any) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case events.TaskStartedMsg:
		m.total = msg.Segments
		m.estimate = msg.Estimate
		if msg.Title != "" {
			m.title = msg.Title
		}

	case events.ProgressMsg:
		m.completed = msg.Progress.Completed
		m.failed = msg.Progress.Failed
		m.total = msg.Progress.Total
		m.phase = msg.Progress.Phase
		if msg.Progress.Message != "" {
			m.statusLine = msg.Progress.Message
		}

	case events.SegmentFailedMsg:
		m.statusLine = segmentFailedLine(msg)

	case events.TaskCompleteMsg:
		m.phase = types.PhaseDone
		m.written = msg.Written
		m.skipped = msg.SkippedSegments
		m.done = true
		return m, tea.Quit

	case events.TaskWaitingMsg:
		m.phase = types.PhaseWaiting
		m.failed = msg.FailedCount
		m.done = true
		return m, tea.Quit

	case events.TaskErrorMsg:
		m.phase = types.PhaseError
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case events.TaskCancelledMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, listen(m.events)
}
