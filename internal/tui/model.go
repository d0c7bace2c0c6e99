// Package tui renders the single-task download dashboard: a progress bar,
// segment counters and the pause/resume/finalize keys. All engine state
// arrives over the event channel; the model never polls the task.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hlsget/hlsget/internal/engine/scheduler"
	"github.com/hlsget/hlsget/internal/engine/types"
)

const (
	MinBarWidth     = 20
	MaxBarWidth     = 60
	DefaultPaddingX = 1
	DefaultPaddingY = 0
)

// engineEvent wraps one message read from the engine's event channel so
// bubbletea can route it through Update.
type engineEvent struct {
	msg any
}

type Model struct {
	session *scheduler.Session
	events  <-chan any

	bar   progress.Model
	width int

	title     string
	outPath   string
	estimate  int64
	total     int
	completed int
	failed    int

	phase      types.Phase
	written    int64
	skipped    int
	statusLine string
	err        error

	paused     bool
	finalizing bool
	cancelling bool
	startTime  time.Time
	done       bool
}

// New builds the dashboard for one running session. The event channel is
// owned by the caller; the model only reads from it.
func New(session *scheduler.Session, events <-chan any, title, outPath string) Model {
	return Model{
		session:   session,
		events:    events,
		bar:       progress.New(progress.WithDefaultGradient()),
		title:     title,
		outPath:   outPath,
		phase:     types.PhaseDownloading,
		startTime: time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return listen(m.events)
}

func listen(sub <-chan any) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-sub
		if !ok {
			return nil
		}
		return engineEvent{msg: msg}
	}
}

// Done reports whether the session reached a terminal phase.
func (m Model) Done() bool { return m.done }

// Err returns the terminal error, if the session ended in one.
func (m Model) Err() error { return m.err }

// Phase returns the last phase reported by the engine.
func (m Model) Phase() types.Phase { return m.phase }
