package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hlsget/hlsget/internal/engine/events"
	"github.com/hlsget/hlsget/internal/engine/scheduler"
	"github.com/hlsget/hlsget/internal/engine/sink"
	"github.com/hlsget/hlsget/internal/engine/types"
)

func testModel(t *testing.T) Model {
	t.Helper()
	task := &types.Task{ID: "t", RangeStart: 1, RangeEnd: 1,
		Segments: []*types.SegmentRef{{Index: 0, URL: "u"}}}
	session := scheduler.NewSession(scheduler.Config{
		Task: task,
		Mode: types.ModeStreaming,
		Sink: sink.NewBufferSink(nil),
	})
	ch := make(chan any, 16)
	return New(session, ch, "episode1", "/tmp/episode1.ts")
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestUpdate_ProgressAdvances(t *testing.T) {
	m := testModel(t)

	next, _ := m.Update(engineEvent{msg: events.TaskStartedMsg{Segments: 10, Estimate: 1024}})
	m = next.(Model)
	if m.total != 10 {
		t.Errorf("total = %d", m.total)
	}

	next, cmd := m.Update(engineEvent{msg: events.ProgressMsg{
		Progress: types.Progress{Completed: 4, Failed: 1, Total: 10, Phase: types.PhaseDownloading},
	}})
	m = next.(Model)
	if m.completed != 4 || m.failed != 1 {
		t.Errorf("counters = %d/%d", m.completed, m.failed)
	}
	if cmd == nil {
		t.Error("non-terminal events must re-arm the listener")
	}
	if m.Done() {
		t.Error("model should not be done mid-download")
	}
}

func TestUpdate_CompleteQuits(t *testing.T) {
	m := testModel(t)
	next, cmd := m.Update(engineEvent{msg: events.TaskCompleteMsg{Written: 2048, SkippedSegments: 1}})
	m = next.(Model)

	if !m.Done() {
		t.Error("complete event should finish the model")
	}
	if m.Phase() != types.PhaseDone {
		t.Errorf("phase = %s", m.Phase())
	}
	if m.written != 2048 || m.skipped != 1 {
		t.Errorf("written=%d skipped=%d", m.written, m.skipped)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}

func TestUpdate_WaitingQuits(t *testing.T) {
	m := testModel(t)
	next, _ := m.Update(engineEvent{msg: events.TaskWaitingMsg{FailedCount: 3}})
	m = next.(Model)

	if m.Phase() != types.PhaseWaiting {
		t.Errorf("phase = %s", m.Phase())
	}
	if m.failed != 3 {
		t.Errorf("failed = %d", m.failed)
	}
}

func TestUpdate_ErrorCarriesCause(t *testing.T) {
	m := testModel(t)
	cause := errors.New("sink write: disk full")
	next, _ := m.Update(engineEvent{msg: events.TaskErrorMsg{Err: cause}})
	m = next.(Model)

	if m.Phase() != types.PhaseError {
		t.Errorf("phase = %s", m.Phase())
	}
	if !errors.Is(m.Err(), cause) {
		t.Errorf("Err = %v", m.Err())
	}
}

func TestUpdate_PauseResumeKeys(t *testing.T) {
	m := testModel(t)

	next, _ := m.Update(key("p"))
	m = next.(Model)
	if !m.paused {
		t.Fatal("p should pause")
	}
	if !m.session.Gate().Paused() {
		t.Fatal("gate should be armed")
	}

	// Redundant pause is a no-op.
	next, _ = m.Update(key("p"))
	m = next.(Model)
	if !m.session.Gate().Paused() {
		t.Fatal("gate should stay armed")
	}

	next, _ = m.Update(key("r"))
	m = next.(Model)
	if m.paused || m.session.Gate().Paused() {
		t.Fatal("r should resume")
	}
}

func TestUpdate_CancelKey(t *testing.T) {
	m := testModel(t)
	next, _ := m.Update(key("c"))
	m = next.(Model)
	if !m.cancelling {
		t.Error("c should start cancellation")
	}

	// Terminal event then arrives from the engine.
	next, cmd := m.Update(engineEvent{msg: events.TaskCancelledMsg{}})
	m = next.(Model)
	if !m.Done() {
		t.Error("cancelled event should finish the model")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}

func TestUpdate_WindowSizeClampsBar(t *testing.T) {
	m := testModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 500, Height: 40})
	m = next.(Model)
	if m.bar.Width != MaxBarWidth {
		t.Errorf("bar width = %d, want clamped to %d", m.bar.Width, MaxBarWidth)
	}

	next, _ = m.Update(tea.WindowSizeMsg{Width: 10, Height: 40})
	m = next.(Model)
	if m.bar.Width != MinBarWidth {
		t.Errorf("bar width = %d, want at least %d", m.bar.Width, MinBarWidth)
	}
}

func TestView_RendersCounts(t *testing.T) {
	m := testModel(t)
	next, _ := m.Update(engineEvent{msg: events.ProgressMsg{
		Progress: types.Progress{Completed: 2, Total: 8, Phase: types.PhaseDownloading},
	}})
	m = next.(Model)

	out := m.View()
	if out == "" {
		t.Fatal("empty view")
	}
}
