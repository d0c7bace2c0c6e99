package events

import (
	"encoding/json"
	"errors"

	"github.com/hlsget/hlsget/internal/engine/types"
)

// TaskStartedMsg is sent once the playlist is resolved and workers spawn.
type TaskStartedMsg struct {
	TaskID   string
	URL      string
	Title    string
	Segments int
	Estimate int64 // bytes, rough
}

// ProgressMsg is emitted at least once per completed or failed segment.
type ProgressMsg struct {
	TaskID   string
	Progress types.Progress
}

// SegmentFailedMsg reports one segment giving up after its retry budget.
type SegmentFailedMsg struct {
	TaskID   string
	Index    int
	Attempts int
}

// TaskCompleteMsg signals the terminal done phase. SkippedSegments is
// non-zero only in streaming mode.
type TaskCompleteMsg struct {
	TaskID          string
	Title           string
	Written         int64
	SkippedSegments int
}

// TaskWaitingMsg signals the buffered-mode stop after partial failure:
// no artifact yet, failed segments await user-initiated retry.
type TaskWaitingMsg struct {
	TaskID      string
	FailedCount int
}

// TaskErrorMsg signals the terminal error phase.
type TaskErrorMsg struct {
	TaskID string
	Title  string
	Err    error
}

func (m TaskErrorMsg) MarshalJSON() ([]byte, error) {
	type encoded struct {
		TaskID string `json:"TaskID"`
		Title  string `json:"Title,omitempty"`
		Err    string `json:"Err,omitempty"`
	}
	out := encoded{TaskID: m.TaskID, Title: m.Title}
	if m.Err != nil {
		out.Err = m.Err.Error()
	}
	return json.Marshal(out)
}

func (m *TaskErrorMsg) UnmarshalJSON(data []byte) error {
	var aux struct {
		TaskID string `json:"TaskID"`
		Title  string `json:"Title"`
		Err    string `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.TaskID = aux.TaskID
	m.Title = aux.Title
	m.Err = nil
	if aux.Err != "" {
		m.Err = errors.New(aux.Err)
	}
	return nil
}

type TaskPausedMsg struct {
	TaskID string
}

type TaskResumedMsg struct {
	TaskID string
}

type TaskCancelledMsg struct {
	TaskID string
}
