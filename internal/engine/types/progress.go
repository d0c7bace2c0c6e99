package types

// Phase is the coarse state a task reports to the UI.
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseFlushing    Phase = "flushing"
	PhaseDone        Phase = "done"
	PhaseError       Phase = "error"
	// PhaseWaiting is the buffered-mode terminal phase after partial
	// failure: payloads are parked, the user decides whether to retry.
	PhaseWaiting Phase = "waiting"
)

// Progress is a derived snapshot, computed from segment statuses and never
// stored anywhere.
type Progress struct {
	Completed  int
	Failed     int
	Total      int
	Percentage float64
	Phase      Phase
	Message    string
}

// Snapshot derives the current progress of the task's active range.
func (t *Task) Snapshot(phase Phase, msg string) Progress {
	completed := t.CountStatus(SegmentSuccess)
	failed := t.CountStatus(SegmentFailed)
	total := t.RangeTotal()
	pct := 0.0
	if total > 0 {
		pct = float64(completed) / float64(total) * 100.0
	}
	return Progress{
		Completed:  completed,
		Failed:     failed,
		Total:      total,
		Percentage: pct,
		Phase:      phase,
		Message:    msg,
	}
}
