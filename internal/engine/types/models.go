package types

import (
	"sort"
	"sync"
)

// SegmentStatus tracks the lifecycle of a single segment within a task.
type SegmentStatus int

const (
	SegmentPending SegmentStatus = iota
	SegmentInflight
	SegmentSuccess
	SegmentFailed
)

func (s SegmentStatus) String() string {
	switch s {
	case SegmentInflight:
		return "inflight"
	case SegmentSuccess:
		return "success"
	case SegmentFailed:
		return "failed"
	default:
		return "pending"
	}
}

// SegmentRef is one entry of a media playlist. Index is assigned by the
// resolver in play order and never changes afterwards; Status and Retries
// are mutated by the scheduler through the owning Task's lock.
type SegmentRef struct {
	Index    int     `json:"index"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"` // seconds
	Status   SegmentStatus
	Retries  int
}

// OutputKind selects the shape of the final artifact.
type OutputKind int

const (
	OutputRaw     OutputKind = iota // concatenated segments as-is
	OutputRemuxed                   // passed through the external transcoder
)

// OutputMode selects how completed segments reach the sink.
type OutputMode int

const (
	// ModeStreaming hands each payload to the sequencer as soon as it
	// completes; failed segments are skipped so the stream is never blocked.
	ModeStreaming OutputMode = iota
	// ModeBuffered parks payloads on the task until the whole range
	// succeeded; partial failure leaves the task waiting for per-segment
	// retries instead of producing a truncated artifact.
	ModeBuffered
)

// EncryptionDescriptor carries the AES-128 metadata of a media playlist.
// Key is fetched once by the resolver and cached here. An empty IV means
// the per-segment IV is derived from the segment's sequence number.
type EncryptionDescriptor struct {
	Method   string
	KeyURI   string
	Key      []byte
	IV       []byte
	Sequence uint64 // media sequence number of the first segment
}

// Task describes one resolved download. It is created by the resolver,
// owned by the caller and retained across pause/resume cycles; sessions
// only borrow it while running. Segment order equals play order.
type Task struct {
	ID            string
	SourceURL     string
	Title         string
	OutputKind    OutputKind
	Segments      []*SegmentRef
	TotalDuration float64 // seconds
	Encryption    *EncryptionDescriptor
	SizeEstimate  int64 // bytes, UI hint only

	// Download range, 1-based inclusive. Defaults to the full list.
	RangeStart int
	RangeEnd   int

	mu       sync.Mutex
	payloads map[int][]byte // buffered-mode completed-but-unflushed payloads
}

// RangeIndices returns the zero-based segment indices covered by the
// task's download range, in play order.
func (t *Task) RangeIndices() []int {
	start, end := t.RangeStart, t.RangeEnd
	if start < 1 {
		start = 1
	}
	if end < 1 || end > len(t.Segments) {
		end = len(t.Segments)
	}
	if start > end {
		return nil
	}
	out := make([]int, 0, end-start+1)
	for i := start - 1; i <= end-1; i++ {
		out = append(out, i)
	}
	return out
}

// RangeTotal returns the number of segments in the active range.
func (t *Task) RangeTotal() int {
	return len(t.RangeIndices())
}

// SetStatus updates one segment's status under the task lock.
func (t *Task) SetStatus(index int, st SegmentStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Segments[index].Status = st
}

// Status reads one segment's status under the task lock.
func (t *Task) Status(index int) SegmentStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Segments[index].Status
}

// BumpRetries increments and returns the retry counter of a segment.
func (t *Task) BumpRetries(index int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Segments[index].Retries++
	return t.Segments[index].Retries
}

// FailedIndices returns the in-range segments currently marked failed.
func (t *Task) FailedIndices() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []int
	for _, i := range t.rangeIndicesLocked() {
		if t.Segments[i].Status == SegmentFailed {
			out = append(out, i)
		}
	}
	return out
}

// PendingIndices returns the in-range segments that still need fetching,
// i.e. everything not already successful. Used to seed a session queue so
// a resumed task never refetches completed segments.
func (t *Task) PendingIndices() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []int
	for _, i := range t.rangeIndicesLocked() {
		if t.Segments[i].Status != SegmentSuccess {
			out = append(out, i)
		}
	}
	return out
}

// CountStatus counts in-range segments with the given status.
func (t *Task) CountStatus(st SegmentStatus) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, i := range t.rangeIndicesLocked() {
		if t.Segments[i].Status == st {
			n++
		}
	}
	return n
}

func (t *Task) rangeIndicesLocked() []int {
	start, end := t.RangeStart, t.RangeEnd
	if start < 1 {
		start = 1
	}
	if end < 1 || end > len(t.Segments) {
		end = len(t.Segments)
	}
	var out []int
	for i := start - 1; i <= end-1 && i >= 0; i++ {
		out = append(out, i)
	}
	return out
}

// StorePayload parks a completed payload on the task (buffered mode).
func (t *Task) StorePayload(index int, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.payloads == nil {
		t.payloads = make(map[int][]byte)
	}
	t.payloads[index] = data
}

// PayloadCount reports how many unflushed payloads the task holds.
func (t *Task) PayloadCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.payloads)
}

// TakePayloadMap removes and returns the parked payloads keyed by index.
// Called exactly once when a buffered run finalizes.
func (t *Task) TakePayloadMap() map[int][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.payloads
	t.payloads = nil
	return m
}

// PayloadIndices returns the indices currently parked, sorted.
func (t *Task) PayloadIndices() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, 0, len(t.payloads))
	for i := range t.payloads {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
