// Package scheduler drives one download run: a fixed pool of workers
// pulling segment indices from a shared queue, fetching and decrypting
// each segment, and handing the payload to the active output path. Retry,
// pause compliance and progress aggregation live here.
package scheduler

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hlsget/hlsget/internal/engine/events"
	"github.com/hlsget/hlsget/internal/engine/fetch"
	"github.com/hlsget/hlsget/internal/engine/pause"
	"github.com/hlsget/hlsget/internal/engine/sequencer"
	"github.com/hlsget/hlsget/internal/engine/sink"
	"github.com/hlsget/hlsget/internal/engine/types"
	"github.com/hlsget/hlsget/internal/utils"
)

// Config carries everything a session borrows from its caller. The task,
// client and gate outlive the session; the sink belongs to this run.
type Config struct {
	Task       *types.Task
	Mode       types.OutputMode
	Sink       sink.Sink
	Transcoder sink.Transcoder // optional, only for remuxed output
	Runtime    *types.RuntimeConfig
	Client     *http.Client
	Gate       *pause.Controller
	ProgressCh chan<- any
}

// Session is the ephemeral per-run state. It is recreated every time a
// download starts or resumes; segment statuses persist on the Task across
// sessions, session bookkeeping does not.
type Session struct {
	cfg     Config
	fetcher *fetch.Fetcher
	seq     *sequencer.Sequencer // streaming mode only

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	fatal error

	finalizeRequested atomic.Bool
	closeOnce         sync.Once
	workersDone       chan struct{}
}

// NewSession prepares a run over the task's pending segments.
func NewSession(cfg Config) *Session {
	if cfg.Gate == nil {
		cfg.Gate = pause.NewController()
	}
	s := &Session{
		cfg:         cfg,
		fetcher:     fetch.NewFetcher(cfg.Client, cfg.Runtime),
		workersDone: make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Gate exposes the pause controller shared with the caller.
func (s *Session) Gate() *pause.Controller { return s.cfg.Gate }

// Run executes the session until the queue drains, a fatal sink error
// occurs, or the context is cancelled. It blocks the caller; progress is
// reported through the config's event channel.
func (s *Session) Run(ctx context.Context) error {
	task := s.cfg.Task
	defer s.cancel()
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			s.cancel()
		case <-stopWatch:
		case <-s.ctx.Done():
		}
	}()

	pending := task.PendingIndices()
	utils.Debug("session %s: %d pending of %d in range", task.ID, len(pending), task.RangeTotal())

	if s.cfg.Mode == types.ModeStreaming {
		start := task.RangeStart - 1
		if next := firstNotSuccess(task); next >= 0 {
			start = next
		}
		s.seq = sequencer.New(start, s.cfg.Sink, s.transcoderFor(task))
		s.seq.OnFlush = func(index int) {
			task.SetStatus(index, types.SegmentSuccess)
			s.emitProgress(types.PhaseDownloading, "")
		}
	}

	s.emit(events.TaskStartedMsg{
		TaskID:   task.ID,
		URL:      task.SourceURL,
		Title:    task.Title,
		Segments: task.RangeTotal(),
		Estimate: task.SizeEstimate,
	})

	// One monotonically-draining queue; each index is handed out once.
	queue := make(chan int, len(pending))
	for _, idx := range pending {
		queue <- idx
	}
	close(queue)

	n := s.cfg.Runtime.GetConcurrency()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(workerID, queue)
		}(i)
	}
	wg.Wait()
	close(s.workersDone)

	return s.finish()
}

func (s *Session) transcoderFor(task *types.Task) sink.Transcoder {
	if task.OutputKind == types.OutputRemuxed {
		return s.cfg.Transcoder
	}
	return nil
}

// worker drains the queue. Checkpoints (cancellation, pause gate) bracket
// every suspension point of the per-segment algorithm.
func (s *Session) worker(id int, queue <-chan int) {
	task := s.cfg.Task
	for idx := range queue {
		if s.checkpoint() != nil {
			return
		}

		seg := task.Segments[idx]
		task.SetStatus(idx, types.SegmentInflight)

		data, err := s.fetchWithRetry(seg)
		if err != nil {
			if s.ctx.Err() != nil {
				// Cancelled mid-attempt: the segment was never completed,
				// put it back to pending so a later session refetches it.
				task.SetStatus(idx, types.SegmentPending)
				return
			}
			attempts := s.cfg.Runtime.GetMaxRetries() + 1
			task.SetStatus(idx, types.SegmentFailed)
			utils.Debug("session %s: segment %d failed permanently: %v", task.ID, idx, err)
			s.emit(events.SegmentFailedMsg{TaskID: task.ID, Index: idx, Attempts: attempts})
			s.emitProgress(types.PhaseDownloading, "")
			if s.cfg.Mode == types.ModeStreaming {
				// Unblock the flush cursor; the stream tolerates the gap.
				if serr := s.seq.Skip(idx); serr != nil {
					s.fail(serr)
					return
				}
			}
			continue
		}

		if s.checkpoint() != nil {
			task.SetStatus(idx, types.SegmentPending)
			return
		}

		if s.cfg.Mode == types.ModeStreaming {
			if werr := s.seq.Put(idx, data); werr != nil {
				// Sink rejection is fatal to the whole session: a broken
				// writer cannot be trusted to recover.
				s.fail(werr)
				return
			}
		} else {
			task.StorePayload(idx, data)
			task.SetStatus(idx, types.SegmentSuccess)
			s.emitProgress(types.PhaseDownloading, "")
		}
	}
}

// fetchWithRetry performs fetch→decrypt with the fixed-delay retry policy.
// Each attempt re-checks cancellation and the pause gate first.
func (s *Session) fetchWithRetry(seg *types.SegmentRef) ([]byte, error) {
	task := s.cfg.Task
	budget := s.cfg.Runtime.GetMaxRetries()
	var lastErr error
	for attempt := 0; attempt <= budget; attempt++ {
		if err := s.checkpoint(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			task.BumpRetries(seg.Index)
			select {
			case <-s.ctx.Done():
				return nil, s.ctx.Err()
			case <-time.After(types.RetryDelay):
			}
			if err := s.checkpoint(); err != nil {
				return nil, err
			}
		}

		data, err := s.fetcher.Fetch(s.ctx, seg)
		if err == nil {
			data, err = fetch.Decrypt(task.Encryption, seg, data)
		}
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, &types.SegmentFetchError{Index: seg.Index, Attempts: budget + 1, Err: lastErr}
}

// checkpoint observes cancellation and blocks on the pause gate.
func (s *Session) checkpoint() error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	return s.cfg.Gate.Wait(s.ctx)
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.fatal == nil {
		s.fatal = err
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) fatalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// finish inspects the outcome after all workers exited and applies the
// completion policy of the active output mode.
func (s *Session) finish() error {
	task := s.cfg.Task

	if err := s.fatalErr(); err != nil {
		s.abort()
		revertInflight(task)
		s.emit(events.TaskErrorMsg{TaskID: task.ID, Title: task.Title, Err: err})
		s.emitProgress(types.PhaseError, err.Error())
		return err
	}

	if s.ctx.Err() != nil {
		if s.finalizeRequested.Load() {
			return s.finalizeClose()
		}
		// Plain cancellation: discard what the sequencer still holds.
		// Bytes already accepted by the sink stay accepted.
		s.abort()
		revertInflight(task)
		s.emit(events.TaskCancelledMsg{TaskID: task.ID})
		return context.Canceled
	}

	failed := task.CountStatus(types.SegmentFailed)
	if failed > 0 && s.cfg.Mode == types.ModeBuffered {
		// Buffered output requires the full range; park the payloads and
		// wait for user-initiated per-segment retries.
		s.emit(events.TaskWaitingMsg{TaskID: task.ID, FailedCount: failed})
		s.emitProgress(types.PhaseWaiting, "awaiting segment retries")
		return nil
	}

	return s.finalizeClose()
}

// finalizeClose flushes whatever is flushable in order and closes the sink
// exactly once. Shared by normal completion and early finalize.
func (s *Session) finalizeClose() error {
	task := s.cfg.Task
	var err error
	s.closeOnce.Do(func() {
		s.emitProgress(types.PhaseFlushing, "")
		var written int64
		switch s.cfg.Mode {
		case types.ModeStreaming:
			err = s.seq.Close()
			written = s.seq.Written()
		case types.ModeBuffered:
			written, err = s.flushBuffered()
		}
		// Anything still inflight never reached the sink; a later session
		// owes it a refetch.
		revertInflight(task)
		if err != nil {
			s.emit(events.TaskErrorMsg{TaskID: task.ID, Title: task.Title, Err: err})
			s.emitProgress(types.PhaseError, err.Error())
			return
		}
		skipped := task.CountStatus(types.SegmentFailed)
		s.emit(events.TaskCompleteMsg{
			TaskID:          task.ID,
			Title:           task.Title,
			Written:         written,
			SkippedSegments: skipped,
		})
		s.emitProgress(types.PhaseDone, "")
	})
	return err
}

// flushBuffered drains the task's payload map through a sequencer so the
// buffered path shares the streaming path's ordering, transcoding and
// error semantics. Contiguity starts at the range's first index; on early
// finalize everything past the first gap is discarded.
func (s *Session) flushBuffered() (int64, error) {
	task := s.cfg.Task
	indices := task.PayloadIndices()
	payloads := task.TakePayloadMap()

	seq := sequencer.New(task.RangeStart-1, s.cfg.Sink, s.transcoderFor(task))
	for _, idx := range indices {
		if err := seq.Put(idx, payloads[idx]); err != nil {
			seq.Abort()
			return seq.Written(), err
		}
	}
	if err := seq.Close(); err != nil {
		return seq.Written(), err
	}
	return seq.Written(), nil
}

func (s *Session) abort() {
	if s.cfg.Mode == types.ModeStreaming && s.seq != nil {
		s.seq.Abort()
	} else if s.cfg.Mode == types.ModeBuffered {
		// Parked payloads stay on the task for a later session; only the
		// sink is released.
		s.cfg.Sink.Abort()
	}
}

// FinalizeEarly cancels outstanding fetches, waits for in-flight workers,
// flushes everything still flushable in order and closes the sink. Safe to
// call concurrently with the running session; the sink closes exactly once.
func (s *Session) FinalizeEarly() error {
	s.finalizeRequested.Store(true)
	s.cancel()
	<-s.workersDone
	return s.finalizeClose()
}

// Cancel aborts the session without finalizing.
func (s *Session) Cancel() {
	s.cancel()
}

// Pause arms the gate and reports the transition. Workers block at their
// next checkpoint; nothing in flight is interrupted.
func (s *Session) Pause() {
	s.cfg.Gate.Pause()
	s.emit(events.TaskPausedMsg{TaskID: s.cfg.Task.ID})
}

// Resume releases the gate and reports the transition.
func (s *Session) Resume() {
	s.cfg.Gate.Resume()
	s.emit(events.TaskResumedMsg{TaskID: s.cfg.Task.ID})
}

func (s *Session) emit(msg any) {
	if s.cfg.ProgressCh != nil {
		s.cfg.ProgressCh <- msg
	}
}

func (s *Session) emitProgress(phase types.Phase, msg string) {
	if s.cfg.ProgressCh == nil {
		return
	}
	s.cfg.ProgressCh <- events.ProgressMsg{
		TaskID:   s.cfg.Task.ID,
		Progress: s.cfg.Task.Snapshot(phase, msg),
	}
}

// revertInflight flips segments stuck inflight back to pending. Called
// only after all workers have exited.
func revertInflight(task *types.Task) {
	for _, idx := range task.RangeIndices() {
		if task.Status(idx) == types.SegmentInflight {
			task.SetStatus(idx, types.SegmentPending)
		}
	}
}

// firstNotSuccess returns the first in-range index that is not yet
// successful, or -1 when the whole range already succeeded. A resumed
// streaming session restarts its flush cursor there: strict ordering
// means the successful prefix is exactly what the sink already holds.
func firstNotSuccess(task *types.Task) int {
	for _, idx := range task.RangeIndices() {
		if task.Status(idx) != types.SegmentSuccess {
			return idx
		}
	}
	return -1
}

// ResetFailed flips failed segments back to pending so a follow-up
// session retries exactly those. Retry counters restart from zero.
func ResetFailed(task *types.Task) int {
	n := 0
	for _, idx := range task.FailedIndices() {
		task.Segments[idx].Retries = 0
		task.SetStatus(idx, types.SegmentPending)
		n++
	}
	return n
}
