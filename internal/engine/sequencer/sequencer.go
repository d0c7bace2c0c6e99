// Package sequencer guarantees the sink receives payloads in strictly
// increasing index order despite out-of-order completion. Completed
// payloads land in an explicit reorder buffer keyed by index; a single
// serialized flush pass drains the buffer from the "next expected" cursor.
package sequencer

import (
	"fmt"
	"sync"

	"github.com/hlsget/hlsget/internal/engine/sink"
	"github.com/hlsget/hlsget/internal/engine/types"
)

type entry struct {
	data   []byte
	failed bool
}

// Sequencer reorders out-of-order completions into monotonic index order
// and feeds the sink. Because each sink write is awaited before the cursor
// advances, a slow sink bounds how far ahead workers may race.
type Sequencer struct {
	mu       sync.Mutex
	entries  map[int]entry
	next     int
	flushing bool
	err      error // latched fatal sink/transcoder error

	snk        sink.Sink
	transcoder sink.Transcoder

	// OnFlush, when set, is invoked after each payload reaches the sink,
	// outside the sequencer lock. Set it before the first Put.
	OnFlush func(index int)

	written int64
	flushed int
	skipped int
}

// New creates a sequencer whose cursor starts at the range's first index.
// The transcoder is optional; when present it runs inside the flush loop.
func New(start int, s sink.Sink, t sink.Transcoder) *Sequencer {
	return &Sequencer{
		entries:    make(map[int]entry),
		next:       start,
		snk:        s,
		transcoder: t,
	}
}

// Put inserts a completed payload and drains whatever became contiguous.
// Returns the latched fatal error, if any; callers must treat a non-nil
// result as session-fatal, never as a retryable segment failure.
func (s *Sequencer) Put(index int, data []byte) error {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return s.err
	}
	s.entries[index] = entry{data: data}
	return s.flushLocked()
}

// Skip inserts a permanent-failure marker so the stream is not blocked
// waiting for a segment that will never arrive.
func (s *Sequencer) Skip(index int) error {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return s.err
	}
	s.entries[index] = entry{failed: true}
	return s.flushLocked()
}

// flushLocked runs the flush pass. Called with s.mu held; releases the
// lock around sink writes and returns unlocked. The flushing flag ensures
// only one pass executes even when triggered concurrently by multiple
// workers' completions.
func (s *Sequencer) flushLocked() error {
	if s.flushing {
		err := s.err
		s.mu.Unlock()
		return err
	}
	s.flushing = true
	var delivered []int
	for {
		e, ok := s.entries[s.next]
		if !ok || s.err != nil {
			break
		}
		delete(s.entries, s.next)
		if e.failed {
			s.skipped++
			s.next++
			continue
		}
		idx := s.next
		s.mu.Unlock()

		data := e.data
		var werr error
		if s.transcoder != nil {
			data, werr = s.transcoder.Transcode(data)
			if werr != nil {
				werr = fmt.Errorf("transcode segment %d: %w", idx, werr)
			}
		}
		if werr == nil {
			werr = s.snk.Write(data)
		}

		s.mu.Lock()
		if werr != nil {
			s.err = &types.WriteError{Err: werr}
			break
		}
		s.written += int64(len(data))
		s.flushed++
		s.next++
		delivered = append(delivered, idx)
	}
	s.flushing = false
	err := s.err
	s.mu.Unlock()
	if s.OnFlush != nil {
		for _, idx := range delivered {
			s.OnFlush(idx)
		}
	}
	return err
}

// Close flushes whatever is still contiguously available and closes the
// sink. Residual entries above a gap are discarded; callers decide
// beforehand whether gaps should have been skipped. Idempotent through
// the sink's own Close semantics.
func (s *Sequencer) Close() error {
	s.mu.Lock()
	if err := s.flushLocked(); err != nil {
		s.snk.Abort()
		return err
	}
	s.mu.Lock()
	s.entries = make(map[int]entry)
	s.mu.Unlock()
	return s.snk.Close()
}

// Abort discards buffered entries and aborts the sink.
func (s *Sequencer) Abort() {
	s.mu.Lock()
	s.entries = make(map[int]entry)
	s.mu.Unlock()
	s.snk.Abort()
}

// Err returns the latched fatal error, if any.
func (s *Sequencer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Next returns the next index the sink still awaits.
func (s *Sequencer) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Written reports bytes delivered to the sink.
func (s *Sequencer) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Flushed reports how many payloads reached the sink.
func (s *Sequencer) Flushed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushed
}

// Skipped reports how many failure markers were dropped.
func (s *Sequencer) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// Pending reports entries still waiting in the reorder buffer.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
