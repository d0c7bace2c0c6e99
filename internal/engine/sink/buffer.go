package sink

import (
	"bytes"
	"sync"

	"github.com/hlsget/hlsget/internal/engine/types"
)

// BufferSink accumulates chunks in memory and delivers the concatenated
// artifact to OnComplete when closed. Unbounded by design; choosing this
// sink accepts memory risk for large outputs.
type BufferSink struct {
	mu     sync.Mutex
	chunks [][]byte
	closed bool

	// OnComplete receives the assembled artifact exactly once. A nil
	// handler just drops the bytes (tests use Artifact instead).
	OnComplete func(data []byte) error

	artifact []byte
}

func NewBufferSink(onComplete func(data []byte) error) *BufferSink {
	return &BufferSink{OnComplete: onComplete}
}

func (b *BufferSink) Write(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return types.ErrSinkClosed
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	b.chunks = append(b.chunks, buf)
	return nil
}

func (b *BufferSink) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.artifact = bytes.Join(b.chunks, nil)
	b.chunks = nil
	handler := b.OnComplete
	data := b.artifact
	b.mu.Unlock()

	if handler != nil {
		return handler(data)
	}
	return nil
}

func (b *BufferSink) Abort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.chunks = nil
	b.artifact = nil
}

// Artifact returns the assembled bytes after Close. Nil before that.
func (b *BufferSink) Artifact() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.artifact
}

// Size reports the bytes buffered or assembled so far.
func (b *BufferSink) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.artifact != nil {
		return int64(len(b.artifact))
	}
	var n int64
	for _, c := range b.chunks {
		n += int64(len(c))
	}
	return n
}
