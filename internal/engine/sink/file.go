package sink

import (
	"io"
	"os"
	"sync"

	"github.com/hlsget/hlsget/internal/engine/types"
)

// FileSink forwards each write immediately to a destination opened by the
// caller before the run starts (a file handle or any WriteCloser). It
// supports unbounded output size.
type FileSink struct {
	mu      sync.Mutex
	dst     io.WriteCloser
	written int64
	closed  bool
}

func NewFileSink(dst io.WriteCloser) *FileSink {
	return &FileSink{dst: dst}
}

func (f *FileSink) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return types.ErrSinkClosed
	}
	n, err := f.dst.Write(p)
	f.written += int64(n)
	return err
}

func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if file, ok := f.dst.(*os.File); ok {
		if err := file.Sync(); err != nil {
			return err
		}
	}
	return f.dst.Close()
}

func (f *FileSink) Abort() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.dst.Close()
}

// Written reports the bytes accepted so far.
func (f *FileSink) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}
