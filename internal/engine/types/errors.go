package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPlaylist means the fetched manifest is not an M3U8 playlist.
	ErrInvalidPlaylist = errors.New("invalid playlist: missing #EXTM3U header")
	// ErrNoVariant means a master playlist listed no usable stream variant.
	ErrNoVariant = errors.New("master playlist has no usable variant")
	// ErrPlaylistTooDeep means master playlists kept pointing at further
	// master playlists past the recursion guard.
	ErrPlaylistTooDeep = errors.New("playlist resolution exceeded depth limit")
	// ErrKeyFetch means the AES key referenced by the playlist is unreachable.
	ErrKeyFetch = errors.New("encryption key fetch failed")
	// ErrSinkClosed reports a write to an already closed sink.
	ErrSinkClosed = errors.New("sink already closed")
)

// SegmentFetchError is the transient per-segment failure recorded after the
// retry budget is exhausted. It never aborts the run on its own.
type SegmentFetchError struct {
	Index    int
	Attempts int
	Err      error
}

func (e *SegmentFetchError) Error() string {
	return fmt.Sprintf("segment %d failed after %d attempts: %v", e.Index, e.Attempts, e.Err)
}

func (e *SegmentFetchError) Unwrap() error { return e.Err }

// WriteError wraps a sink rejection. Write errors are always fatal to the
// session and never retried; a broken writer cannot be trusted to recover.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "sink write: " + e.Err.Error() }

func (e *WriteError) Unwrap() error { return e.Err }

// IsWriteError reports whether err is (or wraps) a sink write failure.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
