// Package sink provides the output destinations a download feeds into:
// an in-memory buffer for "hold everything then save" flows and a
// streaming writer for unbounded output. The sequencer is the only
// writer; sinks never see out-of-order data.
package sink

// Sink accepts ordered payload writes. Close finalizes and must be
// idempotent; Abort discards buffered state without finalizing.
type Sink interface {
	Write(p []byte) error
	Close() error
	Abort()
}

// Transcoder re-packages raw segment bytes into the output container.
// It is an external collaborator; the sequencer runs it as one more step
// of its serialized flush loop.
type Transcoder interface {
	Transcode(segment []byte) ([]byte, error)
}
