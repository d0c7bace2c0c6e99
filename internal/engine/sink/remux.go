package sink

import (
	"bytes"
	"fmt"
	"os/exec"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
)

// FFmpegTranscoder re-muxes each segment by piping it through ffmpeg with
// stream copy. Container demuxing stays a black box behind the binary.
type FFmpegTranscoder struct {
	// Path to the ffmpeg binary; empty means look it up on PATH.
	Path string
	// Format is the output container passed to -f (default "mpegts").
	Format string
}

func (t *FFmpegTranscoder) binary() string {
	if t.Path != "" {
		return t.Path
	}
	return "ffmpeg"
}

func (t *FFmpegTranscoder) format() string {
	if t.Format != "" {
		return t.Format
	}
	return "mpegts"
}

// Transcode runs one segment through ffmpeg stdin→stdout.
func (t *FFmpegTranscoder) Transcode(segment []byte) ([]byte, error) {
	cmd := exec.Command(t.binary(),
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-c", "copy",
		"-f", t.format(),
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(segment)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg remux: %w (%s)", err, bytes.TrimSpace(errBuf.Bytes()))
	}
	return out.Bytes(), nil
}

// DetectExtension sniffs assembled output bytes and returns a filename
// extension. Falls back to ".ts" since HLS segments are MPEG-TS unless the
// stream says otherwise.
func DetectExtension(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ".ts"
	}
	if kind == matchers.TypeMp4 {
		return ".mp4"
	}
	return "." + kind.Extension
}
