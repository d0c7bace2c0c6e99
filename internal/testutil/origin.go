// Package testutil provides a configurable mock HLS origin for tests.
package testutil

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Origin serves a synthetic HLS tree: an optional master playlist, a media
// playlist, deterministic segment payloads and an AES key endpoint. Failure
// injection is per segment index so retry behavior can be asserted exactly.
type Origin struct {
	Server *httptest.Server

	// Configuration
	Segments        int           // number of media segments
	SegmentSize     int           // payload bytes per segment
	SegmentDuration float64       // EXTINF seconds per segment
	Master          bool          // serve /master.m3u8 pointing at the media playlist
	Variants        int           // variant count in the master playlist
	Encrypted       bool          // AES-128 encrypt segments, serve /key.bin
	ExplicitIV      bool          // advertise an IV attribute instead of sequence-derived
	MediaSequence   uint64        // EXT-X-MEDIA-SEQUENCE value
	Latency         time.Duration // artificial latency per segment request

	// failures[i] = remaining failures before segment i succeeds; -1 = always fail
	failMu   sync.Mutex
	failures map[int]int

	// Tracking
	RequestCount atomic.Int64
	hitMu        sync.Mutex
	segmentHits  map[int]int

	key []byte
	iv  []byte
}

// OriginOption configures an Origin.
type OriginOption func(*Origin)

// WithSegments sets the number of media segments.
func WithSegments(n int) OriginOption {
	return func(o *Origin) { o.Segments = n }
}

// WithSegmentSize sets the payload size per segment.
func WithSegmentSize(n int) OriginOption {
	return func(o *Origin) { o.SegmentSize = n }
}

// WithMaster serves a master playlist with n variants; the highest-bandwidth
// variant points at the media playlist, the rest at dead ends.
func WithMaster(variants int) OriginOption {
	return func(o *Origin) {
		o.Master = true
		o.Variants = variants
	}
}

// WithEncryption enables AES-128 segment encryption. When explicitIV is
// false the playlist omits the IV attribute, so clients must derive it from
// the media sequence number.
func WithEncryption(explicitIV bool) OriginOption {
	return func(o *Origin) {
		o.Encrypted = true
		o.ExplicitIV = explicitIV
	}
}

// WithMediaSequence sets the EXT-X-MEDIA-SEQUENCE value.
func WithMediaSequence(seq uint64) OriginOption {
	return func(o *Origin) { o.MediaSequence = seq }
}

// WithFailures makes segment index fail n times before succeeding.
func WithFailures(index, n int) OriginOption {
	return func(o *Origin) { o.failures[index] = n }
}

// WithAlwaysFail makes segment index fail on every request.
func WithAlwaysFail(index int) OriginOption {
	return func(o *Origin) { o.failures[index] = -1 }
}

// WithSegmentLatency adds artificial latency per segment request.
func WithSegmentLatency(d time.Duration) OriginOption {
	return func(o *Origin) { o.Latency = d }
}

// NewOrigin creates a mock HLS origin with the given options.
func NewOrigin(opts ...OriginOption) *Origin {
	o := &Origin{
		Segments:        10,
		SegmentSize:     1024,
		SegmentDuration: 4.0,
		failures:        make(map[int]int),
		segmentHits:     make(map[int]int),
		key:             []byte("0123456789abcdef"),
		iv:              []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.Server = NewHTTPServer(http.HandlerFunc(o.handle))
	return o
}

// NewOriginT creates a mock HLS origin and skips the test if binding fails.
func NewOriginT(t *testing.T, opts ...OriginOption) *Origin {
	t.Helper()
	o := NewOrigin(opts...)
	if o.Server == nil {
		t.Skip("listener unavailable")
	}
	t.Cleanup(o.Close)
	return o
}

// URL returns the playlist entry point: the master playlist when enabled,
// otherwise the media playlist.
func (o *Origin) URL() string {
	if o.Master {
		return o.Server.URL + "/master.m3u8"
	}
	return o.MediaURL()
}

// MediaURL returns the media playlist URL.
func (o *Origin) MediaURL() string {
	return o.Server.URL + "/media.m3u8"
}

// Key returns the AES key served at /key.bin.
func (o *Origin) Key() []byte {
	return o.key
}

// Close shuts down the origin.
func (o *Origin) Close() {
	if o.Server != nil {
		o.Server.Close()
	}
}

// SegmentHits reports how many times segment index was requested.
func (o *Origin) SegmentHits(index int) int {
	o.hitMu.Lock()
	defer o.hitMu.Unlock()
	return o.segmentHits[index]
}

// SegmentPayload returns the deterministic plaintext payload of a segment.
// Tests compare flushed output against concatenations of these.
func SegmentPayload(index, size int) []byte {
	out := make([]byte, size)
	for j := range out {
		out[j] = byte((index*31 + j) % 251)
	}
	return out
}

func (o *Origin) handle(w http.ResponseWriter, r *http.Request) {
	o.RequestCount.Add(1)

	path := r.URL.Path
	switch {
	case path == "/master.m3u8":
		o.serveMaster(w)
	case path == "/media.m3u8":
		o.serveMedia(w)
	case path == "/key.bin":
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(o.key)
	case strings.HasPrefix(path, "/seg/"):
		o.serveSegment(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (o *Origin) serveMaster(w http.ResponseWriter) {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	variants := o.Variants
	if variants < 1 {
		variants = 1
	}
	// Lower-bandwidth decoys first; the last (highest) variant is real.
	for i := 1; i < variants; i++ {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=640x360\n", 400_000*i)
		fmt.Fprintf(&b, "decoy%d/media.m3u8\n", i)
	}
	fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=1920x1080\n", 400_000*variants+1_000_000)
	b.WriteString("media.m3u8\n")
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Write([]byte(b.String()))
}

func (o *Origin) serveMedia(w http.ResponseWriter) {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", int(o.SegmentDuration)+1)
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", o.MediaSequence)
	if o.Encrypted {
		if o.ExplicitIV {
			fmt.Fprintf(&b, "#EXT-X-KEY:METHOD=AES-128,URI=\"%s/key.bin\",IV=0x%x\n", o.Server.URL, o.iv)
		} else {
			fmt.Fprintf(&b, "#EXT-X-KEY:METHOD=AES-128,URI=\"%s/key.bin\"\n", o.Server.URL)
		}
	}
	for i := 0; i < o.Segments; i++ {
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n", o.SegmentDuration)
		fmt.Fprintf(&b, "seg/%d.ts\n", i)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Write([]byte(b.String()))
}

func (o *Origin) serveSegment(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/seg/"), ".ts")
	index, err := strconv.Atoi(name)
	if err != nil || index < 0 || index >= o.Segments {
		http.NotFound(w, r)
		return
	}

	o.hitMu.Lock()
	o.segmentHits[index]++
	o.hitMu.Unlock()

	o.failMu.Lock()
	remaining, ok := o.failures[index]
	if ok && remaining != 0 {
		if remaining > 0 {
			o.failures[index] = remaining - 1
		}
		o.failMu.Unlock()
		http.Error(w, "simulated failure", http.StatusInternalServerError)
		return
	}
	o.failMu.Unlock()

	if o.Latency > 0 {
		time.Sleep(o.Latency)
	}

	data := SegmentPayload(index, o.SegmentSize)
	if o.Encrypted {
		data = o.encrypt(index, data)
	}
	w.Header().Set("Content-Type", "video/mp2t")
	w.Write(data)
}

// encrypt applies AES-128-CBC with PKCS#7 padding, mirroring what a real
// packager produces: explicit IV when advertised, otherwise the IV is the
// segment's sequence number big-endian in the low 8 bytes.
func (o *Origin) encrypt(index int, plain []byte) []byte {
	block, err := aes.NewCipher(o.key)
	if err != nil {
		panic(err)
	}
	iv := o.iv
	if !o.ExplicitIV {
		iv = make([]byte, aes.BlockSize)
		binary.BigEndian.PutUint64(iv[8:], o.MediaSequence+uint64(index))
	}

	pad := aes.BlockSize - len(plain)%aes.BlockSize
	padded := make([]byte, len(plain)+pad)
	copy(padded, plain)
	for i := len(plain); i < len(padded); i++ {
		padded[i] = byte(pad)
	}

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out
}
