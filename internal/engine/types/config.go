package types

import "time"

// Size constants
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB

	// Megabyte as float for display calculations
	Megabyte = 1024.0 * 1024.0
)

// Worker pool limits
const (
	DefaultConcurrency = 6
	MinConcurrency     = 1
	MaxConcurrency     = 16
)

// Retry policy: fixed delay, not exponential. Segment fetches are small and
// fail fast; backoff buys nothing against a flaky CDN edge.
const (
	DefaultMaxRetries = 3
	RetryDelay        = 1000 * time.Millisecond
)

// Playlist resolution
const (
	MaxPlaylistDepth = 5

	// AssumedBitrate is used for the size estimate shown in the UI when the
	// manifest carries no byte sizes. 2 Mbps is a middling SD/HD stream.
	AssumedBitrate = 2_000_000 // bits per second
)

// HTTP client tuning (shared transport owned by the caller)
const (
	DefaultMaxIdleConns          = 100
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 15 * time.Second
	DialTimeout                  = 10 * time.Second
	KeepAliveDuration            = 30 * time.Second
)

// Channel buffer sizes
const (
	ProgressChannelBuffer = 100
)

// RuntimeConfig holds dynamic settings that can override defaults.
type RuntimeConfig struct {
	Concurrency    int
	MaxRetries     int
	UserAgent      string
	AssumedBitrate int64
}

// GetConcurrency returns the configured worker count clamped to the
// supported range, or the default.
func (r *RuntimeConfig) GetConcurrency() int {
	if r == nil || r.Concurrency <= 0 {
		return DefaultConcurrency
	}
	if r.Concurrency < MinConcurrency {
		return MinConcurrency
	}
	if r.Concurrency > MaxConcurrency {
		return MaxConcurrency
	}
	return r.Concurrency
}

// GetMaxRetries returns the configured retry budget. Zero means unset
// (use the default); a negative value is an explicit zero-retry budget.
func (r *RuntimeConfig) GetMaxRetries() int {
	if r == nil || r.MaxRetries == 0 {
		return DefaultMaxRetries
	}
	if r.MaxRetries < 0 {
		return 0
	}
	return r.MaxRetries
}

// GetUserAgent returns the configured user agent or the default.
func (r *RuntimeConfig) GetUserAgent() string {
	if r == nil || r.UserAgent == "" {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return r.UserAgent
}

// GetAssumedBitrate returns the configured bitrate for size estimates.
func (r *RuntimeConfig) GetAssumedBitrate() int64 {
	if r == nil || r.AssumedBitrate <= 0 {
		return AssumedBitrate
	}
	return r.AssumedBitrate
}
