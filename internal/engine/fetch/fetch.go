// Package fetch retrieves and decrypts individual segments. A Fetcher is
// stateless apart from the shared HTTP client its owner passes in; every
// call is cancellable through its context.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/hlsget/hlsget/internal/engine/types"
)

// Fetcher fetches one segment at a time over the caller-owned client.
type Fetcher struct {
	Client  *http.Client
	Runtime *types.RuntimeConfig
}

func NewFetcher(client *http.Client, runtime *types.RuntimeConfig) *Fetcher {
	if client == nil {
		client = SharedClient()
	}
	return &Fetcher{Client: client, Runtime: runtime}
}

// SharedClient builds an http.Client tuned for many small segment fetches.
// The caller owns it and may share it across tasks; nothing in the engine
// keeps a process-wide transport singleton.
func SharedClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          types.DefaultMaxIdleConns,
			MaxIdleConnsPerHost:   types.MaxConcurrency + 2,
			IdleConnTimeout:       types.DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   types.DefaultTLSHandshakeTimeout,
			ResponseHeaderTimeout: types.DefaultResponseHeaderTimeout,
			DialContext: (&net.Dialer{
				Timeout:   types.DialTimeout,
				KeepAlive: types.KeepAliveDuration,
			}).DialContext,
		},
	}
}

// Fetch downloads one segment's bytes. Transport failures and non-2xx
// statuses are transient; the scheduler applies the retry budget.
func (f *Fetcher) Fetch(ctx context.Context, seg *types.SegmentRef) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, seg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.Runtime.GetUserAgent())

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("segment %d: unexpected status %d", seg.Index, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		// Partially transferred bytes are discarded, never persisted.
		return nil, fmt.Errorf("segment %d: %w", seg.Index, err)
	}
	return data, nil
}
