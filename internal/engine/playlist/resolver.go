// Package playlist resolves an M3U8 manifest URL into a download Task.
// Master playlists are followed to their best variant; media playlists
// yield the ordered segment list plus encryption metadata.
package playlist

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/grafov/m3u8"
	"github.com/vfaronov/httpheader"

	"github.com/hlsget/hlsget/internal/engine/types"
	"github.com/hlsget/hlsget/internal/utils"
)

// Resolver turns manifest URLs into Tasks. The HTTP client is owned by
// the caller and shared with the segment fetcher.
type Resolver struct {
	Client  *http.Client
	Runtime *types.RuntimeConfig
}

func NewResolver(client *http.Client, runtime *types.RuntimeConfig) *Resolver {
	return &Resolver{Client: client, Runtime: runtime}
}

// Resolve fetches the manifest at rawurl, follows master playlists down to
// a media playlist (depth-bounded) and returns the Task describing it.
func (r *Resolver) Resolve(ctx context.Context, rawurl string) (*types.Task, error) {
	return r.resolve(ctx, rawurl, 0)
}

func (r *Resolver) resolve(ctx context.Context, rawurl string, depth int) (*types.Task, error) {
	if depth >= types.MaxPlaylistDepth {
		return nil, types.ErrPlaylistTooDeep
	}

	base, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("parse manifest url: %w", err)
	}

	body, err := r.fetchManifest(ctx, rawurl)
	if err != nil {
		return nil, err
	}

	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("#EXTM3U")) {
		return nil, types.ErrInvalidPlaylist
	}

	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidPlaylist, err)
	}

	switch listType {
	case m3u8.MASTER:
		master := pl.(*m3u8.MasterPlaylist)
		variantURL, err := pickVariant(master, base)
		if err != nil {
			return nil, err
		}
		utils.Debug("playlist: master %s -> variant %s (depth %d)", rawurl, variantURL, depth)
		return r.resolve(ctx, variantURL, depth+1)
	case m3u8.MEDIA:
		return r.buildTask(ctx, rawurl, base, pl.(*m3u8.MediaPlaylist))
	default:
		return nil, types.ErrInvalidPlaylist
	}
}

func (r *Resolver) fetchManifest(ctx context.Context, rawurl string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.Runtime.GetUserAgent())

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch manifest: unexpected status %d", resp.StatusCode)
	}

	if mtype, _ := httpheader.ContentType(resp.Header); mtype != "" &&
		mtype != "application/vnd.apple.mpegurl" && mtype != "application/x-mpegurl" &&
		!strings.HasPrefix(mtype, "audio/") && !strings.HasPrefix(mtype, "text/") {
		utils.Debug("playlist: suspicious content type %q for %s", mtype, rawurl)
	}

	return io.ReadAll(resp.Body)
}

// pickVariant selects the variant with the highest declared bandwidth and
// resolves its URI against the base URL.
func pickVariant(master *m3u8.MasterPlaylist, base *url.URL) (string, error) {
	var best *m3u8.Variant
	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best == nil {
		return "", types.ErrNoVariant
	}
	return resolveURL(base, best.URI), nil
}

func (r *Resolver) buildTask(ctx context.Context, rawurl string, base *url.URL, media *m3u8.MediaPlaylist) (*types.Task, error) {
	task := &types.Task{
		ID:        uuid.New().String(),
		SourceURL: rawurl,
		Title:     titleFromURL(base),
	}

	var key *m3u8.Key
	if media.Key != nil {
		key = media.Key
	}

	index := 0
	var total float64
	for _, seg := range media.Segments {
		if seg == nil || seg.URI == "" {
			continue
		}
		if seg.Key != nil && key == nil {
			key = seg.Key
		}
		task.Segments = append(task.Segments, &types.SegmentRef{
			Index:    index,
			URL:      resolveURL(base, seg.URI),
			Duration: seg.Duration,
		})
		total += seg.Duration
		index++
	}
	task.TotalDuration = total

	if len(task.Segments) == 0 {
		return nil, fmt.Errorf("%w: media playlist has no segments", types.ErrInvalidPlaylist)
	}

	if key != nil && key.Method != "" && key.Method != "NONE" {
		enc, err := r.fetchKey(ctx, base, key, media.SeqNo)
		if err != nil {
			return nil, err
		}
		task.Encryption = enc
	}

	// Size estimate for the UI only; manifests carry durations, not bytes.
	task.SizeEstimate = int64(total * float64(r.Runtime.GetAssumedBitrate()) / 8)

	// Default range covers the full segment list.
	task.RangeStart = 1
	task.RangeEnd = len(task.Segments)
	return task, nil
}

// fetchKey resolves and fetches the AES key exactly once, caching it on
// the descriptor for the task's lifetime.
func (r *Resolver) fetchKey(ctx context.Context, base *url.URL, key *m3u8.Key, seq uint64) (*types.EncryptionDescriptor, error) {
	keyURL := resolveURL(base, key.URI)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, keyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrKeyFetch, err)
	}
	req.Header.Set("User-Agent", r.Runtime.GetUserAgent())

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrKeyFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", types.ErrKeyFetch, resp.StatusCode)
	}
	keyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrKeyFetch, err)
	}

	var iv []byte
	if key.IV != "" {
		raw := strings.TrimPrefix(strings.TrimPrefix(key.IV, "0x"), "0X")
		iv, err = hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad IV %q", types.ErrKeyFetch, key.IV)
		}
	}

	return &types.EncryptionDescriptor{
		Method:   key.Method,
		KeyURI:   keyURL,
		Key:      keyBytes,
		IV:       iv,
		Sequence: seq,
	}, nil
}

// resolveURL resolves a segment or variant reference against the manifest
// URL: absolute references pass through, root-relative ones borrow the
// base's scheme and host, everything else replaces the base's last path
// segment.
func resolveURL(base *url.URL, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(refURL).String()
}

func titleFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	if ext := path.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" || name == "." || name == "/" {
		name = u.Host
	}
	return name
}
