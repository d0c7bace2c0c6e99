package playlist

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlsget/hlsget/internal/engine/types"
	"github.com/hlsget/hlsget/internal/testutil"
)

func newResolver() *Resolver {
	return NewResolver(http.DefaultClient, nil)
}

func TestResolve_MediaPlaylist(t *testing.T) {
	origin := testutil.NewOriginT(t, testutil.WithSegments(5))
	task, err := newResolver().Resolve(context.Background(), origin.MediaURL())
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, origin.MediaURL(), task.SourceURL)
	assert.Equal(t, "media", task.Title)
	require.Len(t, task.Segments, 5)

	for i, seg := range task.Segments {
		assert.Equal(t, i, seg.Index)
		assert.Equal(t, fmt.Sprintf("%s/seg/%d.ts", origin.Server.URL, i), seg.URL)
		assert.Equal(t, 4.0, seg.Duration)
		assert.Equal(t, types.SegmentPending, seg.Status)
	}
	assert.Equal(t, 20.0, task.TotalDuration)
	assert.Nil(t, task.Encryption)

	// Range defaults to the full list, 1-based inclusive.
	assert.Equal(t, 1, task.RangeStart)
	assert.Equal(t, 5, task.RangeEnd)

	// Estimate derives from duration and the assumed bitrate.
	want := int64(20.0 * float64(types.AssumedBitrate) / 8)
	assert.Equal(t, want, task.SizeEstimate)
}

func TestResolve_MasterPicksHighestBandwidth(t *testing.T) {
	origin := testutil.NewOriginT(t, testutil.WithSegments(4), testutil.WithMaster(3))
	task, err := newResolver().Resolve(context.Background(), origin.URL())
	require.NoError(t, err)
	require.Len(t, task.Segments, 4, "resolver must follow the best variant to its media playlist")
}

func TestResolve_EncryptedPlaylist(t *testing.T) {
	origin := testutil.NewOriginT(t, testutil.WithSegments(3), testutil.WithEncryption(false), testutil.WithMediaSequence(42))
	task, err := newResolver().Resolve(context.Background(), origin.MediaURL())
	require.NoError(t, err)

	enc := task.Encryption
	require.NotNil(t, enc, "key metadata must be captured")
	assert.Equal(t, "AES-128", enc.Method)
	assert.Equal(t, origin.Key(), enc.Key, "key must be fetched during resolution")
	assert.Empty(t, enc.IV, "playlist advertised no IV")
	assert.Equal(t, uint64(42), enc.Sequence)
}

func TestResolve_ExplicitIV(t *testing.T) {
	origin := testutil.NewOriginT(t, testutil.WithSegments(3), testutil.WithEncryption(true))
	task, err := newResolver().Resolve(context.Background(), origin.MediaURL())
	require.NoError(t, err)

	require.NotNil(t, task.Encryption)
	assert.Len(t, task.Encryption.IV, 16, "hex IV must decode to 16 bytes")
}

func TestResolve_NotAPlaylist(t *testing.T) {
	srv := testutil.NewHTTPServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not a playlist</html>"))
	}))
	defer srv.Close()

	_, err := newResolver().Resolve(context.Background(), srv.URL)
	assert.ErrorIs(t, err, types.ErrInvalidPlaylist)
}

func TestResolve_HTTPError(t *testing.T) {
	srv := testutil.NewHTTPServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newResolver().Resolve(context.Background(), srv.URL)
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrInvalidPlaylist)
}

func TestResolve_DepthGuard(t *testing.T) {
	// A master playlist pointing at itself must terminate at the depth
	// bound instead of recursing forever.
	var srv = testutil.NewHTTPServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1000000\n%s\n", r.URL.Path)
	}))
	defer srv.Close()

	_, err := newResolver().Resolve(context.Background(), srv.URL+"/loop.m3u8")
	assert.ErrorIs(t, err, types.ErrPlaylistTooDeep)
}

func TestResolve_MasterWithoutVariants(t *testing.T) {
	srv := testutil.NewHTTPServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Valid M3U8 magic but neither variants nor segments.
		w.Write([]byte("#EXTM3U\n#EXT-X-VERSION:3\n"))
	}))
	defer srv.Close()

	_, err := newResolver().Resolve(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestResolve_KeyFetchFailure(t *testing.T) {
	srv := testutil.NewHTTPServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/key.bin" {
			http.NotFound(w, r)
			return
		}
		var b bytes.Buffer
		b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:5\n")
		fmt.Fprintf(&b, "#EXT-X-KEY:METHOD=AES-128,URI=\"key.bin\"\n")
		b.WriteString("#EXTINF:4.0,\nseg0.ts\n#EXT-X-ENDLIST\n")
		w.Write(b.Bytes())
	}))
	defer srv.Close()

	_, err := newResolver().Resolve(context.Background(), srv.URL+"/media.m3u8")
	assert.ErrorIs(t, err, types.ErrKeyFetch)
}

func TestResolveURL(t *testing.T) {
	base := mustParse(t, "https://cdn.example.com/streams/show/media.m3u8")

	cases := []struct {
		ref  string
		want string
	}{
		{"seg1.ts", "https://cdn.example.com/streams/show/seg1.ts"},
		{"/root/seg1.ts", "https://cdn.example.com/root/seg1.ts"},
		{"https://other.example.com/seg1.ts", "https://other.example.com/seg1.ts"},
		{"../hi/seg1.ts", "https://cdn.example.com/streams/hi/seg1.ts"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, resolveURL(base, c.ref), "ref %q", c.ref)
	}
}

func TestTitleFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/show/episode1.m3u8", "episode1"},
		{"https://cdn.example.com/playlist.m3u8?token=abc", "playlist"},
		{"https://cdn.example.com/", "cdn.example.com"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, titleFromURL(mustParse(t, c.url)), "url %q", c.url)
	}
}

func TestResolve_UnreachableHost(t *testing.T) {
	_, err := newResolver().Resolve(context.Background(), "http://127.0.0.1:1/missing.m3u8")
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrInvalidPlaylist)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}
