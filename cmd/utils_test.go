package cmd

import (
	"path/filepath"
	"testing"

	"github.com/hlsget/hlsget/internal/config"
	"github.com/hlsget/hlsget/internal/engine/types"
)

func TestParseRange(t *testing.T) {
	cases := []struct {
		in         string
		total      int
		start, end int
		wantErr    bool
	}{
		{in: "10-40", total: 100, start: 10, end: 40},
		{in: "7", total: 10, start: 7, end: 7},
		{in: "10-", total: 25, start: 10, end: 25},
		{in: "1-1", total: 1, start: 1, end: 1},
		{in: "0-5", total: 10, wantErr: true},
		{in: "6-5", total: 10, wantErr: true},
		{in: "1-11", total: 10, wantErr: true},
		{in: "abc", total: 10, wantErr: true},
		{in: "1-x", total: 10, wantErr: true},
	}
	for _, tc := range cases {
		start, end, err := parseRange(tc.in, tc.total)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseRange(%q, %d): expected error", tc.in, tc.total)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRange(%q, %d): %v", tc.in, tc.total, err)
			continue
		}
		if start != tc.start || end != tc.end {
			t.Errorf("parseRange(%q, %d) = %d-%d, want %d-%d",
				tc.in, tc.total, start, end, tc.start, tc.end)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("show/ep:1?"); got != "show_ep_1_" {
		t.Errorf("sanitizeFilename = %q", got)
	}
	if got := sanitizeFilename("  "); got != "download" {
		t.Errorf("empty title should fall back, got %q", got)
	}
	if got := sanitizeFilename("plain"); got != "plain" {
		t.Errorf("sanitizeFilename mangled a clean name: %q", got)
	}
}

func TestRetryBudget(t *testing.T) {
	if got := retryBudget(0); got != -1 {
		t.Errorf("explicit 0 should map to the no-retry sentinel, got %d", got)
	}
	if got := retryBudget(-2); got != -1 {
		t.Errorf("negative input should map to the no-retry sentinel, got %d", got)
	}
	if got := retryBudget(4); got != 4 {
		t.Errorf("positive input should pass through, got %d", got)
	}
	if (&types.RuntimeConfig{MaxRetries: retryBudget(0)}).GetMaxRetries() != 0 {
		t.Error("a zero-retry flag must yield a zero retry budget downstream")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("short input should pass through, got %q", got)
	}
}

func TestResolveIDPrefix(t *testing.T) {
	candidates := []string{
		"aaaa1111-0000-0000-0000-000000000000",
		"aabb2222-0000-0000-0000-000000000000",
		"cccc3333-0000-0000-0000-000000000000",
	}

	got, err := resolveIDPrefix("cccc", candidates)
	if err != nil || got != candidates[2] {
		t.Errorf("unique prefix: got %q, %v", got, err)
	}

	if _, err := resolveIDPrefix("aa", candidates); err == nil {
		t.Error("ambiguous prefix should error")
	}

	got, err = resolveIDPrefix("zzzz", candidates)
	if err != nil || got != "zzzz" {
		t.Errorf("no match should pass through: got %q, %v", got, err)
	}

	full := "aaaa1111-0000-0000-0000-000000000000"
	got, err = resolveIDPrefix(full, candidates[1:])
	if err != nil || got != full {
		t.Errorf("full ID should bypass matching: got %q, %v", got, err)
	}
}

func TestResolveOutputPath(t *testing.T) {
	settings := config.DefaultSettings()
	settings.General.DefaultDownloadDir = "/downloads"
	task := &types.Task{Title: "episode 1"}

	if got := resolveOutputPath("", task, settings); got != filepath.Join("/downloads", "episode 1.ts") {
		t.Errorf("default dir path = %q", got)
	}

	dir := t.TempDir()
	if got := resolveOutputPath(dir, task, settings); got != filepath.Join(dir, "episode 1.ts") {
		t.Errorf("dir flag path = %q", got)
	}

	if got := resolveOutputPath("/tmp/out.ts", task, settings); got != "/tmp/out.ts" {
		t.Errorf("explicit file path = %q", got)
	}

	task.OutputKind = types.OutputRemuxed
	if got := resolveOutputPath("", task, settings); got != filepath.Join("/downloads", "episode 1.mp4") {
		t.Errorf("remuxed path = %q", got)
	}
}
