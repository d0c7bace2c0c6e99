package cmd

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/hlsget/hlsget/internal/config"
	"github.com/hlsget/hlsget/internal/engine/types"
)

// clipboardURL reads the clipboard and returns its content when it looks
// like a playlist URL.
func clipboardURL() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("clipboard unavailable: %w", err)
	}
	text = strings.TrimSpace(text)
	u, err := url.Parse(text)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("clipboard does not hold a URL")
	}
	return text, nil
}

// parseRange parses a 1-based inclusive segment range flag. Accepted
// forms: "10-40", a single "7", and an open "10-" meaning through the
// last segment.
func parseRange(s string, total int) (int, int, error) {
	start, end := 1, total
	var err error

	before, after, dashed := strings.Cut(s, "-")
	if before != "" {
		if start, err = strconv.Atoi(strings.TrimSpace(before)); err != nil {
			return 0, 0, fmt.Errorf("invalid range %q", s)
		}
	}
	switch {
	case !dashed:
		end = start
	case after != "":
		if end, err = strconv.Atoi(strings.TrimSpace(after)); err != nil {
			return 0, 0, fmt.Errorf("invalid range %q", s)
		}
	}

	if start < 1 || end < start {
		return 0, 0, fmt.Errorf("invalid range %q", s)
	}
	if end > total {
		return 0, 0, fmt.Errorf("range %q exceeds the playlist's %d segments", s, total)
	}
	return start, end, nil
}

// resolveOutputPath decides where the artifact goes. An explicit file
// path wins; a directory (or no flag at all) gets a name derived from
// the stream title.
func resolveOutputPath(flag string, task *types.Task, settings *config.Settings) string {
	ext := ".ts"
	if task.OutputKind == types.OutputRemuxed {
		ext = ".mp4"
	}
	name := sanitizeFilename(task.Title) + ext

	if flag == "" {
		dir := settings.General.DefaultDownloadDir
		if dir == "" {
			dir = "."
		}
		return filepath.Join(dir, name)
	}
	if info, err := os.Stat(flag); err == nil && info.IsDir() {
		return filepath.Join(flag, name)
	}
	return flag
}

// sanitizeFilename strips path separators and characters that commonly
// break filesystems or shells.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "download"
	}
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	return replacer.Replace(name)
}

// retryBudget maps an explicit --retries value onto the runtime field,
// where an unset field falls back to the default and a negative value
// means zero retries. Flag values at or below zero carry that sentinel.
func retryBudget(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

// shortID truncates a task UUID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolveIDPrefix matches a partial ID against known candidates. A
// unique prefix match resolves to the full ID; ambiguity is an error;
// no match returns the input unchanged so the caller fails with its own
// not-found error.
func resolveIDPrefix(partial string, candidates []string) (string, error) {
	if len(partial) >= 32 {
		return partial, nil
	}
	var matches []string
	for _, id := range candidates {
		if strings.HasPrefix(id, partial) {
			matches = append(matches, id)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("ambiguous ID prefix %q matches %d downloads", partial, len(matches))
	}
	return partial, nil
}
