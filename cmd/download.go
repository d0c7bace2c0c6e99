package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hlsget/hlsget/internal/config"
	"github.com/hlsget/hlsget/internal/engine/events"
	"github.com/hlsget/hlsget/internal/engine/fetch"
	"github.com/hlsget/hlsget/internal/engine/playlist"
	"github.com/hlsget/hlsget/internal/engine/scheduler"
	"github.com/hlsget/hlsget/internal/engine/sink"
	"github.com/hlsget/hlsget/internal/engine/types"
	"github.com/hlsget/hlsget/internal/state"
	"github.com/hlsget/hlsget/internal/tui"
	"github.com/hlsget/hlsget/internal/utils"
)

// runOptions collects everything the download path needs beyond the URL.
type runOptions struct {
	outputFlag string
	rangeFlag  string
	mode       types.OutputMode
	remux      bool
	noTUI      bool
	appendTo   bool // resume: reopen the output file and append
	runtime    *types.RuntimeConfig
	settings   *config.Settings
}

// runDownload resolves the playlist and hands the task to runTask.
func runDownload(url string, opts runOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := fetch.SharedClient()
	task, err := playlist.NewResolver(client, opts.runtime).Resolve(ctx, url)
	if err != nil {
		return err
	}
	if opts.remux {
		task.OutputKind = types.OutputRemuxed
	}
	if opts.rangeFlag != "" {
		start, end, err := parseRange(opts.rangeFlag, len(task.Segments))
		if err != nil {
			return err
		}
		task.RangeStart, task.RangeEnd = start, end
	}

	outPath := resolveOutputPath(opts.outputFlag, task, opts.settings)
	return runTask(ctx, task, outPath, opts)
}

// runTask drives one session over an already-resolved task: builds the
// sink, runs the worker pool, renders progress, and records the outcome
// in the history store.
func runTask(ctx context.Context, task *types.Task, outPath string, opts runOptions) error {
	out, transcoder, err := buildSink(task, outPath, opts)
	if err != nil {
		return err
	}

	st, err := state.Open(config.GetDataDir())
	if err != nil {
		utils.Debug("state store unavailable: %v", err)
		st = nil
	} else {
		defer st.Close()
	}
	if st != nil {
		if err := st.Upsert(state.Record{
			ID:         task.ID,
			SourceURL:  task.SourceURL,
			Title:      task.Title,
			OutputPath: outPath,
			Status:     state.StatusDownloading,
			Total:      task.RangeTotal(),
		}); err != nil {
			utils.Debug("history upsert failed: %v", err)
		}
	}

	progressCh := make(chan any, types.ProgressChannelBuffer)
	session := scheduler.NewSession(scheduler.Config{
		Task:       task,
		Mode:       opts.mode,
		Sink:       out,
		Transcoder: transcoder,
		Runtime:    opts.runtime,
		Client:     fetch.SharedClient(),
		ProgressCh: progressCh,
	})

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- session.Run(ctx)
		close(progressCh)
	}()

	if opts.noTUI {
		consumeHeadless(progressCh)
	} else {
		tui.ApplyTheme(opts.settings.General.Theme)
		m := tui.New(session, progressCh, task.Title, outPath)
		p := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			session.Cancel()
			go func() {
				for range progressCh {
				}
			}()
			<-runErrCh
			return fmt.Errorf("running UI: %w", err)
		}
		// The UI quits on the terminal event; drain anything still queued
		// so the session goroutine can finish.
		for range progressCh {
		}
	}

	runErr := <-runErrCh
	recordOutcome(st, task, outPath, opts.mode, runErr)

	if errors.Is(runErr, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Stopped. Resume with: hlsget resume %s\n", shortID(task.ID))
		return nil
	}
	if runErr != nil {
		return runErr
	}
	if opts.mode == types.ModeBuffered && task.CountStatus(types.SegmentFailed) > 0 {
		fmt.Fprintf(os.Stderr, "%d segments failed; nothing written. Retry with: hlsget resume %s\n",
			task.CountStatus(types.SegmentFailed), shortID(task.ID))
	}
	return nil
}

// buildSink picks the output path implementation for this run.
func buildSink(task *types.Task, outPath string, opts runOptions) (sink.Sink, sink.Transcoder, error) {
	var transcoder sink.Transcoder
	if task.OutputKind == types.OutputRemuxed {
		transcoder = &sink.FFmpegTranscoder{}
	}

	if opts.mode == types.ModeBuffered {
		// The artifact materializes only on a fully successful close. When
		// the user gave no explicit filename, the assembled bytes pick the
		// extension: remuxed streams come out as MP4, raw TS stays TS.
		named := opts.outputFlag != "" && !isDir(opts.outputFlag)
		b := sink.NewBufferSink(func(data []byte) error {
			p := outPath
			if !named {
				p = strings.TrimSuffix(p, filepath.Ext(p)) + sink.DetectExtension(data)
			}
			return os.WriteFile(p, data, 0o644)
		})
		return b, transcoder, nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if opts.appendTo {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(outPath, flags, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return sink.NewFileSink(f), transcoder, nil
}

// consumeHeadless logs progress events as plain lines, one state change
// per line, until the session closes the channel.
func consumeHeadless(ch <-chan any) {
	for msg := range ch {
		switch m := msg.(type) {
		case events.TaskStartedMsg:
			fmt.Printf("Started: %s (%d segments) [%s]\n", m.Title, m.Segments, shortID(m.TaskID))
		case events.SegmentFailedMsg:
			fmt.Printf("Failed: segment %d gave up after %d attempts [%s]\n", m.Index, m.Attempts, shortID(m.TaskID))
		case events.TaskWaitingMsg:
			fmt.Printf("Waiting: %d segments failed, resume to retry [%s]\n", m.FailedCount, shortID(m.TaskID))
		case events.TaskCompleteMsg:
			line := fmt.Sprintf("Completed: %s (%s)", m.Title, utils.ConvertBytesToHumanReadable(m.Written))
			if m.SkippedSegments > 0 {
				line += fmt.Sprintf(", %d segments skipped", m.SkippedSegments)
			}
			fmt.Printf("%s [%s]\n", line, shortID(m.TaskID))
		case events.TaskErrorMsg:
			fmt.Printf("Error: %s: %v [%s]\n", m.Title, m.Err, shortID(m.TaskID))
		case events.TaskCancelledMsg:
			fmt.Printf("Cancelled [%s]\n", shortID(m.TaskID))
		case events.TaskPausedMsg:
			fmt.Printf("Paused [%s]\n", shortID(m.TaskID))
		case events.TaskResumedMsg:
			fmt.Printf("Resumed [%s]\n", shortID(m.TaskID))
		}
	}
}

// recordOutcome writes the terminal status of the run to the history
// store, and snapshots the task when a later session can pick it up.
func recordOutcome(st *state.Store, task *types.Task, outPath string, mode types.OutputMode, runErr error) {
	if st == nil {
		return
	}
	rec := state.Record{
		ID:         task.ID,
		SourceURL:  task.SourceURL,
		Title:      task.Title,
		OutputPath: outPath,
		Total:      task.RangeTotal(),
		Completed:  task.CountStatus(types.SegmentSuccess),
	}

	switch {
	case runErr == nil && mode == types.ModeBuffered && task.CountStatus(types.SegmentFailed) > 0:
		rec.Status = state.StatusWaiting
	case errors.Is(runErr, context.Canceled):
		rec.Status = state.StatusPaused
	case runErr != nil:
		rec.Status = state.StatusError
	default:
		rec.Status = state.StatusDone
	}

	if rec.Status == state.StatusWaiting || rec.Status == state.StatusPaused {
		// Buffered payloads die with the process, so their segments are
		// owed a refetch; only streaming successes are already on disk.
		if mode == types.ModeBuffered {
			for _, idx := range task.RangeIndices() {
				if task.Status(idx) == types.SegmentSuccess {
					task.SetStatus(idx, types.SegmentPending)
				}
			}
			rec.Completed = 0
		}
		if err := st.SaveSnapshot(task, outPath, mode); err != nil {
			utils.Debug("snapshot save failed: %v", err)
		}
	}

	if err := st.Upsert(rec); err != nil {
		utils.Debug("history update failed: %v", err)
	}
	if rec.Status == state.StatusDone {
		if err := st.DeleteSnapshot(task.ID); err != nil {
			utils.Debug("snapshot cleanup failed: %v", err)
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
