package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/hlsget/hlsget/internal/config"
	"github.com/hlsget/hlsget/internal/engine/scheduler"
	"github.com/hlsget/hlsget/internal/engine/types"
	"github.com/hlsget/hlsget/internal/state"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused or waiting download",
	Long: `Resume picks up a task recorded by an earlier run: segments already
written to the output file are kept, everything else is refetched. The
ID may be any unambiguous prefix shown by 'hlsget list'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		isMaster, err := AcquireLock()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error acquiring lock: %v\n", err)
			os.Exit(1)
		}
		if !isMaster {
			fmt.Fprintln(os.Stderr, "Error: hlsget is already running.")
			os.Exit(1)
		}
		defer ReleaseLock()

		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			os.Setenv("HLSGET_DEBUG", "1")
		}

		settings, err := config.LoadSettings()
		if err != nil {
			settings = config.DefaultSettings()
		}

		concurrent, _ := cmd.Flags().GetInt("concurrent")
		retries, _ := cmd.Flags().GetInt("retries")
		noTUI, _ := cmd.Flags().GetBool("no-tui")

		rt := settings.ToRuntimeConfig()
		if concurrent > 0 {
			rt.Concurrency = concurrent
		}
		if cmd.Flags().Changed("retries") {
			rt.MaxRetries = retryBudget(retries)
		}

		if err := resumeByID(args[0], rt, settings, noTUI); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// resumeByID loads the snapshot behind an ID (or unambiguous prefix)
// and runs a fresh session over its remaining segments, appending to
// the existing output file.
func resumeByID(partial string, rt *types.RuntimeConfig, settings *config.Settings, noTUI bool) error {
	st, err := state.Open(config.GetDataDir())
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}

	id, err := resolveStoredID(st, partial)
	if err != nil {
		st.Close()
		return err
	}
	task, outPath, mode, err := st.LoadSnapshot(id)
	st.Close()
	if err != nil {
		return fmt.Errorf("no resumable state for %s: %w", shortID(id), err)
	}

	// Failures from the previous run get a fresh retry budget.
	scheduler.ResetFailed(task)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return runTask(ctx, task, outPath, runOptions{
		mode:     mode,
		noTUI:    noTUI,
		appendTo: true,
		runtime:  rt,
		settings: settings,
	})
}

// latestResumableID returns the newest paused or waiting download, if any.
func latestResumableID() (string, bool) {
	st, err := state.Open(config.GetDataDir())
	if err != nil {
		return "", false
	}
	defer st.Close()

	records, err := st.List()
	if err != nil {
		return "", false
	}
	for _, r := range records {
		if r.Status == state.StatusPaused || r.Status == state.StatusWaiting {
			return r.ID, true
		}
	}
	return "", false
}

// resolveStoredID expands an ID prefix against the history store.
func resolveStoredID(st *state.Store, partial string) (string, error) {
	records, err := st.List()
	if err != nil {
		return partial, nil
	}
	candidates := make([]string, 0, len(records))
	for _, r := range records {
		candidates = append(candidates, r.ID)
	}
	return resolveIDPrefix(partial, candidates)
}

func init() {
	resumeCmd.Flags().IntP("concurrent", "c", 0, "Number of concurrent segment downloads")
	resumeCmd.Flags().IntP("retries", "r", 0, "Retry budget per segment")
	resumeCmd.Flags().Bool("no-tui", false, "Plain line output instead of the interactive UI")
	resumeCmd.Flags().BoolP("verbose", "v", false, "Write debug output to debug.log")
	rootCmd.AddCommand(resumeCmd)
}
