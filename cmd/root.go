package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hlsget/hlsget/internal/config"
	"github.com/hlsget/hlsget/internal/engine/types"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "hlsget [url]",
	Short:   "A terminal downloader for chunked HLS streams",
	Long: `hlsget fetches an HLS playlist, downloads its media segments
concurrently, decrypts them when the stream is AES-128 protected, and
assembles a single ordered output file.

With no URL argument the clipboard is consulted, so a copied stream
link can be downloaded with a bare 'hlsget'.`,
	Version: Version,
	Args:    cobra.MaximumNArgs(1),
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

		outputFlag, _ := cmd.Flags().GetString("output")
		concurrent, _ := cmd.Flags().GetInt("concurrent")
		retries, _ := cmd.Flags().GetInt("retries")
		rangeFlag, _ := cmd.Flags().GetString("range")
		buffered, _ := cmd.Flags().GetBool("buffer")
		remux, _ := cmd.Flags().GetBool("remux")
		noTUI, _ := cmd.Flags().GetBool("no-tui")

		rt := settings.ToRuntimeConfig()
		if concurrent > 0 {
			rt.Concurrency = concurrent
		}
		if cmd.Flags().Changed("retries") {
			rt.MaxRetries = retryBudget(retries)
		}

		url := ""
		if len(args) > 0 {
			url = args[0]
		} else if settings.General.ClipboardFallback {
			if url, err = clipboardURL(); err == nil {
				fmt.Fprintf(os.Stderr, "Using clipboard URL: %s\n", url)
			}
		}
		if url == "" {
			// Nothing to start; pick up the newest interrupted task if the
			// user opted into that.
			if settings.General.AutoResume {
				if id, ok := latestResumableID(); ok {
					fmt.Fprintf(os.Stderr, "Resuming %s\n", shortID(id))
					if err := resumeByID(id, rt, settings, noTUI); err != nil {
						fmt.Fprintf(os.Stderr, "Error: %v\n", err)
						os.Exit(1)
					}
					return
				}
			}
			fmt.Fprintln(os.Stderr, "Error: a playlist URL is required")
			os.Exit(1)
		}

		opts := runOptions{
			outputFlag: outputFlag,
			rangeFlag:  rangeFlag,
			remux:      remux,
			noTUI:      noTUI,
			runtime:    rt,
			settings:   settings,
		}
		if buffered {
			opts.mode = types.ModeBuffered
		}

		if err := runDownload(url, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringP("output", "o", "", "Output file or directory (default: settings download dir)")
	rootCmd.Flags().IntP("concurrent", "c", 0, "Number of concurrent segment downloads")
	rootCmd.Flags().IntP("retries", "r", 0, "Retry budget per segment")
	rootCmd.Flags().String("range", "", "Segment range to download, 1-based inclusive (e.g. 10-40)")
	rootCmd.Flags().Bool("buffer", false, "Assemble in memory and write the file only when every segment succeeded")
	rootCmd.Flags().Bool("remux", false, "Pass segments through ffmpeg and produce an MP4 container")
	rootCmd.Flags().Bool("no-tui", false, "Plain line output instead of the interactive UI")
	rootCmd.Flags().BoolP("verbose", "v", false, "Write debug output to debug.log")
	rootCmd.SetVersionTemplate("hlsget version {{.Version}}\n")
}
