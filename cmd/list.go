package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hlsget/hlsget/internal/config"
	"github.com/hlsget/hlsget/internal/state"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show download history and resumable tasks",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		st, err := state.Open(config.GetDataDir())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening history: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		records, err := st.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing downloads: %v\n", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Println("No downloads yet.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSEGMENTS\tSTATUS\tUPDATED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
				shortID(r.ID), r.Title, r.Completed, r.Total,
				r.Status, r.Updated.Format("2006-01-02 15:04"))
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
