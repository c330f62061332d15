package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hopper/internal/ui"
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List stored threads without starting the TUI",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() {
			_ = database.Close()
		}()

		threads, err := database.LoadThreads()
		if err != nil {
			return err
		}
		if len(threads) == 0 {
			fmt.Println("No threads yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUPDATED\tTURNS\tFIRST PROMPT")
		for _, t := range threads {
			preview := ui.TruncateRunes(ui.ThreadPreview(t), 60)
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				t.ID[:8], ui.RelativeTime(t.UpdatedAt), len(t.Messages), preview)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(threadsCmd)
}
