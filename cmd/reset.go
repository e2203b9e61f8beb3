package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	resetYes      bool
	resetPreviews string
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset job history (and optionally a preview directory)",
	Long:  "Drops the history tables. The schema is recreated on the next connection.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		reader := bufio.NewReader(os.Stdin)

		if err := connectDB(cmd.Context(), true); err != nil {
			return showError("Database unavailable", err)
		}
		if resetYes || confirm(reader, os.Stdout, "⚠️  Are you sure you want to DROP all history tables?") {
			fmt.Println("🗑️  Clearing Database...")
			if err := DB.Reset(cmd.Context()); err != nil {
				return showError("Failed to reset database", err)
			}
		}

		if resetPreviews != "" {
			if resetYes || confirm(reader, os.Stdout, fmt.Sprintf("⚠️  Are you sure you want to delete %s?", resetPreviews)) {
				fmt.Println("🗑️  Clearing Previews...")
				removeDir(resetPreviews)
			}
		}

		fmt.Println("✨ Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	resetCmd.Flags().StringVar(&resetPreviews, "previews", "", "Also delete this directory of exported preview frames")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
