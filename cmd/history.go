package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/andresmejia3/blurbox/internal/utils"
	"github.com/spf13/cobra"
)

var (
	historyVideo string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded blur jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := connectDB(cmd.Context(), true); err != nil {
			return showError("Database unavailable", err)
		}

		videoID := historyVideo
		if videoID != "" {
			// Accept a path as well as an ID.
			if _, err := os.Stat(videoID); err == nil {
				if id, err := utils.GenerateVideoID(videoID); err == nil {
					videoID = id
				}
			}
		}

		jobs, err := DB.ListJobs(cmd.Context(), videoID, historyLimit)
		if err != nil {
			return showError("Failed to list jobs", err)
		}

		if len(jobs) == 0 {
			fmt.Println("No blur jobs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tVIDEO\tOUTPUT\tFRAMES\tREGION\tCREATED")
		fmt.Fprintln(w, "--\t-----\t------\t------\t------\t-------")

		for _, j := range jobs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d-%d\t%v\t%s\n",
				j.ID,
				filepath.Base(j.VideoPath),
				filepath.Base(j.OutputPath),
				j.StartFrame, j.EndFrame,
				j.Rect,
				j.CreatedAt.Local().Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyVideo, "video", "", "Only show jobs for this video (path or ID)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "Maximum number of jobs to show")
	rootCmd.AddCommand(historyCmd)
}
