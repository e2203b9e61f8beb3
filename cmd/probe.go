package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/andresmejia3/blurbox/internal/utils"
	"github.com/andresmejia3/blurbox/internal/video"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe <video>",
	Short: "Show dimensions, frame rate and frame count of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		path := args[0]
		if err := utils.CheckInputFile(path); err != nil {
			return showError("Invalid input", err)
		}
		info, err := video.Probe(cmd.Context(), path)
		if err != nil {
			return showError("Failed to probe video", err)
		}
		id, err := utils.GenerateVideoID(path)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintf(w, "ID\t%s\n", id[:12])
		fmt.Fprintf(w, "SIZE\t%dx%d\n", info.Width, info.Height)
		fmt.Fprintf(w, "FPS\t%.3f\n", info.FPS)
		if info.FrameCount > 0 {
			fmt.Fprintf(w, "FRAMES\t%d (last frame %d)\n", info.FrameCount, info.FrameCount-1)
			fmt.Fprintf(w, "DURATION\t%s\n", fmtTime(info.Duration()))
		} else {
			fmt.Fprintf(w, "FRAMES\tunknown\n")
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func fmtTime(seconds float64) string {
	duration := time.Duration(seconds * float64(time.Second))
	h := int(duration.Hours())
	m := int(duration.Minutes()) % 60
	s := int(duration.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
