package cmd

import (
	"context"
	"fmt"

	"github.com/andresmejia3/blurbox/internal/editor"
	"github.com/spf13/cobra"
)

var (
	snapInput  string
	snapFrame  int
	snapOutput string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Export one frame as an image, e.g. to read pixel coordinates off it",
	Example: `  blurbox snapshot -i in.mp4 -f 15 -o frame15.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSnapshot(cmd.Context(), snapInput, snapFrame, snapOutput)
	},
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapInput, "input", "i", "", "Path to input video")
	snapshotCmd.Flags().IntVarP(&snapFrame, "frame", "f", 0, "Frame number (0-based)")
	snapshotCmd.Flags().StringVarP(&snapOutput, "output", "o", "frame.png", "Image to write (.png or .jpg)")
	snapshotCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(ctx context.Context, input string, frame int, output string) error {
	if frame < 0 {
		err := fmt.Errorf("frame must not be negative: %d", frame)
		return showError("Configuration Error", err)
	}
	ff := &editor.FFmpeg{}
	clip, err := ff.Load(ctx, input)
	if err != nil {
		return showError("Failed to load video", err)
	}
	img, err := clip.Frame(frame)
	if err != nil {
		return showError("Invalid frame", err)
	}
	if err := editor.WriteImage(output, img); err != nil {
		return showError("Failed to write image", err)
	}
	fmt.Printf("🖼️  Frame %d (%.2f sec) of %s -> %s\n", frame, clip.Timestamp(frame), input, output)
	return nil
}
