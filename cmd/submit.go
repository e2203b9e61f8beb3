package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var submitOpts Options

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Queue a blur job for a worker",
	Long: `Validate a blur job and push it onto the Redis job stream. Paths are
resolved by the worker, so they must be valid on the worker's machine.`,
	Example: `  blurbox submit --job plate.yaml
  blurbox submit -i /data/in.mp4 -o /data/out.mp4 --start 120,80@15 --end 160,100@90 -W 80 -H 60`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		spec, err := buildSpec(cmd.Flags(), submitOpts)
		if err != nil {
			return showError("Configuration Error", err)
		}
		if err := spec.Validate(); err != nil {
			return showError("Configuration Error", err)
		}

		q, err := connectQueue(cmd.Context())
		if err != nil {
			return showError("Queue unavailable", err)
		}
		defer q.Close()

		id, err := q.Submit(cmd.Context(), spec)
		if err != nil {
			return showError("Failed to submit job", err)
		}
		fmt.Println(id)
		return nil
	},
}

func init() {
	addSpecFlags(submitCmd.Flags(), &submitOpts)
	rootCmd.AddCommand(submitCmd)
}
