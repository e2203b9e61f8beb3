package cmd

import (
	"fmt"
	"os"

	"github.com/andresmejia3/blurbox/internal/pipeline"
	"github.com/andresmejia3/blurbox/internal/worker"
	"github.com/spf13/cobra"
)

var (
	workerConsumer string
	workerEngines  int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run queued blur jobs until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ctx := cmd.Context()

		q, err := connectQueue(ctx)
		if err != nil {
			return showError("Queue unavailable", err)
		}
		defer q.Close()

		if err := connectDB(ctx, false); err != nil {
			return showError("Database unavailable", err)
		}

		runner := pipeline.New()
		runner.Quiet = true
		runner.Engines = max(workerEngines, 1)
		if DB != nil {
			runner.Recorder = DB
		}

		consumer := workerConsumer
		if consumer == "" {
			consumer = defaultConsumer()
		}
		fmt.Fprintf(os.Stderr, "👷 Worker %s waiting for jobs (Ctrl+C to stop)...\n", consumer)
		return worker.NewQueueWorker(consumer, q, runner).Run(ctx)
	},
}

func init() {
	workerCmd.Flags().StringVar(&workerConsumer, "consumer", "", "Consumer name within the worker group (default: hostname-pid)")
	workerCmd.Flags().IntVarP(&workerEngines, "engines", "e", 1, "Number of frames blurred in parallel per job")
	rootCmd.AddCommand(workerCmd)
}

func defaultConsumer() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
