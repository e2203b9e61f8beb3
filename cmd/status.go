package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/andresmejia3/blurbox/internal/queue"
	"github.com/andresmejia3/blurbox/internal/types"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the state of a queued job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		q, err := connectQueue(cmd.Context())
		if err != nil {
			return showError("Queue unavailable", err)
		}
		defer q.Close()

		st, err := q.Status(cmd.Context(), args[0])
		if errors.Is(err, queue.ErrUnknownJob) {
			return fmt.Errorf("job %s not found (it may have expired)", args[0])
		}
		if err != nil {
			return showError("Failed to read job status", err)
		}
		return printStatus(os.Stdout, st)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printStatus(out io.Writer, st types.JobStatus) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "JOB\t%s\n", st.ID)
	fmt.Fprintf(w, "STATE\t%s\n", st.State)
	if st.Consumer != "" {
		fmt.Fprintf(w, "WORKER\t%s\n", st.Consumer)
	}
	if st.Error != "" {
		fmt.Fprintf(w, "ERROR\t%s\n", st.Error)
	}
	if st.UpdatedAt != "" {
		fmt.Fprintf(w, "UPDATED\t%s\n", localTime(st.UpdatedAt))
	}
	return w.Flush()
}

// localTime renders an RFC 3339 timestamp in local time, or as given if it does not parse.
func localTime(v string) string {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return v
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
