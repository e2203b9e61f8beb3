package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/blurbox/internal/queue"
	"github.com/andresmejia3/blurbox/internal/store"
	"github.com/andresmejia3/blurbox/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Options holds shared configuration for blur and edit commands
type Options struct {
	InputPath  string
	OutputPath string
	JobFile    string
	Start      string
	End        string
	Width      int
	Height     int
	NumEngines int
	Codec      string
	Quality    int
}

var (
	// DB is the history store; nil when no database is configured
	DB *store.Store
	// dbURL is the connection string
	dbURL     string
	redisAddr string
	logLevel  string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "blurbox",
	Short:   "Blur a rectangular region of a video across a range of frames",
	Version: Version, // This enables the --version flag

	// Execute prints errors itself, skipping those already shown as a boxed report.
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		lvl, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		logrus.SetLevel(lvl)
		logrus.SetOutput(os.Stderr)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
			DB = nil
		}
	},
}

// resolveDBURL prefers the flag, then POSTGRES_* variables. Empty means history is off.
func resolveDBURL() string {
	if dbURL != "" {
		return dbURL
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
	}
	return ""
}

// connectDB opens the history store into DB. With required unset a missing
// configuration is not an error and DB stays nil.
func connectDB(ctx context.Context, required bool) error {
	url := resolveDBURL()
	if url == "" {
		if required {
			return fmt.Errorf("no database configured: pass --db or set POSTGRES_HOST")
		}
		logrus.Debug("No database configured, history disabled")
		return nil
	}
	var err error
	// Use the command's context (which will be cancellable) for the connection
	DB, err = store.New(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return nil
}

func resolveRedisAddr() string {
	if redisAddr != "" {
		return redisAddr
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

func connectQueue(ctx context.Context) (*queue.Queue, error) {
	q, err := queue.New(ctx, resolveRedisAddr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return q, nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !isReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// reportedError is an error the user has already seen through utils.ShowError.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// showError prints the boxed report for err and returns it marked as reported.
func showError(context string, err error) error {
	utils.ShowError(context, err, nil)
	return &reportedError{err: err}
}

func isReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string for job history (default: from POSTGRES_* env, disabled if unset)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address for the job queue (default: $REDIS_ADDR or localhost:6379)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}
