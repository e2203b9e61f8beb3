package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/andresmejia3/blurbox/internal/job"
	"github.com/andresmejia3/blurbox/internal/pipeline"
	"github.com/andresmejia3/blurbox/internal/utils"
	"github.com/andresmejia3/blurbox/internal/video"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var blurOpts Options

var blurCmd = &cobra.Command{
	Use:   "blur",
	Short: "Blur a region of a video over a frame range and export the result",
	Long: `Blur the rectangle centered between two markers over the inclusive frame
range they span. Markers are written X,Y@FRAME, e.g. --start 120,80@15.

The whole video is decoded into memory, blurred with a fixed 15x15 Gaussian
kernel and re-encoded.`,
	Example: `  blurbox blur -i in.mp4 -o out.mp4 --start 120,80@15 --end 160,100@90 -W 80 -H 60
  blurbox blur --job plate.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runBlur(cmd.Context(), cmd.Flags(), blurOpts)
	},
}

func init() {
	addSpecFlags(blurCmd.Flags(), &blurOpts)
	blurCmd.Flags().IntVarP(&blurOpts.NumEngines, "engines", "e", 1, "Number of frames blurred in parallel")
	rootCmd.AddCommand(blurCmd)
}

// addSpecFlags registers the flags that describe a job; shared by blur and submit.
func addSpecFlags(fs *pflag.FlagSet, opts *Options) {
	fs.StringVarP(&opts.InputPath, "input", "i", "", "Path to input video")
	fs.StringVarP(&opts.OutputPath, "output", "o", "blurred.mp4", "Path to output video")
	fs.StringVarP(&opts.JobFile, "job", "j", "", "YAML job file (flags given explicitly override it)")
	fs.StringVar(&opts.Start, "start", "", "Start marker as X,Y@FRAME")
	fs.StringVar(&opts.End, "end", "", "End marker as X,Y@FRAME")
	fs.IntVarP(&opts.Width, "width", "W", 0, "Width of the blurred rectangle")
	fs.IntVarP(&opts.Height, "height", "H", 0, "Height of the blurred rectangle")
	fs.StringVar(&opts.Codec, "codec", video.DefaultCodec, "ffmpeg video encoder")
	fs.IntVarP(&opts.Quality, "quality", "q", 0, "ffmpeg -q:v (1-31, lower is better; 0 keeps the codec default)")
}

func runBlur(ctx context.Context, fs *pflag.FlagSet, opts Options) error {
	// Create a cancellable context to ensure all child processes (FFmpeg)
	// are killed immediately if this function returns early (e.g. on error).
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	spec, err := buildSpec(fs, opts)
	if err != nil {
		return showError("Configuration Error", err)
	}
	if err := validateBlurFlags(spec, &opts); err != nil {
		return err
	}

	if err := connectDB(ctx, false); err != nil {
		return showError("Database unavailable", err)
	}

	runner := pipeline.New()
	runner.Engines = opts.NumEngines
	if DB != nil {
		runner.Recorder = DB
	}

	fmt.Fprintf(os.Stderr, "⚙️  Blurring with %s on %d engine(s)...\n", runner.Filter, opts.NumEngines)
	res, err := runner.Run(ctx, spec)
	if err != nil {
		return showError("Blur failed", err)
	}

	fmt.Fprintf(os.Stderr, "\n🏁 Blurred %v on %d frame(s) (%d-%d).\n", res.Region.Rect, res.Frames, res.Region.StartFrame, res.Region.EndFrame)
	if res.JobID > 0 {
		fmt.Fprintf(os.Stderr, "🗄️  Recorded as job %d.\n", res.JobID)
	}
	fmt.Println(res.Output)
	return nil
}

// buildSpec merges the job file (if any) with the flags that were set explicitly.
func buildSpec(fs *pflag.FlagSet, opts Options) (*job.Spec, error) {
	spec := &job.Spec{}
	if opts.JobFile != "" {
		loaded, err := job.Load(opts.JobFile)
		if err != nil {
			return nil, err
		}
		spec = loaded
	}
	changed := func(name string) bool {
		// Without a job file every flag applies, defaults included.
		return opts.JobFile == "" || fs.Changed(name)
	}

	if changed("input") {
		spec.Input = opts.InputPath
	}
	if changed("output") || spec.Output == "" {
		spec.Output = opts.OutputPath
	}
	if changed("start") && opts.Start != "" {
		m, err := job.ParseMarker(opts.Start)
		if err != nil {
			return nil, err
		}
		spec.Start = m
	}
	if changed("end") && opts.End != "" {
		m, err := job.ParseMarker(opts.End)
		if err != nil {
			return nil, err
		}
		spec.End = m
	}
	if changed("width") {
		spec.Width = opts.Width
	}
	if changed("height") {
		spec.Height = opts.Height
	}
	if changed("codec") || spec.Codec == "" {
		spec.Codec = opts.Codec
	}
	if changed("quality") {
		spec.Quality = opts.Quality
	}
	return spec, nil
}

func validateBlurFlags(spec *job.Spec, opts *Options) error {
	if err := spec.Validate(); err != nil {
		return showError("Configuration Error", err)
	}
	if err := utils.CheckInputFile(spec.Input); err != nil {
		return showError("Invalid input", err)
	}
	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}
	return nil
}
