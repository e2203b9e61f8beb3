package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/andresmejia3/blurbox/internal/blur"
	"github.com/andresmejia3/blurbox/internal/editor"
	"github.com/andresmejia3/blurbox/internal/pipeline"
	"github.com/andresmejia3/blurbox/internal/region"
	"github.com/andresmejia3/blurbox/internal/store"
	"github.com/andresmejia3/blurbox/internal/utils"
	"github.com/andresmejia3/blurbox/internal/video"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var editOpts Options

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Interactive blur session over one video",
	Long: `Open a video in memory, step through its frames, pick a start and an end
coordinate, enter a rectangle size, apply the blur and save.

Type "help" at the prompt for the list of commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := connectDB(cmd.Context(), false); err != nil {
			return showError("Database unavailable", err)
		}
		if editOpts.NumEngines < 1 {
			editOpts.NumEngines = 1
		}

		ff := &editor.FFmpeg{Codec: editOpts.Codec, Quality: editOpts.Quality, Progress: os.Stderr}
		sess := editor.New(ff, ff, blur.Default())
		sess.Engines = editOpts.NumEngines

		r := newREPL(sess, os.Stdin, os.Stdout)
		if DB != nil {
			r.recorder = DB
		}
		if editOpts.InputPath != "" {
			r.exec(cmd.Context(), "open "+editOpts.InputPath)
		}
		return r.run(cmd.Context())
	},
}

func init() {
	editCmd.Flags().StringVarP(&editOpts.InputPath, "input", "i", "", "Video to open on start")
	editCmd.Flags().IntVarP(&editOpts.NumEngines, "engines", "e", 1, "Number of frames blurred in parallel")
	editCmd.Flags().StringVar(&editOpts.Codec, "codec", video.DefaultCodec, "ffmpeg video encoder used on save")
	editCmd.Flags().IntVarP(&editOpts.Quality, "quality", "q", 0, "ffmpeg -q:v used on save (0 keeps the codec default)")
	rootCmd.AddCommand(editCmd)
}

const editHelp = `Commands:
  open PATH        load a video (resets position and coordinates)
  info             show frame, time, coordinates and size
  jump N           go to frame N
  next, prev       step one frame
  start [X Y]      arm the start coordinate, or set it directly on the current frame
  end [X Y]        arm the end coordinate, or set it directly on the current frame
  click X Y        set the armed coordinate on the current frame
  size W H         set the rectangle width and height
  apply            blur the region over the selected frame range
  preview PATH     write the current frame to a .png or .jpg
  save PATH        export the video (.mp4 added when no extension)
  help             show this text
  quit             leave without saving`

var errQuit = errors.New("quit")

// repl drives an editor.Session from line-oriented text commands.
type repl struct {
	sess     *editor.Session
	in       *bufio.Scanner
	out      io.Writer
	recorder pipeline.Recorder

	source  string
	applied []region.Region
}

func newREPL(sess *editor.Session, in io.Reader, out io.Writer) *repl {
	return &repl{sess: sess, in: bufio.NewScanner(in), out: out}
}

func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, "🎬 blurbox editor. Type \"help\" for commands.")
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(r.out, "> ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}
		if err := r.exec(ctx, r.in.Text()); errors.Is(err, errQuit) {
			return nil
		}
	}
}

// exec runs one command line. Errors are reported to out; only errQuit is returned.
func (r *repl) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch name {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		fmt.Fprintln(r.out, editHelp)
	case "open":
		err = r.open(ctx, strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0])))
	case "info", "status":
		fmt.Fprintln(r.out, r.sess.Status())
	case "jump", "goto":
		if len(args) != 1 {
			err = errors.New("usage: jump N")
			break
		}
		if err = r.sess.JumpString(args[0]); err == nil {
			r.frameLine()
		}
	case "next", "n":
		if err = r.sess.Next(); err == nil {
			r.frameLine()
		}
	case "prev", "p":
		if err = r.sess.Prev(); err == nil {
			r.frameLine()
		}
	case "start":
		err = r.mark(args, r.sess.ArmStart, "start")
	case "end":
		err = r.mark(args, r.sess.ArmEnd, "end")
	case "click":
		err = r.click(args)
	case "size":
		err = r.size(args)
	case "apply":
		err = r.apply(ctx)
	case "preview":
		if len(args) != 1 {
			err = errors.New("usage: preview PATH")
			break
		}
		if err = r.sess.Preview(args[0]); err == nil {
			fmt.Fprintf(r.out, "🖼️  Wrote frame %d to %s\n", r.sess.Current(), args[0])
		}
	case "save":
		err = r.save(ctx, strings.Join(args, " "))
	default:
		err = fmt.Errorf("unknown command %q (try \"help\")", name)
	}

	if err != nil {
		fmt.Fprintf(r.out, "❌ Error: %v\n", err)
	}
	return nil
}

func (r *repl) open(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("usage: open PATH")
	}
	if err := r.sess.Open(ctx, path); err != nil {
		return err
	}
	r.source = path
	r.applied = nil
	c := r.sess.Clip()
	fmt.Fprintf(r.out, "📂 Opened %s: %dx%d, %d frame(s) at %.2f fps\n", path, c.Width, c.Height, c.Len(), c.FPS)
	return nil
}

func (r *repl) frameLine() {
	fmt.Fprintf(r.out, "Frame: %d / %d, Time: %.2f sec\n", r.sess.Current(), r.sess.Total(), r.sess.Clip().Timestamp(r.sess.Current()))
}

// mark arms a coordinate, or with X Y given arms and clicks in one step.
func (r *repl) mark(args []string, arm func() error, label string) error {
	if len(args) != 0 && len(args) != 2 {
		return fmt.Errorf("usage: %s [X Y]", label)
	}
	if err := arm(); err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Fprintf(r.out, "🎯 Click to set the %s coordinate on frame %d\n", label, r.sess.Current())
		return nil
	}
	return r.click(args)
}

func (r *repl) click(args []string) error {
	x, y, err := parsePair(args, "click X Y")
	if err != nil {
		return err
	}
	m, err := r.sess.Click(x, y)
	if err != nil {
		return err
	}
	if m == nil {
		fmt.Fprintln(r.out, "Nothing armed; use start or end first")
		return nil
	}
	fmt.Fprintf(r.out, "📍 %s\n", m)
	return nil
}

func (r *repl) size(args []string) error {
	w, h, err := parsePair(args, "size W H")
	if err != nil {
		return err
	}
	r.sess.SetSize(w, h)
	fmt.Fprintf(r.out, "Size: %dx%d\n", w, h)
	return nil
}

func (r *repl) apply(ctx context.Context) error {
	reg, err := r.sess.Apply(ctx)
	if err != nil {
		return err
	}
	r.applied = append(r.applied, reg)
	fmt.Fprintf(r.out, "🌫️  Blurred %s\n", reg)
	return nil
}

func (r *repl) save(ctx context.Context, path string) error {
	if r.source != "" && path != "" && utils.SamePath(r.source, utils.WithDefaultExt(path, ".mp4")) {
		return errors.New("refusing to overwrite the source video")
	}
	out, err := r.sess.Save(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "💾 Saved %s\n", out)
	r.record(ctx, out)
	return nil
}

// record stores every region applied since open. Failures are logged, not fatal.
func (r *repl) record(ctx context.Context, output string) {
	if r.recorder == nil || len(r.applied) == 0 {
		return
	}
	id, err := utils.GenerateVideoID(r.source)
	if err != nil {
		logrus.WithError(err).Warn("Could not fingerprint source video, history not recorded")
		return
	}
	c := r.sess.Clip()
	err = r.recorder.EnsureVideo(ctx, store.Video{
		ID: id, Path: r.source, Width: c.Width, Height: c.Height, FPS: c.FPS, FrameCount: c.Len(),
	})
	if err != nil {
		logrus.WithError(err).Warn("Failed to record video")
		return
	}
	for _, reg := range r.applied {
		_, err := r.recorder.InsertJob(ctx, store.Job{
			VideoID:    id,
			OutputPath: output,
			StartFrame: reg.StartFrame,
			EndFrame:   reg.EndFrame,
			Rect:       reg.Rect,
			KernelSize: blur.KernelSize,
			Filter:     blur.Default().String(),
		})
		if err != nil {
			logrus.WithError(err).Warn("Failed to record blur job")
			return
		}
	}
	r.applied = nil
}

func parsePair(args []string, usage string) (int, int, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("usage: %s", usage)
	}
	a, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%q is not a number", args[0])
	}
	b, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%q is not a number", args[1])
	}
	return a, b, nil
}
