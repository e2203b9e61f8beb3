package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/blurbox/internal/blur"
	"github.com/andresmejia3/blurbox/internal/editor"
	"github.com/andresmejia3/blurbox/internal/region"
	"github.com/andresmejia3/blurbox/internal/store"
	"github.com/andresmejia3/blurbox/internal/types"
	"github.com/andresmejia3/blurbox/internal/video"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSpecFlags(t *testing.T, args ...string) (*pflag.FlagSet, Options) {
	t.Helper()
	var opts Options
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addSpecFlags(fs, &opts)
	require.NoError(t, fs.Parse(args))
	return fs, opts
}

func TestBuildSpecFromFlags(t *testing.T) {
	c, opts := newSpecFlags(t, "-i", "in.mp4", "--start", "10,20@3", "--end", "30,40@9", "-W", "16", "-H", "8")

	spec, err := buildSpec(c, opts)
	require.NoError(t, err)

	assert.Equal(t, "in.mp4", spec.Input)
	assert.Equal(t, "blurred.mp4", spec.Output)
	assert.Equal(t, video.DefaultCodec, spec.Codec)
	require.NotNil(t, spec.Start)
	require.NotNil(t, spec.End)
	assert.Equal(t, 3, spec.Start.Frame)
	assert.Equal(t, 40, spec.End.Y)
	assert.Equal(t, 16, spec.Width)
	assert.Equal(t, 8, spec.Height)
	assert.NoError(t, spec.Validate())
}

func TestBuildSpecFlagsOverrideJobFile(t *testing.T) {
	jobFile := filepath.Join(t.TempDir(), "plate.yaml")
	yml := `input: src.mp4
output: dst.mp4
start: {x: 100, y: 50, frame: 0}
end: {x: 140, y: 70, frame: 24}
width: 60
height: 30
`
	require.NoError(t, os.WriteFile(jobFile, []byte(yml), 0o644))

	c, opts := newSpecFlags(t, "--job", jobFile, "-W", "90", "--end", "150,80@30")
	spec, err := buildSpec(c, opts)
	require.NoError(t, err)

	assert.Equal(t, "src.mp4", spec.Input)
	assert.Equal(t, "dst.mp4", spec.Output, "unset flag must not replace the file's output")
	assert.Equal(t, 90, spec.Width)
	assert.Equal(t, 30, spec.Height)
	assert.Equal(t, 100, spec.Start.X)
	assert.Equal(t, 30, spec.End.Frame)
	assert.Equal(t, video.DefaultCodec, spec.Codec)
}

func TestBuildSpecErrors(t *testing.T) {
	t.Run("Bad marker", func(t *testing.T) {
		c, opts := newSpecFlags(t, "-i", "in.mp4", "--start", "10;20")
		_, err := buildSpec(c, opts)
		assert.Error(t, err)
	})
	t.Run("Missing job file", func(t *testing.T) {
		c, opts := newSpecFlags(t, "--job", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := buildSpec(c, opts)
		assert.Error(t, err)
	})
}

func TestFmtTime(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00"},
		{59.9, "00:00:59"},
		{61, "00:01:01"},
		{3725, "01:02:05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fmtTime(tt.in))
	}
}

func TestResolveDBURL(t *testing.T) {
	old := dbURL
	t.Cleanup(func() { dbURL = old })

	dbURL = ""
	t.Setenv("POSTGRES_HOST", "")
	assert.Empty(t, resolveDBURL())

	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "blurbox")
	t.Setenv("POSTGRES_PORT", "")
	assert.Equal(t, "postgres://u:p@db:5432/blurbox", resolveDBURL())

	dbURL = "postgres://flag"
	assert.Equal(t, "postgres://flag", resolveDBURL())
}

func TestResolveRedisAddr(t *testing.T) {
	old := redisAddr
	t.Cleanup(func() { redisAddr = old })

	redisAddr = ""
	t.Setenv("REDIS_ADDR", "")
	assert.Equal(t, "localhost:6379", resolveRedisAddr())

	t.Setenv("REDIS_ADDR", "cache:6380")
	assert.Equal(t, "cache:6380", resolveRedisAddr())
}

func TestConfirm(t *testing.T) {
	for in, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false} {
		var out bytes.Buffer
		got := confirm(bufio.NewReader(strings.NewReader(in)), &out, "Sure?")
		assert.Equal(t, want, got, "input %q", in)
		assert.Contains(t, out.String(), "Sure? [y/N]")
	}
}

// memIO serves a fixed clip and remembers what was saved.
type memIO struct {
	clip  *video.Clip
	saved string
}

func (m *memIO) Load(ctx context.Context, path string) (*video.Clip, error) {
	return m.clip, nil
}

func (m *memIO) Save(ctx context.Context, clip *video.Clip, path string) error {
	m.saved = path
	return nil
}

type fakeRecorder struct {
	videos []store.Video
	jobs   []store.Job
}

func (f *fakeRecorder) EnsureVideo(ctx context.Context, v store.Video) error {
	f.videos = append(f.videos, v)
	return nil
}

func (f *fakeRecorder) InsertJob(ctx context.Context, j store.Job) (int64, error) {
	f.jobs = append(f.jobs, j)
	return int64(len(f.jobs)), nil
}

func testClip(n, w, h int) *video.Clip {
	frames := make([]*image.RGBA, n)
	for i := range frames {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{200, 100, 50, 255}}, image.Point{}, draw.Src)
		// A bright dot so the blur has something to spread.
		img.SetRGBA(w/2, h/2, color.RGBA{255, 255, 255, 255})
		frames[i] = img
	}
	return &video.Clip{FPS: 25, Width: w, Height: h, Frames: frames}
}

func TestEditSession(t *testing.T) {
	src := filepath.Join(t.TempDir(), "in.mp4")
	require.NoError(t, os.WriteFile(src, []byte("not really a video"), 0o644))

	mem := &memIO{clip: testClip(4, 20, 20)}
	rec := &fakeRecorder{}
	script := strings.Join([]string{
		"open " + src,
		"next",
		"start 5 5",
		"jump 2",
		"end 15 15",
		"size 6 6",
		"apply",
		"save " + src,
		"save out",
		"quit",
		"info",
	}, "\n")

	var out bytes.Buffer
	r := newREPL(editor.New(mem, mem, blur.Default()), strings.NewReader(script), &out)
	r.recorder = rec
	require.NoError(t, r.run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Opened "+src)
	assert.Contains(t, text, "Frame: 1 / 4")
	assert.Contains(t, text, "(X=5, Y=5), Frame: 1")
	assert.Contains(t, text, "(X=15, Y=15), Frame: 2")
	assert.Contains(t, text, "refusing to overwrite the source video")
	assert.Contains(t, text, "Saved out.mp4")
	assert.NotContains(t, text, "Start Coordinate", "commands after quit must not run")

	assert.Equal(t, "out.mp4", mem.saved)
	require.Len(t, rec.videos, 1)
	assert.Equal(t, 4, rec.videos[0].FrameCount)
	require.Len(t, rec.jobs, 1)
	assert.Equal(t, 1, rec.jobs[0].StartFrame)
	assert.Equal(t, 2, rec.jobs[0].EndFrame)
	assert.Equal(t, image.Rect(7, 7, 13, 13), rec.jobs[0].Rect)
	assert.Equal(t, blur.KernelSize, rec.jobs[0].KernelSize)

	// Frames outside the range are untouched.
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, mem.clip.Frames[0].RGBAAt(10, 10))
	assert.NotEqual(t, color.RGBA{255, 255, 255, 255}, mem.clip.Frames[1].RGBAAt(10, 10))
}

func TestEditErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"No video", "next", editor.ErrNoVideo.Error()},
		{"Unknown command", "blorp", "unknown command"},
		{"Bad size", "size 3", "usage: size W H"},
		{"Bad number", "jump x", editor.ErrNoVideo.Error()},
		{"Apply without video", "apply", editor.ErrNoVideo.Error()},
		{"Open without path", "open", "usage: open PATH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			mem := &memIO{clip: testClip(1, 4, 4)}
			r := newREPL(editor.New(mem, mem, nil), strings.NewReader(""), &out)
			require.NoError(t, r.exec(context.Background(), tt.line))
			assert.Contains(t, out.String(), "❌ Error:")
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestEditClickUnarmed(t *testing.T) {
	var out bytes.Buffer
	mem := &memIO{clip: testClip(2, 8, 8)}
	r := newREPL(editor.New(mem, mem, nil), strings.NewReader(""), &out)
	ctx := context.Background()
	require.NoError(t, r.exec(ctx, "open x.mp4"))
	require.NoError(t, r.exec(ctx, "click 1 1"))
	assert.Contains(t, out.String(), "Nothing armed")

	start, end := r.sess.Markers()
	assert.Nil(t, start)
	assert.Nil(t, end)
}

func TestDefaultConsumer(t *testing.T) {
	assert.Regexp(t, `^.+-\d+$`, defaultConsumer())
}

func TestPrintStatus(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printStatus(&out, types.JobStatus{
		ID:        "1700000000000-0",
		State:     types.JobFailed,
		Consumer:  "host-42",
		Error:     "no video stream",
		UpdatedAt: "2024-03-01T10:20:30Z",
	}))
	text := out.String()
	assert.Contains(t, text, "1700000000000-0")
	assert.Contains(t, text, "failed")
	assert.Contains(t, text, "host-42")
	assert.Contains(t, text, "no video stream")
	assert.Contains(t, text, time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC).Local().Format("2006-01-02 15:04:05"))

	out.Reset()
	require.NoError(t, printStatus(&out, types.JobStatus{ID: "1-0", State: types.JobQueued}))
	assert.NotContains(t, out.String(), "UPDATED")
	assert.NotContains(t, out.String(), "WORKER")
}

func TestLocalTime(t *testing.T) {
	assert.Equal(t, "not a time", localTime("not a time"))
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Local().Format("2006-01-02 15:04:05")
	assert.Equal(t, want, localTime("2024-01-02T03:04:05Z"))
}

func TestRunBlurRejectsIncompleteJob(t *testing.T) {
	fs, opts := newSpecFlags(t, "-i", "in.mp4", "-W", "10", "-H", "10")

	err := runBlur(context.Background(), fs, opts)
	assert.ErrorIs(t, err, region.ErrMissingCoordinates)
	assert.True(t, isReported(err), "the boxed report has already been shown")
}

func TestShowErrorMarksReported(t *testing.T) {
	base := errors.New("disk full")

	err := showError("Save failed", base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "disk full", err.Error())
	assert.True(t, isReported(err))
	assert.True(t, isReported(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, isReported(base))
}
