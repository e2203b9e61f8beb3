// Package pipeline runs a blur job end to end: probe, decode into memory,
// resolve the region, blur the frame range, encode, and record.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/andresmejia3/blurbox/internal/blur"
	"github.com/andresmejia3/blurbox/internal/job"
	"github.com/andresmejia3/blurbox/internal/region"
	"github.com/andresmejia3/blurbox/internal/store"
	"github.com/andresmejia3/blurbox/internal/utils"
	"github.com/andresmejia3/blurbox/internal/video"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// Recorder persists finished jobs. *store.Store satisfies it.
type Recorder interface {
	EnsureVideo(ctx context.Context, v store.Video) error
	InsertJob(ctx context.Context, j store.Job) (int64, error)
}

// Runner holds the collaborators of a run. The zero value is not usable; see New.
type Runner struct {
	Probe  func(ctx context.Context, path string) (video.Info, error)
	Decode func(ctx context.Context, path string, info video.Info, onFrame func(int)) (*video.Clip, error)
	Encode func(ctx context.Context, clip *video.Clip, path string, opts video.EncodeOptions) error

	Filter   blur.Filter
	Engines  int
	Recorder Recorder // optional
	Progress io.Writer
	Quiet    bool
}

// Result summarizes a finished run.
type Result struct {
	Output  string
	Region  region.Region
	Frames  int
	VideoID string
	JobID   int64 // 0 when nothing was recorded
}

// New returns a Runner wired to ffmpeg and the default blur backend.
func New() *Runner {
	return &Runner{
		Probe:    video.Probe,
		Decode:   video.Decode,
		Encode:   video.Encode,
		Filter:   blur.Default(),
		Engines:  1,
		Progress: os.Stderr,
	}
}

func (r *Runner) bar(total int64, desc string) *progressbar.ProgressBar {
	if total <= 0 {
		total = -1 // Trigger spinner mode
	}
	w := r.Progress
	if w == nil {
		w = io.Discard
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(!r.Quiet),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}

// Run executes spec.
func (r *Runner) Run(ctx context.Context, spec *job.Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := utils.CheckInputFile(spec.Input); err != nil {
		return nil, err
	}
	output := utils.WithDefaultExt(spec.Output, ".mp4")
	log := logrus.WithFields(logrus.Fields{"input": spec.Input, "output": output})

	info, err := r.Probe(ctx, spec.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", spec.Input, err)
	}

	decodeBar := r.bar(int64(info.FrameCount), "📼 Decoding")
	clip, err := r.Decode(ctx, spec.Input, info, func(int) { decodeBar.Add(1) })
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", spec.Input, err)
	}
	decodeBar.Finish()

	bounds := clip.Frames[0].Bounds()
	reg, err := spec.Selection().Resolve(bounds.Dx(), bounds.Dy(), clip.Len())
	if err != nil {
		return nil, err
	}
	log.WithField("region", reg.String()).Info("Applying blur")

	blurBar := r.bar(int64(reg.Frames()), "🌫️  Blurring")
	err = blur.ApplyRange(ctx, clip.Frames, reg, r.Filter, blur.RangeOptions{
		Engines: r.Engines,
		OnFrame: func(int) { blurBar.Add(1) },
	})
	if err != nil {
		return nil, fmt.Errorf("blur failed: %w", err)
	}
	blurBar.Finish()

	encodeBar := r.bar(int64(clip.Len()), "💾 Encoding")
	err = r.Encode(ctx, clip, output, video.EncodeOptions{
		Codec:   spec.Codec,
		Quality: spec.Quality,
		OnFrame: func(int) { encodeBar.Add(1) },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", output, err)
	}
	encodeBar.Finish()

	res := &Result{Output: output, Region: reg, Frames: reg.Frames()}
	if r.Recorder == nil {
		return res, nil
	}

	res.VideoID, err = utils.GenerateVideoID(spec.Input)
	if err != nil {
		return res, fmt.Errorf("failed to generate video ID: %w", err)
	}
	err = r.Recorder.EnsureVideo(ctx, store.Video{
		ID:         res.VideoID,
		Path:       spec.Input,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		FPS:        clip.FPS,
		FrameCount: clip.Len(),
	})
	if err != nil {
		return res, fmt.Errorf("failed to register video metadata: %w", err)
	}
	res.JobID, err = r.Recorder.InsertJob(ctx, store.Job{
		VideoID:    res.VideoID,
		OutputPath: output,
		StartFrame: reg.StartFrame,
		EndFrame:   reg.EndFrame,
		Rect:       reg.Rect,
		KernelSize: blur.KernelSize,
		Filter:     r.Filter.String(),
	})
	if err != nil {
		return res, fmt.Errorf("failed to record job: %w", err)
	}
	log.WithField("job_id", res.JobID).Debug("Recorded job")
	return res, nil
}
