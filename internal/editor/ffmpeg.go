package editor

import (
	"context"
	"io"

	"github.com/andresmejia3/blurbox/internal/utils"
	"github.com/andresmejia3/blurbox/internal/video"
	"github.com/schollz/progressbar/v3"
)

// FFmpeg loads and saves clips through ffmpeg child processes.
type FFmpeg struct {
	Codec    string
	Quality  int
	Progress io.Writer // progress bars go here; nil disables them
}

var (
	_ Loader = (*FFmpeg)(nil)
	_ Saver  = (*FFmpeg)(nil)
)

func (f *FFmpeg) bar(total int, desc string) *progressbar.ProgressBar {
	if total <= 0 {
		total = -1
	}
	w := f.Progress
	if w == nil {
		w = io.Discard
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(f.Progress != nil),
	)
}

func (f *FFmpeg) Load(ctx context.Context, path string) (*video.Clip, error) {
	if err := utils.CheckInputFile(path); err != nil {
		return nil, err
	}
	info, err := video.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	bar := f.bar(info.FrameCount, "📼 Loading")
	defer bar.Finish()
	return video.Decode(ctx, path, info, func(int) { bar.Add(1) })
}

func (f *FFmpeg) Save(ctx context.Context, clip *video.Clip, path string) error {
	bar := f.bar(clip.Len(), "💾 Saving")
	defer bar.Finish()
	return video.Encode(ctx, clip, path, video.EncodeOptions{
		Codec:   f.Codec,
		Quality: f.Quality,
		OnFrame: func(int) { bar.Add(1) },
	})
}
