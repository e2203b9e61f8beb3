package video

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/andresmejia3/blurbox/internal/utils"
	"github.com/sirupsen/logrus"
)

// DefaultCodec matches the mp4v fourcc.
const DefaultCodec = "mpeg4"

// EncodeOptions tunes the output file.
type EncodeOptions struct {
	Codec   string
	Quality int // ffmpeg -q:v, 0 leaves the codec default
	OnFrame func(int)
}

func encoderArgs(path string, w, h int, fps float64, opts EncodeOptions) []string {
	codec := opts.Codec
	if codec == "" {
		codec = DefaultCodec
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", w, h),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-an",
		"-c:v", codec,
	}
	if opts.Quality > 0 {
		args = append(args, "-q:v", strconv.Itoa(opts.Quality))
	}
	args = append(args, "-pix_fmt", "yuv420p", path)
	return args
}

// Encode writes every frame of clip to path at the clip's frame rate.
// The output size is taken from the first frame.
func Encode(ctx context.Context, clip *Clip, path string, opts EncodeOptions) error {
	if clip == nil || clip.Len() == 0 {
		return ErrNoFrames
	}
	if clip.Path != "" && utils.SamePath(clip.Path, path) {
		return fmt.Errorf("input and output paths must be different to prevent file corruption")
	}
	bounds := clip.Frames[0].Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	cmd := utils.NewSafeCommand(ctx, "ffmpeg", encoderArgs(path, w, h, clip.FPS, opts)...)
	in, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create encoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return newProcessError("failed to start encoder", err, cmd)
	}

	if err := WriteFrames(in, clip, opts.OnFrame); err != nil {
		in.Close()
		_ = cmd.Wait()
		return newProcessError("encoding failed", err, cmd)
	}
	in.Close()
	if err := cmd.Wait(); err != nil {
		return newProcessError("encoder process failed", err, cmd)
	}

	logrus.WithFields(logrus.Fields{
		"path":   path,
		"frames": clip.Len(),
		"codec":  opts.Codec,
	}).Debug("Encoded video")
	return nil
}

// WriteFrames streams the clip as packed RGBA rows.
func WriteFrames(wr io.Writer, clip *Clip, onFrame func(int)) error {
	first := clip.Frames[0].Bounds()
	for i, f := range clip.Frames {
		b := f.Bounds()
		if b.Dx() != first.Dx() || b.Dy() != first.Dy() {
			return fmt.Errorf("frame %d is %dx%d, expected %dx%d", i, b.Dx(), b.Dy(), first.Dx(), first.Dy())
		}
		rowLen := b.Dx() * 4
		if f.Stride == rowLen {
			if _, err := wr.Write(f.Pix[:rowLen*b.Dy()]); err != nil {
				return err
			}
		} else {
			for y := 0; y < b.Dy(); y++ {
				off := y * f.Stride
				if _, err := wr.Write(f.Pix[off : off+rowLen]); err != nil {
					return err
				}
			}
		}
		if onFrame != nil {
			onFrame(i)
		}
	}
	return nil
}
