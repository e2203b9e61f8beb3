package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/andresmejia3/blurbox/internal/utils"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoFrames means the decoder produced nothing.
	ErrNoFrames = errors.New("video contains no decodable frames")
	// ErrTruncatedFrame means the raw stream ended in the middle of a frame.
	ErrTruncatedFrame = errors.New("raw stream ended mid-frame")
)

// ProcessError carries the stderr of a failed ffmpeg child.
type ProcessError struct {
	Stage  string
	Err    error
	Stderr string
}

func (e *ProcessError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v\n%s", e.Stage, e.Err, e.Stderr)
}

func (e *ProcessError) Unwrap() error { return e.Err }

func newProcessError(stage string, err error, cmd *utils.SafeCommand) error {
	pe := &ProcessError{Stage: stage, Err: err}
	if cmd != nil {
		pe.Stderr = strings.TrimSpace(cmd.Stderr.String())
	}
	return pe
}

// decoderArgs makes ffmpeg emit the first video stream as packed RGBA on stdout.
// Frames keep their coded orientation so they match the size Probe reports.
func decoderArgs(path string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-noautorotate",
		"-i", path,
		"-map", "0:v:0",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-",
	}
}

// Decode loads every frame of path into memory.
// onFrame, if set, is called with the index of each frame as it arrives.
func Decode(ctx context.Context, path string, info Info, onFrame func(int)) (*Clip, error) {
	cmd := utils.NewSafeCommand(ctx, "ffmpeg", decoderArgs(path)...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, newProcessError("failed to start decoder", err, cmd)
	}

	frames, readErr := ReadFrames(out, info.Width, info.Height, onFrame)
	if readErr != nil {
		// Stop the child so Wait does not block on a full pipe.
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, newProcessError("decoding failed", readErr, cmd)
	}
	if err := cmd.Wait(); err != nil {
		return nil, newProcessError("decoder process failed", err, cmd)
	}

	logrus.WithFields(logrus.Fields{
		"path":   path,
		"frames": len(frames),
	}).Debug("Decoded video into memory")

	return &Clip{
		Path:   path,
		FPS:    info.FPS,
		Width:  info.Width,
		Height: info.Height,
		Frames: frames,
	}, nil
}

// ReadFrames splits a raw RGBA stream into frames of w x h.
func ReadFrames(r io.Reader, w, h int, onFrame func(int)) ([]*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", w, h)
	}
	frameSize := w * h * 4
	var frames []*image.RGBA
	for {
		buf := make([]byte, frameSize)
		n, err := io.ReadFull(r, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: frame %d has %d of %d bytes", ErrTruncatedFrame, len(frames), n, frameSize)
		}
		if err != nil {
			return nil, err
		}

		// Zero-Copy: Wrap the raw bytes in an image.RGBA struct
		frames = append(frames, &image.RGBA{
			Pix:    buf,
			Stride: w * 4,
			Rect:   image.Rect(0, 0, w, h),
		})
		if onFrame != nil {
			onFrame(len(frames) - 1)
		}
	}
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	return frames, nil
}
