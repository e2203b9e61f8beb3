// Package region turns a pair of picked markers plus a size into the
// rectangle and frame range that get blurred.
package region

import (
	"errors"
	"fmt"
	"image"

	"github.com/andresmejia3/blurbox/internal/types"
)

var (
	ErrMissingCoordinates = errors.New("please select both start and end coordinates")
	ErrInvalidDimensions  = errors.New("invalid rectangle dimensions")
	ErrMissingFrames      = errors.New("start or end frame is not selected")
	ErrFrameOrder         = errors.New("start frame cannot be greater than end frame")
	ErrFrameOutOfRange    = errors.New("frame number out of range")
	ErrEmptyRegion        = errors.New("region lies outside the frame")
)

// Selection is what the user has picked so far.
type Selection struct {
	Start  *types.Marker
	End    *types.Marker
	Width  int
	Height int
}

// Region is a resolved, clamped rectangle and an inclusive frame range.
type Region struct {
	Rect       image.Rectangle
	StartFrame int
	EndFrame   int
}

// Frames is the number of frames the region spans.
func (r Region) Frames() int {
	return r.EndFrame - r.StartFrame + 1
}

func (r Region) String() string {
	return fmt.Sprintf("%v over frames %d-%d", r.Rect, r.StartFrame, r.EndFrame)
}

// Center is the midpoint of the two markers.
func (s Selection) Center() image.Point {
	return image.Pt(floorDiv(s.Start.X+s.End.X, 2), floorDiv(s.Start.Y+s.End.Y, 2))
}

// Resolve validates the selection against a frameW x frameH video of total frames.
func (s Selection) Resolve(frameW, frameH, total int) (Region, error) {
	if s.Start == nil || s.End == nil {
		return Region{}, ErrMissingCoordinates
	}
	if s.Width <= 0 || s.Height <= 0 {
		return Region{}, ErrInvalidDimensions
	}
	if s.Start.Frame < 0 || s.End.Frame < 0 {
		return Region{}, ErrMissingFrames
	}
	if s.Start.Frame > s.End.Frame {
		return Region{}, ErrFrameOrder
	}
	if s.End.Frame >= total {
		return Region{}, fmt.Errorf("%w: end frame %d, video has %d frames", ErrFrameOutOfRange, s.End.Frame, total)
	}

	c := s.Center()
	halfW, halfH := s.Width/2, s.Height/2
	// Built literally: image.Rect would swap inverted corners instead of reporting them empty.
	rect := image.Rectangle{
		Min: image.Pt(max(0, c.X-halfW), max(0, c.Y-halfH)),
		Max: image.Pt(min(frameW, c.X+halfW), min(frameH, c.Y+halfH)),
	}
	if rect.Empty() {
		return Region{}, fmt.Errorf("%w: center %v size %dx%d", ErrEmptyRegion, c, s.Width, s.Height)
	}

	return Region{Rect: rect, StartFrame: s.Start.Frame, EndFrame: s.End.Frame}, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
