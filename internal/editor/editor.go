// Package editor is an interactive editing session over one in-memory video.
//
// A session mirrors what a user does by hand: open a file, move between
// frames, pick a start and an end coordinate (each on whatever frame is
// current when it is picked), enter a rectangle size, apply the blur and save.
// Blurring mutates the in-memory frames, so applying twice compounds.
package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andresmejia3/blurbox/internal/blur"
	"github.com/andresmejia3/blurbox/internal/region"
	"github.com/andresmejia3/blurbox/internal/types"
	"github.com/andresmejia3/blurbox/internal/utils"
	"github.com/andresmejia3/blurbox/internal/video"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoVideo            = errors.New("no video loaded")
	ErrInvalidFrameNumber = errors.New("invalid frame number")
)

// Loader decodes a whole video into memory.
type Loader interface {
	Load(ctx context.Context, path string) (*video.Clip, error)
}

// Saver writes a clip to disk.
type Saver interface {
	Save(ctx context.Context, clip *video.Clip, path string) error
}

// Armed is the marker the next click will set.
type Armed int

const (
	ArmedNone Armed = iota
	ArmedStart
	ArmedEnd
)

// Session is the editor state. It is not safe for concurrent use.
type Session struct {
	loader Loader
	saver  Saver
	filter blur.Filter

	// Engines bounds how many frames Apply blurs at once.
	Engines int
	// OnBlurFrame is forwarded to blur.ApplyRange.
	OnBlurFrame func(int)

	clip    *video.Clip
	current int
	armed   Armed
	start   *types.Marker
	end     *types.Marker
	width   int
	height  int
}

// New creates an empty session.
func New(loader Loader, saver Saver, filter blur.Filter) *Session {
	if filter == nil {
		filter = blur.Default()
	}
	return &Session{loader: loader, saver: saver, filter: filter, Engines: 1}
}

// Open loads path and resets the frame position and all selections.
// The rectangle size is kept, like the size fields of a form.
func (s *Session) Open(ctx context.Context, path string) error {
	clip, err := s.loader.Load(ctx, path)
	if err != nil {
		return err
	}
	if clip.Len() == 0 {
		return video.ErrNoFrames
	}
	s.clip = clip
	s.current = 0
	s.armed = ArmedNone
	s.start = nil
	s.end = nil
	logrus.WithFields(logrus.Fields{"path": path, "frames": clip.Len()}).Debug("Session opened video")
	return nil
}

// Loaded reports whether a video is open.
func (s *Session) Loaded() bool {
	return s.clip != nil
}

func (s *Session) Clip() *video.Clip {
	return s.clip
}

// Current returns the index of the frame being looked at.
func (s *Session) Current() int {
	return s.current
}

func (s *Session) Total() int {
	if s.clip == nil {
		return 0
	}
	return s.clip.Len()
}

func (s *Session) Armed() Armed {
	return s.armed
}

// Markers returns the start and end markers; nil when unset.
func (s *Session) Markers() (start, end *types.Marker) {
	return s.start, s.end
}

// Size returns the rectangle size entered so far.
func (s *Session) Size() (w, h int) {
	return s.width, s.height
}

// Jump moves to frame n.
func (s *Session) Jump(n int) error {
	if s.clip == nil {
		return ErrNoVideo
	}
	if n < 0 || n >= s.clip.Len() {
		return fmt.Errorf("%w: %d not in [0, %d)", region.ErrFrameOutOfRange, n, s.clip.Len())
	}
	s.current = n
	return nil
}

// JumpString parses v as a frame number and jumps to it.
func (s *Session) JumpString(v string) error {
	if s.clip == nil {
		return ErrNoVideo
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidFrameNumber, v)
	}
	return s.Jump(n)
}

// Next moves one frame forward; it does nothing on the last frame.
func (s *Session) Next() error {
	if s.clip == nil {
		return ErrNoVideo
	}
	if s.current < s.clip.Len()-1 {
		s.current++
	}
	return nil
}

// Prev moves one frame back; it does nothing on the first frame.
func (s *Session) Prev() error {
	if s.clip == nil {
		return ErrNoVideo
	}
	if s.current > 0 {
		s.current--
	}
	return nil
}

// ArmStart makes the next Click set the start marker.
func (s *Session) ArmStart() error {
	if s.clip == nil {
		return ErrNoVideo
	}
	s.armed = ArmedStart
	return nil
}

// ArmEnd makes the next Click set the end marker.
func (s *Session) ArmEnd() error {
	if s.clip == nil {
		return ErrNoVideo
	}
	s.armed = ArmedEnd
	return nil
}

// Click records (x, y) on the current frame for whichever marker is armed.
// It returns the marker that was set, or nil when nothing was armed.
func (s *Session) Click(x, y int) (*types.Marker, error) {
	if s.clip == nil {
		return nil, ErrNoVideo
	}
	if x < 0 || y < 0 {
		return nil, fmt.Errorf("coordinates must not be negative: (%d, %d)", x, y)
	}
	m := &types.Marker{X: x, Y: y, Frame: s.current}
	switch s.armed {
	case ArmedStart:
		s.start = m
	case ArmedEnd:
		s.end = m
	default:
		return nil, nil
	}
	s.armed = ArmedNone
	return m, nil
}

// SetSize stores the rectangle size. It is validated on Apply.
func (s *Session) SetSize(w, h int) {
	s.width, s.height = w, h
}

// Selection is the current state as region input.
func (s *Session) Selection() region.Selection {
	return region.Selection{Start: s.start, End: s.end, Width: s.width, Height: s.height}
}

// Apply blurs the selected region across the selected frame range in memory.
func (s *Session) Apply(ctx context.Context) (region.Region, error) {
	if s.clip == nil {
		return region.Region{}, ErrNoVideo
	}
	b := s.clip.Frames[0].Bounds()
	reg, err := s.Selection().Resolve(b.Dx(), b.Dy(), s.clip.Len())
	if err != nil {
		return region.Region{}, err
	}
	logrus.WithField("region", reg.String()).Info("Applying blur")
	err = blur.ApplyRange(ctx, s.clip.Frames, reg, s.filter, blur.RangeOptions{
		Engines: s.Engines,
		OnFrame: s.OnBlurFrame,
	})
	if err != nil {
		return region.Region{}, err
	}
	return reg, nil
}

// Save writes every frame to path; ".mp4" is added when path has no extension.
func (s *Session) Save(ctx context.Context, path string) (string, error) {
	if s.clip == nil {
		return "", ErrNoVideo
	}
	if strings.TrimSpace(path) == "" {
		return "", errors.New("no output path given")
	}
	path = utils.WithDefaultExt(path, ".mp4")
	if err := s.saver.Save(ctx, s.clip, path); err != nil {
		return "", err
	}
	return path, nil
}

// Preview writes the current frame to an image file (PNG unless the
// extension says JPEG).
func (s *Session) Preview(path string) error {
	if s.clip == nil {
		return ErrNoVideo
	}
	return WriteImage(path, s.clip.Frames[s.current])
}

// WriteImage saves img as PNG or JPEG depending on the extension of path.
func WriteImage(path string, img image.Image) error {
	enc := imgio.PNGEncoder()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		enc = imgio.JPEGEncoder(95)
	case ".png":
	default:
		return fmt.Errorf("unsupported image extension %q (use .png or .jpg)", filepath.Ext(path))
	}
	if err := imgio.Save(path, img, enc); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Status renders the frame position and both markers.
func (s *Session) Status() string {
	var b strings.Builder
	if s.clip == nil {
		b.WriteString("Frame: 0 / 0, Time: 0.0 sec\n")
	} else {
		fmt.Fprintf(&b, "Frame: %d / %d, Time: %.2f sec\n", s.current, s.clip.Len(), s.clip.Timestamp(s.current))
	}
	fmt.Fprintf(&b, "Start Coordinate: %s\n", markerText(s.start))
	fmt.Fprintf(&b, "End Coordinate: %s\n", markerText(s.end))
	fmt.Fprintf(&b, "Size: %dx%d", s.width, s.height)
	switch s.armed {
	case ArmedStart:
		b.WriteString("\nWaiting for a click to set the start coordinate")
	case ArmedEnd:
		b.WriteString("\nWaiting for a click to set the end coordinate")
	}
	return b.String()
}

func markerText(m *types.Marker) string {
	if m == nil {
		return "(X=None, Y=None), Frame: None"
	}
	return m.String()
}
