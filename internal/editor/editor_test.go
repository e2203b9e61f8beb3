package editor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresmejia3/blurbox/internal/blur"
	"github.com/andresmejia3/blurbox/internal/region"
	"github.com/andresmejia3/blurbox/internal/types"
	"github.com/andresmejia3/blurbox/internal/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLoader struct {
	frames int
	err    error
}

func (m *memLoader) Load(_ context.Context, path string) (*video.Clip, error) {
	if m.err != nil {
		return nil, m.err
	}
	fs := make([]*image.RGBA, m.frames)
	for i := range fs {
		img := image.NewRGBA(image.Rect(0, 0, 40, 30))
		for y := 0; y < 30; y++ {
			for x := 0; x < 40; x++ {
				v := uint8(0)
				if (x+y)%2 == 0 {
					v = 255
				}
				img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
			}
		}
		fs[i] = img
	}
	return &video.Clip{Path: path, FPS: 10, Width: 40, Height: 30, Frames: fs}, nil
}

type memSaver struct {
	path string
	clip *video.Clip
}

func (m *memSaver) Save(_ context.Context, clip *video.Clip, path string) error {
	m.path, m.clip = path, clip
	return nil
}

func openSession(t *testing.T, frames int) (*Session, *memSaver) {
	t.Helper()
	saver := &memSaver{}
	s := New(&memLoader{frames: frames}, saver, blur.NewGaussian())
	require.NoError(t, s.Open(context.Background(), "in.mp4"))
	return s, saver
}

func TestRequiresVideo(t *testing.T) {
	s := New(&memLoader{}, &memSaver{}, nil)
	assert.False(t, s.Loaded())
	assert.ErrorIs(t, s.Jump(0), ErrNoVideo)
	assert.ErrorIs(t, s.JumpString("1"), ErrNoVideo)
	assert.ErrorIs(t, s.Next(), ErrNoVideo)
	assert.ErrorIs(t, s.Prev(), ErrNoVideo)
	assert.ErrorIs(t, s.ArmStart(), ErrNoVideo)
	assert.ErrorIs(t, s.ArmEnd(), ErrNoVideo)
	_, err := s.Click(1, 1)
	assert.ErrorIs(t, err, ErrNoVideo)
	_, err = s.Apply(context.Background())
	assert.ErrorIs(t, err, ErrNoVideo)
	_, err = s.Save(context.Background(), "out.mp4")
	assert.ErrorIs(t, err, ErrNoVideo)
	assert.ErrorIs(t, s.Preview("x.png"), ErrNoVideo)
	assert.Contains(t, s.Status(), "Frame: 0 / 0")
}

func TestOpenErrors(t *testing.T) {
	s := New(&memLoader{err: errors.New("corrupt")}, &memSaver{}, nil)
	assert.ErrorContains(t, s.Open(context.Background(), "x.mp4"), "corrupt")

	s = New(&memLoader{frames: 0}, &memSaver{}, nil)
	assert.ErrorIs(t, s.Open(context.Background(), "x.mp4"), video.ErrNoFrames)
	assert.False(t, s.Loaded())
}

func TestNavigation(t *testing.T) {
	s, _ := openSession(t, 5)

	require.NoError(t, s.Prev())
	assert.Equal(t, 0, s.Current(), "prev on first frame is a no-op")

	require.NoError(t, s.Jump(4))
	require.NoError(t, s.Next())
	assert.Equal(t, 4, s.Current(), "next on last frame is a no-op")

	require.NoError(t, s.Prev())
	assert.Equal(t, 3, s.Current())

	assert.ErrorIs(t, s.Jump(5), region.ErrFrameOutOfRange)
	assert.ErrorIs(t, s.Jump(-1), region.ErrFrameOutOfRange)
	assert.ErrorIs(t, s.JumpString("abc"), ErrInvalidFrameNumber)
	assert.ErrorIs(t, s.JumpString("9"), region.ErrFrameOutOfRange)
	require.NoError(t, s.JumpString(" 2 "))
	assert.Equal(t, 2, s.Current())

	assert.Contains(t, s.Status(), "Frame: 2 / 5, Time: 0.20 sec")
}

func TestMarkers(t *testing.T) {
	s, _ := openSession(t, 10)

	m, err := s.Click(5, 5)
	require.NoError(t, err)
	assert.Nil(t, m, "click with nothing armed does nothing")

	require.NoError(t, s.Jump(2))
	require.NoError(t, s.ArmStart())
	require.NoError(t, s.ArmEnd())
	assert.Equal(t, ArmedEnd, s.Armed(), "arming end replaces start")

	require.NoError(t, s.ArmStart())
	m, err = s.Click(10, 12)
	require.NoError(t, err)
	assert.Equal(t, &types.Marker{X: 10, Y: 12, Frame: 2}, m)
	assert.Equal(t, ArmedNone, s.Armed())

	require.NoError(t, s.Jump(7))
	require.NoError(t, s.ArmEnd())
	_, err = s.Click(20, 16)
	require.NoError(t, err)

	start, end := s.Markers()
	assert.Equal(t, 2, start.Frame)
	assert.Equal(t, &types.Marker{X: 20, Y: 16, Frame: 7}, end)

	status := s.Status()
	assert.Contains(t, status, "Start Coordinate: (X=10, Y=12), Frame: 2")
	assert.Contains(t, status, "End Coordinate: (X=20, Y=16), Frame: 7")

	require.NoError(t, s.ArmStart())
	_, err = s.Click(-1, 3)
	assert.Error(t, err)
	assert.Equal(t, ArmedStart, s.Armed(), "a rejected click keeps the marker armed")

	// Reopening clears everything but the size.
	s.SetSize(8, 6)
	require.NoError(t, s.Open(context.Background(), "other.mp4"))
	start, end = s.Markers()
	assert.Nil(t, start)
	assert.Nil(t, end)
	assert.Equal(t, 0, s.Current())
	assert.Equal(t, ArmedNone, s.Armed())
	w, h := s.Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 6, h)
	assert.Contains(t, s.Status(), "Start Coordinate: (X=None, Y=None), Frame: None")
}

func pick(t *testing.T, s *Session, startFrame, sx, sy, endFrame, ex, ey int) {
	t.Helper()
	require.NoError(t, s.Jump(startFrame))
	require.NoError(t, s.ArmStart())
	_, err := s.Click(sx, sy)
	require.NoError(t, err)
	require.NoError(t, s.Jump(endFrame))
	require.NoError(t, s.ArmEnd())
	_, err = s.Click(ex, ey)
	require.NoError(t, err)
}

func TestApply(t *testing.T) {
	s, _ := openSession(t, 6)

	_, err := s.Apply(context.Background())
	assert.ErrorIs(t, err, region.ErrMissingCoordinates)

	pick(t, s, 1, 10, 10, 3, 20, 14)
	_, err = s.Apply(context.Background())
	assert.ErrorIs(t, err, region.ErrInvalidDimensions)

	s.SetSize(10, 8)
	before := append([]byte(nil), s.Clip().Frames[0].Pix...)
	reg, err := s.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 8, 20, 16), reg.Rect)
	assert.Equal(t, 1, reg.StartFrame)
	assert.Equal(t, 3, reg.EndFrame)

	assert.Equal(t, before, s.Clip().Frames[0].Pix, "frames outside the range are untouched")
	assert.NotEqual(t, before, s.Clip().Frames[2].Pix)
	assert.Equal(t, before, s.Clip().Frames[4].Pix)
}

func TestApply_ReversedFrames(t *testing.T) {
	s, _ := openSession(t, 6)
	pick(t, s, 4, 10, 10, 1, 20, 14)
	s.SetSize(4, 4)
	_, err := s.Apply(context.Background())
	assert.ErrorIs(t, err, region.ErrFrameOrder)
}

func TestSave(t *testing.T) {
	s, saver := openSession(t, 2)

	path, err := s.Save(context.Background(), "result")
	require.NoError(t, err)
	assert.Equal(t, "result.mp4", path)
	assert.Equal(t, "result.mp4", saver.path)
	assert.Same(t, s.Clip(), saver.clip)

	_, err = s.Save(context.Background(), "  ")
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	s, _ := openSession(t, 2)
	dir := t.TempDir()

	png := filepath.Join(dir, "frame.png")
	require.NoError(t, s.Preview(png))
	info, err := os.Stat(png)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	require.NoError(t, s.Preview(filepath.Join(dir, "frame.jpg")))
	assert.Error(t, s.Preview(filepath.Join(dir, "frame.bmp")))
}
