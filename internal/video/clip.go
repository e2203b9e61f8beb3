package video

import (
	"fmt"
	"image"
)

// Clip is a fully decoded video held in memory.
type Clip struct {
	Path   string
	FPS    float64
	Width  int
	Height int
	Frames []*image.RGBA
}

// Len returns the number of decoded frames.
func (c *Clip) Len() int {
	return len(c.Frames)
}

// Timestamp returns the presentation time of frame i in seconds.
func (c *Clip) Timestamp(i int) float64 {
	if c.FPS <= 0 {
		return 0
	}
	return float64(i) / c.FPS
}

// Frame returns frame i or an error when i is out of range.
func (c *Clip) Frame(i int) (*image.RGBA, error) {
	if i < 0 || i >= len(c.Frames) {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", i, len(c.Frames))
	}
	return c.Frames[i], nil
}
