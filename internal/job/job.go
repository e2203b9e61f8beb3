// Package job describes a single blur job: one region over one frame range
// of one input video, written to one output file.
//
// Jobs can be given on the command line, loaded from YAML, or passed through
// the Redis queue as JSON.
package job

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/andresmejia3/blurbox/internal/region"
	"github.com/andresmejia3/blurbox/internal/types"
	"github.com/andresmejia3/blurbox/internal/utils"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingInput  = errors.New("job has no input path")
	ErrMissingOutput = errors.New("job has no output path")
	ErrSamePath      = errors.New("input and output paths must be different to prevent file corruption")
)

// Spec is a declarative blur job.
type Spec struct {
	Input   string        `yaml:"input" json:"input"`
	Output  string        `yaml:"output" json:"output"`
	Start   *types.Marker `yaml:"start" json:"start"`
	End     *types.Marker `yaml:"end" json:"end"`
	Width   int           `yaml:"width" json:"width"`
	Height  int           `yaml:"height" json:"height"`
	Codec   string        `yaml:"codec,omitempty" json:"codec,omitempty"`
	Quality int           `yaml:"quality,omitempty" json:"quality,omitempty"`
}

// Load reads a YAML job file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks everything that can be checked without opening the video.
// Frame bounds and the region itself are checked once the video is probed.
func (s *Spec) Validate() error {
	if s.Input == "" {
		return ErrMissingInput
	}
	if s.Output == "" {
		return ErrMissingOutput
	}
	// Compare against the path that will actually be written.
	if utils.SamePath(s.Input, utils.WithDefaultExt(s.Output, ".mp4")) {
		return ErrSamePath
	}
	if s.Start == nil || s.End == nil {
		return region.ErrMissingCoordinates
	}
	if s.Width <= 0 || s.Height <= 0 {
		return region.ErrInvalidDimensions
	}
	if s.Start.Frame > s.End.Frame {
		return region.ErrFrameOrder
	}
	if s.Quality < 0 || s.Quality > 31 {
		return fmt.Errorf("quality must be between 1 and 31, got %d", s.Quality)
	}
	return nil
}

// Selection converts the job into the region package's input.
func (s *Spec) Selection() region.Selection {
	return region.Selection{Start: s.Start, End: s.End, Width: s.Width, Height: s.Height}
}

// ParseMarker parses "X,Y@FRAME", e.g. "120,80@15".
func ParseMarker(v string) (*types.Marker, error) {
	coords, frame, ok := strings.Cut(strings.TrimSpace(v), "@")
	if !ok {
		return nil, fmt.Errorf("invalid marker %q: expected X,Y@FRAME", v)
	}
	xs, ys, ok := strings.Cut(coords, ",")
	if !ok {
		return nil, fmt.Errorf("invalid marker %q: expected X,Y@FRAME", v)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return nil, fmt.Errorf("invalid marker x %q: %w", xs, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return nil, fmt.Errorf("invalid marker y %q: %w", ys, err)
	}
	f, err := strconv.Atoi(strings.TrimSpace(frame))
	if err != nil {
		return nil, fmt.Errorf("invalid marker frame %q: %w", frame, err)
	}
	if x < 0 || y < 0 || f < 0 {
		return nil, fmt.Errorf("invalid marker %q: values must not be negative", v)
	}
	return &types.Marker{X: x, Y: y, Frame: f}, nil
}
