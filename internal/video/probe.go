package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/andresmejia3/blurbox/internal/utils"
	"github.com/sirupsen/logrus"
)

// ErrNoVideoStream is returned when ffprobe finds nothing to decode.
var ErrNoVideoStream = errors.New("no video stream found")

// Info describes the first video stream of a file.
type Info struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int // estimate; 0 when unknown
}

// Duration in seconds, derived from the frame estimate.
func (i Info) Duration() float64 {
	if i.FPS <= 0 {
		return 0
	}
	return float64(i.FrameCount) / i.FPS
}

type ffprobeOutput struct {
	Streams []struct {
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		RFrameRate    string `json:"r_frame_rate"`
		AvgFrameRate  string `json:"avg_frame_rate"`
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
	} `json:"streams"`
}

// Probe reads stream metadata with ffprobe.
func Probe(ctx context.Context, path string) (Info, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return Info{}, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := utils.NewSafeCommand(ctx, "ffprobe", "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate,nb_frames", "-of", "json", path)
	out, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe failed: %w (%s)", err, strings.TrimSpace(cmd.Stderr.String()))
	}

	info, err := parseProbe(out)
	if err != nil {
		return Info{}, err
	}

	if info.FrameCount == 0 {
		// Metadata missing (common for mkv/webm). Fall back to counting packets.
		info.FrameCount = countPackets(ctx, path)
	}

	logrus.WithFields(logrus.Fields{
		"path":   path,
		"width":  info.Width,
		"height": info.Height,
		"fps":    info.FPS,
		"frames": info.FrameCount,
	}).Debug("Probed video")
	return info, nil
}

func parseProbe(out []byte) (Info, error) {
	var res ffprobeOutput
	if err := json.Unmarshal(out, &res); err != nil {
		return Info{}, fmt.Errorf("ffprobe JSON parse error: %w", err)
	}
	if len(res.Streams) == 0 {
		return Info{}, ErrNoVideoStream
	}
	s := res.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return Info{}, fmt.Errorf("invalid video dimensions %dx%d", s.Width, s.Height)
	}

	fps, err := ParseFrameRate(s.RFrameRate)
	if err != nil || fps <= 0 {
		fps, err = ParseFrameRate(s.AvgFrameRate)
		if err != nil {
			return Info{}, fmt.Errorf("unable to determine frame rate: %w", err)
		}
	}

	count, _ := strconv.Atoi(s.NbFrames)
	if count < 0 {
		count = 0
	}
	return Info{Width: s.Width, Height: s.Height, FPS: fps, FrameCount: count}, nil
}

func countPackets(ctx context.Context, path string) int {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-select_streams", "v:0", "-count_packets",
		"-show_entries", "stream=nb_read_packets", "-of", "json", path)
	out, err := cmd.Output()
	if err != nil {
		logrus.WithError(err).Warn("ffprobe packet count failed")
		return 0
	}
	var res ffprobeOutput
	if json.Unmarshal(out, &res) != nil || len(res.Streams) == 0 {
		return 0
	}
	count, err := strconv.Atoi(res.Streams[0].NbReadPackets)
	if err != nil {
		return 0
	}
	return count
}

// ParseFrameRate converts ffprobe rates such as "30000/1001" or "25" to fps.
func ParseFrameRate(rate string) (float64, error) {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return 0, fmt.Errorf("empty frame rate")
	}
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q: %w", rate, err)
	}
	if !found {
		if n <= 0 {
			return 0, fmt.Errorf("invalid frame rate %q", rate)
		}
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q: %w", rate, err)
	}
	if d == 0 || n <= 0 {
		return 0, fmt.Errorf("invalid frame rate %q", rate)
	}
	return n / d, nil
}
