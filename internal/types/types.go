package types

import "fmt"

// FrameTask represents a single frame index handed to a blur engine
type FrameTask struct {
	Index int
}

// Marker is a coordinate picked on a specific frame.
type Marker struct {
	X     int `yaml:"x" json:"x"`
	Y     int `yaml:"y" json:"y"`
	Frame int `yaml:"frame" json:"frame"`
}

func (m Marker) String() string {
	return fmt.Sprintf("(X=%d, Y=%d), Frame: %d", m.X, m.Y, m.Frame)
}

// JobState is the lifecycle of a queued job
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// JobStatus is what the queue reports back for a submitted job
type JobStatus struct {
	ID        string   `json:"id"`
	State     JobState `json:"state"`
	Consumer  string   `json:"consumer,omitempty"`
	Error     string   `json:"error,omitempty"`
	UpdatedAt string   `json:"updated_at"`
}
