// Package session runs the server-side rep counting loop: camera frames are
// estimated, classified and fed through a reps.Counter, one frame at a time.
package session

import (
	"errors"
	"time"

	"github.com/ayusman/posereps/internal/pose"
	"github.com/ayusman/posereps/internal/reps"
)

// Status lines shown while no classification has been accepted yet.
const (
	StatusIdle    = "Idle"
	StatusLoading = "Loading model and camera..."
	StatusRunning = "Running"
	StatusStopped = "Stopped"

	statusErrorPrefix = "Error: "
)

// DefaultFrameInterval paces the loop at roughly 15 frames per second.
const DefaultFrameInterval = time.Second / 15

// ErrNotRunning is returned when stopping a session that is not running.
var ErrNotRunning = errors.New("session is not running")

// Snapshot is a point-in-time view of the current session.
type Snapshot struct {
	SessionID   string            `json:"session_id,omitempty"`
	Running     bool              `json:"running"`
	Count       int               `json:"count"`
	Latched     bool              `json:"latched"`
	State       string            `json:"state"`
	Status      string            `json:"status"`
	TopLabel    string            `json:"top_label,omitempty"`
	Confidence  int               `json:"confidence"`
	Predictions []reps.Prediction `json:"predictions"`
	Threshold   int               `json:"threshold"`
	FPS         int               `json:"fps"`
	ModelName   string            `json:"model_name,omitempty"`
	Labels      []string          `json:"labels,omitempty"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
}

// RepEvent is delivered to OnRep callbacks whenever a rep is counted.
type RepEvent struct {
	SessionID   string
	Count       int
	Label       string
	Probability float64
	// At is the session time the rep completed at.
	At   time.Duration
	Time time.Time
}

// Session is one run of the loop, from Start to Stop. A new Start replaces it.
type Session struct {
	id          string
	model       pose.Model
	counter     *reps.Counter
	startedAt   time.Time
	lastTick    time.Time
	fps         int
	top         reps.Prediction
	predictions []reps.Prediction
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// elapsed returns the session time of now, read from the monotonic clock.
func (s *Session) elapsed(now time.Time) time.Duration {
	return now.Sub(s.startedAt)
}

// tick records the start of a loop iteration and updates the frame rate.
func (s *Session) tick(now time.Time) {
	if !s.lastTick.IsZero() {
		s.fps = framesPerSecond(now.Sub(s.lastTick))
	}
	s.lastTick = now
}

// framesPerSecond converts the gap between two iterations into a whole frame
// rate, treating gaps under a millisecond as one millisecond.
func framesPerSecond(dt time.Duration) int {
	ms := float64(dt) / float64(time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	return int(1000/ms + 0.5)
}
