// Package reps implements the rep-counting state machine: a two-state latch that
// counts one repetition for every accepted "Down" pose followed by an accepted
// "Up" pose, debounced by a minimum interval between completed reps.
package reps

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Pose labels the counter reacts to.
const (
	LabelDown = "Down"
	LabelUp   = "Up"
)

// MinRepInterval is the debounce window. A rep only completes when strictly more
// than this much time has passed since the previous completed rep.
const MinRepInterval = 600 * time.Millisecond

// DefaultThreshold is the confidence threshold a new counter starts with.
const DefaultThreshold = 0.70

// Status lines reported by the counter.
const (
	StatusRepCounted = "Rep counted!"
	statusDetected   = "Detected: "
)

// ErrThresholdRange is returned when a threshold falls outside [0, 1].
var ErrThresholdRange = errors.New("confidence threshold must be within [0, 1]")

// State is the latch position of the counter.
type State int

const (
	// Idle waits for a "Down" pose.
	Idle State = iota
	// DownLatched has seen a "Down" pose and waits for "Up".
	DownLatched
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case DownLatched:
		return "DownLatched"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is a single classification result fed to the counter.
// At is the elapsed time since the session started, read from a monotonic clock.
type Event struct {
	Label       string
	Probability float64
	At          time.Duration
}

// Outcome describes what an Event did to the counter.
type Outcome struct {
	// Accepted is false when the event fell below the threshold and was ignored.
	Accepted bool
	// Counted is true when the event completed a rep.
	Counted bool
	// Status is the status line for an accepted event, empty otherwise.
	Status string
	From   State
	To     State
	Count  int
}

// Counter holds the rep-counting state of one session. It is not safe for
// concurrent use; callers serialize access.
type Counter struct {
	count       int
	downLatched bool
	lastRep     time.Duration
	threshold   float64
}

// New returns a zeroed counter with the given confidence threshold.
func New(threshold float64) (*Counter, error) {
	c := &Counter{}
	if err := c.SetThreshold(threshold); err != nil {
		return nil, err
	}
	return c, nil
}

// Observe applies one classification event to the counter.
func (c *Counter) Observe(ev Event) Outcome {
	from := c.State()
	out := Outcome{From: from, To: from, Count: c.count}

	if ev.Probability < c.threshold || math.IsNaN(ev.Probability) {
		return out
	}
	out.Accepted = true

	switch ev.Label {
	case LabelDown:
		c.downLatched = true
		out.Status = statusDetected + LabelDown
	case LabelUp:
		if c.downLatched && ev.At-c.lastRep > MinRepInterval {
			c.count++
			c.lastRep = ev.At
			c.downLatched = false
			out.Counted = true
			out.Status = StatusRepCounted
		} else {
			out.Status = statusDetected + LabelUp
		}
	default:
		out.Status = statusDetected + ev.Label
	}

	out.To = c.State()
	out.Count = c.count
	return out
}

// Reset zeroes the count and clears the latch. The debounce timestamp is kept.
func (c *Counter) Reset() {
	c.count = 0
	c.downLatched = false
}

// SetThreshold changes the confidence threshold.
func (c *Counter) SetThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		return fmt.Errorf("%w: got %v", ErrThresholdRange, threshold)
	}
	c.threshold = threshold
	return nil
}

// Threshold returns the current confidence threshold.
func (c *Counter) Threshold() float64 { return c.threshold }

// Count returns the number of completed reps.
func (c *Counter) Count() int { return c.count }

// Latched reports whether a "Down" pose is latched.
func (c *Counter) Latched() bool { return c.downLatched }

// LastRep returns the session time of the last completed rep.
func (c *Counter) LastRep() time.Duration { return c.lastRep }

// State returns the current latch position.
func (c *Counter) State() State {
	if c.downLatched {
		return DownLatched
	}
	return Idle
}
