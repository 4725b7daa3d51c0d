package reps

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Recording is a captured sequence of classifier results, used to replay a
// session through the counter offline.
type Recording struct {
	Threshold float64       `yaml:"threshold"`
	Events    []RecordedHit `yaml:"events"`
}

// RecordedHit is one entry of a Recording. OffsetMs is relative to session start.
type RecordedHit struct {
	Label       string  `yaml:"label"`
	Probability float64 `yaml:"probability"`
	OffsetMs    int64   `yaml:"offset_ms"`
}

// Event converts the entry into a counter Event.
func (h RecordedHit) Event() Event {
	return Event{
		Label:       h.Label,
		Probability: h.Probability,
		At:          time.Duration(h.OffsetMs) * time.Millisecond,
	}
}

// ReadRecording decodes a YAML (or JSON) recording. A missing threshold falls
// back to DefaultThreshold.
func ReadRecording(r io.Reader) (*Recording, error) {
	var rec Recording
	if err := yaml.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode recording: %w", err)
	}
	if rec.Threshold == 0 {
		rec.Threshold = DefaultThreshold
	}

	var prev int64
	for i, h := range rec.Events {
		if h.OffsetMs < prev {
			return nil, fmt.Errorf("event %d: offset %dms goes back in time", i, h.OffsetMs)
		}
		prev = h.OffsetMs
	}
	return &rec, nil
}

// Replay runs every event of the recording through a fresh counter and returns
// the outcomes in order.
func Replay(rec *Recording) ([]Outcome, error) {
	c, err := New(rec.Threshold)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(rec.Events))
	for _, h := range rec.Events {
		outcomes = append(outcomes, c.Observe(h.Event()))
	}
	return outcomes, nil
}
