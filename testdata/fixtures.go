package testdata

import (
	"embed"
	"fmt"

	"github.com/ayusman/posereps/internal/reps"
)

//go:embed recordings/*
var recordingsFS embed.FS

// LoadRecording loads a recorded classification sequence by name
func LoadRecording(name string) (*reps.Recording, error) {
	f, err := recordingsFS.Open("recordings/" + name)
	if err != nil {
		return nil, fmt.Errorf("load recording %s: %w", name, err)
	}
	defer f.Close()

	rec, err := reps.ReadRecording(f)
	if err != nil {
		return nil, fmt.Errorf("read recording %s: %w", name, err)
	}
	return rec, nil
}

// RecordingNames lists the embedded recordings
func RecordingNames() ([]string, error) {
	entries, err := recordingsFS.ReadDir("recordings")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
