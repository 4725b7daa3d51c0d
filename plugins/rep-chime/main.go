// Package main provides a rep hook that plays a sound each time a rep is
// counted and announces milestones through the system speech synthesizer.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action      string          `json:"action"`
	SessionID   string          `json:"session_id"`
	Count       int             `json:"count"`
	Label       string          `json:"label"`
	Probability float64         `json:"probability"`
	AtMs        int64           `json:"at_ms"`
	Config      json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is read from the manifest's config block.
type Config struct {
	// Sound is a sound file to play. Empty selects the platform default.
	Sound string `json:"sound"`
	// Milestone speaks the count on every Nth rep. Zero disables speech.
	Milestone int `json:"milestone"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "rep" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	if err := chime(cfg.Sound); err != nil {
		writeErrorResponse(fmt.Sprintf("chime failed: %v", err))
		return
	}

	if cfg.Milestone > 0 && req.Count%cfg.Milestone == 0 {
		if err := say(fmt.Sprintf("%d reps", req.Count)); err != nil {
			writeErrorResponse(fmt.Sprintf("announce failed: %v", err))
			return
		}
	}

	writeSuccessResponse(req.Count)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse(count int) {
	data, _ := json.Marshal(map[string]int{"count": count})
	resp := Response{
		Success: true,
		Data:    data,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// run executes a command and returns its combined output on failure.
func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// chime plays sound, falling back to the terminal bell when no player exists.
func chime(sound string) error {
	switch runtime.GOOS {
	case "darwin":
		if sound == "" {
			sound = "/System/Library/Sounds/Glass.aiff"
		}
		return run("afplay", sound)
	case "linux":
		if sound == "" {
			sound = "/usr/share/sounds/freedesktop/stereo/complete.oga"
		}
		if _, err := exec.LookPath("paplay"); err == nil {
			return run("paplay", sound)
		}
	}
	_, err := fmt.Fprint(os.Stderr, "\a")
	return err
}

// say speaks text where a synthesizer is available and is a no-op elsewhere.
func say(text string) error {
	switch runtime.GOOS {
	case "darwin":
		return run("say", text)
	case "linux":
		if _, err := exec.LookPath("spd-say"); err == nil {
			return run("spd-say", "--wait", text)
		}
	}
	return nil
}
