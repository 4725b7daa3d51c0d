// Package plugin discovers and runs rep hooks: external executables invoked
// with a JSON request whenever the server-side session counts a rep.
package plugin

import "encoding/json"

// ActionRep is the action a hook lists in its manifest to receive rep events.
const ActionRep = "rep"

// ManifestFile is the manifest name looked up in every plugin directory.
const ManifestFile = "plugin.json"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
	// Every fires the hook only on every Nth rep. Zero and one mean every rep.
	Every  int             `json:"every,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Handles reports whether the manifest lists action.
func (m Manifest) Handles(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is written to a plugin's stdin.
type Request struct {
	Action      string          `json:"action"`
	SessionID   string          `json:"session_id"`
	Count       int             `json:"count"`
	Label       string          `json:"label"`
	Probability float64         `json:"probability"`
	AtMs        int64           `json:"at_ms"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
