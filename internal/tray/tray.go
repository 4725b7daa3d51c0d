// Package tray provides a system tray menu for controlling the rep counter.
package tray

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/posereps/internal/session"
)

// Tray represents the system tray application.
type Tray struct {
	onStart func()
	onStop  func()
	onReset func()
	onOpen  func()
	onQuit  func()
	running bool
	count   int
	mu      sync.RWMutex

	// Menu items stored for later updates
	menuStart *systray.MenuItem
	menuStop  *systray.MenuItem
	menuReps  *systray.MenuItem
}

// New creates a new Tray instance for a stopped session.
func New() *Tray {
	return &Tray{}
}

// OnStart sets the callback called when Start is clicked.
func (t *Tray) OnStart(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = fn
}

// OnStop sets the callback called when Stop is clicked.
func (t *Tray) OnStop(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = fn
}

// OnReset sets the callback called when Reset is clicked.
func (t *Tray) OnReset(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReset = fn
}

// OnOpen sets the callback called when "Open in browser" is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback called when Quit is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Reps")
	systray.SetTooltip("Pose rep counter")

	t.mu.Lock()
	t.menuStart = systray.AddMenuItem("Start", "Start counting")
	t.menuStop = systray.AddMenuItem("Stop", "Stop counting")
	menuReset := systray.AddMenuItem("Reset", "Reset the rep count")
	systray.AddSeparator()

	t.menuReps = systray.AddMenuItem(repsTitle(t.count), "Reps in the current session")
	t.menuReps.Disable()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open in browser", "Open the rep counter page")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit posereps")
	t.applyRunningLocked()
	t.mu.Unlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuStart.ClickedCh:
				t.fire(func() func() { return t.onStart })
			case <-t.menuStop.ClickedCh:
				t.fire(func() func() { return t.onStop })
			case <-menuReset.ClickedCh:
				t.fire(func() func() { return t.onReset })
			case <-menuOpen.ClickedCh:
				t.fire(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// fire reads a callback under the lock and calls it outside the lock.
func (t *Tray) fire(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.fire(func() func() { return t.onQuit })
	systray.Quit()
}

// Update reflects a session snapshot in the menu.
func (t *Tray) Update(snap session.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.count = snap.Count
	t.running = snap.Running
	if t.menuReps != nil {
		t.menuReps.SetTitle(repsTitle(t.count))
	}
	t.applyRunningLocked()
}

// Follow applies every snapshot from updates until the channel closes.
func (t *Tray) Follow(updates <-chan session.Snapshot) {
	for snap := range updates {
		t.Update(snap)
	}
}

func (t *Tray) applyRunningLocked() {
	if t.menuStart == nil || t.menuStop == nil {
		return
	}
	if t.running {
		t.menuStart.Disable()
		t.menuStop.Enable()
	} else {
		t.menuStart.Enable()
		t.menuStop.Disable()
	}
}

// Count returns the rep count last shown.
func (t *Tray) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// IsRunning reports whether the last snapshot had a running session.
func (t *Tray) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

func repsTitle(count int) string {
	return fmt.Sprintf("Reps: %d", count)
}

// OpenBrowser opens url with the platform's default handler.
func OpenBrowser(url string) error {
	name, args := browserCommand(runtime.GOOS, url)
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

func browserCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}
