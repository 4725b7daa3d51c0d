// Package capture provides webcam capture for the server-side rep counter using
// GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings. Frames are cropped to a square, matching the canvas
// the browser page draws into.
const (
	DefaultFPS  = 15
	DefaultSize = 360
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Config holds camera settings.
type Config struct {
	DeviceID int
	// Size is the edge length of the square frames handed out.
	Size int
	FPS  int
	// Mirror flips frames horizontally so the operator sees themselves as in a
	// mirror.
	Mirror bool
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	config  Config
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
}

// NewCamera creates a new Camera. Zero Size and FPS take the defaults.
func NewCamera(config Config) Camera {
	if config.Size <= 0 {
		config.Size = DefaultSize
	}
	if config.FPS <= 0 {
		config.FPS = DefaultFPS
	}
	return &cameraImpl{config: config}
}

// Open opens the camera for capturing frames.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.config.DeviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.config.DeviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open camera %d: device unavailable", c.config.DeviceID)
	}

	capture.Set(gocv.VideoCaptureFPS, float64(c.config.FPS))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame, center-cropped to a square and resized to the
// configured size. The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	raw := gocv.NewMat()
	defer raw.Close()

	if ok := c.capture.Read(&raw); !ok {
		return nil, errors.New("failed to read frame from camera")
	}
	if raw.Empty() {
		return nil, errors.New("captured frame is empty")
	}

	square := raw.Region(centerSquare(raw.Cols(), raw.Rows()))
	defer square.Close()

	frame := gocv.NewMat()
	gocv.Resize(square, &frame, image.Pt(c.config.Size, c.config.Size), 0, 0, gocv.InterpolationLinear)

	if c.config.Mirror {
		gocv.Flip(frame, &frame, 1)
	}

	return &frame, nil
}

// centerSquare returns the largest square centered in a w x h frame.
func centerSquare(w, h int) image.Rectangle {
	if w > h {
		x := (w - h) / 2
		return image.Rect(x, 0, x+h, h)
	}
	y := (h - w) / 2
	return image.Rect(0, y, w, y+w)
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.config.FPS = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.config.FPS
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
