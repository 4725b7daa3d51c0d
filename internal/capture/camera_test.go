package capture

import (
	"errors"
	"image"
	"testing"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantSize int
		wantFPS  int
	}{
		{
			name:     "zero config takes defaults",
			config:   Config{},
			wantSize: DefaultSize,
			wantFPS:  DefaultFPS,
		},
		{
			name:     "custom size and fps",
			config:   Config{DeviceID: 1, Size: 224, FPS: 30},
			wantSize: 224,
			wantFPS:  30,
		},
		{
			name:     "negative values take defaults",
			config:   Config{Size: -1, FPS: -5},
			wantSize: DefaultSize,
			wantFPS:  DefaultFPS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.config)
			impl, ok := cam.(*cameraImpl)
			if !ok {
				t.Fatalf("NewCamera() returned %T, want *cameraImpl", cam)
			}
			if impl.config.Size != tt.wantSize {
				t.Errorf("Size = %d, want %d", impl.config.Size, tt.wantSize)
			}
			if cam.FPS() != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", cam.FPS(), tt.wantFPS)
			}
			if cam.IsOpen() {
				t.Error("new camera should not be open")
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(Config{})

	cam.SetFPS(10)
	if cam.FPS() != 10 {
		t.Errorf("FPS() = %d, want 10", cam.FPS())
	}

	cam.SetFPS(0)
	cam.SetFPS(-3)
	if cam.FPS() != 10 {
		t.Errorf("FPS() = %d after invalid values, want 10", cam.FPS())
	}
}

func TestCamera_ReadWithoutOpen(t *testing.T) {
	cam := NewCamera(Config{})

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on unopened camera = %v", err)
	}
}

func TestCenterSquare(t *testing.T) {
	tests := []struct {
		w, h int
		want image.Rectangle
	}{
		{640, 480, image.Rect(80, 0, 560, 480)},
		{480, 640, image.Rect(0, 80, 480, 560)},
		{360, 360, image.Rect(0, 0, 360, 360)},
	}

	for _, tt := range tests {
		if got := centerSquare(tt.w, tt.h); got != tt.want {
			t.Errorf("centerSquare(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}
}
