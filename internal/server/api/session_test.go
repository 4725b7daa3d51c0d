package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/posereps/internal/reps"
	"github.com/ayusman/posereps/internal/session"
)

// fakeController records calls and returns scripted results.
type fakeController struct {
	snap      session.Snapshot
	startErr  error
	stopErr   error
	starts    int
	resets    int
	threshold int
}

func (f *fakeController) Snapshot() session.Snapshot { return f.snap }

func (f *fakeController) Start(ctx context.Context) (session.Snapshot, error) {
	f.starts++
	if f.startErr != nil {
		f.snap.Status = "Error: " + f.startErr.Error()
		return f.snap, f.startErr
	}
	f.snap.Running = true
	f.snap.Status = session.StatusRunning
	return f.snap, nil
}

func (f *fakeController) Stop() (session.Snapshot, error) {
	if f.stopErr != nil {
		return f.snap, f.stopErr
	}
	if !f.snap.Running {
		return f.snap, session.ErrNotRunning
	}
	f.snap.Running = false
	f.snap.Status = session.StatusStopped
	return f.snap, nil
}

func (f *fakeController) Reset() session.Snapshot {
	f.resets++
	f.snap.Count = 0
	f.snap.Latched = false
	return f.snap
}

func (f *fakeController) SetThreshold(percent int) (session.Snapshot, error) {
	if percent < 0 || percent > 100 {
		return f.snap, fmt.Errorf("%w: got %d%%", reps.ErrThresholdRange, percent)
	}
	f.threshold = percent
	f.snap.Threshold = percent
	return f.snap, nil
}

func newTestRouter(c Controller) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/session", NewSessionHandler(c, nil).Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	return snap
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	return resp.Error
}

func TestSessionHandler_Get(t *testing.T) {
	c := &fakeController{snap: session.Snapshot{Count: 4, Threshold: 70, Status: session.StatusIdle}}
	rec := do(t, newTestRouter(c), http.MethodGet, "/api/session", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	snap := decodeSnapshot(t, rec)
	if snap.Count != 4 || snap.Threshold != 70 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestSessionHandler_Start(t *testing.T) {
	t.Run("starts the session", func(t *testing.T) {
		c := &fakeController{}
		rec := do(t, newTestRouter(c), http.MethodPost, "/api/session/start", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		snap := decodeSnapshot(t, rec)
		if !snap.Running || snap.Status != session.StatusRunning {
			t.Errorf("unexpected snapshot: %+v", snap)
		}
	})

	t.Run("reports acquisition failure", func(t *testing.T) {
		c := &fakeController{startErr: errors.New("camera: device busy")}
		rec := do(t, newTestRouter(c), http.MethodPost, "/api/session/start", "")

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
		}
		if msg := decodeError(t, rec); !strings.Contains(msg, "device busy") {
			t.Errorf("expected error to mention the cause, got %q", msg)
		}
	})

	t.Run("rejects GET", func(t *testing.T) {
		rec := do(t, newTestRouter(&fakeController{}), http.MethodGet, "/api/session/start", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}

func TestSessionHandler_Stop(t *testing.T) {
	t.Run("stops a running session", func(t *testing.T) {
		c := &fakeController{snap: session.Snapshot{Running: true}}
		rec := do(t, newTestRouter(c), http.MethodPost, "/api/session/stop", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if snap := decodeSnapshot(t, rec); snap.Running || snap.Status != session.StatusStopped {
			t.Errorf("unexpected snapshot: %+v", snap)
		}
	})

	t.Run("conflicts when idle", func(t *testing.T) {
		rec := do(t, newTestRouter(&fakeController{}), http.MethodPost, "/api/session/stop", "")
		if rec.Code != http.StatusConflict {
			t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
		}
	})

	t.Run("hides internal errors", func(t *testing.T) {
		c := &fakeController{stopErr: errors.New("close camera: boom")}
		rec := do(t, newTestRouter(c), http.MethodPost, "/api/session/stop", "")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
		}
		if msg := decodeError(t, rec); strings.Contains(msg, "boom") {
			t.Errorf("internal error leaked: %q", msg)
		}
	})
}

func TestSessionHandler_Reset(t *testing.T) {
	c := &fakeController{snap: session.Snapshot{Count: 9, Latched: true}}
	rec := do(t, newTestRouter(c), http.MethodPost, "/api/session/reset", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	snap := decodeSnapshot(t, rec)
	if snap.Count != 0 || snap.Latched {
		t.Errorf("expected cleared counter, got %+v", snap)
	}
	if c.resets != 1 {
		t.Errorf("expected 1 reset, got %d", c.resets)
	}
}

func TestSessionHandler_Threshold(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		want     int
	}{
		{name: "valid", body: `{"percent":55}`, wantCode: http.StatusOK, want: 55},
		{name: "lower bound", body: `{"percent":0}`, wantCode: http.StatusOK, want: 0},
		{name: "upper bound", body: `{"percent":100}`, wantCode: http.StatusOK, want: 100},
		{name: "above range", body: `{"percent":101}`, wantCode: http.StatusBadRequest},
		{name: "negative", body: `{"percent":-1}`, wantCode: http.StatusBadRequest},
		{name: "missing", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "invalid JSON", body: `not json`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeController{threshold: -1}
			rec := do(t, newTestRouter(c), http.MethodPut, "/api/session/threshold", tt.body)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantCode != http.StatusOK {
				if c.threshold != -1 {
					t.Errorf("threshold changed to %d on a rejected request", c.threshold)
				}
				return
			}
			if snap := decodeSnapshot(t, rec); snap.Threshold != tt.want {
				t.Errorf("expected threshold %d, got %d", tt.want, snap.Threshold)
			}
		})
	}
}
