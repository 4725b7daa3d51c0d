package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	m := New()
	m.RepsCounted.Add(3)
	m.CurrentReps.Store(2)
	m.SetRunning(true)
	m.FPS.Store(14)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "posereps_reps_counted_total 3")
	assert.Contains(t, body, "posereps_reps_current 2")
	assert.Contains(t, body, "posereps_session_running 1")
	assert.Contains(t, body, "posereps_session_fps 14")
	assert.Contains(t, body, "posereps_uptime_seconds")
}

func TestSetRunning(t *testing.T) {
	m := New()
	m.SetRunning(true)
	m.FPS.Store(30)

	m.SetRunning(false)

	assert.Equal(t, uint64(0), m.SessionRunning.Load())
	assert.Equal(t, uint64(0), m.FPS.Load())
}
