package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/posereps/internal/capture"
	"github.com/ayusman/posereps/internal/metrics"
	"github.com/ayusman/posereps/internal/observability"
	"github.com/ayusman/posereps/internal/pose"
	"github.com/ayusman/posereps/internal/reps"
	"github.com/ayusman/posereps/internal/store"
)

// Settings persists operator preferences. store.SettingsRepository implements it.
type Settings interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Threshold() (float64, error)
	SetThreshold(v float64) error
}

// Config holds the dependencies of a Manager.
type Config struct {
	Camera capture.Camera
	Loader pose.Loader

	// Settings is optional. When set, the threshold and model name survive
	// restarts.
	Settings Settings
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	// Threshold is the confidence threshold used when Settings holds none.
	Threshold float64

	FrameInterval time.Duration

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Manager owns the current session and serializes every change to it.
type Manager struct {
	config  Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	// lifecycle serializes Start and Stop, including their slow parts.
	lifecycle sync.Mutex

	mu          sync.Mutex
	session     *Session
	running     bool
	status      string
	threshold   float64
	modelName   string
	cancel      context.CancelFunc
	done        chan struct{}
	frame       []byte
	subscribers map[chan Snapshot]struct{}
	hooks       []func(RepEvent)
}

// NewManager creates a Manager. The threshold is read from Settings when one
// is stored there.
func NewManager(config Config) (*Manager, error) {
	if config.Camera == nil {
		return nil, errors.New("session: camera is required")
	}
	if config.Loader == nil {
		return nil, errors.New("session: model loader is required")
	}
	if config.FrameInterval <= 0 {
		config.FrameInterval = DefaultFrameInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Metrics == nil {
		config.Metrics = metrics.New()
	}

	m := &Manager{
		config:      config,
		logger:      observability.OrNop(config.Logger).Named("session"),
		metrics:     config.Metrics,
		status:      StatusIdle,
		threshold:   config.Threshold,
		subscribers: make(map[chan Snapshot]struct{}),
	}

	if config.Settings != nil {
		if err := m.loadSettings(); err != nil {
			return nil, err
		}
	}

	// Validates the threshold coming from either source.
	if _, err := reps.New(m.threshold); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) loadSettings() error {
	t, err := m.config.Settings.Threshold()
	switch {
	case err == nil:
		m.threshold = t
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("load threshold: %w", err)
	}

	name, err := m.config.Settings.Get(store.KeyModelName)
	switch {
	case err == nil:
		m.modelName = name
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("load model name: %w", err)
	}
	return nil
}

// Start opens the camera and the model and begins the loop. Calling Start on a
// running session is a no-op. On failure the status reports the error and
// Start may be called again.
//
// ctx bounds the loading phase only; the loop runs until Stop or Close.
func (m *Manager) Start(ctx context.Context) (Snapshot, error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.running {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, nil
	}
	m.status = StatusLoading
	m.publishLocked()
	m.mu.Unlock()

	model, err := m.acquire(ctx)
	if err != nil {
		m.mu.Lock()
		m.status = statusErrorPrefix + err.Error()
		snap := m.publishLocked()
		m.mu.Unlock()
		m.logger.Warn("Session start failed", zap.Error(err))
		return snap, err
	}

	m.mu.Lock()
	counter, err := reps.New(m.threshold)
	if err != nil {
		m.mu.Unlock()
		m.release(model)
		return m.Snapshot(), err
	}

	now := m.config.Now()
	sess := &Session{
		id:        uuid.New().String(),
		model:     model,
		counter:   counter,
		startedAt: now,
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	m.session = sess
	m.running = true
	m.status = StatusRunning
	m.modelName = model.Name()
	m.cancel = cancel
	m.done = done
	m.frame = nil
	snap := m.publishLocked()
	m.mu.Unlock()

	m.metrics.Sessions.Add(1)
	m.metrics.CurrentReps.Store(0)
	m.metrics.SetRunning(true)

	if m.config.Settings != nil {
		if err := m.config.Settings.Set(store.KeyModelName, model.Name()); err != nil {
			m.logger.Warn("Failed to persist model name", zap.Error(err))
		}
	}

	go m.run(loopCtx, sess, done)

	m.logger.Info("Session started",
		zap.String("session_id", sess.id),
		zap.String("model", model.Name()),
		zap.Float64("threshold", m.Threshold()))
	return snap, nil
}

// acquire opens the camera and loads the model, releasing the camera again if
// the model fails.
func (m *Manager) acquire(ctx context.Context) (pose.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.config.Camera.Open(); err != nil {
		return nil, fmt.Errorf("camera: %w", err)
	}

	model, err := m.config.Loader()
	if err != nil {
		m.closeCamera()
		return nil, fmt.Errorf("model: %w", err)
	}

	if err := ctx.Err(); err != nil {
		m.release(model)
		return nil, err
	}
	return model, nil
}

func (m *Manager) release(model pose.Model) {
	if err := model.Close(); err != nil {
		m.logger.Warn("Error closing model", zap.Error(err))
	}
	m.closeCamera()
}

func (m *Manager) closeCamera() {
	if err := m.config.Camera.Close(); err != nil {
		m.logger.Warn("Error closing camera", zap.Error(err))
	}
}

// Stop ends the loop, waits for it to return, then releases the camera and the
// model.
func (m *Manager) Stop() (Snapshot, error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if !m.running {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, ErrNotRunning
	}
	m.running = false
	m.cancel()
	done := m.done
	sess := m.session
	m.mu.Unlock()

	<-done
	m.release(sess.model)

	m.mu.Lock()
	m.status = StatusStopped
	m.cancel = nil
	m.done = nil
	m.frame = nil
	snap := m.publishLocked()
	m.mu.Unlock()

	m.metrics.SetRunning(false)
	m.logger.Info("Session stopped",
		zap.String("session_id", sess.id),
		zap.Int("reps", snap.Count))
	return snap, nil
}

// Close stops the session if one is running.
func (m *Manager) Close() error {
	if _, err := m.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return nil
}

// Reset zeroes the count and clears the latch, running or not.
func (m *Manager) Reset() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.session.counter.Reset()
	}
	m.metrics.CurrentReps.Store(0)
	return m.publishLocked()
}

// SetThreshold sets the confidence threshold from a whole percentage in
// [0, 100]. The value applies to the running session and to later ones.
func (m *Manager) SetThreshold(percent int) (Snapshot, error) {
	if percent < 0 || percent > 100 {
		return m.Snapshot(), fmt.Errorf("%w: got %d%%", reps.ErrThresholdRange, percent)
	}
	threshold := float64(percent) / 100

	m.mu.Lock()
	if m.session != nil {
		if err := m.session.counter.SetThreshold(threshold); err != nil {
			m.mu.Unlock()
			return m.Snapshot(), err
		}
	}
	m.threshold = threshold
	snap := m.publishLocked()
	m.mu.Unlock()

	if m.config.Settings != nil {
		if err := m.config.Settings.SetThreshold(threshold); err != nil {
			m.logger.Warn("Failed to persist threshold", zap.Error(err))
		}
	}
	return snap, nil
}

// Threshold returns the confidence threshold as a fraction.
func (m *Manager) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// Running reports whether the loop is running.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// LatestFrame returns the last processed camera frame as JPEG.
func (m *Manager) LatestFrame() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame, m.frame != nil
}

// Subscribe returns a channel receiving a snapshot after every change. Slow
// readers only see the latest snapshot.
func (m *Manager) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (m *Manager) Unsubscribe(ch chan Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscribers[ch]; ok {
		delete(m.subscribers, ch)
		close(ch)
	}
}

// OnRep registers fn to be called after every counted rep. Callbacks run on
// the loop goroutine and must not block.
func (m *Manager) OnRep(fn func(RepEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		Running:     m.running,
		State:       reps.Idle.String(),
		Status:      m.status,
		Threshold:   reps.Percent(m.threshold),
		ModelName:   m.modelName,
		Predictions: []reps.Prediction{},
	}

	s := m.session
	if s == nil {
		return snap
	}

	startedAt := s.startedAt
	snap.SessionID = s.id
	snap.StartedAt = &startedAt
	snap.Count = s.counter.Count()
	snap.Latched = s.counter.Latched()
	snap.State = s.counter.State().String()
	snap.Labels = s.model.Labels()
	if m.running {
		snap.FPS = s.fps
		snap.TopLabel = s.top.Label
		snap.Confidence = reps.Percent(s.top.Probability)
		snap.Predictions = append(snap.Predictions, s.predictions...)
	}
	return snap
}

// publishLocked sends the current snapshot to every subscriber, replacing any
// snapshot a subscriber has not read yet.
func (m *Manager) publishLocked() Snapshot {
	snap := m.snapshotLocked()
	for ch := range m.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
	return snap
}

// run drives the loop for sess until ctx is cancelled.
func (m *Manager) run(ctx context.Context, sess *Session, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.step(ctx, sess)
		}
	}
}

// step processes a single frame.
func (m *Manager) step(ctx context.Context, sess *Session) {
	m.mu.Lock()
	sess.tick(m.config.Now())
	m.metrics.FPS.Store(uint64(sess.fps))
	m.mu.Unlock()

	frame, err := m.config.Camera.ReadFrame()
	if err != nil {
		m.metrics.CameraErrors.Add(1)
		m.logger.Debug("Error reading frame", zap.Error(err))
		return
	}
	defer frame.Close()

	jpeg := encodeFrame(frame)

	p, err := sess.model.Estimate(frame)
	if err != nil {
		m.classifyFailed(err)
		return
	}
	if p == nil {
		m.metrics.FramesSkipped.Add(1)
		m.storeFrame(ctx, sess, jpeg)
		return
	}

	predictions, err := sess.model.Classify(p)
	if err != nil {
		m.classifyFailed(err)
		return
	}
	top, err := reps.Top(predictions)
	if err != nil {
		m.classifyFailed(err)
		return
	}

	now := m.config.Now()

	m.mu.Lock()
	// Results finishing after Stop are dropped.
	if ctx.Err() != nil || m.session != sess {
		m.mu.Unlock()
		return
	}
	sess.top = top
	sess.predictions = predictions
	m.frame = jpeg
	out := sess.counter.Observe(reps.Event{
		Label:       top.Label,
		Probability: top.Probability,
		At:          sess.elapsed(now),
	})
	if out.Status != "" {
		m.status = out.Status
	}
	m.publishLocked()
	hooks := append(([]func(RepEvent))(nil), m.hooks...)
	m.mu.Unlock()

	m.metrics.FramesProcessed.Add(1)
	m.metrics.CurrentReps.Store(int64(out.Count))

	if !out.Counted {
		return
	}

	m.metrics.RepsCounted.Add(1)
	ev := RepEvent{
		SessionID:   sess.id,
		Count:       out.Count,
		Label:       top.Label,
		Probability: top.Probability,
		At:          sess.elapsed(now),
		Time:        now,
	}
	m.logger.Info("Rep counted",
		zap.String("session_id", sess.id),
		zap.Int("count", out.Count),
		zap.Float64("probability", top.Probability))
	for _, fn := range hooks {
		fn(ev)
	}
}

func (m *Manager) classifyFailed(err error) {
	m.metrics.ClassifyErrors.Add(1)
	m.logger.Warn("Prediction failed, skipping frame", zap.Error(err))
}

func (m *Manager) storeFrame(ctx context.Context, sess *Session, jpeg []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() == nil && m.session == sess {
		m.frame = jpeg
	}
}

// encodeFrame returns frame as JPEG, or nil when encoding fails.
func encodeFrame(frame *gocv.Mat) []byte {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...)
}
