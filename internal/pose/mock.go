package pose

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/posereps/internal/reps"
)

// MockModel is a test implementation of the Model interface.
// It allows tests to control estimation and classification results.
type MockModel struct {
	mu          sync.Mutex
	name        string
	labels      []string
	pose        *Pose
	predictions [][]reps.Prediction
	estimateErr error
	classifyErr error
	closed      bool
	calls       int
}

// NewMockModel creates a MockModel that estimates a standing pose and has no
// predictions queued.
func NewMockModel(labels ...string) *MockModel {
	standing := StandingPose()
	return &MockModel{
		name:   "mock-pose-model",
		labels: labels,
		pose:   &standing,
	}
}

// SetPose sets the pose returned by Estimate. nil means no body visible.
func (m *MockModel) SetPose(p *Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pose = p
}

// QueuePredictions appends classifier results. Each Classify call consumes one;
// the last one is repeated once the queue runs dry.
func (m *MockModel) QueuePredictions(results ...[]reps.Prediction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions = append(m.predictions, results...)
}

// SetEstimateError sets the error returned by Estimate.
func (m *MockModel) SetEstimateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.estimateErr = err
}

// SetClassifyError sets the error returned by Classify.
func (m *MockModel) SetClassifyError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classifyErr = err
}

// Estimate returns the configured pose or error.
func (m *MockModel) Estimate(frame *gocv.Mat) (*Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.estimateErr != nil {
		return nil, m.estimateErr
	}
	return m.pose, nil
}

// Classify returns the next queued result or the configured error.
func (m *MockModel) Classify(p *Pose) ([]reps.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.classifyErr != nil {
		return nil, m.classifyErr
	}
	if len(m.predictions) == 0 {
		return nil, nil
	}
	next := m.predictions[0]
	if len(m.predictions) > 1 {
		m.predictions = m.predictions[1:]
	}
	return next, nil
}

// Calls returns how many times Classify ran.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Labels returns the labels the mock was created with.
func (m *MockModel) Labels() []string { return m.labels }

// Name returns the mock model name.
func (m *MockModel) Name() string { return m.name }

// Close marks the mock closed.
func (m *MockModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockModel) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Predictions builds a two-class Up/Down result.
func Predictions(label string, probability float64) []reps.Prediction {
	other := reps.LabelUp
	if label == reps.LabelUp {
		other = reps.LabelDown
	}
	return []reps.Prediction{
		{Label: label, Probability: probability},
		{Label: other, Probability: 1 - probability},
	}
}

// StandingPose returns a preset pose of a person standing upright, facing the
// camera, in a 360x360 frame.
func StandingPose() Pose {
	p := Pose{Score: 0.92}
	set := func(i int, x, y float64) {
		p.Keypoints[i] = Keypoint{Position: Point2D{X: x, Y: y}, Score: 0.9}
	}

	set(Nose, 180, 60)
	set(LeftEye, 188, 52)
	set(RightEye, 172, 52)
	set(LeftEar, 198, 56)
	set(RightEar, 162, 56)
	set(LeftShoulder, 212, 100)
	set(RightShoulder, 148, 100)
	set(LeftElbow, 220, 150)
	set(RightElbow, 140, 150)
	set(LeftWrist, 224, 196)
	set(RightWrist, 136, 196)
	set(LeftHip, 200, 200)
	set(RightHip, 160, 200)
	set(LeftKnee, 202, 264)
	set(RightKnee, 158, 264)
	set(LeftAnkle, 204, 330)
	set(RightAnkle, 156, 330)

	return p
}

// SquatPose returns a preset pose at the bottom of a squat: hips lowered to
// knee height, knees pushed out, arms held forward.
func SquatPose() Pose {
	p := Pose{Score: 0.88}
	set := func(i int, x, y float64) {
		p.Keypoints[i] = Keypoint{Position: Point2D{X: x, Y: y}, Score: 0.85}
	}

	set(Nose, 180, 150)
	set(LeftEye, 188, 142)
	set(RightEye, 172, 142)
	set(LeftEar, 198, 146)
	set(RightEar, 162, 146)
	set(LeftShoulder, 214, 188)
	set(RightShoulder, 146, 188)
	set(LeftElbow, 236, 200)
	set(RightElbow, 124, 200)
	set(LeftWrist, 250, 196)
	set(RightWrist, 110, 196)
	set(LeftHip, 204, 270)
	set(RightHip, 156, 270)
	set(LeftKnee, 236, 272)
	set(RightKnee, 124, 272)
	set(LeftAnkle, 208, 330)
	set(RightAnkle, 152, 330)

	return p
}
