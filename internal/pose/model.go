package pose

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/posereps/internal/reps"
)

// Estimator turns a camera frame into a body pose.
type Estimator interface {
	// Estimate returns the most prominent pose in the frame, or nil when no
	// body is visible.
	Estimate(frame *gocv.Mat) (*Pose, error)
}

// Classifier maps a pose to a probability for every trained label.
type Classifier interface {
	Classify(p *Pose) ([]reps.Prediction, error)

	// Labels returns the trained labels in model order.
	Labels() []string
}

// Model bundles an estimator and a classifier loaded from one pose model.
type Model interface {
	Estimator
	Classifier

	// Name is the model's display name.
	Name() string

	// Close releases any resources held by the model.
	Close() error
}

// Loader opens a Model. Sessions call it on every start so a failed load can be
// retried.
type Loader func() (Model, error)
