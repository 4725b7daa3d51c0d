// Package pose provides body-pose types and the estimator/classifier capabilities
// the rep counter consumes.
package pose

import "math"

// Keypoint indices following the PoseNet convention.
const (
	Nose          = 0
	LeftEye       = 1
	RightEye      = 2
	LeftEar       = 3
	RightEar      = 4
	LeftShoulder  = 5
	RightShoulder = 6
	LeftElbow     = 7
	RightElbow    = 8
	LeftWrist     = 9
	RightWrist    = 10
	LeftHip       = 11
	RightHip      = 12
	LeftKnee      = 13
	RightKnee     = 14
	LeftAnkle     = 15
	RightAnkle    = 16
	NumKeypoints  = 17
)

// PartNames maps keypoint indices to PoseNet part names.
var PartNames = [NumKeypoints]string{
	"nose", "leftEye", "rightEye", "leftEar", "rightEar",
	"leftShoulder", "rightShoulder", "leftElbow", "rightElbow",
	"leftWrist", "rightWrist", "leftHip", "rightHip",
	"leftKnee", "rightKnee", "leftAnkle", "rightAnkle",
}

// PartIndex returns the keypoint index for a PoseNet part name, or -1.
func PartIndex(name string) int {
	for i, n := range PartNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Point2D is a position in image coordinates.
type Point2D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Keypoint is a single estimated body part.
type Keypoint struct {
	Position Point2D `json:"position"`
	Score    float64 `json:"score"`
}

// Pose is one estimated body with all 17 keypoints.
type Pose struct {
	Keypoints [NumKeypoints]Keypoint `json:"keypoints"`
	Score     float64                `json:"score"`
}

func midpoint(a, b Point2D) Point2D {
	return Point2D{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

func distance2D(a, b Point2D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Normalize returns the keypoint positions translated so the hip midpoint is at
// the origin and scaled so the torso (hip midpoint to shoulder midpoint) has
// length 1. Keypoint scores are carried over unchanged.
func (p *Pose) Normalize() *Pose {
	if p == nil {
		return nil
	}

	normalized := &Pose{Score: p.Score}

	hips := midpoint(p.Keypoints[LeftHip].Position, p.Keypoints[RightHip].Position)
	shoulders := midpoint(p.Keypoints[LeftShoulder].Position, p.Keypoints[RightShoulder].Position)

	for i := 0; i < NumKeypoints; i++ {
		normalized.Keypoints[i] = Keypoint{
			Position: Point2D{
				X: p.Keypoints[i].Position.X - hips.X,
				Y: p.Keypoints[i].Position.Y - hips.Y,
			},
			Score: p.Keypoints[i].Score,
		}
	}

	scale := distance2D(hips, shoulders)
	if scale < 1e-10 {
		return normalized
	}

	for i := 0; i < NumKeypoints; i++ {
		normalized.Keypoints[i].Position.X /= scale
		normalized.Keypoints[i].Position.Y /= scale
	}

	return normalized
}

// Positions returns the keypoint positions as a slice.
func (p *Pose) Positions() []Point2D {
	points := make([]Point2D, NumKeypoints)
	for i, kp := range p.Keypoints {
		points[i] = kp.Position
	}
	return points
}
