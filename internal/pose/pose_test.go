package pose

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func TestPose_Normalize(t *testing.T) {
	t.Run("hip midpoint at origin after normalization", func(t *testing.T) {
		p := StandingPose()
		normalized := p.Normalize()

		hips := midpoint(normalized.Keypoints[LeftHip].Position, normalized.Keypoints[RightHip].Position)
		if math.Abs(hips.X) > epsilon || math.Abs(hips.Y) > epsilon {
			t.Errorf("expected hip midpoint at origin, got (%f, %f)", hips.X, hips.Y)
		}

		if normalized.Score != p.Score {
			t.Errorf("expected score %f, got %f", p.Score, normalized.Score)
		}
	})

	t.Run("torso length is 1.0", func(t *testing.T) {
		p := SquatPose()
		normalized := p.Normalize()

		hips := midpoint(normalized.Keypoints[LeftHip].Position, normalized.Keypoints[RightHip].Position)
		shoulders := midpoint(normalized.Keypoints[LeftShoulder].Position, normalized.Keypoints[RightShoulder].Position)

		if d := distance2D(hips, shoulders); math.Abs(d-1.0) > epsilon {
			t.Errorf("expected torso length 1.0, got %f", d)
		}
	})

	t.Run("scale invariant", func(t *testing.T) {
		p := StandingPose()
		scaled := StandingPose()
		for i := range scaled.Keypoints {
			scaled.Keypoints[i].Position.X = scaled.Keypoints[i].Position.X*2 + 40
			scaled.Keypoints[i].Position.Y = scaled.Keypoints[i].Position.Y*2 - 15
		}

		a := p.Normalize().Positions()
		b := scaled.Normalize().Positions()
		if d := euclideanDistance(a, b); d > 1e-6 {
			t.Errorf("expected identical normalized poses, distance %f", d)
		}
	})

	t.Run("nil pose returns nil", func(t *testing.T) {
		var p *Pose
		if p.Normalize() != nil {
			t.Error("expected nil result for nil input")
		}
	})

	t.Run("zero torso returns translated only", func(t *testing.T) {
		var p Pose
		p.Keypoints[Nose].Position = Point2D{X: 10, Y: 10}

		normalized := p.Normalize()
		if normalized.Keypoints[Nose].Position != (Point2D{X: 10, Y: 10}) {
			t.Errorf("expected nose unchanged, got %+v", normalized.Keypoints[Nose].Position)
		}
	})
}

func TestPartIndex(t *testing.T) {
	if got := PartIndex("leftKnee"); got != LeftKnee {
		t.Errorf("expected %d, got %d", LeftKnee, got)
	}
	if got := PartIndex("tail"); got != -1 {
		t.Errorf("expected -1 for unknown part, got %d", got)
	}
	for i, name := range PartNames {
		if PartIndex(name) != i {
			t.Errorf("part %s does not round-trip to index %d", name, i)
		}
	}
}

func TestPresetPoses(t *testing.T) {
	standing := StandingPose()
	squat := SquatPose()

	t.Run("standing hips are above the knees", func(t *testing.T) {
		if standing.Keypoints[LeftHip].Position.Y >= standing.Keypoints[LeftKnee].Position.Y {
			t.Error("standing hip should be above the knee (lower Y value)")
		}
	})

	t.Run("squat hips are at knee height", func(t *testing.T) {
		diff := math.Abs(squat.Keypoints[LeftHip].Position.Y - squat.Keypoints[LeftKnee].Position.Y)
		if diff > 10 {
			t.Errorf("squat hip should be level with the knee, off by %f", diff)
		}
	})
}
