package l1pose

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrMalformedSequence is returned when a pose sequence violates the
// contract with the pose source: non-finite or decreasing timestamps, or
// confidences outside [0,1].
var ErrMalformedSequence = errors.New("malformed pose sequence")

// ValidateSequence checks the invariants every consumer of a pose sequence
// relies on. An empty sequence is valid.
func ValidateSequence(frames []PoseFrame) error {
	prev := math.Inf(-1)
	for i, f := range frames {
		if math.IsNaN(f.Timestamp) || math.IsInf(f.Timestamp, 0) {
			return fmt.Errorf("%w: frame %d has non-finite timestamp", ErrMalformedSequence, i)
		}
		if f.Timestamp < prev {
			return fmt.Errorf("%w: frame %d timestamp %.3fs precedes previous %.3fs",
				ErrMalformedSequence, i, f.Timestamp, prev)
		}
		prev = f.Timestamp
		for j, obs := range f.Joints {
			if !j.Valid() {
				return fmt.Errorf("%w: frame %d has unknown joint %d", ErrMalformedSequence, i, int(j))
			}
			if math.IsNaN(obs.Confidence) || obs.Confidence < 0 || obs.Confidence > 1 {
				return fmt.Errorf("%w: frame %d %s confidence %v outside [0,1]",
					ErrMalformedSequence, i, j, obs.Confidence)
			}
		}
	}
	return nil
}

// Timestamps returns the frame timestamps in order.
func Timestamps(frames []PoseFrame) []float64 {
	ts := make([]float64, len(frames))
	for i, f := range frames {
		ts[i] = f.Timestamp
	}
	return ts
}

// MedianInterval returns the median spacing between consecutive frames in
// seconds, or 0 when fewer than two frames are present. The median tolerates
// dropped frames better than the mean.
func MedianInterval(frames []PoseFrame) float64 {
	if len(frames) < 2 {
		return 0
	}
	deltas := make([]float64, 0, len(frames)-1)
	for i := 1; i < len(frames); i++ {
		deltas = append(deltas, frames[i].Timestamp-frames[i-1].Timestamp)
	}
	sort.Float64s(deltas)
	mid := len(deltas) / 2
	if len(deltas)%2 == 1 {
		return deltas[mid]
	}
	return (deltas[mid-1] + deltas[mid]) / 2
}

// Duration returns the time covered by the sequence in seconds.
func Duration(frames []PoseFrame) float64 {
	if len(frames) < 2 {
		return 0
	}
	return frames[len(frames)-1].Timestamp - frames[0].Timestamp
}

// VisibleJoints returns, in enumeration order, the joints that reach at
// least minConfidence in one or more frames.
func VisibleJoints(frames []PoseFrame, minConfidence float64) []JointID {
	var seen [NumJoints]bool
	for _, f := range frames {
		for j, obs := range f.Joints {
			if j.Valid() && obs.Confidence >= minConfidence {
				seen[j] = true
			}
		}
	}
	var out []JointID
	for i, ok := range seen {
		if ok {
			out = append(out, JointID(i))
		}
	}
	return out
}

// TorsoLength returns the median distance between the shoulder midpoint and
// the hip midpoint over frames in which at least one shoulder and one hip
// reach minConfidence. The second result is false when no frame qualifies.
func TorsoLength(frames []PoseFrame, minConfidence float64) (float64, bool) {
	var lengths []float64
	for _, f := range frames {
		shoulders, okS := midpoint(f, minConfidence, LeftShoulder, RightShoulder)
		hips, okH := midpoint(f, minConfidence, LeftHip, RightHip)
		if okS && okH {
			lengths = append(lengths, shoulders.Dist(hips))
		}
	}
	if len(lengths) == 0 {
		return 0, false
	}
	sort.Float64s(lengths)
	mid := len(lengths) / 2
	if len(lengths)%2 == 1 {
		return lengths[mid], true
	}
	return (lengths[mid-1] + lengths[mid]) / 2, true
}

func midpoint(f PoseFrame, minConfidence float64, a, b JointID) (Point, bool) {
	var sum Point
	n := 0
	for _, j := range []JointID{a, b} {
		if obs, ok := f.Joints[j]; ok && obs.Confidence >= minConfidence {
			sum.X += obs.Position.X
			sum.Y += obs.Position.Y
			n++
		}
	}
	if n == 0 {
		return Point{}, false
	}
	return Point{X: sum.X / float64(n), Y: sum.Y / float64(n)}, true
}
