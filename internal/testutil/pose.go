package testutil

import (
	"math"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
)

// PoseFrames builds one frame per value, dt seconds apart, with joint placed
// at (0, values[i]). The baseline-distance signal of joint therefore equals
// |values[i] - values[0]|.
func PoseFrames(joint l1pose.JointID, values []float64, dt, confidence float64) []l1pose.PoseFrame {
	frames := make([]l1pose.PoseFrame, len(values))
	for i := range frames {
		frames[i] = l1pose.PoseFrame{
			Timestamp: float64(i) * dt,
			Joints:    make(map[l1pose.JointID]l1pose.JointObservation, 4),
		}
	}
	return AddJoint(frames, joint, values, confidence)
}

// AddJoint places joint at (0, values[i]) on frame i. Frames beyond
// len(values) are left untouched.
func AddJoint(frames []l1pose.PoseFrame, joint l1pose.JointID, values []float64, confidence float64) []l1pose.PoseFrame {
	for i := range frames {
		if i >= len(values) {
			break
		}
		if frames[i].Joints == nil {
			frames[i].Joints = make(map[l1pose.JointID]l1pose.JointObservation, 4)
		}
		frames[i].Joints[joint] = l1pose.JointObservation{
			Position:   l1pose.Point{X: 0, Y: values[i]},
			Confidence: confidence,
		}
	}
	return frames
}

// RepValues returns reps raised-cosine repetitions of the given amplitude,
// each samplesPerRep samples long, followed by one closing rest sample.
func RepValues(reps, samplesPerRep int, amplitude float64) []float64 {
	out := make([]float64, 0, reps*samplesPerRep+1)
	for r := 0; r < reps; r++ {
		for k := 0; k < samplesPerRep; k++ {
			phase := 2 * math.Pi * float64(k) / float64(samplesPerRep)
			out = append(out, amplitude*(1-math.Cos(phase))/2)
		}
	}
	return append(out, 0)
}

// Rest returns n samples of zero.
func Rest(n int) []float64 {
	return make([]float64, n)
}

// Concat joins value slices in order.
func Concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// TwoRepExample is the canonical two-repetition signal sampled at 0.1 s.
// Its cycles peak at indices 4 and 10 and span 0.2 s to 1.2 s.
func TwoRepExample() []float64 {
	return []float64{0, 0, 0, 5, 10, 5, 0, 0, 0, 5, 10, 5, 0, 0, 0}
}
