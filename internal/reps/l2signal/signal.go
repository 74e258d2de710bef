package l2signal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrTooFewFrames is returned when the sequence has fewer than two frames.
	ErrTooFewFrames = errors.New("at least two frames are required to build a signal")
	// ErrJointNeverVisible is returned when the joint never reaches the
	// minimum confidence in any frame.
	ErrJointNeverVisible = errors.New("joint never meets the minimum confidence")
)

// Projection selects how a 2D joint trajectory is reduced to one scalar per
// frame.
type Projection int

const (
	// ProjectionBaselineDistance measures the Euclidean distance from the
	// joint's first usable position.
	ProjectionBaselineDistance Projection = iota
	// ProjectionPrincipalAxis projects the centred position onto the dominant
	// eigenvector of the joint's position covariance.
	ProjectionPrincipalAxis
)

func (p Projection) String() string {
	switch p {
	case ProjectionBaselineDistance:
		return "baseline_distance"
	case ProjectionPrincipalAxis:
		return "principal_axis"
	default:
		return fmt.Sprintf("projection(%d)", int(p))
	}
}

// Valid reports whether p is a known projection.
func (p Projection) Valid() bool {
	return p == ProjectionBaselineDistance || p == ProjectionPrincipalAxis
}

// MarshalText implements encoding.TextMarshaler.
func (p Projection) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid projection %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Projection) UnmarshalText(text []byte) error {
	v, err := ParseProjection(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParseProjection accepts the String form of a projection. The short
// aliases "baseline" and "pca" are also recognised.
func ParseProjection(s string) (Projection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "baseline_distance", "baseline":
		return ProjectionBaselineDistance, nil
	case "principal_axis", "pca":
		return ProjectionPrincipalAxis, nil
	default:
		return 0, fmt.Errorf("unknown projection %q", s)
	}
}

// Config controls signal construction.
type Config struct {
	// MinConfidence gates positions: frames below it contribute no fresh
	// position.
	MinConfidence float64
	// MinContinuousFrames is the number of consecutive usable frames required
	// before an occluded frame may hold the last position. Shorter runs make
	// occluded frames neutral.
	MinContinuousFrames int
	Projection          Projection
	// SmoothingWindow is the centred moving-average width in samples. It is
	// forced odd; 1 disables smoothing.
	SmoothingWindow int
}

// SampleKind records how a signal entry was produced.
type SampleKind uint8

const (
	SampleFresh   SampleKind = iota // usable observation in this frame
	SampleHeld                      // last usable position carried over an occlusion
	SampleNeutral                   // neutral value after a short or absent run
)

// JointSignal is the scalar series for one joint. It always has the same
// length and timestamps as the pose sequence it was built from.
type JointSignal struct {
	Joint      l1pose.JointID
	Projection Projection
	Timestamps []float64
	// Raw holds the projected values before smoothing.
	Raw []float64
	// Values holds the smoothed series used for cycle detection.
	Values []float64
	Kinds  []SampleKind
	// UsableFrames counts SampleFresh entries.
	UsableFrames int
}

// Len returns the number of samples.
func (s *JointSignal) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Values)
}

// Bounds returns the smallest and largest smoothed value.
func (s *JointSignal) Bounds() (lo, hi float64) {
	if s.Len() == 0 {
		return 0, 0
	}
	return floats.Min(s.Values), floats.Max(s.Values)
}

// Span returns the global value range of the smoothed series.
func (s *JointSignal) Span() float64 {
	lo, hi := s.Bounds()
	return hi - lo
}

// Build converts the joint's observations across frames into a JointSignal.
func Build(frames []l1pose.PoseFrame, joint l1pose.JointID, cfg Config) (*JointSignal, error) {
	if len(frames) < 2 {
		return nil, ErrTooFewFrames
	}

	positions, kinds, usable := gatePositions(frames, joint, cfg)
	if usable == 0 {
		return nil, fmt.Errorf("%s: %w", joint, ErrJointNeverVisible)
	}

	var raw []float64
	switch cfg.Projection {
	case ProjectionPrincipalAxis:
		raw = projectPrincipalAxis(positions, kinds)
	default:
		raw = projectBaselineDistance(positions, kinds)
	}

	return &JointSignal{
		Joint:        joint,
		Projection:   cfg.Projection,
		Timestamps:   l1pose.Timestamps(frames),
		Raw:          raw,
		Values:       MovingAverage(raw, cfg.SmoothingWindow),
		Kinds:        kinds,
		UsableFrames: usable,
	}, nil
}

// gatePositions applies confidence gating and the continuity policy. Entries
// marked SampleNeutral have a zero position that callers must ignore.
func gatePositions(frames []l1pose.PoseFrame, joint l1pose.JointID, cfg Config) ([]l1pose.Point, []SampleKind, int) {
	positions := make([]l1pose.Point, len(frames))
	kinds := make([]SampleKind, len(frames))

	var (
		last   l1pose.Point
		run    int // consecutive usable frames in the current or most recent run
		inGap  bool
		usable int
	)
	for i, f := range frames {
		obs, ok := f.Observation(joint)
		if ok && obs.Confidence >= cfg.MinConfidence {
			if inGap {
				run = 0
				inGap = false
			}
			run++
			usable++
			last = obs.Position
			positions[i] = obs.Position
			kinds[i] = SampleFresh
			continue
		}

		inGap = true
		if usable > 0 && run >= cfg.MinContinuousFrames {
			positions[i] = last
			kinds[i] = SampleHeld
		} else {
			kinds[i] = SampleNeutral
		}
	}
	return positions, kinds, usable
}

func projectBaselineDistance(positions []l1pose.Point, kinds []SampleKind) []float64 {
	var baseline l1pose.Point
	for i, k := range kinds {
		if k == SampleFresh {
			baseline = positions[i]
			break
		}
	}

	out := make([]float64, len(positions))
	for i, k := range kinds {
		if k == SampleNeutral {
			continue
		}
		out[i] = positions[i].Dist(baseline)
	}
	return out
}

// MovingAverage applies a centred moving average of the given width. Even
// widths are widened by one; widths below 2 return a copy. Edge samples
// average over the truncated window instead of padding.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window < 2 {
		copy(out, values)
		return out
	}
	if window%2 == 0 {
		window++
	}
	half := window / 2
	for i := range values {
		lo := max(0, i-half)
		hi := min(len(values)-1, i+half)
		out[i] = floats.Sum(values[lo:hi+1]) / float64(hi-lo+1)
	}
	return out
}

// WindowFromSeconds converts a smoothing duration to an odd sample count
// using the sequence's frame interval. The result is at least 1.
func WindowFromSeconds(seconds, interval float64) int {
	if seconds <= 0 || interval <= 0 {
		return 1
	}
	n := int(seconds/interval + 0.5)
	if n < 1 {
		n = 1
	}
	if n%2 == 0 {
		n++
	}
	return n
}
