package pipeline

import (
	"fmt"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l2signal"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l3cycles"
	"go.uber.org/multierr"
)

// Config holds every tunable of a detection run. There are no hidden
// package-level thresholds: DefaultConfig is the only source of defaults.
//
// Amplitude and tolerance thresholds are absolute when positive. Otherwise
// they are derived from the matching fraction of the reference range, the
// largest value range among the usable candidate signals of the run, so all
// candidates are judged against the same absolute thresholds.
type Config struct {
	MinConfidence       float64             `json:"min_confidence"`
	MinContinuousFrames int                 `json:"min_continuous_frames"`
	Projection          l2signal.Projection `json:"projection"`
	// SmoothingWindow is the moving-average width in samples.
	SmoothingWindow int `json:"smoothing_window"`
	// SmoothingWindowSeconds, when positive, replaces SmoothingWindow with a
	// width derived from the sequence's median frame interval. The default
	// spans five frames at 30 fps. Set it to 0 to smooth by sample count.
	SmoothingWindowSeconds float64 `json:"smoothing_window_seconds,omitempty"`

	AmplitudeThreshold float64 `json:"amplitude_threshold,omitempty"`
	AmplitudeFraction  float64 `json:"amplitude_fraction"`
	ToleranceThreshold float64 `json:"tolerance_threshold,omitempty"`
	ToleranceFraction  float64 `json:"tolerance_fraction"`

	// MinAmplitudeThreshold floors a fraction-derived amplitude threshold,
	// in signal units, so sensor jitter on a static clip never counts as a
	// repetition. When shoulders and hips are visible the floor is instead
	// MinAmplitudeTorsoFraction of the median torso length. An absolute
	// AmplitudeThreshold is never floored.
	MinAmplitudeThreshold     float64 `json:"min_amplitude_threshold"`
	MinAmplitudeTorsoFraction float64 `json:"min_amplitude_torso_fraction"`

	// LenientTolerance enables the few-cycles leniency: when the strict pass
	// admits at most LeniencyMaxCycles cycles, the tolerance is relaxed to
	// LenientToleranceThreshold (or LenientToleranceFraction of the range).
	LenientTolerance          bool    `json:"lenient_tolerance"`
	LenientToleranceThreshold float64 `json:"lenient_tolerance_threshold,omitempty"`
	LenientToleranceFraction  float64 `json:"lenient_tolerance_fraction"`
	LeniencyMaxCycles         int     `json:"leniency_max_cycles"`

	MaxSetGapSeconds float64          `json:"max_set_gap_seconds"`
	CandidateJoints  []l1pose.JointID `json:"candidate_joints"`

	// Workers bounds the number of candidate joints analysed concurrently.
	// Values below 2 run candidates sequentially.
	Workers int `json:"workers"`
}

// DefaultConfig returns the canonical detection defaults.
func DefaultConfig() Config {
	return Config{
		MinConfidence:             0.3,
		MinContinuousFrames:       3,
		Projection:                l2signal.ProjectionBaselineDistance,
		SmoothingWindow:           5,
		SmoothingWindowSeconds:    0.167,
		AmplitudeFraction:         0.10,
		ToleranceFraction:         0.05,
		MinAmplitudeThreshold:     2,
		MinAmplitudeTorsoFraction: 0.10,
		LenientTolerance:          false,
		LenientToleranceFraction:  0.10,
		LeniencyMaxCycles:         2,
		MaxSetGapSeconds:          2.5,
		CandidateJoints:           l1pose.DefaultCandidateJoints(),
		Workers:                   1,
	}
}

// Validate reports every invalid or contradictory setting at once. The
// returned error is a *ConfigError.
func (c Config) Validate() error {
	var errs error
	add := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		add("min_confidence must be between 0 and 1, got %f", c.MinConfidence)
	}
	if c.MinContinuousFrames < 0 {
		add("min_continuous_frames must be non-negative, got %d", c.MinContinuousFrames)
	}
	if !c.Projection.Valid() {
		add("projection %d is not supported", int(c.Projection))
	}
	if c.SmoothingWindow < 1 {
		add("smoothing_window must be at least 1, got %d", c.SmoothingWindow)
	}
	if c.SmoothingWindowSeconds < 0 {
		add("smoothing_window_seconds must be non-negative, got %f", c.SmoothingWindowSeconds)
	}

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"amplitude_threshold", c.AmplitudeThreshold},
		{"tolerance_threshold", c.ToleranceThreshold},
		{"lenient_tolerance_threshold", c.LenientToleranceThreshold},
		{"max_set_gap_seconds", c.MaxSetGapSeconds},
		{"min_amplitude_threshold", c.MinAmplitudeThreshold},
	} {
		if f.value < 0 {
			add("%s must be non-negative, got %f", f.name, f.value)
		}
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"amplitude_fraction", c.AmplitudeFraction},
		{"tolerance_fraction", c.ToleranceFraction},
		{"lenient_tolerance_fraction", c.LenientToleranceFraction},
		{"min_amplitude_torso_fraction", c.MinAmplitudeTorsoFraction},
	} {
		if f.value < 0 || f.value > 1 {
			add("%s must be between 0 and 1, got %f", f.name, f.value)
		}
	}

	if c.LenientTolerance {
		if c.LeniencyMaxCycles < 0 {
			add("leniency_max_cycles must be non-negative, got %d", c.LeniencyMaxCycles)
		}
		if c.LenientToleranceThreshold > 0 && c.ToleranceThreshold > 0 &&
			c.LenientToleranceThreshold < c.ToleranceThreshold {
			add("lenient_tolerance_threshold %f is stricter than tolerance_threshold %f",
				c.LenientToleranceThreshold, c.ToleranceThreshold)
		}
		if c.LenientToleranceThreshold == 0 && c.ToleranceThreshold == 0 &&
			c.LenientToleranceFraction < c.ToleranceFraction {
			add("lenient_tolerance_fraction %f is stricter than tolerance_fraction %f",
				c.LenientToleranceFraction, c.ToleranceFraction)
		}
	}

	if len(c.CandidateJoints) == 0 {
		add("candidate_joints must not be empty")
	}
	seen := make(map[l1pose.JointID]bool, len(c.CandidateJoints))
	for _, j := range c.CandidateJoints {
		if !j.Valid() {
			add("candidate joint %d is not a known joint", int(j))
			continue
		}
		if seen[j] {
			add("candidate joint %s listed more than once", j)
		}
		seen[j] = true
	}
	if c.Workers < 0 {
		add("workers must be non-negative, got %d", c.Workers)
	}

	if errs != nil {
		return &ConfigError{Err: errs}
	}
	return nil
}

// signalConfig returns the L2 configuration for the given frames, converting
// a time-based smoothing window into samples.
func (c Config) signalConfig(frames []l1pose.PoseFrame) l2signal.Config {
	window := c.SmoothingWindow
	if c.SmoothingWindowSeconds > 0 {
		window = l2signal.WindowFromSeconds(c.SmoothingWindowSeconds, l1pose.MedianInterval(frames))
	}
	return l2signal.Config{
		MinConfidence:       c.MinConfidence,
		MinContinuousFrames: c.MinContinuousFrames,
		Projection:          c.Projection,
		SmoothingWindow:     window,
	}
}

// CycleParams resolves the absolute L3 thresholds for a reference range.
// torsoLength is the subject's median torso length, or 0 when unknown.
func (c Config) CycleParams(referenceSpan, torsoLength float64) l3cycles.Params {
	amplitude := resolveThreshold(c.AmplitudeThreshold, c.AmplitudeFraction, referenceSpan)
	if c.AmplitudeThreshold <= 0 {
		amplitude = max(amplitude, c.amplitudeFloor(torsoLength))
	}
	p := l3cycles.Params{
		AmplitudeThreshold: amplitude,
		ToleranceThreshold: resolveThreshold(c.ToleranceThreshold, c.ToleranceFraction, referenceSpan),
	}
	if c.LenientTolerance {
		p.LenientTolerance = resolveThreshold(c.LenientToleranceThreshold, c.LenientToleranceFraction, referenceSpan)
		p.LeniencyMaxCycles = c.LeniencyMaxCycles
	}
	return p
}

func (c Config) amplitudeFloor(torsoLength float64) float64 {
	if torsoLength > 0 && c.MinAmplitudeTorsoFraction > 0 {
		return c.MinAmplitudeTorsoFraction * torsoLength
	}
	return c.MinAmplitudeThreshold
}

func resolveThreshold(absolute, fraction, span float64) float64 {
	if absolute > 0 {
		return absolute
	}
	return fraction * span
}
