package l3cycles

import (
	"errors"
	"fmt"
	"math"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l2signal"
)

// Direction is the way the signal leaves the rest position.
type Direction int

const (
	// Ascending movements rest low and rise to a maximum.
	Ascending Direction = iota
	// Descending movements rest high and fall to a minimum.
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "descending"
	}
	return "ascending"
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ascending":
		*d = Ascending
	case "descending":
		*d = Descending
	default:
		return fmt.Errorf("unknown direction %q", text)
	}
	return nil
}

// Cycle is one admitted repetition. StartIndex < PeakIndex < EndIndex.
type Cycle struct {
	StartIndex int     `json:"start_index"`
	PeakIndex  int     `json:"peak_index"`
	EndIndex   int     `json:"end_index"`
	StartTime  float64 `json:"start_time"`
	PeakTime   float64 `json:"peak_time"`
	EndTime    float64 `json:"end_time"`
	// Amplitude is the distance from the peak to the boundary furthest from
	// it, always non-negative.
	Amplitude float64 `json:"amplitude"`
	// ReturnDistance is |value[end] - value[start]|.
	ReturnDistance float64   `json:"return_distance"`
	Direction      Direction `json:"direction"`
}

// Duration returns the cycle length in seconds.
func (c Cycle) Duration() float64 {
	return c.EndTime - c.StartTime
}

// RejectReason explains why a candidate cycle was discarded.
type RejectReason string

const (
	RejectAmplitude RejectReason = "amplitude_below_threshold"
	RejectReturn    RejectReason = "return_exceeds_tolerance"
)

// Rejection records a closed candidate that failed admission.
type Rejection struct {
	Candidate Cycle
	Reason    RejectReason
}

// Params holds the absolute admission thresholds for one detection.
type Params struct {
	AmplitudeThreshold float64 `json:"amplitude_threshold"`
	ToleranceThreshold float64 `json:"tolerance_threshold"`
	// LenientTolerance enables the few-cycles leniency when it is larger than
	// ToleranceThreshold: if the strict pass admits at most LeniencyMaxCycles
	// cycles, detection reruns with this tolerance and keeps the result only
	// when it admits more.
	LenientTolerance  float64 `json:"lenient_tolerance,omitempty"`
	LeniencyMaxCycles int     `json:"leniency_max_cycles,omitempty"`
}

// Validate reports parameter values that can never produce a sensible
// detection.
func (p Params) Validate() error {
	if p.AmplitudeThreshold < 0 {
		return fmt.Errorf("amplitude threshold must be non-negative, got %f", p.AmplitudeThreshold)
	}
	if p.ToleranceThreshold < 0 {
		return fmt.Errorf("tolerance threshold must be non-negative, got %f", p.ToleranceThreshold)
	}
	if p.LenientTolerance < 0 {
		return fmt.Errorf("lenient tolerance must be non-negative, got %f", p.LenientTolerance)
	}
	if p.LeniencyMaxCycles < 0 {
		return fmt.Errorf("leniency max cycles must be non-negative, got %d", p.LeniencyMaxCycles)
	}
	return nil
}

func (p Params) lenient() bool {
	return p.LenientTolerance > p.ToleranceThreshold
}

// Detection is the outcome of running the detector over one signal.
type Detection struct {
	Cycles     []Cycle
	Rejections []Rejection
	Direction  Direction
	Minima     int
	Maxima     int
	// MeanMinimum and MeanMaximum are the average extremum values.
	MeanMinimum float64
	MeanMaximum float64
	// Lenient is true when the lenient tolerance produced the result.
	Lenient bool
}

// MeanAmplitude returns the average amplitude of the admitted cycles.
func (d Detection) MeanAmplitude() float64 {
	if len(d.Cycles) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range d.Cycles {
		sum += c.Amplitude
	}
	return sum / float64(len(d.Cycles))
}

// ErrLengthMismatch is returned by Detect when values and timestamps differ
// in length.
var ErrLengthMismatch = errors.New("values and timestamps differ in length")

// DetectSignal runs Detect over a joint signal's smoothed values.
func DetectSignal(sig *l2signal.JointSignal, p Params) (Detection, error) {
	if sig == nil {
		return Detection{}, nil
	}
	return Detect(sig.Values, sig.Timestamps, p)
}

// Detect finds the admitted repetition cycles in values. timestamps must be
// the same length as values; otherwise it returns ErrLengthMismatch.
func Detect(values, timestamps []float64, p Params) (Detection, error) {
	if len(values) != len(timestamps) {
		return Detection{}, fmt.Errorf("%w: %d values but %d timestamps", ErrLengthMismatch, len(values), len(timestamps))
	}

	ext := FindExtrema(values)
	det := scan(values, timestamps, ext, p.AmplitudeThreshold, p.ToleranceThreshold)
	if p.lenient() && len(det.Cycles) <= p.LeniencyMaxCycles {
		relaxed := scan(values, timestamps, ext, p.AmplitudeThreshold, p.LenientTolerance)
		if len(relaxed.Cycles) > len(det.Cycles) {
			relaxed.Lenient = true
			return relaxed, nil
		}
	}
	return det, nil
}

// InferDirection decides whether the movement rests low (Ascending) or high
// (Descending). The first extremum is the starting posture: it rests on
// whichever side, minima or maxima, its value lies closer to on average.
// When the two are equally close the type of the first extremum decides.
func InferDirection(ext []Extremum) Direction {
	if len(ext) == 0 {
		return Ascending
	}
	first := ext[0]
	minima, maxima := SplitExtrema(ext)
	if len(minima) > 0 && len(maxima) > 0 {
		toMin := math.Abs(first.Value - meanValue(minima))
		toMax := math.Abs(first.Value - meanValue(maxima))
		switch {
		case toMax < toMin:
			return Descending
		case toMin < toMax:
			return Ascending
		}
	}
	if first.Kind == Maximum {
		return Descending
	}
	return Ascending
}

type scanState int

const (
	stateInitial scanState = iota // waiting for a rest extremum
	stateMoving                   // left rest, waiting for the peak
	statePeak                     // at the peak, waiting for the return
)

func scan(values, timestamps []float64, ext []Extremum, ampThreshold, tolerance float64) Detection {
	minima, maxima := SplitExtrema(ext)
	det := Detection{
		Minima:      len(minima),
		Maxima:      len(maxima),
		MeanMinimum: meanValue(minima),
		MeanMaximum: meanValue(maxima),
	}
	if len(minima) == 0 || len(maxima) == 0 {
		return det
	}

	det.Direction = InferDirection(ext)
	rest := Minimum
	if det.Direction == Descending {
		rest = Maximum
	}

	state := stateInitial
	var start, peak Extremum
	for _, e := range ext {
		switch state {
		case stateInitial:
			if e.Kind == rest {
				start = e
				state = stateMoving
			}
		case stateMoving:
			if e.Kind == rest {
				start = e
				continue
			}
			peak = e
			state = statePeak
		case statePeak:
			if e.Kind != rest {
				peak = e
				continue
			}
			c := makeCycle(values, timestamps, start, peak, e, det.Direction)
			switch {
			case c.Amplitude < ampThreshold:
				det.Rejections = append(det.Rejections, Rejection{Candidate: c, Reason: RejectAmplitude})
			case c.ReturnDistance > tolerance:
				det.Rejections = append(det.Rejections, Rejection{Candidate: c, Reason: RejectReturn})
			default:
				det.Cycles = append(det.Cycles, c)
			}
			// The closing rest extremum starts the next candidate whether or
			// not this one was admitted.
			start = e
			state = stateMoving
		}
	}
	return det
}

func makeCycle(values, timestamps []float64, start, peak, end Extremum, dir Direction) Cycle {
	si, pi, ei := start.Last, peak.Mid(), end.First
	sv, pv, ev := values[si], values[pi], values[ei]

	var amp float64
	if dir == Ascending {
		amp = pv - min(sv, ev)
	} else {
		amp = max(sv, ev) - pv
	}
	ret := ev - sv
	if ret < 0 {
		ret = -ret
	}

	return Cycle{
		StartIndex:     si,
		PeakIndex:      pi,
		EndIndex:       ei,
		StartTime:      timestamps[si],
		PeakTime:       timestamps[pi],
		EndTime:        timestamps[ei],
		Amplitude:      amp,
		ReturnDistance: ret,
		Direction:      dir,
	}
}
