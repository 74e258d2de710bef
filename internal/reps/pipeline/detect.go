package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l2signal"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l3cycles"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l4sets"
)

// Result is the outcome of one detection run over a frame sequence.
type Result struct {
	Outcome    Outcome `json:"outcome"`
	FrameCount int     `json:"frame_count"`

	// KeyJoint is meaningful only when Selected is true. It is omitted from
	// the JSON form otherwise.
	KeyJoint l1pose.JointID `json:"-"`
	Selected bool           `json:"selected"`

	Sets []l4sets.DetectedExerciseSet `json:"sets"`

	// Signal and Detection belong to the selected joint. Both are nil or
	// zero when no joint was selected.
	Signal    *l2signal.JointSignal `json:"-"`
	Detection l3cycles.Detection    `json:"-"`

	Params     l3cycles.Params  `json:"params"`
	Candidates []CandidateScore `json:"candidates"`
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		KeyJoint *l1pose.JointID `json:"key_joint,omitempty"`
	}{plain: plain(r)}
	if r.Selected {
		key := r.KeyJoint
		out.KeyJoint = &key
	}
	return json.Marshal(out)
}

// InputError returns the typed error for outcomes where the input could not
// be analysed, or nil.
func (r *Result) InputError() error {
	switch r.Outcome {
	case OutcomeTooFewFrames:
		return &InputError{Outcome: r.Outcome, Err: ErrTooFewFrames}
	case OutcomeNoUsableJoints:
		return &InputError{Outcome: r.Outcome, Err: ErrNoUsableJoints}
	}
	return nil
}

// TotalReps returns the number of repetitions across all sets.
func (r *Result) TotalReps() int {
	return l4sets.TotalReps(r.Sets)
}

// Cycles returns every admitted cycle of the selected joint.
func (r *Result) Cycles() []l3cycles.Cycle {
	return r.Detection.Cycles
}

// DetectSets analyses frames and groups the repetitions of the most
// rhythmic candidate joint into exercise sets.
//
// An invalid cfg returns a *ConfigError before any frame is inspected.
// Frames with decreasing timestamps or out-of-range confidences return an
// error wrapping l1pose.ErrMalformedSequence. Input that is too short, or in
// which no candidate joint is ever visible, is not an error: the Result
// carries the corresponding Outcome instead.
func DetectSets(frames []l1pose.PoseFrame, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := &Result{FrameCount: len(frames)}
	if len(frames) < 2 {
		res.Outcome = OutcomeTooFewFrames
		return res, nil
	}
	if err := l1pose.ValidateSequence(frames); err != nil {
		return nil, fmt.Errorf("detect sets: %w", err)
	}

	cands := buildCandidates(frames, cfg)
	span := referenceSpan(cands)
	usable := 0
	for i := range cands {
		if cands[i].signal != nil {
			usable++
		}
	}
	if usable == 0 {
		res.Outcome = OutcomeNoUsableJoints
		res.Candidates = scores(cands)
		diagf("no usable joint among %d candidates (%d frames)", len(cands), len(frames))
		return res, nil
	}

	torso, _ := l1pose.TorsoLength(frames, cfg.MinConfidence)
	res.Params = cfg.CycleParams(span, torso)
	diagf("reference span %.3f torso length %.3f: amplitude threshold %.3f",
		span, torso, res.Params.AmplitudeThreshold)
	if err := detectCandidates(cands, res.Params, cfg.Workers); err != nil {
		return nil, fmt.Errorf("detect sets: %w", err)
	}
	res.Candidates = scores(cands)
	for _, s := range res.Candidates {
		if s.Visible {
			diagf("candidate %s: span=%.3f cycles=%d mean_amplitude=%.3f lenient=%t",
				s.Joint, s.Span, s.Cycles, s.MeanAmplitude, s.Lenient)
		}
	}

	best := selectKeyJoint(cands)
	if best < 0 {
		res.Outcome = OutcomeNoExercise
		diagf("no exercise: amplitude=%.3f tolerance=%.3f span=%.3f",
			res.Params.AmplitudeThreshold, res.Params.ToleranceThreshold, span)
		return res, nil
	}

	key := cands[best]
	res.KeyJoint = key.joint
	res.Selected = true
	res.Signal = key.signal
	res.Detection = key.det
	res.Sets = l4sets.Segment(key.det.Cycles, key.joint, cfg.MaxSetGapSeconds)
	res.Outcome = OutcomeSetsDetected
	diagf("selected %s: %d cycles in %d sets", key.joint, len(key.det.Cycles), len(res.Sets))
	return res, nil
}

func scores(cands []candidate) []CandidateScore {
	out := make([]CandidateScore, len(cands))
	for i := range cands {
		out[i] = cands[i].score()
	}
	return out
}
