package pipeline

import (
	"errors"
	"fmt"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l2signal"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l3cycles"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// CandidateScore summarises how one candidate joint fared during selection.
type CandidateScore struct {
	Joint         l1pose.JointID `json:"joint"`
	Visible       bool           `json:"visible"`
	Span          float64        `json:"span"`
	Cycles        int            `json:"cycles"`
	MeanAmplitude float64        `json:"mean_amplitude"`
	Lenient       bool           `json:"lenient,omitempty"`
}

type candidate struct {
	joint  l1pose.JointID
	signal *l2signal.JointSignal
	det    l3cycles.Detection
}

func (c *candidate) score() CandidateScore {
	s := CandidateScore{Joint: c.joint, Visible: c.signal != nil}
	if c.signal != nil {
		s.Span = c.signal.Span()
		s.Cycles = len(c.det.Cycles)
		s.MeanAmplitude = c.det.MeanAmplitude()
		s.Lenient = c.det.Lenient
	}
	return s
}

// forEach runs fn for every index in [0,n). With more than one worker the
// calls run concurrently, bounded by workers. fn must only write to state
// owned by its index.
func forEach(n, workers int, fn func(i int)) {
	if workers < 2 || n < 2 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

// buildCandidates constructs the signal of every candidate joint. Joints
// that are never visible keep a nil signal.
func buildCandidates(frames []l1pose.PoseFrame, cfg Config) []candidate {
	sigCfg := cfg.signalConfig(frames)
	cands := make([]candidate, len(cfg.CandidateJoints))
	forEach(len(cands), cfg.Workers, func(i int) {
		joint := cfg.CandidateJoints[i]
		cands[i].joint = joint
		sig, err := l2signal.Build(frames, joint, sigCfg)
		if err != nil {
			if !errors.Is(err, l2signal.ErrJointNeverVisible) {
				opsf("signal build for %s failed: %v", joint, err)
			}
			return
		}
		cands[i].signal = sig
	})
	return cands
}

// referenceSpan returns the largest value range among usable candidates.
func referenceSpan(cands []candidate) float64 {
	span := 0.0
	for i := range cands {
		if cands[i].signal == nil {
			continue
		}
		span = max(span, cands[i].signal.Span())
	}
	return span
}

func detectCandidates(cands []candidate, params l3cycles.Params, workers int) error {
	errs := make([]error, len(cands))
	forEach(len(cands), workers, func(i int) {
		if cands[i].signal == nil {
			return
		}
		det, err := l3cycles.DetectSignal(cands[i].signal, params)
		if err != nil {
			errs[i] = fmt.Errorf("%s: %w", cands[i].joint, err)
			return
		}
		cands[i].det = det
	})
	return multierr.Combine(errs...)
}

// selectKeyJoint picks the candidate with the most admitted cycles, breaking
// ties by the larger mean amplitude and then by candidate order. It returns
// -1 when no candidate has a cycle.
func selectKeyJoint(cands []candidate) int {
	best := -1
	for i := range cands {
		n := len(cands[i].det.Cycles)
		if n == 0 {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		bn := len(cands[best].det.Cycles)
		if n > bn || (n == bn && cands[i].det.MeanAmplitude() > cands[best].det.MeanAmplitude()) {
			best = i
		}
	}
	return best
}
