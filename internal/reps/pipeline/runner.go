package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/willGauntletAi/tiktok-sub000/internal/monitoring"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"github.com/willGauntletAi/tiktok-sub000/internal/timeutil"
	"golang.org/x/sync/errgroup"
)

// Run is one completed detection over a recorded video.
type Run struct {
	RunID     string        `json:"run_id"`
	Source    string        `json:"source"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Config    Config        `json:"config"`
	Result    *Result       `json:"result"`
}

// Recorder persists completed runs.
type Recorder interface {
	RecordAnalysisRun(run *Run) error
}

// Input names one frame sequence for RunBatch.
type Input struct {
	Source string
	Frames []l1pose.PoseFrame
}

// Runner wraps DetectSets with run identity, timing and cancellation.
// A Runner is safe for concurrent use as long as its fields are not
// modified after the first call.
type Runner struct {
	Config Config
	Clock  timeutil.Clock
	// Recorder, when set, receives every run that completed without error.
	Recorder Recorder
}

// NewRunner creates a Runner using cfg and the wall clock.
func NewRunner(cfg Config) *Runner {
	return &Runner{Config: cfg, Clock: timeutil.RealClock{}}
}

func (r *Runner) clock() timeutil.Clock {
	if r.Clock == nil {
		return timeutil.RealClock{}
	}
	return r.Clock
}

// Run analyses one frame sequence. The context is checked before analysis
// starts; the analysis itself runs to completion.
func (r *Runner) Run(ctx context.Context, source string, frames []l1pose.PoseFrame) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run %q: %w", source, err)
	}

	clock := r.clock()
	run := &Run{
		RunID:     uuid.New().String(),
		Source:    source,
		StartedAt: clock.Now(),
		Config:    r.Config,
	}

	res, err := DetectSets(frames, r.Config)
	if err != nil {
		monitoring.Logf("[Runner] run %s for %s failed: %v", run.RunID, source, err)
		return nil, err
	}
	run.Result = res
	run.Duration = clock.Since(run.StartedAt)

	monitoring.Debugf("[Runner] run %s for %s: outcome=%s sets=%d reps=%d in %v",
		run.RunID, source, res.Outcome, len(res.Sets), res.TotalReps(), run.Duration)

	if r.Recorder != nil {
		if err := r.Recorder.RecordAnalysisRun(run); err != nil {
			return run, fmt.Errorf("record run %s: %w", run.RunID, err)
		}
	}
	return run, nil
}

// RunBatch analyses independent inputs concurrently, at most limit at a
// time (limit < 1 means unbounded). Results are returned in input order.
// The first error cancels the runs that have not started yet.
func (r *Runner) RunBatch(ctx context.Context, inputs []Input, limit int) ([]*Run, error) {
	runs := make([]*Run, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, in := range inputs {
		g.Go(func() error {
			run, err := r.Run(gctx, in.Source, in.Frames)
			if err != nil {
				return err
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}
