package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/pipeline"
	"github.com/willGauntletAi/tiktok-sub000/internal/testutil"
	"github.com/willGauntletAi/tiktok-sub000/internal/timeutil"
)

// newTestDB creates a migrated database in a temporary directory.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// twoSetRun analyses a synthetic clip with two sets (2 reps, then 1 rep).
func twoSetRun(t *testing.T, source string, started time.Time) *pipeline.Run {
	t.Helper()
	values := testutil.Concat(
		testutil.TwoRepExample(),
		testutil.Rest(40),
		[]float64{5, 10, 5, 0, 0},
	)
	frames := testutil.PoseFrames(l1pose.LeftWrist, values, 0.1, 1)

	cfg := pipeline.DefaultConfig()
	cfg.SmoothingWindow = 1
	cfg.SmoothingWindowSeconds = 0
	cfg.AmplitudeThreshold = 3
	cfg.ToleranceThreshold = 1
	cfg.MaxSetGapSeconds = 2

	r := &pipeline.Runner{Config: cfg, Clock: timeutil.NewMockClock(started)}
	run, err := r.Run(context.Background(), source, frames)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(run.Result.Sets) != 2 {
		t.Fatalf("fixture produced %d sets, want 2", len(run.Result.Sets))
	}
	return run
}

// emptyRun analyses a clip too short to analyse.
func emptyRun(t *testing.T, source string, started time.Time) *pipeline.Run {
	t.Helper()
	r := &pipeline.Runner{Config: pipeline.DefaultConfig(), Clock: timeutil.NewMockClock(started)}
	run, err := r.Run(context.Background(), source, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return run
}
