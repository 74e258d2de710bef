package l2signal

import (
	"errors"
	"math"
	"testing"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
)

const eps = 1e-9

func trackFrames(joint l1pose.JointID, pts []l1pose.Point, conf []float64) []l1pose.PoseFrame {
	frames := make([]l1pose.PoseFrame, len(pts))
	for i, p := range pts {
		c := 1.0
		if conf != nil {
			c = conf[i]
		}
		frames[i] = l1pose.PoseFrame{
			Timestamp: float64(i) * 0.1,
			Joints:    map[l1pose.JointID]l1pose.JointObservation{joint: {Position: p, Confidence: c}},
		}
	}
	return frames
}

func verticalTrack(ys ...float64) []l1pose.Point {
	pts := make([]l1pose.Point, len(ys))
	for i, y := range ys {
		pts[i] = l1pose.Point{X: 10, Y: y}
	}
	return pts
}

func assertSlice(t *testing.T, name string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: length %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-6 {
			t.Errorf("%s[%d] = %v, want %v", name, i, got[i], want[i])
		}
	}
}

func defaultTestConfig() Config {
	return Config{MinConfidence: 0.3, MinContinuousFrames: 3, SmoothingWindow: 1}
}

func TestBuildTooFewFrames(t *testing.T) {
	frames := trackFrames(l1pose.LeftWrist, verticalTrack(1), nil)
	if _, err := Build(frames, l1pose.LeftWrist, defaultTestConfig()); !errors.Is(err, ErrTooFewFrames) {
		t.Fatalf("expected ErrTooFewFrames, got %v", err)
	}
	if _, err := Build(nil, l1pose.LeftWrist, defaultTestConfig()); !errors.Is(err, ErrTooFewFrames) {
		t.Fatalf("expected ErrTooFewFrames for nil frames, got %v", err)
	}
}

func TestBuildJointNeverVisible(t *testing.T) {
	frames := trackFrames(l1pose.LeftWrist, verticalTrack(1, 2, 3), []float64{0.1, 0.2, 0.29})
	_, err := Build(frames, l1pose.LeftWrist, defaultTestConfig())
	if !errors.Is(err, ErrJointNeverVisible) {
		t.Fatalf("expected ErrJointNeverVisible, got %v", err)
	}

	// A joint absent from every frame is treated the same way.
	_, err = Build(frames, l1pose.RightAnkle, defaultTestConfig())
	if !errors.Is(err, ErrJointNeverVisible) {
		t.Fatalf("expected ErrJointNeverVisible for absent joint, got %v", err)
	}
}

func TestBuildBaselineDistance(t *testing.T) {
	frames := trackFrames(l1pose.LeftWrist, verticalTrack(0, 0, 5, 10, 5, 0), nil)
	sig, err := Build(frames, l1pose.LeftWrist, defaultTestConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	assertSlice(t, "Values", sig.Values, []float64{0, 0, 5, 10, 5, 0})
	assertSlice(t, "Timestamps", sig.Timestamps, []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5})
	if sig.UsableFrames != 6 {
		t.Errorf("UsableFrames = %d, want 6", sig.UsableFrames)
	}
	if sig.Span() != 10 {
		t.Errorf("Span = %v, want 10", sig.Span())
	}
}

func TestBuildBaselineSkipsLeadingGatedFrames(t *testing.T) {
	frames := trackFrames(l1pose.LeftKnee, verticalTrack(100, 2, 4, 2), []float64{0.1, 0.9, 0.9, 0.9})
	sig, err := Build(frames, l1pose.LeftKnee, defaultTestConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	assertSlice(t, "Values", sig.Values, []float64{0, 0, 2, 0})
	if sig.Kinds[0] != SampleNeutral {
		t.Errorf("Kinds[0] = %v, want SampleNeutral", sig.Kinds[0])
	}
}

func TestContinuityPolicy(t *testing.T) {
	testCases := []struct {
		name      string
		conf      []float64
		wantKinds []SampleKind
		// want holds the y position each frame contributes.
		want []float64
	}{
		{
			name:      "long_run_holds_last",
			conf:      []float64{1, 1, 1, 1, 0, 0, 1},
			wantKinds: []SampleKind{SampleFresh, SampleFresh, SampleFresh, SampleFresh, SampleHeld, SampleHeld, SampleFresh},
			want:      []float64{0, 1, 2, 3, 3, 3, 6},
		},
		{
			name:      "short_run_goes_neutral",
			conf:      []float64{0, 1, 1, 0, 1, 1, 1},
			wantKinds: []SampleKind{SampleNeutral, SampleFresh, SampleFresh, SampleNeutral, SampleFresh, SampleFresh, SampleFresh},
			want:      []float64{0, 1, 2, 0, 4, 5, 6},
		},
		{
			name:      "run_resets_after_gap",
			conf:      []float64{1, 1, 1, 0, 1, 0, 1},
			wantKinds: []SampleKind{SampleFresh, SampleFresh, SampleFresh, SampleHeld, SampleFresh, SampleNeutral, SampleFresh},
			want:      []float64{0, 1, 2, 2, 4, 0, 6},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frames := trackFrames(l1pose.RightWrist, verticalTrack(0, 1, 2, 3, 4, 5, 6), tc.conf)
			sig, err := Build(frames, l1pose.RightWrist, defaultTestConfig())
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if len(sig.Values) != len(frames) {
				t.Fatalf("signal length %d, want %d", len(sig.Values), len(frames))
			}
			for i, k := range tc.wantKinds {
				if sig.Kinds[i] != k {
					t.Errorf("Kinds[%d] = %v, want %v", i, sig.Kinds[i], k)
				}
			}
			// Baseline is the first usable position, so values are offsets from it.
			base := 0.0
			for i, k := range tc.wantKinds {
				if k == SampleFresh {
					base = float64(i)
					break
				}
			}
			want := make([]float64, len(tc.want))
			for i, v := range tc.want {
				if tc.wantKinds[i] != SampleNeutral {
					want[i] = math.Abs(v - base)
				}
			}
			assertSlice(t, "Values", sig.Values, want)
		})
	}
}

func TestPrincipalAxisDiagonal(t *testing.T) {
	pts := []l1pose.Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {2, 2}, {1, 1}, {0, 0}}
	mean, axis := PrincipalAxis(pts)
	if math.Abs(mean.X-9.0/7) > eps || math.Abs(mean.Y-9.0/7) > eps {
		t.Errorf("mean = %+v", mean)
	}
	if math.Abs(math.Abs(axis.X)-math.Sqrt2/2) > 1e-6 || math.Abs(math.Abs(axis.Y)-math.Sqrt2/2) > 1e-6 {
		t.Errorf("axis = %+v, want diagonal", axis)
	}
	if axis.X*axis.Y < 0 {
		t.Errorf("axis components should share sign, got %+v", axis)
	}
}

func TestPrincipalAxisStatic(t *testing.T) {
	_, axis := PrincipalAxis([]l1pose.Point{{5, 5}, {5, 5}, {5, 5}})
	if axis != (l1pose.Point{X: 0, Y: 1}) {
		t.Errorf("static points axis = %+v, want vertical", axis)
	}
	_, axis = PrincipalAxis([]l1pose.Point{{5, 5}})
	if axis != (l1pose.Point{X: 0, Y: 1}) {
		t.Errorf("single point axis = %+v, want vertical", axis)
	}
}

func TestBuildPrincipalAxis(t *testing.T) {
	// Diagonal motion: distance along the diagonal goes 0 → 3√2 → 0.
	pts := []l1pose.Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {2, 2}, {1, 1}, {0, 0}}
	cfg := defaultTestConfig()
	cfg.Projection = ProjectionPrincipalAxis
	sig, err := Build(trackFrames(l1pose.LeftAnkle, pts, nil), l1pose.LeftAnkle, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if sig.Values[0] > 0 {
		t.Errorf("first sample should project at or below the mean, got %v", sig.Values[0])
	}
	if sig.Values[3] <= sig.Values[0] {
		t.Errorf("peak %v should exceed rest %v", sig.Values[3], sig.Values[0])
	}
	if got, want := sig.Span(), 3*math.Sqrt2; math.Abs(got-want) > 1e-6 {
		t.Errorf("Span = %v, want %v", got, want)
	}
}

func TestMovingAverage(t *testing.T) {
	in := []float64{0, 0, 0, 5, 10, 5, 0}
	assertSlice(t, "window3", MovingAverage(in, 3), []float64{0, 0, 5.0 / 3, 5, 20.0 / 3, 5, 2.5})
	assertSlice(t, "window1", MovingAverage(in, 1), in)
	// Even windows widen to the next odd size.
	assertSlice(t, "window2", MovingAverage(in, 2), MovingAverage(in, 3))
	if got := MovingAverage(nil, 5); len(got) != 0 {
		t.Errorf("empty input produced %v", got)
	}
}

func TestWindowFromSeconds(t *testing.T) {
	testCases := []struct {
		seconds, interval float64
		want              int
	}{
		{0, 0.1, 1},
		{0.5, 0, 1},
		{0.15, 1.0 / 30, 5},
		{0.2, 0.1, 3},
		{0.01, 0.1, 1},
	}
	for _, tc := range testCases {
		if got := WindowFromSeconds(tc.seconds, tc.interval); got != tc.want {
			t.Errorf("WindowFromSeconds(%v, %v) = %d, want %d", tc.seconds, tc.interval, got, tc.want)
		}
	}
}

func TestParseProjection(t *testing.T) {
	for _, p := range []Projection{ProjectionBaselineDistance, ProjectionPrincipalAxis} {
		got, err := ParseProjection(p.String())
		if err != nil || got != p {
			t.Errorf("ParseProjection(%q) = %v, %v", p.String(), got, err)
		}
	}
	if got, _ := ParseProjection("PCA"); got != ProjectionPrincipalAxis {
		t.Errorf("ParseProjection(PCA) = %v", got)
	}
	if _, err := ParseProjection("fourier"); err == nil {
		t.Error("expected error for unknown projection")
	}
}
