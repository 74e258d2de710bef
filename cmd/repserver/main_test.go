package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/willGauntletAi/tiktok-sub000/internal/api"
	"github.com/willGauntletAi/tiktok-sub000/internal/config"
	"github.com/willGauntletAi/tiktok-sub000/internal/db"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/pipeline"
	"github.com/willGauntletAi/tiktok-sub000/internal/testutil"
)

func TestLoadTuning(t *testing.T) {
	tuning, err := loadTuning("")
	if err != nil {
		t.Fatalf("loadTuning(\"\") failed: %v", err)
	}
	if tuning.GetProjection().String() != "baseline_distance" {
		t.Errorf("default projection = %s", tuning.GetProjection())
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	if err := os.WriteFile(path, []byte(`{"projection": "principal_axis", "max_set_gap": "4s"}`), 0644); err != nil {
		t.Fatal(err)
	}
	tuning, err = loadTuning(path)
	if err != nil {
		t.Fatalf("loadTuning failed: %v", err)
	}
	if tuning.GetProjection().String() != "principal_axis" || tuning.GetMaxSetGap().Seconds() != 4 {
		t.Errorf("file values not applied: %s %v", tuning.GetProjection(), tuning.GetMaxSetGap())
	}
	if tuning.GetSmoothingWindow() != 5 {
		t.Errorf("unset fields should keep defaults, smoothing_window = %d", tuning.GetSmoothingWindow())
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"min_confidence": 3}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTuning(bad); err == nil {
		t.Error("out-of-range config should fail")
	}
}

func TestNewHandler(t *testing.T) {
	store, err := db.NewDB(filepath.Join(t.TempDir(), "reps.db"))
	testutil.AssertNoError(t, err)
	defer store.Close()

	handler, err := newHandler(store, api.NewServer(store, config.DefaultTuningConfig()))
	testutil.AssertNoError(t, err)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/version", http.StatusOK},
		{"/api/config", http.StatusOK},
		{"/api/runs", http.StatusOK},
		{"/api/runs/missing", http.StatusNotFound},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		t.Run(tt.path, func(t *testing.T) {
			testutil.AssertStatusCode(t, w.Code, tt.status)
		})
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	handler.ServeHTTP(w, req)
	if w.Code == http.StatusNotFound {
		t.Error("admin routes should be mounted")
	}
}

func TestGRPCServer(t *testing.T) {
	store, err := db.NewDB(filepath.Join(t.TempDir(), "reps.db"))
	testutil.AssertNoError(t, err)
	defer store.Close()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	testutil.AssertNoError(t, err)
	gs := newGRPCServer(api.NewServer(store, config.DefaultTuningConfig()))
	go gs.Serve(lis)
	defer gs.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	testutil.AssertNoError(t, err)
	defer conn.Close()

	frames := testutil.PoseFrames(l1pose.LeftWrist, testutil.TwoRepExample(), 0.1, 0.9)
	tuning, err := config.ParseTuningConfig([]byte(`{"smoothing_window":1,"amplitude_threshold":3,"tolerance_threshold":1}`))
	testutil.AssertNoError(t, err)

	resp, err := api.NewDetectClient(conn).Detect(context.Background(), api.DetectRequest{Source: "clip", Frames: frames, Tuning: tuning})
	testutil.AssertNoError(t, err)
	if resp.Outcome != pipeline.OutcomeSetsDetected || resp.TotalReps != 2 {
		t.Errorf("got %s with %d reps, want sets_detected with 2", resp.Outcome, resp.TotalReps)
	}

	runs, err := store.ListAnalysisRuns(10)
	testutil.AssertNoError(t, err)
	if len(runs) != 1 {
		t.Errorf("recorded %d runs, want 1", len(runs))
	}
}
