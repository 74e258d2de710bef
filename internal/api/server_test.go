package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/willGauntletAi/tiktok-sub000/internal/config"
	"github.com/willGauntletAi/tiktok-sub000/internal/db"
	"github.com/willGauntletAi/tiktok-sub000/internal/httputil"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"github.com/willGauntletAi/tiktok-sub000/internal/testutil"
	"github.com/willGauntletAi/tiktok-sub000/internal/timeutil"
	"github.com/willGauntletAi/tiktok-sub000/internal/version"
)

const exactTuning = `{"smoothing_window":1,"amplitude_threshold":3,"tolerance_threshold":1}`

func newTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	store, err := db.NewDB(cloneAPITestDB(t))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	s := NewServer(store, config.DefaultTuningConfig())
	s.clock = timeutil.NewMockClock(time.Date(2026, 5, 1, 7, 0, 0, 0, time.UTC))
	return s, store
}

func detectBody(t *testing.T, source string, frames []l1pose.PoseFrame, tuning string) *bytes.Reader {
	t.Helper()
	body := map[string]interface{}{"source": source, "frames": frames}
	if tuning != "" {
		body["tuning"] = json.RawMessage(tuning)
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return bytes.NewReader(data)
}

func twoRepFrames() []l1pose.PoseFrame {
	return testutil.PoseFrames(l1pose.LeftWrist, testutil.TwoRepExample(), 0.1, 0.9)
}

func serve(s *Server, method, path string, body *bytes.Reader) *httptest.ResponseRecorder {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestDetectStoresRun(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, http.MethodPost, "/api/detect", detectBody(t, "squats.mp4", twoRepFrames(), exactTuning))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp DetectResponse
	decode(t, w, &resp)

	if resp.Outcome.String() != "sets_detected" {
		t.Errorf("outcome = %s, want sets_detected", resp.Outcome)
	}
	if resp.KeyJoint != "left_wrist" || resp.TotalReps != 2 {
		t.Errorf("key=%s reps=%d, want left_wrist/2", resp.KeyJoint, resp.TotalReps)
	}
	testutil.AssertSetReps(t, resp.Sets, 2)
	if resp.Sets[0].StartTime != 0.2 {
		t.Errorf("set start = %v, want 0.2", resp.Sets[0].StartTime)
	}
	if !resp.Stored || resp.RunID == "" {
		t.Errorf("run should be stored with an ID: %+v", resp)
	}

	// The stored run is visible through the runs endpoints.
	w = serve(s, http.MethodGet, "/api/runs", nil)
	var runs []db.AnalysisRun
	decode(t, w, &runs)
	if len(runs) != 1 || runs[0].RunID != resp.RunID || runs[0].Source != "squats.mp4" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if !runs[0].StartedAt.Equal(time.Date(2026, 5, 1, 7, 0, 0, 0, time.UTC)) {
		t.Errorf("started_at = %v", runs[0].StartedAt)
	}

	w = serve(s, http.MethodGet, "/api/runs/"+resp.RunID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get run status = %d", w.Code)
	}
	var detail struct {
		RunID    string         `json:"run_id"`
		RepCount int            `json:"rep_count"`
		Sets     []db.SetRecord `json:"sets"`
	}
	decode(t, w, &detail)
	if detail.RunID != resp.RunID || detail.RepCount != 2 {
		t.Errorf("detail = %+v", detail)
	}
	if len(detail.Sets) != 1 || len(detail.Sets[0].Cycles) != 2 {
		t.Errorf("stored sets = %+v", detail.Sets)
	}

	w = serve(s, http.MethodDelete, "/api/runs/"+resp.RunID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	w = serve(s, http.MethodGet, "/api/runs/"+resp.RunID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestDetectInputOutcome(t *testing.T) {
	s, _ := newTestServer(t)
	frames := twoRepFrames()[:1]

	w := serve(s, http.MethodPost, "/api/detect", detectBody(t, "", frames, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp DetectResponse
	decode(t, w, &resp)
	if resp.Outcome.String() != "too_few_frames" {
		t.Errorf("outcome = %s, want too_few_frames", resp.Outcome)
	}
	if resp.Source != "upload" {
		t.Errorf("source = %q, want default 'upload'", resp.Source)
	}
	if resp.KeyJoint != "" || resp.Sets == nil || len(resp.Sets) != 0 {
		t.Errorf("unexpected selection %+v", resp)
	}
}

func TestDetectErrors(t *testing.T) {
	s, _ := newTestServer(t)

	decreasing := twoRepFrames()
	decreasing[3].Timestamp = 0

	tests := []struct {
		name         string
		method       string
		body         *bytes.Reader
		wantStatus   int
		wantProblems int
	}{
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed, 0},
		{"empty body", http.MethodPost, bytes.NewReader(nil), http.StatusBadRequest, 0},
		{"unknown field", http.MethodPost, bytes.NewReader([]byte(`{"video":"x"}`)), http.StatusBadRequest, 0},
		{"bad projection", http.MethodPost, detectBody(t, "x", twoRepFrames(), `{"projection":"sideways"}`), http.StatusBadRequest, 0},
		{"out of range", http.MethodPost, detectBody(t, "x", twoRepFrames(), `{"amplitude_fraction":5,"tolerance_fraction":-1}`), http.StatusUnprocessableEntity, 2},
		{"malformed sequence", http.MethodPost, detectBody(t, "x", decreasing, ""), http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, tt.method, "/api/detect", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			var resp httputil.ErrorResponse
			decode(t, w, &resp)
			if resp.Error == "" {
				t.Error("error message should be set")
			}
			if len(resp.Problems) != tt.wantProblems {
				t.Errorf("problems = %v, want %d", resp.Problems, tt.wantProblems)
			}
		})
	}

	w := serve(s, http.MethodGet, "/api/runs", nil)
	var runs []db.AnalysisRun
	decode(t, w, &runs)
	if len(runs) != 0 {
		t.Errorf("failed requests stored %d runs", len(runs))
	}
}

func TestDetectChart(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, http.MethodPost, "/api/detect/chart", detectBody(t, "Morning squats", twoRepFrames(), exactTuning))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "Morning squats") || !strings.Contains(w.Body.String(), "Set 1: 2 reps") {
		t.Error("chart is missing the title or set label")
	}

	// Charts are previews and are not recorded.
	w = serve(s, http.MethodGet, "/api/runs", nil)
	var runs []db.AnalysisRun
	decode(t, w, &runs)
	if len(runs) != 0 {
		t.Errorf("chart request stored %d runs", len(runs))
	}
}

func TestDetectPlot(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, http.MethodPost, "/api/detect/plot", detectBody(t, "x", twoRepFrames(), exactTuning))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("plot is not a PNG")
	}
}

func TestDetectChart_NothingToDraw(t *testing.T) {
	s, _ := newTestServer(t)
	frames := testutil.PoseFrames(l1pose.LeftWrist, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 0.1, 1)

	for _, path := range []string{"/api/detect/chart", "/api/detect/plot"} {
		w := serve(s, http.MethodPost, path, detectBody(t, "x", frames, ""))
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s status = %d, want 422", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "no_exercise") {
			t.Errorf("%s body %s should name the outcome", path, w.Body.String())
		}
	}
}

func TestRunsWithoutStore(t *testing.T) {
	s := NewServer(nil, nil)

	w := serve(s, http.MethodGet, "/api/runs", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("list status = %d, want 503", w.Code)
	}
	w = serve(s, http.MethodGet, "/api/runs/abc", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("get status = %d, want 503", w.Code)
	}

	w = serve(s, http.MethodPost, "/api/detect", detectBody(t, "x", twoRepFrames(), exactTuning))
	if w.Code != http.StatusOK {
		t.Fatalf("detect status = %d", w.Code)
	}
	var resp DetectResponse
	decode(t, w, &resp)
	if resp.Stored {
		t.Error("run should not be marked stored without a store")
	}
}

func TestListRunsLimit(t *testing.T) {
	s, _ := newTestServer(t)
	for i := 0; i < 3; i++ {
		w := serve(s, http.MethodPost, "/api/detect", detectBody(t, fmt.Sprintf("clip-%d", i), twoRepFrames(), exactTuning))
		if w.Code != http.StatusOK {
			t.Fatalf("detect status = %d", w.Code)
		}
	}

	w := serve(s, http.MethodGet, "/api/runs?limit=2", nil)
	var runs []db.AnalysisRun
	decode(t, w, &runs)
	if len(runs) != 2 {
		t.Errorf("got %d runs, want 2", len(runs))
	}

	for _, bad := range []string{"0", "-1", "many"} {
		w := serve(s, http.MethodGet, "/api/runs?limit="+bad, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want 400", bad, w.Code)
		}
	}
	w = serve(s, http.MethodPost, "/api/runs", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/runs status = %d, want 405", w.Code)
	}
	w = serve(s, http.MethodPut, "/api/runs/abc", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT /api/runs/abc status = %d, want 405", w.Code)
	}
}

func TestShowConfigAndVersion(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, http.MethodGet, "/api/config", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("config status = %d", w.Code)
	}
	var cfg map[string]interface{}
	decode(t, w, &cfg)
	if cfg["projection"] != "baseline_distance" || cfg["max_set_gap"] != "2.5s" {
		t.Errorf("unexpected config %v", cfg)
	}

	w = serve(s, http.MethodGet, "/api/version", nil)
	var info version.Info
	decode(t, w, &info)
	if info.Version != version.Version || info.GoVersion == "" {
		t.Errorf("unexpected version %+v", info)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTeapot)
	}

	for code, want := range map[int]string{200: colorBoldGreen, 302: colorYellow, 404: colorBoldRed, 100: ""} {
		got := statusCodeColor(code)
		if want != "" && !strings.HasPrefix(got, want) {
			t.Errorf("statusCodeColor(%d) = %q", code, got)
		}
	}
}
