// Package api serves rep detection over HTTP: analyse an uploaded pose
// sequence, render it, and browse the recorded runs.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/willGauntletAi/tiktok-sub000/internal/config"
	"github.com/willGauntletAi/tiktok-sub000/internal/db"
	"github.com/willGauntletAi/tiktok-sub000/internal/httputil"
	"github.com/willGauntletAi/tiktok-sub000/internal/monitoring"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l3cycles"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l4sets"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/pipeline"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/report"
	"github.com/willGauntletAi/tiktok-sub000/internal/timeutil"
	"github.com/willGauntletAi/tiktok-sub000/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db     *db.DB
	tuning *config.TuningConfig
	clock  timeutil.Clock

	// MaxBodyBytes bounds uploaded pose sequences.
	MaxBodyBytes int64
}

// NewServer creates a Server. store may be nil, in which case runs are not
// persisted and the /api/runs endpoints reply 503. tuning holds the
// server-wide defaults that request tuning is merged over.
func NewServer(store *db.DB, tuning *config.TuningConfig) *Server {
	if tuning == nil {
		tuning = config.DefaultTuningConfig()
	}
	return &Server{
		db:           store,
		tuning:       tuning,
		clock:        timeutil.RealClock{},
		MaxBodyBytes: httputil.DefaultMaxBodyBytes,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/detect", s.handleDetect)
	mux.HandleFunc("/api/detect/chart", s.handleDetectChart)
	mux.HandleFunc("/api/detect/plot", s.handleDetectPlot)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.handleRun)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	return mux
}

// DetectRequest is the body of the /api/detect endpoints.
type DetectRequest struct {
	Source string               `json:"source"`
	Frames []l1pose.PoseFrame   `json:"frames"`
	Tuning *config.TuningConfig `json:"tuning,omitempty"`
}

// DetectResponse summarises one run.
type DetectResponse struct {
	RunID      string                       `json:"run_id"`
	Source     string                       `json:"source"`
	Outcome    pipeline.Outcome             `json:"outcome"`
	KeyJoint   string                       `json:"key_joint,omitempty"`
	FrameCount int                          `json:"frame_count"`
	TotalReps  int                          `json:"total_reps"`
	Sets       []l4sets.DetectedExerciseSet `json:"sets"`
	Params     l3cycles.Params              `json:"params"`
	Candidates []pipeline.CandidateScore    `json:"candidates"`
	DurationMs float64                      `json:"duration_ms"`
	Stored     bool                         `json:"stored"`
}

func newDetectResponse(run *pipeline.Run, stored bool) DetectResponse {
	res := run.Result
	resp := DetectResponse{
		RunID:      run.RunID,
		Source:     run.Source,
		Outcome:    res.Outcome,
		FrameCount: res.FrameCount,
		TotalReps:  res.TotalReps(),
		Sets:       res.Sets,
		Params:     res.Params,
		Candidates: res.Candidates,
		DurationMs: float64(run.Duration) / float64(time.Millisecond),
		Stored:     stored,
	}
	if resp.Sets == nil {
		resp.Sets = []l4sets.DetectedExerciseSet{}
	}
	if res.Selected {
		resp.KeyJoint = res.KeyJoint.String()
	}
	return resp
}

// detect decodes the request and runs the analysis. On failure it has
// already written the error reply and returns nil.
func (s *Server) detect(w http.ResponseWriter, r *http.Request, record bool) *pipeline.Run {
	var req DetectRequest
	if err := httputil.DecodeJSONBody(w, r, &req, s.MaxBodyBytes); err != nil {
		httputil.WriteBodyError(w, err)
		return nil
	}

	run, err := s.runDetect(r.Context(), req, record)
	switch {
	case err == nil:
		return run
	case errors.Is(err, l1pose.ErrMalformedSequence):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
	case run != nil:
		monitoring.Logf("[api] %v", err)
		httputil.InternalServerError(w, "failed to record analysis run")
	default:
		writeConfigError(w, err)
	}
	return nil
}

// runDetect merges the request tuning over the server defaults and runs the
// analysis. Tuning problems are returned before any frame is inspected.
func (s *Server) runDetect(ctx context.Context, req DetectRequest, record bool) (*pipeline.Run, error) {
	tuning := s.tuning.Merge(req.Tuning)
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	cfg, err := tuning.DetectorConfig()
	if err != nil {
		return nil, err
	}

	runner := &pipeline.Runner{Config: cfg, Clock: s.clock}
	if record && s.db != nil {
		runner.Recorder = s.db
	}
	source := req.Source
	if source == "" {
		source = "upload"
	}
	return runner.Run(ctx, source, req.Frames)
}

func writeConfigError(w http.ResponseWriter, err error) {
	var ce *pipeline.ConfigError
	if errors.As(err, &ce) {
		httputil.WriteJSONProblems(w, http.StatusUnprocessableEntity, "invalid detection config", ce.Problems())
		return
	}
	httputil.BadRequest(w, err.Error())
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	run := s.detect(w, r, true)
	if run == nil {
		return
	}
	httputil.WriteJSONOK(w, newDetectResponse(run, s.db != nil))
}

// selectedRun runs the analysis and rejects results without a key joint,
// which have nothing to draw.
func (s *Server) selectedRun(w http.ResponseWriter, r *http.Request) *pipeline.Run {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return nil
	}
	run := s.detect(w, r, false)
	if run == nil {
		return nil
	}
	if !run.Result.Selected {
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("nothing to draw: outcome %s", run.Result.Outcome))
		return nil
	}
	return run
}

func (s *Server) handleDetectChart(w http.ResponseWriter, r *http.Request) {
	run := s.selectedRun(w, r)
	if run == nil {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderChartWithOptions(run.Result, w, report.ChartOptions{Title: run.Source}); err != nil {
		monitoring.Logf("[api] render chart for %s: %v", run.RunID, err)
	}
}

func (s *Server) handleDetectPlot(w http.ResponseWriter, r *http.Request) {
	run := s.selectedRun(w, r)
	if run == nil {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := report.WritePNG(run.Result, w); err != nil {
		monitoring.Logf("[api] render plot for %s: %v", run.RunID, err)
	}
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no analysis store configured")
		return false
	}
	return true
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireStore(w) {
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.db.ListAnalysisRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*db.AnalysisRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

// RunDetail is the reply of GET /api/runs/{id}.
type RunDetail struct {
	*db.AnalysisRun
	Sets []db.SetRecord `json:"sets"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		run, err := s.db.GetAnalysisRun(id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		sets, err := s.db.DetectedSets(id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		if sets == nil {
			sets = []db.SetRecord{}
		}
		httputil.WriteJSONOK(w, RunDetail{AnalysisRun: run, Sets: sets})

	case http.MethodDelete:
		if err := s.db.DeleteAnalysisRun(id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err.Error())
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.tuning)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Get())
}
