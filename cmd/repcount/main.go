// Command repcount detects exercise sets in recorded pose sequences.
//
//	repcount -frames squats.jsonl
//	repcount -db runs.db -plot plots -chart charts clip1.jsonl clip2.jsonl
//	repcount -server http://localhost:8080 clip.jsonl
//	repcount -grpc-server localhost:50051 clip.jsonl
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/willGauntletAi/tiktok-sub000/internal/api"
	"github.com/willGauntletAi/tiktok-sub000/internal/config"
	"github.com/willGauntletAi/tiktok-sub000/internal/db"
	"github.com/willGauntletAi/tiktok-sub000/internal/httputil"
	"github.com/willGauntletAi/tiktok-sub000/internal/monitoring"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l4sets"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/pipeline"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/report"
	"github.com/willGauntletAi/tiktok-sub000/internal/security"
	"github.com/willGauntletAi/tiktok-sub000/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "repcount: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	frames      string
	configPath  string
	projection  string
	dbPath      string
	plotDir     string
	chartDir    string
	server      string
	grpcServer  string
	parallel    int
	jsonOutput  bool
	verbose     bool
	showVersion bool
	inputs      []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	fs := flag.NewFlagSet("repcount", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.frames, "frames", "", "pose sequence file (JSON array or JSON Lines); more files may follow as arguments")
	fs.StringVar(&o.configPath, "config", "", "tuning config JSON file merged over the built-in defaults")
	fs.StringVar(&o.projection, "projection", "", "override the projection: baseline_distance or principal_axis")
	fs.StringVar(&o.dbPath, "db", "", "record runs in this sqlite database")
	fs.StringVar(&o.plotDir, "plot", "", "write a PNG signal plot per input into this directory")
	fs.StringVar(&o.chartDir, "chart", "", "write an HTML chart per input into this directory")
	fs.StringVar(&o.server, "server", "", "send inputs to a running repserver instead of analysing locally")
	fs.StringVar(&o.grpcServer, "grpc-server", "", "send inputs to a repserver's gRPC Detect service at this address")
	fs.IntVar(&o.parallel, "parallel", 4, "number of inputs analysed concurrently")
	fs.BoolVar(&o.jsonOutput, "json", false, "print results as JSON")
	fs.BoolVar(&o.verbose, "verbose", false, "log candidate scores and selection detail")
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if o.frames != "" {
		o.inputs = append(o.inputs, o.frames)
	}
	o.inputs = append(o.inputs, fs.Args()...)
	if len(o.inputs) == 0 && !o.showVersion {
		fs.Usage()
		return nil, errors.New("no input: pass -frames or one or more files")
	}
	if o.server != "" && o.grpcServer != "" {
		return nil, errors.New("-server and -grpc-server are mutually exclusive")
	}
	if (o.server != "" || o.grpcServer != "") && (o.dbPath != "" || o.plotDir != "" || o.chartDir != "") {
		return nil, errors.New("-db, -plot and -chart are local-only and cannot be combined with -server or -grpc-server")
	}
	return &o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.showVersion {
		fmt.Fprintf(stdout, "repcount %s\n", version.Get())
		return nil
	}

	if o.verbose {
		monitoring.SetVerbose(true)
		pipeline.SetLogWriters(stderr, stderr)
	} else {
		pipeline.SetLogWriters(stderr, nil)
	}

	tuning, err := loadTuning(o)
	if err != nil {
		return err
	}

	if o.server != "" {
		client := httputil.NewClient(o.server, nil)
		return runRemote(ctx, o, tuning, stdout, func(ctx context.Context, req api.DetectRequest) (*api.DetectResponse, error) {
			var resp api.DetectResponse
			if err := client.PostJSON(ctx, "/api/detect", req, &resp); err != nil {
				return nil, err
			}
			return &resp, nil
		})
	}
	if o.grpcServer != "" {
		conn, err := grpc.NewClient(o.grpcServer, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("dial %s: %w", o.grpcServer, err)
		}
		defer conn.Close()
		client := api.NewDetectClient(conn)
		return runRemote(ctx, o, tuning, stdout, func(ctx context.Context, req api.DetectRequest) (*api.DetectResponse, error) {
			return client.Detect(ctx, req)
		})
	}
	return runLocal(ctx, o, tuning, stdout)
}

func loadTuning(o *options) (*config.TuningConfig, error) {
	tuning := config.DefaultTuningConfig()
	if o.configPath != "" {
		file, err := config.LoadTuningConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		tuning = tuning.Merge(file)
	}
	if o.projection != "" {
		p := o.projection
		tuning = tuning.Merge(&config.TuningConfig{Projection: &p})
	}
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	return tuning, nil
}

func runLocal(ctx context.Context, o *options, tuning *config.TuningConfig, stdout io.Writer) error {
	cfg, err := tuning.DetectorConfig()
	if err != nil {
		return err
	}

	inputs := make([]pipeline.Input, 0, len(o.inputs))
	for _, path := range o.inputs {
		frames, err := l1pose.LoadFrames(path)
		if err != nil {
			return err
		}
		inputs = append(inputs, pipeline.Input{Source: path, Frames: frames})
	}

	runner := pipeline.NewRunner(cfg)
	if o.dbPath != "" {
		store, err := db.NewDB(o.dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()
		runner.Recorder = store
	}

	runs, err := runner.RunBatch(ctx, inputs, o.parallel)
	if err != nil {
		return err
	}

	for _, r := range runs {
		if err := writeReports(o, r); err != nil {
			return err
		}
	}

	if o.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	for _, r := range runs {
		key := ""
		if r.Result.Selected {
			key = r.Result.KeyJoint.String()
		}
		printSets(stdout, r.Source, r.Result.Outcome, key, r.Result.Sets)
	}
	return nil
}

// writeReports renders the plot and chart of one run. Runs without a key
// joint have nothing to draw and are skipped.
func writeReports(o *options, r *pipeline.Run) error {
	if !r.Result.Selected {
		return nil
	}
	if o.plotDir != "" {
		if err := os.MkdirAll(o.plotDir, 0755); err != nil {
			return err
		}
		path, err := security.ReportPath(o.plotDir, r.Source, ".png")
		if err != nil {
			return err
		}
		if err := report.PlotSignal(r.Result, path); err != nil {
			return err
		}
	}
	if o.chartDir != "" {
		if err := os.MkdirAll(o.chartDir, 0755); err != nil {
			return err
		}
		path, err := security.ReportPath(o.chartDir, r.Source, ".html")
		if err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		title := strings.TrimSuffix(filepath.Base(path), ".html")
		err = report.RenderChartWithOptions(r.Result, f, report.ChartOptions{Title: title})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("chart %s: %w", r.Source, err)
		}
	}
	return nil
}

// detectFunc analyses one request on a remote repserver.
type detectFunc func(context.Context, api.DetectRequest) (*api.DetectResponse, error)

func runRemote(ctx context.Context, o *options, tuning *config.TuningConfig, stdout io.Writer, detect detectFunc) error {
	var responses []api.DetectResponse
	for _, path := range o.inputs {
		frames, err := l1pose.LoadFrames(path)
		if err != nil {
			return err
		}
		req := api.DetectRequest{Source: path, Frames: frames, Tuning: tuning}
		resp, err := detect(ctx, req)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		responses = append(responses, *resp)
	}

	if o.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(responses)
	}
	for _, r := range responses {
		printSets(stdout, r.Source, r.Outcome, r.KeyJoint, r.Sets)
	}
	return nil
}

func printSets(w io.Writer, source string, outcome pipeline.Outcome, keyJoint string, sets []l4sets.DetectedExerciseSet) {
	if outcome != pipeline.OutcomeSetsDetected {
		fmt.Fprintf(w, "%s: %s\n\n", source, outcome)
		return
	}
	fmt.Fprintf(w, "%s: %d reps in %d sets (key joint %s)\n", source, l4sets.TotalReps(sets), len(sets), keyJoint)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SET\tREPS\tSTART\tEND\tDURATION")
	for i, s := range sets {
		fmt.Fprintf(tw, "%d\t%d\t%.2fs\t%.2fs\t%.2fs\n", i+1, s.RepCount, s.StartTime, s.EndTime, s.Duration())
	}
	tw.Flush()
	fmt.Fprintln(w)
}
