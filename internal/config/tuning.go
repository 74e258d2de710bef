package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l2signal"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/pipeline"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for detection tuning.
// The schema matches the "tuning" object accepted by /api/detect so the same
// JSON can be used for both startup configuration and per-request overrides.
type TuningConfig struct {
	// Signal params
	MinConfidence       *float64 `json:"min_confidence,omitempty"`
	MinContinuousFrames *int     `json:"min_continuous_frames,omitempty"`
	Projection          *string  `json:"projection,omitempty"` // "baseline_distance" or "principal_axis"
	SmoothingWindow     *int     `json:"smoothing_window,omitempty"`
	SmoothingDuration   *string  `json:"smoothing_duration,omitempty"` // duration string like "200ms"; "0s" smooths by smoothing_window

	// Cycle params. Absolute thresholds win over fractions when positive.
	AmplitudeThreshold *float64 `json:"amplitude_threshold,omitempty"`
	AmplitudeFraction  *float64 `json:"amplitude_fraction,omitempty"`
	ToleranceThreshold *float64 `json:"tolerance_threshold,omitempty"`
	ToleranceFraction  *float64 `json:"tolerance_fraction,omitempty"`

	// Noise floor for fraction-derived amplitude thresholds
	MinAmplitudeThreshold     *float64 `json:"min_amplitude_threshold,omitempty"`
	MinAmplitudeTorsoFraction *float64 `json:"min_amplitude_torso_fraction,omitempty"`

	// Few-cycles leniency (optional)
	LenientTolerance          *bool    `json:"lenient_tolerance,omitempty"`
	LenientToleranceThreshold *float64 `json:"lenient_tolerance_threshold,omitempty"`
	LenientToleranceFraction  *float64 `json:"lenient_tolerance_fraction,omitempty"`
	LeniencyMaxCycles         *int     `json:"leniency_max_cycles,omitempty"`

	// Set params
	MaxSetGap *string `json:"max_set_gap,omitempty"` // duration string like "2.5s"

	// Selector params
	CandidateJoints []string `json:"candidate_joints,omitempty"`
	Workers         *int     `json:"workers,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to the
// built-in detection defaults.
func DefaultTuningConfig() *TuningConfig {
	d := pipeline.DefaultConfig()
	joints := make([]string, len(d.CandidateJoints))
	for i, j := range d.CandidateJoints {
		joints[i] = j.String()
	}
	return &TuningConfig{
		MinConfidence:             ptrFloat64(d.MinConfidence),
		MinContinuousFrames:       ptrInt(d.MinContinuousFrames),
		Projection:                ptrString(d.Projection.String()),
		SmoothingWindow:           ptrInt(d.SmoothingWindow),
		SmoothingDuration:         ptrString("167ms"),
		AmplitudeThreshold:        ptrFloat64(d.AmplitudeThreshold),
		AmplitudeFraction:         ptrFloat64(d.AmplitudeFraction),
		ToleranceThreshold:        ptrFloat64(d.ToleranceThreshold),
		ToleranceFraction:         ptrFloat64(d.ToleranceFraction),
		MinAmplitudeThreshold:     ptrFloat64(d.MinAmplitudeThreshold),
		MinAmplitudeTorsoFraction: ptrFloat64(d.MinAmplitudeTorsoFraction),
		LenientTolerance:          ptrBool(d.LenientTolerance),
		LenientToleranceThreshold: ptrFloat64(d.LenientToleranceThreshold),
		LenientToleranceFraction:  ptrFloat64(d.LenientToleranceFraction),
		LeniencyMaxCycles:         ptrInt(d.LeniencyMaxCycles),
		MaxSetGap:                 ptrString("2.5s"),
		CandidateJoints:           joints,
		Workers:                   ptrInt(d.Workers),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseTuningConfig(data)
}

// ParseTuningConfig decodes and validates a TuningConfig from JSON.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/reps/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MinConfidence != nil {
		if *c.MinConfidence < 0 || *c.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
		}
	}

	if c.Projection != nil {
		if _, err := l2signal.ParseProjection(*c.Projection); err != nil {
			return fmt.Errorf("invalid projection: %w", err)
		}
	}

	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1, got %d", *c.SmoothingWindow)
	}

	for _, f := range []struct {
		name  string
		value *string
	}{
		{"smoothing_duration", c.SmoothingDuration},
		{"max_set_gap", c.MaxSetGap},
	} {
		if f.value == nil || *f.value == "" {
			continue
		}
		d, err := time.ParseDuration(*f.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", f.name, *f.value, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", f.name, *f.value)
		}
	}

	for _, name := range c.CandidateJoints {
		if _, err := l1pose.ParseJointID(name); err != nil {
			return fmt.Errorf("invalid candidate joint: %w", err)
		}
	}

	// Remaining range checks are shared with the detector.
	dc, err := c.DetectorConfig()
	if err != nil {
		return err
	}
	return dc.Validate()
}

// Merge returns a copy of c with every field set in override replacing the
// corresponding field of c.
func (c *TuningConfig) Merge(override *TuningConfig) *TuningConfig {
	out := *c
	if override == nil {
		return &out
	}
	if override.MinConfidence != nil {
		out.MinConfidence = override.MinConfidence
	}
	if override.MinContinuousFrames != nil {
		out.MinContinuousFrames = override.MinContinuousFrames
	}
	if override.Projection != nil {
		out.Projection = override.Projection
	}
	if override.SmoothingWindow != nil {
		out.SmoothingWindow = override.SmoothingWindow
		// A sample window on its own replaces any inherited duration.
		if override.SmoothingDuration == nil {
			out.SmoothingDuration = ptrString("0s")
		}
	}
	if override.SmoothingDuration != nil {
		out.SmoothingDuration = override.SmoothingDuration
	}
	if override.AmplitudeThreshold != nil {
		out.AmplitudeThreshold = override.AmplitudeThreshold
	}
	if override.AmplitudeFraction != nil {
		out.AmplitudeFraction = override.AmplitudeFraction
	}
	if override.ToleranceThreshold != nil {
		out.ToleranceThreshold = override.ToleranceThreshold
	}
	if override.ToleranceFraction != nil {
		out.ToleranceFraction = override.ToleranceFraction
	}
	if override.MinAmplitudeThreshold != nil {
		out.MinAmplitudeThreshold = override.MinAmplitudeThreshold
	}
	if override.MinAmplitudeTorsoFraction != nil {
		out.MinAmplitudeTorsoFraction = override.MinAmplitudeTorsoFraction
	}
	if override.LenientTolerance != nil {
		out.LenientTolerance = override.LenientTolerance
	}
	if override.LenientToleranceThreshold != nil {
		out.LenientToleranceThreshold = override.LenientToleranceThreshold
	}
	if override.LenientToleranceFraction != nil {
		out.LenientToleranceFraction = override.LenientToleranceFraction
	}
	if override.LeniencyMaxCycles != nil {
		out.LeniencyMaxCycles = override.LeniencyMaxCycles
	}
	if override.MaxSetGap != nil {
		out.MaxSetGap = override.MaxSetGap
	}
	if override.CandidateJoints != nil {
		out.CandidateJoints = override.CandidateJoints
	}
	if override.Workers != nil {
		out.Workers = override.Workers
	}
	return &out
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.3 // default
	}
	return *c.MinConfidence
}

// GetMinContinuousFrames returns the min_continuous_frames value or the default.
func (c *TuningConfig) GetMinContinuousFrames() int {
	if c.MinContinuousFrames == nil {
		return 3 // default
	}
	return *c.MinContinuousFrames
}

// GetProjection returns the signal projection, falling back to baseline
// distance when unset or unparseable.
func (c *TuningConfig) GetProjection() l2signal.Projection {
	if c.Projection == nil {
		return l2signal.ProjectionBaselineDistance
	}
	p, err := l2signal.ParseProjection(*c.Projection)
	if err != nil {
		return l2signal.ProjectionBaselineDistance
	}
	return p
}

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 5 // default
	}
	return *c.SmoothingWindow
}

// GetSmoothingDuration parses and returns the SmoothingDuration. Zero means
// the sample window applies. When unset it defaults to 167ms, unless
// smoothing_window is set on its own.
func (c *TuningConfig) GetSmoothingDuration() time.Duration {
	if c.SmoothingDuration == nil || *c.SmoothingDuration == "" {
		if c.SmoothingWindow != nil {
			return 0
		}
		return 167 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.SmoothingDuration)
	if err != nil {
		return 0
	}
	return d
}

// GetAmplitudeThreshold returns the absolute amplitude threshold, or 0 when
// the fraction applies.
func (c *TuningConfig) GetAmplitudeThreshold() float64 {
	if c.AmplitudeThreshold == nil {
		return 0
	}
	return *c.AmplitudeThreshold
}

// GetAmplitudeFraction returns the amplitude_fraction value or the default.
func (c *TuningConfig) GetAmplitudeFraction() float64 {
	if c.AmplitudeFraction == nil {
		return 0.10 // default
	}
	return *c.AmplitudeFraction
}

// GetToleranceThreshold returns the absolute tolerance threshold, or 0 when
// the fraction applies.
func (c *TuningConfig) GetToleranceThreshold() float64 {
	if c.ToleranceThreshold == nil {
		return 0
	}
	return *c.ToleranceThreshold
}

// GetToleranceFraction returns the tolerance_fraction value or the default.
func (c *TuningConfig) GetToleranceFraction() float64 {
	if c.ToleranceFraction == nil {
		return 0.05 // default
	}
	return *c.ToleranceFraction
}

// GetMinAmplitudeThreshold returns the min_amplitude_threshold value or the default.
func (c *TuningConfig) GetMinAmplitudeThreshold() float64 {
	if c.MinAmplitudeThreshold == nil {
		return 2 // default
	}
	return *c.MinAmplitudeThreshold
}

// GetMinAmplitudeTorsoFraction returns the min_amplitude_torso_fraction value or the default.
func (c *TuningConfig) GetMinAmplitudeTorsoFraction() float64 {
	if c.MinAmplitudeTorsoFraction == nil {
		return 0.10 // default
	}
	return *c.MinAmplitudeTorsoFraction
}

// GetLenientTolerance returns the lenient_tolerance value or the default.
func (c *TuningConfig) GetLenientTolerance() bool {
	if c.LenientTolerance == nil {
		return false // default
	}
	return *c.LenientTolerance
}

// GetLenientToleranceThreshold returns the absolute lenient tolerance or 0.
func (c *TuningConfig) GetLenientToleranceThreshold() float64 {
	if c.LenientToleranceThreshold == nil {
		return 0
	}
	return *c.LenientToleranceThreshold
}

// GetLenientToleranceFraction returns the lenient_tolerance_fraction value or the default.
func (c *TuningConfig) GetLenientToleranceFraction() float64 {
	if c.LenientToleranceFraction == nil {
		return 0.10 // default
	}
	return *c.LenientToleranceFraction
}

// GetLeniencyMaxCycles returns the leniency_max_cycles value or the default.
func (c *TuningConfig) GetLeniencyMaxCycles() int {
	if c.LeniencyMaxCycles == nil {
		return 2 // default
	}
	return *c.LeniencyMaxCycles
}

// GetMaxSetGap parses and returns the MaxSetGap as a time.Duration.
func (c *TuningConfig) GetMaxSetGap() time.Duration {
	if c.MaxSetGap == nil || *c.MaxSetGap == "" {
		return 2500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.MaxSetGap)
	if err != nil {
		return 2500 * time.Millisecond // default on parse error
	}
	return d
}

// GetWorkers returns the workers value or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1 // default
	}
	return *c.Workers
}

// DetectorConfig maps the tuning values onto a detection configuration. It
// fails only when a projection or joint name cannot be parsed; range checks
// are left to pipeline.Config.Validate.
func (c *TuningConfig) DetectorConfig() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	cfg.MinConfidence = c.GetMinConfidence()
	cfg.MinContinuousFrames = c.GetMinContinuousFrames()
	if c.Projection != nil {
		p, err := l2signal.ParseProjection(*c.Projection)
		if err != nil {
			return pipeline.Config{}, fmt.Errorf("invalid projection: %w", err)
		}
		cfg.Projection = p
	}
	cfg.SmoothingWindow = c.GetSmoothingWindow()
	cfg.SmoothingWindowSeconds = c.GetSmoothingDuration().Seconds()
	cfg.AmplitudeThreshold = c.GetAmplitudeThreshold()
	cfg.AmplitudeFraction = c.GetAmplitudeFraction()
	cfg.ToleranceThreshold = c.GetToleranceThreshold()
	cfg.ToleranceFraction = c.GetToleranceFraction()
	cfg.MinAmplitudeThreshold = c.GetMinAmplitudeThreshold()
	cfg.MinAmplitudeTorsoFraction = c.GetMinAmplitudeTorsoFraction()
	cfg.LenientTolerance = c.GetLenientTolerance()
	cfg.LenientToleranceThreshold = c.GetLenientToleranceThreshold()
	cfg.LenientToleranceFraction = c.GetLenientToleranceFraction()
	cfg.LeniencyMaxCycles = c.GetLeniencyMaxCycles()
	cfg.MaxSetGapSeconds = c.GetMaxSetGap().Seconds()
	cfg.Workers = c.GetWorkers()

	if c.CandidateJoints != nil {
		joints := make([]l1pose.JointID, 0, len(c.CandidateJoints))
		for _, name := range c.CandidateJoints {
			j, err := l1pose.ParseJointID(name)
			if err != nil {
				return pipeline.Config{}, fmt.Errorf("invalid candidate joint: %w", err)
			}
			joints = append(joints, j)
		}
		cfg.CandidateJoints = joints
	}
	return cfg, nil
}
