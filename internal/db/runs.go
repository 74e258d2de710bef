package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/pipeline"
)

// ErrRunNotFound is returned when no analysis run has the requested ID.
var ErrRunNotFound = errors.New("analysis run not found")

// AnalysisRun is the stored summary of one detection run.
type AnalysisRun struct {
	RunID          string          `json:"run_id"`
	Source         string          `json:"source"`
	Outcome        string          `json:"outcome"`
	KeyJoint       string          `json:"key_joint,omitempty"`
	FrameCount     int             `json:"frame_count"`
	SetCount       int             `json:"set_count"`
	RepCount       int             `json:"rep_count"`
	ConfigJSON     json.RawMessage `json:"config,omitempty"`
	CandidatesJSON json.RawMessage `json:"candidates,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	DurationMs     float64         `json:"duration_ms"`
}

// SetRecord is a stored exercise set.
type SetRecord struct {
	SetIndex  int           `json:"set_index"`
	RepCount  int           `json:"rep_count"`
	StartTime float64       `json:"start_time"`
	EndTime   float64       `json:"end_time"`
	KeyJoint  string        `json:"key_joint"`
	Cycles    []CycleRecord `json:"cycles"`
}

// CycleRecord is a stored repetition.
type CycleRecord struct {
	CycleIndex     int     `json:"cycle_index"`
	StartTime      float64 `json:"start_time"`
	PeakTime       float64 `json:"peak_time"`
	EndTime        float64 `json:"end_time"`
	Amplitude      float64 `json:"amplitude"`
	ReturnDistance float64 `json:"return_distance"`
	Direction      string  `json:"direction"`
}

// RecordAnalysisRun stores a completed run together with its sets and
// cycles in a single transaction.
func (db *DB) RecordAnalysisRun(run *pipeline.Run) error {
	if run == nil || run.Result == nil {
		return errors.New("record analysis run: run has no result")
	}
	res := run.Result

	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	candidatesJSON, err := json.Marshal(res.Candidates)
	if err != nil {
		return fmt.Errorf("marshal candidates: %w", err)
	}
	var keyJoint sql.NullString
	if res.Selected {
		keyJoint = sql.NullString{String: res.KeyJoint.String(), Valid: true}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO analysis_runs (
			run_id, source, outcome, key_joint, frame_count, set_count, rep_count,
			config_json, candidates_json, started_unix_nanos, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Source, res.Outcome.String(), keyJoint, res.FrameCount,
		len(res.Sets), res.TotalReps(), string(configJSON), string(candidatesJSON),
		run.StartedAt.UnixNano(), float64(run.Duration)/float64(time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("insert analysis run: %w", err)
	}

	for si, set := range res.Sets {
		_, err := tx.Exec(`
			INSERT INTO detected_sets (run_id, set_index, rep_count, start_time, end_time, key_joint)
			VALUES (?, ?, ?, ?, ?, ?)`,
			run.RunID, si, set.RepCount, set.StartTime, set.EndTime, set.KeyJoint.String(),
		)
		if err != nil {
			return fmt.Errorf("insert set %d: %w", si, err)
		}
		for ci, c := range set.Cycles {
			_, err := tx.Exec(`
				INSERT INTO rep_cycles (
					run_id, set_index, cycle_index, start_time, peak_time, end_time,
					amplitude, return_distance, direction
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.RunID, si, ci, c.StartTime, c.PeakTime, c.EndTime,
				c.Amplitude, c.ReturnDistance, c.Direction.String(),
			)
			if err != nil {
				return fmt.Errorf("insert cycle %d of set %d: %w", ci, si, err)
			}
		}
	}

	return tx.Commit()
}

const runColumns = `run_id, source, outcome, key_joint, frame_count, set_count, rep_count,
	config_json, candidates_json, started_unix_nanos, duration_ms`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*AnalysisRun, error) {
	var r AnalysisRun
	var keyJoint, candidates sql.NullString
	var configStr string
	var startedNanos int64
	if err := row.Scan(
		&r.RunID, &r.Source, &r.Outcome, &keyJoint, &r.FrameCount, &r.SetCount, &r.RepCount,
		&configStr, &candidates, &startedNanos, &r.DurationMs,
	); err != nil {
		return nil, err
	}
	if keyJoint.Valid {
		r.KeyJoint = keyJoint.String
	}
	if configStr != "" {
		r.ConfigJSON = json.RawMessage(configStr)
	}
	if candidates.Valid && candidates.String != "" {
		r.CandidatesJSON = json.RawMessage(candidates.String)
	}
	r.StartedAt = time.Unix(0, startedNanos).UTC()
	return &r, nil
}

// GetAnalysisRun returns the run with the given ID.
func (db *DB) GetAnalysisRun(runID string) (*AnalysisRun, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM analysis_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("get analysis run: %w", err)
	}
	return r, nil
}

// ListAnalysisRuns returns the most recent runs first. A limit of zero or
// less returns at most 100 runs.
func (db *DB) ListAnalysisRuns(limit int) ([]*AnalysisRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM analysis_runs
		ORDER BY started_unix_nanos DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DetectedSets returns the stored sets of a run, each with its cycles, in
// set order.
func (db *DB) DetectedSets(runID string) ([]SetRecord, error) {
	var exists bool
	if err := db.QueryRow(`SELECT COUNT(*) > 0 FROM analysis_runs WHERE run_id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check analysis run: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := db.Query(`
		SELECT set_index, rep_count, start_time, end_time, key_joint
		FROM detected_sets WHERE run_id = ? ORDER BY set_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query sets: %w", err)
	}
	var sets []SetRecord
	for rows.Next() {
		var s SetRecord
		if err := rows.Scan(&s.SetIndex, &s.RepCount, &s.StartTime, &s.EndTime, &s.KeyJoint); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan set: %w", err)
		}
		sets = append(sets, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cycleRows, err := db.Query(`
		SELECT set_index, cycle_index, start_time, peak_time, end_time, amplitude, return_distance, direction
		FROM rep_cycles WHERE run_id = ? ORDER BY set_index, cycle_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer cycleRows.Close()

	bySet := make(map[int]int, len(sets))
	for i, s := range sets {
		bySet[s.SetIndex] = i
	}
	for cycleRows.Next() {
		var setIndex int
		var c CycleRecord
		if err := cycleRows.Scan(&setIndex, &c.CycleIndex, &c.StartTime, &c.PeakTime, &c.EndTime,
			&c.Amplitude, &c.ReturnDistance, &c.Direction); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		if i, ok := bySet[setIndex]; ok {
			sets[i].Cycles = append(sets[i].Cycles, c)
		}
	}
	return sets, cycleRows.Err()
}

// DeleteAnalysisRun removes a run with its sets and cycles.
func (db *DB) DeleteAnalysisRun(runID string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM rep_cycles WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete cycles: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM detected_sets WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete sets: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM analysis_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete analysis run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return tx.Commit()
}
