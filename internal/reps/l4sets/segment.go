package l4sets

import (
	"fmt"
	"sort"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l3cycles"
)

// DetectedExerciseSet is a contiguous group of repetitions. Sets are only
// built by Segment and are not modified afterwards.
type DetectedExerciseSet struct {
	RepCount  int              `json:"rep_count"`
	StartTime float64          `json:"start_time"`
	EndTime   float64          `json:"end_time"`
	KeyJoint  l1pose.JointID   `json:"key_joint"`
	Cycles    []l3cycles.Cycle `json:"cycles"`
}

// Duration returns the set length in seconds.
func (s DetectedExerciseSet) Duration() float64 {
	return s.EndTime - s.StartTime
}

func (s DetectedExerciseSet) String() string {
	return fmt.Sprintf("%d reps of %s %.2fs-%.2fs", s.RepCount, s.KeyJoint, s.StartTime, s.EndTime)
}

// Segment groups cycles into sets. A new set starts whenever the time from
// the previous cycle's end to the next cycle's start exceeds maxGapSeconds.
// The input slice is not modified. Zero cycles yield zero sets.
func Segment(cycles []l3cycles.Cycle, keyJoint l1pose.JointID, maxGapSeconds float64) []DetectedExerciseSet {
	if len(cycles) == 0 {
		return nil
	}

	ordered := make([]l3cycles.Cycle, len(cycles))
	copy(ordered, cycles)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartTime < ordered[j].StartTime
	})

	var sets []DetectedExerciseSet
	current := []l3cycles.Cycle{ordered[0]}
	for _, c := range ordered[1:] {
		gap := c.StartTime - current[len(current)-1].EndTime
		if gap > maxGapSeconds {
			sets = append(sets, newSet(current, keyJoint))
			current = nil
		}
		current = append(current, c)
	}
	return append(sets, newSet(current, keyJoint))
}

func newSet(cycles []l3cycles.Cycle, keyJoint l1pose.JointID) DetectedExerciseSet {
	return DetectedExerciseSet{
		RepCount:  len(cycles),
		StartTime: cycles[0].StartTime,
		EndTime:   cycles[len(cycles)-1].EndTime,
		KeyJoint:  keyJoint,
		Cycles:    cycles,
	}
}

// TotalReps sums the repetitions across sets.
func TotalReps(sets []DetectedExerciseSet) int {
	n := 0
	for _, s := range sets {
		n += s.RepCount
	}
	return n
}
