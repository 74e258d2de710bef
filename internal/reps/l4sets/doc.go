// Package l4sets owns Layer 4 (Sets) of the repetition detection model.
//
// Responsibilities: grouping admitted cycles into exercise sets, splitting
// wherever the pause between consecutive repetitions exceeds the configured
// gap. Gaps are measured in seconds so segmentation does not depend on the
// capture frame rate.
// Key types: DetectedExerciseSet.
//
// Dependency rule: L4 may depend on L1-L3.
package l4sets
