// Package l1pose owns Layer 1 (Pose) of the repetition detection model.
//
// Responsibilities: the joint enumeration and its static body-region table,
// per-frame joint observations as produced by an external pose detector,
// sequence validation, and decoding of recorded pose sequences.
// Key types: JointID, PoseFrame, JointObservation.
//
// Dependency rule: L1 depends on nothing else in internal/reps.
package l1pose
