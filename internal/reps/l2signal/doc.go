// Package l2signal owns Layer 2 (Signal) of the repetition detection model.
//
// Responsibilities: turning one joint's per-frame 2D positions into a
// single scalar series suitable for oscillation analysis. This covers
// confidence gating, the continuity policy for occluded frames, the scalar
// projection (baseline distance or principal axis) and smoothing.
// Key types: JointSignal, Config, Projection.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2signal
