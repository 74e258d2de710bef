// Package pipeline provides the repetition detection pipeline that
// orchestrates the layers from L1 Pose through L4 Sets.
//
// This package is the composition root: it imports from the layer packages
// (l1pose, l2signal, l3cycles, l4sets) but none of those import pipeline/.
// It owns the single detection Config, the joint selector that evaluates
// every candidate joint, and the DetectSets entry point. The Runner wraps
// DetectSets with run identity, timing and cancellation for callers that
// analyse recorded videos.
package pipeline
