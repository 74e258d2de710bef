// Package l3cycles owns Layer 3 (Cycles) of the repetition detection model.
//
// Responsibilities: locating local extrema in a joint signal, inferring the
// movement direction, pairing extrema into candidate repetitions and
// admitting those that clear the amplitude and return-tolerance thresholds.
// Key types: Cycle, Extremum, Params, Detection.
//
// Everything here is pure: identical input and parameters always produce
// identical cycles.
//
// Dependency rule: L3 may depend on L1 and L2, but never on L4.
package l3cycles
