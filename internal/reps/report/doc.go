// Package report renders a detection result for people: a static PNG of
// the key joint's signal with its cycles and sets, and an interactive HTML
// chart of the same data.
package report
