// Package testutil provides shared test fixtures: synthetic pose sequences
// and the assertions the detection and HTTP tests have in common.
package testutil

import (
	"testing"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l4sets"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertSetReps checks that sets holds exactly len(want) sets with the given
// rep counts in order.
func AssertSetReps(t testing.TB, sets []l4sets.DetectedExerciseSet, want ...int) {
	t.Helper()
	got := make([]int, len(sets))
	for i, s := range sets {
		got[i] = s.RepCount
	}
	if len(got) != len(want) {
		t.Fatalf("set rep counts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("set rep counts = %v, want %v", got, want)
		}
	}
}
