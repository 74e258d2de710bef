package testutil

import (
	"errors"
	"net/http"
	"runtime"
	"testing"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l4sets"
)

// recordingTB captures failures instead of failing the enclosing test.
type recordingTB struct {
	testing.TB
	failed bool
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...interface{}) {
	r.failed = true
}

func (r *recordingTB) Fatalf(format string, args ...interface{}) {
	r.failed = true
	runtime.Goexit()
}

// failed reports whether fn reported a failure on the recorder.
func failed(t *testing.T, fn func(tb testing.TB)) bool {
	rec := &recordingTB{TB: t}
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(rec)
	}()
	<-done
	return rec.failed
}

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	if failed(t, func(tb testing.TB) { AssertStatusCode(tb, http.StatusOK, http.StatusOK) }) {
		t.Error("matching status codes should pass")
	}
	if !failed(t, func(tb testing.TB) { AssertStatusCode(tb, http.StatusOK, http.StatusBadRequest) }) {
		t.Error("mismatched status codes should fail")
	}
}

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	if failed(t, func(tb testing.TB) { AssertNoError(tb, nil) }) {
		t.Error("nil error should pass")
	}
	if !failed(t, func(tb testing.TB) { AssertNoError(tb, errors.New("boom")) }) {
		t.Error("non-nil error should fail")
	}
}

func TestAssertSetReps(t *testing.T) {
	t.Parallel()

	sets := []l4sets.DetectedExerciseSet{{RepCount: 3}, {RepCount: 2}}
	if failed(t, func(tb testing.TB) { AssertSetReps(tb, sets, 3, 2) }) {
		t.Error("matching rep counts should pass")
	}

	for name, want := range map[string][]int{
		"wrong count":  {3},
		"wrong reps":   {3, 1},
		"extra wanted": {3, 2, 1},
	} {
		if !failed(t, func(tb testing.TB) { AssertSetReps(tb, sets, want...) }) {
			t.Errorf("%s: expected failure", name)
		}
	}
}
