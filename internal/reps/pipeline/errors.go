package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l2signal"
	"go.uber.org/multierr"
)

var (
	// ErrTooFewFrames marks sequences with fewer than two frames.
	ErrTooFewFrames = l2signal.ErrTooFewFrames
	// ErrNoUsableJoints marks sequences where no candidate joint ever meets
	// the minimum confidence.
	ErrNoUsableJoints = errors.New("no candidate joint meets the minimum confidence")
)

// Outcome classifies a detection run. Callers must distinguish a run that
// found nothing from a run that could not analyse the input.
type Outcome int

const (
	// OutcomeSetsDetected means at least one set was found.
	OutcomeSetsDetected Outcome = iota
	// OutcomeNoExercise means the analysis ran but no candidate joint showed
	// a repeated movement.
	OutcomeNoExercise
	// OutcomeTooFewFrames means the sequence was too short to analyse.
	OutcomeTooFewFrames
	// OutcomeNoUsableJoints means no candidate joint was ever visible with
	// enough confidence.
	OutcomeNoUsableJoints
)

var outcomeNames = map[Outcome]string{
	OutcomeSetsDetected:   "sets_detected",
	OutcomeNoExercise:     "no_exercise",
	OutcomeTooFewFrames:   "too_few_frames",
	OutcomeNoUsableJoints: "no_usable_joints",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	for k, v := range outcomeNames {
		if v == string(text) {
			*o = k
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Analyzed reports whether the input could be analysed at all.
func (o Outcome) Analyzed() bool {
	return o == OutcomeSetsDetected || o == OutcomeNoExercise
}

// InputError describes input that could not be analysed. It is a normal
// result, not a failure: short clips and clips without visible joints are
// common.
type InputError struct {
	Outcome Outcome
	Err     error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input not analysable (%s): %v", e.Outcome, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// ConfigError reports an invalid detection configuration. It is fatal for
// the call: retrying with the same configuration fails the same way.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	problems := e.Problems()
	msgs := make([]string, len(problems))
	for i, p := range problems {
		msgs[i] = p.Error()
	}
	return "invalid detection config: " + strings.Join(msgs, "; ")
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Problems returns each individual validation failure.
func (e *ConfigError) Problems() []error {
	return multierr.Errors(e.Err)
}
