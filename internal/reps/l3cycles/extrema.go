package l3cycles

// ExtremumKind distinguishes local minima from local maxima.
type ExtremumKind int

const (
	Minimum ExtremumKind = iota
	Maximum
)

func (k ExtremumKind) String() string {
	if k == Maximum {
		return "max"
	}
	return "min"
}

// Extremum is a run of equal samples that is strictly lower (Minimum) or
// strictly higher (Maximum) than each neighbouring run. First and Last are
// the inclusive sample bounds of the run.
type Extremum struct {
	Kind  ExtremumKind
	First int
	Last  int
	Value float64
}

// Mid returns the central sample of the run.
func (e Extremum) Mid() int {
	return (e.First + e.Last) / 2
}

type valueRun struct {
	first, last int
	value       float64
}

func compressRuns(values []float64) []valueRun {
	if len(values) == 0 {
		return nil
	}
	runs := make([]valueRun, 0, len(values))
	cur := valueRun{first: 0, last: 0, value: values[0]}
	for i := 1; i < len(values); i++ {
		if values[i] == cur.value {
			cur.last = i
			continue
		}
		runs = append(runs, cur)
		cur = valueRun{first: i, last: i, value: values[i]}
	}
	return append(runs, cur)
}

// FindExtrema scans values for local extrema and returns them in index
// order. Plateaus are treated as a single sample, so a flat-bottomed rest
// between repetitions is one minimum. The signal boundaries count as a
// missing neighbour: a run touching either end is an extremum when it is
// strictly beyond its only neighbour. A constant signal has no extrema.
//
// Because adjacent runs always differ, the result alternates between
// minima and maxima.
func FindExtrema(values []float64) []Extremum {
	runs := compressRuns(values)
	if len(runs) < 2 {
		return nil
	}

	out := make([]Extremum, 0, len(runs)/2+2)
	for k, r := range runs {
		lower, higher := true, true
		if k > 0 {
			prev := runs[k-1].value
			lower = lower && r.value < prev
			higher = higher && r.value > prev
		}
		if k < len(runs)-1 {
			next := runs[k+1].value
			lower = lower && r.value < next
			higher = higher && r.value > next
		}
		switch {
		case lower:
			out = append(out, Extremum{Kind: Minimum, First: r.first, Last: r.last, Value: r.value})
		case higher:
			out = append(out, Extremum{Kind: Maximum, First: r.first, Last: r.last, Value: r.value})
		}
	}
	return out
}

// SplitExtrema separates an extrema list into minima and maxima, preserving
// order.
func SplitExtrema(ext []Extremum) (minima, maxima []Extremum) {
	for _, e := range ext {
		if e.Kind == Minimum {
			minima = append(minima, e)
		} else {
			maxima = append(maxima, e)
		}
	}
	return minima, maxima
}

func meanValue(ext []Extremum) float64 {
	if len(ext) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range ext {
		sum += e.Value
	}
	return sum / float64(len(ext))
}
