package l3cycles

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFindExtrema(t *testing.T) {
	testCases := []struct {
		name   string
		values []float64
		want   []Extremum
	}{
		{"empty", nil, nil},
		{"single", []float64{3}, nil},
		{"constant", []float64{2, 2, 2, 2}, nil},
		{
			name:   "strict_interior",
			values: []float64{1, 0, 2, 1},
			want: []Extremum{
				{Kind: Maximum, First: 0, Last: 0, Value: 1},
				{Kind: Minimum, First: 1, Last: 1, Value: 0},
				{Kind: Maximum, First: 2, Last: 2, Value: 2},
				{Kind: Minimum, First: 3, Last: 3, Value: 1},
			},
		},
		{
			name:   "plateaus",
			values: []float64{0, 0, 0, 5, 10, 10, 5, 0, 0},
			want: []Extremum{
				{Kind: Minimum, First: 0, Last: 2, Value: 0},
				{Kind: Maximum, First: 4, Last: 5, Value: 10},
				{Kind: Minimum, First: 7, Last: 8, Value: 0},
			},
		},
		{
			name:   "monotonic_increasing",
			values: []float64{0, 1, 2, 3, 4},
			want: []Extremum{
				{Kind: Minimum, First: 0, Last: 0, Value: 0},
				{Kind: Maximum, First: 4, Last: 4, Value: 4},
			},
		},
		{
			name:   "shoulder_is_not_extremum",
			values: []float64{0, 5, 5, 10, 0},
			want: []Extremum{
				{Kind: Minimum, First: 0, Last: 0, Value: 0},
				{Kind: Maximum, First: 3, Last: 3, Value: 10},
				{Kind: Minimum, First: 4, Last: 4, Value: 0},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := FindExtrema(tc.values)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("FindExtrema mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindExtremaAlternates(t *testing.T) {
	values := []float64{3, 1, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9, 3, 2, 3, 8}
	ext := FindExtrema(values)
	for i := 1; i < len(ext); i++ {
		if ext[i].Kind == ext[i-1].Kind {
			t.Fatalf("extrema %d and %d are both %v", i-1, i, ext[i].Kind)
		}
		if ext[i].First <= ext[i-1].Last {
			t.Fatalf("extrema %d and %d overlap", i-1, i)
		}
	}
}

func TestSplitExtrema(t *testing.T) {
	ext := FindExtrema([]float64{0, 4, 1, 6, 0})
	minima, maxima := SplitExtrema(ext)
	if len(minima) != 3 || len(maxima) != 2 {
		t.Fatalf("got %d minima and %d maxima, want 3 and 2", len(minima), len(maxima))
	}
	if got := meanValue(maxima); got != 5 {
		t.Errorf("mean maximum = %v, want 5", got)
	}
	if got := (Extremum{First: 3, Last: 6}).Mid(); got != 4 {
		t.Errorf("Mid = %d, want 4", got)
	}
}
