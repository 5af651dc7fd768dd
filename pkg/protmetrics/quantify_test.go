package protmetrics

import (
	"math"
	"testing"
)

func TestMedianOddLength(t *testing.T) {
	got := Median([]float64{1, 3, 2})
	if got != 2 {
		t.Errorf("Median([1,3,2]) = %f, want 2", got)
	}
}

func TestMedianEvenLength(t *testing.T) {
	got := Median([]float64{1, 2, 3, 4})
	if got != 2.5 {
		t.Errorf("Median([1,2,3,4]) = %f, want 2.5", got)
	}
}

func TestMedianSingleAndEmpty(t *testing.T) {
	if got := Median([]float64{7}); got != 7 {
		t.Errorf("Median([7]) = %f, want 7", got)
	}
	if got := Median(nil); !math.IsNaN(got) {
		t.Errorf("Median(nil) = %f, want NaN", got)
	}
}

func TestMedianDoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Median(values)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Errorf("Median mutated its input: %v", values)
	}
}

func TestNormalizedLength(t *testing.T) {
	if got := NormalizedLength(100, 4); got != 25.0 {
		t.Errorf("NormalizedLength(100, 4) = %f, want 25", got)
	}
}

func TestNormalizedLengthZeroCells(t *testing.T) {
	got := NormalizedLength(100, 0)
	if !math.IsNaN(got) {
		t.Errorf("NormalizedLength(100, 0) = %f, want NaN", got)
	}
}

func TestTotalLengthIdentity(t *testing.T) {
	result := &SkeletonResult{
		Summaries: []SkeletonSummaryRow{
			{ComponentID: 0, BranchCount: 4, AverageBranchLength: 2.5, TotalLength: 4 * 2.5},
		},
	}
	if got := result.TotalLength(); got != 10.0 {
		t.Errorf("TotalLength = %f, want exactly 10.0", got)
	}
}

func TestMedianBranchLength(t *testing.T) {
	result := &SkeletonResult{
		Branches: []BranchRecord{
			{Length: 4}, {Length: 1}, {Length: 3},
		},
	}
	if got := result.MedianBranchLength(); got != 3 {
		t.Errorf("MedianBranchLength = %f, want 3", got)
	}
}
