package protmetrics

import (
	"fmt"
	"image"
	"math"
	"sort"
)

// PruneMode selects the skeleton pruning strategy.
type PruneMode int

const (
	// PruneNone keeps the raw skeleton; short branches are left to the
	// downstream length measurement.
	PruneNone PruneMode = iota
	// PruneSize drops noise fragments by a shape filter and removes
	// connected skeleton components shorter than the length threshold.
	PruneSize
)

func (m PruneMode) String() string {
	switch m {
	case PruneNone:
		return "none"
	case PruneSize:
		return "size"
	default:
		return "unknown"
	}
}

// ParsePruneMode maps a config string to a PruneMode.
func ParsePruneMode(s string) (PruneMode, error) {
	switch s {
	case "", "none":
		return PruneNone, nil
	case "size":
		return PruneSize, nil
	default:
		return PruneNone, fmt.Errorf("unknown prune mode %q", s)
	}
}

// PipelineParams contains all parameters for the per-image pipeline.
// The three legacy pipeline variants collapse into this one record.
type PipelineParams struct {
	Channel                   int
	UseCellMasking            bool
	UseTopHat                 bool
	TopHatRadius              int
	BlurSigma                 float64
	PruneMode                 PruneMode
	LengthThreshold           float64 // physical units; pixels when uncalibrated
	LocalThresholdRadius      int
	VesselnessScales          []float64
	VesselnessBeta            float64
	ProtrusionPercentile      float64
	RegionExcludeMargin       int
	CellOpenIterations        int
	MinCellArea               float64
	MinProtrusionArea         float64
	MaxProtrusionCircularity  float64
	MinSkeletonArea           float64
	SaveIntermediateFilesPath string
}

// NewPipelineParams creates a PipelineParams with default values.
func NewPipelineParams() *PipelineParams {
	return &PipelineParams{
		Channel:                  1,
		UseCellMasking:           false,
		UseTopHat:                false,
		TopHatRadius:             25,
		BlurSigma:                2.0,
		PruneMode:                PruneNone,
		LengthThreshold:          0,
		LocalThresholdRadius:     15,
		VesselnessScales:         []float64{1.0, 2.0, 3.0},
		VesselnessBeta:           0.5,
		ProtrusionPercentile:     0.90,
		RegionExcludeMargin:      3,
		CellOpenIterations:       5,
		MinCellArea:              100,
		MinProtrusionArea:        150,
		MaxProtrusionCircularity: 0.50,
		MinSkeletonArea:          10,
	}
}

// Point2d represents a 2D point with float64 coordinates.
type Point2d struct {
	X, Y float64
}

// Region is one connected cell-body component.
type Region struct {
	Contour     []image.Point
	Area        float64 // pixel count
	Centroid    Point2d
	Circularity float64
	Bounds      image.Rectangle
}

// RegionSet holds the disjoint cell-body regions of one image.
// Its cardinality is the cellNum normalization divisor.
type RegionSet struct {
	Regions []Region
}

func (rs *RegionSet) Count() int {
	if rs == nil {
		return 0
	}
	return len(rs.Regions)
}

// BranchRecord is one row per skeleton branch, in discovery order.
type BranchRecord struct {
	ComponentID int
	Length      float64 // physical units
	EndpointA   PixelClass
	EndpointB   PixelClass
}

// PixelClass is the topological classification of a skeleton pixel.
type PixelClass int

const (
	ClassSlab PixelClass = iota
	ClassEndpoint
	ClassJunction
)

func (c PixelClass) String() string {
	switch c {
	case ClassEndpoint:
		return "endpoint"
	case ClassJunction:
		return "junction"
	default:
		return "slab"
	}
}

// SkeletonSummaryRow summarizes one connected skeleton component.
// TotalLength is defined as BranchCount * AverageBranchLength; average
// branch length is sum/count over the same branch set, so the product
// equals the plain sum.
type SkeletonSummaryRow struct {
	ComponentID         int
	BranchCount         int
	JunctionCount       int
	EndpointCount       int
	AverageBranchLength float64
	TotalLength         float64
}

// SkeletonResult is the output of skeleton analysis for one image.
type SkeletonResult struct {
	Summaries []SkeletonSummaryRow
	Branches  []BranchRecord
}

// TotalLength sums the per-component derived totals.
func (r *SkeletonResult) TotalLength() float64 {
	total := 0.0
	for _, s := range r.Summaries {
		total += s.TotalLength
	}
	return total
}

// MedianBranchLength computes the cohort median over all branches using
// the sorted-midpoint rule. NaN when there are no branches.
func (r *SkeletonResult) MedianBranchLength() float64 {
	lengths := make([]float64, len(r.Branches))
	for i, b := range r.Branches {
		lengths[i] = b.Length
	}
	return Median(lengths)
}

// BatchSummaryRow is one per-image row of the batch table. Index is the
// zero-based match index assigned by the deterministic traversal, not
// the row position: a skipped file leaves a gap in the index column
// while the rows stay densely packed, so the gap records which matched
// files produced no result.
type BatchSummaryRow struct {
	Index              int
	ImageID            string
	TotalLength        float64
	CellCount          int
	NormalizedLength   float64
	MedianBranchLength float64
	Calibrated         bool
	Unit               string
}

// PipelineMetrics tracks per-image diagnostics.
type PipelineMetrics struct {
	CellsRetained       int
	ProtrusionRetained  int
	SkeletonPixels      int
	PrunedComponents    int
	CalibrationFallback bool
}

// PipelineResult is the output of the full per-image pipeline.
type PipelineResult struct {
	ImageID  string
	Cells    *RegionSet
	Skeleton *SkeletonResult
	Metrics  PipelineMetrics
	Row      BatchSummaryRow
}

// NormalizedLength divides a total skeleton length by the cell count.
// A zero cell count yields NaN rather than an error; the row is still
// reported so the batch table stays complete.
func NormalizedLength(totalLength float64, cellNum int) float64 {
	if cellNum <= 0 {
		return math.NaN()
	}
	return totalLength / float64(cellNum)
}

// Median returns the sorted-midpoint median: for n values sorted
// ascending, x[n/2] when n is odd, else the mean of the two middles.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2] + sorted[n/2-1]) / 2.0
}
