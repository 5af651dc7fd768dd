package protmetrics

import (
	"errors"
	"sort"

	"gocv.io/x/gocv"

	"gonum.org/v1/gonum/stat"
)

// ErrNoCellRegions is returned when cell-body masking is requested but
// no cell regions exist. The operator must supply cell regions before
// masking; the pipeline never synthesizes them. This is a batch-fatal
// configuration error, not a per-image skip.
var ErrNoCellRegions = errors.New("cell masking requires at least one cell-body region")

// SegmentProtrusions isolates tube-like structures from the working
// channel: local adaptive threshold, multiscale tube enhancement,
// optional cell-body exclusion, percentile binarization, and
// shape-filtered retention of elongated components with filled holes.
func SegmentProtrusions(working gocv.Mat, cells *RegionSet, p *PipelineParams) (gocv.Mat, []Region, error) {
	if p.UseCellMasking && cells.Count() == 0 {
		// Zero Mat, not NewMat: callers bail out on error and must not
		// be handed a header they would have to close.
		return gocv.Mat{}, nil, ErrNoCellRegions
	}

	// Local mean threshold equalizes the varying background so dim
	// protrusions survive alongside bright cell bodies.
	local := gocv.NewMat()
	blockSize := p.LocalThresholdRadius*2 + 1
	gocv.AdaptiveThreshold(working, &local, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinary, blockSize, -2)
	maybeSaveImage(local, p.SaveIntermediateFilesPath, "04-local-threshold.tif")

	enhanced := Vesselness(local, p.VesselnessScales, p.VesselnessBeta)
	local.Close()

	enhanced8 := gocv.NewMat()
	enhanced.ConvertToWithParams(&enhanced8, gocv.MatTypeCV8UC1, 255, 0)
	enhanced.Close()
	maybeSaveImage(enhanced8, p.SaveIntermediateFilesPath, "05-vesselness.tif")

	if p.UseCellMasking {
		excludeRegions(enhanced8, cells, p.RegionExcludeMargin)
		maybeSaveImage(enhanced8, p.SaveIntermediateFilesPath, "06-vesselness-masked.tif")
	}

	threshold := percentileThreshold(enhanced8, p.ProtrusionPercentile)
	binary := gocv.NewMat()
	gocv.Threshold(enhanced8, &binary, threshold, 255, gocv.ThresholdBinary)
	enhanced8.Close()
	maybeSaveImage(binary, p.SaveIntermediateFilesPath, "07-protrusion-binary.tif")

	// Circularity is the discriminator: round cell-body-like blobs are
	// rejected, elongated structures kept.
	filtered, kept := FilterComponents(binary, ShapeFilter{
		MinArea:        p.MinProtrusionArea,
		MinCircularity: 0.0,
		MaxCircularity: p.MaxProtrusionCircularity,
	})
	binary.Close()

	filled := FillHoles(filtered)
	filtered.Close()
	maybeSaveImage(filled, p.SaveIntermediateFilesPath, "08-protrusion-mask.tif")

	return filled, kept, nil
}

// percentileThreshold returns the intensity at the given quantile of
// the positive response pixels. Most of a fluorescence field is dark
// background, so the quantile is taken over foreground response only;
// a fully dark response yields the maximum threshold (empty mask).
func percentileThreshold(response gocv.Mat, percentile float64) float32 {
	data, err := response.DataPtrUint8()
	if err != nil {
		return 255
	}

	values := make([]float64, 0, len(data)/8)
	for _, v := range data {
		if v > 0 {
			values = append(values, float64(v))
		}
	}
	if len(values) == 0 {
		return 255
	}

	sort.Float64s(values)
	return float32(stat.Quantile(percentile, stat.Empirical, values, nil))
}
