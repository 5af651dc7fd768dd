package protmetrics

import (
	"errors"
	"image"
	"unsafe"

	"gocv.io/x/gocv"
)

// dataPtrInt32 views a continuous CV_32S Mat's data as []int32. gocv
// offers typed DataPtr accessors for every element type except int32;
// this mirrors their implementation via the raw byte view.
func dataPtrInt32(m gocv.Mat) ([]int32, error) {
	if m.Type()&gocv.MatTypeCV32S != gocv.MatTypeCV32S {
		return nil, errors.New("dataPtrInt32 only supports MatTypeCV32S")
	}
	b, err := m.DataPtrUint8()
	if err != nil || len(b) == 0 {
		return nil, err
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/4), nil
}

// SegmentCellBodies binarizes the original (unfiltered) channel with a
// global automatic threshold, cleans the mask by iterative opening,
// separates touching bodies by watershed, and retains components with
// area >= MinCellArea. The returned RegionSet cardinality is the
// cellNum normalization divisor; a degenerate threshold may yield zero
// regions, which the caller reports rather than special-cases.
func SegmentCellBodies(channel gocv.Mat, p *PipelineParams) (*RegionSet, gocv.Mat) {
	mask := gocv.NewMat()
	gocv.Threshold(channel, &mask, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3))
	gocv.MorphologyExWithParams(mask, &mask, gocv.MorphOpen, kernel, p.CellOpenIterations, gocv.BorderConstant)
	kernel.Close()

	maybeSaveImage(mask, p.SaveIntermediateFilesPath, "02-cell-mask-opened.tif")

	separateTouchingBodies(channel, mask)
	maybeSaveImage(mask, p.SaveIntermediateFilesPath, "03-cell-mask-separated.tif")

	filtered, kept := FilterComponents(mask, ShapeFilter{
		MinArea:        p.MinCellArea,
		MinCircularity: 0.0,
		MaxCircularity: 1.0,
	})
	mask.Close()

	return &RegionSet{Regions: kept}, filtered
}

// separateTouchingBodies runs a distance-transform watershed on the
// mask and carves the watershed ridge lines out of it, splitting
// touching cell bodies into disjoint components.
func separateTouchingBodies(channel, mask gocv.Mat) {
	dist := gocv.NewMat()
	defer dist.Close()
	distLabels := gocv.NewMat()
	defer distLabels.Close()
	gocv.DistanceTransform(mask, &dist, &distLabels, gocv.DistL2, gocv.DistanceMask5, gocv.DistanceLabelCComp)

	_, maxDist, _, _ := gocv.MinMaxLoc(dist)
	if maxDist <= 0 {
		return
	}

	// Sure-foreground seeds: distance peaks above half the maximum.
	sureFG := gocv.NewMat()
	defer sureFG.Close()
	gocv.Threshold(dist, &sureFG, 0.5*maxDist, 255, gocv.ThresholdBinary)
	sureFG8 := gocv.NewMat()
	defer sureFG8.Close()
	sureFG.ConvertTo(&sureFG8, gocv.MatTypeCV8UC1)

	markers := gocv.NewMat()
	defer markers.Close()
	numSeeds := gocv.ConnectedComponents(sureFG8, &markers)
	if numSeeds <= 2 {
		// Zero or one seed: nothing to separate.
		return
	}

	// Shift labels so the watershed treats label 1 as known background,
	// and mark the not-yet-assigned foreground band as unknown (0).
	markerData, err := dataPtrInt32(markers)
	if err != nil {
		return
	}
	maskData, err := mask.DataPtrUint8()
	if err != nil {
		return
	}
	fgData, err := sureFG8.DataPtrUint8()
	if err != nil {
		return
	}
	for i := range markerData {
		markerData[i]++
		if maskData[i] != 0 && fgData[i] == 0 {
			markerData[i] = 0
		}
	}

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(channel, &bgr, gocv.ColorGrayToBGR)
	gocv.Watershed(bgr, &markers)

	// Ridge pixels come back as -1; carving them out of the mask splits
	// the touching components.
	for i := range markerData {
		if markerData[i] == -1 {
			maskData[i] = 0
		}
	}
}
