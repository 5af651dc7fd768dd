package protmetrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// ProcessImage runs the full per-image pipeline: preprocessing,
// cell-body segmentation, protrusion segmentation, skeletonization,
// pruning, and quantification. All intermediate buffers are released
// before returning so batch memory stays flat. When outputDir is
// non-empty the per-image artifacts (overlay, skeleton image, skeleton
// and branch tables) are written there.
func ProcessImage(path string, params *PipelineParams, outputDir string, log zerolog.Logger) (*PipelineResult, error) {
	src, err := OpenImage(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer src.Close()

	metrics := PipelineMetrics{}
	if !src.Calib.Calibrated() {
		// Silent unit degradation would make cross-cohort comparisons
		// unauditable, so the fallback is logged and recorded.
		metrics.CalibrationFallback = true
		log.Warn().Str("image", src.Title).Msg("no spatial calibration; lengths interpreted in pixels")
	}

	channel, err := Preprocess(src, params)
	if err != nil {
		return nil, fmt.Errorf("preprocessing: %w", err)
	}
	defer channel.Close()

	cells, cellMask := SegmentCellBodies(channel.Original, params)
	defer cellMask.Close()
	metrics.CellsRetained = cells.Count()

	protrusionMask, protrusions, err := SegmentProtrusions(channel.Working, cells, params)
	if err != nil {
		return nil, fmt.Errorf("segmenting protrusions: %w", err)
	}
	defer protrusionMask.Close()
	metrics.ProtrusionRetained = len(protrusions)

	skeleton := Skeletonize(protrusionMask)
	defer skeleton.Close()
	metrics.SkeletonPixels = gocv.CountNonZero(skeleton)

	thresholdPx := src.Calib.PixelsFromPhysical(params.LengthThreshold)
	pruned, removed := PruneSkeleton(skeleton, params.PruneMode, params.MinSkeletonArea, thresholdPx)
	defer pruned.Close()
	metrics.PrunedComponents = removed
	maybeSaveImage(pruned, params.SaveIntermediateFilesPath, "09-skeleton-pruned.tif")

	skelResult := AnalyzeSkeleton(pruned, src.Calib)
	totalLength := skelResult.TotalLength()

	row := BatchSummaryRow{
		ImageID:            src.Title,
		TotalLength:        totalLength,
		CellCount:          cells.Count(),
		NormalizedLength:   NormalizedLength(totalLength, cells.Count()),
		MedianBranchLength: skelResult.MedianBranchLength(),
		Calibrated:         src.Calib.Calibrated(),
		Unit:               src.Calib.Unit,
	}

	result := &PipelineResult{
		ImageID:  src.Title,
		Cells:    cells,
		Skeleton: skelResult,
		Metrics:  metrics,
		Row:      row,
	}

	if outputDir != "" {
		if err := writeImageArtifacts(outputDir, src.Title, channel.Original, pruned, result); err != nil {
			return nil, fmt.Errorf("writing artifacts: %w", err)
		}
	}

	return result, nil
}

func writeImageArtifacts(outputDir, base string, original, skeleton gocv.Mat, result *PipelineResult) error {
	if err := WriteOverlay(filepath.Join(outputDir, base+"_overlay.tif"), original, skeleton, result); err != nil {
		return err
	}
	if ok := gocv.IMWrite(filepath.Join(outputDir, base+"_skeleton.tif"), skeleton); !ok {
		return fmt.Errorf("writing skeleton image for %s", base)
	}
	if err := WriteSkeletonInfoCSV(filepath.Join(outputDir, base+"_skel_info.csv"), result.Skeleton); err != nil {
		return err
	}
	return WriteBranchInfoCSV(filepath.Join(outputDir, base+"_branch_info.csv"), result.Skeleton)
}

func maybeSaveImage(img gocv.Mat, savePath, filename string) {
	if savePath == "" {
		return
	}
	if _, err := os.Stat(savePath); os.IsNotExist(err) {
		return
	}
	gocv.IMWrite(filepath.Join(savePath, filename), img)
}
