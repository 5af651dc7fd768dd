package protmetrics

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// syntheticCellWithArm draws one bright round body with a single long
// thin protrusion attached, on a dark background. The arm runs from the
// body edge to x=536, three pixels thick, so its centerline is ~400 px.
func syntheticCellWithArm() gocv.Mat {
	img := gocv.NewMatWithSize(512, 700, gocv.MatTypeCV8UC1)
	bright := color.RGBA{R: 200, G: 200, B: 200, A: 255}
	gocv.Circle(&img, image.Pt(128, 256), 8, bright, -1)
	gocv.Rectangle(&img, image.Rect(136, 255, 536, 257), bright, -1)
	return img
}

func TestSegmentCellBodiesFindsSingleBody(t *testing.T) {
	img := syntheticCellWithArm()
	defer img.Close()

	params := NewPipelineParams()
	cells, mask := SegmentCellBodies(img, params)
	defer mask.Close()

	if cells.Count() != 1 {
		t.Fatalf("cell count = %d, want 1 (arm must not survive opening)", cells.Count())
	}
	c := cells.Regions[0]
	if math.Abs(c.Centroid.X-128) > 3 || math.Abs(c.Centroid.Y-256) > 3 {
		t.Errorf("cell centroid = %+v, want near (128, 256)", c.Centroid)
	}
	if c.Area < 100 {
		t.Errorf("cell area = %f, want >= 100", c.Area)
	}
}

func TestPipelineQuantifiesProtrusionLength(t *testing.T) {
	img := syntheticCellWithArm()
	defer img.Close()

	params := NewPipelineParams()
	params.UseCellMasking = true
	params.ProtrusionPercentile = 0.5

	cells, cellMask := SegmentCellBodies(img, params)
	defer cellMask.Close()
	if cells.Count() != 1 {
		t.Fatalf("cell count = %d, want 1", cells.Count())
	}

	protrusionMask, kept, err := SegmentProtrusions(img, cells, params)
	if err != nil {
		t.Fatal(err)
	}
	defer protrusionMask.Close()
	if len(kept) == 0 {
		t.Fatal("no protrusion components retained")
	}

	skeleton := Skeletonize(protrusionMask)
	defer skeleton.Close()

	result := AnalyzeSkeleton(skeleton, Calibration{})
	total := result.TotalLength()
	if total < 250 || total > 500 {
		t.Errorf("total skeleton length = %f px, want ~400 for a 400 px arm", total)
	}

	normalized := NormalizedLength(total, cells.Count())
	if normalized != total {
		t.Errorf("normalized length = %f, want %f for a single cell", normalized, total)
	}
}

func TestSegmentProtrusionsRequiresCellsWhenMasking(t *testing.T) {
	img := syntheticCellWithArm()
	defer img.Close()

	params := NewPipelineParams()
	params.UseCellMasking = true

	mask, _, err := SegmentProtrusions(img, &RegionSet{}, params)
	if err != ErrNoCellRegions {
		t.Fatalf("err = %v, want ErrNoCellRegions", err)
	}
	// The error path hands back a zero Mat with no native header, so
	// callers that bail out on the error have nothing to release.
	if !mask.Closed() {
		t.Error("error path must not allocate a Mat header")
	}
}

func TestProcessImageMissingFile(t *testing.T) {
	params := NewPipelineParams()
	_, err := ProcessImage("/nonexistent/image.tif", params, "", zerolog.Nop())
	if err == nil {
		t.Fatal("expected an error for a missing input file")
	}
}
