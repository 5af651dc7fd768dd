package protmetrics

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// ShapeFilter is the area/circularity retention criterion applied by
// the particle-analysis steps. Area is the component pixel count;
// circularity is 4*pi*area/perimeter^2 clamped to [0, 1].
type ShapeFilter struct {
	MinArea        float64
	MaxArea        float64 // 0 means unbounded
	MinCircularity float64
	MaxCircularity float64
}

func (f ShapeFilter) keeps(area, circularity float64) bool {
	if area < f.MinArea {
		return false
	}
	if f.MaxArea > 0 && area > f.MaxArea {
		return false
	}
	return circularity >= f.MinCircularity && circularity <= f.MaxCircularity
}

// AnalyzeComponents measures every connected foreground component of a
// binary mask: pixel area, perimeter, circularity, centroid, bounds.
func AnalyzeComponents(mask gocv.Mat) []Region {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	regions := make([]Region, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		component := gocv.NewMatWithSize(mask.Rows(), mask.Cols(), gocv.MatTypeCV8UC1)
		gocv.DrawContours(&component, contours, i, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
		gocv.BitwiseAnd(component, mask, &component)

		area := float64(gocv.CountNonZero(component))
		moments := gocv.Moments(component, true)
		component.Close()

		centroid := Point2d{}
		if m00 := moments["m00"]; m00 > 0 {
			centroid = Point2d{X: moments["m10"] / m00, Y: moments["m01"] / m00}
		}

		perimeter := gocv.ArcLength(contour, true)
		circularity := 1.0
		if perimeter > 0 {
			circularity = math.Min(4.0*math.Pi*area/(perimeter*perimeter), 1.0)
		}

		regions = append(regions, Region{
			Contour:     contour.ToPoints(),
			Area:        area,
			Centroid:    centroid,
			Circularity: circularity,
			Bounds:      gocv.BoundingRect(contour),
		})
	}
	return regions
}

// FilterComponents re-renders a binary mask keeping only the components
// the shape filter retains. The filter is a projection: running it on
// an already-filtered mask returns the identical mask. Interior holes
// of retained components survive (the AND with the source mask).
func FilterComponents(mask gocv.Mat, filter ShapeFilter) (gocv.Mat, []Region) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	out := gocv.NewMatWithSize(mask.Rows(), mask.Cols(), gocv.MatTypeCV8UC1)
	kept := make([]Region, 0, contours.Size())
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		component := gocv.NewMatWithSize(mask.Rows(), mask.Cols(), gocv.MatTypeCV8UC1)
		gocv.DrawContours(&component, contours, i, white, -1)
		gocv.BitwiseAnd(component, mask, &component)
		area := float64(gocv.CountNonZero(component))

		perimeter := gocv.ArcLength(contour, true)
		circularity := 1.0
		if perimeter > 0 {
			circularity = math.Min(4.0*math.Pi*area/(perimeter*perimeter), 1.0)
		}

		if filter.keeps(area, circularity) {
			gocv.BitwiseOr(out, component, &out)

			moments := gocv.Moments(component, true)
			centroid := Point2d{}
			if m00 := moments["m00"]; m00 > 0 {
				centroid = Point2d{X: moments["m10"] / m00, Y: moments["m01"] / m00}
			}
			kept = append(kept, Region{
				Contour:     contour.ToPoints(),
				Area:        area,
				Centroid:    centroid,
				Circularity: circularity,
				Bounds:      gocv.BoundingRect(contour),
			})
		}
		component.Close()
	}
	return out, kept
}

// FillHoles closes interior holes by re-rendering every external
// contour filled, so solid blobs do not generate spurious internal
// skeleton loops.
func FillHoles(mask gocv.Mat) gocv.Mat {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	out := gocv.NewMatWithSize(mask.Rows(), mask.Cols(), gocv.MatTypeCV8UC1)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for i := 0; i < contours.Size(); i++ {
		gocv.DrawContours(&out, contours, i, white, -1)
	}
	return out
}

// excludeRegions zeroes out each region interior plus a dilated margin
// around its boundary, so bright non-tubular cell bodies cannot
// contaminate the protrusion mask.
func excludeRegions(mask gocv.Mat, regions *RegionSet, margin int) {
	if regions.Count() == 0 {
		return
	}

	exclusion := gocv.NewMatWithSize(mask.Rows(), mask.Cols(), gocv.MatTypeCV8UC1)
	defer exclusion.Close()

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for _, region := range regions.Regions {
		pv := gocv.NewPointVectorFromPoints(region.Contour)
		pts := gocv.NewPointsVector()
		pts.Append(pv)
		gocv.DrawContours(&exclusion, pts, 0, white, -1)
		pts.Close()
		pv.Close()
	}

	if margin > 0 {
		kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(margin*2+1, margin*2+1))
		gocv.Dilate(exclusion, &exclusion, kernel)
		kernel.Close()
	}

	gocv.BitwiseNot(exclusion, &exclusion)
	gocv.BitwiseAnd(mask, exclusion, &mask)
}
