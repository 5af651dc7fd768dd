package protmetrics

import (
	"gocv.io/x/gocv"
)

// Skeletonize thins a binary mask to a 1-pixel-wide topological
// skeleton (Zhang-Suen thinning), preserving connectivity and branch
// structure.
func Skeletonize(mask gocv.Mat) gocv.Mat {
	rows, cols := mask.Rows(), mask.Cols()

	result := gocv.NewMat()
	gocv.Threshold(mask, &result, 0, 255, gocv.ThresholdBinary)

	temp := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	defer temp.Close()

	maxIterations := rows + cols
	changed := true
	for iteration := 0; iteration < maxIterations && changed; iteration++ {
		changed = false
		result.CopyTo(&temp)

		for y := 1; y < rows-1; y++ {
			for x := 1; x < cols-1; x++ {
				if temp.GetUCharAt(y, x) == 0 {
					continue
				}

				neighbors := neighborValues(temp, x, y)
				nonZero := countNonZeroNeighbors(neighbors)
				if nonZero >= 2 && nonZero <= 6 &&
					countTransitions(neighbors) == 1 &&
					removablePixel(neighbors, iteration%2) {
					result.SetUCharAt(y, x, 0)
					changed = true
				}
			}
		}
	}

	return result
}

// neighborValues returns the 8-neighborhood clockwise from north.
func neighborValues(mat gocv.Mat, x, y int) [8]uint8 {
	var neighbors [8]uint8
	positions := [8][2]int{
		{0, -1}, {1, -1}, {1, 0}, {1, 1},
		{0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
	}
	for i, pos := range positions {
		nx, ny := x+pos[0], y+pos[1]
		if nx >= 0 && nx < mat.Cols() && ny >= 0 && ny < mat.Rows() {
			neighbors[i] = mat.GetUCharAt(ny, nx)
		}
	}
	return neighbors
}

func countTransitions(neighbors [8]uint8) int {
	transitions := 0
	for i := 0; i < 8; i++ {
		current := neighbors[i] > 0
		next := neighbors[(i+1)%8] > 0
		if !current && next {
			transitions++
		}
	}
	return transitions
}

func countNonZeroNeighbors(neighbors [8]uint8) int {
	count := 0
	for _, v := range neighbors {
		if v > 0 {
			count++
		}
	}
	return count
}

func removablePixel(neighbors [8]uint8, subIteration int) bool {
	if subIteration == 0 {
		return (neighbors[0] == 0 || neighbors[2] == 0 || neighbors[4] == 0) &&
			(neighbors[2] == 0 || neighbors[4] == 0 || neighbors[6] == 0)
	}
	return (neighbors[0] == 0 || neighbors[2] == 0 || neighbors[6] == 0) &&
		(neighbors[0] == 0 || neighbors[4] == 0 || neighbors[6] == 0)
}

// PruneSkeleton removes spurious skeleton fragments according to the
// configured mode. PruneNone passes the skeleton through unchanged;
// PruneSize first drops noise-pixel fragments by a shape filter and
// then removes connected components whose total path length in pixels
// is below lengthThresholdPx. A component of exactly the threshold
// length is retained. Returns the pruned mask and the number of removed
// components.
func PruneSkeleton(skeleton gocv.Mat, mode PruneMode, minArea, lengthThresholdPx float64) (gocv.Mat, int) {
	if mode == PruneNone {
		return skeleton.Clone(), 0
	}

	filtered, _ := FilterComponents(skeleton, ShapeFilter{
		MinArea:        minArea,
		MinCircularity: 0.0,
		MaxCircularity: 1.0,
	})

	if lengthThresholdPx <= 0 {
		return filtered, 0
	}

	components := traceComponents(filtered)
	data, err := filtered.DataPtrUint8()
	if err != nil {
		return filtered, 0
	}

	cols := filtered.Cols()
	removed := 0
	for _, comp := range components {
		// Branch lengths here are in pixels; the threshold was already
		// converted from physical units by the calibration.
		if comp.pathLength() < lengthThresholdPx {
			for _, px := range comp.pixels {
				data[px.Y*cols+px.X] = 0
			}
			removed++
		}
	}

	return filtered, removed
}
