package protmetrics

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// skelBranch is one maximal skeleton path between two
// junction/endpoint nodes, with its length in pixels.
type skelBranch struct {
	lengthPx float64
	endA     PixelClass
	endB     PixelClass
}

// skelComponent is one connected skeleton component with its topological
// decomposition.
type skelComponent struct {
	pixels    []image.Point
	branches  []skelBranch
	endpoints int
	junctions int
}

func (c *skelComponent) pathLength() float64 {
	total := 0.0
	for _, b := range c.branches {
		total += b.lengthPx
	}
	return total
}

var neighborOffsets = [8][2]int{
	{0, -1}, {1, -1}, {1, 0}, {1, 1},
	{0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

// AnalyzeSkeleton decomposes a pruned skeleton mask into connected
// components and branch records. Branch lengths are converted to
// physical units by the calibration (pixel units when uncalibrated).
func AnalyzeSkeleton(mask gocv.Mat, calib Calibration) *SkeletonResult {
	components := traceComponents(mask)

	result := &SkeletonResult{
		Summaries: make([]SkeletonSummaryRow, 0, len(components)),
		Branches:  make([]BranchRecord, 0),
	}

	for id, comp := range components {
		sum := 0.0
		for _, b := range comp.branches {
			length := calib.PhysicalFromPixels(b.lengthPx)
			sum += length
			result.Branches = append(result.Branches, BranchRecord{
				ComponentID: id,
				Length:      length,
				EndpointA:   b.endA,
				EndpointB:   b.endB,
			})
		}

		row := SkeletonSummaryRow{
			ComponentID:   id,
			BranchCount:   len(comp.branches),
			JunctionCount: comp.junctions,
			EndpointCount: comp.endpoints,
		}
		if row.BranchCount > 0 {
			// Average is sum/count over the same branch set, so the
			// derived total (count * average) equals the plain sum.
			row.AverageBranchLength = sum / float64(row.BranchCount)
			row.TotalLength = float64(row.BranchCount) * row.AverageBranchLength
		}
		result.Summaries = append(result.Summaries, row)
	}

	return result
}

// traceComponents groups skeleton pixels into 8-connected components
// and walks each component's maximal branches.
func traceComponents(mask gocv.Mat) []*skelComponent {
	rows, cols := mask.Rows(), mask.Cols()
	data, err := mask.DataPtrUint8()
	if err != nil {
		return nil
	}

	fg := func(x, y int) bool {
		return x >= 0 && x < cols && y >= 0 && y < rows && data[y*cols+x] != 0
	}

	degree := func(x, y int) int {
		d := 0
		for _, off := range neighborOffsets {
			if fg(x+off[0], y+off[1]) {
				d++
			}
		}
		return d
	}

	classify := func(x, y int) PixelClass {
		switch d := degree(x, y); {
		case d <= 1:
			return ClassEndpoint
		case d == 2:
			return ClassSlab
		default:
			return ClassJunction
		}
	}

	componentID := make([]int, rows*cols)
	for i := range componentID {
		componentID[i] = -1
	}

	var components []*skelComponent
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if !fg(x, y) || componentID[y*cols+x] >= 0 {
				continue
			}

			// Flood the component.
			comp := &skelComponent{}
			id := len(components)
			queue := []image.Point{{X: x, Y: y}}
			componentID[y*cols+x] = id
			for len(queue) > 0 {
				p := queue[0]
				queue = queue[1:]
				comp.pixels = append(comp.pixels, p)
				for _, off := range neighborOffsets {
					nx, ny := p.X+off[0], p.Y+off[1]
					if fg(nx, ny) && componentID[ny*cols+nx] < 0 {
						componentID[ny*cols+nx] = id
						queue = append(queue, image.Point{X: nx, Y: ny})
					}
				}
			}
			components = append(components, comp)
		}
	}

	stepLength := func(a, b image.Point) float64 {
		if a.X != b.X && a.Y != b.Y {
			return math.Sqrt2
		}
		return 1.0
	}

	edgeKey := func(a, b image.Point) [2]int {
		ia, ib := a.Y*cols+a.X, b.Y*cols+b.X
		if ia > ib {
			ia, ib = ib, ia
		}
		return [2]int{ia, ib}
	}
	visitedEdge := make(map[[2]int]bool)

	for _, comp := range components {
		var nodes []image.Point
		for _, p := range comp.pixels {
			switch classify(p.X, p.Y) {
			case ClassEndpoint:
				comp.endpoints++
				nodes = append(nodes, p)
			case ClassJunction:
				comp.junctions++
				nodes = append(nodes, p)
			}
		}

		// Walk each branch from a node through slab pixels to the next
		// node, marking traversed edges.
		for _, n := range nodes {
			for _, off := range neighborOffsets {
				nb := image.Point{X: n.X + off[0], Y: n.Y + off[1]}
				if !fg(nb.X, nb.Y) || visitedEdge[edgeKey(n, nb)] {
					continue
				}
				visitedEdge[edgeKey(n, nb)] = true

				length := stepLength(n, nb)
				prev, cur := n, nb
				for classify(cur.X, cur.Y) == ClassSlab {
					var next image.Point
					found := false
					for _, o := range neighborOffsets {
						cand := image.Point{X: cur.X + o[0], Y: cur.Y + o[1]}
						if cand == prev || !fg(cand.X, cand.Y) {
							continue
						}
						if visitedEdge[edgeKey(cur, cand)] {
							continue
						}
						next = cand
						found = true
						break
					}
					if !found {
						break
					}
					visitedEdge[edgeKey(cur, next)] = true
					length += stepLength(cur, next)
					prev, cur = cur, next
				}

				comp.branches = append(comp.branches, skelBranch{
					lengthPx: length,
					endA:     classify(n.X, n.Y),
					endB:     classify(cur.X, cur.Y),
				})
			}
		}

		// A component with no endpoint or junction nodes is a closed
		// loop: one branch covering the full cycle.
		if len(nodes) == 0 && len(comp.pixels) > 1 {
			start := comp.pixels[0]
			length := 0.0
			prev, cur := start, start
			for {
				var next image.Point
				found := false
				for _, o := range neighborOffsets {
					cand := image.Point{X: cur.X + o[0], Y: cur.Y + o[1]}
					if cand == prev || !fg(cand.X, cand.Y) {
						continue
					}
					if visitedEdge[edgeKey(cur, cand)] {
						continue
					}
					next = cand
					found = true
					break
				}
				if !found {
					// Close the loop back to the start.
					if cur != start {
						length += stepLength(cur, start)
					}
					break
				}
				visitedEdge[edgeKey(cur, next)] = true
				length += stepLength(cur, next)
				prev, cur = cur, next
			}
			comp.branches = append(comp.branches, skelBranch{
				lengthPx: length,
				endA:     ClassSlab,
				endB:     ClassSlab,
			})
		}
	}

	return components
}
