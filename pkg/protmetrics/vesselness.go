package protmetrics

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Vesselness computes a multiscale Hessian ridge response (Frangi-style)
// boosting bright elongated structures and suppressing blobs and noise.
// Input is the 8-bit working channel; output is a CV_32F response in
// [0, 1], the per-pixel maximum over the requested scales.
func Vesselness(src gocv.Mat, scales []float64, beta float64) gocv.Mat {
	rows, cols := src.Rows(), src.Cols()

	srcFloat := gocv.NewMat()
	defer srcFloat.Close()
	src.ConvertToWithParams(&srcFloat, gocv.MatTypeCV32F, 1.0/255.0, 0)

	response := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)
	responseData, err := response.DataPtrFloat32()
	if err != nil {
		return response
	}

	for _, sigma := range scales {
		scaleResponse := vesselnessAtScale(srcFloat, sigma, beta)
		if scaleResponse == nil {
			continue
		}
		for i, v := range scaleResponse {
			if v > responseData[i] {
				responseData[i] = v
			}
		}
	}

	return response
}

func vesselnessAtScale(srcFloat gocv.Mat, sigma, beta float64) []float32 {
	smoothed := gocv.NewMat()
	defer smoothed.Close()
	gocv.GaussianBlur(srcFloat, &smoothed, image.Pt(0, 0), sigma, sigma, gocv.BorderDefault)

	dxx := gocv.NewMat()
	defer dxx.Close()
	dyy := gocv.NewMat()
	defer dyy.Close()
	dxy := gocv.NewMat()
	defer dxy.Close()
	gocv.Sobel(smoothed, &dxx, gocv.MatTypeCV32F, 2, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(smoothed, &dyy, gocv.MatTypeCV32F, 0, 2, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(smoothed, &dxy, gocv.MatTypeCV32F, 1, 1, 3, 1, 0, gocv.BorderDefault)

	xxData, err := dxx.DataPtrFloat32()
	if err != nil {
		return nil
	}
	yyData, err := dyy.DataPtrFloat32()
	if err != nil {
		return nil
	}
	xyData, err := dxy.DataPtrFloat32()
	if err != nil {
		return nil
	}

	numPixels := len(xxData)
	lambda1 := make([]float64, numPixels)
	lambda2 := make([]float64, numPixels)

	// Scale-normalized Hessian eigenvalues, ordered |l1| <= |l2|.
	norm := sigma * sigma
	maxStructureness := 0.0
	for i := 0; i < numPixels; i++ {
		hxx := float64(xxData[i]) * norm
		hyy := float64(yyData[i]) * norm
		hxy := float64(xyData[i]) * norm

		tmp := math.Sqrt((hxx-hyy)*(hxx-hyy) + 4*hxy*hxy)
		l1 := (hxx + hyy + tmp) / 2
		l2 := (hxx + hyy - tmp) / 2
		if math.Abs(l1) > math.Abs(l2) {
			l1, l2 = l2, l1
		}
		lambda1[i] = l1
		lambda2[i] = l2

		s := math.Sqrt(l1*l1 + l2*l2)
		if s > maxStructureness {
			maxStructureness = s
		}
	}

	out := make([]float32, numPixels)
	if maxStructureness == 0 {
		return out
	}

	twoBeta2 := 2 * beta * beta
	twoC2 := 2 * (maxStructureness / 2) * (maxStructureness / 2)
	for i := 0; i < numPixels; i++ {
		l1, l2 := lambda1[i], lambda2[i]
		// Bright ridges on dark background have a strongly negative
		// principal curvature.
		if l2 >= 0 {
			continue
		}
		blobness := l1 / l2
		structureness := l1*l1 + l2*l2
		v := math.Exp(-blobness*blobness/twoBeta2) * (1 - math.Exp(-structureness/twoC2))
		out[i] = float32(v)
	}
	return out
}
