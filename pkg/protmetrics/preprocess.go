package protmetrics

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// AnalysisChannel is the single-channel working view of a source image:
// an unmodified original retained for the overlay, and a working copy
// that receives the optional top-hat and blur conditioning.
type AnalysisChannel struct {
	Name     string
	Original gocv.Mat
	Working  gocv.Mat
	Calib    Calibration
}

// Close releases both pixel buffers.
func (a *AnalysisChannel) Close() {
	if !a.Original.Empty() {
		a.Original.Close()
	}
	if !a.Working.Empty() {
		a.Working.Close()
	}
}

// Preprocess selects the analysis channel, rescales it to 8-bit so the
// local threshold stages see bounded-range input, and applies the
// configured top-hat and Gaussian conditioning to the working copy.
func Preprocess(src *SourceImage, p *PipelineParams) (*AnalysisChannel, error) {
	channel, name, err := src.Channel(p.Channel)
	if err != nil {
		return nil, err
	}
	defer channel.Close()

	original, err := normalizeTo8Bit(channel)
	if err != nil {
		return nil, err
	}

	working := original.Clone()
	if p.UseTopHat {
		// Suppresses blob-like structures (cell bodies) before tube
		// enhancement.
		kernelSize := p.TopHatRadius*2 + 1
		kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(kernelSize, kernelSize))
		gocv.MorphologyEx(working, &working, gocv.MorphTophat, kernel)
		kernel.Close()
	}
	if p.BlurSigma > 0 {
		gocv.GaussianBlur(working, &working, image.Pt(0, 0), p.BlurSigma, p.BlurSigma, gocv.BorderDefault)
	}

	maybeSaveImage(working, p.SaveIntermediateFilesPath, "01-working.tif")

	return &AnalysisChannel{
		Name:     name,
		Original: original,
		Working:  working,
		Calib:    src.Calib,
	}, nil
}

// normalizeTo8Bit rescales the observed intensity range to [0, 255] and
// converts to CV_8U. Already-8-bit input is cloned unchanged.
func normalizeTo8Bit(src gocv.Mat) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.Mat{}, fmt.Errorf("normalize: empty image")
	}
	if src.Type() == gocv.MatTypeCV8UC1 {
		return src.Clone(), nil
	}

	minVal, maxVal, _, _ := gocv.MinMaxLoc(src)
	dst := gocv.NewMat()
	if maxVal <= minVal {
		src.ConvertTo(&dst, gocv.MatTypeCV8UC1)
		return dst, nil
	}

	alpha := 255.0 / (maxVal - minVal)
	src.ConvertToWithParams(&dst, gocv.MatTypeCV8UC1, float32(alpha), float32(-minVal*alpha))
	return dst, nil
}
