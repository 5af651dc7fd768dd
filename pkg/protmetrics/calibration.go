package protmetrics

// Calibration is the spatial calibration of a source image: physical
// units per pixel. A zero PixelSize means the image is uncalibrated and
// lengths are interpreted in pixels.
type Calibration struct {
	PixelSize float64
	Unit      string
}

// Calibrated reports whether a usable pixel size is present.
func (c Calibration) Calibrated() bool {
	return c.PixelSize > 0
}

// PixelsFromPhysical converts a length threshold from physical units to
// pixels. Without calibration the threshold passes through unchanged
// (pixel-unit fallback); callers surface this in logs so cross-cohort
// comparisons stay auditable.
func (c Calibration) PixelsFromPhysical(length float64) float64 {
	if !c.Calibrated() {
		return length
	}
	return length / c.PixelSize
}

// PhysicalFromPixels converts a pixel-space length to physical units.
func (c Calibration) PhysicalFromPixels(length float64) float64 {
	if !c.Calibrated() {
		return length
	}
	return length * c.PixelSize
}
