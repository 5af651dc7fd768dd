package protmetrics

import (
	"math"
	"testing"
)

func TestPixelsFromPhysical(t *testing.T) {
	// 3 µm at 0.5 µm/px must prune components shorter than 6 pixels.
	c := Calibration{PixelSize: 0.5, Unit: "micron"}
	if got := c.PixelsFromPhysical(3.0); got != 6.0 {
		t.Errorf("PixelsFromPhysical(3.0) = %f, want 6.0", got)
	}
}

func TestPixelsFromPhysicalUncalibrated(t *testing.T) {
	// Without calibration the threshold is already in pixels.
	c := Calibration{}
	if c.Calibrated() {
		t.Fatal("zero calibration must report uncalibrated")
	}
	if got := c.PixelsFromPhysical(6.0); got != 6.0 {
		t.Errorf("uncalibrated PixelsFromPhysical(6.0) = %f, want 6.0", got)
	}
}

func TestPhysicalFromPixelsRoundTrip(t *testing.T) {
	c := Calibration{PixelSize: 0.325, Unit: "micron"}
	px := c.PixelsFromPhysical(13.0)
	back := c.PhysicalFromPixels(px)
	if math.Abs(back-13.0) > 1e-9 {
		t.Errorf("round trip: got %f, want 13.0", back)
	}
}
