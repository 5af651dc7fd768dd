package protmetrics

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// buildTiff assembles a minimal little-endian TIFF with one IFD holding
// an ImageDescription, an XResolution rational, and a ResolutionUnit.
func buildTiff(t *testing.T, description string, resNum, resDen uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	le := binary.LittleEndian

	write := func(v interface{}) {
		if err := binary.Write(&buf, le, v); err != nil {
			t.Fatalf("building TIFF fixture: %v", err)
		}
	}

	desc := append([]byte(description), 0)
	const ifdOffset = 8
	numEntries := uint16(3)
	// header(8) + count(2) + entries(36) + next offset(4)
	ratOffset := uint32(ifdOffset + 2 + 12*int(numEntries) + 4)
	descOffset := ratOffset + 8

	buf.WriteString("II")
	write(uint16(42))
	write(uint32(ifdOffset))

	write(numEntries)
	// ImageDescription, ASCII
	write(uint16(tagImageDescription))
	write(uint16(2))
	write(uint32(len(desc)))
	write(descOffset)
	// XResolution, RATIONAL
	write(uint16(tagXResolution))
	write(uint16(5))
	write(uint32(1))
	write(ratOffset)
	// ResolutionUnit, SHORT inline
	write(uint16(tagResolutionUnit))
	write(uint16(3))
	write(uint32(1))
	write(uint16(1))
	write(uint16(0))
	// next IFD offset
	write(uint32(0))

	write(resNum)
	write(resDen)
	buf.Write(desc)

	return buf.Bytes()
}

func TestReadTiffMetadataImageJDescription(t *testing.T) {
	data := buildTiff(t, "ImageJ=1.53\nunit=micron\npixel_width=0.5", 2, 1)

	meta, err := readTiffMetadata(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("readTiffMetadata: %v", err)
	}

	if got := meta.GetString("unit"); got != "micron" {
		t.Errorf("unit = %q, want micron", got)
	}
	calib := meta.Calibration()
	if !calib.Calibrated() {
		t.Fatal("expected calibrated image")
	}
	if math.Abs(calib.PixelSize-0.5) > 1e-9 {
		t.Errorf("PixelSize = %f, want 0.5", calib.PixelSize)
	}
	if calib.Unit != "micron" {
		t.Errorf("Unit = %q, want micron", calib.Unit)
	}
}

func TestReadTiffMetadataResolutionFallback(t *testing.T) {
	// No pixel_width in the description: pixel size derives from
	// 1/XResolution with the description unit.
	data := buildTiff(t, "ImageJ=1.53\nunit=micron", 4, 1)

	meta, err := readTiffMetadata(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("readTiffMetadata: %v", err)
	}
	calib := meta.Calibration()
	if math.Abs(calib.PixelSize-0.25) > 1e-9 {
		t.Errorf("PixelSize = %f, want 0.25", calib.PixelSize)
	}
}

func TestReadTiffMetadataRejectsNonTiff(t *testing.T) {
	if _, err := readTiffMetadata(bytes.NewReader([]byte("PNG\r\n not a tiff"))); err == nil {
		t.Error("expected error for non-TIFF input")
	}
}

func TestCalibrationUncalibratedWithoutUnit(t *testing.T) {
	meta := NewTiffMetadata()
	meta.XResolution = 4
	// Resolution without a unit name is not a usable calibration.
	if meta.Calibration().Calibrated() {
		t.Error("expected uncalibrated result without a unit")
	}
}
