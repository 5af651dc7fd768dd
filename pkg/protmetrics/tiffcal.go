package protmetrics

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// TiffMetadata holds the calibration-relevant fields of a TIFF IFD plus
// the parsed ImageDescription key-value pairs (ImageJ convention:
// "key=value" lines).
type TiffMetadata struct {
	XResolution    float64 // pixels per resolution unit
	ResolutionUnit int     // 1 = none, 2 = inch, 3 = centimeter
	Description    map[string]string
}

// NewTiffMetadata creates an empty TiffMetadata.
func NewTiffMetadata() *TiffMetadata {
	return &TiffMetadata{Description: make(map[string]string)}
}

func (m *TiffMetadata) GetString(key string) string {
	return m.Description[strings.ToLower(key)]
}

func (m *TiffMetadata) GetDouble(key string) (float64, bool) {
	v, ok := m.Description[strings.ToLower(key)]
	if !ok {
		return 0, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return d, true
}

// Unit returns the calibration unit name from the ImageJ description,
// falling back to the TIFF ResolutionUnit field.
func (m *TiffMetadata) Unit() string {
	if u := m.GetString("unit"); u != "" {
		return u
	}
	switch m.ResolutionUnit {
	case 2:
		return "inch"
	case 3:
		return "cm"
	default:
		return ""
	}
}

// Calibration derives the spatial calibration. ImageJ stores pixel
// width as 1/XResolution with the unit named in the description; a
// missing or degenerate resolution yields the uncalibrated zero value.
func (m *TiffMetadata) Calibration() Calibration {
	if pw, ok := m.GetDouble("pixel_width"); ok && pw > 0 {
		return Calibration{PixelSize: pw, Unit: m.Unit()}
	}
	if m.XResolution > 0 && m.Unit() != "" {
		return Calibration{PixelSize: 1.0 / m.XResolution, Unit: m.Unit()}
	}
	return Calibration{}
}

const (
	tagImageDescription = 270
	tagXResolution      = 282
	tagResolutionUnit   = 296
)

// ReadTiffMetadata parses the first IFD of a TIFF file for calibration
// metadata. Pixel data is left to the image decoder.
func ReadTiffMetadata(filePath string) (*TiffMetadata, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening TIFF file: %w", err)
	}
	defer f.Close()
	return readTiffMetadata(f)
}

func readTiffMetadata(r io.ReadSeeker) (*TiffMetadata, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading TIFF header: %w", err)
	}

	var order binary.ByteOrder
	switch {
	case bytes.Equal(header[:2], []byte("II")):
		order = binary.LittleEndian
	case bytes.Equal(header[:2], []byte("MM")):
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("not a TIFF file: bad byte-order mark %q", header[:2])
	}
	if order.Uint16(header[2:4]) != 42 {
		return nil, fmt.Errorf("not a TIFF file: bad magic %d", order.Uint16(header[2:4]))
	}

	ifdOffset := int64(order.Uint32(header[4:8]))
	if _, err := r.Seek(ifdOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to IFD: %w", err)
	}

	countBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, countBuf); err != nil {
		return nil, fmt.Errorf("reading IFD entry count: %w", err)
	}
	numEntries := int(order.Uint16(countBuf))

	entries := make([]byte, numEntries*12)
	if _, err := io.ReadFull(r, entries); err != nil {
		return nil, fmt.Errorf("reading IFD entries: %w", err)
	}

	meta := NewTiffMetadata()
	for i := 0; i < numEntries; i++ {
		entry := entries[i*12 : i*12+12]
		tag := order.Uint16(entry[0:2])
		fieldType := order.Uint16(entry[2:4])
		count := order.Uint32(entry[4:8])

		switch tag {
		case tagResolutionUnit:
			if fieldType == 3 { // SHORT, value inline
				meta.ResolutionUnit = int(order.Uint16(entry[8:10]))
			}
		case tagXResolution:
			if fieldType == 5 && count >= 1 { // RATIONAL at offset
				num, den, err := readRational(r, order, int64(order.Uint32(entry[8:12])))
				if err != nil {
					return nil, err
				}
				if den != 0 {
					meta.XResolution = float64(num) / float64(den)
				}
			}
		case tagImageDescription:
			if fieldType == 2 && count > 1 { // ASCII
				desc, err := readASCII(r, order, entry[8:12], int(count))
				if err != nil {
					return nil, err
				}
				parseDescription(desc, meta.Description)
			}
		}
	}

	return meta, nil
}

func readRational(r io.ReadSeeker, order binary.ByteOrder, offset int64) (uint32, uint32, error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return 0, 0, fmt.Errorf("seeking to rational value: %w", err)
	}
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, 0, fmt.Errorf("reading rational value: %w", err)
	}
	return order.Uint32(buf[0:4]), order.Uint32(buf[4:8]), nil
}

func readASCII(r io.ReadSeeker, order binary.ByteOrder, valueField []byte, count int) (string, error) {
	if count <= 4 {
		return string(bytes.TrimRight(valueField[:count], "\x00")), nil
	}
	if _, err := r.Seek(int64(order.Uint32(valueField)), io.SeekStart); err != nil {
		return "", fmt.Errorf("seeking to description: %w", err)
	}
	buf := make([]byte, count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("reading description: %w", err)
	}
	return string(bytes.TrimRight(buf, "\x00")), nil
}

func parseDescription(desc string, into map[string]string) {
	for _, line := range strings.Split(desc, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key != "" {
			into[key] = strings.TrimSpace(value)
		}
	}
}
