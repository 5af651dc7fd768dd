package protmetrics

import (
	"fmt"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// SourceImage is one decoded input file: raw pixel data plus spatial
// calibration. Immutable once opened; channel selection produces views.
type SourceImage struct {
	Path     string
	Title    string
	Width    int
	Height   int
	Channels int
	Calib    Calibration

	mat gocv.Mat
}

// Close releases the underlying pixel buffer.
func (s *SourceImage) Close() {
	if !s.mat.Empty() {
		s.mat.Close()
	}
}

// OpenImage decodes an input file into a SourceImage. TIFF files also
// yield spatial calibration from their IFD metadata; other formats are
// uncalibrated. Container formats OpenCV cannot parse (e.g. raw .nd2)
// surface as an open failure which the batch driver skips and logs.
func OpenImage(path string) (*SourceImage, error) {
	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	if mat.Empty() {
		return nil, fmt.Errorf("decoding %s: unsupported or corrupt image", path)
	}

	src := &SourceImage{
		Path:     path,
		Title:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Width:    mat.Cols(),
		Height:   mat.Rows(),
		Channels: mat.Channels(),
		mat:      mat,
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".tif" || ext == ".tiff" {
		if meta, err := ReadTiffMetadata(path); err == nil {
			src.Calib = meta.Calibration()
		}
	}

	return src, nil
}

// Channel extracts the 1-based channel as a fresh single-channel Mat
// named C<index>-<title>. A single-channel image passes through
// unchanged (as a clone) regardless of the requested index.
func (s *SourceImage) Channel(index int) (gocv.Mat, string, error) {
	if s.Channels == 1 {
		return s.mat.Clone(), s.Title, nil
	}
	if index < 1 || index > s.Channels {
		return gocv.Mat{}, "", fmt.Errorf("channel %d out of range: image has %d channels", index, s.Channels)
	}

	channels := gocv.Split(s.mat)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	name := fmt.Sprintf("C%d-%s", index, s.Title)
	return channels[index-1].Clone(), name, nil
}
