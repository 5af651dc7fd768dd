package protmetrics

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/tiff"
)

// RenderOverlay composes the QC visual: the original channel in gray
// with the pruned skeleton colorized red and cell-body boundaries in
// yellow, annotated with the per-image quantification.
func RenderOverlay(original, skeleton gocv.Mat, result *PipelineResult) (*image.RGBA, error) {
	width, height := original.Cols(), original.Rows()
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	srcData, err := original.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("overlay source data: %w", err)
	}
	skelData, err := skeleton.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("overlay skeleton data: %w", err)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			v := srcData[i]
			if skelData[i] != 0 {
				img.Set(x, y, color.RGBA{R: 255, G: 40, B: 40, A: 255})
			} else {
				img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
			}
		}
	}

	boundary := color.RGBA{R: 255, G: 220, B: 60, A: 255}
	for _, region := range result.Cells.Regions {
		for _, p := range region.Contour {
			img.Set(p.X, p.Y, boundary)
		}
	}

	textColor := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	row := result.Row
	unit := row.Unit
	if unit == "" {
		unit = "px"
	}
	drawText(img, basicfont.Face7x13, row.ImageID, 8, 16, textColor)
	drawText(img, basicfont.Face7x13, fmt.Sprintf("cells: %d", row.CellCount), 8, 32, textColor)
	drawText(img, basicfont.Face7x13, fmt.Sprintf("total: %.1f %s", row.TotalLength, unit), 8, 48, textColor)
	drawText(img, basicfont.Face7x13, fmt.Sprintf("per cell: %.1f %s", row.NormalizedLength, unit), 8, 64, textColor)

	return img, nil
}

// WriteOverlay renders the overlay and writes it as a TIFF file.
func WriteOverlay(path string, original, skeleton gocv.Mat, result *PipelineResult) error {
	img, err := RenderOverlay(original, skeleton, result)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create overlay file: %w", err)
	}
	defer f.Close()

	return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// drawText draws a string at (x, y) using the given font face.
func drawText(img *image.RGBA, face font.Face, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
