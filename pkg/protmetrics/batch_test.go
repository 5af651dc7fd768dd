package protmetrics

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

func writeEmptyFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}
}

func TestMatchFilesDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	// Created deliberately out of alphabetical order; row order must be
	// independent of filesystem listing order.
	for _, name := range []string{"b.nd2", "c.nd2", "a.nd2", "notes.txt"} {
		writeEmptyFile(t, filepath.Join(dir, name))
	}

	b := &Batch{InputDir: dir, Suffix: ".nd2"}
	matches, err := b.matchFiles()
	if err != nil {
		t.Fatalf("matchFiles: %v", err)
	}

	want := []string{"a.nd2", "b.nd2", "c.nd2"}
	if len(matches) != len(want) {
		t.Fatalf("matched %d files, want %d: %v", len(matches), len(want), matches)
	}
	for i, w := range want {
		if filepath.Base(matches[i]) != w {
			t.Errorf("matches[%d] = %s, want %s", i, filepath.Base(matches[i]), w)
		}
	}
}

func TestMatchFilesRecursesDepthFirst(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "plate1")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeEmptyFile(t, filepath.Join(dir, "a.nd2"))
	writeEmptyFile(t, filepath.Join(dir, "z.nd2"))
	writeEmptyFile(t, filepath.Join(sub, "b.nd2"))

	b := &Batch{InputDir: dir, Suffix: ".nd2"}
	matches, err := b.matchFiles()
	if err != nil {
		t.Fatalf("matchFiles: %v", err)
	}

	// Lexical order at each level: a.nd2, then the plate1 subtree, then
	// z.nd2.
	want := []string{"a.nd2", "b.nd2", "z.nd2"}
	for i, w := range want {
		if filepath.Base(matches[i]) != w {
			t.Errorf("matches[%d] = %s, want %s", i, filepath.Base(matches[i]), w)
		}
	}
}

// writeCellImage persists a small synthetic field with one bright round
// body and a thin arm, decodable back through the normal open path.
func writeCellImage(t *testing.T, path string) {
	t.Helper()
	img := gocv.NewMatWithSize(160, 240, gocv.MatTypeCV8UC1)
	defer img.Close()
	bright := color.RGBA{R: 200, G: 200, B: 200, A: 255}
	gocv.Circle(&img, image.Pt(60, 80), 8, bright, -1)
	gocv.Rectangle(&img, image.Rect(68, 79, 160, 81), bright, -1)
	if ok := gocv.IMWrite(path, img); !ok {
		t.Fatalf("writing fixture image %s", path)
	}
}

func TestRunSkipsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	writeCellImage(t, filepath.Join(dir, "a.tif"))
	// Same suffix, not an image: must be skipped, not abort the batch.
	if err := os.WriteFile(filepath.Join(dir, "b.tif"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeCellImage(t, filepath.Join(dir, "c.tif"))

	b := &Batch{
		InputDir:  dir,
		OutputDir: t.TempDir(),
		Suffix:    ".tif",
		Params:    NewPipelineParams(),
		Log:       zerolog.Nop(),
	}
	report, err := b.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Matched != 3 || report.Processed != 2 || report.Skipped != 1 {
		t.Fatalf("matched=%d processed=%d skipped=%d, want 3/2/1",
			report.Matched, report.Processed, report.Skipped)
	}

	records := readCSV(t, b.SummaryPath())
	if len(records) != 3 {
		t.Fatalf("summary has %d records, want header + 2 rows", len(records))
	}
	if records[1][1] != "a" || records[2][1] != "c" {
		t.Errorf("row order = %q, %q; want a then c", records[1][1], records[2][1])
	}
	// The index column keeps the match index, so the skipped file leaves
	// a gap instead of renumbering the later row.
	if records[1][0] != "0" || records[2][0] != "2" {
		t.Errorf("indices = %q, %q; want 0 and 2", records[1][0], records[2][0])
	}
}

func TestRunAbortsWithoutCellRegions(t *testing.T) {
	dir := t.TempDir()
	dark := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8UC1)
	ok := gocv.IMWrite(filepath.Join(dir, "dark.tif"), dark)
	dark.Close()
	if !ok {
		t.Fatal("writing fixture image")
	}

	params := NewPipelineParams()
	params.UseCellMasking = true
	b := &Batch{
		InputDir:  dir,
		OutputDir: t.TempDir(),
		Suffix:    ".tif",
		Params:    params,
		Log:       zerolog.Nop(),
	}
	if _, err := b.Run(); !errors.Is(err, ErrNoCellRegions) {
		t.Fatalf("err = %v, want ErrNoCellRegions", err)
	}
}

func TestMatchFilesSuffixCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeEmptyFile(t, filepath.Join(dir, "upper.ND2"))

	b := &Batch{InputDir: dir, Suffix: ".nd2"}
	matches, err := b.matchFiles()
	if err != nil {
		t.Fatalf("matchFiles: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("matched %d files, want 1", len(matches))
	}
}
