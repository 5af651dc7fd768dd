package protmetrics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Batch drives the folder walk and owns the cumulative summary table.
// One image's failure is logged and skipped; configuration errors
// (missing cell regions, invalid paths) abort the whole batch.
type Batch struct {
	InputDir  string
	OutputDir string
	Suffix    string
	Params    *PipelineParams
	Log       zerolog.Logger

	rows []BatchSummaryRow
}

// BatchReport summarizes a completed batch run.
type BatchReport struct {
	Matched   int
	Processed int
	Skipped   int
	Rows      []BatchSummaryRow
}

// SummaryPath returns the location of the cumulative batch table.
func (b *Batch) SummaryPath() string {
	return filepath.Join(b.OutputDir, "batch_summary.csv")
}

// Run walks the input tree depth-first in lexical order (row order must
// be deterministic and reproducible: each matched file's zero-based
// match index is its table row position), processes every file matching
// the suffix, and rewrites the batch summary after each image so a
// mid-batch crash leaves a valid table for the images already done.
func (b *Batch) Run() (*BatchReport, error) {
	if b.InputDir == "" {
		return nil, errors.New("input directory not set")
	}
	if info, err := os.Stat(b.InputDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("input directory %s is not readable", b.InputDir)
	}
	if err := os.MkdirAll(b.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	matches, err := b.matchFiles()
	if err != nil {
		return nil, err
	}
	b.Log.Info().Int("files", len(matches)).Str("suffix", b.Suffix).Msg("batch started")

	report := &BatchReport{Matched: len(matches)}
	b.rows = b.rows[:0]

	for index, path := range matches {
		log := b.Log.With().Int("index", index).Str("file", filepath.Base(path)).Logger()
		log.Info().Msg("processing")

		result, err := ProcessImage(path, b.Params, b.OutputDir, log)
		if err != nil {
			if errors.Is(err, ErrNoCellRegions) {
				// Operator-correctable prerequisite; halting beats
				// proceeding with an empty mask.
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			report.Skipped++
			log.Error().Err(err).Msg("image skipped")
			continue
		}

		row := result.Row
		row.Index = index
		b.rows = append(b.rows, row)
		report.Processed++

		if err := WriteBatchSummaryCSV(b.SummaryPath(), b.rows); err != nil {
			return nil, err
		}

		log.Info().
			Int("cells", row.CellCount).
			Float64("total_length", row.TotalLength).
			Float64("normalized_length", row.NormalizedLength).
			Int("pruned_components", result.Metrics.PrunedComponents).
			Msg("done")
	}

	report.Rows = append(report.Rows, b.rows...)
	b.Log.Info().
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Msg("batch complete")
	return report, nil
}

// matchFiles collects suffix-matched files. filepath.WalkDir visits
// entries in lexical order at every level, which pins the table row
// order independent of filesystem listing order.
func (b *Batch) matchFiles() ([]string, error) {
	suffix := strings.ToLower(b.Suffix)
	var matches []string
	err := filepath.WalkDir(b.InputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), suffix) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", b.InputDir, err)
	}
	return matches, nil
}
