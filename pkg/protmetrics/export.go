package protmetrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// WriteSkeletonInfoCSV writes one row per connected skeleton component.
func WriteSkeletonInfoCSV(path string, result *SkeletonResult) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"component", "branches", "junctions", "endpoints", "avg_branch_length", "total_length"}); err != nil {
			return err
		}
		for _, row := range result.Summaries {
			record := []string{
				strconv.Itoa(row.ComponentID),
				strconv.Itoa(row.BranchCount),
				strconv.Itoa(row.JunctionCount),
				strconv.Itoa(row.EndpointCount),
				formatFloat(row.AverageBranchLength),
				formatFloat(row.TotalLength),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteBranchInfoCSV writes one row per skeleton branch in discovery
// order.
func WriteBranchInfoCSV(path string, result *SkeletonResult) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"component", "length", "endpoint_a", "endpoint_b"}); err != nil {
			return err
		}
		for _, b := range result.Branches {
			record := []string{
				strconv.Itoa(b.ComponentID),
				formatFloat(b.Length),
				b.EndpointA.String(),
				b.EndpointB.String(),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteBatchSummaryCSV rewrites the cumulative batch table in full, so
// a crash after image k leaves a valid table for images 1..k. The index
// column carries each row's traversal match index; skipped files leave
// gaps there rather than shifting later rows' indices.
func WriteBatchSummaryCSV(path string, rows []BatchSummaryRow) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"index", "image", "total_length", "cell_count", "normalized_length", "median_branch_length", "calibrated", "unit"}); err != nil {
			return err
		}
		for _, row := range rows {
			record := []string{
				strconv.Itoa(row.Index),
				row.ImageID,
				formatFloat(row.TotalLength),
				strconv.Itoa(row.CellCount),
				formatFloat(row.NormalizedLength),
				formatFloat(row.MedianBranchLength),
				strconv.FormatBool(row.Calibrated),
				row.Unit,
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCSV(path string, write func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := write(w); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
