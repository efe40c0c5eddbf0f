package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes one row per combination in grid order.
func WriteCSV(w io.Writer, s *Summary) error {
	cw := csv.NewWriter(w)
	header := []string{
		"combo_index", "radius", "min_samples", "subsampling_factor",
		"percent_correct", "precision", "recall", "f1", "iou",
		"mean_foreground", "processing_time_us",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, res := range s.Results {
		row := []string{
			strconv.Itoa(res.Index),
			strconv.Itoa(res.Radius),
			strconv.Itoa(res.MinSamples),
			strconv.Itoa(res.SubsamplingFactor),
			fmt.Sprintf("%.4f", res.PercentCorrect),
			fmt.Sprintf("%.6f", res.Precision),
			fmt.Sprintf("%.6f", res.Recall),
			fmt.Sprintf("%.6f", res.F1),
			fmt.Sprintf("%.6f", res.IoU),
			fmt.Sprintf("%.6f", res.MeanForeground),
			strconv.FormatInt(res.ProcessingTimeUs, 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", res.Index, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
