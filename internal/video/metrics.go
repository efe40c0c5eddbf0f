package video

// MaskMetrics contains per-frame statistics about a segmentation result.
type MaskMetrics struct {
	FrameIndex         int     `json:"frame_index"`
	TotalPixels        int     `json:"total_pixels"`
	ForegroundPixels   int     `json:"foreground_pixels"`
	BackgroundPixels   int     `json:"background_pixels"`
	ForegroundFraction float64 `json:"foreground_fraction"`
	ProcessingTimeUs   int64   `json:"processing_time_us"`
}

// ComputeMaskMetrics computes metrics from a segmentation mask.
func ComputeMaskMetrics(frameIndex int, mask *Mask, processingTimeUs int64) MaskMetrics {
	if mask == nil {
		return MaskMetrics{FrameIndex: frameIndex, ProcessingTimeUs: processingTimeUs}
	}
	total := len(mask.Pix)
	fg := mask.ForegroundPixels()
	bg := total - fg

	fraction := 0.0
	if total > 0 {
		fraction = float64(fg) / float64(total)
	}

	return MaskMetrics{
		FrameIndex:         frameIndex,
		TotalPixels:        total,
		ForegroundPixels:   fg,
		BackgroundPixels:   bg,
		ForegroundFraction: fraction,
		ProcessingTimeUs:   processingTimeUs,
	}
}
