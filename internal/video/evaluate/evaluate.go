// Package evaluate compares segmentation masks against ground truth and
// against each other. The single-number summary used in reports is the
// percentage of correctly classified pixels on the reference frame; the
// full confusion counts support precision/recall-style analysis on top.
package evaluate

import (
	"fmt"

	"github.com/banshee-data/motion.report/internal/video"
)

// Confusion tallies pixelwise agreement between a predicted mask and a
// ground-truth mask. Foreground is the positive class.
type Confusion struct {
	TruePositive  int
	TrueNegative  int
	FalsePositive int
	FalseNegative int
}

// Compare tallies the confusion counts of predicted against truth. The masks
// must share exact dimensions.
func Compare(predicted, truth *video.Mask) (Confusion, error) {
	var c Confusion
	if predicted == nil || truth == nil {
		return c, fmt.Errorf("compare masks: nil mask")
	}
	if predicted.Width != truth.Width || predicted.Height != truth.Height {
		return c, fmt.Errorf("compare masks: %dx%d vs %dx%d: %w",
			predicted.Width, predicted.Height, truth.Width, truth.Height, video.ErrDimensionMismatch)
	}

	for i, p := range predicted.Pix {
		fg := p == video.MaskForeground
		truthFg := truth.Pix[i] == video.MaskForeground
		switch {
		case fg && truthFg:
			c.TruePositive++
		case fg && !truthFg:
			c.FalsePositive++
		case !fg && truthFg:
			c.FalseNegative++
		default:
			c.TrueNegative++
		}
	}
	return c, nil
}

// Total returns the number of compared pixels.
func (c Confusion) Total() int {
	return c.TruePositive + c.TrueNegative + c.FalsePositive + c.FalseNegative
}

// Correct returns the number of pixels classified identically in both masks.
func (c Confusion) Correct() int {
	return c.TruePositive + c.TrueNegative
}

// PercentCorrect returns the percentage of correctly classified pixels,
// 0 to 100.
func (c Confusion) PercentCorrect() float64 {
	if c.Total() == 0 {
		return 0
	}
	return 100 * float64(c.Correct()) / float64(c.Total())
}

// Accuracy returns the fraction of correctly classified pixels, 0 to 1.
func (c Confusion) Accuracy() float64 {
	if c.Total() == 0 {
		return 0
	}
	return float64(c.Correct()) / float64(c.Total())
}

// Precision returns TP / (TP + FP), or 0 when nothing was predicted
// foreground.
func (c Confusion) Precision() float64 {
	if c.TruePositive+c.FalsePositive == 0 {
		return 0
	}
	return float64(c.TruePositive) / float64(c.TruePositive+c.FalsePositive)
}

// Recall returns TP / (TP + FN), or 0 when the truth holds no foreground.
func (c Confusion) Recall() float64 {
	if c.TruePositive+c.FalseNegative == 0 {
		return 0
	}
	return float64(c.TruePositive) / float64(c.TruePositive+c.FalseNegative)
}

// F1 returns the harmonic mean of precision and recall, or 0 when both
// are 0.
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// IoU returns the intersection-over-union of the foreground regions,
// TP / (TP + FP + FN), or 0 when both regions are empty.
func (c Confusion) IoU() float64 {
	denom := c.TruePositive + c.FalsePositive + c.FalseNegative
	if denom == 0 {
		return 0
	}
	return float64(c.TruePositive) / float64(denom)
}

// Metrics is the JSON/DB-ready projection of a confusion tally.
type Metrics struct {
	TruePositive   int     `json:"true_positive"`
	TrueNegative   int     `json:"true_negative"`
	FalsePositive  int     `json:"false_positive"`
	FalseNegative  int     `json:"false_negative"`
	PercentCorrect float64 `json:"percent_correct"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
	IoU            float64 `json:"iou"`
}

// Metrics expands the tally into its derived measures.
func (c Confusion) Metrics() Metrics {
	return Metrics{
		TruePositive:   c.TruePositive,
		TrueNegative:   c.TrueNegative,
		FalsePositive:  c.FalsePositive,
		FalseNegative:  c.FalseNegative,
		PercentCorrect: c.PercentCorrect(),
		Precision:      c.Precision(),
		Recall:         c.Recall(),
		F1:             c.F1(),
		IoU:            c.IoU(),
	}
}

// Agreement returns the fraction of pixels on which two masks agree,
// regardless of which is truth. Returns 0 when dimensions differ or either
// mask is empty. Useful for A/B comparison of two parameterizations.
func Agreement(a, b *video.Mask) float64 {
	if a == nil || b == nil || len(a.Pix) == 0 || len(b.Pix) == 0 {
		return 0
	}
	if a.Width != b.Width || a.Height != b.Height {
		return 0
	}
	agree := 0
	for i := range a.Pix {
		if a.Pix[i] == b.Pix[i] {
			agree++
		}
	}
	return float64(agree) / float64(len(a.Pix))
}
