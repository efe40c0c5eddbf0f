// Package sweep runs grid searches over background model parameters. Each
// combination is scored with an isolated pipeline run against a ground-truth
// sequence, and results are collected for CSV output, plots and reports.
package sweep

import (
	"fmt"

	"github.com/banshee-data/motion.report/internal/video"
)

// Request defines the parameter grid for a sweep.
type Request struct {
	// Radii are the match radius values to try. Required.
	Radii []int `json:"radii"`
	// MinSamples are the close-sample thresholds to try. Required.
	MinSamples []int `json:"min_samples"`
	// SubsamplingFactors are optional update-rate values to try; empty keeps
	// the base value from Params for every combination.
	SubsamplingFactors []int `json:"subsampling_factors,omitempty"`

	// Params supplies the fixed parameters (training frames, and the
	// subsampling factor when SubsamplingFactors is empty). A zero value
	// falls back to the model defaults.
	Params video.BackgroundParams `json:"params"`

	// Seed is the base RNG seed; each combination derives its own seed from
	// it so runs are reproducible and independent.
	Seed int64 `json:"seed"`

	// Workers bounds how many combinations run concurrently. Values below 1
	// run the sweep serially.
	Workers int `json:"workers"`
}

// Combo identifies one point of the parameter grid.
type Combo struct {
	Index             int `json:"index"`
	Radius            int `json:"radius"`
	MinSamples        int `json:"min_samples"`
	SubsamplingFactor int `json:"subsampling_factor"`
}

// ComboResult holds the scores for one parameter combination.
type ComboResult struct {
	Combo

	PercentCorrect   float64 `json:"percent_correct"`
	Precision        float64 `json:"precision"`
	Recall           float64 `json:"recall"`
	F1               float64 `json:"f1"`
	IoU              float64 `json:"iou"`
	MeanForeground   float64 `json:"mean_foreground"`
	ProcessingTimeUs int64   `json:"processing_time_us"`
}

// Summary is the outcome of a completed sweep.
type Summary struct {
	SweepID     string        `json:"sweep_id"`
	FramesTotal int           `json:"frames_total"`
	Results     []ComboResult `json:"results"`
	Best        ComboResult   `json:"best"`

	// Aggregate statistics over all combinations.
	MeanPercentCorrect   float64 `json:"mean_percent_correct"`
	StddevPercentCorrect float64 `json:"stddev_percent_correct"`
	MedianPercentCorrect float64 `json:"median_percent_correct"`
	MeanF1               float64 `json:"mean_f1"`
	StddevF1             float64 `json:"stddev_f1"`
}

// normalize fills request defaults and validates the grid. It returns the
// effective base parameters.
func (req *Request) normalize() (video.BackgroundParams, error) {
	if len(req.Radii) == 0 {
		return video.BackgroundParams{}, fmt.Errorf("no radius values to sweep")
	}
	if len(req.MinSamples) == 0 {
		return video.BackgroundParams{}, fmt.Errorf("no min-samples values to sweep")
	}

	base := req.Params
	if base == (video.BackgroundParams{}) {
		base = video.DefaultBackgroundParams()
	}
	if req.Workers < 1 {
		req.Workers = 1
	}

	// Validate every grid point up front so a bad value fails fast instead
	// of mid-sweep.
	for _, c := range expandGrid(*req, base) {
		p := comboParams(base, c)
		if err := p.Validate(); err != nil {
			return video.BackgroundParams{}, fmt.Errorf("combination radius=%d min_samples=%d subsampling=%d: %w",
				c.Radius, c.MinSamples, c.SubsamplingFactor, err)
		}
	}
	return base, nil
}

// expandGrid enumerates the grid radius-major, then min samples, then
// subsampling factor. Combination indexes follow that order.
func expandGrid(req Request, base video.BackgroundParams) []Combo {
	subs := req.SubsamplingFactors
	if len(subs) == 0 {
		subs = []int{base.SubsamplingFactor}
	}

	combos := make([]Combo, 0, len(req.Radii)*len(req.MinSamples)*len(subs))
	idx := 0
	for _, radius := range req.Radii {
		for _, minSamples := range req.MinSamples {
			for _, sub := range subs {
				combos = append(combos, Combo{
					Index:             idx,
					Radius:            radius,
					MinSamples:        minSamples,
					SubsamplingFactor: sub,
				})
				idx++
			}
		}
	}
	return combos
}

// comboParams applies one grid point to the base parameters.
func comboParams(base video.BackgroundParams, c Combo) video.BackgroundParams {
	p := base
	p.Radius = c.Radius
	p.MinSamples = c.MinSamples
	p.SubsamplingFactor = c.SubsamplingFactor
	return p
}

// betterThan ranks results by percent correct, breaking ties with F1.
func betterThan(a, b ComboResult) bool {
	if a.PercentCorrect != b.PercentCorrect {
		return a.PercentCorrect > b.PercentCorrect
	}
	return a.F1 > b.F1
}
