package sweep

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/motion.report/internal/video"
	"github.com/banshee-data/motion.report/internal/video/pipeline"
	"github.com/banshee-data/motion.report/internal/video/storage/sqlite"
)

// SweepRecorder persists per-combination results as they finish. Implemented
// by storage/sqlite.SweepStore.
type SweepRecorder interface {
	Insert(res *sqlite.SweepResult) error
}

var _ SweepRecorder = (*sqlite.SweepStore)(nil)

// Runner executes sweep requests against a fixed sequence and ground truth.
// The frame source is shared across combinations; every combination gets its
// own model, manager and RNG.
type Runner struct {
	frames  pipeline.FrameSource
	truth   pipeline.GroundTruth
	results SweepRecorder
}

// NewRunner creates a sweep runner. frames and truth are required; results
// is optional and receives one record per finished combination.
func NewRunner(frames pipeline.FrameSource, truth pipeline.GroundTruth, results SweepRecorder) (*Runner, error) {
	if frames == nil {
		return nil, fmt.Errorf("sweep requires a frame source")
	}
	if truth == nil {
		return nil, fmt.Errorf("sweep requires ground truth")
	}
	if results != nil {
		if v := reflect.ValueOf(results); v.Kind() == reflect.Ptr && v.IsNil() {
			results = nil
		}
	}
	return &Runner{frames: frames, truth: truth, results: results}, nil
}

// Run executes the full grid and returns the summarized results. The first
// combination failure cancels the remaining work and is returned as the
// sweep error.
func (r *Runner) Run(ctx context.Context, req Request) (*Summary, error) {
	base, err := req.normalize()
	if err != nil {
		return nil, err
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}

	combos := expandGrid(req, base)
	sweepID := uuid.New().String()
	started := time.Now()
	log.Printf("sweep %s: %d combinations, %d workers, base seed %d", sweepID, len(combos), req.Workers, req.Seed)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		firstErr    error
		framesTotal int
	)
	results := make([]ComboResult, len(combos))

	sem := semaphore.NewWeighted(int64(req.Workers))
	for _, combo := range combos {
		if err := sem.Acquire(runCtx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(c Combo) {
			defer wg.Done()
			defer sem.Release(1)

			res, frames, err := r.runCombo(runCtx, req, base, c, sweepID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("combination %d (radius=%d min_samples=%d subsampling=%d): %w",
						c.Index, c.Radius, c.MinSamples, c.SubsamplingFactor, err)
					cancel()
				}
				return
			}
			results[c.Index] = *res
			framesTotal = frames
		}(combo)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sweep canceled: %w", err)
	}

	s := summarize(sweepID, framesTotal, results)
	log.Printf("sweep %s: done in %s, best radius=%d min_samples=%d subsampling=%d (%.2f%% correct, f1=%.4f)",
		sweepID, time.Since(started).Round(time.Millisecond),
		s.Best.Radius, s.Best.MinSamples, s.Best.SubsamplingFactor, s.Best.PercentCorrect, s.Best.F1)
	return s, nil
}

// runCombo scores a single grid point with an isolated pipeline run.
func (r *Runner) runCombo(ctx context.Context, req Request, base video.BackgroundParams, c Combo, sweepID string) (*ComboResult, int, error) {
	streamID := fmt.Sprintf("sweep-%s-combo-%03d", sweepID[:8], c.Index)
	defer video.UnregisterManager(streamID)

	pl, err := pipeline.New(pipeline.Config{
		Frames:   r.frames,
		Truth:    r.truth,
		StreamID: streamID,
		Params:   comboParams(base, c),
		Seed:     req.Seed + int64(c.Index),
	})
	if err != nil {
		return nil, 0, err
	}

	runRes, err := pl.Run(ctx)
	if err != nil {
		return nil, 0, err
	}
	if runRes.Evaluation == nil {
		return nil, 0, fmt.Errorf("run produced no evaluation")
	}

	res := &ComboResult{
		Combo:            c,
		PercentCorrect:   runRes.Evaluation.PercentCorrect,
		Precision:        runRes.Evaluation.Precision,
		Recall:           runRes.Evaluation.Recall,
		F1:               runRes.Evaluation.F1,
		IoU:              runRes.Evaluation.IoU,
		MeanForeground:   runRes.MeanForeground,
		ProcessingTimeUs: runRes.Elapsed.Microseconds(),
	}

	if r.results != nil {
		rec := &sqlite.SweepResult{
			SweepID:           sweepID,
			ComboIndex:        c.Index,
			Radius:            c.Radius,
			MinSamples:        c.MinSamples,
			SubsamplingFactor: c.SubsamplingFactor,
			PercentCorrect:    res.PercentCorrect,
			F1:                res.F1,
			IoU:               res.IoU,
			MeanForeground:    res.MeanForeground,
			ProcessingTimeUs:  res.ProcessingTimeUs,
		}
		if err := r.results.Insert(rec); err != nil {
			log.Printf("sweep %s: persist combination %d failed: %v", sweepID, c.Index, err)
		}
	}
	return res, runRes.FramesTotal, nil
}

// summarize computes the best combination and aggregate statistics.
func summarize(sweepID string, framesTotal int, results []ComboResult) *Summary {
	pcs := make([]float64, len(results))
	f1s := make([]float64, len(results))
	best := results[0]
	for i, res := range results {
		pcs[i] = res.PercentCorrect
		f1s[i] = res.F1
		if betterThan(res, best) {
			best = res
		}
	}

	sorted := append([]float64(nil), pcs...)
	sort.Float64s(sorted)

	s := &Summary{
		SweepID:              sweepID,
		FramesTotal:          framesTotal,
		Results:              results,
		Best:                 best,
		MeanPercentCorrect:   stat.Mean(pcs, nil),
		MedianPercentCorrect: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		MeanF1:               stat.Mean(f1s, nil),
	}
	// Sample stddev needs at least two observations.
	if len(results) > 1 {
		s.StddevPercentCorrect = stat.StdDev(pcs, nil)
		s.StddevF1 = stat.StdDev(f1s, nil)
	}
	return s
}
