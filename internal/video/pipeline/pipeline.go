package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/banshee-data/motion.report/internal/video"
	"github.com/banshee-data/motion.report/internal/video/evaluate"
	"github.com/banshee-data/motion.report/internal/video/storage/sqlite"
)

// FrameSource enumerates and decodes an ordered frame sequence.
type FrameSource interface {
	// List returns the sequence's frame paths in frame order.
	List() ([]string, error)
	// Decode loads one frame.
	Decode(path string) (*video.Frame, error)
}

// MaskSink persists segmentation masks by frame index.
type MaskSink interface {
	WriteMask(index int, mask *video.Mask) error
}

// GroundTruth loads a reference mask for evaluation against the final frame.
type GroundTruth interface {
	Load() (*video.Mask, error)
	Path() string
}

// RunRecorder persists run lifecycle records.
type RunRecorder interface {
	Insert(run *sqlite.Run) error
	UpdateProgress(runID string, framesSegmented int) error
	Complete(runID string, framesSegmented int, meanForeground float64) error
	Fail(runID string, cause error) error
}

// MetricsRecorder persists per-frame metrics.
type MetricsRecorder interface {
	Insert(runID string, m video.MaskMetrics) error
}

// EvaluationRecorder persists ground truth comparison results.
type EvaluationRecorder interface {
	Insert(ev *sqlite.Evaluation) error
}

var (
	_ RunRecorder        = (*sqlite.RunStore)(nil)
	_ MetricsRecorder    = (*sqlite.FrameMetricsStore)(nil)
	_ EvaluationRecorder = (*sqlite.EvaluationStore)(nil)
)

// isNilInterface checks if an interface value is nil or contains a nil pointer.
// This handles the Go interface nil pitfall where interface{} != nil but the
// underlying value is nil.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Config holds the dependencies and parameters for a sequence run.
type Config struct {
	// Frames supplies the input sequence. Required.
	Frames FrameSource

	// Masks receives one mask per segmented frame. Optional.
	Masks MaskSink

	// Truth, when set, is compared against the final frame's mask.
	Truth GroundTruth

	// StreamID identifies the stream for the manager registry and run
	// records. Defaults to "default".
	StreamID string

	// Params configures the background model. The zero value selects
	// DefaultBackgroundParams.
	Params video.BackgroundParams

	// Seed seeds the model's random source. Zero picks a time-based seed;
	// the seed actually used is recorded in the run record either way.
	Seed int64

	// ClassifyWorkers caps the classification worker count. Zero keeps the
	// model's per-CPU default.
	ClassifyWorkers int

	// Runs, FrameMetrics, Evaluations and Snapshots are optional
	// persistence sinks. Typically *sqlite.RunStore, *sqlite.FrameMetricsStore,
	// *sqlite.EvaluationStore and *sqlite.SnapshotStore.
	Runs         RunRecorder
	FrameMetrics MetricsRecorder
	Evaluations  EvaluationRecorder
	Snapshots    video.SnapshotStore

	// PersistInterval is the number of segmented frames between interval
	// snapshots. Zero disables interval persistence; post-train and final
	// snapshots are still taken when Snapshots is set.
	PersistInterval int

	// InputDir and OutputDir annotate the run record. The frame source and
	// mask sink own the actual paths.
	InputDir  string
	OutputDir string
}

// Result summarizes a completed sequence run.
type Result struct {
	RunID           string
	StreamID        string
	Width           int
	Height          int
	Channels        int
	Seed            int64
	FramesTotal     int
	FramesSegmented int
	MeanForeground  float64
	Elapsed         time.Duration

	// Evaluation holds the final-frame ground truth comparison, or nil when
	// no ground truth was configured.
	Evaluation *evaluate.Metrics
}

// SequencePipeline trains a background model on the leading frames of a
// sequence and then segments every frame of the sequence in order, including
// the training prefix.
type SequencePipeline struct {
	cfg Config
	mgr *video.Manager
}

// New validates cfg, applies defaults and returns a ready pipeline.
func New(cfg Config) (*SequencePipeline, error) {
	if isNilInterface(cfg.Frames) {
		return nil, fmt.Errorf("pipeline: frame source is required")
	}
	if cfg.StreamID == "" {
		cfg.StreamID = "default"
	}
	if cfg.Params == (video.BackgroundParams{}) {
		cfg.Params = video.DefaultBackgroundParams()
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	// Normalize typed-nil optionals so later nil checks behave.
	if isNilInterface(cfg.Masks) {
		cfg.Masks = nil
	}
	if isNilInterface(cfg.Truth) {
		cfg.Truth = nil
	}
	if isNilInterface(cfg.Runs) {
		cfg.Runs = nil
	}
	if isNilInterface(cfg.FrameMetrics) {
		cfg.FrameMetrics = nil
	}
	if isNilInterface(cfg.Evaluations) {
		cfg.Evaluations = nil
	}
	if isNilInterface(cfg.Snapshots) {
		cfg.Snapshots = nil
	}

	return &SequencePipeline{cfg: cfg}, nil
}

// Manager returns the stream manager once Run has created it, or nil.
func (p *SequencePipeline) Manager() *video.Manager { return p.mgr }

// progressInterval is the frame cadence for run progress updates.
const progressInterval = 25

// Run executes the sequence: list, train, then segment every frame. The
// context is checked between frames; on cancellation the model state is
// snapshotted and the run record marked failed before returning.
func (p *SequencePipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.cfg
	started := time.Now()

	paths, err := cfg.Frames.List()
	if err != nil {
		return nil, fmt.Errorf("list frame sequence: %w", err)
	}
	trainCount := cfg.Params.TrainingFrames
	if len(paths) < trainCount {
		return nil, fmt.Errorf("sequence holds %d frames, need %d for training: %w",
			len(paths), trainCount, video.ErrInsufficientTrainingData)
	}

	// Decode the whole training prefix up front so Train can validate every
	// frame before touching the sample stores.
	trainFrames := make([]*video.Frame, trainCount)
	for i := 0; i < trainCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := cfg.Frames.Decode(paths[i])
		if err != nil {
			return nil, fmt.Errorf("decode training frame %d (%s): %w", i, paths[i], err)
		}
		trainFrames[i] = f
	}
	first := trainFrames[0]

	model, err := video.NewBackgroundModel(
		first.Width, first.Height, first.Channels, cfg.Params, video.NewSeededSource(cfg.Seed))
	if err != nil {
		return nil, err
	}
	if cfg.ClassifyWorkers > 0 {
		model.SetClassifyWorkers(cfg.ClassifyWorkers)
	}

	mgr := video.NewManager(cfg.StreamID, model, cfg.Snapshots)
	p.mgr = mgr

	var runID string
	if cfg.Runs != nil {
		paramsJSON, err := json.Marshal(cfg.Params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		run := &sqlite.Run{
			StreamID:    cfg.StreamID,
			InputDir:    cfg.InputDir,
			OutputDir:   cfg.OutputDir,
			Width:       first.Width,
			Height:      first.Height,
			Channels:    first.Channels,
			ParamsJSON:  paramsJSON,
			Seed:        cfg.Seed,
			FramesTotal: len(paths),
		}
		if err := cfg.Runs.Insert(run); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		runID = run.RunID
		mgr.RunID = runID
	}

	fail := func(cause error) (*Result, error) {
		if cfg.Runs != nil && runID != "" {
			if ferr := cfg.Runs.Fail(runID, cause); ferr != nil {
				opsf("failed to mark run %s failed: %v", runID, ferr)
			}
		}
		return nil, cause
	}

	if err := model.Train(trainFrames); err != nil {
		return fail(fmt.Errorf("train model: %w", err))
	}
	opsf("stream %s trained: %dx%dx%d, %d training frames, seed %d",
		cfg.StreamID, first.Width, first.Height, first.Channels, trainCount, cfg.Seed)
	p.persist("post_train")

	// Segment every frame of the sequence, training prefix included.
	var (
		fgSum     float64
		segmented int
		lastMask  *video.Mask
	)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			p.persist("interrupted")
			return fail(fmt.Errorf("run interrupted after %d of %d frames: %w",
				segmented, len(paths), err))
		}

		frame, err := cfg.Frames.Decode(path)
		if err != nil {
			return fail(fmt.Errorf("decode frame %d (%s): %w", i, path, err))
		}

		frameStart := time.Now()
		mask, err := model.Segment(frame)
		if err != nil {
			return fail(fmt.Errorf("segment frame %d: %w", i, err))
		}
		elapsedUs := time.Since(frameStart).Microseconds()

		metrics := video.ComputeMaskMetrics(i, mask, elapsedUs)
		mgr.RecordMetrics(metrics)
		if cfg.FrameMetrics != nil && runID != "" {
			if err := cfg.FrameMetrics.Insert(runID, metrics); err != nil {
				opsf("failed to store metrics for frame %d: %v", i, err)
			}
		}
		if cfg.Masks != nil {
			if err := cfg.Masks.WriteMask(i, mask); err != nil {
				return fail(fmt.Errorf("write mask %d: %w", i, err))
			}
		}

		fgSum += metrics.ForegroundFraction
		segmented++
		lastMask = mask
		tracef("frame %d: %d/%d foreground (%.2f%%) in %dµs",
			i, metrics.ForegroundPixels, metrics.TotalPixels,
			metrics.ForegroundFraction*100, elapsedUs)

		if cfg.PersistInterval > 0 && segmented%cfg.PersistInterval == 0 {
			p.persist("interval")
		}
		if cfg.Runs != nil && runID != "" && segmented%progressInterval == 0 {
			if err := cfg.Runs.UpdateProgress(runID, segmented); err != nil {
				opsf("failed to update run progress: %v", err)
			}
		}
	}

	meanFg := 0.0
	if segmented > 0 {
		meanFg = fgSum / float64(segmented)
	}
	p.persist("final")

	result := &Result{
		RunID:           runID,
		StreamID:        cfg.StreamID,
		Width:           first.Width,
		Height:          first.Height,
		Channels:        first.Channels,
		Seed:            cfg.Seed,
		FramesTotal:     len(paths),
		FramesSegmented: segmented,
		MeanForeground:  meanFg,
	}

	if cfg.Truth != nil && lastMask != nil {
		truth, err := cfg.Truth.Load()
		if err != nil {
			return fail(fmt.Errorf("load ground truth %s: %w", cfg.Truth.Path(), err))
		}
		conf, err := evaluate.Compare(lastMask, truth)
		if err != nil {
			return fail(fmt.Errorf("compare against ground truth: %w", err))
		}
		m := conf.Metrics()
		result.Evaluation = &m
		diagf("ground truth %s: %.2f%% correct (precision %.3f, recall %.3f, F1 %.3f)",
			cfg.Truth.Path(), m.PercentCorrect, m.Precision, m.Recall, m.F1)

		if cfg.Evaluations != nil && runID != "" {
			ev := &sqlite.Evaluation{
				Metrics:         m,
				RunID:           runID,
				GroundTruthPath: cfg.Truth.Path(),
				FrameIndex:      len(paths) - 1,
			}
			if err := cfg.Evaluations.Insert(ev); err != nil {
				opsf("failed to store evaluation: %v", err)
			}
		}
	}

	if cfg.Runs != nil && runID != "" {
		if err := cfg.Runs.Complete(runID, segmented, meanFg); err != nil {
			opsf("failed to complete run %s: %v", runID, err)
		}
	}

	result.Elapsed = time.Since(started)
	diagf("run %s complete: %d frames in %s, mean foreground %.2f%%",
		cfg.StreamID, segmented, result.Elapsed.Round(time.Millisecond), meanFg*100)
	return result, nil
}

// persist snapshots the model through the manager when a snapshot store is
// wired; persistence failures are logged, never fatal.
func (p *SequencePipeline) persist(reason string) {
	if p.mgr == nil || p.mgr.PersistCallback == nil {
		return
	}
	if err := p.mgr.PersistCallback(reason); err != nil {
		opsf("failed to persist model (%s): %v", reason, err)
	}
}
