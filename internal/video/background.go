package video

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Parameter bounds shared with the CLI layer. The radius bound is the
// diagonal of the 8-bit RGB cube: sqrt(3 * 255^2) rounded up.
const (
	MaxRadius            = 442
	MaxMinSamples        = 5000
	MaxSubsamplingFactor = 5000

	// maxClassifyWorkers caps the goroutines used for the classification pass.
	maxClassifyWorkers = 8
)

// BackgroundParams holds the four model scalars. They are fixed at model
// construction and invariant for the model's lifetime.
type BackgroundParams struct {
	// TrainingFrames is the capacity of every pixel's sample store and the
	// number of frames consumed during training.
	TrainingFrames int `json:"training_frames"`
	// Radius is the Euclidean color-space distance within which a stored
	// sample matches the current pixel value.
	Radius int `json:"radius"`
	// MinSamples is the number of matching stored samples required to
	// classify a pixel as background.
	MinSamples int `json:"min_samples"`
	// SubsamplingFactor is the reciprocal update probability: on average one
	// in SubsamplingFactor background classifications triggers a sample
	// replacement.
	SubsamplingFactor int `json:"subsampling_factor"`
}

// DefaultBackgroundParams returns the stock parameter set: 20 training
// frames, radius 20, 2 matches required, subsampling factor 16.
func DefaultBackgroundParams() BackgroundParams {
	return BackgroundParams{
		TrainingFrames:    20,
		Radius:            20,
		MinSamples:        2,
		SubsamplingFactor: 16,
	}
}

// Validate checks each scalar against its permitted range. The ranges are
// checked independently; combinations that never classify background (for
// example MinSamples above TrainingFrames) are a tuning choice, not an error.
func (p BackgroundParams) Validate() error {
	if p.TrainingFrames < 1 {
		return fmt.Errorf("training frames %d out of range [1, ...): %w", p.TrainingFrames, ErrInvalidParameter)
	}
	if p.Radius < 1 || p.Radius > MaxRadius {
		return fmt.Errorf("radius %d out of range [1, %d]: %w", p.Radius, MaxRadius, ErrInvalidParameter)
	}
	if p.MinSamples < 1 || p.MinSamples > MaxMinSamples {
		return fmt.Errorf("min samples %d out of range [1, %d]: %w", p.MinSamples, MaxMinSamples, ErrInvalidParameter)
	}
	if p.SubsamplingFactor < 1 || p.SubsamplingFactor > MaxSubsamplingFactor {
		return fmt.Errorf("subsampling factor %d out of range [1, %d]: %w", p.SubsamplingFactor, MaxSubsamplingFactor, ErrInvalidParameter)
	}
	return nil
}

// BackgroundModel is the per-pixel sample model for one video stream.
//
// Every pixel position owns a fixed-capacity store of previously observed
// color samples. The stores live in a single flat arena rather than one
// allocation per pixel; for pixel index p (= y*Width + x), slot s occupies
// samples[(p*TrainingFrames+s)*Channels : ...+Channels].
//
// mu guards the arena, the trained flag and the telemetry fields. Segment
// holds the write lock for the duration of a frame; status and heatmap
// readers take the read lock between frames.
type BackgroundModel struct {
	Width    int
	Height   int
	Channels int
	Params   BackgroundParams

	samples []uint8
	trained bool
	src     UniformSource

	// radiusSq is Params.Radius squared, precomputed for the classify loop.
	radiusSq int

	classifyWorkers int

	// Telemetry for monitoring. ForegroundCount and BackgroundCount reflect
	// the most recent frame; fgAccum accumulates per-pixel foreground counts
	// since training for heatmap aggregation.
	FramesSegmented      int64
	ForegroundCount      int64
	BackgroundCount      int64
	LastProcessingTimeUs int64
	TrainedAt            time.Time
	fgAccum              []uint32

	mu sync.RWMutex
}

// NewBackgroundModel allocates an untrained model for a width x height grid
// of channels-deep pixels. src supplies the random draws for the update
// phase; pass nil to use a wall-clock seeded source.
func NewBackgroundModel(width, height, channels int, params BackgroundParams, src UniformSource) (*BackgroundModel, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid dimensions %dx%d: %w", width, height, ErrInvalidParameter)
	}
	if channels != ChannelsGray && channels != ChannelsRGB {
		return nil, fmt.Errorf("channel count %d: %w", channels, ErrInvalidParameter)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = NewTimeSource()
	}
	m := &BackgroundModel{
		Width:           width,
		Height:          height,
		Channels:        channels,
		Params:          params,
		samples:         make([]uint8, width*height*params.TrainingFrames*channels),
		src:             src,
		radiusSq:        params.Radius * params.Radius,
		classifyWorkers: defaultClassifyWorkers(),
		fgAccum:         make([]uint32, width*height),
	}
	return m, nil
}

func defaultClassifyWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	if n > maxClassifyWorkers {
		n = maxClassifyWorkers
	}
	return n
}

// SetClassifyWorkers overrides the goroutine count for the classification
// pass. Values below 1 select single-threaded classification.
func (m *BackgroundModel) SetClassifyWorkers(n int) {
	if m == nil {
		return
	}
	if n < 1 {
		n = 1
	}
	m.mu.Lock()
	m.classifyWorkers = n
	m.mu.Unlock()
}

// Idx returns the pixel index of (x, y): y*Width + x.
func (m *BackgroundModel) Idx(x, y int) int { return y*m.Width + x }

// sampleOffset returns the arena offset of slot s for pixel index p.
func (m *BackgroundModel) sampleOffset(p, s int) int {
	return (p*m.Params.TrainingFrames + s) * m.Channels
}

// checkFrame validates a frame against the model's fixed geometry.
func (m *BackgroundModel) checkFrame(f *Frame) error {
	if f == nil {
		return fmt.Errorf("frame is nil: %w", ErrDimensionMismatch)
	}
	if f.Width != m.Width || f.Height != m.Height {
		return fmt.Errorf("frame %dx%d, model %dx%d: %w", f.Width, f.Height, m.Width, m.Height, ErrDimensionMismatch)
	}
	if f.Channels != m.Channels {
		return fmt.Errorf("frame has %d channels, model %d: %w", f.Channels, m.Channels, ErrDimensionMismatch)
	}
	if len(f.Pix) != f.Width*f.Height*f.Channels {
		return fmt.Errorf("frame buffer length %d short for %dx%dx%d: %w", len(f.Pix), f.Width, f.Height, f.Channels, ErrDimensionMismatch)
	}
	return nil
}

// Train populates every pixel's sample store from the first TrainingFrames
// entries of the given ordered sequence: slot k of each store receives that
// pixel's color in training frame k, so each store carries a temporal sample
// of real observed variation rather than a single snapshot.
//
// Every candidate frame is validated before any store is touched; on failure
// the model keeps its pre-call state. A second Train fully overwrites the
// stores, so retraining is equivalent to training a fresh model.
func (m *BackgroundModel) Train(frames []*Frame) error {
	if m == nil {
		return fmt.Errorf("background model nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := m.Params.TrainingFrames
	if len(frames) < k {
		return fmt.Errorf("have %d frames, need %d: %w", len(frames), k, ErrInsufficientTrainingData)
	}
	for i := 0; i < k; i++ {
		if err := m.checkFrame(frames[i]); err != nil {
			return fmt.Errorf("training frame %d: %w", i, err)
		}
	}

	pixels := m.Width * m.Height
	for s := 0; s < k; s++ {
		pix := frames[s].Pix
		for p := 0; p < pixels; p++ {
			copy(m.samples[m.sampleOffset(p, s):m.sampleOffset(p, s)+m.Channels], pix[p*m.Channels:(p+1)*m.Channels])
		}
	}

	m.trained = true
	m.TrainedAt = time.Now()
	m.FramesSegmented = 0
	m.ForegroundCount = 0
	m.BackgroundCount = 0
	for i := range m.fgAccum {
		m.fgAccum[i] = 0
	}
	Diagf("trained background model: %dx%dx%d, %d samples/pixel", m.Width, m.Height, m.Channels, k)
	return nil
}

// Trained reports whether Train has completed successfully.
func (m *BackgroundModel) Trained() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trained
}

// Reset discards all training and telemetry, returning the model to its
// freshly constructed state. Parameters and geometry are retained.
func (m *BackgroundModel) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.samples {
		m.samples[i] = 0
	}
	m.trained = false
	m.TrainedAt = time.Time{}
	m.FramesSegmented = 0
	m.ForegroundCount = 0
	m.BackgroundCount = 0
	for i := range m.fgAccum {
		m.fgAccum[i] = 0
	}
}

// SampleCount returns the number of populated slots for pixel (x, y): zero
// before training, TrainingFrames after.
func (m *BackgroundModel) SampleCount(x, y int) int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.trained {
		return 0
	}
	return m.Params.TrainingFrames
}

// SampleAt returns a copy of slot s of pixel (x, y)'s store. Intended for
// inspection and tests; the hot paths read the arena directly.
func (m *BackgroundModel) SampleAt(x, y, s int) []uint8 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	off := m.sampleOffset(m.Idx(x, y), s)
	out := make([]uint8, m.Channels)
	copy(out, m.samples[off:off+m.Channels])
	return out
}
