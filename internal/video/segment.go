package video

import (
	"fmt"
	"time"
)

// Segment classifies one frame against the model and returns a fresh mask of
// identical dimensions. Mutating the sample stores afterwards is the
// intended online-learning side effect, not an error: background pixels feed
// their own store and occasionally a neighbour's (see updateFrame).
//
// The call is a two-phase pass over the grid. The classification phase reads
// a stable view of the stores (row-parallel, no writes), producing the full
// mask; the update phase then replays the same frame values through the
// updater in row-major order. Both phases complete before Segment returns,
// and frames must be presented strictly in sequence order: the model is a
// streaming state machine and reordering changes its adaptation trajectory.
//
// Fails with ErrModelNotTrained before a successful Train and with
// ErrDimensionMismatch when the frame disagrees with the model grid; in both
// cases no store is mutated.
func (m *BackgroundModel) Segment(frame *Frame) (*Mask, error) {
	if m == nil {
		return nil, fmt.Errorf("background model nil")
	}
	start := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.trained {
		return nil, fmt.Errorf("segment: %w", ErrModelNotTrained)
	}
	if err := m.checkFrame(frame); err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}

	mask := NewMask(m.Width, m.Height)
	m.classifyFrame(frame, mask)
	m.updateFrame(frame, mask)

	m.FramesSegmented++
	m.LastProcessingTimeUs = time.Since(start).Microseconds()
	Tracef("segmented frame %d: fg=%d bg=%d in %dus",
		m.FramesSegmented, m.ForegroundCount, m.BackgroundCount, m.LastProcessingTimeUs)
	return mask, nil
}
