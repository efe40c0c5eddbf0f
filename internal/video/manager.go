package video

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/motion.report/internal/monitoring"
)

// recentMetricsCap bounds the per-manager ring of recent frame metrics kept
// for the monitor API and charts.
const recentMetricsCap = 1024

// Manager wraps a BackgroundModel with run identity, telemetry history and
// optional snapshot persistence, and makes the model reachable by stream ID
// for the HTTP monitor.
type Manager struct {
	Model    *BackgroundModel
	StreamID string
	RunID    string

	StartTime       time.Time
	LastPersistTime time.Time

	// PersistCallback saves a snapshot of the model; wired to Persist when a
	// SnapshotStore is supplied to NewManager.
	PersistCallback func(reason string) error

	// EnableDiagnostics controls whether this manager emits diagnostic
	// messages via the shared monitoring logger. Default: false.
	EnableDiagnostics bool

	// metricsMu guards the recent-metrics ring.
	metricsMu     sync.RWMutex
	recentMetrics []MaskMetrics
}

var (
	managerRegistry   = map[string]*Manager{}
	managerRegistryMu = &sync.RWMutex{}
)

// RegisterManager registers a Manager for a stream ID.
func RegisterManager(streamID string, mgr *Manager) {
	if streamID == "" || mgr == nil {
		return
	}
	managerRegistryMu.Lock()
	defer managerRegistryMu.Unlock()
	managerRegistry[streamID] = mgr
}

// GetManager returns a registered manager or nil.
func GetManager(streamID string) *Manager {
	managerRegistryMu.RLock()
	defer managerRegistryMu.RUnlock()
	return managerRegistry[streamID]
}

// UnregisterManager removes a stream's manager from the registry. Used by
// batch tooling that creates many short-lived models.
func UnregisterManager(streamID string) {
	managerRegistryMu.Lock()
	defer managerRegistryMu.Unlock()
	delete(managerRegistry, streamID)
}

// NewManager wraps model, registers it under streamID, and optionally wires
// a SnapshotStore for persistence (sets PersistCallback to call Persist).
func NewManager(streamID string, model *BackgroundModel, store SnapshotStore) *Manager {
	if streamID == "" || model == nil {
		return nil
	}
	mgr := &Manager{
		Model:     model,
		StreamID:  streamID,
		StartTime: time.Now(),
	}

	if store != nil {
		mgr.PersistCallback = func(reason string) error {
			return mgr.Persist(store, reason)
		}
	} else {
		monitoring.Logf("Manager for stream '%s' created without a SnapshotStore: persistence disabled", streamID)
	}

	RegisterManager(streamID, mgr)
	return mgr
}

// SetEnableDiagnostics toggles emission of diagnostics for this manager.
func (mgr *Manager) SetEnableDiagnostics(v bool) {
	if mgr == nil {
		return
	}
	mgr.EnableDiagnostics = v
}

// GetParams returns a copy of the model's BackgroundParams.
func (mgr *Manager) GetParams() BackgroundParams {
	if mgr == nil || mgr.Model == nil {
		return BackgroundParams{}
	}
	m := mgr.Model
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Params
}

// RecordMetrics appends one frame's metrics to the recent-metrics ring.
func (mgr *Manager) RecordMetrics(metrics MaskMetrics) {
	if mgr == nil {
		return
	}
	if mgr.EnableDiagnostics {
		monitoring.Logf("[Manager] stream=%s frame=%d fg=%d/%d (%.2f%%) elapsed=%dus",
			mgr.StreamID, metrics.FrameIndex, metrics.ForegroundPixels, metrics.TotalPixels,
			metrics.ForegroundFraction*100, metrics.ProcessingTimeUs)
	}
	mgr.metricsMu.Lock()
	defer mgr.metricsMu.Unlock()
	mgr.recentMetrics = append(mgr.recentMetrics, metrics)
	if len(mgr.recentMetrics) > recentMetricsCap {
		mgr.recentMetrics = mgr.recentMetrics[len(mgr.recentMetrics)-recentMetricsCap:]
	}
}

// RecentMetrics returns up to limit of the most recent frame metrics, oldest
// first. limit <= 0 returns the full ring. The returned slice is a copy.
func (mgr *Manager) RecentMetrics(limit int) []MaskMetrics {
	if mgr == nil {
		return nil
	}
	mgr.metricsMu.RLock()
	defer mgr.metricsMu.RUnlock()
	n := len(mgr.recentMetrics)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]MaskMetrics, n)
	copy(out, mgr.recentMetrics[len(mgr.recentMetrics)-n:])
	return out
}

// ModelStatus returns a snapshot of model-level statistics useful for
// monitoring a run: geometry, params, training state and the most recent
// frame's counters.
func (mgr *Manager) ModelStatus() map[string]interface{} {
	if mgr == nil || mgr.Model == nil {
		return nil
	}
	m := mgr.Model
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"stream_id":               mgr.StreamID,
		"run_id":                  mgr.RunID,
		"width":                   m.Width,
		"height":                  m.Height,
		"channels":                m.Channels,
		"params":                  m.Params,
		"trained":                 m.trained,
		"frames_segmented":        m.FramesSegmented,
		"foreground_count":        m.ForegroundCount,
		"background_count":        m.BackgroundCount,
		"last_processing_time_us": m.LastProcessingTimeUs,
	}
}

// HeatmapBlock aggregates foreground activity for one spatial block.
type HeatmapBlock struct {
	X               int     `json:"x"`
	Y               int     `json:"y"`
	ForegroundCount int64   `json:"foreground_count"`
	MeanPerPixel    float64 `json:"mean_per_pixel"`
}

// ForegroundHeatmap is a block-aggregated view of cumulative per-pixel
// foreground counts since training, for hot-zone review.
type ForegroundHeatmap struct {
	StreamID        string         `json:"stream_id"`
	Width           int            `json:"width"`
	Height          int            `json:"height"`
	BlockSize       int            `json:"block_size"`
	BlocksX         int            `json:"blocks_x"`
	BlocksY         int            `json:"blocks_y"`
	FramesSegmented int64          `json:"frames_segmented"`
	MaxCount        int64          `json:"max_count"`
	Blocks          []HeatmapBlock `json:"blocks"`
}

// GetForegroundHeatmap aggregates the per-pixel foreground counters into
// blockSize x blockSize blocks. blockSize values below 1 fall back to 8.
func (mgr *Manager) GetForegroundHeatmap(blockSize int) *ForegroundHeatmap {
	if mgr == nil || mgr.Model == nil {
		return nil
	}
	if blockSize < 1 {
		blockSize = 8
	}
	m := mgr.Model
	m.mu.RLock()
	defer m.mu.RUnlock()

	blocksX := (m.Width + blockSize - 1) / blockSize
	blocksY := (m.Height + blockSize - 1) / blockSize
	hm := &ForegroundHeatmap{
		StreamID:        mgr.StreamID,
		Width:           m.Width,
		Height:          m.Height,
		BlockSize:       blockSize,
		BlocksX:         blocksX,
		BlocksY:         blocksY,
		FramesSegmented: m.FramesSegmented,
		Blocks:          make([]HeatmapBlock, 0, blocksX*blocksY),
	}

	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			var sum int64
			pixels := 0
			for y := by * blockSize; y < (by+1)*blockSize && y < m.Height; y++ {
				for x := bx * blockSize; x < (bx+1)*blockSize && x < m.Width; x++ {
					sum += int64(m.fgAccum[y*m.Width+x])
					pixels++
				}
			}
			mean := 0.0
			if pixels > 0 {
				mean = float64(sum) / float64(pixels)
			}
			if sum > hm.MaxCount {
				hm.MaxCount = sum
			}
			hm.Blocks = append(hm.Blocks, HeatmapBlock{
				X:               bx,
				Y:               by,
				ForegroundCount: sum,
				MeanPerPixel:    mean,
			})
		}
	}
	return hm
}

// ResetModel discards all training state and telemetry for the managed
// model. Intended for clean A/B comparisons when tuning parameters.
func (mgr *Manager) ResetModel() error {
	if mgr == nil || mgr.Model == nil {
		return fmt.Errorf("manager or model nil")
	}
	mgr.Model.Reset()
	mgr.metricsMu.Lock()
	mgr.recentMetrics = nil
	mgr.metricsMu.Unlock()
	Opsf("model reset for stream %s", mgr.StreamID)
	return nil
}
