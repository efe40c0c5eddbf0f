package video

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/motion.report/internal/monitoring"
)

// modelSnapshotState is the gob payload of a model snapshot: everything
// needed to reconstruct a trained model except the random source, which the
// restorer injects.
type modelSnapshotState struct {
	Width           int
	Height          int
	Channels        int
	Params          BackgroundParams
	Trained         bool
	FramesSegmented int64
	Samples         []uint8
}

// serializeModel compresses the model state using gob encoding and gzip.
func serializeModel(state modelSnapshotState) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(state); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deserializeModel decompresses and decodes model state from a gob+gzip blob.
func deserializeModel(blob []byte) (modelSnapshotState, error) {
	var state modelSnapshotState
	if len(blob) == 0 {
		return state, fmt.Errorf("empty model blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return state, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	dec := gob.NewDecoder(gz)
	if err := dec.Decode(&state); err != nil {
		return state, fmt.Errorf("failed to decode model state: %w", err)
	}
	return state, nil
}

// ModelSnapshot is a persisted copy of a model's sample stores and
// parameters, written to the model_snapshots table.
type ModelSnapshot struct {
	SnapshotID      int64  `json:"snapshot_id"`
	StreamID        string `json:"stream_id"`
	RunID           string `json:"run_id,omitempty"`
	TakenUnixNanos  int64  `json:"taken_unix_nanos"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Channels        int    `json:"channels"`
	ParamsJSON      string `json:"params_json"`
	ModelBlob       []byte `json:"-"`
	FramesSegmented int64  `json:"frames_segmented"`
	SnapshotReason  string `json:"snapshot_reason"`
}

// SnapshotStore is the interface required to persist ModelSnapshot records.
// Implemented by storage/sqlite.SnapshotStore.
type SnapshotStore interface {
	InsertModelSnapshot(s *ModelSnapshot) (int64, error)
}

// Persist serializes the managed model and writes a ModelSnapshot via the
// provided store. The arena is copied under the read lock so segmentation of
// the next frame is not blocked by snapshot I/O; manager metadata is updated
// afterwards.
func (mgr *Manager) Persist(store SnapshotStore, reason string) error {
	if mgr == nil || mgr.Model == nil || store == nil {
		return nil
	}
	m := mgr.Model

	m.mu.RLock()
	state := modelSnapshotState{
		Width:           m.Width,
		Height:          m.Height,
		Channels:        m.Channels,
		Params:          m.Params,
		Trained:         m.trained,
		FramesSegmented: m.FramesSegmented,
		Samples:         make([]uint8, len(m.samples)),
	}
	copy(state.Samples, m.samples)
	m.mu.RUnlock()

	blob, err := serializeModel(state)
	if err != nil {
		return fmt.Errorf("serialize model: %w", err)
	}

	paramsJSON := "{}"
	if b, err := json.Marshal(state.Params); err == nil {
		paramsJSON = string(b)
	}

	snap := &ModelSnapshot{
		StreamID:        mgr.StreamID,
		RunID:           mgr.RunID,
		TakenUnixNanos:  time.Now().UnixNano(),
		Width:           state.Width,
		Height:          state.Height,
		Channels:        state.Channels,
		ParamsJSON:      paramsJSON,
		ModelBlob:       blob,
		FramesSegmented: state.FramesSegmented,
		SnapshotReason:  reason,
	}

	id, err := store.InsertModelSnapshot(snap)
	if err != nil {
		return fmt.Errorf("insert model snapshot: %w", err)
	}

	monitoring.Logf("[Manager] Persisted snapshot: stream=%s, reason=%s, frames=%d, blob_size=%d bytes, snapshot_id=%d",
		mgr.StreamID, reason, state.FramesSegmented, len(blob), id)

	mgr.LastPersistTime = time.Now()
	return nil
}

// RestoreModel reconstructs a model from a persisted snapshot, for warm
// restart of a stream without retraining. src supplies the random draws for
// the restored model; pass nil for a wall-clock seeded source.
func RestoreModel(snap *ModelSnapshot, src UniformSource) (*BackgroundModel, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil model snapshot")
	}
	state, err := deserializeModel(snap.ModelBlob)
	if err != nil {
		return nil, err
	}

	m, err := NewBackgroundModel(state.Width, state.Height, state.Channels, state.Params, src)
	if err != nil {
		return nil, fmt.Errorf("restore model: %w", err)
	}
	want := state.Width * state.Height * state.Params.TrainingFrames * state.Channels
	if len(state.Samples) != want {
		return nil, fmt.Errorf("snapshot sample arena length %d, want %d", len(state.Samples), want)
	}
	copy(m.samples, state.Samples)
	m.trained = state.Trained
	m.FramesSegmented = state.FramesSegmented
	if state.Trained {
		m.TrainedAt = time.Unix(0, snap.TakenUnixNanos)
	}

	monitoring.Logf("[Manager] Restored model from snapshot: stream=%s, %dx%dx%d, frames=%d",
		snap.StreamID, state.Width, state.Height, state.Channels, state.FramesSegmented)
	return m, nil
}
