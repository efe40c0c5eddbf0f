package sqlite

import (
	"bytes"
	"testing"

	"github.com/banshee-data/motion.report/internal/video"
)

func TestSnapshotStore_InsertAndGetLatest(t *testing.T) {
	db := setupTestDB(t)
	store := NewSnapshotStore(db.DB)

	first := &video.ModelSnapshot{
		StreamID:       "camera-1",
		TakenUnixNanos: 1000,
		Width:          32,
		Height:         24,
		Channels:       1,
		ParamsJSON:     `{"radius":20}`,
		ModelBlob:      []byte("older"),
	}
	second := &video.ModelSnapshot{
		StreamID:        "camera-1",
		RunID:           "run-2",
		TakenUnixNanos:  2000,
		Width:           32,
		Height:          24,
		Channels:        1,
		ParamsJSON:      `{"radius":20}`,
		ModelBlob:       []byte("newer"),
		FramesSegmented: 99,
		SnapshotReason:  "interval",
	}

	id1, err := store.InsertModelSnapshot(first)
	if err != nil {
		t.Fatalf("InsertModelSnapshot failed: %v", err)
	}
	if id1 == 0 || first.SnapshotID != id1 {
		t.Errorf("first snapshot id = %d, struct id = %d", id1, first.SnapshotID)
	}
	id2, err := store.InsertModelSnapshot(second)
	if err != nil {
		t.Fatalf("InsertModelSnapshot failed: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("snapshot ids not increasing: %d then %d", id1, id2)
	}

	got, err := store.GetLatest("camera-1")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if got.SnapshotID != id2 {
		t.Errorf("GetLatest returned snapshot %d, want %d", got.SnapshotID, id2)
	}
	if got.RunID != "run-2" {
		t.Errorf("run_id = %q, want run-2", got.RunID)
	}
	if !bytes.Equal(got.ModelBlob, []byte("newer")) {
		t.Errorf("model_blob = %q, want newer", got.ModelBlob)
	}
	if got.FramesSegmented != 99 {
		t.Errorf("frames_segmented = %d, want 99", got.FramesSegmented)
	}
	if got.SnapshotReason != "interval" {
		t.Errorf("snapshot_reason = %q, want interval", got.SnapshotReason)
	}
}

func TestSnapshotStore_GetLatestEmpty(t *testing.T) {
	db := setupTestDB(t)
	store := NewSnapshotStore(db.DB)

	if _, err := store.GetLatest("no-such-stream"); err == nil {
		t.Error("expected error for stream with no snapshots")
	}
}

func TestSnapshotStore_InsertNil(t *testing.T) {
	db := setupTestDB(t)
	store := NewSnapshotStore(db.DB)

	if _, err := store.InsertModelSnapshot(nil); err == nil {
		t.Error("expected error for nil snapshot")
	}
}

func TestSnapshotStore_InsertDefaultsTimestamp(t *testing.T) {
	db := setupTestDB(t)
	store := NewSnapshotStore(db.DB)

	snap := &video.ModelSnapshot{
		StreamID:  "camera-1",
		Width:     8,
		Height:    8,
		Channels:  1,
		ModelBlob: []byte("blob"),
	}
	if _, err := store.InsertModelSnapshot(snap); err != nil {
		t.Fatalf("InsertModelSnapshot failed: %v", err)
	}
	if snap.TakenUnixNanos == 0 {
		t.Error("expected taken_unix_nanos to be defaulted")
	}
}

func TestSnapshotStore_ListOmitsBlobs(t *testing.T) {
	db := setupTestDB(t)
	store := NewSnapshotStore(db.DB)

	for i := int64(1); i <= 3; i++ {
		snap := &video.ModelSnapshot{
			StreamID:       "camera-1",
			TakenUnixNanos: i * 1000,
			Width:          8,
			Height:         8,
			Channels:       1,
			ModelBlob:      []byte("large model payload"),
		}
		if _, err := store.InsertModelSnapshot(snap); err != nil {
			t.Fatalf("InsertModelSnapshot %d failed: %v", i, err)
		}
	}

	snaps, err := store.List("camera-1", 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].TakenUnixNanos != 3000 || snaps[1].TakenUnixNanos != 2000 {
		t.Errorf("order = %d, %d, want newest first",
			snaps[0].TakenUnixNanos, snaps[1].TakenUnixNanos)
	}
	for i, snap := range snaps {
		if len(snap.ModelBlob) != 0 {
			t.Errorf("snaps[%d] carries a %d byte blob, listings should omit blobs",
				i, len(snap.ModelBlob))
		}
	}
}

func TestSnapshotStore_Delete(t *testing.T) {
	db := setupTestDB(t)
	store := NewSnapshotStore(db.DB)

	snap := &video.ModelSnapshot{
		StreamID:  "camera-1",
		Width:     8,
		Height:    8,
		Channels:  1,
		ModelBlob: []byte("blob"),
	}
	id, err := store.InsertModelSnapshot(snap)
	if err != nil {
		t.Fatalf("InsertModelSnapshot failed: %v", err)
	}

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetLatest("camera-1"); err == nil {
		t.Error("expected no snapshots after delete")
	}
	if err := store.Delete(id); err == nil {
		t.Error("expected error deleting nonexistent snapshot")
	}
}

// TestSnapshotStore_ManagerRoundTrip persists a trained model through a
// Manager into the real store, restores it, and checks the restored model
// classifies a probe frame identically.
func TestSnapshotStore_ManagerRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	store := NewSnapshotStore(db.DB)

	params := video.BackgroundParams{
		TrainingFrames:    3,
		MinSamples:        2,
		Radius:            10,
		SubsamplingFactor: 4,
	}
	model, err := video.NewBackgroundModel(4, 4, 1, params, video.NewSeededSource(7))
	if err != nil {
		t.Fatalf("NewBackgroundModel failed: %v", err)
	}

	frames := make([]*video.Frame, 3)
	for i := range frames {
		frames[i] = video.NewFrame(4, 4, 1)
		for j := range frames[i].Pix {
			frames[i].Pix[j] = uint8(100 + i)
		}
	}
	if err := model.Train(frames); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	mgr := video.NewManager("sqlite-roundtrip-stream", model, store)
	if err := mgr.Persist(store, "test"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	snap, err := store.GetLatest("sqlite-roundtrip-stream")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}

	restored, err := video.RestoreModel(snap, video.NewSeededSource(7))
	if err != nil {
		t.Fatalf("RestoreModel failed: %v", err)
	}

	probe := video.NewFrame(4, 4, 1)
	for j := range probe.Pix {
		probe.Pix[j] = 101
	}
	probe.Pix[5] = 250

	wantMask, err := model.Segment(probe)
	if err != nil {
		t.Fatalf("Segment on original failed: %v", err)
	}
	gotMask, err := restored.Segment(probe)
	if err != nil {
		t.Fatalf("Segment on restored failed: %v", err)
	}
	if !bytes.Equal(wantMask.Pix, gotMask.Pix) {
		t.Error("restored model classifies probe frame differently")
	}
}
