package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/motion.report/internal/video"
)

// SnapshotStore provides persistence for serialized background models.
// It satisfies video.SnapshotStore so a Manager can persist directly.
type SnapshotStore struct {
	db *sql.DB
}

var _ video.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a SnapshotStore backed by the given database.
func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// InsertModelSnapshot persists a model snapshot and returns its row ID.
func (s *SnapshotStore) InsertModelSnapshot(snap *video.ModelSnapshot) (int64, error) {
	if snap == nil {
		return 0, fmt.Errorf("nil snapshot")
	}
	if snap.TakenUnixNanos == 0 {
		snap.TakenUnixNanos = time.Now().UnixNano()
	}

	var id int64
	err := retryOnBusy(func() error {
		result, err := s.db.Exec(`
			INSERT INTO model_snapshots (
				stream_id, run_id, taken_unix_nanos,
				width, height, channels, params_json,
				model_blob, frames_segmented, snapshot_reason
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.StreamID, nullStr(snap.RunID), snap.TakenUnixNanos,
			snap.Width, snap.Height, snap.Channels, snap.ParamsJSON,
			snap.ModelBlob, snap.FramesSegmented, snap.SnapshotReason,
		)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert model snapshot: %w", err)
	}
	snap.SnapshotID = id
	return id, nil
}

// GetLatest returns the most recent snapshot for a stream, including the
// model blob, or an error if the stream has none.
func (s *SnapshotStore) GetLatest(streamID string) (*video.ModelSnapshot, error) {
	row := s.db.QueryRow(`
		SELECT snapshot_id, stream_id, run_id, taken_unix_nanos,
		       width, height, channels, params_json,
		       model_blob, frames_segmented, snapshot_reason
		FROM model_snapshots
		WHERE stream_id = ?
		ORDER BY taken_unix_nanos DESC
		LIMIT 1`, streamID)

	var snap video.ModelSnapshot
	var runID sql.NullString
	err := row.Scan(
		&snap.SnapshotID, &snap.StreamID, &runID, &snap.TakenUnixNanos,
		&snap.Width, &snap.Height, &snap.Channels, &snap.ParamsJSON,
		&snap.ModelBlob, &snap.FramesSegmented, &snap.SnapshotReason,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no snapshots for stream %s", streamID)
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.RunID = runID.String
	return &snap, nil
}

// List returns recent snapshot metadata for a stream, newest first. Model
// blobs are omitted to keep listings cheap.
func (s *SnapshotStore) List(streamID string, limit int) ([]*video.ModelSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT snapshot_id, stream_id, run_id, taken_unix_nanos,
		       width, height, channels, params_json,
		       frames_segmented, snapshot_reason
		FROM model_snapshots
		WHERE stream_id = ?
		ORDER BY taken_unix_nanos DESC
		LIMIT ?`, streamID, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*video.ModelSnapshot
	for rows.Next() {
		var snap video.ModelSnapshot
		var runID sql.NullString
		if err := rows.Scan(
			&snap.SnapshotID, &snap.StreamID, &runID, &snap.TakenUnixNanos,
			&snap.Width, &snap.Height, &snap.Channels, &snap.ParamsJSON,
			&snap.FramesSegmented, &snap.SnapshotReason,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snap.RunID = runID.String
		snaps = append(snaps, &snap)
	}
	return snaps, rows.Err()
}

// Delete removes a snapshot by ID.
func (s *SnapshotStore) Delete(snapshotID int64) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM model_snapshots WHERE snapshot_id = ?`, snapshotID)
		if err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("snapshot %d not found", snapshotID)
		}
		return nil
	})
}
