package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/banshee-data/motion.report/internal/video"
)

// FrameMetricsStore provides persistence for per-frame segmentation metrics.
type FrameMetricsStore struct {
	db *sql.DB
}

// NewFrameMetricsStore creates a FrameMetricsStore backed by the given database.
func NewFrameMetricsStore(db *sql.DB) *FrameMetricsStore {
	return &FrameMetricsStore{db: db}
}

// Insert persists metrics for a single frame of a run.
func (s *FrameMetricsStore) Insert(runID string, m video.MaskMetrics) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO frame_metrics (
				run_id, frame_index, total_pixels,
				foreground_pixels, background_pixels,
				foreground_fraction, processing_time_us
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, m.FrameIndex, m.TotalPixels,
			m.ForegroundPixels, m.BackgroundPixels,
			m.ForegroundFraction, m.ProcessingTimeUs,
		)
		return err
	})
}

// InsertBatch persists metrics for many frames in a single transaction.
// Cheaper than per-frame inserts when flushing a whole run at once.
func (s *FrameMetricsStore) InsertBatch(runID string, metrics []video.MaskMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin metrics batch: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO frame_metrics (
				run_id, frame_index, total_pixels,
				foreground_pixels, background_pixels,
				foreground_fraction, processing_time_us
			) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare metrics insert: %w", err)
		}
		defer stmt.Close()

		for _, m := range metrics {
			if _, err := stmt.Exec(
				runID, m.FrameIndex, m.TotalPixels,
				m.ForegroundPixels, m.BackgroundPixels,
				m.ForegroundFraction, m.ProcessingTimeUs,
			); err != nil {
				return fmt.Errorf("insert metrics for frame %d: %w", m.FrameIndex, err)
			}
		}
		return tx.Commit()
	})
}

// ListByRun returns all frame metrics for a run in frame order.
func (s *FrameMetricsStore) ListByRun(runID string) ([]video.MaskMetrics, error) {
	rows, err := s.db.Query(`
		SELECT frame_index, total_pixels, foreground_pixels,
		       background_pixels, foreground_fraction, processing_time_us
		FROM frame_metrics
		WHERE run_id = ?
		ORDER BY frame_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query frame metrics: %w", err)
	}
	defer rows.Close()

	var out []video.MaskMetrics
	for rows.Next() {
		var m video.MaskMetrics
		if err := rows.Scan(
			&m.FrameIndex, &m.TotalPixels, &m.ForegroundPixels,
			&m.BackgroundPixels, &m.ForegroundFraction, &m.ProcessingTimeUs,
		); err != nil {
			return nil, fmt.Errorf("scan frame metrics: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
