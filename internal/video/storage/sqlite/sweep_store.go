package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// SweepResult records the outcome of one parameter combination inside a
// sweep: the parameters tried and the scores they achieved against ground
// truth.
type SweepResult struct {
	SweepID           string  `json:"sweep_id"`
	ComboIndex        int     `json:"combo_index"`
	Radius            int     `json:"radius"`
	MinSamples        int     `json:"min_samples"`
	SubsamplingFactor int     `json:"subsampling_factor"`
	PercentCorrect    float64 `json:"percent_correct"`
	F1                float64 `json:"f1"`
	IoU               float64 `json:"iou"`
	MeanForeground    float64 `json:"mean_foreground"`
	ProcessingTimeUs  int64   `json:"processing_time_us"`
	CreatedAt         int64   `json:"created_at"`
}

// SweepStore provides persistence for parameter sweep results.
type SweepStore struct {
	db *sql.DB
}

// NewSweepStore creates a SweepStore backed by the given database.
func NewSweepStore(db *sql.DB) *SweepStore {
	return &SweepStore{db: db}
}

// Insert persists one sweep combination result.
func (s *SweepStore) Insert(r *SweepResult) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixNano()
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO sweep_results (
				sweep_id, combo_index, radius, min_samples, subsampling_factor,
				percent_correct, f1, iou, mean_foreground,
				processing_time_us, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.SweepID, r.ComboIndex, r.Radius, r.MinSamples, r.SubsamplingFactor,
			r.PercentCorrect, r.F1, r.IoU, r.MeanForeground,
			r.ProcessingTimeUs, r.CreatedAt,
		)
		return err
	})
}

// ListBySweep returns all results for a sweep in combination order.
func (s *SweepStore) ListBySweep(sweepID string) ([]*SweepResult, error) {
	rows, err := s.db.Query(sweepSelect+`
		WHERE sweep_id = ?
		ORDER BY combo_index`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("query sweep results: %w", err)
	}
	defer rows.Close()
	return collectSweepResults(rows)
}

// Best returns a sweep's results ordered by percent correct, best first,
// limited to the given count.
func (s *SweepStore) Best(sweepID string, limit int) ([]*SweepResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(sweepSelect+`
		WHERE sweep_id = ?
		ORDER BY percent_correct DESC, f1 DESC
		LIMIT ?`, sweepID, limit)
	if err != nil {
		return nil, fmt.Errorf("query best sweep results: %w", err)
	}
	defer rows.Close()
	return collectSweepResults(rows)
}

const sweepSelect = `
	SELECT sweep_id, combo_index, radius, min_samples, subsampling_factor,
	       percent_correct, f1, iou, mean_foreground,
	       processing_time_us, created_at
	FROM sweep_results`

func collectSweepResults(rows *sql.Rows) ([]*SweepResult, error) {
	var out []*SweepResult
	for rows.Next() {
		var r SweepResult
		if err := rows.Scan(
			&r.SweepID, &r.ComboIndex, &r.Radius, &r.MinSamples, &r.SubsamplingFactor,
			&r.PercentCorrect, &r.F1, &r.IoU, &r.MeanForeground,
			&r.ProcessingTimeUs, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sweep result: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
