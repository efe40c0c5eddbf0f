package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses. A run starts as running and ends as completed or failed;
// there is no partial-success state.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run represents one segmentation run over an image sequence: which stream
// and directories it processed, the model geometry and parameters, and how
// it ended.
type Run struct {
	RunID           string          `json:"run_id"`
	StreamID        string          `json:"stream_id"`
	InputDir        string          `json:"input_dir,omitempty"`
	OutputDir       string          `json:"output_dir,omitempty"`
	Width           int             `json:"width"`
	Height          int             `json:"height"`
	Channels        int             `json:"channels"`
	ParamsJSON      json.RawMessage `json:"params_json,omitempty"`
	Seed            int64           `json:"seed"`
	FramesTotal     int             `json:"frames_total"`
	FramesSegmented int             `json:"frames_segmented"`
	MeanForeground  float64         `json:"mean_foreground"`
	Status          string          `json:"status"`
	Error           string          `json:"error,omitempty"`
	StartedAt       int64           `json:"started_at"`
	CompletedAt     int64           `json:"completed_at,omitempty"`
}

// RunStore provides persistence for segmentation run records.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore backed by the given database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Insert persists a new run record. If RunID is empty, a UUID is generated;
// if StartedAt is zero, the current time is used. Status defaults to running.
func (s *RunStore) Insert(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().UnixNano()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	var paramsStr interface{}
	if len(run.ParamsJSON) > 0 {
		paramsStr = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO segmentation_runs (
				run_id, stream_id, input_dir, output_dir,
				width, height, channels, params_json, seed,
				frames_total, frames_segmented, mean_foreground, status, error,
				started_at, completed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.StreamID, run.InputDir, run.OutputDir,
			run.Width, run.Height, run.Channels, paramsStr, run.Seed,
			run.FramesTotal, run.FramesSegmented, run.MeanForeground, run.Status, nullStr(run.Error),
			run.StartedAt, nullInt64(run.CompletedAt),
		)
		return err
	})
}

// Complete marks a run as finished successfully, recording the frame count
// and the mean foreground fraction across the run.
func (s *RunStore) Complete(runID string, framesSegmented int, meanForeground float64) error {
	return s.finish(runID, RunStatusCompleted, framesSegmented, meanForeground, "")
}

// Fail marks a run as failed with the given cause.
func (s *RunStore) Fail(runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.finish(runID, RunStatusFailed, 0, 0, msg)
}

func (s *RunStore) finish(runID, status string, framesSegmented int, meanForeground float64, errMsg string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`
			UPDATE segmentation_runs
			SET status = ?, frames_segmented = MAX(frames_segmented, ?),
			    mean_foreground = MAX(mean_foreground, ?),
			    error = ?, completed_at = ?
			WHERE run_id = ?`,
			status, framesSegmented, meanForeground, nullStr(errMsg), time.Now().UnixNano(), runID)
		if err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		return nil
	})
}

// UpdateProgress records segmentation progress for a running run.
func (s *RunStore) UpdateProgress(runID string, framesSegmented int) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			UPDATE segmentation_runs SET frames_segmented = ? WHERE run_id = ?`,
			framesSegmented, runID)
		return err
	})
}

// Get returns a single run by ID.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(runSelect+` WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// ListByStream returns runs for a stream, newest first.
func (s *RunStore) ListByStream(streamID string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(runSelect+`
		WHERE stream_id = ?
		ORDER BY started_at DESC
		LIMIT ?`, streamID, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const runSelect = `
	SELECT run_id, stream_id, input_dir, output_dir,
	       width, height, channels, params_json, seed,
	       frames_total, frames_segmented, mean_foreground, status, error,
	       started_at, completed_at
	FROM segmentation_runs`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var inputDir, outputDir, paramsStr, errMsg sql.NullString
	var completedAt sql.NullInt64
	err := row.Scan(
		&r.RunID, &r.StreamID, &inputDir, &outputDir,
		&r.Width, &r.Height, &r.Channels, &paramsStr, &r.Seed,
		&r.FramesTotal, &r.FramesSegmented, &r.MeanForeground, &r.Status, &errMsg,
		&r.StartedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	r.InputDir = inputDir.String
	r.OutputDir = outputDir.String
	if paramsStr.Valid {
		r.ParamsJSON = json.RawMessage(paramsStr.String)
	}
	r.Error = errMsg.String
	r.CompletedAt = completedAt.Int64
	return &r, nil
}

// nullStr maps empty strings to NULL.
func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullInt64 maps zero to NULL.
func nullInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
