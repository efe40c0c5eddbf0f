package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.report/internal/video/evaluate"
)

// Evaluation records a comparison between a produced mask and a ground
// truth mask, tied to the run that produced the mask.
type Evaluation struct {
	evaluate.Metrics

	EvaluationID    string `json:"evaluation_id"`
	RunID           string `json:"run_id"`
	GroundTruthPath string `json:"ground_truth_path"`
	FrameIndex      int    `json:"frame_index"`
	CreatedAt       int64  `json:"created_at"`
}

// EvaluationStore provides persistence for ground truth evaluations.
type EvaluationStore struct {
	db *sql.DB
}

// NewEvaluationStore creates an EvaluationStore backed by the given database.
func NewEvaluationStore(db *sql.DB) *EvaluationStore {
	return &EvaluationStore{db: db}
}

// Insert persists an evaluation. If EvaluationID is empty, a UUID is
// generated; if CreatedAt is zero, the current time is used.
func (s *EvaluationStore) Insert(ev *Evaluation) error {
	if ev.EvaluationID == "" {
		ev.EvaluationID = uuid.New().String()
	}
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().UnixNano()
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO evaluations (
				evaluation_id, run_id, ground_truth_path, frame_index,
				true_positive, true_negative, false_positive, false_negative,
				percent_correct, precision, recall, f1, iou, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.EvaluationID, ev.RunID, ev.GroundTruthPath, ev.FrameIndex,
			ev.TruePositive, ev.TrueNegative, ev.FalsePositive, ev.FalseNegative,
			ev.PercentCorrect, ev.Precision, ev.Recall, ev.F1, ev.IoU, ev.CreatedAt,
		)
		return err
	})
}

// Get returns a single evaluation by ID.
func (s *EvaluationStore) Get(evaluationID string) (*Evaluation, error) {
	row := s.db.QueryRow(evaluationSelect+` WHERE evaluation_id = ?`, evaluationID)
	ev, err := scanEvaluation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("evaluation %s not found", evaluationID)
		}
		return nil, fmt.Errorf("scan evaluation: %w", err)
	}
	return ev, nil
}

// ListByRun returns all evaluations for a run, newest first.
func (s *EvaluationStore) ListByRun(runID string) ([]*Evaluation, error) {
	rows, err := s.db.Query(evaluationSelect+`
		WHERE run_id = ?
		ORDER BY created_at DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var evs []*Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation row: %w", err)
		}
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}

// Delete removes an evaluation by ID.
func (s *EvaluationStore) Delete(evaluationID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM evaluations WHERE evaluation_id = ?`, evaluationID)
		if err != nil {
			return fmt.Errorf("delete evaluation: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("evaluation %s not found", evaluationID)
		}
		return nil
	})
}

const evaluationSelect = `
	SELECT evaluation_id, run_id, ground_truth_path, frame_index,
	       true_positive, true_negative, false_positive, false_negative,
	       percent_correct, precision, recall, f1, iou, created_at
	FROM evaluations`

func scanEvaluation(row rowScanner) (*Evaluation, error) {
	var ev Evaluation
	err := row.Scan(
		&ev.EvaluationID, &ev.RunID, &ev.GroundTruthPath, &ev.FrameIndex,
		&ev.TruePositive, &ev.TrueNegative, &ev.FalsePositive, &ev.FalseNegative,
		&ev.PercentCorrect, &ev.Precision, &ev.Recall, &ev.F1, &ev.IoU, &ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
