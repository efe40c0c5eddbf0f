package video

import "errors"

// Model errors. All are reported synchronously to the caller of the offending
// operation and are never retried internally; wrap with fmt.Errorf("...: %w")
// and match with errors.Is.
var (
	// ErrInvalidParameter reports a non-positive or out-of-range scalar at
	// model construction.
	ErrInvalidParameter = errors.New("invalid model parameter")

	// ErrInsufficientTrainingData reports fewer usable frames than
	// TrainingFrames at Train.
	ErrInsufficientTrainingData = errors.New("insufficient training data")

	// ErrDimensionMismatch reports a frame whose geometry disagrees with the
	// model's fixed grid.
	ErrDimensionMismatch = errors.New("frame dimensions do not match model")

	// ErrModelNotTrained reports a Segment call before Train has completed
	// successfully.
	ErrModelNotTrained = errors.New("model not trained")
)
