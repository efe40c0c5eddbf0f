// Package pipeline orchestrates background segmentation over an image
// sequence.
//
// It wires a frame source, the background model, a mask sink and optional
// persistence sinks (run records, per-frame metrics, model snapshots,
// ground truth evaluation) into one run: train on the leading frames, then
// segment every frame of the sequence in order. The pipeline owns no domain
// logic; it delegates to internal/video, imageio, evaluate and storage.
package pipeline
