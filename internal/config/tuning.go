package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/motion.report/internal/video"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/segmentation.defaults.json"

// SegmentationConfig represents the root configuration for segmentation
// tuning parameters. Fields are pointers so a partial JSON file only
// overrides what it mentions; the Get* methods supply defaults for the rest.
type SegmentationConfig struct {
	// Background model params
	TrainingFrames    *int `json:"training_frames,omitempty"`
	Radius            *int `json:"radius,omitempty"`
	MinSamples        *int `json:"min_samples,omitempty"`
	SubsamplingFactor *int `json:"subsampling_factor,omitempty"`

	// Pipeline params
	StreamID        *string `json:"stream_id,omitempty"`
	ClassifyWorkers *int    `json:"classify_workers,omitempty"`
	PersistInterval *int    `json:"persist_interval,omitempty"`
	Seed            *int64  `json:"seed,omitempty"`
}

// Helper functions to create pointers
func ptrInt(v int) *int          { return &v }
func ptrInt64(v int64) *int64    { return &v }
func ptrString(v string) *string { return &v }

// DefaultSegmentationConfig returns a config with every field set to its
// compiled-in default.
func DefaultSegmentationConfig() *SegmentationConfig {
	return &SegmentationConfig{
		TrainingFrames:    ptrInt(20),
		Radius:            ptrInt(20),
		MinSamples:        ptrInt(2),
		SubsamplingFactor: ptrInt(16),
		StreamID:          ptrString("default"),
		ClassifyWorkers:   ptrInt(0),
		PersistInterval:   ptrInt(0),
		Seed:              ptrInt64(0),
	}
}

// LoadSegmentationConfig loads a SegmentationConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadSegmentationConfig(path string) (*SegmentationConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into an empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := &SegmentationConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath. It searches for the file in the current directory and
// common parent directories. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *SegmentationConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/video/sweep/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSegmentationConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. Only fields that
// are actually set are checked; the model validates the assembled parameter
// set again at construction.
func (c *SegmentationConfig) Validate() error {
	if c.TrainingFrames != nil && *c.TrainingFrames < 1 {
		return fmt.Errorf("training_frames must be at least 1, got %d", *c.TrainingFrames)
	}
	if c.Radius != nil {
		if *c.Radius < 1 || *c.Radius > video.MaxRadius {
			return fmt.Errorf("radius must be between 1 and %d, got %d", video.MaxRadius, *c.Radius)
		}
	}
	if c.MinSamples != nil {
		if *c.MinSamples < 1 || *c.MinSamples > video.MaxMinSamples {
			return fmt.Errorf("min_samples must be between 1 and %d, got %d", video.MaxMinSamples, *c.MinSamples)
		}
	}
	if c.SubsamplingFactor != nil {
		if *c.SubsamplingFactor < 1 || *c.SubsamplingFactor > video.MaxSubsamplingFactor {
			return fmt.Errorf("subsampling_factor must be between 1 and %d, got %d", video.MaxSubsamplingFactor, *c.SubsamplingFactor)
		}
	}
	if c.StreamID != nil && *c.StreamID == "" {
		return fmt.Errorf("stream_id must not be empty when set")
	}
	if c.ClassifyWorkers != nil && *c.ClassifyWorkers < 0 {
		return fmt.Errorf("classify_workers must be non-negative, got %d", *c.ClassifyWorkers)
	}
	if c.PersistInterval != nil && *c.PersistInterval < 0 {
		return fmt.Errorf("persist_interval must be non-negative, got %d", *c.PersistInterval)
	}
	return nil
}

// GetTrainingFrames returns the training_frames value or the default.
func (c *SegmentationConfig) GetTrainingFrames() int {
	if c.TrainingFrames == nil {
		return 20 // default
	}
	return *c.TrainingFrames
}

// GetRadius returns the radius value or the default.
func (c *SegmentationConfig) GetRadius() int {
	if c.Radius == nil {
		return 20 // default
	}
	return *c.Radius
}

// GetMinSamples returns the min_samples value or the default.
func (c *SegmentationConfig) GetMinSamples() int {
	if c.MinSamples == nil {
		return 2 // default
	}
	return *c.MinSamples
}

// GetSubsamplingFactor returns the subsampling_factor value or the default.
func (c *SegmentationConfig) GetSubsamplingFactor() int {
	if c.SubsamplingFactor == nil {
		return 16 // default
	}
	return *c.SubsamplingFactor
}

// GetStreamID returns the stream_id value or the default.
func (c *SegmentationConfig) GetStreamID() string {
	if c.StreamID == nil || *c.StreamID == "" {
		return "default"
	}
	return *c.StreamID
}

// GetClassifyWorkers returns the classify_workers value or the default.
// Zero keeps the model's per-CPU worker count.
func (c *SegmentationConfig) GetClassifyWorkers() int {
	if c.ClassifyWorkers == nil {
		return 0
	}
	return *c.ClassifyWorkers
}

// GetPersistInterval returns the persist_interval value or the default.
// Zero disables interval snapshots.
func (c *SegmentationConfig) GetPersistInterval() int {
	if c.PersistInterval == nil {
		return 0
	}
	return *c.PersistInterval
}

// GetSeed returns the seed value or the default. Zero selects a time-based
// seed at model construction.
func (c *SegmentationConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

// Params assembles the background model parameters from the configured
// values and defaults.
func (c *SegmentationConfig) Params() video.BackgroundParams {
	return video.BackgroundParams{
		TrainingFrames:    c.GetTrainingFrames(),
		Radius:            c.GetRadius(),
		MinSamples:        c.GetMinSamples(),
		SubsamplingFactor: c.GetSubsamplingFactor(),
	}
}
