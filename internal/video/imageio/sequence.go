package imageio

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/motion.report/internal/fsutil"
	"github.com/banshee-data/motion.report/internal/video"
)

// DirectorySource reads an ordered frame sequence from a directory.
type DirectorySource struct {
	FS       fsutil.FileSystem
	Dir      string
	Channels int
}

// NewDirectorySource creates a frame source over a directory of images.
// channels selects grayscale (1) or RGB (3) decoding.
func NewDirectorySource(fsys fsutil.FileSystem, dir string, channels int) *DirectorySource {
	return &DirectorySource{FS: fsys, Dir: dir, Channels: channels}
}

// List returns the sequence's image paths in frame order.
func (s *DirectorySource) List() ([]string, error) {
	return ListSequence(s.FS, s.Dir)
}

// Decode loads one frame image.
func (s *DirectorySource) Decode(path string) (*video.Frame, error) {
	return DecodeFrame(s.FS, path, s.Channels)
}

// DirectoryMaskSink writes segmentation masks into a directory, one PNG per
// frame index.
type DirectoryMaskSink struct {
	FS  fsutil.FileSystem
	Dir string

	dirReady bool
}

// NewDirectoryMaskSink creates a mask sink writing into dir. The directory
// is created on the first write.
func NewDirectoryMaskSink(fsys fsutil.FileSystem, dir string) *DirectoryMaskSink {
	return &DirectoryMaskSink{FS: fsys, Dir: dir}
}

// WriteMask encodes mask as BackgroundSegmentation_<index>.png in the sink
// directory.
func (s *DirectoryMaskSink) WriteMask(index int, mask *video.Mask) error {
	if !s.dirReady {
		if err := s.FS.MkdirAll(s.Dir, 0o755); err != nil {
			return fmt.Errorf("create output directory %s: %w", s.Dir, err)
		}
		s.dirReady = true
	}
	return EncodeMaskPNG(s.FS, filepath.Join(s.Dir, MaskFileName(index)), mask)
}

// FileGroundTruth loads a reference mask from a single BMP or PNG image.
type FileGroundTruth struct {
	FS       fsutil.FileSystem
	FilePath string
}

// NewFileGroundTruth creates a ground truth loader for the given mask image.
func NewFileGroundTruth(fsys fsutil.FileSystem, path string) *FileGroundTruth {
	return &FileGroundTruth{FS: fsys, FilePath: path}
}

// Load decodes the reference mask.
func (g *FileGroundTruth) Load() (*video.Mask, error) {
	return DecodeMask(g.FS, g.FilePath)
}

// Path returns the reference mask's file path.
func (g *FileGroundTruth) Path() string { return g.FilePath }
