package video

import "fmt"

// Channel counts supported by the segmentation model.
const (
	// ChannelsGray is a single-channel (grayscale) frame layout.
	ChannelsGray = 1
	// ChannelsRGB is a three-channel (red, green, blue) frame layout.
	ChannelsRGB = 3
)

// Mask pixel values. Foreground uses 255 so masks render directly as
// white-on-black PNG images.
const (
	MaskBackground uint8 = 0
	MaskForeground uint8 = 255
)

// Frame is a decoded video frame: a Width x Height grid of pixels, each pixel
// a fixed-length vector of Channels 8-bit values, stored row-major in Pix.
// Frames are immutable once loaded; the model borrows them for the duration
// of a call and never retains them.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8 // len = Width * Height * Channels
}

// NewFrame allocates a zeroed frame with the given geometry.
func NewFrame(width, height, channels int) *Frame {
	return &Frame{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}
}

// PixelOffset returns the index into Pix of the first channel of pixel (x, y).
func (f *Frame) PixelOffset(x, y int) int { return (y*f.Width + x) * f.Channels }

// At returns the color vector of pixel (x, y) as a subslice of Pix.
// The caller must not mutate it.
func (f *Frame) At(x, y int) []uint8 {
	off := f.PixelOffset(x, y)
	return f.Pix[off : off+f.Channels]
}

// Validate checks internal consistency of the frame geometry and buffer.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("frame is nil")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame dimensions %dx%d invalid", f.Width, f.Height)
	}
	if f.Channels != ChannelsGray && f.Channels != ChannelsRGB {
		return fmt.Errorf("frame channel count %d unsupported", f.Channels)
	}
	if len(f.Pix) != f.Width*f.Height*f.Channels {
		return fmt.Errorf("frame buffer length %d does not match %dx%dx%d", len(f.Pix), f.Width, f.Height, f.Channels)
	}
	return nil
}

// Mask is a single-channel segmentation result, same dimensions as the frame
// it was produced from. Each value is MaskBackground or MaskForeground.
// A mask is produced fresh per Segment call; ownership passes to the caller.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8 // len = Width * Height
}

// NewMask allocates an all-background mask with the given dimensions.
func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// At returns the mask value at (x, y).
func (m *Mask) At(x, y int) uint8 { return m.Pix[y*m.Width+x] }

// Set writes the mask value at (x, y).
func (m *Mask) Set(x, y int, v uint8) { m.Pix[y*m.Width+x] = v }

// ForegroundPixels counts the foreground entries in the mask.
func (m *Mask) ForegroundPixels() int {
	if m == nil {
		return 0
	}
	n := 0
	for _, v := range m.Pix {
		if v == MaskForeground {
			n++
		}
	}
	return n
}
