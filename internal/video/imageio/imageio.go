// Package imageio loads video frames from image sequences on a FileSystem
// and writes segmentation masks back out as PNG files. Sequences are plain
// directories of numbered PNG/JPEG/BMP images; ground-truth masks are
// black-and-white images of the same geometry.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sort"
	"strings"

	_ "image/jpeg"

	_ "golang.org/x/image/bmp"

	"github.com/banshee-data/motion.report/internal/fsutil"
	"github.com/banshee-data/motion.report/internal/video"
)

// maskFilePattern names segmentation outputs by frame index.
const maskFilePattern = "BackgroundSegmentation_%d.png"

// MaskFileName returns the output file name for the mask of frame index i.
func MaskFileName(i int) string {
	return fmt.Sprintf(maskFilePattern, i)
}

// sequenceExts are the file extensions recognised as sequence frames.
var sequenceExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
}

// ListSequence returns the full paths of the image files directly under dir,
// sorted by name. Zero-padded frame numbering sorts into frame order; the
// caller is responsible for naming frames so lexical order is frame order.
func ListSequence(fsys fsutil.FileSystem, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list sequence %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !sequenceExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// DecodeFrame reads and decodes one image file into a Frame with the given
// channel count. PNG, JPEG and BMP are supported; color images are collapsed
// to luma when channels is ChannelsGray.
func DecodeFrame(fsys fsutil.FileSystem, path string, channels int) (*video.Frame, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	frame, err := FrameFromImage(img, channels)
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", path, err)
	}
	return frame, nil
}

// FrameFromImage converts a decoded image into a Frame. channels selects the
// layout: ChannelsGray stores one luma value per pixel, ChannelsRGB stores
// three 8-bit values per pixel.
func FrameFromImage(img image.Image, channels int) (*video.Frame, error) {
	if channels != video.ChannelsGray && channels != video.ChannelsRGB {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("image has empty bounds %v", b)
	}
	frame := video.NewFrame(w, h, channels)

	switch src := img.(type) {
	case *image.Gray:
		if channels == video.ChannelsGray {
			for y := 0; y < h; y++ {
				copy(frame.Pix[y*w:(y+1)*w], src.Pix[y*src.Stride:y*src.Stride+w])
			}
			return frame, nil
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := src.Pix[y*src.Stride+x]
				off := frame.PixelOffset(x, y)
				frame.Pix[off], frame.Pix[off+1], frame.Pix[off+2] = v, v, v
			}
		}
		return frame, nil
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				s := y*src.Stride + x*4
				setPixel(frame, x, y, src.Pix[s], src.Pix[s+1], src.Pix[s+2])
			}
		}
		return frame, nil
	case *image.RGBA:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				s := y*src.Stride + x*4
				setPixel(frame, x, y, src.Pix[s], src.Pix[s+1], src.Pix[s+2])
			}
		}
		return frame, nil
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bch, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			setPixel(frame, x, y, uint8(r>>8), uint8(g>>8), uint8(bch>>8))
		}
	}
	return frame, nil
}

// setPixel stores an 8-bit RGB triple into the frame, collapsing to luma for
// single-channel frames using the Rec. 601 weights color.GrayModel uses.
func setPixel(frame *video.Frame, x, y int, r, g, b uint8) {
	off := frame.PixelOffset(x, y)
	if frame.Channels == video.ChannelsRGB {
		frame.Pix[off], frame.Pix[off+1], frame.Pix[off+2] = r, g, b
		return
	}
	frame.Pix[off] = color.GrayModel.Convert(color.NRGBA{R: r, G: g, B: b, A: 255}).(color.Gray).Y
}

// DecodeMask reads a black-and-white image as a segmentation mask. Any pixel
// with luma 128 or above is foreground; everything below is background.
func DecodeMask(fsys fsutil.FileSystem, path string) (*video.Mask, error) {
	frame, err := DecodeFrame(fsys, path, video.ChannelsGray)
	if err != nil {
		return nil, err
	}
	mask := video.NewMask(frame.Width, frame.Height)
	for i, v := range frame.Pix {
		if v >= 128 {
			mask.Pix[i] = video.MaskForeground
		}
	}
	return mask, nil
}

// MaskImage renders a mask as an 8-bit grayscale image, foreground white.
func MaskImage(mask *video.Mask) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, mask.Width, mask.Height))
	for y := 0; y < mask.Height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+mask.Width], mask.Pix[y*mask.Width:(y+1)*mask.Width])
	}
	return img
}

// EncodeMaskPNG writes a mask to path as a white-on-black PNG.
func EncodeMaskPNG(fsys fsutil.FileSystem, path string, mask *video.Mask) error {
	if mask == nil {
		return fmt.Errorf("nil mask")
	}
	w, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create mask file %s: %w", path, err)
	}
	if err := png.Encode(w, MaskImage(mask)); err != nil {
		w.Close()
		return fmt.Errorf("encode mask %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close mask file %s: %w", path, err)
	}
	return nil
}
