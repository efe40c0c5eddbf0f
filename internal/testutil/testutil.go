// Package testutil provides assertion helpers and image fixtures shared by
// tests across the module. Handler tests use the assert helpers; pipeline
// and sweep tests build synthetic frame sequences with WriteGrayPNG.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/banshee-data/motion.report/internal/fsutil"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// WriteGrayPNG encodes an 8-bit grayscale PNG into the filesystem. pixels
// overrides individual (x,y) values on top of base. Sequence-oriented tests
// use it to assemble input frames and ground-truth masks.
func WriteGrayPNG(t *testing.T, fsys fsutil.FileSystem, path string, width, height int, base uint8, pixels map[[2]int]uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = base
	}
	for xy, v := range pixels {
		img.SetGray(xy[0], xy[1], color.Gray{Y: v})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
