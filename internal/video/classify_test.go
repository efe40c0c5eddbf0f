package video

import (
	"bytes"
	"testing"
)

// A pixel is background exactly when at least MinSamples stored samples sit
// within Radius of the current color.
func TestClassifyMatchThreshold(t *testing.T) {
	cases := []struct {
		name       string
		minSamples int
		color      uint8
		want       uint8
	}{
		{"two near samples meet min two", 2, 12, MaskBackground},
		{"two near samples miss min three", 3, 12, MaskForeground},
		{"all samples far", 2, 120, MaskForeground},
		{"exact radius boundary counts", 3, 20, MaskBackground},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := BackgroundParams{TrainingFrames: 3, Radius: 10, MinSamples: tc.minSamples, SubsamplingFactor: 16}
			m := makeTestModel(t, 1, 1, ChannelsGray, params, NewSeededSource(1))
			// stores hold {10, 10, 30}: color 12 matches two, color 20
			// matches all three at distance exactly Radius
			frames := []*Frame{
				uniformFrame(1, 1, ChannelsGray, 10),
				uniformFrame(1, 1, ChannelsGray, 10),
				uniformFrame(1, 1, ChannelsGray, 30),
			}
			if err := m.Train(frames); err != nil {
				t.Fatalf("Train: %v", err)
			}

			f := uniformFrame(1, 1, ChannelsGray, tc.color)
			if got := m.classifyAt(f.Pix, 0); got != tc.want {
				t.Fatalf("color %d: got %d, want %d", tc.color, got, tc.want)
			}
		})
	}
}

// Color distance is squared Euclidean summed over channels, not per-channel.
func TestClassifyRGBDistanceSumsChannels(t *testing.T) {
	params := BackgroundParams{TrainingFrames: 1, Radius: 10, MinSamples: 1, SubsamplingFactor: 16}
	m := makeTestModel(t, 1, 1, ChannelsRGB, params, NewSeededSource(1))
	trainUniform(t, m, 10)

	// (16,16,16) vs (10,10,10): distance^2 = 3*36 = 108 > 10^2
	f := uniformFrame(1, 1, ChannelsRGB, 16)
	if got := m.classifyAt(f.Pix, 0); got != MaskForeground {
		t.Fatalf("radius 10: got %d, want foreground", got)
	}

	// radius 11 gives 121 >= 108, so the same color is background
	params.Radius = 11
	m2 := makeTestModel(t, 1, 1, ChannelsRGB, params, NewSeededSource(1))
	trainUniform(t, m2, 10)
	if got := m2.classifyAt(f.Pix, 0); got != MaskBackground {
		t.Fatalf("radius 11: got %d, want background", got)
	}
}

// Growing the radius can only turn foreground into background, never the
// other way around.
func TestClassifyRadiusMonotonic(t *testing.T) {
	colors := []uint8{0, 5, 10, 18, 25, 40, 90, 200, 255}
	for _, r := range []struct{ small, large int }{{5, 10}, {10, 30}, {30, 120}} {
		small := BackgroundParams{TrainingFrames: 2, Radius: r.small, MinSamples: 2, SubsamplingFactor: 16}
		large := small
		large.Radius = r.large

		ms := makeTestModel(t, 1, 1, ChannelsGray, small, NewSeededSource(1))
		ml := makeTestModel(t, 1, 1, ChannelsGray, large, NewSeededSource(1))
		frames := []*Frame{
			uniformFrame(1, 1, ChannelsGray, 20),
			uniformFrame(1, 1, ChannelsGray, 28),
		}
		if err := ms.Train(frames); err != nil {
			t.Fatalf("Train small: %v", err)
		}
		if err := ml.Train(frames); err != nil {
			t.Fatalf("Train large: %v", err)
		}

		for _, c := range colors {
			f := uniformFrame(1, 1, ChannelsGray, c)
			gotSmall := ms.classifyAt(f.Pix, 0)
			gotLarge := ml.classifyAt(f.Pix, 0)
			if gotSmall == MaskBackground && gotLarge == MaskForeground {
				t.Fatalf("color %d: background at radius %d but foreground at radius %d", c, r.small, r.large)
			}
		}
	}
}

// Classification mutates nothing, so repeating it on the same state must
// produce byte-identical masks regardless of the worker count.
func TestClassifyFrameDeterministic(t *testing.T) {
	params := BackgroundParams{TrainingFrames: 4, Radius: 15, MinSamples: 2, SubsamplingFactor: 16}
	m := makeTestModel(t, 17, 9, ChannelsGray, params, NewSeededSource(7))

	frames := make([]*Frame, 4)
	for i := range frames {
		f := NewFrame(17, 9, ChannelsGray)
		for p := range f.Pix {
			f.Pix[p] = uint8((p*13 + i*31) % 256)
		}
		frames[i] = f
	}
	if err := m.Train(frames); err != nil {
		t.Fatalf("Train: %v", err)
	}

	probe := NewFrame(17, 9, ChannelsGray)
	for p := range probe.Pix {
		probe.Pix[p] = uint8((p * 29) % 256)
	}

	var first []uint8
	for _, workers := range []int{1, 3, 8} {
		m.SetClassifyWorkers(workers)
		mask := NewMask(17, 9)
		m.classifyFrame(probe, mask)
		if first == nil {
			first = append([]uint8(nil), mask.Pix...)
			continue
		}
		if !bytes.Equal(first, mask.Pix) {
			t.Fatalf("workers=%d produced a different mask", workers)
		}
	}
}
