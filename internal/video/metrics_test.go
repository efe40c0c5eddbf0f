package video

import "testing"

func TestComputeMaskMetrics(t *testing.T) {
	mk := NewMask(4, 2)
	mk.Set(0, 0, MaskForeground)
	mk.Set(3, 1, MaskForeground)

	got := ComputeMaskMetrics(7, mk, 1500)
	if got.FrameIndex != 7 || got.ProcessingTimeUs != 1500 {
		t.Fatalf("identity fields: %+v", got)
	}
	if got.TotalPixels != 8 || got.ForegroundPixels != 2 || got.BackgroundPixels != 6 {
		t.Fatalf("pixel counts: %+v", got)
	}
	if got.ForegroundFraction != 0.25 {
		t.Fatalf("fraction %f, want 0.25", got.ForegroundFraction)
	}
}

func TestComputeMaskMetricsNilMask(t *testing.T) {
	got := ComputeMaskMetrics(3, nil, 200)
	if got.FrameIndex != 3 || got.ProcessingTimeUs != 200 {
		t.Fatalf("identity fields: %+v", got)
	}
	if got.TotalPixels != 0 || got.ForegroundPixels != 0 || got.ForegroundFraction != 0 {
		t.Fatalf("nil mask must produce zero counts: %+v", got)
	}
}
