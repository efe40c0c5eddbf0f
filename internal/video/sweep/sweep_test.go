package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/banshee-data/motion.report/internal/fsutil"
	"github.com/banshee-data/motion.report/internal/testutil"
	"github.com/banshee-data/motion.report/internal/video"
	"github.com/banshee-data/motion.report/internal/video/imageio"
	"github.com/banshee-data/motion.report/internal/video/storage/sqlite"
)

// sweepSequence writes six uniform frames with a two-pixel intruder on the
// last, plus a ground truth that flags the intruder and one background pixel.
func sweepSequence(t *testing.T, mfs *fsutil.MemoryFileSystem) {
	t.Helper()
	const frames = 6
	for i := 0; i < frames; i++ {
		var hot map[[2]int]uint8
		if i == frames-1 {
			hot = map[[2]int]uint8{{0, 0}: 200, {1, 0}: 200}
		}
		testutil.WriteGrayPNG(t, mfs, filepath.Join("/in", fmt.Sprintf("frame_%03d.png", i)), 8, 8, 100, hot)
	}
	testutil.WriteGrayPNG(t, mfs, "/truth.png", 8, 8, 0, map[[2]int]uint8{
		{0, 0}: 255, {1, 0}: 255, {5, 5}: 255,
	})
}

func newSweepRunner(t *testing.T, mfs *fsutil.MemoryFileSystem, rec SweepRecorder) *Runner {
	t.Helper()
	r, err := NewRunner(
		imageio.NewDirectorySource(mfs, "/in", 1),
		imageio.NewFileGroundTruth(mfs, "/truth.png"),
		rec,
	)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return r
}

// fakeSweepRecorder captures inserted results. Combinations finish
// concurrently, so inserts are serialized with a mutex.
type fakeSweepRecorder struct {
	mu      sync.Mutex
	results []*sqlite.SweepResult
	failure error
}

func (f *fakeSweepRecorder) Insert(res *sqlite.SweepResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return f.failure
	}
	f.results = append(f.results, res)
	return nil
}

// failingTruth always errors on load, which fails every pipeline run.
type failingTruth struct{}

func (failingTruth) Load() (*video.Mask, error) { return nil, errors.New("truth unreadable") }
func (failingTruth) Path() string               { return "/broken.png" }

func TestExpandGridOrdering(t *testing.T) {
	base := video.DefaultBackgroundParams()

	req := Request{Radii: []int{10, 20}, MinSamples: []int{2, 4}}
	combos := expandGrid(req, base)
	want := []Combo{
		{Index: 0, Radius: 10, MinSamples: 2, SubsamplingFactor: base.SubsamplingFactor},
		{Index: 1, Radius: 10, MinSamples: 4, SubsamplingFactor: base.SubsamplingFactor},
		{Index: 2, Radius: 20, MinSamples: 2, SubsamplingFactor: base.SubsamplingFactor},
		{Index: 3, Radius: 20, MinSamples: 4, SubsamplingFactor: base.SubsamplingFactor},
	}
	if len(combos) != len(want) {
		t.Fatalf("got %d combos, want %d", len(combos), len(want))
	}
	for i := range want {
		if combos[i] != want[i] {
			t.Errorf("combo[%d] = %+v, want %+v", i, combos[i], want[i])
		}
	}

	req.SubsamplingFactors = []int{1, 16}
	combos = expandGrid(req, base)
	if len(combos) != 8 {
		t.Fatalf("got %d combos with explicit subsampling, want 8", len(combos))
	}
	// Subsampling varies fastest within a (radius, min samples) pair.
	if combos[0].SubsamplingFactor != 1 || combos[1].SubsamplingFactor != 16 {
		t.Errorf("subsampling order = %d, %d, want 1, 16",
			combos[0].SubsamplingFactor, combos[1].SubsamplingFactor)
	}
	if combos[1].Radius != 10 || combos[1].MinSamples != 2 {
		t.Errorf("combo[1] = %+v, want radius 10 min samples 2", combos[1])
	}
}

func TestRequestValidation(t *testing.T) {
	req := Request{MinSamples: []int{2}}
	if _, err := req.normalize(); err == nil || !strings.Contains(err.Error(), "radius") {
		t.Errorf("empty radii error = %v", err)
	}

	req = Request{Radii: []int{10}}
	if _, err := req.normalize(); err == nil || !strings.Contains(err.Error(), "min-samples") {
		t.Errorf("empty min samples error = %v", err)
	}

	req = Request{Radii: []int{10, 0}, MinSamples: []int{2}}
	_, err := req.normalize()
	if err == nil {
		t.Fatal("expected validation error for radius 0")
	}
	if !strings.Contains(err.Error(), "radius=0") {
		t.Errorf("error should name the bad combination, got %v", err)
	}
	if !errors.Is(err, video.ErrInvalidParameter) {
		t.Errorf("error should wrap ErrInvalidParameter, got %v", err)
	}
}

func TestRequestNormalizeDefaults(t *testing.T) {
	req := Request{Radii: []int{10}, MinSamples: []int{2}, Workers: -3}
	base, err := req.normalize()
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if base != video.DefaultBackgroundParams() {
		t.Errorf("zero params should fall back to defaults, got %+v", base)
	}
	if req.Workers != 1 {
		t.Errorf("workers = %d, want 1", req.Workers)
	}
}

func TestNewRunnerValidation(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	src := imageio.NewDirectorySource(mfs, "/in", 1)
	truth := imageio.NewFileGroundTruth(mfs, "/truth.png")

	if _, err := NewRunner(nil, truth, nil); err == nil {
		t.Error("expected error for nil frame source")
	}
	if _, err := NewRunner(src, nil, nil); err == nil {
		t.Error("expected error for nil ground truth")
	}

	r, err := NewRunner(src, truth, (*sqlite.SweepStore)(nil))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	if r.results != nil {
		t.Error("typed nil recorder should be normalized to nil")
	}
}

// TestSweepRun covers the full grid: a tight radius that catches the
// intruder, a huge radius that swallows it, and a min samples value above
// the store capacity that marks everything foreground.
func TestSweepRun(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	sweepSequence(t, mfs)

	rec := &fakeSweepRecorder{}
	r := newSweepRunner(t, mfs, rec)

	s, err := r.Run(context.Background(), Request{
		Radii:      []int{10, 150},
		MinSamples: []int{2, 4},
		Params: video.BackgroundParams{
			TrainingFrames:    3,
			Radius:            10,
			MinSamples:        2,
			SubsamplingFactor: 1,
		},
		Seed:    7,
		Workers: 2,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(s.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(s.Results))
	}
	if s.FramesTotal != 6 {
		t.Errorf("frames total = %d, want 6", s.FramesTotal)
	}

	// Expected percent correct per combination:
	//   0: radius 10,  min 2 -> TP2 FN1 FP0 TN61 = 63/64
	//   1: radius 10,  min 4 -> min samples above store capacity, everything
	//      foreground: TP3 FP61 = 3/64
	//   2: radius 150, min 2 -> intruder within radius, everything
	//      background: FN3 TN61 = 61/64
	//   3: radius 150, min 4 -> everything foreground again = 3/64
	wantPC := []float64{
		63.0 / 64.0 * 100.0,
		3.0 / 64.0 * 100.0,
		61.0 / 64.0 * 100.0,
		3.0 / 64.0 * 100.0,
	}
	for i, want := range wantPC {
		res := s.Results[i]
		if res.Index != i {
			t.Errorf("result[%d].Index = %d", i, res.Index)
		}
		if math.Abs(res.PercentCorrect-want) > 1e-9 {
			t.Errorf("result[%d] percent correct = %f, want %f", i, res.PercentCorrect, want)
		}
	}
	if s.Results[0].Radius != 10 || s.Results[0].MinSamples != 2 {
		t.Errorf("result[0] combo = %+v", s.Results[0].Combo)
	}
	if s.Results[2].Radius != 150 || s.Results[2].MinSamples != 2 {
		t.Errorf("result[2] combo = %+v", s.Results[2].Combo)
	}

	if s.Best.Index != 0 {
		t.Errorf("best combination index = %d, want 0", s.Best.Index)
	}
	if s.Best.Radius != 10 || s.Best.MinSamples != 2 {
		t.Errorf("best combination = %+v", s.Best.Combo)
	}

	wantMean := (wantPC[0] + wantPC[1] + wantPC[2] + wantPC[3]) / 4
	if math.Abs(s.MeanPercentCorrect-wantMean) > 1e-9 {
		t.Errorf("mean percent correct = %f, want %f", s.MeanPercentCorrect, wantMean)
	}
	if s.StddevPercentCorrect <= 0 {
		t.Errorf("stddev percent correct = %f, want > 0", s.StddevPercentCorrect)
	}
	if math.Abs(s.MedianPercentCorrect-wantPC[1]) > 1e-9 {
		t.Errorf("median percent correct = %f, want %f", s.MedianPercentCorrect, wantPC[1])
	}

	// Every combination was persisted under the sweep id.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.results) != 4 {
		t.Fatalf("recorded %d results, want 4", len(rec.results))
	}
	seen := make(map[int]bool)
	for _, stored := range rec.results {
		if stored.SweepID != s.SweepID {
			t.Errorf("stored sweep id = %q, want %q", stored.SweepID, s.SweepID)
		}
		seen[stored.ComboIndex] = true
		if stored.ComboIndex == 0 && math.Abs(stored.PercentCorrect-wantPC[0]) > 1e-9 {
			t.Errorf("stored combo 0 percent correct = %f", stored.PercentCorrect)
		}
	}
	for i := 0; i < 4; i++ {
		if !seen[i] {
			t.Errorf("combination %d was not recorded", i)
		}
	}

	// Per-combination managers are unregistered once their run finishes.
	for i := 0; i < 4; i++ {
		streamID := fmt.Sprintf("sweep-%s-combo-%03d", s.SweepID[:8], i)
		if video.GetManager(streamID) != nil {
			t.Errorf("manager %s still registered after sweep", streamID)
		}
	}
}

func TestSweepRunSerialMatchesParallel(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	sweepSequence(t, mfs)

	req := Request{
		Radii:      []int{10, 150},
		MinSamples: []int{2},
		Params: video.BackgroundParams{
			TrainingFrames:    3,
			Radius:            10,
			MinSamples:        2,
			SubsamplingFactor: 1,
		},
		Seed: 99,
	}

	serial, err := newSweepRunner(t, mfs, nil).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("serial run failed: %v", err)
	}

	req.Workers = 4
	parallel, err := newSweepRunner(t, mfs, nil).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("parallel run failed: %v", err)
	}

	if len(serial.Results) != len(parallel.Results) {
		t.Fatalf("result counts differ: %d vs %d", len(serial.Results), len(parallel.Results))
	}
	for i := range serial.Results {
		a, b := serial.Results[i], parallel.Results[i]
		if a.PercentCorrect != b.PercentCorrect || a.F1 != b.F1 || a.MeanForeground != b.MeanForeground {
			t.Errorf("result[%d] differs between serial and parallel: %+v vs %+v", i, a, b)
		}
	}
}

func TestSweepRunComboFailure(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	sweepSequence(t, mfs)

	r, err := NewRunner(imageio.NewDirectorySource(mfs, "/in", 1), failingTruth{}, nil)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	_, err = r.Run(context.Background(), Request{
		Radii:      []int{10},
		MinSamples: []int{2},
		Params: video.BackgroundParams{
			TrainingFrames:    3,
			Radius:            10,
			MinSamples:        2,
			SubsamplingFactor: 1,
		},
		Seed: 7,
	})
	if err == nil {
		t.Fatal("expected sweep failure")
	}
	if !strings.Contains(err.Error(), "combination 0") {
		t.Errorf("error should name the failed combination, got %v", err)
	}
	if !strings.Contains(err.Error(), "truth unreadable") {
		t.Errorf("error should carry the cause, got %v", err)
	}
}

func TestSweepRunCanceled(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	sweepSequence(t, mfs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSweepRunner(t, mfs, nil).Run(ctx, Request{
		Radii:      []int{10},
		MinSamples: []int{2},
		Seed:       7,
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !strings.Contains(err.Error(), "sweep canceled") {
		t.Errorf("error = %v, want sweep canceled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled, got %v", err)
	}
}

func TestSweepRecorderFailureIsNonFatal(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	sweepSequence(t, mfs)

	rec := &fakeSweepRecorder{failure: errors.New("db locked")}
	s, err := newSweepRunner(t, mfs, rec).Run(context.Background(), Request{
		Radii:      []int{10},
		MinSamples: []int{2},
		Params: video.BackgroundParams{
			TrainingFrames:    3,
			Radius:            10,
			MinSamples:        2,
			SubsamplingFactor: 1,
		},
		Seed: 7,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(s.Results) != 1 {
		t.Errorf("got %d results, want 1", len(s.Results))
	}
}
