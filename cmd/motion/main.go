package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/fsutil"
	"github.com/banshee-data/motion.report/internal/version"
	"github.com/banshee-data/motion.report/internal/video"
	"github.com/banshee-data/motion.report/internal/video/imageio"
	"github.com/banshee-data/motion.report/internal/video/monitor"
	"github.com/banshee-data/motion.report/internal/video/pipeline"
	"github.com/banshee-data/motion.report/internal/video/storage/sqlite"
)

var (
	inputDir        = flag.String("input", "", "Directory of numbered frame images to segment")
	outputDir       = flag.String("output", "", "Directory for foreground mask PNGs (empty: masks are not written)")
	truthPath       = flag.String("truth", "", "Ground truth mask image for accuracy evaluation")
	channels        = flag.Int("channels", 1, "Color channels to model: 1 (grayscale) or 3 (RGB)")
	configPath      = flag.String("config", "", "Segmentation config JSON file (flags override its values)")
	streamID        = flag.String("stream", "", "Stream identifier for the model registry")
	trainingFrames  = flag.Int("training-frames", 0, "Frames used to seed the model (0: config default)")
	radius          = flag.Int("radius", 0, "Color distance match radius (0: config default)")
	minSamples      = flag.Int("min-samples", 0, "Sample matches required to claim background (0: config default)")
	subsampling     = flag.Int("subsampling", 0, "Update probability factor, 1-in-N (0: config default)")
	seed            = flag.Int64("seed", 0, "Random seed for reproducible runs (0: time-based)")
	workers         = flag.Int("workers", 0, "Concurrent classification workers (0: one per CPU)")
	persistInterval = flag.Int("persist-interval", 0, "Persist a model snapshot every N frames (0: final frame only)")
	dbFile          = flag.String("db", "", "SQLite database path for run history and snapshots (empty: no persistence)")
	listen          = flag.String("listen", "", "HTTP monitor listen address, e.g. :8080 (empty: no monitor)")
	hold            = flag.Bool("hold", false, "Keep the HTTP monitor serving after the sequence completes")
	debugLog        = flag.String("debug-log", "", "File for verbose model diagnostics, or 'stderr' (empty: off)")
	showVersion     = flag.Bool("version", false, "Print version and exit")
)

// openDebugLog resolves the -debug-log flag value to a writer.
func openDebugLog(path string) (io.Writer, error) {
	if path == "stderr" {
		return os.Stderr, nil
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("motion.report %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	// Subcommands run before the pipeline flow so that "motion migrate up"
	// works without an input sequence.
	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "migrate":
			if *dbFile == "" {
				log.Fatalf("migrate requires -db <path>")
			}
			sqlite.RunMigrateCommand(flag.Args()[1:], *dbFile)
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", flag.Arg(0))
			flag.Usage()
			os.Exit(1)
		}
	}

	if *inputDir == "" {
		fmt.Fprintln(os.Stderr, "No input sequence: use -input to point at a directory of frames")
		flag.Usage()
		os.Exit(1)
	}
	if *channels != 1 && *channels != 3 {
		log.Fatalf("Invalid -channels %d: must be 1 (grayscale) or 3 (RGB)", *channels)
	}

	if *debugLog != "" {
		w, err := openDebugLog(*debugLog)
		if err != nil {
			log.Fatalf("Failed to open debug log %s: %v", *debugLog, err)
		}
		video.SetLogWriters(video.LogWriters{Ops: w, Diag: w, Trace: w})
		pipeline.SetLogWriters(w, w, w)
	}

	cfg := &config.SegmentationConfig{}
	if *configPath != "" {
		loaded, err := config.LoadSegmentationConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}

	params := cfg.Params()
	if *trainingFrames > 0 {
		params.TrainingFrames = *trainingFrames
	}
	if *radius > 0 {
		params.Radius = *radius
	}
	if *minSamples > 0 {
		params.MinSamples = *minSamples
	}
	if *subsampling > 0 {
		params.SubsamplingFactor = *subsampling
	}
	if err := params.Validate(); err != nil {
		log.Fatalf("Invalid segmentation parameters: %v", err)
	}

	sid := *streamID
	if sid == "" {
		sid = cfg.GetStreamID()
	}
	runSeed := *seed
	if runSeed == 0 {
		runSeed = cfg.GetSeed()
	}
	classifyWorkers := *workers
	if classifyWorkers == 0 {
		classifyWorkers = cfg.GetClassifyWorkers()
	}
	persistEvery := *persistInterval
	if persistEvery == 0 {
		persistEvery = cfg.GetPersistInterval()
	}

	fsys := fsutil.OSFileSystem{}

	pipeCfg := pipeline.Config{
		Frames:          imageio.NewDirectorySource(fsys, *inputDir, *channels),
		StreamID:        sid,
		Params:          params,
		Seed:            runSeed,
		ClassifyWorkers: classifyWorkers,
		PersistInterval: persistEvery,
		InputDir:        *inputDir,
		OutputDir:       *outputDir,
	}
	if *outputDir != "" {
		if err := fsys.MkdirAll(*outputDir, 0o755); err != nil {
			log.Fatalf("Failed to create output directory %s: %v", *outputDir, err)
		}
		pipeCfg.Masks = imageio.NewDirectoryMaskSink(fsys, *outputDir)
	}
	if *truthPath != "" {
		pipeCfg.Truth = imageio.NewFileGroundTruth(fsys, *truthPath)
	}

	var db *sqlite.DB
	if *dbFile != "" {
		var err error
		db, err = sqlite.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open database %s: %v", *dbFile, err)
		}
		defer db.Close()

		shouldExit, err := db.CheckAndPromptMigrations()
		if err != nil {
			log.Fatalf("Migration check failed: %v", err)
		}
		if shouldExit {
			os.Exit(1)
		}

		pipeCfg.Runs = sqlite.NewRunStore(db.DB)
		pipeCfg.FrameMetrics = sqlite.NewFrameMetricsStore(db.DB)
		pipeCfg.Evaluations = sqlite.NewEvaluationStore(db.DB)
		pipeCfg.Snapshots = sqlite.NewSnapshotStore(db.DB)
	}

	pl, err := pipeline.New(pipeCfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if *listen != "" {
		ws, err := monitor.NewWebServer(monitor.WebServerConfig{
			Address:  *listen,
			StreamID: sid,
			DB:       db,
		})
		if err != nil {
			log.Fatalf("Failed to build web server: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(ctx); err != nil {
				log.Printf("Web server error: %v", err)
			}
		}()
	}

	log.Printf("motion.report %s: segmenting %s (stream %s, radius=%d min_samples=%d subsampling=%d training_frames=%d)",
		version.Version, *inputDir, sid, params.Radius, params.MinSamples, params.SubsamplingFactor, params.TrainingFrames)

	result, err := pl.Run(ctx)
	if err != nil {
		stop()
		wg.Wait()
		log.Fatalf("Segmentation failed: %v", err)
	}

	log.Printf("Run %s complete: %d/%d frames (%dx%d) segmented in %s, mean foreground %.2f%%",
		result.RunID, result.FramesSegmented, result.FramesTotal, result.Width, result.Height,
		result.Elapsed.Round(time.Millisecond), result.MeanForeground*100)
	if result.Evaluation != nil {
		ev := result.Evaluation
		log.Printf("Evaluation vs %s: %.2f%% correct (precision %.4f recall %.4f F1 %.4f IoU %.4f)",
			*truthPath, ev.PercentCorrect, ev.Precision, ev.Recall, ev.F1, ev.IoU)
	}

	if *listen != "" && *hold {
		log.Printf("Sequence complete; monitor still serving on %s (Ctrl-C to exit)", *listen)
		<-ctx.Done()
	}

	stop()
	wg.Wait()
	log.Println("Graceful shutdown complete")
}
