package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/motion.report/internal/fsutil"
	"github.com/banshee-data/motion.report/internal/video"
	"github.com/banshee-data/motion.report/internal/video/imageio"
	"github.com/banshee-data/motion.report/internal/video/storage/sqlite"
	"github.com/banshee-data/motion.report/internal/video/sweep"
)

var (
	inputDir       = flag.String("input", "", "Directory of numbered frame images to segment")
	truthPath      = flag.String("truth", "", "Ground truth mask image scored against every combination")
	channels       = flag.Int("channels", 1, "Color channels to model: 1 (grayscale) or 3 (RGB)")
	radiiList      = flag.String("radii", "", "Comma-separated match radius values to try, e.g. 10,20,40")
	minSamplesList = flag.String("min-samples", "", "Comma-separated min-sample thresholds to try, e.g. 1,2,4")
	subList        = flag.String("subsampling", "", "Comma-separated subsampling factors to try (empty: keep base value)")
	trainingFrames = flag.Int("training-frames", 0, "Frames used to seed each model (0: default)")
	seed           = flag.Int64("seed", 0, "Base RNG seed; each combination derives its own (0: time-based)")
	workers        = flag.Int("workers", 1, "Combinations evaluated concurrently")
	csvPath        = flag.String("csv", "", "CSV results output path (empty: stdout)")
	plotPath       = flag.String("plot", "", "Score plot PNG output path (optional)")
	reportPath     = flag.String("report", "", "Interactive HTML report output path (optional)")
	dbFile         = flag.String("db", "", "SQLite database path for persisting results (empty: no persistence)")
)

func main() {
	flag.Parse()

	if *inputDir == "" || *truthPath == "" {
		fmt.Fprintln(os.Stderr, "A sweep needs both -input (frame directory) and -truth (ground truth mask)")
		flag.Usage()
		os.Exit(1)
	}
	if *channels != 1 && *channels != 3 {
		log.Fatalf("Invalid -channels %d: must be 1 (grayscale) or 3 (RGB)", *channels)
	}

	radii, err := sweep.ParseCSVInts(*radiiList)
	if err != nil {
		log.Fatalf("Invalid -radii: %v", err)
	}
	minSamples, err := sweep.ParseCSVInts(*minSamplesList)
	if err != nil {
		log.Fatalf("Invalid -min-samples: %v", err)
	}
	subs, err := sweep.ParseCSVInts(*subList)
	if err != nil {
		log.Fatalf("Invalid -subsampling: %v", err)
	}

	params := video.DefaultBackgroundParams()
	if *trainingFrames > 0 {
		params.TrainingFrames = *trainingFrames
	}

	fsys := fsutil.OSFileSystem{}
	frames := imageio.NewDirectorySource(fsys, *inputDir, *channels)
	truth := imageio.NewFileGroundTruth(fsys, *truthPath)

	var recorder sweep.SweepRecorder
	if *dbFile != "" {
		db, err := sqlite.NewDB(*dbFile)
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
		recorder = sqlite.NewSweepStore(db.DB)
	}

	runner, err := sweep.NewRunner(frames, truth, recorder)
	if err != nil {
		log.Fatalf("Failed to build sweep runner: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := runner.Run(ctx, sweep.Request{
		Radii:              radii,
		MinSamples:         minSamples,
		SubsamplingFactors: subs,
		Params:             params,
		Seed:               *seed,
		Workers:            *workers,
	})
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	if *csvPath == "" {
		if err := sweep.WriteCSV(os.Stdout, summary); err != nil {
			log.Fatalf("Failed to write CSV: %v", err)
		}
	} else {
		if err := writeCSVFile(*csvPath, summary); err != nil {
			log.Fatalf("Failed to write CSV %s: %v", *csvPath, err)
		}
		log.Printf("Wrote CSV results to %s", *csvPath)
	}

	if *plotPath != "" {
		if err := sweep.SaveScorePlot(summary, *plotPath); err != nil {
			log.Fatalf("Failed to save plot %s: %v", *plotPath, err)
		}
		log.Printf("Wrote score plot to %s", *plotPath)
	}

	if *reportPath != "" {
		if err := writeReportFile(*reportPath, summary); err != nil {
			log.Fatalf("Failed to write report %s: %v", *reportPath, err)
		}
		log.Printf("Wrote HTML report to %s", *reportPath)
	}

	best := summary.Best
	log.Printf("Sweep %s: %d combinations over %d frames", summary.SweepID, len(summary.Results), summary.FramesTotal)
	log.Printf("Best: radius=%d min_samples=%d subsampling=%d -> %.2f%% correct (F1 %.4f, IoU %.4f)",
		best.Radius, best.MinSamples, best.SubsamplingFactor, best.PercentCorrect, best.F1, best.IoU)
	log.Printf("Percent correct: mean %.2f stddev %.2f median %.2f; F1: mean %.4f stddev %.4f",
		summary.MeanPercentCorrect, summary.StddevPercentCorrect, summary.MedianPercentCorrect,
		summary.MeanF1, summary.StddevF1)
}

func writeCSVFile(path string, s *sweep.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := sweep.WriteCSV(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeReportFile(path string, s *sweep.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := sweep.WriteHTMLReport(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
