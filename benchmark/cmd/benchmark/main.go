package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nvr-ai/player-overlay/benchmark"
	"github.com/nvr-ai/player-overlay/capture"
	"github.com/nvr-ai/player-overlay/config"
	"github.com/nvr-ai/player-overlay/images"
	"github.com/nvr-ai/player-overlay/inference"
	"github.com/nvr-ai/player-overlay/onnx"
)

func main() {
	var (
		configFile   = flag.String("config", config.DefaultPath, "player-overlay configuration for model options")
		scenarioFile = flag.String("scenarios", "", "Path to a YAML scenario set")
		outputDir    = flag.String("output", "./benchmark_results", "Output directory for results")
		frames       = flag.String("frames", "", "Directory of harvested screenshots")
		prefix       = flag.String("prefix", "", "Only use screenshots with this prefix")
		roi          = flag.String("roi", "", "Region left,top,width,height (default: whole screenshot)")
		strides      = flag.Bool("strides", false, "Compare window strides")
		pyramid      = flag.Bool("pyramid", false, "Compare pyramid scales")
		timeout      = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
	)
	flag.Parse()

	if *frames == "" {
		log.Fatal("Screenshot directory is required (-frames)")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	opts, err := cfg.ONNXOptions(logger)
	if err != nil {
		log.Fatalf("Invalid model options: %v", err)
	}

	replay, err := capture.NewReplay(*frames, *prefix, logger)
	if err != nil {
		log.Fatalf("Failed to load frames: %v", err)
	}
	region := images.RegionFromRect(replay.Bounds())
	if *roi != "" {
		if region, err = images.ParseRegion(*roi); err != nil {
			log.Fatalf("Invalid -roi: %v", err)
		}
	}

	open := func(batch int) (inference.Classifier, error) {
		o := opts
		o.BatchSize = batch
		return onnx.Load(cfg.Model, o)
	}
	suite := benchmark.NewSuite(open, replay, region, *outputDir, logger)

	var sets []*benchmark.ScenarioSet
	switch {
	case *scenarioFile != "":
		set, err := benchmark.LoadScenarioSet(*scenarioFile)
		if err != nil {
			log.Fatalf("Failed to load scenario file: %v", err)
		}
		sets = append(sets, set)
	default:
		if *strides {
			sets = append(sets, benchmark.StrideScenarios())
		}
		if *pyramid {
			sets = append(sets, benchmark.PyramidScenarios())
		}
		if len(sets) == 0 {
			sets = append(sets, benchmark.QuickScenarios())
		}
	}
	for _, set := range sets {
		suite.AddScenario(set.Scenarios...)
		logger.Info("scenarios added", "set", set.Name, "count", len(set.Scenarios))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	if err := suite.RunAllScenarios(ctx); err != nil {
		log.Fatalf("Benchmark execution failed: %v", err)
	}

	results := suite.GetResults()
	fmt.Printf("\n=== BENCHMARK RESULTS SUMMARY ===\n")
	fmt.Printf("Completed in %v over %d frames of %s\n", time.Since(start).Truncate(time.Millisecond), replay.Len(), region)
	fmt.Printf("Total scenarios: %d\n", len(results))
	fmt.Printf("Results saved to: %s\n", *outputDir)

	var bestFPS float64
	var bestScenario string
	for _, result := range results {
		if result.FramesPerSecond > bestFPS {
			bestFPS = result.FramesPerSecond
			bestScenario = result.Scenario.Name
		}
		fmt.Printf("  %s: %.2f FPS, %.0f windows/s, %.1f windows/frame\n",
			result.Scenario.Name,
			result.FramesPerSecond,
			result.WindowsPerSecond,
			result.AvgWindows)
	}

	fmt.Printf("\nBest performing scenario: %s (%.2f FPS)\n", bestScenario, bestFPS)
}

func init() {
	flag.Usage = func() {
		name := filepath.Base(os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", name)
		fmt.Fprintf(os.Stderr, "Measures scan throughput over harvested screenshots.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -frames ./screenshots\n", name)
		fmt.Fprintf(os.Stderr, "  %s -frames ./screenshots -strides -pyramid\n", name)
		fmt.Fprintf(os.Stderr, "  %s -frames ./screenshots -scenarios ./scenarios.yaml\n", name)
	}
}
