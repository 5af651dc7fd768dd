package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"protmetrics/pkg/config"
	pm "protmetrics/pkg/protmetrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	inputDir := flag.String("input", "", "Directory containing input images (searched recursively)")
	outputDir := flag.String("output", "", "Output directory for tables and overlays")
	suffix := flag.String("suffix", "", "Input filename suffix filter")
	channel := flag.Int("channel", 0, "1-based analysis channel index")
	pruneLength := flag.Float64("prune-length", -1, "Skeleton pruning threshold in physical units (enables size pruning)")
	cellMasking := flag.Bool("cell-masking", false, "Exclude segmented cell bodies from the protrusion mask")
	topHat := flag.Bool("tophat", false, "Apply top-hat conditioning before tube enhancement")
	configPath := flag.String("config", "protmetrics.yaml", "YAML configuration file")
	saveIntermediates := flag.String("save-intermediates", "", "Directory receiving per-stage debug images")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *inputDir == "" {
		flag.Usage()
		return fmt.Errorf("missing -input directory")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	// Flags override the config file where given.
	if *outputDir != "" {
		cfg.Batch.OutputDir = *outputDir
	}
	if *suffix != "" {
		cfg.Batch.Suffix = *suffix
	}
	if *channel > 0 {
		cfg.Pipeline.Channel = *channel
	}
	if *pruneLength >= 0 {
		cfg.Pipeline.PruneMode = "size"
		cfg.Pipeline.LengthThreshold = *pruneLength
	}
	if *cellMasking {
		cfg.Pipeline.UseCellMasking = true
	}
	if *topHat {
		cfg.Pipeline.UseTopHat = true
	}
	if *saveIntermediates != "" {
		cfg.Output.SaveIntermediates = *saveIntermediates
	}
	if *verbose {
		cfg.Output.Verbose = true
	}

	level := zerolog.InfoLevel
	if cfg.Output.Verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Logger()

	params, err := pipelineParams(cfg)
	if err != nil {
		return err
	}

	batch := &pm.Batch{
		InputDir:  *inputDir,
		OutputDir: cfg.Batch.OutputDir,
		Suffix:    cfg.Batch.Suffix,
		Params:    params,
		Log:       log,
	}

	startTime := time.Now()
	report, err := batch.Run()
	if err != nil {
		return err
	}
	elapsed := time.Since(startTime)

	fmt.Println()
	fmt.Printf("=== Protrusion Quantification Results (%.1fs) ===\n", elapsed.Seconds())
	fmt.Printf("  Files matched:   %d\n", report.Matched)
	fmt.Printf("  Processed:       %d\n", report.Processed)
	fmt.Printf("  Skipped:         %d\n", report.Skipped)
	fmt.Printf("  Summary table:   %s\n", batch.SummaryPath())
	fmt.Println("=================================================")

	return nil
}

func pipelineParams(cfg *config.Config) (*pm.PipelineParams, error) {
	params := pm.NewPipelineParams()
	params.Channel = cfg.Pipeline.Channel
	params.UseCellMasking = cfg.Pipeline.UseCellMasking
	params.UseTopHat = cfg.Pipeline.UseTopHat
	params.TopHatRadius = cfg.Pipeline.TopHatRadius
	params.BlurSigma = cfg.Pipeline.BlurSigma
	params.LengthThreshold = cfg.Pipeline.LengthThreshold
	params.ProtrusionPercentile = cfg.Pipeline.ProtrusionPercentile
	params.SaveIntermediateFilesPath = cfg.Output.SaveIntermediates
	if len(cfg.Pipeline.VesselnessScales) > 0 {
		params.VesselnessScales = cfg.Pipeline.VesselnessScales
	}

	mode, err := pm.ParsePruneMode(cfg.Pipeline.PruneMode)
	if err != nil {
		return nil, err
	}
	params.PruneMode = mode
	return params, nil
}
