package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/soniakeys/unit"

	"profilemodel/pkg/config"
	"profilemodel/pkg/profile"
	"profilemodel/pkg/report"
	"profilemodel/pkg/simulate"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "profilemodel.yaml", "YAML configuration file")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	algorithm := flag.String("algorithm", "", "Mosaic spread algorithm: basic or extended (overrides config)")
	scanVarying := flag.Bool("scan-varying", false, "Compute a smoothed per-frame profile model")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: from config)")
	output := flag.String("output", "", "Write a YAML report to this file (overrides config)")
	seed := flag.Uint64("seed", 0, "Simulation seed (default: from config)")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *algorithm != "" {
		cfg.Profile.Algorithm = *algorithm
	}
	if *scanVarying {
		cfg.Profile.ScanVarying = true
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *output != "" {
		cfg.Output.ReportFile = *output
	}
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}

	opts, err := cfg.ProfileOptions()
	if err != nil {
		log.Fatalf("Invalid profile options: %v", err)
	}
	if cfg.Output.Verbose {
		opts.Logger = profile.NewLogger(os.Stderr)
	}
	params, err := cfg.SimulationParams()
	if err != nil {
		log.Fatalf("Invalid simulation parameters: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("PROFILE MODEL ESTIMATION: BEAM DIVERGENCE AND MOSAIC SPREAD")
	fmt.Println("================================")

	fmt.Printf("Simulating %d reflections over %d images...\n", params.Reflections, params.Frames)
	exp, table, err := simulate.Generate(params)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	startTime := time.Now()
	var rep *report.Report
	if cfg.Profile.ScanVarying {
		opts.Progress = func(completed, total int, message string) {
			fmt.Printf("\rProcessing frames: %.1f%% complete", float64(completed)/float64(total)*100)
		}
		calc, err := profile.NewScanVaryingCalculator(opts)
		if err != nil {
			log.Fatalf("Invalid options: %v", err)
		}
		model, err := calc.Compute(exp, table)
		fmt.Println() // New line after progress
		if err != nil {
			log.Fatalf("Profile model failed: %v", err)
		}
		rep = report.FromScanVarying(model)
	} else {
		calc, err := profile.NewCalculator(opts)
		if err != nil {
			log.Fatalf("Invalid options: %v", err)
		}
		model, err := calc.Compute(exp, table)
		if err != nil {
			log.Fatalf("Profile model failed: %v", err)
		}
		rep = report.FromModel(model, opts.Algorithm)
	}
	rep.WithTruth(params.SigmaB, params.SigmaM)
	processingTime := time.Since(startTime)

	fmt.Printf("\nProfile model computed in %.2f seconds\n", processingTime.Seconds())
	fmt.Printf("Sigma b: %.4f degrees (simulated %.4f)\n", rep.SigmaB, unit.Angle(params.SigmaB).Deg())
	fmt.Printf("Sigma m: %.4f degrees (simulated %.4f)\n", rep.SigmaM, unit.Angle(params.SigmaM).Deg())
	if rep.Method != "" {
		fmt.Printf("Mosaic spread estimator: %s\n", rep.Method)
	}
	if rep.Diagnostics != nil && rep.Diagnostics.Fallback != "" {
		fmt.Printf("Fallback reason: %s\n", rep.Diagnostics.Fallback)
	}

	if cfg.Output.ReportFile != "" {
		if err := rep.Save(cfg.Output.ReportFile); err != nil {
			log.Fatalf("Failed to save report: %v", err)
		}
		fmt.Printf("Report saved to: %s\n", cfg.Output.ReportFile)
	}
}
