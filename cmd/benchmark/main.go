// Command benchmark runs the armvm microbenchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv        Output results in CSV format (default: human-readable)
//	-json       Output results as a JSON report
//	-core       Run only the core benchmarks
//	-device     Device layout to run on (default STM32F070CB)
//	-max-instr  Per-benchmark instruction bound (0 = unlimited)
//	-v          Trace every executed instruction
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
//
// The command exits with status 1 when any benchmark fails.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/armvm/armvm/benchmarks"
)

func main() {
	// Parse flags
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as JSON")
	core := flag.Bool("core", false, "Run only the core benchmarks")
	deviceID := flag.String("device", "", "Device layout to run on")
	maxInstr := flag.Uint64("max-instr", 1000000, "Per-benchmark instruction bound (0 = unlimited)")
	verbose := flag.Bool("v", false, "Trace executed instructions")
	flag.Parse()

	// Configure harness
	config := benchmarks.DefaultConfig()
	if *deviceID != "" {
		config.Device = *deviceID
	}
	config.MaxInstructions = *maxInstr
	config.Verbose = *verbose
	config.Output = os.Stdout

	// Create harness and add benchmarks
	harness := benchmarks.NewHarness(config)
	if *core {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	if !*csvOutput && !*jsonOutput {
		fmt.Println("armvm Benchmark Harness")
		fmt.Println("=======================")
		fmt.Printf("Device: %s\n", config.Device)
		fmt.Printf("Max instructions: %d\n", config.MaxInstructions)
		fmt.Println("")
	}

	// Run benchmarks
	results := harness.RunAll()

	// Output results
	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		summary := benchmarks.Summarize(results)
		fmt.Println("=== Summary ===")
		fmt.Printf("Passed: %d/%d\n", summary.Passed, summary.TotalBenchmarks)
		fmt.Printf("Instructions: %d\n", summary.TotalInstructions)
		fmt.Printf("Wall time: %v\n", summary.TotalWallTime)
	}

	if benchmarks.Summarize(results).Passed != len(results) {
		os.Exit(1)
	}
}
