// Package benchmarks provides Thumb microbenchmarks and a harness that runs
// them on the emulator, checking results and measuring throughput.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/armvm/armvm/device"
	"github.com/armvm/armvm/emu"
	"github.com/armvm/armvm/insts"
)

// stackTop is the initial SP written to the vector table, the top of the
// STM32F070CB SRAM.
const stackTop uint32 = 0x20004000

// BenchmarkResult holds the results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// InstructionsRetired is the number of completed instructions,
	// including the final branch to itself
	InstructionsRetired uint64 `json:"instructions_retired"`

	// Result is R0 when the program halted
	Result uint32 `json:"result"`

	// Passed is set when Result and InstructionsRetired match the
	// benchmark's expectations
	Passed bool `json:"passed"`

	// Error is set when the program stopped on an emulator error
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the program
	WallTime time.Duration `json:"wall_time_ns"`

	// InstructionsPerSecond is InstructionsRetired over WallTime
	InstructionsPerSecond float64 `json:"instructions_per_second"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the emulator state after reset (e.g. registers, data)
	Setup func(regFile *emu.RegFile, memory emu.Memory) error

	// Program is the Thumb machine code, placed right after the vector
	// table at the start of flash. It halts by branching to itself.
	Program []byte

	// ExpectedResult is the expected value of R0 at halt
	ExpectedResult uint32

	// ExpectedInstructions is the expected instruction count, 0 to skip
	// the check
	ExpectedInstructions uint64
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Device selects the memory layout the programs run on
	Device string

	// MaxInstructions bounds each run so a broken program cannot spin
	// forever (0 = unlimited)
	MaxInstructions uint64

	// Logger receives the emulator's log output
	Logger logr.Logger

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose traces every executed instruction to Output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Device:          device.STM32F070CBID,
		MaxInstructions: 1000000,
		Logger:          logr.Discard(),
		Output:          os.Stdout,
		Verbose:         false,
	}
}

// Harness runs benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Device == "" {
		config.Device = device.STM32F070CBID
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		results = append(results, result)
	}

	return results
}

// runBenchmark executes a single benchmark on a fresh emulator.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	opts := []emu.EmulatorOption{
		emu.WithDevice(h.config.Device),
		emu.WithLogger(h.config.Logger),
		emu.WithMaxInstructions(h.config.MaxInstructions),
	}
	if h.config.Verbose {
		opts = append(opts, emu.WithTrace(h.config.Output))
	}

	e, err := emu.NewEmulator(opts...)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer e.Close()

	if err := h.load(e, bench); err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	err = runToHalt(e)
	result.WallTime = time.Since(start)

	result.InstructionsRetired = e.InstructionCount()
	result.Result, _ = e.RegFile().ReadGPR(0)
	if result.WallTime > 0 {
		result.InstructionsPerSecond = float64(result.InstructionsRetired) / result.WallTime.Seconds()
	}

	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Passed = result.Result == bench.ExpectedResult &&
		(bench.ExpectedInstructions == 0 || result.InstructionsRetired == bench.ExpectedInstructions)

	return result
}

// load writes the vector table and program to the start of flash, resets
// the core and runs the benchmark's setup.
func (h *Harness) load(e *emu.Emulator, bench Benchmark) error {
	flash, err := flashBase(e.Layout())
	if err != nil {
		return err
	}

	memory := e.Memory()
	entry := flash + 8
	if err := memory.Write32(flash, stackTop); err != nil {
		return errors.Wrap(err, "failed to write initial SP")
	}
	if err := memory.Write32(flash+4, entry|1); err != nil {
		return errors.Wrap(err, "failed to write reset vector")
	}
	for i, b := range bench.Program {
		if err := memory.Write8(entry+uint32(i), b); err != nil {
			return errors.Wrapf(err, "failed to write program byte %d", i)
		}
	}

	if err := e.Reset(); err != nil {
		return err
	}

	if bench.Setup != nil {
		return bench.Setup(e.RegFile(), memory)
	}
	return nil
}

func flashBase(layout *device.Layout) (uint32, error) {
	for _, r := range layout.Regions {
		if r.Kind == device.KindFlash {
			return r.Base, nil
		}
	}
	return 0, errors.Errorf("device %s has no flash region", layout.ID)
}

// runToHalt steps until an instruction branches to itself.
func runToHalt(e *emu.Emulator) error {
	for {
		res := e.Step()
		if res.Err != nil {
			return res.Err
		}
		if res.Inst.Op == insts.OpB && e.RegFile().PC() == res.PC {
			return nil
		}
	}
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== armvm Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s [%s]\n", r.Name, status)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Result (R0):          %d\n", r.Result)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions/second:  %.0f\n", r.InstructionsPerSecond)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,instructions,result,passed,wall_time_ns,instructions_per_second")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%t,%d,%.0f\n",
			r.Name,
			r.InstructionsRetired,
			r.Result,
			r.Passed,
			r.WallTime.Nanoseconds(),
			r.InstructionsPerSecond,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Device the programs ran on
	Device string `json:"device"`

	// MaxInstructions is the per-run instruction bound
	MaxInstructions uint64 `json:"max_instructions"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Passed is the number of benchmarks whose results matched
	Passed int `json:"passed"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func Summarize(results []BenchmarkResult) ReportSummary {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		if r.Passed {
			summary.Passed++
		}
		summary.TotalInstructions += r.InstructionsRetired
		summary.TotalWallTime += r.WallTime
	}
	return summary
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
			Device:          h.config.Device,
			MaxInstructions: h.config.MaxInstructions,
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
