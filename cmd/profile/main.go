// Package main provides a profiling wrapper for armvm to identify performance
// bottlenecks in the execute loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/armvm/armvm/config"
	"github.com/armvm/armvm/emu"
	"github.com/armvm/armvm/loader"
)

var (
	deviceID    = flag.String("device", "", "device layout to load the program into")
	address     = flag.String("address", fmt.Sprintf("0x%08x", config.DefaultAddress), "load address for raw binaries")
	cpuProfile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile  = flag.String("memprofile", "", "write memory profile to file")
	duration    = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	instruction = flag.Uint64("max-instr", 1000000, "max instructions to execute (0 = unlimited)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	programPath := flag.Arg(0)

	opts := config.Default()
	opts.Program = programPath
	addr, err := parseAddress(*address)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in options: %v\n", err)
		os.Exit(1)
	}
	opts.Address = addr
	if *deviceID != "" {
		opts.Device = *deviceID
	}

	emulator, err := newEmulator(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}
	defer emulator.Close()

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Entry point: 0x%08X\n", emulator.RegFile().PC())

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	runErr := emulator.RunContext(ctx)
	elapsed := time.Since(start)
	instrCount := emulator.InstructionCount()

	if errors.Is(runErr, context.DeadlineExceeded) {
		fmt.Printf("\nTimeout reached after %v - stopping execution\n", *duration)
	}

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Stopped: %v\n", runErr)
	fmt.Printf("Instructions executed: %d\n", instrCount)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if instrCount > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}
}

// parseAddress parses a decimal, 0x hex or 0 octal address that must fit
// in 32 bits.
func parseAddress(s string) (uint32, error) {
	addr, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid address %q", s)
	}
	return uint32(addr), nil
}

// newEmulator builds an emulator for opts, loads the program and resets the
// core.
func newEmulator(opts *config.Options) (*emu.Emulator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	layout, err := opts.Layout()
	if err != nil {
		return nil, err
	}

	emuOpts := []emu.EmulatorOption{
		emu.WithISA(opts.ISA),
		emu.WithLayout(layout),
		emu.WithLogger(logr.Discard()),
	}
	if *instruction > 0 {
		emuOpts = append(emuOpts, emu.WithMaxInstructions(*instruction))
	}

	emulator, err := emu.NewEmulator(emuOpts...)
	if err != nil {
		return nil, err
	}

	if err := loader.Load(emulator.Memory(), opts.Address, opts.Program); err != nil {
		emulator.Close()
		return nil, err
	}

	if err := emulator.Reset(); err != nil {
		emulator.Close()
		return nil, err
	}

	return emulator, nil
}
