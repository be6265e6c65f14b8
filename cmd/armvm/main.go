// Package main provides the entry point for armvm.
// armvm is a functional ARMv6-M (Cortex-M0) emulator.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/pkg/errors"

	"github.com/armvm/armvm/config"
	"github.com/armvm/armvm/emu"
	"github.com/armvm/armvm/insts"
	"github.com/armvm/armvm/isa"
	"github.com/armvm/armvm/loader"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type flags struct {
	program     string
	address     string
	isa         string
	device      string
	deviceFile  string
	configPath  string
	steps       uint64
	trace       bool
	interactive bool
	verbose     bool
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, *flag.FlagSet, error) {
	f := &flags{}
	fs := flag.NewFlagSet("armvm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: armvm [options] [program]\n")
		_, _ = fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&f.program, "program", "", "Program image to load (raw binary or ELF)")
	fs.StringVar(&f.address, "address", "", "Load address for raw binaries (default 0x08000000)")
	fs.StringVar(&f.isa, "isa", "", "Instruction set architecture (default Armv6-M)")
	fs.StringVar(&f.device, "device", "", "Device layout id (default STM32F070CB)")
	fs.StringVar(&f.deviceFile, "device-file", "", "Path to a YAML or JSON device layout")
	fs.StringVar(&f.configPath, "config", "", "Path to a YAML or JSON options file")
	fs.Uint64Var(&f.steps, "steps", 0, "Maximum number of instructions to execute (0 means no limit)")
	fs.BoolVar(&f.trace, "trace", false, "Print every executed instruction")
	fs.BoolVar(&f.interactive, "interactive", false, "Single-step interactively")
	fs.BoolVar(&f.verbose, "v", false, "Verbose output")
	fs.BoolVar(&f.version, "version", false, "Print the version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if f.program == "" && fs.NArg() > 0 {
		f.program = fs.Arg(0)
	}
	return f, fs, nil
}

// options merges the options file, if any, with the flags that were set on
// the command line. Flags win.
func (f *flags) options(fs *flag.FlagSet) (*config.Options, error) {
	opts := config.Default()
	if f.configPath != "" {
		var err error
		opts, err = config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
	}

	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if f.program != "" {
		opts.Program = f.program
	}
	if set["address"] {
		addr, err := strconv.ParseUint(f.address, 0, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid address %q", f.address)
		}
		opts.Address = uint32(addr)
	}
	if set["isa"] {
		opts.ISA = isa.Parse(f.isa)
	}
	if set["device"] {
		opts.Device = f.device
		opts.DeviceFile = ""
	}
	if set["device-file"] {
		opts.DeviceFile = f.deviceFile
	}
	if set["steps"] {
		opts.Steps = f.steps
	}
	if set["trace"] {
		opts.Trace = f.trace
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func newLogger(w io.Writer, verbose bool) logr.Logger {
	verbosity := 0
	if verbose {
		verbosity = 1
	}
	return funcr.New(func(prefix, args string) {
		_, _ = fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	f, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if f.version {
		_, _ = fmt.Fprintf(stdout, "armvm %s\n", version)
		return 0
	}

	opts, err := f.options(fs)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error in options: %v\n", err)
		fs.Usage()
		return 1
	}

	layout, err := opts.Layout()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error loading device: %v\n", err)
		return 1
	}

	log := newLogger(stderr, f.verbose)
	emuOpts := []emu.EmulatorOption{
		emu.WithISA(opts.ISA),
		emu.WithLayout(layout),
		emu.WithMaxInstructions(opts.Steps),
		emu.WithLogger(log),
		emu.WithStderr(stderr),
	}
	if opts.Trace && !f.interactive {
		emuOpts = append(emuOpts, emu.WithTrace(stdout))
	}

	emulator, err := emu.NewEmulator(emuOpts...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error creating emulator: %v\n", err)
		return 1
	}
	defer emulator.Close()

	if err := loader.Load(emulator.Memory(), opts.Address, opts.Program); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return 1
	}

	if f.verbose {
		_, _ = fmt.Fprintf(stdout, "Loaded: %s\n", opts.Program)
		_, _ = fmt.Fprintf(stdout, "Device: %s (%s)\n", layout.ID, opts.ISA)
	}

	if err := emulator.Reset(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error resetting: %v\n", err)
		return 1
	}

	if f.interactive {
		err = newSession(emulator, stdin, stdout).run()
	} else {
		err = emulator.Run()
	}

	if f.verbose {
		_, _ = fmt.Fprintf(stdout, "\nInstructions executed: %d\n", emulator.InstructionCount())
		printRegisters(stdout, emulator.RegFile().Snapshot())
	}

	if err != nil && !errors.Is(err, emu.ErrStepLimit) {
		_, _ = fmt.Fprintf(stderr, "Error running program: %v\n", err)
		return 1
	}

	return 0
}

func printRegisters(w io.Writer, s emu.Snapshot) {
	for i := 0; i < emu.NumRegs; i += 4 {
		for j := i; j < i+4; j++ {
			_, _ = fmt.Fprintf(w, "%-3s = 0x%08x  ", insts.RegName(uint8(j)), s.R[j])
		}
		_, _ = fmt.Fprintln(w)
	}
	_, _ = fmt.Fprintf(w, "PSR = 0x%08x  CONTROL = 0x%08x  MSP = 0x%08x  PSP = 0x%08x\n",
		s.PSR, s.Control, s.MSP, s.PSP)
}
