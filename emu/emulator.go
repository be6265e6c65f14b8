// Package emu provides functional ARMv6-M emulation.
//
// An Emulator owns a register file and a memory map built from a device
// layout. Reset loads SP and PC from the vector table; Step fetches,
// decodes and executes one Thumb instruction.
package emu

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/pkg/errors"
	"github.com/rs/xid"

	"github.com/armvm/armvm/device"
	"github.com/armvm/armvm/insts"
	"github.com/armvm/armvm/isa"
)

// Mode is the processor execution mode.
type Mode uint8

// Execution modes.
const (
	ModeThread Mode = iota
	ModeHandler
)

func (m Mode) String() string {
	if m == ModeHandler {
		return "Handler"
	}
	return "Thread"
}

// vectorTable is the vector table base. VTOR is not modelled.
const vectorTable uint32 = 0x00000000

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// PC is the address the instruction was fetched from.
	PC uint32

	// Inst is the decoded instruction, nil if the fetch failed.
	Inst *insts.Inst

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes ARMv6-M Thumb instructions functionally.
type Emulator struct {
	id      xid.ID
	isa     isa.ISA
	device  string
	layout  *device.Layout
	regFile *RegFile
	memory  Memory
	mmap    *MemoryMap // owned, nil when the memory was supplied
	decoder *insts.Decoder

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	// I/O
	log    logr.Logger
	trace  io.Writer
	stderr io.Writer

	// Execution state
	mode             Mode
	isReset          bool
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit

	optErr error
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithISA selects the architecture. Only isa.ARMv6M is accepted.
func WithISA(i isa.ISA) EmulatorOption {
	return func(e *Emulator) {
		e.isa = i
	}
}

// WithDevice selects a registered device layout by id.
func WithDevice(id string) EmulatorOption {
	return func(e *Emulator) {
		e.device = id
	}
}

// WithLayout uses layout instead of a registered device.
func WithLayout(layout *device.Layout) EmulatorOption {
	return func(e *Emulator) {
		if layout == nil {
			e.optErr = errors.Wrap(ErrInvalidParam, "nil layout")
			return
		}
		e.layout = layout.Clone()
	}
}

// WithMemory runs the emulator against memory instead of a memory map
// built from the device layout. The emulator does not close it.
func WithMemory(memory Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = memory
	}
}

// WithLogger sets the logger. The default logs to the stderr writer.
func WithLogger(log logr.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.log = log
	}
}

// WithTrace writes the disassembly of every executed instruction to w.
func WithTrace(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.trace = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stderr = w
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new ARMv6-M emulator. The core is held in reset
// until Reset is called.
func NewEmulator(opts ...EmulatorOption) (*Emulator, error) {
	e := &Emulator{
		id:      xid.New(),
		isa:     isa.ARMv6M,
		device:  device.STM32F070CBID,
		regFile: NewRegFile(),
		decoder: insts.NewDecoder(),
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.optErr != nil {
		return nil, e.optErr
	}

	if e.isa != isa.ARMv6M {
		return nil, errors.Wrapf(ErrInvalidOpts, "unsupported ISA %s", e.isa)
	}

	if e.log.GetSink() == nil {
		stderr := e.stderr
		e.log = funcr.New(func(prefix, args string) {
			if prefix != "" {
				_, _ = fmt.Fprintf(stderr, "%s: %s\n", prefix, args)
			} else {
				_, _ = fmt.Fprintln(stderr, args)
			}
		}, funcr.Options{})
	}
	e.log = e.log.WithValues("vm", e.id.String())

	if e.memory == nil {
		if e.layout == nil {
			layout, err := device.Lookup(e.device)
			if err != nil {
				return nil, errors.Wrap(ErrInvalidOpts, err.Error())
			}
			e.layout = layout
		}

		mmap, err := NewMemoryMap(e.layout)
		if err != nil {
			return nil, err
		}
		e.mmap = mmap
		e.memory = mmap
	}

	// Create execution units
	e.alu = NewALU(e.regFile)
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory)
	e.branchUnit = NewBranchUnit(e.regFile)

	return e, nil
}

// Close releases the memory map. The emulator must not be used afterwards.
func (e *Emulator) Close() {
	if e.mmap != nil {
		e.mmap.Close()
		e.mmap = nil
	}
	e.isReset = false
}

// ID returns the unique id the emulator tags its log lines with.
func (e *Emulator) ID() string {
	return e.id.String()
}

// Layout returns the device layout, nil when WithMemory was used.
func (e *Emulator) Layout() *device.Layout {
	return e.layout
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() Memory {
	return e.memory
}

// Mode returns the current execution mode.
func (e *Emulator) Mode() Mode {
	return e.mode
}

// InstructionCount returns the number of instructions executed since the
// last reset.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Reset performs the reset sequence: Thread mode, PSR and CONTROL cleared,
// SP loaded from the first vector table entry and execution started at the
// reset vector.
func (e *Emulator) Reset() error {
	e.isReset = false
	e.instructionCount = 0
	e.mode = ModeThread
	e.regFile.Reset()

	sp, err := e.memory.Read32(vectorTable)
	if err != nil {
		return errors.Wrap(err, "failed to read initial SP")
	}
	if err := e.regFile.WriteGPR(RegSP, sp); err != nil {
		return err
	}

	entry, err := e.memory.Read32(vectorTable + 4)
	if err != nil {
		return errors.Wrap(err, "failed to read reset vector")
	}
	e.branchUnit.BLXWritePC(entry)

	e.isReset = true
	e.log.V(1).Info("reset",
		"sp", fmt.Sprintf("0x%08x", e.regFile.SP()),
		"entry", fmt.Sprintf("0x%08x", e.regFile.PC()))

	return nil
}

// LoadInstruction fetches the instruction at addr, reading a second
// halfword when the first one starts a 32-bit encoding.
func (e *Emulator) LoadInstruction(addr uint32) (insts.Instruction, error) {
	first, err := e.memory.Read16(addr)
	if err != nil {
		return insts.Instruction{}, err
	}
	if !insts.IsWide(first) {
		return insts.NewInstruction16(first), nil
	}

	second, err := e.memory.Read16(addr + 2)
	if err != nil {
		return insts.Instruction{}, err
	}
	return insts.NewInstruction32(first, second), nil
}

// LoadNextInstruction fetches the instruction at the PC.
func (e *Emulator) LoadNextInstruction() (insts.Instruction, error) {
	return e.LoadInstruction(e.regFile.PC())
}

// Step executes a single instruction. Errors are reported as is; state
// changes made before the failing sub-operation are kept.
func (e *Emulator) Step() StepResult {
	if !e.isReset {
		return StepResult{Err: ErrNotReset}
	}

	// Check instruction limit before executing
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{PC: e.regFile.PC(), Err: ErrStepLimit}
	}

	pc := e.regFile.PC()

	// 1. Fetch
	raw, err := e.LoadInstruction(pc)
	if err != nil {
		return StepResult{PC: pc, Err: errors.Wrapf(err, "fetch at 0x%08x", pc)}
	}

	// 2. Decode
	inst := e.decoder.Decode(raw)
	if e.trace != nil {
		_, _ = fmt.Fprintf(e.trace, "0x%08x: %s\n", pc, insts.Disassemble(inst, pc))
	}

	// 3. Execute
	if err := e.execute(inst); err != nil {
		return StepResult{PC: pc, Inst: inst, Err: err}
	}

	e.instructionCount++

	return StepResult{PC: pc, Inst: inst}
}

// Run executes instructions until an error occurs. When a maximum
// instruction count is set, reaching it returns ErrStepLimit.
func (e *Emulator) Run() error {
	return e.RunContext(context.Background())
}

// RunContext is Run with cancellation checked between instructions.
func (e *Emulator) RunContext(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		result := e.Step()
		if result.Err != nil {
			return result.Err
		}
	}
}

// execute dispatches and executes a decoded instruction.
func (e *Emulator) execute(inst *insts.Inst) error {
	var (
		branched bool
		err      error
	)

	switch inst.Op {
	case insts.OpUnknown:
		return e.undefined(inst)
	case insts.OpLSLImm:
		err = e.alu.LSLImm(inst.Rd, inst.Rm, inst.Imm)
	case insts.OpMOVImm:
		err = e.alu.MOVImm(inst.Rd, inst.Imm)
	case insts.OpCMPImm:
		err = e.alu.CMPImm(inst.Rn, inst.Imm)
	case insts.OpSUBImm:
		err = e.alu.SUBImm(inst.Rd, inst.Rn, inst.Imm)
	case insts.OpCMPReg:
		err = e.alu.CMPReg(inst.Rn, inst.Rm)
	case insts.OpORRReg:
		err = e.alu.ORRReg(inst.Rd, inst.Rm)
	case insts.OpMOVReg:
		branched, err = e.executeMOVReg(inst)
	case insts.OpLDRLit:
		err = e.lsu.LDRLiteral(inst.Rt, inst.Imm)
	case insts.OpSTRImm:
		err = e.lsu.STRImm(inst.Rt, inst.Rn, inst.Imm)
	case insts.OpLDRImm:
		err = e.lsu.LDRImm(inst.Rt, inst.Rn, inst.Imm)
	case insts.OpSUBSPImm:
		err = e.alu.SUBSPImm(inst.Imm)
	case insts.OpPUSH:
		err = e.lsu.PUSH(inst.RegList)
	case insts.OpBCond:
		branched = e.branchUnit.BCond(inst.Cond, inst.Offset)
	case insts.OpB:
		e.branchUnit.B(inst.Offset)
		branched = true
	case insts.OpBL:
		err = e.branchUnit.BL(inst.Offset)
		branched = true
	default:
		return errors.Wrapf(ErrUnimplemented, "%s at 0x%08x", inst.Op, e.regFile.PC())
	}

	if err != nil {
		return err
	}

	// Advance PC past the instruction (for non-branch instructions)
	if !branched {
		e.regFile.SetPC(e.regFile.PC() + inst.Raw.Size())
	}

	return nil
}

// executeMOVReg handles MOV (register), which branches when Rd is the PC.
func (e *Emulator) executeMOVReg(inst *insts.Inst) (bool, error) {
	if inst.Rd != RegPC {
		return false, e.alu.MOVReg(inst.Rd, inst.Rm)
	}

	value, err := e.regFile.ReadGPR(inst.Rm)
	if err != nil {
		return false, err
	}
	e.branchUnit.ALUWritePC(value)
	return true, nil
}

func (e *Emulator) undefined(inst *insts.Inst) error {
	pc := e.regFile.PC()
	raw := fmt.Sprintf("0x%04x", inst.Raw.Raw)
	if inst.Raw.Is32Bit {
		raw = fmt.Sprintf("0x%08x", inst.Raw.Raw)
	}

	e.log.Error(ErrUnknownInstruction, "undefined instruction",
		"pc", fmt.Sprintf("0x%08x", pc),
		"raw", raw,
		"bits", inst.Raw.Bits())

	return errors.Wrapf(ErrUnknownInstruction, "%s at 0x%08x", raw, pc)
}
