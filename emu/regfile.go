package emu

import (
	"github.com/pkg/errors"

	"github.com/armvm/armvm/insts"
)

// Register indices with an architectural role.
const (
	RegSP   uint8 = 13
	RegLR   uint8 = 14
	RegPC   uint8 = 15
	NumRegs       = 16
)

// Program status and CONTROL register bits.
const (
	EPSRT        uint32 = 1 << 24 // Thumb state
	ControlNPRIV uint32 = 1 << 0  // Unprivileged thread mode
	ControlSPSEL uint32 = 1 << 1  // Thread mode uses the process stack
)

// RegFile represents the ARMv6-M register file: R0-R15, the combined
// program status register, CONTROL and the banked stack pointers. R13
// always holds the active stack pointer; the inactive one is kept in
// spMain or spProcess.
type RegFile struct {
	gpr       [NumRegs]uint32
	psr       uint32
	control   uint32
	spMain    uint32
	spProcess uint32
}

// NewRegFile creates a zeroed register file.
func NewRegFile() *RegFile {
	return &RegFile{}
}

// Reset zeroes every register.
func (r *RegFile) Reset() {
	*r = RegFile{}
}

// ReadGPR reads R0-R15. Reading the PC yields the address of the current
// instruction plus 4.
func (r *RegFile) ReadGPR(id uint8) (uint32, error) {
	if id >= NumRegs {
		return 0, errors.Wrapf(ErrInvalidReg, "R%d", id)
	}
	if id == RegPC {
		return r.gpr[RegPC] + 4, nil
	}
	return r.gpr[id], nil
}

// WriteGPR writes R0-R15. Writes to SP clear bits 1:0. A PC write stores
// the value as is; use the branch primitives for architectural PC writes.
func (r *RegFile) WriteGPR(id uint8, value uint32) error {
	if id >= NumRegs {
		return errors.Wrapf(ErrInvalidReg, "R%d", id)
	}
	if id == RegSP {
		value &^= 0x3
	}
	r.gpr[id] = value
	return nil
}

// PC returns the address of the current instruction.
func (r *RegFile) PC() uint32 {
	return r.gpr[RegPC]
}

// SetPC stores the address of the next instruction to fetch.
func (r *RegFile) SetPC(addr uint32) {
	r.gpr[RegPC] = addr
}

// SP returns the active stack pointer.
func (r *RegFile) SP() uint32 {
	return r.gpr[RegSP]
}

// ReadPSR returns the combined APSR, IPSR and EPSR.
func (r *RegFile) ReadPSR() uint32 {
	return r.psr
}

// WritePSR replaces the combined program status register.
func (r *RegFile) WritePSR(value uint32) {
	r.psr = value
}

// APSR returns the condition flags, bits 31:28.
func (r *RegFile) APSR() uint32 {
	return r.psr & insts.APSRMask
}

// SetAPSR replaces bits 31:28 and leaves the rest of the PSR alone.
func (r *RegFile) SetAPSR(flags uint32) {
	r.psr = r.psr&^insts.APSRMask | flags&insts.APSRMask
}

// EPSRT reports the Thumb bit.
func (r *RegFile) EPSRT() bool {
	return r.psr&EPSRT != 0
}

// SetEPSRT sets or clears the Thumb bit.
func (r *RegFile) SetEPSRT(t bool) {
	if t {
		r.psr |= EPSRT
	} else {
		r.psr &^= EPSRT
	}
}

// ReadControl returns the CONTROL register.
func (r *RegFile) ReadControl() uint32 {
	return r.control
}

// WriteControl writes CONTROL. Changing SPSEL banks the active stack
// pointer away and installs the other one in R13.
func (r *RegFile) WriteControl(value uint32) {
	oldSel := r.control & ControlSPSEL
	newSel := value & ControlSPSEL

	switch {
	case oldSel != 0 && newSel == 0:
		r.spProcess = r.gpr[RegSP]
		r.gpr[RegSP] = r.spMain
	case oldSel == 0 && newSel != 0:
		r.spMain = r.gpr[RegSP]
		r.gpr[RegSP] = r.spProcess
	}

	r.control = value
}

// Snapshot is a copy of the architectural register state. PC holds the
// raw fetch address. MSP and PSP resolve the banked stack pointers.
type Snapshot struct {
	R       [NumRegs]uint32
	PSR     uint32
	Control uint32
	MSP     uint32
	PSP     uint32
}

// Snapshot copies the current register state.
func (r *RegFile) Snapshot() Snapshot {
	s := Snapshot{
		R:       r.gpr,
		PSR:     r.psr,
		Control: r.control,
		MSP:     r.spMain,
		PSP:     r.spProcess,
	}
	if r.control&ControlSPSEL != 0 {
		s.PSP = r.gpr[RegSP]
	} else {
		s.MSP = r.gpr[RegSP]
	}
	return s
}
