package emu

import "github.com/pkg/errors"

// Error kinds reported by the emulator. Callers match them with errors.Is;
// context is attached with errors.Wrapf.
var (
	ErrInvalidParam   = errors.New("invalid parameter")
	ErrInvalidOpts    = errors.New("invalid options")
	ErrNoMem          = errors.New("out of memory")
	ErrInvalidAddr    = errors.New("invalid address")
	ErrAddrNotAligned = errors.New("address not aligned")
	ErrInvalidReg     = errors.New("invalid register")
	ErrUnpredictable  = errors.New("unpredictable")
	ErrFail           = errors.New("failure")
)

// Specialisations of ErrFail.
var (
	ErrUnknownInstruction = errors.Wrap(ErrFail, "unknown instruction")
	ErrUnimplemented      = errors.Wrap(ErrFail, "unimplemented")
	ErrNotReset           = errors.Wrap(ErrFail, "emulator not reset")
	ErrStepLimit          = errors.Wrap(ErrFail, "max instructions reached")
)
