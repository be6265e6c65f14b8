package emu

import (
	"github.com/pkg/errors"

	"github.com/armvm/armvm/insts"
)

// AddWithCarry returns x + y + carryIn together with the unsigned carry
// out and the signed overflow of the addition.
func AddWithCarry(x, y uint32, carryIn bool) (result uint32, carry, overflow bool) {
	sum := uint64(x) + uint64(y)
	if carryIn {
		sum++
	}
	result = uint32(sum)
	carry = sum>>32 != 0
	overflow = (x^result)&(y^result)&0x80000000 != 0
	return result, carry, overflow
}

// ALU implements the Thumb data-processing instructions.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// MOVImm performs Rd = imm. N and Z follow the result; C and V are kept.
func (a *ALU) MOVImm(rd uint8, imm uint32) error {
	if err := a.regFile.WriteGPR(rd, imm); err != nil {
		return err
	}
	a.setNZ(imm)
	return nil
}

// MOVReg performs Rd = Rm without touching the flags. Rd must not be the
// PC; PC destinations go through BranchUnit.ALUWritePC.
func (a *ALU) MOVReg(rd, rm uint8) error {
	value, err := a.regFile.ReadGPR(rm)
	if err != nil {
		return err
	}
	return a.regFile.WriteGPR(rd, value)
}

// CMPImm compares Rn with imm and sets all four flags.
func (a *ALU) CMPImm(rn uint8, imm uint32) error {
	op1, err := a.regFile.ReadGPR(rn)
	if err != nil {
		return err
	}
	a.sub(op1, imm)
	return nil
}

// CMPReg compares Rn with Rm and sets all four flags.
func (a *ALU) CMPReg(rn, rm uint8) error {
	op1, err := a.regFile.ReadGPR(rn)
	if err != nil {
		return err
	}
	op2, err := a.regFile.ReadGPR(rm)
	if err != nil {
		return err
	}
	a.sub(op1, op2)
	return nil
}

// SUBImm performs Rd = Rn - imm and sets all four flags.
func (a *ALU) SUBImm(rd, rn uint8, imm uint32) error {
	op1, err := a.regFile.ReadGPR(rn)
	if err != nil {
		return err
	}
	return a.regFile.WriteGPR(rd, a.sub(op1, imm))
}

// SUBSPImm performs SP = SP - imm. Flags are not affected.
func (a *ALU) SUBSPImm(imm uint32) error {
	sp, err := a.regFile.ReadGPR(RegSP)
	if err != nil {
		return err
	}
	return a.regFile.WriteGPR(RegSP, sp-imm)
}

// ORRReg performs Rdn = Rdn | Rm. N and Z follow the result.
func (a *ALU) ORRReg(rdn, rm uint8) error {
	op1, err := a.regFile.ReadGPR(rdn)
	if err != nil {
		return err
	}
	op2, err := a.regFile.ReadGPR(rm)
	if err != nil {
		return err
	}

	result := op1 | op2
	if err := a.regFile.WriteGPR(rdn, result); err != nil {
		return err
	}
	a.setNZ(result)
	return nil
}

// LSLImm performs Rd = Rm << shift. C receives the last bit shifted out.
// A zero shift encodes MOVS (register), which is not implemented.
func (a *ALU) LSLImm(rd, rm uint8, shift uint32) error {
	if shift == 0 {
		return errors.Wrap(ErrUnimplemented, "LSLS with a zero shift")
	}
	if shift > 31 {
		return errors.Wrapf(ErrInvalidParam, "shift %d", shift)
	}

	value, err := a.regFile.ReadGPR(rm)
	if err != nil {
		return err
	}

	result := value << shift
	if err := a.regFile.WriteGPR(rd, result); err != nil {
		return err
	}

	carry := (value>>(32-shift))&1 == 1
	flags := a.regFile.APSR() &^ (insts.APSRN | insts.APSRZ | insts.APSRC)
	flags |= nzFlags(result)
	if carry {
		flags |= insts.APSRC
	}
	a.regFile.SetAPSR(flags)
	return nil
}

// sub computes op1 - op2 as AddWithCarry(op1, NOT(op2), 1) and sets NZCV.
func (a *ALU) sub(op1, op2 uint32) uint32 {
	result, carry, overflow := AddWithCarry(op1, ^op2, true)

	flags := nzFlags(result)
	if carry {
		flags |= insts.APSRC
	}
	if overflow {
		flags |= insts.APSRV
	}
	a.regFile.SetAPSR(flags)
	return result
}

func (a *ALU) setNZ(result uint32) {
	flags := a.regFile.APSR() &^ (insts.APSRN | insts.APSRZ)
	a.regFile.SetAPSR(flags | nzFlags(result))
}

func nzFlags(result uint32) uint32 {
	var flags uint32
	if result&0x80000000 != 0 {
		flags |= insts.APSRN
	}
	if result == 0 {
		flags |= insts.APSRZ
	}
	return flags
}
