package emu

import (
	"math/bits"

	"github.com/pkg/errors"
)

// LoadStoreUnit implements the Thumb loads, stores and PUSH.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// LDRLiteral loads Rt from the word-aligned PC + 4 plus imm.
func (lsu *LoadStoreUnit) LDRLiteral(rt uint8, imm uint32) error {
	base := (lsu.regFile.PC() + 4) &^ 3
	value, err := lsu.memory.Read32(base + imm)
	if err != nil {
		return err
	}
	return lsu.regFile.WriteGPR(rt, value)
}

// LDRImm loads Rt from Rn + imm.
func (lsu *LoadStoreUnit) LDRImm(rt, rn uint8, imm uint32) error {
	base, err := lsu.regFile.ReadGPR(rn)
	if err != nil {
		return err
	}
	value, err := lsu.memory.Read32Unaligned(base + imm)
	if err != nil {
		return err
	}
	return lsu.regFile.WriteGPR(rt, value)
}

// STRImm stores Rt to Rn + imm.
func (lsu *LoadStoreUnit) STRImm(rt, rn uint8, imm uint32) error {
	base, err := lsu.regFile.ReadGPR(rn)
	if err != nil {
		return err
	}
	value, err := lsu.regFile.ReadGPR(rt)
	if err != nil {
		return err
	}
	return lsu.memory.Write32Unaligned(base+imm, value)
}

// PUSH stores the registers selected by list below SP, lowest register at
// the lowest address, then lowers SP past them. An empty list is
// unpredictable and writes nothing.
func (lsu *LoadStoreUnit) PUSH(list uint16) error {
	if list == 0 {
		return errors.Wrap(ErrUnpredictable, "PUSH with an empty register list")
	}

	sp, err := lsu.regFile.ReadGPR(RegSP)
	if err != nil {
		return err
	}

	start := sp - 4*uint32(bits.OnesCount16(list))
	addr := start
	for reg := uint8(0); reg < NumRegs; reg++ {
		if list&(1<<reg) == 0 {
			continue
		}
		value, err := lsu.regFile.ReadGPR(reg)
		if err != nil {
			return err
		}
		if err := lsu.memory.Write32(addr, value); err != nil {
			return err
		}
		addr += 4
	}

	return lsu.regFile.WriteGPR(RegSP, start)
}
