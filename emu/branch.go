package emu

import "github.com/armvm/armvm/insts"

// BranchUnit implements the Thumb branches and the architectural PC write
// primitives.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// BranchTo sets the address of the next instruction.
func (b *BranchUnit) BranchTo(addr uint32) {
	b.regFile.SetPC(addr)
}

// BranchWritePC branches to addr with bit 0 cleared.
func (b *BranchUnit) BranchWritePC(addr uint32) {
	b.BranchTo(addr &^ 1)
}

// ALUWritePC is the PC write performed by data-processing instructions.
func (b *BranchUnit) ALUWritePC(addr uint32) {
	b.BranchWritePC(addr)
}

// BLXWritePC copies bit 0 of addr into EPSR.T and branches to the rest.
func (b *BranchUnit) BLXWritePC(addr uint32) {
	b.regFile.SetEPSRT(addr&1 == 1)
	b.BranchTo(addr &^ 1)
}

// target returns PC + 4 + offset for the current instruction.
func (b *BranchUnit) target(offset int32) uint32 {
	return b.regFile.PC() + 4 + uint32(offset)
}

// B performs an unconditional branch. offset is relative to PC + 4.
func (b *BranchUnit) B(offset int32) {
	b.BranchWritePC(b.target(offset))
}

// BCond branches if cond holds for the current flags and reports whether
// the branch was taken.
func (b *BranchUnit) BCond(cond insts.Cond, offset int32) bool {
	if !insts.ConditionPassed(b.regFile.APSR(), cond) {
		return false
	}
	b.B(offset)
	return true
}

// BL performs a branch with link. LR receives the address of the next
// instruction with bit 0 set.
func (b *BranchUnit) BL(offset int32) error {
	next := b.regFile.PC() + 4
	if err := b.regFile.WriteGPR(RegLR, next|1); err != nil {
		return err
	}
	b.BranchWritePC(next + uint32(offset))
	return nil
}
