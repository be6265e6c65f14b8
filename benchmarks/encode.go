package benchmarks

import (
	"encoding/binary"

	"github.com/armvm/armvm/insts"
)

// Helper functions for building Thumb programs. Branch offsets are byte
// offsets relative to the address of the branch plus 4.

// BuildProgram assembles halfwords into a little-endian byte slice.
func BuildProgram(halfwords ...uint16) []byte {
	program := make([]byte, 0, len(halfwords)*2)
	for _, hw := range halfwords {
		program = binary.LittleEndian.AppendUint16(program, hw)
	}
	return program
}

// Word splits a 32-bit literal into the two halfwords that store it.
func Word(value uint32) []uint16 {
	return []uint16{uint16(value), uint16(value >> 16)}
}

// EncodeLSLImm encodes LSLS Rd, Rm, #imm5.
func EncodeLSLImm(rd, rm uint8, imm5 uint8) uint16 {
	return uint16(imm5&0x1F)<<6 | uint16(rm&0x7)<<3 | uint16(rd&0x7)
}

// EncodeMOVImm encodes MOVS Rd, #imm8.
func EncodeMOVImm(rd uint8, imm8 uint8) uint16 {
	return 0x2000 | uint16(rd&0x7)<<8 | uint16(imm8)
}

// EncodeCMPImm encodes CMP Rn, #imm8.
func EncodeCMPImm(rn uint8, imm8 uint8) uint16 {
	return 0x2800 | uint16(rn&0x7)<<8 | uint16(imm8)
}

// EncodeSUBImm encodes SUBS Rdn, #imm8.
func EncodeSUBImm(rdn uint8, imm8 uint8) uint16 {
	return 0x3800 | uint16(rdn&0x7)<<8 | uint16(imm8)
}

// EncodeCMPReg encodes CMP Rn, Rm for low registers.
func EncodeCMPReg(rn, rm uint8) uint16 {
	return 0x4280 | uint16(rm&0x7)<<3 | uint16(rn&0x7)
}

// EncodeORRReg encodes ORRS Rdn, Rm.
func EncodeORRReg(rdn, rm uint8) uint16 {
	return 0x4300 | uint16(rm&0x7)<<3 | uint16(rdn&0x7)
}

// EncodeMOVReg encodes MOV Rd, Rm. Both registers may be high registers.
func EncodeMOVReg(rd, rm uint8) uint16 {
	return 0x4600 | uint16((rd>>3)&0x1)<<7 | uint16(rm&0xF)<<3 | uint16(rd&0x7)
}

// EncodeLDRLit encodes LDR Rt, [PC, #imm]. imm must be a multiple of 4.
func EncodeLDRLit(rt uint8, imm uint16) uint16 {
	return 0x4800 | uint16(rt&0x7)<<8 | (imm>>2)&0xFF
}

// EncodeSTRImm encodes STR Rt, [Rn, #imm]. imm must be a multiple of 4.
func EncodeSTRImm(rt, rn uint8, imm uint16) uint16 {
	return 0x6000 | ((imm>>2)&0x1F)<<6 | uint16(rn&0x7)<<3 | uint16(rt&0x7)
}

// EncodeLDRImm encodes LDR Rt, [Rn, #imm]. imm must be a multiple of 4.
func EncodeLDRImm(rt, rn uint8, imm uint16) uint16 {
	return 0x6800 | ((imm>>2)&0x1F)<<6 | uint16(rn&0x7)<<3 | uint16(rt&0x7)
}

// EncodeSUBSP encodes SUB SP, SP, #imm. imm must be a multiple of 4.
func EncodeSUBSP(imm uint16) uint16 {
	return 0xB080 | (imm>>2)&0x7F
}

// EncodePUSH encodes PUSH with list bit n selecting register n. Only R0-R7
// and LR can be encoded.
func EncodePUSH(list uint16) uint16 {
	hw := 0xB400 | list&0xFF
	if list&(1<<14) != 0 {
		hw |= 1 << 8
	}
	return hw
}

// EncodeBCond encodes B<cond> with an even offset in [-256, 254].
func EncodeBCond(cond insts.Cond, offset int32) uint16 {
	return 0xD000 | uint16(cond&0xF)<<8 | uint16(offset>>1)&0xFF
}

// EncodeB encodes an unconditional B with an even offset in [-2048, 2046].
func EncodeB(offset int32) uint16 {
	return 0xE000 | uint16(offset>>1)&0x7FF
}

// EncodeBL encodes BL as its two halfwords, first-fetched first.
func EncodeBL(offset int32) []uint16 {
	imm := uint32(offset)
	s := (imm >> 24) & 0x1
	i1 := (imm >> 23) & 0x1
	i2 := (imm >> 22) & 0x1
	imm10 := (imm >> 12) & 0x3FF
	imm11 := (imm >> 1) & 0x7FF

	j1 := (^i1 ^ s) & 0x1
	j2 := (^i2 ^ s) & 0x1

	first := 0xF000 | s<<10 | imm10
	second := 0xD000 | j1<<13 | j2<<11 | imm11
	return []uint16{uint16(first), uint16(second)}
}

// Halt is B to itself, which the harness treats as program exit.
const Halt uint16 = 0xE7FE
