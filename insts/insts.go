// Package insts provides ARMv6-M Thumb instruction definitions and decoding.
//
// This package turns fetched Thumb halfwords into structured instruction
// representations. It supports:
//   - Shift, move and compare: LSL (immediate), MOV (immediate/register),
//     CMP (immediate/register), SUB (immediate), ORR (register)
//   - Loads and stores: LDR (literal/immediate), STR (immediate), PUSH
//   - Stack adjustment: SUB SP, SP, #imm
//   - Branches: B (conditional and unconditional), BL
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(insts.NewInstruction16(0x2005)) // MOVS R0, #5
//	fmt.Printf("Op: %v, Rd: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Imm)
package insts

import "strings"

// Instruction is one fetched Thumb instruction, either a single halfword or
// a 32-bit pair. For 32-bit instructions the first-fetched halfword is held
// in bits 31:16 of Raw.
type Instruction struct {
	Is32Bit bool
	Raw     uint32
}

// NewInstruction16 wraps a 16-bit encoding.
func NewInstruction16(hw uint16) Instruction {
	return Instruction{Raw: uint32(hw)}
}

// NewInstruction32 packs the two halfwords of a 32-bit encoding.
func NewInstruction32(first, second uint16) Instruction {
	return Instruction{Is32Bit: true, Raw: uint32(first)<<16 | uint32(second)}
}

// IsWide reports whether a first halfword starts a 32-bit encoding, i.e.
// whether bits 15:11 are 0b11101, 0b11110 or 0b11111.
func IsWide(first uint16) bool {
	switch first >> 11 {
	case 0b11101, 0b11110, 0b11111:
		return true
	}
	return false
}

// Size returns the instruction length in bytes.
func (i Instruction) Size() uint32 {
	if i.Is32Bit {
		return 4
	}
	return 2
}

// Bits renders the encoding in binary, grouped by nibble.
func (i Instruction) Bits() string {
	width := 16
	if i.Is32Bit {
		width = 32
	}

	var sb strings.Builder
	sb.WriteString("0b")
	for n := 0; n < width; n++ {
		if (i.Raw>>(width-1-n))&1 == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
		if (n+1)%4 == 0 && n+1 < width {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}
