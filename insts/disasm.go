package insts

import (
	"fmt"
	"strings"
)

// RegName returns the assembler name of a register index.
func RegName(reg uint8) string {
	switch {
	case reg < 13:
		return fmt.Sprintf("R%d", reg)
	case reg == 13:
		return "SP"
	case reg == 14:
		return "LR"
	case reg == 15:
		return "PC"
	default:
		return "<unknown register>"
	}
}

// Disassemble renders a decoded instruction in assembler syntax. pc is the
// fetch address of the instruction and is used to resolve branch and
// literal targets.
func Disassemble(inst *Inst, pc uint32) string {
	switch inst.Op {
	case OpLSLImm:
		return fmt.Sprintf("LSLS %s, %s, #%d", RegName(inst.Rd), RegName(inst.Rm), inst.Imm)
	case OpMOVImm:
		return fmt.Sprintf("MOVS %s, #%d", RegName(inst.Rd), inst.Imm)
	case OpCMPImm:
		return fmt.Sprintf("CMP %s, #%d", RegName(inst.Rn), inst.Imm)
	case OpSUBImm:
		return fmt.Sprintf("SUBS %s, #%d", RegName(inst.Rd), inst.Imm)
	case OpCMPReg:
		return fmt.Sprintf("CMP %s, %s", RegName(inst.Rn), RegName(inst.Rm))
	case OpORRReg:
		return fmt.Sprintf("ORRS %s, %s", RegName(inst.Rd), RegName(inst.Rm))
	case OpMOVReg:
		if inst.Rd == 8 && inst.Rm == 8 {
			return "NOP"
		}
		return fmt.Sprintf("MOV %s, %s", RegName(inst.Rd), RegName(inst.Rm))
	case OpLDRLit:
		target := (pc+4)&^3 + inst.Imm
		return fmt.Sprintf("LDR %s, [PC, #%d] ; 0x%08x", RegName(inst.Rt), inst.Imm, target)
	case OpSTRImm:
		return fmt.Sprintf("STR %s, [%s, #%d]", RegName(inst.Rt), RegName(inst.Rn), inst.Imm)
	case OpLDRImm:
		return fmt.Sprintf("LDR %s, [%s, #%d]", RegName(inst.Rt), RegName(inst.Rn), inst.Imm)
	case OpSUBSPImm:
		return fmt.Sprintf("SUB SP, #%d", inst.Imm)
	case OpPUSH:
		return "PUSH {" + regList(inst.RegList) + "}"
	case OpBCond:
		return fmt.Sprintf("B%s 0x%08x", inst.Cond, branchTarget(pc, inst.Offset))
	case OpB:
		return fmt.Sprintf("B 0x%08x", branchTarget(pc, inst.Offset))
	case OpBL:
		return fmt.Sprintf("BL 0x%08x", branchTarget(pc, inst.Offset))
	}

	if inst.Raw.Is32Bit {
		return fmt.Sprintf(".inst.w 0x%08x", inst.Raw.Raw)
	}
	return fmt.Sprintf(".inst.n 0x%04x", inst.Raw.Raw)
}

func branchTarget(pc uint32, offset int32) uint32 {
	return uint32(int64(pc) + 4 + int64(offset))
}

func regList(list uint16) string {
	names := make([]string, 0, 9)
	for reg := uint8(0); reg < 16; reg++ {
		if list&(1<<reg) != 0 {
			names = append(names, RegName(reg))
		}
	}
	return strings.Join(names, ", ")
}
