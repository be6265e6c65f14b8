// Package insts provides ARMv6-M Thumb instruction definitions and decoding.
package insts

// Op represents a Thumb operation.
type Op uint16

// Thumb operations recognised by the decoder.
const (
	OpUnknown  Op = iota
	OpLSLImm      // LSL (immediate) T1
	OpMOVImm      // MOV (immediate) T1
	OpCMPImm      // CMP (immediate) T1
	OpSUBImm      // SUB (immediate) T2
	OpCMPReg      // CMP (register) T1
	OpORRReg      // ORR (register) T1
	OpMOVReg      // MOV (register) T1
	OpLDRLit      // LDR (literal) T1
	OpSTRImm      // STR (immediate) T1
	OpLDRImm      // LDR (immediate) T1
	OpSUBSPImm    // SUB (SP minus immediate) T1
	OpPUSH        // PUSH T1
	OpBCond       // B T1
	OpB           // B T2
	OpBL          // BL T1
)

var opNames = [...]string{
	OpUnknown:  "UNKNOWN",
	OpLSLImm:   "LSL",
	OpMOVImm:   "MOV",
	OpCMPImm:   "CMP",
	OpSUBImm:   "SUB",
	OpCMPReg:   "CMP",
	OpORRReg:   "ORR",
	OpMOVReg:   "MOV",
	OpLDRLit:   "LDR",
	OpSTRImm:   "STR",
	OpLDRImm:   "LDR",
	OpSUBSPImm: "SUB",
	OpPUSH:     "PUSH",
	OpBCond:    "B",
	OpB:        "B",
	OpBL:       "BL",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return opNames[OpUnknown]
}

// Inst represents a decoded Thumb instruction.
type Inst struct {
	Op  Op          // Operation
	Raw Instruction // Encoding the operation was decoded from

	// Register operands
	Rd uint8 // Destination register (also Rdn)
	Rn uint8 // First source / base register
	Rm uint8 // Second source register
	Rt uint8 // Transfer register for loads and stores

	// Imm is the zero-extended, already scaled immediate (imm32).
	Imm uint32

	// Branch fields
	Offset int32 // Signed branch offset in bytes, relative to PC+4
	Cond   Cond  // Condition code for conditional branches

	// RegList is the PUSH register list, bit n selecting register n.
	RegList uint16
}

type pattern16 struct {
	mask   uint16
	value  uint16
	op     Op
	decode func(hw uint16, inst *Inst)
}

type pattern32 struct {
	mask   uint32
	value  uint32
	op     Op
	decode func(word uint32, inst *Inst)
}

// Decoder decodes Thumb instructions by matching ordered tables of
// (mask, value) patterns. The first matching entry wins.
type Decoder struct {
	table16 []pattern16
	table32 []pattern32
}

// NewDecoder creates a new Thumb instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		table16: []pattern16{
			{0xF800, 0x0000, OpLSLImm, decodeShiftImm},
			{0xF800, 0x2000, OpMOVImm, decodeRdImm8},
			{0xF800, 0x2800, OpCMPImm, decodeRnImm8},
			{0xF800, 0x3800, OpSUBImm, decodeRdnImm8},
			{0xFFC0, 0x4280, OpCMPReg, decodeRnRm},
			{0xFFC0, 0x4300, OpORRReg, decodeRdnRm},
			{0xFF00, 0x4600, OpMOVReg, decodeMovReg},
			{0xF800, 0x4800, OpLDRLit, decodeLiteral},
			{0xF800, 0x6000, OpSTRImm, decodeWordImm5},
			{0xF800, 0x6800, OpLDRImm, decodeWordImm5},
			{0xFF80, 0xB080, OpSUBSPImm, decodeSPImm7},
			{0xFE00, 0xB400, OpPUSH, decodePush},
			// cond == 0b1111 is SVC, which is not modelled
			{0xFF00, 0xDF00, OpUnknown, nil},
			{0xF000, 0xD000, OpBCond, decodeBranchCond},
			{0xF800, 0xE000, OpB, decodeBranch},
		},
		table32: []pattern32{
			{0xF800D000, 0xF000D000, OpBL, decodeBranchLink},
		},
	}
}

// Decode decodes a fetched instruction. Unmatched encodings decode to an
// Inst with Op == OpUnknown.
func (d *Decoder) Decode(ins Instruction) *Inst {
	inst := &Inst{Op: OpUnknown, Raw: ins}

	if ins.Is32Bit {
		for _, p := range d.table32 {
			if ins.Raw&p.mask == p.value {
				inst.Op = p.op
				if p.decode != nil {
					p.decode(ins.Raw, inst)
				}
				break
			}
		}
		return inst
	}

	hw := uint16(ins.Raw)
	for _, p := range d.table16 {
		if hw&p.mask == p.value {
			inst.Op = p.op
			if p.decode != nil {
				p.decode(hw, inst)
			}
			break
		}
	}

	return inst
}

// decodeShiftImm: 000 op(2) imm5 Rm Rd
func decodeShiftImm(hw uint16, inst *Inst) {
	inst.Rd = uint8(hw & 0x7)
	inst.Rm = uint8((hw >> 3) & 0x7)
	inst.Imm = uint32((hw >> 6) & 0x1F)
}

func decodeRdImm8(hw uint16, inst *Inst) {
	inst.Rd = uint8((hw >> 8) & 0x7)
	inst.Imm = uint32(hw & 0xFF)
}

func decodeRnImm8(hw uint16, inst *Inst) {
	inst.Rn = uint8((hw >> 8) & 0x7)
	inst.Imm = uint32(hw & 0xFF)
}

func decodeRdnImm8(hw uint16, inst *Inst) {
	inst.Rd = uint8((hw >> 8) & 0x7)
	inst.Rn = inst.Rd
	inst.Imm = uint32(hw & 0xFF)
}

// decodeRnRm: 010000 opc(4) Rm Rn
func decodeRnRm(hw uint16, inst *Inst) {
	inst.Rn = uint8(hw & 0x7)
	inst.Rm = uint8((hw >> 3) & 0x7)
}

// decodeRdnRm: 010000 opc(4) Rm Rdn
func decodeRdnRm(hw uint16, inst *Inst) {
	inst.Rd = uint8(hw & 0x7)
	inst.Rn = inst.Rd
	inst.Rm = uint8((hw >> 3) & 0x7)
}

// decodeMovReg: 01000110 D Rm(4) Rd(3), destination is D:Rd
func decodeMovReg(hw uint16, inst *Inst) {
	inst.Rd = uint8(hw&0x7) | uint8((hw>>7)&0x1)<<3
	inst.Rm = uint8((hw >> 3) & 0xF)
}

func decodeLiteral(hw uint16, inst *Inst) {
	inst.Rt = uint8((hw >> 8) & 0x7)
	inst.Imm = uint32(hw&0xFF) << 2
}

// decodeWordImm5: 0110 L imm5 Rn Rt
func decodeWordImm5(hw uint16, inst *Inst) {
	inst.Rt = uint8(hw & 0x7)
	inst.Rn = uint8((hw >> 3) & 0x7)
	inst.Imm = uint32((hw>>6)&0x1F) << 2
}

func decodeSPImm7(hw uint16, inst *Inst) {
	inst.Rd = 13
	inst.Rn = 13
	inst.Imm = uint32(hw&0x7F) << 2
}

// decodePush: 1011010 M register_list(8), M selects LR
func decodePush(hw uint16, inst *Inst) {
	inst.RegList = hw&0xFF | ((hw>>8)&0x1)<<14
}

func decodeBranchCond(hw uint16, inst *Inst) {
	inst.Cond = Cond((hw >> 8) & 0xF)
	inst.Offset = int32(int8(hw&0xFF)) << 1
}

func decodeBranch(hw uint16, inst *Inst) {
	inst.Cond = CondAL
	// imm11:'0' sign-extended from bit 11
	inst.Offset = int32(uint32(hw&0x7FF)<<21) >> 20
}

// decodeBranchLink: 11110 S imm10 : 11 J1 1 J2 imm11
func decodeBranchLink(word uint32, inst *Inst) {
	s := (word >> 26) & 0x1
	imm10 := (word >> 16) & 0x3FF
	j1 := (word >> 13) & 0x1
	j2 := (word >> 11) & 0x1
	imm11 := word & 0x7FF

	i1 := ^(j1 ^ s) & 0x1
	i2 := ^(j2 ^ s) & 0x1

	imm32 := (s << 24) | (i1 << 23) | (i2 << 22) | (imm10 << 12) | (imm11 << 1)

	inst.Cond = CondAL
	inst.Rd = 14
	// sign-extend from bit 24
	inst.Offset = int32(imm32<<7) >> 7
}
