package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/go-cmp/cmp"

	"github.com/armvm/armvm/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	decode16 := func(hw uint16) *insts.Inst {
		return decoder.Decode(insts.NewInstruction16(hw))
	}

	DescribeTable("16-bit encodings",
		func(hw uint16, want insts.Inst) {
			inst := decode16(hw)
			want.Raw = insts.NewInstruction16(hw)
			Expect(cmp.Diff(want, *inst)).To(BeEmpty())
		},
		Entry("MOVS R0, #5", uint16(0x2005),
			insts.Inst{Op: insts.OpMOVImm, Rd: 0, Imm: 5}),
		Entry("MOVS R7, #255", uint16(0x27FF),
			insts.Inst{Op: insts.OpMOVImm, Rd: 7, Imm: 255}),
		Entry("LSLS R0, R1, #3", uint16(0x00C8),
			insts.Inst{Op: insts.OpLSLImm, Rd: 0, Rm: 1, Imm: 3}),
		Entry("CMP R2, #10", uint16(0x2A0A),
			insts.Inst{Op: insts.OpCMPImm, Rn: 2, Imm: 10}),
		Entry("SUBS R3, #1", uint16(0x3B01),
			insts.Inst{Op: insts.OpSUBImm, Rd: 3, Rn: 3, Imm: 1}),
		Entry("CMP R1, R2", uint16(0x4291),
			insts.Inst{Op: insts.OpCMPReg, Rn: 1, Rm: 2}),
		Entry("ORRS R0, R1", uint16(0x4308),
			insts.Inst{Op: insts.OpORRReg, Rd: 0, Rn: 0, Rm: 1}),
		Entry("MOV R8, R8", uint16(0x46C0),
			insts.Inst{Op: insts.OpMOVReg, Rd: 8, Rm: 8}),
		Entry("MOV PC, LR", uint16(0x46F7),
			insts.Inst{Op: insts.OpMOVReg, Rd: 15, Rm: 14}),
		Entry("LDR R0, [PC, #4]", uint16(0x4801),
			insts.Inst{Op: insts.OpLDRLit, Rt: 0, Imm: 4}),
		Entry("STR R1, [R2, #8]", uint16(0x6091),
			insts.Inst{Op: insts.OpSTRImm, Rt: 1, Rn: 2, Imm: 8}),
		Entry("LDR R1, [R2, #8]", uint16(0x6891),
			insts.Inst{Op: insts.OpLDRImm, Rt: 1, Rn: 2, Imm: 8}),
		Entry("SUB SP, #16", uint16(0xB084),
			insts.Inst{Op: insts.OpSUBSPImm, Rd: 13, Rn: 13, Imm: 16}),
		Entry("PUSH {R0, R1}", uint16(0xB403),
			insts.Inst{Op: insts.OpPUSH, RegList: 0x0003}),
		Entry("PUSH {R4, LR}", uint16(0xB510),
			insts.Inst{Op: insts.OpPUSH, RegList: 0x4010}),
		Entry("BEQ backwards", uint16(0xD0FE),
			insts.Inst{Op: insts.OpBCond, Cond: insts.CondEQ, Offset: -4}),
		Entry("BNE forwards", uint16(0xD104),
			insts.Inst{Op: insts.OpBCond, Cond: insts.CondNE, Offset: 8}),
		Entry("B backwards", uint16(0xE7FE),
			insts.Inst{Op: insts.OpB, Cond: insts.CondAL, Offset: -4}),
		Entry("B forwards", uint16(0xE008),
			insts.Inst{Op: insts.OpB, Cond: insts.CondAL, Offset: 16}),
	)

	DescribeTable("unsupported 16-bit encodings",
		func(hw uint16) {
			Expect(decode16(hw).Op).To(Equal(insts.OpUnknown))
		},
		Entry("SVC #0", uint16(0xDF00)),
		Entry("NOP hint", uint16(0xBF00)),
		Entry("ADDS R0, R1, R2", uint16(0x1888)),
		Entry("POP {R0}", uint16(0xBC01)),
	)

	Describe("BL", func() {
		decode32 := func(first, second uint16) *insts.Inst {
			return decoder.Decode(insts.NewInstruction32(first, second))
		}

		It("should decode a zero offset", func() {
			inst := decode32(0xF000, 0xF800)

			Expect(inst.Op).To(Equal(insts.OpBL))
			Expect(inst.Offset).To(Equal(int32(0)))
			Expect(inst.Rd).To(Equal(uint8(14)))
		})

		It("should sign-extend a backwards offset", func() {
			inst := decode32(0xF7FF, 0xFFFE)

			Expect(inst.Op).To(Equal(insts.OpBL))
			Expect(inst.Offset).To(Equal(int32(-4)))
		})

		It("should decode imm10 into the upper offset bits", func() {
			inst := decode32(0xF001, 0xF800)

			Expect(inst.Op).To(Equal(insts.OpBL))
			Expect(inst.Offset).To(Equal(int32(0x1000)))
		})

		It("should reject other 32-bit encodings", func() {
			Expect(decode32(0xF3EF, 0x8000).Op).To(Equal(insts.OpUnknown))
		})
	})

	It("should keep the fetched encoding", func() {
		raw := insts.NewInstruction16(0x2005)
		Expect(decoder.Decode(raw).Raw).To(Equal(raw))
	})

	It("should name operations by mnemonic", func() {
		Expect(insts.OpPUSH.String()).To(Equal("PUSH"))
		Expect(insts.OpLDRLit.String()).To(Equal("LDR"))
		Expect(insts.Op(999).String()).To(Equal("UNKNOWN"))
	})
})
