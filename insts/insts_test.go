package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/armvm/armvm/insts"
)

var _ = Describe("Insts Package", func() {
	It("should have an Instruction type", func() {
		var i insts.Instruction
		Expect(i).To(BeZero())
	})

	It("should have a Decoder type", func() {
		decoder := insts.NewDecoder()
		Expect(decoder).ToNot(BeNil())
	})

	Describe("Instruction", func() {
		It("should pack the first halfword into the high bits", func() {
			i := insts.NewInstruction32(0xF000, 0xF800)

			Expect(i.Is32Bit).To(BeTrue())
			Expect(i.Raw).To(Equal(uint32(0xF000F800)))
			Expect(i.Size()).To(Equal(uint32(4)))
		})

		It("should report a 16-bit size", func() {
			Expect(insts.NewInstruction16(0x2005).Size()).To(Equal(uint32(2)))
		})

		It("should render 16-bit encodings in nibble groups", func() {
			Expect(insts.NewInstruction16(0x2005).Bits()).To(Equal("0b0010 0000 0000 0101"))
		})

		It("should render 32-bit encodings in nibble groups", func() {
			Expect(insts.NewInstruction32(0xF7FF, 0xFFFE).Bits()).
				To(Equal("0b1111 0111 1111 1111 1111 1111 1111 1110"))
		})
	})

	DescribeTable("IsWide",
		func(first uint16, wide bool) {
			Expect(insts.IsWide(first)).To(Equal(wide))
		},
		Entry("0b11101 prefix", uint16(0xE800), true),
		Entry("0b11110 prefix", uint16(0xF000), true),
		Entry("0b11111 prefix", uint16(0xF800), true),
		Entry("0b11100 prefix (B T2)", uint16(0xE000), false),
		Entry("MOVS", uint16(0x2005), false),
		Entry("conditional branch", uint16(0xD0FE), false),
	)
})
