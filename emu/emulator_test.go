package emu_test

import (
	"bytes"
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pkg/errors"

	"github.com/armvm/armvm/device"
	"github.com/armvm/armvm/emu"
	"github.com/armvm/armvm/insts"
	"github.com/armvm/armvm/isa"
)

const (
	flashBase = uint32(0x08000000)
	entry     = uint32(0x08000100)
	stackTop  = uint32(0x20004000)
)

// loadProgram writes a vector table and Thumb code into flash. The code
// starts at entry.
func loadProgram(e *emu.Emulator, code ...uint16) {
	m := e.Memory()
	Expect(m.Write32(flashBase, stackTop)).To(Succeed())
	Expect(m.Write32(flashBase+4, entry|1)).To(Succeed())

	addr := entry
	for _, hw := range code {
		Expect(m.Write16(addr, hw)).To(Succeed())
		addr += 2
	}
}

var _ = Describe("Emulator", func() {
	var e *emu.Emulator

	BeforeEach(func() {
		var err error
		e, err = emu.NewEmulator(emu.WithLogger(GinkgoLogr))
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		e.Close()
	})

	Describe("NewEmulator", func() {
		It("should create an emulator with initialized components", func() {
			Expect(e.RegFile()).NotTo(BeNil())
			Expect(e.Memory()).NotTo(BeNil())
			Expect(e.Layout().ID).To(Equal(device.STM32F070CBID))
			Expect(e.ID()).ToNot(BeEmpty())
		})

		It("should give every emulator its own id", func() {
			other, err := emu.NewEmulator(emu.WithLogger(GinkgoLogr))
			Expect(err).ToNot(HaveOccurred())
			defer other.Close()

			Expect(other.ID()).ToNot(Equal(e.ID()))
		})

		It("should refuse other ISAs", func() {
			_, err := emu.NewEmulator(emu.WithISA(isa.ARMv7M))
			Expect(errors.Is(err, emu.ErrInvalidOpts)).To(BeTrue())
		})

		It("should refuse unknown devices", func() {
			_, err := emu.NewEmulator(emu.WithDevice("STM32F103C8"))
			Expect(errors.Is(err, emu.ErrInvalidOpts)).To(BeTrue())
		})

		It("should refuse a nil layout", func() {
			_, err := emu.NewEmulator(emu.WithLayout(nil))
			Expect(errors.Is(err, emu.ErrInvalidParam)).To(BeTrue())
		})

		It("should accept custom layouts", func() {
			layout := &device.Layout{ID: "tiny", Regions: []device.Region{
				{Name: "ram", Kind: device.KindRAM, Base: 0, Size: 0x1000},
			}}
			tiny, err := emu.NewEmulator(emu.WithLayout(layout), emu.WithLogger(GinkgoLogr))
			Expect(err).ToNot(HaveOccurred())
			defer tiny.Close()

			Expect(tiny.Memory().Write32(0x0FFC, 1)).To(Succeed())
			Expect(errors.Is(tiny.Memory().Write32(0x1000, 1), emu.ErrInvalidAddr)).To(BeTrue())
		})

		It("should run against supplied memory", func() {
			m, err := emu.NewMemoryMap(device.STM32F070CB())
			Expect(err).ToNot(HaveOccurred())
			defer m.Close()

			shared, err := emu.NewEmulator(emu.WithMemory(m), emu.WithLogger(GinkgoLogr))
			Expect(err).ToNot(HaveOccurred())

			Expect(shared.Memory()).To(BeIdenticalTo(m))
			Expect(shared.Layout()).To(BeNil())

			shared.Close()
			Expect(m.Write8(0x20000000, 1)).To(Succeed())
		})
	})

	Describe("Reset", func() {
		It("should load SP and PC from the vector table", func() {
			loadProgram(e)

			Expect(e.Reset()).To(Succeed())

			Expect(e.RegFile().SP()).To(Equal(stackTop))
			Expect(e.RegFile().PC()).To(Equal(entry))
			Expect(e.RegFile().EPSRT()).To(BeTrue())
			Expect(e.RegFile().APSR()).To(Equal(uint32(0)))
			Expect(e.RegFile().ReadControl()).To(Equal(uint32(0)))
			Expect(e.Mode()).To(Equal(emu.ModeThread))
		})

		It("should clear state left by a previous run", func() {
			loadProgram(e, 0x2005)
			Expect(e.Reset()).To(Succeed())
			Expect(e.Step().Err).ToNot(HaveOccurred())

			Expect(e.Reset()).To(Succeed())

			Expect(e.RegFile().ReadGPR(0)).To(Equal(uint32(0)))
			Expect(e.RegFile().PC()).To(Equal(entry))
			Expect(e.InstructionCount()).To(BeZero())
		})

		It("should fail when the vector table is unmapped", func() {
			layout := &device.Layout{ID: "high", Regions: []device.Region{
				{Name: "ram", Kind: device.KindRAM, Base: 0x20000000, Size: 0x1000},
			}}
			high, err := emu.NewEmulator(emu.WithLayout(layout), emu.WithLogger(GinkgoLogr))
			Expect(err).ToNot(HaveOccurred())
			defer high.Close()

			Expect(errors.Is(high.Reset(), emu.ErrInvalidAddr)).To(BeTrue())
			Expect(errors.Is(high.Step().Err, emu.ErrNotReset)).To(BeTrue())
		})
	})

	Describe("Step", func() {
		It("should refuse to run before Reset", func() {
			result := e.Step()

			Expect(errors.Is(result.Err, emu.ErrNotReset)).To(BeTrue())
			Expect(errors.Is(result.Err, emu.ErrFail)).To(BeTrue())
		})

		It("should execute MOVS R0, #5", func() {
			loadProgram(e, 0x2005)
			Expect(e.Reset()).To(Succeed())
			e.RegFile().SetAPSR(insts.APSRZ | insts.APSRC)

			result := e.Step()

			Expect(result.Err).ToNot(HaveOccurred())
			Expect(result.PC).To(Equal(entry))
			Expect(result.Inst.Op).To(Equal(insts.OpMOVImm))
			Expect(e.RegFile().ReadGPR(0)).To(Equal(uint32(5)))
			Expect(e.RegFile().PC()).To(Equal(entry + 2))
			Expect(e.RegFile().APSR()).To(Equal(insts.APSRC))
			Expect(e.InstructionCount()).To(Equal(uint64(1)))
		})

		It("should execute MOVS R0, #5 from the start of flash", func() {
			m := e.Memory()
			Expect(m.Write32(flashBase, stackTop)).To(Succeed())
			Expect(m.Write32(flashBase+4, flashBase|1)).To(Succeed())
			Expect(e.Reset()).To(Succeed())
			Expect(e.RegFile().PC()).To(Equal(flashBase))

			// code replaces the vector table words once reset has read them
			Expect(m.Write16(flashBase, 0x2005)).To(Succeed())
			Expect(m.Write16(flashBase+2, 0xE7FE)).To(Succeed())
			e.RegFile().SetAPSR(insts.APSRN | insts.APSRZ)

			result := e.Step()

			Expect(result.Err).ToNot(HaveOccurred())
			Expect(result.PC).To(Equal(flashBase))
			Expect(e.RegFile().ReadGPR(0)).To(Equal(uint32(5)))
			Expect(e.RegFile().APSR() & (insts.APSRN | insts.APSRZ)).To(BeZero())
			Expect(e.RegFile().PC()).To(Equal(flashBase + 2))
		})

		It("should execute PUSH {R0, R1}", func() {
			loadProgram(e, 0xB403)
			Expect(e.Reset()).To(Succeed())
			Expect(e.RegFile().WriteGPR(0, 0xAAAA0000)).To(Succeed())
			Expect(e.RegFile().WriteGPR(1, 0xBBBB1111)).To(Succeed())

			Expect(e.Step().Err).ToNot(HaveOccurred())

			Expect(e.RegFile().SP()).To(Equal(uint32(0x20003FF8)))
			Expect(e.Memory().Read32(0x20003FF8)).To(Equal(uint32(0xAAAA0000)))
			Expect(e.Memory().Read32(0x20003FFC)).To(Equal(uint32(0xBBBB1111)))
			Expect(e.RegFile().PC()).To(Equal(entry + 2))
		})

		It("should fail an empty PUSH without side effects", func() {
			loadProgram(e, 0xB400)
			Expect(e.Reset()).To(Succeed())
			before := e.RegFile().Snapshot()

			result := e.Step()

			Expect(errors.Is(result.Err, emu.ErrUnpredictable)).To(BeTrue())
			Expect(e.RegFile().Snapshot()).To(Equal(before))
			Expect(e.InstructionCount()).To(BeZero())
		})

		It("should load literals", func() {
			loadProgram(e, 0x4801, 0x46C0, 0x46C0, 0x46C0, 0xBABE, 0xCAFE)
			Expect(e.Reset()).To(Succeed())

			Expect(e.Step().Err).ToNot(HaveOccurred())

			Expect(e.RegFile().ReadGPR(0)).To(Equal(uint32(0xCAFEBABE)))
		})

		It("should store and load through base registers", func() {
			// STR R0, [R1, #8]; LDR R2, [R1, #8]
			loadProgram(e, 0x6088, 0x688A)
			Expect(e.Reset()).To(Succeed())
			Expect(e.RegFile().WriteGPR(0, 0x0BADF00D)).To(Succeed())
			Expect(e.RegFile().WriteGPR(1, 0x20000100)).To(Succeed())

			Expect(e.Step().Err).ToNot(HaveOccurred())
			Expect(e.Step().Err).ToNot(HaveOccurred())

			Expect(e.Memory().Read32(0x20000108)).To(Equal(uint32(0x0BADF00D)))
			Expect(e.RegFile().ReadGPR(2)).To(Equal(uint32(0x0BADF00D)))
		})

		It("should lower SP", func() {
			loadProgram(e, 0xB084)
			Expect(e.Reset()).To(Succeed())

			Expect(e.Step().Err).ToNot(HaveOccurred())

			Expect(e.RegFile().SP()).To(Equal(stackTop - 16))
		})

		It("should move to high registers", func() {
			loadProgram(e, 0x2007, 0x4680)
			Expect(e.Reset()).To(Succeed())

			Expect(e.Step().Err).ToNot(HaveOccurred())
			Expect(e.Step().Err).ToNot(HaveOccurred())

			Expect(e.RegFile().ReadGPR(8)).To(Equal(uint32(7)))
			Expect(e.RegFile().PC()).To(Equal(entry + 4))
		})

		It("should return through MOV PC, LR", func() {
			loadProgram(e, 0x46F7)
			Expect(e.Reset()).To(Succeed())
			Expect(e.RegFile().WriteGPR(emu.RegLR, 0x08000201)).To(Succeed())

			Expect(e.Step().Err).ToNot(HaveOccurred())

			Expect(e.RegFile().PC()).To(Equal(uint32(0x08000200)))
		})

		It("should call through BL", func() {
			loadProgram(e, 0xF001, 0xF800)
			Expect(e.Reset()).To(Succeed())

			result := e.Step()

			Expect(result.Err).ToNot(HaveOccurred())
			Expect(result.Inst.Op).To(Equal(insts.OpBL))
			Expect(e.RegFile().ReadGPR(emu.RegLR)).To(Equal(entry + 5))
			Expect(e.RegFile().PC()).To(Equal(entry + 4 + 0x1000))
		})

		It("should fall through untaken conditional branches", func() {
			// MOVS R0, #1; CMP R0, #0; BEQ .
			loadProgram(e, 0x2001, 0x2800, 0xD0FE)
			Expect(e.Reset()).To(Succeed())

			for i := 0; i < 3; i++ {
				Expect(e.Step().Err).ToNot(HaveOccurred())
			}

			Expect(e.RegFile().PC()).To(Equal(entry + 6))
		})

		It("should report LSLS #0 as unimplemented", func() {
			loadProgram(e, 0x0008)
			Expect(e.Reset()).To(Succeed())

			result := e.Step()

			Expect(errors.Is(result.Err, emu.ErrUnimplemented)).To(BeTrue())
			Expect(e.RegFile().PC()).To(Equal(entry))
		})

		It("should fail fetches from unmapped memory", func() {
			loadProgram(e)
			Expect(e.Memory().Write32(flashBase+4, 0x30000001)).To(Succeed())
			Expect(e.Reset()).To(Succeed())

			result := e.Step()

			Expect(errors.Is(result.Err, emu.ErrInvalidAddr)).To(BeTrue())
			Expect(result.Inst).To(BeNil())
		})

		It("should fail a 32-bit fetch whose second half is unmapped", func() {
			loadProgram(e)
			Expect(e.Memory().Write16(0x2000_3FFE, 0xF000)).To(Succeed())

			_, err := e.LoadInstruction(0x20003FFE)

			Expect(errors.Is(err, emu.ErrInvalidAddr)).To(BeTrue())
		})
	})

	Describe("unknown instructions", func() {
		It("should fail and log the encoding", func() {
			stderr := &bytes.Buffer{}
			logged, err := emu.NewEmulator(emu.WithStderr(stderr))
			Expect(err).ToNot(HaveOccurred())
			defer logged.Close()

			loadProgram(logged, 0xBF00)
			Expect(logged.Reset()).To(Succeed())

			result := logged.Step()

			Expect(errors.Is(result.Err, emu.ErrUnknownInstruction)).To(BeTrue())
			Expect(errors.Is(result.Err, emu.ErrFail)).To(BeTrue())
			Expect(stderr.String()).To(ContainSubstring("undefined instruction"))
			Expect(stderr.String()).To(ContainSubstring("0xbf00"))
			Expect(stderr.String()).To(ContainSubstring("0b1011 1111 0000 0000"))
			Expect(stderr.String()).To(ContainSubstring(logged.ID()))
		})
	})

	Describe("LoadInstruction", func() {
		It("should fetch 32-bit encodings as a pair", func() {
			loadProgram(e, 0xF7FF, 0xFFFE)

			ins, err := e.LoadInstruction(entry)

			Expect(err).ToNot(HaveOccurred())
			Expect(ins).To(Equal(insts.NewInstruction32(0xF7FF, 0xFFFE)))
		})

		It("should fetch at the PC", func() {
			loadProgram(e, 0x2005)
			Expect(e.Reset()).To(Succeed())

			ins, err := e.LoadNextInstruction()

			Expect(err).ToNot(HaveOccurred())
			Expect(ins).To(Equal(insts.NewInstruction16(0x2005)))
		})

		It("should refuse odd addresses", func() {
			_, err := e.LoadInstruction(entry + 1)
			Expect(errors.Is(err, emu.ErrAddrNotAligned)).To(BeTrue())
		})
	})

	Describe("Run", func() {
		// MOVS R0, #3; loop: SUBS R0, #1; BNE loop; B .
		countdown := []uint16{0x2003, 0x3801, 0xD1FD, 0xE7FE}

		It("should stop at the instruction limit", func() {
			limited, err := emu.NewEmulator(emu.WithMaxInstructions(20), emu.WithLogger(GinkgoLogr))
			Expect(err).ToNot(HaveOccurred())
			defer limited.Close()

			loadProgram(limited, countdown...)
			Expect(limited.Reset()).To(Succeed())

			err = limited.Run()

			Expect(errors.Is(err, emu.ErrStepLimit)).To(BeTrue())
			Expect(limited.InstructionCount()).To(Equal(uint64(20)))
			Expect(limited.RegFile().ReadGPR(0)).To(Equal(uint32(0)))
			Expect(limited.RegFile().APSR()).To(Equal(insts.APSRZ | insts.APSRC))
			Expect(limited.RegFile().PC()).To(Equal(entry + 6))
		})

		It("should stop on the first error", func() {
			loadProgram(e, 0x2003, 0xBF00)
			Expect(e.Reset()).To(Succeed())

			err := e.Run()

			Expect(errors.Is(err, emu.ErrUnknownInstruction)).To(BeTrue())
			Expect(e.InstructionCount()).To(Equal(uint64(1)))
		})

		It("should honour cancellation", func() {
			loadProgram(e, countdown...)
			Expect(e.Reset()).To(Succeed())

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			Expect(e.RunContext(ctx)).To(MatchError(context.Canceled))
			Expect(e.InstructionCount()).To(BeZero())
		})
	})

	It("should trace executed instructions", func() {
		trace := &bytes.Buffer{}
		traced, err := emu.NewEmulator(emu.WithTrace(trace), emu.WithLogger(GinkgoLogr))
		Expect(err).ToNot(HaveOccurred())
		defer traced.Close()

		loadProgram(traced, 0x2005, 0xB403)
		Expect(traced.Reset()).To(Succeed())
		Expect(traced.Step().Err).ToNot(HaveOccurred())
		Expect(traced.Step().Err).ToNot(HaveOccurred())

		Expect(trace.String()).To(Equal(
			"0x08000100: MOVS R0, #5\n" +
				"0x08000102: PUSH {R0, R1}\n"))
	})
})
