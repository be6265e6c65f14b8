package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/armvm/armvm/config"
	"github.com/armvm/armvm/device"
	"github.com/armvm/armvm/isa"
)

var _ = Describe("Options", func() {
	var tempDir string

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	It("should default to an Armv6-M STM32F070CB", func() {
		opts := config.Default()

		Expect(opts.ISA).To(Equal(isa.ARMv6M))
		Expect(opts.Device).To(Equal("STM32F070CB"))
		Expect(opts.Address).To(Equal(uint32(0x08000000)))
		Expect(opts.Steps).To(BeZero())
		Expect(opts.Trace).To(BeFalse())
		Expect(opts.Program).To(BeEmpty())
	})

	Describe("Validate", func() {
		It("should accept defaults with a program", func() {
			opts := config.Default()
			opts.Program = "firmware.bin"
			Expect(opts.Validate()).To(Succeed())
		})

		It("should require a program", func() {
			Expect(config.Default().Validate()).To(MatchError(ContainSubstring("program")))
		})

		It("should reject an undefined ISA", func() {
			opts := config.Default()
			opts.Program = "firmware.bin"
			opts.ISA = isa.Undefined
			Expect(opts.Validate()).To(MatchError(ContainSubstring("isa")))
		})

		It("should require a device", func() {
			opts := config.Default()
			opts.Program = "firmware.bin"
			opts.Device = ""
			Expect(opts.Validate()).To(HaveOccurred())

			opts.DeviceFile = "board.yaml"
			Expect(opts.Validate()).To(Succeed())
		})
	})

	Describe("Load", func() {
		It("should overlay YAML files on the defaults", func() {
			path := filepath.Join(tempDir, "run.yaml")
			Expect(os.WriteFile(path, []byte(`
isa: armv6-m
program: build/blink.elf
steps: 1000
trace: true
`), 0644)).To(Succeed())

			opts, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())

			want := config.Default()
			want.Program = "build/blink.elf"
			want.Steps = 1000
			want.Trace = true
			Expect(cmp.Diff(want, opts)).To(BeEmpty())
		})

		It("should read hex addresses from YAML", func() {
			path := filepath.Join(tempDir, "run.yml")
			Expect(os.WriteFile(path, []byte("address: 0x20000000\n"), 0644)).To(Succeed())

			opts, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(opts.Address).To(Equal(uint32(0x20000000)))
		})

		It("should reject unknown ISAs", func() {
			path := filepath.Join(tempDir, "run.json")
			Expect(os.WriteFile(path, []byte(`{"isa": "Armv9-A"}`), 0644)).To(Succeed())

			_, err := config.Load(path)
			Expect(err).To(MatchError(ContainSubstring("failed to parse")))
		})

		It("should report missing files", func() {
			_, err := config.Load(filepath.Join(tempDir, "missing.json"))
			Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
		})

		It("should round-trip through Save", func() {
			opts := config.Default()
			opts.Program = "a.bin"
			opts.Steps = 12
			opts.DeviceFile = "board.yaml"

			for _, name := range []string{"out.json", "out.yaml"} {
				path := filepath.Join(tempDir, name)
				Expect(opts.Save(path)).To(Succeed())

				loaded, err := config.Load(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(cmp.Diff(opts, loaded)).To(BeEmpty())
			}
		})
	})

	Describe("Layout", func() {
		It("should look up registered devices", func() {
			l, err := config.Default().Layout()
			Expect(err).NotTo(HaveOccurred())
			Expect(l.ID).To(Equal(device.STM32F070CBID))
		})

		It("should prefer the device file", func() {
			path := filepath.Join(tempDir, "board.json")
			Expect(device.SaveLayout(&device.Layout{ID: "board", Regions: []device.Region{
				{Name: "ram", Kind: device.KindRAM, Base: 0, Size: 0x1000},
			}}, path)).To(Succeed())

			opts := config.Default()
			opts.DeviceFile = path

			l, err := opts.Layout()
			Expect(err).NotTo(HaveOccurred())
			Expect(l.ID).To(Equal("board"))
		})

		It("should report unknown devices", func() {
			opts := config.Default()
			opts.Device = "nope"

			_, err := opts.Layout()
			Expect(errors.Is(err, device.ErrUnknownDevice)).To(BeTrue())
		})
	})

	It("should clone independently", func() {
		opts := config.Default()
		c := opts.Clone()
		c.Steps = 5

		Expect(opts.Steps).To(BeZero())
	})
})
