// Package loader loads program images into emulator memory.
//
// Raw binaries are copied byte by byte to a chosen address. ELF images
// must be 32-bit little-endian ARM executables; every PT_LOAD segment is
// written at its physical (load) address, so initialised data lands in
// flash the way a programmer would place it.
package loader

import (
	"debug/elf"
	"io"

	"github.com/pkg/errors"
)

// Memory is the memory an image is written into.
type Memory interface {
	Write8(addr uint32, value uint8) error
}

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF image.
type Segment struct {
	// PhysAddr is the load address the segment is written to.
	PhysAddr uint32
	// VirtAddr is the run-time address of the segment.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a parsed ELF image.
type Program struct {
	// EntryPoint is the ELF entry address. Execution on the core starts
	// at the reset vector; the entry is informational.
	EntryPoint uint32
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
}

// ParseELF parses a 32-bit ARM ELF executable.
func ParseELF(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ELF file")
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, errors.New("not a 32-bit ELF file")
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, errors.New("not a little-endian ELF file")
	}
	if f.Machine != elf.EM_ARM {
		return nil, errors.Errorf("not an ARM ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{EntryPoint: uint32(f.Entry)}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, errors.Wrapf(err, "failed to read segment at 0x%x", phdr.Paddr)
			}
			if uint64(n) != phdr.Filesz {
				return nil, errors.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Paddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			PhysAddr: uint32(phdr.Paddr),
			VirtAddr: uint32(phdr.Vaddr),
			Data:     data,
			MemSize:  uint32(phdr.Memsz),
			Flags:    flags,
		})
	}

	return prog, nil
}

// LoadELF parses an ELF image and writes its segments into mem. File data
// goes to the load (physical) address; the part of a segment past its file
// data is zero-filled at its run (virtual) address.
func LoadELF(mem Memory, path string) (*Program, error) {
	prog, err := ParseELF(path)
	if err != nil {
		return nil, err
	}

	for _, seg := range prog.Segments {
		for i, b := range seg.Data {
			if err := mem.Write8(seg.PhysAddr+uint32(i), b); err != nil {
				return nil, errors.Wrapf(err, "failed to load segment at 0x%08x", seg.PhysAddr)
			}
		}

		// BSS
		for i := uint32(len(seg.Data)); i < seg.MemSize; i++ {
			if err := mem.Write8(seg.VirtAddr+i, 0); err != nil {
				return nil, errors.Wrapf(err, "failed to clear segment at 0x%08x", seg.VirtAddr)
			}
		}
	}

	return prog, nil
}
