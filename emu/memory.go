package emu

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/armvm/armvm/device"
)

// Memory is the data and instruction memory seen by the core. Addresses are
// 32-bit and values little-endian. The plain 16- and 32-bit accessors
// require natural alignment; the Unaligned variants do not.
type Memory interface {
	Read8(addr uint32) (uint8, error)
	Read16(addr uint32) (uint16, error)
	Read32(addr uint32) (uint32, error)
	Read16Unaligned(addr uint32) (uint16, error)
	Read32Unaligned(addr uint32) (uint32, error)

	Write8(addr uint32, value uint8) error
	Write16(addr uint32, value uint16) error
	Write32(addr uint32, value uint32) error
	Write16Unaligned(addr uint32, value uint16) error
	Write32Unaligned(addr uint32, value uint32) error
}

type region struct {
	device.Region
	storage *mem.Storage
}

// MemoryMap is a Memory composed of the regions of a device layout. Backed
// regions keep their bytes in an akita storage; REMAP regions forward to
// their target.
type MemoryMap struct {
	regions []region
}

// NewMemoryMap allocates storage for every backed region of layout.
func NewMemoryMap(layout *device.Layout) (*MemoryMap, error) {
	if layout == nil {
		return nil, errors.Wrap(ErrInvalidParam, "nil layout")
	}
	if err := layout.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidOpts, err.Error())
	}

	m := &MemoryMap{regions: make([]region, 0, len(layout.Regions))}
	for _, r := range layout.Regions {
		entry := region{Region: r}
		if r.Kind.Backed() {
			entry.storage = mem.NewStorage(uint64(r.Size))
		}
		m.regions = append(m.regions, entry)
	}

	return m, nil
}

// Close releases the storage of every region. Accesses after Close fail
// with ErrInvalidAddr.
func (m *MemoryMap) Close() {
	for i := range m.regions {
		m.regions[i].storage = nil
	}
	m.regions = nil
}

// Regions returns the regions the map was built from.
func (m *MemoryMap) Regions() []device.Region {
	out := make([]device.Region, len(m.regions))
	for i, r := range m.regions {
		out[i] = r.Region
	}
	return out
}

func (m *MemoryMap) find(addr, n uint32) *region {
	for i := range m.regions {
		if m.regions[i].Contains(addr, n) {
			return &m.regions[i]
		}
	}
	return nil
}

// resolve maps an access of n bytes at addr to a backing storage and an
// offset into it, following REMAP windows. An access that is not wholly
// inside one region misses.
func (m *MemoryMap) resolve(addr, n uint32) (*mem.Storage, uint64, error) {
	orig := addr
	for hops := 0; hops <= len(m.regions); hops++ {
		r := m.find(addr, n)
		if r == nil {
			return nil, 0, errors.Wrapf(ErrInvalidAddr, "0x%08x", orig)
		}
		if r.storage != nil {
			return r.storage, uint64(addr - r.Base), nil
		}
		if r.Kind.Backed() {
			break
		}
		addr = r.Target + (addr - r.Base)
	}
	return nil, 0, errors.Wrapf(ErrInvalidAddr, "0x%08x is not backed", orig)
}

func (m *MemoryMap) read(addr, n uint32) ([]byte, error) {
	s, off, err := m.resolve(addr, n)
	if err != nil {
		return nil, err
	}
	return s.Read(off, uint64(n))
}

func (m *MemoryMap) write(addr uint32, data []byte) error {
	s, off, err := m.resolve(addr, uint32(len(data)))
	if err != nil {
		return err
	}
	return s.Write(off, data)
}

func checkAlign(addr, n uint32) error {
	if addr%n != 0 {
		return errors.Wrapf(ErrAddrNotAligned, "0x%08x for a %d-byte access", addr, n)
	}
	return nil
}

// Read8 reads a byte.
func (m *MemoryMap) Read8(addr uint32) (uint8, error) {
	data, err := m.read(addr, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// Read16 reads a halfword from an even address.
func (m *MemoryMap) Read16(addr uint32) (uint16, error) {
	if err := checkAlign(addr, 2); err != nil {
		return 0, err
	}
	return m.Read16Unaligned(addr)
}

// Read32 reads a word from a word-aligned address.
func (m *MemoryMap) Read32(addr uint32) (uint32, error) {
	if err := checkAlign(addr, 4); err != nil {
		return 0, err
	}
	return m.Read32Unaligned(addr)
}

// Read16Unaligned reads a halfword from any address.
func (m *MemoryMap) Read16Unaligned(addr uint32) (uint16, error) {
	data, err := m.read(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// Read32Unaligned reads a word from any address.
func (m *MemoryMap) Read32Unaligned(addr uint32) (uint32, error) {
	data, err := m.read(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// Write8 writes a byte.
func (m *MemoryMap) Write8(addr uint32, value uint8) error {
	return m.write(addr, []byte{value})
}

// Write16 writes a halfword to an even address.
func (m *MemoryMap) Write16(addr uint32, value uint16) error {
	if err := checkAlign(addr, 2); err != nil {
		return err
	}
	return m.Write16Unaligned(addr, value)
}

// Write32 writes a word to a word-aligned address.
func (m *MemoryMap) Write32(addr uint32, value uint32) error {
	if err := checkAlign(addr, 4); err != nil {
		return err
	}
	return m.Write32Unaligned(addr, value)
}

// Write16Unaligned writes a halfword to any address.
func (m *MemoryMap) Write16Unaligned(addr uint32, value uint16) error {
	return m.write(addr, binary.LittleEndian.AppendUint16(nil, value))
}

// Write32Unaligned writes a word to any address.
func (m *MemoryMap) Write32Unaligned(addr uint32, value uint32) error {
	return m.write(addr, binary.LittleEndian.AppendUint32(nil, value))
}
