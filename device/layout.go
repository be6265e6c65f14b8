// Package device describes microcontroller memory layouts.
//
// A Layout is an ordered list of regions. Backed regions (RAM, ROM, FLASH)
// own storage; REMAP regions alias a window of another region. Layouts are
// either built in (see STM32F070CB) or loaded from YAML/JSON files.
package device

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidLayout is returned when a layout fails validation.
var ErrInvalidLayout = errors.New("invalid device layout")

// Kind is the kind of a memory region.
type Kind uint8

// Region kinds.
const (
	KindRAM Kind = iota
	KindROM
	KindFlash
	KindRemap
)

var kindNames = [...]string{
	KindRAM:   "ram",
	KindROM:   "rom",
	KindFlash: "flash",
	KindRemap: "remap",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "<unknown kind>"
}

// Backed reports whether regions of this kind own storage.
func (k Kind) Backed() bool {
	return k != KindRemap
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, errors.Errorf("unknown region kind %d", k)
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range kindNames {
		if n == name {
			*k = Kind(i)
			return nil
		}
	}
	return errors.Errorf("unknown region kind %q", text)
}

// Region is one entry of a memory layout. Target is only meaningful for
// REMAP regions and names the address the window starts aliasing at.
type Region struct {
	Name   string `json:"name" yaml:"name"`
	Kind   Kind   `json:"kind" yaml:"kind"`
	Base   uint32 `json:"base" yaml:"base"`
	Size   uint32 `json:"size" yaml:"size"`
	Target uint32 `json:"target,omitempty" yaml:"target,omitempty"`
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return uint64(r.Base) + uint64(r.Size)
}

// Contains reports whether the n bytes starting at addr lie inside the
// region.
func (r Region) Contains(addr uint32, n uint32) bool {
	start := uint64(addr)
	return start >= uint64(r.Base) && start+uint64(n) <= r.End()
}

func (r Region) overlaps(o Region) bool {
	return uint64(r.Base) < o.End() && uint64(o.Base) < r.End()
}

// Layout is a named, ordered list of regions.
type Layout struct {
	ID      string   `json:"id" yaml:"id"`
	Regions []Region `json:"regions" yaml:"regions"`
}

// Validate checks that the layout can be turned into a memory map: every
// region is non-empty and fits the 32-bit address space, regions are
// pairwise disjoint, and every REMAP window aliases a range that lies
// wholly inside one backed region.
func (l *Layout) Validate() error {
	if l.ID == "" {
		return errors.Wrap(ErrInvalidLayout, "id must not be empty")
	}
	if len(l.Regions) == 0 {
		return errors.Wrapf(ErrInvalidLayout, "%s: no regions", l.ID)
	}

	for i, r := range l.Regions {
		if r.Size == 0 {
			return errors.Wrapf(ErrInvalidLayout, "%s: region %q has zero size", l.ID, r.Name)
		}
		if int(r.Kind) >= len(kindNames) {
			return errors.Wrapf(ErrInvalidLayout, "%s: region %q has unknown kind %d", l.ID, r.Name, r.Kind)
		}
		if r.End() > 1<<32 {
			return errors.Wrapf(ErrInvalidLayout, "%s: region %q exceeds the address space", l.ID, r.Name)
		}
		for _, o := range l.Regions[:i] {
			if r.overlaps(o) {
				return errors.Wrapf(ErrInvalidLayout, "%s: region %q overlaps %q", l.ID, r.Name, o.Name)
			}
		}
	}

	for _, r := range l.Regions {
		if r.Kind != KindRemap {
			continue
		}
		if !l.backs(r.Target, r.Size) {
			return errors.Wrapf(ErrInvalidLayout,
				"%s: remap %q target 0x%08x+0x%x is not backed", l.ID, r.Name, r.Target, r.Size)
		}
	}

	return nil
}

func (l *Layout) backs(addr, n uint32) bool {
	for _, r := range l.Regions {
		if r.Kind.Backed() && r.Contains(addr, n) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the layout.
func (l *Layout) Clone() *Layout {
	regions := make([]Region, len(l.Regions))
	copy(regions, l.Regions)
	return &Layout{ID: l.ID, Regions: regions}
}
