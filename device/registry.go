package device

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrUnknownDevice is returned when a device id has no registered layout.
var ErrUnknownDevice = errors.New("unknown device")

// STM32F070CBID is the id of the built-in STM32F070CB layout.
const STM32F070CBID = "STM32F070CB"

// STM32F070CB returns the memory layout of the STM32F070CB: 128 KiB of
// flash mirrored at address zero, 16 KiB of SRAM and the 1 MiB private
// peripheral bus.
func STM32F070CB() *Layout {
	return &Layout{
		ID: STM32F070CBID,
		Regions: []Region{
			{Name: "boot", Kind: KindRemap, Base: 0x00000000, Size: 128 * 1024, Target: 0x08000000},
			{Name: "flash", Kind: KindFlash, Base: 0x08000000, Size: 128 * 1024},
			{Name: "sram", Kind: KindRAM, Base: 0x20000000, Size: 16 * 1024},
			{Name: "ppb", Kind: KindRAM, Base: 0xE0000000, Size: 1024 * 1024},
		},
	}
}

// Registry maps device ids to layouts. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	layouts map[string]*Layout
}

// NewRegistry creates a registry holding the built-in layouts.
func NewRegistry() *Registry {
	r := &Registry{layouts: make(map[string]*Layout)}
	r.layouts[STM32F070CBID] = STM32F070CB()
	return r
}

// Register validates and adds a layout, replacing any layout with the same
// id.
func (r *Registry) Register(l *Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.layouts[l.ID] = l.Clone()
	return nil
}

// Lookup returns a copy of the layout registered under id.
func (r *Registry) Lookup(id string) (*Layout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.layouts[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownDevice, "%q", id)
	}
	return l.Clone(), nil
}

// IDs returns the registered device ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.layouts))
	for id := range r.layouts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var defaultRegistry = NewRegistry()

// Lookup returns a built-in layout or one added with Register.
func Lookup(id string) (*Layout, error) {
	return defaultRegistry.Lookup(id)
}

// Register adds a layout to the default registry.
func Register(l *Layout) error {
	return defaultRegistry.Register(l)
}
