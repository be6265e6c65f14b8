// Package config provides the option surface of the emulator: which ISA
// and device to emulate, which program to load and where, and how long to
// run.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"

	"github.com/armvm/armvm/device"
	"github.com/armvm/armvm/isa"
)

// DefaultAddress is where raw binaries are loaded by default, the start of
// STM32 flash.
const DefaultAddress uint32 = 0x08000000

// Options holds the emulator run options.
type Options struct {
	// ISA is the architecture to emulate.
	ISA isa.ISA `json:"isa" yaml:"isa"`

	// Program is the path of the image to load.
	Program string `json:"program" yaml:"program"`

	// Device is the id of a registered device layout.
	Device string `json:"device" yaml:"device"`

	// DeviceFile is a YAML or JSON layout file. It takes precedence over
	// Device.
	DeviceFile string `json:"device_file,omitempty" yaml:"device_file,omitempty"`

	// Address is where a raw binary is loaded. ELF images carry their own
	// load addresses.
	Address uint32 `json:"address" yaml:"address"`

	// Steps limits the number of executed instructions. 0 means no limit.
	Steps uint64 `json:"steps" yaml:"steps"`

	// Trace prints every executed instruction.
	Trace bool `json:"trace" yaml:"trace"`
}

// Default returns the default options.
func Default() *Options {
	return &Options{
		ISA:     isa.ARMv6M,
		Device:  device.STM32F070CBID,
		Address: DefaultAddress,
	}
}

// Load reads options from a YAML (.yaml, .yml) or JSON file. Fields the
// file leaves out keep their defaults.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	opts := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, opts)
	} else {
		err = json.Unmarshal(data, opts)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}

	return opts, nil
}

// Save writes the options to a file, YAML or JSON by extension.
func (o *Options) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(o)
	} else {
		data, err = json.MarshalIndent(o, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "failed to serialize config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// Validate checks that the options describe a runnable configuration.
func (o *Options) Validate() error {
	if o.ISA == isa.Undefined {
		return errors.New("isa must be defined")
	}
	if o.Program == "" {
		return errors.New("program must be set")
	}
	if o.Device == "" && o.DeviceFile == "" {
		return errors.New("device or device_file must be set")
	}
	return nil
}

// Layout resolves the device layout, loading DeviceFile if set.
func (o *Options) Layout() (*device.Layout, error) {
	if o.DeviceFile != "" {
		return device.LoadLayout(o.DeviceFile)
	}
	return device.Lookup(o.Device)
}

// Clone returns a copy of the options.
func (o *Options) Clone() *Options {
	c := *o
	return &c
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
