// Package isa names the ARM M-profile instruction set architectures.
package isa

import (
	"strings"

	"github.com/pkg/errors"
)

// ISA is an M-profile architecture version.
type ISA uint8

// Architectures. Only ARMv6M can be executed.
const (
	Undefined ISA = iota
	ARMv6M
	ARMv7M
	ARMv8M
)

var names = [...]string{
	Undefined: "Undefined",
	ARMv6M:    "Armv6-M",
	ARMv7M:    "Armv7-M",
	ARMv8M:    "Armv8-M",
}

func (i ISA) String() string {
	if int(i) < len(names) {
		return names[i]
	}
	return names[Undefined]
}

// Parse converts a name such as "armv6-m" or "ARMV6_M" to an ISA. Case is
// ignored and '_' matches '-'. Anything else, surrounding whitespace
// included, yields Undefined.
func Parse(s string) ISA {
	s = strings.ReplaceAll(s, "_", "-")
	for i := ARMv6M; int(i) < len(names); i++ {
		if strings.EqualFold(s, names[i]) {
			return i
		}
	}
	return Undefined
}

// MarshalText implements encoding.TextMarshaler.
func (i ISA) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names are an
// error rather than Undefined so that typos in option files surface.
func (i *ISA) UnmarshalText(text []byte) error {
	v := Parse(string(text))
	if v == Undefined {
		return errors.Errorf("unknown ISA %q", text)
	}
	*i = v
	return nil
}
