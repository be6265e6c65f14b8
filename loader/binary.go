package loader

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// LoadBinary copies the file at path into mem starting at addr, one byte
// at a time, and returns the number of bytes written.
func LoadBinary(mem Memory, addr uint32, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrap(err, "failed to stat program")
	}
	if info.IsDir() {
		return 0, errors.Errorf("%s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "failed to open program")
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)
	n := 0
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, errors.Wrap(err, "failed to read program")
		}
		if err := mem.Write8(addr+uint32(n), b); err != nil {
			return n, errors.Wrapf(err, "failed to load byte %d", n)
		}
		n++
	}

	return n, nil
}

// IsELF reports whether the file at path starts with the ELF magic.
func IsELF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errors.Wrap(err, "failed to open program")
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, len(elfMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to read program")
	}
	return bytes.Equal(magic, elfMagic), nil
}

// Load writes the program at path into mem. ELF images are placed at their
// load addresses; anything else is copied as a raw binary to addr.
func Load(mem Memory, addr uint32, path string) error {
	isELF, err := IsELF(path)
	if err != nil {
		return err
	}
	if isELF {
		_, err = LoadELF(mem, path)
		return err
	}
	_, err = LoadBinary(mem, addr, path)
	return err
}
