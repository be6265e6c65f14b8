package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/armvm/armvm/emu"
	"github.com/armvm/armvm/insts"
)

const sessionHelp = `Commands:
  s, space, enter  step one instruction
  c                continue until an error or the step limit
  r                print registers
  h, ?             print this help
  q                quit
`

// session single-steps an emulator from key presses. On a terminal, stdin
// is switched to raw mode so that keys act without Enter; it is restored
// when the session ends.
type session struct {
	emulator *emu.Emulator
	decoder  *insts.Decoder
	in       io.Reader
	out      io.Writer
}

func newSession(emulator *emu.Emulator, in io.Reader, out io.Writer) *session {
	return &session{
		emulator: emulator,
		decoder:  insts.NewDecoder(),
		in:       in,
		out:      out,
	}
}

func (s *session) run() error {
	if f, ok := s.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		oldState, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			_, _ = fmt.Fprintf(s.out, "interactive: failed to set raw mode: %v\n", err)
		} else {
			defer func() { _ = term.Restore(int(f.Fd()), oldState) }()
			s.out = crlfWriter{s.out}
		}
	}

	_, _ = fmt.Fprint(s.out, sessionHelp)
	s.printNext()

	r := bufio.NewReader(s.in)
	for {
		key, err := r.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch key {
		case 's', ' ', '\r', '\n':
			if err := s.step(); err != nil {
				return err
			}
		case 'c':
			return s.emulator.Run()
		case 'r':
			printRegisters(s.out, s.emulator.RegFile().Snapshot())
		case 'h', '?':
			_, _ = fmt.Fprint(s.out, sessionHelp)
		case 'q', 0x03, 0x04: // q, Ctrl-C, Ctrl-D
			return nil
		}
	}
}

func (s *session) step() error {
	result := s.emulator.Step()
	if result.Inst != nil {
		_, _ = fmt.Fprintf(s.out, "0x%08x: %s\n", result.PC, insts.Disassemble(result.Inst, result.PC))
	}
	if result.Err != nil {
		return result.Err
	}
	s.printNext()
	return nil
}

// printNext shows the instruction at the PC without executing it.
func (s *session) printNext() {
	pc := s.emulator.RegFile().PC()
	raw, err := s.emulator.LoadNextInstruction()
	if err != nil {
		_, _ = fmt.Fprintf(s.out, "next 0x%08x: <%v>\n", pc, err)
		return
	}
	inst := s.decoder.Decode(raw)
	_, _ = fmt.Fprintf(s.out, "next 0x%08x: %s\n", pc, insts.Disassemble(inst, pc))
}

// crlfWriter turns LF into CRLF for terminals in raw mode.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(c.w, strings.ReplaceAll(string(p), "\n", "\r\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}
