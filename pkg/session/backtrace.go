package session

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Backtrace walks saved frame pointers and prints one line per frame. The
// walk ends at the program's entry function. A failed memory read truncates
// the trace with an explicit marker; the frames printed so far stay
// visible. Correct only for targets compiled with frame pointers preserved.
func (s *Session) Backtrace() error {
	if s.tracee == nil {
		return errors.New("no program is running")
	}

	regs, err := s.tracee.ReadRegister()
	if err != nil {
		return fmt.Errorf("get regs error: %v", err)
	}

	var (
		pc  = regs.PC()
		fb  = regs.Rbp // frame base of the current frame
		idx = 0
		buf = make([]byte, 8)
	)

	for {
		fn, ok := s.resolver.FunctionAt(pc)
		if !ok {
			fn = "[unknown function]"
		}
		pos := "[unknown location]"
		if file, line, ok := s.resolver.LineAt(pc); ok {
			pos = fmt.Sprintf("%s:%d", file, line)
		}
		fmt.Printf("#%d  %#014x in %s at %s\n", idx, pc, fn, pos)

		if isEntryFunction(fn) {
			break
		}

		// the caller's return address sits one word above the frame
		// base, the caller's saved frame base at the frame base itself
		if n, err := s.tracee.ReadMemory(uintptr(fb)+8, buf); err != nil || n != 8 {
			fmt.Println("[...]\nERROR: unable to complete backtrace.")
			break
		}
		pc = binary.LittleEndian.Uint64(buf)

		if n, err := s.tracee.ReadMemory(uintptr(fb), buf); err != nil || n != 8 {
			fmt.Println("[...]\nERROR: unable to complete backtrace.")
			break
		}
		fb = binary.LittleEndian.Uint64(buf)

		idx++
	}
	return nil
}

// isEntryFunction reports whether fn is the base of the call chain: main
// for C-like targets, main.main for Go ones.
func isEntryFunction(fn string) bool {
	return fn == "main" || fn == "main.main"
}
