package session

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// sourceLine returns the text of 1-based line lineno in file.
func sourceLine(file string, lineno int) (string, error) {
	dat, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read file err: %v", err)
	}
	lines := strings.Split(string(dat), "\n")
	if lineno < 1 || lineno > len(lines) {
		return "", fmt.Errorf("no line %d in %s", lineno, file)
	}
	return lines[lineno-1], nil
}

// listFile returns up to rng lines on each side of lineno; the returned
// offset is the zero-based index of the first returned line.
func listFile(file string, lineno, rng int) (lines []string, offset int, err error) {
	dat, err := os.ReadFile(file)
	if err != nil {
		err = fmt.Errorf("read file err: %v", err)
		return
	}

	raw := strings.Split(string(dat), "\n")
	count := len(raw)

	begin := lineno - rng
	if begin < 0 {
		begin = 0
	}
	if begin > count {
		return
	}

	end := lineno + rng
	if end > count {
		end = count
	}

	return raw[begin:end], begin, nil
}

// ListSource prints rng lines of source around the tracee's current
// position, marking the current line.
func (s *Session) ListSource(rng int) error {
	if s.tracee == nil {
		return errors.New("no program is running")
	}

	regs, err := s.tracee.ReadRegister()
	if err != nil {
		return fmt.Errorf("get regs error: %v", err)
	}

	file, lineno, ok := s.resolver.LineAt(regs.PC())
	if !ok {
		return fmt.Errorf("no source location for pc %#x", regs.PC())
	}

	lines, offset, err := listFile(file, lineno, rng)
	if err != nil {
		return fmt.Errorf("list file err: %v", err)
	}

	// use 1-based counter
	idx := offset + 1
	for _, ln := range lines {
		if idx != lineno {
			fmt.Printf("%-4s\t%d\t%s\n", "", idx, ln)
		} else {
			fmt.Printf("%-4s\t%d\t%s\n", "=>", idx, ln)
		}
		idx++
	}
	return nil
}
