package session

import (
	"fmt"
	"strconv"
	"strings"
)

// resolveLocation turns a breakpoint spec into a concrete address.
//
// Supported forms:
//   - *0x4011a1   instruction address, taken verbatim
//   - 12          source line number, resolved via the line table
//   - main        function name, resolved via the debug info
func (s *Session) resolveLocation(spec string) (uintptr, error) {
	if strings.HasPrefix(spec, "*") {
		addr, err := parseAddress(spec[1:])
		if err != nil {
			return 0, fmt.Errorf("%s is not a well-formed address", spec[1:])
		}
		return addr, nil
	}

	if lineno, err := strconv.Atoi(spec); err == nil {
		addr, ok := s.resolver.AddressForLine(lineno)
		if !ok {
			return 0, fmt.Errorf("%s is not a valid line number", spec)
		}
		return uintptr(addr), nil
	}

	addr, ok := s.resolver.AddressForFunction(spec)
	if !ok {
		return 0, fmt.Errorf("%s is not a valid function name", spec)
	}
	return uintptr(addr), nil
}

// parseAddress accepts hex with or without the 0x prefix.
func parseAddress(addr string) (uintptr, error) {
	addr = strings.TrimPrefix(strings.ToLower(addr), "0x")
	v, err := strconv.ParseUint(addr, 16, 64)
	if err != nil {
		return 0, err
	}
	return uintptr(v), nil
}
