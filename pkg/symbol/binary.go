package symbol

import (
	"debug/dwarf"
	"debug/elf"
	"io"
	"sort"
)

// BinaryInfo holds the line and function mappings parsed from the DWARF
// data of an executable. All lookups are pure reads against this statically
// loaded metadata; a miss is reported as ok=false, never as an error.
type BinaryInfo struct {
	Sources   map[string]map[int][]*dwarf.LineEntry // key=filename, val=map[lineno]lineEntries
	Functions []*Function
}

// Analyze analyzes executable `execFile` and returns the binary info.
func Analyze(execFile string) (*BinaryInfo, error) {
	file, err := elf.Open(execFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dwarfData, err := file.DWARF()
	if err != nil {
		return nil, err
	}

	bi := &BinaryInfo{
		Sources: make(map[string]map[int][]*dwarf.LineEntry),
	}
	if err = bi.parseLineAndInfo(dwarfData); err != nil {
		return nil, err
	}
	return bi, nil
}

// parseLineAndInfo parses the .(z)debug_line and .(z)debug_info sections.
//
// unit entries: see DWARF v4 chapter 3.3.1 normal and partial compilation unit entries
func (bi *BinaryInfo) parseLineAndInfo(dwarfData *dwarf.Data) error {
	reader := dwarfData.Reader()
	for {
		entry, err := reader.Next()
		if err != nil {
			return err
		}
		if entry == nil { // reaches the end
			break
		}

		// parse compile unit and line table
		if entry.Tag == dwarf.TagCompileUnit {
			rd, err := dwarfData.LineReader(entry)
			if err != nil {
				return err
			}
			if rd == nil {
				// compile unit without a line table
				continue
			}
			if err = bi.parseLineSection(rd); err != nil {
				return err
			}
		}

		// parse subprogram
		if entry.Tag == dwarf.TagSubprogram {
			fn := parseFunction(entry)
			if fn != nil && fn.Name != "" {
				bi.Functions = append(bi.Functions, fn)
			}
		}
	}
	return nil
}

// parseLineSection scans one compile unit's line program and indexes its
// entries by file and line.
//
// note: one compile unit may contain more than one source file.
func (bi *BinaryInfo) parseLineSection(lineReader *dwarf.LineReader) error {
	entry := dwarf.LineEntry{}

	for {
		// scan next entry
		err := lineReader.Next(&entry)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if entry.File == nil || entry.EndSequence {
			continue
		}

		// append line entries
		file := entry.File.Name
		entries, ok := bi.Sources[file]
		if !ok {
			entries = make(map[int][]*dwarf.LineEntry)
			bi.Sources[file] = entries
		}

		dup := entry
		entries[entry.Line] = append(entries[entry.Line], &dup)
	}
	return nil
}

// --------------------------------------------------------------------

// FunctionAt returns the name of the function whose range covers pc.
//
// note: inline functions not considered.
func (bi *BinaryInfo) FunctionAt(pc uint64) (string, bool) {
	for _, f := range bi.Functions {
		if f.LowPC <= pc && pc < f.HighPC {
			return f.Name, true
		}
	}
	return "", false
}

// LineAt returns the source position of the statement nearest at or below pc.
func (bi *BinaryInfo) LineAt(pc uint64) (string, int, bool) {
	var (
		bestAddr uint64
		bestFile string
		bestLine int
		found    bool
	)
	for filename, lines := range bi.Sources {
		for lineno, lineEntries := range lines {
			for _, lineEntry := range lineEntries {
				if lineEntry.Address == pc {
					return filename, lineno, true
				}
				if lineEntry.Address < pc && (!found || lineEntry.Address > bestAddr) {
					bestAddr = lineEntry.Address
					bestFile = filename
					bestLine = lineno
					found = true
				}
			}
		}
	}
	return bestFile, bestLine, found
}

// AddressForLine returns the breakpoint address for lineno, preferring the
// entry that ends the prologue. Files are scanned in sorted order so the
// result is deterministic when several compile units know the line.
func (bi *BinaryInfo) AddressForLine(lineno int) (uint64, bool) {
	files := make([]string, 0, len(bi.Sources))
	for f := range bi.Sources {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, f := range files {
		lineEntries := bi.Sources[f][lineno]
		if len(lineEntries) == 0 {
			continue
		}
		if addr, ok := pickBreakpointAddr(lineEntries); ok {
			return addr, true
		}
	}
	return 0, false
}

// AddressForFunction returns the breakpoint address for the named function:
// the end of its prologue when the line table knows it, its entry address
// otherwise.
func (bi *BinaryInfo) AddressForFunction(name string) (uint64, bool) {
	for _, f := range bi.Functions {
		if f.Name != name {
			continue
		}
		if addr, ok := bi.prologueEnd(f); ok {
			return addr, true
		}
		return f.LowPC, true
	}
	return 0, false
}

// prologueEnd finds the first prologue_end line entry inside f's range.
func (bi *BinaryInfo) prologueEnd(f *Function) (uint64, bool) {
	for _, lines := range bi.Sources {
		for _, lineEntries := range lines {
			for _, lineEntry := range lineEntries {
				if lineEntry.PrologueEnd &&
					f.LowPC <= lineEntry.Address && lineEntry.Address < f.HighPC {
					return lineEntry.Address, true
				}
			}
		}
	}
	return 0, false
}

// pickBreakpointAddr prefers a prologue_end entry, then the lowest address.
func pickBreakpointAddr(lineEntries []*dwarf.LineEntry) (uint64, bool) {
	for _, v := range lineEntries {
		if v.PrologueEnd {
			return v.Address, true
		}
	}
	addr := uint64(0)
	for i, v := range lineEntries {
		if i == 0 || v.Address < addr {
			addr = v.Address
		}
	}
	return addr, addr != 0
}
