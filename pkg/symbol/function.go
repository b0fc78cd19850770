package symbol

import (
	"debug/dwarf"
)

// Function is one subprogram entry from .debug_info.
//
// see DWARFv4 3.3 subroutine and entry point entries
type Function struct {
	Name   string
	LowPC  uint64
	HighPC uint64
}

// parseFunction reads the attributes of a TagSubprogram entry. Returns nil
// for subprograms without code (declarations, inlined-only instances).
func parseFunction(entry *dwarf.Entry) *Function {
	f := &Function{}

	for _, field := range entry.Field {
		switch field.Attr {
		case dwarf.AttrName:
			if val, ok := field.Val.(string); ok {
				f.Name = val
			}
		case dwarf.AttrLowpc:
			if val, ok := field.Val.(uint64); ok {
				f.LowPC = val
			}
		case dwarf.AttrHighpc:
			// highpc is either an address or an offset from lowpc,
			// depending on the attribute form the producer chose
			switch val := field.Val.(type) {
			case uint64:
				f.HighPC = val
			case int64:
				f.HighPC = f.LowPC + uint64(val)
			}
		}
	}

	if f.LowPC == 0 {
		return nil
	}
	if f.HighPC < f.LowPC {
		// offset-form highpc seen before lowpc, fix up the range
		f.HighPC += f.LowPC
	}
	return f
}
