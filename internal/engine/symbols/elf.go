package symbols

import (
	"debug/elf"
	"errors"
	"fmt"
)

// stbGNUUnique is STB_GNU_UNIQUE, which shares its value with STB_LOOS.
const stbGNUUnique = elf.STB_LOOS

func classifyELF(path string) (Classification, error) {
	f, err := elf.Open(path)
	if err != nil {
		return Classification{}, objectError(path, "unable to parse ELF object", err)
	}
	defer f.Close()

	if f.Type != elf.ET_REL {
		return Classification{}, objectError(path, "not a relocatable object", fmt.Errorf("ELF type %s", f.Type))
	}

	syms, err := f.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return Classification{}, nil
	}
	if err != nil {
		return Classification{}, objectError(path, "unable to read symbols", err)
	}

	res := Classification{Records: len(syms)}
	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		if s.Section == elf.SHN_UNDEF {
			res.Undefined = append(res.Undefined, s.Name)
			continue
		}
		if isELFExported(s) {
			res.Exported = append(res.Exported, s.Name)
		}
	}
	return res, nil
}

func isELFExported(s elf.Symbol) bool {
	if s.Section == elf.SHN_COMMON {
		return true
	}
	switch elf.ST_BIND(s.Info) {
	case elf.STB_GLOBAL, elf.STB_WEAK, stbGNUUnique:
		return true
	default:
		return false
	}
}
