package symbols

import (
	"debug/macho"
	"fmt"
)

// nlist n_type bits.
const (
	machoNStab = 0xe0
	machoNType = 0x0e
	machoNExt  = 0x01
	machoNUndf = 0x00
)

func classifyMachO(path string) (Classification, error) {
	f, err := macho.Open(path)
	if err != nil {
		return Classification{}, objectError(path, "unable to parse Mach-O object", err)
	}
	defer f.Close()

	if f.Type != macho.TypeObj {
		return Classification{}, objectError(path, "not a relocatable object", fmt.Errorf("Mach-O type %s", f.Type))
	}
	if f.Symtab == nil {
		return Classification{}, nil
	}

	res := Classification{Records: len(f.Symtab.Syms)}
	for _, s := range f.Symtab.Syms {
		if s.Name == "" || s.Type&machoNStab != 0 {
			continue
		}
		undef := s.Type&machoNType == machoNUndf
		switch {
		case undef && s.Value == 0:
			res.Undefined = append(res.Undefined, s.Name)
		case undef:
			// An undefined external with a size is a common symbol.
			res.Exported = append(res.Exported, s.Name)
		case s.Type&machoNExt != 0:
			res.Exported = append(res.Exported, s.Name)
		}
	}
	return res, nil
}
