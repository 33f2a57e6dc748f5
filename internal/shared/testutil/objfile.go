// Package testutil writes minimal relocatable object files so the symbol
// pipeline can be exercised without a real compiler.
package testutil

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// Symbol describes one ELF symbol table entry.
type Symbol struct {
	Name    string
	Binding elf.SymBind
	Type    elf.SymType
	Section elf.SectionIndex
}

const textSection elf.SectionIndex = 1

func Defined(name string) Symbol {
	return Symbol{Name: name, Binding: elf.STB_GLOBAL, Type: elf.STT_FUNC, Section: textSection}
}

func Weak(name string) Symbol {
	return Symbol{Name: name, Binding: elf.STB_WEAK, Type: elf.STT_FUNC, Section: textSection}
}

// Unique is a GNU_UNIQUE object, as emitted for template static data.
func Unique(name string) Symbol {
	return Symbol{Name: name, Binding: elf.STB_LOOS, Type: elf.STT_OBJECT, Section: textSection}
}

func Common(name string) Symbol {
	return Symbol{Name: name, Binding: elf.STB_GLOBAL, Type: elf.STT_OBJECT, Section: elf.SHN_COMMON}
}

func Local(name string) Symbol {
	return Symbol{Name: name, Binding: elf.STB_LOCAL, Type: elf.STT_FUNC, Section: textSection}
}

func Undefined(name string) Symbol {
	return Symbol{Name: name, Binding: elf.STB_GLOBAL, Type: elf.STT_NOTYPE, Section: elf.SHN_UNDEF}
}

// Object is the symbol content of one test object file.
type Object struct {
	Exported  []string
	Undefined []string
	Locals    []string
}

// Symbols expands o into ELF symbols.
func (o Object) Symbols() []Symbol {
	syms := make([]Symbol, 0, len(o.Locals)+len(o.Exported)+len(o.Undefined))
	for _, name := range o.Locals {
		syms = append(syms, Local(name))
	}
	for _, name := range o.Exported {
		syms = append(syms, Defined(name))
	}
	for _, name := range o.Undefined {
		syms = append(syms, Undefined(name))
	}
	return syms
}

// ELFObject returns an ELF64 little-endian ET_REL image carrying syms.
func ELFObject(syms ...Symbol) []byte {
	return buildELF(elf.ET_REL, syms, true)
}

// ELFObjectWithoutSymtab returns a relocatable object with no .symtab section.
func ELFObjectWithoutSymtab() []byte {
	return buildELF(elf.ET_REL, nil, false)
}

// ELFExecutable returns an ET_EXEC image, which is not a relocatable object.
func ELFExecutable(syms ...Symbol) []byte {
	return buildELF(elf.ET_EXEC, syms, true)
}

// WriteELFObject writes an object carrying syms to path, creating parent dirs.
func WriteELFObject(t testing.TB, path string, syms ...Symbol) {
	t.Helper()
	WriteFile(t, path, ELFObject(syms...))
}

func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

type strtab struct {
	buf bytes.Buffer
}

func newStrtab() *strtab {
	s := &strtab{}
	s.buf.WriteByte(0)
	return s
}

func (s *strtab) add(name string) uint32 {
	if name == "" {
		return 0
	}
	off := uint32(s.buf.Len())
	s.buf.WriteString(name)
	s.buf.WriteByte(0)
	return off
}

func align(buf *bytes.Buffer, n int) {
	for buf.Len()%n != 0 {
		buf.WriteByte(0)
	}
}

func buildELF(typ elf.Type, syms []Symbol, withSymtab bool) []byte {
	ordered := append([]Symbol(nil), syms...)
	// Locals precede globals in a well-formed symtab.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Binding == elf.STB_LOCAL && ordered[j].Binding != elf.STB_LOCAL
	})

	shstr := newStrtab()
	names := struct{ text, symtab, strtab, shstrtab uint32 }{
		text:     shstr.add(".text"),
		symtab:   shstr.add(".symtab"),
		strtab:   shstr.add(".strtab"),
		shstrtab: shstr.add(".shstrtab"),
	}

	symstr := newStrtab()
	var symdata bytes.Buffer
	// Index 0 is the reserved null symbol.
	_ = binary.Write(&symdata, binary.LittleEndian, elf.Sym64{})
	firstGlobal := uint32(1)
	for i, s := range ordered {
		if s.Binding == elf.STB_LOCAL {
			firstGlobal = uint32(i + 2)
		}
		sym := elf.Sym64{
			Name:  symstr.add(s.Name),
			Info:  elf.ST_INFO(s.Binding, s.Type),
			Shndx: uint16(s.Section),
		}
		if s.Section == elf.SHN_COMMON {
			sym.Value = 8
			sym.Size = 8
		}
		_ = binary.Write(&symdata, binary.LittleEndian, sym)
	}

	var out bytes.Buffer
	out.Write(make([]byte, 64))

	textOff := uint64(out.Len())
	out.Write(make([]byte, 16))

	var symOff, symLen, strOff, strLen uint64
	if withSymtab {
		align(&out, 8)
		symOff = uint64(out.Len())
		out.Write(symdata.Bytes())
		symLen = uint64(symdata.Len())

		strOff = uint64(out.Len())
		out.Write(symstr.buf.Bytes())
		strLen = uint64(symstr.buf.Len())
	}

	shstrOff := uint64(out.Len())
	out.Write(shstr.buf.Bytes())
	shstrLen := uint64(shstr.buf.Len())

	align(&out, 8)
	shOff := uint64(out.Len())

	sections := []elf.Section64{
		{},
		{Name: names.text, Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR), Off: textOff, Size: 16, Addralign: 16},
	}
	shstrndx := uint16(2)
	if withSymtab {
		sections = append(sections,
			elf.Section64{Name: names.symtab, Type: uint32(elf.SHT_SYMTAB), Off: symOff, Size: symLen, Link: 3, Info: firstGlobal, Addralign: 8, Entsize: elf.Sym64Size},
			elf.Section64{Name: names.strtab, Type: uint32(elf.SHT_STRTAB), Off: strOff, Size: strLen, Addralign: 1},
		)
		shstrndx = 4
	}
	sections = append(sections, elf.Section64{Name: names.shstrtab, Type: uint32(elf.SHT_STRTAB), Off: shstrOff, Size: shstrLen, Addralign: 1})
	for _, sh := range sections {
		_ = binary.Write(&out, binary.LittleEndian, sh)
	}

	hdr := elf.Header64{
		Type:      uint16(typ),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shOff,
		Ehsize:    64,
		Shentsize: 64,
		Shnum:     uint16(len(sections)),
		Shstrndx:  shstrndx,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var hb bytes.Buffer
	_ = binary.Write(&hb, binary.LittleEndian, hdr)
	img := out.Bytes()
	copy(img[:64], hb.Bytes())
	return img
}

// MachOSymbol describes one nlist_64 entry.
type MachOSymbol struct {
	Name  string
	Type  uint8
	Sect  uint8
	Value uint64
}

const (
	machoNExt  = 0x01
	machoNSect = 0x0e
)

func MachODefined(name string) MachOSymbol {
	return MachOSymbol{Name: name, Type: machoNSect | machoNExt, Sect: 1}
}

func MachOUndefined(name string) MachOSymbol {
	return MachOSymbol{Name: name, Type: machoNExt}
}

// MachOCommon is an undefined external with a non-zero size, i.e. a common symbol.
func MachOCommon(name string) MachOSymbol {
	return MachOSymbol{Name: name, Type: machoNExt, Value: 8}
}

func MachOLocal(name string) MachOSymbol {
	return MachOSymbol{Name: name, Type: machoNSect, Sect: 1}
}

// MachOObject returns a 64-bit MH_OBJECT image with a single LC_SYMTAB command.
func MachOObject(syms ...MachOSymbol) []byte {
	const (
		headerSize = 32
		symtabCmd  = 24
		nlistSize  = 16
	)
	str := newStrtab()
	var nlists bytes.Buffer
	for _, s := range syms {
		_ = binary.Write(&nlists, binary.LittleEndian, macho.Nlist64{
			Name:  str.add(s.Name),
			Type:  s.Type,
			Sect:  s.Sect,
			Value: s.Value,
		})
	}

	symoff := uint32(headerSize + symtabCmd)
	stroff := symoff + uint32(len(syms)*nlistSize)

	var out bytes.Buffer
	_ = binary.Write(&out, binary.LittleEndian, macho.FileHeader{
		Magic:  macho.Magic64,
		Cpu:    macho.CpuAmd64,
		SubCpu: 3,
		Type:   macho.TypeObj,
		Ncmd:   1,
		Cmdsz:  symtabCmd,
	})
	_ = binary.Write(&out, binary.LittleEndian, uint32(0))
	_ = binary.Write(&out, binary.LittleEndian, macho.SymtabCmd{
		Cmd:     macho.LoadCmdSymtab,
		Len:     symtabCmd,
		Symoff:  symoff,
		Nsyms:   uint32(len(syms)),
		Stroff:  stroff,
		Strsize: uint32(str.buf.Len()),
	})
	out.Write(nlists.Bytes())
	out.Write(str.buf.Bytes())
	return out.Bytes()
}
