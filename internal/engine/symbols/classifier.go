package symbols

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	apperrors "linkgraph/internal/core/errors"
)

const (
	FormatELF   = "elf"
	FormatMachO = "macho"
)

// Classification is the linking-relevant view of one object file's symbol
// table. Local symbols are dropped.
type Classification struct {
	Path          string
	Format        string
	Exported      []string
	Undefined     []string
	HasEntryPoint bool
	// Records counts every entry read from the symbol table, locals included.
	Records int
}

// Empty reports whether the object contributed no linkable symbols.
func (c Classification) Empty() bool {
	return len(c.Exported) == 0 && len(c.Undefined) == 0
}

// EmptyTable reports whether the object had no symbol table entries at all.
func (c Classification) EmptyTable() bool {
	return c.Records == 0
}

type Classifier struct {
	entry EntryMatcher
}

func NewClassifier(entry EntryMatcher) *Classifier {
	return &Classifier{entry: entry}
}

// Classify reads the symbol table of the relocatable object at path.
//
// An unreadable file or an unsupported format is an OBJECT_FORMAT error. An
// object without symbols is logged and yields an empty classification.
func (c *Classifier) Classify(path string) (Classification, error) {
	format, err := detectFormat(path)
	if err != nil {
		return Classification{}, err
	}

	var res Classification
	switch format {
	case FormatELF:
		res, err = classifyELF(path)
	case FormatMachO:
		res, err = classifyMachO(path)
	}
	if err != nil {
		return Classification{}, err
	}

	res.Path = path
	res.Format = format
	if res.EmptyTable() {
		slog.Warn("empty symbol table read from object, continuing with build", "path", path, "format", format)
		return res, nil
	}
	if res.Empty() {
		slog.Debug("object has no linkable symbols", "path", path, "format", format, "local", res.Records)
		return res, nil
	}
	res.HasEntryPoint = c.entry.Any(res.Exported)

	slog.Debug("read symbols from object",
		"path", path,
		"format", format,
		"exported", len(res.Exported),
		"undefined", len(res.Undefined),
		"entry_point", res.HasEntryPoint,
	)
	return res, nil
}

func detectFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", objectError(path, "unable to open object file", err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return "", objectError(path, "unable to read object header", err)
	}

	if bytes.Equal(magic[:], []byte("\x7fELF")) {
		return FormatELF, nil
	}
	le := binary.LittleEndian.Uint32(magic[:])
	be := binary.BigEndian.Uint32(magic[:])
	if le == macho.Magic32 || le == macho.Magic64 || be == macho.Magic32 || be == macho.Magic64 {
		return FormatMachO, nil
	}
	return "", objectError(path, "not a relocatable object", fmt.Errorf("unrecognized magic % x", magic[:]))
}

func objectError(path, msg string, err error) error {
	return apperrors.AddContext(apperrors.Wrap(err, apperrors.CodeObjectFormat, msg), apperrors.CtxPath, path)
}
