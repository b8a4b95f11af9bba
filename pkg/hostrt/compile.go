// SPDX-License-Identifier: MPL-2.0

package hostrt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"mvdan.cc/sh/v3/syntax"
	"mvdan.cc/sh/v3/syntax/typedjson"
)

const (
	// OptimizeDefault selects the runtime's default optimization level (0).
	OptimizeDefault = -1
	// OptimizeMax is the highest supported optimization level.
	OptimizeMax = 2

	headerMagic   = "shc"
	formatVersion = byte(1)
	headerSize    = 16

	flagSimplified      uint32 = 1 << 0
	flagCommentsDropped uint32 = 1 << 1
)

// Program is an executable unit: a parsed shell syntax tree.
type Program struct {
	file *syntax.File
}

// Origin returns the provenance label the program was compiled against.
func (p *Program) Origin() string {
	return p.file.Name
}

// Header describes the metadata prefix of a compiled unit.
type Header struct {
	Version    byte
	Flags      uint32
	ModTime    time.Time
	SourceSize uint32
}

// Optimize returns the optimization level recorded in the header flags.
func (h Header) Optimize() int {
	switch {
	case h.Flags&flagCommentsDropped != 0:
		return 2
	case h.Flags&flagSimplified != 0:
		return 1
	default:
		return 0
	}
}

// NormalizeOptimize maps an optimization level onto 0..OptimizeMax.
func NormalizeOptimize(level int) (int, error) {
	if level == OptimizeDefault {
		return 0, nil
	}
	if level < 0 || level > OptimizeMax {
		return 0, fmt.Errorf("optimization level %d out of range [-1, %d]", level, OptimizeMax)
	}
	return level, nil
}

// Compile parses src into a Program labelled with origin. Level 1 simplifies
// the syntax tree, level 2 also drops comments.
func Compile(src []byte, origin string, optimize int) (*Program, error) {
	level, err := NormalizeOptimize(optimize)
	if err != nil {
		return nil, err
	}

	opts := []syntax.ParserOption{syntax.Variant(syntax.LangBash)}
	if level < 2 {
		opts = append(opts, syntax.KeepComments(true))
	}

	file, err := syntax.NewParser(opts...).Parse(bytes.NewReader(src), origin)
	if err != nil {
		return nil, &CompileError{Origin: origin, Err: err}
	}
	if level >= 1 {
		syntax.Simplify(file)
	}
	return &Program{file: file}, nil
}

// CompileUnit compiles src and serializes the result behind a host header
// carrying the format version, optimization flags, modTime and source size.
// The header layout belongs to the host; loaders that are not the host must
// not assume its length.
func CompileUnit(src []byte, origin string, optimize int, modTime time.Time) ([]byte, error) {
	level, err := NormalizeOptimize(optimize)
	if err != nil {
		return nil, err
	}
	prog, err := Compile(src, origin, level)
	if err != nil {
		return nil, err
	}

	var flags uint32
	if level >= 1 {
		flags |= flagSimplified
	}
	if level >= 2 {
		flags |= flagCommentsDropped
	}

	var buf bytes.Buffer
	buf.Grow(headerSize + len(src)*4)
	buf.WriteString(headerMagic)
	buf.WriteByte(formatVersion)
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], flags)
	buf.Write(word[:])
	binary.LittleEndian.PutUint32(word[:], uint32(modTime.Unix()))
	buf.Write(word[:])
	binary.LittleEndian.PutUint32(word[:], uint32(len(src)))
	buf.Write(word[:])

	if err := typedjson.Encode(&buf, prog.file); err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", origin, err)
	}
	return buf.Bytes(), nil
}

// ParseHeader reads the host header of a compiled unit.
func ParseHeader(raw []byte) (Header, error) {
	if len(raw) < headerSize || string(raw[:len(headerMagic)]) != headerMagic {
		return Header{}, &DecodeError{Reason: "missing compiled unit header"}
	}
	h := Header{
		Version:    raw[3],
		Flags:      binary.LittleEndian.Uint32(raw[4:8]),
		ModTime:    time.Unix(int64(binary.LittleEndian.Uint32(raw[8:12])), 0).UTC(),
		SourceSize: binary.LittleEndian.Uint32(raw[12:16]),
	}
	if h.Version != formatVersion {
		return Header{}, &DecodeError{Reason: fmt.Sprintf("unsupported compiled unit format %d", h.Version)}
	}
	return h, nil
}

// DecodeUnit decodes a complete compiled unit using the host's own knowledge
// of its header.
func DecodeUnit(raw []byte) (*Program, error) {
	if _, err := ParseHeader(raw); err != nil {
		return nil, err
	}
	return Decode(raw[headerSize:])
}

// Decode deserializes a Program from data, which must start exactly at the
// serialized representation. Format errors and values of the wrong shape are
// reported as *DecodeError.
func Decode(data []byte) (prog *Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			prog = nil
			err = &DecodeError{Reason: "malformed syntax tree", Err: fmt.Errorf("%v", r)}
		}
	}()

	node, err := typedjson.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "not a serialized program", Err: err}
	}
	file, ok := node.(*syntax.File)
	if !ok || file == nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("decoded %T, want a file", node)}
	}
	return &Program{file: file}, nil
}
